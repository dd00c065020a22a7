package qrcode

import (
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	// ErrEmptyContent is returned when there is nothing to encode.
	ErrEmptyContent = errors.New("qrcode: content cannot be empty")
	// ErrEncode is returned when the QR image cannot be produced.
	ErrEncode = errors.New("qrcode: failed to generate image")
)

// DefaultSize is the PNG edge length in pixels used when size is not positive.
const DefaultSize = 256

// Encode renders content as a PNG QR code with medium error correction.
func Encode(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = DefaultSize
	}

	png, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return nil, errors.Join(ErrEncode, err)
	}

	return png, nil
}
