package otp

import (
	"encoding/base32"
	"fmt"
	"io"
	"strings"
)

// DecodeSecret decodes a base32 secret. Input is case-insensitive and may omit
// padding; spaces and dashes used for readability are ignored.
func DecodeSecret(text string) ([]byte, error) {
	s := strings.ToUpper(strings.NewReplacer(" ", "", "-", "", "\t", "").Replace(strings.TrimSpace(text)))
	s = strings.TrimRight(s, "=")
	if s == "" {
		return nil, ErrInvalidSecretEncoding
	}

	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecretEncoding, err)
	}
	if len(raw) == 0 {
		return nil, ErrInvalidSecretEncoding
	}

	return raw, nil
}

// EncodeSecret returns the canonical uppercase, padded base32 form of secret.
func EncodeSecret(secret []byte) string {
	return base32.StdEncoding.EncodeToString(secret)
}

// GenerateSecret reads size bytes from r. A non-positive size uses DefaultSecretSize.
func GenerateSecret(r io.Reader, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSecretSize
	}

	secret := make([]byte, size)
	if _, err := io.ReadFull(r, secret); err != nil {
		return nil, fmt.Errorf("otp: read random secret: %w", err)
	}

	return secret, nil
}
