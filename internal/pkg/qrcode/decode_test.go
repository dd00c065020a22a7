package qrcode

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngDeclaring encodes a tiny PNG and rewrites its IHDR so it claims w×h.
// DecodeConfig trusts the header, so the pixel data never matters.
func pngDeclaring(t *testing.T, w, h uint32) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	raw := buf.Bytes()

	// signature(8) | length(4) | "IHDR"(4) | width(4) | height(4) | ... | crc(4)
	require.Equal(t, "IHDR", string(raw[12:16]))
	binary.BigEndian.PutUint32(raw[16:20], w)
	binary.BigEndian.PutUint32(raw[20:24], h)
	binary.BigEndian.PutUint32(raw[29:33], crc32.ChecksumIEEE(raw[12:29]))

	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, int(w), cfg.Width)
	return raw
}

func TestDecode_RejectsOversizedDimensions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		w, h uint32
	}{
		{"huge square", 16000, 16000},
		{"one edge too long", MaxImageEdge + 1, 1},
		{"too many pixels", MaxImageEdge, MaxImageEdge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			start := time.Now()
			_, err := Decode(bytes.NewReader(pngDeclaring(t, tt.w, tt.h)))
			require.ErrorIs(t, err, ErrInvalidImage)
			assert.Less(t, time.Since(start), time.Second)
		})
	}
}

func TestDecode_RejectsOversizedUpload(t *testing.T) {
	t.Parallel()

	_, err := Decode(bytes.NewReader(make([]byte, MaxImageBytes+1)))
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestDecodeImage_RejectsOversizedImage(t *testing.T) {
	t.Parallel()

	wide := image.NewGray(image.Rect(0, 0, MaxImageEdge+1, 1))
	_, err := DecodeImage(wide)
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestRegions_Capped(t *testing.T) {
	t.Parallel()

	rs := regions(image.Rect(0, 0, MaxImageEdge, MaxImageEdge/4))
	assert.LessOrEqual(t, len(rs), maxRegions)
	require.NotEmpty(t, rs)

	// common QR sizes come before the grid sweep
	assert.Equal(t, 200, rs[0].Dx())
}
