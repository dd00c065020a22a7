package qrcode

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleURI = "otpauth://totp/ACME%20Co:alice@example.com?algorithm=SHA1&digits=6&issuer=ACME+Co&period=30&secret=JBSWY3DPEHPK3PXP"

func TestEncode(t *testing.T) {
	t.Parallel()

	raw, err := Encode(sampleURI, 0)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, img.Bounds().Dx())

	_, err = Encode("   ", 128)
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	raw, err := Encode(sampleURI, 320)
	require.NoError(t, err)

	text, err := Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, sampleURI, text)
}

func TestDecode_JPEG(t *testing.T) {
	t.Parallel()

	raw, err := Encode(sampleURI, 320)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))

	text, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, sampleURI, text)
}

func TestDecode_CodeInsideLargerFrame(t *testing.T) {
	t.Parallel()

	raw, err := Encode(sampleURI, 256)
	require.NoError(t, err)
	qr, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	canvas := image.NewRGBA(image.Rect(0, 0, 1200, 900))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	at := image.Rect(900, 600, 1156, 856)
	draw.Draw(canvas, at, qr, qr.Bounds().Min, draw.Src)

	text, err := DecodeImage(canvas)
	require.NoError(t, err)
	assert.Equal(t, sampleURI, text)
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	_, err := Decode(bytes.NewReader([]byte("definitely not an image")))
	assert.ErrorIs(t, err, ErrInvalidImage)

	blank := image.NewGray(image.Rect(0, 0, 300, 300))
	draw.Draw(blank, blank.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, blank))

	_, err = Decode(&buf)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegions(t *testing.T) {
	t.Parallel()

	b := image.Rect(10, 20, 610, 420)
	rs := regions(b)
	require.NotEmpty(t, rs)

	for _, r := range rs {
		assert.True(t, r.In(b), "%v outside %v", r, b)
		assert.GreaterOrEqual(t, r.Dx(), minRegionSize)
		assert.GreaterOrEqual(t, r.Dy(), minRegionSize)
	}

	assert.Empty(t, regions(image.Rect(0, 0, 40, 40)))
}
