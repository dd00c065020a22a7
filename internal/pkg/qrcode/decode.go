package qrcode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	// ErrInvalidImage is returned when the upload is not a decodable image.
	ErrInvalidImage = errors.New("qrcode: invalid image")
	// ErrNotFound is returned when no QR code could be located in the image.
	ErrNotFound = errors.New("qrcode: no qr code found in image")
)

// MaxImageBytes bounds how much of an upload Decode will read.
const MaxImageBytes = 10 << 20

const (
	// MaxImageEdge and MaxImagePixels bound the decoded dimensions an upload
	// may declare. Compressed size says nothing about them.
	MaxImageEdge   = 8192
	MaxImagePixels = 16 << 20

	minRegionSize  = 50
	upscaleBelow   = 200
	maxGridDivisor = 6
	// maxRegions caps the crops tried after a full-frame miss.
	maxRegions = 160
)

var fixedRegionSizes = []int{200, 300, 400, 500}

// Decode reads an image and returns the text of the first QR code found.
// Images larger than MaxImageBytes or declaring more than MaxImageEdge per
// side or MaxImagePixels in total fail with ErrInvalidImage before any pixel
// is decoded.
func Decode(r io.Reader) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(raw) > MaxImageBytes {
		return "", fmt.Errorf("%w: larger than %d bytes", ErrInvalidImage, MaxImageBytes)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
		return "", err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	return DecodeImage(img)
}

func checkDimensions(w, h int) error {
	switch {
	case w <= 0 || h <= 0:
		return fmt.Errorf("%w: empty %dx%d image", ErrInvalidImage, w, h)
	case w > MaxImageEdge || h > MaxImageEdge:
		return fmt.Errorf("%w: %dx%d exceeds %d px per side", ErrInvalidImage, w, h, MaxImageEdge)
	case int64(w)*int64(h) > MaxImagePixels:
		return fmt.Errorf("%w: %dx%d exceeds %d px", ErrInvalidImage, w, h, MaxImagePixels)
	}
	return nil
}

// DecodeImage scans img for a QR code, falling back to overlapping crops.
// Oversized images are rejected like in Decode.
func DecodeImage(img image.Image) (string, error) {
	b := img.Bounds()
	if err := checkDimensions(b.Dx(), b.Dy()); err != nil {
		return "", err
	}

	if text, ok := scan(img); ok {
		return text, nil
	}

	for _, rect := range regions(img.Bounds()) {
		if text, ok := scan(crop(img, rect)); ok {
			return text, nil
		}
	}

	return "", ErrNotFound
}

func scan(img image.Image) (string, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	res, err := zxqrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil || res == nil {
		return "", false
	}

	return res.GetText(), true
}

// crop copies rect into a fresh image anchored at the origin, doubling small
// regions so finder patterns stay above the detector's module threshold.
func crop(img image.Image, rect image.Rectangle) image.Image {
	w, h := rect.Dx(), rect.Dy()
	if w < upscaleBelow || h < upscaleBelow {
		dst := image.NewRGBA(image.Rect(0, 0, w*2, h*2))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, rect, draw.Src, nil)
		return dst
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Copy(dst, image.Point{}, img, rect, draw.Src, nil)
	return dst
}

// regions lists candidate crops: centred and corner squares of common QR
// sizes, then overlapping grids of 3..6 cells per side. At most maxRegions
// are returned.
func regions(b image.Rectangle) []image.Rectangle {
	width, height := b.Dx(), b.Dy()
	var out []image.Rectangle

	add := func(x0, y0, x1, y1 int) {
		if len(out) >= maxRegions {
			return
		}
		r := image.Rect(b.Min.X+x0, b.Min.Y+y0, b.Min.X+x1, b.Min.Y+y1).Intersect(b)
		if r.Dx() < minRegionSize || r.Dy() < minRegionSize {
			return
		}
		out = append(out, r)
	}

	minSide := min(width, height)
	for _, size := range fixedRegionSizes {
		if size > minSide {
			continue
		}
		cx, cy := (width-size)/2, (height-size)/2
		add(cx, cy, cx+size, cy+size)
		add(0, 0, size, size)
		add(width-size, 0, width, size)
		add(0, height-size, size, height)
		add(width-size, height-size, width, height)
	}

	for grid := 3; grid <= maxGridDivisor; grid++ {
		stepX, stepY := width/grid, height/grid
		if stepX < 2 || stepY < 2 {
			continue
		}
		for x := 0; x < width-stepX; x += stepX / 2 {
			for y := 0; y < height-stepY; y += stepY / 2 {
				add(x, y, x+stepX, y+stepY)
			}
		}
	}

	return out
}
