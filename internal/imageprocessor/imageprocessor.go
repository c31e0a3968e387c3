// Package imageprocessor turns uploaded or stored image files into the
// grayscale buffers the matching pipeline works on, and stores canonical
// canvases as PNG.
package imageprocessor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register WebP decoding

	"github.com/Faissen/signatures-recognition/internal/signature"
)

// Source loads a raw signature image by path.
type Source interface {
	Load(ctx context.Context, path string) (*image.Gray, error)
}

// FileSource reads images from the local filesystem.
type FileSource struct{}

var _ Source = FileSource{}

// MaxPixels bounds the decoded size of an image. Dimensions are read from the
// header before any pixel buffer is allocated.
const MaxPixels = 40_000_000

// ErrTooManyPixels is returned, together with signature.ErrImageDecode, when
// an image header declares more than MaxPixels pixels.
var ErrTooManyPixels = errors.New("image exceeds pixel limit")

// Load opens path, applies its EXIF orientation and converts it to gray.
func (FileSource) Load(ctx context.Context, path string) (*image.Gray, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", signature.ErrImageDecode, path, err)
	}
	img, err := decode(data, MaxPixels)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Decode converts an encoded image (PNG, JPEG, BMP, TIFF, WebP) to gray.
func Decode(data []byte) (*image.Gray, error) {
	return decode(data, MaxPixels)
}

func decode(data []byte, maxPixels int) (*image.Gray, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", signature.ErrImageDecode)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", signature.ErrImageDecode, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %w: %dx%d", signature.ErrImageDecode, ErrTooManyPixels, cfg.Width, cfg.Height)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", signature.ErrImageDecode, err)
	}
	return ToGray(img), nil
}

// ToGray flattens img onto a white background and converts it with BT.601
// luma weights. Gray inputs are copied unchanged.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < b.Dy(); y++ {
			off := g.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], g.Pix[off:off+b.Dx()])
		}
		return out
	}

	flat := imaging.Overlay(imaging.New(b.Dx(), b.Dy(), color.White), img, image.Pt(0, 0), 1.0)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := flat.NRGBAAt(x, y)
			lum := (299*int(c.R) + 587*int(c.G) + 114*int(c.B) + 500) / 1000
			out.Pix[y*out.Stride+x] = uint8(min(lum, 255))
		}
	}
	return out
}
