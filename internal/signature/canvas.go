package signature

import (
	"fmt"
	"image"
)

// Background is the gray level of canvas pixels that carry no ink.
const Background uint8 = 255

// Canvas is a canonical signature: a fixed-size grayscale grid with a white
// background and the ink centered with its aspect ratio preserved. A Canvas is
// never mutated after construction.
type Canvas struct {
	img *image.Gray
}

// NewCanvas wraps img after checking it has exactly width x height pixels.
// The pixels are copied and rebased to the origin.
func NewCanvas(img *image.Gray, width, height int) (*Canvas, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidCanvas)
	}
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return nil, fmt.Errorf("%w: got %dx%d, want %dx%d", ErrInvalidCanvas, b.Dx(), b.Dy(), width, height)
	}
	return &Canvas{img: cloneGray(img)}, nil
}

// Width returns the canvas width in pixels.
func (c *Canvas) Width() int { return c.img.Rect.Dx() }

// Height returns the canvas height in pixels.
func (c *Canvas) Height() int { return c.img.Rect.Dy() }

// Gray returns a copy of the canvas pixels.
func (c *Canvas) Gray() *image.Gray { return cloneGray(c.img) }

// At returns the gray level at (x, y).
func (c *Canvas) At(x, y int) uint8 { return c.img.GrayAt(x, y).Y }

func checkCanvas(c *Canvas, width, height int) error {
	if c == nil || c.img == nil {
		return fmt.Errorf("%w: nil canvas", ErrInvalidCanvas)
	}
	if c.Width() != width || c.Height() != height {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrInvalidCanvas, c.Width(), c.Height(), width, height)
	}
	return nil
}

// cloneGray copies src into a new image whose bounds start at the origin.
func cloneGray(src *image.Gray) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		srcOff := src.PixOffset(b.Min.X, b.Min.Y+y)
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()], src.Pix[srcOff:srcOff+b.Dx()])
	}
	return dst
}

// cropGray copies the r sub-rectangle of src into a new origin-based image.
func cropGray(src *image.Gray, r image.Rectangle) *image.Gray {
	sub, ok := src.SubImage(r).(*image.Gray)
	if !ok {
		return image.NewGray(image.Rect(0, 0, 0, 0))
	}
	return cloneGray(sub)
}

func fillGray(img *image.Gray, v uint8) {
	for i := range img.Pix {
		img.Pix[i] = v
	}
}
