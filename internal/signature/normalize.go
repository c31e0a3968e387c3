package signature

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Normalizer turns raw grayscale images into canonical canvases.
type Normalizer struct {
	width, height int
	kernelW       int
	kernelH       int
}

// NewNormalizer builds a Normalizer for the canvas and closing sizes in opts.
func NewNormalizer(opts Options) *Normalizer {
	return &Normalizer{
		width:   opts.CanvasWidth,
		height:  opts.CanvasHeight,
		kernelW: opts.CloseKernelWidth,
		kernelH: opts.CloseKernelHeight,
	}
}

// Normalize binarizes raw, repairs broken strokes, crops to the ink and
// centers the crop on a white canvas without distorting it. When no ink is
// found the whole image is stretched to the canvas instead.
func (n *Normalizer) Normalize(raw *image.Gray) (*Canvas, error) {
	if raw == nil || raw.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image buffer", ErrImageDecode)
	}
	src := cloneGray(raw)

	ink := closeRect(binarizeInv(src), n.kernelW, n.kernelH)
	comps := externalComponents(ink)
	if len(comps) == 0 {
		return &Canvas{img: resizeGray(src, n.width, n.height, normalizeScaler)}, nil
	}

	crop := cropGray(src, unionBounds(comps))
	cw, ch := crop.Rect.Dx(), crop.Rect.Dy()
	scale := math.Min(float64(n.width)/float64(cw), float64(n.height)/float64(ch))
	nw := clampInt(int(math.Round(float64(cw)*scale)), 1, n.width)
	nh := clampInt(int(math.Round(float64(ch)*scale)), 1, n.height)
	scaled := resizeGray(crop, nw, nh, normalizeScaler)

	canvas := image.NewGray(image.Rect(0, 0, n.width, n.height))
	fillGray(canvas, Background)
	offset := image.Pt((n.width-nw)/2, (n.height-nh)/2)
	draw.Draw(canvas, scaled.Bounds().Add(offset), scaled, image.Point{}, draw.Src)

	return &Canvas{img: canvas}, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
