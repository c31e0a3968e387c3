package signature

import "fmt"

// InkPixels counts the canvas pixels that are not pure background.
func InkPixels(c *Canvas) int {
	if c == nil || c.img == nil {
		return 0
	}
	n := 0
	for _, v := range c.img.Pix {
		if v != Background {
			n++
		}
	}
	return n
}

// QualityGate rejects canvases with too little ink to compare meaningfully.
type QualityGate struct {
	minInk int
}

// NewQualityGate builds a gate that requires more than opts.MinInkPixels.
func NewQualityGate(opts Options) *QualityGate {
	return &QualityGate{minInk: opts.MinInkPixels}
}

// Check returns ErrLowQuality unless c has strictly more ink pixels than the
// threshold.
func (g *QualityGate) Check(c *Canvas) error {
	if ink := InkPixels(c); ink <= g.minInk {
		return fmt.Errorf("%w: %d ink pixels, need more than %d", ErrLowQuality, ink, g.minInk)
	}
	return nil
}

// Passes reports whether c clears the gate.
func (g *QualityGate) Passes(c *Canvas) bool {
	return g.Check(c) == nil
}
