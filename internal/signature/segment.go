package signature

import (
	"image"
	"sort"
)

// Letter is one segmented glyph of a canvas.
type Letter struct {
	// X is the left edge of the glyph within its canvas.
	X      int
	Bounds image.Rectangle
	Image  *image.Gray
}

// Segmenter splits canvases into letters.
type Segmenter struct {
	minWidth, minHeight int
}

// NewSegmenter builds a Segmenter using the noise filter sizes in opts.
func NewSegmenter(opts Options) *Segmenter {
	return &Segmenter{minWidth: opts.MinLetterWidth, minHeight: opts.MinLetterHeight}
}

// Segment returns the letters of c ordered left to right. Overlapping boxes of
// joined strokes are kept whole; boxes narrower or shorter than the noise
// filter are dropped.
func (s *Segmenter) Segment(c *Canvas) []Letter {
	if c == nil || c.img == nil {
		return nil
	}
	comps := externalComponents(binarizeInv(c.img))

	letters := make([]Letter, 0, len(comps))
	for _, comp := range comps {
		r := comp.Bounds
		if r.Dx() < s.minWidth || r.Dy() < s.minHeight {
			continue
		}
		letters = append(letters, Letter{X: r.Min.X, Bounds: r, Image: cropGray(c.img, r)})
	}
	sort.SliceStable(letters, func(i, j int) bool { return letters[i].X < letters[j].X })
	return letters
}
