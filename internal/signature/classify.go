package signature

// Classifier tells cursive signatures from discrete-letter ones by counting
// outer ink contours. Cursive writing is mostly one connected stroke path and
// yields few contours; printed letters yield roughly one per glyph. The
// heuristic is coarse and misclassifications are expected.
type Classifier struct {
	threshold int
}

// NewClassifier builds a Classifier with opts.CursiveContourThreshold.
func NewClassifier(opts Options) *Classifier {
	return &Classifier{threshold: opts.CursiveContourThreshold}
}

// ContourCount returns the number of outer ink contours of c.
func (cl *Classifier) ContourCount(c *Canvas) int {
	if c == nil || c.img == nil {
		return 0
	}
	return len(externalComponents(binarizeInv(c.img)))
}

// IsCursive reports whether c has at most the configured number of contours.
func (cl *Classifier) IsCursive(c *Canvas) bool {
	return cl.ContourCount(c) <= cl.threshold
}
