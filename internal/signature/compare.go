package signature

import "fmt"

// Method names the scoring strategy that produced a score.
type Method string

const (
	MethodLetterwise     Method = "letterwise"
	MethodGlobalTemplate Method = "global_template"
	MethodStructural     Method = "structural"
)

// Prepared is a canvas together with its cursive classification.
type Prepared struct {
	Canvas  *Canvas
	Cursive bool
}

// MatchScore is the outcome of comparing one pair of signatures.
type MatchScore struct {
	Score  float64
	Method Method
}

// Comparator picks a scoring strategy per pair. A single cursive operand
// invalidates letter-based comparison for the pair, so cursive pairs go to the
// whole-canvas strategy and only discrete pairs are compared letter by letter.
type Comparator struct {
	scorer    Scorer
	segmenter *Segmenter
	cursive   CursiveStrategy
	width     int
	height    int
}

// NewComparator builds a Comparator that scores with scorer.
func NewComparator(opts Options, scorer Scorer) *Comparator {
	return &Comparator{
		scorer:    scorer,
		segmenter: NewSegmenter(opts),
		cursive:   opts.CursiveStrategy,
		width:     opts.CanvasWidth,
		height:    opts.CanvasHeight,
	}
}

// Compare scores candidate against query.
func (c *Comparator) Compare(query, candidate Prepared) (MatchScore, error) {
	if err := checkCanvas(query.Canvas, c.width, c.height); err != nil {
		return MatchScore{}, fmt.Errorf("query: %w", err)
	}
	if err := checkCanvas(candidate.Canvas, c.width, c.height); err != nil {
		return MatchScore{}, fmt.Errorf("candidate: %w", err)
	}

	if query.Cursive || candidate.Cursive {
		if c.cursive == CursiveStructural {
			return MatchScore{
				Score:  c.scorer.Structural(query.Canvas, candidate.Canvas),
				Method: MethodStructural,
			}, nil
		}
		return MatchScore{
			Score:  c.scorer.Global(query.Canvas, candidate.Canvas),
			Method: MethodGlobalTemplate,
		}, nil
	}

	return MatchScore{
		Score:  c.scorer.Letterwise(c.segmenter.Segment(query.Canvas), c.segmenter.Segment(candidate.Canvas)),
		Method: MethodLetterwise,
	}, nil
}
