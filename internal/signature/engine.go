// Package signature implements the signature matching pipeline: normalization
// to a canonical canvas, letter segmentation, cursive classification, the
// similarity strategies and the gallery ranking built on them.
//
// Every component is stateless and safe for concurrent use; canvases are
// immutable once built.
package signature

import (
	"context"
	"image"
)

// Engine wires the pipeline components from a single Options value.
type Engine struct {
	opts       Options
	normalizer *Normalizer
	gate       *QualityGate
	classifier *Classifier
	segmenter  *Segmenter
	scorer     *ImageScorer
	comparator *Comparator
	ranker     *Ranker
}

// NewEngine validates opts and assembles an Engine.
func NewEngine(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	scorer := NewImageScorer(opts)
	classifier := NewClassifier(opts)
	comparator := NewComparator(opts, scorer)
	return &Engine{
		opts:       opts,
		normalizer: NewNormalizer(opts),
		gate:       NewQualityGate(opts),
		classifier: classifier,
		segmenter:  NewSegmenter(opts),
		scorer:     scorer,
		comparator: comparator,
		ranker:     NewRanker(comparator, classifier, opts.Workers),
	}, nil
}

// Options returns the configuration the engine was built with.
func (e *Engine) Options() Options { return e.opts }

// Normalize converts raw into a canonical canvas.
func (e *Engine) Normalize(raw *image.Gray) (*Canvas, error) {
	return e.normalizer.Normalize(raw)
}

// Prepare normalizes raw and applies the quality gate.
func (e *Engine) Prepare(raw *image.Gray) (*Canvas, error) {
	c, err := e.normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}
	if err := e.gate.Check(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Identify normalizes raw, checks its quality and ranks entries against it.
func (e *Engine) Identify(ctx context.Context, raw *image.Gray, entries []GalleryEntry) (*Outcome, error) {
	query, err := e.Prepare(raw)
	if err != nil {
		return nil, err
	}
	return e.ranker.Rank(ctx, query, entries)
}

// Rank ranks entries against an already prepared query canvas.
func (e *Engine) Rank(ctx context.Context, query *Canvas, entries []GalleryEntry) (*Outcome, error) {
	return e.ranker.Rank(ctx, query, entries)
}

// IsCursive classifies c with the configured contour threshold.
func (e *Engine) IsCursive(c *Canvas) bool { return e.classifier.IsCursive(c) }

// Segment splits c into letters.
func (e *Engine) Segment(c *Canvas) []Letter { return e.segmenter.Segment(c) }

// Scorer exposes the similarity strategies.
func (e *Engine) Scorer() Scorer { return e.scorer }

// Compare scores candidate against query with the hybrid routing policy.
func (e *Engine) Compare(query, candidate *Canvas) (MatchScore, error) {
	return e.comparator.Compare(
		Prepared{Canvas: query, Cursive: e.classifier.IsCursive(query)},
		Prepared{Canvas: candidate, Cursive: e.classifier.IsCursive(candidate)},
	)
}

// CheckQuality applies the quality gate to c.
func (e *Engine) CheckQuality(c *Canvas) error { return e.gate.Check(c) }
