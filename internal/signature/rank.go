package signature

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// TopN is the number of ranked identities returned by a ranking run.
const TopN = 3

// GalleryEntry is one enrolled identity and its canonical signature.
type GalleryEntry struct {
	Identity string
	Canvas   *Canvas
}

// MatchResult is the score of one gallery identity against a query.
type MatchResult struct {
	Identity string  `json:"name"`
	Score    float64 `json:"score"`
	Method   Method  `json:"method"`
}

// Outcome holds the ranked top matches and the full sorted result set.
type Outcome struct {
	Top []MatchResult `json:"top_matches"`
	All []MatchResult `json:"all"`
}

// PairComparator scores one candidate against a query.
type PairComparator interface {
	Compare(query, candidate Prepared) (MatchScore, error)
}

// CursiveClassifier classifies canvases as cursive or discrete.
type CursiveClassifier interface {
	IsCursive(c *Canvas) bool
}

// Ranker scores every gallery entry against a query and orders the results.
type Ranker struct {
	comparator PairComparator
	classifier CursiveClassifier
	workers    int
}

// NewRanker builds a Ranker that evaluates up to workers entries at once.
func NewRanker(comparator PairComparator, classifier CursiveClassifier, workers int) *Ranker {
	if workers <= 0 {
		workers = 1
	}
	return &Ranker{comparator: comparator, classifier: classifier, workers: workers}
}

// Rank compares query with each entry and returns the top matches by score.
// Equal scores keep the order in which entries were given, regardless of which
// comparison finished first. Any failing entry fails the whole run with an
// *EntryError. An empty gallery yields an empty outcome.
func (r *Ranker) Rank(ctx context.Context, query *Canvas, entries []GalleryEntry) (*Outcome, error) {
	if query == nil || query.img == nil {
		return nil, fmt.Errorf("query: %w", ErrInvalidCanvas)
	}
	if len(entries) == 0 {
		return &Outcome{Top: []MatchResult{}, All: []MatchResult{}}, nil
	}
	q := Prepared{Canvas: query, Cursive: r.classifier.IsCursive(query)}

	results := make([]MatchResult, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, entry := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			candidate := Prepared{Canvas: entry.Canvas}
			if entry.Canvas != nil {
				candidate.Cursive = r.classifier.IsCursive(entry.Canvas)
			}
			score, err := r.comparator.Compare(q, candidate)
			if err != nil {
				return &EntryError{Identity: entry.Identity, Index: i, Err: err}
			}
			results[i] = MatchResult{Identity: entry.Identity, Score: score.Score, Method: score.Method}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	top := make([]MatchResult, min(TopN, len(results)))
	copy(top, results)
	return &Outcome{Top: top, All: results}, nil
}
