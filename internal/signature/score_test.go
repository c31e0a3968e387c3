package signature

import (
	"image"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalIdenticalCanvasesScoreFull(t *testing.T) {
	s := NewImageScorer(DefaultOptions())
	c := wordCanvas(t, "TLEHF", 20, 60)
	assert.Equal(t, 100.0, s.Global(c, c))
}

func TestGlobalIgnoresInkIntensity(t *testing.T) {
	opts := DefaultOptions()
	s := NewImageScorer(opts)
	dark := wordCanvas(t, "TLEHF", 20, 60)
	faded := mustCanvas(t, drawWord(whiteGray(opts.CanvasWidth, opts.CanvasHeight), "TLEHF", 20, 60, 100))

	assert.InDelta(t, 100.0, s.Global(dark, faded), 0.5)
}

func TestGlobalBlankCanvasScoresZero(t *testing.T) {
	opts := DefaultOptions()
	s := NewImageScorer(opts)
	blank := mustCanvas(t, whiteGray(opts.CanvasWidth, opts.CanvasHeight))

	assert.Zero(t, s.Global(wordCanvas(t, "TLE", 20, 60), blank))
	assert.Zero(t, s.Global(blank, blank))
	assert.Zero(t, s.Global(nil, blank))
}

func TestStructuralIdenticalCanvasesScoreFull(t *testing.T) {
	s := NewImageScorer(DefaultOptions())
	c := waveCanvas(t)
	assert.Equal(t, 100.0, s.Structural(c, c))
	assert.Zero(t, s.Structural(c, nil))
}

func TestStructuralPrefersSameShape(t *testing.T) {
	s := NewImageScorer(DefaultOptions())
	word := wordCanvas(t, "TLEHF", 20, 60)
	shifted := wordCanvas(t, "TLEHF", 22, 60)
	other := wordCanvas(t, "XV/\\^", 20, 60)

	assert.Greater(t, s.Structural(word, shifted), s.Structural(word, other))
}

func TestLetterwiseEmptyListScoresZero(t *testing.T) {
	opts := DefaultOptions()
	s := NewImageScorer(opts)
	letters := NewSegmenter(opts).Segment(wordCanvas(t, "TLE", 20, 60))
	require.Len(t, letters, 3)

	assert.Zero(t, s.Letterwise(nil, letters))
	assert.Zero(t, s.Letterwise(letters, []Letter{}))
}

func TestLetterwiseIgnoresExtraLetters(t *testing.T) {
	opts := DefaultOptions()
	s := NewImageScorer(opts)
	seg := NewSegmenter(opts)
	short := seg.Segment(wordCanvas(t, "TLE", 20, 60))
	long := seg.Segment(wordCanvas(t, "TLEHF", 100, 40))
	require.Len(t, long, 5)

	assert.Equal(t, 100.0, s.Letterwise(short, long))
	assert.Equal(t, 100.0, s.Letterwise(long, short))
}

func TestLetterwisePairsByPosition(t *testing.T) {
	opts := DefaultOptions()
	s := NewImageScorer(opts)
	seg := NewSegmenter(opts)
	a := seg.Segment(wordCanvas(t, "TLE", 20, 60))
	b := seg.Segment(wordCanvas(t, "ELT", 20, 60))

	assert.Less(t, s.Letterwise(a, b), s.Letterwise(a, a))
}

func randomCanvas(t *testing.T, rng *rand.Rand, opts Options) *Canvas {
	t.Helper()
	img := whiteGray(opts.CanvasWidth, opts.CanvasHeight)
	for i := 0; i < 10; i++ {
		x, y := rng.Intn(opts.CanvasWidth-40), rng.Intn(opts.CanvasHeight-40)
		fillRect(img, image.Rect(x, y, x+6+rng.Intn(34), y+20+rng.Intn(20)), uint8(rng.Intn(256)))
	}
	return mustCanvas(t, img)
}

func TestScoresStayWithinBounds(t *testing.T) {
	opts := DefaultOptions()
	s := NewImageScorer(opts)
	seg := NewSegmenter(opts)
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 10; i++ {
		a, b := randomCanvas(t, rng, opts), randomCanvas(t, rng, opts)
		for name, v := range map[string]float64{
			"global":     s.Global(a, b),
			"structural": s.Structural(a, b),
			"letterwise": s.Letterwise(seg.Segment(a), seg.Segment(b)),
		} {
			assert.GreaterOrEqual(t, v, 0.0, name)
			assert.LessOrEqual(t, v, 100.0, name)
			assert.Equal(t, math.Round(v*100)/100, v, name)
		}
	}
}

func TestPercentClampsAndRounds(t *testing.T) {
	assert.Equal(t, 0.0, percent(-0.4))
	assert.Equal(t, 100.0, percent(1.0000001))
	assert.Equal(t, 12.35, percent(0.123456))
	assert.Equal(t, 0.0, percent(math.NaN()))
}

func TestNCCFlatPatchIsZero(t *testing.T) {
	flat := []float64{3, 3, 3, 3}
	assert.Zero(t, ncc(flat, []float64{1, 2, 3, 4}))
	assert.Zero(t, ncc([]float64{1}, []float64{1}))
	assert.InDelta(t, -1.0, ncc([]float64{1, 2, 3}, []float64{3, 2, 1}), 1e-12)
}
