package signature

import (
	"image"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentOrdersLettersLeftToRight(t *testing.T) {
	opts := DefaultOptions()
	img := whiteGray(opts.CanvasWidth, opts.CanvasHeight)
	drawGlyph(img, 'T', 300, 10, 0)
	drawGlyph(img, 'L', 180, 60, 0)
	drawGlyph(img, 'E', 20, 110, 0)
	drawGlyph(img, 'H', 420, 40, 0)

	letters := NewSegmenter(opts).Segment(mustCanvas(t, img))
	require.Len(t, letters, 4)

	xs := make([]int, len(letters))
	for i, l := range letters {
		xs[i] = l.X
	}
	assert.Equal(t, []int{20, 180, 300, 420}, xs)
	assert.Equal(t, image.Rect(180, 60, 220, 120), letters[1].Bounds)
	assert.Equal(t, image.Rect(0, 0, 40, 60), letters[1].Image.Bounds())
	assert.Equal(t, uint8(0), letters[1].Image.GrayAt(0, 0).Y)
}

func TestSegmentDropsNoise(t *testing.T) {
	opts := DefaultOptions()
	img := drawWord(whiteGray(opts.CanvasWidth, opts.CanvasHeight), "TL", 20, 60, 0)
	fillRect(img, image.Rect(500, 20, 503, 23), 0)   // speck
	fillRect(img, image.Rect(400, 150, 430, 156), 0) // flat stroke
	fillRect(img, image.Rect(560, 40, 564, 140), 0)  // hairline

	letters := NewSegmenter(opts).Segment(mustCanvas(t, img))
	require.Len(t, letters, 2)
	assert.Equal(t, 20, letters[0].X)
	assert.Equal(t, 80, letters[1].X)
}

func TestSegmentBlankCanvas(t *testing.T) {
	opts := DefaultOptions()
	letters := NewSegmenter(opts).Segment(mustCanvas(t, whiteGray(opts.CanvasWidth, opts.CanvasHeight)))
	assert.Empty(t, letters)
	assert.Empty(t, NewSegmenter(opts).Segment(nil))
}

func TestSegmentOrderingHoldsForRandomCanvases(t *testing.T) {
	opts := DefaultOptions()
	seg := NewSegmenter(opts)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 25; i++ {
		img := whiteGray(opts.CanvasWidth, opts.CanvasHeight)
		for j := 0; j < 12; j++ {
			x, y := rng.Intn(opts.CanvasWidth-20), rng.Intn(opts.CanvasHeight-30)
			fillRect(img, image.Rect(x, y, x+5+rng.Intn(30), y+10+rng.Intn(50)), uint8(rng.Intn(60)))
		}
		letters := seg.Segment(mustCanvas(t, img))
		for k := 1; k < len(letters); k++ {
			assert.LessOrEqual(t, letters[k-1].X, letters[k].X)
		}
		for _, l := range letters {
			assert.GreaterOrEqual(t, l.Bounds.Dx(), opts.MinLetterWidth)
			assert.GreaterOrEqual(t, l.Bounds.Dy(), opts.MinLetterHeight)
		}
	}
}

func TestClassifierCountsContours(t *testing.T) {
	opts := DefaultOptions()
	cl := NewClassifier(opts)

	wave := waveCanvas(t)
	assert.Equal(t, 1, cl.ContourCount(wave))
	assert.True(t, cl.IsCursive(wave))

	printed := wordCanvas(t, "TLEHF", 20, 60)
	assert.Equal(t, 5, cl.ContourCount(printed))
	assert.False(t, cl.IsCursive(printed))

	assert.True(t, cl.IsCursive(wordCanvas(t, "TLE", 20, 60)), "three contours is still cursive")
}

func TestClassifierThresholdIsConfigurable(t *testing.T) {
	opts := DefaultOptions()
	opts.CursiveContourThreshold = 5
	assert.True(t, NewClassifier(opts).IsCursive(wordCanvas(t, "TLEHF", 20, 60)))

	opts.CursiveContourThreshold = 0
	assert.False(t, NewClassifier(opts).IsCursive(waveCanvas(t)))
}
