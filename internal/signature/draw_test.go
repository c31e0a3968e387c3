package signature

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	glyphW      = 40
	glyphH      = 60
	glyphStroke = 6
	glyphGap    = 20
)

func whiteGray(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	fillGray(img, Background)
	return img
}

func fillRect(img *image.Gray, r image.Rectangle, v uint8) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
}

// drawLine stamps a square pen of side s along the segment.
func drawLine(img *image.Gray, x0, y0, x1, y1, s int, v uint8) {
	steps := 2 * max(abs(x1-x0), abs(y1-y0))
	if steps == 0 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int(math.Round(float64(x0) + t*float64(x1-x0)))
		y := int(math.Round(float64(y0) + t*float64(y1-y0)))
		fillRect(img, image.Rect(x-s/2, y-s/2, x-s/2+s, y-s/2+s), v)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// drawGlyph draws a block letter into the glyphW x glyphH box at (x, y).
func drawGlyph(img *image.Gray, g rune, x, y int, v uint8) {
	s := glyphStroke
	top := image.Rect(x, y, x+glyphW, y+s)
	bottom := image.Rect(x, y+glyphH-s, x+glyphW, y+glyphH)
	middle := image.Rect(x, y+glyphH/2-s/2, x+glyphW, y+glyphH/2-s/2+s)
	left := image.Rect(x, y, x+s, y+glyphH)
	right := image.Rect(x+glyphW-s, y, x+glyphW, y+glyphH)
	stem := image.Rect(x+glyphW/2-s/2, y, x+glyphW/2-s/2+s, y+glyphH)

	switch g {
	case 'T':
		fillRect(img, top, v)
		fillRect(img, stem, v)
	case 'L':
		fillRect(img, left, v)
		fillRect(img, bottom, v)
	case 'E':
		fillRect(img, left, v)
		fillRect(img, top, v)
		fillRect(img, middle, v)
		fillRect(img, bottom, v)
	case 'F':
		fillRect(img, left, v)
		fillRect(img, top, v)
		fillRect(img, middle, v)
	case 'H':
		fillRect(img, left, v)
		fillRect(img, right, v)
		fillRect(img, middle, v)
	case 'O':
		fillRect(img, left, v)
		fillRect(img, right, v)
		fillRect(img, top, v)
		fillRect(img, bottom, v)
	case 'X':
		drawLine(img, x, y, x+glyphW, y+glyphH, s, v)
		drawLine(img, x+glyphW, y, x, y+glyphH, s, v)
	case 'V':
		drawLine(img, x, y, x+glyphW/2, y+glyphH, s, v)
		drawLine(img, x+glyphW, y, x+glyphW/2, y+glyphH, s, v)
	case '^':
		drawLine(img, x, y+glyphH, x+glyphW/2, y, s, v)
		drawLine(img, x+glyphW/2, y, x+glyphW, y+glyphH, s, v)
	case '/':
		drawLine(img, x, y+glyphH, x+glyphW, y, s, v)
	case '\\':
		drawLine(img, x, y, x+glyphW, y+glyphH, s, v)
	}
}

// drawWord draws glyphs left to right starting at (x, y) and returns the image.
func drawWord(img *image.Gray, word string, x, y int, v uint8) *image.Gray {
	for i, g := range []rune(word) {
		drawGlyph(img, g, x+i*(glyphW+glyphGap), y, v)
	}
	return img
}

// rawWord renders word with a margin on a white image sized to fit it.
func rawWord(word string, margin int, v uint8) *image.Gray {
	n := len([]rune(word))
	w := n*glyphW + (n-1)*glyphGap + 2*margin
	h := glyphH + 2*margin
	return drawWord(whiteGray(w, h), word, margin, margin, v)
}

// drawWave draws one continuous sinusoidal stroke across the image.
func drawWave(img *image.Gray, v uint8) *image.Gray {
	b := img.Bounds()
	mid := b.Dy() / 2
	amp := float64(b.Dy()) / 4
	prevX, prevY := 20, mid
	for x := 21; x < b.Dx()-20; x++ {
		y := mid + int(math.Round(amp*math.Sin(float64(x)/30)))
		drawLine(img, prevX, prevY, x, y, glyphStroke, v)
		prevX, prevY = x, y
	}
	return img
}

func mustCanvas(t *testing.T, img *image.Gray) *Canvas {
	t.Helper()
	c, err := NewCanvas(img, img.Bounds().Dx(), img.Bounds().Dy())
	require.NoError(t, err)
	return c
}

// wordCanvas draws word at (x, y) on a blank default-sized canvas.
func wordCanvas(t *testing.T, word string, x, y int) *Canvas {
	t.Helper()
	opts := DefaultOptions()
	return mustCanvas(t, drawWord(whiteGray(opts.CanvasWidth, opts.CanvasHeight), word, x, y, 0))
}

func waveCanvas(t *testing.T) *Canvas {
	t.Helper()
	opts := DefaultOptions()
	return mustCanvas(t, drawWave(whiteGray(opts.CanvasWidth, opts.CanvasHeight), 0))
}
