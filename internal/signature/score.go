package signature

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Scorer maps a pair of canvases or letter lists to a similarity in [0,100].
type Scorer interface {
	// Global correlates the two canvases as whole templates.
	Global(a, b *Canvas) float64
	// Structural compares local luminance, contrast and structure.
	Structural(a, b *Canvas) float64
	// Letterwise correlates letters pairwise by position.
	Letterwise(a, b []Letter) float64
}

// ImageScorer implements Scorer with normalized cross-correlation and SSIM.
type ImageScorer struct {
	compareW, compareH int
	letterW, letterH   int
	window             int
}

var _ Scorer = (*ImageScorer)(nil)

// NewImageScorer builds an ImageScorer from the comparison sizes in opts.
func NewImageScorer(opts Options) *ImageScorer {
	return &ImageScorer{
		compareW: opts.CompareWidth,
		compareH: opts.CompareHeight,
		letterW:  opts.LetterWidth,
		letterH:  opts.LetterHeight,
		window:   opts.SSIMWindow,
	}
}

// Global resizes both canvases to the comparison size and returns their
// normalized correlation coefficient as a percentage.
func (s *ImageScorer) Global(a, b *Canvas) float64 {
	if a == nil || b == nil {
		return 0
	}
	x := grayFloats(resizeGray(a.img, s.compareW, s.compareH, compareScaler))
	y := grayFloats(resizeGray(b.img, s.compareW, s.compareH, compareScaler))
	return percent(ncc(x, y))
}

// Structural resizes both canvases to the comparison size and returns their
// mean structural similarity index as a percentage.
func (s *ImageScorer) Structural(a, b *Canvas) float64 {
	if a == nil || b == nil {
		return 0
	}
	x := grayFloats(resizeGray(a.img, s.compareW, s.compareH, compareScaler))
	y := grayFloats(resizeGray(b.img, s.compareW, s.compareH, compareScaler))
	return percent(meanSSIM(x, y, s.compareW, s.compareH, s.window))
}

// Letterwise pairs letters by index, correlates each pair at the letter size
// and averages. Letters past the shorter list are ignored; an empty list
// scores 0.
func (s *ImageScorer) Letterwise(a, b []Letter) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := min(len(a), len(b))
	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		x := grayFloats(resizeGray(a[i].Image, s.letterW, s.letterH, compareScaler))
		y := grayFloats(resizeGray(b[i].Image, s.letterW, s.letterH, compareScaler))
		scores[i] = ncc(x, y)
	}
	return percent(stat.Mean(scores, nil))
}

// ncc is the correlation of two equally sized patches, the single value of a
// normalized coefficient template match. Flat patches correlate as 0.
func ncc(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	if stat.Variance(x, nil) < 1e-9 || stat.Variance(y, nil) < 1e-9 {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// SSIM stabilizing constants for an 8-bit dynamic range.
const (
	ssimC1 = (0.01 * 255) * (0.01 * 255)
	ssimC2 = (0.03 * 255) * (0.03 * 255)
)

// meanSSIM averages the structural similarity of every k x k window lying
// fully inside the w x h images. Window moments come from summed-area tables
// and use the sample covariance.
func meanSSIM(x, y []float64, w, h, k int) float64 {
	if k > w || k > h || k < 2 {
		return 0
	}
	xy := make([]float64, len(x))
	xx := make([]float64, len(x))
	yy := make([]float64, len(y))
	for i := range x {
		xy[i] = x[i] * y[i]
		xx[i] = x[i] * x[i]
		yy[i] = y[i] * y[i]
	}
	ix, iy := integral(x, w, h), integral(y, w, h)
	ixx, iyy, ixy := integral(xx, w, h), integral(yy, w, h), integral(xy, w, h)

	n := float64(k * k)
	unbias := n / (n - 1)
	values := make([]float64, 0, (w-k+1)*(h-k+1))
	for y0 := 0; y0+k <= h; y0++ {
		for x0 := 0; x0+k <= w; x0++ {
			ux := windowSum(ix, w, x0, y0, k) / n
			uy := windowSum(iy, w, x0, y0, k) / n
			vx := (windowSum(ixx, w, x0, y0, k)/n - ux*ux) * unbias
			vy := (windowSum(iyy, w, x0, y0, k)/n - uy*uy) * unbias
			cov := (windowSum(ixy, w, x0, y0, k)/n - ux*uy) * unbias

			num := (2*ux*uy + ssimC1) * (2*cov + ssimC2)
			den := (ux*ux + uy*uy + ssimC1) * (vx + vy + ssimC2)
			values = append(values, num/den)
		}
	}
	return stat.Mean(values, nil)
}

// integral builds a (w+1) x (h+1) summed-area table with a zero first row and
// column.
func integral(v []float64, w, h int) []float64 {
	stride := w + 1
	out := make([]float64, stride*(h+1))
	for y := 0; y < h; y++ {
		var row float64
		for x := 0; x < w; x++ {
			row += v[y*w+x]
			out[(y+1)*stride+x+1] = out[y*stride+x+1] + row
		}
	}
	return out
}

func windowSum(table []float64, w, x0, y0, k int) float64 {
	stride := w + 1
	x1, y1 := x0+k, y0+k
	return table[y1*stride+x1] - table[y0*stride+x1] - table[y1*stride+x0] + table[y0*stride+x0]
}

// percent converts a similarity in [-1,1] to a score in [0,100] with two
// decimals.
func percent(r float64) float64 {
	if math.IsNaN(r) {
		return 0
	}
	v := math.Max(0, math.Min(100, r*100))
	return math.Round(v*100) / 100
}
