package signature

import "image"

// mask is a binary image in row-major order; true marks ink.
type mask struct {
	w, h int
	pix  []bool
}

func newMask(w, h int) *mask {
	return &mask{w: w, h: h, pix: make([]bool, w*h)}
}

func (m *mask) at(x, y int) bool { return m.pix[y*m.w+x] }

func (m *mask) count() int {
	n := 0
	for _, v := range m.pix {
		if v {
			n++
		}
	}
	return n
}

func grayHistogram(img *image.Gray) [256]uint {
	var hist [256]uint
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y) : img.PixOffset(b.Min.X, y)+b.Dx()]
		for _, v := range row {
			hist[v]++
		}
	}
	return hist
}

// https://en.wikipedia.org/wiki/Otsu%27s_method
//
// The returned level t splits the histogram into 0..t and t+1..255; the first
// level reaching the maximum between-class variance wins. A histogram with a
// single populated level returns 0.
func otsuThreshold(hist [256]uint) uint8 {
	var total, sumAll float64
	for i, hv := range hist {
		total += float64(hv)
		sumAll += float64(i) * float64(hv)
	}
	if total == 0 {
		return 0
	}

	var wB, sumB, best float64
	threshold := 0
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sumAll - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = t
		}
	}
	return uint8(threshold)
}

// binarizeInv thresholds img with Otsu's level, marking pixels at or below the
// level as ink.
func binarizeInv(img *image.Gray) *mask {
	t := otsuThreshold(grayHistogram(img))
	b := img.Bounds()
	m := newMask(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < b.Dx(); x++ {
			m.pix[y*m.w+x] = img.Pix[off+x] <= t
		}
	}
	return m
}
