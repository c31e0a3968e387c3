package signature

// closeRect applies a morphological closing (dilate then erode) with a
// kw x kh rectangular structuring element anchored at its center. Samples
// outside the image are ignored. Gaps narrower than the element are bridged,
// which keeps thin or broken strokes from splitting into separate components.
func closeRect(m *mask, kw, kh int) *mask {
	if kw <= 1 && kh <= 1 {
		out := newMask(m.w, m.h)
		copy(out.pix, m.pix)
		return out
	}
	dilated := rectFilter(m, kw, kh, false)
	return rectFilter(dilated, kw, kh, true)
}

// rectFilter runs a separable rectangular max (dilate) or min (erode) filter.
func rectFilter(m *mask, kw, kh int, erode bool) *mask {
	rows := newMask(m.w, m.h)
	for y := 0; y < m.h; y++ {
		line := m.pix[y*m.w : (y+1)*m.w]
		slideWindow(line, rows.pix[y*m.w:(y+1)*m.w], kw, erode)
	}

	out := newMask(m.w, m.h)
	col := make([]bool, m.h)
	res := make([]bool, m.h)
	for x := 0; x < m.w; x++ {
		for y := 0; y < m.h; y++ {
			col[y] = rows.pix[y*m.w+x]
		}
		slideWindow(col, res, kh, erode)
		for y := 0; y < m.h; y++ {
			out.pix[y*m.w+x] = res[y]
		}
	}
	return out
}

// slideWindow writes into dst, for each position i, whether any (dilate) or
// every (erode) in-bounds sample of src[i-k/2 : i-k/2+k] is set.
func slideWindow(src, dst []bool, k int, erode bool) {
	n := len(src)
	anchor := k / 2
	set := 0
	lo, hi := 0, 0 // current window is src[lo:hi]
	for i := 0; i < n; i++ {
		wantLo := max(i-anchor, 0)
		wantHi := min(i-anchor+k, n)
		for hi < wantHi {
			if src[hi] {
				set++
			}
			hi++
		}
		for lo < wantLo {
			if src[lo] {
				set--
			}
			lo++
		}
		if erode {
			dst[i] = set == hi-lo
		} else {
			dst[i] = set > 0
		}
	}
}
