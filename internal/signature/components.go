package signature

import "image"

// component is one 8-connected region of ink.
type component struct {
	Bounds image.Rectangle
	Pixels int
}

var (
	conn8 = [8][2]int{{0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}}
	conn4 = [4][2]int{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}
)

// externalComponents returns the ink regions that are not enclosed by another
// region: those touching the image border or the background connected to it.
// This mirrors the outer contours of the ink. Ink uses 8-connectivity and
// background 4-connectivity. Components are returned in raster order of their
// first pixel.
func externalComponents(m *mask) []component {
	if m.w == 0 || m.h == 0 {
		return nil
	}
	outside := outerBackground(m)

	labels := make([]int32, m.w*m.h)
	var comps []component
	var next int32
	queue := make([]int, 0, 64)
	for i0, ink := range m.pix {
		if !ink || labels[i0] != 0 {
			continue
		}
		next++
		label := next
		labels[i0] = label
		queue = append(queue[:0], i0)

		x0, y0 := i0%m.w, i0/m.w
		bounds := image.Rect(x0, y0, x0+1, y0+1)
		pixels := 0
		external := false
		for qi := 0; qi < len(queue); qi++ {
			u := queue[qi]
			ux, uy := u%m.w, u/m.w
			pixels++
			bounds = bounds.Union(image.Rect(ux, uy, ux+1, uy+1))
			if !external {
				external = touchesOutside(m, outside, ux, uy)
			}
			for _, d := range conn8 {
				vx, vy := ux+d[0], uy+d[1]
				if vx < 0 || vy < 0 || vx >= m.w || vy >= m.h {
					continue
				}
				v := vy*m.w + vx
				if m.pix[v] && labels[v] == 0 {
					labels[v] = label
					queue = append(queue, v)
				}
			}
		}
		if external {
			comps = append(comps, component{Bounds: bounds, Pixels: pixels})
		}
	}
	return comps
}

func touchesOutside(m *mask, outside []bool, x, y int) bool {
	if x == 0 || y == 0 || x == m.w-1 || y == m.h-1 {
		return true
	}
	for _, d := range conn4 {
		if outside[(y+d[1])*m.w+x+d[0]] {
			return true
		}
	}
	return false
}

// outerBackground flood-fills the background reachable from the image border.
func outerBackground(m *mask) []bool {
	seen := make([]bool, m.w*m.h)
	queue := make([]int, 0, 2*(m.w+m.h))
	push := func(i int) {
		if !m.pix[i] && !seen[i] {
			seen[i] = true
			queue = append(queue, i)
		}
	}
	for x := 0; x < m.w; x++ {
		push(x)
		push((m.h-1)*m.w + x)
	}
	for y := 0; y < m.h; y++ {
		push(y * m.w)
		push(y*m.w + m.w - 1)
	}
	for qi := 0; qi < len(queue); qi++ {
		u := queue[qi]
		ux, uy := u%m.w, u/m.w
		for _, d := range conn4 {
			vx, vy := ux+d[0], uy+d[1]
			if vx < 0 || vy < 0 || vx >= m.w || vy >= m.h {
				continue
			}
			push(vy*m.w + vx)
		}
	}
	return seen
}

// unionBounds returns the smallest rectangle covering every component.
func unionBounds(comps []component) image.Rectangle {
	var r image.Rectangle
	for i, c := range comps {
		if i == 0 {
			r = c.Bounds
			continue
		}
		r = r.Union(c.Bounds)
	}
	return r
}
