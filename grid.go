package waterfall

import "fmt"

// intensityGrid holds the CPU history strip: two width x height planes of
// 16-bit samples used as a ping-pong pair. One plane is current (written
// and resolved this tick) while the other receives the scrolled copy; the
// roles swap after each presented tick. The GPU pipeline keeps the same
// pair as storage buffers and scrolls with a single buffer-to-buffer copy.
type intensityGrid struct {
	width  int
	height int
	planes [2][]uint16
	cur    int
}

func newIntensityGrid(width, height int) *intensityGrid {
	g := &intensityGrid{width: width, height: height}
	g.planes[0] = make([]uint16, width*height)
	g.planes[1] = make([]uint16, width*height)
	return g
}

// writeRow places samples into row 0 of the current plane. Rows narrower
// than the strip are zero-padded on the right; wider rows are rejected
// without touching the plane.
func (g *intensityGrid) writeRow(samples []uint16) error {
	if len(samples) > g.width {
		return fmt.Errorf("%w: %d samples, %d bins", ErrRowTooWide, len(samples), g.width)
	}
	row := g.planes[g.cur][:g.width]
	n := copy(row, samples)
	for i := n; i < g.width; i++ {
		row[i] = 0
	}
	return nil
}

// scroll copies rows [0, height-2] of the current plane into rows
// [1, height-1] of the other plane as one contiguous block. Row 0 of the
// other plane keeps stale data; the next writeRow after swap overwrites it.
func (g *intensityGrid) scroll() {
	src := g.planes[g.cur]
	dst := g.planes[1-g.cur]
	copy(dst[g.width:], src[:(g.height-1)*g.width])
}

// swap flips the current/other roles. Called only after a presented tick.
func (g *intensityGrid) swap() { g.cur = 1 - g.cur }

// current returns the plane holding this tick's history, row-major, newest
// row first.
func (g *intensityGrid) current() []uint16 { return g.planes[g.cur] }

// at returns the sample at bin x of row y in the current plane.
func (g *intensityGrid) at(x, y int) uint16 {
	return g.planes[g.cur][y*g.width+x]
}
