package waterfall

import (
	"image"

	"golang.org/x/image/draw"
)

// tickEngine is one rendering backend driven by the frame scheduler. The
// methods mirror the tick stages; on the GPU each stage encodes into one
// command stream that Present submits, while the CPU engine executes each
// stage directly. Present swaps the ping-pong roles only when Scroll ran
// during the tick, and Abandon discards a partially built tick without
// disturbing buffer roles or the displayed frame. After a swap the current
// plane is mid-shift (its top row is the scroll hole), so the scheduler
// calls Resolve only on ticks that ingest a row; repaint ticks composite
// the strip left by the last resolve.
type tickEngine interface {
	Begin() error
	Ingest(samples []uint16) error
	Resolve() error
	Scroll() error
	Composite(win VisibleWindow, uv QuadUV, uvChanged bool) error
	Present() error
	Abandon()
	Frame() *Pixmap
	Close()
}

// cpuEngine is the reference backend. It renders the exact stage sequence
// of the GPU pipeline in plain Go: resolve the current intensity plane
// through the gradient table into a color strip, scroll the plane pair,
// and composite the visible window onto the viewport with nearest-neighbor
// sampling.
type cpuEngine struct {
	grid     *intensityGrid
	gradient *GradientTable
	strip    *Pixmap // resolved W x H colors
	frame    *Pixmap // composited viewport
	scrolled bool
}

func newCPUEngine(width, height, viewW, viewH int, gradient *GradientTable) *cpuEngine {
	return &cpuEngine{
		grid:     newIntensityGrid(width, height),
		gradient: gradient,
		strip:    NewPixmap(width, height),
		frame:    NewPixmap(viewW, viewH),
	}
}

func (e *cpuEngine) Begin() error {
	e.scrolled = false
	return nil
}

func (e *cpuEngine) Ingest(samples []uint16) error {
	return e.grid.writeRow(samples)
}

func (e *cpuEngine) Resolve() error {
	cur := e.grid.current()
	data := e.strip.Data()
	for i, v := range cur {
		c := e.gradient.Lookup(v)
		data[i*4+0] = c.R
		data[i*4+1] = c.G
		data[i*4+2] = c.B
		data[i*4+3] = c.A
	}
	return nil
}

func (e *cpuEngine) Scroll() error {
	e.grid.scroll()
	e.scrolled = true
	return nil
}

func (e *cpuEngine) Composite(win VisibleWindow, _ QuadUV, _ bool) error {
	src := image.Rect(win.StartBin, 0, win.EndBin+1, win.Rows)
	dst := e.frame.rgba()
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), e.strip.rgba(), src, draw.Src, nil)
	return nil
}

func (e *cpuEngine) Present() error {
	if e.scrolled {
		e.grid.swap()
	}
	return nil
}

func (e *cpuEngine) Abandon() {
	e.scrolled = false
}

func (e *cpuEngine) Frame() *Pixmap { return e.frame }

func (e *cpuEngine) Close() {}
