package waterfall

import "testing"

func twoToneGradient(t *testing.T) *GradientTable {
	t.Helper()
	// Two entries: blue for the low half of the sample range, red for
	// the high half.
	g, err := NewGradientTable([]RGBA8{
		{0, 0, 255, 255},
		{255, 0, 0, 255},
	})
	if err != nil {
		t.Fatalf("NewGradientTable: %v", err)
	}
	return g
}

// runFullTick drives one complete stage sequence the way the scheduler
// does for a tick that carries a row.
func runFullTick(t *testing.T, e tickEngine, row []uint16, win VisibleWindow) {
	t.Helper()
	if err := e.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := e.Ingest(row); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := e.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := e.Scroll(); err != nil {
		t.Fatalf("Scroll: %v", err)
	}
	if err := e.Composite(win, win.uv(4, 4), true); err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if err := e.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
}

func TestCPUEngineResolveBanding(t *testing.T) {
	g := twoToneGradient(t)
	e := newCPUEngine(4, 4, 4, 4, g)

	runFullTick(t, e, []uint16{0, 32767, 32768, 65535}, fullWindow(4, 4))

	low := RGBA8{0, 0, 255, 255}
	high := RGBA8{255, 0, 0, 255}
	want := []RGBA8{low, low, high, high}
	for x, w := range want {
		if got := e.Frame().At(x, 0); got != w {
			t.Errorf("frame top row bin %d = %v, want %v", x, got, w)
		}
	}
}

func TestCPUEngineScrollOrdering(t *testing.T) {
	g := twoToneGradient(t)
	e := newCPUEngine(1, 4, 1, 4, g)

	low := RGBA8{0, 0, 255, 255}
	high := RGBA8{255, 0, 0, 255}
	win := fullWindow(1, 4)

	// Alternate high/low rows; after each tick the newest row must be at
	// the top and older rows below in push order.
	rows := [][]uint16{{65535}, {0}, {65535}}
	for _, row := range rows {
		runFullTick(t, e, row, win)
	}

	want := []RGBA8{high, low, high, low} // row 3 is still empty history
	for y, w := range want {
		if got := e.Frame().At(0, y); got != w {
			t.Errorf("frame row %d = %v, want %v", y, got, w)
		}
	}
}

func TestCPUEngineCompositeWindow(t *testing.T) {
	g := twoToneGradient(t)
	e := newCPUEngine(8, 4, 4, 2, g)

	// One hot bin at index 3; the rest stay cold.
	row := make([]uint16, 8)
	row[3] = 65535
	win := VisibleWindow{StartBin: 2, EndBin: 5, Rows: 2}
	runFullTick(t, e, row, win)

	low := RGBA8{0, 0, 255, 255}
	high := RGBA8{255, 0, 0, 255}

	// Viewport is 4x2 over 4 visible bins and 2 visible rows, so the map
	// is one-to-one: frame x maps to bin StartBin+x.
	want := []RGBA8{low, high, low, low}
	for x, w := range want {
		if got := e.Frame().At(x, 0); got != w {
			t.Errorf("frame top row x=%d = %v, want %v", x, got, w)
		}
	}
	// Second viewport row shows strip row 1, still empty history.
	for x := 0; x < 4; x++ {
		if got := e.Frame().At(x, 1); got != low {
			t.Errorf("frame bottom row x=%d = %v, want %v", x, got, low)
		}
	}
}

func TestCPUEngineRepaintDoesNotScroll(t *testing.T) {
	g := twoToneGradient(t)
	e := newCPUEngine(1, 3, 1, 3, g)
	win := fullWindow(1, 3)
	runFullTick(t, e, []uint16{65535}, win)
	before := e.Frame().Clone()

	// Repaint path: no ingest, no resolve, no scroll. The plane left
	// current by the swap is mid-shift, so only the strip from the last
	// resolve may reach the frame.
	if err := e.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := e.Composite(win, win.uv(1, 3), false); err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if err := e.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}

	for y := 0; y < 3; y++ {
		if got, w := e.Frame().At(0, y), before.At(0, y); got != w {
			t.Errorf("repaint changed row %d: %v, want %v", y, got, w)
		}
	}
}

func TestCPUEngineAbandonKeepsRoles(t *testing.T) {
	g := twoToneGradient(t)
	e := newCPUEngine(1, 2, 1, 2, g)
	win := fullWindow(1, 2)
	runFullTick(t, e, []uint16{65535}, win)

	// A tick abandoned after Scroll must not swap on a later Present.
	if err := e.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := e.Ingest([]uint16{0}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := e.Scroll(); err != nil {
		t.Fatalf("Scroll: %v", err)
	}
	e.Abandon()

	// The retried tick re-ingests and completes; history ordering must
	// match a single successful push of the same row.
	runFullTick(t, e, []uint16{0}, win)
	low := RGBA8{0, 0, 255, 255}
	high := RGBA8{255, 0, 0, 255}
	if got := e.Frame().At(0, 0); got != low {
		t.Errorf("top row = %v, want %v", got, low)
	}
	if got := e.Frame().At(0, 1); got != high {
		t.Errorf("second row = %v, want %v", got, high)
	}
}
