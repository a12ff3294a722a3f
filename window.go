package waterfall

import "fmt"

// VisibleWindow selects the sub-rectangle of the history strip that the
// viewport shows: an inclusive frequency-bin range and a count of the most
// recent rows. The window is stored in strip coordinates and converted to
// quad texture coordinates only when it changes.
type VisibleWindow struct {
	StartBin int // first visible frequency bin
	EndBin   int // last visible frequency bin, inclusive
	Rows     int // visible row count, newest rows first
}

// fullWindow shows the entire strip.
func fullWindow(width, height int) VisibleWindow {
	return VisibleWindow{StartBin: 0, EndBin: width - 1, Rows: height}
}

func (w VisibleWindow) validate(width, height int) error {
	if w.StartBin < 0 || w.EndBin >= width || w.StartBin > w.EndBin {
		return fmt.Errorf("%w: bins [%d, %d] outside strip width %d",
			ErrInvalidWindow, w.StartBin, w.EndBin, width)
	}
	if w.Rows <= 0 || w.Rows > height {
		return fmt.Errorf("%w: %d rows outside strip height %d",
			ErrInvalidWindow, w.Rows, height)
	}
	return nil
}

// bins returns the number of visible frequency bins.
func (w VisibleWindow) bins() int { return w.EndBin - w.StartBin + 1 }

// QuadUV holds normalized texture coordinates for the composited quad.
// U0/V0 is the top-left corner (newest row, lowest visible bin), U1/V1
// the bottom-right.
type QuadUV struct {
	U0, V0, U1, V1 float32
}

// uv converts the window to texture coordinates over a width x height
// strip. The bin range is inclusive, so the right edge sits one texel past
// EndBin; the newest row is always at V=0.
func (w VisibleWindow) uv(width, height int) QuadUV {
	return QuadUV{
		U0: float32(w.StartBin) / float32(width),
		V0: 0,
		U1: float32(w.EndBin+1) / float32(width),
		V1: float32(w.Rows) / float32(height),
	}
}
