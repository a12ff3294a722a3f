package waterfall

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TickState identifies the stage the frame scheduler last entered. The
// states advance in a fixed cycle; a tick that fails partway returns to
// StateIdle with the ping-pong roles and displayed frame untouched, so the
// next tick retries from the same logical state.
type TickState int

const (
	StateIdle TickState = iota
	StateIngesting
	StateResolving
	StateScrolling
	StateCompositing
	StatePresented
)

func (s TickState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateIngesting:
		return "ingesting"
	case StateResolving:
		return "resolving"
	case StateScrolling:
		return "scrolling"
	case StateCompositing:
		return "compositing"
	case StatePresented:
		return "presented"
	default:
		return fmt.Sprintf("TickState(%d)", int(s))
	}
}

// Tick advances the pipeline by one frame. When a row arrived since the
// last tick it runs the full stage sequence: ingest the row into the
// current plane, resolve intensities to colors, scroll the plane pair,
// composite the visible window and present. Without a new row it
// re-presents: composite and present only, sampling the strip left by the
// last resolve, so the displayed history does not move on data-less ticks.
// After a presented tick the current plane is mid-shift (its top row is
// the scroll hole), so it must not be re-resolved until the next row fills
// it. The first tick resolves once even without a row, defining the strip
// before anything samples it.
//
// Errors from the backend abandon the tick and are returned; the consumed
// row is re-queued unless a newer one has already replaced it. Run treats
// such errors as transient; manual callers may do the same.
func (w *Waterfall) Tick() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	w.inMu.Lock()
	row := w.pending
	w.pending = nil
	win := w.win
	uvChanged := w.winDirty
	if uvChanged {
		w.uv = win.uv(w.cfg.Width, w.cfg.Height)
		w.winDirty = false
	}
	uv := w.uv
	w.inMu.Unlock()

	resolve := row != nil || !w.primed
	err := w.runTick(row, resolve, win, uv, uvChanged)
	if err != nil {
		Logger().Warn("waterfall: tick abandoned", "state", w.state, "error", err)
		w.eng.Abandon()
		w.state = StateIdle
		if row != nil {
			w.inMu.Lock()
			if w.pending == nil {
				w.pending = row
			}
			w.inMu.Unlock()
		}
		return err
	}
	w.primed = true
	w.state = StateIdle
	return nil
}

func (w *Waterfall) runTick(row []uint16, resolve bool, win VisibleWindow, uv QuadUV, uvChanged bool) error {
	if err := w.eng.Begin(); err != nil {
		return err
	}
	if row != nil {
		w.state = StateIngesting
		if err := w.eng.Ingest(row); err != nil {
			return err
		}
	}
	if resolve {
		w.state = StateResolving
		if err := w.eng.Resolve(); err != nil {
			return err
		}
	}
	if row != nil {
		w.state = StateScrolling
		if err := w.eng.Scroll(); err != nil {
			return err
		}
	}
	w.state = StateCompositing
	if err := w.eng.Composite(win, uv, uvChanged); err != nil {
		return err
	}
	if err := w.eng.Present(); err != nil {
		return err
	}
	w.state = StatePresented
	return nil
}

// Run ticks the pipeline at the configured interval until ctx is canceled.
// Backend errors are logged and absorbed; the loop keeps going and the
// next tick retries. Run returns nil on cancellation and ErrClosed if the
// pipeline is closed while running.
func (w *Waterfall) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Tick(); err != nil {
				if errors.Is(err, ErrClosed) {
					return err
				}
				Logger().Warn("waterfall: tick failed, will retry", "error", err)
			}
		}
	}
}
