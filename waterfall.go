package waterfall

import (
	"fmt"
	"sync"
)

// Waterfall is a scrolling spectrogram pipeline. Producers feed intensity
// rows with PushRow from any goroutine; a single driver advances frames
// with Tick or Run. The latest un-ticked row wins: pushing faster than the
// tick cadence drops older rows rather than queueing them.
type Waterfall struct {
	// mu guards the engine and the tick/close lifecycle. A tick holds it
	// for the whole stage sequence, including the GPU fence wait.
	mu  sync.Mutex
	cfg Config
	eng tickEngine

	// inMu guards the producer-facing inputs, so PushRow and
	// SetVisibleWindow never block behind an in-flight tick.
	inMu     sync.Mutex
	win      VisibleWindow
	winDirty bool
	uv       QuadUV
	pending  []uint16 // latest pushed row, nil once consumed
	dropped  uint64   // rows replaced before a tick consumed them

	state  TickState
	primed bool // the strip holds at least one resolve
	gpu    bool
	closed bool
}

// New builds a pipeline from cfg. Gradient and dimension problems fail
// here; nothing is retried lazily. Unless cfg.ForceCPU is set, New probes
// for a GPU adapter and falls back to the CPU engine with a warning when
// none opens (set cfg.RequireGPU to turn the fallback into an error).
func New(cfg Config) (*Waterfall, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	w := &Waterfall{
		cfg:   cfg,
		state: StateIdle,
		win:   fullWindow(cfg.Width, cfg.Height),
	}
	w.uv = w.win.uv(cfg.Width, cfg.Height)
	w.winDirty = true // first composite uploads the quad

	if !cfg.ForceCPU {
		eng, err := newGPUEngine(cfg)
		if err == nil {
			w.eng = eng
			w.gpu = true
			Logger().Info("waterfall: GPU pipeline ready",
				"strip", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height))
		} else if cfg.RequireGPU {
			return nil, err
		} else {
			Logger().Warn("waterfall: GPU unavailable, using CPU engine", "error", err)
		}
	}
	if w.eng == nil {
		w.eng = newCPUEngine(cfg.Width, cfg.Height,
			cfg.ViewportWidth, cfg.ViewportHeight, cfg.Gradient)
	}
	return w, nil
}

// NewWithProvider builds a pipeline on a GPU device owned by the host
// application, typically a windowing integration that already holds a
// gpucontext.DeviceProvider. There is no CPU fallback: if the provider's
// device cannot run the pipeline, NewWithProvider fails.
func NewWithProvider(provider DeviceProvider, cfg Config) (*Waterfall, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	eng, err := newGPUEngineWithProvider(provider, cfg)
	if err != nil {
		return nil, err
	}
	w := &Waterfall{
		cfg:   cfg,
		eng:   eng,
		gpu:   true,
		state: StateIdle,
		win:   fullWindow(cfg.Width, cfg.Height),
	}
	w.uv = w.win.uv(cfg.Width, cfg.Height)
	w.winDirty = true
	return w, nil
}

// PushRow submits one row of frequency-bin intensities for the next tick.
// The samples are copied, so the caller may reuse the slice. Rows narrower
// than the strip are zero-padded on the right during ingest; rows wider
// than the strip are rejected with ErrRowTooWide and the display is not
// affected. If a previous row has not been ticked yet it is replaced.
//
// PushRow is safe for concurrent use.
func (w *Waterfall) PushRow(samples []uint16) error {
	w.inMu.Lock()
	defer w.inMu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if len(samples) > w.cfg.Width {
		return fmt.Errorf("%w: %d samples, %d bins",
			ErrRowTooWide, len(samples), w.cfg.Width)
	}
	if w.pending != nil {
		w.dropped++
	}
	w.pending = append(w.pending[:0], samples...)
	return nil
}

// SetVisibleWindow changes the strip region shown in the viewport: an
// inclusive bin range [startBin, endBin] and a count of the newest rows.
// Invalid windows return ErrInvalidWindow and leave the previous window in
// effect. Setting the current window again is a no-op; the quad geometry
// is re-uploaded only when the window actually changes.
func (w *Waterfall) SetVisibleWindow(startBin, endBin, rows int) error {
	w.inMu.Lock()
	defer w.inMu.Unlock()
	if w.closed {
		return ErrClosed
	}
	win := VisibleWindow{StartBin: startBin, EndBin: endBin, Rows: rows}
	if err := win.validate(w.cfg.Width, w.cfg.Height); err != nil {
		return err
	}
	if win == w.win {
		return nil
	}
	w.win = win
	w.winDirty = true
	return nil
}

// Window returns the current visible window.
func (w *Waterfall) Window() VisibleWindow {
	w.inMu.Lock()
	defer w.inMu.Unlock()
	return w.win
}

// Frame returns the last composited viewport. The pixmap is owned by the
// pipeline and rewritten by the next Tick; callers that need to keep a
// frame should Clone it.
func (w *Waterfall) Frame() *Pixmap {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.eng.Frame()
}

// State returns the stage the scheduler last entered, StateIdle between
// ticks.
func (w *Waterfall) State() TickState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// UsingGPU reports whether the GPU backend is active.
func (w *Waterfall) UsingGPU() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gpu
}

// DroppedRows returns the number of pushed rows that were replaced by a
// newer row before any tick consumed them.
func (w *Waterfall) DroppedRows() uint64 {
	w.inMu.Lock()
	defer w.inMu.Unlock()
	return w.dropped
}

// Close releases the backend. Close is idempotent; operations after Close
// return ErrClosed.
func (w *Waterfall) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inMu.Lock()
	if w.closed {
		w.inMu.Unlock()
		return nil
	}
	w.closed = true
	w.inMu.Unlock()
	w.eng.Close()
	Logger().Info("waterfall: closed")
	return nil
}
