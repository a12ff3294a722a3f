package waterfall

import (
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/waterfall/internal/render"
)

// DeviceProvider is the device-sharing contract of gpucontext, re-exported
// so callers of NewWithProvider do not import gpucontext directly.
type DeviceProvider = gpucontext.DeviceProvider

// gpuEngine adapts the internal render pipeline to the scheduler's stage
// interface. Stage methods encode into a single command stream; Present
// submits it, waits on the fence and reads the composited frame back into
// the pixmap.
type gpuEngine struct {
	pipe  *render.Pipeline
	frame *Pixmap
}

func newGPUEngine(cfg Config) (*gpuEngine, error) {
	pipe, err := render.NewPipeline(renderConfig(cfg))
	if err != nil {
		return nil, err
	}
	return &gpuEngine{
		pipe:  pipe,
		frame: NewPixmap(cfg.ViewportWidth, cfg.ViewportHeight),
	}, nil
}

// newGPUEngineWithProvider builds the engine on a device owned by the host
// application (a windowing integration) instead of opening an adapter.
func newGPUEngineWithProvider(provider gpucontext.DeviceProvider, cfg Config) (*gpuEngine, error) {
	pipe, err := render.NewPipelineWithProvider(provider, renderConfig(cfg))
	if err != nil {
		return nil, err
	}
	return &gpuEngine{
		pipe:  pipe,
		frame: NewPixmap(cfg.ViewportWidth, cfg.ViewportHeight),
	}, nil
}

func renderConfig(cfg Config) render.Config {
	return render.Config{
		Width:          cfg.Width,
		Height:         cfg.Height,
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
		Gradient:       cfg.Gradient.Bytes(),
	}
}

func (e *gpuEngine) Begin() error { return e.pipe.Begin() }

func (e *gpuEngine) Ingest(samples []uint16) error {
	return e.pipe.WriteRow(samples)
}

func (e *gpuEngine) Resolve() error { return e.pipe.EncodeResolve() }

func (e *gpuEngine) Scroll() error { return e.pipe.EncodeScroll() }

func (e *gpuEngine) Composite(_ VisibleWindow, uv QuadUV, uvChanged bool) error {
	if uvChanged {
		e.pipe.SetQuadUV(uv.U0, uv.V0, uv.U1, uv.V1)
	}
	return e.pipe.EncodeComposite()
}

func (e *gpuEngine) Present() error {
	return e.pipe.Present(e.frame.Data())
}

func (e *gpuEngine) Abandon() { e.pipe.Abandon() }

func (e *gpuEngine) Frame() *Pixmap { return e.frame }

func (e *gpuEngine) Close() { e.pipe.Close() }
