// Package waterfall renders a scrolling spectrogram. Each tick, one row of
// frequency-bin intensities enters at the top of a fixed-size history strip,
// every older row shifts down by one line, and the strip is color-mapped
// through a gradient palette and composited onto a viewport as a textured
// quad. A visible window selects the sub-rectangle of the strip the
// viewport shows.
//
// The package pairs a CPU reference engine with a GPU pipeline built on
// github.com/gogpu/wgpu. Both paths run the same stage sequence and produce
// matching frames; the CPU path doubles as the fallback when no GPU adapter
// is available.
//
// Basic usage:
//
//	w, err := waterfall.New(waterfall.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
//	w.PushRow(samples)          // latest row of uint16 intensities
//	if err := w.Tick(); err != nil {
//	    log.Fatal(err)
//	}
//	frame := w.Frame()          // composited RGBA pixels
package waterfall
