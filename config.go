package waterfall

import (
	"fmt"
	"time"
)

// Strip dimension bounds. The GPU pipeline allocates the full history up
// front, so oversized strips are rejected at construction instead of
// failing later inside the backend.
const (
	MaxWidth  = 3360
	MaxHeight = 1024
)

// Config describes a waterfall pipeline. Zero fields take defaults; see
// DefaultConfig for the defaults themselves.
type Config struct {
	// Width and Height are the history strip dimensions: frequency bins
	// across, history lines down.
	Width  int
	Height int

	// ViewportWidth and ViewportHeight size the composited output frame.
	// Zero means match the strip dimensions.
	ViewportWidth  int
	ViewportHeight int

	// Gradient is the intensity color palette. Nil selects the "Basic"
	// preset.
	Gradient *GradientTable

	// TickInterval is the cadence of Run. Manual Tick calls ignore it.
	TickInterval time.Duration

	// ForceCPU skips GPU adapter probing and uses the CPU engine.
	ForceCPU bool

	// RequireGPU makes New fail when no GPU adapter can be opened instead
	// of falling back to the CPU engine.
	RequireGPU bool
}

// DefaultConfig returns a 1024x512 strip with the Basic palette at a
// 50ms tick cadence.
func DefaultConfig() Config {
	return Config{
		Width:        1024,
		Height:       512,
		TickInterval: 50 * time.Millisecond,
	}
}

func (c *Config) setDefaults() error {
	if c.Width == 0 && c.Height == 0 {
		d := DefaultConfig()
		c.Width, c.Height = d.Width, d.Height
	}
	if c.ViewportWidth == 0 {
		c.ViewportWidth = c.Width
	}
	if c.ViewportHeight == 0 {
		c.ViewportHeight = c.Height
	}
	if c.TickInterval == 0 {
		c.TickInterval = DefaultConfig().TickInterval
	}
	if c.Gradient == nil {
		g, err := GradientPreset("Basic")
		if err != nil {
			return err
		}
		c.Gradient = g
	}
	return nil
}

func (c Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: strip %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	if c.Width > MaxWidth || c.Height > MaxHeight {
		return fmt.Errorf("%w: strip %dx%d exceeds %dx%d",
			ErrInvalidConfig, c.Width, c.Height, MaxWidth, MaxHeight)
	}
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		return fmt.Errorf("%w: viewport %dx%d",
			ErrInvalidConfig, c.ViewportWidth, c.ViewportHeight)
	}
	if c.ForceCPU && c.RequireGPU {
		return fmt.Errorf("%w: ForceCPU and RequireGPU are mutually exclusive",
			ErrInvalidConfig)
	}
	return nil
}
