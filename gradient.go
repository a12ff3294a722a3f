package waterfall

import (
	"fmt"
	"io"
	"os"
)

// DefaultGradientSize is the palette entry count used by the presets and
// by DefaultConfig.
const DefaultGradientSize = 256

// RGBA8 is one palette entry, non-premultiplied, 8 bits per channel.
type RGBA8 struct {
	R, G, B, A uint8
}

// Packed returns the entry as a packed word with R in the low byte, the
// layout of an RGBA8 texel in little-endian memory.
func (c RGBA8) Packed() uint32 {
	return uint32(c.R) | uint32(c.G)<<8 | uint32(c.B)<<16 | uint32(c.A)<<24
}

// GradientTable maps a 16-bit intensity sample to a color through a fixed
// lookup table. Tables are immutable after construction; the same table
// backs both the CPU resolve loop and the GPU palette texture, so both
// paths band intensities identically.
type GradientTable struct {
	entries []RGBA8
}

// NewGradientTable builds a table from explicit entries. The slice is
// copied. At least one entry is required.
func NewGradientTable(entries []RGBA8) (*GradientTable, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty gradient", ErrInvalidConfig)
	}
	g := &GradientTable{entries: make([]RGBA8, len(entries))}
	copy(g.entries, entries)
	return g, nil
}

// LoadGradient reads size entries of tightly packed R,G,B,A bytes from r.
// A short read yields ErrGradientTruncated.
func LoadGradient(r io.Reader, size int) (*GradientTable, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: gradient size %d", ErrInvalidConfig, size)
	}
	raw := make([]byte, size*4)
	n, err := io.ReadFull(r, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: read %d of %d bytes", ErrGradientTruncated, n, len(raw))
	}
	entries := make([]RGBA8, size)
	for i := range entries {
		entries[i] = RGBA8{R: raw[i*4], G: raw[i*4+1], B: raw[i*4+2], A: raw[i*4+3]}
	}
	return &GradientTable{entries: entries}, nil
}

// LoadGradientBGRA is LoadGradient for sources that store entries in
// B,G,R,A byte order.
func LoadGradientBGRA(r io.Reader, size int) (*GradientTable, error) {
	g, err := LoadGradient(r, size)
	if err != nil {
		return nil, err
	}
	for i, e := range g.entries {
		g.entries[i] = RGBA8{R: e.B, G: e.G, B: e.R, A: e.A}
	}
	return g, nil
}

// LoadGradientFile loads a packed RGBA gradient from path. A missing or
// unreadable file yields ErrGradientMissing.
func LoadGradientFile(path string, size int) (*GradientTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrGradientMissing, path, err)
	}
	defer f.Close()
	return LoadGradient(f, size)
}

// GradientPreset returns one of the built-in palettes:
//
//   - "Basic": black through blue, cyan, green, yellow and red to white,
//     the classic spectrum heat map.
//   - "Grayscale": linear black to white.
func GradientPreset(name string) (*GradientTable, error) {
	switch name {
	case "Basic":
		return rampGradient(DefaultGradientSize, []RGBA8{
			{0, 0, 0, 255},
			{0, 0, 160, 255},
			{0, 192, 192, 255},
			{0, 200, 0, 255},
			{255, 255, 0, 255},
			{255, 0, 0, 255},
			{255, 255, 255, 255},
		}), nil
	case "Grayscale":
		return rampGradient(DefaultGradientSize, []RGBA8{
			{0, 0, 0, 255},
			{255, 255, 255, 255},
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
}

// rampGradient interpolates evenly spaced stops into a table of size entries.
func rampGradient(size int, stops []RGBA8) *GradientTable {
	entries := make([]RGBA8, size)
	segs := len(stops) - 1
	for i := range entries {
		pos := float64(i) / float64(size-1) * float64(segs)
		seg := int(pos)
		if seg >= segs {
			seg = segs - 1
		}
		t := pos - float64(seg)
		a, b := stops[seg], stops[seg+1]
		entries[i] = RGBA8{
			R: lerpByte(a.R, b.R, t),
			G: lerpByte(a.G, b.G, t),
			B: lerpByte(a.B, b.B, t),
			A: lerpByte(a.A, b.A, t),
		}
	}
	return &GradientTable{entries: entries}
}

func lerpByte(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}

// Size returns the number of palette entries.
func (g *GradientTable) Size() int { return len(g.entries) }

// Lookup maps a 16-bit intensity to its palette entry. The index is
// idx = v * size / 65536, clamped to the last entry, so the full sample
// range bands evenly across the table. The GPU resolve shader computes
// the identical index.
func (g *GradientTable) Lookup(v uint16) RGBA8 {
	idx := int(v) * len(g.entries) / 65536
	if idx >= len(g.entries) {
		idx = len(g.entries) - 1
	}
	return g.entries[idx]
}

// Packed returns the table as packed RGBA words, the upload format of the
// GPU palette texture.
func (g *GradientTable) Packed() []uint32 {
	out := make([]uint32, len(g.entries))
	for i, e := range g.entries {
		out[i] = e.Packed()
	}
	return out
}

// Bytes returns the table as tightly packed R,G,B,A bytes.
func (g *GradientTable) Bytes() []byte {
	out := make([]byte, len(g.entries)*4)
	for i, e := range g.entries {
		out[i*4+0] = e.R
		out[i*4+1] = e.G
		out[i*4+2] = e.B
		out[i*4+3] = e.A
	}
	return out
}
