package waterfall

import (
	"bytes"
	"errors"
	"testing"
)

func TestLoadGradient(t *testing.T) {
	raw := []byte{
		1, 2, 3, 4,
		5, 6, 7, 8,
	}
	g, err := LoadGradient(bytes.NewReader(raw), 2)
	if err != nil {
		t.Fatalf("LoadGradient: %v", err)
	}
	if g.Size() != 2 {
		t.Fatalf("Size = %d, want 2", g.Size())
	}
	want := []RGBA8{{1, 2, 3, 4}, {5, 6, 7, 8}}
	for i, w := range want {
		if g.entries[i] != w {
			t.Errorf("entry %d = %v, want %v", i, g.entries[i], w)
		}
	}
}

func TestLoadGradientTruncated(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		size int
	}{
		{"empty", nil, 4},
		{"partial entry", []byte{1, 2, 3}, 1},
		{"missing entries", bytes.Repeat([]byte{9}, 12), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadGradient(bytes.NewReader(tt.raw), tt.size)
			if !errors.Is(err, ErrGradientTruncated) {
				t.Errorf("err = %v, want ErrGradientTruncated", err)
			}
		})
	}
}

func TestLoadGradientBadSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := LoadGradient(bytes.NewReader(nil), size); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("size %d: err = %v, want ErrInvalidConfig", size, err)
		}
	}
}

func TestLoadGradientBGRA(t *testing.T) {
	raw := []byte{10, 20, 30, 40}
	g, err := LoadGradientBGRA(bytes.NewReader(raw), 1)
	if err != nil {
		t.Fatalf("LoadGradientBGRA: %v", err)
	}
	want := RGBA8{R: 30, G: 20, B: 10, A: 40}
	if g.entries[0] != want {
		t.Errorf("entry = %v, want %v", g.entries[0], want)
	}
}

func TestLoadGradientFileMissing(t *testing.T) {
	_, err := LoadGradientFile("testdata/no_such_gradient.rgba", 256)
	if !errors.Is(err, ErrGradientMissing) {
		t.Errorf("err = %v, want ErrGradientMissing", err)
	}
}

func TestGradientPreset(t *testing.T) {
	for _, name := range []string{"Basic", "Grayscale"} {
		g, err := GradientPreset(name)
		if err != nil {
			t.Fatalf("GradientPreset(%q): %v", name, err)
		}
		if g.Size() != DefaultGradientSize {
			t.Errorf("%s size = %d, want %d", name, g.Size(), DefaultGradientSize)
		}
		if got := g.Lookup(0); got != (RGBA8{0, 0, 0, 255}) {
			t.Errorf("%s lowest entry = %v, want opaque black", name, got)
		}
		if got := g.Lookup(65535); got != (RGBA8{255, 255, 255, 255}) {
			t.Errorf("%s highest entry = %v, want white", name, got)
		}
	}
}

func TestGradientPresetUnknown(t *testing.T) {
	if _, err := GradientPreset("Plasma"); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("err = %v, want ErrUnknownPreset", err)
	}
}

func TestGradientLookupBanding(t *testing.T) {
	entries := []RGBA8{
		{0, 0, 0, 255},
		{85, 85, 85, 255},
		{170, 170, 170, 255},
		{255, 255, 255, 255},
	}
	g, err := NewGradientTable(entries)
	if err != nil {
		t.Fatalf("NewGradientTable: %v", err)
	}

	// Four entries split the sample range into equal bands of 16384.
	tests := []struct {
		v    uint16
		want int
	}{
		{0, 0},
		{16383, 0},
		{16384, 1},
		{32767, 1},
		{32768, 2},
		{49151, 2},
		{49152, 3},
		{65535, 3},
	}
	for _, tt := range tests {
		if got := g.Lookup(tt.v); got != entries[tt.want] {
			t.Errorf("Lookup(%d) = %v, want entry %d", tt.v, got, tt.want)
		}
	}
}

func TestGradientLookupFullRange(t *testing.T) {
	g, err := GradientPreset("Grayscale")
	if err != nil {
		t.Fatalf("GradientPreset: %v", err)
	}
	// The map v*size/65536 must cover every entry and never index out of
	// range. Step by one band width, hitting each band once.
	seen := make(map[int]bool)
	for v := 0; v < 65536; v += 256 {
		idx := v * g.Size() / 65536
		if got := g.Lookup(uint16(v)); got != g.entries[idx] {
			t.Fatalf("Lookup(%d) = %v, want entry %d", v, got, idx)
		}
		seen[idx] = true
	}
	if len(seen) != g.Size() {
		t.Errorf("covered %d entries, want %d", len(seen), g.Size())
	}
}

func TestRGBA8Packed(t *testing.T) {
	c := RGBA8{R: 0x11, G: 0x22, B: 0x33, A: 0x44}
	if got := c.Packed(); got != 0x44332211 {
		t.Errorf("Packed = %#x, want 0x44332211", got)
	}
}

func TestGradientBytesRoundTrip(t *testing.T) {
	g, err := GradientPreset("Basic")
	if err != nil {
		t.Fatalf("GradientPreset: %v", err)
	}
	raw := g.Bytes()
	back, err := LoadGradient(bytes.NewReader(raw), g.Size())
	if err != nil {
		t.Fatalf("LoadGradient: %v", err)
	}
	for i := range g.entries {
		if g.entries[i] != back.entries[i] {
			t.Fatalf("entry %d = %v, want %v", i, back.entries[i], g.entries[i])
		}
	}
}
