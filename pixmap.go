package waterfall

import (
	"image"
	"image/png"
	"os"
)

// Pixmap is a simple RGBA8 pixel buffer with the origin at the top left.
// Frame returns the composited viewport as a Pixmap; the CPU engine also
// uses one for the resolved history strip.
type Pixmap struct {
	width  int
	height int
	data   []uint8 // RGBA, 4 bytes per pixel, row-major
}

// NewPixmap creates a zeroed (transparent black) pixmap.
func NewPixmap(width, height int) *Pixmap {
	return &Pixmap{
		width:  width,
		height: height,
		data:   make([]uint8, width*height*4),
	}
}

// Width returns the pixmap width in pixels.
func (p *Pixmap) Width() int { return p.width }

// Height returns the pixmap height in pixels.
func (p *Pixmap) Height() int { return p.height }

// Data returns the underlying pixel storage. The slice aliases the pixmap;
// mutations are visible to the owner.
func (p *Pixmap) Data() []uint8 { return p.data }

// Set writes the pixel at (x, y). Out-of-bounds writes are ignored.
func (p *Pixmap) Set(x, y int, c RGBA8) {
	if x < 0 || y < 0 || x >= p.width || y >= p.height {
		return
	}
	i := (y*p.width + x) * 4
	p.data[i+0] = c.R
	p.data[i+1] = c.G
	p.data[i+2] = c.B
	p.data[i+3] = c.A
}

// At returns the pixel at (x, y), or the zero color out of bounds.
func (p *Pixmap) At(x, y int) RGBA8 {
	if x < 0 || y < 0 || x >= p.width || y >= p.height {
		return RGBA8{}
	}
	i := (y*p.width + x) * 4
	return RGBA8{R: p.data[i+0], G: p.data[i+1], B: p.data[i+2], A: p.data[i+3]}
}

// Fill sets every pixel to c.
func (p *Pixmap) Fill(c RGBA8) {
	for i := 0; i < len(p.data); i += 4 {
		p.data[i+0] = c.R
		p.data[i+1] = c.G
		p.data[i+2] = c.B
		p.data[i+3] = c.A
	}
}

// Clone returns a deep copy.
func (p *Pixmap) Clone() *Pixmap {
	out := NewPixmap(p.width, p.height)
	copy(out.data, p.data)
	return out
}

// rgba wraps the pixmap storage as an image.RGBA without copying.
func (p *Pixmap) rgba() *image.RGBA {
	return &image.RGBA{
		Pix:    p.data,
		Stride: p.width * 4,
		Rect:   image.Rect(0, 0, p.width, p.height),
	}
}

// ToImage copies the pixmap into a standalone image.RGBA.
func (p *Pixmap) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	copy(img.Pix, p.data)
	return img
}

// SavePNG writes the pixmap to path as a PNG file.
func (p *Pixmap) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, p.ToImage())
}
