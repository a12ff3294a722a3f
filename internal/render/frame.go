// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// configUniformSize is the byte size of the resolve config uniform:
// width, height, gradient_size, pad as four u32 words.
const configUniformSize = 16

// fenceTimeout bounds the per-tick wait on GPU completion. A tick that
// exceeds it is abandoned as transient rather than blocking the scheduler.
const fenceTimeout = 5 * time.Second

// Per-tick encoding errors.
var (
	// ErrNotEncoding is returned when a stage is encoded outside a
	// Begin/Present pair.
	ErrNotEncoding = errors.New("render: no tick in progress")

	// ErrRowTooWide is returned when WriteRow gets more samples than the
	// strip has cells per row.
	ErrRowTooWide = errors.New("render: row wider than strip")
)

// Begin opens the command stream for one tick.
func (p *Pipeline) Begin() error {
	if p.closed {
		return errors.New("render: pipeline closed")
	}
	if p.encoding {
		return errors.New("render: tick already in progress")
	}
	encoder, err := p.ctx.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "waterfall_tick",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("waterfall_tick"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	p.encoder = encoder
	p.encoding = true
	p.scrolled = false
	return nil
}

// WriteRow uploads one row of samples into row 0 of the current intensity
// plane. Short rows are zero-padded to the strip width; each 16-bit
// sample occupies the low half of one u32 cell.
func (p *Pipeline) WriteRow(samples []uint16) error {
	if !p.encoding {
		return ErrNotEncoding
	}
	if len(samples) > p.cfg.Width {
		return fmt.Errorf("%w: %d samples, %d cells", ErrRowTooWide, len(samples), p.cfg.Width)
	}
	packRow(p.rowScratch, samples)
	p.ctx.queue.WriteBuffer(p.intensity[p.cur], 0, p.rowScratch)
	return nil
}

// packRow serializes samples into u32 cells, zero-padding dst past the
// last sample.
func packRow(dst []byte, samples []uint16) {
	for i := range dst {
		dst[i] = 0
	}
	for i, v := range samples {
		binary.LittleEndian.PutUint32(dst[i*cellBytes:], uint32(v))
	}
}

// EncodeResolve encodes the compute dispatch that maps the current
// intensity plane through the gradient into the color strip.
func (p *Pipeline) EncodeResolve() error {
	if !p.encoding {
		return ErrNotEncoding
	}
	pass := p.encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "waterfall_resolve"})
	pass.SetPipeline(p.resolvePipeline)
	pass.SetBindGroup(0, p.resolveBG[p.cur], nil)
	pass.Dispatch(uint32(p.cfg.Width+15)/16, uint32(p.cfg.Height+15)/16, 1)
	pass.End()
	return nil
}

// EncodeScroll encodes the one-copy scroll: rows [0, H-2] of the current
// plane land on rows [1, H-1] of the other plane as a single contiguous
// region. Row 0 of the destination keeps stale data; the next WriteRow
// after the swap overwrites it before anything reads it.
func (p *Pipeline) EncodeScroll() error {
	if !p.encoding {
		return ErrNotEncoding
	}
	rowBytes := uint64(p.cfg.Width) * cellBytes
	p.encoder.CopyBufferToBuffer(p.intensity[p.cur], p.intensity[1-p.cur], []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: rowBytes, Size: rowBytes * uint64(p.cfg.Height-1)},
	})
	p.scrolled = true
	return nil
}

// SetQuadUV updates the texture coordinates of the composite quad. The
// vertex buffer is rewritten on the next EncodeComposite.
func (p *Pipeline) SetQuadUV(u0, v0, u1, v1 float32) {
	p.quad = [4]float32{u0, v0, u1, v1}
	p.quadDirty = true
}

// EncodeComposite encodes the render pass that draws the visible window
// of the color strip onto the target quad.
func (p *Pipeline) EncodeComposite() error {
	if !p.encoding {
		return ErrNotEncoding
	}
	if p.quadDirty {
		p.ctx.queue.WriteBuffer(p.vertexBuf, 0, p.quadVertices())
		p.quadDirty = false
	}

	// The resolve dispatch leaves the strip in storage-write state; the
	// fragment shader samples it. Explicit transition for Vulkan layouts.
	p.encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: p.stripTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageStorageBinding,
			NewUsage: gputypes.TextureUsageTextureBinding,
		},
	}})

	view := p.targetView
	if p.surfaceView != nil {
		view = p.surfaceView
	}
	rp := p.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "waterfall_composite",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	rp.SetPipeline(p.compositePipeline)
	rp.SetBindGroup(0, p.compositeBG, nil)
	rp.SetVertexBuffer(0, p.vertexBuf, 0)
	rp.Draw(quadVertexCount, 1, 0, 0)
	rp.End()

	// Return the strip to storage-write state for the next resolve.
	p.encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: p.stripTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageTextureBinding,
			NewUsage: gputypes.TextureUsageStorageBinding,
		},
	}})
	return nil
}

// Present submits the tick and, in offscreen mode, reads the composited
// target back into dst as RGBA (dst needs ViewportWidth*ViewportHeight*4
// bytes). The ping-pong roles swap only after a successful submit, so a
// failed tick leaves the previous frame and history intact.
func (p *Pipeline) Present(dst []byte) error {
	if !p.encoding {
		return ErrNotEncoding
	}

	var stagingBuf hal.Buffer
	var alignedBytesPerRow int
	if p.surfaceView == nil {
		var err error
		stagingBuf, alignedBytesPerRow, err = p.encodeReadback()
		if err != nil {
			p.Abandon()
			return err
		}
		defer p.ctx.device.DestroyBuffer(stagingBuf)
	}

	cmdBuf, err := p.encoder.EndEncoding()
	p.encoder = nil
	p.encoding = false
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer p.ctx.device.FreeCommandBuffer(cmdBuf)

	fence, err := p.ctx.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer p.ctx.device.DestroyFence(fence)

	if err := p.ctx.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := p.ctx.device.Wait(fence, 1, fenceTimeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err)
	}

	if stagingBuf != nil {
		if err := p.readbackFrame(stagingBuf, alignedBytesPerRow, dst); err != nil {
			return err
		}
	}

	if p.scrolled {
		p.cur = 1 - p.cur
		p.scrolled = false
	}
	return nil
}

// encodeReadback encodes the target-to-staging copy and returns the
// staging buffer with its aligned row pitch.
func (p *Pipeline) encodeReadback() (hal.Buffer, int, error) {
	w := uint32(p.cfg.ViewportWidth)
	h := uint32(p.cfg.ViewportHeight)

	// WebGPU (and DX12) requires BytesPerRow aligned to 256 bytes.
	bytesPerRow := int(w) * 4
	const copyPitchAlignment = 256
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	stagingBuf, err := p.ctx.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "waterfall_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("create staging buffer: %w", err)
	}

	// The render pass leaves the target in attachment state;
	// CopyTextureToBuffer needs transfer source. Transition there and
	// back so the next tick's pass finds the expected state.
	p.encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: p.targetTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	p.encoder.CopyTextureToBuffer(p.targetTex, stagingBuf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(alignedBytesPerRow),
			RowsPerImage: h,
		},
		TextureBase: hal.ImageCopyTexture{Texture: p.targetTex, MipLevel: 0},
		Size:        hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	p.encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: p.targetTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})
	return stagingBuf, alignedBytesPerRow, nil
}

// readbackFrame copies the staging buffer into dst, stripping row padding
// and converting BGRA to RGBA.
func (p *Pipeline) readbackFrame(stagingBuf hal.Buffer, alignedBytesPerRow int, dst []byte) error {
	w := p.cfg.ViewportWidth
	h := p.cfg.ViewportHeight
	if len(dst) < w*h*4 {
		return fmt.Errorf("render: frame buffer too small: %d < %d", len(dst), w*h*4)
	}

	readback := make([]byte, uint64(alignedBytesPerRow)*uint64(h))
	if err := p.ctx.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return fmt.Errorf("readback: %w", err)
	}

	bytesPerRow := w * 4
	if alignedBytesPerRow == bytesPerRow {
		convertBGRAToRGBA(readback, dst, w*h)
		return nil
	}
	tight := make([]byte, bytesPerRow*h)
	for row := 0; row < h; row++ {
		copy(tight[row*bytesPerRow:(row+1)*bytesPerRow],
			readback[row*alignedBytesPerRow:row*alignedBytesPerRow+bytesPerRow])
	}
	convertBGRAToRGBA(tight, dst, w*h)
	return nil
}

// Abandon discards the partially encoded tick. The ping-pong roles and
// the last presented frame stay as they were.
func (p *Pipeline) Abandon() {
	if !p.encoding {
		return
	}
	p.encoder.DiscardEncoding()
	p.encoder = nil
	p.encoding = false
	p.scrolled = false
	slogger().Debug("render: tick abandoned")
}

// quadVertices serializes the composite triangle strip: clip-space
// positions with the visible-window texture coordinates. The newest row
// (V=0) maps to the top of the target.
func (p *Pipeline) quadVertices() []byte {
	u0, v0, u1, v1 := p.quad[0], p.quad[1], p.quad[2], p.quad[3]
	verts := [quadVertexCount][4]float32{
		{-1, -1, u0, v1}, // bottom left
		{1, -1, u1, v1},  // bottom right
		{-1, 1, u0, v0},  // top left
		{1, 1, u1, v0},   // top right
	}
	buf := make([]byte, quadVertexCount*quadVertexStride)
	for i, v := range verts {
		off := i * quadVertexStride
		for j, f := range v {
			binary.LittleEndian.PutUint32(buf[off+j*4:], math.Float32bits(f))
		}
	}
	return buf
}

// makeConfigUniform serializes the resolve config uniform.
func makeConfigUniform(cfg Config) []byte {
	buf := make([]byte, configUniformSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(cfg.Width))
	binary.LittleEndian.PutUint32(buf[4:], uint32(cfg.Height))
	binary.LittleEndian.PutUint32(buf[8:], uint32(cfg.gradientSize()))
	return buf
}

// convertBGRAToRGBA swaps the B and R channels of count pixels from src
// into dst.
func convertBGRAToRGBA(src, dst []byte, count int) {
	for i := 0; i < count; i++ {
		o := i * 4
		dst[o+0] = src[o+2]
		dst[o+1] = src[o+1]
		dst[o+2] = src[o+0]
		dst[o+3] = src[o+3]
	}
}
