// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render is the GPU backend of the waterfall pipeline, built on
// the wgpu HAL. It owns the device resources: the ping-pong pair of
// intensity storage buffers, the gradient palette texture, the resolved
// color strip (a storage texture written by the resolve compute shader)
// and the composite render pipeline that draws the visible window onto
// the target as a textured quad.
//
// All pipeline objects, layouts and bind groups are created once at
// construction. A tick encodes into a single command stream: resolve
// dispatch, scroll copy, composite pass, then one submit with a fence
// wait and an optional staging-buffer readback. Per-tick work is limited
// to two queue writes (row upload and, when the visible window changed,
// quad vertices).
package render
