// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// Embedded pipeline shader sources.
//
//go:embed shaders/resolve.wgsl
var resolveShaderSource string

//go:embed shaders/composite.wgsl
var compositeShaderSource string

// compileShader compiles WGSL to SPIR-V via naga and creates a HAL shader
// module from the result. The Vulkan backend consumes SPIR-V directly.
func compileShader(device hal.Device, label, wgslSource string) (hal.ShaderModule, error) {
	if wgslSource == "" {
		return nil, fmt.Errorf("%s shader source is empty", label)
	}
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("compile %s shader: %w", label, err)
	}

	// SPIR-V is little-endian 32-bit words.
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirvCode},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s shader module: %w", label, err)
	}
	return module, nil
}
