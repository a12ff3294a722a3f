// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

var (
	// ErrNoBackend is returned when the Vulkan HAL backend is not compiled in.
	ErrNoBackend = errors.New("render: vulkan backend not available")

	// ErrNoAdapter is returned when no GPU adapter can be enumerated.
	ErrNoAdapter = errors.New("render: no GPU adapters found")
)

// gpuContext holds an acquired device/queue pair. When the pipeline opened
// the device itself (standalone path) it also owns the instance and must
// destroy the device on Close; a provider-supplied device stays with its
// owner.
type gpuContext struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	owned    bool
}

// openStandalone creates a standalone Vulkan device, preferring discrete
// over integrated adapters.
func openStandalone() (*gpuContext, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, ErrNoBackend
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("render: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("render: open device: %w", err)
	}

	slogger().Info("render: GPU device opened", "adapter", selected.Info.Name)
	return &gpuContext{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		owned:    true,
	}, nil
}

// fromProvider extracts the HAL device and queue from an external
// gpucontext provider. The provider must expose HalDevice() and
// HalQueue() returning hal.Device and hal.Queue.
func fromProvider(provider gpucontext.DeviceProvider) (*gpuContext, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("render: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("render: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("render: provider HalQueue is not hal.Queue")
	}
	return &gpuContext{device: device, queue: queue}, nil
}

// close releases the device when owned. Provider-supplied devices are the
// provider's responsibility.
func (c *gpuContext) close() {
	if !c.owned {
		return
	}
	if c.device != nil {
		c.device.Destroy()
		c.device = nil
	}
	if c.instance != nil {
		c.instance.Destroy()
		c.instance = nil
	}
}
