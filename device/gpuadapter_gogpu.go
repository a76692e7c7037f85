//go:build !nogpu

package device

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gogpu/gpu"
	"github.com/gogpu/gogpu/gpu/types"

	"github.com/gogpu/rasterkernel/internal/rlog"
)

func init() {
	RegisterAdapter(AdapterNameGoGPU, func() (Adapter, error) {
		return newGoGPUAdapter()
	})
}

// ErrComputeNotSupported is returned by gogpuAdapter operations that
// gogpu/gogpu's gpu.Backend interface has no equivalent for. As of this
// writing that interface only exposes render pipeline creation; compute
// pipelines, SPIR-V shader modules and buffer readback are absent. The
// adapter still registers so buffer bookkeeping and the bits of the
// pipeline that don't touch compute (pure host-side buffer traffic) work,
// but anything that needs to actually dispatch a kernel on this backend
// fails clearly instead of silently doing nothing.
var ErrComputeNotSupported = fmt.Errorf("%w: not supported by gogpu/gogpu backend", ErrBackendError)

// gogpuAdapter wraps gogpu/gogpu's gpu.Backend as a device.Adapter. It is a
// secondary path behind the gpu adapter (github.com/gogpu/wgpu-backed):
// useful when an embedding application has already selected a gogpu/gogpu
// backend (Rust wgpu-native or the pure-Go gogpu/wgpu implementation) and
// wants rasterkernel to share it rather than opening a second GPU context.
type gogpuAdapter struct {
	mu      sync.RWMutex
	backend gpu.Backend
	device  types.Device
	queue   types.Queue

	nextID  atomic.Uint64
	buffers map[BufferID]types.Buffer
}

func newGoGPUAdapter() (*gogpuAdapter, error) {
	backend := gpu.GetBackend()
	if backend == nil {
		if err := gpu.InitDefaultBackend(); err != nil {
			return nil, fmt.Errorf("%w: no gogpu backend available: %v", ErrBackendError, err)
		}
		backend = gpu.GetBackend()
	}
	if backend == nil {
		return nil, fmt.Errorf("%w: no gogpu backend available", ErrBackendError)
	}

	instance, err := backend.CreateInstance()
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %v", ErrBackendError, err)
	}
	adapter, err := backend.RequestAdapter(instance, &types.AdapterOptions{
		PowerPreference: types.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: request adapter: %v", ErrBackendError, err)
	}
	device, err := backend.RequestDevice(adapter, &types.DeviceOptions{Label: "rasterkernel-gogpu-device"})
	if err != nil {
		return nil, fmt.Errorf("%w: request device: %v", ErrBackendError, err)
	}
	queue := backend.GetQueue(device)

	rlog.Get().Info("device: gogpu adapter initialized", "backend", backend.Name())

	a := &gogpuAdapter{
		backend: backend,
		device:  device,
		queue:   queue,
		buffers: make(map[BufferID]types.Buffer),
	}
	a.nextID.Store(1)
	return a, nil
}

func (a *gogpuAdapter) newID() uint64 { return a.nextID.Add(1) - 1 }

func (a *gogpuAdapter) Name() string               { return AdapterNameGoGPU }
func (a *gogpuAdapter) SupportsCompute() bool      { return false }
func (a *gogpuAdapter) MaxWorkgroupSize() [3]uint32 { return [3]uint32{256, 256, 64} }
func (a *gogpuAdapter) MaxBufferSize() uint64        { return 256 * 1024 * 1024 }

func (a *gogpuAdapter) CreateShaderModule(spirv []uint32, wgslSource, label string) (ShaderModuleID, error) {
	return ShaderModuleID(a.newID()), nil
}
func (a *gogpuAdapter) DestroyShaderModule(ShaderModuleID) {}

func (a *gogpuAdapter) CreateBuffer(size int, usage BufferUsage) (BufferID, error) {
	if size <= 0 {
		return InvalidID, fmt.Errorf("%w: buffer size must be positive", ErrAllocationError)
	}
	buf, err := a.backend.CreateBuffer(a.device, &types.BufferDescriptor{
		Size:  uint64(size),
		Usage: convertBufferUsageGoGPU(usage),
	})
	if err != nil {
		return InvalidID, fmt.Errorf("%w: %v", ErrAllocationError, err)
	}
	id := BufferID(a.newID())
	a.mu.Lock()
	a.buffers[id] = buf
	a.mu.Unlock()
	return id, nil
}

func (a *gogpuAdapter) DestroyBuffer(id BufferID) {
	a.mu.Lock()
	buf, ok := a.buffers[id]
	delete(a.buffers, id)
	a.mu.Unlock()
	if ok {
		a.backend.ReleaseBuffer(buf)
	}
}

func (a *gogpuAdapter) WriteBuffer(id BufferID, offset uint64, data []byte) error {
	a.mu.RLock()
	buf, ok := a.buffers[id]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: buffer %d not found", ErrAllocationError, id)
	}
	a.backend.WriteBuffer(a.queue, buf, offset, data)
	return nil
}

func (a *gogpuAdapter) ReadBuffer(id BufferID, offset, size uint64) ([]byte, error) {
	return nil, ErrComputeNotSupported
}

func (a *gogpuAdapter) CreateBindGroupLayout(*BindGroupLayoutDesc) (BindGroupLayoutID, error) {
	return InvalidID, ErrComputeNotSupported
}
func (a *gogpuAdapter) DestroyBindGroupLayout(BindGroupLayoutID) {}

func (a *gogpuAdapter) CreatePipelineLayout([]BindGroupLayoutID) (PipelineLayoutID, error) {
	return InvalidID, ErrComputeNotSupported
}
func (a *gogpuAdapter) DestroyPipelineLayout(PipelineLayoutID) {}

func (a *gogpuAdapter) CreateComputePipeline(*ComputePipelineDesc) (ComputePipelineID, error) {
	return InvalidID, ErrComputeNotSupported
}
func (a *gogpuAdapter) DestroyComputePipeline(ComputePipelineID) {}

func (a *gogpuAdapter) CreateBindGroup(BindGroupLayoutID, []BindGroupEntry) (BindGroupID, error) {
	return InvalidID, ErrComputeNotSupported
}
func (a *gogpuAdapter) DestroyBindGroup(BindGroupID) {}

func (a *gogpuAdapter) BeginComputePass() ComputePassEncoder { return noopComputePass{} }
func (a *gogpuAdapter) Submit()                              {}
func (a *gogpuAdapter) WaitIdle()                             {}
func (a *gogpuAdapter) Close()                                {}

type noopComputePass struct{}

func (noopComputePass) SetPipeline(ComputePipelineID)   {}
func (noopComputePass) SetBindGroup(uint32, BindGroupID) {}
func (noopComputePass) Dispatch(uint32, uint32, uint32)  {}
func (noopComputePass) End()                             {}

func convertBufferUsageGoGPU(usage BufferUsage) types.BufferUsage {
	var out types.BufferUsage
	if usage&BufferUsageMapRead != 0 {
		out |= types.BufferUsageMapRead
	}
	if usage&BufferUsageMapWrite != 0 {
		out |= types.BufferUsageMapWrite
	}
	if usage&BufferUsageCopySrc != 0 {
		out |= types.BufferUsageCopySrc
	}
	if usage&BufferUsageCopyDst != 0 {
		out |= types.BufferUsageCopyDst
	}
	if usage&BufferUsageStorage != 0 {
		out |= types.BufferUsageStorage
	}
	if usage&BufferUsageUniform != 0 {
		out |= types.BufferUsageUniform
	}
	return out
}
