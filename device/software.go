package device

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/rasterkernel/internal/rlog"
)

func init() {
	RegisterAdapter(AdapterNameSoftware, func() (Adapter, error) {
		return newSoftwareAdapter(), nil
	})
}

// softwareAdapter is a pure-Go stand-in for a real GPU. It never dispatches
// anything: CreateComputePipeline just hands out a fresh ID, and
// BeginComputePass/Dispatch are no-ops the caller never actually needs,
// because raster's stage functions call straight into the kernel body on
// the CPU rather than through a SPIR-V module when SupportsCompute is false.
//
// It exists so the module runs end to end (CLI, tests) on any machine
// without a real GPU available.
type softwareAdapter struct {
	mu      sync.Mutex
	nextID  atomic.Uint64
	buffers map[BufferID][]byte
}

func newSoftwareAdapter() *softwareAdapter {
	return &softwareAdapter{buffers: make(map[BufferID][]byte)}
}

func (a *softwareAdapter) newID() uint64 { return a.nextID.Add(1) }

func (a *softwareAdapter) Name() string            { return AdapterNameSoftware }
func (a *softwareAdapter) SupportsCompute() bool   { return false }
func (a *softwareAdapter) MaxWorkgroupSize() [3]uint32 { return [3]uint32{1024, 1024, 64} }
func (a *softwareAdapter) MaxBufferSize() uint64       { return 1 << 32 }

func (a *softwareAdapter) CreateShaderModule(spirv []uint32, wgslSource, label string) (ShaderModuleID, error) {
	rlog.Get().Debug("device: software shader module accepted without compilation", "label", label)
	return ShaderModuleID(a.newID()), nil
}

func (a *softwareAdapter) DestroyShaderModule(ShaderModuleID) {}

func (a *softwareAdapter) CreateBuffer(size int, usage BufferUsage) (BufferID, error) {
	if size < 0 {
		return InvalidID, fmt.Errorf("%w: negative buffer size %d", ErrAllocationError, size)
	}
	id := BufferID(a.newID())
	a.mu.Lock()
	a.buffers[id] = make([]byte, size)
	a.mu.Unlock()
	return id, nil
}

func (a *softwareAdapter) DestroyBuffer(id BufferID) {
	a.mu.Lock()
	delete(a.buffers, id)
	a.mu.Unlock()
}

func (a *softwareAdapter) WriteBuffer(id BufferID, offset uint64, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d not found", ErrAllocationError, id)
	}
	end := offset + uint64(len(data))
	if end > uint64(len(buf)) {
		return fmt.Errorf("%w: write [%d,%d) exceeds buffer of size %d", ErrAllocationError, offset, end, len(buf))
	}
	copy(buf[offset:end], data)
	return nil
}

func (a *softwareAdapter) ReadBuffer(id BufferID, offset, size uint64) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d not found", ErrAllocationError, id)
	}
	end := offset + size
	if end > uint64(len(buf)) {
		return nil, fmt.Errorf("%w: read [%d,%d) exceeds buffer of size %d", ErrAllocationError, offset, end, len(buf))
	}
	out := make([]byte, size)
	copy(out, buf[offset:end])
	return out, nil
}

func (a *softwareAdapter) CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayoutID, error) {
	return BindGroupLayoutID(a.newID()), nil
}
func (a *softwareAdapter) DestroyBindGroupLayout(BindGroupLayoutID) {}

func (a *softwareAdapter) CreatePipelineLayout(layouts []BindGroupLayoutID) (PipelineLayoutID, error) {
	return PipelineLayoutID(a.newID()), nil
}
func (a *softwareAdapter) DestroyPipelineLayout(PipelineLayoutID) {}

func (a *softwareAdapter) CreateComputePipeline(desc *ComputePipelineDesc) (ComputePipelineID, error) {
	return ComputePipelineID(a.newID()), nil
}
func (a *softwareAdapter) DestroyComputePipeline(ComputePipelineID) {}

func (a *softwareAdapter) CreateBindGroup(layout BindGroupLayoutID, entries []BindGroupEntry) (BindGroupID, error) {
	return BindGroupID(a.newID()), nil
}
func (a *softwareAdapter) DestroyBindGroup(BindGroupID) {}

func (a *softwareAdapter) BeginComputePass() ComputePassEncoder { return softwareComputePass{} }
func (a *softwareAdapter) Submit()                              {}
func (a *softwareAdapter) WaitIdle()                             {}
func (a *softwareAdapter) Close()                                {}

// softwareComputePass is a no-op encoder: the software adapter never
// actually dispatches, kernels run directly from Go.
type softwareComputePass struct{}

func (softwareComputePass) SetPipeline(ComputePipelineID)   {}
func (softwareComputePass) SetBindGroup(uint32, BindGroupID) {}
func (softwareComputePass) Dispatch(uint32, uint32, uint32)  {}
func (softwareComputePass) End()                             {}
