//go:build !nogpu

package device

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/core"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rasterkernel/internal/rlog"
)

func init() {
	RegisterAdapter(AdapterNameGPU, func() (Adapter, error) {
		return newGPUAdapter()
	})
}

// gpuAdapter drives a real GPU through gogpu/wgpu's core+hal layers, with
// shaders compiled from WGSL to SPIR-V via naga. It is the adapter selected
// by DefaultAdapter when the build includes this file (i.e. not -tags
// nogpu) and a GPU is actually available at Init time.
type gpuAdapter struct {
	mu sync.RWMutex

	instance *core.Instance
	adapter  core.AdapterID
	device   core.DeviceID
	queue    core.QueueID
	hal      hal.Device

	nextID atomic.Uint64

	shaderModules    map[ShaderModuleID]hal.ShaderModule
	buffers          map[BufferID]hal.Buffer
	bindGroupLayouts map[BindGroupLayoutID]hal.BindGroupLayout
	pipelineLayouts  map[PipelineLayoutID]hal.PipelineLayout
	computePipelines map[ComputePipelineID]hal.ComputePipeline
	bindGroups       map[BindGroupID]hal.BindGroup
}

func newGPUAdapter() (*gpuAdapter, error) {
	desc := &gputypes.InstanceDescriptor{Backends: gputypes.BackendsPrimary}
	instance := core.NewInstance(desc)

	adapterID, err := instance.RequestAdapter(&gputypes.RequestAdapterOptions{
		PowerPreference: gputypes.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: request adapter: %v", ErrBackendError, err)
	}

	deviceID, queueID, halDevice, err := createDeviceAndQueue(instance, adapterID)
	if err != nil {
		return nil, err
	}

	rlog.Get().Info("device: gpu adapter initialized", "backend", AdapterNameGPU)

	a := &gpuAdapter{
		instance:         instance,
		adapter:          adapterID,
		device:           deviceID,
		queue:            queueID,
		hal:              halDevice,
		shaderModules:    make(map[ShaderModuleID]hal.ShaderModule),
		buffers:          make(map[BufferID]hal.Buffer),
		bindGroupLayouts: make(map[BindGroupLayoutID]hal.BindGroupLayout),
		pipelineLayouts:  make(map[PipelineLayoutID]hal.PipelineLayout),
		computePipelines: make(map[ComputePipelineID]hal.ComputePipeline),
		bindGroups:       make(map[BindGroupID]hal.BindGroup),
	}
	a.nextID.Store(1)
	return a, nil
}

func (a *gpuAdapter) newID() uint64 { return a.nextID.Add(1) - 1 }

func (a *gpuAdapter) Name() string               { return AdapterNameGPU }
func (a *gpuAdapter) SupportsCompute() bool      { return true }
func (a *gpuAdapter) MaxWorkgroupSize() [3]uint32 { return [3]uint32{256, 256, 64} }
func (a *gpuAdapter) MaxBufferSize() uint64        { return 256 * 1024 * 1024 }

// CreateShaderModule compiles WGSL to SPIR-V via naga and hands the words to
// wgpu/hal. spirv is accepted pre-compiled too (non-empty); wgslSource wins
// when both are given since naga is the source of truth for this backend.
func (a *gpuAdapter) CreateShaderModule(spirv []uint32, wgslSource, label string) (ShaderModuleID, error) {
	words := spirv
	if wgslSource != "" {
		compiled, err := compileWGSL(wgslSource)
		if err != nil {
			return InvalidID, fmt.Errorf("%w: %s: %v", ErrCompile, label, err)
		}
		words = compiled
	}
	if len(words) == 0 {
		return InvalidID, fmt.Errorf("%w: %s: empty shader source", ErrCompile, label)
	}

	module, err := a.hal.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return InvalidID, fmt.Errorf("%w: %s: %v", ErrCompile, label, err)
	}

	id := ShaderModuleID(a.newID())
	a.mu.Lock()
	a.shaderModules[id] = module
	a.mu.Unlock()
	return id, nil
}

func compileWGSL(wgslSource string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, err
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

func (a *gpuAdapter) DestroyShaderModule(id ShaderModuleID) {
	a.mu.Lock()
	module, ok := a.shaderModules[id]
	delete(a.shaderModules, id)
	a.mu.Unlock()
	if ok {
		a.hal.DestroyShaderModule(module)
	}
}

func (a *gpuAdapter) CreateBuffer(size int, usage BufferUsage) (BufferID, error) {
	if size <= 0 {
		return InvalidID, fmt.Errorf("%w: buffer size must be positive, got %d", ErrAllocationError, size)
	}
	buf, err := a.hal.CreateBuffer(&hal.BufferDescriptor{
		Size:  uint64(size),
		Usage: convertBufferUsage(usage),
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

func (a *gpuAdapter) DestroyBuffer(id BufferID) {
	a.mu.Lock()
	buf, ok := a.buffers[id]
	delete(a.buffers, id)
	a.mu.Unlock()
	if ok {
		a.hal.DestroyBuffer(buf)
	}
}

func (a *gpuAdapter) WriteBuffer(id BufferID, offset uint64, data []byte) error {
	a.mu.RLock()
	buf, ok := a.buffers[id]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: buffer %d not found", ErrAllocationError, id)
	}
	a.hal.WriteBuffer(a.queue, buf, offset, data)
	return nil
}

func (a *gpuAdapter) ReadBuffer(id BufferID, offset, size uint64) ([]byte, error) {
	a.mu.RLock()
	buf, ok := a.buffers[id]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d not found", ErrAllocationError, id)
	}
	return a.hal.ReadBuffer(a.queue, buf, offset, size)
}

func (a *gpuAdapter) CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayoutID, error) {
	entries := make([]hal.BindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entries[i] = hal.BindGroupLayoutEntry{
			Binding:    e.Binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer: &hal.BufferBindingLayout{
				Type:           convertBindingType(e.Type),
				MinBindingSize: e.MinBindingSize,
			},
		}
	}
	layout, err := a.hal.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Label: desc.Label, Entries: entries})
	if err != nil {
		return InvalidID, fmt.Errorf("%w: %v", ErrBackendError, err)
	}
	id := BindGroupLayoutID(a.newID())
	a.mu.Lock()
	a.bindGroupLayouts[id] = layout
	a.mu.Unlock()
	return id, nil
}

func (a *gpuAdapter) DestroyBindGroupLayout(id BindGroupLayoutID) {
	a.mu.Lock()
	layout, ok := a.bindGroupLayouts[id]
	delete(a.bindGroupLayouts, id)
	a.mu.Unlock()
	if ok {
		a.hal.DestroyBindGroupLayout(layout)
	}
}

func (a *gpuAdapter) CreatePipelineLayout(layoutIDs []BindGroupLayoutID) (PipelineLayoutID, error) {
	a.mu.RLock()
	layouts := make([]hal.BindGroupLayout, len(layoutIDs))
	for i, id := range layoutIDs {
		layout, ok := a.bindGroupLayouts[id]
		if !ok {
			a.mu.RUnlock()
			return InvalidID, fmt.Errorf("%w: bind group layout %d not found", ErrBackendError, id)
		}
		layouts[i] = layout
	}
	a.mu.RUnlock()

	pl, err := a.hal.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{BindGroupLayouts: layouts})
	if err != nil {
		return InvalidID, fmt.Errorf("%w: %v", ErrBackendError, err)
	}
	id := PipelineLayoutID(a.newID())
	a.mu.Lock()
	a.pipelineLayouts[id] = pl
	a.mu.Unlock()
	return id, nil
}

func (a *gpuAdapter) DestroyPipelineLayout(id PipelineLayoutID) {
	a.mu.Lock()
	pl, ok := a.pipelineLayouts[id]
	delete(a.pipelineLayouts, id)
	a.mu.Unlock()
	if ok {
		a.hal.DestroyPipelineLayout(pl)
	}
}

func (a *gpuAdapter) CreateComputePipeline(desc *ComputePipelineDesc) (ComputePipelineID, error) {
	a.mu.RLock()
	module, okM := a.shaderModules[desc.Module]
	layout, okL := a.pipelineLayouts[desc.PipelineLayout]
	a.mu.RUnlock()
	if !okM {
		return InvalidID, fmt.Errorf("%w: shader module %d not found", ErrBackendError, desc.Module)
	}
	if !okL {
		return InvalidID, fmt.Errorf("%w: pipeline layout %d not found", ErrBackendError, desc.PipelineLayout)
	}

	pipeline, err := a.hal.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:          desc.Label,
		Layout:         layout,
		Module:         module,
		EntryPoint:     desc.EntryPoint,
	})
	if err != nil {
		return InvalidID, fmt.Errorf("%w: %v", ErrBackendError, err)
	}
	id := ComputePipelineID(a.newID())
	a.mu.Lock()
	a.computePipelines[id] = pipeline
	a.mu.Unlock()
	return id, nil
}

func (a *gpuAdapter) DestroyComputePipeline(id ComputePipelineID) {
	a.mu.Lock()
	p, ok := a.computePipelines[id]
	delete(a.computePipelines, id)
	a.mu.Unlock()
	if ok {
		a.hal.DestroyComputePipeline(p)
	}
}

func (a *gpuAdapter) CreateBindGroup(layoutID BindGroupLayoutID, entries []BindGroupEntry) (BindGroupID, error) {
	a.mu.RLock()
	layout, ok := a.bindGroupLayouts[layoutID]
	if !ok {
		a.mu.RUnlock()
		return InvalidID, fmt.Errorf("%w: bind group layout %d not found", ErrBackendError, layoutID)
	}
	halEntries := make([]hal.BindGroupEntry, len(entries))
	for i, e := range entries {
		buf, ok := a.buffers[e.Buffer]
		if !ok {
			a.mu.RUnlock()
			return InvalidID, fmt.Errorf("%w: buffer %d not found", ErrBackendError, e.Buffer)
		}
		halEntries[i] = hal.BindGroupEntry{Binding: e.Binding, Buffer: buf, Offset: e.Offset, Size: e.Size}
	}
	a.mu.RUnlock()

	group, err := a.hal.CreateBindGroup(&hal.BindGroupDescriptor{Layout: layout, Entries: halEntries})
	if err != nil {
		return InvalidID, fmt.Errorf("%w: %v", ErrBackendError, err)
	}
	id := BindGroupID(a.newID())
	a.mu.Lock()
	a.bindGroups[id] = group
	a.mu.Unlock()
	return id, nil
}

func (a *gpuAdapter) DestroyBindGroup(id BindGroupID) {
	a.mu.Lock()
	g, ok := a.bindGroups[id]
	delete(a.bindGroups, id)
	a.mu.Unlock()
	if ok {
		a.hal.DestroyBindGroup(g)
	}
}

func (a *gpuAdapter) BeginComputePass() ComputePassEncoder {
	return &gpuComputePass{adapter: a, encoder: a.hal.BeginComputePass()}
}

func (a *gpuAdapter) Submit()   { a.hal.Submit() }
func (a *gpuAdapter) WaitIdle() { a.hal.WaitIdle() }

func (a *gpuAdapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.computePipelines {
		a.hal.DestroyComputePipeline(p)
	}
	for _, pl := range a.pipelineLayouts {
		a.hal.DestroyPipelineLayout(pl)
	}
	for _, l := range a.bindGroupLayouts {
		a.hal.DestroyBindGroupLayout(l)
	}
	for _, m := range a.shaderModules {
		a.hal.DestroyShaderModule(m)
	}
	for _, b := range a.buffers {
		a.hal.DestroyBuffer(b)
	}
}

type gpuComputePass struct {
	adapter *gpuAdapter
	encoder hal.ComputePassEncoder
}

func (p *gpuComputePass) SetPipeline(id ComputePipelineID) {
	p.adapter.mu.RLock()
	pipeline := p.adapter.computePipelines[id]
	p.adapter.mu.RUnlock()
	p.encoder.SetPipeline(pipeline)
}

func (p *gpuComputePass) SetBindGroup(index uint32, id BindGroupID) {
	p.adapter.mu.RLock()
	group := p.adapter.bindGroups[id]
	p.adapter.mu.RUnlock()
	p.encoder.SetBindGroup(index, group)
}

func (p *gpuComputePass) Dispatch(x, y, z uint32) { p.encoder.Dispatch(x, y, z) }
func (p *gpuComputePass) End()                     { p.encoder.End() }

func convertBufferUsage(usage BufferUsage) hal.BufferUsage {
	var out hal.BufferUsage
	if usage&BufferUsageMapRead != 0 {
		out |= hal.BufferUsageMapRead
	}
	if usage&BufferUsageMapWrite != 0 {
		out |= hal.BufferUsageMapWrite
	}
	if usage&BufferUsageCopySrc != 0 {
		out |= hal.BufferUsageCopySrc
	}
	if usage&BufferUsageCopyDst != 0 {
		out |= hal.BufferUsageCopyDst
	}
	if usage&BufferUsageStorage != 0 {
		out |= hal.BufferUsageStorage
	}
	if usage&BufferUsageUniform != 0 {
		out |= hal.BufferUsageUniform
	}
	return out
}

func convertBindingType(t BindingType) hal.BufferBindingType {
	switch t {
	case BindingTypeUniformBuffer:
		return hal.BufferBindingTypeUniform
	case BindingTypeReadOnlyStorageBuffer:
		return hal.BufferBindingTypeReadOnlyStorage
	default:
		return hal.BufferBindingTypeStorage
	}
}

// createDeviceAndQueue requests a logical device and its queue, and
// recovers the underlying hal.Device needed for shader/bind-group creation.
// Split out so newGPUAdapter's happy path reads top to bottom.
func createDeviceAndQueue(instance *core.Instance, adapterID core.AdapterID) (core.DeviceID, core.QueueID, hal.Device, error) {
	deviceID, err := instance.RequestDevice(adapterID, &gputypes.DeviceDescriptor{Label: "rasterkernel-device"})
	if err != nil {
		return core.DeviceID{}, core.QueueID{}, nil, fmt.Errorf("%w: request device: %v", ErrBackendError, err)
	}
	queueID, err := instance.GetDeviceQueue(deviceID)
	if err != nil {
		return core.DeviceID{}, core.QueueID{}, nil, fmt.Errorf("%w: get queue: %v", ErrBackendError, err)
	}
	halDevice, err := instance.HalDevice(deviceID)
	if err != nil {
		return core.DeviceID{}, core.QueueID{}, nil, fmt.Errorf("%w: hal device handle: %v", ErrBackendError, err)
	}
	return deviceID, queueID, halDevice, nil
}
