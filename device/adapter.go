package device

// Resource IDs. Zero is reserved as the invalid value for every ID type,
// matching the convention the adapter registry and compute-queue code rely
// on to detect "not created" resources.
type (
	BufferID           uint64
	ShaderModuleID     uint64
	ComputePipelineID  uint64
	BindGroupLayoutID  uint64
	PipelineLayoutID   uint64
	BindGroupID        uint64
)

// InvalidID is the zero value shared by every resource ID type above.
const InvalidID = 0

// BufferUsage is a bitmask of the ways a device buffer may be used.
type BufferUsage uint32

const (
	BufferUsageMapRead BufferUsage = 1 << iota
	BufferUsageMapWrite
	BufferUsageCopySrc
	BufferUsageCopyDst
	BufferUsageStorage
	BufferUsageUniform
)

// BindingType identifies the resource kind a bind group entry describes.
type BindingType int

const (
	BindingTypeStorageBuffer BindingType = iota
	BindingTypeReadOnlyStorageBuffer
	BindingTypeUniformBuffer
)

// BindGroupLayoutEntry describes one binding slot in a layout.
type BindGroupLayoutEntry struct {
	Binding        uint32
	Type           BindingType
	MinBindingSize uint64
}

// BindGroupLayoutDesc describes the full set of binding slots a kernel's
// compiled program expects.
type BindGroupLayoutDesc struct {
	Label   string
	Entries []BindGroupLayoutEntry
}

// BindGroupEntry binds one concrete buffer to a binding slot.
type BindGroupEntry struct {
	Binding uint32
	Buffer  BufferID
	Offset  uint64
	Size    uint64
}

// ComputePipelineDesc describes a compute pipeline built from a compiled
// shader module.
type ComputePipelineDesc struct {
	Label          string
	Module         ShaderModuleID
	EntryPoint     string
	PipelineLayout PipelineLayoutID
}

// ComputePassEncoder records the commands of a single dispatch. It is
// single-use: once End is called it must not be used again.
type ComputePassEncoder interface {
	SetPipeline(pipeline ComputePipelineID)
	SetBindGroup(index uint32, group BindGroupID)
	Dispatch(x, y, z uint32)
	End()
}

// Adapter abstracts over a concrete compute backend (a pure-Go software
// fallback or a real GPU driven through gogpu/wgpu). The Context type drives
// every call through whichever Adapter it was constructed with, so the rest
// of the module never branches on backend.
//
// Implementations must be safe for concurrent use: a Context serializes its
// own command queue onto a single worker goroutine, but multiple Contexts
// may share one Adapter.
type Adapter interface {
	// Name identifies the adapter for logging and diagnostics.
	Name() string

	// SupportsCompute reports whether this adapter can actually dispatch
	// compute work on a GPU. The software adapter returns false; the
	// pipeline behaves identically either way, just slower.
	SupportsCompute() bool

	MaxWorkgroupSize() [3]uint32
	MaxBufferSize() uint64

	CreateShaderModule(spirv []uint32, wgslSource, label string) (ShaderModuleID, error)
	DestroyShaderModule(id ShaderModuleID)

	CreateBuffer(size int, usage BufferUsage) (BufferID, error)
	DestroyBuffer(id BufferID)
	WriteBuffer(id BufferID, offset uint64, data []byte) error
	ReadBuffer(id BufferID, offset, size uint64) ([]byte, error)

	CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayoutID, error)
	DestroyBindGroupLayout(id BindGroupLayoutID)
	CreatePipelineLayout(layouts []BindGroupLayoutID) (PipelineLayoutID, error)
	DestroyPipelineLayout(id PipelineLayoutID)
	CreateComputePipeline(desc *ComputePipelineDesc) (ComputePipelineID, error)
	DestroyComputePipeline(id ComputePipelineID)
	CreateBindGroup(layout BindGroupLayoutID, entries []BindGroupEntry) (BindGroupID, error)
	DestroyBindGroup(id BindGroupID)

	BeginComputePass() ComputePassEncoder
	Submit()
	WaitIdle()

	Close()
}
