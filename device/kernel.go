package device

import (
	"fmt"
	"runtime"
	"sync"
)

// NativeBody is a kernel's CPU fallback implementation: one call per
// thread index in [0, Range()). It exists because there is no WGSL
// interpreter in this module: the software adapter cannot execute
// compiled shader text, so every kernel that needs to run there (any user
// vertex/fragment kernel) must also carry a Go function doing the same
// work the WGSL source describes.
// On a compute-capable adapter the WGSL path runs instead and NativeBody
// is ignored.
type NativeBody func(threadID int)

// Kernel is a named compute entry point bound to a Program, with its
// arguments resolved to WGSL binding indices by name. It is the rough
// analogue of an OpenCL cl_kernel, adapted to WGSL's module-scope binding
// model: SetArg binds a buffer to the binding index reflectBindings found
// for that argument name in the program's source, rather than to a
// positional parameter of this specific entry point.
type Kernel struct {
	program *Program
	entry   string
	argIdx  map[string]int

	mu     sync.Mutex
	args   map[int]BufferID
	rng    int
	native NativeBody

	pipeline     ComputePipelineID
	layout       BindGroupLayoutID
	pipelineLay  PipelineLayoutID
	built        bool
}

// NewKernel creates a Kernel for entry within p. It fails with
// ErrReflectionUnavailable if p's source had no reflectable module-scope
// bindings at all: such a program has nothing a Kernel could bind
// arguments to.
func NewKernel(p *Program, entry string) (*Kernel, error) {
	if len(p.args) == 0 {
		return nil, fmt.Errorf("%w: program has no reflected bindings for entry %q", ErrReflectionUnavailable, entry)
	}
	idx := make(map[string]int, len(p.args))
	for k, v := range p.args {
		idx[k] = v
	}
	return &Kernel{
		program: p,
		entry:   entry,
		argIdx:  idx,
		args:    make(map[int]BufferID),
	}, nil
}

// ArgIndices returns the name->binding-index map this kernel resolves
// SetArgByName against.
func (k *Kernel) ArgIndices() map[string]int {
	out := make(map[string]int, len(k.argIdx))
	for n, i := range k.argIdx {
		out[n] = i
	}
	return out
}

// BoundArgs returns a snapshot of the binding-index -> buffer map this
// kernel currently dispatches with.
func (k *Kernel) BoundArgs() map[int]BufferID {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make(map[int]BufferID, len(k.args))
	for idx, buf := range k.args {
		out[idx] = buf
	}
	return out
}

// SetArg binds buf to the binding index idx.
func (k *Kernel) SetArg(idx int, buf BufferID) {
	k.mu.Lock()
	k.args[idx] = buf
	k.mu.Unlock()
}

// SetArgByName binds buf to the index reflected for the argument named
// name. It reports whether name was found.
func (k *Kernel) SetArgByName(name string, buf BufferID) bool {
	idx, ok := k.argIdx[name]
	if !ok {
		return false
	}
	k.SetArg(idx, buf)
	return true
}

// Range returns the thread count a Dispatch with no explicit range argument
// would use.
func (k *Kernel) Range() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.rng
}

// SetRange sets the default thread count for Dispatch.
func (k *Kernel) SetRange(n int) {
	k.mu.Lock()
	k.rng = n
	k.mu.Unlock()
}

// SetNativeBody installs the CPU fallback body the software adapter runs
// in place of the (uncompilable, on that adapter) WGSL entry point.
func (k *Kernel) SetNativeBody(fn NativeBody) {
	k.mu.Lock()
	k.native = fn
	k.mu.Unlock()
}

// Dispatch runs the kernel over n threads (or k.Range() threads if n<=0).
// On a compute-capable adapter this records a real compute pass bound to
// the kernel's current arguments; otherwise it calls the native body once
// per thread index, spread across a bounded worker pool so CPU fallback
// still parallelizes across cores the way a real dispatch would across
// GPU lanes.
func (k *Kernel) Dispatch(n int) error {
	k.mu.Lock()
	if n <= 0 {
		n = k.rng
	}
	native := k.native
	adapter := k.program.ctx.Adapter()
	k.mu.Unlock()

	if n <= 0 {
		return nil
	}

	if adapter.SupportsCompute() {
		return k.dispatchGPU(n)
	}

	if native == nil {
		return fmt.Errorf("%w: kernel %q has no native body and adapter %q cannot run WGSL directly",
			ErrReflectionUnavailable, k.entry, adapter.Name())
	}
	return dispatchNative(n, native)
}

func dispatchNative(n int, fn NativeBody) error {
	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return nil
	}

	var wg sync.WaitGroup
	next := make(chan int, workers)
	go func() {
		for i := 0; i < n; i++ {
			next <- i
		}
		close(next)
	}()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				fn(i)
			}
		}()
	}
	wg.Wait()
	return nil
}

// dispatchGPU lazily builds the kernel's pipeline and bind group from its
// currently bound arguments and records a one-shot compute pass.
//
// rasterkernel always emits a single bind group at group 0 with one
// binding per reflected argument, every one a read-write storage buffer;
// no binding is treated as read-only.
func (k *Kernel) dispatchGPU(n int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	adapter := k.program.ctx.Adapter()

	if !k.built {
		entries := make([]BindGroupLayoutEntry, 0, len(k.argIdx))
		for _, idx := range k.argIdx {
			entries = append(entries, BindGroupLayoutEntry{
				Binding: uint32(idx),
				Type:    BindingTypeStorageBuffer,
			})
		}
		layout, err := adapter.CreateBindGroupLayout(&BindGroupLayoutDesc{
			Label:   k.entry + ".layout",
			Entries: entries,
		})
		if err != nil {
			return err
		}
		pipelineLayout, err := adapter.CreatePipelineLayout([]BindGroupLayoutID{layout})
		if err != nil {
			return err
		}
		pipeline, err := adapter.CreateComputePipeline(&ComputePipelineDesc{
			Label:          k.entry,
			Module:         k.program.module,
			EntryPoint:     k.entry,
			PipelineLayout: pipelineLayout,
		})
		if err != nil {
			return err
		}
		k.layout, k.pipelineLay, k.pipeline = layout, pipelineLayout, pipeline
		k.built = true
	}

	bindEntries := make([]BindGroupEntry, 0, len(k.args))
	for idx, buf := range k.args {
		bindEntries = append(bindEntries, BindGroupEntry{Binding: uint32(idx), Buffer: buf})
	}
	group, err := adapter.CreateBindGroup(k.layout, bindEntries)
	if err != nil {
		return err
	}
	defer adapter.DestroyBindGroup(group)

	pass := adapter.BeginComputePass()
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, group)

	wg := adapter.MaxWorkgroupSize()
	groups := (uint32(n) + wg[0] - 1) / wg[0]
	if groups == 0 {
		groups = 1
	}
	pass.Dispatch(groups, 1, 1)
	pass.End()
	adapter.Submit()
	adapter.WaitIdle()
	return nil
}

func (k *Kernel) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.built {
		return
	}
	adapter := k.program.ctx.Adapter()
	adapter.DestroyComputePipeline(k.pipeline)
	adapter.DestroyPipelineLayout(k.pipelineLay)
	adapter.DestroyBindGroupLayout(k.layout)
	k.built = false
}
