// Package pipeline implements a name-indexed buffer/kernel registry:
// binding a buffer or kernel under a name wires it to every site that
// already references that name, in either order, with rebinding
// replacing the previous wiring rather than layering onto it.
package pipeline

import (
	"sync"

	"github.com/gogpu/rasterkernel/device"
)

// BoundBuffer is the slice of buffer.Buffer[H, D] a Pipeline needs: a way
// to obtain the buffer's device handle. buffer.Buffer[H, D]'s Buf method
// satisfies this for any H, D.
type BoundBuffer interface {
	Buf(ctx *device.Context) (device.BufferID, error)
}

type site struct {
	kernel *device.Kernel
	index  int
}

// Pipeline owns no lifetimes: buffers and kernels are held by the caller,
// and Pipeline keeps only non-owning references indexed by name, an
// arena-plus-index model that sidesteps what would otherwise be a cyclic
// kernel<->buffer ownership.
type Pipeline struct {
	mu      sync.Mutex
	ctx     *device.Context
	buffers map[string]BoundBuffer
	kernels map[string]*device.Kernel
	reverse map[string][]site
}

// New creates an empty Pipeline. ctx is the Context whose adapter buffer
// handles (Buf) are resolved against when a buffer is bound.
func New(ctx *device.Context) *Pipeline {
	return &Pipeline{
		ctx:     ctx,
		buffers: make(map[string]BoundBuffer),
		kernels: make(map[string]*device.Kernel),
		reverse: make(map[string][]site),
	}
}

// BindBuffer records b under name and immediately sets it as the argument
// at every (kernel, index) site already registered under name, from
// earlier BindKernel calls naming this same argument. Re-binding a name
// that was already bound replaces the buffer seen by every such kernel.
func (p *Pipeline) BindBuffer(name string, b BoundBuffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buffers[name] = b
	id, err := b.Buf(p.ctx)
	if err != nil {
		return err
	}
	for _, s := range p.reverse[name] {
		s.kernel.SetArg(s.index, id)
	}
	return nil
}

// BindKernel records k under name and, for every argument name k's
// program reflected, registers this (kernel, index) site. If a buffer is
// already bound under that argument name, the argument is set
// immediately: binding a kernel after its buffers produces the same
// final wiring as binding it before.
func (p *Pipeline) BindKernel(name string, k *device.Kernel) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.kernels[name] = k
	for argName, idx := range k.ArgIndices() {
		p.reverse[argName] = append(p.reverse[argName], site{kernel: k, index: idx})
		if b, ok := p.buffers[argName]; ok {
			id, err := b.Buf(p.ctx)
			if err != nil {
				return err
			}
			k.SetArg(idx, id)
		}
	}
	return nil
}

// BindKernelsFromProgram enumerates every @compute entry point p's
// program reflected and binds each under its own function name, exactly
// as if BindKernel had been called once per entry point.
func (pl *Pipeline) BindKernelsFromProgram(prog *device.Program) error {
	for _, entry := range prog.EntryPoints() {
		k, err := device.NewKernel(prog, entry)
		if err != nil {
			return err
		}
		if err := pl.BindKernel(entry, k); err != nil {
			return err
		}
	}
	return nil
}

// GetKernel returns the kernel bound under name, or nil if none is.
func (p *Pipeline) GetKernel(name string) *device.Kernel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.kernels[name]
}

// GetBuffer returns the buffer bound under name, or nil if none is.
func (p *Pipeline) GetBuffer(name string) BoundBuffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffers[name]
}
