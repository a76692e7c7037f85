package device

import (
	"fmt"
	"sync"

	"github.com/gogpu/rasterkernel/internal/rlog"
)

// Kind filters device enumeration. KindDefault lists every registered
// adapter of DefaultAdapter's priority order (gpu, gogpu, software), in
// that order; KindAll returns one Device per registered adapter.
type Kind int

const (
	KindDefault Kind = iota
	KindCPU
	KindGPU
	KindAll
)

// Platform is an opaque handle standing in for a compute-backend vendor or
// runtime. rasterkernel only ever exposes a single platform, since there
// is one process-wide adapter registry, but the type is kept distinct
// from Device so callers that iterate platforms-then-devices (as OpenCL
// code does) port over without restructuring.
type Platform struct{ name string }

func (p Platform) Name() string { return p.name }

// Platforms returns the platforms known to this process. Always exactly
// one: the registered-adapter namespace.
func Platforms() []Platform {
	return []Platform{{name: "rasterkernel"}}
}

// Device names a specific adapter factory reachable from a Platform.
type Device struct {
	platform    Platform
	adapterName string
}

func (d Device) Platform() Platform { return d.platform }
func (d Device) Name() string       { return d.adapterName }

func kindAdapterNames(kind Kind) []string {
	switch kind {
	case KindCPU:
		return []string{AdapterNameSoftware}
	case KindGPU:
		return []string{AdapterNameGPU, AdapterNameGoGPU}
	case KindAll:
		return AvailableAdapters()
	default: // KindDefault
		return []string{AdapterNameGPU, AdapterNameGoGPU, AdapterNameSoftware}
	}
}

// Devices enumerates the devices of kind available across platforms. An
// adapter name with no registered factory is silently skipped: an empty
// platform is not itself an error, only a later NewContext call against
// a kind with zero devices is.
func Devices(platforms []Platform, kind Kind) []Device {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var out []Device
	for _, p := range platforms {
		for _, name := range kindAdapterNames(kind) {
			if _, ok := adapters[name]; ok {
				out = append(out, Device{platform: p, adapterName: name})
			}
		}
	}
	return out
}

// Context owns one Adapter and the single-worker Queue that serializes
// every operation enqueued against it. At most one Context may be current
// in the process at a time (see ContextGuard). Allocating device
// resources (buffers, shader modules, pipelines) takes the Context as an
// explicit argument and does not consult the current one.
type Context struct {
	device  Device
	adapter Adapter
	queue   *Queue
}

// NewContext creates a Context bound to d's adapter. The adapter is
// constructed (and, for GPU adapters, the real device/queue negotiated)
// as part of this call, so NewContext can fail with ErrBackendError.
func NewContext(d Device) (*Context, error) {
	adapter, err := NewAdapter(d.adapterName)
	if err != nil {
		return nil, err
	}
	rlog.Get().Debug("device: context created", "adapter", adapter.Name())
	return &Context{device: d, adapter: adapter, queue: newQueue()}, nil
}

// NewDefaultContext creates a Context on DefaultAdapter's device.
func NewDefaultContext() (*Context, error) {
	adapter, err := DefaultAdapter()
	if err != nil {
		return nil, err
	}
	d := Device{platform: Platforms()[0], adapterName: adapter.Name()}
	rlog.Get().Debug("device: default context created", "adapter", adapter.Name())
	return &Context{device: d, adapter: adapter, queue: newQueue()}, nil
}

func (c *Context) Adapter() Adapter { return c.adapter }
func (c *Context) Queue() *Queue    { return c.queue }
func (c *Context) Device() Device   { return c.device }

// Close releases the Context's adapter and stops its queue worker. If this
// Context is current, it is cleared first.
func (c *Context) Close() {
	currentMu.Lock()
	if current == c {
		current = nil
	}
	currentMu.Unlock()

	c.queue.Close()
	c.adapter.Close()
}

var (
	currentMu sync.Mutex
	current   *Context
)

// Current returns the process's current context, or ErrNoCurrentContext if
// none has been activated via Use.
//
// "Current context" is modeled as a single process-wide slot guarded by
// a mutex rather than true thread-local storage, which Go has no
// built-in equivalent of.
func Current() (*Context, error) {
	currentMu.Lock()
	defer currentMu.Unlock()
	if current == nil {
		return nil, ErrNoCurrentContext
	}
	return current, nil
}

// ContextGuard holds the capability to use ctx as the current context for
// a scope. Release clears the current-context slot; it is safe to call
// more than once.
type ContextGuard struct {
	ctx      *Context
	released bool
}

// Use makes ctx the current context for the calling scope. It fails with
// ErrRecursiveContext if a context is already current: nesting contexts
// is forbidden. Callers must Release the guard, typically via defer,
// even on a panicking exit path.
func Use(ctx *Context) (*ContextGuard, error) {
	currentMu.Lock()
	defer currentMu.Unlock()
	if current != nil {
		return nil, fmt.Errorf("%w: context %p already current", ErrRecursiveContext, current)
	}
	current = ctx
	return &ContextGuard{ctx: ctx}, nil
}

// Release clears the current-context slot if this guard still holds it.
func (g *ContextGuard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	currentMu.Lock()
	if current == g.ctx {
		current = nil
	}
	currentMu.Unlock()
}
