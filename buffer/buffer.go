// Package buffer implements Buffer[H, D], a typed container with
// on-demand host and device storage and a pluggable host<->device value
// converter, modeling an OpenCL-style cl_mem wrapper generically over Go's
// type parameters instead of C++ template specialization.
package buffer

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/gogpu/rasterkernel/device"
)

// StorageClass controls how a Buffer's device handle relates to host
// memory.
type StorageClass int

const (
	// HostMap marks a buffer whose host contents are copied to the device
	// handle when that handle is first created. The handle is a separate
	// device allocation, not an alias of the host shadow: later host
	// writes reach the device only through Push, and device writes reach
	// the host only through Pull.
	HostMap StorageClass = iota
	// NoAccess marks the buffer host-inaccessible after construction: an
	// independent device-only allocation with no host shadow kept in
	// sync.
	NoAccess
	// Direct denotes a device-side buffer written and read only via
	// explicit Push/Pull transfers.
	Direct
)

// Buffer is a contiguously addressable container of n elements, with a
// host-side type H and a device-side wire type D. Size, StorageClass,
// H, and D are fixed for the life of the Buffer; only element values
// and the lazily allocated shadow arrays and device handle may change.
type Buffer[H, D any] struct {
	mu    sync.Mutex
	n     int
	class StorageClass
	conv  Converter[H, D]

	host   []H
	device []D

	handle    device.BufferID
	handleCtx *device.Context
}

func elemSize[D any]() int {
	var zero D
	return int(unsafe.Sizeof(zero))
}

// FromLiteral builds a Buffer of len(values) elements, copying values
// into the host array immediately. Default storage class is Direct.
func FromLiteral[H, D any](values []H, conv Converter[H, D], class ...StorageClass) *Buffer[H, D] {
	b := newBuffer(len(values), conv, Direct, class)
	b.host = append([]H(nil), values...)
	return b
}

// WithCapacity builds an n-element Buffer with uninitialized contents.
// Default storage class is NoAccess.
func WithCapacity[H, D any](n int, conv Converter[H, D], class ...StorageClass) *Buffer[H, D] {
	return newBuffer(n, conv, NoAccess, class)
}

// Filled builds an n-element Buffer whose host array holds n copies of v.
// Default storage class is HostMap.
func Filled[H, D any](n int, v H, conv Converter[H, D], class ...StorageClass) *Buffer[H, D] {
	b := newBuffer(n, conv, HostMap, class)
	b.host = make([]H, n)
	for i := range b.host {
		b.host[i] = v
	}
	return b
}

func newBuffer[H, D any](n int, conv Converter[H, D], def StorageClass, class []StorageClass) *Buffer[H, D] {
	c := def
	if len(class) > 0 {
		c = class[0]
	}
	return &Buffer[H, D]{n: n, class: c, conv: conv}
}

func (b *Buffer[H, D]) Size() int         { return b.n }
func (b *Buffer[H, D]) SizeInBytes() int  { return b.n * elemSize[D]() }
func (b *Buffer[H, D]) Class() StorageClass { return b.class }

// HostData lazily allocates and returns the host-side shadow array.
func (b *Buffer[H, D]) HostData() []H {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.host == nil {
		b.host = make([]H, b.n)
	}
	return b.host
}

// DeviceData lazily allocates and returns the device-side shadow array.
func (b *Buffer[H, D]) DeviceData() []D {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deviceDataLocked()
}

func (b *Buffer[H, D]) deviceDataLocked() []D {
	if b.device == nil {
		b.device = make([]D, b.n)
	}
	return b.device
}

func devUsageFor(class StorageClass) device.BufferUsage {
	switch class {
	case HostMap:
		return device.BufferUsageMapRead | device.BufferUsageMapWrite |
			device.BufferUsageCopySrc | device.BufferUsageCopyDst | device.BufferUsageStorage
	case NoAccess:
		return device.BufferUsageStorage
	default: // Direct
		return device.BufferUsageCopySrc | device.BufferUsageCopyDst | device.BufferUsageStorage
	}
}

// Buf lazily creates the device-side handle against ctx's adapter. For
// HostMap buffers the device-shadow array is allocated (and, if already
// populated, uploaded) as part of creation so the handle's initial
// content matches the shadow; NoAccess and Direct buffers get an
// independent, zeroed device allocation.
//
// A Buffer's device handle is bound to whichever Context first created
// it; calling Buf again with a different Context is a programming error
// this layer does not expect to occur (the pipeline and promise runtime
// never share a buffer across contexts) and returns AllocationError
// rather than silently rebinding.
func (b *Buffer[H, D]) Buf(ctx *device.Context) (device.BufferID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handle != device.InvalidID {
		if b.handleCtx != ctx {
			return device.InvalidID, fmt.Errorf("%w: buffer already bound to a different context", ErrAllocationError)
		}
		return b.handle, nil
	}

	size := b.SizeInBytes()
	if size == 0 {
		size = 1 // zero-length device buffers are not universally legal
	}
	id, err := ctx.Adapter().CreateBuffer(size, devUsageFor(b.class))
	if err != nil {
		return device.InvalidID, fmt.Errorf("%w: %v", ErrAllocationError, err)
	}

	if b.class == HostMap && b.device != nil {
		if err := ctx.Adapter().WriteBuffer(id, 0, bytesOf(b.device)); err != nil {
			return device.InvalidID, fmt.Errorf("%w: %v", ErrAllocationError, err)
		}
	} else {
		b.deviceDataLocked()
	}

	b.handle, b.handleCtx = id, ctx
	return id, nil
}

// Get reads element i from the host array.
func (b *Buffer[H, D]) Get(i int) (H, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var zero H
	if i < 0 || i >= b.n {
		return zero, fmt.Errorf("%w: index %d, size %d", ErrOutOfRange, i, b.n)
	}
	if b.host == nil {
		return zero, nil
	}
	return b.host[i], nil
}

// Set writes element i of the host array.
func (b *Buffer[H, D]) Set(i int, v H) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= b.n {
		return fmt.Errorf("%w: index %d, size %d", ErrOutOfRange, i, b.n)
	}
	if b.host == nil {
		b.host = make([]H, b.n)
	}
	b.host[i] = v
	return nil
}

// ConvHostToDev copies the host array into the device shadow through the
// H->D converter, element by element.
func (b *Buffer[H, D]) ConvHostToDev() {
	b.mu.Lock()
	defer b.mu.Unlock()
	host := b.host
	if host == nil {
		host = make([]H, b.n)
	}
	dev := b.deviceDataLocked()
	for i, v := range host {
		dev[i] = b.conv.ToDevice(v)
	}
}

// ConvDevToHost copies the device shadow into the host array through the
// D->H converter, element by element.
func (b *Buffer[H, D]) ConvDevToHost() {
	b.mu.Lock()
	defer b.mu.Unlock()
	dev := b.deviceDataLocked()
	if b.host == nil {
		b.host = make([]H, b.n)
	}
	for i, v := range dev {
		b.host[i] = b.conv.ToHost(v)
	}
}

// Push runs the push(B) operation directly: map for write (a no-op at
// this layer, since the software/gpu adapters take raw byte writes, not
// an explicit map step), convert host->device, then write the device bytes.
func (b *Buffer[H, D]) Push(ctx *device.Context) error {
	id, err := b.Buf(ctx)
	if err != nil {
		return err
	}
	b.ConvHostToDev()
	b.mu.Lock()
	data := bytesOf(b.device)
	b.mu.Unlock()
	return ctx.Adapter().WriteBuffer(id, 0, data)
}

// Pull runs the pull(B) operation directly: read the device bytes back
// into the device shadow, then convert device->host.
func (b *Buffer[H, D]) Pull(ctx *device.Context) error {
	id, err := b.Buf(ctx)
	if err != nil {
		return err
	}
	raw, err := ctx.Adapter().ReadBuffer(id, 0, uint64(b.SizeInBytes()))
	if err != nil {
		return err
	}
	b.mu.Lock()
	dev := b.deviceDataLocked()
	copy(bytesOf(dev), raw)
	b.mu.Unlock()
	b.ConvDevToHost()
	return nil
}

// Fill runs the fill(B, pattern) operation: writes size_in_bytes of the
// converted pattern value, repeated across the buffer.
func (b *Buffer[H, D]) Fill(ctx *device.Context, pattern H) error {
	id, err := b.Buf(ctx)
	if err != nil {
		return err
	}
	dv := b.conv.ToDevice(pattern)
	unit := bytesOf([]D{dv})
	buf := make([]byte, b.SizeInBytes())
	for off := 0; off < len(buf); off += len(unit) {
		n := copy(buf[off:], unit)
		_ = n
	}
	return ctx.Adapter().WriteBuffer(id, 0, buf)
}

// bytesOf reinterprets a slice of fixed-layout value elements as bytes.
// D is always a POD wire type (float32, [N]float32, uint32, int32) so
// this reinterpretation is safe and avoids per-element marshaling code.
func bytesOf[D any](data []D) []byte {
	if len(data) == 0 {
		return nil
	}
	sz := int(unsafe.Sizeof(data[0]))
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), sz*len(data))
}
