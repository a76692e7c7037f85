package raster

import (
	"sync/atomic"

	"github.com/gogpu/rasterkernel/device"
	"github.com/gogpu/rasterkernel/promise"
)

// Default initial capacities for the mark and fragment buffers. Stages 4
// and 6 grow these with nextPow2 on demand; these starting sizes just
// avoid a guaranteed resize on a frame's first triangle.
const (
	defaultMarkCapacity = 64
	defaultFragCapacity = 256
)

// Config carries the pipeline sizing knobs a caller may want to tune
// ahead of a frame's first triangle, rather than always eating Stage 4
// or Stage 6's first resize. The zero Config is valid and falls back to
// the package defaults.
type Config struct {
	// InitialMarkCapacity presizes markPos/markInfo. 0 uses the default.
	InitialMarkCapacity int
	// InitialFragCapacity presizes fragPos/fragInfo. 0 uses the default.
	InitialFragCapacity int
}

func (c Config) markCapacity() int {
	if c.InitialMarkCapacity > 0 {
		return c.InitialMarkCapacity
	}
	return defaultMarkCapacity
}

func (c Config) fragCapacity() int {
	if c.InitialFragCapacity > 0 {
		return c.InitialFragCapacity
	}
	return defaultFragCapacity
}

// Rasterizer owns the ten standard buffers of the rasterization
// pipeline and drives a frame through Stages 1-10. The buffers are
// plain Go slices rather than buffer.Buffer instances: every kernel
// that touches them (marker, filler, depth, adapt) is a fixed-function
// kernel this package ships itself, always dispatched through its
// native body, so there is no pluggable-WGSL reason to route them
// through a device buffer handle. See DESIGN.md. A pipeline.Pipeline
// binding a user vertex/fragment kernel against this rasterizer's
// buffers addresses them through the accessor methods below.
type Rasterizer struct {
	width, height int
	viewport      Viewport

	depthBuffer []int32
	colorBuffer [][4]float32
	pixelBuffer []uint32

	markSize     uint32
	fragmentSize uint32
	markPos      [][4]float32
	markInfo     [][4]float32
	fragPos      [][4]float32
	fragInfo     [][4]float32
}

// New allocates a Rasterizer targeting a width x height frame with
// default buffer sizing.
func New(width, height int) *Rasterizer {
	return NewWithConfig(width, height, Config{})
}

// NewWithConfig allocates a Rasterizer targeting a width x height frame,
// presizing its mark and fragment buffers per cfg.
func NewWithConfig(width, height int, cfg Config) *Rasterizer {
	return &Rasterizer{
		width:       width,
		height:      height,
		viewport:    Viewport{OX: 0, OY: 0, W: float32(width), H: float32(height)},
		depthBuffer: make([]int32, width*height),
		colorBuffer: make([][4]float32, width*height),
		pixelBuffer: make([]uint32, width*height),
		markPos:     make([][4]float32, cfg.markCapacity()),
		markInfo:    make([][4]float32, cfg.markCapacity()),
		fragPos:     make([][4]float32, cfg.fragCapacity()),
		fragInfo:    make([][4]float32, cfg.fragCapacity()),
	}
}

func (r *Rasterizer) Width() int         { return r.width }
func (r *Rasterizer) Height() int        { return r.height }
func (r *Rasterizer) Viewport() Viewport { return r.viewport }

// ColorBuffer, DepthBuffer, FragPos and FragInfo expose the backing
// slices a user fragment kernel's native body works on, so the kernel
// and the driver operate on the same underlying memory. Stage 6
// replaces the FragPos and FragInfo slices when a frame has more
// fragments than they hold, so a kernel body reads them through these
// accessors when it runs rather than through a slice taken before
// Render.
func (r *Rasterizer) ColorBuffer() [][4]float32 { return r.colorBuffer }
func (r *Rasterizer) DepthBuffer() []int32      { return r.depthBuffer }
func (r *Rasterizer) FragPos() [][4]float32     { return r.fragPos }
func (r *Rasterizer) FragInfo() [][4]float32    { return r.fragInfo }
func (r *Rasterizer) PixelBuffer() []uint32     { return r.pixelBuffer }

// Render sequences Stages 1-10 on a single promise chain and blocks
// until they complete: the driver appends wait so a frame is
// observably synchronous to its caller. clip holds the
// vertexCount clip-space vertices (x, y, z, w) a prior vertex-shading
// pass produced, grouped three at a time into triangles; vertexKernel
// and fragmentKernel may be nil to skip their stage (e.g. when clip was
// already populated by the caller).
func (r *Rasterizer) Render(ctx *device.Context, clip [][4]float32, vertexKernel, fragmentKernel *device.Kernel, vertexCount int) ([]uint32, error) {
	triangleCount := vertexCount / 3

	p := promise.New(ctx)
	p = p.Then(promise.Call(func() error { r.stageClear(); return nil }))
	p = p.Then(promise.Call(func() error {
		if vertexKernel == nil {
			return nil
		}
		return vertexKernel.Dispatch(vertexCount)
	}))
	p = p.Then(promise.Call(func() error { r.stageMarkProbe(clip, triangleCount); return nil }))
	p = p.Then(promise.Call(func() error { r.stageResizeMarks(); return nil }))
	p = p.Then(promise.Call(func() error { r.stageMarkEmit(clip, triangleCount); return nil }))
	p = p.Then(promise.Call(func() error { r.stageResizeFragments(); return nil }))
	p = p.Then(promise.Call(func() error { r.stageFillScanlines(); return nil }))
	p = p.Then(promise.Call(func() error { r.stageDepthTest(); return nil }))
	p = p.Then(promise.Call(func() error {
		if fragmentKernel == nil {
			return nil
		}
		fragmentKernel.SetRange(int(atomic.LoadUint32(&r.fragmentSize)))
		return fragmentKernel.Dispatch(0)
	}))
	p = p.Then(promise.Call(func() error { r.stageAdaptPixels(); return nil }))

	if _, err := p.Wait(); err != nil {
		return nil, err
	}
	return r.pixelBuffer, nil
}

// stageClear resets the depth buffer to clearDepth and the color buffer
// to clearColor.
func (r *Rasterizer) stageClear() {
	for i := range r.depthBuffer {
		r.depthBuffer[i] = clearDepth
	}
	cc := clearColor.Array()
	for i := range r.colorBuffer {
		r.colorBuffer[i] = cc
	}
}

// stageMarkProbe runs the marker kernel in counting mode over every
// triangle to size Stage 4's resize without writing any endpoints.
func (r *Rasterizer) stageMarkProbe(clip [][4]float32, triangleCount int) {
	atomic.StoreUint32(&r.markSize, 0)
	atomic.StoreUint32(&r.fragmentSize, 0)
	dispatchParallel(triangleCount, func(t int) {
		tri := [3][4]float32{clip[t*3], clip[t*3+1], clip[t*3+2]}
		MarkTriangle(t, tri, r.viewport, r.width, r.height, true, nil, nil, &r.markSize, &r.fragmentSize)
	})
}

// stageResizeMarks grows markPos/markInfo to nextPow2(markSize) if the
// probe found more endpoints than the current capacity.
func (r *Rasterizer) stageResizeMarks() {
	size := atomic.LoadUint32(&r.markSize)
	if size > uint32(len(r.markPos)) || size > uint32(len(r.markInfo)) {
		newCap := nextPow2(size)
		r.markPos = make([][4]float32, newCap)
		r.markInfo = make([][4]float32, newCap)
	}
}

// stageMarkEmit resets both counters and runs the marker kernel for
// real, writing endpoints into markPos/markInfo.
func (r *Rasterizer) stageMarkEmit(clip [][4]float32, triangleCount int) {
	atomic.StoreUint32(&r.markSize, 0)
	atomic.StoreUint32(&r.fragmentSize, 0)
	dispatchParallel(triangleCount, func(t int) {
		tri := [3][4]float32{clip[t*3], clip[t*3+1], clip[t*3+2]}
		MarkTriangle(t, tri, r.viewport, r.width, r.height, false, r.markPos, r.markInfo, &r.markSize, &r.fragmentSize)
	})
}

// stageResizeFragments grows fragPos/fragInfo to nextPow2(fragmentSize)
// if Stage 5's emission found more fragments than the current
// capacity. The filler's own range is set from markSize/2 at dispatch
// time in stageFillScanlines, not here.
func (r *Rasterizer) stageResizeFragments() {
	size := atomic.LoadUint32(&r.fragmentSize)
	if size > uint32(len(r.fragPos)) || size > uint32(len(r.fragInfo)) {
		newCap := nextPow2(size)
		r.fragPos = make([][4]float32, newCap)
		r.fragInfo = make([][4]float32, newCap)
	}
}

// stageFillScanlines resets fragmentSize to 0 and runs the filler
// kernel over markSize/2 scanlines, which re-derives the authoritative
// fragment count used by every later stage.
func (r *Rasterizer) stageFillScanlines() {
	atomic.StoreUint32(&r.fragmentSize, 0)
	scanlineCount := int(atomic.LoadUint32(&r.markSize) / 2)
	dispatchParallel(scanlineCount, func(k int) {
		FillScanline(k, r.markPos, r.markInfo, r.fragPos, r.fragInfo, &r.fragmentSize)
	})
}

// stageDepthTest runs the depth kernel over every resolved fragment.
func (r *Rasterizer) stageDepthTest() {
	n := int(atomic.LoadUint32(&r.fragmentSize))
	dispatchParallel(n, func(i int) {
		DepthTestFragment(i, r.fragPos, r.depthBuffer, r.width)
	})
}

// stageAdaptPixels runs the adapt kernel over every texel, packing the
// float color buffer into the final pixel buffer.
func (r *Rasterizer) stageAdaptPixels() {
	dispatchParallel(r.width*r.height, func(i int) {
		AdaptPixel(i, r.colorBuffer, r.pixelBuffer)
	})
}
