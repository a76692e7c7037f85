// Package raster implements the rasterizer kernels (marker, filler,
// depth, adapt) and the stage-coordination driver that runs them: the
// data-parallel core that turns a stream of clip-space triangles into a
// packed pixel buffer.
package raster

import "github.com/gogpu/rasterkernel/xform"

// Standard buffer names. Components outside this package only need
// these to bind a matching user kernel argument by name; the driver
// itself addresses its buffers directly.
const (
	NameViewport     = "gclViewport"
	NameBufferSize   = "gclBufferSize"
	NameDepthBuffer  = "gclDepthBuffer"
	NameColorBuffer  = "gclColorBuffer"
	NamePixelBuffer  = "gclPixelBuffer"
	NameMarkSize     = "gclMarkSize"
	NameFragmentSize = "gclFragmentSize"
	NameMarkPos      = "gclMarkPos"
	NameMarkInfo     = "gclMarkInfo"
	NameFragPos      = "gclFragPos"
	NameFragInfo     = "gclFragInfo"
)

// clearDepth is the depth buffer's initial value: INT32_MAX's bit
// pattern, larger than any clamped-to-[0,1] z's float bit pattern.
const clearDepth int32 = 0x7FFFFFFF

// clearColor is the color buffer's initial value: opaque white.
var clearColor = xform.Vec4{X: 255, Y: 255, Z: 255, W: 255}

// nextPow2 returns the smallest power of two >= n (minimum 1).
func nextPow2(n uint32) uint32 {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}

// Viewport is [ox, oy, w, h] as used throughout the rasterization pipeline.
type Viewport struct {
	OX, OY, W, H float32
}

// Array returns the viewport as the 4-float wire layout.
func (v Viewport) Array() [4]float32 { return [4]float32{v.OX, v.OY, v.W, v.H} }
