package buffer

import "github.com/gogpu/rasterkernel/xform"

// Vec4Converter is the built-in specialization for the 4-column vector
// used at the host/device boundary (vertex positions, RGBA colors,
// UniformMatrix rows packed as four Vec4 buffers). Lossless: both sides
// are float32.
type Vec4Converter struct{}

func (Vec4Converter) ToDevice(v xform.Vec4) [4]float32 { return v.Array() }
func (Vec4Converter) ToHost(v [4]float32) xform.Vec4 {
	return xform.Vec4{X: v[0], Y: v[1], Z: v[2], W: v[3]}
}

// Vec3Converter is the built-in specialization for the 3-column vector
// used for vertex normals.
type Vec3Converter struct{}

func (Vec3Converter) ToDevice(v xform.Vec3) [3]float32 { return v.Array() }
func (Vec3Converter) ToHost(v [3]float32) xform.Vec3 {
	return xform.Vec3{X: v[0], Y: v[1], Z: v[2]}
}
