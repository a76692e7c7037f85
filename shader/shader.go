// Package shader holds the argument-name convention that ties
// user-authored vertex and fragment kernels into the fixed-function
// rasterizer stages. The pipeline package wires a buffer bound under a
// given name to every kernel argument of that name; this package is
// where the required names themselves are declared and where a kernel's
// declared arguments are checked against them before a frame runs.
package shader

import (
	"fmt"
	"strings"

	"github.com/gogpu/rasterkernel/device"
)

// Vertex kernel argument names.
const (
	AttributeVertex = "AttributeVertex"
	AttributeNormal = "AttributeNormal"
	UniformMatrix   = "UniformMatrix"
	InterpPosition  = "InterpPosition"
)

// Fragment kernel argument names.
const (
	GclFragPos      = "gclFragPos"
	GclFragInfo     = "gclFragInfo"
	GclColorBuffer  = "gclColorBuffer"
	GclBufferSize   = "gclBufferSize"
	GclDepthBuffer  = "gclDepthBuffer"
	gclTexturePrefix = "gclTexture"
)

// RequiredVertexArgs are the argument names every vertex kernel must
// accept, in addition to producing InterpPosition as an output.
var RequiredVertexArgs = []string{AttributeVertex, AttributeNormal, UniformMatrix}

// RequiredVertexOutputs are the argument names a vertex kernel must
// declare among its outputs.
var RequiredVertexOutputs = []string{InterpPosition}

// RequiredFragmentArgs are the argument names every fragment kernel must
// accept.
var RequiredFragmentArgs = []string{GclFragPos, GclFragInfo, GclColorBuffer, GclBufferSize, GclDepthBuffer}

func checkNames(k *device.Kernel, required []string) error {
	idx := k.ArgIndices()
	var missing []string
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrShaderContract, strings.Join(missing, ", "))
	}
	return nil
}

// ValidateVertexKernel checks that k declares every required vertex
// argument and output name.
func ValidateVertexKernel(k *device.Kernel) error {
	if err := checkNames(k, RequiredVertexArgs); err != nil {
		return err
	}
	return checkNames(k, RequiredVertexOutputs)
}

// ValidateFragmentKernel checks that k declares every required fragment
// argument name.
func ValidateFragmentKernel(k *device.Kernel) error {
	return checkNames(k, RequiredFragmentArgs)
}

// TextureArg returns an argument name in idx that carries the gclTexture
// naming convention: any argument whose name has this prefix is treated
// as a bound texture, not interpreted by the pipeline driver itself. It
// also reports whether one was found. When several names match, which
// one is returned is not defined (map iteration order).
func TextureArg(idx map[string]int) (string, bool) {
	for name := range idx {
		if strings.HasPrefix(name, gclTexturePrefix) {
			return name, true
		}
	}
	return "", false
}
