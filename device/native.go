package device

import "strings"

// NewNativeKernel builds a Kernel whose only real implementation is a Go
// closure: the synthesized WGSL source exists solely so ArgIndices
// reflects argNames (for pipeline binding and shader-contract checks) and
// so a compute-capable adapter has *something* to compile if this kernel
// is ever dispatched there. On the adapters without compute support,
// software and gogpu, NativeBody runs instead; on the compute-capable gpu
// adapter the empty WGSL body is what gets dispatched.
//
// This is how every demo- and test-authored vertex/fragment kernel is
// built: real data-parallel logic lives in body, argNames only has to name
// the arguments the shader contract or pipeline registry needs to see. The
// fixed-function rasterizer stages (marker, filler, depth, adapt) are not
// built this way; raster runs them as plain Go functions.
func NewNativeKernel(ctx *Context, entry string, argNames []string, body NativeBody) (*Kernel, error) {
	var sb strings.Builder
	for i, name := range argNames {
		sb.WriteString("@group(0) @binding(")
		sb.WriteString(itoa(i))
		sb.WriteString(") var<storage, read_write> ")
		sb.WriteString(name)
		sb.WriteString(" : array<f32>;\n")
	}
	sb.WriteString("@compute @workgroup_size(1)\nfn ")
	sb.WriteString(entry)
	sb.WriteString("() {}\n")

	prog, err := Compile(ctx, sb.String(), CompileFlags{})
	if err != nil {
		return nil, err
	}
	k, err := NewKernel(prog, entry)
	if err != nil {
		return nil, err
	}
	k.SetNativeBody(body)
	return k, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
