package device

import (
	"fmt"

	"github.com/gogpu/rasterkernel/internal/rlog"
)

// CompileFlags carries compiler options analogous to OpenCL's build-options
// string. rasterkernel's WGSL toolchain (naga) takes no such flags today;
// the type exists so callers porting OpenCL build code have somewhere to
// put them without the call signature changing later.
type CompileFlags struct {
	Defines map[string]string
}

// Program is compiled WGSL source bound to one Context. It owns the
// backend shader module (when the adapter supports compute) and the
// name->binding-index map reflectBindings extracted from the source, which
// Kernel uses to resolve SetArg calls by name.
type Program struct {
	ctx     *Context
	source  string
	module  ShaderModuleID
	args    map[string]int
	entries []string
}

// Compile builds a Program from WGSL source against ctx's adapter.
//
// On an adapter that supports compute, this also asks the backend to
// compile the module (WGSL -> SPIR-V via naga for the gpu adapter) so
// compile errors surface here rather than at first dispatch. On an
// adapter that does not (software, gogpu), the shader module is recorded
// without compilation: those adapters execute kernels through Kernel's
// native Go body instead, so WGSL never actually runs there, but a
// Program built against them must still succeed so code paths that don't
// depend on the difference don't have to special-case it.
func Compile(ctx *Context, source string, flags CompileFlags) (*Program, error) {
	decls := reflectBindings(source)
	argIdx := argIndexMap(decls)

	var spirv []uint32
	if ctx.Adapter().SupportsCompute() {
		var err error
		spirv, err = compileWGSL(source)
		if err != nil {
			rlog.Get().Warn("device: wgsl compile failed", "error", err, "source_head", headOf(source, 80))
			return nil, fmt.Errorf("%w: %v", ErrCompile, err)
		}
	}

	module, err := ctx.Adapter().CreateShaderModule(spirv, source, "rasterkernel-program")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompile, err)
	}

	return &Program{
		ctx:     ctx,
		source:  source,
		module:  module,
		args:    argIdx,
		entries: reflectEntryPoints(source),
	}, nil
}

// ArgIndices returns the module-scope binding index reflected for each
// resource name declared in the program's WGSL source.
func (p *Program) ArgIndices() map[string]int {
	out := make(map[string]int, len(p.args))
	for k, v := range p.args {
		out[k] = v
	}
	return out
}

// EntryPoints lists the @compute function names reflected from the
// program's source, in source order.
func (p *Program) EntryPoints() []string {
	return append([]string(nil), p.entries...)
}

func (p *Program) Close() {
	p.ctx.Adapter().DestroyShaderModule(p.module)
}

func headOf(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
