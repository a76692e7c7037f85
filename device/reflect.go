package device

import (
	"regexp"
	"sort"
)

// bindingDecl is one module-scope resource declaration extracted from a
// WGSL program: `@group(G) @binding(B) var<...> name: Type;`
type bindingDecl struct {
	group   uint32
	binding uint32
	name    string
}

// wgslBindingRE matches a WGSL module-scope resource variable declaration,
// capturing its group index, binding index, and variable name. The
// pattern is not anchored to the start of a line, but it only matches
// `@group` followed by `@binding` followed by `var`, separated by
// whitespace alone; other attribute orders are not recognised.
var wgslBindingRE = regexp.MustCompile(
	`@group\(\s*(\d+)\s*\)\s*@binding\(\s*(\d+)\s*\)\s*var(?:<[^>]*>)?\s+(\w+)\s*:`,
)

// reflectBindings scans an entire WGSL program for module-scope resource
// declarations and returns them ordered by binding index.
//
// OpenCL exposes kernel arguments as a per-kernel positional parameter
// list, reflectable by name through clGetKernelArgInfo. WGSL has no
// equivalent: compute entry points reference module-scope `var<storage>`
// / `var<uniform>` declarations shared across every entry point compiled
// from the module, with no per-entry-point argument list at all. Kernel
// argument reflection therefore works by scanning the whole program text
// for these declarations instead of inspecting one kernel's signature;
// the binding index stands in for the positional argument index OpenCL
// code expects.
func reflectBindings(source string) []bindingDecl {
	matches := wgslBindingRE.FindAllStringSubmatch(source, -1)
	decls := make([]bindingDecl, 0, len(matches))
	for _, m := range matches {
		decls = append(decls, bindingDecl{
			group:   parseUintOrZero(m[1]),
			binding: parseUintOrZero(m[2]),
			name:    m[3],
		})
	}
	sort.Slice(decls, func(i, j int) bool {
		if decls[i].group != decls[j].group {
			return decls[i].group < decls[j].group
		}
		return decls[i].binding < decls[j].binding
	})
	return decls
}

// argIndexMap builds the name->binding-index map NewKernel uses to resolve
// SetArg calls by name, restricted to group 0: rasterkernel never emits
// more than one bind group per kernel.
func argIndexMap(decls []bindingDecl) map[string]int {
	out := make(map[string]int, len(decls))
	for _, d := range decls {
		if d.group == 0 {
			out[d.name] = int(d.binding)
		}
	}
	return out
}

// computeEntryRE matches a WGSL compute entry point's function name,
// tolerating any attributes (workgroup_size, etc.) between @compute and
// the fn keyword.
var computeEntryRE = regexp.MustCompile(`(?s)@compute.*?fn\s+(\w+)\s*\(`)

// reflectEntryPoints returns the name of every @compute fn in source, used
// by bind_kernels_from_program to enumerate "all kernels in a program"
// without the caller naming them individually.
func reflectEntryPoints(source string) []string {
	matches := computeEntryRE.FindAllStringSubmatch(source, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

func parseUintOrZero(s string) uint32 {
	var v uint32
	for _, c := range s {
		if c < '0' || c > '9' {
			return v
		}
		v = v*10 + uint32(c-'0')
	}
	return v
}
