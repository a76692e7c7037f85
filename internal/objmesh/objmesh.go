// Package objmesh loads the handful of Wavefront OBJ directives a demo
// needs into flat, buffer-ready vertex arrays. Full OBJ support (polygon
// fanning, material groups, smoothing groups, multiple objects per file)
// is out of scope; this package exists only to get a triangle mesh off
// disk and into a rasterizer.Render call.
package objmesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Mesh holds one triangle mesh flattened to per-face-vertex attribute
// arrays: index i of each slice describes the same vertex, so pushing
// them directly into buffer.FromLiteral needs no further indirection.
// Len() is always a multiple of 3.
type Mesh struct {
	Position []Vec3
	Normal   []Vec3
	TexCoord []Vec2
}

// Vec3 is a position or normal component triple, kept independent of
// xform.Vec3 so this package has no dependency on the rasterizer.
type Vec3 struct{ X, Y, Z float32 }

// Vec2 is a texture coordinate pair.
type Vec2 struct{ U, V float32 }

// Len returns the number of face-vertices in the mesh (3 per triangle).
func (m *Mesh) Len() int { return len(m.Position) }

// Load reads the OBJ file at path and returns its flattened mesh.
func Load(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("objmesh: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses OBJ directives from r: v, vn, vt, and triangular f
// lines only. A face referencing more than 3 vertices is an error; OBJ
// polygon fanning is not implemented. Faces may omit normal and/or
// texture-coordinate indices (the common "f v1 v2 v3" form), in which
// case Mesh.Normal / Mesh.TexCoord are left empty.
func Decode(r io.Reader) (*Mesh, error) {
	var positions, normals []Vec3
	var texCoords []Vec2
	mesh := &Mesh{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		directive, args := fields[0], fields[1:]
		switch directive {
		case "v":
			v, err := parseVec3(args)
			if err != nil {
				return nil, fmt.Errorf("objmesh: line %d: v: %w", line, err)
			}
			positions = append(positions, v)
		case "vn":
			v, err := parseVec3(args)
			if err != nil {
				return nil, fmt.Errorf("objmesh: line %d: vn: %w", line, err)
			}
			normals = append(normals, v)
		case "vt":
			v, err := parseVec2(args)
			if err != nil {
				return nil, fmt.Errorf("objmesh: line %d: vt: %w", line, err)
			}
			texCoords = append(texCoords, v)
		case "f":
			if len(args) != 3 {
				return nil, fmt.Errorf("objmesh: line %d: f: %d vertices, only triangles are supported (no polygon fanning)", line, len(args))
			}
			for _, ref := range args {
				pi, ni, ti, err := parseFaceRef(ref)
				if err != nil {
					return nil, fmt.Errorf("objmesh: line %d: f: %w", line, err)
				}
				p, err := resolveIndex(positions, pi)
				if err != nil {
					return nil, fmt.Errorf("objmesh: line %d: f: position %w", line, err)
				}
				mesh.Position = append(mesh.Position, p)
				if ni != 0 {
					n, err := resolveIndex(normals, ni)
					if err != nil {
						return nil, fmt.Errorf("objmesh: line %d: f: normal %w", line, err)
					}
					mesh.Normal = append(mesh.Normal, n)
				}
				if ti != 0 {
					tc, err := resolveIndex(texCoords, ti)
					if err != nil {
						return nil, fmt.Errorf("objmesh: line %d: f: texcoord %w", line, err)
					}
					mesh.TexCoord = append(mesh.TexCoord, tc)
				}
			}
		default:
			// unrecognized directives (o, g, s, mtllib, usemtl, ...) are
			// silently skipped; this loader only needs geometry.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("objmesh: scan: %w", err)
	}
	if len(mesh.Position)%3 != 0 {
		return nil, fmt.Errorf("objmesh: %d face-vertices is not a multiple of 3", len(mesh.Position))
	}
	if len(mesh.Normal) != 0 && len(mesh.Normal) != len(mesh.Position) {
		return nil, fmt.Errorf("objmesh: %d normals for %d positions: faces must consistently include or omit vn indices", len(mesh.Normal), len(mesh.Position))
	}
	if len(mesh.TexCoord) != 0 && len(mesh.TexCoord) != len(mesh.Position) {
		return nil, fmt.Errorf("objmesh: %d texcoords for %d positions: faces must consistently include or omit vt indices", len(mesh.TexCoord), len(mesh.Position))
	}
	return mesh, nil
}

func parseVec3(args []string) (Vec3, error) {
	if len(args) < 3 {
		return Vec3{}, fmt.Errorf("want 3 components, got %d", len(args))
	}
	x, err := strconv.ParseFloat(args[0], 32)
	if err != nil {
		return Vec3{}, err
	}
	y, err := strconv.ParseFloat(args[1], 32)
	if err != nil {
		return Vec3{}, err
	}
	z, err := strconv.ParseFloat(args[2], 32)
	if err != nil {
		return Vec3{}, err
	}
	return Vec3{X: float32(x), Y: float32(y), Z: float32(z)}, nil
}

func parseVec2(args []string) (Vec2, error) {
	if len(args) < 2 {
		return Vec2{}, fmt.Errorf("want 2 components, got %d", len(args))
	}
	u, err := strconv.ParseFloat(args[0], 32)
	if err != nil {
		return Vec2{}, err
	}
	v, err := strconv.ParseFloat(args[1], 32)
	if err != nil {
		return Vec2{}, err
	}
	return Vec2{U: float32(u), V: float32(v)}, nil
}

// parseFaceRef splits a face vertex reference of the form
// "v", "v/t", "v//n", or "v/t/n" into its 1-based indices. A missing
// component reports as 0.
func parseFaceRef(ref string) (posIdx, normIdx, texIdx int, err error) {
	parts := strings.Split(ref, "/")
	posIdx, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("malformed vertex reference %q: %w", ref, err)
	}
	if len(parts) >= 2 && parts[1] != "" {
		texIdx, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("malformed vertex reference %q: %w", ref, err)
		}
	}
	if len(parts) >= 3 && parts[2] != "" {
		normIdx, err = strconv.Atoi(parts[2])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("malformed vertex reference %q: %w", ref, err)
		}
	}
	return posIdx, normIdx, texIdx, nil
}

// resolveIndex converts a 1-based OBJ index (or a negative index
// relative to the end of pool, per the Wavefront OBJ format) into a
// pool element.
func resolveIndex[T any](pool []T, idx int) (T, error) {
	var zero T
	n := len(pool)
	i := idx
	if i < 0 {
		i = n + i
	} else {
		i--
	}
	if i < 0 || i >= n {
		return zero, fmt.Errorf("index %d out of range for %d entries", idx, n)
	}
	return pool[i], nil
}
