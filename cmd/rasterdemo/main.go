// Command rasterdemo rasterizes a Wavefront OBJ mesh to a PNG with a
// simple per-vertex directional light, exercising every stage of the
// rasterization pipeline end to end.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"sync/atomic"

	"github.com/gogpu/rasterkernel/device"
	"github.com/gogpu/rasterkernel/internal/objmesh"
	"github.com/gogpu/rasterkernel/internal/rlog"
	"github.com/gogpu/rasterkernel/present"
	"github.com/gogpu/rasterkernel/raster"
	"github.com/gogpu/rasterkernel/shader"
	"github.com/gogpu/rasterkernel/xform"
)

func main() {
	var (
		width  = flag.Int("width", 512, "image width")
		height = flag.Int("height", 512, "image height")
		output = flag.String("output", "rasterdemo.png", "output PNG path")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: rasterdemo [flags] <mesh.obj>")
		os.Exit(2)
	}
	meshPath := flag.Arg(0)
	if _, err := os.Stat(meshPath); err != nil {
		fmt.Fprintf(os.Stderr, "rasterdemo: %v\n", err)
		os.Exit(2)
	}

	rlog.SetLevelFromEnv()
	log := rlog.Get()

	if err := run(meshPath, *width, *height, *output); err != nil {
		log.Error("rasterdemo failed", "error", err)
		os.Exit(1)
	}
}

func run(meshPath string, width, height int, outputPath string) error {
	log := rlog.Get()

	mesh, err := objmesh.Load(meshPath)
	if err != nil {
		return fmt.Errorf("load mesh: %w", err)
	}
	log.Info("loaded mesh", "path", meshPath, "triangles", mesh.Len()/3)

	devices := device.Devices(device.Platforms(), device.KindCPU)
	if len(devices) == 0 {
		return fmt.Errorf("no compute device available")
	}
	ctx, err := device.NewContext(devices[0])
	if err != nil {
		return fmt.Errorf("new context: %w", err)
	}
	defer ctx.Close()

	mvp := buildMVP(mesh, width, height)
	lightDir := xform.Vec3{X: -0.4, Y: -0.6, Z: 0.7}.Normalize()

	clip := make([][4]float32, mesh.Len())
	intensity := make([]float32, mesh.Len())

	vertexKernel, err := device.NewNativeKernel(ctx, "vertexMain",
		[]string{shader.AttributeVertex, shader.AttributeNormal, shader.UniformMatrix, shader.InterpPosition},
		func(i int) {
			p := mesh.Position[i]
			v := xform.Apply(xform.Vec4{X: p.X, Y: p.Y, Z: p.Z, W: 1}, mvp)
			clip[i] = v.Array()

			if len(mesh.Normal) == 0 {
				intensity[i] = 1
				return
			}
			n := mesh.Normal[i]
			nv := xform.Vec3{X: n.X, Y: n.Y, Z: n.Z}.Normalize()
			diffuse := nv.Dot(lightDir)
			if diffuse < 0.15 {
				diffuse = 0.15 // ambient floor so unlit faces aren't pure black
			}
			intensity[i] = diffuse
		})
	if err != nil {
		return fmt.Errorf("build vertex kernel: %w", err)
	}
	if err := shader.ValidateVertexKernel(vertexKernel); err != nil {
		return fmt.Errorf("vertex kernel contract: %w", err)
	}

	r := raster.New(width, height)
	colorBuffer := r.ColorBuffer()
	depthBuffer := r.DepthBuffer()

	baseColor := xform.Vec3{X: 0.85, Y: 0.4, Z: 0.25}

	fragmentKernel, err := device.NewNativeKernel(ctx, "fragmentMain",
		[]string{shader.GclFragPos, shader.GclFragInfo, shader.GclColorBuffer, shader.GclBufferSize, shader.GclDepthBuffer},
		func(i int) {
			pos := r.FragPos()[i]
			x, y := int(pos[0]), int(pos[1])
			idx := y*width + x
			if raster.ZBits(pos[2]) != atomic.LoadInt32(&depthBuffer[idx]) {
				return // a later, nearer fragment already won this pixel
			}

			info := r.FragInfo()[i]
			triIdx := int(info[3])
			v0, v1, v2 := triIdx*3, triIdx*3+1, triIdx*3+2
			shade := info[0]*intensity[v0] + info[1]*intensity[v1] + info[2]*intensity[v2]

			colorBuffer[idx] = [4]float32{
				baseColor.X * shade * 255,
				baseColor.Y * shade * 255,
				baseColor.Z * shade * 255,
				255,
			}
		})
	if err != nil {
		return fmt.Errorf("build fragment kernel: %w", err)
	}
	if err := shader.ValidateFragmentKernel(fragmentKernel); err != nil {
		return fmt.Errorf("fragment kernel contract: %w", err)
	}

	pixels, err := r.Render(ctx, clip, vertexKernel, fragmentKernel, mesh.Len())
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	presenter := present.NewFilePresenter(outputPath, width, height)
	dst := presenter.Lock()
	err = present.WritePixels(dst, pixels)
	presenter.Unlock()
	if err != nil {
		return fmt.Errorf("write pixels: %w", err)
	}
	if err := presenter.Update(); err != nil {
		return fmt.Errorf("present: %w", err)
	}

	log.Info("wrote frame", "path", outputPath, "width", width, "height", height)
	return nil
}

// buildMVP centers and scales mesh to fit the viewport and applies a
// gentle fixed rotation so the demo's output isn't a flat silhouette,
// followed by a perspective projection.
func buildMVP(mesh *objmesh.Mesh, width, height int) xform.Mat4 {
	var min, max xform.Vec3
	if len(mesh.Position) > 0 {
		min, max = vec3(mesh.Position[0]), vec3(mesh.Position[0])
		for _, p := range mesh.Position[1:] {
			v := vec3(p)
			min = xform.Vec3{X: minf(min.X, v.X), Y: minf(min.Y, v.Y), Z: minf(min.Z, v.Z)}
			max = xform.Vec3{X: maxf(max.X, v.X), Y: maxf(max.Y, v.Y), Z: maxf(max.Z, v.Z)}
		}
	}
	center := xform.Vec4{X: (min.X + max.X) / 2, Y: (min.Y + max.Y) / 2, Z: (min.Z + max.Z) / 2}
	extent := maxf(maxf(max.X-min.X, max.Y-min.Y), max.Z-min.Z)
	if extent == 0 {
		extent = 1
	}
	scale := 1.5 / extent

	model := xform.Compose(
		xform.Translate(xform.Vec4{X: -center.X, Y: -center.Y, Z: -center.Z}),
		xform.Scale(scale, scale, scale),
		xform.Rotate(math.Pi/6, xform.PlaneXOY),
		xform.Rotate(math.Pi/8, xform.PlaneYOZ),
		xform.Translate(xform.Vec4{X: 0, Y: 0, Z: 3}),
	)
	proj := xform.Perspective(math.Pi/3, float64(width)/float64(height), 0.1, 100)
	return xform.Compose(model, proj)
}

func vec3(v objmesh.Vec3) xform.Vec3 { return xform.Vec3{X: v.X, Y: v.Y, Z: v.Z} }

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
