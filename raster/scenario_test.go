package raster

import (
	"math"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/gogpu/rasterkernel/device"
	"github.com/gogpu/rasterkernel/shader"
	"github.com/gogpu/rasterkernel/xform"
)

func testCPUContext(t *testing.T) *device.Context {
	t.Helper()
	devices := device.Devices(device.Platforms(), device.KindCPU)
	if len(devices) == 0 {
		t.Fatal("no software device registered")
	}
	ctx, err := device.NewContext(devices[0])
	if err != nil {
		t.Fatalf("new context: %v", err)
	}
	t.Cleanup(ctx.Close)
	return ctx
}

// TestRenderFullScreenTriangleTurnsRed covers a full frame: one triangle
// covering the whole framebuffer, rasterized through every stage, with a
// user fragment kernel that paints every winning fragment red after
// checking it against the resolved depth buffer.
func TestRenderFullScreenTriangleTurnsRed(t *testing.T) {
	ctx := testCPUContext(t)
	const width, height = 8, 8

	r := New(width, height)

	vp := r.Viewport()
	toX := func(sx float32) float32 { return (sx/vp.W - 0.5) * 2 }
	toY := func(sy float32) float32 { return (sy/vp.H - 0.5) * 2 }
	clip := [][4]float32{
		{toX(-4), toY(-4), 0.5, 1},
		{toX(20), toY(-4), 0.5, 1},
		{toX(-4), toY(20), 0.5, 1},
	}

	colorBuffer := r.ColorBuffer()
	depthBuffer := r.DepthBuffer()
	fragPos := r.FragPos()

	fragmentKernel, err := device.NewNativeKernel(ctx, "paintRed", []string{"gclFragPos"}, func(threadID int) {
		p := fragPos[threadID]
		x, y := int(p[0]), int(p[1])
		idx := y*width + x
		if ZBits(p[2]) == atomic.LoadInt32(&depthBuffer[idx]) {
			colorBuffer[idx] = [4]float32{255, 0, 0, 255}
		}
	})
	if err != nil {
		t.Fatalf("new native kernel: %v", err)
	}

	pixels, err := r.Render(ctx, clip, nil, fragmentKernel, len(clip))
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	var want uint32
	{
		cb := [][4]float32{{255, 0, 0, 255}}
		pb := make([]uint32, 1)
		AdaptPixel(0, cb, pb)
		want = pb[0]
	}

	for i, p := range pixels {
		if p != want {
			t.Errorf("pixel %d = %#x, want %#x (red)", i, p, want)
		}
	}
}

// TestRenderSkipsKernelsWhenNil covers the degenerate path where both
// vertex and fragment kernels are nil: Render should still clear and
// pack the framebuffer, leaving every texel at the clear color.
func TestRenderSkipsKernelsWhenNil(t *testing.T) {
	ctx := testCPUContext(t)
	const width, height = 4, 4

	r := New(width, height)
	pixels, err := r.Render(ctx, nil, nil, nil, 0)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	var want uint32
	{
		cb := [][4]float32{clearColor.Array()}
		pb := make([]uint32, 1)
		AdaptPixel(0, cb, pb)
		want = pb[0]
	}
	for i, p := range pixels {
		if p != want {
			t.Errorf("pixel %d = %#x, want %#x (clear color)", i, p, want)
		}
	}
}

// TestScenarioS1SmallTriangleScanlinesAreContiguous marks one small
// triangle against a 20x20 viewport and checks that the emitted
// scanlines form an unbroken run: consecutive y values differ by
// exactly 1, and every pair's left endpoint never sits to the right of
// its right endpoint.
func TestScenarioS1SmallTriangleScanlinesAreContiguous(t *testing.T) {
	vp := Viewport{OX: 0, OY: 0, W: 20, H: 20}
	clip := [3][4]float32{
		{-0.2, 0.4, -0.1, 1},
		{0.1, -0.6, 0.5, 1},
		{0.8, -0.9, 0.9, 1},
	}

	markPos := make([][4]float32, 64)
	markInfo := make([][4]float32, 64)
	var markSize, fragmentSize uint32

	MarkTriangle(0, clip, vp, 20, 20, false, markPos, markInfo, &markSize, &fragmentSize)
	if markSize == 0 {
		t.Fatal("triangle produced no scanlines")
	}

	scanlines := int(markSize / 2)
	for k := 0; k < scanlines; k++ {
		l, r := markPos[2*k], markPos[2*k+1]
		if l[1] != r[1] {
			t.Errorf("scanline %d: endpoint y mismatch, L.y=%v R.y=%v", k, l[1], r[1])
		}
		if l[0] > r[0] {
			t.Errorf("scanline %d: xL=%v > xR=%v", k, l[0], r[0])
		}
		if k > 0 {
			prevY := markPos[2*(k-1)][1]
			if l[1] != prevY+1 {
				t.Errorf("scanline %d: y=%v is not scanline %d's y=%v plus one", k, l[1], k-1, prevY)
			}
		}
	}
}

// TestScenarioS2JointTriangleSharesEdgeEndpoints marks two triangles
// that share an edge (A-C) against a 4000x4000 viewport and checks that
// each triangle's scanlines cross that shared edge at the same (x, y),
// independent of which side its third vertex falls on.
//
// The joint-triangle fixture's second triangle (A, D, C) is wound
// clockwise in screen space under this package's edge2D convention, so
// MarkTriangle would cull it outright; (A, C, D) names the identical
// triangle (same three points, same shared edge) with the winding this
// package's marker requires.
func TestScenarioS2JointTriangleSharesEdgeEndpoints(t *testing.T) {
	vp := Viewport{OX: 0, OY: 0, W: 4000, H: 4000}

	a := [4]float32{0.217, 0.4, -0.1, 1}
	b := [4]float32{-0.145, -0.6, 0.5, 1}
	c := [4]float32{0.828, -0.9, 0.9, 1}
	d := [4]float32{0.645, 0.1, 0.5, 1}

	tri1 := [3][4]float32{a, b, c}
	tri2 := [3][4]float32{a, c, d}

	pos1 := make([][4]float32, 8192)
	info1 := make([][4]float32, 8192)
	pos2 := make([][4]float32, 8192)
	info2 := make([][4]float32, 8192)
	var size1, frag1, size2, frag2 uint32

	MarkTriangle(0, tri1, vp, 4000, 4000, false, pos1, info1, &size1, &frag1)
	MarkTriangle(1, tri2, vp, 4000, 4000, false, pos2, info2, &size2, &frag2)

	if size1 == 0 || size2 == 0 {
		t.Fatal("one of the joint triangles produced no scanlines")
	}
	if size1 != size2 {
		t.Fatalf("scanline counts differ: triangle 1 = %d, triangle 2 = %d", size1/2, size2/2)
	}

	top := clipToScreen(c[0], c[1], c[2], c[3], vp)
	bot := clipToScreen(a[0], a[1], a[2], a[3], vp)

	scanlines := int(size1 / 2)
	for k := 0; k < scanlines; k++ {
		y1 := pos1[2*k][1]
		y2 := pos2[2*k][1]
		if y1 != y2 {
			t.Fatalf("scanline %d: y differs between triangles, %v vs %v", k, y1, y2)
		}

		// The marker snaps span endpoints to the nearest integer column.
		wantX, _ := edgeIntersect(top, bot, y1+0.5)
		wantCol := float32(math.Round(float64(wantX)))
		if !onSharedEdge(pos1[2*k], pos1[2*k+1], wantCol) {
			t.Errorf("scanline %d, triangle 1: neither endpoint sits on the shared A-C edge at column %v (x=%v)", k, wantCol, wantX)
		}
		if !onSharedEdge(pos2[2*k], pos2[2*k+1], wantCol) {
			t.Errorf("scanline %d, triangle 2: neither endpoint sits on the shared A-C edge at column %v (x=%v)", k, wantCol, wantX)
		}
	}
}

func onSharedEdge(l, r [4]float32, wantX float32) bool {
	const eps = 0.01
	return math.Abs(float64(l[0]-wantX)) < eps || math.Abs(float64(r[0]-wantX)) < eps
}

// TestScenarioS3FillSingleScanlineCountsThirtyTwoFragments fills one
// scanline spanning columns 21 through 52 inclusive and checks it
// produces exactly 32 fragments, each one column further right than
// the last.
func TestScenarioS3FillSingleScanlineCountsThirtyTwoFragments(t *testing.T) {
	markPos := [][4]float32{
		{21, 2, 0, 1},
		{52, 2, 0, 1},
	}
	markInfo := [][4]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
	}
	fragPos := make([][4]float32, 64)
	fragInfo := make([][4]float32, 64)
	var fragmentSize uint32

	FillScanline(0, markPos, markInfo, fragPos, fragInfo, &fragmentSize)

	const want = 32
	if fragmentSize != want {
		t.Fatalf("fragmentSize = %d, want %d", fragmentSize, want)
	}
	for i := 1; i < int(fragmentSize); i++ {
		if d := fragPos[i][0] - fragPos[i-1][0]; d != 1 {
			t.Errorf("fragment %d: x advanced by %v, want 1", i, d)
		}
	}
}

// TestScenarioS4DepthResolutionKeepsNearestFragment runs five
// fragments covering three pixels of a 200x200 depth buffer through
// the depth kernel and checks each pixel converges on its nearest
// (smallest z) fragment.
func TestScenarioS4DepthResolutionKeepsNearestFragment(t *testing.T) {
	const width, height = 200, 200
	depthBuffer := make([]int32, width*height)
	for i := range depthBuffer {
		depthBuffer[i] = clearDepth
	}

	fragPos := [][4]float32{
		{2, 3, 0.6, 1},
		{50, 50, 0.2, 1},
		{2, 3, 0.1, 1},
		{6, 7, 0.5, 1},
		{50, 50, 0.01, 1},
	}
	for i := range fragPos {
		DepthTestFragment(i, fragPos, depthBuffer, width)
	}

	cases := []struct {
		idx  int
		z    float32
		name string
	}{
		{3*width + 2, 0.1, "pixel (2,3)"},
		{7*width + 6, 0.5, "pixel (6,7)"},
		{50*width + 50, 0.01, "pixel (50,50)"},
	}
	for _, c := range cases {
		want := ZBits(c.z)
		if got := depthBuffer[c.idx]; got != want {
			t.Errorf("%s: depth = %#x, want %#x (z=%v)", c.name, got, want, c.z)
		}
	}
}

// scenarioS5Samples is the signed sample set double_floating_point_comparison
// sorts by reinterpreted bit pattern.
var scenarioS5Samples = []float64{
	-19.054817824216737, -6.80421153560839, -9.278101722725665, -17.18510762126227,
	1.4881675474870475, -7.998945239584955, -9.345788325262378, -18.138063333632047,
	-23.980307102623037, -4.143562513785255, -26.39036990754327, -0.13864392080461196,
	16.49739530923419, 10.507144889251357, 9.722516732719365, 0.2292182137569041,
	3.114431761965425, 3.4898924949012784, 8.16099389827008, 22.384804688962845,
	-3.115087633774495, 21.17281832632006, -0.9001637039756167, -6.15103889239769,
	2.5030725775315976, 14.48650582302901, -12.977402040776678, -20.912566904765747,
	-5.655231707644738, 6.816473810269541, -1.7090607933072257, 1.7515450346373869,
	-1.3169856930046397, 1.481075096934081, 22.423943228529353, -7.437925942839773,
	-26.327104248747307, 8.284113434441808, 18.33020385023054,
}

// monotoneDepthKey mirrors the depth kernel's float-to-monotone-int key
// trick (ZBits) but for signed float64 input: IEEE-754 bit patterns
// already sort correctly for non-negative values, so only a negative
// value's lower 63 bits need mirroring to restore sort order.
func monotoneDepthKey(v float64) int64 {
	ia := int64(math.Float64bits(v))
	if ia < 0 {
		ia ^= math.MaxInt64
	}
	return ia
}

// TestScenarioS5MonotoneKeySortMatchesNumericSort checks that sorting
// the sample set by monotoneDepthKey produces the same order as sorting
// it by numeric value, across both positive and negative inputs.
func TestScenarioS5MonotoneKeySortMatchesNumericSort(t *testing.T) {
	byKey := append([]float64(nil), scenarioS5Samples...)
	sort.Slice(byKey, func(i, j int) bool {
		return monotoneDepthKey(byKey[i]) < monotoneDepthKey(byKey[j])
	})

	byValue := append([]float64(nil), scenarioS5Samples...)
	sort.Float64s(byValue)

	for i := range byValue {
		if byKey[i] != byValue[i] {
			t.Fatalf("index %d: key-sorted = %v, value-sorted = %v", i, byKey[i], byValue[i])
		}
	}
}

// cubeFace names one axis-aligned face of the unit cube S6 renders, as
// a quad split into two triangles plus its outward normal.
type cubeFace struct {
	v      [4]xform.Vec3
	normal xform.Vec3
}

// unitCube returns the eight-corner unit cube's six faces.
func unitCube() []cubeFace {
	v := [8]xform.Vec3{
		{X: -0.5, Y: -0.5, Z: -0.5}, {X: 0.5, Y: -0.5, Z: -0.5},
		{X: 0.5, Y: 0.5, Z: -0.5}, {X: -0.5, Y: 0.5, Z: -0.5},
		{X: -0.5, Y: -0.5, Z: 0.5}, {X: 0.5, Y: -0.5, Z: 0.5},
		{X: 0.5, Y: 0.5, Z: 0.5}, {X: -0.5, Y: 0.5, Z: 0.5},
	}
	return []cubeFace{
		{v: [4]xform.Vec3{v[0], v[1], v[2], v[3]}, normal: xform.Vec3{Z: -1}},
		{v: [4]xform.Vec3{v[5], v[4], v[7], v[6]}, normal: xform.Vec3{Z: 1}},
		{v: [4]xform.Vec3{v[4], v[0], v[3], v[7]}, normal: xform.Vec3{X: -1}},
		{v: [4]xform.Vec3{v[1], v[5], v[6], v[2]}, normal: xform.Vec3{X: 1}},
		{v: [4]xform.Vec3{v[4], v[5], v[1], v[0]}, normal: xform.Vec3{Y: -1}},
		{v: [4]xform.Vec3{v[3], v[2], v[6], v[7]}, normal: xform.Vec3{Y: 1}},
	}
}

// cubeTriangles flattens the six faces into 12 triangles, each doubled
// with its winding reversed. Whichever winding lands front-facing in
// screen space after the scene's particular rotation survives
// MarkTriangle's cull; the other is discarded, so the cube's visible
// faces render without hand-deriving each face's post-rotation winding.
func cubeTriangles() (positions, normals []xform.Vec3) {
	for _, f := range unitCube() {
		tris := [2][3]xform.Vec3{
			{f.v[0], f.v[1], f.v[2]},
			{f.v[0], f.v[2], f.v[3]},
		}
		for _, tri := range tris {
			positions = append(positions, tri[0], tri[1], tri[2])
			normals = append(normals, f.normal, f.normal, f.normal)
			positions = append(positions, tri[0], tri[2], tri[1])
			normals = append(normals, f.normal, f.normal, f.normal)
		}
	}
	return positions, normals
}

// TestScenarioS6CubeRenderCoversItsSilhouette renders a unit cube
// through the vertex/fragment native-kernel wiring cmd/rasterdemo uses
// and checks the depth buffer resolves a winner under the cube's
// projected silhouette while leaving the background at the clear depth
// bit pattern.
func TestScenarioS6CubeRenderCoversItsSilhouette(t *testing.T) {
	ctx := testCPUContext(t)
	const width, height = 200, 200

	positions, normals := cubeTriangles()
	vertexCount := len(positions)

	model := xform.Compose(
		xform.Rotate(-math.Pi/6, xform.PlaneZOX),
		xform.Rotate(-math.Pi/6, xform.PlaneYOZ),
		xform.Translate(xform.Vec4{Z: -3}),
	)
	proj := xform.Perspective(math.Pi/4, 4.0/3.0, 1, 10)
	mvp := xform.Compose(model, proj)

	lightPos := xform.Vec3{X: -1.5, Y: 3, Z: 2}

	clip := make([][4]float32, vertexCount)

	vertexKernel, err := device.NewNativeKernel(ctx, "vertexMain",
		[]string{shader.AttributeVertex, shader.AttributeNormal, shader.UniformMatrix, shader.InterpPosition},
		func(i int) {
			p := positions[i]
			clip[i] = xform.Apply(xform.Vec4{X: p.X, Y: p.Y, Z: p.Z, W: 1}, mvp).Array()
		})
	if err != nil {
		t.Fatalf("build vertex kernel: %v", err)
	}
	if err := shader.ValidateVertexKernel(vertexKernel); err != nil {
		t.Fatalf("vertex kernel contract: %v", err)
	}

	intensity := make([]float32, vertexCount)
	for i, p := range positions {
		worldPos := xform.Apply(xform.Vec4{X: p.X, Y: p.Y, Z: p.Z, W: 1}, model)
		worldNormal := xform.Apply(xform.Vec4{X: normals[i].X, Y: normals[i].Y, Z: normals[i].Z, W: 0}, model)
		n := xform.Vec3{X: worldNormal.X, Y: worldNormal.Y, Z: worldNormal.Z}.Normalize()
		lightDir := xform.Vec3{
			X: lightPos.X - worldPos.X,
			Y: lightPos.Y - worldPos.Y,
			Z: lightPos.Z - worldPos.Z,
		}.Normalize()
		diffuse := n.Dot(lightDir)
		if diffuse < 0.15 {
			diffuse = 0.15
		}
		intensity[i] = diffuse
	}

	r := New(width, height)
	colorBuffer := r.ColorBuffer()
	depthBuffer := r.DepthBuffer()

	fragmentKernel, err := device.NewNativeKernel(ctx, "fragmentMain",
		[]string{shader.GclFragPos, shader.GclFragInfo, shader.GclColorBuffer, shader.GclBufferSize, shader.GclDepthBuffer},
		func(i int) {
			pos := r.FragPos()[i]
			x, y := int(pos[0]), int(pos[1])
			idx := y*width + x
			if ZBits(pos[2]) != atomic.LoadInt32(&depthBuffer[idx]) {
				return
			}
			info := r.FragInfo()[i]
			triIdx := int(info[3])
			v0, v1, v2 := triIdx*3, triIdx*3+1, triIdx*3+2
			shade := info[0]*intensity[v0] + info[1]*intensity[v1] + info[2]*intensity[v2]
			colorBuffer[idx] = [4]float32{220 * shade, 220 * shade, 220 * shade, 255}
		})
	if err != nil {
		t.Fatalf("build fragment kernel: %v", err)
	}
	if err := shader.ValidateFragmentKernel(fragmentKernel); err != nil {
		t.Fatalf("fragment kernel contract: %v", err)
	}

	if _, err := r.Render(ctx, clip, vertexKernel, fragmentKernel, vertexCount); err != nil {
		t.Fatalf("render: %v", err)
	}

	centerIdx := (height/2)*width + width/2
	if depthBuffer[centerIdx] == clearDepth {
		t.Errorf("center pixel %d: depth still at clear value %#x, cube silhouette not covered", centerIdx, clearDepth)
	}

	cornerIdx := 2*width + 2
	if depthBuffer[cornerIdx] != clearDepth {
		t.Errorf("corner pixel %d: depth = %#x, want clear value %#x (background)", cornerIdx, depthBuffer[cornerIdx], clearDepth)
	}
}
