package raster

import (
	"math"
	"testing"
)

func triangleClip(vp Viewport) [3][4]float32 {
	toX := func(sx float32) float32 { return (sx/vp.W - 0.5) * 2 }
	toY := func(sy float32) float32 { return (sy/vp.H - 0.5) * 2 }
	return [3][4]float32{
		{toX(4), toY(2), 0.5, 1},
		{toX(8), toY(8), 0.5, 1},
		{toX(2), toY(8), 0.5, 1},
	}
}

func TestMarkTriangleCountingMatchesEmission(t *testing.T) {
	vp := Viewport{OX: 0, OY: 0, W: 10, H: 10}
	tri := triangleClip(vp)

	var countedMarkSize, countedFragSize uint32
	MarkTriangle(0, tri, vp, 10, 10, true, nil, nil, &countedMarkSize, &countedFragSize)
	if countedMarkSize == 0 {
		t.Fatal("expected a non-degenerate triangle to touch at least one scanline")
	}

	markPos := make([][4]float32, countedMarkSize)
	markInfo := make([][4]float32, countedMarkSize)
	var emittedMarkSize, emittedFragSize uint32
	MarkTriangle(0, tri, vp, 10, 10, false, markPos, markInfo, &emittedMarkSize, &emittedFragSize)

	if emittedMarkSize != countedMarkSize {
		t.Errorf("markSize mismatch: counting=%d emission=%d", countedMarkSize, emittedMarkSize)
	}
	if emittedFragSize != countedFragSize {
		t.Errorf("fragmentSize mismatch: counting=%d emission=%d", countedFragSize, emittedFragSize)
	}

	for row := 0; row < int(emittedMarkSize)/2; row++ {
		left, right := markPos[2*row], markPos[2*row+1]
		if left[1] != right[1] {
			t.Errorf("row %d: endpoints on different scanlines %v vs %v", row, left[1], right[1])
		}
		if left[0] > right[0] {
			t.Errorf("row %d: left column %v > right column %v", row, left[0], right[0])
		}
		if left[0] < 0 || right[0] > 9 {
			t.Errorf("row %d: column out of [0,9] range: %v, %v", row, left[0], right[0])
		}
		if left[1] < 2 || left[1] > 8 {
			t.Errorf("row %d: scanline %v outside expected [2,8] band", row, left[1])
		}
	}
}

func TestMarkTriangleBackfaceCulled(t *testing.T) {
	vp := Viewport{OX: 0, OY: 0, W: 10, H: 10}
	tri := triangleClip(vp)
	tri[1], tri[2] = tri[2], tri[1] // reverse winding: flips the signed area negative

	markPos := make([][4]float32, 32)
	markInfo := make([][4]float32, 32)
	var markSize, fragSize uint32
	MarkTriangle(0, tri, vp, 10, 10, false, markPos, markInfo, &markSize, &fragSize)

	if markSize != 0 || fragSize != 0 {
		t.Errorf("expected a back-facing triangle to emit nothing, got markSize=%d fragmentSize=%d", markSize, fragSize)
	}
}

func TestBarycentricSumsToOne(t *testing.T) {
	p0 := [2]float32{4, 2}
	p1 := [2]float32{8, 8}
	p2 := [2]float32{2, 8}

	points := [][2]float32{{4, 2}, {8, 8}, {2, 8}, {5, 6}, {4.5, 5}}
	for _, p := range points {
		a, b, c := barycentric(p[0], p[1], p0, p1, p2)
		sum := a + b + c
		if math.Abs(float64(sum-1)) > 1e-4 {
			t.Errorf("point %v: barycentric sum = %v, want 1", p, sum)
		}
	}
}
