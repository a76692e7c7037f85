package raster

import (
	"math"
	"sort"
	"sync/atomic"
)

// screenVertex is a clip-space vertex already divided and mapped into
// viewport pixel space: X, Y in pixels, Z in [0,1].
type screenVertex struct {
	X, Y, Z float32
}

// clipToScreen maps a clip-space vertex (x, y, z, w) to viewport pixel
// space: sx = (x/w*0.5+0.5)*vw + ox, sy analogous with height, sz =
// z/w*0.5+0.5.
func clipToScreen(x, y, z, w float32, vp Viewport) screenVertex {
	invW := 1 / w
	return screenVertex{
		X: (x*invW*0.5+0.5)*vp.W + vp.OX,
		Y: (y*invW*0.5+0.5)*vp.H + vp.OY,
		Z: z*invW*0.5 + 0.5,
	}
}

func edge2D(ax, ay, bx, by, cx, cy float32) float32 {
	return (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
}

// barycentric returns the barycentric coordinates of (px, py) against
// triangle (p0, p1, p2), in screen space.
func barycentric(px, py float32, p0, p1, p2 [2]float32) (a, b, c float32) {
	area := edge2D(p0[0], p0[1], p1[0], p1[1], p2[0], p2[1])
	if area == 0 {
		return 1, 0, 0
	}
	a = edge2D(p1[0], p1[1], p2[0], p2[1], px, py) / area
	b = edge2D(p2[0], p2[1], p0[0], p0[1], px, py) / area
	c = edge2D(p0[0], p0[1], p1[0], p1[1], px, py) / area
	return
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

// edgeIntersect finds the (x, z) where the line a->b crosses horizontal
// line y = scanY, with a.Y <= scanY <= b.Y (or the degenerate a.Y==b.Y
// case, where the edge contributes its own x unconditionally).
func edgeIntersect(a, b screenVertex, scanY float32) (x, z float32) {
	if b.Y == a.Y {
		return a.X, a.Z
	}
	t := (scanY - a.Y) / (b.Y - a.Y)
	return lerp(a.X, b.X, t), lerp(a.Z, b.Z, t)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MarkTriangle runs the marker-kernel algorithm for one triangle. clip
// holds the three clip-space vertices (x, y, z, w) in order. width and
// height bound the target framebuffer.
//
// In counting mode (counting == true) only markSize and fragmentSize are
// incremented, matching the protocol of passing a null output buffer to
// the marker: no endpoint is written, only the counts of what would have
// been emitted. markPos/markInfo may be nil in that mode.
//
// markSize and fragmentSize are *uint32 pointers to the Rasterizer's own
// uint32 counters so that concurrent marker invocations across triangles
// (one per goroutine, via dispatchParallel) can reserve output slices
// atomically without a separate counter type.
func MarkTriangle(
	triIdx int,
	clip [3][4]float32,
	vp Viewport,
	width, height int,
	counting bool,
	markPos, markInfo [][4]float32,
	markSize, fragmentSize *uint32,
) {
	s := [3]screenVertex{
		clipToScreen(clip[0][0], clip[0][1], clip[0][2], clip[0][3], vp),
		clipToScreen(clip[1][0], clip[1][1], clip[1][2], clip[1][3], vp),
		clipToScreen(clip[2][0], clip[2][1], clip[2][2], clip[2][3], vp),
	}
	p := [3][2]float32{{s[0].X, s[0].Y}, {s[1].X, s[1].Y}, {s[2].X, s[2].Y}}

	area := edge2D(p[0][0], p[0][1], p[1][0], p[1][1], p[2][0], p[2][1])
	if area <= 0 {
		return // back-facing or degenerate: emit nothing
	}

	order := [3]int{0, 1, 2}
	sort.Slice(order[:], func(i, j int) bool { return s[order[i]].Y < s[order[j]].Y })
	top, mid, bot := s[order[0]], s[order[1]], s[order[2]]

	yStart := clampInt(int(math.Ceil(float64(top.Y))), 0, height-1)
	yEnd := clampInt(int(math.Floor(float64(bot.Y))), 0, height-1)

	for y := yStart; y <= yEnd; y++ {
		scanY := float32(y) + 0.5

		x1, z1 := edgeIntersect(top, bot, scanY)
		var x2, z2 float32
		if scanY < mid.Y {
			x2, z2 = edgeIntersect(top, mid, scanY)
		} else {
			x2, z2 = edgeIntersect(mid, bot, scanY)
		}

		xLf, zL, xRf, zR := x1, z1, x2, z2
		if x2 < x1 {
			xLf, zL, xRf, zR = x2, z2, x1, z1
		}

		colL := clampInt(int(math.Round(float64(xLf))), 0, width-1)
		colR := clampInt(int(math.Round(float64(xRf))), 0, width-1)
		if colR < colL {
			continue
		}

		spanLen := uint32(colR - colL + 1)

		if counting {
			atomic.AddUint32(markSize, 2)
			atomic.AddUint32(fragmentSize, spanLen)
			continue
		}

		base := atomic.AddUint32(markSize, 2) - 2
		atomic.AddUint32(fragmentSize, spanLen)

		aL, bL, cL := barycentric(float32(colL)+0.5, scanY, p[0], p[1], p[2])
		aR, bR, cR := barycentric(float32(colR)+0.5, scanY, p[0], p[1], p[2])

		tri := float32(triIdx)
		markPos[base] = [4]float32{float32(colL), float32(y), zL, tri}
		markPos[base+1] = [4]float32{float32(colR), float32(y), zR, tri}
		markInfo[base] = [4]float32{aL, bL, cL, tri}
		markInfo[base+1] = [4]float32{aR, bR, cR, tri}
	}
}
