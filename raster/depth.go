package raster

import (
	"math"
	"sync/atomic"
)

// DepthTestFragment runs the depth-kernel algorithm for
// fragment index i: interpret its z as a monotone 32-bit integer key
// (the IEEE-754 bit pattern, valid because z is clipped to [0,1] so the
// sign bit is always clear) and atomically minimize it into the depth
// buffer cell at the fragment's (x, y).
func DepthTestFragment(i int, fragPos [][4]float32, depthBuffer []int32, width int) {
	p := fragPos[i]
	x, y := int(p[0]), int(p[1])
	idx := y*width + x
	atomicMinInt32(&depthBuffer[idx], ZBits(p[2]))
}

// ZBits reinterprets a clipped-to-[0,1] depth value as the int32 key
// atomicMinInt32 compares. Exported so the fragment kernel side (which
// must compare its own z against the resolved winner) uses the identical
// conversion.
func ZBits(z float32) int32 {
	return int32(math.Float32bits(z))
}

func atomicMinInt32(cell *int32, v int32) {
	for {
		old := atomic.LoadInt32(cell)
		if v >= old {
			return
		}
		if atomic.CompareAndSwapInt32(cell, old, v) {
			return
		}
	}
}
