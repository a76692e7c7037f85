package raster

import "sync/atomic"

// FillScanline runs the filler-kernel algorithm for scanline
// index k: it reads the endpoint pair markPos[2k]/markPos[2k+1] and
// markInfo[2k]/markInfo[2k+1], reserves a slice of the fragment buffers
// via fragmentSize, and writes one fragment per integer x in [xL, xR].
func FillScanline(
	k int,
	markPos, markInfo [][4]float32,
	fragPos, fragInfo [][4]float32,
	fragmentSize *uint32,
) {
	posL, posR := markPos[2*k], markPos[2*k+1]
	infoL, infoR := markInfo[2*k], markInfo[2*k+1]

	xL, y := posL[0], posL[1]
	xR := posR[0]
	length := int(xR-xL) + 1
	if length <= 0 {
		return
	}

	base := atomic.AddUint32(fragmentSize, uint32(length)) - uint32(length)
	triIdx := infoL[3]

	for i := 0; i < length; i++ {
		var t float32
		if length > 1 {
			t = float32(i) / float32(length-1)
		}
		z := lerp(posL[2], posR[2], t)
		alpha := lerp(infoL[0], infoR[0], t)
		beta := lerp(infoL[1], infoR[1], t)
		gamma := lerp(infoL[2], infoR[2], t)

		fragPos[int(base)+i] = [4]float32{xL + float32(i) + 0.5, y + 0.5, z, triIdx}
		fragInfo[int(base)+i] = [4]float32{alpha, beta, gamma, triIdx}
	}
}
