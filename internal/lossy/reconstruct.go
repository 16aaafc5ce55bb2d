package lossy

import "github.com/deepteams/blockcodec/internal/dsp"

// checkMode swaps in the boundary-aware DC predictor for macroblocks that
// miss a top or left neighbor.
func checkMode(mbX, mbY, mode int) int {
	if mode == BDCPred {
		if mbX == 0 {
			if mbY == 0 {
				return BDCPredNoTopLeft
			}
			return BDCPredNoLeft
		}
		if mbY == 0 {
			return BDCPredNoTop
		}
	}
	return mode
}

// addDC folds a DC-only residual into the 4x4 block at dst, saving the full
// transform dispatch when every AC coefficient is zero.
func addDC(src []int16, dst []byte) {
	add := (int(src[0]) + 4) >> 3
	for j := 0; j < 4; j++ {
		row := dst[j*BPS : j*BPS+4]
		for i, v := range row {
			row[i] = dsp.Clip8b(int(v) + add)
		}
	}
}

// doTransform picks the inverse transform matching the 2-bit density code
// in the top bits.
func doTransform(bits uint32, src []int16, dst []byte) {
	switch bits >> 30 {
	case 3:
		dsp.Transform(src, dst, false)
	case 2:
		dsp.TransformAC3(src, dst)
	case 1:
		addDC(src, dst)
	default:
		// code 0: no coefficients at all.
	}
}

// doUVTransform reconstructs the four chroma blocks of one plane. Any AC
// bit forces the full transform; otherwise each block with a nonzero DC
// gets the shortcut.
func doUVTransform(bits uint32, src []int16, dst []byte) {
	if bits&0xff == 0 {
		return
	}
	if bits&0xaa != 0 {
		dsp.TransformUV(src, dst)
		return
	}
	if src[0] != 0 {
		addDC(src[0:], dst[0:])
	}
	if src[16] != 0 {
		addDC(src[16:], dst[4:])
	}
	if src[32] != 0 {
		addDC(src[32:], dst[4*BPS:])
	}
	if src[48] != 0 {
		addDC(src[48:], dst[4*BPS+4:])
	}
}

// fillBytes writes v into every byte of dst.
func fillBytes(dst []byte, v byte) {
	for i := range dst {
		dst[i] = v
	}
}

// seedBorders writes the VP8 boundary constants around the work buffer:
// 129 down the left column (and at the corner when a row above exists),
// 127 across the top of the first row, including the top-right strip.
func (dec *Decoder) seedBorders(mbY int) {
	buf := dec.yuvB
	for j := 0; j < 16; j++ {
		buf[YOff+j*BPS-1] = 129
	}
	for j := 0; j < 8; j++ {
		buf[UOff+j*BPS-1] = 129
		buf[VOff+j*BPS-1] = 129
	}
	if mbY > 0 {
		buf[YOff-1-BPS] = 129
		buf[UOff-1-BPS] = 129
		buf[VOff-1-BPS] = 129
	} else {
		fillBytes(buf[YOff-BPS-1:YOff-BPS+16+4], 127)
		fillBytes(buf[UOff-BPS-1:UOff-BPS+8], 127)
		fillBytes(buf[VOff-BPS-1:VOff-BPS+8], 127)
	}
}

// rotateLeftSamples moves the right edge of the previous macroblock into
// the left-context columns, one row of context above the block included.
func (dec *Decoder) rotateLeftSamples() {
	buf := dec.yuvB
	for j := -1; j < 16; j++ {
		copy(buf[YOff+j*BPS-4:YOff+j*BPS], buf[YOff+j*BPS+12:YOff+j*BPS+16])
	}
	for j := -1; j < 8; j++ {
		copy(buf[UOff+j*BPS-4:UOff+j*BPS], buf[UOff+j*BPS+4:UOff+j*BPS+8])
		copy(buf[VOff+j*BPS-4:VOff+j*BPS], buf[VOff+j*BPS+4:VOff+j*BPS+8])
	}
}

// reconstructRow reconstructs all macroblocks of the row described by ctx
// into cache line ctx.id. The work buffer keeps border pixels below the
// plane offsets, so all context reads stay at non-negative indices.
func (dec *Decoder) reconstructRow(ctx *threadContext) {
	mbY := ctx.mbY
	buf := dec.yuvB
	dec.seedBorders(mbY)

	for mbX := 0; mbX < dec.mbW; mbX++ {
		block := &ctx.mbData[mbX]
		yDst := buf[YOff:]
		uDst := buf[UOff:]
		vDst := buf[VOff:]

		if mbX > 0 {
			dec.rotateLeftSamples()
		}

		topYUV := &dec.yuvT[mbX]
		coeffs := block.Coeffs[:]
		bits := block.NonZeroY

		if mbY > 0 {
			copy(buf[YOff-BPS:], topYUV.Y[:])
			copy(buf[UOff-BPS:], topYUV.U[:])
			copy(buf[VOff-BPS:], topYUV.V[:])
		}

		if block.IsI4x4 {
			topRight := buf[YOff-BPS+16:]

			if mbY > 0 {
				if mbX >= dec.mbW-1 {
					// Rightmost column: extend the last top pixel.
					fillBytes(topRight[:4], topYUV.Y[15])
				} else {
					copy(topRight[:4], dec.yuvT[mbX+1].Y[:4])
				}
			}
			// The diagonal 4x4 predictors read the top-right strip one
			// row above each sub-block row; replicate it downward.
			for r := 1; r <= 3; r++ {
				off := r * 4 * BPS
				copy(topRight[off:off+4], topRight[:4])
			}

			for n := 0; n < 16; n++ {
				blockOff := YOff + kScan[n]
				dsp.PredLuma4Direct(int(block.IModes[n]), buf, blockOff)
				doTransform(bits, coeffs[n*16:], buf[blockOff:])
				bits <<= 2
			}
		} else {
			mode := checkMode(mbX, mbY, int(block.IModes[0]))
			dsp.PredLuma16[mode](buf, YOff)
			if bits != 0 {
				for n := 0; n < 16; n++ {
					doTransform(bits, coeffs[n*16:], buf[YOff+kScan[n]:])
					bits <<= 2
				}
			}
		}

		bitsUV := block.NonZeroUV
		mode := checkMode(mbX, mbY, int(block.UVMode))
		dsp.PredChroma8[mode](buf, UOff)
		dsp.PredChroma8[mode](buf, VOff)
		doUVTransform(bitsUV>>0, coeffs[16*16:], uDst)
		doUVTransform(bitsUV>>8, coeffs[20*16:], vDst)

		// Stash the bottom edge as top context for the next row.
		if mbY < dec.mbH-1 {
			copy(topYUV.Y[:], yDst[15*BPS:15*BPS+16])
			copy(topYUV.U[:], uDst[7*BPS:7*BPS+8])
			copy(topYUV.V[:], vDst[7*BPS:7*BPS+8])
		}

		// Transfer the reconstructed macroblock into the cache line.
		yOut := dec.cacheY[dec.cacheYOff+ctx.id*16*dec.cacheYStride+mbX*16:]
		uOut := dec.cacheU[dec.cacheUVOff+ctx.id*8*dec.cacheUVStride+mbX*8:]
		vOut := dec.cacheV[dec.cacheUVOff+ctx.id*8*dec.cacheUVStride+mbX*8:]
		for j := 0; j < 16; j++ {
			copy(yOut[j*dec.cacheYStride:j*dec.cacheYStride+16], yDst[j*BPS:j*BPS+16])
		}
		for j := 0; j < 8; j++ {
			copy(uOut[j*dec.cacheUVStride:j*dec.cacheUVStride+8], uDst[j*BPS:j*BPS+8])
			copy(vOut[j*dec.cacheUVStride:j*dec.cacheUVStride+8], vDst[j*BPS:j*BPS+8])
		}
	}
}
