package lossy

import (
	"fmt"

	"github.com/deepteams/blockcodec/internal/dsp"
)

// ProcessRow reconstructs, filters and outputs the row whose macroblock
// records were filled in via RowData. In sequential mode everything runs
// inline; with a worker, the previous row's job is synchronized first, the
// double-buffered context is swapped in, and filtering plus output (and, in
// mode 2, reconstruction) run asynchronously.
func (dec *Decoder) ProcessRow(io *Io) error {
	if dec.mbY >= dec.mbH {
		return fmt.Errorf("vp8: row %d out of range", dec.mbY)
	}
	dec.prepareRow()

	ctx := &dec.ctx
	filterRow := dec.filterType > 0 &&
		dec.mbY >= dec.tlMBY && dec.mbY <= dec.brMBY

	if dec.mtMethod == 0 {
		// ctx.id and ctx.fInfo are already set.
		ctx.mbY = dec.mbY
		ctx.filterRow = filterRow
		dec.reconstructRow(ctx)
		if !dec.finishRow(io, ctx) {
			dec.mbY++
			return dec.failure()
		}
	} else {
		// Finish the previous job before touching the context.
		if !dec.worker.sync() {
			return dec.failure()
		}
		ctx.io = *io
		ctx.id = dec.cacheID
		ctx.mbY = dec.mbY
		ctx.filterRow = filterRow
		if dec.mtMethod == 2 {
			// The worker reconstructs from its own buffer copy.
			ctx.mbData, dec.mbData = dec.mbData, ctx.mbData
		} else {
			dec.reconstructRow(ctx)
		}
		if filterRow {
			ctx.fInfo, dec.fInfo = dec.fInfo, ctx.fInfo
		}
		dec.worker.launch(func() bool {
			return dec.finishRow(&dec.ctx.io, &dec.ctx)
		})
		dec.cacheID++
		if dec.cacheID == dec.numCaches {
			dec.cacheID = 0
		}
	}
	dec.mbY++
	return nil
}

// prepareRow derives the per-macroblock filter strengths and dithering
// amplitude for the row about to be processed.
func (dec *Decoder) prepareRow() {
	for mbX := 0; mbX < dec.mbW; mbX++ {
		block := &dec.mbData[mbX]
		if block.Skip {
			block.NonZeroY = 0
			block.NonZeroUV = 0
			block.Dither = 0
		} else {
			block.Dither = 0
			if block.NonZeroUV&0xaaaa == 0 {
				// No significant chroma AC energy: banding-prone.
				block.Dither = uint8(dec.dqm[block.Segment&(NumMBSegments-1)].Dither)
			}
		}
		if dec.filterType > 0 {
			finfo := &dec.fInfo[mbX]
			*finfo = dec.fstrengths[block.Segment&(NumMBSegments-1)][b2i(block.IsI4x4)]
			finfo.FInner = finfo.FInner || !block.Skip
		}
	}
}

// b2i converts bool to int (0 or 1).
func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// finishRow finalizes and transmits one completed row: in worker mode 2 it
// first reconstructs, then filters, dithers, crops and hands the finished
// span to the Put callback, delayed by the filter's cross-row dependency.
// It reports false on user abort or alpha failure.
func (dec *Decoder) finishRow(io *Io, ctx *threadContext) bool {
	extraYRows := kFilterExtraRows[dec.filterType]
	ySize := extraYRows * dec.cacheYStride
	uvSize := (extraYRows / 2) * dec.cacheUVStride
	yOffset := ctx.id * 16 * dec.cacheYStride
	uvOffset := ctx.id * 8 * dec.cacheUVStride
	mbY := ctx.mbY
	isFirstRow := mbY == 0
	isLastRow := mbY >= dec.brMBY-1

	if dec.mtMethod == 2 {
		dec.reconstructRow(ctx)
	}
	if ctx.filterRow {
		dec.filterRow(ctx)
	}
	if dec.dither {
		dec.ditherRow(ctx)
	}

	if io.Put != nil {
		yStart := mbY * 16
		yEnd := (mbY + 1) * 16
		if !isFirstRow {
			// The delay rows at the head of the cache belong to
			// the previous row; output them now that filtering can
			// no longer touch them.
			yStart -= extraYRows
			io.Y = dec.cacheY[yOffset:]
			io.U = dec.cacheU[uvOffset:]
			io.V = dec.cacheV[uvOffset:]
		} else {
			io.Y = dec.cacheY[dec.cacheYOff+yOffset:]
			io.U = dec.cacheU[dec.cacheUVOff+uvOffset:]
			io.V = dec.cacheV[dec.cacheUVOff+uvOffset:]
		}
		if !isLastRow {
			yEnd -= extraYRows
		}
		if yEnd > io.CropBottom {
			yEnd = io.CropBottom
		}
		io.A = nil
		if dec.alphaPlane != nil && yStart < yEnd {
			if !dec.alpha.DecompressAlphaRows(yStart, yEnd-yStart, dec.alphaPlane) {
				return dec.setError(fmt.Errorf("vp8: could not decode alpha data"))
			}
			io.A = dec.alphaPlane[yStart*io.Width:]
		}
		if yStart < io.CropTop {
			deltaY := io.CropTop - yStart
			yStart = io.CropTop
			// deltaY is even: both yStart and CropTop are.
			io.Y = io.Y[dec.cacheYStride*deltaY:]
			io.U = io.U[dec.cacheUVStride*(deltaY>>1):]
			io.V = io.V[dec.cacheUVStride*(deltaY>>1):]
			if io.A != nil {
				io.A = io.A[io.Width*deltaY:]
			}
		}
		if yStart < yEnd {
			io.Y = io.Y[io.CropLeft:]
			io.U = io.U[io.CropLeft>>1:]
			io.V = io.V[io.CropLeft>>1:]
			if io.A != nil {
				io.A = io.A[io.CropLeft:]
			}
			io.MBY = yStart - io.CropTop
			io.MBW = io.CropRight - io.CropLeft
			io.MBH = yEnd - yStart
			if !io.Put(io) {
				return dec.setError(fmt.Errorf("vp8: output rejected by caller"))
			}
		}
	}
	// Rotate the delay rows to the head of the cache before the next lap.
	if ctx.id+1 == dec.numCaches && !isLastRow {
		copy(dec.cacheY[:ySize],
			dec.cacheY[yOffset+16*dec.cacheYStride:yOffset+16*dec.cacheYStride+ySize])
		copy(dec.cacheU[:uvSize],
			dec.cacheU[uvOffset+8*dec.cacheUVStride:uvOffset+8*dec.cacheUVStride+uvSize])
		copy(dec.cacheV[:uvSize],
			dec.cacheV[uvOffset+8*dec.cacheUVStride:uvOffset+8*dec.cacheUVStride+uvSize])
	}
	return true
}

// ditherRow perturbs the chroma planes of banding-prone macroblocks.
func (dec *Decoder) ditherRow(ctx *threadContext) {
	for mbX := dec.tlMBX; mbX < dec.brMBX; mbX++ {
		data := &ctx.mbData[mbX]
		if data.Dither >= minDitherAmp {
			uvOff := dec.cacheUVOff + ctx.id*8*dec.cacheUVStride + mbX*8
			dither8x8(&dec.ditherRand, dec.cacheU, uvOff, dec.cacheUVStride, int(data.Dither))
			dither8x8(&dec.ditherRand, dec.cacheV, uvOff, dec.cacheUVStride, int(data.Dither))
		}
	}
}

// dither8x8 adds a pseudo-random, zero-centered perturbation of amplitude amp
// to one 8x8 chroma block.
func dither8x8(rg *dsp.VP8Random, dst []byte, off, stride, amp int) {
	var dither [8 * 8]byte
	for i := range dither {
		dither[i] = byte(dsp.RandomBits2(rg, dsp.DitherAmpBits+1, amp))
	}
	dsp.DitherCombine8x8(dither[:], dst, off, stride)
}
