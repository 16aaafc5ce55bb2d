package lossy

import "github.com/deepteams/blockcodec/internal/dsp"

// precomputeFilterStrengths computes per-segment, per-mode filter levels.
func (dec *Decoder) precomputeFilterStrengths() {
	if dec.filterType <= 0 {
		return
	}
	hdr := &dec.filterHdr
	for s := 0; s < NumMBSegments; s++ {
		var baseLevel int
		if dec.segHdr.UseSegment {
			baseLevel = int(dec.segHdr.FilterStrength[s])
			if !dec.segHdr.AbsoluteDelta {
				baseLevel += hdr.Level
			}
		} else {
			baseLevel = hdr.Level
		}

		for i4x4 := 0; i4x4 <= 1; i4x4++ {
			info := &dec.fstrengths[s][i4x4]
			level := baseLevel
			if hdr.UseLFDelta {
				level += hdr.RefLFDelta[0]
				if i4x4 != 0 {
					level += hdr.ModeLFDelta[0]
				}
			}
			if level < 0 {
				level = 0
			} else if level > 63 {
				level = 63
			}
			if level > 0 {
				ilevel := level
				if hdr.Sharpness > 0 {
					if hdr.Sharpness > 4 {
						ilevel >>= 2
					} else {
						ilevel >>= 1
					}
					if ilevel > 9-hdr.Sharpness {
						ilevel = 9 - hdr.Sharpness
					}
				}
				if ilevel < 1 {
					ilevel = 1
				}
				info.FILevel = uint8(ilevel)
				info.FLimit = uint8(2*level + ilevel)
				if level >= 40 {
					info.HevThresh = 2
				} else if level >= 15 {
					info.HevThresh = 1
				} else {
					info.HevThresh = 0
				}
			} else {
				info.FLimit = 0
			}
			info.FInner = i4x4 != 0
		}
	}
}

// filterRow applies the loop filter to the row described by ctx.
func (dec *Decoder) filterRow(ctx *threadContext) {
	for mbX := dec.tlMBX; mbX < dec.brMBX; mbX++ {
		dec.doFilter(ctx, mbX)
	}
}

// doFilter deblocks one macroblock in the cache line.
//
// Every kernel call describes an edge by two strides: walk advances along
// the edge, step crosses it. A left edge therefore walks by the row stride
// and steps by 1; a top edge walks by 1 and steps by the row stride. The
// delay rows at the head of the cache keep p[off-4*step] in bounds even on
// the first cache line.
func (dec *Decoder) doFilter(ctx *threadContext, mbX int) {
	finfo := &ctx.fInfo[mbX]
	limit := int(finfo.FLimit)
	if limit == 0 {
		return
	}
	mbY := ctx.mbY
	yBPS := dec.cacheYStride
	yOff := dec.cacheYOff + ctx.id*16*yBPS + mbX*16

	if dec.filterType == 1 {
		// Simple filter, luma only.
		y := dec.cacheY
		if mbX > 0 {
			simpleFilter(y, yOff, yBPS, 1, 16, limit+4)
		}
		if finfo.FInner {
			for k := 1; k <= 3; k++ {
				simpleFilter(y, yOff+4*k, yBPS, 1, 16, limit)
			}
		}
		if mbY > 0 {
			simpleFilter(y, yOff, 1, yBPS, 16, limit+4)
		}
		if finfo.FInner {
			for k := 1; k <= 3; k++ {
				simpleFilter(y, yOff+4*k*yBPS, 1, yBPS, 16, limit)
			}
		}
		return
	}

	// Complex filter, luma and chroma. Macroblock edges get the wide
	// 6-tap smoothing, inner edges the 4-tap one.
	y, u, v := dec.cacheY, dec.cacheU, dec.cacheV
	ilevel := int(finfo.FILevel)
	hevT := int(finfo.HevThresh)
	uvBPS := dec.cacheUVStride
	uvOff := dec.cacheUVOff + ctx.id*8*uvBPS + mbX*8

	if mbX > 0 {
		complexFilter(y, yOff, yBPS, 1, 16, limit+4, ilevel, hevT, true)
		complexFilter(u, uvOff, uvBPS, 1, 8, limit+4, ilevel, hevT, true)
		complexFilter(v, uvOff, uvBPS, 1, 8, limit+4, ilevel, hevT, true)
	}
	if finfo.FInner {
		for k := 1; k <= 3; k++ {
			complexFilter(y, yOff+4*k, yBPS, 1, 16, limit, ilevel, hevT, false)
		}
		complexFilter(u, uvOff+4, uvBPS, 1, 8, limit, ilevel, hevT, false)
		complexFilter(v, uvOff+4, uvBPS, 1, 8, limit, ilevel, hevT, false)
	}
	if mbY > 0 {
		complexFilter(y, yOff, 1, yBPS, 16, limit+4, ilevel, hevT, true)
		complexFilter(u, uvOff, 1, uvBPS, 8, limit+4, ilevel, hevT, true)
		complexFilter(v, uvOff, 1, uvBPS, 8, limit+4, ilevel, hevT, true)
	}
	if finfo.FInner {
		for k := 1; k <= 3; k++ {
			complexFilter(y, yOff+4*k*yBPS, 1, yBPS, 16, limit, ilevel, hevT, false)
		}
		complexFilter(u, uvOff+4*uvBPS, 1, uvBPS, 8, limit, ilevel, hevT, false)
		complexFilter(v, uvOff+4*uvBPS, 1, uvBPS, 8, limit, ilevel, hevT, false)
	}
}

// simpleFilter runs the 2-tap filter along an edge of count pixels.
func simpleFilter(p []byte, base, walk, step, count, thresh int) {
	limit := 2*thresh + 1
	for n := 0; n < count; n++ {
		off := base + n*walk
		if needsFilter(p, off, step, limit) {
			applyFilter2(p, off, step)
		}
	}
}

// complexFilter runs the threshold-gated filter along an edge of count
// pixels. High-variance edges keep the narrow 2-tap filter; the rest get
// 6-tap smoothing on macroblock edges and 4-tap on inner ones.
func complexFilter(p []byte, base, walk, step, count, thresh, ithresh, hevT int, mbEdge bool) {
	limit := 2*thresh + 1
	for n := 0; n < count; n++ {
		off := base + n*walk
		if !needsStrongFilter(p, off, step, limit, ithresh) {
			continue
		}
		if highEdgeVariance(p, off, step, hevT) {
			applyFilter2(p, off, step)
		} else if mbEdge {
			applyFilter6(p, off, step)
		} else {
			applyFilter4(p, off, step)
		}
	}
}

// needsFilter is the 4-pixel softness test used by the simple filter.
func needsFilter(p []byte, off, step, limit int) bool {
	p1 := int(p[off-2*step])
	p0 := int(p[off-step])
	q0 := int(p[off])
	q1 := int(p[off+step])
	return 4*abs(p0-q0)+abs(p1-q1) <= limit
}

// needsStrongFilter extends the softness test to all 8 pixels straddling
// the edge, bounding every adjacent difference by ithresh.
func needsStrongFilter(p []byte, off, step, limit, ithresh int) bool {
	p3 := int(p[off-4*step])
	p2 := int(p[off-3*step])
	p1 := int(p[off-2*step])
	p0 := int(p[off-step])
	q0 := int(p[off])
	q1 := int(p[off+step])
	q2 := int(p[off+2*step])
	q3 := int(p[off+3*step])
	if 4*abs(p0-q0)+abs(p1-q1) > limit {
		return false
	}
	return abs(p3-p2) <= ithresh &&
		abs(p2-p1) <= ithresh &&
		abs(p1-p0) <= ithresh &&
		abs(q3-q2) <= ithresh &&
		abs(q2-q1) <= ithresh &&
		abs(q1-q0) <= ithresh
}

// highEdgeVariance reports whether either side of the edge jumps by more
// than the threshold.
func highEdgeVariance(p []byte, off, step, thresh int) bool {
	return abs(int(p[off-2*step])-int(p[off-step])) > thresh ||
		abs(int(p[off])-int(p[off+step])) > thresh
}

// applyFilter2 nudges p0 and q0 toward each other.
func applyFilter2(p []byte, off, step int) {
	p1 := int(p[off-2*step])
	p0 := int(p[off-step])
	q0 := int(p[off])
	q1 := int(p[off+step])
	a := 3*(q0-p0) + sclip1(p1-q1)
	a1 := sclip2((a + 4) >> 3)
	a2 := sclip2((a + 3) >> 3)
	p[off-step] = clamp255(p0 + a2)
	p[off] = clamp255(q0 - a1)
}

// applyFilter4 also spreads half the correction to p1 and q1. It drops the
// p1-q1 term from the base correction.
func applyFilter4(p []byte, off, step int) {
	p1 := int(p[off-2*step])
	p0 := int(p[off-step])
	q0 := int(p[off])
	q1 := int(p[off+step])
	a := 3 * (q0 - p0)
	a1 := sclip2((a + 4) >> 3)
	a2 := sclip2((a + 3) >> 3)
	a3 := (a1 + 1) >> 1
	p[off-2*step] = clamp255(p1 + a3)
	p[off-step] = clamp255(p0 + a2)
	p[off] = clamp255(q0 - a1)
	p[off+step] = clamp255(q1 - a3)
}

// applyFilter6 smooths three pixels on each side with tapering weights.
func applyFilter6(p []byte, off, step int) {
	p2 := int(p[off-3*step])
	p1 := int(p[off-2*step])
	p0 := int(p[off-step])
	q0 := int(p[off])
	q1 := int(p[off+step])
	q2 := int(p[off+2*step])
	a := sclip1(3*(q0-p0) + sclip1(p1-q1))
	a1 := (27*a + 63) >> 7
	a2 := (18*a + 63) >> 7
	a3 := (9*a + 63) >> 7
	p[off-3*step] = clamp255(p2 + a3)
	p[off-2*step] = clamp255(p1 + a2)
	p[off-step] = clamp255(p0 + a1)
	p[off] = clamp255(q0 - a1)
	p[off+step] = clamp255(q1 - a2)
	p[off+2*step] = clamp255(q2 - a3)
}

// Filter math, backed by the precomputed clip tables.

func abs(x int) int {
	return int(dsp.Kabs0(x))
}

func sclip1(v int) int {
	return int(dsp.Ksclip1(v))
}

func sclip2(v int) int {
	return int(dsp.Ksclip2(v))
}

func clamp255(v int) byte {
	return dsp.Kclip1(v)
}
