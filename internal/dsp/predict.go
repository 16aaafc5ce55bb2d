package dsp

// Intra prediction for macroblock reconstruction.
//
// Every PredFunc gets the whole reconstruction buffer plus an offset so that
// buf[off] is the block's top-left sample. The reference samples sit just
// outside the block:
//   - buf[off-BPS+i]   top row
//   - buf[off-1+j*BPS] left column
//   - buf[off-1-BPS]   corner
// Carrying the offset keeps every index non-negative for the bounds checker.

func avg2(a, b byte) byte {
	return byte((int(a) + int(b) + 1) >> 1)
}

func avg3(a, b, c byte) byte {
	return byte((int(a) + 2*int(b) + int(c) + 2) >> 2)
}

// fill writes v into the whole size x size block.
func fill(buf []byte, off, size int, v byte) {
	for j := 0; j < size; j++ {
		row := buf[off+j*BPS : off+j*BPS+size]
		for i := range row {
			row[i] = v
		}
	}
}

// dcMean averages the selected borders, rounding to nearest. With no border
// available the VP8 default of 128 applies.
func dcMean(buf []byte, off, size int, useTop, useLeft bool) byte {
	sum, n := 0, 0
	if useTop {
		for i := 0; i < size; i++ {
			sum += int(buf[off+i-BPS])
		}
		n += size
	}
	if useLeft {
		for j := 0; j < size; j++ {
			sum += int(buf[off-1+j*BPS])
		}
		n += size
	}
	if n == 0 {
		return 128
	}
	return byte((sum + n/2) / n)
}

// verticalPred repeats the top row down the block.
func verticalPred(buf []byte, off, size int) {
	top := buf[off-BPS : off-BPS+size]
	for j := 0; j < size; j++ {
		copy(buf[off+j*BPS:off+j*BPS+size], top)
	}
}

// horizontalPred repeats each left sample across its row.
func horizontalPred(buf []byte, off, size int) {
	for j := 0; j < size; j++ {
		v := buf[off-1+j*BPS]
		row := buf[off+j*BPS : off+j*BPS+size]
		for i := range row {
			row[i] = v
		}
	}
}

// trueMotion predicts top[i] + left[j] - corner, clipped.
func trueMotion(buf []byte, off, size int) {
	corner := int(buf[off-1-BPS])
	for j := 0; j < size; j++ {
		delta := int(buf[off-1+j*BPS]) - corner
		row := buf[off+j*BPS : off+j*BPS+size]
		for i := 0; i < size; i++ {
			row[i] = Clip8b(delta + int(buf[off+i-BPS]))
		}
	}
}

// 16x16 luma modes.

func dc16(buf []byte, off int) { fill(buf, off, 16, dcMean(buf, off, 16, true, true)) }
func tm16(buf []byte, off int) { trueMotion(buf, off, 16) }
func ve16(buf []byte, off int) { verticalPred(buf, off, 16) }
func he16(buf []byte, off int) { horizontalPred(buf, off, 16) }
func dc16NoTop(buf []byte, off int) { fill(buf, off, 16, dcMean(buf, off, 16, false, true)) }
func dc16NoLeft(buf []byte, off int) { fill(buf, off, 16, dcMean(buf, off, 16, true, false)) }
func dc16NoTopLeft(buf []byte, off int) { fill(buf, off, 16, 128) }

// 8x8 chroma modes.

func dc8uv(buf []byte, off int) { fill(buf, off, 8, dcMean(buf, off, 8, true, true)) }
func tm8uv(buf []byte, off int) { trueMotion(buf, off, 8) }
func ve8uv(buf []byte, off int) { verticalPred(buf, off, 8) }
func he8uv(buf []byte, off int) { horizontalPred(buf, off, 8) }
func dc8uvNoTop(buf []byte, off int) { fill(buf, off, 8, dcMean(buf, off, 8, false, true)) }
func dc8uvNoLeft(buf []byte, off int) { fill(buf, off, 8, dcMean(buf, off, 8, true, false)) }
func dc8uvNoTopLeft(buf []byte, off int) { fill(buf, off, 8, 128) }

// 4x4 luma modes.

func dc4(buf []byte, off int) { fill(buf, off, 4, dcMean(buf, off, 4, true, true)) }
func tm4(buf []byte, off int) { trueMotion(buf, off, 4) }

// ve4 smooths the top row (including both neighbors) and repeats it.
func ve4(buf []byte, off int) {
	var smoothed [4]byte
	for i := 0; i < 4; i++ {
		smoothed[i] = avg3(buf[off+i-1-BPS], buf[off+i-BPS], buf[off+i+1-BPS])
	}
	for j := 0; j < 4; j++ {
		copy(buf[off+j*BPS:off+j*BPS+4], smoothed[:])
	}
}

// he4 smooths the left column, duplicating the last sample at the bottom.
func he4(buf []byte, off int) {
	tl := buf[off-1-BPS]
	var l [4]byte
	for j := 0; j < 4; j++ {
		l[j] = buf[off-1+j*BPS]
	}
	vals := [4]byte{
		avg3(tl, l[0], l[1]),
		avg3(l[0], l[1], l[2]),
		avg3(l[1], l[2], l[3]),
		avg3(l[2], l[3], l[3]),
	}
	for j := 0; j < 4; j++ {
		for i := 0; i < 4; i++ {
			buf[off+i+j*BPS] = vals[j]
		}
	}
}

// rd4 (down-right): samples on the same down-right diagonal share one value,
// taken from a smoothed walk over the left column, corner and top row.
func rd4(buf []byte, off int) {
	edge := [9]byte{
		buf[off-1+3*BPS], buf[off-1+2*BPS], buf[off-1+1*BPS], buf[off-1],
		buf[off-1-BPS],
		buf[off-BPS], buf[off+1-BPS], buf[off+2-BPS], buf[off+3-BPS],
	}
	var diag [7]byte
	for k := 0; k < 7; k++ {
		diag[k] = avg3(edge[k], edge[k+1], edge[k+2])
	}
	for j := 0; j < 4; j++ {
		for i := 0; i < 4; i++ {
			buf[off+i+j*BPS] = diag[3+i-j]
		}
	}
}

// ld4 (down-left): anti-diagonals share one value from the smoothed extended
// top row, with the last sample doubled.
func ld4(buf []byte, off int) {
	var t [8]byte
	copy(t[:], buf[off-BPS:off-BPS+8])
	var diag [7]byte
	for k := 0; k < 6; k++ {
		diag[k] = avg3(t[k], t[k+1], t[k+2])
	}
	diag[6] = avg3(t[6], t[7], t[7])
	for j := 0; j < 4; j++ {
		for i := 0; i < 4; i++ {
			buf[off+i+j*BPS] = diag[i+j]
		}
	}
}

// vr4 (vertical-right): even rows take half-sample averages along the top
// edge, odd rows full smoothing; rows 2 and 3 repeat the rows above shifted
// one sample right, with the left column filling the gap.
func vr4(buf []byte, off int) {
	edge := [5]byte{
		buf[off-1-BPS],
		buf[off-BPS], buf[off+1-BPS], buf[off+2-BPS], buf[off+3-BPS],
	}
	l0 := buf[off-1]
	l1 := buf[off-1+BPS]
	l2 := buf[off-1+2*BPS]

	for i := 0; i < 4; i++ {
		buf[off+i] = avg2(edge[i], edge[i+1])
	}
	buf[off+BPS] = avg3(l0, edge[0], edge[1])
	for i := 1; i < 4; i++ {
		buf[off+i+BPS] = avg3(edge[i-1], edge[i], edge[i+1])
	}
	buf[off+2*BPS] = avg3(l1, l0, edge[0])
	buf[off+3*BPS] = avg3(l2, l1, l0)
	for i := 1; i < 4; i++ {
		buf[off+i+2*BPS] = buf[off+i-1]
		buf[off+i+3*BPS] = buf[off+i-1+BPS]
	}
}

// vl4 (vertical-left): even rows interpolate halfway between top samples,
// odd rows smooth over three, shifting right every other row. The two
// bottom-right samples reach further into the extended top row.
func vl4(buf []byte, off int) {
	var t [8]byte
	copy(t[:], buf[off-BPS:off-BPS+8])
	for j := 0; j < 4; j++ {
		for i := 0; i < 4; i++ {
			k := i + j/2
			if j%2 == 0 {
				buf[off+i+j*BPS] = avg2(t[k], t[k+1])
			} else {
				buf[off+i+j*BPS] = avg3(t[k], t[k+1], t[k+2])
			}
		}
	}
	buf[off+3+2*BPS] = avg3(t[4], t[5], t[6])
	buf[off+3+3*BPS] = avg3(t[5], t[6], t[7])
}

// hd4 (horizontal-down): the transpose of vr4, walking down the left edge.
func hd4(buf []byte, off int) {
	t0 := buf[off-BPS]
	t1 := buf[off+1-BPS]
	t2 := buf[off+2-BPS]
	edge := [5]byte{
		buf[off-1-BPS],
		buf[off-1], buf[off-1+BPS], buf[off-1+2*BPS], buf[off-1+3*BPS],
	}

	buf[off+0] = avg2(edge[0], edge[1])
	buf[off+1] = avg3(edge[1], edge[0], t0)
	buf[off+2] = avg3(edge[0], t0, t1)
	buf[off+3] = avg3(t0, t1, t2)
	for j := 1; j < 4; j++ {
		buf[off+j*BPS] = avg2(edge[j], edge[j+1])
		buf[off+1+j*BPS] = avg3(edge[j-1], edge[j], edge[j+1])
		buf[off+2+j*BPS] = buf[off+(j-1)*BPS]
		buf[off+3+j*BPS] = buf[off+1+(j-1)*BPS]
	}
}

// hu4 (horizontal-up): a staircase down the left column, two steps per row,
// saturating at the bottom sample.
func hu4(buf []byte, off int) {
	var l [4]byte
	for j := 0; j < 4; j++ {
		l[j] = buf[off-1+j*BPS]
	}
	steps := [7]byte{
		avg2(l[0], l[1]), avg3(l[0], l[1], l[2]),
		avg2(l[1], l[2]), avg3(l[1], l[2], l[3]),
		avg2(l[2], l[3]), avg3(l[2], l[3], l[3]),
		l[3],
	}
	for j := 0; j < 4; j++ {
		for i := 0; i < 4; i++ {
			k := 2*j + i
			if k > 6 {
				k = 6
			}
			buf[off+i+j*BPS] = steps[k]
		}
	}
}

// PredLuma4Direct dispatches a 4x4 mode through a switch, skipping the
// indirect call through the table.
func PredLuma4Direct(mode int, buf []byte, off int) {
	switch mode {
	case 0:
		dc4(buf, off)
	case 1:
		tm4(buf, off)
	case 2:
		ve4(buf, off)
	case 3:
		he4(buf, off)
	case 4:
		rd4(buf, off)
	case 5:
		vr4(buf, off)
	case 6:
		ld4(buf, off)
	case 7:
		vl4(buf, off)
	case 8:
		hd4(buf, off)
	case 9:
		hu4(buf, off)
	}
}

func initPredictors() {
	PredLuma16 = [7]PredFunc{dc16, tm16, ve16, he16, dc16NoTop, dc16NoLeft, dc16NoTopLeft}
	PredChroma8 = [7]PredFunc{dc8uv, tm8uv, ve8uv, he8uv, dc8uvNoTop, dc8uvNoLeft, dc8uvNoTopLeft}
	PredLuma4 = [10]PredFunc{dc4, tm4, ve4, he4, rd4, vr4, ld4, vl4, hd4, hu4}
}
