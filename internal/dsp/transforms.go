package dsp

// Inverse transforms for the lossy decoder. The fixed-point constants are
// the ones the VP8 bitstream mandates (libwebp dec.c).

const (
	cosPi8 = 20091 // cos(pi/8) << 16
	sinPi8 = 35468 // sin(pi/8) << 16
)

func rotate1(v int) int { return ((v * cosPi8) >> 16) + v }
func rotate2(v int) int { return (v * sinPi8) >> 16 }

// addClip adds the descaled residual v>>3 to the prediction already in
// dst[off], clipped to [0,255].
func addClip(dst []byte, off, v int) {
	dst[off] = Clip8b(int(dst[off]) + (v >> 3))
}

// transformOne runs a single 4x4 inverse DCT over 16 coefficients and adds
// the result onto dst, which holds the predicted samples at stride BPS.
func transformOne(in []int16, dst []byte) {
	_ = in[15]
	_ = dst[3+3*BPS]

	var tmp [16]int

	// Vertical butterflies, one column at a time.
	for c := 0; c < 4; c++ {
		a := int(in[c]) + int(in[8+c])
		b := int(in[c]) - int(in[8+c])
		e := rotate2(int(in[4+c])) - rotate1(int(in[12+c]))
		d := rotate1(int(in[4+c])) + rotate2(int(in[12+c]))
		tmp[c] = a + d
		tmp[4+c] = b + e
		tmp[8+c] = b - e
		tmp[12+c] = a - d
	}

	// Horizontal pass; the +4 bias makes the final >>3 round to nearest.
	for r := 0; r < 4; r++ {
		row := tmp[4*r : 4*r+4 : 4*r+4]
		dc := row[0] + 4
		a := dc + row[2]
		b := dc - row[2]
		e := rotate2(row[1]) - rotate1(row[3])
		d := rotate1(row[1]) + rotate2(row[3])
		off := r * BPS
		addClip(dst, off+0, a+d)
		addClip(dst, off+1, b+e)
		addClip(dst, off+2, b-e)
		addClip(dst, off+3, a-d)
	}
}

// transformTwo handles a horizontal pair of 4x4 blocks. The second block's
// coefficients follow at in[16:] and its samples 4 pixels to the right.
func transformTwo(in []int16, dst []byte, doTwo bool) {
	transformOne(in, dst)
	if doTwo {
		transformOne(in[16:], dst[4:])
	}
}

// transformDC is the shortcut for blocks whose AC coefficients are all zero:
// every sample receives the same rounded DC.
func transformDC(in []int16, dst []byte) {
	dc := int(in[0]) + 4
	for r := 0; r < 4; r++ {
		for x := 0; x < 4; x++ {
			addClip(dst, r*BPS+x, dc)
		}
	}
}

// transformAC3 is the shortcut for blocks where only coefficients 0, 1 and 4
// are set. The transform then separates into a vertical contribution from
// in[4] and a horizontal one from in[1], added to the biased DC.
func transformAC3(in []int16, dst []byte) {
	dc := int(in[0]) + 4
	vert := [4]int{rotate1(int(in[4])), rotate2(int(in[4])), -rotate2(int(in[4])), -rotate1(int(in[4]))}
	horiz := [4]int{rotate1(int(in[1])), rotate2(int(in[1])), -rotate2(int(in[1])), -rotate1(int(in[1]))}
	for r := 0; r < 4; r++ {
		for x := 0; x < 4; x++ {
			addClip(dst, r*BPS+x, dc+vert[r]+horiz[x])
		}
	}
}

// transformUV runs the four chroma blocks of one plane pair: two side by
// side, then two more a block-row below.
func transformUV(in []int16, dst []byte) {
	transformTwo(in[0:], dst[0:], true)
	transformTwo(in[32:], dst[4*BPS:], true)
}

// transformDCUV applies the DC shortcut to whichever chroma blocks have a
// nonzero DC.
func transformDCUV(in []int16, dst []byte) {
	if in[0] != 0 {
		transformDC(in[0:], dst[0:])
	}
	if in[16] != 0 {
		transformDC(in[16:], dst[4:])
	}
	if in[32] != 0 {
		transformDC(in[32:], dst[4*BPS:])
	}
	if in[48] != 0 {
		transformDC(in[48:], dst[4*BPS+4:])
	}
}

// transformWHT inverts the Walsh-Hadamard transform carried by the luma DC
// block. The 16 reconstructed DCs are scattered into out at stride 16, the
// slot each 4x4 coefficient block's DC occupies in the macroblock buffer.
// out therefore needs at least 256 elements.
func transformWHT(in []int16, out []int16) {
	var tmp [16]int

	for c := 0; c < 4; c++ {
		outerSum := int(in[c]) + int(in[12+c])
		innerSum := int(in[4+c]) + int(in[8+c])
		innerDif := int(in[4+c]) - int(in[8+c])
		outerDif := int(in[c]) - int(in[12+c])
		tmp[c] = outerSum + innerSum
		tmp[8+c] = outerSum - innerSum
		tmp[4+c] = outerDif + innerDif
		tmp[12+c] = outerDif - innerDif
	}

	for r := 0; r < 4; r++ {
		row := tmp[4*r : 4*r+4 : 4*r+4]
		dc := row[0] + 3 // rounding bias for the >>3 below
		outerSum := dc + row[3]
		innerSum := row[1] + row[2]
		innerDif := row[1] - row[2]
		outerDif := dc - row[3]
		o := out[r*64:]
		o[0] = int16((outerSum + innerSum) >> 3)
		o[16] = int16((outerDif + innerDif) >> 3)
		o[32] = int16((outerSum - innerSum) >> 3)
		o[48] = int16((outerDif - innerDif) >> 3)
	}
}
