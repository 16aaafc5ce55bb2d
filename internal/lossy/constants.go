package lossy

import "github.com/deepteams/blockcodec/internal/dsp"

// BPS is the row stride of the macroblock working buffer.
const BPS = dsp.BPS

// Offsets of the luma/chroma areas inside the working buffer. The luma area
// keeps a one-pixel top/left border plus a 4-pixel top-right strip for the
// diagonal 4x4 predictors; the two chroma areas share one border row.
const (
	YOff    = BPS*1 + 8
	UOff    = YOff + BPS*16 + BPS
	VOff    = UOff + 16
	YUVSize = BPS*17 + BPS*9
)

// Intra prediction modes.
const (
	BDCPred = iota // 4x4 modes
	BTMPred
	BVEPred
	BHEPred
	BRDPred
	BVRPred
	BLDPred
	BVLPred
	BHDPred
	BHUPred
	NumBModes = BHUPred + 1 - BDCPred

	// Luma16 or chroma modes reuse the first four values.
	DCPred = BDCPred
	TMPred = BTMPred
	VPred  = BVEPred
	HPred  = BHEPred
)

// Border-aware DC prediction fallbacks.
const (
	BDCPredNoTop     = 4
	BDCPredNoLeft    = 5
	BDCPredNoTopLeft = 6
	NumBDCModes      = 7
)

// Segment and loop-filter delta counts.
const (
	NumMBSegments   = 4
	NumRefLFDeltas  = 4
	NumModeLFDeltas = 4
)

// kScan maps the 16 sub-4x4 block indices to their offsets in the BPS-strided
// working buffer (Y plane).
var kScan = [16]int{
	0 + 0*BPS, 4 + 0*BPS, 8 + 0*BPS, 12 + 0*BPS,
	0 + 4*BPS, 4 + 4*BPS, 8 + 4*BPS, 12 + 4*BPS,
	0 + 8*BPS, 4 + 8*BPS, 8 + 8*BPS, 12 + 8*BPS,
	0 + 12*BPS, 4 + 12*BPS, 8 + 12*BPS, 12 + 12*BPS,
}

// kFilterExtraRows is the number of extra luma rows the loop filter reads
// above the current macroblock row, per filter type (off/simple/complex).
// Chroma needs half as many.
var kFilterExtraRows = [3]int{0, 2, 8}

// Dithering.
const (
	ditherAmpTabSize = 12
	minDitherAmp     = 4
)

// kQuantToDitherAmp maps a (small) chroma quantizer to a dithering amplitude.
// Roughly, the lower the quantizer the more banding, the stronger the dither.
var kQuantToDitherAmp = [ditherAmpTabSize]uint8{
	8, 7, 6, 4, 4, 2, 2, 2, 1, 1, 1, 1,
}

// Threading.
const (
	// MinWidthForThreads is the minimum picture width for which spawning a
	// worker pays off; below this the synchronization cost dominates.
	MinWidthForThreads = 512

	mtCacheLines = 3
	stCacheLines = 1
)
