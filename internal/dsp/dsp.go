package dsp

// BPS is the common stride for block processing buffers.
const BPS = 32

// Transform function variables for dispatch.
// These are set to pure-Go implementations by Init() and can be overridden
// by platform-specific SIMD implementations in the future.
var (
	Transform     func(coeffs []int16, dst []byte, doTwo bool)
	TransformAC3  func(coeffs []int16, dst []byte)
	TransformUV   func(coeffs []int16, dst []byte)
	TransformDC   func(coeffs []int16, dst []byte)
	TransformDCUV func(coeffs []int16, dst []byte)
	TransformWHT  func(in, out []int16)

	// DitherCombine8x8 adds a centered 8x8 dither block to dst.
	DitherCombine8x8 func(dither []byte, dst []byte, off, stride int)
)

// PredFunc is the signature for intra prediction functions.
// buf is the full reconstruction buffer and off is the offset of the block
// origin within buf. Reference pixels (top, left, top-left) are at offsets
// before off, so negative-offset access becomes buf[off-k] with k > 0.
type PredFunc func(buf []byte, off int)

// Prediction function tables, indexed by prediction mode.
var (
	PredLuma16  [7]PredFunc  // NumBDCModes entries for 16x16 luma
	PredChroma8 [7]PredFunc  // NumBDCModes entries for 8x8 chroma
	PredLuma4   [10]PredFunc // NumBModes entries for 4x4 luma
)

// Init initialises all function pointers to their pure-Go implementations.
// This must be called before any DSP functions are used.
func Init() {
	initClipTables()

	Transform = transformTwo
	TransformAC3 = transformAC3
	TransformUV = transformUV
	TransformDC = transformDC
	TransformDCUV = transformDCUV
	TransformWHT = transformWHT

	DitherCombine8x8 = ditherCombine8x8

	initPredictors()
}

func init() {
	Init()
}
