package lossless

// VP8L symbol alphabet constants derived from
// libwebp/src/webp/format_constants.h.

const (
	// NumLiteralCodes is the number of literal codes (256 byte values).
	NumLiteralCodes = 256
	// NumLengthCodes is the number of length prefix codes.
	NumLengthCodes = 24
	// NumDistanceCodes is the number of distance prefix codes.
	NumDistanceCodes = 40
	// CodeLengthCodes is the number of code-length codes.
	CodeLengthCodes = 19

	// MaxCacheBits is the maximum color cache bit size.
	MaxCacheBits = 11
)

// PrefixEncodeBitsNoLUT computes the prefix code and extra bits for a
// 1-based distance value, using the VP8L distance/length encoding formula.
func PrefixEncodeBitsNoLUT(distance int) (code int, extraBits int) {
	distance-- // make 0-based
	if distance < 2 {
		return distance, 0
	}
	highestBit := bitsLog2Floor(distance)
	secondHighestBit := (distance >> (highestBit - 1)) & 1
	extraBits = highestBit - 1
	code = 2*highestBit + secondHighestBit
	return code, extraBits
}

// bitsLog2Floor returns floor(log2(n)) for n > 0.
func bitsLog2Floor(n int) int {
	log := 0
	for n > 1 {
		log++
		n >>= 1
	}
	return log
}

// VP8LSubSampleSize returns ceil(size / (1 << samplingBits)).
func VP8LSubSampleSize(size, samplingBits int) int {
	return (size + (1 << samplingBits) - 1) >> samplingBits
}
