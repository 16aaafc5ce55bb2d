// Package blockcodec implements the reconstruction core of a block-based
// image codec in pure Go.
//
// The decoder side covers VP8-style lossy frame reconstruction: per-
// macroblock intra prediction and inverse transforms, the in-loop deblocking
// filter, optional decode-side dithering, and a row-pipelined output stage
// that hands finished pixel rows to the caller through an Io callback. The
// pipeline runs sequentially or with a worker goroutine that overlaps
// filtering and output of row N-1 with reconstruction of row N.
//
// The encoder side covers VP8L-style entropy analysis: per-tile symbol
// histograms over backward-reference token streams and the clustering passes
// (entropy-bin, stochastic, greedy) that merge them into a compact set of
// entropy codes minimizing total coding cost.
//
// Bitstream parsing, entropy coding, and container handling are out of
// scope; residual coefficients, prediction modes, and token streams are
// supplied by the caller.
//
// Basic decoding usage:
//
//	err := blockcodec.RunFrame(params, io, fillRow)
//
// Basic histogram clustering usage:
//
//	symbols, set, err := blockcodec.ClusterHistograms(w, h, refs, quality, bits, cacheBits, nil, nil)
package blockcodec
