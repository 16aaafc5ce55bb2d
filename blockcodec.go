package blockcodec

import (
	"fmt"

	"github.com/deepteams/blockcodec/internal/lossless"
	"github.com/deepteams/blockcodec/internal/lossy"
)

// Decoder-side types, re-exported from the internal package.
type (
	// Decoder is a reusable lossy frame reconstructor.
	Decoder = lossy.Decoder

	// Io carries output buffers, callbacks, and cropping state for one frame.
	Io = lossy.Io

	// FrameParams describes the frame geometry, filter and quantizer headers,
	// and decode options for StartFrame.
	FrameParams = lossy.FrameParams

	// Options holds caller-tunable decode settings.
	Options = lossy.Options

	// SegmentHeader mirrors the bitstream segment feature data.
	SegmentHeader = lossy.SegmentHeader

	// FilterHeader mirrors the bitstream loop-filter header.
	FilterHeader = lossy.FilterHeader

	// QuantMatrix holds the per-segment quantizer state the reconstruction
	// core consumes.
	QuantMatrix = lossy.QuantMatrix

	// MBData is the per-macroblock reconstruction record.
	MBData = lossy.MBData

	// AlphaDecoder decompresses alpha rows on demand at output time.
	AlphaDecoder = lossy.AlphaDecoder
)

// Encoder-side types, re-exported from the internal package.
type (
	// Histogram holds per-symbol frequency counts for the five symbol streams.
	Histogram = lossless.Histogram

	// HistoSet is a set of histograms sharing one backing allocation.
	HistoSet = lossless.HistoSet

	// HistoScratch carries reusable slab buffers across clustering calls.
	HistoScratch = lossless.HistoScratch

	// BackwardRefs is a stream of pixel-or-copy tokens.
	BackwardRefs = lossless.BackwardRefs

	// PixOrCopy is a single literal, cache-index, or copy token.
	PixOrCopy = lossless.PixOrCopy

	// ProgressHook reports clustering progress; returning false aborts.
	ProgressHook = lossless.ProgressHook
)

// Token constructors, re-exported for building BackwardRefs streams.
var (
	LiteralPixel    = lossless.LiteralPixel
	CachePixel      = lossless.CachePixel
	CopyPixel       = lossless.CopyPixel
	NewBackwardRefs = lossless.NewBackwardRefs
)

// RowFiller populates the decoder's current macroblock row before it is
// reconstructed. RowData returns one MBData slot per macroblock column;
// implementations fill coefficients, prediction modes, and the non-zero
// bitmaps for row mbY.
type RowFiller func(dec *Decoder, mbY int) error

// RunFrame drives a full frame through the reconstruction pipeline: it
// acquires a pooled decoder, starts the frame, asks fill for each macroblock
// row, and finishes the frame. The Io's Put hook receives finished pixel
// rows as they leave the pipeline.
func RunFrame(params *FrameParams, io *Io, fill RowFiller) error {
	dec := lossy.AcquireDecoder()
	defer lossy.ReleaseDecoder(dec)

	if err := dec.StartFrame(params, io); err != nil {
		return err
	}

	for mbY := 0; mbY < dec.MBHeight(); mbY++ {
		if err := fill(dec, mbY); err != nil {
			dec.FinishFrame(io)
			return fmt.Errorf("vp8: row %d: %w", mbY, err)
		}
		if err := dec.ProcessRow(io); err != nil {
			dec.FinishFrame(io)
			return err
		}
	}

	return dec.FinishFrame(io)
}

// ClusterHistograms builds per-tile histograms from refs and merges them
// into a compact entropy-code set. It returns the per-tile cluster indices
// and the cluster histograms. progress may be nil.
func ClusterHistograms(width, height int, refs *BackwardRefs, quality int,
	histoBits, cacheBits int, scratch *HistoScratch,
	progress ProgressHook) ([]uint16, *HistoSet, error) {

	return lossless.GetHistoImageSymbols(width, height, refs, quality,
		histoBits, cacheBits, scratch, progress)
}
