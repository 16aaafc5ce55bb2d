package lossy

import (
	"fmt"
	"sync"

	"github.com/deepteams/blockcodec/internal/dsp"
)

// decoderPool caches Decoder structs between frames so that the large backing
// slab (yuvB + row cache + alpha plane) can be reused.
var decoderPool sync.Pool

// AcquireDecoder returns a Decoder from the pool (or allocates a new one).
// Mutable per-frame state is zeroed; reusable buffers (yuvT, fInfo, mbData,
// slab) are kept for reuse-or-grow in StartFrame.
func AcquireDecoder() *Decoder {
	if v := decoderPool.Get(); v != nil {
		dec := v.(*Decoder)
		dec.filterHdr = FilterHeader{}
		dec.segHdr = SegmentHeader{}
		dec.dqm = [NumMBSegments]QuantMatrix{}
		dec.fstrengths = [NumMBSegments][2]FInfo{}
		dec.mbW = 0
		dec.mbH = 0
		dec.mbY = 0
		dec.filterType = 0
		dec.dither = false
		dec.alphaDithering = 0
		dec.alpha = nil
		dec.pipeErr = nil
		dec.setupDone = false
		return dec
	}
	return &Decoder{}
}

// ReleaseDecoder returns a Decoder to the pool for reuse. The caller must not
// reference any slices obtained from the decoder after this call.
func ReleaseDecoder(dec *Decoder) {
	if dec == nil {
		return
	}
	dec.worker.end()
	dec.alpha = nil
	decoderPool.Put(dec)
}

// SegmentHeader describes the per-segment filter-strength overrides.
type SegmentHeader struct {
	UseSegment     bool
	AbsoluteDelta  bool
	FilterStrength [NumMBSegments]int8
}

// FilterHeader describes the loop filter parameters.
type FilterHeader struct {
	Simple      bool
	Level       int
	Sharpness   int
	UseLFDelta  bool
	RefLFDelta  [NumRefLFDeltas]int
	ModeLFDelta [NumModeLFDeltas]int
}

// QuantMatrix holds the per-segment quantizer state the reconstruction core
// needs: the chroma quantizer (which drives the dithering amplitude) and the
// derived dithering strength itself.
type QuantMatrix struct {
	UVQuant int // U/V quantizer value
	Dither  int // dithering amplitude (0 = off, max 255)
}

// FInfo holds per-macroblock filter strength info.
type FInfo struct {
	FLimit    uint8
	FILevel   uint8
	FInner    bool
	HevThresh uint8
}

// MBData holds one macroblock's reconstruction record, populated by the
// (external) token parser and consumed exactly once by the reconstructor.
type MBData struct {
	Coeffs    [384]int16 // (16+4+4) * 16
	IsI4x4    bool
	IModes    [16]uint8 // one 16x16 mode or sixteen 4x4 modes
	UVMode    uint8
	NonZeroY  uint32
	NonZeroUV uint32
	Dither    uint8
	Skip      bool
	Segment   uint8
}

// TopSamples holds saved top samples for one macroblock column.
type TopSamples struct {
	Y [16]uint8
	U [8]uint8
	V [8]uint8
}

// AlphaDecoder decompresses rows of the alpha plane on demand, at the
// row-finalization boundary. It reports false on corrupt alpha data, which
// aborts the frame.
type AlphaDecoder interface {
	DecompressAlphaRows(row, numRows int, plane []byte) bool
}

// Options carries the caller-tunable decoding knobs.
type Options struct {
	UseThreads             bool
	DitheringStrength      int // in percent [0..100]
	AlphaDitheringStrength int // in percent [0..100]
}

// FrameParams carries the already-parsed header state a frame needs:
// dimensions, filter and segment parameters, per-segment quantizer info and
// the optional alpha-plane decompressor.
type FrameParams struct {
	Width, Height int
	Filter        FilterHeader
	Segments      SegmentHeader
	Quant         [NumMBSegments]QuantMatrix
	Alpha         AlphaDecoder
	Options       *Options
}

// threadContext is the double-buffered state handed to the worker. The worker
// only ever reads its own copy; the main thread swaps buffers in and out
// between Sync and Launch, so the two sides never alias.
type threadContext struct {
	id        int // cache row to process
	mbY       int
	filterRow bool
	fInfo     []FInfo
	mbData    []MBData
	io        Io
}

// Decoder is the row-pipelined macroblock reconstruction core.
type Decoder struct {
	// Per-frame header state.
	filterHdr FilterHeader
	segHdr    SegmentHeader
	dqm       [NumMBSegments]QuantMatrix

	// Dimensions, in pixels and in macroblock units.
	width, height int
	mbW, mbH      int

	// Current row and filtering bounds (macroblock units).
	mbY          int
	tlMBX, tlMBY int
	brMBX, brMBY int

	// Filter.
	filterType int // 0=off, 1=simple, 2=complex
	fstrengths [NumMBSegments][2]FInfo

	// Dithering.
	dither         bool
	ditherRand     dsp.VP8Random
	alphaDithering int

	// Worker and double-buffered context.
	mtMethod  int // 0=sequential, 1=filter+output async, 2=all async
	cacheID   int
	numCaches int
	ctx       threadContext
	worker    rowWorker

	// Boundary and per-row data. fInfo/mbData point at the half of
	// fInfoMem/mbDataMem currently owned by the main thread.
	yuvT      []TopSamples
	fInfo     []FInfo
	fInfoMem  []FInfo
	mbData    []MBData
	mbDataMem []MBData
	yuvB      []byte // macroblock working buffer (YUVSize bytes)

	// Circular row cache, including the leading delay rows the loop filter
	// needs from the previous row. cacheYOff/cacheUVOff skip those rows.
	cacheY, cacheU, cacheV []byte
	cacheYStride           int
	cacheUVStride          int
	cacheYOff, cacheUVOff  int

	// Alpha.
	alpha      AlphaDecoder
	alphaPlane []byte

	// slab is the single backing allocation for yuvB + caches + alpha,
	// kept across pool reuses so allocateMemory can reuse-or-grow.
	slab []byte

	setupDone bool
	pipeErr   error
}

// MBWidth returns the frame width in macroblock units.
func (dec *Decoder) MBWidth() int { return dec.mbW }

// MBHeight returns the frame height in macroblock units.
func (dec *Decoder) MBHeight() int { return dec.mbH }

// AlphaDithering returns the clamped alpha dithering strength in percent.
func (dec *Decoder) AlphaDithering() int { return dec.alphaDithering }

// RowData returns the macroblock records for the row about to be processed.
// The caller fills one entry per macroblock column, then calls ProcessRow.
// The slice is only valid until the next ProcessRow call.
func (dec *Decoder) RowData() []MBData { return dec.mbData }

// StartFrame prepares the decoder for one frame: it runs the io Setup hook,
// derives the filtering bounds and strength tables, sizes and carves the
// working memory, and primes the dithering state. On failure the Teardown
// hook still runs if Setup had succeeded.
func (dec *Decoder) StartFrame(params *FrameParams, io *Io) error {
	if params.Width <= 0 || params.Height <= 0 {
		return fmt.Errorf("vp8: invalid dimensions %dx%d", params.Width, params.Height)
	}
	dec.filterHdr = params.Filter
	dec.segHdr = params.Segments
	dec.dqm = params.Quant
	dec.alpha = params.Alpha
	dec.width = params.Width
	dec.height = params.Height
	dec.mbW = (params.Width + 15) >> 4
	dec.mbH = (params.Height + 15) >> 4
	dec.mbY = 0
	dec.pipeErr = nil

	if dec.filterHdr.Level == 0 {
		dec.filterType = 0
	} else if dec.filterHdr.Simple {
		dec.filterType = 1
	} else {
		dec.filterType = 2
	}

	if err := io.initCrop(params.Width, params.Height); err != nil {
		return err
	}
	dec.mtMethod = getThreadMethod(params.Options, params.Width)

	if err := dec.enterCritical(io); err != nil {
		return err
	}
	dec.setupDone = true

	if err := dec.initFrame(params, io); err != nil {
		dec.exitCritical(io)
		dec.setupDone = false
		return err
	}
	return nil
}

// FinishFrame waits for any in-flight worker job, runs the Teardown hook and
// returns the first pipeline error, if any.
func (dec *Decoder) FinishFrame(io *Io) error {
	if !dec.setupDone {
		return dec.pipeErr
	}
	dec.setupDone = false
	if !dec.exitCritical(io) {
		return dec.failure()
	}
	return dec.pipeErr
}

// enterCritical finishes setting up the decoding parameters once the user's
// Setup hook has run: it resolves the filtering window against the cropping
// area and precomputes the strength tables.
func (dec *Decoder) enterCritical(io *Io) error {
	// Call Setup first. This may trigger additional decoding features on
	// io. Afterward, Teardown must run no matter what.
	if io.Setup != nil && !io.Setup(io) {
		return fmt.Errorf("vp8: frame setup failed")
	}

	if io.BypassFiltering {
		dec.filterType = 0
	}

	// The simple filter reads two luma samples outside the macroblock and
	// writes one, so filtering can start shortly before the cropped area.
	// The complex filter has a dependency chain reaching all the way to
	// macroblock (0,0), which must be preserved.
	extraPixels := kFilterExtraRows[dec.filterType]
	if dec.filterType == 2 {
		dec.tlMBX = 0
		dec.tlMBY = 0
	} else {
		dec.tlMBX = (io.CropLeft - extraPixels) >> 4
		dec.tlMBY = (io.CropTop - extraPixels) >> 4
		if dec.tlMBX < 0 {
			dec.tlMBX = 0
		}
		if dec.tlMBY < 0 {
			dec.tlMBY = 0
		}
	}
	// Some extra pixels are needed on the right/bottom.
	dec.brMBX = (io.CropRight + 15 + extraPixels) >> 4
	dec.brMBY = (io.CropBottom + 15 + extraPixels) >> 4
	if dec.brMBX > dec.mbW {
		dec.brMBX = dec.mbW
	}
	if dec.brMBY > dec.mbH {
		dec.brMBY = dec.mbH
	}
	dec.precomputeFilterStrengths()
	return nil
}

// exitCritical synchronizes with the worker and runs the Teardown hook.
// It reports false if a worker job had failed.
func (dec *Decoder) exitCritical(io *Io) bool {
	ok := true
	if dec.mtMethod > 0 {
		ok = dec.worker.sync()
	}
	if io.Teardown != nil {
		io.Teardown(io)
	}
	return ok
}

// initFrame sets up the thread context, carves the working memory and primes
// the dithering state.
func (dec *Decoder) initFrame(params *FrameParams, io *Io) error {
	dec.initThreadContext()
	if err := dec.allocateMemory(); err != nil {
		return err
	}
	dec.initIo(io)
	dec.initDithering(params.Options)
	return nil
}

// getThreadMethod picks the pipelining mode: 0 for fully sequential
// processing, 2 for reconstruct+filter+output on the worker. Narrow pictures
// stay sequential since the per-row synchronization outweighs the gain.
func getThreadMethod(opts *Options, width int) int {
	if opts == nil || !opts.UseThreads {
		return 0
	}
	if width >= MinWidthForThreads {
		return 2
	}
	return 0
}

// initThreadContext resets the worker and picks the cache depth.
//
// With a worker, deblocking lags behind reconstruction by up to 8 pixels, so
// the row being filtered and the row being reconstructed must never share a
// cache line; three lines give a safe write pattern. Without filtering the
// output has no lag and two lines suffice. Sequential mode needs only one.
func (dec *Decoder) initThreadContext() {
	dec.cacheID = 0
	if dec.mtMethod > 0 {
		dec.worker.reset()
		if dec.filterType > 0 {
			dec.numCaches = mtCacheLines
		} else {
			dec.numCaches = mtCacheLines - 1
		}
	} else {
		dec.numCaches = stCacheLines
	}
}

// allocateMemory sizes all per-frame buffers from the macroblock width,
// overflow-checks the total, and carves a single backing slab into the typed
// sub-buffers. The slab is reused across frames when large enough.
func (dec *Decoder) allocateMemory() error {
	mbW := dec.mbW
	extraRows := kFilterExtraRows[dec.filterType]

	// Typed slices, reuse-or-grow.
	if cap(dec.yuvT) >= mbW {
		dec.yuvT = dec.yuvT[:mbW]
		clear(dec.yuvT)
	} else {
		dec.yuvT = make([]TopSamples, mbW)
	}

	fInfoSize := 0
	if dec.filterType > 0 {
		fInfoSize = mbW
		if dec.mtMethod > 0 {
			fInfoSize = 2 * mbW
		}
	}
	if cap(dec.fInfoMem) >= fInfoSize {
		dec.fInfoMem = dec.fInfoMem[:fInfoSize]
		clear(dec.fInfoMem)
	} else {
		dec.fInfoMem = make([]FInfo, fInfoSize)
	}

	mbDataSize := mbW
	if dec.mtMethod == 2 {
		mbDataSize = 2 * mbW
	}
	if cap(dec.mbDataMem) >= mbDataSize {
		dec.mbDataMem = dec.mbDataMem[:mbDataSize]
		clear(dec.mbDataMem)
	} else {
		dec.mbDataMem = make([]MBData, mbDataSize)
	}

	// Main-thread halves; the context gets the secondary halves, so the
	// worker can consume one row while the next one is being prepared.
	dec.fInfo = nil
	dec.ctx.fInfo = nil
	if dec.filterType > 0 {
		dec.fInfo = dec.fInfoMem[:mbW]
		dec.ctx.fInfo = dec.fInfo
		if dec.mtMethod > 0 {
			dec.ctx.fInfo = dec.fInfoMem[mbW:]
		}
	}
	dec.mbData = dec.mbDataMem[:mbW]
	dec.ctx.mbData = dec.mbData
	if dec.mtMethod == 2 {
		dec.ctx.mbData = dec.mbDataMem[mbW:]
	}
	dec.ctx.id = 0

	// Byte buffers: working buffer, circular row cache (with leading delay
	// rows), optional alpha plane.
	dec.cacheYStride = 16 * mbW
	dec.cacheUVStride = 8 * mbW
	dec.cacheYOff = extraRows * dec.cacheYStride
	dec.cacheUVOff = (extraRows / 2) * dec.cacheUVStride

	cacheYSize := (16*dec.numCaches + extraRows) * dec.cacheYStride
	cacheUVSize := (8*dec.numCaches + extraRows/2) * dec.cacheUVStride
	// The alpha plane is the only buffer that scales as width x height.
	var alphaSize uint64
	if dec.alpha != nil {
		alphaSize = uint64(dec.width) * uint64(dec.height)
	}

	needed := uint64(YUVSize) + uint64(cacheYSize) + 2*uint64(cacheUVSize) +
		alphaSize
	if needed > 1<<32 {
		return fmt.Errorf("vp8: frame too large")
	}

	slabSize := int(needed)
	if cap(dec.slab) >= slabSize {
		dec.slab = dec.slab[:slabSize]
		clear(dec.slab)
	} else {
		dec.slab = make([]byte, slabSize)
	}
	slab := dec.slab

	off := 0
	dec.yuvB = slab[off : off+YUVSize]
	off += YUVSize
	dec.cacheY = slab[off : off+cacheYSize]
	off += cacheYSize
	dec.cacheU = slab[off : off+cacheUVSize]
	off += cacheUVSize
	dec.cacheV = slab[off : off+cacheUVSize]
	off += cacheUVSize
	dec.alphaPlane = nil
	if alphaSize > 0 {
		dec.alphaPlane = slab[off : off+int(alphaSize)]
	}
	return nil
}

// initIo points the io descriptor at the first cache row.
func (dec *Decoder) initIo(io *Io) {
	io.MBY = 0
	io.Y = dec.cacheY[dec.cacheYOff:]
	io.U = dec.cacheU[dec.cacheUVOff:]
	io.V = dec.cacheV[dec.cacheUVOff:]
	io.YStride = dec.cacheYStride
	io.UVStride = dec.cacheUVStride
	io.A = nil
}

// initDithering derives the per-segment dithering amplitude from the
// requested strength and the chroma quantizers. Dithering only engages on
// strongly quantized chroma (where banding shows) and when at least one
// segment ends up with a non-zero amplitude.
func (dec *Decoder) initDithering(opts *Options) {
	if opts == nil {
		return
	}
	d := opts.DitheringStrength
	maxAmp := (1 << dsp.RandomDitherFix) - 1
	var f int
	switch {
	case d < 0:
		f = 0
	case d > 100:
		f = maxAmp
	default:
		f = d * maxAmp / 100
	}
	if f > 0 {
		allAmp := 0
		for s := 0; s < NumMBSegments; s++ {
			dqm := &dec.dqm[s]
			if dqm.UVQuant < ditherAmpTabSize {
				idx := dqm.UVQuant
				if idx < 0 {
					idx = 0
				}
				dqm.Dither = (f * int(kQuantToDitherAmp[idx])) >> 3
			}
			allAmp |= dqm.Dither
		}
		if allAmp > 0 {
			dsp.InitRandom(&dec.ditherRand, 1.0)
			dec.dither = true
		}
	}
	dec.alphaDithering = opts.AlphaDitheringStrength
	if dec.alphaDithering > 100 {
		dec.alphaDithering = 100
	} else if dec.alphaDithering < 0 {
		dec.alphaDithering = 0
	}
}

// setError latches the first pipeline error.
func (dec *Decoder) setError(err error) bool {
	if dec.pipeErr == nil {
		dec.pipeErr = err
	}
	return false
}

// failure returns the latched pipeline error, or a generic abort error if a
// hook refused without a more specific cause.
func (dec *Decoder) failure() error {
	if dec.pipeErr == nil {
		dec.pipeErr = fmt.Errorf("vp8: row output aborted")
	}
	return dec.pipeErr
}
