package lossy

import (
	"bytes"
	"strings"
	"testing"
)

type outSpan struct {
	mbY, mbW, mbH int
}

// frameCollector gathers the spans handed to Put into contiguous planes.
type frameCollector struct {
	width, height int // cropped output size
	y, u, v       []byte
	a             []byte
	spans         []outSpan
}

func newFrameCollector(width, height int) *frameCollector {
	return &frameCollector{
		width:  width,
		height: height,
		y:      make([]byte, width*height),
		u:      make([]byte, ((width+1)/2)*((height+1)/2)),
		v:      make([]byte, ((width+1)/2)*((height+1)/2)),
		a:      make([]byte, width*height),
	}
}

func (c *frameCollector) put(io *Io) bool {
	c.spans = append(c.spans, outSpan{io.MBY, io.MBW, io.MBH})
	for j := 0; j < io.MBH; j++ {
		copy(c.y[(io.MBY+j)*c.width:], io.Y[j*io.YStride:j*io.YStride+io.MBW])
		if io.A != nil {
			copy(c.a[(io.MBY+j)*c.width:], io.A[j*io.Width:j*io.Width+io.MBW])
		}
	}
	uvW := (io.MBW + 1) / 2
	for j := 0; j < (io.MBH+1)/2; j++ {
		row := (io.MBY/2 + j) * ((c.width + 1) / 2)
		copy(c.u[row:], io.U[j*io.UVStride:j*io.UVStride+uvW])
		copy(c.v[row:], io.V[j*io.UVStride:j*io.UVStride+uvW])
	}
	return true
}

// runFrame drives one frame through the pipeline, filling each row with fill.
func runFrame(t *testing.T, params *FrameParams, io *Io,
	fill func(dec *Decoder, mbY int)) error {
	t.Helper()

	dec := AcquireDecoder()
	defer ReleaseDecoder(dec)

	if err := dec.StartFrame(params, io); err != nil {
		return err
	}
	for mbY := 0; mbY < dec.MBHeight(); mbY++ {
		fill(dec, mbY)
		if err := dec.ProcessRow(io); err != nil {
			dec.FinishFrame(io)
			return err
		}
	}
	return dec.FinishFrame(io)
}

// fillSkip marks every macroblock of the row as skipped (DC mode, no
// residuals).
func fillSkip(dec *Decoder, mbY int) {
	rows := dec.RowData()
	for x := range rows {
		rows[x] = MBData{Skip: true}
	}
}

// fillVarying gives every macroblock DC-only residuals on all luma and
// chroma sub-blocks, with values derived from the block position.
func fillVarying(dec *Decoder, mbY int) {
	rows := dec.RowData()
	for x := range rows {
		rows[x] = MBData{
			NonZeroY:  0x55555555, // DC-only code for all 16 luma blocks
			NonZeroUV: 0x5555,     // DC-only code for all 8 chroma blocks
		}
		for n := 0; n < 16; n++ {
			dc := ((mbY*7+x)*13+n*5)%71 - 35
			rows[x].Coeffs[n*16] = int16(dc * 8)
		}
		for n := 0; n < 8; n++ {
			dc := ((mbY*11+x)*17+n*3)%41 - 20
			rows[x].Coeffs[256+n*16] = int16(dc * 8)
		}
	}
}

func TestFlatDCFrame(t *testing.T) {
	c := newFrameCollector(48, 48)
	io := &Io{Put: c.put}
	params := &FrameParams{Width: 48, Height: 48}

	if err := runFrame(t, params, io, fillSkip); err != nil {
		t.Fatalf("runFrame: %v", err)
	}
	for i, px := range c.y {
		if px != 0x80 {
			t.Fatalf("luma[%d] = %#x, want 0x80", i, px)
		}
	}
	for i := range c.u {
		if c.u[i] != 0x80 || c.v[i] != 0x80 {
			t.Fatalf("chroma[%d] = %#x/%#x, want 0x80", i, c.u[i], c.v[i])
		}
	}
}

// TestBorderPredictors checks the synthetic borders the first macroblock
// sees: 127 above, 129 to the left.
func TestBorderPredictors(t *testing.T) {
	tests := []struct {
		name string
		mode uint8
		want byte
	}{
		// True-motion: left + top - topleft = 129 + 127 - 127.
		{"true motion", TMPred, 129},
		// Vertical copies the 127 top border.
		{"vertical", VPred, 127},
		// Horizontal copies the 129 left border.
		{"horizontal", HPred, 129},
		// DC with no usable context falls back to the 0x80 fill.
		{"dc", DCPred, 0x80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFrameCollector(16, 16)
			io := &Io{Put: c.put}
			params := &FrameParams{Width: 16, Height: 16}

			err := runFrame(t, params, io, func(dec *Decoder, mbY int) {
				rows := dec.RowData()
				rows[0] = MBData{Skip: true, UVMode: tt.mode}
				rows[0].IModes[0] = tt.mode
			})
			if err != nil {
				t.Fatalf("runFrame: %v", err)
			}
			for i, px := range c.y {
				if px != tt.want {
					t.Fatalf("luma[%d] = %#x, want %#x", i, px, tt.want)
				}
			}
			for i := range c.u {
				if c.u[i] != tt.want || c.v[i] != tt.want {
					t.Fatalf("chroma[%d] = %#x/%#x, want %#x", i, c.u[i], c.v[i], tt.want)
				}
			}
		})
	}
}

// TestSpanGeometry checks the output delay the loop filter imposes: every
// row but the first withholds its last extraRows lines, and every row but
// the first additionally flushes the lines withheld by its predecessor.
func TestSpanGeometry(t *testing.T) {
	tests := []struct {
		name      string
		filter    FilterHeader
		extraRows int
	}{
		{"no filter", FilterHeader{}, 0},
		{"simple filter", FilterHeader{Simple: true, Level: 20}, 2},
		{"complex filter", FilterHeader{Level: 20}, 8},
	}

	const width, height = 64, 160 // 10 macroblock rows

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFrameCollector(width, height)
			io := &Io{Put: c.put}
			params := &FrameParams{Width: width, Height: height, Filter: tt.filter}

			if err := runFrame(t, params, io, fillSkip); err != nil {
				t.Fatalf("runFrame: %v", err)
			}

			mbRows := height / 16
			if len(c.spans) != mbRows {
				t.Fatalf("got %d spans, want %d", len(c.spans), mbRows)
			}
			next := 0
			for i, s := range c.spans {
				if s.mbY != next {
					t.Fatalf("span %d starts at %d, want %d (gap or overlap)", i, s.mbY, next)
				}
				want := 16
				if i == 0 {
					want -= tt.extraRows
				}
				if i == mbRows-1 {
					want += tt.extraRows
				}
				if s.mbH != want {
					t.Fatalf("span %d height = %d, want %d", i, s.mbH, want)
				}
				if s.mbW != width {
					t.Fatalf("span %d width = %d, want %d", i, s.mbW, width)
				}
				next += s.mbH
			}
			if next != height {
				t.Fatalf("spans cover %d rows, want %d", next, height)
			}
		})
	}
}

// TestCropWindow decodes the same frame with and without cropping and
// checks the cropped output equals the matching window of the full output,
// including the halved chroma offsets.
func TestCropWindow(t *testing.T) {
	const width, height = 80, 96
	const cropL, cropT, cropR, cropB = 4, 2, 76, 90

	full := newFrameCollector(width, height)
	io := &Io{Put: full.put}
	params := &FrameParams{Width: width, Height: height}
	if err := runFrame(t, params, io, fillVarying); err != nil {
		t.Fatalf("full decode: %v", err)
	}

	cw := cropR - cropL
	ch := cropB - cropT
	cropped := newFrameCollector(cw, ch)
	cio := &Io{
		Put:         cropped.put,
		UseCropping: true,
		CropLeft:    cropL, CropTop: cropT, CropRight: cropR, CropBottom: cropB,
	}
	if err := runFrame(t, params, cio, fillVarying); err != nil {
		t.Fatalf("cropped decode: %v", err)
	}

	for y := 0; y < ch; y++ {
		fullRow := full.y[(y+cropT)*width+cropL : (y+cropT)*width+cropL+cw]
		cropRow := cropped.y[y*cw : y*cw+cw]
		if !bytes.Equal(fullRow, cropRow) {
			t.Fatalf("luma row %d differs between full and cropped decode", y)
		}
	}
	fullUVW := (width + 1) / 2
	cropUVW := (cw + 1) / 2
	for y := 0; y < (ch+1)/2; y++ {
		srcOff := (y+cropT/2)*fullUVW + cropL/2
		fullU := full.u[srcOff : srcOff+cropUVW]
		cropU := cropped.u[y*cropUVW : y*cropUVW+cropUVW]
		if !bytes.Equal(fullU, cropU) {
			t.Fatalf("chroma U row %d differs between full and cropped decode", y)
		}
		fullV := full.v[srcOff : srcOff+cropUVW]
		cropV := cropped.v[y*cropUVW : y*cropUVW+cropUVW]
		if !bytes.Equal(fullV, cropV) {
			t.Fatalf("chroma V row %d differs between full and cropped decode", y)
		}
	}
}

// TestReconstructionRepeatable decodes the same content twice, filter and
// dithering enabled, and expects byte-identical output.
func TestReconstructionRepeatable(t *testing.T) {
	const width, height = 96, 80

	decode := func() *frameCollector {
		c := newFrameCollector(width, height)
		io := &Io{Put: c.put}
		params := &FrameParams{
			Width: width, Height: height,
			Filter:  FilterHeader{Level: 25},
			Options: &Options{DitheringStrength: 50},
		}
		for s := 0; s < NumMBSegments; s++ {
			params.Quant[s].UVQuant = 2
		}
		if err := runFrame(t, params, io, fillVarying); err != nil {
			t.Fatalf("runFrame: %v", err)
		}
		return c
	}

	a := decode()
	b := decode()
	if !bytes.Equal(a.y, b.y) || !bytes.Equal(a.u, b.u) || !bytes.Equal(a.v, b.v) {
		t.Error("repeated decodes of identical input differ")
	}
}

// TestWorkerMatchesSequential compares the threaded pipeline against the
// sequential one on a frame wide enough to engage the worker.
func TestWorkerMatchesSequential(t *testing.T) {
	const width, height = MinWidthForThreads, 80

	decode := func(useThreads bool) *frameCollector {
		c := newFrameCollector(width, height)
		io := &Io{Put: c.put}
		params := &FrameParams{
			Width: width, Height: height,
			Filter:  FilterHeader{Level: 30},
			Options: &Options{UseThreads: useThreads},
		}
		if err := runFrame(t, params, io, fillVarying); err != nil {
			t.Fatalf("runFrame(threads=%v): %v", useThreads, err)
		}
		return c
	}

	st := decode(false)
	mt := decode(true)
	if !bytes.Equal(st.y, mt.y) || !bytes.Equal(st.u, mt.u) || !bytes.Equal(st.v, mt.v) {
		t.Error("threaded output differs from sequential output")
	}
}

// TestDithering checks that decode-side dithering perturbs only the chroma
// of banding-prone macroblocks, and only above the amplitude floor.
func TestDithering(t *testing.T) {
	const width, height = 48, 48

	decode := func(strength int) *frameCollector {
		c := newFrameCollector(width, height)
		io := &Io{Put: c.put}
		params := &FrameParams{
			Width: width, Height: height,
			Options: &Options{DitheringStrength: strength},
		}
		// Low chroma quantizer: maximum dither amplitude window.
		// Blocks carry no chroma AC (NonZeroUV has no AC bits set).
		err := runFrame(t, params, io, func(dec *Decoder, mbY int) {
			rows := dec.RowData()
			for x := range rows {
				rows[x] = MBData{} // not skipped, no residuals
			}
		})
		if err != nil {
			t.Fatalf("runFrame: %v", err)
		}
		return c
	}

	t.Run("perturbs chroma only", func(t *testing.T) {
		c := decode(100)
		for i, px := range c.y {
			if px != 0x80 {
				t.Fatalf("luma[%d] = %#x, dithering must not touch luma", i, px)
			}
		}
		changed := false
		for i := range c.u {
			if c.u[i] != 0x80 || c.v[i] != 0x80 {
				changed = true
				break
			}
		}
		if !changed {
			t.Error("chroma untouched at full dithering strength")
		}
	})

	t.Run("below amplitude floor is a no-op", func(t *testing.T) {
		// Strength 1 maps to amplitude 2, under minDitherAmp.
		c := decode(1)
		for i := range c.u {
			if c.u[i] != 0x80 || c.v[i] != 0x80 {
				t.Fatalf("chroma[%d] perturbed below the amplitude floor", i)
			}
		}
	})

	t.Run("skipped blocks never dither", func(t *testing.T) {
		c := newFrameCollector(width, height)
		io := &Io{Put: c.put}
		params := &FrameParams{
			Width: width, Height: height,
			Options: &Options{DitheringStrength: 100},
		}
		if err := runFrame(t, params, io, fillSkip); err != nil {
			t.Fatalf("runFrame: %v", err)
		}
		for i := range c.u {
			if c.u[i] != 0x80 || c.v[i] != 0x80 {
				t.Fatalf("chroma[%d] of a skipped block was dithered", i)
			}
		}
	})
}

// rowStampAlpha is a test alpha decoder that stamps each alpha row with its
// row index.
type rowStampAlpha struct{ width int }

func (a *rowStampAlpha) DecompressAlphaRows(row, numRows int, plane []byte) bool {
	for j := 0; j < numRows; j++ {
		for i := 0; i < a.width; i++ {
			plane[(row+j)*a.width+i] = byte(row + j)
		}
	}
	return true
}

// failingAlpha refuses every decompression request.
type failingAlpha struct{}

func (failingAlpha) DecompressAlphaRows(row, numRows int, plane []byte) bool {
	return false
}

func TestAlphaHook(t *testing.T) {
	const width, height = 32, 48

	t.Run("rows forwarded", func(t *testing.T) {
		c := newFrameCollector(width, height)
		io := &Io{Put: c.put}
		params := &FrameParams{
			Width: width, Height: height,
			Alpha: &rowStampAlpha{width: width},
		}
		if err := runFrame(t, params, io, fillSkip); err != nil {
			t.Fatalf("runFrame: %v", err)
		}
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				if c.a[y*width+x] != byte(y) {
					t.Fatalf("alpha[%d,%d] = %d, want %d", x, y, c.a[y*width+x], y)
				}
			}
		}
	})

	t.Run("decoder failure aborts", func(t *testing.T) {
		c := newFrameCollector(width, height)
		io := &Io{Put: c.put}
		params := &FrameParams{
			Width: width, Height: height,
			Alpha: failingAlpha{},
		}
		err := runFrame(t, params, io, fillSkip)
		if err == nil {
			t.Fatal("expected an error from the failing alpha decoder")
		}
		if !strings.Contains(err.Error(), "alpha") {
			t.Errorf("error %q does not mention alpha", err)
		}
	})
}

// TestPutRejectionStopsPipeline checks that a refusing Put aborts with the
// rejection error.
func TestPutRejectionStopsPipeline(t *testing.T) {
	calls := 0
	io := &Io{Put: func(io *Io) bool {
		calls++
		return calls < 2 // accept the first span, refuse the second
	}}
	params := &FrameParams{Width: 32, Height: 64}

	err := runFrame(t, params, io, fillSkip)
	if err == nil {
		t.Fatal("expected an error after Put refused")
	}
	if !strings.Contains(err.Error(), "rejected") {
		t.Errorf("error %q does not mention rejection", err)
	}
}
