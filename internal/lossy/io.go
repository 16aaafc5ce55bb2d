package lossy

import "fmt"

// Io describes the row-output contract between the decoder and the consumer
// of the finished pixel rows.
//
// Setup is called once before any row is produced and may refuse (returning
// false), which aborts the frame. Teardown always runs at the end of the
// frame, whether or not the frame succeeded, as long as Setup ran. Put is
// called once per finished (filtered, dithered, cropped) span of rows and may
// also refuse, which stops the pipeline.
type Io struct {
	// Picture dimensions in pixels. Set by the decoder before Setup runs.
	Width, Height int

	// Position and size of the span passed to Put, in the cropped frame:
	// MBY is the row offset of the first sample, MBW/MBH the span size.
	MBY, MBW, MBH int

	// Finished samples for the current span.
	Y, U, V  []byte
	YStride  int
	UVStride int

	// Alpha samples for the current span, one byte per pixel with stride
	// Width, or nil when the frame carries no alpha plane.
	A []byte

	Put      func(io *Io) bool
	Setup    func(io *Io) bool
	Teardown func(io *Io)

	// BypassFiltering disables in-loop deblocking for the whole frame.
	// Typically set by the Setup hook.
	BypassFiltering bool

	// Cropping. When UseCropping is false the full picture is output.
	// CropLeft and CropTop must be even (4:2:0 chroma subsampling).
	UseCropping                              bool
	CropLeft, CropRight, CropTop, CropBottom int
}

// initCrop fills in the picture dimensions and validates (or defaults) the
// cropping window.
func (io *Io) initCrop(width, height int) error {
	io.Width = width
	io.Height = height
	if !io.UseCropping {
		io.CropLeft = 0
		io.CropTop = 0
		io.CropRight = width
		io.CropBottom = height
		return nil
	}
	if io.CropLeft&1 != 0 || io.CropTop&1 != 0 {
		return fmt.Errorf("vp8: crop offsets must be even")
	}
	if io.CropLeft < 0 || io.CropTop < 0 ||
		io.CropLeft >= io.CropRight || io.CropTop >= io.CropBottom ||
		io.CropRight > width || io.CropBottom > height {
		return fmt.Errorf("vp8: invalid crop window")
	}
	return nil
}
