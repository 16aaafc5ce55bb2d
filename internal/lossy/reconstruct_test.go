package lossy

import (
	"testing"

	"github.com/deepteams/blockcodec/internal/dsp"
)

func seededBlock(rows int) []byte {
	b := make([]byte, rows*BPS)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

// TestDoTransformDCOnly checks that the density-code-1 shortcut matches the
// dispatched DC-only transform for positive and negative DCs.
func TestDoTransformDCOnly(t *testing.T) {
	for _, dc := range []int16{-1000, -9, -4, 0, 3, 4, 100, 800} {
		var src [16]int16
		src[0] = dc
		got := seededBlock(4)
		want := seededBlock(4)

		doTransform(1<<30, src[:], got)
		dsp.TransformDC(src[:], want)

		for j := 0; j < 4; j++ {
			for i := 0; i < 4; i++ {
				if got[j*BPS+i] != want[j*BPS+i] {
					t.Fatalf("dc=%d: pixel (%d,%d) = %d, want %d",
						dc, i, j, got[j*BPS+i], want[j*BPS+i])
				}
			}
		}
	}
}

// TestDoTransformZeroCode checks that density code 0 leaves the prediction
// untouched.
func TestDoTransformZeroCode(t *testing.T) {
	src := [16]int16{100, 50, 25, 12}
	got := seededBlock(4)
	want := seededBlock(4)
	doTransform(0, src[:], got)
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("byte %d changed from %d to %d", i, want[i], got[i])
		}
	}
}

// TestDoUVTransformDCOnly checks the chroma DC shortcut against the
// dispatched per-plane DC transform.
func TestDoUVTransformDCOnly(t *testing.T) {
	var src [64]int16
	src[0] = 40
	src[16] = -24
	src[48] = 7 // src[32] stays zero: that block must not be touched

	got := seededBlock(8)
	want := seededBlock(8)

	// bits with no AC flags, only DC presence.
	doUVTransform(0x55, src[:], got)
	dsp.TransformDCUV(src[:], want)

	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], want[i])
		}
	}
}

// TestCheckMode verifies boundary fallback for the DC predictor.
func TestCheckMode(t *testing.T) {
	tests := []struct {
		mbX, mbY, mode, want int
	}{
		{0, 0, BDCPred, BDCPredNoTopLeft},
		{0, 3, BDCPred, BDCPredNoLeft},
		{3, 0, BDCPred, BDCPredNoTop},
		{3, 3, BDCPred, BDCPred},
		{0, 0, BTMPred, BTMPred},
	}
	for _, tt := range tests {
		if got := checkMode(tt.mbX, tt.mbY, tt.mode); got != tt.want {
			t.Errorf("checkMode(%d, %d, %d) = %d, want %d",
				tt.mbX, tt.mbY, tt.mode, got, tt.want)
		}
	}
}
