package dsp

import "testing"

// predBuf builds a reconstruction buffer with a known top row, left column
// and top-left sample around the block at off.  Top samples are t+i, left
// samples are l+j.
func predBuf(size int, t, l, tl byte) ([]byte, int) {
	buf := make([]byte, BPS*(size+8))
	off := 4*BPS + 4
	for i := 0; i < size+4; i++ { // includes top-right extension for 4x4 modes
		buf[off-BPS+i] = t + byte(i)
	}
	for j := 0; j < size; j++ {
		buf[off-1+j*BPS] = l + byte(j)
	}
	buf[off-1-BPS] = tl
	return buf, off
}

func TestPredLuma16(t *testing.T) {
	t.Run("DC", func(t *testing.T) {
		buf, off := predBuf(16, 10, 30, 20)
		PredLuma16[0](buf, off)
		// sum(10..25) + sum(30..45) = 280 + 600 = 880
		want := byte((880 + 16) >> 5)
		for j := 0; j < 16; j++ {
			for i := 0; i < 16; i++ {
				if buf[off+i+j*BPS] != want {
					t.Fatalf("pixel (%d,%d) = %d, want %d", i, j, buf[off+i+j*BPS], want)
				}
			}
		}
	})

	t.Run("TM", func(t *testing.T) {
		buf, off := predBuf(16, 10, 30, 20)
		PredLuma16[1](buf, off)
		for j := 0; j < 16; j++ {
			for i := 0; i < 16; i++ {
				want := Clip8b((30 + j) - 20 + (10 + i))
				if buf[off+i+j*BPS] != want {
					t.Fatalf("pixel (%d,%d) = %d, want %d", i, j, buf[off+i+j*BPS], want)
				}
			}
		}
	})

	t.Run("VE", func(t *testing.T) {
		buf, off := predBuf(16, 10, 30, 20)
		PredLuma16[2](buf, off)
		for j := 0; j < 16; j++ {
			for i := 0; i < 16; i++ {
				if buf[off+i+j*BPS] != byte(10+i) {
					t.Fatalf("pixel (%d,%d) = %d, want top sample %d", i, j, buf[off+i+j*BPS], 10+i)
				}
			}
		}
	})

	t.Run("HE", func(t *testing.T) {
		buf, off := predBuf(16, 10, 30, 20)
		PredLuma16[3](buf, off)
		for j := 0; j < 16; j++ {
			for i := 0; i < 16; i++ {
				if buf[off+i+j*BPS] != byte(30+j) {
					t.Fatalf("pixel (%d,%d) = %d, want left sample %d", i, j, buf[off+i+j*BPS], 30+j)
				}
			}
		}
	})

	t.Run("DCNoTop", func(t *testing.T) {
		buf, off := predBuf(16, 10, 30, 20)
		PredLuma16[4](buf, off)
		want := byte((600 + 8) >> 4) // left column only
		if buf[off] != want {
			t.Fatalf("got %d, want %d", buf[off], want)
		}
	})

	t.Run("DCNoLeft", func(t *testing.T) {
		buf, off := predBuf(16, 10, 30, 20)
		PredLuma16[5](buf, off)
		want := byte((280 + 8) >> 4) // top row only
		if buf[off] != want {
			t.Fatalf("got %d, want %d", buf[off], want)
		}
	})

	t.Run("DCNoTopLeft", func(t *testing.T) {
		buf, off := predBuf(16, 10, 30, 20)
		PredLuma16[6](buf, off)
		if buf[off+15+15*BPS] != 128 {
			t.Fatalf("got %d, want 128", buf[off+15+15*BPS])
		}
	})
}

func TestPredChroma8(t *testing.T) {
	buf, off := predBuf(8, 40, 60, 50)
	PredChroma8[0](buf, off) // DC
	// sum(40..47) + sum(60..67) = 348 + 508 = 856
	want := byte((856 + 8) >> 4)
	for j := 0; j < 8; j++ {
		for i := 0; i < 8; i++ {
			if buf[off+i+j*BPS] != want {
				t.Fatalf("pixel (%d,%d) = %d, want %d", i, j, buf[off+i+j*BPS], want)
			}
		}
	}

	buf, off = predBuf(8, 40, 60, 50)
	PredChroma8[6](buf, off) // no top, no left
	if buf[off] != 128 {
		t.Fatalf("got %d, want 128", buf[off])
	}
}

func TestPredLuma4(t *testing.T) {
	t.Run("DC", func(t *testing.T) {
		buf, off := predBuf(4, 10, 30, 20)
		PredLuma4[0](buf, off)
		// sum(10..13) + sum(30..33) = 46 + 126 = 172
		want := byte((172 + 4) >> 3)
		for j := 0; j < 4; j++ {
			for i := 0; i < 4; i++ {
				if buf[off+i+j*BPS] != want {
					t.Fatalf("pixel (%d,%d) = %d, want %d", i, j, buf[off+i+j*BPS], want)
				}
			}
		}
	})

	t.Run("VE", func(t *testing.T) {
		buf, off := predBuf(4, 10, 30, 20)
		PredLuma4[2](buf, off)
		// VE4 smoothes the top row: (topleft + 2*top[i] + top[i+1] + 2) >> 2.
		tops := []int{20, 10, 11, 12, 13, 14}
		for i := 0; i < 4; i++ {
			want := byte((tops[i] + 2*tops[i+1] + tops[i+2] + 2) >> 2)
			for j := 0; j < 4; j++ {
				if buf[off+i+j*BPS] != want {
					t.Fatalf("pixel (%d,%d) = %d, want %d", i, j, buf[off+i+j*BPS], want)
				}
			}
		}
	})

	t.Run("HU", func(t *testing.T) {
		buf, off := predBuf(4, 10, 30, 20)
		PredLuma4[9](buf, off)
		// Bottom-right pixels replicate the last left sample.
		if buf[off+3+3*BPS] != 33 {
			t.Fatalf("got %d, want 33", buf[off+3+3*BPS])
		}
	})

	t.Run("DirectMatchesTable", func(t *testing.T) {
		for mode := 0; mode < 10; mode++ {
			a, offA := predBuf(4, 10, 30, 20)
			b, offB := predBuf(4, 10, 30, 20)
			PredLuma4[mode](a, offA)
			PredLuma4Direct(mode, b, offB)
			for j := 0; j < 4; j++ {
				for i := 0; i < 4; i++ {
					if a[offA+i+j*BPS] != b[offB+i+j*BPS] {
						t.Fatalf("mode %d: pixel (%d,%d) differs", mode, i, j)
					}
				}
			}
		}
	})
}
