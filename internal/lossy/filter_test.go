package lossy

import "testing"

// noisyGradient fills an n x n region with a gradient plus deterministic
// noise, leaving margin pixels on all sides valid for filter context reads.
func noisyGradient(n, stride int) []byte {
	p := make([]byte, n*stride)
	r := uint32(11)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			r = r*1103515245 + 12345
			p[j*stride+i] = byte(64 + i*4 + int((r>>16)&15))
		}
	}
	return p
}

// TestSimpleFilterDirectionAgnostic checks that filtering a vertical edge
// equals filtering the horizontal edge of the transposed image: the kernel
// must depend only on the walk and step strides.
func TestSimpleFilterDirectionAgnostic(t *testing.T) {
	const n = 16
	const stride = 32
	const thresh = 12

	src := noisyGradient(n, stride)

	vert := make([]byte, len(src))
	copy(vert, src)
	simpleFilter(vert, 8, stride, 1, n, thresh)

	horiz := make([]byte, len(src))
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			horiz[i*stride+j] = src[j*stride+i]
		}
	}
	simpleFilter(horiz, 8*stride, 1, stride, n, thresh)

	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			if vert[j*stride+i] != horiz[i*stride+j] {
				t.Fatalf("pixel (%d,%d): vertical %d vs transposed horizontal %d",
					i, j, vert[j*stride+i], horiz[i*stride+j])
			}
		}
	}
}

// TestSimpleFilterFlatNoop checks that a constant region passes the softness
// test but the correction stays zero.
func TestSimpleFilterFlatNoop(t *testing.T) {
	p := make([]byte, 64)
	for i := range p {
		p[i] = 99
	}
	simpleFilter(p, 4, 8, 1, 8, 20)
	for i, v := range p {
		if v != 99 {
			t.Fatalf("byte %d changed to %d", i, v)
		}
	}
}

// TestComplexFilterEdgeWidth checks how far each variant reaches: the
// macroblock-edge filter touches three pixels per side, the inner filter
// two, and a high-variance edge only one.
func TestComplexFilterEdgeWidth(t *testing.T) {
	mk := func(q0, q1 byte) []byte {
		p := make([]byte, 8)
		for i := 0; i < 4; i++ {
			p[i] = 70
		}
		p[4], p[5], p[6], p[7] = q0, q1, q1, q1
		return p
	}

	t.Run("macroblock edge smooths p2", func(t *testing.T) {
		p := mk(90, 90)
		complexFilter(p, 4, 1, 1, 1, 50, 63, 0, true)
		if p[1] == 70 {
			t.Error("6-tap filter should reach p2")
		}
		if p[0] != 70 {
			t.Errorf("p3 must stay untouched, got %d", p[0])
		}
	})

	t.Run("inner edge stops at p1", func(t *testing.T) {
		p := mk(90, 90)
		complexFilter(p, 4, 1, 1, 1, 50, 63, 0, false)
		if p[1] != 70 {
			t.Errorf("4-tap filter must not reach p2, got %d", p[1])
		}
		if p[2] == 70 {
			t.Error("4-tap filter should adjust p1")
		}
	})

	t.Run("high variance narrows to p0/q0", func(t *testing.T) {
		p := mk(90, 110)
		complexFilter(p, 4, 1, 1, 1, 60, 63, 10, true)
		if p[2] != 70 {
			t.Errorf("2-tap filter must not reach p1, got %d", p[2])
		}
		if p[3] == 70 || p[4] == 90 {
			t.Errorf("p0 and q0 should move toward each other: p0=%d q0=%d", p[3], p[4])
		}
	})
}

// TestNeedsStrongFilter checks both rejection paths: a hard edge and a
// rough neighborhood.
func TestNeedsStrongFilter(t *testing.T) {
	flat := []byte{70, 70, 70, 70, 80, 80, 80, 80}
	if !needsStrongFilter(flat, 4, 1, 101, 9) {
		t.Error("soft step edge should pass")
	}
	if needsStrongFilter(flat, 4, 1, 30, 9) {
		t.Error("edge harder than the limit should be rejected")
	}
	rough := []byte{70, 40, 70, 70, 80, 80, 80, 80}
	if needsStrongFilter(rough, 4, 1, 101, 9) {
		t.Error("rough neighborhood should be rejected by ithresh")
	}
}

// TestHighEdgeVariance checks both sides trigger independently.
func TestHighEdgeVariance(t *testing.T) {
	p := []byte{0, 0, 50, 70, 90, 90, 0, 0}
	if !highEdgeVariance(p, 4, 1, 10) {
		t.Error("p-side jump of 20 should exceed threshold 10")
	}
	if highEdgeVariance(p, 4, 1, 25) {
		t.Error("jumps of 20 and 0 must not exceed threshold 25")
	}
	q := []byte{0, 0, 70, 70, 90, 60, 0, 0}
	if !highEdgeVariance(q, 4, 1, 25) {
		t.Error("q-side jump of 30 should exceed threshold 25")
	}
}
