package lossless

// Symbol frequency histograms for the lossless encoder.
//
// A Histogram carries one frequency table per symbol stream: literal
// (green + length + color-cache indices), red, blue, alpha, and distance.
// The encoder builds one per tile and then clusters them (see cluster.go)
// so that many tiles can share a single entropy code.

// histChannel selects one of the five frequency tables.
type histChannel int

const (
	greenChan histChannel = iota // literal stream: green / length / cache
	redChan
	blueChan
	alphaChan
	distChan
	numChannels
)

// noSoleSymbol marks a channel whose counts are not concentrated on a
// single symbol.
const noSoleSymbol = 0xffff

// Histogram holds per-symbol frequency counts for the five symbol streams
// plus cached cost metadata maintained by updateCost and the merge helpers.
type Histogram struct {
	Literal  []uint32 // green values, length prefix codes, cache indices
	Red      [NumLiteralCodes]uint32
	Blue     [NumLiteralCodes]uint32
	Alpha    [NumLiteralCodes]uint32
	Distance [NumDistanceCodes]uint32

	cacheBits int        // color cache bits behind len(Literal)
	bitCost   float64    // sum of chanCost
	chanCost  [5]float64 // cached per-channel cost

	used    [5]bool   // channel has at least one count
	soleSym [5]uint16 // the only occupied symbol, or noSoleSymbol
	bin     uint16    // entropy bin, assigned during clustering
}

// literalSpan is the literal alphabet size for a given color cache size.
func literalSpan(cacheBits int) int {
	span := NumLiteralCodes + NumLengthCodes
	if cacheBits > 0 {
		span += 1 << cacheBits
	}
	return span
}

// NewHistogram returns an empty histogram sized for cacheBits.
func NewHistogram(cacheBits int) *Histogram {
	h := &Histogram{
		cacheBits: cacheBits,
		Literal:   make([]uint32, literalSpan(cacheBits)),
	}
	h.resetMeta()
	return h
}

// resetMeta restores the cached cost metadata to its post-allocation state.
func (h *Histogram) resetMeta() {
	for c := range h.soleSym {
		h.soleSym[c] = noSoleSymbol
		h.used[c] = true
	}
	h.bitCost = 0
	h.chanCost = [5]float64{}
}

// Clear empties every frequency table and resets the cost metadata.
func (h *Histogram) Clear() {
	for i := range h.Literal {
		h.Literal[i] = 0
	}
	h.Red = [NumLiteralCodes]uint32{}
	h.Blue = [NumLiteralCodes]uint32{}
	h.Alpha = [NumLiteralCodes]uint32{}
	h.Distance = [NumDistanceCodes]uint32{}
	h.resetMeta()
}

// AddSingle counts one token.
func (h *Histogram) AddSingle(v *PixOrCopy) {
	switch {
	case v.IsLiteral():
		px := v.Argb()
		h.Alpha[px>>24]++
		h.Red[(px>>16)&0xff]++
		h.Literal[(px>>8)&0xff]++
		h.Blue[px&0xff]++

	case v.IsCacheIdx():
		slot := NumLiteralCodes + NumLengthCodes + v.CacheIndex()
		if slot < len(h.Literal) {
			h.Literal[slot]++
		}

	case v.IsCopy():
		lenCode, _ := PrefixEncodeBitsNoLUT(v.Length())
		if slot := NumLiteralCodes + lenCode; slot < len(h.Literal) {
			h.Literal[slot]++
		}
		distCode, _ := PrefixEncodeBitsNoLUT(v.Distance())
		if distCode < NumDistanceCodes {
			h.Distance[distCode]++
		}
	}
}

// AddRefs counts every token in refs.
func (h *Histogram) AddRefs(refs *BackwardRefs) {
	for i := range refs.refs {
		h.AddSingle(&refs.refs[i])
	}
}

// assign makes h a full copy of src. h.Literal must already have src's size.
func (h *Histogram) assign(src *Histogram) {
	copy(h.Literal, src.Literal)
	h.Red = src.Red
	h.Blue = src.Blue
	h.Alpha = src.Alpha
	h.Distance = src.Distance
	h.cacheBits = src.cacheBits
	h.bitCost = src.bitCost
	h.chanCost = src.chanCost
	h.used = src.used
	h.soleSym = src.soleSym
	h.bin = src.bin
}

// channel returns the frequency table behind c.
func (h *Histogram) channel(c histChannel) []uint32 {
	switch c {
	case greenChan:
		return h.Literal
	case redChan:
		return h.Red[:]
	case blueChan:
		return h.Blue[:]
	case alphaChan:
		return h.Alpha[:]
	case distChan:
		return h.Distance[:]
	}
	return nil
}

// sumInto writes the channel-wise sum of a and b into out. out may alias
// either input; the sole-symbol and used flags are merged alongside.
func sumInto(a, b, out *Histogram) {
	span := min(len(a.Literal), len(b.Literal))
	for i := 0; i < span; i++ {
		out.Literal[i] = a.Literal[i] + b.Literal[i]
	}
	for i := range out.Red {
		out.Red[i] = a.Red[i] + b.Red[i]
		out.Blue[i] = a.Blue[i] + b.Blue[i]
		out.Alpha[i] = a.Alpha[i] + b.Alpha[i]
	}
	for i := range out.Distance {
		out.Distance[i] = a.Distance[i] + b.Distance[i]
	}
	for c := 0; c < 5; c++ {
		if a.soleSym[c] == b.soleSym[c] {
			out.soleSym[c] = a.soleSym[c]
		} else {
			out.soleSym[c] = noSoleSymbol
		}
		out.used[c] = a.used[c] || b.used[c]
	}
}

// HistogramAdd accumulates src into dst.
func HistogramAdd(dst, src *Histogram) {
	sumInto(dst, src, dst)
}

// HistogramAddEval returns the cost the union of a and b would have,
// leaving both untouched.
func HistogramAddEval(a, b *Histogram) float64 {
	return PopulationCost(newSumHistogram(a, b))
}

// newSumHistogram allocates the channel-wise sum of a and b.
func newSumHistogram(a, b *Histogram) *Histogram {
	h := &Histogram{
		Literal: make([]uint32, max(len(a.Literal), len(b.Literal))),
	}
	for i, v := range a.Literal {
		h.Literal[i] += v
	}
	for i, v := range b.Literal {
		h.Literal[i] += v
	}
	for i := range h.Red {
		h.Red[i] = a.Red[i] + b.Red[i]
		h.Blue[i] = a.Blue[i] + b.Blue[i]
		h.Alpha[i] = a.Alpha[i] + b.Alpha[i]
	}
	for i := range h.Distance {
		h.Distance[i] = a.Distance[i] + b.Distance[i]
	}
	return h
}

// HistoSet owns a group of histograms that clustering shrinks in place.
type HistoSet struct {
	items        []*Histogram
	cacheBits    int
	mergeScratch *Histogram // trial-merge buffer for bin combining
}

// HistoScratch carries the backing slabs of a HistoSet across calls so
// repeated clustering runs can reuse one allocation.
type HistoScratch struct {
	Slab    []Histogram
	LitSlab []uint32
	Ptrs    []*Histogram
}

// newHistoSet builds a set of size empty histograms on fresh slabs.
func newHistoSet(size, cacheBits int) *HistoSet {
	return newHistoSetScratch(size, cacheBits, nil)
}

// newHistoSetScratch builds a set of size empty histograms, reusing the
// slabs in scratch when they are big enough. Three allocations back the
// whole set: the struct slab, one shared literal array, and the pointer
// slice. scratch, when non-nil, is updated to the slabs actually used.
func newHistoSetScratch(size, cacheBits int, scratch *HistoScratch) *HistoSet {
	span := literalSpan(cacheBits)

	var structs []Histogram
	var lits []uint32
	var ptrs []*Histogram
	if scratch != nil {
		structs, lits, ptrs = scratch.Slab, scratch.LitSlab, scratch.Ptrs
	}

	if cap(structs) >= size {
		structs = structs[:size]
	} else {
		structs = make([]Histogram, size)
	}
	if cap(lits) >= size*span {
		lits = lits[:size*span]
	} else {
		lits = make([]uint32, size*span)
	}
	if cap(ptrs) >= size {
		ptrs = ptrs[:size]
	} else {
		ptrs = make([]*Histogram, size)
	}

	for i := range structs {
		structs[i].Literal = lits[i*span : (i+1)*span : (i+1)*span]
		structs[i].cacheBits = cacheBits
		structs[i].resetMeta()
		ptrs[i] = &structs[i]
	}

	if scratch != nil {
		scratch.Slab = structs
		scratch.LitSlab = lits
		scratch.Ptrs = ptrs
	}
	return &HistoSet{items: ptrs, cacheBits: cacheBits}
}

// Size returns the number of live histograms.
func (hs *HistoSet) Size() int { return len(hs.items) }

// Get returns the i-th live histogram.
func (hs *HistoSet) Get(i int) *Histogram { return hs.items[i] }

// drop discards entry i, moving the last entry into its place.
func (hs *HistoSet) drop(i int) {
	last := len(hs.items) - 1
	hs.items[i] = hs.items[last]
	hs.items[last] = nil
	hs.items = hs.items[:last]
}

// wipe clears every histogram in the set.
func (hs *HistoSet) wipe() {
	for _, h := range hs.items {
		h.Clear()
	}
}
