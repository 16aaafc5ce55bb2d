package lossless

import "math"

// Entropy cost model.
//
// The cost of coding one channel is an estimate of its Shannon entropy plus
// an estimate of the Huffman code-length header needed to describe the code.
// The header estimate is driven by run statistics: how the occupied and
// empty symbol slots clump together, since the header run-length codes make
// long uniform stretches nearly free.

// distribution accumulates the value statistics of one channel scan.
type distribution struct {
	bits    float64 // sum of count*log2(count), flipped to entropy at the end
	total   uint32  // sum of all counts
	live    int     // number of occupied slots
	top     uint32  // largest single count
	lastIdx uint32  // slot index of the most recent occupied run
}

// runTally accumulates the run statistics of one channel scan, split by
// occupancy (index 0 = empty runs, 1 = occupied) and by run length
// (index 0 = short, at most 3 slots, 1 = longer).
type runTally struct {
	long [2]int    // number of runs longer than 3 slots
	span [2][2]int // total slots covered, [occupancy][short/long]
}

// record folds one constant-valued run [from, to) of value v into d and t.
func record(d *distribution, t *runTally, v uint32, from, to int) {
	n := to - from
	if v != 0 {
		d.total += v * uint32(n)
		d.live += n
		d.lastIdx = uint32(from)
		d.bits += slog2(v) * float64(n)
		if d.top < v {
			d.top = v
		}
	}
	occ, tail := 0, 0
	if v != 0 {
		occ = 1
	}
	if n > 3 {
		tail = 1
	}
	t.long[occ] += tail
	t.span[occ][tail] += n
}

// scanRuns walks a channel once, splitting it into constant-valued runs.
func scanRuns(pop []uint32) (distribution, runTally) {
	var d distribution
	var t runTally
	if len(pop) == 0 {
		return d, t
	}

	runAt, runVal := 0, pop[0]
	for i := 1; i < len(pop); i++ {
		if pop[i] != runVal {
			record(&d, &t, runVal, runAt, i)
			runAt, runVal = i, pop[i]
		}
	}
	record(&d, &t, runVal, runAt, len(pop))

	d.bits = slog2(d.total) - d.bits
	return d, t
}

// scanRunsJoint is scanRuns over the slot-wise sum of two equal-length
// channels, without materializing the sum.
func scanRunsJoint(x, y []uint32) (distribution, runTally) {
	var d distribution
	var t runTally
	if len(x) == 0 {
		return d, t
	}

	runAt, runVal := 0, x[0]+y[0]
	for i := 1; i < len(x); i++ {
		if v := x[i] + y[i]; v != runVal {
			record(&d, &t, runVal, runAt, i)
			runAt, runVal = i, v
		}
	}
	record(&d, &t, runVal, runAt, len(x))

	d.bits = slog2(d.total) - d.bits
	return d, t
}

// looseBits gathers value statistics only, skipping run bookkeeping.
func looseBits(pop []uint32) distribution {
	var d distribution
	for i, v := range pop {
		if v == 0 {
			continue
		}
		d.total += v
		d.lastIdx = uint32(i)
		d.live++
		d.bits += slog2(v)
		if d.top < v {
			d.top = v
		}
	}
	d.bits = slog2(d.total) - d.bits
	return d
}

// slogTableSize bounds the count values served from the lookup table;
// larger counts fall back to math.Log2.
const slogTableSize = 4096

var slogTable [slogTableSize]float64

func init() {
	for i := 1; i < slogTableSize; i++ {
		v := float64(i)
		slogTable[i] = v * math.Log2(v)
	}
}

// slog2 returns v*log2(v), with slog2(0) = 0.
func slog2(v uint32) float64 {
	if v < slogTableSize {
		return slogTable[v]
	}
	f := float64(v)
	return f * math.Log2(f)
}

// refineBits corrects the raw entropy estimate for sparse channels, where
// the Huffman code cannot reach the Shannon bound. The blend ratios and the
// 2*total-top floor come from libwebp's BitsEntropyRefine.
func refineBits(d *distribution) float64 {
	if d.live <= 1 {
		return 0
	}
	if d.live == 2 {
		return 0.99*float64(d.total) + 0.01*d.bits
	}

	blend := 0.627
	switch d.live {
	case 3:
		blend = 0.95
	case 4:
		blend = 0.7
	}
	floor := blend*float64(2*d.total-d.top) + (1-blend)*d.bits
	if d.bits < floor {
		return floor
	}
	return d.bits
}

// BitsEntropy returns the refined entropy estimate of one symbol population.
func BitsEntropy(pop []uint32) float64 {
	d := looseBits(pop)
	return refineBits(&d)
}

// headerBias is the fixed part of the code-length header estimate.
func headerBias() float64 {
	return float64(CodeLengthCodes*3) - 9.1
}

// headerCost estimates the Huffman header size from run statistics. The
// per-run weights are libwebp's fixed-point constants expressed in bits.
func headerCost(t *runTally) float64 {
	return headerBias() +
		1.5625*float64(t.long[0]) + 0.234375*float64(t.span[0][1]) +
		2.578125*float64(t.long[1]) + 0.703125*float64(t.span[1][1]) +
		1.796875*float64(t.span[0][0]) + 3.28125*float64(t.span[1][0])
}

// channelCost prices one channel and reports its sole occupied symbol (if
// any) and whether it holds any counts at all.
func channelCost(pop []uint32) (cost float64, sole uint16, used bool) {
	d, t := scanRuns(pop)

	sole = noSoleSymbol
	if d.live == 1 {
		sole = uint16(d.lastIdx)
	}
	used = t.span[1][0] != 0 || t.span[1][1] != 0
	return refineBits(&d) + headerCost(&t), sole, used
}

// PopulationCost prices a whole histogram from scratch.
func PopulationCost(h *Histogram) float64 {
	var cost float64
	for c := histChannel(0); c < numChannels; c++ {
		cc, _, _ := channelCost(h.channel(c))
		cost += cc
	}
	return cost
}

// updateCost refreshes the cached per-channel costs and metadata.
func (h *Histogram) updateCost() {
	h.bitCost = 0
	for c := histChannel(0); c < numChannels; c++ {
		cost, sole, used := channelCost(h.channel(c))
		h.chanCost[c] = cost
		h.soleSym[c] = sole
		h.used[c] = used
		h.bitCost += cost
	}
}

// BitCost returns the cached histogram cost. Valid after updateCost or a
// cost-carrying merge.
func (h *Histogram) BitCost() float64 { return h.bitCost }

// jointChannelCost prices channel c of the union of h1 and h2.
//
// Two degenerate layouts skip the run scan entirely:
//   - both sides concentrated on the same symbol at an edge of the range
//     (what palette bundling leaves on red/blue/alpha): the channel costs
//     just its header, one occupied slot plus one long empty run;
//   - one or both sides empty: the union equals the non-empty side, whose
//     refined cost is already cached, or an all-empty channel priced as a
//     single run.
func jointChannelCost(h1, h2 *Histogram, c histChannel) float64 {
	if c == redChan || c == blueChan || c == alphaChan {
		sym := h1.soleSym[c]
		if sym != noSoleSymbol && sym == h2.soleSym[c] && (sym == 0 || sym == 0xff) {
			span := len(h1.channel(c))
			var t runTally
			t.span[1][0] = 1
			t.long[0] = 1
			t.span[0][1] = span - 1
			return headerCost(&t)
		}
	}

	sameSole := h1.soleSym[c] != noSoleSymbol && h1.soleSym[c] == h2.soleSym[c]
	if sameSole || !h1.used[c] || !h2.used[c] {
		if h1.used[c] {
			return h1.chanCost[c]
		}
		if h2.used[c] {
			return h2.chanCost[c]
		}
		span := len(h1.channel(c))
		var t runTally
		t.long[0] = 1
		if span > 3 {
			t.span[0][1] = span
		} else {
			t.span[0][0] = span
		}
		return headerCost(&t)
	}

	d, t := scanRunsJoint(h1.channel(c), h2.channel(c))
	return refineBits(&d) + headerCost(&t)
}

// jointCostUnder prices the union of a and b, giving up as soon as the
// running total reaches limit. ok is false on bail-out (including a
// non-positive limit, which nothing can beat).
func jointCostUnder(a, b *Histogram, limit float64) (cost float64, perChan [5]float64, ok bool) {
	if limit <= 0 {
		return 0, perChan, false
	}
	for c := histChannel(0); c < numChannels; c++ {
		perChan[c] = jointChannelCost(a, b, c)
		cost += perChan[c]
		if cost >= limit {
			return 0, [5]float64{}, false
		}
	}
	return cost, perChan, true
}

// mergeIfCheaper merges a and b into out when the union costs less than
// a.bitCost + b.bitCost + slack, updating out's cached costs. ok reports
// whether the merge happened.
func mergeIfCheaper(a, b, out *Histogram, slack float64) (cost float64, ok bool) {
	cost, perChan, ok := jointCostUnder(a, b, slack+a.bitCost+b.bitCost)
	if !ok {
		return 0, false
	}
	sumInto(a, b, out)
	out.bitCost = cost
	out.chanCost = perChan
	return cost, true
}

// mergeDelta returns the cost increase C(a+b) - C(a) of folding b into a,
// pricing only as far as limit+C(a). ok is false when the union is not
// cheaper than that.
func mergeDelta(a, b *Histogram, limit float64) (delta float64, ok bool) {
	cost, _, ok := jointCostUnder(a, b, limit+a.bitCost)
	if !ok {
		return 0, false
	}
	return cost - a.bitCost, true
}
