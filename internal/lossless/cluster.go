package lossless

import (
	"fmt"
	"math"
	"runtime"
	"sync"
)

// Histogram clustering.
//
// Per-tile histograms are reduced to a small shared set in three stages:
// a coarse pass that folds together histograms landing in the same entropy
// bin, a stochastic pass that samples random pairs and merges the best one
// found per round, and (for small enough sets) an exhaustive greedy pass.
// A final assignment pass maps every tile to its cheapest surviving cluster.

const (
	binAxes   = 4                           // partitions per cost axis
	binCount  = binAxes * binAxes * binAxes // bins in the 3-D cost space
	greedyMax = 100                         // largest set the greedy pass accepts
)

// mergeCand is one candidate merge: fold histogram b into histogram a.
type mergeCand struct {
	a, b    int
	gain    float64 // C(a+b) - C(a) - C(b); negative when merging saves bits
	merged  float64 // C(a+b)
	perChan [5]float64
}

// candList keeps merge candidates with the best one (most negative gain) at
// index 0. It is deliberately not a heap: a front swap on insert and on
// rescan is enough, since the algorithms only ever consume the front.
type candList struct {
	cands []mergeCand
	cap   int // 0 = unbounded
}

func (q *candList) count() int { return len(q.cands) }

// cut removes candidate i, filling the hole from the back.
func (q *candList) cut(i int) {
	last := len(q.cands) - 1
	q.cands[i] = q.cands[last]
	q.cands = q.cands[:last]
}

// promote swaps candidate i to the front if it beats the current front.
func (q *candList) promote(i int) {
	if q.cands[i].gain < q.cands[0].gain {
		q.cands[0], q.cands[i] = q.cands[i], q.cands[0]
	}
}

// offer prices the (a, b) merge and appends it when its gain is below
// slack. It returns the gain, or 0 when the candidate was rejected or the
// list is full.
func (q *candList) offer(items []*Histogram, a, b int, slack float64) float64 {
	if q.cap > 0 && len(q.cands) >= q.cap {
		return 0
	}
	if a > b {
		a, b = b, a
	}
	pair := items[a].bitCost + items[b].bitCost

	merged, perChan, ok := jointCostUnder(items[a], items[b], slack+pair)
	if !ok {
		return 0
	}
	q.cands = append(q.cands, mergeCand{
		a:       a,
		b:       b,
		gain:    merged - pair,
		merged:  merged,
		perChan: perChan,
	})
	q.promote(len(q.cands) - 1)
	return merged - pair
}

// redirect rewrites references to histogram old as now, restoring a < b.
func redirect(c *mergeCand, old, now int) {
	if c.a == old {
		c.a = now
	}
	if c.b == old {
		c.b = now
	}
	if c.a > c.b {
		c.a, c.b = c.b, c.a
	}
}

// costBounds spans the observed literal/red/blue channel costs, the three
// axes of the entropy-bin space.
type costBounds struct {
	lo, hi [3]float64
}

var binChannels = [3]histChannel{greenChan, redChan, blueChan}

func newCostBounds() costBounds {
	return costBounds{
		lo: [3]float64{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64},
	}
}

// widen grows the bounds to cover h.
func (b *costBounds) widen(h *Histogram) {
	for k, c := range binChannels {
		v := h.chanCost[c]
		if v > b.hi[k] {
			b.hi[k] = v
		}
		if v < b.lo[k] {
			b.lo[k] = v
		}
	}
}

// slot maps a cost on axis k to a partition index.
func (b *costBounds) slot(k int, v float64) int {
	span := b.hi[k] - b.lo[k]
	if span <= 0 {
		return 0
	}
	return int(float64(binAxes-1) * (v - b.lo[k]) / span)
}

// binOf places h in the cost space: one axis in coarse mode, three otherwise.
func binOf(h *Histogram, b *costBounds, coarse bool) int {
	bin := b.slot(0, h.chanCost[greenChan])
	if !coarse {
		bin = bin*binAxes + b.slot(1, h.chanCost[redChan])
		bin = bin*binAxes + b.slot(2, h.chanCost[blueChan])
	}
	return bin
}

// combineSlack is the per-merge cost allowance of the bin pass, shrinking
// as the tile count grows and at lower qualities.
func combineSlack(n, quality int) float64 {
	slack := 16.0
	if quality >= 90 {
		return slack
	}
	for _, step := range [3]int{256, 512, 1024} {
		if n > step {
			slack /= 2
		}
	}
	if quality <= 50 {
		slack /= 2
	}
	return slack
}

// combineByBin folds each histogram into the first one seen in its bin,
// when the fold is cheap enough. In coarse mode histograms are folded
// unconditionally and costs recomputed at the end.
func combineByBin(set *HistoSet, bins int, slack float64, coarse bool) {
	first := make([]int, bins)
	misses := make([]int, bins)
	for i := range first {
		first[i] = -1
	}

	if set.mergeScratch == nil {
		set.mergeScratch = NewHistogram(set.cacheBits)
	}
	trial := set.mergeScratch

	for i := 0; i < len(set.items); {
		h := set.items[i]
		bin := int(h.bin)

		anchor := first[bin]
		if anchor == -1 {
			first[bin] = i
			i++
			continue
		}
		if coarse {
			sumInto(h, set.items[anchor], set.items[anchor])
			set.drop(i)
			continue
		}

		allow := -(h.bitCost * slack / 100.0)
		if _, ok := mergeIfCheaper(set.items[anchor], h, trial, allow); !ok {
			i++
			continue
		}

		// A merge that breaks single-symbol red/blue/alpha channels gives
		// up their near-free coding, so hold it back until this bin has
		// stalled often enough.
		const stallLimit = 32
		accept := trial.soleSym[redChan] != noSoleSymbol &&
			trial.soleSym[blueChan] != noSoleSymbol &&
			trial.soleSym[alphaChan] != noSoleSymbol
		if !accept {
			accept = (h.soleSym[redChan] == noSoleSymbol ||
				h.soleSym[blueChan] == noSoleSymbol ||
				h.soleSym[alphaChan] == noSoleSymbol) &&
				(set.items[anchor].soleSym[redChan] == noSoleSymbol ||
					set.items[anchor].soleSym[blueChan] == noSoleSymbol ||
					set.items[anchor].soleSym[alphaChan] == noSoleSymbol)
		}

		if accept || misses[bin] >= stallLimit {
			set.items[anchor], set.mergeScratch = trial, set.items[anchor]
			trial = set.mergeScratch
			set.drop(i)
		} else {
			misses[bin]++
			i++
		}
	}

	if coarse {
		for _, h := range set.items {
			h.updateCost()
		}
	}
}

// combineGreedy exhausts all pairs, repeatedly applying the best merge
// until no merge saves bits.
func combineGreedy(set *HistoSet) error {
	n := len(set.items)
	if n > 0 && n > math.MaxInt/n {
		return fmt.Errorf("vp8l: too many histograms")
	}

	q := candList{cap: n * n, cands: make([]mergeCand, 0, n*n)}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			q.offer(set.items, i, j, 0)
		}
	}

	for q.count() > 0 {
		into := q.cands[0].a
		from := q.cands[0].b

		sumInto(set.items[from], set.items[into], set.items[into])
		set.items[into].bitCost = q.cands[0].merged
		set.items[into].chanCost = q.cands[0].perChan

		moved := len(set.items) - 1
		set.drop(from)

		// Candidates touching either merged index are stale; the rest may
		// reference the histogram that drop moved into from's slot.
		for i := 0; i < q.count(); {
			c := &q.cands[i]
			if c.a == into || c.b == into || c.a == from || c.b == from {
				q.cut(i)
				continue
			}
			redirect(c, moved, from)
			q.promote(i)
			i++
		}

		for i := range set.items {
			if i != into {
				q.offer(set.items, into, i, 0)
			}
		}
	}
	return nil
}

// lehmerNext steps a minimal-standard Lehmer generator (Park-Miller
// constants: multiplier 48271, modulus 2^31-1).
func lehmerNext(seed *uint32) uint32 {
	*seed = uint32(uint64(*seed) * 48271 % 2147483647)
	return *seed
}

// combineStochastic samples random histogram pairs and applies the best
// merge found each round, until the set reaches minSize or progress stalls.
// It reports whether the greedy pass should run afterwards.
func combineStochastic(set *HistoSet, minSize int) bool {
	if len(set.items) < minSize {
		return true
	}

	const queueCap = 9
	q := candList{cap: queueCap, cands: make([]mergeCand, 0, queueCap+1)}

	var seed uint32 = 1
	rounds := len(set.items)
	stallCap := rounds / 2
	stalled := 0

	// stalled is bumped before the check, so the loop tolerates at most
	// stallCap-1 fruitless rounds in a row.
	for round := 0; round < rounds && len(set.items) >= minSize; round++ {
		stalled++
		if stalled >= stallCap {
			break
		}

		best := 0.0
		if q.count() > 0 {
			best = q.cands[0].gain
		}

		n := len(set.items)
		pairSpace := uint32((n - 1) * n)
		for draw := 0; n >= 2 && draw < n/2; draw++ {
			r := lehmerNext(&seed) % pairSpace
			a := int(r / uint32(n-1))
			b := int(r % uint32(n-1))
			if b >= a {
				b++
			}

			if gain := q.offer(set.items, a, b, best); gain < 0 {
				best = gain
				if q.count() == queueCap {
					break
				}
			}
		}
		if q.count() == 0 {
			continue
		}

		into := q.cands[0].a
		from := q.cands[0].b

		sumInto(set.items[from], set.items[into], set.items[into])
		set.items[into].bitCost = q.cands[0].merged
		set.items[into].chanCost = q.cands[0].perChan

		// Move the tail histogram into from's slot, but keep the slice
		// length until stale candidates are rewritten: some still point at
		// the old tail position.
		moved := len(set.items) - 1
		set.items[from] = set.items[moved]

		for i := 0; i < q.count(); {
			c := &q.cands[i]
			hitsA := c.a == into || c.a == from
			hitsB := c.b == into || c.b == from
			// A duplicate of the applied pair can appear from independent
			// random draws.
			if hitsA && hitsB {
				q.cut(i)
				continue
			}
			if hitsA || hitsB {
				// Point the candidate at the merged histogram and reprice
				// it; keep it only while the merge still saves bits.
				redirect(c, from, into)
				pair := set.items[c.a].bitCost + set.items[c.b].bitCost
				merged, perChan, ok := jointCostUnder(set.items[c.a], set.items[c.b], pair)
				if !ok {
					q.cut(i)
					continue
				}
				c.merged = merged
				c.perChan = perChan
				c.gain = merged - pair
			}
			redirect(c, moved, from)
			q.promote(i)
			i++
		}

		set.items[moved] = nil
		set.items = set.items[:moved]
		stalled = 0
	}

	return len(set.items) <= minSize
}

// parallelChunks splits [0, n) across GOMAXPROCS goroutines.
func parallelChunks(n int, body func(lo, hi int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	step := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += step {
		hi := min(lo+step, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			body(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}

// nearestCluster returns the cluster in set whose cost grows least when h
// is folded into it.
func nearestCluster(set *HistoSet, h *Histogram) int {
	best := 0
	bestDelta := math.MaxFloat64
	for k := range set.items {
		if delta, ok := mergeDelta(set.items[k], h, bestDelta); ok {
			bestDelta = delta
			best = k
		}
	}
	return best
}

// assignTiles maps every tile histogram to its nearest cluster, writing the
// cluster index per tile into symbols, then rebuilds each cluster as the sum
// of its tiles. A nil tile (merged away earlier) inherits the assignment of
// the tile before it.
func assignTiles(tiles []*Histogram, set *HistoSet, symbols []uint16) {
	if len(set.items) <= 1 {
		for i := range tiles {
			symbols[i] = 0
		}
	} else if n := len(tiles); n >= 64 {
		// Tiles are independent, so assign them in parallel; nil tiles get
		// a sentinel and are resolved in a serial sweep, since they depend
		// on their left neighbor.
		const unresolved = 0xffff
		parallelChunks(n, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				if tiles[i] == nil {
					symbols[i] = unresolved
					continue
				}
				symbols[i] = uint16(nearestCluster(set, tiles[i]))
			}
		})
		for i := 0; i < n; i++ {
			if symbols[i] == unresolved {
				if i > 0 {
					symbols[i] = symbols[i-1]
				} else {
					symbols[i] = 0
				}
			}
		}
	} else {
		for i, h := range tiles {
			if h == nil {
				if i > 0 {
					symbols[i] = symbols[i-1]
				}
				continue
			}
			symbols[i] = uint16(nearestCluster(set, h))
		}
	}

	for _, h := range set.items {
		h.Clear()
	}
	for i, h := range tiles {
		if h == nil {
			continue
		}
		dst := set.items[symbols[i]]
		sumInto(h, dst, dst)
	}
}

// refreshCosts recomputes cached costs, in parallel for large sets.
func refreshCosts(items []*Histogram) {
	if len(items) < 256 {
		for _, h := range items {
			h.updateCost()
		}
		return
	}
	parallelChunks(len(items), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			items[i].updateCost()
		}
	})
}

// ProgressHook reports clustering progress as a percentage in [0, 100].
// Returning false aborts the operation.
type ProgressHook func(percent int) bool

// reportProgress invokes the hook, turning a refusal into an error.
func reportProgress(hook ProgressHook, percent int) error {
	if hook != nil && !hook(percent) {
		return fmt.Errorf("vp8l: processing aborted by user")
	}
	return nil
}

// divRound divides a by b, rounding to nearest.
func divRound(a, b int) int {
	return (a + b/2) / b
}

// GetHistoImageSymbols builds one histogram per histoBits tile of refs,
// clusters the histograms into a compact set, and returns the tile-to-
// cluster map along with the final set. quality steers how hard the
// clustering works; progress, when non-nil, is polled at each stage
// boundary and may abort the run. scratch, when non-nil, donates and
// receives the tile slab.
func GetHistoImageSymbols(width, height int, refs *BackwardRefs, quality int,
	histoBits, cacheBits int, scratch *HistoScratch,
	progress ProgressHook) ([]uint16, *HistoSet, error) {

	coarse := quality < 25

	tilesX := VP8LSubSampleSize(width, histoBits)
	tileCount := tilesX * VP8LSubSampleSize(height, histoBits)

	tiles := newHistoSetScratch(tileCount, cacheBits, scratch)
	accumulateTiles(width, histoBits, refs, tiles)

	// The working set starts as pointers straight into the tile slab; nothing
	// is copied until the surviving clusters are detached below.
	clusters := &HistoSet{
		items:     make([]*Histogram, 0, tileCount),
		cacheBits: cacheBits,
	}

	refreshCosts(tiles.items[:tileCount])
	for _, h := range tiles.items[:tileCount] {
		if h.used[greenChan] || h.used[redChan] || h.used[blueChan] ||
			h.used[alphaChan] || h.used[distChan] {
			clusters.items = append(clusters.items, h)
		}
	}

	if err := reportProgress(progress, 25); err != nil {
		return nil, nil, err
	}

	bins := binCount
	if coarse {
		bins = binAxes
	}
	if len(clusters.items) > bins*2 && quality < 100 {
		slack := combineSlack(tileCount, quality)

		bounds := newCostBounds()
		for _, h := range clusters.items {
			bounds.widen(h)
		}
		for _, h := range clusters.items {
			h.bin = uint16(binOf(h, &bounds, coarse))
		}
		combineByBin(clusters, bins, slack, coarse)
	} else {
		coarse = false // nothing binned, so the random/greedy passes must run
	}

	if err := reportProgress(progress, 50); err != nil {
		return nil, nil, err
	}

	if !coarse {
		target := 1 + divRound(quality*quality*quality*(greedyMax-1), 100*100*100)
		if combineStochastic(clusters, target) {
			if err := combineGreedy(clusters); err != nil {
				return nil, nil, err
			}
		}
	}

	if err := reportProgress(progress, 75); err != nil {
		return nil, nil, err
	}

	// The assignment pass needs the original tiles back, and the surviving
	// clusters still live inside the tile slab. Copy them out, then rebuild
	// the tiles from refs.
	detachClusters(clusters, cacheBits)
	tiles.wipe()
	accumulateTiles(width, histoBits, refs, tiles)
	refreshCosts(tiles.items[:tileCount])

	// Mark empty tiles (beyond the first) so assignTiles chains them to
	// their neighbor.
	for i := 1; i < tileCount; i++ {
		h := tiles.items[i]
		if !h.used[greenChan] && !h.used[redChan] && !h.used[blueChan] &&
			!h.used[alphaChan] && !h.used[distChan] {
			tiles.items[i] = nil
		}
	}

	symbols := make([]uint16, tileCount)
	assignTiles(tiles.items, clusters, symbols)

	for _, h := range clusters.items {
		h.updateCost()
	}

	if err := reportProgress(progress, 100); err != nil {
		return nil, nil, err
	}
	return symbols, clusters, nil
}

// detachClusters copies the surviving cluster histograms out of the shared
// tile slab onto their own backing arrays.
func detachClusters(clusters *HistoSet, cacheBits int) {
	n := len(clusters.items)
	if n == 0 {
		return
	}
	span := literalSpan(cacheBits)
	structs := make([]Histogram, n)
	lits := make([]uint32, n*span)
	for i := range structs {
		structs[i].Literal = lits[i*span : (i+1)*span : (i+1)*span]
		structs[i].assign(clusters.items[i])
		clusters.items[i] = &structs[i]
	}
}

// accumulateTiles counts each token of refs into the histogram of the tile
// where the token starts; copies that run past the row edge wrap to the
// following rows without being split.
func accumulateTiles(width, histoBits int, refs *BackwardRefs, tiles *HistoSet) {
	tilesX := VP8LSubSampleSize(width, histoBits)
	tiles.wipe()

	x, y := 0, 0
	for i := range refs.refs {
		v := &refs.refs[i]
		tile := (y>>histoBits)*tilesX + (x >> histoBits)
		tiles.items[tile].AddSingle(v)
		x += v.Length()
		for x >= width {
			x -= width
			y++
		}
	}
}
