package grouping

import (
	"container/heap"
	"sort"
)

type finderState int

const (
	stateIndexing finderState = iota
	stateSeeding
	stateExtracting
	stateDone
)

func (s finderState) String() string {
	switch s {
	case stateIndexing:
		return `indexing`
	case stateSeeding:
		return `seeding`
	case stateExtracting:
		return `extracting`
	case stateDone:
		return `done`
	}
	return `unknown`
}

// extraction is one group found by the finder, in arena IDs
type extraction struct {
	seed    GridFeatureID
	members []GridFeatureID
	quality float64
}

type candidate struct {
	id  GridFeatureID
	raw float64
}

// finder performs quality threshold clustering on one feature arena:
// build a cluster around every feature, then repeatedly take out the
// best cluster and repair the clusters that referred to its members.
type finder struct {
	features []GridFeature
	nMaps    int
	model    *distanceModel
	cellMZ   float64
	grid     *HashGrid
	cache    *distanceCache
	consumed []bool
	clusters []cluster // clusters[i] is seeded at features[i]
	// referrers[i] lists clusters that had features[i] as neighbor.
	// Entries are not removed when the neighbor changes, so they must
	// be checked before use.
	referrers [][]GridFeatureID
	queue     clusterQueue
	cands     []candidate
	scratch   []GridFeatureID
	slotBuf   []neighborSlot
	state     finderState
}

// newFinder prepares clustering of features, which must be ordered by
// (map index, element index). cellMZ is the m/z size of a grid cell in
// Da and must cover the m/z window of every feature.
func newFinder(features []GridFeature, nMaps int, model *distanceModel, cellMZ float64) *finder {
	return &finder{
		features: features,
		nMaps:    nMaps,
		model:    model,
		cellMZ:   cellMZ,
		cache:    newDistanceCache(model),
	}
}

func (f *finder) run() []extraction {
	f.index()
	f.seed()
	return f.extract()
}

func (f *finder) index() {
	f.state = stateIndexing
	f.grid = NewHashGrid(f.model.maxRT, f.cellMZ)
	for i := range f.features {
		f.grid.Insert(GridFeatureID(i), f.features[i].RT, f.features[i].MZ)
	}
	f.consumed = make([]bool, len(f.features))
	f.referrers = make([][]GridFeatureID, len(f.features))
}

func (f *finder) seed() {
	f.state = stateSeeding
	f.clusters = make([]cluster, len(f.features))
	f.queue = make(clusterQueue, 0, len(f.features))
	for i := range f.features {
		c := &f.clusters[i]
		c.init(GridFeatureID(i), f.features[i].MapIndex, f.nMaps)
		f.rebuild(c)
		f.queue = append(f.queue, queueEntry{quality: c.quality, id: c.seed, version: c.version})
	}
	heap.Init(&f.queue)
}

func (f *finder) extract() []extraction {
	f.state = stateExtracting
	var out []extraction
	for f.queue.Len() > 0 {
		e := heap.Pop(&f.queue).(queueEntry)
		c := &f.clusters[e.id]
		if !c.active || c.version != e.version {
			continue // stale entry
		}
		ex := extraction{seed: c.seed, members: c.members(), quality: c.quality}
		out = append(out, ex)
		f.consume(ex.members)
	}
	f.state = stateDone
	return out
}

// consume marks the members of an extracted cluster as used, and
// repairs all clusters that are affected
func (f *finder) consume(members []GridFeatureID) {
	for _, id := range members {
		f.consumed[id] = true
	}
	for _, id := range members {
		f.invalidate(id)
	}
}

// invalidate handles the consumption of feature id: the cluster seeded
// at it is deactivated, and clusters that hold it as neighbor look for
// a replacement in the same map
func (f *finder) invalidate(id GridFeatureID) {
	f.clusters[id].active = false
	for _, r := range f.referrers[id] {
		c := &f.clusters[r]
		if !c.active {
			continue
		}
		s := c.slotOf(id)
		if s < 0 {
			continue
		}
		f.refill(c, s)
		c.updateQuality()
		heap.Push(&f.queue, queueEntry{quality: c.quality, id: c.seed, version: c.version})
	}
	f.referrers[id] = nil
}

// candidates collects all unconsumed features within the window around
// the seed of c, with their distances, in f.cands
func (f *finder) candidates(c *cluster, mapIndex int) []candidate {
	seed := &f.features[c.seed]
	f.scratch = f.grid.Neighbors(seed.RT, seed.MZ, f.model.maxRT, f.cellMZ, f.scratch[:0])
	f.cands = f.cands[:0]
	for _, id := range f.scratch {
		g := &f.features[id]
		if f.consumed[id] || g.MapIndex == seed.MapIndex {
			continue
		}
		if mapIndex >= 0 && g.MapIndex != mapIndex {
			continue
		}
		raw, ok := f.cache.distance(seed, g)
		if !ok {
			continue
		}
		f.cands = append(f.cands, candidate{id: id, raw: raw})
	}
	return f.cands
}

// rebuild determines the best neighbor for every other map. If the seed
// has no charge or (with the identity gate) no identity, every charge
// and identity found among the candidates is tried as label, and the
// label giving the best cluster is kept. This prevents a cluster from
// collecting neighbors that are incompatible with each other.
func (f *finder) rebuild(c *cluster) {
	seed := &f.features[c.seed]
	cands := f.candidates(c, -1)
	labels := f.labels(seed, cands)

	bestQ, bestN := -1.0, -1
	for _, l := range labels {
		f.slotBuf = append(f.slotBuf[:0], c.slots...)
		f.fillSlots(f.slotBuf, seed.MapIndex, l, cands)
		q, n := slotsQuality(f.slotBuf)
		// labels are sorted, so on a tie the first one wins
		if q > bestQ || (q == bestQ && n > bestN) {
			bestQ, bestN = q, n
			c.label = l
			copy(c.slots, f.slotBuf)
		}
	}
	for _, s := range c.slots {
		if s.neighbor != noNeighbor {
			f.referrers[s.neighbor] = append(f.referrers[s.neighbor], c.seed)
		}
	}
	c.updateQuality()
}

func (f *finder) fillSlots(slots []neighborSlot, seedMap int, l label, cands []candidate) {
	for i := range slots {
		slots[i].neighbor = noNeighbor
		slots[i].raw = 0
	}
	for _, cd := range cands {
		g := &f.features[cd.id]
		if !l.accepts(g, f.model) {
			continue
		}
		s := &slots[slotIndex(g.MapIndex, seedMap)]
		if s.better(cd.id, cd.raw) {
			s.neighbor = cd.id
			s.raw = cd.raw
		}
	}
}

// refill looks for a new neighbor for slot s of c, after the old one
// was consumed
func (f *finder) refill(c *cluster, s int) {
	slot := &c.slots[s]
	slot.neighbor = noNeighbor
	slot.raw = 0
	for _, cd := range f.candidates(c, slot.mapIndex) {
		if !c.label.accepts(&f.features[cd.id], f.model) {
			continue
		}
		if slot.better(cd.id, cd.raw) {
			slot.neighbor = cd.id
			slot.raw = cd.raw
		}
	}
	if slot.neighbor == noNeighbor {
		slot.lost = true
		return
	}
	f.referrers[slot.neighbor] = append(f.referrers[slot.neighbor], c.seed)
}

// labels returns the labels to try for a cluster around seed, sorted by
// charge and identity
func (f *finder) labels(seed *GridFeature, cands []candidate) []label {
	charges := []int{seed.Charge}
	if !f.model.ignoreCharge && seed.Charge == 0 {
		seen := map[int]bool{0: true}
		for _, cd := range cands {
			z := f.features[cd.id].Charge
			if !seen[z] {
				seen[z] = true
				charges = append(charges, z)
			}
		}
		sort.Ints(charges)
	}
	identities := []string{seed.Identity}
	if f.model.useIdentities && seed.Identity == "" {
		seen := map[string]bool{"": true}
		for _, cd := range cands {
			id := f.features[cd.id].Identity
			if !seen[id] {
				seen[id] = true
				identities = append(identities, id)
			}
		}
		sort.Strings(identities)
	}
	labels := make([]label, 0, len(charges)*len(identities))
	for _, z := range charges {
		for _, id := range identities {
			labels = append(labels, label{charge: z, identity: id})
		}
	}
	return labels
}

// queueEntry is a snapshot of a cluster's quality. An entry is stale when
// the version differs from that of the cluster.
type queueEntry struct {
	quality float64
	id      GridFeatureID
	version uint32
}

// clusterQueue is a max-heap on quality. Equal qualities are ordered by
// seed, lowest first, which is the (map index, element index) order.
type clusterQueue []queueEntry

func (q clusterQueue) Len() int { return len(q) }
func (q clusterQueue) Less(i, j int) bool {
	if q[i].quality != q[j].quality {
		return q[i].quality > q[j].quality
	}
	return q[i].id < q[j].id
}
func (q clusterQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *clusterQueue) Push(x any) {
	*q = append(*q, x.(queueEntry))
}

func (q *clusterQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}
