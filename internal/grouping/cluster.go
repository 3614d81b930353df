package grouping

import "math"

// label restricts which features a cluster accepts. A feature with
// charge 0 or without identity fits every label; otherwise the charge
// and identity must be equal to those of the label.
type label struct {
	charge   int
	identity string
}

func (l label) accepts(g *GridFeature, m *distanceModel) bool {
	if !m.ignoreCharge && g.Charge != 0 && g.Charge != l.charge {
		return false
	}
	if m.useIdentities && g.Identity != "" && g.Identity != l.identity {
		return false
	}
	return true
}

// neighborSlot holds the best neighbor of the seed in one other map
type neighborSlot struct {
	mapIndex int
	neighbor GridFeatureID // noNeighbor if there is none
	raw      float64       // distance to the seed
	lost     bool          // neighbor was consumed and could not be replaced
}

func (s *neighborSlot) better(id GridFeatureID, raw float64) bool {
	if s.neighbor == noNeighbor {
		return true
	}
	return raw < s.raw || (raw == s.raw && id < s.neighbor)
}

// cluster is a candidate group around a seed feature
type cluster struct {
	seed    GridFeatureID
	label   label
	slots   []neighborSlot // One per map other than that of the seed, by map index
	quality float64
	active  bool
	version uint32 // Incremented on every change of quality or neighbors
}

func (c *cluster) init(seed GridFeatureID, seedMap int, nMaps int) {
	c.seed = seed
	c.active = true
	c.slots = make([]neighborSlot, 0, nMaps-1)
	for m := 0; m < nMaps; m++ {
		if m != seedMap {
			c.slots = append(c.slots, neighborSlot{mapIndex: m, neighbor: noNeighbor})
		}
	}
}

// slotIndex returns the index in the slots of a cluster for a map, or -1
// for the map of the seed
func slotIndex(mapIndex, seedMap int) int {
	switch {
	case mapIndex == seedMap:
		return -1
	case mapIndex < seedMap:
		return mapIndex
	}
	return mapIndex - 1
}

// slotOf returns the index of the slot that holds id, or -1
func (c *cluster) slotOf(id GridFeatureID) int {
	for i := range c.slots {
		if c.slots[i].neighbor == id {
			return i
		}
	}
	return -1
}

// slotsQuality computes the quality implied by a set of slots: the
// quality of the worst neighbor. Without neighbors, or when a neighbor
// was lost without replacement, the quality is 0. A slot that never had
// a neighbor doesn't lower the quality, but a lost one does: dropping
// the worst neighbor would otherwise raise the quality, and extracted
// qualities must not increase.
func slotsQuality(slots []neighborSlot) (float64, int) {
	q := 1.0
	n := 0
	lost := false
	for _, s := range slots {
		if s.lost {
			lost = true
		}
		if s.neighbor == noNeighbor {
			continue
		}
		n++
		q = math.Min(q, quality(s.raw))
	}
	if n == 0 || lost {
		return 0, n
	}
	return q, n
}

func (c *cluster) updateQuality() {
	c.quality, _ = slotsQuality(c.slots)
	c.version++
}

// members returns the seed followed by all neighbors in map order
func (c *cluster) members() []GridFeatureID {
	ids := make([]GridFeatureID, 0, len(c.slots)+1)
	ids = append(ids, c.seed)
	for _, s := range c.slots {
		if s.neighbor != noNeighbor {
			ids = append(ids, s.neighbor)
		}
	}
	return ids
}
