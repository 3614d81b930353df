package grouping

// GridFeatureID indexes the feature arena of one clustering run.
// IDs are handed out in (map index, element index) order, so comparing
// IDs is the same as comparing (map index, element index) pairs.
type GridFeatureID int32

const noNeighbor = GridFeatureID(-1)

// GridFeature is the clustering view of one input element.
// It is created when the input is read and never changed afterwards.
type GridFeature struct {
	RT           float64
	MZ           float64
	Intensity    float64
	Charge       int
	MapIndex     int
	ElementIndex int
	Identity     string // "" if not identified
}

// newGridFeatures builds the feature arena for all maps.
// Identities are dropped when the identity gate is not used, so that
// they can't influence the clustering.
func newGridFeatures(maps []Map, useIdentities bool) []GridFeature {
	n := 0
	for _, m := range maps {
		n += len(m.Elements)
	}
	features := make([]GridFeature, 0, n)
	for i, m := range maps {
		for j, e := range m.Elements {
			gf := GridFeature{
				RT:           e.RT,
				MZ:           e.MZ,
				Intensity:    e.Intensity,
				Charge:       e.Charge,
				MapIndex:     i,
				ElementIndex: j,
			}
			if useIdentities {
				gf.Identity = e.Identity
			}
			features = append(features, gf)
		}
	}
	return features
}

// elemKey identifies an input element independent of the arena
type elemKey struct {
	mapIndex     int
	elementIndex int
}

func (g *GridFeature) key() elemKey {
	return elemKey{mapIndex: g.MapIndex, elementIndex: g.ElementIndex}
}

func (k elemKey) less(o elemKey) bool {
	if k.mapIndex != o.mapIndex {
		return k.mapIndex < o.mapIndex
	}
	return k.elementIndex < o.elementIndex
}
