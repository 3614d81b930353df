// Package grouping finds corresponding features in different LC-MS runs
// and combines them into consensus features.
//
// All elements of all maps are put in a hash grid. A cluster is built
// around every element, holding the nearest compatible element of each
// other map. The best cluster (the one whose worst member is closest to
// the seed) is turned into a consensus feature, its members are removed,
// and the clusters that referred to them are repaired. This repeats
// until every element is part of a consensus feature.
package grouping

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Namespace for the name based UUIDs of consensus features
var consensusNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte(`https://github.com/524D/mzlink/consensus`))

// Group combines corresponding elements of two or more maps into
// consensus features. Every input element ends up in exactly one
// consensus feature.
func Group(maps []Map, par Params) (ConsensusMap, error) {
	if err := par.validate(len(maps)); err != nil {
		return ConsensusMap{}, err
	}
	return group(maps, &par, par.UseIdentities)
}

// Link combines corresponding elements of exactly two maps. It works
// like Group, but without the identity gate.
func Link(maps []Map, par Params) (ConsensusMap, error) {
	if len(maps) != 2 {
		return ConsensusMap{}, fmt.Errorf("%w: linking needs exactly 2 maps, got %d",
			ErrIncompatibleInput, len(maps))
	}
	if err := par.validate(len(maps)); err != nil {
		return ConsensusMap{}, err
	}
	return group(maps, &par, false)
}

func group(maps []Map, par *Params, useIdentities bool) (ConsensusMap, error) {
	cols, err := newColumns(maps, par.KeepSubelements)
	if err != nil {
		return ConsensusMap{}, err
	}
	model := newDistanceModel(par, useIdentities)
	features := newGridFeatures(maps, useIdentities)
	parts := partition(features, par.NrPartitions, model)

	results := make([][]extraction, len(parts))
	if len(parts) == 1 {
		results[0] = runPartition(0, parts[0], len(maps), model, par)
	} else {
		// Partitions share nothing but the read-only model
		var wg sync.WaitGroup
		for i := range parts {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = runPartition(i, parts[i], len(maps), model, par)
			}(i)
		}
		wg.Wait()
	}

	n := 0
	for _, r := range results {
		n += len(r)
	}
	out := ConsensusMap{
		ColumnHeaders: cols.headers,
		Features:      make([]ConsensusFeature, 0, n),
	}
	for i, r := range results {
		for step, ex := range r {
			out.Features = append(out.Features,
				consensusFeature(maps, parts[i], ex, &cols))
			if par.OnExtract != nil {
				seed := &parts[i][ex.seed]
				par.OnExtract(Extraction{
					Partition:   i,
					Step:        step,
					Quality:     ex.quality,
					SeedMap:     seed.MapIndex,
					SeedElement: seed.ElementIndex,
					RT:          seed.RT,
					MZ:          seed.MZ,
					Size:        len(ex.members),
				})
			}
		}
	}
	if par.Logger != nil {
		par.Logger.Printf("grouped %d elements from %d maps into %d consensus features",
			len(features), len(maps), len(out.Features))
	}
	return out, nil
}

func runPartition(i int, features []GridFeature, nMaps int, model *distanceModel, par *Params) []extraction {
	f := newFinder(features, nMaps, model, cellMZ(features, model))
	r := f.run()
	if par.Logger != nil {
		singletons := 0
		for _, ex := range r {
			if len(ex.members) == 1 {
				singletons++
			}
		}
		cellRT, cellMZ := f.grid.CellSize()
		par.Logger.Printf("partition %d: %d features in %d cells of %gx%g, %d groups (%d singletons), %d distances computed, %d cache hits",
			i, len(features), f.grid.NumCells(), cellRT, cellMZ, len(r), singletons, f.cache.len(), f.cache.hits)
	}
	return r
}

// columns assigns the output map index (column) of every member.
// Without sub-elements each input map is one column. With
// KeepSubelements, every original column of a grouped input gets a
// column of its own, so member keys stay unique.
type columns struct {
	keepSub bool
	offset  []int // First column of the sub-elements of each input map
	plain   []int // Column of the elements without sub-elements
	headers []ColumnHeader
}

func newColumns(maps []Map, keepSub bool) (columns, error) {
	c := columns{
		keepSub: keepSub,
		offset:  make([]int, len(maps)),
		plain:   make([]int, len(maps)),
	}
	for i, m := range maps {
		var counts []int // Sub-elements per original column
		nPlain := 0
		if keepSub {
			for _, e := range m.Elements {
				if len(e.SubElements) == 0 {
					nPlain++
					continue
				}
				for _, s := range e.SubElements {
					if s.MapIndex < 0 {
						return columns{}, fmt.Errorf("%w: map %q has a sub-element with map index %d",
							ErrIncompatibleInput, m.Name, s.MapIndex)
					}
					for len(counts) <= s.MapIndex {
						counts = append(counts, 0)
					}
					counts[s.MapIndex]++
				}
			}
		}
		c.offset[i] = len(c.headers)
		if len(counts) == 0 {
			c.plain[i] = len(c.headers)
			c.headers = append(c.headers, ColumnHeader{Name: m.Name, Size: len(m.Elements)})
			continue
		}
		nSub := len(counts)
		if len(m.ColumnHeaders) > nSub {
			nSub = len(m.ColumnHeaders)
		}
		for j := 0; j < nSub; j++ {
			if j < len(m.ColumnHeaders) {
				c.headers = append(c.headers, m.ColumnHeaders[j])
				continue
			}
			c.headers = append(c.headers, ColumnHeader{Name: m.Name + ":" + strconv.Itoa(j), Size: counts[j]})
		}
		c.plain[i] = -1
		if nPlain > 0 {
			c.plain[i] = len(c.headers)
			c.headers = append(c.headers, ColumnHeader{Name: m.Name, Size: len(m.Elements)})
		}
	}
	return c, nil
}

// consensusFeature converts an extraction to a consensus feature.
// The seed is the first member, so its charge and identity take
// precedence.
func consensusFeature(maps []Map, arena []GridFeature, ex extraction, cols *columns) ConsensusFeature {
	cf := ConsensusFeature{
		Quality: ex.quality,
		Members: make([]Member, 0, len(ex.members)),
	}
	keys := make([]elemKey, 0, len(ex.members))
	for _, id := range ex.members {
		g := &arena[id]
		e := &maps[g.MapIndex].Elements[g.ElementIndex]
		keys = append(keys, g.key())
		if cols.keepSub && len(e.SubElements) > 0 {
			for _, s := range e.SubElements {
				s.MapIndex += cols.offset[g.MapIndex]
				cf.Members = append(cf.Members, s)
			}
		} else {
			cf.Members = append(cf.Members, Member{
				MapIndex:     cols.plain[g.MapIndex],
				ElementIndex: g.ElementIndex,
				ID:           e.ID,
				RT:           e.RT,
				MZ:           e.MZ,
				Intensity:    e.Intensity,
				Charge:       e.Charge,
			})
		}
		if cf.Charge == 0 {
			cf.Charge = e.Charge
		}
		if cf.Identity == "" {
			cf.Identity = e.Identity
		}
	}
	sort.SliceStable(cf.Members, func(i, j int) bool {
		a, b := cf.Members[i], cf.Members[j]
		if a.MapIndex != b.MapIndex {
			return a.MapIndex < b.MapIndex
		}
		return a.ElementIndex < b.ElementIndex
	})

	rts := make([]float64, len(cf.Members))
	mzs := make([]float64, len(cf.Members))
	intensities := make([]float64, len(cf.Members))
	for i, m := range cf.Members {
		rts[i] = m.RT
		mzs[i] = m.MZ
		intensities[i] = m.Intensity
	}
	cf.RT = stat.Mean(rts, nil)
	cf.MZ = stat.Mean(mzs, nil)
	cf.Intensity = floats.Sum(intensities)
	cf.ID = consensusID(keys)
	return cf
}

// consensusID derives a stable ID from the grouped input elements
func consensusID(keys []elemKey) string {
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	b := make([]byte, 0, 16*len(keys))
	for _, k := range keys {
		b = strconv.AppendInt(b, int64(k.mapIndex), 10)
		b = append(b, ':')
		b = strconv.AppendInt(b, int64(k.elementIndex), 10)
		b = append(b, ';')
	}
	return uuid.NewSHA1(consensusNamespace, b).String()
}
