package grouping

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// partition splits features into at most n parts along m/z. A split is
// only made where the m/z gap between neighboring features is wider
// than the m/z window, so no pair of features that could be grouped
// ends up in different parts. Within each part, the features keep
// their (map index, element index) order.
func partition(features []GridFeature, n int, model *distanceModel) [][]GridFeature {
	if n <= 1 || len(features) < 2 {
		return [][]GridFeature{features}
	}
	order := make([]int, len(features))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return features[order[i]].MZ < features[order[j]].MZ
	})

	target := (len(features) + n - 1) / n
	var parts [][]int
	start := 0
	for i := 1; i < len(order) && len(parts) < n-1; i++ {
		if i-start < target {
			continue
		}
		lo := features[order[i-1]].MZ
		hi := features[order[i]].MZ
		if hi-lo > model.mzWindow(hi) {
			parts = append(parts, order[start:i])
			start = i
		}
	}
	parts = append(parts, order[start:])

	result := make([][]GridFeature, len(parts))
	for i, p := range parts {
		sort.Ints(p)
		result[i] = make([]GridFeature, len(p))
		for j, k := range p {
			result[i][j] = features[k]
		}
	}
	return result
}

// cellMZ returns the m/z size of grid cells for a set of features. In
// ppm mode the window grows with m/z, so the window at the highest m/z
// is used.
func cellMZ(features []GridFeature, model *distanceModel) float64 {
	if !model.ppm {
		return model.maxMZ
	}
	if len(features) == 0 {
		return 1.0
	}
	mzs := make([]float64, len(features))
	for i := range features {
		mzs[i] = math.Abs(features[i].MZ)
	}
	w := model.mzWindow(floats.Max(mzs))
	if !(w > 0) || math.IsInf(w, 0) {
		return 1.0
	}
	return w
}
