package grouping

import "math"

// distanceModel decides whether two features may be grouped and how far
// apart they are
type distanceModel struct {
	maxRT         float64
	maxMZ         float64 // Da, or ppm if ppm is set
	ppm           bool
	expRT         float64
	expMZ         float64
	useIdentities bool
	ignoreCharge  bool
}

func newDistanceModel(p *Params, useIdentities bool) *distanceModel {
	return &distanceModel{
		maxRT:         p.MaxRTDiff,
		maxMZ:         p.MaxMZDiff,
		ppm:           p.MZUnit == UnitPPM,
		expRT:         p.ExponentRT,
		expMZ:         p.ExponentMZ,
		useIdentities: useIdentities,
		ignoreCharge:  p.IgnoreCharge,
	}
}

// mzWindow returns the m/z window in Da at the given m/z
func (m *distanceModel) mzWindow(mz float64) float64 {
	if m.ppm {
		return m.maxMZ * 1e-6 * math.Abs(mz)
	}
	return m.maxMZ
}

// compatible returns false if a and b can never be in the same group,
// regardless of their positions. Unknown charge (0) and missing
// identity are compatible with anything.
func (m *distanceModel) compatible(a, b *GridFeature) bool {
	if !m.ignoreCharge && a.Charge != 0 && b.Charge != 0 && a.Charge != b.Charge {
		return false
	}
	if m.useIdentities && a.Identity != "" && b.Identity != "" && a.Identity != b.Identity {
		return false
	}
	return true
}

// distance returns the raw distance between a and b and true, or false
// if they are incompatible or outside the window in either dimension
func (m *distanceModel) distance(a, b *GridFeature) (float64, bool) {
	if !m.compatible(a, b) {
		return 0, false
	}
	dRT := math.Abs(a.RT-b.RT) / m.maxRT
	var dMZ float64
	if m.ppm {
		// Relative to the mean, so that the distance is symmetric
		dMZ = math.Abs(a.MZ-b.MZ) / m.mzWindow((a.MZ+b.MZ)/2)
	} else {
		dMZ = math.Abs(a.MZ-b.MZ) / m.maxMZ
	}
	// !(x <= 1) also rejects NaN
	if !(dRT <= 1.0) || !(dMZ <= 1.0) {
		return 0, false
	}
	return pow(dRT, m.expRT) + pow(dMZ, m.expMZ), true
}

func pow(x, e float64) float64 {
	switch e {
	case 1:
		return x
	case 2:
		return x * x
	}
	return math.Pow(x, e)
}

// quality converts a raw distance to a quality between 0 (worst) and 1
func quality(raw float64) float64 {
	return 1.0 - math.Min(raw, 1.0)
}

type pairKey struct {
	lo elemKey
	hi elemKey
}

type cachedDistance struct {
	raw float64
	ok  bool
}

// distanceCache stores each computed pair distance once, keyed by the
// ordered pair of element keys
type distanceCache struct {
	model   *distanceModel
	entries map[pairKey]cachedDistance
	hits    int
}

func newDistanceCache(model *distanceModel) *distanceCache {
	return &distanceCache{
		model:   model,
		entries: make(map[pairKey]cachedDistance),
	}
}

func (c *distanceCache) distance(a, b *GridFeature) (float64, bool) {
	ka, kb := a.key(), b.key()
	if kb.less(ka) {
		ka, kb = kb, ka
		a, b = b, a
	}
	k := pairKey{lo: ka, hi: kb}
	if d, ok := c.entries[k]; ok {
		c.hits++
		return d.raw, d.ok
	}
	raw, ok := c.model.distance(a, b)
	c.entries[k] = cachedDistance{raw: raw, ok: ok}
	return raw, ok
}

func (c *distanceCache) len() int {
	return len(c.entries)
}
