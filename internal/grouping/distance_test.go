package grouping

import (
	"math"
	"testing"
)

func testModel() *distanceModel {
	p := DefaultParams()
	p.MaxRTDiff = 5
	p.MaxMZDiff = 0.1
	return newDistanceModel(&p, true)
}

func TestCompatible(t *testing.T) {
	m := testModel()
	tests := []struct {
		name string
		a, b GridFeature
		want bool
	}{
		{"both unknown charge", GridFeature{}, GridFeature{}, true},
		{"one unknown charge", GridFeature{Charge: 2}, GridFeature{}, true},
		{"same charge", GridFeature{Charge: 2}, GridFeature{Charge: 2}, true},
		{"different charge", GridFeature{Charge: 2}, GridFeature{Charge: 3}, false},
		{"one identified", GridFeature{Identity: "PEPTIDE"}, GridFeature{}, true},
		{"same identity", GridFeature{Identity: "PEPTIDE"}, GridFeature{Identity: "PEPTIDE"}, true},
		{"different identity", GridFeature{Identity: "PEPTIDE"}, GridFeature{Identity: "PEPTIDER"}, false},
	}
	for _, tc := range tests {
		if got := m.compatible(&tc.a, &tc.b); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
		if got := m.compatible(&tc.b, &tc.a); got != tc.want {
			t.Errorf("%s (swapped): expected %v, got %v", tc.name, tc.want, got)
		}
	}

	m.ignoreCharge = true
	m.useIdentities = false
	a := GridFeature{Charge: 2, Identity: "A"}
	b := GridFeature{Charge: 3, Identity: "B"}
	if !m.compatible(&a, &b) {
		t.Errorf("Expected compatible with ignoreCharge and without identity gate")
	}
}

func TestDistance(t *testing.T) {
	m := testModel()
	a := GridFeature{RT: 0, MZ: 100}

	b := GridFeature{RT: 2.5, MZ: 100.05}
	raw, ok := m.distance(&a, &b)
	if !ok {
		t.Fatalf("Expected distance within window")
	}
	// 0.5^1 + 0.5^2
	if math.Abs(raw-0.75) > 1e-9 {
		t.Errorf("Expected raw 0.75, got %f", raw)
	}
	if q := quality(raw); math.Abs(q-0.25) > 1e-9 {
		t.Errorf("Expected quality 0.25, got %f", q)
	}

	// Outside the RT window, even though the m/z distance is 0
	b = GridFeature{RT: 5.1, MZ: 100}
	if _, ok := m.distance(&a, &b); ok {
		t.Errorf("Expected rejection outside RT window")
	}
	// Outside the m/z window. With exponent 2, 1.2^2+0 would still be
	// small compared to other sums, but it must be rejected.
	b = GridFeature{RT: 0, MZ: 100.12}
	if _, ok := m.distance(&a, &b); ok {
		t.Errorf("Expected rejection outside m/z window")
	}
	// On the edge of both windows: admissible, quality 0
	b = GridFeature{RT: 5, MZ: 100}
	raw, ok = m.distance(&a, &b)
	if !ok || quality(raw) != 0 {
		t.Errorf("Expected admissible with quality 0, got ok=%v raw=%f", ok, raw)
	}
	// Incompatible charges
	b = GridFeature{RT: 0, MZ: 100, Charge: 1}
	a.Charge = 2
	if _, ok := m.distance(&a, &b); ok {
		t.Errorf("Expected rejection for different charges")
	}
}

func TestDistancePPM(t *testing.T) {
	p := DefaultParams()
	p.MaxRTDiff = 10
	p.MaxMZDiff = 10 // ppm
	p.MZUnit = UnitPPM
	m := newDistanceModel(&p, false)

	a := GridFeature{RT: 0, MZ: 1000}
	b := GridFeature{RT: 0, MZ: 1000.009} // 9 ppm
	raw1, ok1 := m.distance(&a, &b)
	raw2, ok2 := m.distance(&b, &a)
	if !ok1 || !ok2 {
		t.Fatalf("Expected 9 ppm to be inside a 10 ppm window")
	}
	if raw1 != raw2 {
		t.Errorf("Expected symmetric distance, got %g and %g", raw1, raw2)
	}
	b.MZ = 1000.011
	if _, ok := m.distance(&a, &b); ok {
		t.Errorf("Expected 11 ppm to be outside a 10 ppm window")
	}
	if w := m.mzWindow(500); math.Abs(w-0.005) > 1e-12 {
		t.Errorf("Expected window 0.005 Da at m/z 500, got %g", w)
	}
}

func TestDistanceCache(t *testing.T) {
	m := testModel()
	c := newDistanceCache(m)
	a := GridFeature{RT: 1, MZ: 100, MapIndex: 0, ElementIndex: 3}
	b := GridFeature{RT: 2, MZ: 100.01, MapIndex: 1, ElementIndex: 0}
	want, _ := m.distance(&a, &b)

	raw, ok := c.distance(&a, &b)
	if !ok || raw != want {
		t.Errorf("Expected %f, got %f (ok=%v)", want, raw, ok)
	}
	raw, ok = c.distance(&b, &a)
	if !ok || raw != want {
		t.Errorf("Expected %f for swapped pair, got %f (ok=%v)", want, raw, ok)
	}
	if c.len() != 1 {
		t.Errorf("Expected one cache entry, got %d", c.len())
	}
	if c.hits != 1 {
		t.Errorf("Expected one cache hit, got %d", c.hits)
	}

	far := GridFeature{RT: 100, MZ: 100, MapIndex: 2}
	if _, ok := c.distance(&a, &far); ok {
		t.Errorf("Expected rejection of far feature")
	}
	if _, ok := c.distance(&far, &a); ok {
		t.Errorf("Expected cached rejection of far feature")
	}
	if c.len() != 2 || c.hits != 2 {
		t.Errorf("Expected 2 entries and 2 hits, got %d and %d", c.len(), c.hits)
	}
}
