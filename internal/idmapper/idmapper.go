// Package idmapper annotates features with the peptide sequence of
// nearby identifications, so that grouping can use them as identity.
package idmapper

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/524D/mzlink/internal/grouping"
	"github.com/524D/mzlink/internal/mzidentml"
)

const massProton = float64(1.007276466879)
const massH2O = float64(18.0105647)

// Masses of amino acids (minus H2O)
var aaMass = map[rune]float64{
	'A': 71.0371138,
	'C': 103.0091848,
	'D': 115.0269430,
	'E': 129.0425931,
	'F': 147.0684139,
	'G': 57.0214637,
	'H': 137.0589119,
	'I': 113.0840640,
	'K': 128.0949630,
	'L': 113.0840640,
	'M': 131.0404849,
	'N': 114.0429274,
	'P': 97.0527638,
	'O': 237.1477269, // Pyrrolysine
	'Q': 128.0585775,
	'R': 156.1011110,
	'S': 87.0320284,
	'T': 101.0476785,
	'U': 144.9595902, // Selenocysteine
	'V': 99.0684139,
	'W': 186.0793129,
	'Y': 163.0633285,
}

var (
	// ErrInvalidAminoAcid means a peptide sequence contains an unknown residue
	ErrInvalidAminoAcid = errors.New("invalid amino acid")
	// ErrNoRetentionTime means an identification has no retention time,
	// and none could be found in the spectra
	ErrNoRetentionTime = errors.New("no valid retention time for identification")
)

// IdentSource provides identifications, e.g. an mzIdentML file
type IdentSource interface {
	NumIdents() int
	Ident(i int) (mzidentml.Identification, error)
}

// RetentionTimer looks up the retention time of a spectrum by its id,
// e.g. from an mzML file
type RetentionTimer interface {
	RetentionTimeByID(scanID string) (float64, error)
}

// Params controls which identifications are accepted and how close they
// must be to a feature
type Params struct {
	RTTolerance float64 // seconds
	MZTolerance float64 // ppm
	Filter      ScoreFilter
	Logger      *log.Logger
}

// DefaultParams returns the tolerances used when nothing else is specified
func DefaultParams() Params {
	return Params{
		RTTolerance: 30.0,
		MZTolerance: 10.0,
	}
}

// Hit is an accepted identification, reduced to what mapping needs
type Hit struct {
	Sequence string
	SpecID   string
	RT       float64 // seconds
	MZ       float64
	Charge   int
	priority int // of the score term that accepted the hit
}

// Stats summarizes the result of Annotate
type Stats struct {
	Idents     int // Identifications read
	Accepted   int // Identifications that passed rank and score filter
	Annotated  int // Elements that received an identity
	Ambiguous  int // Annotated elements with more than one candidate sequence
	Unassigned int // Accepted identifications not used for any element
}

// pepMass computes the lowest isotope mass of the peptide
func pepMass(pepSeq string) (float64, error) {
	m := massH2O
	for _, aa := range pepSeq {
		aam, ok := aaMass[aa]
		if !ok {
			return 0.0, fmt.Errorf("%w %q in %s", ErrInvalidAminoAcid, aa, pepSeq)
		}
		m += aam
	}
	return m, nil
}

// hitMZ returns the m/z to match a feature against. The theoretical m/z
// is preferred over the measured precursor m/z, which may be off by an
// isotope.
func hitMZ(ident *mzidentml.Identification) float64 {
	if ident.Charge > 0 {
		if m, err := pepMass(ident.PepSeq); err == nil {
			return (m+ident.ModMass)/float64(ident.Charge) + massProton
		}
	}
	if ident.CalcMZ > 0 {
		return ident.CalcMZ
	}
	return ident.ExpMZ
}

// Hits reads all identifications from ids that are rank 1 and pass the
// score filter, sorted by retention time. rts is used for identifications
// that don't report a retention time themselves, and may be nil.
func Hits(ids IdentSource, rts RetentionTimer, filter ScoreFilter) ([]Hit, error) {
	hits := make([]Hit, 0, ids.NumIdents())
	for i := 0; i < ids.NumIdents(); i++ {
		ident, err := ids.Ident(i)
		if err != nil {
			return nil, err
		}
		// Rank is optional, missing means first
		if ident.Rank > 1 {
			continue
		}
		ok, prio, err := filter.accept(ident.Cv)
		if err != nil {
			return nil, fmt.Errorf("identification %s: %w", ident.PepID, err)
		}
		if !ok {
			continue
		}
		rt := ident.RetentionTime
		if rt < 0 && rts != nil {
			rt, err = rts.RetentionTimeByID(ident.SpecID)
			if err != nil {
				return nil, fmt.Errorf("identification %s, spectrum %q: %w", ident.PepID, ident.SpecID, err)
			}
		}
		if rt < 0 {
			return nil, fmt.Errorf("%w %s", ErrNoRetentionTime, ident.PepID)
		}
		hits = append(hits, Hit{
			Sequence: ident.PepSeq,
			SpecID:   ident.SpecID,
			RT:       rt,
			MZ:       hitMZ(&ident),
			Charge:   ident.Charge,
			priority: prio,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].RT < hits[j].RT })
	return hits, nil
}

// better reports whether hit a is preferred over hit b for an element
// at retention time rt
func better(a, b *Hit, rt float64) bool {
	da, db := math.Abs(a.RT-rt), math.Abs(b.RT-rt)
	if da != db {
		return da < db
	}
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.Sequence < b.Sequence
}

// Annotate sets the identity of every element of m that has none yet to
// the sequence of the best hit within the tolerances. hits must be sorted
// by retention time, as returned by Hits.
func Annotate(m *grouping.Map, hits []Hit, par Params) (Stats, error) {
	var st Stats
	if !(par.RTTolerance >= 0) || !(par.MZTolerance >= 0) {
		return st, fmt.Errorf("%w: identification tolerances must be >= 0",
			grouping.ErrInvalidConfiguration)
	}
	used := make([]bool, len(hits))
	for i := range m.Elements {
		e := &m.Elements[i]
		if e.Identity != "" {
			continue
		}
		mzTol := par.MZTolerance * 1e-6 * math.Abs(e.MZ)
		lo := sort.Search(len(hits), func(j int) bool { return hits[j].RT >= e.RT-par.RTTolerance })
		best := -1
		var seq string
		ambiguous := false
		for j := lo; j < len(hits) && hits[j].RT <= e.RT+par.RTTolerance; j++ {
			h := &hits[j]
			if math.Abs(h.MZ-e.MZ) > mzTol {
				continue
			}
			if e.Charge != 0 && h.Charge != 0 && e.Charge != h.Charge {
				continue
			}
			if best < 0 {
				seq = h.Sequence
			} else if h.Sequence != seq {
				ambiguous = true
			}
			if best < 0 || better(h, &hits[best], e.RT) {
				best = j
			}
		}
		if best < 0 {
			continue
		}
		e.Identity = hits[best].Sequence
		used[best] = true
		st.Annotated++
		if ambiguous {
			st.Ambiguous++
		}
	}
	st.Accepted = len(hits)
	for _, u := range used {
		if !u {
			st.Unassigned++
		}
	}
	if par.Logger != nil {
		par.Logger.Printf("%s: %d of %d elements annotated (%d ambiguous), %d of %d identifications unassigned",
			m.Name, st.Annotated, len(m.Elements), st.Ambiguous, st.Unassigned, st.Accepted)
	}
	return st, nil
}

// AnnotateFrom reads hits from ids and annotates m with them
func AnnotateFrom(m *grouping.Map, ids IdentSource, rts RetentionTimer, par Params) (Stats, error) {
	hits, err := Hits(ids, rts, par.Filter)
	if err != nil {
		return Stats{}, err
	}
	st, err := Annotate(m, hits, par)
	st.Idents = ids.NumIdents()
	return st, err
}
