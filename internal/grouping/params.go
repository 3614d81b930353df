package grouping

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
)

// MZUnit selects how MaxMZDiff is interpreted
type MZUnit int

const (
	UnitDa MZUnit = iota
	UnitPPM
)

func (u MZUnit) String() string {
	switch u {
	case UnitDa:
		return `Da`
	case UnitPPM:
		return `ppm`
	}
	return fmt.Sprintf("MZUnit(%d)", int(u))
}

// ParseMZUnit converts "Da" or "ppm" (case insensitive) to an MZUnit
func ParseMZUnit(s string) (MZUnit, error) {
	switch strings.ToLower(s) {
	case `da`, `th`:
		return UnitDa, nil
	case `ppm`:
		return UnitPPM, nil
	}
	return UnitDa, fmt.Errorf("%w: unknown m/z unit %q", ErrInvalidConfiguration, s)
}

var (
	// ErrInvalidConfiguration is returned before any work is done when
	// the parameters or the number of maps cannot be used
	ErrInvalidConfiguration = errors.New("grouping: invalid configuration")
	// ErrIncompatibleInput is returned by Link when not exactly two maps
	// are supplied
	ErrIncompatibleInput = errors.New("grouping: incompatible input")
)

// Params controls feature grouping.
//
// MaxRTDiff and MaxMZDiff define the window in which two features may be
// linked, and also the cell size of the spatial index. Distances inside
// the window are normalized to [0,1] per dimension and raised to
// ExponentRT and ExponentMZ before being summed.
type Params struct {
	MaxRTDiff  float64 // seconds
	MaxMZDiff  float64 // Da or ppm, depending on MZUnit
	MZUnit     MZUnit
	ExponentRT float64
	ExponentMZ float64

	// UseIdentities enables the identity gate: two features that both
	// carry an identity may only be linked if the identities are equal.
	// Link ignores this setting.
	UseIdentities bool
	// IgnoreCharge allows features with different charges to be linked
	IgnoreCharge bool
	// KeepSubelements replaces each input element that carries
	// sub-elements (i.e. a consensus feature) by those sub-elements
	// in the output
	KeepSubelements bool

	// NrPartitions splits the input at m/z gaps wider than the m/z window
	// into at most this many independent parts that are processed
	// concurrently. 0 means 1.
	NrPartitions int

	// Logger receives progress messages. nil means silent.
	Logger *log.Logger
	// OnExtract is called for every consensus feature in output order,
	// after grouping has finished
	OnExtract func(Extraction)
}

// DefaultParams returns the parameters that mzLink uses when nothing
// else is specified
func DefaultParams() Params {
	return Params{
		MaxRTDiff:    100.0,
		MaxMZDiff:    0.3,
		MZUnit:       UnitDa,
		ExponentRT:   1.0,
		ExponentMZ:   2.0,
		NrPartitions: 1,
	}
}

// validate checks the parameters for use with nMaps input maps
func (p *Params) validate(nMaps int) error {
	if nMaps < 2 {
		return fmt.Errorf("%w: at least 2 maps are needed, got %d", ErrInvalidConfiguration, nMaps)
	}
	// Written as !(x > 0) so that NaN is rejected as well
	if !(p.MaxRTDiff > 0) {
		return fmt.Errorf("%w: max RT difference must be > 0, got %v", ErrInvalidConfiguration, p.MaxRTDiff)
	}
	if !(p.MaxMZDiff > 0) {
		return fmt.Errorf("%w: max m/z difference must be > 0, got %v", ErrInvalidConfiguration, p.MaxMZDiff)
	}
	if !(p.ExponentRT > 0) || math.IsInf(p.ExponentRT, 0) {
		return fmt.Errorf("%w: RT exponent must be > 0, got %v", ErrInvalidConfiguration, p.ExponentRT)
	}
	if !(p.ExponentMZ > 0) || math.IsInf(p.ExponentMZ, 0) {
		return fmt.Errorf("%w: m/z exponent must be > 0, got %v", ErrInvalidConfiguration, p.ExponentMZ)
	}
	if p.MZUnit != UnitDa && p.MZUnit != UnitPPM {
		return fmt.Errorf("%w: unknown m/z unit %v", ErrInvalidConfiguration, p.MZUnit)
	}
	if p.NrPartitions < 0 {
		return fmt.Errorf("%w: number of partitions must be >= 0, got %d", ErrInvalidConfiguration, p.NrPartitions)
	}
	return nil
}
