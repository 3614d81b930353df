package idmapper

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/524D/mzlink/internal/mzidentml"
)

// ErrRangeSpec is returned when a range like "1.5:3" can't be used
var ErrRangeSpec = errors.New("invalid range specified")

// ScoreRange is the accepted range of one score term
type ScoreRange struct {
	MinScore float64 // Minimum score to accept
	MaxScore float64 // Maximum score to accept
	Priority int     // Priority of the score, lowest is best
}

// ScoreFilter maps CV accession numbers or CV names of score terms
// to their accepted range
type ScoreFilter map[string]ScoreRange

var (
	reFloatRange   = regexp.MustCompile(`\s*([-+]?[0-9]*\.?[0-9]*([eE][-+]?[0-9]+)?):([-+]?[0-9]*\.?[0-9]*([eE][-+]?[0-9]+)?)`)
	reScoreFilters = regexp.MustCompile(`([^\(]+)\(([^\)]*)\)`)
)

// ParseFloat64Range parses a string like "-12.01e1:+6" into 2 values,
// -120.1 and 6.0. Parameters min and max are the "default" min/max values,
// when a value is not specified (e.g. "-12.01e1:"), the default is assigned
func ParseFloat64Range(r string, min float64, max float64) (
	float64, float64, error) {
	m := reFloatRange.FindStringSubmatch(r)
	minOut := min
	maxOut := max
	if len(m) >= 2 && m[1] != "" {
		minOut, _ = strconv.ParseFloat(m[1], 64)
		if minOut < min {
			minOut = min
		}
	}
	if len(m) >= 4 && m[3] != "" {
		maxOut, _ = strconv.ParseFloat(m[3], 64)
		if maxOut > max {
			maxOut = max
		}
	}
	var err error
	if minOut > maxOut {
		err = ErrRangeSpec
		minOut = maxOut
	}
	return minOut, maxOut, err
}

// ParseScoreFilter parses a filter like "MS:1002257(0.0:1e-2)MS:1001330(0.0:1e-2)".
// The order of the terms sets their priority, the first is most important.
func ParseScoreFilter(scoreFilterStr string) (ScoreFilter, error) {
	scoreFilt := make(ScoreFilter)
	for n, matchedStrings := range reScoreFilters.FindAllStringSubmatch(scoreFilterStr, -1) {
		scoreName := matchedStrings[1]
		if _, ok := scoreFilt[scoreName]; ok {
			return nil, fmt.Errorf("%w: %s defined more than once", ErrRangeSpec, scoreName)
		}
		minScore, maxScore, err := ParseFloat64Range(matchedStrings[2],
			-math.MaxFloat64, math.MaxFloat64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid range for score %s", ErrRangeSpec, scoreName)
		}
		scoreFilt[scoreName] = ScoreRange{MinScore: minScore, MaxScore: maxScore, Priority: n}
	}
	return scoreFilt, nil
}

// accept checks the score terms of an identification against the filter.
// Only the term with the best priority decides. An empty filter accepts
// everything. The priority of the deciding term is returned as well.
func (f ScoreFilter) accept(cvs []mzidentml.CvParam) (bool, int, error) {
	if len(f) == 0 {
		return true, 0, nil
	}
	scoreOK := false
	curPrio := math.MaxInt32
	for _, cv := range cvs {
		// Check if the CV accession number or CV name matches scorefilter
		filt, ok := f[cv.Accession]
		if !ok {
			filt, ok = f[cv.Name]
		}
		if !ok || filt.Priority >= curPrio {
			continue
		}
		score, err := strconv.ParseFloat(cv.Value, 64)
		if err != nil {
			return false, 0, fmt.Errorf("invalid score value %q for %s", cv.Value, cv.Name)
		}
		curPrio = filt.Priority
		scoreOK = score >= filt.MinScore && score <= filt.MaxScore
	}
	return scoreOK, curPrio, nil
}
