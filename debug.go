// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

// This file contains code to help debugging, and is
// separated in from the rest in order not to litter
// the main code with debugging stuff

package main

import (
	"fmt"
	"io"
	"math"

	"github.com/524D/mzlink/internal/grouping"
	"github.com/524D/mzlink/internal/idmapper"
)

// extractionTracer prints the extractions whose seed m/z lies in a range
type extractionTracer struct {
	mzMin, mzMax float64
	w            io.Writer
	traced       int
	partition    int
	lastQuality  float64
	sizes        map[int]int // Number of traced extractions per size
}

func newExtractionTracer(mzRange string, w io.Writer) (*extractionTracer, error) {
	mzMin, mzMax, err := idmapper.ParseFloat64Range(mzRange, -math.MaxFloat64, math.MaxFloat64)
	if err != nil {
		return nil, err
	}
	return &extractionTracer{
		mzMin:       mzMin,
		mzMax:       mzMax,
		w:           w,
		lastQuality: math.Inf(1),
		sizes:       make(map[int]int),
	}, nil
}

// trace is called for every extraction, in output order
func (t *extractionTracer) trace(e grouping.Extraction) {
	if e.MZ < t.mzMin || e.MZ > t.mzMax {
		return
	}
	if t.traced == 0 || e.Partition != t.partition {
		fmt.Fprintf(t.w, "Partition:%d\n", e.Partition)
		t.partition = e.Partition
		t.lastQuality = math.Inf(1)
	}
	t.traced++
	t.sizes[e.Size]++
	// Within a partition, quality may not increase
	mark := ``
	if e.Quality > t.lastQuality {
		mark = ` (!)`
	}
	t.lastQuality = e.Quality
	fmt.Fprintf(t.w, "%d seed:%d:%d rt:%f mz:%f size:%d quality:%f%s\n",
		e.Step, e.SeedMap, e.SeedElement, e.RT, e.MZ, e.Size, e.Quality, mark)
}

func (t *extractionTracer) summary() {
	fmt.Fprintf(t.w, "Traced %d extractions with seed m/z in %f:%f\n", t.traced, t.mzMin, t.mzMax)
	for size := 1; len(t.sizes) > 0; size++ {
		if n, ok := t.sizes[size]; ok {
			fmt.Fprintf(t.w, "  size %d: %d\n", size, n)
			delete(t.sizes, size)
		}
	}
}
