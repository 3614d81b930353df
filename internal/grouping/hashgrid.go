package grouping

import "math"

type cellIndex struct {
	x int64 // RT
	y int64 // m/z
}

// HashGrid buckets features into cells of a fixed RT and m/z size.
// With the cell size equal to the maximum distance of interest, a
// neighbor query only needs to visit the 3x3 cells around a point.
// Only non-empty cells are stored.
type HashGrid struct {
	cellRT float64
	cellMZ float64
	cells  map[cellIndex][]GridFeatureID
	size   int
}

// NewHashGrid creates an empty grid with the given cell dimensions.
// Both dimensions must be > 0.
func NewHashGrid(cellRT, cellMZ float64) *HashGrid {
	return &HashGrid{
		cellRT: cellRT,
		cellMZ: cellMZ,
		cells:  make(map[cellIndex][]GridFeatureID),
	}
}

func (g *HashGrid) cellOf(rt, mz float64) cellIndex {
	return cellIndex{
		x: int64(math.Floor(rt / g.cellRT)),
		y: int64(math.Floor(mz / g.cellMZ)),
	}
}

// Insert adds a feature at position (rt, mz)
func (g *HashGrid) Insert(id GridFeatureID, rt, mz float64) {
	c := g.cellOf(rt, mz)
	g.cells[c] = append(g.cells[c], id)
	g.size++
}

// Len returns the number of features in the grid
func (g *HashGrid) Len() int {
	return g.size
}

// NumCells returns the number of non-empty cells
func (g *HashGrid) NumCells() int {
	return len(g.cells)
}

// CellSize returns the RT and m/z dimensions of a cell
func (g *HashGrid) CellSize() (float64, float64) {
	return g.cellRT, g.cellMZ
}

// Neighbors appends to dst all features in the cells that overlap the
// window [rt-dRT, rt+dRT] x [mz-dMZ, mz+dMZ] and returns the extended
// slice. Features just outside the window may be included, features
// inside are never missed.
func (g *HashGrid) Neighbors(rt, mz, dRT, dMZ float64, dst []GridFeatureID) []GridFeatureID {
	if g.size == 0 {
		return dst
	}
	lo := g.cellOf(rt-dRT, mz-dMZ)
	hi := g.cellOf(rt+dRT, mz+dMZ)
	// For very large windows it is cheaper to look at every stored cell
	// than at every cell in the window. The float comparison avoids
	// overflow for absurd windows.
	span := (float64(hi.x-lo.x) + 1) * (float64(hi.y-lo.y) + 1)
	if span > float64(len(g.cells)) {
		return g.scanCells(lo, hi, dst)
	}
	for x := lo.x; x <= hi.x; x++ {
		for y := lo.y; y <= hi.y; y++ {
			dst = append(dst, g.cells[cellIndex{x: x, y: y}]...)
		}
	}
	return dst
}

func (g *HashGrid) scanCells(lo, hi cellIndex, dst []GridFeatureID) []GridFeatureID {
	for c, ids := range g.cells {
		if c.x >= lo.x && c.x <= hi.x && c.y >= lo.y && c.y <= hi.y {
			dst = append(dst, ids...)
		}
	}
	return dst
}
