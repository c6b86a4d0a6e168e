package models

import (
	"gonum.org/v1/gonum/mat"
)

// Patch is a 2D window cut out of a volume slice.
//
// A patch is a view: it shares storage with the slice it was taken from, so
// writes to the source are visible through the patch. Use Clone for an
// independent copy. Windows that fall partly or fully outside the slice
// produce smaller or zero-area patches.
type Patch struct {
	rows, cols int
	view       *mat.Dense
}

// NewPatch returns the view src[r0:r1, c0:c1]. Bounds must already lie within
// src. An inverted or zero-width range yields an empty patch.
func NewPatch(src *mat.Dense, r0, r1, c0, c1 int) Patch {
	rows, cols := r1-r0, c1-c0
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	if rows == 0 || cols == 0 {
		return Patch{rows: rows, cols: cols}
	}

	return Patch{rows: rows, cols: cols, view: src.Slice(r0, r1, c0, c1).(*mat.Dense)}
}

// Dims returns the number of rows (y) and columns (x).
func (p Patch) Dims() (rows, cols int) {
	return p.rows, p.cols
}

// Empty reports whether the patch holds no pixels.
func (p Patch) Empty() bool {
	return p.view == nil
}

// At returns the intensity at row r, column c.
func (p Patch) At(r, c int) float64 {
	return p.view.At(r, c)
}

// Matrix exposes the underlying view, or nil for an empty patch.
func (p Patch) Matrix() *mat.Dense {
	return p.view
}

// Clone returns a patch backed by its own storage.
func (p Patch) Clone() Patch {
	if p.view == nil {
		return p
	}
	return Patch{rows: p.rows, cols: p.cols, view: mat.DenseCopyOf(p.view)}
}

// Pixels returns a row-major copy of the intensities.
func (p Patch) Pixels() []float64 {
	out := make([]float64, 0, p.rows*p.cols)
	if p.view == nil {
		return out
	}
	for r := 0; r < p.rows; r++ {
		for c := 0; c < p.cols; c++ {
			out = append(out, p.view.At(r, c))
		}
	}
	return out
}

// Equal reports whether both patches have the same shape and intensities.
func (p Patch) Equal(other Patch) bool {
	if p.rows != other.rows || p.cols != other.cols {
		return false
	}
	if p.view == nil || other.view == nil {
		return p.view == nil && other.view == nil
	}
	return mat.Equal(p.view, other.view)
}
