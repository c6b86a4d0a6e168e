package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Volume represents a 3D scan as an ordered stack of 2D slices.
type Volume struct {
	// Slices holds one matrix per z index. Rows run along y, columns along x.
	Slices []*mat.Dense
}

// NewVolume wraps an ordered stack of slices. All slices must share the same
// dimensions.
func NewVolume(slices []*mat.Dense) (Volume, error) {
	for z := 1; z < len(slices); z++ {
		r0, c0 := slices[0].Dims()
		r, c := slices[z].Dims()
		if r != r0 || c != c0 {
			return Volume{}, fmt.Errorf("slice %d has dimensions %dx%d, expected %dx%d", z, c, r, c0, r0)
		}
	}

	return Volume{Slices: slices}, nil
}

// NewVolumeFromData builds a volume from a flat array in row-major order,
// indexed as z*width*height + y*width + x. The slices share data's storage.
func NewVolumeFromData(data []float64, width, height, depth int) (Volume, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return Volume{}, fmt.Errorf("volume dimensions must be positive, got %dx%dx%d", width, height, depth)
	}
	if len(data) != width*height*depth {
		return Volume{}, fmt.Errorf("volume data has %d voxels, expected %d", len(data), width*height*depth)
	}

	size := width * height
	slices := make([]*mat.Dense, depth)
	for z := 0; z < depth; z++ {
		slices[z] = mat.NewDense(height, width, data[z*size:(z+1)*size])
	}

	return Volume{Slices: slices}, nil
}

// Depth is the number of slices along z.
func (v Volume) Depth() int {
	return len(v.Slices)
}

// Slice returns the slice at index z. The caller is responsible for bounds.
func (v Volume) Slice(z int) *mat.Dense {
	return v.Slices[z]
}

// Dims returns width, height and depth. An empty volume reports zeros.
func (v Volume) Dims() (width, height, depth int) {
	if len(v.Slices) == 0 {
		return 0, 0, 0
	}
	height, width = v.Slices[0].Dims()
	return width, height, len(v.Slices)
}
