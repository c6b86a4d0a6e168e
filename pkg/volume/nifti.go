package volume

import (
	"fmt"

	"github.com/henghuang/nifti"

	"lesionpatch/internal/models"
)

// LoadNifti reads the first time point of a NIfTI image. Voxel (i, j, k) ends
// up at row j, column i of slice k.
func LoadNifti(filename string) (models.Volume, error) {
	img, err := safelyNiftiParse(filename)
	if err != nil {
		return models.Volume{}, fmt.Errorf("failed to load NIfTI %s: %w", filename, err)
	}

	dims := img.GetDims()
	xm, ym, zm := int(dims[0]), int(dims[1]), int(dims[2])
	if xm <= 0 || ym <= 0 || zm <= 0 {
		return models.Volume{}, fmt.Errorf("NIfTI %s has empty dimensions %dx%dx%d", filename, xm, ym, zm)
	}

	data := make([]float64, xm*ym*zm)
	for z := 0; z < zm; z++ {
		for y := 0; y < ym; y++ {
			for x := 0; x < xm; x++ {
				data[z*xm*ym+y*xm+x] = float64(img.GetAt(x, y, z, 0))
			}
		}
	}

	return models.NewVolumeFromData(data, xm, ym, zm)
}

// safelyNiftiParse turns the panics raised by the nifti package on bad input
// into errors.
func safelyNiftiParse(filename string) (parsedData nifti.Nifti1Image, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%v", panicErr)
		}
	}()

	parsedData.LoadImage(filename, true)

	return
}
