package volume

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"gonum.org/v1/gonum/mat"

	"lesionpatch/internal/models"
)

// dicomSlice is one decoded frame together with its position in the series.
type dicomSlice struct {
	instance int
	frame    int
	data     *mat.Dense
}

// LoadDicomFiles reads every frame of the given DICOM files and stacks them
// along z, ordered by InstanceNumber and then by frame index.
func LoadDicomFiles(paths []string) (models.Volume, error) {
	var slices []dicomSlice

	for _, path := range paths {
		frames, instance, err := readDicomFrames(path)
		if err != nil {
			return models.Volume{}, fmt.Errorf("failed to read DICOM %s: %w", path, err)
		}
		for i, fr := range frames {
			slices = append(slices, dicomSlice{instance: instance, frame: i, data: fr})
		}
	}

	if len(slices) == 0 {
		return models.Volume{}, fmt.Errorf("no DICOM frames found")
	}

	sort.SliceStable(slices, func(i, j int) bool {
		if slices[i].instance != slices[j].instance {
			return slices[i].instance < slices[j].instance
		}
		return slices[i].frame < slices[j].frame
	})

	stack := make([]*mat.Dense, len(slices))
	for i, s := range slices {
		stack[i] = s.data
	}

	return models.NewVolume(stack)
}

// readDicomFrames parses one DICOM file and returns its native frames, using
// the first sample of each pixel, along with the file's InstanceNumber.
func readDicomFrames(path string) ([]*mat.Dense, int, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, 0, err
	}

	instance := 0
	if el, err := ds.FindElementByTag(tag.InstanceNumber); err == nil {
		if values := dicom.MustGetStrings(el.Value); len(values) > 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(values[0])); err == nil {
				instance = n
			}
		}
	}

	pixelEl, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, 0, err
	}
	info := dicom.MustGetPixelDataInfo(pixelEl.Value)
	if info.IsEncapsulated {
		return nil, 0, fmt.Errorf("encapsulated pixel data is not supported")
	}

	var out []*mat.Dense
	for _, fr := range info.Frames {
		native, err := fr.GetNativeFrame()
		if err != nil {
			return nil, 0, err
		}
		if native.Rows <= 0 || native.Cols <= 0 {
			return nil, 0, fmt.Errorf("frame has empty dimensions %dx%d", native.Cols, native.Rows)
		}

		data := make([]float64, native.Rows*native.Cols)
		for i := range data {
			if i < len(native.Data) && len(native.Data[i]) > 0 {
				data[i] = float64(native.Data[i][0])
			}
		}
		out = append(out, mat.NewDense(native.Rows, native.Cols, data))
	}

	return out, instance, nil
}
