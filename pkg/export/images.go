package export

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"lesionpatch/internal/models"
	"lesionpatch/pkg/dataset"
)

// writePNGs saves every non-empty patch and returns the relative file names,
// indexed like data.Patches. Empty patches get an empty name.
func (w *Writer) writePNGs(data *dataset.TrainData) ([][]string, error) {
	patchDir := filepath.Join(w.dir, PatchDir)
	if err := os.MkdirAll(patchDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create patch directory: %w", err)
	}

	files := make([][]string, len(data.Patches))
	for i, patches := range data.Patches {
		id := data.Identities[i]
		files[i] = make([]string, len(patches))

		for m, p := range patches {
			if p.Empty() {
				w.logger.Printf("Warning: patch %d of %s is empty, no image written", m, id)
				continue
			}

			name := fmt.Sprintf("%05d_%s_%s_%d.png", i, sanitize(id.PatientID), sanitize(id.FID), m)
			if err := SavePatch(p, filepath.Join(patchDir, name), w.opts.PNGScale); err != nil {
				return nil, fmt.Errorf("failed to save patch %s: %w", name, err)
			}
			files[i][m] = filepath.Join(PatchDir, name)
		}
	}

	return files, nil
}

// SavePatch writes a patch as a PNG, upscaled by scale with nearest-neighbour
// sampling so individual pixels stay visible.
func SavePatch(p models.Patch, filename string, scale int) error {
	img := PatchToImage(p)
	if img == nil {
		return fmt.Errorf("cannot save empty patch")
	}

	if scale > 1 {
		bounds := img.Bounds()
		return imaging.Save(imaging.Resize(img, bounds.Dx()*scale, bounds.Dy()*scale, imaging.NearestNeighbor), filename)
	}
	return imaging.Save(img, filename)
}

// PatchToImage renders a patch as 16-bit grayscale, windowed so the patch
// minimum maps to black and its maximum to white. Empty patches give nil.
func PatchToImage(p models.Patch) *image.Gray16 {
	if p.Empty() {
		return nil
	}

	rows, cols := p.Dims()
	minIntensity, maxIntensity := math.Inf(1), math.Inf(-1)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := p.At(y, x)
			minIntensity = math.Min(minIntensity, v)
			maxIntensity = math.Max(maxIntensity, v)
		}
	}

	img := image.NewGray16(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			img.SetGray16(x, y, color.Gray16{Y: windowScale(p.At(y, x), minIntensity, maxIntensity)})
		}
	}

	return img
}

func windowScale(intensity, minIntensity, maxIntensity float64) uint16 {
	if maxIntensity <= minIntensity {
		return 0
	}
	return uint16(math.Round(float64(math.MaxUint16) * (intensity - minIntensity) / (maxIntensity - minIntensity)))
}
