package volume

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"

	"gonum.org/v1/gonum/mat"

	"lesionpatch/internal/models"
)

var sliceExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
}

// LoadSliceDir loads a directory of 2D slice images as a volume. Slices are
// ordered by the number in their filename; intensities are scaled to [0, 1].
func LoadSliceDir(dir string) (models.Volume, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return models.Volume{}, err
	}

	var imageFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if sliceExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			imageFiles = append(imageFiles, entry.Name())
		}
	}

	if len(imageFiles) == 0 {
		return models.Volume{}, fmt.Errorf("no slice images found in %s", dir)
	}

	// Keep anatomical order: slice_2 comes before slice_10
	sort.SliceStable(imageFiles, func(i, j int) bool {
		return extractNumber(imageFiles[i]) < extractNumber(imageFiles[j])
	})

	slices := make([]*mat.Dense, 0, len(imageFiles))
	for _, filename := range imageFiles {
		img, err := loadImage(filepath.Join(dir, filename))
		if err != nil {
			return models.Volume{}, fmt.Errorf("failed to load image %s: %w", filename, err)
		}
		slice, err := imageToDense(img)
		if err != nil {
			return models.Volume{}, fmt.Errorf("image %s: %w", filename, err)
		}
		slices = append(slices, slice)
	}

	return models.NewVolume(slices)
}

// extractNumber returns the digits of a filename read as one integer, or 0.
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}

	if digits.Len() > 0 {
		if num, err := strconv.Atoi(digits.String()); err == nil {
			return num
		}
	}
	return 0
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	return img, err
}

// imageToDense converts an image to a matrix of [0, 1] intensities taken from
// the red channel.
func imageToDense(img image.Image) (*mat.Dense, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("empty image")
	}
	data := make([]float64, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			data[y*width+x] = float64(r) / 65535.0
		}
	}

	return mat.NewDense(height, width, data), nil
}
