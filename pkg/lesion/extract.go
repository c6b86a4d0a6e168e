package lesion

import (
	"errors"
	"fmt"
	"math"

	"lesionpatch/internal/models"
)

// ImageTypeADC is the image type whose patch size can be derived from the
// real-world lesion size.
const ImageTypeADC = "ADC"

// DefaultRealSize is the default real-world lesion extent used to derive the
// patch size of ADC images.
const DefaultRealSize = 16

// ErrPatchSizeUnresolved is returned when no patch size is given for an image
// type that has no derived default.
var ErrPatchSizeUnresolved = errors.New("patch size unresolved")

// ErrInvalidPatchSize is returned for a negative explicit patch size.
var ErrInvalidPatchSize = errors.New("invalid patch size")

// Options controls patch extraction. Zero values mean "unset".
type Options struct {
	// Size is the explicit patch side length in pixels
	Size int
	// RealSize is the real-world extent used when Size is unset
	RealSize float64
	// ImageType tags the source image, e.g. "ADC"
	ImageType string
}

// DefaultOptions returns options with RealSize 16 and image type ADC.
func DefaultOptions() Options {
	return Options{RealSize: DefaultRealSize, ImageType: ImageTypeADC}
}

// PatchSize resolves the side length of the patch.
func (o Options) PatchSize() (int, error) {
	imageType := o.ImageType
	if imageType == "" {
		imageType = ImageTypeADC
	}

	if o.Size < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPatchSize, o.Size)
	}
	if o.Size > 0 {
		return o.Size, nil
	}
	if imageType != ImageTypeADC {
		return 0, fmt.Errorf("%w: no size given for image type %q", ErrPatchSizeUnresolved, imageType)
	}

	realSize := o.RealSize
	if realSize == 0 {
		realSize = DefaultRealSize
	}
	return int(math.Ceil(realSize / 2)), nil
}

// ExtractPatch resolves the patch size from opts and extracts the patch
// centred on c. ok is false when c.Z lies outside the volume.
func ExtractPatch(vol models.Volume, c models.Centroid, opts Options) (patch models.Patch, ok bool, err error) {
	size, err := opts.PatchSize()
	if err != nil {
		return models.Patch{}, false, err
	}

	patch, ok = Extract(vol, c, size)
	return patch, ok, nil
}

// Extract cuts a size×size window centred on (c.X, c.Y) out of slice c.Z.
//
// Window edges are x ± size/2 truncated toward zero. The window is not
// clamped to the slice: negative edges count from the far side of the slice
// and overflowing edges are cut short, so windows near the border come back
// smaller than requested or empty. The patch shares the slice's storage.
func Extract(vol models.Volume, c models.Centroid, size int) (models.Patch, bool) {
	if c.Z < 0 || c.Z >= vol.Depth() {
		return models.Patch{}, false
	}

	half := float64(size) / 2
	xStart := int(float64(c.X) - half)
	xEnd := int(float64(c.X) + half)
	yStart := int(float64(c.Y) - half)
	yEnd := int(float64(c.Y) + half)

	slice := vol.Slice(c.Z)
	rows, cols := slice.Dims()

	r0, r1 := sliceBounds(yStart, yEnd, rows)
	c0, c1 := sliceBounds(xStart, xEnd, cols)

	return models.NewPatch(slice, r0, r1, c0, c1), true
}

// sliceBounds resolves [start:end] against an axis of length n the way array
// slicing does: negative indices count from the end, results clamp to [0, n].
func sliceBounds(start, end, n int) (int, int) {
	return clampIndex(start, n), clampIndex(end, n)
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
		if i < 0 {
			return 0
		}
	}
	if i > n {
		return n
	}
	return i
}
