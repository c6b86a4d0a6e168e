// Package volume loads 3D scans from disk into models.Volume.
//
// Three on-disk forms are recognised: NIfTI files (.nii, .nii.gz), DICOM
// series (a directory of .dcm files, or a single multi-frame .dcm file), and
// directories of 2D slice images (PNG, JPEG, GIF or BMP) ordered by the
// number embedded in each filename.
package volume

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lesionpatch/internal/models"
)

// Load reads the volume stored at path, picking a loader from its form.
func Load(path string) (models.Volume, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.Volume{}, err
	}

	lower := strings.ToLower(path)

	if !info.IsDir() {
		switch {
		case strings.HasSuffix(lower, ".nii"), strings.HasSuffix(lower, ".nii.gz"):
			return LoadNifti(path)
		case strings.HasSuffix(lower, ".dcm"):
			return LoadDicomFiles([]string{path})
		default:
			return models.Volume{}, fmt.Errorf("unrecognised volume file %s", path)
		}
	}

	dicoms, err := filepath.Glob(filepath.Join(path, "*.dcm"))
	if err != nil {
		return models.Volume{}, err
	}
	if len(dicoms) > 0 {
		return LoadDicomFiles(dicoms)
	}

	return LoadSliceDir(path)
}

// IsVolume reports whether path looks like something Load understands,
// without reading voxel data.
func IsVolume(path string, info os.FileInfo) bool {
	if info.IsDir() {
		return true
	}
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".nii") || strings.HasSuffix(lower, ".nii.gz") || strings.HasSuffix(lower, ".dcm")
}

// SeriesName strips volume file extensions from a base name, so that
// "ADC.nii.gz" and a directory named "ADC" share the series name "ADC".
func SeriesName(base string) string {
	for _, ext := range []string{".nii.gz", ".nii", ".dcm"} {
		if strings.HasSuffix(strings.ToLower(base), ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}
