package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat"

	"lesionpatch/pkg/dataset"
)

// ManifestRow describes one exported sample.
type ManifestRow struct {
	RunID     string  `csv:"run_id"`
	Sample    int     `csv:"sample"`
	PatientID string  `csv:"patient_id"`
	FID       string  `csv:"fid"`
	ClinSig   bool    `csv:"clin_sig"`
	Patches   int     `csv:"patches"`
	Shapes    string  `csv:"shapes"`
	Mean      float64 `csv:"mean"`
	StdDev    float64 `csv:"std"`
	Files     string  `csv:"png_files"`
}

// manifestRows builds one row per sample. Intensity statistics pool every
// pixel of the sample's patches.
func manifestRows(runID string, data *dataset.TrainData, pngFiles [][]string) []*ManifestRow {
	rows := make([]*ManifestRow, 0, data.Len())
	for i, patches := range data.Patches {
		var pixels []float64
		shapes := make([]string, len(patches))
		for m, p := range patches {
			r, c := p.Dims()
			shapes[m] = fmt.Sprintf("%dx%d", r, c)
			pixels = append(pixels, p.Pixels()...)
		}

		row := &ManifestRow{
			RunID:     runID,
			Sample:    i,
			PatientID: data.Identities[i].PatientID,
			FID:       data.Identities[i].FID,
			ClinSig:   data.Labels[i],
			Patches:   len(patches),
			Shapes:    strings.Join(shapes, ";"),
		}
		if len(pixels) > 0 {
			row.Mean, row.StdDev = stat.MeanStdDev(pixels, nil)
			if len(pixels) == 1 {
				row.StdDev = 0
			}
		}
		if i < len(pngFiles) {
			row.Files = strings.Join(pngFiles[i], ";")
		}
		rows = append(rows, row)
	}
	return rows
}

func writeManifest(path, runID string, data *dataset.TrainData, pngFiles [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	defer f.Close()

	if err := gocsv.Marshal(manifestRows(runID, data, pngFiles), f); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
