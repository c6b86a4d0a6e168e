// Package export writes aligned training data to disk.
//
// A run produces, depending on Options:
//   - patches/<sample>_<patient>_<fid>_<position>.png, one image per patch
//   - manifest.csv, one row per sample
//   - samples.parquet, one row per patch with its flattened pixels
//
// Every file of a run carries the same run id.
package export

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"lesionpatch/pkg/dataset"
)

// File names inside the output directory.
const (
	PatchDir     = "patches"
	ManifestFile = "manifest.csv"
	ParquetFile  = "samples.parquet"
)

// Options selects what a Writer produces.
type Options struct {
	WritePNG      bool
	PNGScale      int
	WriteManifest bool
	WriteParquet  bool
}

// Summary reports what a Write call produced.
type Summary struct {
	RunID    string
	Samples  int
	PNGs     int
	Manifest string
	Parquet  string
}

// Writer exports TrainData to a directory.
type Writer struct {
	dir    string
	opts   Options
	logger *log.Logger
}

// NewWriter creates a writer for dir. A nil logger uses the standard logger.
func NewWriter(dir string, opts Options, logger *log.Logger) *Writer {
	if opts.PNGScale <= 0 {
		opts.PNGScale = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Writer{dir: dir, opts: opts, logger: logger}
}

// Write exports data under a fresh run id.
func (w *Writer) Write(data *dataset.TrainData) (Summary, error) {
	summary := Summary{RunID: uuid.NewString(), Samples: data.Len()}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return summary, fmt.Errorf("failed to create output directory: %w", err)
	}

	var pngFiles [][]string
	if w.opts.WritePNG {
		files, err := w.writePNGs(data)
		if err != nil {
			return summary, err
		}
		pngFiles = files
		for _, f := range files {
			for _, name := range f {
				if name != "" {
					summary.PNGs++
				}
			}
		}
	}

	if w.opts.WriteManifest {
		path := filepath.Join(w.dir, ManifestFile)
		if err := writeManifest(path, summary.RunID, data, pngFiles); err != nil {
			return summary, err
		}
		summary.Manifest = path
	}

	if w.opts.WriteParquet {
		path := filepath.Join(w.dir, ParquetFile)
		if err := writeParquet(path, summary.RunID, data); err != nil {
			return summary, err
		}
		summary.Parquet = path
	}

	return summary, nil
}

// sanitize makes an identifier safe to embed in a file name.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
}
