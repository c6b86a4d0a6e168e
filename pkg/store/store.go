// Package store implements a lesion source over a dataset directory.
//
// A dataset directory holds a lesion table and one sub-directory per patient:
//
//	<root>/lesions.csv
//	<root>/<patient>/<series>          NIfTI file, DICOM series or slice images
//
// The lesion table needs the columns patient_id, fid, modality, ijk and
// ClinSig. The modality column names the series a row belongs to; ijk is the
// lesion centroid in that series' voxel space. Any other column is kept as an
// extra attribute.
package store

import (
	"fmt"
	"iter"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"

	"lesionpatch/internal/models"
	"lesionpatch/pkg/volume"
)

// DefaultLesionsFile is the name of the lesion table inside a dataset root.
const DefaultLesionsFile = "lesions.csv"

// ColumnSeries is the lesion table column naming the series of a row.
const ColumnSeries = "modality"

// series is one volume found under a patient directory.
type series struct {
	name string
	path string
}

// Store is an open dataset directory.
type Store struct {
	root        string
	name        string
	lesionsFile string
	logger      *log.Logger

	patients []string
	series   map[string][]series
	// lesions is keyed by patient, then series name
	lesions map[string]map[string][]models.LesionRecord
}

// Option configures Open.
type Option func(*Store)

// WithLesionsFile overrides the lesion table name, relative to the root.
func WithLesionsFile(name string) Option {
	return func(s *Store) {
		s.lesionsFile = name
	}
}

// WithName sets the first segment of every lesion name. It defaults to the
// base name of the root directory.
func WithName(name string) Option {
	return func(s *Store) {
		s.name = name
	}
}

// WithLogger sets the logger used for progress and skipped rows.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open indexes the dataset rooted at root. Voxel data is not read until
// LesionInfo yields the corresponding pair.
func Open(root string, opts ...Option) (*Store, error) {
	s := &Store{
		root:        root,
		name:        filepath.Base(filepath.Clean(root)),
		lesionsFile: DefaultLesionsFile,
		logger:      log.Default(),
		series:      make(map[string][]series),
		lesions:     make(map[string]map[string][]models.LesionRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.name = strings.ReplaceAll(s.name, "/", "_")

	if err := s.loadLesions(); err != nil {
		return nil, err
	}
	if err := s.scanPatients(); err != nil {
		return nil, err
	}

	return s, nil
}

// Close releases the store. Volumes are read per pair, so nothing stays open.
func (s *Store) Close() error {
	return nil
}

// Patients returns the patient directories in iteration order.
func (s *Store) Patients() []string {
	return append([]string(nil), s.patients...)
}

// Series returns the series names found for a patient, sorted.
func (s *Store) Series(patient string) []string {
	var names []string
	for _, se := range s.series[patient] {
		names = append(names, se.name)
	}
	return names
}

// LesionInfo yields one pair per patient, query word and matching series.
// Patients are visited in sorted order and query words in the order given; a
// series matches when its name contains the query word. Series without any
// lesion rows are skipped.
func (s *Store) LesionInfo(queryWords []string) iter.Seq2[models.LesionPair, error] {
	return func(yield func(models.LesionPair, error) bool) {
		for _, patient := range s.patients {
			for _, word := range queryWords {
				for _, se := range s.series[patient] {
					if !strings.Contains(se.name, word) {
						continue
					}
					records := s.lesions[patient][se.name]
					if len(records) == 0 {
						continue
					}

					vol, err := volume.Load(se.path)
					if err != nil {
						yield(models.LesionPair{}, fmt.Errorf("patient %s series %s: %w", patient, se.name, err))
						return
					}

					if !yield(models.LesionPair{Lesions: records, Volume: vol}, nil) {
						return
					}
				}
			}
		}
	}
}

// loadLesions reads the lesion table into typed records.
func (s *Store) loadLesions() error {
	path := filepath.Join(s.root, s.lesionsFile)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening lesion table: %w", err)
	}
	defer f.Close()

	rows, err := gocsv.CSVToMaps(f)
	if err != nil {
		return fmt.Errorf("error parsing lesion table %s: %w", path, err)
	}

	for i, row := range rows {
		seriesName, ok := row[ColumnSeries]
		if !ok {
			return fmt.Errorf("lesion table row %d: %w: %q", i+1, models.ErrMissingAttribute, ColumnSeries)
		}

		attrs := make(map[string]string, len(row)+1)
		for k, v := range row {
			if k == ColumnSeries {
				continue
			}
			attrs[k] = v
		}
		attrs[models.AttrName] = s.name + "/" + row[models.AttrPatientID] + "/" + seriesName

		rec, err := models.NewLesionRecord(attrs)
		if err != nil {
			return fmt.Errorf("lesion table row %d: %w", i+1, err)
		}

		bySeries, ok := s.lesions[rec.PatientID]
		if !ok {
			bySeries = make(map[string][]models.LesionRecord)
			s.lesions[rec.PatientID] = bySeries
		}
		bySeries[seriesName] = append(bySeries[seriesName], rec)
	}

	return nil
}

// scanPatients lists patient directories and the volumes inside them.
func (s *Store) scanPatients() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		patient := entry.Name()
		patientDir := filepath.Join(s.root, patient)

		children, err := os.ReadDir(patientDir)
		if err != nil {
			return err
		}

		var found []series
		for _, child := range children {
			info, err := child.Info()
			if err != nil {
				return err
			}
			path := filepath.Join(patientDir, child.Name())
			if !volume.IsVolume(path, info) {
				continue
			}
			found = append(found, series{name: volume.SeriesName(child.Name()), path: path})
		}
		if len(found) == 0 {
			continue
		}

		sort.Slice(found, func(i, j int) bool { return found[i].name < found[j].name })
		s.series[patient] = found
		s.patients = append(s.patients, patient)
	}

	sort.Strings(s.patients)

	if s.logger != nil {
		s.logger.Printf("Indexed %d patients from %s", len(s.patients), s.root)
	}

	return nil
}
