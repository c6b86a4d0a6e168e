// Package dataset assembles multi-modality training samples from a lesion
// source.
package dataset

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"strings"

	"lesionpatch/internal/models"
	"lesionpatch/pkg/lesion"
)

// DefaultPatchSize is the patch side length used when none is configured.
const DefaultPatchSize = 16

// ErrMalformedName is returned when a lesion name is not of the form
// <root>/<patient>/<modality-tag>.
var ErrMalformedName = errors.New("malformed lesion name")

// Source yields, for the given modality query terms, one LesionPair per
// (patient, modality) combination it finds. Pairs are produced lazily.
type Source interface {
	LesionInfo(queryWords []string) iter.Seq2[models.LesionPair, error]
}

// AnomalyKind classifies a recoverable problem found while aligning.
type AnomalyKind int

const (
	// DuplicatePair marks a (patient, modality) pair repeated back to back
	DuplicatePair AnomalyKind = iota
	// OutOfBounds marks a centroid whose z lies outside its volume
	OutOfBounds
	// MissingModalities marks a lesion not covered by every requested modality
	MissingModalities
	// EmptyPair marks a pair that carries no lesions
	EmptyPair
)

func (k AnomalyKind) String() string {
	switch k {
	case DuplicatePair:
		return "duplicate-pair"
	case OutOfBounds:
		return "out-of-bounds"
	case MissingModalities:
		return "missing-modalities"
	case EmptyPair:
		return "empty-pair"
	default:
		return fmt.Sprintf("AnomalyKind(%d)", int(k))
	}
}

// Anomaly is a skipped pair or lesion, reported but not fatal.
type Anomaly struct {
	Kind     AnomalyKind
	Patient  string
	Modality string
	Identity models.Identity
	Message  string
}

// TrainData holds the aligned output. Patches, Labels and Identities are
// index aligned.
type TrainData struct {
	Patches    [][]models.Patch
	Labels     []bool
	Identities []models.Identity

	// Anomalies lists everything that was skipped, in discovery order
	Anomalies []Anomaly
}

// Len is the number of samples.
func (d *TrainData) Len() int {
	return len(d.Labels)
}

// Samples zips the three collections into Sample values.
func (d *TrainData) Samples() []models.Sample {
	samples := make([]models.Sample, d.Len())
	for i := range samples {
		samples[i] = models.Sample{
			Patches:  d.Patches[i],
			Label:    d.Labels[i],
			Identity: d.Identities[i],
		}
	}
	return samples
}

// Option configures GetTrainData.
type Option func(*aligner)

// WithPatchSize sets the patch side length (default 16). The size must be
// positive; GetTrainData rejects anything else.
func WithPatchSize(size int) Option {
	return func(a *aligner) {
		a.patchSize = size
	}
}

// WithLogger routes warnings to logger instead of the standard logger.
func WithLogger(logger *log.Logger) Option {
	return func(a *aligner) {
		a.logger = logger
	}
}

// group collects every extracted patch of one lesion.
type group struct {
	patches []models.Patch
	label   bool
}

// aligner carries the state of one GetTrainData call.
type aligner struct {
	patchSize int
	logger    *log.Logger

	previousPatient  string
	previousModality string

	// order keeps identities in first-seen order
	order  []models.Identity
	groups map[models.Identity]*group

	out *TrainData
}

// GetTrainData pulls every (lesions, volume) pair for queryWords from src,
// extracts one patch per lesion and modality, and emits a sample for each
// lesion that is covered by exactly len(queryWords) patches.
//
// Duplicate consecutive pairs, out-of-bounds centroids and incomplete
// lesions are skipped with a warning. Malformed coordinates or names and
// errors from src are returned.
func GetTrainData(src Source, queryWords []string, opts ...Option) (*TrainData, error) {
	a := &aligner{
		patchSize: DefaultPatchSize,
		logger:    log.Default(),
		groups:    make(map[models.Identity]*group),
		out:       &TrainData{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.patchSize <= 0 {
		return nil, fmt.Errorf("%w: %d", lesion.ErrInvalidPatchSize, a.patchSize)
	}

	for pair, err := range src.LesionInfo(queryWords) {
		if err != nil {
			return nil, fmt.Errorf("failed to read lesion info: %w", err)
		}
		if err := a.accumulate(pair); err != nil {
			return nil, err
		}
	}

	a.assemble(len(queryWords))

	return a.out, nil
}

// accumulate processes a single pair, extending the per-lesion groups.
func (a *aligner) accumulate(pair models.LesionPair) error {
	if len(pair.Lesions) == 0 {
		a.warn(Anomaly{
			Kind:    EmptyPair,
			Message: "Found lesion info without lesions. Skipping...",
		})
		return nil
	}

	patient, modality, err := splitName(pair.Lesions[0].Name)
	if err != nil {
		return err
	}

	if patient == a.previousPatient && modality == a.previousModality {
		a.warn(Anomaly{
			Kind:     DuplicatePair,
			Patient:  patient,
			Modality: modality,
			Message:  fmt.Sprintf("Found duplicate match for %s. Skipping...", patient),
		})
		return nil
	}

	opts := lesion.Options{Size: a.patchSize, ImageType: lesion.ImageTypeADC}

	for _, rec := range pair.Lesions {
		id := rec.Identity()
		g, seen := a.groups[id]
		if !seen {
			g = &group{}
			a.groups[id] = g
			a.order = append(a.order, id)
		}

		centroid, err := lesion.ParseCentroid(rec.IJK)
		if err != nil {
			return fmt.Errorf("lesion %s: %w", id, err)
		}

		patch, ok, err := lesion.ExtractPatch(pair.Volume, centroid, opts)
		if err != nil {
			return fmt.Errorf("lesion %s: %w", id, err)
		}
		if !ok {
			a.warn(Anomaly{
				Kind:     OutOfBounds,
				Patient:  patient,
				Modality: modality,
				Identity: id,
				Message:  fmt.Sprintf("ijk out of bounds for %s. No lesion extracted", rec),
			})
			continue
		}

		g.patches = append(g.patches, patch)
		g.label = rec.ClinicallySignificant()
	}

	a.previousPatient = patient
	a.previousModality = modality

	return nil
}

// assemble turns the complete groups into samples, in first-seen order.
func (a *aligner) assemble(want int) {
	for _, id := range a.order {
		g := a.groups[id]
		if len(g.patches) != want {
			a.warn(Anomaly{
				Kind:     MissingModalities,
				Patient:  id.PatientID,
				Identity: id,
				Message: fmt.Sprintf("Missing modalities for patient %s (fid %s): found %d of %d",
					id.PatientID, id.FID, len(g.patches), want),
			})
			continue
		}

		a.out.Patches = append(a.out.Patches, g.patches)
		a.out.Labels = append(a.out.Labels, g.label)
		a.out.Identities = append(a.out.Identities, id)
	}
}

func (a *aligner) warn(an Anomaly) {
	a.out.Anomalies = append(a.out.Anomalies, an)
	if a.logger != nil {
		a.logger.Printf("Warning in GetTrainData: %s", an.Message)
	}
}

// splitName extracts the patient and the classified modality from a lesion
// name of the form <root>/<patient>/<modality-tag>.
func splitName(name string) (patient, modality string, err error) {
	parts := strings.Split(name, "/")
	if len(parts) != 3 {
		return "", "", fmt.Errorf("%w: %q has %d segments, expected 3", ErrMalformedName, name, len(parts))
	}
	return parts[1], lesion.ClassifyModality(parts[2]), nil
}
