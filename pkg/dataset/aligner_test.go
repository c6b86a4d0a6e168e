package dataset

import (
	"bytes"
	"errors"
	"iter"
	"log"
	"strings"
	"testing"

	"lesionpatch/internal/models"
	"lesionpatch/pkg/lesion"
)

// pairSource replays a fixed list of pairs.
type pairSource struct {
	pairs []models.LesionPair
	err   error
	calls int
}

func (s *pairSource) LesionInfo(queryWords []string) iter.Seq2[models.LesionPair, error] {
	s.calls++
	return func(yield func(models.LesionPair, error) bool) {
		for _, p := range s.pairs {
			if !yield(p, nil) {
				return
			}
		}
		if s.err != nil {
			yield(models.LesionPair{}, s.err)
		}
	}
}

// createTestVolume returns a width×height×depth volume filled with
// offset + z*1000 + y*width + x
func createTestVolume(t *testing.T, width, height, depth int, offset float64) models.Volume {
	t.Helper()
	data := make([]float64, width*height*depth)
	for i := range data {
		z := i / (width * height)
		data[i] = offset + float64(z*1000) + float64(i%(width*height))
	}
	vol, err := models.NewVolumeFromData(data, width, height, depth)
	if err != nil {
		t.Fatalf("Failed to create test volume: %v", err)
	}
	return vol
}

func record(patient, series, fid, ijk, clinSig string) models.LesionRecord {
	return models.LesionRecord{
		Name:      "prostatex/" + patient + "/" + series,
		PatientID: patient,
		FID:       fid,
		IJK:       ijk,
		ClinSig:   clinSig,
	}
}

func quietLogger(buf *bytes.Buffer) Option {
	return WithLogger(log.New(buf, "", 0))
}

func TestGetTrainDataAlignsModalities(t *testing.T) {
	src := &pairSource{pairs: []models.LesionPair{
		{
			Lesions: []models.LesionRecord{record("P", "ep2d_diff_tra_ADC", "1", "20 20 2", "TRUE")},
			Volume:  createTestVolume(t, 40, 40, 4, 0),
		},
		{
			Lesions: []models.LesionRecord{record("P", "t2_tse_tra", "1", "20 20 1", "TRUE")},
			Volume:  createTestVolume(t, 40, 40, 4, 0.5),
		},
	}}

	var logs bytes.Buffer
	data, err := GetTrainData(src, []string{"ADC", "t2_tse_tra"}, quietLogger(&logs))
	if err != nil {
		t.Fatalf("GetTrainData failed: %v", err)
	}

	if data.Len() != 1 {
		t.Fatalf("Expected 1 sample, got %d", data.Len())
	}
	if len(data.Patches[0]) != 2 {
		t.Fatalf("Expected 2 patches, got %d", len(data.Patches[0]))
	}
	for i, p := range data.Patches[0] {
		if rows, cols := p.Dims(); rows != DefaultPatchSize || cols != DefaultPatchSize {
			t.Errorf("Patch %d: expected %dx%d, got %dx%d", i, DefaultPatchSize, DefaultPatchSize, rows, cols)
		}
	}
	// Accumulation order follows the source: ADC first, then T2
	if got := data.Patches[0][0].At(0, 0); got != 2000+12*40+12 {
		t.Errorf("Expected first patch from ADC slice, got top-left %v", got)
	}
	if got := data.Patches[0][1].At(0, 0); got != 0.5+1000+12*40+12 {
		t.Errorf("Expected second patch from T2 slice, got top-left %v", got)
	}
	if !data.Labels[0] {
		t.Error("Expected label true")
	}
	if want := (models.Identity{PatientID: "P", FID: "1"}); data.Identities[0] != want {
		t.Errorf("Expected identity %v, got %v", want, data.Identities[0])
	}
	if len(data.Anomalies) != 0 {
		t.Errorf("Expected no anomalies, got %v (log: %s)", data.Anomalies, logs.String())
	}
	if src.calls != 1 {
		t.Errorf("Expected the source to be queried once, got %d", src.calls)
	}
}

func TestGetTrainDataDropsIncompleteLesions(t *testing.T) {
	src := &pairSource{pairs: []models.LesionPair{
		{
			Lesions: []models.LesionRecord{
				record("P", "ADC", "1", "10 10 1", "FALSE"),
				record("P", "ADC", "2", "10 10 1", "TRUE"),
			},
			Volume: createTestVolume(t, 20, 20, 3, 0),
		},
		{
			Lesions: []models.LesionRecord{
				record("P", "t2_tse_tra", "1", "10 10 9", "FALSE"),
				record("P", "t2_tse_tra", "2", "10 10 0", "TRUE"),
			},
			Volume: createTestVolume(t, 20, 20, 3, 0),
		},
	}}

	var logs bytes.Buffer
	data, err := GetTrainData(src, []string{"ADC", "t2_tse_tra"}, quietLogger(&logs))
	if err != nil {
		t.Fatalf("GetTrainData failed: %v", err)
	}

	if data.Len() != 1 {
		t.Fatalf("Expected 1 sample, got %d", data.Len())
	}
	if data.Identities[0].FID != "2" {
		t.Errorf("Expected only fid 2 to survive, got %v", data.Identities[0])
	}

	kinds := map[AnomalyKind]int{}
	for _, a := range data.Anomalies {
		kinds[a.Kind]++
	}
	if kinds[OutOfBounds] != 1 || kinds[MissingModalities] != 1 {
		t.Errorf("Expected one out-of-bounds and one missing-modalities anomaly, got %v", data.Anomalies)
	}
	if !strings.Contains(logs.String(), "Missing modalities for patient P") {
		t.Errorf("Expected coverage gap in log, got %q", logs.String())
	}
	if !strings.Contains(logs.String(), "ijk out of bounds") {
		t.Errorf("Expected bounds warning in log, got %q", logs.String())
	}
}

// A repeated (patient, modality) pair is dropped as a whole when it directly
// follows the first one, even if it carries lesions not seen before.
func TestGetTrainDataSkipsConsecutiveDuplicatePair(t *testing.T) {
	vol := createTestVolume(t, 20, 20, 2, 0)
	src := &pairSource{pairs: []models.LesionPair{
		{Lesions: []models.LesionRecord{record("P", "ADC", "1", "10 10 0", "TRUE")}, Volume: vol},
		{Lesions: []models.LesionRecord{record("P", "ep2d_ADC", "7", "10 10 0", "TRUE")}, Volume: vol},
	}}

	var logs bytes.Buffer
	data, err := GetTrainData(src, []string{"ADC"}, quietLogger(&logs))
	if err != nil {
		t.Fatalf("GetTrainData failed: %v", err)
	}

	if data.Len() != 1 || data.Identities[0].FID != "1" {
		t.Fatalf("Expected only fid 1, got %v", data.Identities)
	}
	if len(data.Anomalies) != 1 || data.Anomalies[0].Kind != DuplicatePair {
		t.Errorf("Expected a single duplicate-pair anomaly, got %v", data.Anomalies)
	}
	if !strings.Contains(logs.String(), "Found duplicate match for P") {
		t.Errorf("Expected duplicate warning in log, got %q", logs.String())
	}
}

// Only back-to-back repeats are caught: a repeat separated by another pair is
// processed again and doubles the lesion's patch count.
func TestGetTrainDataNonConsecutiveDuplicateIsProcessed(t *testing.T) {
	vol := createTestVolume(t, 20, 20, 2, 0)
	src := &pairSource{pairs: []models.LesionPair{
		{Lesions: []models.LesionRecord{record("P", "ADC", "1", "10 10 0", "TRUE")}, Volume: vol},
		{Lesions: []models.LesionRecord{record("Q", "ADC", "1", "10 10 0", "TRUE")}, Volume: vol},
		{Lesions: []models.LesionRecord{record("P", "ADC", "1", "10 10 1", "TRUE")}, Volume: vol},
	}}

	var logs bytes.Buffer
	data, err := GetTrainData(src, []string{"ADC"}, quietLogger(&logs))
	if err != nil {
		t.Fatalf("GetTrainData failed: %v", err)
	}

	if data.Len() != 1 || data.Identities[0].PatientID != "Q" {
		t.Fatalf("Expected only patient Q, got %v", data.Identities)
	}
	if len(data.Anomalies) != 1 || data.Anomalies[0].Kind != MissingModalities {
		t.Errorf("Expected patient P to fail coverage, got %v", data.Anomalies)
	}
}

func TestGetTrainDataLastLabelWins(t *testing.T) {
	vol := createTestVolume(t, 20, 20, 2, 0)
	src := &pairSource{pairs: []models.LesionPair{
		{Lesions: []models.LesionRecord{record("P", "ADC", "1", "10 10 0", "TRUE")}, Volume: vol},
		{Lesions: []models.LesionRecord{record("P", "t2_tse_tra", "1", "10 10 0", "FALSE")}, Volume: vol},
	}}

	data, err := GetTrainData(src, []string{"ADC", "t2_tse_tra"}, WithLogger(nil))
	if err != nil {
		t.Fatalf("GetTrainData failed: %v", err)
	}
	if data.Len() != 1 || data.Labels[0] {
		t.Errorf("Expected one sample labelled false, got %v", data.Labels)
	}
}

func TestGetTrainDataPatchSizeOption(t *testing.T) {
	vol := createTestVolume(t, 40, 40, 1, 0)
	src := &pairSource{pairs: []models.LesionPair{
		{Lesions: []models.LesionRecord{record("P", "ADC", "1", "20 20 0", "TRUE")}, Volume: vol},
	}}

	data, err := GetTrainData(src, []string{"ADC"}, WithPatchSize(6), WithLogger(nil))
	if err != nil {
		t.Fatalf("GetTrainData failed: %v", err)
	}
	if rows, cols := data.Patches[0][0].Dims(); rows != 6 || cols != 6 {
		t.Errorf("Expected 6x6 patch, got %dx%d", rows, cols)
	}

	for _, size := range []int{0, -4} {
		if _, err := GetTrainData(src, []string{"ADC"}, WithPatchSize(size), WithLogger(nil)); !errors.Is(err, lesion.ErrInvalidPatchSize) {
			t.Errorf("Expected ErrInvalidPatchSize for size %d, got %v", size, err)
		}
	}
}

func TestGetTrainDataErrors(t *testing.T) {
	vol := createTestVolume(t, 20, 20, 1, 0)

	t.Run("MalformedCoordinate", func(t *testing.T) {
		src := &pairSource{pairs: []models.LesionPair{
			{Lesions: []models.LesionRecord{record("P", "ADC", "1", "10 10", "TRUE")}, Volume: vol},
		}}
		if _, err := GetTrainData(src, []string{"ADC"}, WithLogger(nil)); !errors.Is(err, lesion.ErrMalformedCoordinate) {
			t.Errorf("Expected ErrMalformedCoordinate, got %v", err)
		}
	})

	t.Run("MalformedName", func(t *testing.T) {
		rec := record("P", "ADC", "1", "10 10 0", "TRUE")
		rec.Name = "P/ADC"
		src := &pairSource{pairs: []models.LesionPair{{Lesions: []models.LesionRecord{rec}, Volume: vol}}}
		if _, err := GetTrainData(src, []string{"ADC"}, WithLogger(nil)); !errors.Is(err, ErrMalformedName) {
			t.Errorf("Expected ErrMalformedName, got %v", err)
		}
	})

	t.Run("SourceError", func(t *testing.T) {
		sourceErr := errors.New("read failed")
		src := &pairSource{err: sourceErr}
		if _, err := GetTrainData(src, []string{"ADC"}, WithLogger(nil)); !errors.Is(err, sourceErr) {
			t.Errorf("Expected source error, got %v", err)
		}
	})

	t.Run("EmptyPair", func(t *testing.T) {
		src := &pairSource{pairs: []models.LesionPair{{Volume: vol}}}
		data, err := GetTrainData(src, []string{"ADC"}, WithLogger(nil))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if data.Len() != 0 || len(data.Anomalies) != 1 || data.Anomalies[0].Kind != EmptyPair {
			t.Errorf("Expected an empty-pair anomaly only, got %v", data.Anomalies)
		}
	})
}

func TestGetTrainDataIdempotent(t *testing.T) {
	src := &pairSource{pairs: []models.LesionPair{
		{
			Lesions: []models.LesionRecord{
				record("P", "ADC", "1", "10 10 0", "TRUE"),
				record("P", "ADC", "2", "4 15 1", "FALSE"),
			},
			Volume: createTestVolume(t, 20, 20, 2, 0),
		},
		{
			Lesions: []models.LesionRecord{
				record("P", "t2_tse_tra", "1", "10 10 1", "TRUE"),
				record("P", "t2_tse_tra", "2", "12 3 0", "FALSE"),
			},
			Volume: createTestVolume(t, 20, 20, 2, 7),
		},
	}}
	query := []string{"ADC", "t2_tse_tra"}

	first, err := GetTrainData(src, query, WithLogger(nil))
	if err != nil {
		t.Fatalf("GetTrainData failed: %v", err)
	}
	second, err := GetTrainData(src, query, WithLogger(nil))
	if err != nil {
		t.Fatalf("GetTrainData failed: %v", err)
	}

	if first.Len() != 2 || second.Len() != first.Len() {
		t.Fatalf("Expected 2 samples on both runs, got %d and %d", first.Len(), second.Len())
	}
	for i := range first.Patches {
		if first.Labels[i] != second.Labels[i] || first.Identities[i] != second.Identities[i] {
			t.Errorf("Sample %d differs between runs", i)
		}
		for m := range first.Patches[i] {
			if !first.Patches[i][m].Equal(second.Patches[i][m]) {
				t.Errorf("Sample %d patch %d differs between runs", i, m)
			}
		}
	}

	samples := first.Samples()
	if samples[1].Identity.FID != "2" || samples[1].Label {
		t.Errorf("Expected second sample to be fid 2 labelled false, got %+v", samples[1].Identity)
	}
}
