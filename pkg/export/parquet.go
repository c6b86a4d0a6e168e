package export

import (
	"fmt"
	"os"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"lesionpatch/pkg/dataset"
)

// PatchRow is the Parquet record for one patch.
type PatchRow struct {
	RunID     string    `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Sample    int64     `parquet:"name=sample, type=INT64"`
	PatientID string    `parquet:"name=patient_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	FID       string    `parquet:"name=fid, type=BYTE_ARRAY, convertedtype=UTF8"`
	Position  int32     `parquet:"name=position, type=INT32"`
	ClinSig   bool      `parquet:"name=clin_sig, type=BOOLEAN"`
	Rows      int32     `parquet:"name=rows, type=INT32"`
	Cols      int32     `parquet:"name=cols, type=INT32"`
	Pixels    []float64 `parquet:"name=pixels, type=DOUBLE, repetitiontype=REPEATED"`
}

func writeParquet(path, runID string, data *dataset.TrainData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer f.Close()

	pfw := writerfile.NewWriterFile(f)
	pw, err := writer.NewParquetWriter(pfw, new(PatchRow), 4)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, patches := range data.Patches {
		id := data.Identities[i]
		for m, p := range patches {
			r, c := p.Dims()
			row := PatchRow{
				RunID:     runID,
				Sample:    int64(i),
				PatientID: id.PatientID,
				FID:       id.FID,
				Position:  int32(m),
				ClinSig:   data.Labels[i],
				Rows:      int32(r),
				Cols:      int32(c),
				Pixels:    p.Pixels(),
			}
			if err := pw.Write(row); err != nil {
				_ = pw.WriteStop()
				return fmt.Errorf("failed to write parquet row: %w", err)
			}
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return nil
}
