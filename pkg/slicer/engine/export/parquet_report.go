package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/lamina3d/lamina/pkg/slicer/engine/wipetower"
	"github.com/lamina3d/lamina/pkg/slicer/support/util/exception"
	"github.com/lamina3d/lamina/pkg/slicer/support/util/logger"
)

// PurgeRecord is one purge event row in the Parquet purge report.
type PurgeRecord struct {
	RunID        string  `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	PrintZ       float64 `parquet:"name=print_z, type=DOUBLE"`
	FromExtruder int32   `parquet:"name=from_extruder, type=INT32"`
	ToExtruder   int32   `parquet:"name=to_extruder, type=INT32"`
	VolumeMM3    float64 `parquet:"name=volume_mm3, type=DOUBLE"`
}

// writePurgeReport renders the purge plan as one Parquet file with a single
// row group.
func (e *Exporter) writePurgeReport(plan *wipetower.Plan, runID string) (err error) {
	codec, err := compressionCodec(e.cfg.CompressionType)
	if err != nil {
		return exception.NewSliceError("export", fmt.Sprintf("invalid compression type '%s'", e.cfg.CompressionType), err)
	}

	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(PurgeRecord), int64(len(plan.Events)))
	if err != nil {
		return exception.NewSliceError("export", "failed to create Parquet writer for purge report", err)
	}
	pw.CompressionType = codec

	for _, ev := range plan.Events {
		record := PurgeRecord{
			RunID:        runID,
			PrintZ:       ev.PrintZ,
			FromExtruder: int32(ev.FromExtruder),
			ToExtruder:   int32(ev.ToExtruder),
			VolumeMM3:    ev.Volume,
		}
		if err := pw.Write(record); err != nil {
			return exception.NewSliceError("export", "failed to write purge record", err)
		}
	}

	// The library can panic on malformed schemas; convert that to an error.
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = exception.NewSliceErrorf("export", "Parquet writer panicked during WriteStop: %v", r)
				logger.Errorf("export: recovered from panic during WriteStop: %v", r)
			}
		}()
		if stopErr := pw.WriteStop(); stopErr != nil {
			err = exception.NewSliceError("export", "failed to finalize purge report", stopErr)
		}
	}()
	if err != nil {
		return err
	}

	path := filepath.Join(e.cfg.OutputDir, fmt.Sprintf("purge_report_%s.parquet", runID))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return exception.NewSliceError("export", fmt.Sprintf("failed to write purge report %s", path), err)
	}
	logger.Infof("export: wrote purge report to %s (%d bytes)", path, buf.Len())
	return nil
}

// compressionCodec returns the Parquet compression codec from a string.
func compressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}
