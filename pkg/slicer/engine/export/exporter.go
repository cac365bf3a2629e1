// Package export writes the computed toolpath artifacts to disk: a
// human-readable toolpath summary and an optional Parquet purge report for
// downstream analytics.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/lamina3d/lamina/pkg/slicer/core/cancel"
	"github.com/lamina3d/lamina/pkg/slicer/core/config"
	"github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
	"github.com/lamina3d/lamina/pkg/slicer/engine/wipetower"
	"github.com/lamina3d/lamina/pkg/slicer/support/util/exception"
	"github.com/lamina3d/lamina/pkg/slicer/support/util/logger"
)

// Exporter writes the run artifacts into the configured output directory.
type Exporter struct {
	cfg *config.ExportConfig
}

// NewExporter creates an Exporter.
func NewExporter(cfg *config.ExportConfig) *Exporter {
	return &Exporter{cfg: cfg}
}

// Export writes the toolpath summary and, when enabled, the Parquet purge
// report. The token is checked between files and between summary sections;
// a raised token aborts mid-export and the partial files must not be
// trusted.
func (e *Exporter) Export(tok *cancel.Token, job *model.Job, geom *model.FirstLayerGeometry, plan *wipetower.Plan, runID string) error {
	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return exception.NewSliceError("export", fmt.Sprintf("failed to create output directory %s", e.cfg.OutputDir), err)
	}

	if err := e.writeSummary(tok, job, geom, plan, runID); err != nil {
		return err
	}
	if err := tok.Check(); err != nil {
		return err
	}

	var multiErr error
	if e.cfg.ParquetReport && plan != nil && len(plan.Events) > 0 {
		if err := e.writePurgeReport(plan, runID); err != nil {
			multiErr = multierror.Append(multiErr, err)
		}
	}
	return multiErr
}

// writeSummary emits the plain-text toolpath summary.
func (e *Exporter) writeSummary(tok *cancel.Token, job *model.Job, geom *model.FirstLayerGeometry, plan *wipetower.Plan, runID string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; toolpath summary for run %s\n", runID)
	fmt.Fprintf(&sb, "; entities: %d, instances: %d\n", len(job.Entities), job.TotalInstances())

	if err := tok.Check(); err != nil {
		return err
	}

	if geom != nil {
		fmt.Fprintf(&sb, "\n; skirt: %d loops\n", len(geom.Skirt))
		for i, loop := range geom.Skirt {
			fmt.Fprintf(&sb, "skirt loop %d: extruder %d, %d vertices, %.2f mm filament\n",
				i, loop.Extruder, len(loop.Ring), loop.ExtrudedLength)
		}
		if geom.Boundary != nil {
			fmt.Fprintf(&sb, "first layer boundary: %d vertices, area %.2f mm2\n",
				len(geom.Boundary), geom.Boundary.Area())
		}
	}

	if err := tok.Check(); err != nil {
		return err
	}

	if plan != nil {
		fmt.Fprintf(&sb, "\n; purge tower: %d tool changes, depth %.2f mm\n", plan.ToolChanges, plan.Depth)
		for _, ev := range plan.Events {
			if ev.ToExtruder < 0 {
				fmt.Fprintf(&sb, "final purge at z %.2f: extruder %d, %.1f mm3\n", ev.PrintZ, ev.FromExtruder, ev.Volume)
				continue
			}
			fmt.Fprintf(&sb, "purge at z %.2f: %d -> %d, %.1f mm3\n", ev.PrintZ, ev.FromExtruder, ev.ToExtruder, ev.Volume)
		}
	}

	path := filepath.Join(e.cfg.OutputDir, fmt.Sprintf("toolpaths_%s.txt", runID))
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return exception.NewSliceError("export", fmt.Sprintf("failed to write toolpath summary %s", path), err)
	}
	logger.Infof("export: wrote toolpath summary to %s", path)
	return nil
}
