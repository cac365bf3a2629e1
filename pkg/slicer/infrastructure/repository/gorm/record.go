package gorm

import (
	"time"

	"github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
)

// RunRecord is the persistence shape of a model.RunExecution.
type RunRecord struct {
	ID           string `gorm:"primaryKey;size:36"`
	PipelineName string `gorm:"size:255;index"`
	StartTime    time.Time
	EndTime      *time.Time
	Status       string            `gorm:"size:32"`
	Failures     model.FailureList `gorm:"type:text"`
	Canceled     bool
	CreateTime   time.Time
	LastUpdated  time.Time
	Version      int
}

// TableName sets the table name for RunRecord.
func (RunRecord) TableName() string { return "lamina_run_executions" }

// toRecord maps a domain RunExecution to its persistence shape.
func toRecord(run *model.RunExecution) *RunRecord {
	return &RunRecord{
		ID:           run.ID,
		PipelineName: run.PipelineName,
		StartTime:    run.StartTime,
		EndTime:      run.EndTime,
		Status:       run.Status.String(),
		Failures:     run.Failures,
		Canceled:     run.Canceled,
		CreateTime:   run.CreateTime,
		LastUpdated:  run.LastUpdated,
		Version:      run.Version,
	}
}

// toModel maps a persisted record back to the domain shape.
func (r *RunRecord) toModel() *model.RunExecution {
	return &model.RunExecution{
		ID:           r.ID,
		PipelineName: r.PipelineName,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		Status:       model.RunStatus(r.Status),
		Failures:     r.Failures,
		Canceled:     r.Canceled,
		CreateTime:   r.CreateTime,
		LastUpdated:  r.LastUpdated,
		Version:      r.Version,
	}
}
