package gorm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/lamina3d/lamina/pkg/slicer/core/config"
	"github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
	"github.com/lamina3d/lamina/pkg/slicer/core/domain/repository"
	"github.com/lamina3d/lamina/pkg/slicer/support/util/logger"
)

// GormRunRepository is a GORM implementation of the RunRepository interface.
type GormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository opens a database connection for the configured
// dialect and migrates the run-history schema. The matching driver
// subpackage must be imported so its dialector is registered.
func NewGormRunRepository(cfg *config.Config) (*GormRunRepository, error) {
	dbCfg := cfg.Lamina.Database
	factory, err := GetDialectorFactory(dbCfg.Type)
	if err != nil {
		return nil, err
	}
	dialector, err := factory(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialector for %s: %w", dbCfg.Type, err)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: NewGormLogger()})
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM connection: %w", err)
	}
	logger.Infof("Established run-history DB connection (%s)", dbCfg.Type)
	return NewGormRunRepositoryWithDB(db)
}

// NewGormRunRepositoryWithDB wraps an existing GORM handle, migrating the
// run-history schema. Intended for tests and callers managing their own
// connection.
func NewGormRunRepositoryWithDB(db *gorm.DB) (*GormRunRepository, error) {
	if err := db.AutoMigrate(&RunRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate run-history schema: %w", err)
	}
	return &GormRunRepository{db: db}, nil
}

// SaveRun persists a new RunExecution.
func (r *GormRunRepository) SaveRun(ctx context.Context, run *model.RunExecution) error {
	record := toRecord(run)
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// UpdateRun persists state changes of an existing RunExecution. The stored
// version guards against concurrent writers; a stale update returns an error
// without modifying the row.
func (r *GormRunRepository) UpdateRun(ctx context.Context, run *model.RunExecution) error {
	record := toRecord(run)
	record.Version = run.Version + 1

	result := r.db.WithContext(ctx).
		Model(&RunRecord{}).
		Where("id = ? AND version = ?", run.ID, run.Version).
		Updates(record)
	if result.Error != nil {
		return fmt.Errorf("failed to update run %s: %w", run.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run %s version %d is stale or missing", run.ID, run.Version)
	}
	run.Version = record.Version
	return nil
}

// FindRunByID retrieves a RunExecution by its ID.
func (r *GormRunRepository) FindRunByID(ctx context.Context, id string) (*model.RunExecution, error) {
	var record RunRecord
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find run %s: %w", id, err)
	}
	return record.toModel(), nil
}

// FindRecentRuns returns up to limit RunExecutions for the pipeline, most
// recent first.
func (r *GormRunRepository) FindRecentRuns(ctx context.Context, pipelineName string, limit int) ([]*model.RunExecution, error) {
	var records []RunRecord
	q := r.db.WithContext(ctx).
		Where("pipeline_name = ?", pipelineName).
		Order("create_time DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs for %s: %w", pipelineName, err)
	}
	runs := make([]*model.RunExecution, 0, len(records))
	for i := range records {
		runs = append(runs, records[i].toModel())
	}
	return runs, nil
}

// Close closes the underlying database connection.
func (r *GormRunRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ repository.RunRepository = (*GormRunRepository)(nil)
