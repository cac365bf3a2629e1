package gorm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamina3d/lamina/pkg/slicer/core/config"
	"github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
	"github.com/lamina3d/lamina/pkg/slicer/core/domain/repository"
	gormrepo "github.com/lamina3d/lamina/pkg/slicer/infrastructure/repository/gorm"

	// Registers the "sqlite" dialector factory.
	_ "github.com/lamina3d/lamina/pkg/slicer/infrastructure/repository/gorm/sqlite"
)

func setupSQLiteRepo(t *testing.T) *gormrepo.GormRunRepository {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Lamina.Database = config.DatabaseConfig{Type: "sqlite", Database: ":memory:"}
	repo, err := gormrepo.NewGormRunRepository(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestGormRepo_SaveAndFind(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()

	run := model.NewRunExecution("slicing")
	run.Failures = model.FailureList{}
	require.NoError(t, repo.SaveRun(ctx, run))

	found, err := repo.FindRunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, found.ID)
	assert.Equal(t, model.RunStatusStarting, found.Status)
	assert.Equal(t, "slicing", found.PipelineName)
}

func TestGormRepo_FindNotFound(t *testing.T) {
	repo := setupSQLiteRepo(t)
	_, err := repo.FindRunByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, repository.ErrRunNotFound))
}

func TestGormRepo_UpdateBumpsVersion(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()

	run := model.NewRunExecution("slicing")
	require.NoError(t, repo.SaveRun(ctx, run))

	run.MarkAsStarted()
	require.NoError(t, repo.UpdateRun(ctx, run))
	assert.Equal(t, 1, run.Version)

	found, err := repo.FindRunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusStarted, found.Status)
	assert.Equal(t, 1, found.Version)
}

func TestGormRepo_StaleUpdateRejected(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()

	run := model.NewRunExecution("slicing")
	require.NoError(t, repo.SaveRun(ctx, run))

	stale := *run
	run.MarkAsStarted()
	require.NoError(t, repo.UpdateRun(ctx, run))

	stale.MarkAsCompleted()
	err := repo.UpdateRun(ctx, &stale)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stale")

	found, findErr := repo.FindRunByID(ctx, run.ID)
	require.NoError(t, findErr)
	assert.Equal(t, model.RunStatusStarted, found.Status, "stale write left no trace")
}

func TestGormRepo_FailuresRoundTrip(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()

	run := model.NewRunExecution("slicing")
	require.NoError(t, repo.SaveRun(ctx, run))
	run.MarkAsFailed(errors.New("bad geometry"))
	require.NoError(t, repo.UpdateRun(ctx, run))

	found, err := repo.FindRunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, found.Status)
	require.Len(t, found.Failures, 1)
	assert.Equal(t, "bad geometry", found.Failures[0])
}

func TestGormRepo_RecentRuns(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.SaveRun(ctx, model.NewRunExecution("slicing")))
	}
	require.NoError(t, repo.SaveRun(ctx, model.NewRunExecution("preview")))

	runs, err := repo.FindRecentRuns(ctx, "slicing", 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	for _, run := range runs {
		assert.Equal(t, "slicing", run.PipelineName)
	}
}

func TestGormRepo_UnknownDialect(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Lamina.Database = config.DatabaseConfig{Type: "oracle"}
	_, err := gormrepo.NewGormRunRepository(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no dialector registered")
}
