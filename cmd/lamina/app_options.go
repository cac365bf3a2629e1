package main

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/fx"

	cancel "github.com/lamina3d/lamina/pkg/slicer/core/cancel"
	config "github.com/lamina3d/lamina/pkg/slicer/core/config"
	model "github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
	metrics "github.com/lamina3d/lamina/pkg/slicer/core/metrics"
	state "github.com/lamina3d/lamina/pkg/slicer/core/state"
	validate "github.com/lamina3d/lamina/pkg/slicer/core/validate"
	export "github.com/lamina3d/lamina/pkg/slicer/engine/export"
	jobfile "github.com/lamina3d/lamina/pkg/slicer/engine/jobfile"
	pipeline "github.com/lamina3d/lamina/pkg/slicer/engine/pipeline"
	inmemoryRepo "github.com/lamina3d/lamina/pkg/slicer/infrastructure/repository/inmemory"
	logger "github.com/lamina3d/lamina/pkg/slicer/support/util/logger"

	inframetrics "github.com/lamina3d/lamina/pkg/slicer/infrastructure/metrics"
	gormRepo "github.com/lamina3d/lamina/pkg/slicer/infrastructure/repository/gorm"

	// Dialector registrations for the configurable database types.
	_ "github.com/lamina3d/lamina/pkg/slicer/infrastructure/repository/gorm/mysql"
	_ "github.com/lamina3d/lamina/pkg/slicer/infrastructure/repository/gorm/postgres"
	_ "github.com/lamina3d/lamina/pkg/slicer/infrastructure/repository/gorm/sqlite"
)

// GetApplicationOptions builds the uber-fx options for the slicing pipeline
// application.
func GetApplicationOptions(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig) []fx.Option {
	cfg, err := config.LoadConfig(envFilePath, embeddedConfig)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Infof("Configuration loaded. Pipeline: %s", cfg.Lamina.Pipeline.Name)

	var options []fx.Option

	options = append(options, fx.Supply(
		embeddedConfig,
		fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
		cfg,
		fx.Annotate(appCtx, fx.As(new(context.Context)), fx.ResultTags(`name:"appCtx"`)),
	))
	options = append(options, logger.Module)
	options = append(options, inframetrics.Module)
	options = append(options, getRunRepositoryOption(cfg))
	options = append(options, pipeline.Module)
	options = append(options, fx.Invoke(fx.Annotate(startPipelineExecution, fx.ParamTags("", "", "", "", "", "", `name:"appCtx"`))))

	return options
}

// getRunRepositoryOption selects the run-history store from the configured
// database type. Unrecognized types fall back to the in-memory store.
func getRunRepositoryOption(cfg *config.Config) fx.Option {
	switch cfg.Lamina.Database.Type {
	case "sqlite", "mysql", "postgres":
		logger.Debugf("Run history persisted through gorm (%s).", cfg.Lamina.Database.Type)
		return gormRepo.Module
	case "", "inmemory":
		return inmemoryRepo.Module
	default:
		logger.Warnf("Database type '%s' not recognized. Using in-memory run history.", cfg.Lamina.Database.Type)
		return inmemoryRepo.Module
	}
}

// startPipelineExecution is an Fx Hook helper that loads the job, validates
// it and runs the pipeline once, then requests application shutdown.
func startPipelineExecution(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	runner *pipeline.Runner,
	cfg *config.Config,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: onStartPipelineExecution(runner, cfg, recorder, tracer, shutdowner, appCtx),
		OnStop:  onStopApplication(),
	})
}

func onStartPipelineExecution(
	runner *pipeline.Runner,
	cfg *config.Config,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
	shutdowner fx.Shutdowner,
	appCtx context.Context,
) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("Panic recovered in pipeline execution: %v", r)
				}
				logger.Infof("Requesting application shutdown after pipeline completion.")
				if err := shutdowner.Shutdown(); err != nil {
					logger.Errorf("Failed to shutdown application: %v", err)
				}
			}()

			jobPath := cfg.Lamina.Pipeline.JobFile
			if jobPath == "" {
				logger.Errorf("No job file configured (lamina.pipeline.job_file). Nothing to slice.")
				return
			}
			job, err := jobfile.Load(jobPath, &cfg.Lamina.Print)
			if err != nil {
				logger.Errorf("Failed to load job file %s: %v", jobPath, err)
				return
			}

			result := validate.Validate(job)
			for _, warning := range result.Warnings {
				logger.Warnf("Validation warning: %s", warning)
			}
			if !result.OK() {
				logger.Errorf("Job rejected: %s", result.Message)
				return
			}

			tok := cancel.NewToken()
			go func() {
				<-appCtx.Done()
				tok.Raise()
			}()

			graph := state.NewGraph(entityIDsOf(job)...)
			executor := pipeline.NewExecutor(pipeline.ExecutorParams{
				Job:      job,
				Graph:    graph,
				Token:    tok,
				Exporter: export.NewExporter(&cfg.Lamina.Export),
				Recorder: recorder,
				Tracer:   tracer,
			})

			run, err := runner.Run(appCtx, cfg.Lamina.Pipeline.Name, executor)
			if err != nil {
				logger.Errorf("Pipeline run failed: %v", err)
				return
			}
			logger.Infof("Pipeline run %s finished with status %s.", run.ID, run.Status)
		}()
		return nil
	}
}

func onStopApplication() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		logger.Infof("Application is shutting down.")
		return nil
	}
}

func entityIDsOf(job *model.Job) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(job.Entities))
	for _, e := range job.Entities {
		ids = append(ids, e.ID)
	}
	return ids
}
