package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/docmine-api/internal/analysis"
	"github.com/phrazzld/docmine-api/internal/config"
	"github.com/phrazzld/docmine-api/internal/platform/filestore"
	"github.com/phrazzld/docmine-api/internal/platform/gemini"
	"github.com/phrazzld/docmine-api/internal/platform/memory"
	"github.com/phrazzld/docmine-api/internal/platform/pdftext"
	"github.com/phrazzld/docmine-api/internal/service"
	"github.com/phrazzld/docmine-api/internal/service/janitor"
	"github.com/phrazzld/docmine-api/internal/task"
)

// application holds the shared dependencies of the running server.
type application struct {
	config *config.Config
	logger *slog.Logger

	registry  *memory.TaskRegistry
	artifacts *filestore.ArtifactStore
	runner    *task.TaskRunner
	documents *service.DocumentService
	janitor   *janitor.Janitor
}

// newApplication wires every component from cfg. Nothing is started; see serve.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	logConfig(logger, cfg)

	artifacts, err := filestore.NewArtifactStore(cfg.Storage.RootDir, logger.With("component", "artifact_store"))
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact store: %w", err)
	}

	analyzer, err := newAnalyzer(ctx, cfg.Analyzer, logger)
	if err != nil {
		return nil, err
	}
	adapter, err := analysis.NewAdapter(analyzer, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis adapter: %w", err)
	}

	registry := memory.NewTaskRegistry()

	runner := task.NewTaskRunner(task.TaskRunnerConfig{
		WorkerCount: cfg.Task.WorkerCount,
		QueueSize:   cfg.Task.QueueSize,
	}, logger)
	runner.SetErrorHandler(func(t task.Task, err error) {
		// Failures are already recorded on the document task itself.
		logger.Debug("background task finished with error",
			"task_id", t.ID(),
			"task_type", t.Type(),
			"error", err)
	})

	documents, err := service.NewDocumentService(registry, artifacts, adapter, runner, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create document service: %w", err)
	}

	sweeper, err := janitor.New(registry, artifacts, janitor.Config{
		Interval:    time.Duration(cfg.Task.OrphanSweepIntervalMinutes) * time.Minute,
		GracePeriod: time.Duration(cfg.Task.OrphanGraceMinutes) * time.Minute,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create orphan janitor: %w", err)
	}

	return &application{
		config:    cfg,
		logger:    logger,
		registry:  registry,
		artifacts: artifacts,
		runner:    runner,
		documents: documents,
		janitor:   sweeper,
	}, nil
}

// newAnalyzer combines the built-in text-layer engine with the configured
// OCR backend, if any.
func newAnalyzer(ctx context.Context, cfg config.AnalyzerConfig, logger *slog.Logger) (analysis.Analyzer, error) {
	text, err := pdftext.NewAnalyzer(cfg.MinTextChars, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create text analyzer: %w", err)
	}

	var ocr analysis.OCREngine
	switch cfg.OCRBackend {
	case "gemini":
		g, err := gemini.NewOCR(ctx, logger, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini OCR backend: %w", err)
		}
		ocr = g
	default:
		logger.Warn("no OCR backend configured, scanned documents will fail in OCR mode")
	}

	return analysis.NewComposite(text, ocr)
}
