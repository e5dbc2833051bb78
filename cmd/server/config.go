package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/docmine-api/internal/config"
)

// loadAppConfig loads the application configuration from environment
// variables or config.yaml.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// logConfig records the effective configuration without secrets.
func logConfig(logger *slog.Logger, cfg *config.Config) {
	logger.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"max_upload_mb", cfg.Server.MaxUploadMB,
		"storage_root", cfg.Storage.RootDir,
		"workers", cfg.Task.WorkerCount,
		"queue_size", cfg.Task.QueueSize,
		"ocr_backend", cfg.Analyzer.OCRBackend)

	if cfg.Analyzer.GeminiAPIKey != "" {
		logger.Debug("analyzer configuration", "gemini_api_key_present", true, "model", cfg.Analyzer.ModelName)
	}
}
