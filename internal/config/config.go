package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"  validate:"required"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// MaxUploadMB bounds the size of a single uploaded document.
	MaxUploadMB int `mapstructure:"max_upload_mb" validate:"required,gt=0,lte=1024"`

	// ReadTimeoutSeconds bounds reading a full request including the upload.
	ReadTimeoutSeconds int `mapstructure:"read_timeout_seconds" validate:"gte=0"`

	// WriteTimeoutSeconds bounds writing a response. Synchronous uploads hold
	// the response open for the whole analysis, so 0 (no limit) is the default.
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds" validate:"gte=0"`

	// ShutdownTimeoutSeconds bounds graceful HTTP shutdown.
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" validate:"required,gt=0"`
}

// StorageConfig controls where artifact bundles are written.
type StorageConfig struct {
	// RootDir holds one directory (and optional zip) per task.
	RootDir string `mapstructure:"root_dir" validate:"required"`
}

// TaskConfig contains the background processing settings.
type TaskConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize   int `mapstructure:"queue_size"   validate:"required,gt=0"`

	// OrphanSweepIntervalMinutes controls how often bundles without a task
	// record are removed. 0 disables the periodic sweep.
	OrphanSweepIntervalMinutes int `mapstructure:"orphan_sweep_interval_minutes" validate:"gte=0"`

	// OrphanGraceMinutes protects bundles modified this recently, such as an
	// upload whose task record is still being created.
	OrphanGraceMinutes int `mapstructure:"orphan_grace_minutes" validate:"gte=0"`
}

// AnalyzerConfig selects and configures the document analyzer backends.
type AnalyzerConfig struct {
	// OCRBackend selects the engine used for OCR mode: "gemini" or "none".
	OCRBackend string `mapstructure:"ocr_backend" validate:"required,oneof=gemini none"`

	// MinTextChars is the average number of extractable characters per page
	// below which auto mode treats a document as scanned.
	MinTextChars int `mapstructure:"min_text_chars" validate:"gte=0"`

	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required_if=OCRBackend gemini"`
	ModelName    string `mapstructure:"model_name"     validate:"required_if=OCRBackend gemini"`

	// PromptTemplatePath optionally replaces the built-in OCR prompt.
	PromptTemplatePath string `mapstructure:"prompt_template_path"`

	// TimeoutSeconds bounds a single OCR backend call.
	TimeoutSeconds int `mapstructure:"timeout_seconds" validate:"gte=0"`

	MaxRetries        int `mapstructure:"max_retries"         validate:"gte=0,lte=10"`
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds" validate:"gte=0,lte=60"`
}
