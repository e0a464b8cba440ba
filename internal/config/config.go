package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Tasks    TasksConfig    `mapstructure:"tasks"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// StorageConfig contains the project file storage settings.
type StorageConfig struct {
	// DataRoot is the directory holding all project files (page images,
	// previews, materials, exports).
	DataRoot string `mapstructure:"data_root" validate:"required"`

	// FileBaseURL is the public URL prefix under which DataRoot is
	// served, e.g. "/files".
	FileBaseURL string `mapstructure:"file_base_url"`
}

// LLMConfig contains all Gemini integration settings.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	TextModel    string `mapstructure:"text_model" validate:"required"`
	ImageModel   string `mapstructure:"image_model" validate:"required"`

	// MaxRetries is the number of retries after the first failed API
	// call. Zero disables retrying.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0,lte=10"`

	// RetryDelaySeconds is the base delay of the exponential backoff.
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds" validate:"gte=1,lte=60"`

	// ThinkingBudget caps the model's internal reasoning tokens.
	ThinkingBudget int32 `mapstructure:"thinking_budget" validate:"gte=0"`
}

// TasksConfig contains background task runner settings.
type TasksConfig struct {
	// QueueSize is the capacity of the in-memory task queue.
	QueueSize int `mapstructure:"queue_size" validate:"gte=1"`

	// WorkerCount is the number of runner goroutines draining the queue.
	WorkerCount int `mapstructure:"worker_count" validate:"gte=1"`

	// MaxPageWorkers bounds per-task page fan-out concurrency.
	MaxPageWorkers int `mapstructure:"max_page_workers" validate:"gte=1"`
}
