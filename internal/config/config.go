// Package config provides configuration structures and validation for the
// extraction service: HTTP server settings, database connection, AI model
// parameters, exchange-rate lookup, OCR thresholds and the batch worker pool.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration. Every field is
// populated from defaults, an optional config file and environment variables,
// then validated at startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Postgres    PostgresConfig
	AI          AIConfig
	Rates       RatesConfig
	Extract     ExtractConfig
	WorkerPool  WorkerPoolConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxUploadBytes  int64 // per-file upload size cap
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// AIConfig contains settings for the generative extraction model.
type AIConfig struct {
	Model        string        // model name, e.g. gemini-2.5-flash
	Timeout      time.Duration // per-attempt deadline for a model call
	MaxAttempts  int           // total attempts per document (first call + retries)
	RetryBackoff time.Duration // pause before the retry attempt
}

// RatesConfig contains settings for the exchange-rate lookup service.
type RatesConfig struct {
	Endpoint     string        // rate service base URL
	Timeout      time.Duration // deadline for one rate lookup
	BaseCurrency string        // reporting currency all amounts normalize to
}

// ExtractConfig contains content-extraction tunables. The OCR threshold and
// raster settings are heuristics; the defaults match what worked on scanned
// receipts, adjust per deployment if vision fallback triggers too eagerly.
type ExtractConfig struct {
	OCRLanguage        string // tesseract language code
	OCRMinCharsPerPage int    // alphanumeric chars/page below which OCR output is considered garbage
	RasterDPI          int    // PDF page rasterization density
	MaxVisionPages     int    // max rasterized pages sent to the vision model
}

// WorkerPoolConfig contains batch worker pool configuration
type WorkerPoolConfig struct {
	Size int
}

// validate checks all configuration values against their minimum
// requirements and reports every violation at once.
func (c *Config) validate() error {
	var validationErrors []string

	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.MaxUploadBytes <= 0 {
		validationErrors = append(validationErrors, "SERVER_MAX_UPLOAD_BYTES must be greater than 0")
	}

	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}

	if c.AI.Model == "" {
		validationErrors = append(validationErrors, "AI_MODEL is required")
	}
	if c.AI.Timeout <= 0 {
		validationErrors = append(validationErrors, "AI_TIMEOUT must be greater than 0")
	}
	if c.AI.MaxAttempts < 1 {
		validationErrors = append(validationErrors, "AI_MAX_ATTEMPTS must be at least 1")
	}

	if c.Rates.Endpoint == "" {
		validationErrors = append(validationErrors, "RATES_ENDPOINT is required")
	}
	if c.Rates.Timeout <= 0 {
		validationErrors = append(validationErrors, "RATES_TIMEOUT must be greater than 0")
	}
	if len(c.Rates.BaseCurrency) != 3 {
		validationErrors = append(validationErrors, "RATES_BASE_CURRENCY must be a 3-letter ISO code")
	}

	if c.Extract.OCRMinCharsPerPage < 0 {
		validationErrors = append(validationErrors, "EXTRACT_OCR_MIN_CHARS_PER_PAGE must not be negative")
	}
	if c.Extract.RasterDPI <= 0 {
		validationErrors = append(validationErrors, "EXTRACT_RASTER_DPI must be greater than 0")
	}
	if c.Extract.MaxVisionPages <= 0 {
		validationErrors = append(validationErrors, "EXTRACT_MAX_VISION_PAGES must be greater than 0")
	}

	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New("config validation failed: " + strings.Join(validationErrors, "; "))
	}
	return nil
}
