package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Nao-Mk2/cwlogs-to-es/internal/pattern"
)

// Environment variable names.
const (
	EnvEndpoint             = "ES_ENDPOINT"
	EnvIndexNamePattern     = "INDEX_NAME_PATTERN"
	EnvDeleteAfterInDays    = "DELETE_AFTER_IN_DAYS"
	EnvRegion               = "AWS_REGION"
	EnvDocumentType         = "ES_DOCUMENT_TYPE"
	EnvPayloadPath          = "PAYLOAD_PATH"
	EnvMaxConcurrentDeletes = "MAX_CONCURRENT_DELETES"
	EnvLogLevel             = "LOG_LEVEL"
)

const (
	DefaultDocumentType = "log"
	DefaultPayloadPath  = "awslogs.data"

	// noDocumentType disables the _type field of bulk actions.
	noDocumentType = "-"
)

// Config is built once at process start and shared by the pipelines.
type Config struct {
	Endpoint     string
	Region       string
	IndexPattern *pattern.Pattern
	// DeleteAfterDays is negative when DELETE_AFTER_IN_DAYS is unset.
	DeleteAfterDays      int
	DocumentType         string
	PayloadPath          string
	MaxConcurrentDeletes int
	LogLevel             string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads configuration through getenv.
func LoadFrom(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Endpoint:        strings.TrimSpace(getenv(EnvEndpoint)),
		Region:          getenv(EnvRegion),
		DeleteAfterDays: -1,
		DocumentType:    fallback(getenv(EnvDocumentType), DefaultDocumentType),
		PayloadPath:     fallback(getenv(EnvPayloadPath), DefaultPayloadPath),
		LogLevel:        fallback(getenv(EnvLogLevel), "info"),
	}
	if cfg.DocumentType == noDocumentType {
		cfg.DocumentType = ""
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%s is required", EnvEndpoint)
	}

	p, err := pattern.Compile(getenv(EnvIndexNamePattern))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvIndexNamePattern, err)
	}
	cfg.IndexPattern = p

	if v := strings.TrimSpace(getenv(EnvDeleteAfterInDays)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer, got %q", EnvDeleteAfterInDays, v)
		}
		cfg.DeleteAfterDays = n
	}
	if v := strings.TrimSpace(getenv(EnvMaxConcurrentDeletes)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer, got %q", EnvMaxConcurrentDeletes, v)
		}
		cfg.MaxConcurrentDeletes = n
	}
	return cfg, nil
}

// ErrNoRetention is returned by RequireRetention when DELETE_AFTER_IN_DAYS is unset.
var ErrNoRetention = errors.New(EnvDeleteAfterInDays + " is required")

// RequireRetention checks the settings only the cleanup path needs.
func (c *Config) RequireRetention() error {
	if c.DeleteAfterDays < 0 {
		return ErrNoRetention
	}
	return nil
}

// String summarises the configuration for the startup log line.
func (c *Config) String() string {
	return fmt.Sprintf("ES_ENDPOINT=%s INDEX_NAME_PATTERN=%s DELETE_AFTER_IN_DAYS=%d",
		c.Endpoint, c.IndexPattern, c.DeleteAfterDays)
}

func fallback(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
