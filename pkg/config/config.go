// Package config loads and validates the service configuration from YAML.
// Secrets may be left out of the file and picked up from the environment.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/GeorgeStrakhov/briefboarder/pkg/errors"
)

// Config is the root service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	LLM      LLMConfig      `yaml:"llm"`
	ImageGen ImageGenConfig `yaml:"imagegen"`
	Collab   CollabConfig   `yaml:"collab"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig locates the brief database.
type StorageConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// LLMConfig selects the text generation provider.
type LLMConfig struct {
	Provider string `yaml:"provider" validate:"required,oneof=anthropic"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
}

// ImageGenConfig points at the image generation provider.
type ImageGenConfig struct {
	BaseURL      string        `yaml:"base_url" validate:"required,url"`
	APIKey       string        `yaml:"api_key"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	CacheEntries int           `yaml:"cache_entries" validate:"min=0"`
}

// CollabConfig holds the session token signing settings.
type CollabConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`
}

// DefaultConfig returns a configuration with sensible development defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Path: "briefboarder.db",
		},
		LLM: LLMConfig{
			Provider: "anthropic",
		},
		ImageGen: ImageGenConfig{
			CacheTTL:     time.Hour,
			CacheEntries: 1024,
		},
		Collab: CollabConfig{
			TokenTTL: time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML config file, merges defaults, resolves secrets from the
// environment, and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "failed to read config file")
	}
	return Parse(raw)
}

// Parse builds a Config from raw YAML bytes.
func Parse(raw []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "failed to parse config file")
	}
	cfg.resolveEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveEnv fills secrets that were left out of the file.
func (c *Config) resolveEnv() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.ImageGen.APIKey == "" {
		c.ImageGen.APIKey = os.Getenv("IMAGEGEN_API_KEY")
	}
	if c.Collab.Secret == "" {
		c.Collab.Secret = os.Getenv("COLLAB_SECRET")
	}
}

// Validate checks structural constraints on the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := verrs[0]
			return errors.WithFields(
				errors.New(errors.ValidationFailed, "invalid configuration"),
				errors.Fields{"field": first.Namespace(), "constraint": first.Tag()})
		}
		return errors.Wrap(err, errors.ValidationFailed, "invalid configuration")
	}
	return nil
}
