package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage strategies for uploaded documents.
const (
	StorageDisk   = "disk"
	StorageMemory = "memory"
	StorageObject = "object"
)

// Transmission modes towards the summarization provider.
const (
	TransmissionReference = "reference"
	TransmissionInline    = "inline"
)

// Supported summarization providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Rate limiter backends.
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendValkey = "valkey"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	CORS     CORSConfig     `yaml:"cors"`
	Upload   UploadConfig   `yaml:"upload"`
	Summary  SummaryConfig  `yaml:"summary"`
	Provider ProviderConfig `yaml:"provider"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address      string          `yaml:"address" env:"HTTP_ADDRESS"`
	Port         int             `yaml:"port" env:"PORT"`
	ReadTimeout  time.Duration   `yaml:"readTimeout" env:"HTTP_READ_TIMEOUT"`
	WriteTimeout time.Duration   `yaml:"writeTimeout" env:"HTTP_WRITE_TIMEOUT"`
	RateLimit    RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool         `yaml:"enabled" env:"HTTP_RATE_LIMIT_ENABLED"`
	RequestsPerMinute int          `yaml:"requestsPerMinute" env:"HTTP_RATE_LIMIT_RPM"`
	Burst             int          `yaml:"burst" env:"HTTP_RATE_LIMIT_BURST"`
	Backend           string       `yaml:"backend" env:"HTTP_RATE_LIMIT_BACKEND"`
	Valkey            ValkeyConfig `yaml:"valkey"`
}

// ValkeyConfig contains connection information for the shared limiter.
type ValkeyConfig struct {
	Addr   string `yaml:"addr" env:"VALKEY_ADDR"`
	Prefix string `yaml:"prefix" env:"VALKEY_PREFIX"`
}

// CORSConfig restricts which browser origins may call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// UploadConfig controls how uploaded documents are received and materialized.
type UploadConfig struct {
	FieldName     string        `yaml:"fieldName" env:"UPLOAD_FIELD_NAME"`
	Storage       string        `yaml:"storage" env:"UPLOAD_STORAGE"`
	TempDir       string        `yaml:"tempDir" env:"UPLOAD_TEMP_DIR"`
	MaxBytes      int64         `yaml:"maxBytes" env:"UPLOAD_MAX_BYTES"`
	OrphanTTL     time.Duration `yaml:"orphanTtl" env:"UPLOAD_ORPHAN_TTL"`
	SweepSchedule string        `yaml:"sweepSchedule" env:"UPLOAD_SWEEP_SCHEDULE"`
	Object        ObjectConfig  `yaml:"object"`
}

// ObjectConfig points the object storage strategy at an S3 compatible bucket.
type ObjectConfig struct {
	Endpoint  string `yaml:"endpoint" env:"OBJECT_ENDPOINT"`
	AccessKey string `yaml:"accessKey" env:"OBJECT_ACCESS_KEY"`
	SecretKey string `yaml:"secretKey" env:"OBJECT_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"OBJECT_BUCKET"`
	Region    string `yaml:"region" env:"OBJECT_REGION"`
}

// SummaryConfig defines what the provider is asked to do with a document.
type SummaryConfig struct {
	Instruction              string `yaml:"instruction" env:"SUMMARY_INSTRUCTION"`
	Transmission             string `yaml:"transmission" env:"SUMMARY_TRANSMISSION"`
	AllowInstructionOverride bool   `yaml:"allowInstructionOverride" env:"SUMMARY_ALLOW_INSTRUCTION_OVERRIDE"`
}

// ProviderConfig contains the generative AI provider settings.
type ProviderConfig struct {
	Name         string        `yaml:"name" env:"PROVIDER"`
	APIKey       string        `yaml:"apiKey" env:"API_KEY"`
	Model        string        `yaml:"model" env:"PROVIDER_MODEL"`
	BaseURL      string        `yaml:"baseUrl" env:"PROVIDER_BASE_URL"`
	Timeout      time.Duration `yaml:"timeout" env:"PROVIDER_TIMEOUT"`
	DeleteRemote bool          `yaml:"deleteRemote" env:"PROVIDER_DELETE_REMOTE"`
}

// Load reads configuration from .env, a YAML file and environment variables.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv("DOTENV_PATH")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.HTTP.Address) == "" && c.HTTP.Port > 0 {
		c.HTTP.Address = fmt.Sprintf(":%d", c.HTTP.Port)
	}
	c.Upload.Storage = strings.ToLower(strings.TrimSpace(c.Upload.Storage))
	c.Summary.Transmission = strings.ToLower(strings.TrimSpace(c.Summary.Transmission))
	c.Provider.Name = strings.ToLower(strings.TrimSpace(c.Provider.Name))
	c.HTTP.RateLimit.Backend = strings.ToLower(strings.TrimSpace(c.HTTP.RateLimit.Backend))

	origins := make([]string, 0, len(c.CORS.AllowedOrigins))
	for _, origin := range c.CORS.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	c.CORS.AllowedOrigins = origins

	if strings.TrimSpace(c.Provider.Model) == "" {
		c.Provider.Model = defaultModel(c.Provider.Name)
	}
}

func defaultModel(provider string) string {
	if provider == ProviderOpenAI {
		return "gpt-4o-mini"
	}
	return "gemini-1.5-flash"
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:         3000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 3 * time.Minute,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 30,
				Burst:             10,
				Backend:           RateLimitBackendMemory,
				Valkey: ValkeyConfig{
					Prefix: "docdigest:ratelimit",
				},
			},
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Upload: UploadConfig{
			FieldName:     "document",
			Storage:       StorageDisk,
			TempDir:       filepath.Join(os.TempDir(), "docdigest"),
			MaxBytes:      10 << 20,
			OrphanTTL:     time.Hour,
			SweepSchedule: "@every 10m",
		},
		Summary: SummaryConfig{
			Instruction:  "Can you summarize this document?",
			Transmission: TransmissionReference,
		},
		Provider: ProviderConfig{
			Name:         ProviderGemini,
			Timeout:      2 * time.Minute,
			DeleteRemote: true,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		return errors.New("cors.allowedOrigins cannot be empty; use \"*\" to allow any origin")
	}
	if strings.TrimSpace(c.Provider.APIKey) == "" {
		return errors.New("provider.apiKey cannot be empty")
	}
	switch c.Provider.Name {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("provider.name %q is not supported", c.Provider.Name)
	}
	if c.Provider.Timeout < 0 {
		return errors.New("provider.timeout cannot be negative")
	}
	if strings.TrimSpace(c.Summary.Instruction) == "" {
		return errors.New("summary.instruction cannot be empty")
	}
	switch c.Summary.Transmission {
	case TransmissionReference, TransmissionInline:
	default:
		return fmt.Errorf("summary.transmission %q is not supported", c.Summary.Transmission)
	}
	if strings.TrimSpace(c.Upload.FieldName) == "" {
		return errors.New("upload.fieldName cannot be empty")
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload.maxBytes must be positive")
	}
	switch c.Upload.Storage {
	case StorageDisk:
		if strings.TrimSpace(c.Upload.TempDir) == "" {
			return errors.New("upload.tempDir cannot be empty for disk storage")
		}
		if c.Upload.OrphanTTL < 0 {
			return errors.New("upload.orphanTtl cannot be negative")
		}
	case StorageMemory:
	case StorageObject:
		obj := c.Upload.Object
		if strings.TrimSpace(obj.Endpoint) == "" || strings.TrimSpace(obj.Bucket) == "" {
			return errors.New("upload.object.endpoint and upload.object.bucket are required for object storage")
		}
		if strings.TrimSpace(obj.AccessKey) == "" || strings.TrimSpace(obj.SecretKey) == "" {
			return errors.New("upload.object credentials are required for object storage")
		}
	default:
		return fmt.Errorf("upload.storage %q is not supported", c.Upload.Storage)
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
		switch c.HTTP.RateLimit.Backend {
		case RateLimitBackendMemory:
		case RateLimitBackendValkey:
			if strings.TrimSpace(c.HTTP.RateLimit.Valkey.Addr) == "" {
				return errors.New("http.rateLimit.valkey.addr cannot be empty when backend is valkey")
			}
		default:
			return fmt.Errorf("http.rateLimit.backend %q is not supported", c.HTTP.RateLimit.Backend)
		}
	}
	return nil
}
