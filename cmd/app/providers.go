package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/docdigest/internal/domain/summarizer"
	"github.com/yanqian/docdigest/internal/infra/config"
	"github.com/yanqian/docdigest/internal/infra/llm/chatgpt"
	"github.com/yanqian/docdigest/internal/infra/llm/gemini"
	"github.com/yanqian/docdigest/internal/infra/ratelimit"
	"github.com/yanqian/docdigest/internal/infra/staging"
	httpiface "github.com/yanqian/docdigest/internal/interface/http"
)

func provideSummaryConfig(cfg *config.Config) summarizer.Config {
	return summarizer.Config{
		Instruction:  cfg.Summary.Instruction,
		Transmission: summarizer.TransmissionMode(cfg.Summary.Transmission),
		Timeout:      cfg.Provider.Timeout,
		DeleteRemote: cfg.Provider.DeleteRemote,
	}
}

func provideHandlerConfig(cfg *config.Config) httpiface.HandlerConfig {
	return httpiface.HandlerConfig{
		FieldName:                cfg.Upload.FieldName,
		MaxBytes:                 cfg.Upload.MaxBytes,
		AllowInstructionOverride: cfg.Summary.AllowInstructionOverride,
	}
}

func provideStager(cfg *config.Config, logger *slog.Logger) (summarizer.Stager, error) {
	upload := cfg.Upload
	switch upload.Storage {
	case config.StorageMemory:
		logger.Info("staging uploads in memory")
		return staging.NewMemoryStorage(upload.MaxBytes), nil
	case config.StorageObject:
		obj := upload.Object
		logger.Info("staging uploads in object storage", "endpoint", obj.Endpoint, "bucket", obj.Bucket)
		return staging.NewObjectStager(obj.Endpoint, obj.AccessKey, obj.SecretKey, obj.Bucket, obj.Region, upload.MaxBytes, logger)
	default:
		logger.Info("staging uploads on disk", "dir", upload.TempDir)
		return staging.NewDiskStager(upload.TempDir, upload.MaxBytes, logger)
	}
}

func provideSweeper(cfg *config.Config, logger *slog.Logger) (*staging.Sweeper, error) {
	if cfg.Upload.Storage != config.StorageDisk || cfg.Upload.OrphanTTL <= 0 {
		return nil, nil
	}
	return staging.NewSweeper(cfg.Upload.TempDir, cfg.Upload.OrphanTTL, cfg.Upload.SweepSchedule, logger)
}

func provideProvider(cfg *config.Config, logger *slog.Logger) (summarizer.Provider, error) {
	p := cfg.Provider
	switch p.Name {
	case config.ProviderOpenAI:
		return chatgpt.NewClient(p.APIKey, p.Model, p.BaseURL, logger)
	case config.ProviderGemini:
		return gemini.NewClient(context.Background(), p.APIKey, p.Model, p.BaseURL, logger)
	default:
		return nil, fmt.Errorf("unsupported provider %q", p.Name)
	}
}

func provideRateLimiter(cfg *config.Config, logger *slog.Logger) httpiface.RateLimiter {
	rl := cfg.HTTP.RateLimit
	if !rl.Enabled {
		return nil
	}
	if rl.Backend == config.RateLimitBackendValkey {
		if limiter := buildValkeyLimiter(rl, logger); limiter != nil {
			return limiter
		}
	}
	return httpiface.NewMemoryRateLimiter(rl)
}

func buildValkeyLimiter(rl config.RateLimitConfig, logger *slog.Logger) *ratelimit.ValkeyLimiter {
	opt, err := ratelimit.ClientOption(rl.Valkey.Addr)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory limiter", "error", err)
		return nil
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory limiter", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory limiter", "error", err)
		client.Close()
		return nil
	}
	logger.Info("valkey rate limiter enabled", "addr", rl.Valkey.Addr)
	return ratelimit.NewValkeyLimiter(client, rl.Valkey.Prefix, rl.RequestsPerMinute, time.Minute)
}
