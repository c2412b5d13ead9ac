//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/docdigest/internal/bootstrap"
	"github.com/yanqian/docdigest/internal/domain/summarizer"
	"github.com/yanqian/docdigest/internal/infra/config"
	httpiface "github.com/yanqian/docdigest/internal/interface/http"
	"github.com/yanqian/docdigest/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideSummaryConfig,
		provideHandlerConfig,
		provideStager,
		provideSweeper,
		provideProvider,
		provideRateLimiter,
		summarizer.NewService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
