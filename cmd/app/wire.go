//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/ocean-insight/internal/bootstrap"
	"github.com/yanqian/ocean-insight/internal/domain/aggregation"
	"github.com/yanqian/ocean-insight/internal/domain/chat"
	"github.com/yanqian/ocean-insight/internal/domain/query"
	"github.com/yanqian/ocean-insight/internal/infra/config"
	"github.com/yanqian/ocean-insight/internal/infra/llm"
	httpiface "github.com/yanqian/ocean-insight/internal/interface/http"
	"github.com/yanqian/ocean-insight/pkg/logger"
	"github.com/yanqian/ocean-insight/pkg/metrics"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		metrics.NewRecorder,
		provideValkeyClient,
		provideCacheStore,
		provideCacheConfig,
		provideOrchestratorConfig,
		provideAdapters,
		provideChatConfig,
		provideTokenCounter,
		provideGenerators,
		provideHistoryStore,
		provideObjectStorage,
		provideJobQueue,
		provideChatQueue,
		query.NewResolver,
		query.NewClassifier,
		aggregation.NewCache,
		aggregation.NewOrchestrator,
		chat.NewAssembler,
		chat.NewService,
		wire.Bind(new(aggregation.Fetcher), new(*aggregation.Orchestrator)),
		wire.Bind(new(chat.TokenCounter), new(*llm.TokenCounter)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
