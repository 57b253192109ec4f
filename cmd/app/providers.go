package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/ocean-insight/internal/domain/aggregation"
	"github.com/yanqian/ocean-insight/internal/domain/chat"
	"github.com/yanqian/ocean-insight/internal/domain/ocean"
	"github.com/yanqian/ocean-insight/internal/infra/archive"
	"github.com/yanqian/ocean-insight/internal/infra/config"
	"github.com/yanqian/ocean-insight/internal/infra/conversation"
	"github.com/yanqian/ocean-insight/internal/infra/datacache"
	"github.com/yanqian/ocean-insight/internal/infra/llm"
	"github.com/yanqian/ocean-insight/internal/infra/llm/chatgpt"
	"github.com/yanqian/ocean-insight/internal/infra/ocean/coops"
	"github.com/yanqian/ocean-insight/internal/infra/ocean/erddap"
	"github.com/yanqian/ocean-insight/internal/infra/ocean/openmeteo"
	"github.com/yanqian/ocean-insight/internal/infra/ocean/source"
	"github.com/yanqian/ocean-insight/internal/infra/queue"
)

// valkeyClient is nil when Valkey is disabled or unreachable.
type valkeyClient struct {
	valkey.Client
}

func provideValkeyClient(cfg *config.Config, logger *slog.Logger) valkeyClient {
	if !cfg.Cache.Valkey.Enabled && !cfg.Archive.Queue.Valkey {
		return valkeyClient{}
	}
	opt, err := buildValkeyOptions(cfg.Cache.Valkey.Addr)
	if err != nil {
		logger.Error("invalid valkey configuration, using in-memory fallbacks", "error", err)
		return valkeyClient{}
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, using in-memory fallbacks", "error", err)
		return valkeyClient{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, using in-memory fallbacks", "error", err)
		client.Close()
		return valkeyClient{}
	}
	logger.Info("valkey connected", "addr", cfg.Cache.Valkey.Addr)
	return valkeyClient{Client: client}
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

func provideCacheStore(cfg *config.Config, client valkeyClient, logger *slog.Logger) aggregation.Store {
	if cfg.Cache.Valkey.Enabled && client.Client != nil {
		logger.Info("aggregation cache backed by valkey", "prefix", cfg.Cache.Valkey.Prefix)
		return datacache.NewValkeyStore(client.Client, cfg.Cache.Valkey.Prefix)
	}
	return datacache.NewMemoryStore(cfg.Cache.MaxEntries)
}

func provideCacheConfig(cfg *config.Config) aggregation.CacheConfig {
	base := aggregation.DefaultCacheConfig()
	base.TTL = map[ocean.Domain]time.Duration{
		ocean.ProfilingFloat: cfg.Cache.TTL.ProfilingFloat,
		ocean.TidalCurrent:   cfg.Cache.TTL.TidalCurrent,
		ocean.SatelliteColor: cfg.Cache.TTL.SatelliteColor,
		ocean.OceanForecast:  cfg.Cache.TTL.OceanForecast,
	}
	if cfg.Cache.StoreTimeout > 0 {
		base.StoreTimeout = cfg.Cache.StoreTimeout
	}
	return base
}

func provideOrchestratorConfig(cfg *config.Config) aggregation.OrchestratorConfig {
	return aggregation.OrchestratorConfig{
		FetchDeadline:  cfg.Ocean.FetchDeadline,
		AdapterTimeout: cfg.Ocean.AdapterTimeout,
	}
}

func sourceConfig(p config.ProviderConfig) source.Config {
	return source.Config{
		BaseURL:           p.BaseURL,
		Timeout:           p.Timeout,
		RequestsPerSecond: p.RequestsPerSecond,
		Burst:             p.Burst,
	}
}

func provideAdapters(cfg *config.Config) []ocean.SourceAdapter {
	return []ocean.SourceAdapter{
		erddap.NewArgoAdapter(sourceConfig(cfg.Ocean.Argo)),
		coops.NewTideAdapter(sourceConfig(cfg.Ocean.Tides)),
		erddap.NewChlorophyllAdapter(sourceConfig(cfg.Ocean.Chlorophyll)),
		openmeteo.NewMarineAdapter(sourceConfig(cfg.Ocean.Forecast)),
	}
}

func provideChatConfig(cfg *config.Config) chat.Config {
	return chat.Config{
		Prompt:            cfg.Chat.Prompt,
		MaxHistoryTurns:   cfg.Chat.MaxHistoryTurns,
		MaxHistoryTokens:  cfg.Chat.MaxHistoryTokens,
		WordsPerChunk:     cfg.Chat.WordsPerChunk,
		GenerationTimeout: cfg.Chat.GenerationTimeout,
		ArchiveEnabled:    cfg.Archive.Enabled,
	}
}

func provideTokenCounter(cfg *config.Config, logger *slog.Logger) *llm.TokenCounter {
	return llm.NewTokenCounter(cfg.LLM.Model, logger)
}

func provideGenerators(cfg *config.Config, logger *slog.Logger) ([]chat.Generator, error) {
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		logger.Warn("llm api key not set, answering with the offline generator")
		return []chat.Generator{llm.OfflineGenerator{}}, nil
	}
	client, err := chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Timeout)
	if err != nil {
		return nil, err
	}
	return llm.NewGeneratorChain(client, cfg.LLM.Model, cfg.LLM.FallbackModels, cfg.LLM.Temperature), nil
}

func provideHistoryStore(cfg *config.Config, logger *slog.Logger) chat.HistoryStore {
	fallback := conversation.NewMemoryStore(0)
	dsn := strings.TrimSpace(cfg.Chat.Postgres.DSN)
	if dsn == "" {
		logger.Info("chat postgres dsn not set, using memory history")
		return fallback
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory history", "error", err)
		return fallback
	}
	if cfg.Chat.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Chat.Postgres.MaxConns
	}
	if cfg.Chat.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Chat.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory history", "error", err)
		return fallback
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory history", "error", err)
		pool.Close()
		return fallback
	}
	store := conversation.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("conversation schema setup failed, using memory history", "error", err)
		pool.Close()
		return fallback
	}
	logger.Info("chat postgres history enabled")
	return store
}

func provideObjectStorage(cfg *config.Config, logger *slog.Logger) chat.ObjectStorage {
	if !cfg.Archive.Enabled || strings.TrimSpace(cfg.Archive.Endpoint) == "" {
		return archive.NewMemoryStorage()
	}
	storage, err := archive.NewS3Storage(cfg.Archive.Endpoint, cfg.Archive.AccessKey, cfg.Archive.SecretKey, cfg.Archive.Bucket, cfg.Archive.Region, logger)
	if err != nil {
		logger.Error("failed to initialize snapshot storage, using memory storage", "error", err)
		return archive.NewMemoryStorage()
	}
	logger.Info("snapshot archive enabled", "bucket", cfg.Archive.Bucket)
	return storage
}

func provideJobQueue(cfg *config.Config, client valkeyClient, logger *slog.Logger) queue.HandlerQueue {
	if cfg.Archive.Queue.Valkey && client.Client != nil {
		logger.Info("job queue backed by valkey", "key", cfg.Archive.Queue.Key)
		return queue.NewValkeyQueue(client.Client, cfg.Archive.Queue.Key, logger)
	}
	return queue.NewImmediateQueue(nil)
}

func provideChatQueue(q queue.HandlerQueue) chat.JobQueue {
	return q
}
