package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	App     AppConfig     `yaml:"app"`
	HTTP    HTTPConfig    `yaml:"http"`
	LLM     LLMConfig     `yaml:"llm"`
	Ocean   OceanConfig   `yaml:"ocean"`
	Cache   CacheConfig   `yaml:"cache"`
	Chat    ChatConfig    `yaml:"chat"`
	Archive ArchiveConfig `yaml:"archive"`
}

// AppConfig carries deployment-wide settings.
type AppConfig struct {
	// Env is "development" or "production". Development responses include
	// error details.
	Env string `yaml:"env"`
}

// Development reports whether verbose error details may be returned.
func (a AppConfig) Development() bool {
	return strings.EqualFold(a.Env, "development")
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	Retry          RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// LLMConfig contains ChatGPT/OpenAI settings.
type LLMConfig struct {
	APIKey         string        `yaml:"apiKey"`
	BaseURL        string        `yaml:"baseUrl"`
	Model          string        `yaml:"model"`
	FallbackModels []string      `yaml:"fallbackModels"`
	Temperature    float32       `yaml:"temperature"`
	Timeout        time.Duration `yaml:"timeout"`
}

// OceanConfig bounds the upstream fan-out and configures each provider.
type OceanConfig struct {
	FetchDeadline  time.Duration  `yaml:"fetchDeadline"`
	AdapterTimeout time.Duration  `yaml:"adapterTimeout"`
	Argo           ProviderConfig `yaml:"argo"`
	Chlorophyll    ProviderConfig `yaml:"chlorophyll"`
	Tides          ProviderConfig `yaml:"tides"`
	Forecast       ProviderConfig `yaml:"forecast"`
}

// ProviderConfig describes one upstream data provider. A blank BaseURL
// selects the provider's public endpoint.
type ProviderConfig struct {
	BaseURL           string        `yaml:"baseUrl"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
}

// CacheConfig controls the aggregation cache.
type CacheConfig struct {
	MaxEntries    int           `yaml:"maxEntries"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
	StoreTimeout  time.Duration `yaml:"storeTimeout"`
	TTL           TTLConfig     `yaml:"ttl"`
	Valkey        ValkeyConfig  `yaml:"valkey"`
}

// TTLConfig holds per-domain entry lifetimes.
type TTLConfig struct {
	ProfilingFloat time.Duration `yaml:"profilingFloat"`
	TidalCurrent   time.Duration `yaml:"tidalCurrent"`
	SatelliteColor time.Duration `yaml:"satelliteColor"`
	OceanForecast  time.Duration `yaml:"oceanForecast"`
}

// ValkeyConfig contains connection information for shared storage.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// ChatConfig controls prompt assembly, streaming and history.
type ChatConfig struct {
	Prompt            string         `yaml:"prompt"`
	MaxHistoryTurns   int            `yaml:"maxHistoryTurns"`
	MaxHistoryTokens  int            `yaml:"maxHistoryTokens"`
	WordsPerChunk     int            `yaml:"wordsPerChunk"`
	GenerationTimeout time.Duration  `yaml:"generationTimeout"`
	Postgres          PostgresConfig `yaml:"postgres"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// ArchiveConfig controls research snapshot archiving.
type ArchiveConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Endpoint  string             `yaml:"endpoint"`
	AccessKey string             `yaml:"accessKey"`
	SecretKey string             `yaml:"secretKey"`
	Bucket    string             `yaml:"bucket"`
	Region    string             `yaml:"region"`
	Queue     ArchiveQueueConfig `yaml:"queue"`
}

// ArchiveQueueConfig selects the job queue. With Valkey disabled jobs run
// in-process.
type ArchiveQueueConfig struct {
	Valkey bool   `yaml:"valkey"`
	Key    string `yaml:"key"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
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

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
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

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	} else if v := os.Getenv("PORT"); v != "" {
		cfg.HTTP.Address = ":" + v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_ENABLED"); v != "" {
		cfg.HTTP.Retry.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RETRY_MAX_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Retry.MaxAttempts = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_BASE_BACKOFF"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Retry.BaseBackoff = parsed
		}
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_FALLBACK_MODELS"); v != "" {
		cfg.LLM.FallbackModels = splitList(v)
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.LLM.Timeout = parsed
		}
	}
	if v := os.Getenv("OCEAN_FETCH_DEADLINE"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Ocean.FetchDeadline = parsed
		}
	}
	if v := os.Getenv("OCEAN_ADAPTER_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Ocean.AdapterTimeout = parsed
		}
	}
	if v := os.Getenv("ARGO_BASE_URL"); v != "" {
		cfg.Ocean.Argo.BaseURL = v
	}
	if v := os.Getenv("CHLOROPHYLL_BASE_URL"); v != "" {
		cfg.Ocean.Chlorophyll.BaseURL = v
	}
	if v := os.Getenv("TIDES_BASE_URL"); v != "" {
		cfg.Ocean.Tides.BaseURL = v
	}
	if v := os.Getenv("FORECAST_BASE_URL"); v != "" {
		cfg.Ocean.Forecast.BaseURL = v
	}
	if v := os.Getenv("CACHE_MAX_ENTRIES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxEntries = parsed
		}
	}
	if v := os.Getenv("CACHE_SWEEP_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Cache.SweepInterval = parsed
		}
	}
	if v := os.Getenv("CACHE_VALKEY_ENABLED"); v != "" {
		cfg.Cache.Valkey.Enabled = parseBool(v)
	}
	if v := os.Getenv("CACHE_VALKEY_ADDR"); v != "" {
		cfg.Cache.Valkey.Addr = v
	}
	if v := os.Getenv("CHAT_PROMPT"); v != "" {
		cfg.Chat.Prompt = v
	}
	if v := os.Getenv("CHAT_MAX_HISTORY_TURNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Chat.MaxHistoryTurns = parsed
		}
	}
	if v := os.Getenv("CHAT_WORDS_PER_CHUNK"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Chat.WordsPerChunk = parsed
		}
	}
	if v := os.Getenv("CHAT_POSTGRES_DSN"); v != "" {
		cfg.Chat.Postgres.DSN = v
	}
	if v := os.Getenv("CHAT_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Chat.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("CHAT_POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Chat.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("ARCHIVE_ENABLED"); v != "" {
		cfg.Archive.Enabled = parseBool(v)
	}
	if v := os.Getenv("ARCHIVE_ENDPOINT"); v != "" {
		cfg.Archive.Endpoint = v
	}
	if v := os.Getenv("ARCHIVE_ACCESS_KEY"); v != "" {
		cfg.Archive.AccessKey = v
	}
	if v := os.Getenv("ARCHIVE_SECRET_KEY"); v != "" {
		cfg.Archive.SecretKey = v
	}
	if v := os.Getenv("ARCHIVE_BUCKET"); v != "" {
		cfg.Archive.Bucket = v
	}
	if v := os.Getenv("ARCHIVE_REGION"); v != "" {
		cfg.Archive.Region = v
	}
	if v := os.Getenv("ARCHIVE_QUEUE_VALKEY"); v != "" {
		cfg.Archive.Queue.Valkey = parseBool(v)
	}
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{Env: "production"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 2 * time.Minute,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/api/v1/chat/stream",
				},
			},
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
			Timeout:     60 * time.Second,
		},
		Ocean: OceanConfig{
			FetchDeadline:  8 * time.Second,
			AdapterTimeout: 6 * time.Second,
			Argo:           ProviderConfig{RequestsPerSecond: 2, Burst: 2},
			Chlorophyll:    ProviderConfig{RequestsPerSecond: 2, Burst: 2},
			Tides:          ProviderConfig{RequestsPerSecond: 5, Burst: 5},
			Forecast:       ProviderConfig{RequestsPerSecond: 5, Burst: 5},
		},
		Cache: CacheConfig{
			MaxEntries:    1024,
			SweepInterval: 5 * time.Minute,
			StoreTimeout:  2 * time.Second,
			TTL: TTLConfig{
				ProfilingFloat: 6 * time.Hour,
				TidalCurrent:   15 * time.Minute,
				SatelliteColor: 24 * time.Hour,
				OceanForecast:  time.Hour,
			},
			Valkey: ValkeyConfig{
				Enabled: false,
				Addr:    "",
				Prefix:  "ocean:cache",
			},
		},
		Chat: ChatConfig{
			MaxHistoryTurns:   6,
			MaxHistoryTokens:  2000,
			WordsPerChunk:     5,
			GenerationTimeout: 90 * time.Second,
			Postgres: PostgresConfig{
				DSN:      "",
				MaxConns: 4,
				MinConns: 0,
			},
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Region:  "auto",
			Queue: ArchiveQueueConfig{
				Valkey: false,
				Key:    "ocean:jobs",
			},
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model cannot be empty")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	if c.Ocean.FetchDeadline <= 0 {
		return errors.New("ocean.fetchDeadline must be positive")
	}
	if c.Ocean.AdapterTimeout <= 0 {
		return errors.New("ocean.adapterTimeout must be positive")
	}
	if c.Ocean.AdapterTimeout > c.Ocean.FetchDeadline {
		return errors.New("ocean.adapterTimeout cannot exceed ocean.fetchDeadline")
	}
	if c.Cache.MaxEntries <= 0 {
		return errors.New("cache.maxEntries must be positive")
	}
	if c.Cache.SweepInterval < 0 {
		return errors.New("cache.sweepInterval cannot be negative")
	}
	ttls := map[string]time.Duration{
		"profilingFloat": c.Cache.TTL.ProfilingFloat,
		"tidalCurrent":   c.Cache.TTL.TidalCurrent,
		"satelliteColor": c.Cache.TTL.SatelliteColor,
		"oceanForecast":  c.Cache.TTL.OceanForecast,
	}
	for name, ttl := range ttls {
		if ttl <= 0 {
			return fmt.Errorf("cache.ttl.%s must be positive", name)
		}
	}
	if c.Cache.Valkey.Enabled && strings.TrimSpace(c.Cache.Valkey.Addr) == "" {
		return errors.New("cache.valkey.addr cannot be empty when valkey is enabled")
	}
	if c.Chat.MaxHistoryTurns < 0 {
		return errors.New("chat.maxHistoryTurns cannot be negative")
	}
	if c.Chat.MaxHistoryTokens < 0 {
		return errors.New("chat.maxHistoryTokens cannot be negative")
	}
	if c.Chat.WordsPerChunk <= 0 {
		return errors.New("chat.wordsPerChunk must be positive")
	}
	if c.Archive.Enabled && strings.TrimSpace(c.Archive.Bucket) == "" {
		return errors.New("archive.bucket cannot be empty when archiving is enabled")
	}
	if c.Archive.Queue.Valkey && strings.TrimSpace(c.Cache.Valkey.Addr) == "" {
		return errors.New("archive.queue.valkey requires cache.valkey.addr")
	}
	return nil
}
