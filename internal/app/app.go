// Package app wires configuration into a ready-to-serve chat pipeline.
package app

import (
	"context"
	"fmt"
	"time"

	"investment-chat/internal/common/camunda"
	"investment-chat/internal/common/config"
	"investment-chat/internal/common/database"
	"investment-chat/internal/common/logger"
	"investment-chat/internal/common/observability"
	"investment-chat/internal/dataset"
	"investment-chat/internal/llm"
	"investment-chat/internal/llm/gemini"
	"investment-chat/internal/llm/openai"
	"investment-chat/internal/memory"
	"investment-chat/internal/resolver"
	answerquestion "investment-chat/internal/workers/ai-conversation/answer-question"
	fetchentity "investment-chat/internal/workers/ai-conversation/fetch-entity"
	llmsynthesis "investment-chat/internal/workers/ai-conversation/llm-synthesis"
	routequestion "investment-chat/internal/workers/ai-conversation/route-question"
	runanalyticalquery "investment-chat/internal/workers/ai-conversation/run-analytical-query"
	"investment-chat/pkg/registry"

	"github.com/redis/go-redis/v9"
)

// App holds every long-lived component of the chat service.
type App struct {
	Config        *config.Config
	Logger        logger.Logger
	Observability *observability.Observability
	Store         *dataset.Store
	Tools         *registry.ToolRegistry
	Resolver      *resolver.Resolver
	Memory        *memory.Memory

	Router      *routequestion.Handler
	Fetcher     *fetchentity.Handler
	Analytics   *runanalyticalquery.Handler
	Synthesizer *llmsynthesis.Handler
	Chat        *answerquestion.Handler

	redis    *database.RedisClient
	postgres *database.PostgresClient
	es       *database.ElasticsearchClient
	checks   map[string]func(context.Context) error
	closers  []func() error
}

type options struct {
	obs          *observability.Observability
	connectTries int
}

type Option func(*options)

// WithObservability uses obs instead of registering a new provider.
func WithObservability(obs *observability.Observability) Option {
	return func(o *options) { o.obs = obs }
}

// WithConnectAttempts bounds the backoff loop used for redis, postgres and elasticsearch.
func WithConnectAttempts(n int) Option {
	return func(o *options) { o.connectTries = n }
}

// New loads the dataset, connects the configured backends and builds the
// name index. Any failure here is fatal for the process.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*App, error) {
	o := options{connectTries: 10}
	for _, opt := range opts {
		opt(&o)
	}
	if o.connectTries < 1 {
		o.connectTries = 1
	}

	a := &App{
		Config: cfg,
		Logger: log,
		Tools:  registry.Default(),
		checks: make(map[string]func(context.Context) error),
	}

	if o.obs != nil {
		a.Observability = o.obs
	} else {
		obs, err := observability.New(cfg.App.Name)
		if err != nil {
			return nil, fmt.Errorf("init observability: %w", err)
		}
		a.Observability = obs
		a.closers = append(a.closers, func() error { return obs.Shutdown(context.Background()) })
	}

	store, err := dataset.Load(cfg.Dataset.Path)
	if err != nil {
		return nil, err
	}
	a.Store = store
	log.Info("dataset loaded", map[string]interface{}{"path": cfg.Dataset.Path, "deals": store.Len()})

	if err := a.connect(ctx, o.connectTries); err != nil {
		a.Close()
		return nil, err
	}

	chat, code, err := a.newModels(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	embedder, err := a.newEmbedder(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var index resolver.Index = resolver.NewMemoryIndex()
	if cfg.Resolver.Index == "elasticsearch" {
		index = resolver.NewElasticsearchIndex(a.es.Client, cfg.Resolver.ElasticsearchIndex)
	}

	a.Resolver, err = resolver.Build(ctx, store, embedder, index, resolver.Options{
		MinSimilarity: cfg.Resolver.MinSimilarity,
		WarnBelow:     cfg.Resolver.WarnBelow,
		Timeout:       config.GetDuration(cfg.Resolver.Timeout),
	}, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	backend, err := a.newMemoryBackend(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Memory = memory.New(backend, cfg.Memory.MaxTurns, log)

	a.buildHandlers(chat, code)
	return a, nil
}

func (a *App) buildHandlers(chat llm.ChatModel, code llm.CodeRunner) {
	cfg := a.Config
	llmTimeout := config.GetDuration(cfg.LLM.Timeout)

	routeCfg := routequestion.LoadConfig()
	routeCfg.Timeout = llmTimeout
	a.Router = routequestion.NewHandler(routeCfg, chat, a.Tools, a.Logger)

	fetchCfg := fetchentity.LoadConfig()
	fetchCfg.Timeout = config.GetDuration(cfg.Resolver.Timeout)
	a.Fetcher = fetchentity.NewHandler(fetchCfg, a.Resolver, a.Store, a.Logger)

	analyticsCfg := runanalyticalquery.LoadConfig()
	analyticsCfg.Timeout = config.GetDuration(cfg.Analytics.Timeout)
	analyticsCfg.CacheEnabled = cfg.Analytics.CacheEnabled
	analyticsCfg.CacheTTL = time.Duration(cfg.Analytics.CacheTTL) * time.Second
	var cache redis.Cmdable
	if cfg.Analytics.CacheEnabled {
		cache = a.redis.Client
	}
	a.Analytics = runanalyticalquery.NewHandler(analyticsCfg, code, a.Store, cache, a.Logger)

	synthCfg := llmsynthesis.LoadConfig()
	synthCfg.Timeout = llmTimeout
	a.Synthesizer = llmsynthesis.NewHandler(synthCfg, chat, a.Tools, a.Memory, a.Logger)

	chatCfg := answerquestion.LoadConfig()
	chatCfg.DefaultSession = cfg.Memory.Session
	a.Chat = answerquestion.NewHandler(chatCfg, answerquestion.Dependencies{
		Router:        a.Router,
		Fetcher:       a.Fetcher,
		Analytics:     a.Analytics,
		Synthesizer:   a.Synthesizer,
		Memory:        a.Memory,
		Tools:         a.Tools,
		Observability: a.Observability,
	}, a.Logger)
}

// connect opens only the backends the configuration refers to.
func (a *App) connect(ctx context.Context, tries int) error {
	cfg := a.Config

	needRedis := cfg.Memory.Backend == "redis" || cfg.Resolver.CacheEnabled || cfg.Analytics.CacheEnabled
	if needRedis {
		err := retryWithBackoff(func() error {
			var err error
			a.redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			if err := a.redis.Ping(ctx); err != nil {
				_ = a.redis.Close()
				return err
			}
			return nil
		}, tries, time.Second, a.Logger, "Redis connection")
		if err != nil {
			return err
		}
		a.closers = append(a.closers, a.redis.Close)
		a.checks["redis"] = a.redis.Ping
		a.Logger.Info("Redis connected successfully", nil)
	}

	if cfg.Memory.Backend == "postgres" {
		err := retryWithBackoff(func() error {
			var err error
			a.postgres, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := a.postgres.Ping(ctx); err != nil {
				_ = a.postgres.Close()
				return err
			}
			return nil
		}, tries, time.Second, a.Logger, "PostgreSQL connection")
		if err != nil {
			return err
		}
		a.closers = append(a.closers, a.postgres.Close)
		a.checks["postgres"] = a.postgres.Ping
		a.Logger.Info("PostgreSQL connected successfully", nil)
	}

	if cfg.Resolver.Index == "elasticsearch" {
		err := retryWithBackoff(func() error {
			var err error
			a.es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return a.es.Ping(ctx)
		}, tries, time.Second, a.Logger, "Elasticsearch connection")
		if err != nil {
			return err
		}
		a.checks["elasticsearch"] = a.es.Ping
		a.Logger.Info("Elasticsearch connected successfully", nil)
	}
	return nil
}

func (a *App) newModels(ctx context.Context) (llm.ChatModel, llm.CodeRunner, error) {
	switch a.Config.LLM.Provider {
	case "gemini":
		c, err := a.geminiClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	default:
		c, err := a.openaiClient()
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	}
}

func (a *App) newEmbedder(ctx context.Context) (llm.Embedder, error) {
	cfg := a.Config
	var embedder llm.Embedder
	switch cfg.Resolver.Embedder {
	case "hashing":
		embedder = resolver.NewHashingEmbedder(cfg.Resolver.HashingDimensions)
	case "gemini":
		c, err := a.geminiClient(ctx)
		if err != nil {
			return nil, err
		}
		embedder = c
	default:
		c, err := a.openaiClient()
		if err != nil {
			return nil, err
		}
		embedder = c
	}

	if cfg.Resolver.CacheEnabled {
		ttl := time.Duration(cfg.Resolver.CacheTTL) * time.Second
		embedder = resolver.NewCachedEmbedder(embedder, a.redis.Client, ttl, a.Logger)
	}
	return embedder, nil
}

func (a *App) openaiClient() (*openai.Client, error) {
	cfg := a.Config.LLM
	return openai.NewClient(openai.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		ChatModel:      cfg.ChatModel,
		CodeModel:      cfg.CodeModel,
		EmbeddingModel: cfg.EmbeddingModel,
		MaxRetries:     cfg.MaxRetries,
	}, a.Logger)
}

func (a *App) geminiClient(ctx context.Context) (*gemini.Client, error) {
	cfg := a.Config.LLM
	return gemini.NewClient(ctx, gemini.Config{
		APIKey:         cfg.APIKey,
		ChatModel:      cfg.ChatModel,
		CodeModel:      cfg.CodeModel,
		EmbeddingModel: cfg.EmbeddingModel,
		BaseURL:        cfg.BaseURL,
	}, a.Logger)
}

func (a *App) newMemoryBackend(ctx context.Context) (memory.Backend, error) {
	cfg := a.Config
	switch cfg.Memory.Backend {
	case "redis":
		return memory.NewRedisBackend(a.redis.Client), nil
	case "postgres":
		backend := memory.NewPostgresBackend(a.postgres.DB)
		if err := backend.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate chat memory: %w", err)
		}
		return backend, nil
	default:
		return memory.NewFileBackend(cfg.Memory.Path), nil
	}
}

// Checks returns the readiness probes of the connected backends.
func (a *App) Checks() map[string]func(context.Context) error {
	return a.checks
}

// StartWorkers registers a Zeebe job worker for every enabled pipeline step.
// It returns nil when Camunda is disabled.
func (a *App) StartWorkers(ctx context.Context) (*Workers, error) {
	cfg := a.Config
	if !cfg.Camunda.Enabled {
		return nil, nil
	}

	client, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	})
	if err != nil {
		return nil, err
	}
	a.checks["zeebe"] = client.HealthCheck

	handlers := []struct {
		taskType string
		handler  camunda.JobHandler
	}{
		{answerquestion.TaskType, a.Chat},
		{routequestion.TaskType, a.Router},
		{fetchentity.TaskType, a.Fetcher},
		{runanalyticalquery.TaskType, a.Analytics},
		{llmsynthesis.TaskType, a.Synthesizer},
	}

	w := &Workers{client: client}
	for _, h := range handlers {
		if !config.IsWorkerEnabled(cfg, h.taskType) {
			a.Logger.Info("worker disabled", map[string]interface{}{"taskType": h.taskType})
			continue
		}
		wcfg := config.GetWorkerConfig(cfg, h.taskType)
		w.workers = append(w.workers, camunda.NewWorker(
			client.GetClient(),
			h.taskType,
			wcfg.MaxJobsActive,
			config.GetDuration(wcfg.Timeout),
			h.handler,
			a.Logger,
		))
	}
	a.Logger.Info("workers registered", map[string]interface{}{"count": len(w.workers)})
	return w, nil
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", map[string]interface{}{"error": err.Error()})
		}
	}
	a.closers = nil
}

// Workers is the set of running Zeebe job workers.
type Workers struct {
	client  *camunda.Client
	workers []*camunda.CamundaWorker
}

func (w *Workers) Stop() error {
	if w == nil {
		return nil
	}
	for _, worker := range w.workers {
		worker.Stop()
	}
	return w.client.Close()
}

// retryWithBackoff attempts operation up to maxRetries times, doubling the delay.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
