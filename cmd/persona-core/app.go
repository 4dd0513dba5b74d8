package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/persona-core/internal/adapters/driven/ai"
	"github.com/custodia-labs/persona-core/internal/adapters/driven/corpus"
	"github.com/custodia-labs/persona-core/internal/adapters/driven/pinecone"
	"github.com/custodia-labs/persona-core/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/persona-core/internal/adapters/driven/redis"
	"github.com/custodia-labs/persona-core/internal/adapters/driving/http"
	"github.com/custodia-labs/persona-core/internal/config"
	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driven"
	"github.com/custodia-labs/persona-core/internal/core/ports/driving"
	"github.com/custodia-labs/persona-core/internal/core/services"
	"github.com/custodia-labs/persona-core/internal/runtime"
)

// app holds the adapters and services shared by every command
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	index       *pinecone.VectorIndex
	db          *postgres.DB  // nil without DATABASE_URL
	redisClient *redis.Client // nil without REDIS_URL

	states driven.IndexStateStore // nil without DATABASE_URL
	lock   driven.DistributedLock // nil when the lock backend is none
	cache  driven.HitCache        // nil without Redis

	services *runtime.Services
	indexer  driving.IndexService
}

// newApp connects every configured backend. PostgreSQL and Redis are optional.
func newApp(ctx context.Context, cfg *config.Config, needsLLM bool) (*app, error) {
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}

	// ===== Pinecone =====
	pcConfig := pinecone.DefaultConfig(cfg.Pinecone.APIKey)
	pcConfig.ControlURL = cfg.Pinecone.ControlURL
	pcConfig.APIVersion = cfg.Pinecone.APIVersion
	pcConfig.Timeout = cfg.Pinecone.Timeout
	pcConfig.UpsertRate = cfg.Pinecone.UpsertRate
	pcConfig.UpsertBurst = cfg.Pinecone.UpsertBurst
	index, err := pinecone.NewVectorIndex(pcConfig)
	if err != nil {
		return nil, err
	}
	a.index = index
	if err := index.HealthCheck(ctx); err != nil {
		log.Printf("Warning: Pinecone health check failed: %v", err)
	}

	// ===== PostgreSQL (optional) =====
	if cfg.Database.URL != "" {
		log.Println("Connecting to PostgreSQL...")
		dbConfig := postgres.RegistryConfig(cfg.Database.URL)
		dbConfig.MaxOpenConns = cfg.Database.MaxOpenConns
		dbConfig.MaxIdleConns = cfg.Database.MaxIdleConns
		dbConfig.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
		dbConfig.StartupTimeout = cfg.Database.StartupTimeout
		db, err := postgres.Open(ctx, dbConfig)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.states = postgres.NewIndexStateStore(db)
		log.Println("PostgreSQL connected, index registry ready")
	}

	// ===== Redis (optional) =====
	if cfg.Redis.URL != "" {
		log.Println("Connecting to Redis...")
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse Redis URL: %w", err)
		}
		a.redisClient = redis.NewClient(opts)
		if err := a.redisClient.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to Redis: %w", err)
		}
		if cfg.Retrieval.CacheEnabled {
			a.cache = redisadapter.NewHitCache(a.redisClient)
		}
		log.Println("Redis connected")
	}

	// ===== Provisioning lock =====
	lockBackend := cfg.ResolveLockBackend()
	switch lockBackend {
	case config.LockBackendRedis:
		a.lock = redisadapter.NewLock(a.redisClient)
	case config.LockBackendPostgres:
		a.lock = postgres.NewAdvisoryLock(a.db)
	}

	cacheBackend := "none"
	if a.cache != nil {
		cacheBackend = "redis"
	}
	a.services = runtime.NewServices(domain.NewRuntimeConfig(lockBackend, cacheBackend))

	// ===== Chat model =====
	if needsLLM {
		model, err := ai.NewFactory().CreateChatModel(&cfg.LLM)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create chat model: %w", err)
		}
		if err := a.services.ValidateAndSetChatModel(ctx, model); err != nil {
			log.Printf("Warning: chat model ping failed: %v (chat requests may fail)", err)
			a.services.SetChatModel(model)
		}
	}

	a.indexer = services.NewIndexManager(services.IndexManagerConfig{
		Index:   a.index,
		Lock:    a.lock,
		States:  a.states,
		Logger:  logger,
		LockTTL: cfg.Lock.TTL,
	})

	log.Printf("Runtime config: lock_backend=%s, cache_backend=%s, llm=%t",
		lockBackend, cacheBackend, a.services.Config().LLMAvailable())
	return a, nil
}

// ensureIndex loads the corpus and provisions the index, then publishes its handle
func (a *app) ensureIndex(ctx context.Context) (*domain.ProvisionResult, error) {
	source, err := corpus.NewSource(a.cfg.Corpus.Path, a.cfg.Corpus.Table)
	if err != nil {
		return nil, err
	}

	log.Printf("Loading corpus from %s...", source.Describe())
	records, err := services.LoadCorpus(ctx, source, a.cfg.Corpus.CorpusOptions)
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded %d posts", len(records))

	result, err := a.indexer.EnsureIndex(ctx, records, a.cfg.Index)
	if err != nil {
		return nil, err
	}
	a.services.SetIndexHandle(result.Handle)

	if result.Created {
		log.Printf("Created index %s (%d records in %d batches)", result.Handle.Name, result.Uploaded, result.Batches)
	} else {
		log.Printf("Using existing index %s", result.Handle.Name)
	}
	return result, nil
}

// chatService wires the retrieval tool into the chat orchestrator
func (a *app) chatService() driving.ChatService {
	retriever := services.NewRetriever(services.RetrieverConfig{
		Index:     a.index,
		Cache:     a.cache,
		CacheTTL:  a.cfg.Retrieval.CacheTTL,
		TextField: a.cfg.Index.TextField,
		Logger:    a.logger,
	})
	tools := services.NewToolBridge(services.ToolBridgeConfig{
		Retriever: retriever,
		Services:  a.services,
		Namespace: a.cfg.Index.Namespace,
		Logger:    a.logger,
	})
	return services.NewChatOrchestrator(services.ChatOrchestratorConfig{
		Services:      a.services,
		Tools:         tools,
		Persona:       a.cfg.Persona,
		MaxToolRounds: a.cfg.Chat.MaxToolRounds,
		Logger:        a.logger,
	})
}

// dbPinger returns nil when PostgreSQL is not configured
func (a *app) dbPinger() http.Pinger {
	if a.db == nil {
		return nil
	}
	return a.db
}

// redisPinger returns nil when Redis is not configured
func (a *app) redisPinger() http.Pinger {
	if a.redisClient == nil {
		return nil
	}
	return http.PingFunc(func(ctx context.Context) error {
		return a.redisClient.Ping(ctx).Err()
	})
}

// Close releases every backend connection
func (a *app) Close() {
	if a.services != nil {
		_ = a.services.Close()
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
