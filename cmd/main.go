package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"github.com/davidbz/embercache/internal/backend"
	"github.com/davidbz/embercache/internal/backend/local"
	openaibackend "github.com/davidbz/embercache/internal/backend/openai"
	"github.com/davidbz/embercache/internal/config"
	"github.com/davidbz/embercache/internal/domain"
	"github.com/davidbz/embercache/internal/http"
	"github.com/davidbz/embercache/internal/http/middleware"
	"github.com/davidbz/embercache/internal/observability"
	"github.com/davidbz/embercache/internal/routing"
	"github.com/davidbz/embercache/internal/store/greptime"
	memorystore "github.com/davidbz/embercache/internal/store/memory"
	redisstore "github.com/davidbz/embercache/internal/store/redis"
)

func main() {
	if _, err := observability.InitLogger(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	container := buildContainer()

	err := container.Invoke(func(server *http.Server) {
		if err := server.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(func() *slog.Logger {
		return slog.Default()
	}); err != nil {
		log.Fatalf("Failed to provide event logger: %v", err)
	}
	if err := container.Provide(func(logger *slog.Logger) domain.EventPublisher {
		return observability.NewEventBus(logger)
	}); err != nil {
		log.Fatalf("Failed to provide event bus: %v", err)
	}

	// Model Registry
	if err := container.Provide(func(cfg *config.BackendConfig) (domain.ModelRegistry, error) {
		descriptors, err := defaultModelTable(cfg.Provider)
		if err != nil {
			return nil, err
		}
		return domain.NewStaticModelRegistry(descriptors...)
	}); err != nil {
		log.Fatalf("Failed to provide model registry: %v", err)
	}

	// Embedding Cache
	if err := container.Provide(func(
		registry domain.ModelRegistry,
		cfg *config.CacheConfig,
	) (domain.EmbeddingCache, error) {
		return domain.NewMemoryEmbeddingCache(registry, cfg.Capacity)
	}); err != nil {
		log.Fatalf("Failed to provide cache: %v", err)
	}

	// Backend Factories
	if err := container.Provide(func(openaiCfg *openaibackend.Config) (domain.BackendFactory, error) {
		registry := backend.NewRegistry()
		if err := registry.Register(local.NewFactory()); err != nil {
			return nil, err
		}

		// OpenAI is optional: without a key the local profile still works.
		if openaiCfg.APIKey != "" {
			factory, err := openaibackend.NewFactory(*openaiCfg)
			if err != nil {
				return nil, err
			}
			if err := registry.Register(factory); err != nil {
				return nil, err
			}
		}

		return registry, nil
	}); err != nil {
		log.Fatalf("Failed to provide backend factories: %v", err)
	}

	// Vector Store
	if err := container.Provide(func(
		storeCfg *config.StoreConfig,
		redisCfg *config.RedisConfig,
		greptimeCfg *greptime.Config,
	) (domain.VectorStore, error) {
		switch storeCfg.Driver {
		case "memory":
			return memorystore.NewStore(), nil
		case "redis":
			client := goredis.NewClient(&goredis.Options{
				Addr:     redisCfg.Addr,
				Password: redisCfg.Password,
				DB:       redisCfg.DB,
			})
			return redisstore.NewStore(client, redisCfg.IndexName)
		case "greptime":
			return greptime.Open(context.Background(), *greptimeCfg)
		default:
			return nil, fmt.Errorf("unknown vector store driver: %s", storeCfg.Driver)
		}
	}); err != nil {
		log.Fatalf("Failed to provide vector store: %v", err)
	}

	// Domain Services
	if err := container.Provide(func(
		registry domain.ModelRegistry,
		cache domain.EmbeddingCache,
		factory domain.BackendFactory,
	) domain.Embedder {
		return domain.NewEmbedderService(registry, cache, factory)
	}); err != nil {
		log.Fatalf("Failed to provide embedder: %v", err)
	}
	if err := container.Provide(func(
		registry domain.ModelRegistry,
		cfg *config.SelectorConfig,
	) domain.ModelSelector {
		return routing.NewAdaptiveSelector(registry, cfg.TokenThreshold)
	}); err != nil {
		log.Fatalf("Failed to provide selector: %v", err)
	}
	if err := container.Provide(domain.NewService); err != nil {
		log.Fatalf("Failed to provide retrieval service: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware: %v", err)
	}
	if err := container.Provide(http.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}

// defaultModelTable is the fixed model registry for each backend profile.
// The local profile encodes the dimension in the backend reference; the
// OpenAI dimensions are the published sizes for the v3 embedding models.
func defaultModelTable(provider string) ([]domain.ModelDescriptor, error) {
	switch provider {
	case "local":
		return []domain.ModelDescriptor{
			{Key: "fast", BackendReference: "local:384", Dimension: 384, Cost: domain.CostFast},
			{Key: "balanced", BackendReference: "local:512", Dimension: 512, Cost: domain.CostMedium},
			{Key: "quality", BackendReference: "local:768", Dimension: 768, Cost: domain.CostSlow},
		}, nil
	case "openai":
		return []domain.ModelDescriptor{
			{Key: "fast", BackendReference: "openai:text-embedding-3-small", Dimension: 1536, Cost: domain.CostFast},
			{Key: "quality", BackendReference: "openai:text-embedding-3-large", Dimension: 3072, Cost: domain.CostSlow},
		}, nil
	default:
		return nil, fmt.Errorf("unknown embedding backend: %s", provider)
	}
}
