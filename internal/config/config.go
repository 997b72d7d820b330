package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/davidbz/embercache/internal/backend/openai"
	"github.com/davidbz/embercache/internal/store/greptime"
)

// Config represents the service configuration.
type Config struct {
	Server   ServerConfig
	CORS     CORSConfig
	Cache    CacheConfig
	Selector SelectorConfig
	Backend  BackendConfig
	Store    StoreConfig
	OpenAI   openai.Config
	Redis    RedisConfig
	Greptime greptime.Config
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"30"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// CacheConfig controls the embedding cache. Capacity 0 keeps the cache
// unbounded (the default: entries live for the process lifetime); a
// positive capacity switches to an LRU.
type CacheConfig struct {
	Capacity int `env:"CACHE_CAPACITY" envDefault:"0"`
}

// SelectorConfig tunes the adaptive model selector.
type SelectorConfig struct {
	TokenThreshold int `env:"SELECTOR_TOKEN_THRESHOLD" envDefault:"10"`
}

// BackendConfig chooses the embedding backend profile.
type BackendConfig struct {
	// Provider is "local" or "openai".
	Provider string `env:"EMBEDDING_BACKEND" envDefault:"local"`
}

// StoreConfig chooses the vector record store.
type StoreConfig struct {
	// Driver is "memory", "redis", or "greptime".
	Driver string `env:"VECTOR_STORE" envDefault:"memory"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR"       envDefault:"localhost:6379"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB"         envDefault:"0"`
	IndexName string `env:"REDIS_INDEX_NAME" envDefault:"embedding_records"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	*ServerConfig
	*CORSConfig
	*CacheConfig
	*SelectorConfig
	*BackendConfig
	*StoreConfig
	OpenAI *openai.Config
	*RedisConfig
	Greptime *greptime.Config
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		dig.Out{},
		&cfg.Server,
		&cfg.CORS,
		&cfg.Cache,
		&cfg.Selector,
		&cfg.Backend,
		&cfg.Store,
		&cfg.OpenAI,
		&cfg.Redis,
		&cfg.Greptime,
	}
}
