package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/embercache/internal/config"
)

func TestLoad(t *testing.T) {
	t.Run("should load config with defaults", func(t *testing.T) {
		// Clear environment
		os.Clearenv()

		cfg := config.Load()

		require.NotNil(t, cfg)

		// Verify defaults
		require.Equal(t, 8080, cfg.Server.Port)
		require.Equal(t, 30, cfg.Server.ReadTimeout)
		require.Equal(t, 30, cfg.Server.WriteTimeout)
		require.Equal(t, 0, cfg.Cache.Capacity)
		require.Equal(t, 10, cfg.Selector.TokenThreshold)
		require.Equal(t, "local", cfg.Backend.Provider)
		require.Equal(t, "memory", cfg.Store.Driver)
		require.Empty(t, cfg.OpenAI.APIKey)
		require.Equal(t, "localhost:6379", cfg.Redis.Addr)
		require.Equal(t, 0, cfg.Redis.DB)
		require.Equal(t, "embedding_records", cfg.Redis.IndexName)
		require.Equal(t, "localhost:4003", cfg.Greptime.Host)
		require.Equal(t, "public", cfg.Greptime.Database)
		require.Equal(t, "embedding_records", cfg.Greptime.Table)
	})

	t.Run("should load config from environment variables", func(t *testing.T) {
		// Set environment variables using t.Setenv for automatic cleanup
		t.Setenv("SERVER_PORT", "9000")
		t.Setenv("CACHE_CAPACITY", "2048")
		t.Setenv("SELECTOR_TOKEN_THRESHOLD", "20")
		t.Setenv("EMBEDDING_BACKEND", "openai")
		t.Setenv("VECTOR_STORE", "redis")
		t.Setenv("OPENAI_API_KEY", "sk-test-key")
		t.Setenv("OPENAI_BASE_URL", "https://test.openai.com")
		t.Setenv("REDIS_ADDR", "redis.internal:6380")
		t.Setenv("REDIS_DB", "3")
		t.Setenv("REDIS_INDEX_NAME", "records_v2")
		t.Setenv("GREPTIME_HOST", "greptime.internal:4003")
		t.Setenv("GREPTIME_DB", "vectors")

		cfg := config.Load()

		require.NotNil(t, cfg)

		// Verify loaded values
		require.Equal(t, 9000, cfg.Server.Port)
		require.Equal(t, 2048, cfg.Cache.Capacity)
		require.Equal(t, 20, cfg.Selector.TokenThreshold)
		require.Equal(t, "openai", cfg.Backend.Provider)
		require.Equal(t, "redis", cfg.Store.Driver)
		require.Equal(t, "sk-test-key", cfg.OpenAI.APIKey)
		require.Equal(t, "https://test.openai.com", cfg.OpenAI.BaseURL)
		require.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
		require.Equal(t, 3, cfg.Redis.DB)
		require.Equal(t, "records_v2", cfg.Redis.IndexName)
		require.Equal(t, "greptime.internal:4003", cfg.Greptime.Host)
		require.Equal(t, "vectors", cfg.Greptime.Database)
	})

	t.Run("should parse CORS list values", func(t *testing.T) {
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")

		cfg := config.Load()

		require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	})
}
