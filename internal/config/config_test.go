package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("DOMAIN", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "http://localhost:4000", cfg.Domain)
	assert.Equal(t, StoreMemory, cfg.OrderStore)
	assert.Equal(t, LockerLocal, cfg.Locker)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, 900, cfg.OpenAI.MaxTokens)
	assert.InDelta(t, 0.2, cfg.OpenAI.Temperature, 1e-9)
	assert.Equal(t, 60*time.Second, cfg.GenerationTimeout)
	assert.False(t, cfg.EventsEnabled)
}

func TestLoadConfig_TrimsDomain(t *testing.T) {
	t.Setenv("DOMAIN", "https://shop.example/")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example", cfg.Domain)
}

func TestLoadConfig_RejectsUnknownStore(t *testing.T) {
	t.Setenv("ORDER_STORE", "mongo")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_RejectsTemperatureOutOfRange(t *testing.T) {
	t.Setenv("OPENAI_TEMPERATURE", "1.5")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestConfig_ConnectionStrings(t *testing.T) {
	t.Setenv("ORDERS_DB_HOST", "db")
	t.Setenv("KAFKA_BROKER_URL", "k1:9092,k2:9092")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres://postgres:postgres@db:5432/storefront_db?sslmode=disable", cfg.GetDBMigrationConnectionString())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.GetKafkaBrokers())
}

func TestLoadConfig_LockTTLMustCoverPipeline(t *testing.T) {
	t.Setenv("LOCKER", "redis")
	t.Setenv("GATEWAY_TIMEOUT", "15s")
	t.Setenv("GENERATION_TIMEOUT", "60s")
	t.Setenv("PACKAGING_TIMEOUT", "20s")

	t.Run("too short", func(t *testing.T) {
		t.Setenv("LOCK_TTL", "90s")

		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "LOCK_TTL")
	})

	t.Run("equal to the pipeline budget", func(t *testing.T) {
		t.Setenv("LOCK_TTL", "95s")

		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("default", func(t *testing.T) {
		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, 2*time.Minute, cfg.LockTTL)
		assert.Less(t, cfg.PipelineBudget(), cfg.LockTTL)
	})
}

func TestLoadConfig_LocalLockerIgnoresTTL(t *testing.T) {
	t.Setenv("LOCKER", "local")
	t.Setenv("LOCK_TTL", "1s")

	_, err := LoadConfig()
	assert.NoError(t, err)
}
