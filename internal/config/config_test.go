package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PENDING_ACTION_TTL", "5m")
	t.Setenv("WEBHOOK_VALIDATE_SIGNATURE", "true")
	t.Setenv("REDIS_DB", "3")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.PendingActionTTL)
	assert.True(t, cfg.WebhookValidateSignature)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "K", cfg.CurrencySymbol)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("LLM_MAX_TOKENS", "lots")
	t.Setenv("LLM_TIMEOUT", "soon")
	t.Setenv("STORAGE_USE_PATH_STYLE", "maybe")

	cfg := LoadConfig()

	assert.Equal(t, 1024, cfg.LLMMaxTokens)
	assert.Equal(t, 20*time.Second, cfg.LLMTimeout)
	assert.True(t, cfg.Storage.UsePathStyle)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DBDriver:         "sqlite",
			DBPath:           "test.db",
			Storage:          StorageConfig{Driver: "memory"},
			PendingActionTTL: time.Minute,
		}
	}

	t.Run("valid sqlite and memory storage", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("unknown db driver", func(t *testing.T) {
		cfg := valid()
		cfg.DBDriver = "mysql"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported DB_DRIVER")
	})

	t.Run("s3 without credentials", func(t *testing.T) {
		cfg := valid()
		cfg.Storage = StorageConfig{Driver: "s3", Bucket: "docs"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "STORAGE_ACCESS_KEY")
	})

	t.Run("signature validation needs token and url", func(t *testing.T) {
		cfg := valid()
		cfg.WebhookValidateSignature = true
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TWILIO_AUTH_TOKEN")
	})

	t.Run("reports every problem", func(t *testing.T) {
		cfg := valid()
		cfg.DBDriver = ""
		cfg.PendingActionTTL = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported DB_DRIVER")
		assert.Contains(t, err.Error(), "PENDING_ACTION_TTL")
	})
}

func TestConfig_PostgresDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "n", DBPort: "5432", DBSSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=n port=5432 sslmode=disable", cfg.PostgresDSN())
}
