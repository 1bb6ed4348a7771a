package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "clipstack-dev", cfg.ProjectID)
	assert.Equal(t, "timestamp", cfg.StampField)
	assert.Equal(t, "users", cfg.UsersCollection)
	assert.Equal(t, 15*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "clipstack-media", cfg.StorageBucket)
	assert.False(t, cfg.StorageUseSSL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("FIREDATA_PROJECT_ID", "clipstack-prod")
	t.Setenv("FIREDATA_TOKEN_TTL_SECONDS", "60")
	t.Setenv("STORAGE_USE_SSL", "true")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg := Load()
	assert.Equal(t, "clipstack-prod", cfg.ProjectID)
	assert.Equal(t, time.Minute, cfg.TokenTTL)
	assert.True(t, cfg.StorageUseSSL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("FIREDATA_TOKEN_TTL_SECONDS", "soon")
	t.Setenv("STORAGE_USE_SSL", "maybe")

	cfg := Load()
	assert.Equal(t, 15*time.Minute, cfg.TokenTTL)
	assert.False(t, cfg.StorageUseSSL)
}
