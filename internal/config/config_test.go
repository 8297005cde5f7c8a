package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60071, cfg.Server.Port)
	assert.Equal(t, "/media-webhook", cfg.Webhook.Path)
	assert.Equal(t, "aiocqhttp", cfg.Delivery.Platform)
	assert.Equal(t, 3, cfg.Batch.MinSize)
	assert.Equal(t, 300*time.Second, cfg.Batch.Interval)
	assert.True(t, cfg.Batch.FlushOnShutdown)
	assert.Equal(t, "memory", cfg.Dedup.Backend)
	assert.Equal(t, 300*time.Second, cfg.Dedup.TTL)
	assert.Equal(t, 3, cfg.Classify.MarkerThreshold)
	assert.Equal(t, []string{"tmdb", "bangumi", "tvdb", "fanart"}, cfg.Enrich.Providers)
	assert.Equal(t, "zh", cfg.Display.Language)
	assert.Equal(t, 200, cfg.Display.SynopsisMaxRunes)
	assert.Equal(t, "memory", cfg.Enrich.MetadataCache.Backend)
	assert.Equal(t, 7*24*time.Hour, cfg.Enrich.MetadataCache.TTL)
	assert.False(t, cfg.Enrich.Translate.Enabled)
	assert.Equal(t, "google", cfg.Enrich.Translate.Preferred)
}

func TestLoad_FileThenEnv(t *testing.T) {
	writeConfigFile(t, `
server:
  port: 8080
delivery:
  platform: Telegram
  address: "-100123"
  telegram:
    bot_token: file-token
batch:
  min_size: 5
  interval: 60s
enrich:
  providers: [bangumi]
`)
	t.Setenv("MEDIAHOOK_DELIVERY__TELEGRAM__BOT_TOKEN", "env-token")
	t.Setenv("MEDIAHOOK_BATCH__FLUSH_ON_SHUTDOWN", "false")
	t.Setenv("MEDIAHOOK_DEDUP__VOLATILE_KEYS", "session_id, request_id")
	t.Setenv("MEDIAHOOK_ENRICH__METADATA_CACHE__BACKEND", "postgres")
	t.Setenv("MEDIAHOOK_ENRICH__METADATA_CACHE__POSTGRES__URL", "postgres://mediahook@db/mediahook")
	t.Setenv("MEDIAHOOK_ENRICH__TRANSLATE__PREFERRED", "Baidu")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "telegram", cfg.Delivery.Platform)
	assert.Equal(t, "-100123", cfg.Delivery.Address)
	assert.Equal(t, "env-token", cfg.Delivery.Telegram.BotToken)
	assert.Equal(t, 5, cfg.Batch.MinSize)
	assert.Equal(t, time.Minute, cfg.Batch.Interval)
	assert.False(t, cfg.Batch.FlushOnShutdown)
	assert.Equal(t, []string{"bangumi"}, cfg.Enrich.Providers)
	assert.Equal(t, []string{"session_id", "request_id"}, cfg.Dedup.VolatileKeys)
	assert.Equal(t, "postgres", cfg.Enrich.MetadataCache.Backend)
	assert.Equal(t, "postgres://mediahook@db/mediahook", cfg.Enrich.MetadataCache.Postgres.URL)
	assert.Equal(t, "baidu", cfg.Enrich.Translate.Preferred)
}

func TestValidate_Clamps(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		check  func(*testing.T, *Config)
	}{
		{
			name:   "port out of range falls back to default",
			mutate: func(c *Config) { c.Server.Port = 70000 },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, DefaultPort, c.Server.Port) },
		},
		{
			name:   "zero port falls back to default",
			mutate: func(c *Config) { c.Server.Port = 0 },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, DefaultPort, c.Server.Port) },
		},
		{
			name:   "batch interval clamped to minimum",
			mutate: func(c *Config) { c.Batch.Interval = 2 * time.Second },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, MinBatchInterval, c.Batch.Interval) },
		},
		{
			name:   "dedup ttl clamped to minimum",
			mutate: func(c *Config) { c.Dedup.TTL = 5 * time.Second },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, MinDedupTTL, c.Dedup.TTL) },
		},
		{
			name:   "valid values untouched",
			mutate: func(c *Config) { c.Batch.Interval = 30 * time.Second },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, 30*time.Second, c.Batch.Interval) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			require.NoError(t, cfg.Validate())
			tt.check(t, cfg)
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"unknown dedup backend", func(c *Config) { c.Dedup.Backend = "etcd" }},
		{"redis without addr", func(c *Config) { c.Dedup.Backend = "redis" }},
		{"unknown provider", func(c *Config) { c.Enrich.Providers = []string{"tmdb", "imdb"} }},
		{"relative webhook path", func(c *Config) { c.Webhook.Path = "hook" }},
		{"empty platform", func(c *Config) { c.Delivery.Platform = " " }},
		{"zero min batch", func(c *Config) { c.Batch.MinSize = 0 }},
		{"unknown metadata cache backend", func(c *Config) { c.Enrich.MetadataCache.Backend = "sqlite" }},
		{"metadata cache redis without addr", func(c *Config) { c.Enrich.MetadataCache.Backend = "redis" }},
		{"metadata cache postgres without url", func(c *Config) { c.Enrich.MetadataCache.Backend = "postgres" }},
		{"unknown translator", func(c *Config) { c.Enrich.Translate.Preferred = "deepl" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "batch.min_size", envTransform("MEDIAHOOK_BATCH__MIN_SIZE"))
	assert.Equal(t, "delivery.onebot.access_token", envTransform("MEDIAHOOK_DELIVERY__ONEBOT__ACCESS_TOKEN"))
	assert.Empty(t, envTransform("MEDIAHOOK_CONFIG"))
}
