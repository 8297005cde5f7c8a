package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by Load. A double
// underscore separates nesting levels: MEDIAHOOK_BATCH__MIN_SIZE sets
// batch.min_size.
const EnvPrefix = "MEDIAHOOK_"

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "MEDIAHOOK_CONFIG"

// DefaultConfigPaths are searched in order when ConfigPathEnvVar is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/mediahook/config.yaml",
}

// sliceConfigPaths are split on commas when they arrive as strings.
var sliceConfigPaths = []string{
	"dedup.volatile_keys",
	"enrich.providers",
}

// Load builds the configuration from defaults, the config file and the
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func envTransform(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	if key == "" || key == "CONFIG" {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		slog.Warn("config file not found", "path", path)
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}

		parts := make([]string, 0)
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

// Validate falls back or clamps out-of-range values with a warning and then
// checks struct constraints.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		slog.Warn("invalid port, using default", "port", c.Server.Port, "default", DefaultPort)
		c.Server.Port = DefaultPort
	}
	if c.Batch.Interval < MinBatchInterval {
		slog.Warn("batch interval too short, clamping", "interval", c.Batch.Interval, "min", MinBatchInterval)
		c.Batch.Interval = MinBatchInterval
	}
	if c.Dedup.TTL < MinDedupTTL {
		slog.Warn("dedup ttl too short, clamping", "ttl", c.Dedup.TTL, "min", MinDedupTTL)
		c.Dedup.TTL = MinDedupTTL
	}

	c.Delivery.Platform = strings.ToLower(strings.TrimSpace(c.Delivery.Platform))
	c.Enrich.Translate.Preferred = strings.ToLower(strings.TrimSpace(c.Enrich.Translate.Preferred))
	for i, p := range c.Enrich.Providers {
		c.Enrich.Providers[i] = strings.ToLower(strings.TrimSpace(p))
	}

	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Dedup.Backend == "redis" && c.Dedup.Redis.Addr == "" {
		return errors.New("dedup.redis.addr is required when dedup.backend is redis")
	}

	switch mc := c.Enrich.MetadataCache; {
	case mc.Backend == "redis" && mc.Redis.Addr == "":
		return errors.New("enrich.metadata_cache.redis.addr is required when the backend is redis")
	case mc.Backend == "postgres" && mc.Postgres.URL == "":
		return errors.New("enrich.metadata_cache.postgres.url is required when the backend is postgres")
	}
	return nil
}
