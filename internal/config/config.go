// Package config loads mediahook configuration from defaults, an optional
// YAML file and MEDIAHOOK_* environment variables.
package config

import (
	"time"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Webhook  WebhookConfig  `koanf:"webhook"`
	Delivery DeliveryConfig `koanf:"delivery"`
	Batch    BatchConfig    `koanf:"batch"`
	Dedup    DedupConfig    `koanf:"dedup"`
	Classify ClassifyConfig `koanf:"classify"`
	Enrich   EnrichConfig   `koanf:"enrich"`
	Display  DisplayConfig  `koanf:"display"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	MetricsPort       int           `koanf:"metrics_port" validate:"min=1,max=65535"`
	ReadTimeout       time.Duration `koanf:"read_timeout" validate:"gt=0"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gt=0"`
	WriteTimeout      time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout       time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// WebhookConfig holds inbound webhook settings.
type WebhookConfig struct {
	Path         string `koanf:"path" validate:"startswith=/"`
	MaxBodyBytes int64  `koanf:"max_body_bytes" validate:"gt=0"`
}

// DeliveryConfig selects and configures the destination platform.
type DeliveryConfig struct {
	Platform        string           `koanf:"platform" validate:"required"`
	Address         string           `koanf:"address"`
	ForceIndividual bool             `koanf:"force_individual"`
	SenderName      string           `koanf:"sender_name"`
	SenderID        string           `koanf:"sender_id"`
	OneBot          OneBotConfig     `koanf:"onebot"`
	Telegram        TelegramConfig   `koanf:"telegram"`
	Mattermost      MattermostConfig `koanf:"mattermost"`
	Webhook         OutboundConfig   `koanf:"webhook"`
}

// OneBotConfig configures the OneBot v11 HTTP adapter.
type OneBotConfig struct {
	APIURL      string        `koanf:"api_url" validate:"omitempty,url"`
	AccessToken string        `koanf:"access_token"`
	Timeout     time.Duration `koanf:"timeout"`
}

// TelegramConfig configures the Telegram adapter.
type TelegramConfig struct {
	BotToken  string        `koanf:"bot_token"`
	APIURL    string        `koanf:"api_url"`
	RateLimit float64       `koanf:"rate_limit" validate:"gte=0"`
	Timeout   time.Duration `koanf:"timeout"`
}

// MattermostConfig configures the Mattermost adapter. The webhook URL comes
// from DeliveryConfig.Address.
type MattermostConfig struct {
	Username string        `koanf:"username"`
	IconURL  string        `koanf:"icon_url" validate:"omitempty,url"`
	Timeout  time.Duration `koanf:"timeout"`
}

// OutboundConfig configures the generic JSON webhook used for unknown
// platforms.
type OutboundConfig struct {
	URL     string            `koanf:"url" validate:"omitempty,url"`
	Headers map[string]string `koanf:"headers"`
	Timeout time.Duration     `koanf:"timeout"`
}

// BatchConfig controls the batch scheduler.
type BatchConfig struct {
	MinSize         int           `koanf:"min_size" validate:"gte=1"`
	Interval        time.Duration `koanf:"interval"`
	FlushOnShutdown bool          `koanf:"flush_on_shutdown"`
}

// DedupConfig controls the duplicate cache.
type DedupConfig struct {
	Backend       string        `koanf:"backend" validate:"oneof=memory redis"`
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gt=0"`
	VolatileKeys  []string      `koanf:"volatile_keys"`
	Redis         RedisConfig   `koanf:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db" validate:"gte=0"`
	KeyPrefix string `koanf:"key_prefix"`
}

// ClassifyConfig tunes source detection.
type ClassifyConfig struct {
	MarkerThreshold   int `koanf:"marker_threshold" validate:"gte=1"`
	TemplateThreshold int `koanf:"template_threshold" validate:"gte=1"`
}

// EnrichConfig configures metadata enrichment.
type EnrichConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
	Providers []string      `koanf:"providers" validate:"dive,oneof=tmdb tvdb fanart bangumi"`
	TMDB      TMDBConfig    `koanf:"tmdb"`
	TVDB      TVDBConfig    `koanf:"tvdb"`
	Fanart    FanartConfig  `koanf:"fanart"`
	Bangumi   BangumiConfig `koanf:"bangumi"`

	MetadataCache MetadataCacheConfig `koanf:"metadata_cache"`
	Translate     TranslateConfig     `koanf:"translate"`
}

// MetadataCacheConfig configures the cache of merged enrichment results
// that is consulted before any provider. Expired entries are removed at
// startup.
type MetadataCacheConfig struct {
	Backend  string         `koanf:"backend" validate:"oneof=none memory redis postgres"`
	TTL      time.Duration  `koanf:"ttl" validate:"gte=0"`
	Redis    RedisConfig    `koanf:"redis"`
	Postgres PostgresConfig `koanf:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int32         `koanf:"max_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectAttempts int           `koanf:"connect_attempts" validate:"gte=0"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
}

// TranslateConfig configures translation of non-Chinese overviews. It only
// takes effect when display.language is zh.
type TranslateConfig struct {
	Enabled   bool                   `koanf:"enabled"`
	Preferred string                 `koanf:"preferred" validate:"oneof=google tencent baidu"`
	Google    GoogleTranslateConfig  `koanf:"google"`
	Tencent   TencentTranslateConfig `koanf:"tencent"`
	Baidu     BaiduTranslateConfig   `koanf:"baidu"`
}

// GoogleTranslateConfig configures the keyless Google endpoint.
type GoogleTranslateConfig struct {
	Enabled bool   `koanf:"enabled"`
	BaseURL string `koanf:"base_url"`
}

// TencentTranslateConfig configures Tencent Cloud TMT.
type TencentTranslateConfig struct {
	SecretID  string `koanf:"secret_id"`
	SecretKey string `koanf:"secret_key"`
	Region    string `koanf:"region"`
	BaseURL   string `koanf:"base_url"`
}

// BaiduTranslateConfig configures the Baidu Fanyi API.
type BaiduTranslateConfig struct {
	AppID     string `koanf:"app_id"`
	SecretKey string `koanf:"secret_key"`
	BaseURL   string `koanf:"base_url"`
}

// TMDBConfig configures The Movie Database provider.
type TMDBConfig struct {
	APIKey       string `koanf:"api_key"`
	BaseURL      string `koanf:"base_url"`
	ImageBaseURL string `koanf:"image_base_url"`
	Language     string `koanf:"language"`
}

// TVDBConfig configures TheTVDB provider.
type TVDBConfig struct {
	APIKey   string `koanf:"api_key"`
	BaseURL  string `koanf:"base_url"`
	Language string `koanf:"language"`
}

// FanartConfig configures the fanart.tv provider.
type FanartConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

// BangumiConfig configures the bgm.tv provider.
type BangumiConfig struct {
	Enabled   bool   `koanf:"enabled"`
	BaseURL   string `koanf:"base_url"`
	UserAgent string `koanf:"user_agent"`
}

// DisplayConfig controls message rendering.
type DisplayConfig struct {
	ShowPlatformPrefix bool   `koanf:"show_platform_prefix"`
	ShowSourceLabel    bool   `koanf:"show_source_label"`
	Language           string `koanf:"language"`
	SynopsisMaxRunes   int    `koanf:"synopsis_max_runes" validate:"gte=0"`
}

// Default values that the validation step falls back to or clamps against.
const (
	DefaultPort        = 60071
	MinBatchInterval   = 10 * time.Second
	MinDedupTTL        = 60 * time.Second
	defaultBangumiUA   = "mediahook/1.0 (https://github.com/bissquit/mediahook)"
	defaultTMDBLang    = "zh-CN"
	defaultDisplayLang = "zh"
)

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              DefaultPort,
			MetricsPort:       9090,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Webhook: WebhookConfig{
			Path:         "/media-webhook",
			MaxBodyBytes: 1 << 20,
		},
		Delivery: DeliveryConfig{
			Platform:   "aiocqhttp",
			SenderName: "媒体通知",
			SenderID:   "2659908767",
			OneBot:     OneBotConfig{Timeout: 10 * time.Second},
			Telegram:   TelegramConfig{RateLimit: 1, Timeout: 10 * time.Second},
			Mattermost: MattermostConfig{Timeout: 10 * time.Second},
			Webhook:    OutboundConfig{Timeout: 10 * time.Second},
		},
		Batch: BatchConfig{
			MinSize:         3,
			Interval:        300 * time.Second,
			FlushOnShutdown: true,
		},
		Dedup: DedupConfig{
			Backend:       "memory",
			TTL:           300 * time.Second,
			SweepInterval: time.Minute,
			VolatileKeys:  []string{},
		},
		Classify: ClassifyConfig{
			MarkerThreshold:   3,
			TemplateThreshold: 3,
		},
		Enrich: EnrichConfig{
			Enabled:   true,
			Timeout:   10 * time.Second,
			CacheTTL:  time.Hour,
			Providers: []string{"tmdb", "bangumi", "tvdb", "fanart"},
			TMDB:      TMDBConfig{Language: defaultTMDBLang},
			TVDB:      TVDBConfig{Language: "zho"},
			Bangumi:   BangumiConfig{Enabled: true, UserAgent: defaultBangumiUA},
			MetadataCache: MetadataCacheConfig{
				Backend: "memory",
				TTL:     7 * 24 * time.Hour,
				Postgres: PostgresConfig{
					MaxConns:        4,
					ConnMaxLifetime: time.Hour,
					ConnectAttempts: 3,
					ConnectTimeout:  30 * time.Second,
				},
			},
			Translate: TranslateConfig{
				Preferred: "google",
				Google:    GoogleTranslateConfig{Enabled: true},
			},
		},
		Display: DisplayConfig{
			ShowPlatformPrefix: true,
			ShowSourceLabel:    true,
			Language:           defaultDisplayLang,
			SynopsisMaxRunes:   200,
		},
	}
}
