package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/bissquit/mediahook/internal/config"
	"github.com/bissquit/mediahook/internal/enrich"
	"github.com/bissquit/mediahook/internal/enrich/bangumi"
	"github.com/bissquit/mediahook/internal/enrich/fanart"
	enrichpostgres "github.com/bissquit/mediahook/internal/enrich/postgres"
	enrichredis "github.com/bissquit/mediahook/internal/enrich/redis"
	"github.com/bissquit/mediahook/internal/enrich/tmdb"
	"github.com/bissquit/mediahook/internal/enrich/translate"
	"github.com/bissquit/mediahook/internal/enrich/tvdb"
	"github.com/bissquit/mediahook/internal/notifications"
	"github.com/bissquit/mediahook/internal/notifications/mattermost"
	"github.com/bissquit/mediahook/internal/notifications/onebot"
	"github.com/bissquit/mediahook/internal/notifications/telegram"
	"github.com/bissquit/mediahook/internal/notifications/webhook"
	"github.com/bissquit/mediahook/internal/pkg/postgres"
)

const (
	platformOneBot     = "aiocqhttp"
	platformTelegram   = "telegram"
	platformMattermost = "mattermost"
)

func isOneBotPlatform(platform string) bool {
	return platform == platformOneBot || slices.Contains(onebot.Aliases, platform)
}

// buildRegistry creates the adapter for the configured platform. Platforms
// without a dedicated adapter fall through to the generic one, which posts
// to delivery.webhook.url when set and logs otherwise.
func buildRegistry(cfg config.DeliveryConfig) (*notifications.Registry, error) {
	var fallback notifications.Transport
	var outbound *webhook.Sender
	if cfg.Webhook.URL != "" {
		sender, err := webhook.NewSender(webhook.Config{
			URL:     cfg.Webhook.URL,
			Headers: cfg.Webhook.Headers,
			Timeout: cfg.Webhook.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create webhook sender: %w", err)
		}
		fallback = sender
		outbound = sender
	}

	registry := notifications.NewRegistry(fallback)
	if outbound != nil {
		registry.Register(outbound)
	}

	switch {
	case isOneBotPlatform(cfg.Platform):
		adapter, err := onebot.New(onebot.Config{
			APIURL:      cfg.OneBot.APIURL,
			AccessToken: cfg.OneBot.AccessToken,
			GroupID:     cfg.Address,
			SenderName:  cfg.SenderName,
			SenderID:    cfg.SenderID,
			Timeout:     cfg.OneBot.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create onebot adapter: %w", err)
		}
		registry.Register(adapter, onebot.Aliases...)

	case cfg.Platform == platformTelegram:
		sender, err := telegram.NewSender(telegram.Config{
			BotToken:  cfg.Telegram.BotToken,
			ChatID:    cfg.Address,
			APIURL:    cfg.Telegram.APIURL,
			RateLimit: cfg.Telegram.RateLimit,
			Timeout:   cfg.Telegram.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create telegram sender: %w", err)
		}
		registry.Register(sender)

	case cfg.Platform == platformMattermost:
		sender, err := mattermost.NewSender(mattermost.Config{
			WebhookURL: cfg.Address,
			Username:   cfg.Mattermost.Username,
			IconURL:    cfg.Mattermost.IconURL,
			Timeout:    cfg.Mattermost.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create mattermost sender: %w", err)
		}
		registry.Register(sender)

	default:
		if outbound == nil {
			slog.Warn("no adapter for platform, notifications will only be logged", "platform", cfg.Platform)
		}
	}

	return registry, nil
}

// buildEnricher returns nil when enrichment is disabled or no provider is
// usable with the given credentials. cache and translator may be nil.
func buildEnricher(cfg config.EnrichConfig, cache enrich.Cache, translator enrich.Translator) (notifications.Enricher, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	guardCfg := enrich.DefaultGuardConfig()
	if cfg.CacheTTL > 0 {
		guardCfg.CacheTTL = cfg.CacheTTL
	}
	guardCfg.CallTimeout = cfg.Timeout

	var series *tvdb.Provider
	if cfg.TVDB.APIKey != "" {
		p, err := tvdb.New(tvdb.Config{
			APIKey:   cfg.TVDB.APIKey,
			BaseURL:  cfg.TVDB.BaseURL,
			Language: cfg.TVDB.Language,
		})
		if err != nil {
			return nil, fmt.Errorf("create tvdb provider: %w", err)
		}
		series = p
	}

	var providers []enrich.Provider
	for _, id := range cfg.Providers {
		switch id {
		case "tmdb":
			if cfg.TMDB.APIKey == "" {
				slog.Info("enrichment provider skipped, no api key", "provider", id)
				continue
			}
			p, err := tmdb.New(tmdb.Config{
				APIKey:       cfg.TMDB.APIKey,
				BaseURL:      cfg.TMDB.BaseURL,
				ImageBaseURL: cfg.TMDB.ImageBaseURL,
				Language:     cfg.TMDB.Language,
			})
			if err != nil {
				return nil, fmt.Errorf("create tmdb provider: %w", err)
			}
			providers = append(providers, enrich.Guard(p, guardCfg))

		case "tvdb":
			if series == nil {
				slog.Info("enrichment provider skipped, no api key", "provider", id)
				continue
			}
			providers = append(providers, enrich.Guard(series, guardCfg))

		case "fanart":
			if cfg.Fanart.APIKey == "" || series == nil {
				slog.Info("enrichment provider skipped, needs fanart and tvdb api keys", "provider", id)
				continue
			}
			p, err := fanart.New(fanart.Config{
				APIKey:  cfg.Fanart.APIKey,
				BaseURL: cfg.Fanart.BaseURL,
			}, series)
			if err != nil {
				return nil, fmt.Errorf("create fanart provider: %w", err)
			}
			providers = append(providers, enrich.Guard(p, guardCfg))

		case "bangumi":
			if !cfg.Bangumi.Enabled {
				continue
			}
			providers = append(providers, enrich.Guard(bangumi.New(bangumi.Config{
				BaseURL:   cfg.Bangumi.BaseURL,
				UserAgent: cfg.Bangumi.UserAgent,
			}), guardCfg))
		}
	}

	if len(providers) == 0 {
		slog.Warn("enrichment enabled but no provider is configured")
		return nil, nil
	}

	pipeline := enrich.NewPipeline(cfg.Timeout, providers...)
	if cache != nil {
		pipeline.WithCache(cache)
	}
	if translator != nil {
		pipeline.WithTranslator(translator)
	}
	slog.Info("enrichment configured",
		"providers", pipeline.Providers(),
		"metadata_cache", cfg.MetadataCache.Backend,
		"translate", translator != nil,
	)
	return pipeline, nil
}

// buildTranslator returns nil unless translation is enabled and messages
// are rendered in Chinese. Services without credentials are left out.
func buildTranslator(cfg config.TranslateConfig, language string) (enrich.Translator, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if language != "zh" {
		slog.Info("overview translation skipped, display language is not zh", "language", language)
		return nil, nil
	}

	var services []translate.Service
	if cfg.Google.Enabled {
		services = append(services, translate.NewGoogle(translate.GoogleConfig{BaseURL: cfg.Google.BaseURL}))
	}
	if cfg.Tencent.SecretID != "" && cfg.Tencent.SecretKey != "" {
		s, err := translate.NewTencent(translate.TencentConfig{
			SecretID:  cfg.Tencent.SecretID,
			SecretKey: cfg.Tencent.SecretKey,
			Region:    cfg.Tencent.Region,
			BaseURL:   cfg.Tencent.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("create tencent translator: %w", err)
		}
		services = append(services, s)
	}
	if cfg.Baidu.AppID != "" && cfg.Baidu.SecretKey != "" {
		s, err := translate.NewBaidu(translate.BaiduConfig{
			AppID:     cfg.Baidu.AppID,
			SecretKey: cfg.Baidu.SecretKey,
			BaseURL:   cfg.Baidu.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("create baidu translator: %w", err)
		}
		services = append(services, s)
	}

	if len(services) == 0 {
		slog.Warn("overview translation enabled but no service is configured")
		return nil, nil
	}

	chain := translate.NewChain(cfg.Preferred, services...)
	slog.Info("overview translation configured", "services", chain.Services())
	return chain, nil
}

// buildMetadataCache opens the configured cache backend and removes
// expired entries. The returned close function is never nil.
func buildMetadataCache(ctx context.Context, cfg config.MetadataCacheConfig) (enrich.Cache, func(), error) {
	noop := func() {}

	var (
		cache   enrich.Cache
		closeFn = noop
	)

	switch cfg.Backend {
	case "memory":
		cache = enrich.NewMemoryCache(cfg.TTL)

	case "redis":
		c, err := enrichredis.New(ctx, enrichredis.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.TTL,
		})
		if err != nil {
			return nil, noop, err
		}
		cache = c
		closeFn = func() {
			if err := c.Close(); err != nil {
				slog.Warn("failed to close metadata cache redis client", "error", err)
			}
		}

	case "postgres":
		if err := enrichpostgres.Migrate(cfg.Postgres.URL); err != nil {
			return nil, noop, fmt.Errorf("migrate metadata cache: %w", err)
		}
		pool, err := postgres.Connect(ctx, postgres.Config{
			URL:             cfg.Postgres.URL,
			MaxConns:        cfg.Postgres.MaxConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
			ConnectAttempts: cfg.Postgres.ConnectAttempts,
		})
		if err != nil {
			return nil, noop, err
		}
		c := enrichpostgres.NewCache(pool, cfg.TTL)
		cache = c
		closeFn = c.Close

	default:
		return nil, noop, nil
	}

	removed, err := cache.Cleanup(ctx)
	if err != nil {
		slog.Warn("metadata cache cleanup failed", "backend", cfg.Backend, "error", err)
	} else if removed > 0 {
		slog.Info("removed expired metadata cache entries", "backend", cfg.Backend, "count", removed)
	}

	return cache, closeFn, nil
}
