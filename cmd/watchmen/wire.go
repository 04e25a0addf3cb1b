package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/watchmen/internal/config"
	"github.com/hamed0406/watchmen/internal/domain"
	"github.com/hamed0406/watchmen/internal/notify"
	"github.com/hamed0406/watchmen/internal/probe"
	"github.com/hamed0406/watchmen/internal/repo"
	"github.com/hamed0406/watchmen/internal/repo/memory"
	"github.com/hamed0406/watchmen/internal/repo/postgres"
	"github.com/hamed0406/watchmen/internal/repo/redis"
	"github.com/hamed0406/watchmen/internal/watchmen"
)

type stores struct {
	outages repo.OutageStore
	results repo.ResultStore
	close   func()
}

// openStores picks the outage and ping-history stores named by cfg.Store.
// Redis keeps outages only, so ping history stays in memory alongside it.
func openStores(ctx context.Context, cfg config.Config, log *zap.Logger) (*stores, error) {
	switch cfg.Store {
	case "memory":
		m := memory.New()
		return &stores{outages: m, results: m, close: func() {}}, nil
	case "nop":
		return &stores{outages: repo.Nop{}, results: memory.New(), close: func() {}}, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("store %q needs DATABASE_URL", cfg.Store)
		}
		pg, err := postgres.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return &stores{outages: pg, results: pg, close: pg.Close}, nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("store %q needs REDIS_ADDR", cfg.Store)
		}
		r, err := redis.New(redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			return nil, err
		}
		return &stores{outages: r, results: memory.New(), close: func() {
			if err := r.Close(); err != nil {
				log.Warn("redis_close_error", zap.Error(err))
			}
		}}, nil
	}
	return nil, fmt.Errorf("unknown store %q (want memory, postgres, redis or nop)", cfg.Store)
}

// buildServices attaches a prober to every service definition.
func buildServices(defs []domain.Service, cfg config.Config) ([]watchmen.Service, error) {
	h := probe.NewHTTPProber(cfg.HTTPTimeout)
	out := make([]watchmen.Service, 0, len(defs))
	for _, d := range defs {
		p := probe.ForKind(d.Kind, h)
		if p == nil {
			return nil, fmt.Errorf("service %q: unknown kind %q", d.ID, d.Kind)
		}
		if cfg.RetryAttempts > 1 {
			p = probe.NewRetry(p, cfg.RetryAttempts, cfg.RetryBackoff)
		}
		out = append(out, watchmen.Service{Service: d, Prober: p})
	}
	return out, nil
}

// buildNotifier always logs alerts and also posts them to Slack when a
// webhook is configured.
func buildNotifier(cfg config.Config, log *zap.Logger) notify.Notifier {
	n := notify.Multi{notify.Log{Logger: log}}
	if cfg.SlackWebhook != "" {
		n = append(n, notify.NewSlack(cfg.SlackWebhook))
	}
	return n
}
