package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/watchmen/internal/config"
	"github.com/hamed0406/watchmen/internal/domain"
	"github.com/hamed0406/watchmen/internal/notify"
	"github.com/hamed0406/watchmen/internal/probe"
	"github.com/hamed0406/watchmen/internal/repo"
	"github.com/hamed0406/watchmen/internal/repo/memory"
)

func TestOpenStores(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()

	st, err := openStores(ctx, config.Config{Store: "memory"}, log)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, st.outages)
	assert.Same(t, st.outages, st.results)
	st.close()

	st, err = openStores(ctx, config.Config{Store: "nop"}, log)
	require.NoError(t, err)
	assert.Equal(t, repo.Nop{}, st.outages)
	assert.NotNil(t, st.results)

	_, err = openStores(ctx, config.Config{Store: "postgres"}, log)
	assert.ErrorContains(t, err, "DATABASE_URL")

	_, err = openStores(ctx, config.Config{Store: "redis"}, log)
	assert.ErrorContains(t, err, "REDIS_ADDR")

	_, err = openStores(ctx, config.Config{Store: "sqlite"}, log)
	assert.ErrorContains(t, err, "unknown store")
}

func TestBuildServices(t *testing.T) {
	defs := []domain.Service{
		{ID: "web", Target: "https://example.com", Kind: "http"},
		{ID: "zone", Target: "example.com", Kind: "dns"},
		{ID: "both", Target: "https://example.com", Kind: "http+dns"},
	}
	svcs, err := buildServices(defs, config.Config{HTTPTimeout: time.Second, RetryAttempts: 1})
	require.NoError(t, err)
	require.Len(t, svcs, 3)
	assert.IsType(t, &probe.HTTPProber{}, svcs[0].Prober)
	assert.IsType(t, &probe.DNSProber{}, svcs[1].Prober)
	assert.IsType(t, &probe.All{}, svcs[2].Prober)
	assert.Equal(t, defs[0], svcs[0].Service)

	svcs, err = buildServices(defs[:1], config.Config{HTTPTimeout: time.Second, RetryAttempts: 3, RetryBackoff: time.Millisecond})
	require.NoError(t, err)
	assert.IsType(t, &probe.Retry{}, svcs[0].Prober)

	_, err = buildServices([]domain.Service{{ID: "ping", Target: "x", Kind: "icmp"}}, config.Config{})
	assert.ErrorContains(t, err, "unknown kind")
}

func TestBuildNotifier(t *testing.T) {
	n := buildNotifier(config.Config{}, zap.NewNop())
	require.IsType(t, notify.Multi{}, n)
	assert.Len(t, n.(notify.Multi), 1)

	n = buildNotifier(config.Config{SlackWebhook: "https://hooks.slack.com/services/x"}, zap.NewNop())
	assert.Len(t, n.(notify.Multi), 2)
}
