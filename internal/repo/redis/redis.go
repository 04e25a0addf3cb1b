// Package redis keeps open outages in Redis so several engine instances can
// share outage state.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis"
	"github.com/google/uuid"

	"github.com/hamed0406/watchmen/internal/domain"
	"github.com/hamed0406/watchmen/internal/repo"
)

const (
	defaultPrefix = "watchmen"
	closedKeep    = 100
	watchRetries  = 5
)

var _ repo.OutageStore = (*Store)(nil)
var _ repo.OutageLister = (*Store)(nil)

type Store struct {
	client *goredis.Client
	prefix string
}

type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

func New(opts Options) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return NewWithClient(client, opts.Prefix), nil
}

func NewWithClient(client *goredis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) openKey(id domain.ServiceID) string {
	return s.prefix + ":outage:open:" + string(id)
}

func (s *Store) closedKey(id domain.ServiceID) string {
	return s.prefix + ":outage:closed:" + string(id)
}

func (s *Store) ReadOpenOutage(ctx context.Context, id domain.ServiceID) (*domain.Outage, error) {
	b, err := s.client.WithContext(ctx).Get(s.openKey(id)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get open outage: %w", err)
	}
	var o domain.Outage
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, fmt.Errorf("decode open outage: %w", err)
	}
	return &o, nil
}

func (s *Store) OpenOutage(ctx context.Context, id domain.ServiceID, start time.Time, errText string) error {
	b, err := json.Marshal(domain.Outage{
		ID:        uuid.NewString(),
		ServiceID: id,
		Timestamp: start.UTC(),
		Error:     errText,
	})
	if err != nil {
		return err
	}
	created, err := s.client.WithContext(ctx).SetNX(s.openKey(id), b, 0).Result()
	if err != nil {
		return fmt.Errorf("open outage: %w", err)
	}
	if !created {
		return s.UpdateOutage(ctx, id, errText)
	}
	return nil
}

func (s *Store) UpdateOutage(ctx context.Context, id domain.ServiceID, errText string) error {
	err := s.watchOpen(ctx, id, func(tx *goredis.Tx, o *domain.Outage) error {
		o.Error = errText
		b, err := json.Marshal(o)
		if err != nil {
			return err
		}
		_, err = tx.Pipelined(func(pipe goredis.Pipeliner) error {
			pipe.Set(s.openKey(id), b, 0)
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("update outage: %w", err)
	}
	return nil
}

func (s *Store) CloseOutage(ctx context.Context, id domain.ServiceID, downtime time.Duration) (*domain.Outage, error) {
	var closed *domain.Outage
	err := s.watchOpen(ctx, id, func(tx *goredis.Tx, o *domain.Outage) error {
		closedAt := o.Timestamp.Add(downtime)
		o.Downtime = downtime
		o.ClosedAt = &closedAt
		b, err := json.Marshal(o)
		if err != nil {
			return err
		}
		_, err = tx.Pipelined(func(pipe goredis.Pipeliner) error {
			pipe.Del(s.openKey(id))
			pipe.LPush(s.closedKey(id), b)
			pipe.LTrim(s.closedKey(id), 0, closedKeep-1)
			return nil
		})
		if err == nil {
			closed = o
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("close outage: %w", err)
	}
	return closed, nil
}

// watchOpen runs fn against the open outage under WATCH on its key, so a
// concurrent writer aborts the transaction instead of being overwritten.
// Aborted transactions are retried up to watchRetries times.
func (s *Store) watchOpen(ctx context.Context, id domain.ServiceID, fn func(*goredis.Tx, *domain.Outage) error) error {
	key := s.openKey(id)
	client := s.client.WithContext(ctx)
	var err error
	for i := 0; i < watchRetries; i++ {
		err = client.Watch(func(tx *goredis.Tx) error {
			b, err := tx.Get(key).Bytes()
			if err == goredis.Nil {
				return repo.ErrNoOpenOutage
			}
			if err != nil {
				return err
			}
			var o domain.Outage
			if err := json.Unmarshal(b, &o); err != nil {
				return fmt.Errorf("decode open outage: %w", err)
			}
			return fn(tx, &o)
		}, key)
		if err != goredis.TxFailedErr {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

// ListOutages returns up to limit closed outages, newest first.
func (s *Store) ListOutages(ctx context.Context, id domain.ServiceID, limit int) ([]domain.Outage, error) {
	if limit <= 0 || limit > closedKeep {
		limit = closedKeep
	}
	raw, err := s.client.WithContext(ctx).LRange(s.closedKey(id), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list outages: %w", err)
	}
	out := make([]domain.Outage, 0, len(raw))
	for _, r := range raw {
		var o domain.Outage
		if err := json.Unmarshal([]byte(r), &o); err != nil {
			return nil, fmt.Errorf("decode outage: %w", err)
		}
		out = append(out, o)
	}
	return out, nil
}
