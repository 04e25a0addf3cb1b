package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/watchmen/internal/domain"
	"github.com/hamed0406/watchmen/internal/repo"
)

type Store struct {
	mu      sync.RWMutex
	open    map[domain.ServiceID]*domain.Outage
	closed  map[domain.ServiceID][]domain.Outage
	results []*domain.CheckResult
}

func New() *Store {
	return &Store{
		open:    make(map[domain.ServiceID]*domain.Outage),
		closed:  make(map[domain.ServiceID][]domain.Outage),
		results: make([]*domain.CheckResult, 0, 128),
	}
}

// ---- OutageStore ----

func (m *Store) ReadOpenOutage(ctx context.Context, id domain.ServiceID) (*domain.Outage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o := m.open[id]
	if o == nil {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *Store) OpenOutage(ctx context.Context, id domain.ServiceID, start time.Time, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o := m.open[id]; o != nil {
		o.Error = errText
		return nil
	}
	m.open[id] = &domain.Outage{
		ID:        uuid.NewString(),
		ServiceID: id,
		Timestamp: start,
		Error:     errText,
	}
	return nil
}

func (m *Store) UpdateOutage(ctx context.Context, id domain.ServiceID, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.open[id]
	if o == nil {
		return repo.ErrNoOpenOutage
	}
	o.Error = errText
	return nil
}

func (m *Store) CloseOutage(ctx context.Context, id domain.ServiceID, downtime time.Duration) (*domain.Outage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.open[id]
	if o == nil {
		return nil, repo.ErrNoOpenOutage
	}
	delete(m.open, id)
	closedAt := o.Timestamp.Add(downtime)
	o.Downtime = downtime
	o.ClosedAt = &closedAt
	m.closed[id] = append(m.closed[id], *o)
	cp := *o
	return &cp, nil
}

// ListOutages returns closed outages for id, newest first.
func (m *Store) ListOutages(ctx context.Context, id domain.ServiceID, limit int) ([]domain.Outage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.closed[id]
	out := make([]domain.Outage, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, src[i])
	}
	return out, nil
}

// ---- ResultStore ----

func (m *Store) Append(ctx context.Context, r *domain.CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.results = append(m.results, &cp)
	return nil
}

func (m *Store) Latest(ctx context.Context) ([]domain.CheckResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := make(map[domain.ServiceID]*domain.CheckResult)
	for _, r := range m.results {
		cur := latest[r.ServiceID]
		if cur == nil || !r.CheckedAt.Before(cur.CheckedAt) {
			latest[r.ServiceID] = r
		}
	}

	out := make([]domain.CheckResult, 0, len(latest))
	for _, r := range latest {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceID < out[j].ServiceID })
	return out, nil
}

var _ repo.OutageStore = (*Store)(nil)
var _ repo.ResultStore = (*Store)(nil)
