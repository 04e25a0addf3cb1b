package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/watchmen/internal/domain"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("New store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestPostgresStore_OutageLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	// Use a unique id per run to avoid collisions with previous runs.
	id := domain.ServiceID(fmt.Sprintf("svc-%d", time.Now().UTC().UnixNano()))
	start := time.Now().UTC().Truncate(time.Millisecond)

	if o, err := store.ReadOpenOutage(ctx, id); err != nil || o != nil {
		t.Fatalf("expected nil, got %+v err=%v", o, err)
	}
	if err := store.OpenOutage(ctx, id, start, "first"); err != nil {
		t.Fatalf("OpenOutage: %v", err)
	}
	if err := store.UpdateOutage(ctx, id, "second"); err != nil {
		t.Fatalf("UpdateOutage: %v", err)
	}
	o, err := store.ReadOpenOutage(ctx, id)
	if err != nil || o == nil {
		t.Fatalf("expected open outage, got %+v err=%v", o, err)
	}
	if o.Error != "second" || !o.Timestamp.Equal(start) {
		t.Fatalf("unexpected open outage: %+v", o)
	}

	closed, err := store.CloseOutage(ctx, id, 3*time.Second)
	if err != nil {
		t.Fatalf("CloseOutage: %v", err)
	}
	if closed.Downtime != 3*time.Second || closed.ClosedAt == nil {
		t.Fatalf("unexpected closed outage: %+v", closed)
	}
	if o, _ := store.ReadOpenOutage(ctx, id); o != nil {
		t.Fatalf("outage still open: %+v", o)
	}

	list, err := store.ListOutages(ctx, id, 5)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListOutages: %+v err=%v", list, err)
	}
}

func TestPostgresStore_Append_Latest(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	id := domain.ServiceID(fmt.Sprintf("svc-%d", time.Now().UTC().UnixNano()))

	res := &domain.CheckResult{
		ServiceID:  id,
		Up:         true,
		HTTPStatus: 200,
		LatencyMS:  42.0,
		Reason:     "",
		CheckedAt:  time.Now().UTC(),
	}
	if err := store.Append(ctx, res); err != nil {
		t.Fatalf("Append result: %v", err)
	}

	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	var row *domain.CheckResult
	for i := range latest {
		if latest[i].ServiceID == id {
			row = &latest[i]
			break
		}
	}
	if row == nil {
		t.Fatalf("latest for service %s not found", id)
	}
	if !row.Up || row.HTTPStatus != 200 || row.LatencyMS <= 0 {
		t.Fatalf("unexpected latest row: %+v", row)
	}
}
