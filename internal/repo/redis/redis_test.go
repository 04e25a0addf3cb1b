package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/hamed0406/watchmen/internal/domain"
	"github.com/hamed0406/watchmen/internal/repo"
)

func TestRedisStore_OutageLifecycle(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping Redis integration test")
	}
	store, err := New(Options{Addr: addr, Prefix: "watchmen-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	id := domain.ServiceID(fmt.Sprintf("svc-%d", time.Now().UnixNano()))
	start := time.Now().UTC().Truncate(time.Millisecond)

	if o, err := store.ReadOpenOutage(ctx, id); err != nil || o != nil {
		t.Fatalf("expected nil, got %+v err=%v", o, err)
	}
	if err := store.OpenOutage(ctx, id, start, "first"); err != nil {
		t.Fatalf("OpenOutage: %v", err)
	}
	// a second open while one exists only refreshes the error
	if err := store.OpenOutage(ctx, id, start.Add(time.Minute), "second"); err != nil {
		t.Fatalf("OpenOutage again: %v", err)
	}
	o, _ := store.ReadOpenOutage(ctx, id)
	if o == nil || o.Error != "second" || !o.Timestamp.Equal(start) {
		t.Fatalf("unexpected open outage: %+v", o)
	}

	closed, err := store.CloseOutage(ctx, id, 2*time.Second)
	if err != nil {
		t.Fatalf("CloseOutage: %v", err)
	}
	if closed.Downtime != 2*time.Second {
		t.Fatalf("unexpected downtime: %v", closed.Downtime)
	}
	if o, _ := store.ReadOpenOutage(ctx, id); o != nil {
		t.Fatalf("outage still open: %+v", o)
	}
	list, err := store.ListOutages(ctx, id, 10)
	if err != nil || len(list) != 1 || list[0].ID != closed.ID {
		t.Fatalf("ListOutages: %+v err=%v", list, err)
	}
}

func TestRedisStore_UpdateRacingCloseDoesNotReopen(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping Redis integration test")
	}
	store, err := New(Options{Addr: addr, Prefix: "watchmen-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		id := domain.ServiceID(fmt.Sprintf("race-%d-%d", time.Now().UnixNano(), i))
		if err := store.OpenOutage(ctx, id, time.Now(), "down"); err != nil {
			t.Fatalf("OpenOutage: %v", err)
		}

		var wg sync.WaitGroup
		var updErr, closeErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			updErr = store.UpdateOutage(ctx, id, "still down")
		}()
		go func() {
			defer wg.Done()
			_, closeErr = store.CloseOutage(ctx, id, time.Second)
		}()
		wg.Wait()

		if closeErr != nil {
			t.Fatalf("CloseOutage: %v", closeErr)
		}
		if updErr != nil && !errors.Is(updErr, repo.ErrNoOpenOutage) {
			t.Fatalf("UpdateOutage: %v", updErr)
		}
		if o, err := store.ReadOpenOutage(ctx, id); err != nil || o != nil {
			t.Fatalf("closed outage came back: %+v err=%v", o, err)
		}
	}
}

func TestRedisStore_MissingOutage(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping Redis integration test")
	}
	store, err := New(Options{Addr: addr, Prefix: "watchmen-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer store.Close()

	id := domain.ServiceID(fmt.Sprintf("none-%d", time.Now().UnixNano()))
	if err := store.UpdateOutage(context.Background(), id, "x"); !errors.Is(err, repo.ErrNoOpenOutage) {
		t.Fatalf("UpdateOutage: %v", err)
	}
	if _, err := store.CloseOutage(context.Background(), id, time.Second); !errors.Is(err, repo.ErrNoOpenOutage) {
		t.Fatalf("CloseOutage: %v", err)
	}
}
