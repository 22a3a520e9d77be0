package history

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisRepo(t *testing.T) *RedisRepo {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisRepo(rdb)
}

func TestRedisRepo_AppendAndListNewestFirst(t *testing.T) {
	repo := newTestRedisRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, peer := range []string{"a", "b", "c"} {
		e := Entry{
			ID:        peer,
			PeerID:    peer,
			Modality:  "voice",
			Direction: "incoming",
			Status:    StatusMissed,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("append %s: %v", peer, err)
		}
	}

	rows, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(rows))
	}
	if rows[0].PeerID != "c" || rows[2].PeerID != "a" {
		t.Fatalf("expected newest-first order, got %s..%s", rows[0].PeerID, rows[2].PeerID)
	}
}

func TestRedisRepo_RoundTripsEntryFields(t *testing.T) {
	repo := newTestRedisRepo(t)
	ctx := context.Background()

	in := Entry{
		ID:              "e1",
		PeerID:          "peer-2",
		PeerName:        "Grandpa",
		Modality:        "video",
		Direction:       "incoming",
		Status:          StatusAnswered,
		DurationSeconds: 42,
		Timestamp:       time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
	if err := repo.Append(ctx, in); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(rows))
	}
	got := rows[0]
	if got.PeerName != "Grandpa" || got.Status != StatusAnswered || got.DurationSeconds != 42 {
		t.Fatalf("unexpected round trip: %+v", got)
	}
	if !got.Timestamp.Equal(in.Timestamp) {
		t.Fatalf("timestamp drift: %v != %v", got.Timestamp, in.Timestamp)
	}
}

func TestRedisRepo_WithKeyIsolatesLists(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	a := NewRedisRepo(rdb).WithKey("history:user-a")
	b := NewRedisRepo(rdb).WithKey("history:user-b")

	if err := a.Append(ctx, Entry{ID: "1", PeerID: "p", Status: StatusMissed}); err != nil {
		t.Fatalf("append: %v", err)
	}
	rows, err := b.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty list for other key, got %d", len(rows))
	}
}
