package history

import (
	"context"
	"testing"
	"time"
)

func TestLedger_AppendRequiresPeerAndValidStatus(t *testing.T) {
	l := NewLedger(NewMemoryRepo())

	if err := l.Append(context.Background(), Entry{Status: StatusMissed}); err == nil {
		t.Fatalf("expected error for missing peer_id")
	}
	if err := l.Append(context.Background(), Entry{PeerID: "p", Status: "dropped"}); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestLedger_RejectsDurationOnUnansweredCalls(t *testing.T) {
	l := NewLedger(NewMemoryRepo())

	if err := l.Append(context.Background(), Entry{PeerID: "p", Status: StatusMissed, DurationSeconds: 10}); err == nil {
		t.Fatalf("expected error for missed call with duration")
	}
	if err := l.Append(context.Background(), Entry{PeerID: "p", Status: StatusAnswered, DurationSeconds: -1}); err == nil {
		t.Fatalf("expected error for negative duration")
	}
}

func TestLedger_FillsIDAndTimestamp(t *testing.T) {
	repo := NewMemoryRepo()
	l := NewLedger(repo)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.clock = func() time.Time { return now }

	if err := l.Append(context.Background(), Entry{PeerID: "p", PeerName: "Mom", Modality: "voice", Direction: "incoming", Status: StatusAnswered, DurationSeconds: 42}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	rows, err := l.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(rows))
	}
	if rows[0].ID == "" {
		t.Fatalf("expected generated id")
	}
	if !rows[0].Timestamp.Equal(now) {
		t.Fatalf("expected clock timestamp, got %v", rows[0].Timestamp)
	}
}

func TestLedger_ListIsNewestFirstByWriteTime(t *testing.T) {
	l := NewLedger(NewMemoryRepo())

	for _, peer := range []string{"first", "second", "third"} {
		if err := l.Append(context.Background(), Entry{PeerID: peer, Status: StatusMissed, Modality: "voice", Direction: "incoming"}); err != nil {
			t.Fatalf("append %s: %v", peer, err)
		}
	}

	rows, err := l.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(rows))
	}
	if rows[0].PeerID != "third" || rows[2].PeerID != "first" {
		t.Fatalf("expected newest-first order, got %s..%s", rows[0].PeerID, rows[2].PeerID)
	}
}

func TestLedger_AppendVisibleImmediately(t *testing.T) {
	l := NewLedger(NewMemoryRepo())

	if err := l.Append(context.Background(), Entry{PeerID: "p", Status: StatusDeclined, Modality: "video", Direction: "outgoing"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	rows, err := l.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected read-after-write visibility, got %d entries", len(rows))
	}
}
