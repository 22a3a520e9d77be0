package history

import (
	"context"
	"testing"
	"time"
)

func TestSummarize_RejectsInvalidRange(t *testing.T) {
	l := NewLedger(NewMemoryRepo())
	now := time.Now()

	if _, err := l.Summarize(context.Background(), SummaryRequest{}); err == nil {
		t.Fatalf("expected error for zero range")
	}
	if _, err := l.Summarize(context.Background(), SummaryRequest{From: now, To: now}); err == nil {
		t.Fatalf("expected error for empty range")
	}
}

func TestSummarize_CountsByStatusAndDirection(t *testing.T) {
	l := NewLedger(NewMemoryRepo())
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	l.clock = func() time.Time { return base.Add(time.Hour) }

	entries := []Entry{
		{PeerID: "p1", Status: StatusAnswered, Modality: "voice", Direction: "incoming", DurationSeconds: 60},
		{PeerID: "p2", Status: StatusAnswered, Modality: "video", Direction: "outgoing", DurationSeconds: 120},
		{PeerID: "p3", Status: StatusMissed, Modality: "voice", Direction: "incoming"},
		{PeerID: "p4", Status: StatusDeclined, Modality: "video", Direction: "outgoing"},
	}
	for _, e := range entries {
		if err := l.Append(context.Background(), e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	sum, err := l.Summarize(context.Background(), SummaryRequest{From: base, To: base.Add(24 * time.Hour)})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.TotalCalls != 4 || sum.AnsweredCalls != 2 || sum.MissedCalls != 1 || sum.DeclinedCalls != 1 {
		t.Fatalf("unexpected status counts: %+v", sum)
	}
	if sum.IncomingCalls != 2 || sum.OutgoingCalls != 2 || sum.VideoCalls != 2 {
		t.Fatalf("unexpected direction/modality counts: %+v", sum)
	}
	if sum.TotalTalkSeconds != 180 || sum.AverageTalkSeconds != 90 {
		t.Fatalf("unexpected talk time: %+v", sum)
	}
}

func TestSummarize_ExcludesEntriesOutsideWindow(t *testing.T) {
	l := NewLedger(NewMemoryRepo())
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	inside := Entry{PeerID: "p1", Status: StatusMissed, Direction: "incoming", Timestamp: base.Add(time.Hour)}
	before := Entry{PeerID: "p2", Status: StatusMissed, Direction: "incoming", Timestamp: base.Add(-time.Hour)}
	atEnd := Entry{PeerID: "p3", Status: StatusMissed, Direction: "incoming", Timestamp: base.Add(24 * time.Hour)}
	for _, e := range []Entry{inside, before, atEnd} {
		if err := l.Append(context.Background(), e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	sum, err := l.Summarize(context.Background(), SummaryRequest{From: base, To: base.Add(24 * time.Hour)})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.TotalCalls != 1 {
		t.Fatalf("expected window filtering, got %d calls", sum.TotalCalls)
	}
}
