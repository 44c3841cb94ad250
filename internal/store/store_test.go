package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/switchboard-ai/switchboard/pkg/call"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "calls.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(id string) call.Record {
	now := time.Now()
	return call.Record{
		CallID:     id,
		Caller:     "+15550100",
		State:      "ended",
		Started:    now.Add(-time.Minute),
		Ended:      now,
		ErrorCount: 1,
		Turns: []call.TurnRecord{
			{Number: 1, Speaker: "agent", Text: "Hello!", StartedAt: now, EndedAt: now},
			{Number: 2, Speaker: "caller", Text: "Hi there", StartedAt: now, EndedAt: now},
			{Number: 3, Speaker: "agent", Text: "How can I help?", StartedAt: now, EndedAt: now, Latency: 420 * time.Millisecond},
		},
	}
}

func TestSaveCall(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveCall(ctx, sampleRecord("c1")); err != nil {
		t.Fatalf("save: %v", err)
	}

	var calls int
	if err := s.db.Get(&calls, `SELECT COUNT(*) FROM calls`); err != nil {
		t.Fatalf("count calls: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}

	var turns int
	if err := s.db.Get(&turns, `SELECT COUNT(*) FROM turns WHERE call_id = 'c1'`); err != nil {
		t.Fatalf("count turns: %v", err)
	}
	if turns != 3 {
		t.Errorf("turns = %d", turns)
	}

	var latency int
	if err := s.db.Get(&latency, `SELECT latency_ms FROM turns WHERE call_id = 'c1' AND number = 3`); err != nil {
		t.Fatalf("latency: %v", err)
	}
	if latency != 420 {
		t.Errorf("latency_ms = %d", latency)
	}
}

func TestSaveCallIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("c2")
	if err := s.SaveCall(ctx, rec); err != nil {
		t.Fatalf("first save: %v", err)
	}

	// Second save with fewer turns fully replaces the record.
	rec.Turns = rec.Turns[:2]
	rec.State = "failed"
	rec.ErrorCategory = "stt"
	if err := s.SaveCall(ctx, rec); err != nil {
		t.Fatalf("second save: %v", err)
	}

	var calls int
	if err := s.db.Get(&calls, `SELECT COUNT(*) FROM calls WHERE call_id = 'c2'`); err != nil {
		t.Fatalf("count calls: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}

	var turns int
	if err := s.db.Get(&turns, `SELECT COUNT(*) FROM turns WHERE call_id = 'c2'`); err != nil {
		t.Fatalf("count turns: %v", err)
	}
	if turns != 2 {
		t.Errorf("turns = %d, want replacement not accumulation", turns)
	}

	var state, category string
	if err := s.db.QueryRow(`SELECT state, error_category FROM calls WHERE call_id = 'c2'`).Scan(&state, &category); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if state != "failed" || category != "stt" {
		t.Errorf("state = %q, category = %q", state, category)
	}
}

func TestSaveCallNoTurns(t *testing.T) {
	s := openTestStore(t)

	rec := sampleRecord("c3")
	rec.Turns = nil
	if err := s.SaveCall(context.Background(), rec); err != nil {
		t.Fatalf("save without turns: %v", err)
	}
}
