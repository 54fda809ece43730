package deploylog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryRecorderAssignsDeterministicID(t *testing.T) {
	ctx := context.Background()
	recorder := NewMemoryRecorder()
	started := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	first, err := recorder.RecordRun(ctx, &DeployRun{
		ScopeSummary: "full-site",
		Status:       StatusSuccess,
		StartedAt:    started,
		FinishedAt:   started.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if first.ID == uuid.Nil {
		t.Fatal("expected an assigned id")
	}

	second, err := recorder.RecordRun(ctx, &DeployRun{
		ScopeSummary: "full-site",
		Status:       StatusFailed,
		StartedAt:    started,
		FinishedAt:   started.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("expected identical (start, scope) to map to the same id")
	}
}

func TestMemoryRecorderListRecentOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	recorder := NewMemoryRecorder()
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := recorder.RecordRun(ctx, &DeployRun{
			ScopeSummary: "full-site",
			Status:       StatusSuccess,
			StartedAt:    base.Add(time.Duration(i) * time.Minute),
			FinishedAt:   base.Add(time.Duration(i)*time.Minute + 30*time.Second),
		})
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	runs, err := recorder.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Fatal("expected newest-first ordering")
	}
}

func TestMemoryRecorderGetByIDNotFound(t *testing.T) {
	recorder := NewMemoryRecorder()
	_, err := recorder.GetByID(context.Background(), uuid.New())
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
