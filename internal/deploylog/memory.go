package deploylog

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-baker/internal/identity"
)

// MemoryRecorder is an in-memory Recorder for tests.
type MemoryRecorder struct {
	mu   sync.Mutex
	now  func() time.Time
	runs []*DeployRun
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{now: time.Now}
}

func (r *MemoryRecorder) RecordRun(_ context.Context, run *DeployRun) (*DeployRun, error) {
	if run == nil {
		return nil, errors.New("deploylog: record requires a run")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	record := *run
	if record.StartedAt.IsZero() {
		record.StartedAt = r.now().UTC()
	}
	if record.FinishedAt.IsZero() {
		record.FinishedAt = r.now().UTC()
	}
	if record.ID == uuid.Nil {
		record.ID = identity.DeployRunUUID(record.StartedAt.UnixNano(), record.ScopeSummary)
	}
	r.runs = append(r.runs, &record)

	clone := record
	return &clone, nil
}

func (r *MemoryRecorder) GetByID(_ context.Context, id uuid.UUID) (*DeployRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.ID == id {
			clone := *run
			return &clone, nil
		}
	}
	return nil, &NotFoundError{Key: id.String()}
}

func (r *MemoryRecorder) ListRecent(_ context.Context, limit int) ([]*DeployRun, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	sorted := make([]*DeployRun, len(r.runs))
	copy(sorted, r.runs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartedAt.After(sorted[j].StartedAt)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]*DeployRun, 0, len(sorted))
	for _, run := range sorted {
		clone := *run
		out = append(out, &clone)
	}
	return out, nil
}

// Count returns the number of recorded runs. Test helper.
func (r *MemoryRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}
