package deploylog

import (
	"context"
	"errors"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	repositorycache "github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-baker/internal/identity"
)

// NotFoundError indicates a deploy run lookup missed.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("deploy run %s not found", e.Key)
}

// Recorder persists and reads back deploy-run records.
type Recorder interface {
	RecordRun(ctx context.Context, run *DeployRun) (*DeployRun, error)
	GetByID(ctx context.Context, id uuid.UUID) (*DeployRun, error)
	ListRecent(ctx context.Context, limit int) ([]*DeployRun, error)
}

// BunRecorder is the bun-backed deploy-run log with an optional read cache.
type BunRecorder struct {
	repo repository.Repository[*DeployRun]
	now  func() time.Time
}

// NewBunRecorder creates the recorder without caching.
func NewBunRecorder(db *bun.DB) *BunRecorder {
	return NewBunRecorderWithCache(db, nil, nil)
}

// NewBunRecorderWithCache creates the recorder with optional caching services.
func NewBunRecorderWithCache(db *bun.DB, cacheService cache.CacheService, keySerializer cache.KeySerializer) *BunRecorder {
	base := NewDeployRunRepository(db)
	return &BunRecorder{
		repo: wrapWithCache(base, cacheService, keySerializer),
		now:  time.Now,
	}
}

func (r *BunRecorder) RecordRun(ctx context.Context, run *DeployRun) (*DeployRun, error) {
	if run == nil {
		return nil, errors.New("deploylog: record requires a run")
	}
	record := *run
	if record.StartedAt.IsZero() {
		record.StartedAt = r.now().UTC()
	}
	if record.FinishedAt.IsZero() {
		record.FinishedAt = r.now().UTC()
	}
	if record.DurationMs == 0 {
		record.DurationMs = record.FinishedAt.Sub(record.StartedAt).Milliseconds()
	}
	if record.ID == uuid.Nil {
		record.ID = identity.DeployRunUUID(record.StartedAt.UnixNano(), record.ScopeSummary)
	}

	created, err := r.repo.Create(ctx, &record)
	if err != nil {
		return nil, fmt.Errorf("deploylog: record run: %w", err)
	}
	return created, nil
}

func (r *BunRecorder) GetByID(ctx context.Context, id uuid.UUID) (*DeployRun, error) {
	result, err := r.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRepositoryError(err, id.String())
	}
	return result, nil
}

func (r *BunRecorder) ListRecent(ctx context.Context, limit int) ([]*DeployRun, error) {
	if limit <= 0 {
		limit = 20
	}
	records, _, err := r.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.started_at DESC")
		}),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("deploylog: list recent runs: %w", err)
	}
	return records, nil
}

func mapRepositoryError(err error, key string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return &NotFoundError{Key: key}
	}
	return fmt.Errorf("deploy run repository error: %w", err)
}

func wrapWithCache(base repository.Repository[*DeployRun], cacheService cache.CacheService, keySerializer cache.KeySerializer) repository.Repository[*DeployRun] {
	if cacheService == nil || keySerializer == nil {
		return base
	}
	return repositorycache.New(base, cacheService, keySerializer)
}
