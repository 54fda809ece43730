package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-baker/internal/identity"
	"github.com/goliatone/go-baker/internal/logging"
	"github.com/goliatone/go-baker/pkg/interfaces"
)

// BunStore persists archival versions through bun. Per-entity serialization
// relies on the unique (entity_id, archival_timestamp) index: a race between
// two recorders becomes a detectable ErrDuplicateTimestamp instead of a lock.
type BunStore struct {
	db     *bun.DB
	now    func() time.Time
	logger interfaces.Logger
}

// BunStoreOption configures a BunStore.
type BunStoreOption func(*BunStore)

// WithClock overrides the store clock, used mainly for tests.
func WithClock(clock func() time.Time) BunStoreOption {
	return func(s *BunStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithLogger attaches a logger to the store.
func WithLogger(logger interfaces.Logger) BunStoreOption {
	return func(s *BunStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewBunStore creates the bun-backed archival version store.
func NewBunStore(db *bun.DB, opts ...BunStoreOption) *BunStore {
	store := &BunStore{
		db:     db,
		now:    time.Now,
		logger: logging.NoOp(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *BunStore) GetLatest(ctx context.Context, kind interfaces.EntityKind, entityID uuid.UUID) (*ArchivalVersion, error) {
	table, err := TableForKind(kind)
	if err != nil {
		return nil, err
	}

	version := new(ArchivalVersion)
	err = s.db.NewSelect().
		Model(version).
		ModelTableExpr("? AS av", bun.Ident(table)).
		Where("av.entity_id = ?", entityID).
		OrderExpr("av.archival_timestamp DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Kind: kind, Key: entityID.String()}
		}
		return nil, fmt.Errorf("archive: get latest %s %s: %w", kind, entityID, err)
	}
	return version, nil
}

func (s *BunStore) Record(ctx context.Context, kind interfaces.EntityKind, version *ArchivalVersion) (*ArchivalVersion, error) {
	table, err := TableForKind(kind)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, errors.New("archive: record requires a version")
	}
	if version.EntityID == uuid.Nil {
		return nil, errors.New("archive: record requires an entity id")
	}

	record := *version
	if record.ArchivalTimestamp.IsZero() {
		record.ArchivalTimestamp = s.now().UTC().Truncate(time.Second)
	}
	if record.ID == uuid.Nil {
		record.ID = identity.ArchivalVersionUUID(kind, record.EntityID, record.ArchivalTimestamp.Unix())
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now().UTC()
	}
	if record.Manifest == nil {
		record.Manifest = Manifest{}
	}

	_, err = s.db.NewInsert().
		Model(&record).
		ModelTableExpr("?", bun.Ident(table)).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s %s at %s", ErrDuplicateTimestamp, kind, record.EntityID, record.ArchivalTimestamp.Format(time.RFC3339))
		}
		return nil, fmt.Errorf("archive: record %s %s: %w", kind, record.EntityID, err)
	}

	s.logger.Debug("archive.version.recorded",
		"kind", string(kind),
		"entity_id", record.EntityID.String(),
		"hash", record.HashOfInputs,
	)
	return &record, nil
}

func (s *BunStore) FindByHash(ctx context.Context, kind interfaces.EntityKind, hashOfInputs string) ([]*ArchivalVersion, error) {
	table, err := TableForKind(kind)
	if err != nil {
		return nil, err
	}

	var versions []*ArchivalVersion
	err = s.db.NewSelect().
		Model(&versions).
		ModelTableExpr("? AS av", bun.Ident(table)).
		Where("av.hash_of_inputs = ?", strings.TrimSpace(hashOfInputs)).
		OrderExpr("av.archival_timestamp ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive: find by hash %s: %w", kind, err)
	}
	return versions, nil
}

// isUniqueViolation matches the unique-constraint messages emitted by the
// sqlite and postgres drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "constraint failed")
}
