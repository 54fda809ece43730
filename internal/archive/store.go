package archive

import (
	"context"

	"github.com/google/uuid"

	"github.com/goliatone/go-baker/pkg/interfaces"
)

// Store is the persistent catalog of archival snapshots. It is the only
// writer of the archival table family. Implementations must allow full
// concurrency across entities and turn same-entity timestamp races into
// ErrDuplicateTimestamp via a unique constraint rather than locks.
type Store interface {
	// GetLatest returns the most recent version for the entity, or a
	// NotFoundError when none has been recorded.
	GetLatest(ctx context.Context, kind interfaces.EntityKind, entityID uuid.UUID) (*ArchivalVersion, error)

	// Record appends a new version row. It never updates or deletes
	// existing rows and fails with ErrDuplicateTimestamp when the
	// (entity_id, archival_timestamp) pair already exists.
	Record(ctx context.Context, kind interfaces.EntityKind, version *ArchivalVersion) (*ArchivalVersion, error)

	// FindByHash lists versions whose input hash matches, across entities
	// and time, enabling storage reuse for byte-identical output.
	FindByHash(ctx context.Context, kind interfaces.EntityKind, hashOfInputs string) ([]*ArchivalVersion, error)
}
