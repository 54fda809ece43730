package archive

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-baker/internal/identity"
	"github.com/goliatone/go-baker/pkg/interfaces"
)

// MemoryStore is a deterministic in-memory Store for tests and previews. It
// honours the same append-only and duplicate-timestamp semantics as the bun
// implementation.
type MemoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	versions map[interfaces.EntityKind][]*ArchivalVersion
}

// MemoryOption customizes a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides the store clock.
func WithMemoryClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	store := &MemoryStore{
		now:      time.Now,
		versions: make(map[interfaces.EntityKind][]*ArchivalVersion),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *MemoryStore) GetLatest(_ context.Context, kind interfaces.EntityKind, entityID uuid.UUID) (*ArchivalVersion, error) {
	if _, err := TableForKind(kind); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *ArchivalVersion
	for _, version := range s.versions[kind] {
		if version.EntityID != entityID {
			continue
		}
		if latest == nil || version.ArchivalTimestamp.After(latest.ArchivalTimestamp) {
			latest = version
		}
	}
	if latest == nil {
		return nil, &NotFoundError{Kind: kind, Key: entityID.String()}
	}
	clone := *latest
	return &clone, nil
}

func (s *MemoryStore) Record(_ context.Context, kind interfaces.EntityKind, version *ArchivalVersion) (*ArchivalVersion, error) {
	if _, err := TableForKind(kind); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	record := *version
	if record.ArchivalTimestamp.IsZero() {
		record.ArchivalTimestamp = s.now().UTC().Truncate(time.Second)
	}
	for _, existing := range s.versions[kind] {
		if existing.EntityID == record.EntityID && existing.ArchivalTimestamp.Equal(record.ArchivalTimestamp) {
			return nil, ErrDuplicateTimestamp
		}
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
	s.versions[kind] = append(s.versions[kind], &record)

	clone := record
	return &clone, nil
}

func (s *MemoryStore) FindByHash(_ context.Context, kind interfaces.EntityKind, hashOfInputs string) ([]*ArchivalVersion, error) {
	if _, err := TableForKind(kind); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	hashOfInputs = strings.TrimSpace(hashOfInputs)
	var matches []*ArchivalVersion
	for _, version := range s.versions[kind] {
		if version.HashOfInputs == hashOfInputs {
			clone := *version
			matches = append(matches, &clone)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].ArchivalTimestamp.Before(matches[j].ArchivalTimestamp)
	})
	return matches, nil
}

// Count returns the number of recorded versions for a kind. Test helper.
func (s *MemoryStore) Count(kind interfaces.EntityKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.versions[kind])
}
