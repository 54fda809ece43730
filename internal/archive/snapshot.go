package archive

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-baker/internal/artifacts"
	"github.com/goliatone/go-baker/internal/domain"
	"github.com/goliatone/go-baker/internal/hashing"
	"github.com/goliatone/go-baker/internal/logging"
	"github.com/goliatone/go-baker/pkg/interfaces"
)

// ConfigValidator checks renderer-reported entity configuration before it is
// folded into the input hash. Implementations live in internal/validation.
type ConfigValidator interface {
	ValidatePayload(config map[string]any) error
}

// SnapshotOutcome reports a single ArchiveIfChanged invocation. Result always
// carries the fresh render so callers can stage the current output without
// rendering twice.
type SnapshotOutcome struct {
	Skipped bool
	Record  *ArchivalVersion
	Result  *interfaces.RenderResult
}

// SnapshotBuilder produces one archival snapshot per entity invocation. It is
// the only mutator of archival storage and is safe to call concurrently for
// different entities; readers only ever observe committed records.
type SnapshotBuilder struct {
	store     Store
	renderer  interfaces.EntityRenderer
	writer    *artifacts.Writer
	validator ConfigValidator
	now       func() time.Time
	logger    interfaces.Logger
}

// SnapshotOption customizes a SnapshotBuilder.
type SnapshotOption func(*SnapshotBuilder)

// WithSnapshotClock overrides the builder clock.
func WithSnapshotClock(clock func() time.Time) SnapshotOption {
	return func(b *SnapshotBuilder) {
		if clock != nil {
			b.now = clock
		}
	}
}

// WithConfigValidator enables config payload validation before hashing.
func WithConfigValidator(validator ConfigValidator) SnapshotOption {
	return func(b *SnapshotBuilder) {
		b.validator = validator
	}
}

// WithSnapshotLogger attaches a logger to the builder.
func WithSnapshotLogger(logger interfaces.Logger) SnapshotOption {
	return func(b *SnapshotBuilder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewSnapshotBuilder wires a builder over the store, renderer, and writer.
func NewSnapshotBuilder(store Store, renderer interfaces.EntityRenderer, writer *artifacts.Writer, opts ...SnapshotOption) (*SnapshotBuilder, error) {
	if store == nil {
		return nil, errors.New("archive: snapshot builder requires a store")
	}
	if renderer == nil {
		return nil, errors.New("archive: snapshot builder requires a renderer")
	}
	if writer == nil {
		return nil, errors.New("archive: snapshot builder requires a writer")
	}
	builder := &SnapshotBuilder{
		store:    store,
		renderer: renderer,
		writer:   writer,
		now:      time.Now,
		logger:   logging.NoOp(),
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder, nil
}

// ArchiveIfChanged renders the entity, hashes its canonical inputs, and
// either skips (hash matches the latest recorded version: zero new files,
// zero new rows) or writes content-addressed artifacts and records a new
// version. The input hash is computed from the rendering inputs, not the
// rendered bytes, so provenance stays tied to inputs even when two input
// sets happen to render identically.
func (b *SnapshotBuilder) ArchiveIfChanged(ctx context.Context, kind interfaces.EntityKind, entityID uuid.UUID) (*SnapshotOutcome, error) {
	result, err := b.renderer.Render(ctx, kind, entityID)
	if err != nil {
		var renderErr *interfaces.RenderError
		if errors.As(err, &renderErr) {
			return nil, err
		}
		return nil, &interfaces.RenderError{Kind: kind, EntityID: entityID, Err: err}
	}
	if result == nil {
		return nil, &interfaces.RenderError{Kind: kind, EntityID: entityID, Err: errors.New("renderer returned no result")}
	}

	if b.validator != nil && result.Config != nil {
		if err := b.validator.ValidatePayload(result.Config); err != nil {
			return nil, &interfaces.RenderError{Kind: kind, EntityID: entityID, Err: fmt.Errorf("invalid config: %w", err)}
		}
	}

	hashOfInputs := hashing.HashInputSet(result.Inputs)

	latest, err := b.store.GetLatest(ctx, kind, entityID)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}
	if latest != nil && latest.HashOfInputs == hashOfInputs {
		b.logger.Debug("archive.snapshot.skipped",
			"kind", string(kind),
			"entity_id", entityID.String(),
			"hash", hashOfInputs,
		)
		return &SnapshotOutcome{Skipped: true, Record: latest, Result: result}, nil
	}

	slug := domain.NormalizeSlug(result.Slug)
	manifest, err := b.writeArtifacts(kind, entityID, slug, result.Artifacts)
	if err != nil {
		return nil, err
	}

	version := &ArchivalVersion{
		EntityID:          entityID,
		EntitySlug:        slug,
		ArchivalTimestamp: b.now().UTC().Truncate(time.Second),
		HashOfInputs:      hashOfInputs,
		Manifest:          manifest,
	}

	recorded, err := b.store.Record(ctx, kind, version)
	if errors.Is(err, ErrDuplicateTimestamp) {
		// Two builds racing within the same second is expected, not a
		// systemic fault. Retry once with a bumped timestamp.
		version.ID = uuid.Nil
		version.ArchivalTimestamp = version.ArchivalTimestamp.Add(time.Second)
		recorded, err = b.store.Record(ctx, kind, version)
	}
	if err != nil {
		return nil, err
	}

	b.logger.Info("archive.snapshot.recorded",
		"kind", string(kind),
		"entity_id", entityID.String(),
		"slug", slug,
		"hash", hashOfInputs,
		"files", len(manifest),
	)
	return &SnapshotOutcome{Record: recorded, Result: result}, nil
}

func (b *SnapshotBuilder) writeArtifacts(kind interfaces.EntityKind, entityID uuid.UUID, slug string, rendered []interfaces.RenderedArtifact) (Manifest, error) {
	base := slug
	if base == "" {
		base = entityID.String()
	}
	dir := path.Join(string(kind), base)

	manifest := make(Manifest, 0, len(rendered))
	for _, artifact := range rendered {
		logical := path.Join(dir, artifact.LogicalName)
		physical, err := b.writer.Write(logical, artifact.Body)
		if err != nil {
			return nil, fmt.Errorf("archive: write artifact %s: %w", logical, err)
		}
		manifest = append(manifest, ManifestEntry{
			LogicalName:  artifact.LogicalName,
			ContentHash:  hashing.HashBytes(artifact.Body),
			RelativePath: physical,
			ByteSize:     int64(len(artifact.Body)),
		})
	}
	return manifest, nil
}
