package interfaces

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// EntityKind identifies the dynamic entity families the baker can archive.
type EntityKind string

const (
	KindChart    EntityKind = "chart"
	KindMultiDim EntityKind = "multi-dim"
	KindExplorer EntityKind = "explorer"
	KindPost     EntityKind = "post"
)

// Kinds lists every archivable entity kind in a stable order.
func Kinds() []EntityKind {
	return []EntityKind{KindChart, KindMultiDim, KindExplorer, KindPost}
}

// Valid reports whether the kind names a known entity family.
func (k EntityKind) Valid() bool {
	switch k {
	case KindChart, KindMultiDim, KindExplorer, KindPost:
		return true
	}
	return false
}

// ErrEntityNotFound indicates the renderer could not locate the live entity.
var ErrEntityNotFound = errors.New("renderer: entity not found")

// RenderError wraps a renderer failure so callers can distinguish it from
// baker-internal failures. Renderer failures are never retried here.
type RenderError struct {
	Kind     EntityKind
	EntityID uuid.UUID
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s %s: %v", e.Kind, e.EntityID, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// RenderedArtifact is one output file produced by rendering an entity.
type RenderedArtifact struct {
	LogicalName string
	ContentType string
	Body        []byte
}

// RenderResult carries the full rendered output of an entity along with the
// input set that determined it. Inputs must include every field that affects
// rendered output (entity config, referenced sub-entity digests, schema
// version) and must exclude volatile metadata.
type RenderResult struct {
	Slug      string
	Artifacts []RenderedArtifact
	Inputs    map[string]string
	Config    map[string]any
}

// EntityRenderer produces the current full output for an entity. It is an
// external collaborator: implementations typically wrap the platform's chart
// and page rendering services.
type EntityRenderer interface {
	Render(ctx context.Context, kind EntityKind, entityID uuid.UUID) (*RenderResult, error)
}

// EntityRef names one live entity inside a build scope.
type EntityRef struct {
	Kind EntityKind
	ID   uuid.UUID
	Slug string
}

// EntityCatalog enumerates live entities for full-site builds. External
// collaborator backed by the platform's relational schema.
type EntityCatalog interface {
	List(ctx context.Context, kind EntityKind) ([]EntityRef, error)
}

// PostSourceFile is one post authored as Markdown with frontmatter.
type PostSourceFile struct {
	Path string
	Body []byte
}

// PostSource lists the raw post documents for site-wide steps such as the
// search index. External collaborator.
type PostSource interface {
	ListPostSources(ctx context.Context) ([]PostSourceFile, error)
}

// Redirect maps a retired public path to its replacement.
type Redirect struct {
	Source string
	Target string
	Code   int
}

// RedirectSource lists the platform's configured redirects. External
// collaborator.
type RedirectSource interface {
	ListRedirects(ctx context.Context) ([]Redirect, error)
}
