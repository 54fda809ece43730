package domain

import (
	"sort"
	"strings"

	slug "github.com/goliatone/go-slug"
	"github.com/google/uuid"

	"github.com/goliatone/go-baker/pkg/interfaces"
)

// EntityKind re-exports the shared entity kind for domain consumers.
type EntityKind = interfaces.EntityKind

// Scope is a tagged variant: either the whole site or an explicit set of
// entities. Merging is a total function; full-site absorbs any entity set
// because it is a superset of every narrow scope.
type Scope struct {
	fullSite bool
	entities map[string]interfaces.EntityRef
}

// FullSiteScope returns the scope covering every entity and site surface.
func FullSiteScope() Scope {
	return Scope{fullSite: true}
}

// EntityScope returns a scope limited to the supplied entities. An empty set
// is valid and produces a scope that matches nothing.
func EntityScope(refs ...interfaces.EntityRef) Scope {
	s := Scope{entities: make(map[string]interfaces.EntityRef, len(refs))}
	for _, ref := range refs {
		s.add(ref)
	}
	return s
}

func (s *Scope) add(ref interfaces.EntityRef) {
	if s.entities == nil {
		s.entities = make(map[string]interfaces.EntityRef)
	}
	ref.Slug = NormalizeSlug(ref.Slug)
	s.entities[entityKey(ref.Kind, ref.ID)] = ref
}

func entityKey(kind EntityKind, id uuid.UUID) string {
	return string(kind) + "::" + strings.ToLower(id.String())
}

// IsFullSite reports whether the scope covers the whole site.
func (s Scope) IsFullSite() bool { return s.fullSite }

// Entities returns the entity set in a stable kind-then-slug order. Empty for
// full-site scopes.
func (s Scope) Entities() []interfaces.EntityRef {
	if s.fullSite || len(s.entities) == 0 {
		return nil
	}
	refs := make([]interfaces.EntityRef, 0, len(s.entities))
	for _, ref := range s.entities {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind < refs[j].Kind
		}
		if refs[i].Slug != refs[j].Slug {
			return refs[i].Slug < refs[j].Slug
		}
		return refs[i].ID.String() < refs[j].ID.String()
	})
	return refs
}

// EntitiesOfKind filters the scoped entity set down to one kind.
func (s Scope) EntitiesOfKind(kind EntityKind) []interfaces.EntityRef {
	var refs []interfaces.EntityRef
	for _, ref := range s.Entities() {
		if ref.Kind == kind {
			refs = append(refs, ref)
		}
	}
	return refs
}

// Includes reports whether the scope covers the given kind at all.
func (s Scope) Includes(kind EntityKind) bool {
	if s.fullSite {
		return true
	}
	for _, ref := range s.entities {
		if ref.Kind == kind {
			return true
		}
	}
	return false
}

// Len returns the number of scoped entities, zero for full-site.
func (s Scope) Len() int {
	if s.fullSite {
		return 0
	}
	return len(s.entities)
}

// Merge unions two scopes. Full-site always wins.
func (s Scope) Merge(other Scope) Scope {
	if s.fullSite || other.fullSite {
		return FullSiteScope()
	}
	merged := Scope{entities: make(map[string]interfaces.EntityRef, len(s.entities)+len(other.entities))}
	for key, ref := range s.entities {
		merged.entities[key] = ref
	}
	for key, ref := range other.entities {
		merged.entities[key] = ref
	}
	return merged
}

// Summary renders a short human-readable description for logs and run records.
func (s Scope) Summary() string {
	if s.fullSite {
		return "full-site"
	}
	refs := s.Entities()
	if len(refs) == 0 {
		return "empty"
	}
	parts := make([]string, 0, len(refs))
	for _, ref := range refs {
		label := ref.Slug
		if label == "" {
			label = ref.ID.String()
		}
		parts = append(parts, string(ref.Kind)+":"+label)
	}
	return strings.Join(parts, ",")
}

// NormalizeSlug applies the shared slug normalization rules, falling back to
// the trimmed input when the value cannot be normalized.
func NormalizeSlug(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	normalized, err := slug.Normalize(trimmed)
	if err != nil {
		return trimmed
	}
	return normalized
}
