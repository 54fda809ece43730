package archive

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-baker/pkg/interfaces"
)

// ManifestEntry lets a consumer resolve one file a snapshot depends on
// without re-deriving hashes.
type ManifestEntry struct {
	LogicalName  string `json:"logical_name"`
	ContentHash  string `json:"content_hash"`
	RelativePath string `json:"relative_path"`
	ByteSize     int64  `json:"byte_size"`
}

// Manifest is the file listing produced by one archival snapshot. Stored as
// an opaque JSON blob, never normalized into columns.
type Manifest []ManifestEntry

// ArchivalVersion is one append-only snapshot record. EntityID is a soft
// reference: deliberately not a foreign key, so records outlive deletion of
// the live entity. Rows are never updated or deleted after creation.
//
// The struct maps onto one table per entity kind (see TableForKind); queries
// override the table with ModelTableExpr.
type ArchivalVersion struct {
	bun.BaseModel `bun:"table:archival_versions,alias:av"`

	ID                uuid.UUID `bun:",pk,type:uuid" json:"id"`
	EntityID          uuid.UUID `bun:"entity_id,notnull,type:uuid" json:"entity_id"`
	EntitySlug        string    `bun:"entity_slug,notnull" json:"entity_slug"`
	ArchivalTimestamp time.Time `bun:"archival_timestamp,notnull" json:"archival_timestamp"`
	HashOfInputs      string    `bun:"hash_of_inputs,notnull" json:"hash_of_inputs"`
	Manifest          Manifest  `bun:"manifest,type:jsonb,notnull" json:"manifest"`
	CreatedAt         time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// TableForKind maps an entity kind onto its archival table. One row family
// per kind keeps indexes small and lets retention policies differ later.
func TableForKind(kind interfaces.EntityKind) (string, error) {
	switch kind {
	case interfaces.KindChart:
		return "archival_chart_versions", nil
	case interfaces.KindMultiDim:
		return "archival_multidim_versions", nil
	case interfaces.KindExplorer:
		return "archival_explorer_versions", nil
	case interfaces.KindPost:
		return "archival_post_versions", nil
	}
	return "", fmt.Errorf("archive: unknown entity kind %q", kind)
}
