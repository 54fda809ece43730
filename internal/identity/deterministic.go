package identity

import (
	"strconv"
	"strings"

	hashid "github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"

	"github.com/goliatone/go-baker/pkg/interfaces"
)

// UUID derives a deterministic UUID from a stable key using go-hashid.
//
// Callers must ensure key construction prevents cross-entity collisions (prefix by domain/type).
func UUID(key string) uuid.UUID {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return uuid.Nil
	}
	uid, err := hashid.NewUUID(trimmed, hashid.WithHashAlgorithm(hashid.SHA256), hashid.WithNormalization(true))
	if err != nil || uid == uuid.Nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(trimmed))
	}
	return uid
}

// ArchivalVersionUUID derives the id for one archival version record. The key
// includes the timestamp in unix seconds so retrying with a bumped timestamp
// produces a fresh id while exact re-records stay id-stable.
func ArchivalVersionUUID(kind interfaces.EntityKind, entityID uuid.UUID, unixSeconds int64) uuid.UUID {
	return UUID("go-baker:archival_version:" + string(kind) + ":" + entityID.String() + ":" + strconv.FormatInt(unixSeconds, 10))
}

// DeployRunUUID derives the id for one recorded build+deploy cycle.
func DeployRunUUID(startedAtUnixNanos int64, scopeSummary string) uuid.UUID {
	return UUID("go-baker:deploy_run:" + strconv.FormatInt(startedAtUnixNanos, 10) + ":" + strings.TrimSpace(scopeSummary))
}
