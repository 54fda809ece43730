package archive

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-baker/pkg/interfaces"
)

// ErrDuplicateTimestamp signals two recordings for the same entity within the
// store's timestamp resolution. This is a benign race: callers retry once
// with a fresh timestamp before surfacing it.
var ErrDuplicateTimestamp = errors.New("archive: duplicate archival timestamp for entity")

// NotFoundError indicates an entity has no recorded archival versions.
type NotFoundError struct {
	Kind interfaces.EntityKind
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("archive: no versions recorded for %s %s", e.Kind, e.Key)
}

// IsNotFound reports whether err indicates a missing archival version.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}
