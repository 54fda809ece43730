package deploylog

import (
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewDeployRunRepository creates the generic repository over deploy runs.
func NewDeployRunRepository(db *bun.DB) repository.Repository[*DeployRun] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*DeployRun]{
		NewRecord: func() *DeployRun { return &DeployRun{} },
		GetID: func(r *DeployRun) uuid.UUID {
			return r.ID
		},
		SetID: func(r *DeployRun, id uuid.UUID) {
			r.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(r *DeployRun) string {
			if r == nil {
				return ""
			}
			return r.ID.String()
		},
	})
}
