package deploylog

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Run status values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// DeployRun is one append-only record of a build+deploy cycle. Failed runs
// keep their aggregate step report so an operator can diagnose without
// re-running the bake.
type DeployRun struct {
	bun.BaseModel `bun:"table:deploy_runs,alias:dr"`

	ID            uuid.UUID `bun:",pk,type:uuid" json:"id"`
	ScopeSummary  string    `bun:"scope_summary,notnull" json:"scope_summary"`
	CommitMessage string    `bun:"commit_message" json:"commit_message"`
	StepReport    string    `bun:"step_report,type:jsonb" json:"step_report"`
	Status        string    `bun:"status,notnull" json:"status"`
	Error         string    `bun:"error" json:"error,omitempty"`
	ReleasePath   string    `bun:"release_path" json:"release_path,omitempty"`
	StartedAt     time.Time `bun:"started_at,notnull" json:"started_at"`
	FinishedAt    time.Time `bun:"finished_at,notnull" json:"finished_at"`
	DurationMs    int64     `bun:"duration_ms,notnull" json:"duration_ms"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// Succeeded reports whether the run published.
func (r *DeployRun) Succeeded() bool {
	return r.Status == StatusSuccess
}
