package baker

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StepStatus classifies the outcome of one bake step.
type StepStatus string

const (
	StatusOk      StepStatus = "ok"
	StatusFailed  StepStatus = "failed"
	StatusSkipped StepStatus = "skipped"
)

// StepResult records one attempted step. Reason is populated for failures
// and for skips.
type StepResult struct {
	Name       string     `json:"name"`
	Status     StepStatus `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	DurationMs int64      `json:"duration_ms"`
}

// RunReport aggregates every step attempted during one bake run, including
// the failed step of an aborted run. Steps after an abort never appear.
type RunReport struct {
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []StepResult `json:"results"`
}

// Ok reports whether every attempted step succeeded or was skipped.
func (r *RunReport) Ok() bool {
	for _, result := range r.Results {
		if result.Status == StatusFailed {
			return false
		}
	}
	return true
}

// FailedStep returns the failing step result, if any.
func (r *RunReport) FailedStep() *StepResult {
	for i := range r.Results {
		if r.Results[i].Status == StatusFailed {
			return &r.Results[i]
		}
	}
	return nil
}

// Summary renders a compact one-line description for logs.
func (r *RunReport) Summary() string {
	parts := make([]string, 0, len(r.Results))
	for _, result := range r.Results {
		part := result.Name + "=" + string(result.Status)
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}

// JSON serializes the report for the deploy-run log.
func (r *RunReport) JSON() (string, error) {
	encoded, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("baker: encode run report: %w", err)
	}
	return string(encoded), nil
}
