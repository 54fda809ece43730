package baker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-billy/v5"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-baker/internal/domain"
	"github.com/goliatone/go-baker/internal/logging"
	"github.com/goliatone/go-baker/pkg/interfaces"
)

const unknownStepCode = "BAKE_STEP_UNKNOWN"

// ErrUnknownStep indicates a run requested a step name the pipeline does not
// declare. Rejected before any step executes.
var ErrUnknownStep = errors.New("baker: unknown step")

// Run carries the per-invocation state handed to each step. The staging
// filesystem is exclusive to the in-flight build.
type Run struct {
	Scope   domain.Scope
	Staging billy.Filesystem
}

// Step is one named unit of site generation. Steps must be safe to re-run
// against the same staging directory: they either overwrite deterministically
// or no-op on repeat.
type Step interface {
	Name() string
	// Applicable reports whether the step has work under the given scope.
	// Inapplicable steps are recorded as skipped, never as failed.
	Applicable(scope domain.Scope) bool
	Run(ctx context.Context, run *Run) error
}

// Pipeline executes an explicit, ordered list of named steps. Dependency
// order is encoded by list order, not inferred.
type Pipeline struct {
	steps  []Step
	byName map[string]Step
	now    func() time.Time
	logger interfaces.Logger
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineClock overrides the pipeline clock.
func WithPipelineClock(clock func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if clock != nil {
			p.now = clock
		}
	}
}

// WithPipelineLogger attaches a logger to the pipeline.
func WithPipelineLogger(logger interfaces.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline builds a pipeline over the declared steps, preserving order.
func NewPipeline(steps []Step, opts ...PipelineOption) (*Pipeline, error) {
	if len(steps) == 0 {
		return nil, errors.New("baker: pipeline requires at least one step")
	}
	byName := make(map[string]Step, len(steps))
	for _, step := range steps {
		name := step.Name()
		if name == "" {
			return nil, errors.New("baker: step with empty name")
		}
		if _, exists := byName[name]; exists {
			return nil, fmt.Errorf("baker: duplicate step %q", name)
		}
		byName[name] = step
	}

	pipeline := &Pipeline{
		steps:  steps,
		byName: byName,
		now:    time.Now,
		logger: logging.NoOp(),
	}
	for _, opt := range opts {
		opt(pipeline)
	}
	return pipeline, nil
}

// StepNames lists the declared steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, len(p.steps))
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	return names
}

// Run executes every declared step in order. See RunSteps.
func (p *Pipeline) Run(ctx context.Context, scope domain.Scope, staging billy.Filesystem) (*RunReport, error) {
	return p.RunSteps(ctx, scope, staging, nil)
}

// RunSteps executes the named subset of steps in declared order; nil or empty
// names means all steps. Unknown names are rejected as a configuration error
// before any step runs. Execution is fail-fast: the first failing step aborts
// the run, later steps do not execute, and the staging directory is left
// as-is for diagnosis. The returned report covers every attempted step even
// on abort.
func (p *Pipeline) RunSteps(ctx context.Context, scope domain.Scope, staging billy.Filesystem, names []string) (*RunReport, error) {
	selected, err := p.selectSteps(names)
	if err != nil {
		return nil, err
	}
	if staging == nil {
		return nil, errors.New("baker: run requires a staging filesystem")
	}

	run := &Run{Scope: scope, Staging: staging}
	report := &RunReport{StartedAt: p.now()}

	var failure error
	for _, step := range selected {
		if err := ctx.Err(); err != nil {
			failure = fmt.Errorf("baker: run aborted before step %s: %w", step.Name(), err)
			report.Results = append(report.Results, StepResult{
				Name:   step.Name(),
				Status: StatusFailed,
				Reason: err.Error(),
			})
			break
		}
		if !step.Applicable(scope) {
			report.Results = append(report.Results, StepResult{
				Name:   step.Name(),
				Status: StatusSkipped,
				Reason: "not applicable to scope " + scope.Summary(),
			})
			continue
		}

		started := p.now()
		err := step.Run(ctx, run)
		duration := p.now().Sub(started)
		if err != nil {
			failure = fmt.Errorf("baker: step %s: %w", step.Name(), err)
			report.Results = append(report.Results, StepResult{
				Name:       step.Name(),
				Status:     StatusFailed,
				Reason:     err.Error(),
				DurationMs: duration.Milliseconds(),
			})
			p.logger.Error("bake.step.failed",
				"step", step.Name(),
				"scope", scope.Summary(),
				"error", err.Error(),
			)
			break
		}
		report.Results = append(report.Results, StepResult{
			Name:       step.Name(),
			Status:     StatusOk,
			DurationMs: duration.Milliseconds(),
		})
		p.logger.Debug("bake.step.done",
			"step", step.Name(),
			"duration_ms", duration.Milliseconds(),
		)
	}
	report.FinishedAt = p.now()

	if failure != nil {
		return report, failure
	}
	return report, nil
}

func (p *Pipeline) selectSteps(names []string) ([]Step, error) {
	if len(names) == 0 {
		return p.steps, nil
	}
	requested := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := p.byName[name]; !ok {
			return nil, goerrors.Wrap(
				fmt.Errorf("%w: %q", ErrUnknownStep, name),
				goerrors.CategoryValidation,
				"unknown bake step requested",
			).WithTextCode(unknownStepCode)
		}
		requested[name] = struct{}{}
	}

	// Preserve declared order regardless of the order names were given in.
	selected := make([]Step, 0, len(requested))
	for _, step := range p.steps {
		if _, ok := requested[step.Name()]; ok {
			selected = append(selected, step)
		}
	}
	return selected, nil
}
