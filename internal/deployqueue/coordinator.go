package deployqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-baker/internal/baker"
	"github.com/goliatone/go-baker/internal/deployer"
	"github.com/goliatone/go-baker/internal/deploylog"
	"github.com/goliatone/go-baker/internal/domain"
	"github.com/goliatone/go-baker/internal/logging"
	"github.com/goliatone/go-baker/pkg/interfaces"
)

// State names the coordinator's position in its build lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateAccumulating State = "accumulating"
	StateBuilding     State = "building"
)

// ErrClosed indicates the coordinator no longer accepts work.
var ErrClosed = errors.New("deployqueue: coordinator closed")

// Builder runs one full bake+publish cycle for a frozen request. The
// coordinator guarantees at most one Execute call is in flight at a time.
type Builder interface {
	Execute(ctx context.Context, request domain.BuildRequest) (*Outcome, error)
}

// Outcome is what a successful (or partially attempted) cycle produced.
type Outcome struct {
	Report  *baker.RunReport
	Release *deployer.Release
}

// RunResult reports one completed build+deploy cycle to its waiters. Report
// is populated even for failed runs so operators can diagnose without
// re-running.
type RunResult struct {
	RunID      uuid.UUID
	Request    domain.BuildRequest
	Report     *baker.RunReport
	Release    *deployer.Release
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// pendingBatch accumulates coalesced change events between builds. Owned
// exclusively by the coordinator under its mutex.
type pendingBatch struct {
	scope    domain.Scope
	messages []string
	authors  []string
	earliest time.Time
	latest   time.Time
	urgent   bool
	waiters  []chan *RunResult
}

func (b *pendingBatch) merge(event domain.ChangeEvent) {
	b.scope = b.scope.Merge(event.Scope)
	if msg := event.Message; msg != "" {
		b.messages = append(b.messages, msg)
	}
	if event.AuthorName != "" {
		b.authors = append(b.authors, event.AuthorName)
	}
	occurred := event.OccurredAt
	if !occurred.IsZero() {
		if b.earliest.IsZero() || occurred.Before(b.earliest) {
			b.earliest = occurred
		}
		if b.latest.IsZero() || occurred.After(b.latest) {
			b.latest = occurred
		}
	}
	if event.Urgent {
		b.urgent = true
	}
}

func (b *pendingBatch) freeze() domain.BuildRequest {
	return domain.BuildRequest{
		Scope:              b.scope,
		Messages:           b.messages,
		Authors:            b.authors,
		EarliestOccurredAt: b.earliest,
		LatestOccurredAt:   b.latest,
	}
}

// Coordinator serializes build+deploy cycles over a stream of change events:
// at most one cycle in flight, a debounce window collapsing edit bursts into
// one build, and coalescing of events that arrive mid-build into the next
// batch. Failures are surfaced, never retried automatically.
type Coordinator struct {
	builder  Builder
	recorder deploylog.Recorder
	logger   interfaces.Logger
	now      func() time.Time

	enabled      bool
	debounce     time.Duration
	buildTimeout time.Duration

	mu      sync.Mutex
	state   State
	pending *pendingBatch
	timer   *time.Timer
	closed  bool
	wg      sync.WaitGroup
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithEnabled toggles the build-on-change switch. When disabled, enqueued
// events are logged and dropped.
func WithEnabled(enabled bool) Option {
	return func(c *Coordinator) {
		c.enabled = enabled
	}
}

// WithDebounce sets the quiet period after the first event of a batch.
func WithDebounce(debounce time.Duration) Option {
	return func(c *Coordinator) {
		if debounce >= 0 {
			c.debounce = debounce
		}
	}
}

// WithBuildTimeout bounds the total duration of one build+deploy cycle.
// Zero disables the timeout.
func WithBuildTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		if timeout >= 0 {
			c.buildTimeout = timeout
		}
	}
}

// WithRecorder attaches the deploy-run log.
func WithRecorder(recorder deploylog.Recorder) Option {
	return func(c *Coordinator) {
		c.recorder = recorder
	}
}

// WithLogger attaches a logger to the coordinator.
func WithLogger(logger interfaces.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the coordinator clock.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.now = clock
		}
	}
}

// New creates an idle coordinator.
func New(builder Builder, opts ...Option) (*Coordinator, error) {
	if builder == nil {
		return nil, errors.New("deployqueue: coordinator requires a builder")
	}
	coordinator := &Coordinator{
		builder:  builder,
		logger:   logging.NoOp(),
		now:      time.Now,
		enabled:  true,
		debounce: 10 * time.Second,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(coordinator)
	}
	return coordinator, nil
}

// State returns the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// EnqueueChange accepts one change event. Non-blocking: the event is merged
// into the pending batch and the build starts later, after the debounce
// window (or immediately for urgent events). Events arriving while a build
// is in flight coalesce into the next batch, never into the frozen one.
func (c *Coordinator) EnqueueChange(event domain.ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Warn("queue.event.dropped", "reason", "coordinator closed")
		return
	}
	if !c.enabled {
		c.logger.Info("queue.event.ignored",
			"reason", "build on change disabled",
			"scope", event.Scope.Summary(),
		)
		return
	}

	c.mergeLocked(event)

	if c.state == StateBuilding {
		// Picked up when the in-flight build completes.
		return
	}
	if c.pending.urgent {
		c.stopTimerLocked()
		c.startBuildLocked()
		return
	}
	if c.state == StateIdle {
		c.state = StateAccumulating
		c.armTimerLocked()
	}
}

// TriggerNow merges an urgent event and waits for the build+deploy cycle
// that incorporates it, returning that cycle's result. Used by the operator
// CLI, whose exit status must reflect the eventual outcome.
func (c *Coordinator) TriggerNow(ctx context.Context, event domain.ChangeEvent) (*RunResult, error) {
	event.Urgent = true

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if !c.enabled {
		c.mu.Unlock()
		return nil, errors.New("deployqueue: build on change is disabled")
	}

	c.mergeLocked(event)
	done := make(chan *RunResult, 1)
	c.pending.waiters = append(c.pending.waiters, done)

	if c.state != StateBuilding {
		c.stopTimerLocked()
		c.startBuildLocked()
	}
	c.mu.Unlock()

	select {
	case result := <-done:
		return result, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("deployqueue: waiting for build: %w", ctx.Err())
	}
}

// Close stops accepting events and waits for any in-flight build to finish.
// A pending batch that never started building is dropped.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	if c.pending != nil {
		for _, waiter := range c.pending.waiters {
			waiter <- &RunResult{Err: ErrClosed}
		}
		c.pending = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Coordinator) mergeLocked(event domain.ChangeEvent) {
	if c.pending == nil {
		c.pending = &pendingBatch{}
	}
	c.pending.merge(event)
}

func (c *Coordinator) armTimerLocked() {
	if c.timer != nil {
		return
	}
	c.timer = time.AfterFunc(c.debounce, c.debounceElapsed)
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coordinator) debounceElapsed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timer = nil
	if c.closed || c.state != StateAccumulating || c.pending == nil {
		return
	}
	c.startBuildLocked()
}

// startBuildLocked freezes the pending batch and launches the cycle. The
// request's scope is frozen for the build's whole duration; anything that
// arrives meanwhile lands in a fresh pending batch.
func (c *Coordinator) startBuildLocked() {
	batch := c.pending
	c.pending = nil
	c.state = StateBuilding

	request := batch.freeze()
	waiters := batch.waiters

	c.logger.Info("queue.build.started",
		"scope", request.Scope.Summary(),
		"messages", len(request.Messages),
	)

	c.wg.Add(1)
	go c.runBuild(request, waiters)
}

func (c *Coordinator) runBuild(request domain.BuildRequest, waiters []chan *RunResult) {
	defer c.wg.Done()

	ctx := context.Background()
	cancel := func() {}
	if c.buildTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.buildTimeout)
	}
	defer cancel()

	result := &RunResult{
		Request:   request,
		StartedAt: c.now().UTC(),
	}
	outcome, err := c.builder.Execute(ctx, request)
	result.FinishedAt = c.now().UTC()
	result.Err = err
	if outcome != nil {
		result.Report = outcome.Report
		result.Release = outcome.Release
	}

	c.record(result)

	if err != nil {
		c.logger.Error("queue.build.failed",
			"scope", request.Scope.Summary(),
			"error", err.Error(),
		)
	} else {
		c.logger.Info("queue.build.succeeded",
			"scope", request.Scope.Summary(),
			"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		)
	}

	for _, waiter := range waiters {
		waiter <- result
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		c.state = StateIdle
	case c.pending == nil:
		c.state = StateIdle
	case c.pending.urgent:
		c.startBuildLocked()
	default:
		c.state = StateAccumulating
		c.armTimerLocked()
	}
}

// record appends the cycle to the deploy-run log. Logging failures must not
// mask the build result.
func (c *Coordinator) record(result *RunResult) {
	if c.recorder == nil {
		return
	}

	run := &deploylog.DeployRun{
		ScopeSummary:  result.Request.Scope.Summary(),
		CommitMessage: result.Request.CommitMessage(),
		Status:        deploylog.StatusSuccess,
		StartedAt:     result.StartedAt,
		FinishedAt:    result.FinishedAt,
		DurationMs:    result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	}
	if result.Err != nil {
		run.Status = deploylog.StatusFailed
		run.Error = result.Err.Error()
	}
	if result.Release != nil {
		run.ReleasePath = result.Release.Path
	}
	if result.Report != nil {
		if encoded, err := result.Report.JSON(); err == nil {
			run.StepReport = encoded
		}
	}

	recorded, err := c.recorder.RecordRun(context.Background(), run)
	if err != nil {
		c.logger.Error("queue.run.record_failed", "error", err.Error())
		return
	}
	result.RunID = recorded.ID
}
