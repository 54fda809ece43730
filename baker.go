package baker

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-baker/internal/archive"
	"github.com/goliatone/go-baker/internal/artifacts"
	pipeline "github.com/goliatone/go-baker/internal/baker"
	"github.com/goliatone/go-baker/internal/baker/paths"
	"github.com/goliatone/go-baker/internal/commands"
	"github.com/goliatone/go-baker/internal/commands/deploycmd"
	"github.com/goliatone/go-baker/internal/deployer"
	"github.com/goliatone/go-baker/internal/deploylog"
	"github.com/goliatone/go-baker/internal/deployqueue"
	"github.com/goliatone/go-baker/internal/domain"
	"github.com/goliatone/go-baker/internal/logging"
	"github.com/goliatone/go-baker/internal/storage"
	"github.com/goliatone/go-baker/internal/validation"
	"github.com/goliatone/go-baker/pkg/interfaces"
)

// Re-exported contracts for consumers of the baker package.
type (
	ChangeEvent     = domain.ChangeEvent
	Scope           = domain.Scope
	BuildRequest    = domain.BuildRequest
	EntityKind      = interfaces.EntityKind
	EntityRef       = interfaces.EntityRef
	EntityRenderer  = interfaces.EntityRenderer
	EntityCatalog   = interfaces.EntityCatalog
	PostSource      = interfaces.PostSource
	RedirectSource  = interfaces.RedirectSource
	ArchivalVersion = archive.ArchivalVersion
	DeployRun       = deploylog.DeployRun
	RunResult       = deployqueue.RunResult
	RunReport       = pipeline.RunReport
	Release         = deployer.Release
)

// Entity kinds the baker archives and bakes.
const (
	KindChart    = interfaces.KindChart
	KindMultiDim = interfaces.KindMultiDim
	KindExplorer = interfaces.KindExplorer
	KindPost     = interfaces.KindPost
)

// FullSiteScope returns the scope covering every entity and site surface.
func FullSiteScope() Scope { return domain.FullSiteScope() }

// EntityScope returns a scope limited to the supplied entities.
func EntityScope(refs ...EntityRef) Scope { return domain.EntityScope(refs...) }

// Collaborators are the platform services the baker consumes but does not
// provide: rendering, entity enumeration, redirects, and post sources live in
// the publishing platform that embeds this module.
type Collaborators struct {
	Renderer  interfaces.EntityRenderer
	Catalog   interfaces.EntityCatalog
	Redirects interfaces.RedirectSource
	Posts     interfaces.PostSource

	// ConfigSchema optionally validates renderer-reported entity
	// configuration before it is hashed and archived. Nil or empty accepts
	// every payload.
	ConfigSchema map[string]any

	// Logger is optional; absent, the module logs nothing.
	Logger interfaces.LoggerProvider
}

func (c Collaborators) validate() error {
	if c.Renderer == nil {
		return errors.New("baker: collaborators require an entity renderer")
	}
	if c.Catalog == nil {
		return errors.New("baker: collaborators require an entity catalog")
	}
	if c.Redirects == nil {
		return errors.New("baker: collaborators require a redirect source")
	}
	if c.Posts == nil {
		return errors.New("baker: collaborators require a post source")
	}
	return nil
}

// Option overrides a default collaborator on the module.
type Option func(*moduleOptions)

type moduleOptions struct {
	staging billy.Filesystem
	archive billy.Filesystem
	target  billy.Filesystem
}

// WithStagingFS replaces the staging filesystem (default: osfs over
// Config.StagingDir).
func WithStagingFS(fs billy.Filesystem) Option {
	return func(o *moduleOptions) {
		o.staging = fs
	}
}

// WithArchiveFS replaces the archival artifact filesystem (default: osfs over
// Config.ArchiveDir).
func WithArchiveFS(fs billy.Filesystem) Option {
	return func(o *moduleOptions) {
		o.archive = fs
	}
}

// WithTargetFS replaces the deploy target filesystem (default: osfs over
// Config.Deploy.TargetDir). Network-backed implementations should wrap
// retryable failures with deployer.MarkTransient so the bounded-backoff
// retry applies.
func WithTargetFS(fs billy.Filesystem) Option {
	return func(o *moduleOptions) {
		o.target = fs
	}
}

// Module is the top level baker runtime façade: archival store, bake
// pipeline, deploy queue, and remote deployer wired over one configuration.
type Module struct {
	cfg         Config
	db          *bun.DB
	staging     billy.Filesystem
	urls        *paths.PublicURLs
	store       *archive.BunStore
	snapshots   *archive.SnapshotBuilder
	pipeline    *pipeline.Pipeline
	deployer    *deployer.Deployer
	recorder    deploylog.Recorder
	coordinator *deployqueue.Coordinator
}

// New constructs a baker module from configuration and platform
// collaborators. The caller owns schema setup (see GetMigrationsFS) and must
// Close the module to drain in-flight builds.
func New(cfg Config, collab Collaborators, opts ...Option) (*Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := collab.validate(); err != nil {
		return nil, err
	}

	options := moduleOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.staging == nil {
		options.staging = osfs.New(cfg.StagingDir)
	}
	if options.archive == nil {
		options.archive = osfs.New(cfg.ArchiveDir)
	}
	if options.target == nil {
		options.target = osfs.New(cfg.Deploy.TargetDir)
	}

	db, err := storage.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, err
	}

	module, err := build(cfg, collab, db, options.staging, options.archive, options.target)
	if err != nil {
		db.Close()
		return nil, err
	}
	return module, nil
}

func build(cfg Config, collab Collaborators, db *bun.DB, staging, archiveFS, target billy.Filesystem) (*Module, error) {
	urls, err := paths.New(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	writer, err := artifacts.NewWriter(archiveFS)
	if err != nil {
		return nil, err
	}

	validator, err := validation.NewValidator(collab.ConfigSchema)
	if err != nil {
		return nil, err
	}

	store := archive.NewBunStore(db, archive.WithLogger(logging.ArchiveLogger(collab.Logger)))
	snapshots, err := archive.NewSnapshotBuilder(store, collab.Renderer, writer,
		archive.WithSnapshotLogger(logging.ArchiveLogger(collab.Logger)),
		archive.WithConfigValidator(validator),
	)
	if err != nil {
		return nil, err
	}

	steps, err := pipeline.DefaultSteps(pipeline.Dependencies{
		Catalog:   collab.Catalog,
		Snapshots: snapshots,
		Redirects: collab.Redirects,
		Posts:     collab.Posts,
		URLs:      urls,
	})
	if err != nil {
		return nil, err
	}
	pipe, err := pipeline.NewPipeline(steps, pipeline.WithPipelineLogger(logging.PipelineLogger(collab.Logger)))
	if err != nil {
		return nil, err
	}

	publisher, err := deployer.New(target,
		deployer.WithRetry(cfg.Deploy.MaxAttempts, cfg.Deploy.InitialBackoff),
		deployer.WithLogger(logging.DeployLogger(collab.Logger)),
	)
	if err != nil {
		return nil, err
	}

	recorder := deploylog.NewBunRecorder(db)

	builder := &cycleBuilder{
		pipeline: pipe,
		deployer: publisher,
		staging:  staging,
		steps:    cfg.Steps,
	}
	coordinator, err := deployqueue.New(builder,
		deployqueue.WithEnabled(cfg.Enabled),
		deployqueue.WithDebounce(cfg.Debounce),
		deployqueue.WithBuildTimeout(cfg.BuildTimeout),
		deployqueue.WithRecorder(recorder),
		deployqueue.WithLogger(logging.QueueLogger(collab.Logger)),
	)
	if err != nil {
		return nil, err
	}

	return &Module{
		cfg:         cfg,
		db:          db,
		staging:     staging,
		urls:        urls,
		store:       store,
		snapshots:   snapshots,
		pipeline:    pipe,
		deployer:    publisher,
		recorder:    recorder,
		coordinator: coordinator,
	}, nil
}

// cycleBuilder runs one bake+publish cycle: the pipeline bakes the frozen
// scope into staging, then the deployer publishes the staged tree. The
// coordinator serializes calls, so the staging tree is never written
// concurrently.
type cycleBuilder struct {
	pipeline *pipeline.Pipeline
	deployer *deployer.Deployer
	staging  billy.Filesystem
	steps    []string
}

func (b *cycleBuilder) Execute(ctx context.Context, request domain.BuildRequest) (*deployqueue.Outcome, error) {
	report, err := b.pipeline.RunSteps(ctx, request.Scope, b.staging, b.steps)
	if err != nil {
		return &deployqueue.Outcome{Report: report}, err
	}
	release, err := b.deployer.Publish(ctx, b.staging)
	if err != nil {
		return &deployqueue.Outcome{Report: report}, fmt.Errorf("baker: publish: %w", err)
	}
	return &deployqueue.Outcome{Report: report, Release: release}, nil
}

// EnqueueChange reports a persisted content mutation. Non-blocking; the
// build runs after the debounce window, coalesced with neighbouring events.
func (m *Module) EnqueueChange(event ChangeEvent) {
	m.coordinator.EnqueueChange(event)
}

// TriggerNow forces an immediate build incorporating the supplied event and
// waits for its outcome.
func (m *Module) TriggerNow(ctx context.Context, event ChangeEvent) (*RunResult, error) {
	return m.coordinator.TriggerNow(ctx, event)
}

// QueueState reports the deploy queue lifecycle state.
func (m *Module) QueueState() deployqueue.State {
	return m.coordinator.State()
}

// LatestArchivalVersion returns the newest archival record for an entity.
func (m *Module) LatestArchivalVersion(ctx context.Context, kind EntityKind, entityID uuid.UUID) (*ArchivalVersion, error) {
	return m.store.GetLatest(ctx, kind, entityID)
}

// ArchivalVersionsByHash returns every archival record of a kind whose input
// hash matches, oldest first.
func (m *Module) ArchivalVersionsByHash(ctx context.Context, kind EntityKind, hashOfInputs string) ([]*ArchivalVersion, error) {
	return m.store.FindByHash(ctx, kind, hashOfInputs)
}

// ListRecentRuns returns the newest deploy runs, most recent first.
func (m *Module) ListRecentRuns(ctx context.Context, limit int) ([]*DeployRun, error) {
	return m.recorder.ListRecent(ctx, limit)
}

// GetRun returns one recorded deploy run.
func (m *Module) GetRun(ctx context.Context, id uuid.UUID) (*DeployRun, error) {
	return m.recorder.GetByID(ctx, id)
}

// CurrentRelease reports the release path the live site currently serves.
func (m *Module) CurrentRelease() (string, error) {
	return m.deployer.CurrentRelease()
}

// StepNames lists the bake steps in execution order.
func (m *Module) StepNames() []string {
	return m.pipeline.StepNames()
}

// DB exposes the archival database for schema management.
func (m *Module) DB() *bun.DB {
	return m.db
}

// Commands bundles the message handlers the embedding platform dispatches.
type Commands struct {
	EnqueueChange *deploycmd.EnqueueChangeHandler
	BakeSite      *deploycmd.BakeSiteHandler
}

// Commands returns handlers wired to this module's deploy queue. The bake
// handler's timeout follows the configured build timeout because it waits for
// the whole cycle.
func (m *Module) Commands(logger interfaces.Logger) Commands {
	return Commands{
		EnqueueChange: deploycmd.NewEnqueueChangeHandler(m.coordinator, logger),
		BakeSite: deploycmd.NewBakeSiteHandler(m.coordinator, logger,
			commands.WithTimeout[deploycmd.BakeSiteCommand](m.cfg.BuildTimeout)),
	}
}

// Close stops accepting change events, waits for any in-flight build, and
// closes the archival database.
func (m *Module) Close() error {
	m.coordinator.Close()
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
