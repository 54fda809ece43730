package baker

import (
	"context"
	"fmt"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/goliatone/go-baker/internal/archive"
	"github.com/goliatone/go-baker/internal/domain"
	"github.com/goliatone/go-baker/pkg/interfaces"
)

// Step names, in default execution order.
const (
	StepCharts      = "charts"
	StepMultiDims   = "multidims"
	StepExplorers   = "explorers"
	StepPosts       = "posts"
	StepRedirects   = "redirects"
	StepSearchIndex = "search-index"
	StepFeed        = "atom-feed"
	StepSitemap     = "sitemap"
	StepRobots      = "robots"
)

// entityStep archives and stages one entity kind. The archival side is
// idempotent through the snapshot builder; the staging side overwrites
// deterministically, which keeps the step restart-safe.
type entityStep struct {
	name      string
	kind      interfaces.EntityKind
	catalog   interfaces.EntityCatalog
	snapshots *archive.SnapshotBuilder
}

// NewEntityStep builds the bake step for one archivable entity kind.
func NewEntityStep(name string, kind interfaces.EntityKind, catalog interfaces.EntityCatalog, snapshots *archive.SnapshotBuilder) Step {
	return &entityStep{
		name:      name,
		kind:      kind,
		catalog:   catalog,
		snapshots: snapshots,
	}
}

func (s *entityStep) Name() string { return s.name }

func (s *entityStep) Applicable(scope domain.Scope) bool {
	return scope.Includes(s.kind)
}

func (s *entityStep) Run(ctx context.Context, run *Run) error {
	refs, err := s.scopedRefs(ctx, run.Scope)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		outcome, err := s.snapshots.ArchiveIfChanged(ctx, s.kind, ref.ID)
		if err != nil {
			return err
		}
		if err := s.stage(run.Staging, outcome.Result); err != nil {
			return err
		}
	}
	return nil
}

func (s *entityStep) scopedRefs(ctx context.Context, scope domain.Scope) ([]interfaces.EntityRef, error) {
	if scope.IsFullSite() {
		refs, err := s.catalog.List(ctx, s.kind)
		if err != nil {
			return nil, fmt.Errorf("list %s entities: %w", s.kind, err)
		}
		return refs, nil
	}
	return scope.EntitiesOfKind(s.kind), nil
}

func (s *entityStep) stage(staging billy.Filesystem, result *interfaces.RenderResult) error {
	if result == nil {
		return nil
	}
	dir := publicDir(s.kind, result.Slug)
	for _, artifact := range result.Artifacts {
		target := path.Join(dir, artifact.LogicalName)
		if err := writeStagingFile(staging, target, artifact.Body); err != nil {
			return fmt.Errorf("stage %s: %w", target, err)
		}
	}
	return nil
}

// publicDir maps an entity to its public path prefix. Charts and
// multi-dimensional pages share the /grapher namespace; posts publish at the
// site root.
func publicDir(kind interfaces.EntityKind, slug string) string {
	switch kind {
	case interfaces.KindChart, interfaces.KindMultiDim:
		return path.Join("grapher", slug)
	case interfaces.KindExplorer:
		return path.Join("explorers", slug)
	default:
		return slug
	}
}

// redirectsStep bakes the platform's redirect table into a _redirects file at
// the staging root. Site-wide: a narrow scope cannot change redirects.
type redirectsStep struct {
	source interfaces.RedirectSource
}

// NewRedirectsStep builds the redirects bake step.
func NewRedirectsStep(source interfaces.RedirectSource) Step {
	return &redirectsStep{source: source}
}

func (s *redirectsStep) Name() string { return StepRedirects }

func (s *redirectsStep) Applicable(scope domain.Scope) bool {
	return scope.IsFullSite()
}

func (s *redirectsStep) Run(ctx context.Context, run *Run) error {
	redirects, err := s.source.ListRedirects(ctx)
	if err != nil {
		return fmt.Errorf("list redirects: %w", err)
	}
	return writeStagingFile(run.Staging, "_redirects", []byte(buildRedirects(redirects)))
}

func writeStagingFile(fs billy.Filesystem, target string, data []byte) error {
	if dir := path.Dir(target); dir != "." && dir != "/" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return util.WriteFile(fs, target, data, 0o644)
}
