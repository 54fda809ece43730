package baker

import (
	"errors"
	"time"

	"github.com/goliatone/go-baker/internal/archive"
	"github.com/goliatone/go-baker/internal/baker/paths"
	"github.com/goliatone/go-baker/pkg/interfaces"
)

// Dependencies are the collaborators the default step set is built over.
type Dependencies struct {
	Catalog   interfaces.EntityCatalog
	Snapshots *archive.SnapshotBuilder
	Redirects interfaces.RedirectSource
	Posts     interfaces.PostSource
	URLs      *paths.PublicURLs
	Clock     func() time.Time
}

// DefaultSteps assembles the standard bake order: entity kinds first, then
// the site-wide surfaces that depend on them.
func DefaultSteps(deps Dependencies) ([]Step, error) {
	if deps.Catalog == nil {
		return nil, errors.New("baker: default steps require an entity catalog")
	}
	if deps.Snapshots == nil {
		return nil, errors.New("baker: default steps require a snapshot builder")
	}
	if deps.Redirects == nil {
		return nil, errors.New("baker: default steps require a redirect source")
	}
	if deps.Posts == nil {
		return nil, errors.New("baker: default steps require a post source")
	}
	if deps.URLs == nil {
		return nil, errors.New("baker: default steps require a url builder")
	}

	return []Step{
		NewEntityStep(StepCharts, interfaces.KindChart, deps.Catalog, deps.Snapshots),
		NewEntityStep(StepMultiDims, interfaces.KindMultiDim, deps.Catalog, deps.Snapshots),
		NewEntityStep(StepExplorers, interfaces.KindExplorer, deps.Catalog, deps.Snapshots),
		NewEntityStep(StepPosts, interfaces.KindPost, deps.Catalog, deps.Snapshots),
		NewRedirectsStep(deps.Redirects),
		NewSearchIndexStep(deps.Posts, deps.URLs),
		NewFeedStep(deps.Posts, deps.URLs, deps.Clock),
		NewSitemapStep(deps.Catalog, deps.URLs, deps.Clock),
		NewRobotsStep(deps.URLs),
	}, nil
}
