package paths

import (
	"fmt"
	"strings"

	urlkit "github.com/goliatone/go-urlkit"

	"github.com/goliatone/go-baker/pkg/interfaces"
)

const siteGroup = "site"

const (
	routeChart    = "chart"
	routeMultiDim = "multi-dim"
	routeExplorer = "explorer"
	routePost     = "post"
	routeSitemap  = "sitemap"
	routeFeed     = "feed"
)

// PublicURLs builds absolute public URLs for baked entities and site surfaces
// from a single route-group configuration.
type PublicURLs struct {
	manager *urlkit.RouteManager
	baseURL string
}

// New creates a URL builder rooted at the public base URL. Charts and
// multi-dimensional pages share the /grapher namespace; explorers live under
// /explorers; posts are published at the site root.
func New(baseURL string) (*PublicURLs, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("paths: base url is required")
	}

	manager := urlkit.NewRouteManager(&urlkit.Config{
		Groups: []urlkit.GroupConfig{
			{
				Name:    siteGroup,
				BaseURL: base,
				Paths: map[string]string{
					routeChart:    "/grapher/:slug",
					routeMultiDim: "/grapher/:slug",
					routeExplorer: "/explorers/:slug",
					routePost:     "/:slug",
					routeSitemap:  "/sitemap.xml",
					routeFeed:     "/atom.xml",
				},
			},
		},
	})

	return &PublicURLs{manager: manager, baseURL: base}, nil
}

// BaseURL returns the configured public base URL without a trailing slash.
func (p *PublicURLs) BaseURL() string {
	return p.baseURL
}

// EntityURL returns the public URL for one baked entity.
func (p *PublicURLs) EntityURL(kind interfaces.EntityKind, slug string) (string, error) {
	route, err := routeForKind(kind)
	if err != nil {
		return "", err
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return "", fmt.Errorf("paths: %s url requires a slug", kind)
	}

	builder, err := p.builder(route)
	if err != nil {
		return "", err
	}
	return builder.WithParam("slug", slug).Build()
}

// SitemapURL returns the public URL of the sitemap.
func (p *PublicURLs) SitemapURL() (string, error) {
	builder, err := p.builder(routeSitemap)
	if err != nil {
		return "", err
	}
	return builder.Build()
}

// FeedURL returns the public URL of the atom feed.
func (p *PublicURLs) FeedURL() (string, error) {
	builder, err := p.builder(routeFeed)
	if err != nil {
		return "", err
	}
	return builder.Build()
}

func routeForKind(kind interfaces.EntityKind) (string, error) {
	switch kind {
	case interfaces.KindChart:
		return routeChart, nil
	case interfaces.KindMultiDim:
		return routeMultiDim, nil
	case interfaces.KindExplorer:
		return routeExplorer, nil
	case interfaces.KindPost:
		return routePost, nil
	}
	return "", fmt.Errorf("paths: unknown entity kind %q", kind)
}

// builder shields callers from urlkit panics on unknown groups or routes.
func (p *PublicURLs) builder(route string) (builder *urlkit.Builder, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("paths: route %q not configured: %v", route, rec)
		}
	}()
	builder = p.manager.Group(siteGroup).Builder(route)
	return builder, err
}
