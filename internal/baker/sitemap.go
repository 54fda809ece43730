package baker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-baker/internal/baker/paths"
	"github.com/goliatone/go-baker/internal/domain"
	"github.com/goliatone/go-baker/pkg/interfaces"
)

// sitemapStep emits sitemap.xml listing every public entity URL. Site-wide:
// a narrow scope cannot know the full URL set.
type sitemapStep struct {
	catalog interfaces.EntityCatalog
	urls    *paths.PublicURLs
	now     func() time.Time
}

// NewSitemapStep builds the sitemap bake step.
func NewSitemapStep(catalog interfaces.EntityCatalog, urls *paths.PublicURLs, now func() time.Time) Step {
	if now == nil {
		now = time.Now
	}
	return &sitemapStep{catalog: catalog, urls: urls, now: now}
}

func (s *sitemapStep) Name() string { return StepSitemap }

func (s *sitemapStep) Applicable(scope domain.Scope) bool {
	return scope.IsFullSite()
}

func (s *sitemapStep) Run(ctx context.Context, run *Run) error {
	var locations []string
	for _, kind := range interfaces.Kinds() {
		refs, err := s.catalog.List(ctx, kind)
		if err != nil {
			return fmt.Errorf("list %s entities: %w", kind, err)
		}
		for _, ref := range refs {
			if strings.TrimSpace(ref.Slug) == "" {
				continue
			}
			location, err := s.urls.EntityURL(kind, ref.Slug)
			if err != nil {
				return err
			}
			locations = append(locations, location)
		}
	}
	content := buildSitemap(locations, s.now().UTC())
	return writeStagingFile(run.Staging, "sitemap.xml", []byte(content))
}

// robotsStep emits robots.txt pointing crawlers at the sitemap.
type robotsStep struct {
	urls *paths.PublicURLs
}

// NewRobotsStep builds the robots.txt bake step.
func NewRobotsStep(urls *paths.PublicURLs) Step {
	return &robotsStep{urls: urls}
}

func (s *robotsStep) Name() string { return StepRobots }

func (s *robotsStep) Applicable(scope domain.Scope) bool {
	return scope.IsFullSite()
}

func (s *robotsStep) Run(_ context.Context, run *Run) error {
	sitemapURL, err := s.urls.SitemapURL()
	if err != nil {
		return err
	}
	return writeStagingFile(run.Staging, "robots.txt", []byte(buildRobots(sitemapURL)))
}

func buildSitemap(locations []string, lastMod time.Time) string {
	unique := make([]string, 0, len(locations))
	seen := map[string]struct{}{}
	for _, location := range locations {
		if _, ok := seen[location]; ok {
			continue
		}
		seen[location] = struct{}{}
		unique = append(unique, location)
	}
	sort.Strings(unique)

	var builder strings.Builder
	builder.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	builder.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
	for _, location := range unique {
		builder.WriteString("  <url>\n")
		builder.WriteString(fmt.Sprintf("    <loc>%s</loc>\n", location))
		if !lastMod.IsZero() {
			builder.WriteString(fmt.Sprintf("    <lastmod>%s</lastmod>\n", lastMod.Format(time.RFC3339)))
		}
		builder.WriteString("  </url>\n")
	}
	builder.WriteString(`</urlset>` + "\n")
	return builder.String()
}

func buildRobots(sitemapURL string) string {
	var builder strings.Builder
	builder.WriteString("User-agent: *\n")
	builder.WriteString("Allow: /\n")
	if sitemapURL != "" {
		builder.WriteString("\n")
		builder.WriteString(fmt.Sprintf("Sitemap: %s\n", sitemapURL))
	}
	return builder.String()
}

func buildRedirects(redirects []interfaces.Redirect) string {
	sorted := append([]interfaces.Redirect(nil), redirects...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Source < sorted[j].Source
	})

	var builder strings.Builder
	for _, redirect := range sorted {
		source := strings.TrimSpace(redirect.Source)
		target := strings.TrimSpace(redirect.Target)
		if source == "" || target == "" {
			continue
		}
		code := redirect.Code
		if code == 0 {
			code = 301
		}
		builder.WriteString(fmt.Sprintf("%s %s %d\n", source, target, code))
	}
	return builder.String()
}
