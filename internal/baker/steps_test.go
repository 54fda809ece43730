package baker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"

	"github.com/goliatone/go-baker/internal/archive"
	"github.com/goliatone/go-baker/internal/artifacts"
	"github.com/goliatone/go-baker/internal/baker/paths"
	"github.com/goliatone/go-baker/internal/domain"
	"github.com/goliatone/go-baker/pkg/interfaces"
)

type fakeRenderer struct {
	results map[uuid.UUID]*interfaces.RenderResult
}

func (r *fakeRenderer) Render(_ context.Context, _ interfaces.EntityKind, id uuid.UUID) (*interfaces.RenderResult, error) {
	result, ok := r.results[id]
	if !ok {
		return nil, interfaces.ErrEntityNotFound
	}
	return result, nil
}

type fakeCatalog struct {
	refs map[interfaces.EntityKind][]interfaces.EntityRef
}

func (c *fakeCatalog) List(_ context.Context, kind interfaces.EntityKind) ([]interfaces.EntityRef, error) {
	return c.refs[kind], nil
}

type fakeRedirects struct {
	redirects []interfaces.Redirect
}

func (f *fakeRedirects) ListRedirects(context.Context) ([]interfaces.Redirect, error) {
	return f.redirects, nil
}

type fakePosts struct {
	sources []interfaces.PostSourceFile
}

func (f *fakePosts) ListPostSources(context.Context) ([]interfaces.PostSourceFile, error) {
	return f.sources, nil
}

func testURLs(t *testing.T) *paths.PublicURLs {
	t.Helper()
	urls, err := paths.New("https://ourworldindata.example")
	if err != nil {
		t.Fatalf("new urls: %v", err)
	}
	return urls
}

func TestEntityStepArchivesAndStages(t *testing.T) {
	ctx := context.Background()
	chartID := uuid.New()
	renderer := &fakeRenderer{results: map[uuid.UUID]*interfaces.RenderResult{
		chartID: {
			Slug: "life-expectancy",
			Artifacts: []interfaces.RenderedArtifact{
				{LogicalName: "index.html", Body: []byte("<html>chart</html>")},
			},
			Inputs: map[string]string{"config": "v1"},
		},
	}}
	store := archive.NewMemoryStore()
	writer, err := artifacts.NewWriter(memfs.New())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	snapshots, err := archive.NewSnapshotBuilder(store, renderer, writer)
	if err != nil {
		t.Fatalf("new snapshot builder: %v", err)
	}
	catalog := &fakeCatalog{refs: map[interfaces.EntityKind][]interfaces.EntityRef{
		interfaces.KindChart: {{Kind: interfaces.KindChart, ID: chartID, Slug: "life-expectancy"}},
	}}
	step := NewEntityStep(StepCharts, interfaces.KindChart, catalog, snapshots)

	staging := memfs.New()
	run := &Run{Scope: domain.FullSiteScope(), Staging: staging}
	if err := step.Run(ctx, run); err != nil {
		t.Fatalf("run: %v", err)
	}

	staged, err := util.ReadFile(staging, "grapher/life-expectancy/index.html")
	if err != nil {
		t.Fatalf("read staged chart: %v", err)
	}
	if string(staged) != "<html>chart</html>" {
		t.Fatalf("unexpected staged content %q", staged)
	}
	if store.Count(interfaces.KindChart) != 1 {
		t.Fatalf("expected 1 archival record, got %d", store.Count(interfaces.KindChart))
	}
}

func TestEntityStepUnchangedRebakeCreatesNoRecords(t *testing.T) {
	ctx := context.Background()
	chartID := uuid.New()
	renderer := &fakeRenderer{results: map[uuid.UUID]*interfaces.RenderResult{
		chartID: {
			Slug:      "co2",
			Artifacts: []interfaces.RenderedArtifact{{LogicalName: "index.html", Body: []byte("x")}},
			Inputs:    map[string]string{"config": "v1"},
		},
	}}
	store := archive.NewMemoryStore()
	writer, _ := artifacts.NewWriter(memfs.New())
	snapshots, err := archive.NewSnapshotBuilder(store, renderer, writer)
	if err != nil {
		t.Fatalf("new snapshot builder: %v", err)
	}
	catalog := &fakeCatalog{refs: map[interfaces.EntityKind][]interfaces.EntityRef{
		interfaces.KindChart: {{Kind: interfaces.KindChart, ID: chartID, Slug: "co2"}},
	}}
	step := NewEntityStep(StepCharts, interfaces.KindChart, catalog, snapshots)

	for i := 0; i < 2; i++ {
		run := &Run{Scope: domain.FullSiteScope(), Staging: memfs.New()}
		if err := step.Run(ctx, run); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if store.Count(interfaces.KindChart) != 1 {
		t.Fatalf("expected 1 archival record after re-bake, got %d", store.Count(interfaces.KindChart))
	}
}

func TestEntityStepNarrowScopeOnlyTouchesScopedEntities(t *testing.T) {
	ctx := context.Background()
	scopedID := uuid.New()
	otherID := uuid.New()
	renderer := &fakeRenderer{results: map[uuid.UUID]*interfaces.RenderResult{
		scopedID: {
			Slug:      "scoped",
			Artifacts: []interfaces.RenderedArtifact{{LogicalName: "index.html", Body: []byte("s")}},
			Inputs:    map[string]string{"config": "v1"},
		},
		otherID: {
			Slug:      "other",
			Artifacts: []interfaces.RenderedArtifact{{LogicalName: "index.html", Body: []byte("o")}},
			Inputs:    map[string]string{"config": "v1"},
		},
	}}
	store := archive.NewMemoryStore()
	writer, _ := artifacts.NewWriter(memfs.New())
	snapshots, err := archive.NewSnapshotBuilder(store, renderer, writer)
	if err != nil {
		t.Fatalf("new snapshot builder: %v", err)
	}
	catalog := &fakeCatalog{refs: map[interfaces.EntityKind][]interfaces.EntityRef{
		interfaces.KindChart: {
			{Kind: interfaces.KindChart, ID: scopedID, Slug: "scoped"},
			{Kind: interfaces.KindChart, ID: otherID, Slug: "other"},
		},
	}}
	step := NewEntityStep(StepCharts, interfaces.KindChart, catalog, snapshots)

	scope := domain.EntityScope(interfaces.EntityRef{Kind: interfaces.KindChart, ID: scopedID, Slug: "scoped"})
	run := &Run{Scope: scope, Staging: memfs.New()}
	if err := step.Run(ctx, run); err != nil {
		t.Fatalf("run: %v", err)
	}
	if store.Count(interfaces.KindChart) != 1 {
		t.Fatalf("expected only the scoped chart archived, got %d records", store.Count(interfaces.KindChart))
	}
}

func TestRedirectsStepWritesSortedTable(t *testing.T) {
	step := NewRedirectsStep(&fakeRedirects{redirects: []interfaces.Redirect{
		{Source: "/old-co2", Target: "/grapher/co2", Code: 302},
		{Source: "/about-us", Target: "/about"},
	}})
	staging := memfs.New()
	if err := step.Run(context.Background(), &Run{Scope: domain.FullSiteScope(), Staging: staging}); err != nil {
		t.Fatalf("run: %v", err)
	}
	content, err := util.ReadFile(staging, "_redirects")
	if err != nil {
		t.Fatalf("read redirects: %v", err)
	}
	want := "/about-us /about 301\n/old-co2 /grapher/co2 302\n"
	if string(content) != want {
		t.Fatalf("redirects = %q, want %q", content, want)
	}
}

func TestSitemapStepListsEveryPublicURL(t *testing.T) {
	catalog := &fakeCatalog{refs: map[interfaces.EntityKind][]interfaces.EntityRef{
		interfaces.KindChart: {{Kind: interfaces.KindChart, ID: uuid.New(), Slug: "life-expectancy"}},
		interfaces.KindPost:  {{Kind: interfaces.KindPost, ID: uuid.New(), Slug: "child-mortality"}},
	}}
	now := func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }
	step := NewSitemapStep(catalog, testURLs(t), now)

	staging := memfs.New()
	if err := step.Run(context.Background(), &Run{Scope: domain.FullSiteScope(), Staging: staging}); err != nil {
		t.Fatalf("run: %v", err)
	}
	content, err := util.ReadFile(staging, "sitemap.xml")
	if err != nil {
		t.Fatalf("read sitemap: %v", err)
	}
	out := string(content)
	if !strings.Contains(out, "<loc>https://ourworldindata.example/grapher/life-expectancy</loc>") {
		t.Fatalf("missing chart url in sitemap:\n%s", out)
	}
	if !strings.Contains(out, "<loc>https://ourworldindata.example/child-mortality</loc>") {
		t.Fatalf("missing post url in sitemap:\n%s", out)
	}
	if !strings.Contains(out, "<lastmod>2026-05-04T10:00:00Z</lastmod>") {
		t.Fatalf("missing lastmod in sitemap:\n%s", out)
	}
}

func TestRobotsStepPointsAtSitemap(t *testing.T) {
	step := NewRobotsStep(testURLs(t))
	staging := memfs.New()
	if err := step.Run(context.Background(), &Run{Scope: domain.FullSiteScope(), Staging: staging}); err != nil {
		t.Fatalf("run: %v", err)
	}
	content, err := util.ReadFile(staging, "robots.txt")
	if err != nil {
		t.Fatalf("read robots: %v", err)
	}
	if !strings.Contains(string(content), "Sitemap: https://ourworldindata.example/sitemap.xml") {
		t.Fatalf("robots missing sitemap link:\n%s", content)
	}
}

func TestSearchIndexStepBuildsEntries(t *testing.T) {
	posts := &fakePosts{sources: []interfaces.PostSourceFile{
		{
			Path: "posts/child-mortality.md",
			Body: []byte("---\ntitle: Child mortality\nslug: child-mortality\n---\n\nChild mortality has **fallen**.\n"),
		},
		{
			Path: "posts/draft.md",
			Body: []byte("---\ntitle: Draft piece\nslug: draft-piece\ndraft: true\n---\n\nNot yet.\n"),
		},
	}}
	step := NewSearchIndexStep(posts, testURLs(t))

	staging := memfs.New()
	if err := step.Run(context.Background(), &Run{Scope: domain.FullSiteScope(), Staging: staging}); err != nil {
		t.Fatalf("run: %v", err)
	}
	content, err := util.ReadFile(staging, "search-index.json")
	if err != nil {
		t.Fatalf("read search index: %v", err)
	}
	out := string(content)
	if !strings.Contains(out, `"slug": "child-mortality"`) {
		t.Fatalf("missing post entry:\n%s", out)
	}
	if !strings.Contains(out, "Child mortality has fallen.") {
		t.Fatalf("expected derived plain-text excerpt:\n%s", out)
	}
	if strings.Contains(out, "draft-piece") {
		t.Fatalf("draft should be excluded:\n%s", out)
	}
}
