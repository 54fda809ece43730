package baker

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-baker/internal/archive"
	"github.com/goliatone/go-baker/internal/commands/deploycmd"
	"github.com/goliatone/go-baker/internal/deployer"
	"github.com/goliatone/go-baker/pkg/interfaces"
)

type stubRenderer struct {
	results map[string]*interfaces.RenderResult
}

func rendererKey(kind interfaces.EntityKind, id uuid.UUID) string {
	return string(kind) + "/" + id.String()
}

func (r *stubRenderer) Render(_ context.Context, kind interfaces.EntityKind, entityID uuid.UUID) (*interfaces.RenderResult, error) {
	result, ok := r.results[rendererKey(kind, entityID)]
	if !ok {
		return nil, &interfaces.RenderError{Kind: kind, EntityID: entityID, Err: interfaces.ErrEntityNotFound}
	}
	return result, nil
}

type stubCatalog struct {
	refs map[interfaces.EntityKind][]interfaces.EntityRef
}

func (c *stubCatalog) List(_ context.Context, kind interfaces.EntityKind) ([]interfaces.EntityRef, error) {
	return c.refs[kind], nil
}

type stubRedirects struct {
	redirects []interfaces.Redirect
}

func (s *stubRedirects) ListRedirects(_ context.Context) ([]interfaces.Redirect, error) {
	return s.redirects, nil
}

type stubPosts struct {
	files []interfaces.PostSourceFile
}

func (s *stubPosts) ListPostSources(_ context.Context) ([]interfaces.PostSourceFile, error) {
	return s.files, nil
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	db := bun.NewDB(sqlDB, sqlitedialect.New())

	for _, kind := range interfaces.Kinds() {
		table, err := archive.TableForKind(kind)
		if err != nil {
			t.Fatalf("table for %s: %v", kind, err)
		}
		ddl := fmt.Sprintf(`CREATE TABLE %s (
			id TEXT PRIMARY KEY,
			entity_id TEXT NOT NULL,
			entity_slug TEXT NOT NULL,
			archival_timestamp TIMESTAMP NOT NULL,
			hash_of_inputs TEXT NOT NULL,
			manifest TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (entity_id, archival_timestamp)
		)`, table)
		if _, err := db.Exec(ddl); err != nil {
			t.Fatalf("create %s: %v", table, err)
		}
	}
	if _, err := db.Exec(`CREATE TABLE deploy_runs (
		id TEXT PRIMARY KEY,
		scope_summary TEXT NOT NULL,
		commit_message TEXT,
		step_report TEXT,
		status TEXT NOT NULL,
		error TEXT,
		release_path TEXT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		t.Fatalf("create deploy_runs: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

type testModule struct {
	module  *Module
	target  billy.Filesystem
	chartID uuid.UUID
}

func newTestModule(t *testing.T) *testModule {
	t.Helper()

	chartID := uuid.New()
	renderer := &stubRenderer{results: map[string]*interfaces.RenderResult{
		rendererKey(KindChart, chartID): {
			Slug: "life-expectancy",
			Artifacts: []interfaces.RenderedArtifact{
				{LogicalName: "index.html", ContentType: "text/html", Body: []byte("<html>chart</html>")},
				{LogicalName: "config.json", ContentType: "application/json", Body: []byte(`{"slug":"life-expectancy"}`)},
			},
			Inputs: map[string]string{"config": "v1", "schema": "5"},
		},
	}}
	catalog := &stubCatalog{refs: map[interfaces.EntityKind][]interfaces.EntityRef{
		KindChart: {{Kind: KindChart, ID: chartID, Slug: "life-expectancy"}},
	}}
	redirects := &stubRedirects{redirects: []interfaces.Redirect{
		{Source: "/old-co2", Target: "/grapher/co2", Code: 301},
	}}
	posts := &stubPosts{files: []interfaces.PostSourceFile{
		{Path: "posts/hello.md", Body: []byte("---\ntitle: Hello\nslug: hello\n---\n\nFirst post.\n")},
	}}

	cfg := DefaultConfig()
	cfg.BaseURL = "https://ourworldindata.example"
	cfg.Debounce = 5 * time.Millisecond
	cfg.BuildTimeout = 10 * time.Second
	cfg.Deploy.InitialBackoff = time.Millisecond

	target := memfs.New()
	module, err := build(cfg, Collaborators{
		Renderer:  renderer,
		Catalog:   catalog,
		Redirects: redirects,
		Posts:     posts,
	}, newTestDB(t), memfs.New(), memfs.New(), target)
	if err != nil {
		t.Fatalf("build module: %v", err)
	}
	t.Cleanup(func() { module.Close() })

	return &testModule{module: module, target: target, chartID: chartID}
}

func TestModuleFullSiteBuildAndDeploy(t *testing.T) {
	tm := newTestModule(t)
	ctx := context.Background()

	result, err := tm.module.TriggerNow(ctx, ChangeEvent{
		OccurredAt: time.Now(),
		Message:    "initial bake",
		Scope:      FullSiteScope(),
	})
	if err != nil {
		t.Fatalf("trigger now: %v", err)
	}
	if result.Err != nil {
		t.Fatalf("expected successful run, got %v\nreport: %s", result.Err, result.Report.Summary())
	}
	if result.Release == nil || result.Release.Path == "" {
		t.Fatal("expected a published release")
	}

	current, err := tm.module.CurrentRelease()
	if err != nil {
		t.Fatalf("current release: %v", err)
	}
	if current != result.Release.Path {
		t.Fatalf("current release = %q, want %q", current, result.Release.Path)
	}

	for _, path := range []string{
		result.Release.Path + "/grapher/life-expectancy/index.html",
		result.Release.Path + "/sitemap.xml",
		result.Release.Path + "/robots.txt",
		result.Release.Path + "/_redirects",
		result.Release.Path + "/search-index.json",
		result.Release.Path + "/atom.xml",
	} {
		if _, err := util.ReadFile(tm.target, path); err != nil {
			t.Fatalf("expected %s in release: %v", path, err)
		}
	}

	version, err := tm.module.LatestArchivalVersion(ctx, KindChart, tm.chartID)
	if err != nil {
		t.Fatalf("latest archival version: %v", err)
	}
	if version.EntitySlug != "life-expectancy" {
		t.Fatalf("unexpected archival slug %q", version.EntitySlug)
	}

	runs, err := tm.module.ListRecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || !runs[0].Succeeded() {
		t.Fatalf("expected one successful run, got %+v", runs)
	}
}

func TestModuleUnchangedRebakeAddsNoVersions(t *testing.T) {
	tm := newTestModule(t)
	ctx := context.Background()

	first, err := tm.module.TriggerNow(ctx, ChangeEvent{Scope: FullSiteScope()})
	if err != nil || first.Err != nil {
		t.Fatalf("first bake: %v / %v", err, first.Err)
	}
	second, err := tm.module.TriggerNow(ctx, ChangeEvent{Scope: FullSiteScope()})
	if err != nil || second.Err != nil {
		t.Fatalf("second bake: %v / %v", err, second.Err)
	}

	v1, err := tm.module.LatestArchivalVersion(ctx, KindChart, tm.chartID)
	if err != nil {
		t.Fatalf("latest version: %v", err)
	}
	matches, err := tm.module.ArchivalVersionsByHash(ctx, KindChart, v1.HashOfInputs)
	if err != nil {
		t.Fatalf("versions by hash: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one archival version after unchanged rebake, got %d", len(matches))
	}
	if second.Release.Path == first.Release.Path {
		t.Fatal("expected a fresh release per publish")
	}
}

func TestModuleEnqueueChangeDebouncesIntoOneBuild(t *testing.T) {
	tm := newTestModule(t)

	tm.module.EnqueueChange(ChangeEvent{
		OccurredAt: time.Now(),
		Scope:      EntityScope(EntityRef{Kind: KindChart, ID: tm.chartID, Slug: "life-expectancy"}),
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		runs, err := tm.module.ListRecentRuns(context.Background(), 5)
		if err == nil && len(runs) == 1 {
			if !runs[0].Succeeded() {
				t.Fatalf("expected successful run, got %+v", runs[0])
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for debounced build")
}

// flakyTargetFS stands in for a network-backed deploy target whose first
// write fails retryably.
type flakyTargetFS struct {
	billy.Filesystem
	failures int
}

func (f *flakyTargetFS) Create(path string) (billy.File, error) {
	if f.failures > 0 {
		f.failures--
		return nil, deployer.MarkTransient(fmt.Errorf("create %s: connection reset", path))
	}
	return f.Filesystem.Create(path)
}

func applyTestMigrations(t *testing.T, db *bun.DB) {
	t.Helper()
	migrations := GetMigrationsFS()
	err := fs.WalkDir(migrations, ".", func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() || !strings.HasSuffix(path, ".sql") {
			return err
		}
		ddl, err := fs.ReadFile(migrations, path)
		if err != nil {
			return err
		}
		_, err = db.Exec(string(ddl))
		return err
	})
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
}

func TestModuleNewInjectedTargetRetriesTransientFailures(t *testing.T) {
	chartID := uuid.New()
	renderer := &stubRenderer{results: map[string]*interfaces.RenderResult{
		rendererKey(KindChart, chartID): {
			Slug: "life-expectancy",
			Artifacts: []interfaces.RenderedArtifact{
				{LogicalName: "index.html", ContentType: "text/html", Body: []byte("<html>chart</html>")},
			},
			Inputs: map[string]string{"config": "v1"},
		},
	}}
	catalog := &stubCatalog{refs: map[interfaces.EntityKind][]interfaces.EntityRef{
		KindChart: {{Kind: KindChart, ID: chartID, Slug: "life-expectancy"}},
	}}

	cfg := DefaultConfig()
	cfg.BaseURL = "https://ourworldindata.example"
	cfg.Debounce = 5 * time.Millisecond
	cfg.Deploy.InitialBackoff = time.Millisecond
	cfg.Storage.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())

	target := &flakyTargetFS{Filesystem: memfs.New(), failures: 1}
	module, err := New(cfg, Collaborators{
		Renderer:  renderer,
		Catalog:   catalog,
		Redirects: &stubRedirects{},
		Posts:     &stubPosts{},
	},
		WithStagingFS(memfs.New()),
		WithArchiveFS(memfs.New()),
		WithTargetFS(target),
	)
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	t.Cleanup(func() { module.Close() })
	applyTestMigrations(t, module.DB())

	result, err := module.TriggerNow(context.Background(), ChangeEvent{
		OccurredAt: time.Now(),
		Scope:      FullSiteScope(),
	})
	if err != nil {
		t.Fatalf("trigger now: %v", err)
	}
	if result.Err != nil {
		t.Fatalf("expected transient failure to be retried, got %v", result.Err)
	}
	if result.Release == nil || result.Release.Attempts != 2 {
		t.Fatalf("expected release after retry, got %+v", result.Release)
	}
	if _, err := util.ReadFile(target, result.Release.Path+"/grapher/life-expectancy/index.html"); err != nil {
		t.Fatalf("expected chart in injected target: %v", err)
	}
}

func TestModuleCommandsTriggerBake(t *testing.T) {
	tm := newTestModule(t)

	cmds := tm.module.Commands(nil)
	if err := cmds.BakeSite.Execute(context.Background(), deploycmd.BakeSiteCommand{Message: "operator rebuild"}); err != nil {
		t.Fatalf("bake site command: %v", err)
	}

	runs, err := tm.module.ListRecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one recorded run, got %d", len(runs))
	}
}
