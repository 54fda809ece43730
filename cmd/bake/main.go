// Command bake runs one urgent full-site bake+deploy cycle from a content
// export and exits with the run's outcome. It is the operator escape hatch:
// the embedding platform normally feeds the deploy queue directly.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	baker "github.com/goliatone/go-baker"
	"github.com/goliatone/go-baker/internal/logging/gologger"
	"github.com/goliatone/go-baker/pkg/interfaces"
)

func main() {
	cfg := baker.DefaultConfig()

	var (
		baseURL       = flag.String("base-url", cfg.BaseURL, "public site root for generated URLs")
		stagingDir    = flag.String("staging", cfg.StagingDir, "directory where bake output is assembled")
		archiveDir    = flag.String("archive", cfg.ArchiveDir, "directory holding content-addressed archival artifacts")
		targetDir     = flag.String("target", cfg.Deploy.TargetDir, "live deploy target directory")
		driver        = flag.String("driver", cfg.Storage.Driver, "archival database driver (sqlite or postgres)")
		dsn           = flag.String("dsn", cfg.Storage.DSN, "archival database DSN")
		contentFile   = flag.String("content", "content.json", "JSON export of renderable entities")
		postsDir      = flag.String("posts", "", "directory of Markdown posts for the search index")
		redirectsFile = flag.String("redirects", "", "JSON file listing redirects")
		message       = flag.String("message", "operator full-site bake", "deploy annotation")
		logLevel      = flag.String("log-level", cfg.Logging.Level, "log level")
		timeout       = flag.Duration("timeout", cfg.BuildTimeout, "bound on the whole bake+deploy cycle")
	)
	flag.Parse()

	cfg.BaseURL = *baseURL
	cfg.StagingDir = *stagingDir
	cfg.ArchiveDir = *archiveDir
	cfg.Deploy.TargetDir = *targetDir
	cfg.Storage.Driver = *driver
	cfg.Storage.DSN = *dsn
	cfg.BuildTimeout = *timeout
	cfg.Logging.Level = *logLevel

	if err := run(cfg, *contentFile, *postsDir, *redirectsFile, *message); err != nil {
		log.Fatalf("bake: %v", err)
	}
}

func run(cfg baker.Config, contentFile, postsDir, redirectsFile, message string) error {
	export, err := loadExport(contentFile)
	if err != nil {
		return err
	}

	provider, err := gologger.NewProvider(gologger.Config{
		Level:  cfg.Logging.Level,
		Format: "console",
	})
	if err != nil {
		return err
	}

	module, err := baker.New(cfg, baker.Collaborators{
		Renderer:  export,
		Catalog:   export,
		Redirects: &fileRedirects{path: redirectsFile},
		Posts:     &dirPosts{dir: postsDir},
		Logger:    provider,
	})
	if err != nil {
		return err
	}
	defer module.Close()

	if err := applyMigrations(module.DB()); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	ctx := context.Background()
	result, err := module.TriggerNow(ctx, baker.ChangeEvent{
		OccurredAt: time.Now(),
		Message:    message,
		Scope:      baker.FullSiteScope(),
	})
	if err != nil {
		return err
	}

	if result.Report != nil {
		fmt.Println(result.Report.Summary())
	}
	if result.Err != nil {
		return fmt.Errorf("run %s failed: %w", result.RunID, result.Err)
	}
	if result.Release != nil {
		fmt.Printf("published %s in %d attempt(s)\n", result.Release.Path, result.Release.Attempts)
	}
	return nil
}

func applyMigrations(db *bun.DB) error {
	migrations := baker.GetMigrationsFS()
	return fs.WalkDir(migrations, ".", func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() || !strings.HasSuffix(path, ".sql") {
			return err
		}
		ddl, err := fs.ReadFile(migrations, path)
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(ddl)); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return nil
	})
}

// exportEntity is one renderable entity in the content export.
type exportEntity struct {
	Kind      string            `json:"kind"`
	ID        uuid.UUID         `json:"id"`
	Slug      string            `json:"slug"`
	Inputs    map[string]string `json:"inputs"`
	Artifacts []exportArtifact  `json:"artifacts"`
}

type exportArtifact struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body"`
}

// contentExport is a file-backed renderer and catalog over a JSON export.
type contentExport struct {
	entities map[string]*exportEntity
}

func loadExport(path string) (*contentExport, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content export: %w", err)
	}
	var entities []*exportEntity
	if err := json.Unmarshal(raw, &entities); err != nil {
		return nil, fmt.Errorf("parse content export: %w", err)
	}

	export := &contentExport{entities: make(map[string]*exportEntity, len(entities))}
	for _, entity := range entities {
		kind := interfaces.EntityKind(entity.Kind)
		if !kind.Valid() {
			return nil, fmt.Errorf("content export: unknown kind %q for %s", entity.Kind, entity.Slug)
		}
		export.entities[exportKey(kind, entity.ID)] = entity
	}
	return export, nil
}

func exportKey(kind interfaces.EntityKind, id uuid.UUID) string {
	return string(kind) + "/" + id.String()
}

func (e *contentExport) Render(_ context.Context, kind interfaces.EntityKind, entityID uuid.UUID) (*interfaces.RenderResult, error) {
	entity, ok := e.entities[exportKey(kind, entityID)]
	if !ok {
		return nil, &interfaces.RenderError{Kind: kind, EntityID: entityID, Err: interfaces.ErrEntityNotFound}
	}
	result := &interfaces.RenderResult{
		Slug:   entity.Slug,
		Inputs: entity.Inputs,
	}
	for _, artifact := range entity.Artifacts {
		result.Artifacts = append(result.Artifacts, interfaces.RenderedArtifact{
			LogicalName: artifact.Name,
			ContentType: artifact.ContentType,
			Body:        []byte(artifact.Body),
		})
	}
	return result, nil
}

func (e *contentExport) List(_ context.Context, kind interfaces.EntityKind) ([]interfaces.EntityRef, error) {
	var refs []interfaces.EntityRef
	for _, entity := range e.entities {
		if interfaces.EntityKind(entity.Kind) == kind {
			refs = append(refs, interfaces.EntityRef{Kind: kind, ID: entity.ID, Slug: entity.Slug})
		}
	}
	return refs, nil
}

// fileRedirects loads redirects from a JSON file; an empty path means none.
type fileRedirects struct {
	path string
}

func (f *fileRedirects) ListRedirects(_ context.Context) ([]interfaces.Redirect, error) {
	if f.path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read redirects: %w", err)
	}
	var redirects []interfaces.Redirect
	if err := json.Unmarshal(raw, &redirects); err != nil {
		return nil, fmt.Errorf("parse redirects: %w", err)
	}
	return redirects, nil
}

// dirPosts lists Markdown files under a directory; an empty dir means none.
type dirPosts struct {
	dir string
}

func (d *dirPosts) ListPostSources(_ context.Context) ([]interfaces.PostSourceFile, error) {
	if d.dir == "" {
		return nil, nil
	}
	var files []interfaces.PostSourceFile
	err := filepath.WalkDir(d.dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		if ext := strings.ToLower(filepath.Ext(path)); ext != ".md" && ext != ".markdown" {
			return nil
		}
		body, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.dir, path)
		if err != nil {
			rel = path
		}
		files = append(files, interfaces.PostSourceFile{Path: rel, Body: body})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk posts: %w", err)
	}
	return files, nil
}
