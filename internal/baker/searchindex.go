package baker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/goliatone/go-baker/internal/baker/paths"
	"github.com/goliatone/go-baker/internal/domain"
	"github.com/goliatone/go-baker/internal/markdown"
	"github.com/goliatone/go-baker/pkg/interfaces"
)

// excerptLength bounds derived excerpts in the search index.
const excerptLength = 280

type searchIndexEntry struct {
	Title   string    `json:"title"`
	Slug    string    `json:"slug"`
	URL     string    `json:"url"`
	Excerpt string    `json:"excerpt,omitempty"`
	Date    time.Time `json:"date,omitempty"`
	Tags    []string  `json:"tags,omitempty"`
}

// searchIndexStep parses every post source and emits search-index.json at
// the staging root. Drafts are excluded. Runs for full-site scopes and for
// narrow scopes that touch posts, since any post edit can change the index.
type searchIndexStep struct {
	posts interfaces.PostSource
	urls  *paths.PublicURLs
}

// NewSearchIndexStep builds the search-index bake step.
func NewSearchIndexStep(posts interfaces.PostSource, urls *paths.PublicURLs) Step {
	return &searchIndexStep{posts: posts, urls: urls}
}

func (s *searchIndexStep) Name() string { return StepSearchIndex }

func (s *searchIndexStep) Applicable(scope domain.Scope) bool {
	return scope.IsFullSite() || scope.Includes(interfaces.KindPost)
}

func (s *searchIndexStep) Run(ctx context.Context, run *Run) error {
	sources, err := s.posts.ListPostSources(ctx)
	if err != nil {
		return fmt.Errorf("list post sources: %w", err)
	}

	entries := make([]searchIndexEntry, 0, len(sources))
	for _, source := range sources {
		doc, err := markdown.ParseDocument(source.Path, source.Body)
		if err != nil {
			return err
		}
		if doc.Meta.Draft {
			continue
		}
		slug := domain.NormalizeSlug(doc.Meta.Slug)
		if slug == "" {
			slug = domain.NormalizeSlug(doc.Meta.Title)
		}
		if slug == "" {
			continue
		}
		url, err := s.urls.EntityURL(interfaces.KindPost, slug)
		if err != nil {
			return err
		}
		excerpt := doc.Meta.Excerpt
		if excerpt == "" {
			excerpt = markdown.Excerpt(doc.Body, excerptLength)
		}
		entries = append(entries, searchIndexEntry{
			Title:   doc.Meta.Title,
			Slug:    slug,
			URL:     url,
			Excerpt: excerpt,
			Date:    doc.Meta.Date,
			Tags:    doc.Meta.Tags,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Slug < entries[j].Slug
	})

	encoded, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode search index: %w", err)
	}
	return writeStagingFile(run.Staging, "search-index.json", encoded)
}
