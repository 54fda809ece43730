package baker

import (
	"context"
	"encoding/xml"
	"fmt"
	"sort"
	"time"

	"github.com/goliatone/go-baker/internal/baker/paths"
	"github.com/goliatone/go-baker/internal/domain"
	"github.com/goliatone/go-baker/internal/markdown"
	"github.com/goliatone/go-baker/pkg/interfaces"
)

// feedLimit bounds the number of entries in the atom feed.
const feedLimit = 30

// feedStep emits atom.xml with the newest posts, bodies rendered to HTML.
// Site-wide: the feed orders across every post.
type feedStep struct {
	posts    interfaces.PostSource
	urls     *paths.PublicURLs
	renderer *markdown.Renderer
	now      func() time.Time
}

// NewFeedStep builds the atom feed bake step.
func NewFeedStep(posts interfaces.PostSource, urls *paths.PublicURLs, now func() time.Time) Step {
	if now == nil {
		now = time.Now
	}
	return &feedStep{
		posts:    posts,
		urls:     urls,
		renderer: markdown.NewRenderer(markdown.DefaultOptions()),
		now:      now,
	}
}

func (s *feedStep) Name() string { return StepFeed }

func (s *feedStep) Applicable(scope domain.Scope) bool {
	return scope.IsFullSite()
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	XMLNS   string      `xml:"xmlns,attr"`
	Title   string      `xml:"title"`
	ID      string      `xml:"id"`
	Updated string      `xml:"updated"`
	Links   []atomLink  `xml:"link"`
	Entries []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
}

type atomEntry struct {
	Title   string      `xml:"title"`
	ID      string      `xml:"id"`
	Updated string      `xml:"updated"`
	Link    atomLink    `xml:"link"`
	Content atomContent `xml:"content"`
}

type atomContent struct {
	Type string `xml:"type,attr"`
	Body string `xml:",chardata"`
}

func (s *feedStep) Run(ctx context.Context, run *Run) error {
	sources, err := s.posts.ListPostSources(ctx)
	if err != nil {
		return fmt.Errorf("list post sources: %w", err)
	}

	type post struct {
		doc  *markdown.Document
		slug string
	}
	posts := make([]post, 0, len(sources))
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
		posts = append(posts, post{doc: doc, slug: slug})
	}

	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].doc.Meta.Date.Equal(posts[j].doc.Meta.Date) {
			return posts[i].doc.Meta.Date.After(posts[j].doc.Meta.Date)
		}
		return posts[i].slug < posts[j].slug
	})
	if len(posts) > feedLimit {
		posts = posts[:feedLimit]
	}

	feedURL, err := s.urls.FeedURL()
	if err != nil {
		return err
	}

	feed := atomFeed{
		XMLNS:   "http://www.w3.org/2005/Atom",
		Title:   s.urls.BaseURL(),
		ID:      s.urls.BaseURL() + "/",
		Updated: s.now().UTC().Format(time.RFC3339),
		Links: []atomLink{
			{Href: feedURL, Rel: "self"},
			{Href: s.urls.BaseURL()},
		},
	}

	for _, p := range posts {
		url, err := s.urls.EntityURL(interfaces.KindPost, p.slug)
		if err != nil {
			return err
		}
		html, err := s.renderer.Render(p.doc.Body)
		if err != nil {
			return fmt.Errorf("render post %s: %w", p.slug, err)
		}
		updated := p.doc.Meta.Date
		if updated.IsZero() {
			updated = s.now()
		}
		feed.Entries = append(feed.Entries, atomEntry{
			Title:   p.doc.Meta.Title,
			ID:      url,
			Updated: updated.UTC().Format(time.RFC3339),
			Link:    atomLink{Href: url},
			Content: atomContent{Type: "html", Body: string(html)},
		})
	}

	encoded, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return fmt.Errorf("encode atom feed: %w", err)
	}
	content := append([]byte(xml.Header), encoded...)
	content = append(content, '\n')
	return writeStagingFile(run.Staging, "atom.xml", content)
}
