package markdown

import (
	"bytes"
	"fmt"
	"time"

	"github.com/adrg/frontmatter"
)

// PostMeta is the structured frontmatter of a post source document.
type PostMeta struct {
	Title   string         `yaml:"title"`
	Slug    string         `yaml:"slug"`
	Excerpt string         `yaml:"excerpt"`
	Date    time.Time      `yaml:"date"`
	Authors []string       `yaml:"authors"`
	Tags    []string       `yaml:"tags"`
	Draft   bool           `yaml:"draft"`
	Custom  map[string]any `yaml:",inline"`
}

// Document is one parsed post source: metadata plus the Markdown body with
// the frontmatter delimiters stripped. HTML is filled lazily by Render.
type Document struct {
	Path string
	Meta PostMeta
	Body []byte
}

// ParseFrontMatter splits a post source into its metadata and Markdown body.
func ParseFrontMatter(source []byte) (PostMeta, []byte, error) {
	var meta PostMeta

	body, err := frontmatter.Parse(bytes.NewReader(source), &meta)
	if err != nil {
		return PostMeta{}, nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if meta.Custom == nil {
		meta.Custom = map[string]any{}
	}
	return meta, body, nil
}

// ParseDocument builds a Document from the supplied path and raw source.
func ParseDocument(path string, source []byte) (*Document, error) {
	meta, body, err := ParseFrontMatter(source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &Document{
		Path: path,
		Meta: meta,
		Body: body,
	}, nil
}
