package paths

import (
	"testing"

	"github.com/goliatone/go-baker/pkg/interfaces"
)

func TestEntityURLs(t *testing.T) {
	urls, err := New("https://ourworldindata.example/")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	cases := []struct {
		kind interfaces.EntityKind
		slug string
		want string
	}{
		{interfaces.KindChart, "life-expectancy", "https://ourworldindata.example/grapher/life-expectancy"},
		{interfaces.KindMultiDim, "energy-mix", "https://ourworldindata.example/grapher/energy-mix"},
		{interfaces.KindExplorer, "co2", "https://ourworldindata.example/explorers/co2"},
		{interfaces.KindPost, "child-mortality", "https://ourworldindata.example/child-mortality"},
	}
	for _, tc := range cases {
		got, err := urls.EntityURL(tc.kind, tc.slug)
		if err != nil {
			t.Fatalf("entity url %s/%s: %v", tc.kind, tc.slug, err)
		}
		if got != tc.want {
			t.Fatalf("entity url %s/%s = %q, want %q", tc.kind, tc.slug, got, tc.want)
		}
	}
}

func TestSitemapURL(t *testing.T) {
	urls, err := New("https://ourworldindata.example")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got, err := urls.SitemapURL()
	if err != nil {
		t.Fatalf("sitemap url: %v", err)
	}
	if got != "https://ourworldindata.example/sitemap.xml" {
		t.Fatalf("sitemap url = %q", got)
	}
}

func TestFeedURL(t *testing.T) {
	urls, err := New("https://ourworldindata.example")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got, err := urls.FeedURL()
	if err != nil {
		t.Fatalf("feed url: %v", err)
	}
	if got != "https://ourworldindata.example/atom.xml" {
		t.Fatalf("feed url = %q", got)
	}
}

func TestEntityURLRejectsUnknownKindAndEmptySlug(t *testing.T) {
	urls, err := New("https://ourworldindata.example")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := urls.EntityURL(interfaces.EntityKind("dashboard"), "x"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if _, err := urls.EntityURL(interfaces.KindChart, "  "); err == nil {
		t.Fatal("expected error for empty slug")
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New("   "); err == nil {
		t.Fatal("expected error for empty base url")
	}
}
