package artifacts

import (
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/goliatone/go-baker/internal/hashing"
)

func TestWriteEmbedsDigestBeforeExtension(t *testing.T) {
	fs := memfs.New()
	writer, err := NewWriter(fs)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	body := []byte(`<svg>chart</svg>`)
	physical, err := writer.Write("charts/life-expectancy.svg", body)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	digest := hashing.HashBytes(body)
	want := "charts/life-expectancy." + digest + ".svg"
	if physical != want {
		t.Fatalf("expected path %q, got %q", want, physical)
	}

	stored, err := util.ReadFile(fs, physical)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(stored) != string(body) {
		t.Fatalf("stored content mismatch: %q", stored)
	}
}

func TestWriteIsIdempotent(t *testing.T) {
	fs := memfs.New()
	writer, _ := NewWriter(fs)

	body := []byte(`{"config":1}`)
	first, err := writer.Write("multi-dim/causes.json", body)
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	second, err := writer.Write("multi-dim/causes.json", body)
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical paths, got %q and %q", first, second)
	}

	entries, err := fs.ReadDir("multi-dim")
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file, got %d", len(entries))
	}
}

func TestWriteDifferentContentDifferentPath(t *testing.T) {
	fs := memfs.New()
	writer, _ := NewWriter(fs)

	first, err := writer.Write("posts/about.html", []byte("v1"))
	if err != nil {
		t.Fatalf("write v1: %v", err)
	}
	second, err := writer.Write("posts/about.html", []byte("v2"))
	if err != nil {
		t.Fatalf("write v2: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct paths for distinct content")
	}
}

func TestCopyStreamsSourceFile(t *testing.T) {
	source := memfs.New()
	payload := strings.Repeat("data-row;", 4096)
	if err := util.WriteFile(source, "exports/owid-energy.csv", []byte(payload), 0o644); err != nil {
		t.Fatalf("seed source: %v", err)
	}

	fs := memfs.New()
	writer, _ := NewWriter(fs)

	physical, err := writer.Copy(source, "exports/owid-energy.csv", "explorers/energy")
	if err != nil {
		t.Fatalf("copy: %v", err)
	}

	digest := hashing.HashBytes([]byte(payload))
	want := "explorers/energy/owid-energy." + digest + ".csv"
	if physical != want {
		t.Fatalf("expected %q, got %q", want, physical)
	}

	copied, err := util.ReadFile(fs, physical)
	if err != nil {
		t.Fatalf("read copied: %v", err)
	}
	if string(copied) != payload {
		t.Fatal("copied content mismatch")
	}

	// Repeat copy resolves to the same path and leaves no temp files behind.
	again, err := writer.Copy(source, "exports/owid-energy.csv", "explorers/energy")
	if err != nil {
		t.Fatalf("repeat copy: %v", err)
	}
	if again != physical {
		t.Fatalf("expected %q, got %q", physical, again)
	}
	entries, err := fs.ReadDir("explorers/energy")
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one file after repeat copy, got %d", len(entries))
	}
}

func TestAddressedPathWithoutExtension(t *testing.T) {
	got := AddressedPath("redirects/_redirects", "abc123")
	if got != "redirects/_redirects.abc123" {
		t.Fatalf("unexpected path %q", got)
	}
}
