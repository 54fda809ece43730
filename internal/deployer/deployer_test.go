package deployer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

func stagingWith(t *testing.T, files map[string]string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	for name, content := range files {
		if err := util.WriteFile(fs, name, []byte(content), 0o644); err != nil {
			t.Fatalf("write staging %s: %v", name, err)
		}
	}
	return fs
}

func TestPublishCopiesTreeAndSwapsCurrent(t *testing.T) {
	staging := stagingWith(t, map[string]string{
		"sitemap.xml":                 "<urlset/>",
		"grapher/co2/index.html":      "<html/>",
		"grapher/co2/chart.abc12.svg": "<svg/>",
	})
	target := memfs.New()
	deployer, err := New(target)
	if err != nil {
		t.Fatalf("new deployer: %v", err)
	}

	release, err := deployer.Publish(context.Background(), staging)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if release.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", release.Attempts)
	}

	current, err := deployer.CurrentRelease()
	if err != nil {
		t.Fatalf("current release: %v", err)
	}
	if current != release.Path {
		t.Fatalf("current = %q, want %q", current, release.Path)
	}

	content, err := util.ReadFile(target, release.Path+"/grapher/co2/index.html")
	if err != nil {
		t.Fatalf("read deployed file: %v", err)
	}
	if string(content) != "<html/>" {
		t.Fatalf("unexpected deployed content %q", content)
	}
}

func TestPublishTwiceRetainsOldRelease(t *testing.T) {
	target := memfs.New()
	current := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	deployer, err := New(target, WithClock(func() time.Time {
		current = current.Add(time.Second)
		return current
	}))
	if err != nil {
		t.Fatalf("new deployer: %v", err)
	}

	first, err := deployer.Publish(context.Background(), stagingWith(t, map[string]string{"index.html": "v1"}))
	if err != nil {
		t.Fatalf("first publish: %v", err)
	}
	second, err := deployer.Publish(context.Background(), stagingWith(t, map[string]string{"index.html": "v2"}))
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if first.Path == second.Path {
		t.Fatalf("expected distinct release dirs, both %q", first.Path)
	}

	live, err := deployer.CurrentRelease()
	if err != nil {
		t.Fatalf("current release: %v", err)
	}
	if live != second.Path {
		t.Fatalf("current = %q, want %q", live, second.Path)
	}
	if _, err := util.ReadFile(target, first.Path+"/index.html"); err != nil {
		t.Fatalf("expected old release retained: %v", err)
	}
}

// flakyFS fails the first N file creations with a transient error.
type flakyFS struct {
	billy.Filesystem
	failures int
}

func (f *flakyFS) Create(name string) (billy.File, error) {
	if f.failures > 0 {
		f.failures--
		return nil, MarkTransient(errors.New("connection reset"))
	}
	return f.Filesystem.Create(name)
}

func TestPublishRetriesTransientFailures(t *testing.T) {
	target := &flakyFS{Filesystem: memfs.New(), failures: 1}
	var slept []time.Duration
	deployer, err := New(target,
		WithRetry(3, 10*time.Millisecond),
		WithSleep(func(d time.Duration) { slept = append(slept, d) }),
	)
	if err != nil {
		t.Fatalf("new deployer: %v", err)
	}

	release, err := deployer.Publish(context.Background(), stagingWith(t, map[string]string{"index.html": "v1"}))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if release.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", release.Attempts)
	}
	if len(slept) != 1 || slept[0] != 10*time.Millisecond {
		t.Fatalf("expected one initial backoff sleep, got %v", slept)
	}
}

func TestPublishGivesUpAfterMaxAttempts(t *testing.T) {
	target := &flakyFS{Filesystem: memfs.New(), failures: 10}
	var slept []time.Duration
	deployer, err := New(target,
		WithRetry(3, 10*time.Millisecond),
		WithSleep(func(d time.Duration) { slept = append(slept, d) }),
	)
	if err != nil {
		t.Fatalf("new deployer: %v", err)
	}

	_, err = deployer.Publish(context.Background(), stagingWith(t, map[string]string{"index.html": "v1"}))
	if !IsTransient(err) {
		t.Fatalf("expected transient error surfaced, got %v", err)
	}
	if len(slept) != 2 {
		t.Fatalf("expected backoff between 3 attempts, got %v", slept)
	}
	if slept[1] != 20*time.Millisecond {
		t.Fatalf("expected doubled backoff, got %v", slept[1])
	}
}

func TestPublishSurfacesFatalErrorsImmediately(t *testing.T) {
	fatal := &fatalFS{Filesystem: memfs.New()}
	var slept []time.Duration
	deployer, err := New(fatal, WithSleep(func(d time.Duration) { slept = append(slept, d) }))
	if err != nil {
		t.Fatalf("new deployer: %v", err)
	}

	_, err = deployer.Publish(context.Background(), stagingWith(t, map[string]string{"index.html": "v1"}))
	if err == nil {
		t.Fatal("expected fatal publish error")
	}
	if IsTransient(err) {
		t.Fatalf("fatal error should not be transient: %v", err)
	}
	if len(slept) != 0 {
		t.Fatalf("fatal errors must not be retried, slept %v", slept)
	}
}

type fatalFS struct {
	billy.Filesystem
}

func (f *fatalFS) Create(string) (billy.File, error) {
	return nil, errors.New("permission denied")
}
