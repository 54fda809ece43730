package deployer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/goliatone/go-baker/internal/logging"
	"github.com/goliatone/go-baker/pkg/interfaces"
)

const (
	releasesDir = "releases"
	currentLink = "current"

	defaultMaxAttempts    = 3
	defaultInitialBackoff = 500 * time.Millisecond
)

// Release describes one published build.
type Release struct {
	Path     string
	Attempts int
	Duration time.Duration
}

// Deployer publishes a staged build onto the live target: each build is
// copied into a fresh versioned release directory and a `current` symlink is
// swapped atomically, so the live site is never observed half-updated. Old
// releases are retained for rollback.
type Deployer struct {
	target         billy.Filesystem
	now            func() time.Time
	sleep          func(time.Duration)
	maxAttempts    int
	initialBackoff time.Duration
	logger         interfaces.Logger
}

// Option customizes a Deployer.
type Option func(*Deployer)

// WithClock overrides the deployer clock.
func WithClock(clock func() time.Time) Option {
	return func(d *Deployer) {
		if clock != nil {
			d.now = clock
		}
	}
}

// WithSleep overrides the backoff sleeper, used by tests.
func WithSleep(sleep func(time.Duration)) Option {
	return func(d *Deployer) {
		if sleep != nil {
			d.sleep = sleep
		}
	}
}

// WithRetry bounds the transient-failure retry policy.
func WithRetry(maxAttempts int, initialBackoff time.Duration) Option {
	return func(d *Deployer) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if initialBackoff > 0 {
			d.initialBackoff = initialBackoff
		}
	}
}

// WithLogger attaches a logger to the deployer.
func WithLogger(logger interfaces.Logger) Option {
	return func(d *Deployer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a deployer over the live target filesystem.
func New(target billy.Filesystem, opts ...Option) (*Deployer, error) {
	if target == nil {
		return nil, errors.New("deployer: target filesystem is required")
	}
	deployer := &Deployer{
		target:         target,
		now:            time.Now,
		sleep:          time.Sleep,
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
		logger:         logging.NoOp(),
	}
	for _, opt := range opts {
		opt(deployer)
	}
	return deployer, nil
}

// Publish transfers the staging tree to a versioned release directory and
// cuts the `current` link over to it. Transient transport errors are retried
// with bounded exponential backoff; fatal errors surface immediately.
func (d *Deployer) Publish(ctx context.Context, staging billy.Filesystem) (*Release, error) {
	if staging == nil {
		return nil, errors.New("deployer: staging filesystem is required")
	}

	started := d.now()
	releasePath := path.Join(releasesDir, "release-"+started.UTC().Format("20060102T150405.000000000"))

	backoff := d.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("deployer: publish aborted: %w", err)
		}

		err := d.transfer(staging, releasePath)
		if err == nil {
			if err := d.swap(releasePath); err != nil {
				return nil, fmt.Errorf("deployer: cut over to %s: %w", releasePath, err)
			}
			release := &Release{
				Path:     releasePath,
				Attempts: attempt,
				Duration: d.now().Sub(started),
			}
			d.logger.Info("deploy.published",
				"release", releasePath,
				"attempts", attempt,
				"duration_ms", release.Duration.Milliseconds(),
			)
			return release, nil
		}
		if !IsTransient(err) {
			return nil, fmt.Errorf("deployer: publish %s: %w", releasePath, err)
		}

		lastErr = err
		d.logger.Warn("deploy.transfer.retry",
			"release", releasePath,
			"attempt", attempt,
			"backoff_ms", backoff.Milliseconds(),
			"error", err.Error(),
		)
		if attempt < d.maxAttempts {
			d.sleep(backoff)
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("deployer: giving up after %d attempts: %w", d.maxAttempts, lastErr)
}

// CurrentRelease resolves the live release path, empty when nothing has been
// published yet.
func (d *Deployer) CurrentRelease() (string, error) {
	target, err := d.target.Readlink(currentLink)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("deployer: read current link: %w", err)
	}
	return target, nil
}

// transfer copies the staging tree into the release directory. Re-running
// against the same directory overwrites deterministically, so a retried
// attempt resumes safely over a partial copy.
func (d *Deployer) transfer(staging billy.Filesystem, releasePath string) error {
	if err := d.target.MkdirAll(releasePath, 0o755); err != nil {
		return err
	}
	return d.copyDir(staging, "", releasePath)
}

func (d *Deployer) copyDir(staging billy.Filesystem, src, dst string) error {
	entries, err := staging.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read staging dir %s: %w", src, err)
	}
	for _, entry := range entries {
		srcPath := path.Join(src, entry.Name())
		dstPath := path.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := d.target.MkdirAll(dstPath, 0o755); err != nil {
				return err
			}
			if err := d.copyDir(staging, srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := d.copyFile(staging, srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func (d *Deployer) copyFile(staging billy.Filesystem, src, dst string) error {
	source, err := staging.Open(src)
	if err != nil {
		return fmt.Errorf("open staging file %s: %w", src, err)
	}
	defer source.Close()

	target, err := d.target.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(target, source); err != nil {
		target.Close()
		return err
	}
	return target.Close()
}

// swap points `current` at the new release through a temporary link plus
// rename, so readers observe either the old release or the new one, never a
// missing link.
func (d *Deployer) swap(releasePath string) error {
	tmpLink := currentLink + ".tmp-" + fmt.Sprintf("%d", d.now().UnixNano())
	if err := d.target.Symlink(releasePath, tmpLink); err != nil {
		return err
	}
	if err := d.target.Rename(tmpLink, currentLink); err == nil {
		return nil
	}
	// Some filesystems refuse to rename over an existing link.
	if err := d.target.Remove(currentLink); err != nil && !os.IsNotExist(err) {
		return err
	}
	return d.target.Rename(tmpLink, currentLink)
}
