package runtimeconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-baker/internal/baker"
	"github.com/goliatone/go-baker/internal/storage"
)

var (
	ErrBaseURLRequired       = errors.New("baker config: public base url is required")
	ErrStagingDirRequired    = errors.New("baker config: staging directory is required")
	ErrArchiveDirRequired    = errors.New("baker config: archive directory is required")
	ErrDebounceInvalid       = errors.New("baker config: debounce must be zero or positive")
	ErrBuildTimeoutInvalid   = errors.New("baker config: build timeout must be zero or positive")
	ErrDeployTargetRequired  = errors.New("baker config: deploy target directory is required")
	ErrDeployRetryInvalid    = errors.New("baker config: deploy max attempts must be positive")
	ErrDeployBackoffInvalid  = errors.New("baker config: deploy initial backoff must be positive")
	ErrStorageDriverUnknown  = errors.New("baker config: storage driver is invalid")
	ErrUnknownStepConfigured = errors.New("baker config: unknown bake step configured")
	ErrLoggingLevelInvalid   = errors.New("baker config: logging level is invalid")
)

// Config aggregates everything the deploy queue needs, passed explicitly into
// the module at construction. There are no module-level globals.
type Config struct {
	// Enabled is the build-on-change switch. When false, enqueued events
	// are logged and dropped; manual triggers are rejected.
	Enabled bool

	// BaseURL is the public site root, used for sitemap/robots/search URLs.
	BaseURL string

	// StagingDir is where bake output is assembled before publishing.
	StagingDir string

	// ArchiveDir holds content-addressed archival artifacts. Append-only.
	ArchiveDir string

	// Debounce is the quiet period after the first event of a batch.
	Debounce time.Duration

	// BuildTimeout bounds one build+deploy cycle. Zero disables it.
	BuildTimeout time.Duration

	// Steps optionally restricts the pipeline to a subset of step names.
	// Empty means all declared steps.
	Steps []string

	Deploy  DeployConfig
	Storage StorageConfig
	Logging LoggingConfig
}

// DeployConfig captures the remote publish target and its retry policy.
type DeployConfig struct {
	TargetDir      string
	MaxAttempts    int
	InitialBackoff time.Duration
}

// StorageConfig selects the archival database.
type StorageConfig struct {
	Driver string
	DSN    string
}

// LoggingConfig captures log verbosity for the module loggers.
type LoggingConfig struct {
	Level string
}

// DefaultConfig returns working defaults for a single-node install.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		BaseURL:      "http://localhost:8080",
		StagingDir:   "bake-staging",
		ArchiveDir:   "archive",
		Debounce:     10 * time.Second,
		BuildTimeout: 30 * time.Minute,
		Deploy: DeployConfig{
			TargetDir:      "live",
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
		},
		Storage: StorageConfig{
			Driver: storage.DriverSQLite,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate performs high-level consistency checks.
func (cfg Config) Validate() error {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return ErrBaseURLRequired
	}
	if strings.TrimSpace(cfg.StagingDir) == "" {
		return ErrStagingDirRequired
	}
	if strings.TrimSpace(cfg.ArchiveDir) == "" {
		return ErrArchiveDirRequired
	}
	if cfg.Debounce < 0 {
		return ErrDebounceInvalid
	}
	if cfg.BuildTimeout < 0 {
		return ErrBuildTimeoutInvalid
	}
	if strings.TrimSpace(cfg.Deploy.TargetDir) == "" {
		return ErrDeployTargetRequired
	}
	if cfg.Deploy.MaxAttempts <= 0 {
		return ErrDeployRetryInvalid
	}
	if cfg.Deploy.InitialBackoff <= 0 {
		return ErrDeployBackoffInvalid
	}
	switch cfg.Storage.Driver {
	case "", storage.DriverSQLite, storage.DriverPostgres:
	default:
		return fmt.Errorf("%w: %s", ErrStorageDriverUnknown, cfg.Storage.Driver)
	}
	for _, step := range cfg.Steps {
		if !isKnownStep(step) {
			return fmt.Errorf("%w: %s", ErrUnknownStepConfigured, step)
		}
	}
	if level := strings.TrimSpace(cfg.Logging.Level); level != "" && !isSupportedLevel(level) {
		return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
	}
	return nil
}

func isKnownStep(name string) bool {
	switch name {
	case baker.StepCharts, baker.StepMultiDims, baker.StepExplorers, baker.StepPosts,
		baker.StepRedirects, baker.StepSearchIndex, baker.StepFeed, baker.StepSitemap, baker.StepRobots:
		return true
	default:
		return false
	}
}

func isSupportedLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "error", "fatal":
		return true
	default:
		return false
	}
}
