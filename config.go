package baker

import "github.com/goliatone/go-baker/internal/runtimeconfig"

var (
	ErrBaseURLRequired       = runtimeconfig.ErrBaseURLRequired
	ErrStagingDirRequired    = runtimeconfig.ErrStagingDirRequired
	ErrArchiveDirRequired    = runtimeconfig.ErrArchiveDirRequired
	ErrDebounceInvalid       = runtimeconfig.ErrDebounceInvalid
	ErrBuildTimeoutInvalid   = runtimeconfig.ErrBuildTimeoutInvalid
	ErrDeployTargetRequired  = runtimeconfig.ErrDeployTargetRequired
	ErrDeployRetryInvalid    = runtimeconfig.ErrDeployRetryInvalid
	ErrDeployBackoffInvalid  = runtimeconfig.ErrDeployBackoffInvalid
	ErrStorageDriverUnknown  = runtimeconfig.ErrStorageDriverUnknown
	ErrUnknownStepConfigured = runtimeconfig.ErrUnknownStepConfigured
	ErrLoggingLevelInvalid   = runtimeconfig.ErrLoggingLevelInvalid
)

type (
	Config        = runtimeconfig.Config
	DeployConfig  = runtimeconfig.DeployConfig
	StorageConfig = runtimeconfig.StorageConfig
	LoggingConfig = runtimeconfig.LoggingConfig
)

func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}
