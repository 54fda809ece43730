package logging

import (
	"context"

	"github.com/goliatone/go-baker/pkg/interfaces"
)

const (
	rootModule     = "baker"
	archiveModule  = "baker.archive"
	pipelineModule = "baker.pipeline"
	queueModule    = "baker.queue"
	deployModule   = "baker.deploy"
)

// ModuleLogger returns a module-scoped logger, defaulting to a no-op
// implementation when no provider is supplied. The returned logger attaches
// the module identifier as structured context so downstream entries can be
// filtered predictably.
func ModuleLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	if module == "" {
		module = rootModule
	}

	logger := NoOp()
	if provider != nil {
		if provided := provider.GetLogger(module); provided != nil {
			logger = provided
		}
	}

	return WithFields(logger, map[string]any{
		"module": module,
	})
}

// ArchiveLogger returns the logger namespace reserved for the archival store
// and snapshot builder.
func ArchiveLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, archiveModule)
}

// PipelineLogger returns the logger namespace reserved for bake steps.
func PipelineLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, pipelineModule)
}

// QueueLogger returns the logger namespace reserved for the deploy queue
// coordinator.
func QueueLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, queueModule)
}

// DeployLogger returns the logger namespace reserved for the remote deployer.
func DeployLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, deployModule)
}

// NoOp returns a logger that drops every log entry. It satisfies the Logger
// contract so services can safely operate when logging is disabled.
func NoOp() interfaces.Logger {
	return noopLogger{}
}

type noopLogger struct{}

var _ interfaces.Logger = noopLogger{}

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (n noopLogger) WithFields(map[string]any) interfaces.Logger {
	return n
}

func (n noopLogger) WithContext(context.Context) interfaces.Logger {
	return n
}
