package runtimeconfig

import (
	"errors"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestValidateRejectsMissingBaseURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "  "
	if err := cfg.Validate(); !errors.Is(err, ErrBaseURLRequired) {
		t.Fatalf("expected ErrBaseURLRequired, got %v", err)
	}
}

func TestValidateRejectsUnknownStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Steps = []string{"charts", "lightning"}
	if err := cfg.Validate(); !errors.Is(err, ErrUnknownStepConfigured) {
		t.Fatalf("expected ErrUnknownStepConfigured, got %v", err)
	}
}

func TestValidateRejectsUnknownStorageDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Driver = "oracle"
	if err := cfg.Validate(); !errors.Is(err, ErrStorageDriverUnknown) {
		t.Fatalf("expected ErrStorageDriverUnknown, got %v", err)
	}
}

func TestValidateRejectsNegativeDebounce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Debounce = -1
	if err := cfg.Validate(); !errors.Is(err, ErrDebounceInvalid) {
		t.Fatalf("expected ErrDebounceInvalid, got %v", err)
	}
}

func TestValidateRejectsBadDeployRetryPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Deploy.MaxAttempts = 0
	if err := cfg.Validate(); !errors.Is(err, ErrDeployRetryInvalid) {
		t.Fatalf("expected ErrDeployRetryInvalid, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.Deploy.InitialBackoff = 0
	if err := cfg.Validate(); !errors.Is(err, ErrDeployBackoffInvalid) {
		t.Fatalf("expected ErrDeployBackoffInvalid, got %v", err)
	}
}

func TestValidateRejectsBadLoggingLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "loud"
	if err := cfg.Validate(); !errors.Is(err, ErrLoggingLevelInvalid) {
		t.Fatalf("expected ErrLoggingLevelInvalid, got %v", err)
	}
}
