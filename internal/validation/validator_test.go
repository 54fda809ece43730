package validation

import (
	"errors"
	"testing"
)

func chartSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"slug":  map[string]any{"type": "string", "minLength": 1},
			"title": map[string]any{"type": "string"},
			"dimensions": map[string]any{
				"type":     "array",
				"minItems": 1,
			},
		},
		"required": []any{"slug", "dimensions"},
	}
}

func TestValidatorAcceptsValidPayload(t *testing.T) {
	validator, err := NewValidator(chartSchema())
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	payload := map[string]any{
		"slug":       "life-expectancy",
		"title":      "Life expectancy",
		"dimensions": []any{map[string]any{"variableId": 2032}},
	}
	if err := validator.ValidatePayload(payload); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
}

func TestValidatorRejectsMissingRequired(t *testing.T) {
	validator, err := NewValidator(chartSchema())
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	err = validator.ValidatePayload(map[string]any{"title": "No slug"})
	if !errors.Is(err, ErrConfigValidation) {
		t.Fatalf("expected ErrConfigValidation, got %v", err)
	}
	if len(Issues(err)) == 0 {
		t.Fatal("expected at least one issue")
	}
}

func TestValidatorReportsIssueLocations(t *testing.T) {
	validator, err := NewValidator(chartSchema())
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	err = validator.ValidatePayload(map[string]any{
		"slug":       42,
		"dimensions": []any{"x"},
	})
	if err == nil {
		t.Fatal("expected validation failure")
	}
	issues := Issues(err)
	found := false
	for _, issue := range issues {
		if issue.Location == "/slug" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an issue at /slug, got %v", issues)
	}
}

func TestValidatorEmptySchemaAcceptsEverything(t *testing.T) {
	validator, err := NewValidator(nil)
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	if err := validator.ValidatePayload(map[string]any{"anything": true}); err != nil {
		t.Fatalf("expected pass-through validator, got %v", err)
	}
	if err := validator.ValidatePayload(nil); err != nil {
		t.Fatalf("expected nil payload accepted, got %v", err)
	}
}

func TestNewValidatorRejectsBrokenSchema(t *testing.T) {
	_, err := NewValidator(map[string]any{"type": "no-such-type"})
	if !errors.Is(err, ErrSchemaInvalid) {
		t.Fatalf("expected ErrSchemaInvalid, got %v", err)
	}
}
