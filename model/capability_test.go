package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weatherSpec() ToolSpec {
	return ToolSpec{
		Name:        "weather",
		Description: "Look up current weather",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"city": map[string]any{
					"type":        "string",
					"description": "City name",
				},
				"units": map[string]any{
					"type":        "string",
					"description": "Unit system",
					"default":     "metric",
				},
			},
			"required": []string{"city"},
		},
	}
}

func TestValidateToolSpecs_Accepts(t *testing.T) {
	cap := Capability{
		Provider:           "strict",
		DisallowedTypes:    []string{"null"},
		RequireDescription: true,
		RequireDefaults:    true,
	}
	assert.NoError(t, ValidateToolSpecs([]ToolSpec{weatherSpec()}, cap))
}

func TestValidateToolSpecs_MissingToolDescription(t *testing.T) {
	spec := weatherSpec()
	spec.Description = ""

	err := ValidateToolSpecs([]ToolSpec{spec}, Capability{Provider: "p", RequireDescription: true})
	require.Error(t, err)

	var schemaErr *SchemaIncompatibleError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "weather", schemaErr.Tool)
	assert.Equal(t, "description", schemaErr.Field)
}

func TestValidateToolSpecs_DisallowedType(t *testing.T) {
	spec := weatherSpec()
	props := spec.Parameters["properties"].(map[string]any)
	props["extra"] = map[string]any{"type": "null", "description": "invalid"}

	err := ValidateToolSpecs([]ToolSpec{spec}, Capability{Provider: "p", DisallowedTypes: []string{"null"}})
	var schemaErr *SchemaIncompatibleError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "extra", schemaErr.Field)
}

func TestValidateToolSpecs_MissingPropertyDescription(t *testing.T) {
	spec := weatherSpec()
	props := spec.Parameters["properties"].(map[string]any)
	props["city"] = map[string]any{"type": "string"}

	err := ValidateToolSpecs([]ToolSpec{spec}, Capability{Provider: "p", RequireDescription: true})
	var schemaErr *SchemaIncompatibleError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "city", schemaErr.Field)
}

func TestValidateToolSpecs_OptionalWithoutDefault(t *testing.T) {
	spec := weatherSpec()
	props := spec.Parameters["properties"].(map[string]any)
	delete(props["units"].(map[string]any), "default")

	err := ValidateToolSpecs([]ToolSpec{spec}, Capability{Provider: "p", RequireDefaults: true})
	var schemaErr *SchemaIncompatibleError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "units", schemaErr.Field)
}

func TestValidateToolSpecs_RequiredAsAnySlice(t *testing.T) {
	spec := weatherSpec()
	// JSON-decoded schemas carry []any, not []string
	spec.Parameters["required"] = []any{"city"}

	err := ValidateToolSpecs([]ToolSpec{spec}, Capability{Provider: "p", RequireDefaults: true})
	assert.NoError(t, err)
}

func TestValidateToolSpecs_NoParameters(t *testing.T) {
	spec := ToolSpec{Name: "ping", Description: "Liveness probe"}
	assert.NoError(t, ValidateToolSpecs([]ToolSpec{spec}, Capability{Provider: "p", RequireDescription: true, RequireDefaults: true}))
}
