package schemas

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const personSchema = `{
	"type": "object",
	"required": ["name"],
	"properties": {
		"name": {"type": "string"},
		"age": {"type": "integer"}
	}
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestValidateJSON_Valid(t *testing.T) {
	schemaPath := writeFile(t, "schema.json", personSchema)
	jsonPath := writeFile(t, "doc.json", `{"name": "Ivan", "age": 40}`)

	assert.NoError(t, ValidateJSON(schemaPath, jsonPath))
}

func TestValidateJSON_MissingField(t *testing.T) {
	schemaPath := writeFile(t, "schema.json", personSchema)
	jsonPath := writeFile(t, "doc.json", `{"age": 40}`)

	err := ValidateJSON(schemaPath, jsonPath)
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.NotEmpty(t, ve.Errors)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidateJSON_NotFound(t *testing.T) {
	schemaPath := writeFile(t, "schema.json", personSchema)

	err := ValidateJSON(schemaPath, filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	err = ValidateJSON(filepath.Join(t.TempDir(), "missing.json"), schemaPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidateJSONString_TypeMismatch(t *testing.T) {
	err := ValidateJSONString(personSchema, `{"name": "Ivan", "age": "forty"}`)
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "age", ve.Errors[0].Field)
}

func TestValidateJSONString_MalformedDocument(t *testing.T) {
	err := ValidateJSONString(personSchema, `{not json`)
	require.Error(t, err)

	var le *SchemaLoadError
	assert.True(t, errors.As(err, &le))
}

func TestValidateRubric(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{
			name:    "numbers",
			content: `{"sincerity_score": 0.9, "warmth_score": 0.5, "personalization_score": 0.5, "authenticity_score": 0.5}`,
		},
		{
			name:    "numeric strings",
			content: `{"sincerity_score": "0.9", "warmth_score": "0.5", "personalization_score": 1, "authenticity_score": 0}`,
		},
		{
			name:    "out of range still passes schema",
			content: `{"sincerity_score": 1.7, "warmth_score": -2, "personalization_score": 0.5, "authenticity_score": 0.5}`,
		},
		{
			name:    "missing key",
			content: `{"sincerity_score": 0.9, "warmth_score": 0.5, "personalization_score": 0.5}`,
			wantErr: true,
		},
		{
			name:    "boolean value",
			content: `{"sincerity_score": true, "warmth_score": 0.5, "personalization_score": 0.5, "authenticity_score": 0.5}`,
			wantErr: true,
		},
		{
			name:    "array root",
			content: `[0.9, 0.5, 0.5, 0.5]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRubric(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveSchemaPath(t *testing.T) {
	assert.Empty(t, ResolveSchemaPath("definitely/not/here.schema.json"))
	assert.NotEmpty(t, ResolveSchemaPath("rubric.schema.json"))
}
