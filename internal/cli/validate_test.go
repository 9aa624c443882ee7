package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/admincache/internal/schema"
)

func TestValidate_Valid(t *testing.T) {
	stdout, _, err := execute(t, "validate", "testdata/resources.cue")
	require.NoError(t, err)
	assert.Contains(t, stdout, "3 resource(s) valid")
}

func TestValidate_DefaultsToConfiguredSchema(t *testing.T) {
	t.Setenv("ADMINCACHE_SCHEMA", "testdata/resources.cue")
	stdout, _, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, stdout, "testdata/resources.cue")
}

func TestValidate_UnknownReference(t *testing.T) {
	stdout, _, err := execute(t, "validate", "testdata/bad_reference.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗")
	assert.Contains(t, stdout, schema.ErrUnknownReference)
	assert.Contains(t, stdout, "authors")
}

func TestValidate_JSON(t *testing.T) {
	stdout, _, err := execute(t, "validate", "--format", "json", "testdata/bad_reference.cue")
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, schema.ErrUnknownReference, resp.Data.Errors[0].Code)
}

func TestValidate_SyntaxError(t *testing.T) {
	stdout, _, err := execute(t, "validate", "testdata/syntax_error.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗")
}

func TestValidate_NotFound(t *testing.T) {
	stdout, _, err := execute(t, "validate", "--format", "json", "testdata/missing.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}
