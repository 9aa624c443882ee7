package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/admincache/internal/model"
)

func TestCompile_Text(t *testing.T) {
	stdout, _, err := execute(t, "compile", "testdata/resources.cue")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Compiled 3 resource(s)")
	assert.Contains(t, stdout, "posts [list,create,edit,show,delete] perPage=10 sort=id ASC")
	assert.Contains(t, stdout, "author_id->users(single)")
	assert.Contains(t, stdout, "comments->comments(many)")
	assert.Contains(t, stdout, "users [list,show]")
}

func TestCompile_JSON(t *testing.T) {
	stdout, _, err := execute(t, "compile", "--format", "json", "testdata/resources.cue")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, model.SchemaVersion, resp.Data.SchemaVersion)
	require.Len(t, resp.Data.Resources, 3)

	byName := make(map[string]model.ResourceDefinition)
	for _, def := range resp.Data.Resources {
		byName[def.Name] = def
	}
	posts := byName["posts"]
	assert.True(t, posts.Capabilities.HasDelete)
	assert.Equal(t, model.Sort{Field: "id", Order: model.SortASC}, posts.Sort)
	assert.Equal(t, model.ReferenceMany, posts.References["comments"].Kind)
	assert.Equal(t, "post_id", posts.References["comments"].Target)
	assert.True(t, posts.References["author_id"].AllowEmpty)
}

func TestCompile_OutputFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "defs.json")
	stdout, _, err := execute(t, "compile", "-o", out, "testdata/resources.cue")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote definitions to "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.Resources, 3)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		exitCode int
	}{
		{name: "syntax", path: "testdata/syntax_error.cue", exitCode: ExitFailure},
		{name: "validation", path: "testdata/bad_reference.cue", exitCode: ExitFailure},
		{name: "missing", path: "testdata/missing.cue", exitCode: ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, "compile", "--format", "json", tt.path)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.NotEmpty(t, resp.Error.Code)
		})
	}
}

func TestDescribeResource_Defaults(t *testing.T) {
	line := describeResource(model.ResourceDefinition{Name: "tags", Capabilities: model.Capabilities{HasList: true}})
	assert.Equal(t, "tags [list] perPage=10 sort=id DESC", line)
}
