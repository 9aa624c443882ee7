package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const failingScenario = `name: wrong_redirect
description: "Expects a redirect that never happens"
schema: |
  resources: posts: {list: true, delete: true}
seed:
  posts:
    - {id: 1, title: one}
steps:
  - do: request_delete
    resource: posts
    id: 1
assertions:
  - type: redirect
    path: /elsewhere
`

const updateScenario = `name: update_notifies
description: "An update commits and notifies"
schema: |
  resources: posts: {list: true, edit: true}
seed:
  posts:
    - {id: 1, title: one}
steps:
  - do: request_update
    resource: posts
    id: 1
    data: {title: changed}
assertions:
  - type: notification
    key: aor.notification.updated
`

func TestTest_PassesWithGolden(t *testing.T) {
	stdout, _, err := execute(t, "test", "testdata/scenarios")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ delete_redirects_to_list (golden)")
	assert.Contains(t, stdout, "✓ update_notifies\n")
	assert.Contains(t, stdout, "2 passed, 0 failed, 2 total")
}

func TestTest_Filter(t *testing.T) {
	stdout, _, err := execute(t, "test", "testdata/scenarios", "--filter", "update_*", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "update_notifies", resp.Data.Scenarios[0].Name)
	assert.Equal(t, goldenMissing, resp.Data.Scenarios[0].Golden)
}

func TestTest_SingleFile(t *testing.T) {
	stdout, _, err := execute(t, "test", "testdata/scenarios/delete_redirects_to_list.yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "(golden)")
	assert.Contains(t, stdout, "1 passed")
}

func TestTest_Failure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong_redirect.yaml"), []byte(failingScenario), 0644))

	stdout, _, err := execute(t, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.False(t, resp.Data.Scenarios[0].Pass)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
}

func TestTest_UpdateThenMatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "update_notifies.yaml"), []byte(updateScenario), 0644))
	golden := filepath.Join(dir, "snapshots")

	stdout, _, err := execute(t, "test", dir, "--golden", golden, "--update")
	require.NoError(t, err)
	assert.Contains(t, stdout, "(golden updated)")

	data, err := os.ReadFile(filepath.Join(golden, "update_notifies.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"verb":"UPDATE"`)

	stdout, _, err = execute(t, "test", dir, "--golden", golden)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ update_notifies (golden)")

	require.NoError(t, os.WriteFile(filepath.Join(golden, "update_notifies.golden"), []byte(`{}`), 0644))
	stdout, _, err = execute(t, "test", dir, "--golden", golden)
	require.Error(t, err)
	assert.Contains(t, stdout, "--update to regenerate")
}

func TestTest_LoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [unclosed"), 0644))

	stdout, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, stdout, "✗ broken.yaml")
	assert.Contains(t, stdout, "load error")
}

func TestTest_EmptyAndMissing(t *testing.T) {
	stdout, _, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, stdout, "No scenarios found.")

	_, _, err = execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFindScenarioFiles_BadPattern(t *testing.T) {
	_, err := findScenarioFiles("testdata/scenarios", "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}
