package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "Minimal scenario"
schema: |
  resources: posts: {list: true}
steps:
  - do: request_list
    resource: posts
assertions:
  - type: trace_count
    verb: GET_LIST
    count: 1
`

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "resources.cue"), []byte(`resources: posts: {}`), 0644))
	path := filepath.Join(dir, "s.yaml")
	content := `
name: test_scenario
description: "Test scenario for loading"
resources: resources.cue
seed:
  posts:
    - {id: 1, title: one}
config:
  accumulate_window: 25ms
  max_batch_size: 2
  failures:
    - {verb: DELETE, id: 1, status: 409, message: busy}
steps:
  - do: request_list
    resource: posts
    page: 2
    per_page: 5
    sort: {field: title, order: desc}
    filter: {status: draft}
  - do: change_selection
    resource: posts
    ids: [1, "a"]
    selected: false
    mode: bulk
assertions:
  - type: list_ids
    resource: posts
    ids: [1]
    total: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", s.Name)
	assert.Equal(t, filepath.Join(dir, "resources.cue"), s.Resources)
	assert.Equal(t, 25*time.Millisecond, s.Config.AccumulateWindow)
	assert.Equal(t, 2, s.Config.MaxBatchSize)
	require.Len(t, s.Config.Failures, 1)
	assert.Equal(t, 409, s.Config.Failures[0].Status)

	require.Len(t, s.Steps, 2)
	list := s.Steps[0]
	assert.Equal(t, StepRequestList, list.Do)
	assert.Equal(t, 2, list.Page)
	assert.Equal(t, 5, list.PerPage)
	assert.Equal(t, &SortArg{Field: "title", Order: "desc"}, list.Sort)
	assert.Equal(t, map[string]any{"status": "draft"}, list.Filter)

	sel := s.Steps[1]
	assert.Equal(t, []any{1, "a"}, sel.IDs)
	require.NotNil(t, sel.Selected)
	assert.False(t, *sel.Selected)
	assert.Equal(t, "bulk", sel.Mode)

	require.Len(t, s.Assertions, 1)
	require.NotNil(t, s.Assertions[0].Total)
	assert.Equal(t, 1, *s.Assertions[0].Total)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MissingResourcesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	content := `
name: x
description: "x"
resources: missing.cue
steps: [{do: request_list, resource: posts}]
assertions: [{type: trace_count, verb: GET_LIST, count: 1}]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resources file not found")
}

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	assert.Contains(t, s.Schema, "resources: posts")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "malformed",
			yaml: "name: [",
			want: "failed to parse YAML",
		},
		{
			name: "unknown field",
			yaml: minimalScenario + "flow_token: abc\n",
			want: "field flow_token not found",
		},
		{
			name: "missing name",
			yaml: `
description: "d"
schema: "resources: posts: {}"
steps: [{do: request_list, resource: posts}]
assertions: [{type: trace_count, verb: GET_LIST}]
`,
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: `
name: n
schema: "resources: posts: {}"
steps: [{do: request_list, resource: posts}]
assertions: [{type: trace_count, verb: GET_LIST}]
`,
			want: "description is required",
		},
		{
			name: "no resources",
			yaml: `
name: n
description: d
steps: [{do: request_list, resource: posts}]
assertions: [{type: trace_count, verb: GET_LIST}]
`,
			want: "resources or schema is required",
		},
		{
			name: "no steps",
			yaml: `
name: n
description: d
schema: "resources: posts: {}"
assertions: [{type: trace_count, verb: GET_LIST}]
`,
			want: "steps list is required",
		},
		{
			name: "no assertions",
			yaml: `
name: n
description: d
schema: "resources: posts: {}"
steps: [{do: request_list, resource: posts}]
`,
			want: "assertions list is required",
		},
		{
			name: "unknown step",
			yaml: `
name: n
description: d
schema: "resources: posts: {}"
steps: [{do: invoke, resource: posts}]
assertions: [{type: trace_count, verb: GET_LIST}]
`,
			want: `steps[0]: unknown step "invoke"`,
		},
		{
			name: "step without resource",
			yaml: `
name: n
description: d
schema: "resources: posts: {}"
steps: [{do: request_list}]
assertions: [{type: trace_count, verb: GET_LIST}]
`,
			want: "steps[0]: resource is required",
		},
		{
			name: "bad expect",
			yaml: `
name: n
description: d
schema: "resources: posts: {}"
steps: [{do: request_list, resource: posts, expect: ok}]
assertions: [{type: trace_count, verb: GET_LIST}]
`,
			want: "expect must be committed, failed or discarded",
		},
		{
			name: "failure without message",
			yaml: `
name: n
description: d
schema: "resources: posts: {}"
config:
  failures: [{verb: GET_LIST}]
steps: [{do: request_list, resource: posts}]
assertions: [{type: trace_count, verb: GET_LIST}]
`,
			want: "config.failures[0]: message is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateAssertion(t *testing.T) {
	total := 2
	tests := []struct {
		name string
		a    Assertion
		want string
	}{
		{name: "missing type", a: Assertion{}, want: "type is required"},
		{name: "unknown type", a: Assertion{Type: "final_state"}, want: `unknown assertion type "final_state"`},
		{name: "contains without verb", a: Assertion{Type: AssertTraceContains}, want: "verb is required"},
		{name: "order without calls", a: Assertion{Type: AssertTraceOrder}, want: "calls list is required"},
		{name: "count without verb", a: Assertion{Type: AssertTraceCount}, want: "verb is required"},
		{name: "negative count", a: Assertion{Type: AssertTraceCount, Verb: "GET_LIST", Count: -1}, want: "count must be non-negative"},
		{name: "list without resource", a: Assertion{Type: AssertListIDs, Total: &total}, want: "resource is required"},
		{name: "selection without resource", a: Assertion{Type: AssertSelection}, want: "resource is required"},
		{name: "record without id", a: Assertion{Type: AssertRecord, Resource: "posts"}, want: "resource and id are required"},
		{name: "record without expect", a: Assertion{Type: AssertRecord, Resource: "posts", ID: 1}, want: "expect or absent is required"},
		{name: "notification without key", a: Assertion{Type: AssertNotification}, want: "key is required"},
		{name: "redirect without path", a: Assertion{Type: AssertRedirect}, want: "path is required"},
		{name: "count zero", a: Assertion{Type: AssertTraceCount, Verb: "DELETE"}},
		{name: "absent record", a: Assertion{Type: AssertRecord, Resource: "posts", ID: 1, Absent: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAssertion(0, &tt.a)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadExampleScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, filepath.Base(path), s.Name+".yaml", "file name matches scenario name")
		})
	}
}
