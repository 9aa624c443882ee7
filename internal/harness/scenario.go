package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is one conformance run: resources, seed data, a list of steps
// and the assertions that must hold afterwards.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// Resources is the path of a CUE schema file, relative to the scenario
	// file once loaded with LoadScenario.
	Resources string `yaml:"resources,omitempty"`

	// Schema is inline CUE source, used when Resources is empty.
	Schema string `yaml:"schema,omitempty"`

	// Seed holds the records loaded into the store before the first step.
	Seed map[string][]map[string]any `yaml:"seed,omitempty"`

	// Config tunes the engine for this scenario.
	Config ScenarioConfig `yaml:"config,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// ScenarioConfig overrides the engine defaults of the harness.
type ScenarioConfig struct {
	AccumulateWindow time.Duration `yaml:"accumulate_window,omitempty"`
	MaxBatchSize     int           `yaml:"max_batch_size,omitempty"`
	RefetchOnChange  bool          `yaml:"refetch_on_change,omitempty"`
	ListRetention    int64         `yaml:"list_retention,omitempty"`
	LoginPath        string        `yaml:"login_path,omitempty"`
	Failures         []Failure     `yaml:"failures,omitempty"`
}

// Failure makes matching provider calls fail with Message. Resource and ID
// narrow the match when set.
type Failure struct {
	Verb     string `yaml:"verb"`
	Resource string `yaml:"resource,omitempty"`
	ID       any    `yaml:"id,omitempty"`
	Status   int    `yaml:"status,omitempty"`
	Message  string `yaml:"message"`
}

// Step is one dispatch. Which fields apply depends on Do.
type Step struct {
	Do       string `yaml:"do"`
	Resource string `yaml:"resource"`

	ID   any            `yaml:"id,omitempty"`
	IDs  []any          `yaml:"ids,omitempty"`
	Data map[string]any `yaml:"data,omitempty"`

	Page    int            `yaml:"page,omitempty"`
	PerPage int            `yaml:"per_page,omitempty"`
	Sort    *SortArg       `yaml:"sort,omitempty"`
	Filter  map[string]any `yaml:"filter,omitempty"`

	// Source and Target describe a request_many_reference: the records of
	// Resource whose Target equals ID, shown on a record of Source.
	Source string `yaml:"source,omitempty"`
	Target string `yaml:"target,omitempty"`

	Selected   *bool  `yaml:"selected,omitempty"`
	Mode       string `yaml:"mode,omitempty"`
	KeepFailed bool   `yaml:"keep_failed,omitempty"`

	BasePath string `yaml:"base_path,omitempty"`
	Redirect string `yaml:"redirect,omitempty"`

	// Async steps do not wait for their ticket.
	Async bool `yaml:"async,omitempty"`

	// Expect is the required outcome: committed, failed or discarded.
	Expect string `yaml:"expect,omitempty"`
}

// SortArg is the sort of a list step.
type SortArg struct {
	Field string `yaml:"field"`
	Order string `yaml:"order,omitempty"`
}

// Step kinds.
const (
	StepRequestList          = "request_list"
	StepRequestOne           = "request_one"
	StepRequestMany          = "request_many"
	StepRequestManyReference = "request_many_reference"
	StepRequestCreate        = "request_create"
	StepRequestUpdate        = "request_update"
	StepRequestDelete        = "request_delete"
	StepSetSort              = "set_sort"
	StepSetFilter            = "set_filter"
	StepSetPage              = "set_page"
	StepSetPerPage           = "set_per_page"
	StepChangeSelection      = "change_selection"
	StepClearSelection       = "clear_selection"
	StepBulkDelete           = "bulk_delete"
	StepBulkUpdate           = "bulk_update"
)

var stepKinds = []string{
	StepRequestList, StepRequestOne, StepRequestMany, StepRequestManyReference,
	StepRequestCreate, StepRequestUpdate, StepRequestDelete,
	StepSetSort, StepSetFilter, StepSetPage, StepSetPerPage,
	StepChangeSelection, StepClearSelection, StepBulkDelete, StepBulkUpdate,
}

// Assertion checks the trace or the final cache state.
type Assertion struct {
	Type string `yaml:"type"`

	Verb     string         `yaml:"verb,omitempty"`
	Resource string         `yaml:"resource,omitempty"`
	Args     map[string]any `yaml:"args,omitempty"`

	// Calls is the expected call order of trace_order, each "VERB" or
	// "VERB resource".
	Calls []string `yaml:"calls,omitempty"`
	Count int      `yaml:"count,omitempty"`

	IDs   []any `yaml:"ids,omitempty"`
	Total *int  `yaml:"total,omitempty"`

	ID     any            `yaml:"id,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
	Absent bool           `yaml:"absent,omitempty"`

	Key   string `yaml:"key,omitempty"`
	Level string `yaml:"level,omitempty"`
	Path  string `yaml:"path,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertListIDs       = "list_ids"
	AssertSelection     = "selection"
	AssertRecord        = "record"
	AssertNotification  = "notification"
	AssertRedirect      = "redirect"
)

// LoadScenario reads a scenario file. Unknown fields are rejected, and
// the resources path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Resources != "" && !filepath.IsAbs(s.Resources) {
		s.Resources = filepath.Join(filepath.Dir(path), s.Resources)
	}
	if s.Resources != "" {
		if _, err := os.Stat(s.Resources); err != nil {
			return nil, fmt.Errorf("invalid scenario: resources file not found: %s", s.Resources)
		}
	}
	return s, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Resources == "" && s.Schema == "" {
		return fmt.Errorf("resources or schema is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, f := range s.Config.Failures {
		if f.Verb == "" {
			return fmt.Errorf("config.failures[%d]: verb is required", i)
		}
		if f.Message == "" {
			return fmt.Errorf("config.failures[%d]: message is required", i)
		}
	}

	for i, step := range s.Steps {
		if !slices.Contains(stepKinds, step.Do) {
			return fmt.Errorf("steps[%d]: unknown step %q", i, step.Do)
		}
		if step.Resource == "" {
			return fmt.Errorf("steps[%d]: resource is required", i)
		}
		switch step.Expect {
		case "", "committed", "failed", "discarded":
		default:
			return fmt.Errorf("steps[%d]: expect must be committed, failed or discarded, got %q", i, step.Expect)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Verb == "" {
			return fmt.Errorf("assertions[%d]: verb is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Verb == "" {
			return fmt.Errorf("assertions[%d]: verb is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertListIDs, AssertSelection:
		if a.Resource == "" {
			return fmt.Errorf("assertions[%d]: resource is required for %s", index, a.Type)
		}
	case AssertRecord:
		if a.Resource == "" || a.ID == nil {
			return fmt.Errorf("assertions[%d]: resource and id are required for record", index)
		}
		if !a.Absent && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect or absent is required for record", index)
		}
	case AssertNotification:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for notification", index)
		}
	case AssertRedirect:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for redirect", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
