package references

import "github.com/roach88/admincache/internal/model"

// Message keys reported by the input status helpers. They are resolved by
// the translation layer.
const (
	KeySingleMissing = "ra.input.references.single_missing"
	KeyAllMissing    = "ra.input.references.all_missing"
	KeyManyMissing   = "ra.input.references.many_missing"
)

// Matching is the state of the matching query behind a reference input.
type Matching struct {
	// Done is false while no matching query has completed.
	Done bool
	// Err is the message of a failed matching query.
	Err     string
	Records []model.Record
}

func (m Matching) failed() bool    { return m.Done && m.Err != "" }
func (m Matching) succeeded() bool { return m.Done && m.Err == "" }

// InputStatus tells a reference input what to render.
type InputStatus struct {
	Waiting bool
	Error   string
	Warning string
	Choices []model.Record
}

// StatusForInput computes the status of a single-value reference input.
// value is the current foreign key, record its cached referenced record
// (nil when not cached).
func StatusForInput(value model.ID, matching Matching, record model.Record) InputStatus {
	hasValue := !value.IsZero()
	var matchingErr, selectedErr string
	if matching.failed() {
		matchingErr = matching.Err
	}
	if hasValue && record == nil {
		selectedErr = KeySingleMissing
	}

	st := InputStatus{
		Waiting: (hasValue && selectedErr != "" && !matching.Done) || (!hasValue && !matching.Done),
	}
	switch {
	case hasValue && selectedErr != "" && matchingErr != "":
		st.Error = selectedErr
	case !hasValue && matchingErr != "":
		st.Error = matchingErr
	}
	if selectedErr != "" {
		st.Warning = selectedErr
	} else {
		st.Warning = matchingErr
	}
	if matching.succeeded() {
		st.Choices = matching.Records
	} else if record != nil {
		st.Choices = []model.Record{record}
	} else {
		st.Choices = []model.Record{}
	}
	return st
}

// ReferencesStatus summarizes how many selected references are cached.
type ReferencesStatus string

const (
	ReferencesReady      ReferencesStatus = "REFERENCES_STATUS_READY"
	ReferencesIncomplete ReferencesStatus = "REFERENCES_STATUS_INCOMPLETE"
	ReferencesEmpty      ReferencesStatus = "REFERENCES_STATUS_EMPTY"
)

// SelectedReferencesStatus compares the selected ids of an array input with
// the records found for them. A nil value means the input has no value.
func SelectedReferencesStatus(value []model.ID, records []model.Record) ReferencesStatus {
	switch {
	case value == nil || len(value) == len(records):
		return ReferencesReady
	case len(records) > 0:
		return ReferencesIncomplete
	default:
		return ReferencesEmpty
	}
}

// StatusForArrayInput computes the status of an array reference input.
func StatusForArrayInput(value []model.ID, matching Matching, records []model.Record) InputStatus {
	hasValue := value != nil
	var matchingErr string
	if matching.failed() {
		matchingErr = matching.Err
	}
	selected := SelectedReferencesStatus(value, records)

	st := InputStatus{
		Waiting: (!matching.Done && hasValue && selected == ReferencesEmpty) || (!matching.Done && !hasValue),
	}
	if matchingErr != "" && (!hasValue || selected == ReferencesEmpty) {
		st.Error = KeyAllMissing
	}
	switch {
	case matchingErr != "":
		st.Warning = matchingErr
	case selected == ReferencesEmpty:
		st.Warning = KeyAllMissing
	case selected == ReferencesIncomplete:
		st.Warning = KeyManyMissing
	}
	if matching.succeeded() {
		st.Choices = unionByID(records, matching.Records)
	} else {
		st.Choices = append([]model.Record{}, records...)
	}
	return st
}

func unionByID(lists ...[]model.Record) []model.Record {
	seen := make(map[model.ID]struct{})
	out := []model.Record{}
	for _, list := range lists {
		for _, rec := range list {
			id, err := rec.ID()
			if err != nil {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, rec)
		}
	}
	return out
}
