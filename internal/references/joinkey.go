package references

import (
	"fmt"
	"strings"

	"github.com/roach88/admincache/internal/model"
)

// NameRelatedTo builds the join key of a one-to-many query:
//
//	<resource>_<reference>@<target>_<id>[?key=<json>&...]
//
// Filter keys are emitted in sorted order so equal filters always produce
// the same key.
func NameRelatedTo(reference string, id model.ID, resource, target string, filter model.Filter) string {
	base := fmt.Sprintf("%s_%s@%s_%s", resource, reference, target, id)
	if len(filter) == 0 {
		return base
	}
	parts := make([]string, 0, len(filter))
	for _, k := range model.SortedKeys(filter) {
		val, err := model.MarshalCanonical(filter[k])
		if err != nil {
			val = []byte(fmt.Sprintf("%q", fmt.Sprint(filter[k])))
		}
		parts = append(parts, k+"="+string(val))
	}
	return base + "?" + strings.Join(parts, "&")
}

// ReferenceSource builds the possible-values key of a reference input.
func ReferenceSource(resource, source string) string {
	return resource + "@" + source
}
