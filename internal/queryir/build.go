package queryir

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/roach88/admincache/internal/model"
)

// FullTextKey is the filter key of a full-text search.
const FullTextKey = "q"

const (
	suffixGte = "_gte"
	suffixLte = "_lte"
)

// FromFilter builds the predicate of a filter. A nil or empty filter yields
// an empty And.
func FromFilter(filter model.Filter) (Predicate, error) {
	keys := model.SortedKeys(filter)
	preds := make([]Predicate, 0, len(keys))
	for _, key := range keys {
		p, err := fromEntry(key, filter[key])
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", key, err)
		}
		preds = append(preds, p)
	}
	return And{Predicates: preds}, nil
}

// FromListParams builds the Select of a list request on resource.
func FromListParams(resource string, params model.ListParams) (Select, error) {
	filter, err := FromFilter(params.Filter)
	if err != nil {
		return Select{}, err
	}
	sel := Select{From: resource, Filter: filter, Sort: params.Sort}
	if pp := params.Pagination.PerPage; pp > 0 {
		sel.Limit = pp
		sel.Offset = params.Pagination.Offset()
	}
	return sel, nil
}

// ByIDs builds the Select of a GET_MANY on resource.
func ByIDs(resource string, ids []model.ID) Select {
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = string(id)
	}
	return Select{From: resource, Filter: In{Field: model.IDField, Values: values}}
}

func fromEntry(key string, raw any) (Predicate, error) {
	if key == FullTextKey {
		text, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("full-text value must be a string, got %T", raw)
		}
		return Contains{Text: text}, nil
	}
	if field, ok := strings.CutSuffix(key, suffixGte); ok && field != "" {
		v, err := literal(field, raw)
		if err != nil {
			return nil, err
		}
		return Compare{Field: field, Op: OpGte, Value: v}, nil
	}
	if field, ok := strings.CutSuffix(key, suffixLte); ok && field != "" {
		v, err := literal(field, raw)
		if err != nil {
			return nil, err
		}
		return Compare{Field: field, Op: OpLte, Value: v}, nil
	}
	if list, ok := raw.([]any); ok {
		values := make([]any, 0, len(list))
		for i, elem := range list {
			v, err := literal(key, elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			values = append(values, v)
		}
		return In{Field: key, Values: dedupe(values)}, nil
	}
	v, err := literal(key, raw)
	if err != nil {
		return nil, err
	}
	return Equals{Field: key, Value: v}, nil
}

// literal restricts a filter value to the supported scalar types.
func literal(field string, v any) (any, error) {
	if field == model.IDField {
		id, err := model.NormalizeID(v)
		if err != nil {
			return nil, err
		}
		return string(id), nil
	}
	switch val := v.(type) {
	case nil, string, bool, int64:
		return val, nil
	case model.ID:
		return string(val), nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case float64:
		return integral(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		return nil, fmt.Errorf("number %s is not an integer", val)
	default:
		return nil, fmt.Errorf("unsupported filter value type %T", v)
	}
}

func integral(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, fmt.Errorf("float %v is not allowed, only integers", f)
	}
	return int64(f), nil
}

// dedupe keeps the first occurrence of each value in a stable order.
func dedupe(values []any) []any {
	seen := make(map[any]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Fields returns the sorted distinct fields a predicate reads.
func Fields(p Predicate) []string {
	set := map[string]struct{}{}
	collectFields(p, set)
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func collectFields(p Predicate, set map[string]struct{}) {
	switch pred := p.(type) {
	case Equals:
		set[pred.Field] = struct{}{}
	case In:
		set[pred.Field] = struct{}{}
	case Compare:
		set[pred.Field] = struct{}{}
	case And:
		for _, sub := range pred.Predicates {
			collectFields(sub, set)
		}
	}
}
