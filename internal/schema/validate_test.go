package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/admincache/internal/model"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		defs []model.ResourceDefinition
		want []string
	}{
		{
			name: "valid",
			defs: []model.ResourceDefinition{
				{Name: "posts", References: map[string]model.ReferenceDefinition{
					"comments": {Reference: "comments", Kind: model.ReferenceMany, Target: "post_id"},
				}},
				{Name: "comments"},
			},
		},
		{
			name: "duplicate",
			defs: []model.ResourceDefinition{{Name: "posts"}, {Name: "posts"}},
			want: []string{ErrDuplicateResource},
		},
		{
			name: "many without target",
			defs: []model.ResourceDefinition{
				{Name: "posts", References: map[string]model.ReferenceDefinition{
					"comments": {Reference: "posts", Kind: model.ReferenceMany},
				}},
			},
			want: []string{ErrReferenceTarget},
		},
		{
			name: "single with target",
			defs: []model.ResourceDefinition{
				{Name: "posts", References: map[string]model.ReferenceDefinition{
					"author_id": {Reference: "posts", Kind: model.ReferenceSingle, Target: "x"},
				}},
			},
			want: []string{ErrReferenceTarget},
		},
		{
			name: "cascade on a single reference",
			defs: []model.ResourceDefinition{
				{Name: "posts", References: map[string]model.ReferenceDefinition{
					"author_id": {Reference: "posts", Kind: model.ReferenceSingle, Cascade: true},
				}},
			},
			want: []string{ErrReferenceTarget},
		},
		{
			name: "every list problem",
			defs: []model.ResourceDefinition{
				{
					Name:    "posts",
					PerPage: -1,
					Sort:    model.Sort{Field: "id", Order: "UP"},
					Filter:  model.Filter{"views_gte": []any{int64(1)}},
				},
			},
			want: []string{ErrInvalidPerPage, ErrInvalidSortOrder, ErrInvalidFilter},
		},
		{
			name: "references are visited in field order",
			defs: []model.ResourceDefinition{
				{Name: "posts", References: map[string]model.ReferenceDefinition{
					"b": {Reference: "nope", Kind: model.ReferenceSingle},
					"a": {Reference: "posts", Kind: "weird"},
				}},
			},
			want: []string{ErrReferenceTarget, ErrUnknownReference},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := codes(Validate(tt.defs))
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Message: "x", Code: "E201"},
		{Field: "b", Message: "y", Code: "E202"},
	}
	assert.Equal(t, "[E201] a: x; [E202] b: y", errs.Error())
}
