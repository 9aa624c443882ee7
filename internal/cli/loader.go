package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/admincache/internal/model"
	"github.com/roach88/admincache/internal/schema"
)

// SchemaProblem is one schema error in command output.
type SchemaProblem struct {
	Code     string `json:"code"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
	Position string `json:"position,omitempty"`
}

func (p SchemaProblem) String() string {
	var prefix string
	if p.Position != "" {
		prefix = p.Position + ": "
	}
	if p.Field != "" {
		return fmt.Sprintf("%s[%s] %s: %s", prefix, p.Code, p.Field, p.Message)
	}
	return fmt.Sprintf("%s[%s] %s", prefix, p.Code, p.Message)
}

// loadSchema loads and validates the resource schema at path, a CUE file
// or a directory holding one CUE package. It returns definitions or
// problems, never both.
func loadSchema(path string) ([]model.ResourceDefinition, []SchemaProblem) {
	if _, err := os.Stat(path); err != nil {
		return nil, []SchemaProblem{{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema not found: %s", path)}}
	}
	defs, err := schema.Load(path)
	if err != nil {
		return nil, schemaProblems(err)
	}
	return defs, nil
}

func schemaProblems(err error) []SchemaProblem {
	var verrs schema.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]SchemaProblem, len(verrs))
		for i, v := range verrs {
			out[i] = SchemaProblem{Code: v.Code, Field: v.Field, Message: v.Message}
		}
		return out
	}
	var cerr *schema.CompileError
	if errors.As(err, &cerr) {
		p := SchemaProblem{Code: ErrCodeCompile, Field: cerr.Field, Message: cerr.Message}
		if cerr.Pos.IsValid() {
			p.Position = fmt.Sprintf("%s:%d:%d", cerr.Pos.Filename(), cerr.Pos.Line(), cerr.Pos.Column())
		}
		return []SchemaProblem{p}
	}
	return []SchemaProblem{{Code: ErrCodeLoadFailed, Message: err.Error()}}
}
