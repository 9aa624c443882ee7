package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/admincache/internal/model"
	"github.com/roach88/admincache/internal/queryir"
)

// Table is the record table the compiler targets.
const Table = "records"

// SQLCompiler compiles queryir selects to parameterized SQLite SQL over the
// records table.
//
// Every value and every JSON path is passed as a parameter; only column
// names and operators appear in the SQL text. Every row query ends with the
// id tiebreaker so equal sort keys come back in a stable order.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile returns the row query of sel, selecting id and data.
func (c *SQLCompiler) Compile(sel queryir.Select) (string, []any, error) {
	where, params, err := c.where(sel)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT id, data FROM %s WHERE %s", Table, where)

	order, orderParams := c.orderBy(sel.Sort)
	b.WriteString(" ORDER BY ")
	b.WriteString(order)
	params = append(params, orderParams...)

	if sel.Limit > 0 {
		b.WriteString(" LIMIT ? OFFSET ?")
		params = append(params, sel.Limit, sel.Offset)
	}
	return b.String(), params, nil
}

// CompileCount returns the query counting every row sel matches, ignoring
// its page window.
func (c *SQLCompiler) CompileCount(sel queryir.Select) (string, []any, error) {
	where, params, err := c.where(sel)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", Table, where), params, nil
}

func (c *SQLCompiler) where(sel queryir.Select) (string, []any, error) {
	if res := queryir.Validate(sel); !res.Valid {
		return "", nil, res.Err()
	}
	clause := "resource = ?"
	params := []any{sel.From}
	if sel.Filter == nil {
		return clause, params, nil
	}
	filterSQL, filterParams, err := c.compilePredicate(sel.Filter)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	if filterSQL != "" {
		clause += " AND " + filterSQL
		params = append(params, filterParams...)
	}
	return clause, params, nil
}

// orderBy sorts on the requested field, then on id.
// COLLATE BINARY keeps text ordering identical across SQLite builds.
func (c *SQLCompiler) orderBy(s model.Sort) (string, []any) {
	const tiebreak = "id ASC COLLATE BINARY"
	if s.Field == "" {
		return tiebreak, nil
	}
	dir := "ASC"
	if s.Order == model.SortDESC {
		dir = "DESC"
	}
	return fmt.Sprintf("json_extract(data, ?) %s, %s", dir, tiebreak), []any{JSONPath(s.Field)}
}

// compilePredicate returns an empty fragment for an always-true predicate.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		col, params := column(pred.Field)
		if pred.Value == nil {
			return col + " IS NULL", params, nil
		}
		return col + " = ?", append(params, pred.Value), nil
	case queryir.In:
		if len(pred.Values) == 0 {
			return "0 = 1", nil, nil
		}
		col, params := column(pred.Field)
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(pred.Values)), ", ")
		return fmt.Sprintf("%s IN (%s)", col, marks), append(params, pred.Values...), nil
	case queryir.Compare:
		col, params := column(pred.Field)
		return fmt.Sprintf("%s %s ?", col, pred.Op), append(params, pred.Value), nil
	case queryir.Contains:
		if pred.Text == "" {
			return "", nil, nil
		}
		return `data LIKE ? ESCAPE '\'`, []any{"%" + escapeLike(pred.Text) + "%"}, nil
	case queryir.And:
		return c.compileAnd(pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	var parts []string
	var params []any
	for _, pred := range and.Predicates {
		sql, ps, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		if sql == "" {
			continue
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// column addresses a record field. The id field is the indexed id column;
// every other field is read from the JSON document.
func column(field string) (string, []any) {
	if field == model.IDField {
		return "id", nil
	}
	return "json_extract(data, ?)", []any{JSONPath(field)}
}

// JSONPath converts a dot-separated field name to a quoted SQLite JSON
// path: author.name becomes $."author"."name".
func JSONPath(field string) string {
	var b strings.Builder
	b.WriteByte('$')
	for _, seg := range strings.Split(field, ".") {
		b.WriteString(`."`)
		b.WriteString(seg)
		b.WriteByte('"')
	}
	return b.String()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
