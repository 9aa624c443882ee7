package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/admincache/internal/model"
	"github.com/roach88/admincache/internal/queryir"
	"github.com/roach88/admincache/internal/querysql"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Page is one page of a list query.
type Page struct {
	Records []model.Record
	Total   int
}

// Get returns one record. Returns ErrNotFound when it does not exist.
func (s *Store) Get(ctx context.Context, resource string, id model.ID) (model.Record, error) {
	rec, err := getTx(ctx, s.db, resource, id)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", resource, id, err)
	}
	return rec, nil
}

// GetMany returns the records with the given ids in request order. Missing
// ids are skipped.
func (s *Store) GetMany(ctx context.Context, resource string, ids []model.ID) ([]model.Record, error) {
	if len(ids) == 0 {
		return []model.Record{}, nil
	}
	rows, err := s.Select(ctx, queryir.ByIDs(resource, ids))
	if err != nil {
		return nil, fmt.Errorf("get many %s: %w", resource, err)
	}
	byID := make(map[model.ID]model.Record, len(rows))
	for _, rec := range rows {
		id, err := rec.ID()
		if err != nil {
			return nil, fmt.Errorf("get many %s: %w", resource, err)
		}
		byID[id] = rec
	}
	out := make([]model.Record, 0, len(ids))
	for _, id := range model.UniqueIDs(ids) {
		if rec, ok := byID[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// List returns one page of a resource and the total row count of the
// filter.
func (s *Store) List(ctx context.Context, resource string, params model.ListParams) (Page, error) {
	sel, err := queryir.FromListParams(resource, params)
	if err != nil {
		return Page{}, fmt.Errorf("list %s: %w: %w", resource, ErrInvalidQuery, err)
	}
	records, err := s.Select(ctx, sel)
	if err != nil {
		return Page{}, fmt.Errorf("list %s: %w", resource, err)
	}
	total, err := s.Count(ctx, sel)
	if err != nil {
		return Page{}, fmt.Errorf("list %s: %w", resource, err)
	}
	return Page{Records: records, Total: total}, nil
}

// Select runs a compiled queryir select.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Select(ctx context.Context, sel queryir.Select) ([]model.Record, error) {
	query, args, err := querysql.NewSQLCompiler().Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := unmarshalRecord(data)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Count returns the number of rows sel matches, ignoring its page window.
func (s *Store) Count(ctx context.Context, sel queryir.Select) (int, error) {
	query, args, err := querysql.NewSQLCompiler().CompileCount(sel)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Resources returns the names of every resource holding records, sorted.
func (s *Store) Resources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT resource FROM records ORDER BY resource ASC COLLATE BINARY`)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return names, nil
}

func getTx(ctx context.Context, q queryer, resource string, id model.ID) (model.Record, error) {
	var data string
	err := q.QueryRowContext(ctx,
		`SELECT data FROM records WHERE resource = ? AND id = ?`, resource, string(id)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return unmarshalRecord(data)
}
