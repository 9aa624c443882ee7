package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/admincache/internal/model"
)

// Put inserts or replaces a record. The record must carry an id.
// Returns the record as stored.
func (s *Store) Put(ctx context.Context, resource string, rec model.Record) (model.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("put %s: begin tx: %w", resource, err)
	}
	defer tx.Rollback() // No-op if committed

	if err := putTx(ctx, tx, resource, rec); err != nil {
		return nil, fmt.Errorf("put %s: %w", resource, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("put %s: commit: %w", resource, err)
	}
	return rec, nil
}

// Create inserts a new record. A record without an id gets the next value
// of the resource's sequence, skipping ids already taken. Creating a record
// whose id exists fails.
func (s *Store) Create(ctx context.Context, resource string, data model.Record) (model.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create %s: begin tx: %w", resource, err)
	}
	defer tx.Rollback()

	rec := data.Clone()
	if rec == nil {
		rec = model.Record{}
	}
	if _, ok := rec[model.IDField]; !ok {
		next, err := nextID(ctx, tx, resource)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", resource, err)
		}
		rec[model.IDField] = next
	} else {
		id, err := rec.ID()
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", resource, err)
		}
		taken, err := exists(ctx, tx, resource, id)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", resource, err)
		}
		if taken {
			return nil, fmt.Errorf("create %s/%s: %w", resource, id, ErrConflict)
		}
	}

	if err := putTx(ctx, tx, resource, rec); err != nil {
		return nil, fmt.Errorf("create %s: %w", resource, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create %s: commit: %w", resource, err)
	}
	return rec, nil
}

// Update replaces the record with id by data, keeping the stored id value.
// Returns ErrNotFound when the record does not exist.
func (s *Store) Update(ctx context.Context, resource string, id model.ID, data model.Record) (model.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: begin tx: %w", resource, id, err)
	}
	defer tx.Rollback()

	prev, err := getTx(ctx, tx, resource, id)
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", resource, id, err)
	}
	rec := data.Clone()
	if rec == nil {
		rec = model.Record{}
	}
	rec[model.IDField] = prev[model.IDField]

	if err := putTx(ctx, tx, resource, rec); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", resource, id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("update %s/%s: commit: %w", resource, id, err)
	}
	return rec, nil
}

// Delete removes a record and returns it. Returns ErrNotFound when the
// record does not exist.
func (s *Store) Delete(ctx context.Context, resource string, id model.ID) (model.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("delete %s/%s: begin tx: %w", resource, id, err)
	}
	defer tx.Rollback()

	prev, err := getTx(ctx, tx, resource, id)
	if err != nil {
		return nil, fmt.Errorf("delete %s/%s: %w", resource, id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM records WHERE resource = ? AND id = ?`, resource, string(id)); err != nil {
		return nil, fmt.Errorf("delete %s/%s: %w", resource, id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("delete %s/%s: commit: %w", resource, id, err)
	}
	return prev, nil
}

// Load puts every record of seed in one transaction, resources in sorted
// order and records in slice order.
func (s *Store) Load(ctx context.Context, seed map[string][]model.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("load: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, resource := range model.SortedKeys(seed) {
		for i, rec := range seed[resource] {
			if err := putTx(ctx, tx, resource, rec); err != nil {
				return fmt.Errorf("load %s[%d]: %w", resource, i, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("load: commit: %w", err)
	}
	return nil
}

// putTx upserts rec with the next store-wide seq.
func putTx(ctx context.Context, tx *sql.Tx, resource string, rec model.Record) error {
	id, err := rec.ID()
	if err != nil {
		return err
	}
	data, err := marshalRecord(rec)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (resource, id, data, seq)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM records))
		ON CONFLICT(resource, id) DO UPDATE SET data = excluded.data, seq = excluded.seq
	`, resource, string(id), data)
	if err != nil {
		return fmt.Errorf("write record %s: %w", id, err)
	}
	return nil
}

// nextID advances the resource's sequence past every id in use. The
// sequence starts at the largest numeric id of the resource.
func nextID(ctx context.Context, tx *sql.Tx, resource string) (int64, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sequences (resource, next)
		SELECT ?, COALESCE(MAX(CAST(id AS INTEGER)), 0) FROM records WHERE resource = ?
		ON CONFLICT(resource) DO NOTHING
	`, resource, resource)
	if err != nil {
		return 0, fmt.Errorf("init sequence: %w", err)
	}
	for {
		var next int64
		err := tx.QueryRowContext(ctx,
			`UPDATE sequences SET next = next + 1 WHERE resource = ? RETURNING next`, resource).Scan(&next)
		if err != nil {
			return 0, fmt.Errorf("advance sequence: %w", err)
		}
		taken, err := exists(ctx, tx, resource, model.MustID(next))
		if err != nil {
			return 0, err
		}
		if !taken {
			return next, nil
		}
	}
}

func exists(ctx context.Context, tx *sql.Tx, resource string, id model.ID) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM records WHERE resource = ? AND id = ?`, resource, string(id)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", id, err)
	}
	return true, nil
}
