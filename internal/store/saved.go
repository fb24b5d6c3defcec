package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/log/level"

	"github.com/roach88/dynaquery/internal/dqerr"
)

// SavedQuery is a persisted query definition.
type SavedQuery struct {
	ID         int64
	Name       string
	IsDefault  bool
	TargetView string
	// Definition is the canonical JSON request the query is rebuilt from.
	Definition string
	CreatedAt  time.Time
}

// CreateSavedQuery inserts sq and returns it with its ID and CreatedAt set.
//
// When sq.IsDefault is set, every other default is cleared in the same
// transaction, so exactly one default exists afterwards.
func (s *Store) CreateSavedQuery(ctx context.Context, sq SavedQuery) (SavedQuery, error) {
	sq.CreatedAt = s.now().UTC().Truncate(time.Second)

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if sq.IsDefault {
			if err := clearDefaults(ctx, tx); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO saved_queries (name, is_default, target_view, definition, created_at)
			VALUES (?, ?, ?, ?, ?)
		`,
			sq.Name,
			boolToInt(sq.IsDefault),
			sq.TargetView,
			sq.Definition,
			sq.CreatedAt.Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("insert saved query: %w", err)
		}

		sq.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("saved query id: %w", err)
		}
		return nil
	})
	if err != nil {
		return SavedQuery{}, err
	}

	level.Debug(s.logger).Log("msg", "saved query created", "id", sq.ID, "name", sq.Name, "default", sq.IsDefault)
	return sq, nil
}

// FindSavedQuery returns the saved query with the given id, or a
// dqerr.CodeNotFound error.
func (s *Store) FindSavedQuery(ctx context.Context, id int64) (SavedQuery, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, is_default, target_view, definition, created_at
		FROM saved_queries
		WHERE id = ?
	`, id)

	sq, err := scanSavedQuery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedQuery{}, dqerr.NotFound(id)
	}
	if err != nil {
		return SavedQuery{}, fmt.Errorf("find saved query %d: %w", id, err)
	}
	return sq, nil
}

// ListSavedQueries returns every saved query ordered by id.
//
// Returns empty slice (not nil) if none exist.
func (s *Store) ListSavedQueries(ctx context.Context) ([]SavedQuery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, is_default, target_view, definition, created_at
		FROM saved_queries
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query saved queries: %w", err)
	}
	defer rows.Close()

	out := []SavedQuery{}
	for rows.Next() {
		sq, err := scanSavedQuery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved queries: %w", err)
	}
	return out, nil
}

// SetDefault makes the saved query with the given id the only default.
// Clearing and setting happen in one transaction.
func (s *Store) SetDefault(ctx context.Context, id int64) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM saved_queries WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return dqerr.NotFound(id)
		}
		if err != nil {
			return fmt.Errorf("find saved query %d: %w", id, err)
		}

		if err := clearDefaults(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE saved_queries SET is_default = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("set default: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	level.Debug(s.logger).Log("msg", "default saved query set", "id", id)
	return nil
}

// DefaultSavedQuery returns the default saved query. The boolean is false
// when no query is the default.
func (s *Store) DefaultSavedQuery(ctx context.Context) (SavedQuery, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, is_default, target_view, definition, created_at
		FROM saved_queries
		WHERE is_default = 1
	`)

	sq, err := scanSavedQuery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedQuery{}, false, nil
	}
	if err != nil {
		return SavedQuery{}, false, fmt.Errorf("find default saved query: %w", err)
	}
	return sq, true, nil
}

func clearDefaults(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `UPDATE saved_queries SET is_default = 0 WHERE is_default = 1`); err != nil {
		return fmt.Errorf("clear defaults: %w", err)
	}
	return nil
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSavedQuery(row rowScanner) (SavedQuery, error) {
	var (
		sq        SavedQuery
		isDefault int
		createdAt string
	)
	if err := row.Scan(&sq.ID, &sq.Name, &isDefault, &sq.TargetView, &sq.Definition, &createdAt); err != nil {
		return SavedQuery{}, err
	}
	sq.IsDefault = isDefault == 1

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return SavedQuery{}, fmt.Errorf("parse created_at of saved query %d: %w", sq.ID, err)
	}
	sq.CreatedAt = t
	return sq, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
