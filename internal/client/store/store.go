// Package store is the device-local project database. It mirrors what the
// server holds for this device plus a dirty flag for edits that have not
// been pushed yet.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/newwaysadmin/slipsync/internal/client/store/migrations"
	"github.com/newwaysadmin/slipsync/internal/common"
	"github.com/newwaysadmin/slipsync/internal/dbx"
)

// Project is one locally-held review project.
type Project struct {
	ID           string
	LastModified int64
	IsClosed     bool
	OwnerName    string
	BillCount    int
	Payload      []byte
	Dirty        bool
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and runs the
// embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for tests.
func (s *Store) DB() *sql.DB { return s.db }

// States lists every project without payload bytes, for the negotiation
// report.
func (s *Store) States(ctx context.Context) ([]Project, error) {
	query := `SELECT id, last_modified, is_closed, owner_name, bill_count, dirty FROM projects`
	return s.selectProjects(ctx, s.db, query)
}

func (s *Store) selectProjects(ctx context.Context, db dbx.DBTX, query string, args ...any) ([]Project, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select projects: %w", err)
	}
	defer rows.Close()

	var result []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.LastModified, &p.IsClosed, &p.OwnerName, &p.BillCount, &p.Dirty); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns one project including its payload.
func (s *Store) Get(ctx context.Context, id string) (*Project, error) {
	query := `SELECT id, last_modified, is_closed, owner_name, bill_count, payload, dirty FROM projects WHERE id = ?`

	var p Project
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&p.ID, &p.LastModified, &p.IsClosed, &p.OwnerName, &p.BillCount, &p.Payload, &p.Dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select project: %w", err)
	}
	return &p, nil
}

// Upsert inserts or replaces a project row.
func (s *Store) Upsert(ctx context.Context, p *Project) error {
	query := `
		INSERT INTO projects (id, last_modified, is_closed, owner_name, bill_count, payload, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_modified = excluded.last_modified,
			is_closed = excluded.is_closed,
			owner_name = excluded.owner_name,
			bill_count = excluded.bill_count,
			payload = excluded.payload,
			dirty = excluded.dirty
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.LastModified, p.IsClosed, p.OwnerName, p.BillCount, p.Payload, p.Dirty)
	if err != nil {
		return fmt.Errorf("failed to upsert project: %w", err)
	}
	return nil
}

// Delete removes a project row. Deleting an absent id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// DirtyProjects lists projects with unpushed local edits, payloads included.
func (s *Store) DirtyProjects(ctx context.Context) ([]Project, error) {
	query := `SELECT id, last_modified, is_closed, owner_name, bill_count, payload, dirty FROM projects WHERE dirty = 1`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select dirty projects: %w", err)
	}
	defer rows.Close()

	var result []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.LastModified, &p.IsClosed, &p.OwnerName, &p.BillCount, &p.Payload, &p.Dirty); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SetBillCount raises the recorded bill count if n is larger than what is
// stored.
func (s *Store) SetBillCount(ctx context.Context, id string, n int) error {
	query := `UPDATE projects SET bill_count = ? WHERE id = ? AND bill_count < ?`
	if _, err := s.db.ExecContext(ctx, query, n, id, n); err != nil {
		return fmt.Errorf("failed to update bill count: %w", err)
	}
	return nil
}

// SweepClosed deletes clean, closed projects last modified before cutoff and
// returns how many were removed. Dirty rows are never swept.
func (s *Store) SweepClosed(ctx context.Context, cutoff int64) (int64, error) {
	query := `DELETE FROM projects WHERE is_closed = 1 AND dirty = 0 AND last_modified < ?`

	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep projects: %w", err)
	}
	return res.RowsAffected()
}

// SyncTime returns the persisted high-water mark of the last sync round, or
// zero when the device has never synced.
func (s *Store) SyncTime(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = 'last_sync'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read sync time: %w", err)
	}
	return v, nil
}

// SetSyncTime persists the server timestamp of a completed round.
func (s *Store) SetSyncTime(ctx context.Context, ts int64) error {
	query := `
		INSERT INTO sync_state (key, value) VALUES ('last_sync', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.db.ExecContext(ctx, query, ts); err != nil {
		return fmt.Errorf("failed to save sync time: %w", err)
	}
	return nil
}
