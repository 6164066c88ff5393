package index

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/newwaysadmin/slipsync/internal/dbx"
	"github.com/newwaysadmin/slipsync/internal/server/index/migrations"
	"github.com/newwaysadmin/slipsync/internal/server/models"
)

// Postgres keeps the project listing in a table so it survives restarts and
// is shared between server replicas. It is maintained incrementally by the
// coordinator's writes; Rebuild can repopulate it from the document store.
type Postgres struct {
	db dbx.DBTX
}

// NewPostgres binds the index to a DBTX (*sql.DB or *sql.Tx).
func NewPostgres(db dbx.DBTX) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres opens a pgx connection for dsn and runs the embedded
// migrations.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, *sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, nil, fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}

	return NewPostgres(db), db, nil
}

func (p *Postgres) List(ctx context.Context) ([]models.MetadataEntry, error) {
	query := `SELECT id, last_modified, bill_count, owner_name, is_closed FROM project_index`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select index entries: %w", err)
	}
	defer rows.Close()

	var result []models.MetadataEntry
	for rows.Next() {
		var item models.MetadataEntry
		if err := rows.Scan(&item.ID, &item.LastModified, &item.BillCount, &item.OwnerName, &item.IsClosed); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Postgres) Upsert(ctx context.Context, e models.MetadataEntry) error {
	query := `
		INSERT INTO project_index (id, last_modified, bill_count, owner_name, is_closed)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET
			last_modified = EXCLUDED.last_modified,
			bill_count = EXCLUDED.bill_count,
			owner_name = EXCLUDED.owner_name,
			is_closed = EXCLUDED.is_closed;
	`
	_, err := p.db.ExecContext(ctx, query, e.ID, e.LastModified, e.BillCount, e.OwnerName, e.IsClosed)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
