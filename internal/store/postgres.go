package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/backyonatan-alt/restable/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the tables. Responses are kept as json rather than jsonb:
// member order decides column order and jsonb does not keep it.
func (p *Postgres) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS responses (
			id          BIGSERIAL PRIMARY KEY,
			url         TEXT NOT NULL,
			body        JSON NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_responses_url_created_at ON responses (url, created_at DESC);

		CREATE TABLE IF NOT EXISTS exports (
			id          BIGSERIAL PRIMARY KEY,
			url         TEXT NOT NULL,
			object_key  TEXT NOT NULL,
			row_count   INTEGER NOT NULL,
			col_count   INTEGER NOT NULL,
			byte_count  INTEGER NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_exports_created_at ON exports (created_at DESC);
	`
	_, err := p.db.ExecContext(ctx, query)
	return err
}

func (p *Postgres) SaveResponse(ctx context.Context, url string, body []byte) error {
	_, err := p.db.ExecContext(ctx,
		"INSERT INTO responses (url, body) VALUES ($1, $2)",
		url, string(body),
	)
	return err
}

func (p *Postgres) LatestResponse(ctx context.Context, url string) ([]byte, error) {
	var body string
	err := p.db.QueryRowContext(ctx,
		"SELECT body FROM responses WHERE url = $1 ORDER BY created_at DESC, id DESC LIMIT 1",
		url,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func (p *Postgres) SaveExport(ctx context.Context, e model.Export) error {
	_, err := p.db.ExecContext(ctx,
		"INSERT INTO exports (url, object_key, row_count, col_count, byte_count, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		e.URL, e.ObjectKey, e.Rows, e.Columns, e.Bytes, e.CreatedAt,
	)
	return err
}

func (p *Postgres) RecentExports(ctx context.Context, limit int) ([]model.Export, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.db.QueryContext(ctx,
		"SELECT url, object_key, row_count, col_count, byte_count, created_at FROM exports ORDER BY created_at DESC, id DESC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Export
	for rows.Next() {
		var e model.Export
		if err := rows.Scan(&e.URL, &e.ObjectKey, &e.Rows, &e.Columns, &e.Bytes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
