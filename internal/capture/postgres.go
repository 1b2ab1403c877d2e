package capture

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresSink inserts responses into a table it creates on demand.
type PostgresSink struct {
	db    *sql.DB
	table string
}

func NewPostgresSink(db *sql.DB, table string) (*PostgresSink, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresSink{db: db, table: table}, nil
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id UUID PRIMARY KEY,
		template_id TEXT NOT NULL,
		dataset_ref TEXT NOT NULL,
		response TEXT NOT NULL,
		provider TEXT NOT NULL,
		captured_at TIMESTAMPTZ NOT NULL
	)`, s.table)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

func (s *PostgresSink) Save(ctx context.Context, resp *CapturedResponse) (string, error) {
	query := fmt.Sprintf(`INSERT INTO %s (id, template_id, dataset_ref, response, provider, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6)`, s.table)

	_, err := s.db.ExecContext(ctx, query,
		resp.ID,
		resp.TemplateID,
		resp.DatasetReference,
		resp.Text,
		resp.Provider,
		resp.CapturedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", s.table, err)
	}

	return fmt.Sprintf("postgres://%s/%s", s.table, resp.ID), nil
}
