package handlers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresWriter backs the "sql" output format: each emitted dataset becomes
// rows in a Postgres table named after the output key. Values arrive as
// text; column types are the destination schema's concern, the same way a
// SQL dump leaves casting to the loading side.
type PostgresWriter struct {
	pool *pgxpool.Pool
}

// NewPostgresWriter connects a writer to the database at dsn.
func NewPostgresWriter(ctx context.Context, dsn string) (*PostgresWriter, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return &PostgresWriter{pool: pool}, nil
}

// WriteTable bulk-copies the table's rows into the named destination table.
// When truncate is set the destination is emptied first, so re-running a
// flow replaces the release's data instead of appending to it.
func (w *PostgresWriter) WriteTable(ctx context.Context, name string, t *Table, truncate bool) error {
	ident := pgx.Identifier{name}

	if truncate {
		if _, err := w.pool.Exec(ctx, "TRUNCATE "+ident.Sanitize()); err != nil {
			return fmt.Errorf("truncating %s: %w", name, err)
		}
	}

	rows := make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		vals := make([]any, len(row))
		for j, v := range row {
			if v == "" {
				vals[j] = nil
			} else {
				vals[j] = v
			}
		}
		rows[i] = vals
	}

	copied, err := w.pool.CopyFrom(ctx, ident, t.Columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copying into %s: %w", name, err)
	}
	if copied != int64(len(rows)) {
		return fmt.Errorf("copying into %s: wrote %d of %d rows", name, copied, len(rows))
	}
	return nil
}

// Ping verifies the connection, for startup checks before a flow begins.
func (w *PostgresWriter) Ping(ctx context.Context) error {
	return w.pool.Ping(ctx)
}

// Close releases the connection pool.
func (w *PostgresWriter) Close() {
	if w.pool != nil {
		w.pool.Close()
	}
}
