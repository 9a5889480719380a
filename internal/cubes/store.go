package cubes

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/openapc/openapc-cli/internal/db"
)

// TableStore is a database the cube tables are written to.
type TableStore interface {
	// ResetTable drops table if it exists and creates it with fields.
	ResetTable(ctx context.Context, table string, fields []Field) error
	// Insert appends rows whose values follow the order of fields.
	Insert(ctx context.Context, table string, fields []Field, rows [][]any) (int64, error)
	Close() error
}

func createTableSQL(name string, fields []Field) string {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = fmt.Sprintf("\t%s %s", quoteIdent(f.Name), sqlType(f.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)", name, strings.Join(cols, ",\n"))
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// SQLiteStore writes cube tables to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens the SQLite database at dsn.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: conn}, nil
}

func (s *SQLiteStore) ResetTable(ctx context.Context, table string, fields []Field) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return eris.Wrapf(err, "sqlite: drop %s", table)
	}
	if _, err := s.db.ExecContext(ctx, createTableSQL(quoteIdent(table), fields)); err != nil {
		return eris.Wrapf(err, "sqlite: create %s", table)
	}
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, table string, fields []Field, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	names := FieldNames(fields)
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: prepare insert into %s", table)
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert into %s", table)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PostgresStore writes cube tables to PostgreSQL, loading rows with COPY.
type PostgresStore struct {
	pool    db.Pool
	schema  string
	closeFn func()
}

// NewPostgres connects to the database at connString. Tables are created in
// schema, or on the search path when schema is empty.
func NewPostgres(ctx context.Context, connString, schema string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, schema: schema, closeFn: pool.Close}, nil
}

func (s *PostgresStore) ResetTable(ctx context.Context, table string, fields []Field) error {
	name := db.Ident(s.schema, table)
	if _, err := s.pool.Exec(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return eris.Wrapf(err, "postgres: drop %s", table)
	}
	if _, err := s.pool.Exec(ctx, createTableSQL(name, fields)); err != nil {
		return eris.Wrapf(err, "postgres: create %s", table)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, table string, fields []Field, rows [][]any) (int64, error) {
	return db.CopyFromSchema(ctx, s.pool, s.schema, table, FieldNames(fields), rows)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
