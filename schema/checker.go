// Package schema verifies that the database and tables of a dump exist before
// mysqldump is started.
package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

const (
	DatabaseQuery = "SELECT SCHEMA_NAME FROM information_schema.SCHEMATA WHERE SCHEMA_NAME = ?"
	TablesQuery   = "SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ?"
)

var (
	ErrDatabaseNotFound = errors.New("database not found")
	ErrTableNotFound    = errors.New("table not found")
)

type Checker struct {
	db *sql.DB
}

func NewChecker(db *sql.DB) *Checker {
	return &Checker{
		db,
	}
}

// Open opens a mysql connection pool for dsn.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("fail to open database, error: %w", err)
	}

	return db, nil
}

func (c *Checker) queryDatabase(ctx context.Context, database string) error {
	var name string
	err := c.db.QueryRowContext(ctx, DatabaseQuery, database).Scan(&name)

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrDatabaseNotFound, database)
	}

	if err != nil {
		return fmt.Errorf("fail to run query %s, error: %w", DatabaseQuery, err)
	}

	return nil
}

func (c *Checker) queryTables(ctx context.Context, database string) (map[string]struct{}, error) {
	rows, err := c.db.QueryContext(ctx, TablesQuery, database)
	if err != nil {
		return nil, fmt.Errorf("fail to run query %s, error: %w", TablesQuery, err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("fail to close database rows", slog.Any("error", err), slog.Any("query", TablesQuery))
		}
	}()

	tables := make(map[string]struct{})
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, fmt.Errorf("fail to scan database rows, query: %s, error: %w", TablesQuery, err)
		}
		tables[table] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fail to read database rows, query: %s, error: %w", TablesQuery, err)
	}

	return tables, nil
}

// Verify checks that database exists and contains every table. Nothing is
// checked when database is empty, since every database is dumped then.
func (c *Checker) Verify(ctx context.Context, database string, tables []string) error {
	if database == "" {
		return nil
	}

	if err := c.queryDatabase(ctx, database); err != nil {
		return err
	}

	if len(tables) == 0 {
		return nil
	}

	existing, err := c.queryTables(ctx, database)
	if err != nil {
		return err
	}

	var missing []string
	for _, table := range tables {
		if _, ok := existing[table]; !ok {
			missing = append(missing, table)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w in %s: %s", ErrTableNotFound, database, strings.Join(missing, ", "))
	}

	return nil
}
