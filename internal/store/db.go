package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/roach88/relgraph/internal/ir"
)

// IDTable is the sequence table GetAutoID allocates ids from.
const IDTable = "_ids_"

// DB is an Executor over a database/sql handle.
type DB struct {
	*conn
	db     *sql.DB
	driver string
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger statements are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Open connects to the configured database and creates the id sequence
// table if it does not exist.
//
// SQLite databases are configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//   - a single open connection
func Open(cfg Config, opts ...Option) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	driver := cfg.driver()
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if isSQLite(driver) {
		// SQLite only supports one writer at a time.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	d := &DB{
		conn:   &conn{q: db, dialect: dialect, log: o.logger.With("driver", driver)},
		db:     db,
		driver: driver,
	}
	if err := d.Scheme(context.Background(), idTableDDL(dialect), "create "+IDTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create id table: %w", err)
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Driver returns the driver name the DB was opened with.
func (d *DB) Driver() string {
	return d.driver
}

// SQL returns the underlying sql.DB for direct queries.
func (d *DB) SQL() *sql.DB {
	return d.db
}

// WithTx runs fn with an Executor bound to one transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
//
// On SQLite the DB holds a single connection, so fn must not use d itself.
func (d *DB) WithTx(ctx context.Context, fn func(ex Executor) error) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&conn{q: tx, dialect: d.dialect, log: d.log.With("tx", true)}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isSQLite(driver string) bool {
	return driver == DriverSQLite3 || driver == DriverSQLite
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func idTableDDL(d Dialect) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s VARCHAR(191) PRIMARY KEY, %s %s NOT NULL)",
		d.Quote(IDTable), d.Quote("name"), d.Quote("last"), d.ColumnType(ir.TypeID, false))
}

// querier is the part of *sql.DB and *sql.Tx the executor needs.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// conn implements Executor over a querier.
type conn struct {
	q       querier
	dialect Dialect
	log     *slog.Logger
}

func (c *conn) Dialect() Dialect {
	return c.dialect
}

// Query runs a SELECT and returns every row as a slice of column values.
// Byte slices are returned as strings.
func (c *conn) Query(ctx context.Context, query string, params []any, name string) ([][]any, error) {
	c.log.Debug("sql query", "name", name, "sql", query, "params", len(params))
	rows, err := c.q.QueryContext(ctx, query, params...)
	if err != nil {
		c.log.Error("sql query failed", "name", name, "error", err)
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query %s: columns: %w", name, err)
	}

	var out [][]any
	for rows.Next() {
		row := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("query %s: scan: %w", name, err)
		}
		for i, v := range row {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	return out, nil
}

func (c *conn) Insert(ctx context.Context, query string, params []any, name string) (int64, error) {
	return c.exec(ctx, query, params, name)
}

func (c *conn) Update(ctx context.Context, query string, params []any, name string) (int64, error) {
	return c.exec(ctx, query, params, name)
}

func (c *conn) Delete(ctx context.Context, query string, params []any, name string) (int64, error) {
	return c.exec(ctx, query, params, name)
}

// Scheme runs a DDL statement.
func (c *conn) Scheme(ctx context.Context, query string, name string) error {
	_, err := c.exec(ctx, query, nil, name)
	return err
}

// GetAutoID returns the next id for recordName. Each record name has its
// own sequence starting at 1.
func (c *conn) GetAutoID(ctx context.Context, recordName string) (int64, error) {
	d := c.dialect
	update := fmt.Sprintf("UPDATE %s SET %s = %s + 1 WHERE %s = %s",
		d.Quote(IDTable), d.Quote("last"), d.Quote("last"), d.Quote("name"), d.Placeholder(1))
	n, err := c.exec(ctx, update, []any{recordName}, "next id "+recordName)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		insert := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s, 1)",
			d.Quote(IDTable), d.Quote("name"), d.Quote("last"), d.Placeholder(1))
		if _, err := c.exec(ctx, insert, []any{recordName}, "first id "+recordName); err != nil {
			if !IsUniqueViolation(err) {
				return 0, err
			}
			// Another writer created the sequence first.
			if _, err := c.exec(ctx, update, []any{recordName}, "next id "+recordName); err != nil {
				return 0, err
			}
		}
	}

	sel := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		d.Quote("last"), d.Quote(IDTable), d.Quote("name"), d.Placeholder(1))
	rows, err := c.Query(ctx, sel, []any{recordName}, "read id "+recordName)
	if err != nil {
		return 0, err
	}
	if len(rows) != 1 {
		return 0, fmt.Errorf("id sequence %q: expected one row, got %d", recordName, len(rows))
	}
	id, ok := ir.ToID(rows[0][0])
	if !ok {
		return 0, fmt.Errorf("id sequence %q: unexpected value %T", recordName, rows[0][0])
	}
	return id, nil
}

func (c *conn) exec(ctx context.Context, query string, params []any, name string) (int64, error) {
	c.log.Debug("sql exec", "name", name, "sql", query, "params", len(params))
	res, err := c.q.ExecContext(ctx, query, params...)
	if err != nil {
		c.log.Error("sql exec failed", "name", name, "error", err)
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: rows affected: %w", name, err)
	}
	return n, nil
}
