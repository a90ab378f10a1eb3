package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/relgraph/internal/ir"
)

// Dialect renders the dialect-specific parts of SQL text.
type Dialect interface {
	Name() string
	Quote(ident string) string
	// Placeholder returns the n-th (1-based) bind parameter marker.
	Placeholder(n int) string
	// ColumnType maps a logical type to a column type. Collections are
	// stored as JSON.
	ColumnType(logical string, collection bool) string
	// Limit renders the LIMIT/OFFSET clause. Zero limit means unlimited.
	Limit(limit, offset int) string
}

// MatchLowerer is implemented by dialects that render some match operators
// themselves. ok is false when the default rendering applies.
type MatchLowerer interface {
	LowerMatch(column, op string, operand string) (sql string, ok bool)
}

// DialectFor returns the dialect of a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverSQLite3, DriverSQLite:
		return SQLite{}, nil
	case DriverPostgres:
		return Postgres{}, nil
	case DriverMySQL:
		return MySQL{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
}

var indexNameSanitizer = regexp.MustCompile(`[^A-Za-z0-9_]`)

func indexName(table, column string) string {
	return "idx_" + indexNameSanitizer.ReplaceAllString(table+"_"+column, "_")
}

func doubleQuote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// SQLite is the dialect of both SQLite drivers.
type SQLite struct{}

func (SQLite) Name() string             { return "sqlite" }
func (SQLite) Quote(ident string) string { return doubleQuote(ident) }
func (SQLite) Placeholder(int) string    { return "?" }

func (SQLite) ColumnType(logical string, collection bool) string {
	if collection {
		return "TEXT"
	}
	switch logical {
	case ir.TypeID, ir.TypeInteger:
		return "INTEGER"
	case ir.TypeNumber:
		return "NUMERIC"
	case ir.TypeBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func (SQLite) Limit(limit, offset int) string {
	return limitOffset(limit, offset, "-1")
}

// IndexStatement indexes a foreign-key column.
func (d SQLite) IndexStatement(table, column string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		d.Quote(indexName(table, column)), d.Quote(table), d.Quote(column))
}

// Postgres is the lib/pq dialect.
type Postgres struct{}

func (Postgres) Name() string             { return "postgres" }
func (Postgres) Quote(ident string) string { return doubleQuote(ident) }
func (Postgres) Placeholder(n int) string  { return "$" + strconv.Itoa(n) }

func (Postgres) ColumnType(logical string, collection bool) string {
	if collection {
		return "JSONB"
	}
	switch logical {
	case ir.TypeID, ir.TypeInteger:
		return "BIGINT"
	case ir.TypeNumber:
		return "DOUBLE PRECISION"
	case ir.TypeBoolean:
		return "BOOLEAN"
	case ir.TypeJSON:
		return "JSONB"
	default:
		return "TEXT"
	}
}

func (Postgres) Limit(limit, offset int) string {
	return limitOffset(limit, offset, "ALL")
}

// IndexStatement indexes a foreign-key column.
func (d Postgres) IndexStatement(table, column string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		d.Quote(indexName(table, column)), d.Quote(table), d.Quote(column))
}

// LowerMatch renders like as ILIKE so matching is case-insensitive as it
// is on SQLite and MySQL.
func (Postgres) LowerMatch(column, op, operand string) (string, bool) {
	if op == "like" {
		return column + " ILIKE " + operand, true
	}
	return "", false
}

// MySQL is the go-sql-driver/mysql dialect.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (MySQL) Placeholder(int) string { return "?" }

func (MySQL) ColumnType(logical string, collection bool) string {
	if collection {
		return "JSON"
	}
	switch logical {
	case ir.TypeID, ir.TypeInteger:
		return "BIGINT"
	case ir.TypeNumber:
		return "DOUBLE"
	case ir.TypeBoolean:
		return "BOOLEAN"
	case ir.TypeJSON:
		return "JSON"
	default:
		return "TEXT"
	}
}

func (MySQL) Limit(limit, offset int) string {
	return limitOffset(limit, offset, "18446744073709551615")
}

func limitOffset(limit, offset int, unlimited string) string {
	switch {
	case limit <= 0 && offset <= 0:
		return ""
	case offset <= 0:
		return fmt.Sprintf("LIMIT %d", limit)
	case limit <= 0:
		return fmt.Sprintf("LIMIT %s OFFSET %d", unlimited, offset)
	default:
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	}
}
