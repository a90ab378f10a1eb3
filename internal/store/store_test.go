package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sqliteDrivers = []string{DriverSQLite3, DriverSQLite}

// openTestDB opens a fresh SQLite database under t.TempDir().
func openTestDB(t *testing.T, driver string) *DB {
	t.Helper()
	db, err := Open(Config{Driver: driver, DSN: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	for _, driver := range sqliteDrivers {
		t.Run(driver, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "test.db")
			db, err := Open(Config{Driver: driver, DSN: path})
			require.NoError(t, err)
			defer db.Close()

			_, err = os.Stat(path)
			assert.NoError(t, err, "database file was not created")
			assert.Equal(t, driver, db.Driver())
			assert.Equal(t, "sqlite", db.Dialect().Name())

			rows, err := db.Query(context.Background(),
				"SELECT name FROM sqlite_master WHERE type='table' AND name=?", []any{IDTable}, "lookup")
			require.NoError(t, err)
			assert.Len(t, rows, 1)
		})
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	db, err := Open(Config{DSN: path})
	require.NoError(t, err)
	id, err := db.GetAutoID(ctx, "User")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	require.NoError(t, db.Close())

	db, err = Open(Config{DSN: path})
	require.NoError(t, err)
	defer db.Close()
	id, err = db.GetAutoID(ctx, "User")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id, "sequence should survive reopen")
}

func TestOpen_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown driver", Config{Driver: "oracle", DSN: "x"}},
		{"missing dsn", Config{Driver: DriverSQLite3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("RELGRAPH_DRIVER", "")
	t.Setenv("RELGRAPH_DSN", "app.db")
	cfg := LoadConfigFromEnv()
	assert.Equal(t, Config{Driver: DriverSQLite3, DSN: "app.db"}, cfg)

	t.Setenv("RELGRAPH_DRIVER", DriverPostgres)
	t.Setenv("RELGRAPH_DSN", PostgresDSN("localhost", "5432", "u", "p", "db"))
	cfg = LoadConfigFromEnv()
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, "host=localhost port=5432 user=u password=p dbname=db sslmode=disable", cfg.DSN)
}

func TestGetAutoID_PerRecordName(t *testing.T) {
	for _, driver := range sqliteDrivers {
		t.Run(driver, func(t *testing.T) {
			db := openTestDB(t, driver)
			ctx := context.Background()

			var users, teams []int64
			for range 3 {
				id, err := db.GetAutoID(ctx, "User")
				require.NoError(t, err)
				users = append(users, id)
			}
			id, err := db.GetAutoID(ctx, "Team")
			require.NoError(t, err)
			teams = append(teams, id)

			assert.Equal(t, []int64{1, 2, 3}, users)
			assert.Equal(t, []int64{1}, teams)
		})
	}
}

func TestExecutor_RoundTrip(t *testing.T) {
	for _, driver := range sqliteDrivers {
		t.Run(driver, func(t *testing.T) {
			db := openTestDB(t, driver)
			ctx := context.Background()

			require.NoError(t, db.Scheme(ctx,
				`CREATE TABLE "User" ("id" INTEGER PRIMARY KEY, "name" TEXT, "age" NUMERIC)`, "create User"))

			n, err := db.Insert(ctx, `INSERT INTO "User" ("id", "name", "age") VALUES (?, ?, ?)`,
				[]any{int64(1), "a1", int64(11)}, "insert User")
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			n, err = db.Update(ctx, `UPDATE "User" SET "age" = ? WHERE "id" = ?`, []any{int64(12), int64(1)}, "update User")
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			rows, err := db.Query(ctx, `SELECT "name", "age" FROM "User"`, nil, "find User")
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "a1", rows[0][0])
			age, err := ReadValue("number", rows[0][1])
			require.NoError(t, err)
			assert.Equal(t, int64(12), age)

			n, err = db.Delete(ctx, `DELETE FROM "User" WHERE "id" = ?`, []any{int64(1)}, "delete User")
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		})
	}
}

func TestWithTx(t *testing.T) {
	db := openTestDB(t, DriverSQLite3)
	ctx := context.Background()
	require.NoError(t, db.Scheme(ctx, `CREATE TABLE "T" ("id" INTEGER PRIMARY KEY)`, "create T"))

	count := func() int {
		rows, err := db.Query(ctx, `SELECT "id" FROM "T"`, nil, "count")
		require.NoError(t, err)
		return len(rows)
	}

	err := db.WithTx(ctx, func(ex Executor) error {
		_, err := ex.Insert(ctx, `INSERT INTO "T" ("id") VALUES (?)`, []any{1}, "insert")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count())

	boom := errors.New("boom")
	err = db.WithTx(ctx, func(ex Executor) error {
		if _, err := ex.Insert(ctx, `INSERT INTO "T" ("id") VALUES (?)`, []any{2}, "insert"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count(), "rolled back insert should not be visible")
}

func TestIsUniqueViolation(t *testing.T) {
	for _, driver := range sqliteDrivers {
		t.Run(driver, func(t *testing.T) {
			db := openTestDB(t, driver)
			ctx := context.Background()
			require.NoError(t, db.Scheme(ctx, `CREATE TABLE "T" ("id" INTEGER PRIMARY KEY, "k" TEXT UNIQUE)`, "create T"))

			_, err := db.Insert(ctx, `INSERT INTO "T" ("id", "k") VALUES (1, 'a')`, nil, "insert")
			require.NoError(t, err)
			_, err = db.Insert(ctx, `INSERT INTO "T" ("id", "k") VALUES (2, 'a')`, nil, "insert")
			require.Error(t, err)
			assert.True(t, IsUniqueViolation(err), "got %v", err)

			_, err = db.Query(ctx, `SELECT * FROM "missing"`, nil, "bad")
			require.Error(t, err)
			assert.False(t, IsUniqueViolation(err))
		})
	}
	assert.False(t, IsUniqueViolation(nil))
}
