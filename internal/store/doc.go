// Package store is the SQL executor boundary: the narrow interface the
// planner and mutation engine issue statements through, and its
// database/sql implementation.
//
// Four drivers are supported:
//
//	sqlite3   github.com/mattn/go-sqlite3 (default)
//	sqlite    modernc.org/sqlite, cgo-free
//	postgres  github.com/lib/pq
//	mysql     github.com/go-sql-driver/mysql
//
// SQLite connections get WAL mode, a busy timeout and a single open
// connection, so one DB serializes its writers.
//
// Record ids are allocated from the _ids_ sequence table through GetAutoID,
// so no dialect needs RETURNING or auto-increment support. Transactions are
// an opaque capability: WithTx hands fn an Executor bound to one transaction
// and commits when fn returns nil.
package store
