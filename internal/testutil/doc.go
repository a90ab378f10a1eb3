// Package testutil provides fixtures shared by package tests: the sample
// schema, the money field type, a throwaway SQLite store, a fixed operation
// token generator and a recording executor.
package testutil
