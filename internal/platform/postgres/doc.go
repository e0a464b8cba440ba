// Package postgres provides PostgreSQL implementations of the store
// interfaces. All stores accept a store.DBTX so the same implementation
// serves both standalone connections and caller-managed transactions.
package postgres
