// Package store defines the persistence interfaces used by the task
// orchestration core, plus shared database plumbing (DBTX abstraction,
// transaction helper, sentinel errors). Concrete implementations live in
// internal/platform/postgres.
package store
