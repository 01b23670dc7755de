// Package store persists scrape jobs and per-site persona contexts in
// SQLite. Jobs move through a closed status state machine; the store
// rejects transitions outside the allowed set and any mutation of a
// terminal job. There is no optimistic locking: one job is owned by one
// pipeline task, and concurrent writers to the same id are last-write-wins.
package store
