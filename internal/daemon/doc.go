// Package daemon runs the long-lived parley process: it owns the job store,
// the scrape orchestrator, the session assembler, the HTTP API, and the
// periodic stale-job sweep. A file lock enforces a single instance.
package daemon
