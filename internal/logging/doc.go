// Package logging provides the slog-based logger used across Parley,
// with console and JSON handlers, standardized attribute keys for job and
// request correlation, and rotated file output.
package logging
