// Package notifications delivers pipeline and session events to an ntfy
// topic. An unconfigured topic yields a noop service.
package notifications
