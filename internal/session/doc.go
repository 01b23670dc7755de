// Package session assembles avatar sessions: it combines the knowledge
// contexts of finished scrape jobs, registers a persona carrying that
// knowledge, and starts a conversation.
package session
