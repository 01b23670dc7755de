// Package llm wraps an OpenAI-compatible chat completion API for page
// summarization, with retry and backoff on transient failures.
package llm
