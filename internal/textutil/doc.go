// Package textutil provides text processing utilities for the scrape and
// session pipelines: rune-safe truncation with an ellipsis marker, hostname
// label derivation for persona naming, and whitespace collapsing.
package textutil
