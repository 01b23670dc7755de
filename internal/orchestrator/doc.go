// Package orchestrator drives scrape jobs through their lifecycle: mapping a
// site, scraping its pages, summarizing them, and persisting the combined
// knowledge context.
package orchestrator
