// Package firecrawl wraps the Firecrawl HTTP API for site mapping and page
// scraping, and converts raw page HTML into clean extracted text.
package firecrawl
