// Package tavus wraps the Tavus avatar platform API: persona creation,
// conversation lifecycle, and persona/replica listing.
package tavus
