package store

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a scrape job.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusMapping     Status = "mapping"
	StatusScraping    Status = "scraping"
	StatusSummarizing Status = "summarizing"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

// Mode selects between multi-page crawling and single-page scraping.
type Mode string

const (
	ModeCrawl  Mode = "crawl"
	ModeSingle Mode = "single"
)

var allStatuses = []Status{
	StatusQueued,
	StatusMapping,
	StatusScraping,
	StatusSummarizing,
	StatusCompleted,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// allowedTransitions is the closed edge set of the job state machine.
// Single-page jobs skip mapping, hence the queued->scraping edge.
var allowedTransitions = map[Status][]Status{
	StatusQueued:      {StatusMapping, StatusScraping, StatusError},
	StatusMapping:     {StatusScraping, StatusError},
	StatusScraping:    {StatusSummarizing, StatusError},
	StatusSummarizing: {StatusCompleted, StatusError},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// IsProcessing reports whether the status reflects an in-flight pipeline step.
func (s Status) IsProcessing() bool {
	switch s {
	case StatusMapping, StatusScraping, StatusSummarizing:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from one status to another is allowed.
// A no-op transition (same status) is always permitted for non-terminal jobs
// so that field updates within a stage can be persisted.
func CanTransition(from, to Status) bool {
	if from == to {
		return !from.IsTerminal()
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Page is one scraped page attached to a job. Pages are appended as
// scraping completes and never removed.
type Page struct {
	URL           string `json:"url"`
	Title         string `json:"title,omitempty"`
	RawContent    string `json:"raw_content,omitempty"`
	ExtractedText string `json:"extracted_text,omitempty"`
	Language      string `json:"language,omitempty"`
	Summary       string `json:"summary,omitempty"`
}

// Job represents one unit of scrape-and-summarize work for one URL.
type Job struct {
	ID           string
	SourceURL    string
	Mode         Mode
	Status       Status
	Pages        []Page
	FinalContext string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SetError marks the job as errored with the given failure reason.
func (j *Job) SetError(message string) {
	j.Status = StatusError
	j.ErrorMessage = strings.TrimSpace(message)
}

// PersonaContext is the durable knowledge summary for one source URL,
// independent of any particular job run.
type PersonaContext struct {
	SourceURL     string
	Context       string
	PageSummaries map[string]string
	CreatedAt     time.Time
}

// HealthSummary describes aggregated job counts per key lifecycle state.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Completed  int
	Errored    int
}
