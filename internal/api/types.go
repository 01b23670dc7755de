package api

import (
	"time"

	"parley/internal/store"
)

// SubmitRequest starts a scrape batch.
type SubmitRequest struct {
	URLs []string `json:"urls"`
	Mode string   `json:"mode,omitempty"`
}

// SubmitResponse reports the accepted batch.
type SubmitResponse struct {
	JobIDs      []string `json:"job_ids"`
	InvalidURLs []string `json:"invalid_urls,omitempty"`
}

// PageView is the wire form of a scraped page. Raw markup stays server-side.
type PageView struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Language string `json:"language,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// JobView is the wire form of a scrape job.
type JobView struct {
	ID           string     `json:"id"`
	SourceURL    string     `json:"source_url"`
	Mode         string     `json:"mode"`
	Status       string     `json:"status"`
	Pages        []PageView `json:"pages,omitempty"`
	FinalContext string     `json:"final_context,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// JobToView converts a stored job to its wire form.
func JobToView(job *store.Job) JobView {
	view := JobView{
		ID:           job.ID,
		SourceURL:    job.SourceURL,
		Mode:         string(job.Mode),
		Status:       string(job.Status),
		FinalContext: job.FinalContext,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
	for _, page := range job.Pages {
		view.Pages = append(view.Pages, PageView{
			URL:      page.URL,
			Title:    page.Title,
			Language: page.Language,
			Summary:  page.Summary,
		})
	}
	return view
}

// JobsToViews converts a job slice to wire form.
func JobsToViews(jobs []*store.Job) []JobView {
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, JobToView(job))
	}
	return views
}

// SessionRequest starts an avatar session from finished jobs.
type SessionRequest struct {
	JobIDs     []string `json:"job_ids"`
	AllowEmpty bool     `json:"allow_empty,omitempty"`
}

// SessionResponse describes a started session.
type SessionResponse struct {
	ConversationID  string `json:"conversation_id"`
	ConversationURL string `json:"conversation_url"`
	PersonaID       string `json:"persona_id,omitempty"`
	PersonaError    string `json:"persona_error,omitempty"`
	Label           string `json:"label"`
}

// PersonaView is the wire form of a registered persona.
type PersonaView struct {
	PersonaID   string `json:"persona_id"`
	PersonaName string `json:"persona_name"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// ReplicaView is the wire form of a trained replica.
type ReplicaView struct {
	ReplicaID   string `json:"replica_id"`
	ReplicaName string `json:"replica_name"`
	Status      string `json:"status"`
}

// StatusResponse is the daemon status report.
type StatusResponse struct {
	Running      bool           `json:"running"`
	Jobs         map[string]int `json:"jobs"`
	DatabasePath string         `json:"database_path"`
	LockFilePath string         `json:"lock_file_path"`
}

// ClearResponse reports how many jobs a clear removed.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// ErrorResponse carries an API error message.
type ErrorResponse struct {
	Error string `json:"error"`
}
