package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"parley/internal/config"
	"parley/internal/logging"
	"parley/internal/metrics"
	"parley/internal/services"
	"parley/internal/services/tavus"
	"parley/internal/store"
	"parley/internal/textutil"
)

const blockSeparator = "\n\n---\n\n"

// AvatarClient is the subset of the avatar platform used for sessions.
type AvatarClient interface {
	CreatePersona(ctx context.Context, params tavus.PersonaParams) (string, error)
	CreateConversation(ctx context.Context, params tavus.ConversationParams) (tavus.Conversation, error)
}

// Options control session assembly.
type Options struct {
	// AllowEmpty permits a session with no scraped knowledge at all. The
	// persona then runs on its base prompt only.
	AllowEmpty bool
}

// SessionHandle is the result of a successful assembly.
type SessionHandle struct {
	ConversationID  string
	ConversationURL string
	PersonaID       string
	// PersonaErr records a persona registration failure. The session still
	// runs, on the default replica without the knowledge persona.
	PersonaErr error
	Label      string
}

// Assembler builds avatar sessions from finished scrape jobs.
type Assembler struct {
	cfg    *config.Config
	store  *store.Store
	avatar AvatarClient
	logger *slog.Logger
}

// New constructs an assembler with explicit dependencies.
func New(cfg *config.Config, st *store.Store, avatar AvatarClient, logger *slog.Logger) *Assembler {
	return &Assembler{
		cfg:    cfg,
		store:  st,
		avatar: avatar,
		logger: logging.NewComponentLogger(logger, "session"),
	}
}

// AssembleSession combines the contexts of the given jobs and starts an
// avatar conversation. All jobs must be terminal; completed jobs contribute
// their context, errored ones are skipped.
func (a *Assembler) AssembleSession(ctx context.Context, jobIDs []string, opts Options) (SessionHandle, error) {
	var empty SessionHandle
	if len(jobIDs) == 0 {
		return empty, services.Wrap(services.ErrInvalidInput, "session", "assemble", "job ids required", nil)
	}

	jobs, err := a.store.GetJobs(ctx, jobIDs)
	if err != nil {
		return empty, err
	}
	if len(jobs) != len(jobIDs) {
		return empty, services.Wrap(services.ErrInvalidInput, "session", "assemble",
			fmt.Sprintf("%d of %d jobs not found", len(jobIDs)-len(jobs), len(jobIDs)), nil)
	}
	for _, job := range jobs {
		if !job.Status.IsTerminal() {
			return empty, services.Wrap(services.ErrInvalidInput, "session", "assemble",
				fmt.Sprintf("job %s still %s", job.ID, job.Status), nil)
		}
	}

	combined, labels := a.combineContexts(jobs)
	if combined == "" && !opts.AllowEmpty {
		return empty, services.Wrap(services.ErrNoUsableContent, "session", "assemble", "no completed jobs with context", nil)
	}

	label := textutil.JoinLabels(labels)
	if label == "" {
		label = "Knowledge Session"
	}

	handle := SessionHandle{Label: label}
	personaID, personaErr := a.createPersona(ctx, label, combined)
	handle.PersonaID = personaID
	handle.PersonaErr = personaErr

	conv, err := a.avatar.CreateConversation(ctx, tavus.ConversationParams{
		PersonaID: personaID,
		Name:      label,
		Greeting:  greetingFor(label, combined != ""),
	})
	if err != nil {
		if errors.Is(err, services.ErrConcurrencyLimit) {
			return empty, err
		}
		return empty, services.Wrap(services.ErrSessionCreation, "session", "create conversation", label, err)
	}

	outcome := "ok"
	if personaErr != nil {
		outcome = "fallback"
	}
	metrics.SessionsCreated.WithLabelValues(outcome).Inc()

	handle.ConversationID = conv.ConversationID
	handle.ConversationURL = conv.ConversationURL
	a.logger.Info("session assembled",
		logging.String("conversation_id", conv.ConversationID),
		logging.String("label", label),
		logging.Bool("persona_fallback", personaErr != nil),
	)
	return handle, nil
}

// combineContexts builds the capped knowledge text and the per-site labels.
// Whole source blocks are kept in job order; the block crossing the cap is
// truncated at a rune boundary.
func (a *Assembler) combineContexts(jobs []*store.Job) (string, []string) {
	var (
		blocks []string
		labels []string
	)
	for _, job := range jobs {
		if job.Status != store.StatusCompleted || strings.TrimSpace(job.FinalContext) == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("Source: %s\n%s", job.SourceURL, job.FinalContext))
		labels = append(labels, textutil.HostLabel(job.SourceURL))
	}
	if len(blocks) == 0 {
		return "", nil
	}

	limit := a.cfg.Session.MaxContextChars
	combined := strings.Join(blocks, blockSeparator)
	if limit > 0 {
		combined = textutil.Truncate(combined, limit)
	}
	return combined, labels
}

func (a *Assembler) createPersona(ctx context.Context, label, combined string) (string, error) {
	params := tavus.PersonaParams{
		Name:         label,
		SystemPrompt: systemPromptFor(label, combined != ""),
		Context:      combined,
		EnableVision: a.cfg.Tavus.EnableVision,
	}
	personaID, err := a.avatar.CreatePersona(ctx, params)
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("tavus").Inc()
		a.logger.Warn("persona creation failed, continuing without persona",
			logging.String("label", label),
			logging.Error(err),
		)
		return "", err
	}
	return personaID, nil
}

func systemPromptFor(label string, hasKnowledge bool) string {
	if !hasKnowledge {
		return "You are a friendly conversational assistant. Be honest when you do not know something."
	}
	return fmt.Sprintf(
		"You are a knowledgeable representative for %s. Answer questions using the provided context. "+
			"When the context does not cover a question, say so instead of guessing.",
		label,
	)
}

func greetingFor(label string, hasKnowledge bool) string {
	if !hasKnowledge {
		return "Hello! How can I help you today?"
	}
	return fmt.Sprintf("Hello! I can answer your questions about %s. What would you like to know?", label)
}
