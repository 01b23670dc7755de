package orchestrator

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"parley/internal/config"
	"parley/internal/logging"
	"parley/internal/metrics"
	"parley/internal/notifications"
	"parley/internal/services"
	"parley/internal/services/firecrawl"
	"parley/internal/store"
)

// ContentSource discovers and fetches pages for a site.
type ContentSource interface {
	MapSite(ctx context.Context, siteURL string, limit int) ([]string, error)
	ScrapePage(ctx context.Context, pageURL string) (firecrawl.PageRecord, error)
}

// Summarizer condenses page text into persona knowledge.
type Summarizer interface {
	Summarize(ctx context.Context, text string, charLimit int) (string, error)
}

// SubmitOptions control how a batch is processed.
type SubmitOptions struct {
	// Mode selects crawl (map the site first) or single (scrape only the
	// submitted URL). Defaults to crawl.
	Mode store.Mode
}

// BatchReport describes the outcome of a submission.
type BatchReport struct {
	JobIDs      []string
	InvalidURLs []string
}

// Orchestrator owns the scrape pipeline.
type Orchestrator struct {
	cfg        *config.Config
	store      *store.Store
	source     ContentSource
	summarizer Summarizer
	notifier   notifications.Service
	logger     *slog.Logger

	wg sync.WaitGroup
}

// New constructs an orchestrator with explicit dependencies. A nil notifier
// disables notifications.
func New(cfg *config.Config, st *store.Store, source ContentSource, summarizer Summarizer, notifier notifications.Service, logger *slog.Logger) *Orchestrator {
	if notifier == nil {
		notifier = notifications.NewNop()
	}
	return &Orchestrator{
		cfg:        cfg,
		store:      st,
		source:     source,
		summarizer: summarizer,
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "orchestrator"),
	}
}

// SubmitBatch validates the supplied URLs, persists one queued job per valid
// URL, and starts the pipeline for each. Invalid URLs are dropped and
// reported; a batch with no valid URL at all is rejected.
func (o *Orchestrator) SubmitBatch(ctx context.Context, urls []string, opts SubmitOptions) (BatchReport, error) {
	var report BatchReport
	mode := opts.Mode
	if mode == "" {
		mode = store.ModeCrawl
	}

	var valid []string
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !validScrapeURL(raw) {
			report.InvalidURLs = append(report.InvalidURLs, raw)
			continue
		}
		valid = append(valid, raw)
	}
	if len(valid) == 0 {
		return report, services.Wrap(services.ErrInvalidInput, "orchestrator", "submit batch", "no valid urls", nil)
	}

	batchCtx := logging.WithBatchID(context.WithoutCancel(ctx), uuid.NewString())
	start := time.Now()
	var batch sync.WaitGroup
	for _, sourceURL := range valid {
		job := &store.Job{
			ID:        uuid.NewString(),
			SourceURL: sourceURL,
			Mode:      mode,
			Status:    store.StatusQueued,
		}
		if err := o.store.CreateJob(ctx, job); err != nil {
			return report, err
		}
		report.JobIDs = append(report.JobIDs, job.ID)
		metrics.JobsSubmitted.WithLabelValues(string(mode)).Inc()

		o.wg.Add(1)
		batch.Add(1)
		go func(job *store.Job) {
			defer o.wg.Done()
			defer batch.Done()
			o.runJob(batchCtx, job)
		}(job)
	}

	jobIDs := append([]string(nil), report.JobIDs...)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		batch.Wait()
		o.finishBatch(batchCtx, jobIDs, time.Since(start))
	}()

	logging.WithContext(batchCtx, o.logger).Info("batch submitted",
		logging.Int("jobs", len(report.JobIDs)),
		logging.Int("invalid_urls", len(report.InvalidURLs)),
	)
	return report, nil
}

// finishBatch tallies terminal outcomes once every job in the batch has run
// and pushes the batch-completed notification.
func (o *Orchestrator) finishBatch(ctx context.Context, ids []string, elapsed time.Duration) {
	logger := logging.WithContext(ctx, o.logger)
	jobs, err := o.store.GetJobs(ctx, ids)
	if err != nil {
		logger.Warn("batch outcome lookup failed", logging.Error(err))
		return
	}
	var completed, failed int
	for _, job := range jobs {
		switch job.Status {
		case store.StatusCompleted:
			completed++
		case store.StatusError:
			failed++
		}
	}
	logger.Info("batch finished",
		logging.Int("completed", completed),
		logging.Int("failed", failed),
		logging.Duration("elapsed", elapsed),
	)
	if err := o.notifier.NotifyBatchCompleted(ctx, completed, failed, elapsed); err != nil {
		logger.Warn("batch notification failed", logging.Error(err))
	}
}

// GetBatchStatus returns the current state of the given jobs. Unknown ids are
// skipped.
func (o *Orchestrator) GetBatchStatus(ctx context.Context, ids []string) ([]*store.Job, error) {
	return o.store.GetJobs(ctx, ids)
}

// WaitForBatch polls until every job in the batch is terminal or the context
// ends. It returns the final job states.
func (o *Orchestrator) WaitForBatch(ctx context.Context, ids []string, interval time.Duration) ([]*store.Job, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		jobs, err := o.store.GetJobs(ctx, ids)
		if err != nil {
			return nil, err
		}
		done := true
		for _, job := range jobs {
			if !job.Status.IsTerminal() {
				done = false
				break
			}
		}
		if done {
			return jobs, nil
		}
		select {
		case <-ctx.Done():
			return jobs, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close waits for all in-flight job pipelines to finish.
func (o *Orchestrator) Close() {
	o.wg.Wait()
}

func validScrapeURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	host := parsed.Hostname()
	if host == "" {
		return false
	}
	// url.Parse tolerates empty hostname labels ("bad..url"), so check each
	// label explicitly.
	for _, label := range strings.Split(host, ".") {
		if label == "" {
			return false
		}
	}
	return true
}
