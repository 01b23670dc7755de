package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"parley/internal/logging"
	"parley/internal/metrics"
	"parley/internal/services"
	"parley/internal/services/firecrawl"
	"parley/internal/store"
	"parley/internal/textutil"
)

const summaryBlockSeparator = "\n\n"

// runJob executes the full pipeline for one job. Client failures never leave
// this function: they are recorded on the job row.
func (o *Orchestrator) runJob(ctx context.Context, job *store.Job) {
	start := time.Now()
	ctx = logging.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, o.logger).With(
		logging.String(logging.FieldSourceURL, job.SourceURL),
	)
	logger.Info("job started", logging.String("mode", string(job.Mode)))

	urls, err := o.discoverPages(ctx, job, logger)
	if err != nil {
		o.failJob(ctx, job, logger, err)
		return
	}

	if err := o.scrapePages(ctx, job, urls, logger); err != nil {
		o.failJob(ctx, job, logger, err)
		return
	}

	if err := o.summarizeJob(ctx, job, logger); err != nil {
		o.failJob(ctx, job, logger, err)
		return
	}

	metrics.JobsFinished.WithLabelValues("completed").Inc()
	logger.Info("job completed",
		logging.Int("pages", len(job.Pages)),
		logging.Int("context_chars", len(job.FinalContext)),
		logging.Duration("elapsed", time.Since(start)),
	)
}

// discoverPages resolves the set of page URLs for the job. Crawl mode maps
// the site first; single mode scrapes only the submitted URL.
func (o *Orchestrator) discoverPages(ctx context.Context, job *store.Job, logger *slog.Logger) ([]string, error) {
	if job.Mode == store.ModeSingle {
		if err := o.transition(ctx, job, store.StatusScraping); err != nil {
			return nil, err
		}
		return []string{job.SourceURL}, nil
	}

	if err := o.transition(ctx, job, store.StatusMapping); err != nil {
		return nil, err
	}
	maxPages := o.cfg.Scrape.MaxPages
	urls, err := o.source.MapSite(ctx, job.SourceURL, maxPages)
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("firecrawl").Inc()
		return nil, err
	}
	if len(urls) > maxPages {
		urls = urls[:maxPages]
	}
	logger.Info("site mapped", logging.Int("pages", len(urls)))

	if err := o.transition(ctx, job, store.StatusScraping); err != nil {
		return nil, err
	}
	return urls, nil
}

// scrapePages fetches pages concurrently, bounded by scrape.page_concurrency.
// Individual page failures are logged and skipped; only a fully empty result
// fails the job.
func (o *Orchestrator) scrapePages(ctx context.Context, job *store.Job, urls []string, logger *slog.Logger) error {
	var (
		mu      sync.Mutex
		records []firecrawl.PageRecord
	)

	group, groupCtx := errgroup.WithContext(ctx)
	limit := o.cfg.Scrape.PageConcurrency
	if limit <= 0 {
		limit = 1
	}
	group.SetLimit(limit)

	for _, pageURL := range urls {
		group.Go(func() error {
			start := time.Now()
			record, err := o.source.ScrapePage(groupCtx, pageURL)
			metrics.PageScrapeDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.UpstreamErrors.WithLabelValues("firecrawl").Inc()
				logger.Warn("page scrape failed",
					logging.String("page_url", pageURL),
					logging.Error(err),
				)
				return nil
			}
			metrics.PagesScraped.Inc()
			mu.Lock()
			records = append(records, record)
			mu.Unlock()
			return nil
		})
	}
	// Page errors are swallowed above, so this only fails on context cancellation.
	if err := group.Wait(); err != nil {
		return err
	}

	if len(records) == 0 {
		return services.Wrap(services.ErrNoUsableContent, "orchestrator", "scrape pages",
			fmt.Sprintf("no pages scraped for %s", job.SourceURL), nil)
	}

	job.Pages = job.Pages[:0]
	for _, record := range records {
		job.Pages = append(job.Pages, store.Page{
			URL:           record.URL,
			Title:         record.Title,
			RawContent:    record.RawContent,
			ExtractedText: record.ExtractedText,
			Language:      record.Language,
		})
	}
	if err := o.persist(ctx, job); err != nil {
		return err
	}
	logger.Info("pages scraped", logging.Int("pages", len(records)))
	return nil
}

// summarizeJob produces per-page summaries and the combined final context,
// then completes the job and stores its persona context.
func (o *Orchestrator) summarizeJob(ctx context.Context, job *store.Job, logger *slog.Logger) error {
	if err := o.transition(ctx, job, store.StatusSummarizing); err != nil {
		return err
	}

	charLimit := o.cfg.Scrape.SummaryCharLimit
	summaries := make(map[string]string, len(job.Pages))
	var blocks []string
	for i := range job.Pages {
		page := &job.Pages[i]
		start := time.Now()
		summary, err := o.summarizer.Summarize(ctx, textutil.Truncate(page.ExtractedText, charLimit), charLimit)
		metrics.SummarizeDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.UpstreamErrors.WithLabelValues("llm").Inc()
			logger.Warn("page summarization failed",
				logging.String("page_url", page.URL),
				logging.Error(err),
			)
			continue
		}
		page.Summary = summary
		summaries[page.URL] = summary
		blocks = append(blocks, summary)
	}
	if len(blocks) == 0 {
		return services.Wrap(services.ErrNoUsableContent, "orchestrator", "summarize",
			fmt.Sprintf("no summaries produced for %s", job.SourceURL), nil)
	}

	// One more summarization pass over the concatenated page summaries
	// produces the job's final context.
	combined := strings.Join(blocks, summaryBlockSeparator)
	start := time.Now()
	final, err := o.summarizer.Summarize(ctx, combined, o.cfg.Session.MaxContextChars)
	metrics.SummarizeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("llm").Inc()
		return err
	}

	job.FinalContext = final
	if err := o.transition(ctx, job, store.StatusCompleted); err != nil {
		return err
	}

	pc := &store.PersonaContext{
		SourceURL:     job.SourceURL,
		Context:       job.FinalContext,
		PageSummaries: summaries,
	}
	if err := o.store.UpsertPersonaContext(ctx, pc); err != nil {
		// The job already completed; losing the cache entry is not fatal.
		logger.Warn("persona context upsert failed", logging.Error(err))
	}
	return nil
}

func (o *Orchestrator) transition(ctx context.Context, job *store.Job, status store.Status) error {
	job.Status = status
	if err := o.store.UpsertJob(ctx, job); err != nil {
		return err
	}
	o.logger.Debug("job transition",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldStatus, string(status)),
	)
	return nil
}

func (o *Orchestrator) persist(ctx context.Context, job *store.Job) error {
	return o.store.UpsertJob(ctx, job)
}

// failJob records the failure on the job row. Jobs that cannot even be
// persisted are only logged.
func (o *Orchestrator) failJob(ctx context.Context, job *store.Job, logger *slog.Logger, cause error) {
	metrics.JobsFinished.WithLabelValues("error").Inc()
	logger.Error("job failed",
		logging.String(logging.FieldStatus, string(job.Status)),
		logging.Error(cause),
	)

	job.SetError(cause.Error())
	if err := o.store.UpsertJob(ctx, job); err != nil {
		logger.Error("failed to persist job error", logging.Error(err))
	}
	if err := o.notifier.NotifyError(ctx, cause, job.SourceURL); err != nil {
		logger.Warn("error notification failed", logging.Error(err))
	}
}
