package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"parley/internal/api"
)

func newScrapeCommand(ctx *commandContext) *cobra.Command {
	var mode string
	var wait bool
	var pollInterval time.Duration
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "scrape <url> [url...]",
		Short: "Submit websites for scraping and summarization",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Submit(cmd.Context(), api.SubmitRequest{
					URLs: args,
					Mode: strings.TrimSpace(mode),
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, invalid := range resp.InvalidURLs {
					fmt.Fprintf(out, "Skipped invalid URL: %s\n", invalid)
				}

				if !wait {
					if jsonOutput {
						return writeJSON(cmd, resp)
					}
					for _, id := range resp.JobIDs {
						fmt.Fprintf(out, "Queued job %s\n", id)
					}
					fmt.Fprintln(out, "Track progress with `parley jobs list`.")
					return nil
				}

				jobs, err := waitForJobs(cmd.Context(), client, resp.JobIDs, pollInterval)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, jobs)
				}
				fmt.Fprint(out, renderJobsTable(jobs))
				fmt.Fprintln(out)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "crawl", "Scrape mode: crawl or single")
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until every job reaches a terminal status")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 2*time.Second, "Polling interval used with --wait")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of tables")
	return cmd
}

func waitForJobs(ctx context.Context, client *api.Client, ids []string, interval time.Duration) ([]api.JobView, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		jobs := make([]api.JobView, 0, len(ids))
		done := true
		for _, id := range ids {
			job, err := client.Job(ctx, id)
			if err != nil {
				return nil, err
			}
			if !isTerminalStatus(job.Status) {
				done = false
			}
			jobs = append(jobs, job)
		}
		if done {
			return jobs, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func isTerminalStatus(status string) bool {
	return status == "completed" || status == "error"
}
