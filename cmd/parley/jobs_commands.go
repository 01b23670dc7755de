package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"parley/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage scrape jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scrape jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				jobs, err := client.Jobs(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs found")
					return nil
				}
				fmt.Fprint(out, renderJobsTable(jobs))
				fmt.Fprintln(out)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (queued, mapping, scraping, summarizing, completed, error)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of tables")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a single job with its pages and context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.Job(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, job)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job:     %s\n", job.ID)
				fmt.Fprintf(out, "Source:  %s\n", job.SourceURL)
				fmt.Fprintf(out, "Mode:    %s\n", job.Mode)
				fmt.Fprintf(out, "Status:  %s\n", job.Status)
				if job.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:   %s\n", job.ErrorMessage)
				}
				fmt.Fprintf(out, "Updated: %s\n", job.UpdatedAt.Local().Format("2006-01-02 15:04:05"))

				if len(job.Pages) > 0 {
					rows := make([][]string, 0, len(job.Pages))
					for _, page := range job.Pages {
						rows = append(rows, []string{
							page.URL,
							page.Title,
							page.Language,
							truncateCell(page.Summary, 60),
						})
					}
					fmt.Fprintln(out)
					fmt.Fprint(out, renderTable(
						[]string{"URL", "Title", "Lang", "Summary"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
					))
					fmt.Fprintln(out)
				}

				if job.FinalContext != "" {
					fmt.Fprintln(out)
					fmt.Fprintln(out, "Context:")
					fmt.Fprintln(out, job.FinalContext)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of tables")
	return cmd
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				removed, err := client.ClearJobs(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d jobs\n", removed)
				return nil
			})
		},
	}
}

func renderJobsTable(jobs []api.JobView) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		detail := ""
		switch {
		case job.ErrorMessage != "":
			detail = truncateCell(job.ErrorMessage, 48)
		case len(job.Pages) > 0:
			detail = strconv.Itoa(len(job.Pages)) + " pages"
		}
		rows = append(rows, []string{
			job.ID,
			truncateCell(job.SourceURL, 48),
			job.Mode,
			job.Status,
			job.CreatedAt.Local().Format("2006-01-02 15:04"),
			detail,
		})
	}
	return renderTable(
		[]string{"ID", "Source", "Mode", "Status", "Created", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}

func truncateCell(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
