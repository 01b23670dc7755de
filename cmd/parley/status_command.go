package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"parley/internal/api"
	"parley/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and credential status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			client := api.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
			status, statusErr := client.Status(cmd.Context())

			if jsonOutput {
				payload := map[string]any{
					"config_path": ctx.configPath,
					"credentials": cfg.CheckCredentials(),
					"daemon":      nil,
				}
				if statusErr == nil {
					payload["daemon"] = status
				} else {
					payload["daemon_error"] = statusErr.Error()
				}
				return writeJSON(cmd, payload)
			}

			fmt.Fprintln(out, "Parley status")
			fmt.Fprintf(out, "%sConfig: %s\n", statusIndent, ctx.configPath)
			fmt.Fprintln(out)

			credentials := cfg.CheckCredentials()
			names := make([]string, 0, len(credentials))
			for name := range credentials {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if credentials[name] {
					fmt.Fprintln(out, renderStatusLine(name, statusOK, "credential configured", colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine(name, statusWarn, "credential missing", colorize))
				}
			}
			fmt.Fprintln(out)

			if statusErr != nil {
				fmt.Fprintln(out, renderStatusLine("daemon", statusError, fmt.Sprintf("not reachable at %s", cfg.Paths.APIBind), colorize))
				fmt.Fprintf(out, "%sStart it with `parley serve`.\n", statusIndent)
				return nil
			}

			fmt.Fprintln(out, renderStatusLine("daemon", statusOK, fmt.Sprintf("running at %s", cfg.Paths.APIBind), colorize))
			fmt.Fprintf(out, "%sDatabase: %s\n", statusIndent, status.DatabasePath)

			total := 0
			rows := make([][]string, 0, len(status.Jobs))
			for _, known := range store.AllStatuses() {
				count, ok := status.Jobs[string(known)]
				if !ok || count == 0 {
					continue
				}
				total += count
				rows = append(rows, []string{string(known), fmt.Sprintf("%d", count)})
			}
			fmt.Fprintln(out)
			if total == 0 {
				fmt.Fprintln(out, "No jobs recorded")
				return nil
			}
			fmt.Fprint(out, renderTable(
				[]string{"Status", "Count"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}
