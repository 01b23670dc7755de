package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"parley/internal/api"
)

func newPersonasCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "personas",
		Short: "List personas registered with the avatar platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				personas, err := client.Personas(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, personas)
				}
				out := cmd.OutOrStdout()
				if len(personas) == 0 {
					fmt.Fprintln(out, "No personas found")
					return nil
				}
				rows := make([][]string, 0, len(personas))
				for _, persona := range personas {
					rows = append(rows, []string{persona.PersonaID, persona.PersonaName, persona.CreatedAt})
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Name", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
				fmt.Fprintln(out)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of tables")
	return cmd
}

func newReplicasCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "replicas",
		Short: "List trained replicas available for sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				replicas, err := client.Replicas(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, replicas)
				}
				out := cmd.OutOrStdout()
				if len(replicas) == 0 {
					fmt.Fprintln(out, "No replicas found")
					return nil
				}
				rows := make([][]string, 0, len(replicas))
				for _, replica := range replicas {
					rows = append(rows, []string{replica.ReplicaID, replica.ReplicaName, replica.Status})
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Name", "Status"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
				fmt.Fprintln(out)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of tables")
	return cmd
}
