package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"parley/internal/api"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Start avatar conversation sessions from finished jobs",
	}

	sessionCmd.AddCommand(newSessionCreateCommand(ctx))

	return sessionCmd
}

func newSessionCreateCommand(ctx *commandContext) *cobra.Command {
	var allowEmpty bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "create <job-id> [job-id...]",
		Short: "Create a persona and conversation from completed jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.CreateSession(cmd.Context(), api.SessionRequest{
					JobIDs:     args,
					AllowEmpty: allowEmpty,
				})
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Session ready: %s\n", resp.Label)
				fmt.Fprintf(out, "Conversation:  %s\n", resp.ConversationURL)
				fmt.Fprintf(out, "ID:            %s\n", resp.ConversationID)
				if resp.PersonaID != "" {
					fmt.Fprintf(out, "Persona:       %s\n", resp.PersonaID)
				}
				if resp.PersonaError != "" {
					fmt.Fprintf(out, "Warning: persona creation failed (%s); the session uses the stock replica without grounding.\n", resp.PersonaError)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&allowEmpty, "allow-empty", false, "Start the session even when no job produced usable context")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func newConversationCommand(ctx *commandContext) *cobra.Command {
	conversationCmd := &cobra.Command{
		Use:   "conversation",
		Short: "Manage active conversations",
	}

	conversationCmd.AddCommand(&cobra.Command{
		Use:   "end <conversation-id>",
		Short: "End an active conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.EndConversation(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Ended conversation %s\n", args[0])
				return nil
			})
		},
	})

	return conversationCmd
}
