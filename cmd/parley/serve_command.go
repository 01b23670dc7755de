package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"parley/internal/daemon"
	"parley/internal/logging"
	"parley/internal/notifications"
	"parley/internal/orchestrator"
	"parley/internal/services/firecrawl"
	"parley/internal/services/llm"
	"parley/internal/services/tavus"
	"parley/internal/session"
	"parley/internal/store"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Parley daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			st, err := store.Open(cfg)
			if err != nil {
				logger.Error("open job store", logging.Error(err))
				return err
			}

			source := firecrawl.NewClient(firecrawl.Config{
				APIKey:         cfg.Firecrawl.APIKey,
				BaseURL:        cfg.Firecrawl.BaseURL,
				TimeoutSeconds: cfg.Firecrawl.TimeoutSeconds,
			})
			summarizer := llm.NewClient(llm.Config{
				APIKey:         cfg.LLM.APIKey,
				BaseURL:        cfg.LLM.BaseURL,
				Model:          cfg.LLM.Model,
				TimeoutSeconds: cfg.LLM.TimeoutSeconds,
			})
			avatar := tavus.NewClient(tavus.Config{
				APIKey:         cfg.Tavus.APIKey,
				BaseURL:        cfg.Tavus.BaseURL,
				ReplicaID:      cfg.Tavus.ReplicaID,
				EnableVision:   cfg.Tavus.EnableVision,
				TimeoutSeconds: cfg.Tavus.TimeoutSeconds,
			})

			notifier := notifications.NewService(cfg)
			orch := orchestrator.New(cfg, st, source, summarizer, notifier, logger)
			assembler := session.New(cfg, st, avatar, logger)

			d, err := daemon.New(daemon.Options{
				Config:    cfg,
				Logger:    logger,
				Store:     st,
				Orch:      orch,
				Assembler: assembler,
				Avatar:    avatar,
				Notifier:  notifier,
			})
			if err != nil {
				st.Close()
				return fmt.Errorf("create daemon: %w", err)
			}
			defer d.Close()

			if err := d.Start(signalCtx); err != nil {
				return err
			}

			<-signalCtx.Done()
			logger.Info("parley daemon shutting down")
			d.Stop()
			return nil
		},
	}
}
