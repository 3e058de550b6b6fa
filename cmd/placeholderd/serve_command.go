package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/straja-ai/placeholder/internal/auth"
	"github.com/straja-ai/placeholder/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP detection service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := bootstrap(runCtx, cfg, bootOptions{stderr: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer rt.Close()

			if cfg.Detector.WatchLexicon {
				if err := rt.service.WatchLexicon(runCtx, cfg.Detector.LexiconFile); err != nil {
					return err
				}
				rt.logger.Info("watching lexicon file", "path", cfg.Detector.LexiconFile)
			}

			keys, err := auth.New(cfg.Server.APIKeys)
			if err != nil {
				return err
			}
			srv, err := server.New(cfg.Server, server.Deps{
				Service:   rt.service,
				Auth:      keys,
				Logs:      rt.logs.Memory,
				Telemetry: rt.telemetry,
				Logger:    rt.logger,
				Version:   version,
			})
			if err != nil {
				return err
			}

			info := rt.service.Info()
			rt.logger.Info("placeholderd starting",
				"version", version,
				"embedder", info.Embedder,
				"lexicon_entries", info.LexiconEntries,
				"lexicon_fingerprint", info.Fingerprint,
				"auth_required", !keys.Open(),
			)
			if err := srv.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			rt.logger.Info("placeholderd stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	return cmd
}
