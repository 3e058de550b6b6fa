package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/straja-ai/placeholder/internal/mcpserver"
)

func newMCPCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve detection as MCP tools over stdio",
		Long:  "Logs go to stderr; stdout carries the MCP protocol only.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
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
			}

			srv, err := mcpserver.New(rt.service, version, rt.logger)
			if err != nil {
				return err
			}
			return srv.Run(runCtx)
		},
	}
}
