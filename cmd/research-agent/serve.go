// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-agent/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the research API and frontend over HTTP",
	Long: `Serve starts the HTTP API: POST /api/research answers a question, POST
/api/research/stream streams progress as server-sent events, and /api/runs
browses the archive when archive.enabled is set. Prometheus metrics are on
/metrics and the frontend bundle on /app.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := serverConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}
	if dir, _ := cmd.Flags().GetString("frontend"); dir != "" {
		cfg.FrontendDir = dir
	}

	agent, err := newAgent()
	if err != nil {
		return err
	}

	acfg, err := archiveConfig()
	if err != nil {
		return err
	}
	var store server.Archive
	if acfg.Enabled {
		s, err := openArchive()
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(agent, store, cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx)
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8123)")
	serveCmd.Flags().String("frontend", "", "frontend build directory (default frontend/dist)")

	rootCmd.AddCommand(serveCmd)
}
