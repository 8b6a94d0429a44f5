package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quayside-labs/quayscrape/internal/api"
	"github.com/quayside-labs/quayscrape/internal/observability"
	"github.com/quayside-labs/quayscrape/internal/scrape"
	"github.com/quayside-labs/quayscrape/internal/storage"
)

func newServeCmd() *cobra.Command {
	var addr string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API around the scrape engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			apiCfg := cfg.API
			if addr != "" {
				apiCfg.Addr = addr
			}

			registry := scrape.NewRegistry(cfg.Targets)
			orch := scrape.NewOrchestrator(cfg, registry, logger)
			store := storage.NewJSONStore(cfg.Scrape.DataFile)

			logger.Info("Serving API", zap.String("addr", apiCfg.Addr))
			return api.NewServer(apiCfg, logger, orch, store).Start()
		},
	}

	serveCmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default from config)")
	return serveCmd
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
