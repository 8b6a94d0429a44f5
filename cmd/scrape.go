package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quayside-labs/quayscrape/internal/auth"
	"github.com/quayside-labs/quayscrape/internal/observability"
	"github.com/quayside-labs/quayscrape/internal/scrape"
	"github.com/quayside-labs/quayscrape/internal/storage"
)

func newScrapeCmd() *cobra.Command {
	var (
		username    string
		targetCodes []string
		outputPath  string
	)

	scrapeCmd := &cobra.Command{
		Use:   "scrape",
		Short: "Logs in and pulls data from the configured targets",
		Long: `Authenticates against each configured portal and extracts its
schedule and availability data. Credentials come from the --username
flag plus the QUAYSCRAPE_PASSWORD environment variable, or are prompted
for on stdin. The password is never written to logs or disk.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			creds, err := resolveCredentials(username, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}

			if outputPath == "" {
				outputPath = cfg.Scrape.DataFile
			}

			registry := scrape.NewRegistry(cfg.Targets)
			orch := scrape.NewOrchestrator(cfg, registry, logger)

			result := orch.Run(ctx, creds, targetCodes)
			printRunLog(cmd.OutOrStdout(), result.Log)

			if result.Success {
				store := storage.NewJSONStore(outputPath)
				if err := store.Save(result); err != nil {
					logger.Error("Failed to persist run result", zap.Error(err))
					return fmt.Errorf("failed to write %s: %w", outputPath, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", outputPath)
				return nil
			}
			return fmt.Errorf("scrape run %s failed", result.RunID)
		},
	}

	scrapeCmd.Flags().StringVarP(&username, "username", "u", "", "portal account username (or QUAYSCRAPE_USERNAME)")
	scrapeCmd.Flags().StringSliceVarP(&targetCodes, "targets", "t", nil, "target codes to scrape (default all)")
	scrapeCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output JSON file (default from config)")
	return scrapeCmd
}

// resolveCredentials merges flag, environment and interactive input. The
// password is read from the environment or prompted, never from a flag,
// so it cannot leak through shell history or process listings.
func resolveCredentials(username string, in io.Reader, out io.Writer) (auth.Credentials, error) {
	if username == "" {
		username = os.Getenv("QUAYSCRAPE_USERNAME")
	}
	reader := bufio.NewReader(in)
	if username == "" {
		fmt.Fprint(out, "Username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return auth.Credentials{}, fmt.Errorf("failed to read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}

	password := os.Getenv("QUAYSCRAPE_PASSWORD")
	if password == "" {
		fmt.Fprint(out, "Password: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return auth.Credentials{}, fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if username == "" || password == "" {
		return auth.Credentials{}, fmt.Errorf("username and password are required")
	}
	return auth.Credentials{Username: username, Password: password}, nil
}

func printRunLog(out io.Writer, log scrape.RunLog) {
	for _, entry := range log {
		fmt.Fprintf(out, "[%s] %s\n", entry.Severity, entry.Message)
	}
}

func newTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "Lists the configured scrape targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := scrape.NewRegistry(cfg.Targets)
			for _, t := range registry.List() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-6s %-24s %s (%s)\n", t.Code, t.Name, t.BaseURL, t.Kind)
			}
			return nil
		},
	}
}

func newDataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "data",
		Short: "Prints the most recently stored scrape result",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := storage.NewJSONStore(cfg.Scrape.DataFile)
			var result scrape.RunResult
			ok, err := store.Load(&result)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no stored data at %s - run a scrape first", cfg.Scrape.DataFile)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(&result)
		},
	}
}

func init() {
	rootCmd.AddCommand(newScrapeCmd())
	rootCmd.AddCommand(newTargetsCmd())
	rootCmd.AddCommand(newDataCmd())
}
