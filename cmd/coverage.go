package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openapc/openapc-cli/internal/cache"
	"github.com/openapc/openapc-cli/internal/config"
	"github.com/openapc/openapc-cli/internal/coverage"
	"github.com/openapc/openapc-cli/internal/errlog"
	"github.com/openapc/openapc-cli/internal/fetcher"
	"github.com/openapc/openapc-cli/internal/journalcsv"
	"github.com/openapc/openapc-cli/internal/lookup"
	"github.com/openapc/openapc-cli/internal/resilience"
	"github.com/openapc/openapc-cli/internal/springer"
)

var (
	coverageInput      string
	coverageMaxLookups int
	coverageXLSX       string
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Collect and report journal coverage statistics",
}

var coverageCollectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Look up publication years and article counts for an offsetting file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Flags().Changed("max-lookups") {
			cfg.Coverage.MaxLookups = coverageMaxLookups
		}
		if err := cfg.Validate("coverage"); err != nil {
			return err
		}
		if err := journalcsv.CheckDir(cfg.Coverage.JournalCSVDir); err != nil {
			return err
		}

		in, err := os.Open(coverageInput)
		if err != nil {
			return eris.Wrap(err, "open offsetting file")
		}
		defer in.Close() //nolint:errcheck

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runID := uuid.NewString()
		budget := lookup.NewBudget(cfg.Coverage.MaxLookups)
		client := newSpringerClient(cfg, budget)
		caches := cache.Load(cfg.Coverage.PubDatesCacheFile, cfg.Coverage.CoverageCacheFile)

		sinks := []errlog.Sink{errlog.ConsoleSink{Out: cmd.OutOrStdout()}}
		if cfg.Coverage.ErrorLogFile != "" {
			sinks = append(sinks, errlog.FileSink{Path: cfg.Coverage.ErrorLogFile, RunID: runID})
		}

		collector := coverage.New(caches, client, journalcsv.New(cfg.Coverage.JournalCSVDir, client), client, errlog.New(),
			coverage.Options{
				RunID:     runID,
				Publisher: cfg.Coverage.Publisher,
				Budget:    budget,
				Sinks:     sinks,
			})

		sum, err := collector.Run(ctx, in)
		if sum != nil {
			sum.Render(cmd.OutOrStdout())
		}
		return err
	},
}

var coverageReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the coverage cache with OA shares per journal and year",
	RunE: func(cmd *cobra.Command, _ []string) error {
		caches := cache.Load(cfg.Coverage.PubDatesCacheFile, cfg.Coverage.CoverageCacheFile)
		rows := coverage.BuildReport(caches)
		coverage.RenderReport(cmd.OutOrStdout(), rows)

		if coverageXLSX != "" {
			if err := coverage.WriteReportXLSX(coverageXLSX, rows); err != nil {
				return err
			}
			zap.L().Info("coverage report written", zap.String("path", coverageXLSX), zap.Int("rows", len(rows)))
		}
		return nil
	},
}

func newSpringerClient(c *config.Config, budget *lookup.Budget) *springer.Client {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:         c.HTTP.UserAgent,
		Timeout:           time.Duration(c.HTTP.TimeoutSecs) * time.Second,
		RequestsPerSecond: c.HTTP.RequestsPerSecond,
	})
	return springer.NewClient(f, springer.Options{
		BaseURL:        c.Springer.BaseURL,
		DOIResolverURL: c.Springer.DOIResolverURL,
		CSVStartYear:   c.Springer.CSVStartYear,
		Retry:          resilience.FromRetryConfig(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs),
		Budget:         budget,
	})
}

func init() {
	coverageCollectCmd.Flags().StringVar(&coverageInput, "input", "", "offsetting CSV file (required)")
	coverageCollectCmd.Flags().IntVar(&coverageMaxLookups, "max-lookups", -1, "stop after this many network lookups (negative = unlimited)")
	_ = coverageCollectCmd.MarkFlagRequired("input")

	coverageReportCmd.Flags().StringVar(&coverageXLSX, "xlsx", "", "also write the report to this xlsx file")

	coverageCmd.AddCommand(coverageCollectCmd, coverageReportCmd)
	rootCmd.AddCommand(coverageCmd)
}
