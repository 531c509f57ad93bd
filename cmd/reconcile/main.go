// Command reconcile links railroad incident reports to milepost
// registry locations: spatial nearest-neighbor first, exact milepost
// key lookup on the residual, enriched output to SQLite and optionally
// Kafka.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/railsafe/milepost-linkage/internal/adapter/csvdata"
	"github.com/railsafe/milepost-linkage/internal/adapter/httpadapter"
	kafkaadapter "github.com/railsafe/milepost-linkage/internal/adapter/kafka"
	"github.com/railsafe/milepost-linkage/internal/adapter/sqlitestore"
	"github.com/railsafe/milepost-linkage/internal/config"
	"github.com/railsafe/milepost-linkage/internal/domain"
	"github.com/railsafe/milepost-linkage/internal/observability"
	"github.com/railsafe/milepost-linkage/internal/pipeline"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		incidentsPath string
		milepostsPath string
		outPath       string
		threshold     float64
		aliasPath     string
		workers       int
		serve         bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile railroad incident reports against the milepost registry",
		Long: `Links every incident in the incident snapshot to a milepost registry
location using spatial proximity, falling back to exact railroad+milepost
key lookup for incidents without usable coordinates. Writes the enriched
incident table and a run summary to SQLite.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			// Flags override environment configuration when set.
			flags := cmd.Flags()
			if flags.Changed("incidents") {
				cfg.IncidentCSV = incidentsPath
			}
			if flags.Changed("mileposts") {
				cfg.MilepostCSV = milepostsPath
			}
			if flags.Changed("out") {
				cfg.SQLitePath = outPath
			}
			if flags.Changed("threshold") {
				cfg.ThresholdM = threshold
			}
			if flags.Changed("aliases") {
				cfg.AliasPath = aliasPath
			}
			if flags.Changed("workers") {
				cfg.Workers = workers
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.IncidentCSV == "" || cfg.MilepostCSV == "" {
				return errors.New("both --incidents and --mileposts (or INCIDENT_CSV / MILEPOST_CSV) are required")
			}

			return run(cmd.Context(), cfg, serve)
		},
	}

	cmd.Flags().StringVar(&incidentsPath, "incidents", "", "Incident snapshot CSV path")
	cmd.Flags().StringVar(&milepostsPath, "mileposts", "", "Milepost registry CSV path")
	cmd.Flags().StringVar(&outPath, "out", "enriched.db", "SQLite output path")
	cmd.Flags().Float64Var(&threshold, "threshold", config.DefaultThresholdM, "Spatial acceptance threshold in meters")
	cmd.Flags().StringVar(&aliasPath, "aliases", "", "JSON railroad alias table extending the built-in one")
	cmd.Flags().IntVar(&workers, "workers", 0, "Matching workers (0 = GOMAXPROCS)")
	cmd.Flags().BoolVar(&serve, "serve", false, "Keep the HTTP listener up after the run completes")

	return cmd
}

func run(parent context.Context, cfg *config.Config, serve bool) error {
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	aliases, err := cfg.Aliases()
	if err != nil {
		return err
	}

	incidents, err := csvdata.LoadIncidents(cfg.IncidentCSV, logger)
	if err != nil {
		return fmt.Errorf("load incidents: %w", err)
	}
	registry, err := csvdata.LoadMileposts(cfg.MilepostCSV, logger)
	if err != nil {
		return fmt.Errorf("load mileposts: %w", err)
	}
	logger.Info("snapshots loaded", "incidents", len(incidents), "mileposts", len(registry))

	reconciler, err := pipeline.NewReconciler(registry, pipeline.Options{
		ThresholdM: cfg.ThresholdM,
		Keys:       domain.KeyConfig{Aliases: aliases, StripSuffix: cfg.StripSuffix},
		Workers:    cfg.Workers,
		Dims: pipeline.Breakdowns{
			ByRailroad: cfg.BreakdownRailroad,
			ByState:    cfg.BreakdownState,
		},
	}, logger, metrics)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, reconciler, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	results, summary, err := reconciler.Run(ctx, incidents)
	if err != nil {
		return err
	}

	enriched := pairResults(incidents, results)

	store, err := sqlitestore.Open(cfg.SQLitePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.WriteEnriched(ctx, enriched); err != nil {
		return err
	}
	if err := store.WriteSummary(ctx, summary); err != nil {
		return err
	}

	if cfg.KafkaEnabled {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		defer publisher.Close()
		if err := publisher.PublishBatch(ctx, enriched); err != nil {
			return err
		}
	}

	printSummary(summary)

	if srv != nil && serve {
		logger.Info("run complete, serving until interrupted")
		<-ctx.Done()
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
	return nil
}

// pairResults joins incidents with their match results for the sinks.
// Results are keyed by incident id since deduplication may have dropped
// repeated input rows.
func pairResults(incidents []domain.IncidentRecord, results []domain.MatchResult) []domain.EnrichedIncident {
	byID := make(map[string]domain.IncidentRecord, len(incidents))
	for _, inc := range incidents {
		if _, ok := byID[inc.ID]; !ok {
			byID[inc.ID] = inc
		}
	}
	enriched := make([]domain.EnrichedIncident, len(results))
	for i, res := range results {
		enriched[i] = domain.EnrichedIncident{Incident: byID[res.IncidentID], Match: res}
	}
	return enriched
}

func printSummary(s pipeline.Summary) {
	fmt.Printf("\n=== Reconciliation Summary ===\n")
	fmt.Printf("Incidents:        %d\n", s.TotalIncidents)
	fmt.Printf("Registry records: %d (%d indexed)\n", s.RegistryRecords, s.RegistryIndexed)
	fmt.Printf("Spatial matches:  %d (%.2f%%)\n", s.Spatial, s.SpatialPct)
	fmt.Printf("Fallback matches: %d (%.2f%%)\n", s.Fallback, s.FallbackPct)
	fmt.Printf("Unmatched:        %d\n", s.Unmatched)
	for reason, n := range s.UnmatchedReasons {
		fmt.Printf("  %-24s %d\n", string(reason)+":", n)
	}
	fmt.Printf("Match rate:       %.2f%%\n", s.MatchedPct)
}
