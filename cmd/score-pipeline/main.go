package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"zipyield/internal/config"
	"zipyield/internal/exporter"
	"zipyield/internal/infrastructure"
	"zipyield/internal/scoring"
	"zipyield/internal/store"
)

func main() {
	year := flag.Int("year", 0, "FMR fiscal year (default: latest loaded)")
	state := flag.String("state", "", "two-letter state filter (default: nationwide)")
	zhviMonth := flag.String("zhvi-month", "", "home-value month as YYYY-MM (default: latest loaded)")
	acsVintage := flag.Int("acs-vintage", 0, "ACS tax vintage (default: latest loaded)")
	historical := flag.Bool("historical", false, "score against the inputs of one year ago")
	flag.BoolVar(historical, "1-year-ago", false, "alias for --historical")
	exportCSV := flag.String("export-csv", "", "export the written score rows to this CSV path")
	pruneBefore := flag.String("prune-before", "", "after the run, delete scores for home-value months before YYYY-MM")
	dryRun := flag.Bool("dry-run", false, "compute and report without writing scores")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	// Reject malformed flags before touching the database
	var month time.Time
	if *zhviMonth != "" {
		month, err = time.Parse("2006-01", *zhviMonth)
		if err != nil {
			logger.Error("Invalid --zhvi-month, want YYYY-MM",
				"value", *zhviMonth, "error", err)
			os.Exit(1)
		}
	}
	var pruneCutoff time.Time
	if *pruneBefore != "" {
		pruneCutoff, err = time.Parse("2006-01", *pruneBefore)
		if err != nil {
			logger.Error("Invalid --prune-before, want YYYY-MM",
				"value", *pruneBefore, "error", err)
			os.Exit(1)
		}
	}

	providers, err := infrastructure.InitializeOTel(&cfg.Tracing, logger)
	if err != nil {
		logger.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	runID := infrastructure.GenerateTraceID()
	ctx := infrastructure.WithTraceID(context.Background(), runID)

	logger.Info("Starting scoring run",
		"run_id", runID,
		"state", *state,
		"historical", *historical,
		"dry_run", *dryRun)

	st, err := store.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		logger.Error("Failed to ensure schema", "error", err)
		os.Exit(1)
	}

	pipe := scoring.NewPipeline(st, st, scoring.DefaultParams(), logger)
	pipe.SetTracer(providers.Tracer)

	stats, err := pipe.Run(ctx, scoring.RunOptions{
		RunID:      runID,
		FMRYear:    *year,
		ZHVIMonth:  month,
		ACSVintage: *acsVintage,
		State:      *state,
		Historical: *historical,
		DryRun:     *dryRun,
	})
	if err != nil {
		logger.Error("Scoring run failed", "run_id", runID, "error", err)
		os.Exit(1)
	}

	fmt.Println()
	if err := scoring.WriteRunReport(os.Stdout, stats, cfg.Pipeline.ReportTopN); err != nil {
		logger.Error("Failed to write run report", "error", err)
		os.Exit(1)
	}

	if *exportCSV != "" {
		if *dryRun {
			logger.Info("Dry run, skipping CSV export", "path", *exportCSV)
		} else {
			rows, err := st.ScoresForVintage(ctx, stats.Vintage, *state)
			if err != nil {
				logger.Error("Failed to read scores for export", "error", err)
				os.Exit(1)
			}
			if err := exporter.NewScoreExporter("").ExportScores(rows, *exportCSV); err != nil {
				logger.Error("Failed to export scores", "error", err)
				os.Exit(1)
			}
			fmt.Printf("Exported %d score rows to %s\n", len(rows), *exportCSV)
		}
	}

	if *pruneBefore != "" {
		if *dryRun {
			logger.Info("Dry run, skipping prune", "cutoff", *pruneBefore)
		} else {
			deleted, err := st.DeleteScoresBefore(ctx, pruneCutoff)
			if err != nil {
				logger.Error("Failed to prune superseded scores", "error", err)
				os.Exit(1)
			}
			fmt.Printf("Pruned %d score rows for home-value months before %s\n", deleted, *pruneBefore)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Tracing shutdown failed", "error", err)
	}

	logger.Info("Scoring run complete",
		"run_id", runID,
		"eligible", stats.Eligible,
		"written", stats.Written)
}
