package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"zipyield/internal/config"
	"zipyield/internal/hud"
	"zipyield/internal/infrastructure"
)

func main() {
	in := flag.String("in", "", "HUD FMR or SAFMR workbook (.xlsx)")
	out := flag.String("out", "", "output csv path (defaults to the workbook path with a .csv extension)")
	year := flag.Int("year", 0, "fiscal year override (default: read from the filename)")
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "usage: fmrconvert --in <workbook.xlsx> [--out <schedule.csv>] [--year 2026]")
		os.Exit(1)
	}
	if *out == "" {
		*out = defaultOutputPath(*in)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	logger.Info("Starting workbook conversion",
		slog.String("input", *in),
		slog.String("output", *out))

	wb, err := hud.ParseWorkbook(*in, logger)
	if err != nil {
		logger.Error("Workbook conversion failed",
			slog.String("input", *in),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *year != 0 {
		wb.Year = *year
	}
	if wb.Year == 0 {
		logger.Error("Fiscal year not found in filename, pass --year",
			slog.String("input", *in))
		os.Exit(1)
	}

	outDir := filepath.Dir(*out)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		logger.Error("Cannot create output directory",
			slog.String("path", outDir),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	f, err := os.Create(*out)
	if err != nil {
		logger.Error("Cannot create output file",
			slog.String("path", *out),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := hud.WriteCSV(f, wb); err != nil {
		f.Close()
		logger.Error("CSV write failed",
			slog.String("path", *out),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		logger.Error("CSV close failed",
			slog.String("path", *out),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Workbook converted",
		slog.String("kind", wb.Kind),
		slog.Int("year", wb.Year),
		slog.String("sheet", wb.Sheet),
		slog.Int("geographies", len(wb.Rows)),
		slog.Int("skipped", wb.Skipped),
		slog.Int("duplicates", wb.Duplicates),
		slog.String("output", *out))

	fmt.Printf("Converted %d geographies (%s, FY%d) to %s\n", len(wb.Rows), wb.Kind, wb.Year, *out)
	if wb.Skipped > 0 || wb.Duplicates > 0 {
		fmt.Printf("Skipped %d malformed rows, dropped %d duplicates\n", wb.Skipped, wb.Duplicates)
	}
}

func defaultOutputPath(in string) string {
	return strings.TrimSuffix(in, filepath.Ext(in)) + ".csv"
}
