package exporter

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"zipyield/internal/scoring"
)

// ScoreExporter handles CSV export of computed investment scores
type ScoreExporter struct {
	writer *Writer
}

// NewScoreExporter creates a new score exporter
func NewScoreExporter(baseDir string) *ScoreExporter {
	return &ScoreExporter{
		writer: NewWriter(baseDir),
	}
}

// ExportScores writes one CSV row per score record, ordered by geography
// and bedroom count so repeat exports of the same run are byte-identical.
func (e *ScoreExporter) ExportScores(records []scoring.ScoreRecord, outputPath string) error {
	sorted := make([]scoring.ScoreRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].GeoKey != sorted[j].GeoKey {
			return sorted[i].GeoKey < sorted[j].GeoKey
		}
		return sorted[i].Bedrooms < sorted[j].Bedrooms
	})

	stream, err := e.writer.CreateStreamWriter(outputPath, scoreHeaders())
	if err != nil {
		return fmt.Errorf("failed to create score export: %w", err)
	}

	for _, rec := range sorted {
		if err := stream.WriteRecord(scoreToCSVRow(rec)); err != nil {
			stream.Close()
			return fmt.Errorf("failed to write score row for %s: %w", rec.GeoKey, err)
		}
	}

	if err := stream.Close(); err != nil {
		return fmt.Errorf("failed to close score export: %w", err)
	}

	slog.Info("Score export written",
		slog.String("output_path", outputPath),
		slog.Int("rows", len(sorted)))
	return nil
}

// scoreHeaders returns the CSV headers for score records, matching the
// investment_scores column vocabulary.
func scoreHeaders() []string {
	return []string{
		"geo_type", "geo_key", "state", "city", "county_fips", "bedrooms",
		"fmr_year", "zhvi_month", "acs_vintage",
		"home_value", "annual_rent", "annual_taxes", "net_yield",
		"raw_score", "demand_score", "demand_multiplier", "final_score",
		"value_blended", "value_floored", "rent_capped", "score_capped",
		"computed_at",
	}
}

// scoreToCSVRow converts a score record to a CSV row
func scoreToCSVRow(rec scoring.ScoreRecord) []string {
	return []string{
		rec.GeoType,
		rec.GeoKey,
		rec.State,
		rec.City,
		rec.CountyFIPS,
		formatInt(rec.Bedrooms),
		formatInt(rec.FMRYear),
		rec.ZHVIMonth.Format("2006-01"),
		formatInt(rec.ACSVintage),
		formatMoney(rec.HomeValue),
		formatMoney(rec.AnnualRent),
		formatMoney(rec.AnnualTaxes),
		formatScore(rec.NetYield),
		formatScore(rec.RawScore),
		formatScore(rec.DemandScore),
		formatScore(rec.DemandMultiplier),
		formatScore(rec.FinalScore),
		formatBool(rec.ValueBlended),
		formatBool(rec.ValueFloored),
		formatBool(rec.RentCapped),
		formatBool(rec.ScoreCapped),
		rec.ComputedAt.UTC().Format(time.RFC3339),
	}
}
