package scoring

import (
	"fmt"
	"io"
	"time"
)

// WriteRunReport renders the human-readable run summary. The pipeline
// logs structured events as it goes; this is the operator-facing digest
// printed to stdout at the end of a run.
func WriteRunReport(w io.Writer, stats *RunStats, topN int) error {
	if stats == nil {
		return fmt.Errorf("nil run stats")
	}

	state := stats.StateFilter
	if state == "" {
		state = "(nationwide)"
	}
	finished := stats.FinishedAt
	if finished.IsZero() {
		finished = time.Now().UTC()
	}

	fmt.Fprintf(w, "ZIP Investment Score - Run Report\n")
	fmt.Fprintf(w, "=================================\n\n")
	fmt.Fprintf(w, "Run ID: %s\n", stats.RunID)
	fmt.Fprintf(w, "Generated: %s\n", finished.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Duration: %s\n\n", finished.Sub(stats.StartedAt).Round(time.Millisecond))

	fmt.Fprintf(w, "VINTAGE\n")
	fmt.Fprintf(w, "-------\n")
	fmt.Fprintf(w, "FMR Year: %d\n", stats.Vintage.FMRYear)
	fmt.Fprintf(w, "ZHVI Month: %s\n", stats.Vintage.ZHVIMonth.Format("2006-01"))
	fmt.Fprintf(w, "ACS Vintage: %d\n", stats.Vintage.ACSVintage)
	fmt.Fprintf(w, "State Filter: %s\n", state)
	if stats.DryRun {
		fmt.Fprintf(w, "Dry Run: yes (nothing written)\n")
	}
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "VOLUME\n")
	fmt.Fprintf(w, "------\n")
	fmt.Fprintf(w, "ZIPs Seen: %d\n", stats.ZIPsSeen)
	fmt.Fprintf(w, "Eligible: %d\n", stats.Eligible)
	fmt.Fprintf(w, "Scored: %d\n", stats.Scored)
	fmt.Fprintf(w, "Deduplicated: %d\n", stats.Deduped)
	fmt.Fprintf(w, "Written: %d\n\n", stats.Written)

	fmt.Fprintf(w, "EXCLUSIONS\n")
	fmt.Fprintf(w, "----------\n")
	fmt.Fprintf(w, "No home value: %d\n", stats.DroppedNoValue)
	fmt.Fprintf(w, "No rent: %d\n", stats.DroppedNoRent)
	fmt.Fprintf(w, "No tax rate: %d\n", stats.DroppedNoTax)
	fmt.Fprintf(w, "Rent out of bounds: %d\n", stats.RejectedRentBounds)
	fmt.Fprintf(w, "Tax rate out of bounds: %d\n", stats.RejectedTaxBounds)
	fmt.Fprintf(w, "Negative net yield: %d\n", stats.RejectedNegativeYield)
	fmt.Fprintf(w, "Total: %d\n\n", stats.TotalDropped())

	fmt.Fprintf(w, "CORRECTIONS\n")
	fmt.Fprintf(w, "-----------\n")
	fmt.Fprintf(w, "County blended: %d\n", stats.Blended)
	fmt.Fprintf(w, "Value floored: %d\n", stats.Floored)
	fmt.Fprintf(w, "Rent capped: %d\n", stats.RentCapped)
	fmt.Fprintf(w, "Score capped: %d\n\n", stats.ScoreCapped)

	fmt.Fprintf(w, "DEMAND RESOLUTION\n")
	fmt.Fprintf(w, "-----------------\n")
	fmt.Fprintf(w, "Direct mapping: %d\n", stats.MetroDirect)
	fmt.Fprintf(w, "Via rent index: %d\n", stats.MetroFromRentIndex)
	fmt.Fprintf(w, "Via county mode: %d\n", stats.MetroFromCountyMode)
	fmt.Fprintf(w, "Unresolved: %d\n", stats.MetroUnresolved)
	fmt.Fprintf(w, "Defaulted (no signals): %d\n\n", stats.DemandDefaulted)

	fmt.Fprintf(w, "SCORE DISTRIBUTION\n")
	fmt.Fprintf(w, "------------------\n")
	fmt.Fprintf(w, "Median Net Yield: %.4f\n", stats.MedianNetYield)
	if dist := stats.ScoreDistribution(); dist != nil {
		for _, p := range []string{"p10", "p25", "p50", "p75", "p90"} {
			fmt.Fprintf(w, "%s: %.1f\n", p, dist[p])
		}
	}
	fmt.Fprintf(w, "\n")

	outliers := stats.TopOutliers(topN)
	if len(outliers) > 0 {
		fmt.Fprintf(w, "TOP %d CAPPED OUTLIERS (Highest Pre-Cap Ratio)\n", len(outliers))
		fmt.Fprintf(w, "---------------------------------------------\n")
		for i, o := range outliers {
			fmt.Fprintf(w, "%2d. %s %s %dBR: ratio %.1f (value $%.0f, rent $%.0f, taxes $%.0f, yield %.4f)\n",
				i+1, o.ZIP, o.State, o.Bedrooms, o.RawRatio, o.HomeValue, o.Rent, o.Taxes, o.NetYield)
		}
		fmt.Fprintf(w, "\n")
	}

	return nil
}
