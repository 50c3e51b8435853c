package scoring

import (
	"fmt"
	"sort"
)

// ComputeYields computes annual taxes and net yield for every record,
// drops negative yields, then scores the survivors against the
// cross-sectional median yield.
//
// Parameters:
//   - records: normalized records (EffectiveValue and CappedRent set)
//   - params: run parameters, used for the score cap
//   - stats: accumulator for drop counts, the median, and outlier detail
//
// Returns the surviving records. An error is returned only for the
// degenerate case where the median net yield is not positive, which would
// make every score undefined.
func ComputeYields(records []*GeoRecord, params Params, stats *RunStats) ([]*GeoRecord, error) {
	kept := make([]*GeoRecord, 0, len(records))
	for _, rec := range records {
		rec.AnnualTaxes = rec.EffectiveValue * rec.TaxRate
		rec.NetYield = (rec.CappedRent - rec.AnnualTaxes) / rec.EffectiveValue

		if rec.NetYield < 0 {
			stats.RejectedNegativeYield++
			continue
		}
		kept = append(kept, rec)
	}

	if len(kept) == 0 {
		return kept, nil
	}

	yields := make([]float64, len(kept))
	for i, rec := range kept {
		yields[i] = rec.NetYield
	}

	medianYield := median(yields)
	stats.MedianNetYield = medianYield
	if medianYield <= 0 {
		return nil, fmt.Errorf("median net yield is %.6f, cannot scale raw scores", medianYield)
	}

	for _, rec := range kept {
		ratio := rec.NetYield / medianYield * BaselineScore
		rec.RawUncapped = ratio
		rec.RawScore = ratio
		if ratio > params.ScoreCap {
			rec.RawScore = params.ScoreCap
			rec.ScoreCapped = true
			stats.ScoreCapped++
			stats.AddOutlier(OutlierDetail{
				ZIP:       rec.ZIP,
				State:     rec.State,
				Bedrooms:  rec.Bedrooms,
				RawRatio:  ratio,
				HomeValue: rec.EffectiveValue,
				Rent:      rec.CappedRent,
				Taxes:     rec.AnnualTaxes,
				NetYield:  rec.NetYield,
			})
		}
	}

	return kept, nil
}

// median returns the middle value of the inputs; for an even count the
// mean of the two middle values. The input slice is not modified.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
