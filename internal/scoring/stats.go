package scoring

import (
	"sort"
	"time"
)

// RunStats accumulates everything a run needs to report: drop counts by
// reason, correction counts, outlier detail, and the final score
// distribution. Expected, high-volume exclusions increment counters here
// instead of surfacing as errors.
type RunStats struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Vintage     Vintage   `json:"vintage"`
	StateFilter string    `json:"state_filter"`
	DryRun      bool      `json:"dry_run"`

	// Volume
	ZIPsSeen int `json:"zips_seen"` // distinct ZIPs in the home-value snapshot
	Eligible int `json:"eligible"`  // records that passed resolution
	Scored   int `json:"scored"`    // records that survived all gates
	Deduped  int `json:"deduped"`   // natural-key duplicates dropped before write
	Written  int `json:"written"`   // rows upserted

	// Eligibility exclusions (silent drops during resolution)
	DroppedNoValue int `json:"dropped_no_value"` // no bedroom with a positive value
	DroppedNoRent  int `json:"dropped_no_rent"`  // no SAFMR row and no county FMR fallback
	DroppedNoTax   int `json:"dropped_no_tax"`   // no positive tax rate for the vintage

	// Data-quality rejections (bounds violations before scoring)
	RejectedRentBounds    int `json:"rejected_rent_bounds"`
	RejectedTaxBounds     int `json:"rejected_tax_bounds"`
	RejectedNegativeYield int `json:"rejected_negative_yield"`

	// Normalization corrections (record kept, value adjusted)
	Blended     int `json:"blended"`
	Floored     int `json:"floored"`
	RentCapped  int `json:"rent_capped"`
	ScoreCapped int `json:"score_capped"`

	// Demand resolution breakdown
	MetroDirect         int `json:"metro_direct"`
	MetroFromRentIndex  int `json:"metro_from_rent_index"`
	MetroFromCountyMode int `json:"metro_from_county_mode"`
	MetroUnresolved     int `json:"metro_unresolved"`
	DemandDefaulted     int `json:"demand_defaulted"` // zero signals, fixed default assigned

	MedianNetYield float64 `json:"median_net_yield"`

	// Outliers whose pre-cap ratio exceeded the score cap, highest first
	Outliers []OutlierDetail `json:"outliers"`

	finalScores []float64
}

// OutlierDetail captures one capped record for individual logging and the
// run report.
type OutlierDetail struct {
	ZIP       string  `json:"zip"`
	State     string  `json:"state"`
	Bedrooms  int     `json:"bedrooms"`
	RawRatio  float64 `json:"raw_ratio"` // pre-cap score
	HomeValue float64 `json:"home_value"`
	Rent      float64 `json:"rent"`
	Taxes     float64 `json:"taxes"`
	NetYield  float64 `json:"net_yield"`
}

// NewRunStats creates an accumulator for one pipeline run
func NewRunStats(runID string, vintage Vintage, stateFilter string) *RunStats {
	return &RunStats{
		RunID:       runID,
		StartedAt:   time.Now().UTC(),
		Vintage:     vintage,
		StateFilter: stateFilter,
	}
}

// TotalDropped returns the count of records excluded for any reason
func (s *RunStats) TotalDropped() int {
	return s.DroppedNoValue + s.DroppedNoRent + s.DroppedNoTax +
		s.RejectedRentBounds + s.RejectedTaxBounds + s.RejectedNegativeYield
}

// AddOutlier records a capped score for the report
func (s *RunStats) AddOutlier(d OutlierDetail) {
	s.Outliers = append(s.Outliers, d)
}

// TopOutliers returns the n largest outliers by pre-cap ratio, breaking
// ties by ZIP so the ordering is stable across runs.
func (s *RunStats) TopOutliers(n int) []OutlierDetail {
	out := make([]OutlierDetail, len(s.Outliers))
	copy(out, s.Outliers)
	sort.Slice(out, func(i, j int) bool {
		if out[i].RawRatio != out[j].RawRatio {
			return out[i].RawRatio > out[j].RawRatio
		}
		return out[i].ZIP < out[j].ZIP
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// ObserveFinalScore feeds the score distribution
func (s *RunStats) ObserveFinalScore(score float64) {
	s.finalScores = append(s.finalScores, score)
}

// ScoreDistribution returns selected percentiles of the final scores.
// Returns nil when no scores were observed.
func (s *RunStats) ScoreDistribution() map[string]float64 {
	if len(s.finalScores) == 0 {
		return nil
	}

	sorted := make([]float64, len(s.finalScores))
	copy(sorted, s.finalScores)
	sort.Float64s(sorted)

	pick := func(p float64) float64 {
		idx := int(p * float64(len(sorted)-1))
		return sorted[idx]
	}

	return map[string]float64{
		"p10": pick(0.10),
		"p25": pick(0.25),
		"p50": pick(0.50),
		"p75": pick(0.75),
		"p90": pick(0.90),
	}
}
