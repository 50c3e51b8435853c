package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestVintage tests vintage validation
func TestVintage(t *testing.T) {
	tests := []struct {
		name    string
		vintage Vintage
		valid   bool
	}{
		{
			name: "fully pinned",
			vintage: Vintage{
				FMRYear:    2026,
				ZHVIMonth:  time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
				ACSVintage: 2024,
			},
			valid: true,
		},
		{
			name: "missing FMR year",
			vintage: Vintage{
				ZHVIMonth:  time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
				ACSVintage: 2024,
			},
			valid: false,
		},
		{
			name: "missing ZHVI month",
			vintage: Vintage{
				FMRYear:    2026,
				ACSVintage: 2024,
			},
			valid: false,
		},
		{
			name: "missing ACS vintage",
			vintage: Vintage{
				FMRYear:   2026,
				ZHVIMonth: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.vintage.IsValid())
		})
	}
}

// TestHomeValueRowIsValid tests home-value row validation
func TestHomeValueRowIsValid(t *testing.T) {
	tests := []struct {
		name  string
		row   HomeValueRow
		valid bool
	}{
		{"valid row", HomeValueRow{ZIP: "75001", Bedrooms: 3, Value: 200000}, true},
		{"missing ZIP", HomeValueRow{Bedrooms: 3, Value: 200000}, false},
		{"zero bedrooms", HomeValueRow{ZIP: "75001", Value: 200000}, false},
		{"zero value", HomeValueRow{ZIP: "75001", Bedrooms: 3}, false},
		{"negative value", HomeValueRow{ZIP: "75001", Bedrooms: 3, Value: -1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.row.IsValid())
		})
	}
}

// TestGeoRecordCountyKey tests county grouping key resolution
func TestGeoRecordCountyKey(t *testing.T) {
	tests := []struct {
		name     string
		rec      GeoRecord
		expected string
	}{
		{
			name:     "FIPS wins over name",
			rec:      GeoRecord{CountyFIPS: "48201", CountyName: "Harris County", State: "TX"},
			expected: "48201",
		},
		{
			name:     "name plus state without FIPS",
			rec:      GeoRecord{CountyName: "Harris County", State: "TX"},
			expected: "Harris County|TX",
		},
		{
			name:     "no county at all",
			rec:      GeoRecord{State: "TX"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.rec.CountyKey())
		})
	}
}

// TestScoreRecordKey tests the natural-key encoding used for dedupe
func TestScoreRecordKey(t *testing.T) {
	row := ScoreRecord{
		GeoType:    GeoTypeZIP,
		GeoKey:     "75001",
		Bedrooms:   3,
		FMRYear:    2026,
		ZHVIMonth:  time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		ACSVintage: 2024,
	}

	assert.Equal(t, "zip|75001|3|2026|2026-06|2024", row.Key())

	other := row
	other.Bedrooms = 2
	assert.NotEqual(t, row.Key(), other.Key())

	// Computed fields do not participate in the key
	scored := row
	scored.FinalScore = 150
	scored.ComputedAt = time.Now()
	assert.Equal(t, row.Key(), scored.Key())
}

// TestDemandWeights tests demand weight validation
func TestDemandWeights(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		assert.True(t, DefaultDemandWeights().IsValid())
	})

	t.Run("invalid weights", func(t *testing.T) {
		tests := []struct {
			name    string
			weights DemandWeights
		}{
			{"sum below one", DemandWeights{Level: 0.5, Momentum: 0.3, Pressure: 0.1}},
			{"sum above one", DemandWeights{Level: 0.6, Momentum: 0.3, Pressure: 0.2}},
			{"negative component", DemandWeights{Level: 1.2, Momentum: -0.1, Pressure: -0.1}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.False(t, tt.weights.IsValid())
			})
		}
	})
}

// TestParams tests parameter validation
func TestParams(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		params := DefaultParams()
		assert.True(t, params.IsValid())
		assert.InDelta(t, 150000.0, params.BlendThreshold, 1e-9)
		assert.InDelta(t, 100000.0, params.ValueFloor, 1e-9)
		assert.InDelta(t, 0.18, params.RentCapRatio, 1e-9)
		assert.InDelta(t, 300.0, params.ScoreCap, 1e-9)
		assert.InDelta(t, 10.0, params.DefaultDemandScore, 1e-9)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*Params)
		}{
			{"zero floor", func(p *Params) { p.ValueFloor = 0 }},
			{"floor above blend threshold", func(p *Params) { p.ValueFloor = 200000 }},
			{"blend weights do not sum to one", func(p *Params) { p.BlendRawWeight = 0.5 }},
			{"rent cap ratio above one", func(p *Params) { p.RentCapRatio = 1.5 }},
			{"score cap below baseline", func(p *Params) { p.ScoreCap = 90 }},
			{"default demand out of range", func(p *Params) { p.DefaultDemandScore = 150 }},
			{"negative top n", func(p *Params) { p.ReportTopN = -1 }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				params := DefaultParams()
				tt.mutate(&params)
				assert.False(t, params.IsValid())
			})
		}
	})
}

// TestRunStatsTotalDropped tests the drop counter sum
func TestRunStatsTotalDropped(t *testing.T) {
	stats := &RunStats{
		DroppedNoValue:        1,
		DroppedNoRent:         2,
		DroppedNoTax:          3,
		RejectedRentBounds:    4,
		RejectedTaxBounds:     5,
		RejectedNegativeYield: 6,
	}
	assert.Equal(t, 21, stats.TotalDropped())
}

// TestRunStatsTopOutliers tests outlier ordering and truncation
func TestRunStatsTopOutliers(t *testing.T) {
	stats := NewRunStats("run-1", Vintage{}, "")
	stats.AddOutlier(OutlierDetail{ZIP: "10001", RawRatio: 350})
	stats.AddOutlier(OutlierDetail{ZIP: "20002", RawRatio: 500})
	stats.AddOutlier(OutlierDetail{ZIP: "30003", RawRatio: 350})
	stats.AddOutlier(OutlierDetail{ZIP: "40004", RawRatio: 420})

	top := stats.TopOutliers(3)
	require.Len(t, top, 3)
	assert.Equal(t, "20002", top[0].ZIP)
	assert.Equal(t, "40004", top[1].ZIP)
	// Equal ratios order by ZIP
	assert.Equal(t, "10001", top[2].ZIP)

	all := stats.TopOutliers(10)
	assert.Len(t, all, 4)
	assert.Equal(t, "30003", all[3].ZIP)

	// The accumulator's own slice stays in insertion order
	assert.Equal(t, "10001", stats.Outliers[0].ZIP)
}

// TestRunStatsScoreDistribution tests percentile selection
func TestRunStatsScoreDistribution(t *testing.T) {
	t.Run("empty returns nil", func(t *testing.T) {
		stats := NewRunStats("run-1", Vintage{}, "")
		assert.Nil(t, stats.ScoreDistribution())
	})

	t.Run("selected percentiles", func(t *testing.T) {
		stats := NewRunStats("run-1", Vintage{}, "")
		for i := 1; i <= 11; i++ {
			stats.ObserveFinalScore(float64(i * 10))
		}

		dist := stats.ScoreDistribution()
		require.NotNil(t, dist)
		assert.InDelta(t, 20.0, dist["p10"], 1e-9)
		assert.InDelta(t, 60.0, dist["p50"], 1e-9)
		assert.InDelta(t, 100.0, dist["p90"], 1e-9)
	})
}
