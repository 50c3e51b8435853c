package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNormalizerCountyMedians tests the per-county per-bedroom median
func TestNormalizerCountyMedians(t *testing.T) {
	n := NewNormalizer(DefaultParams())

	records := []*GeoRecord{
		{ZIP: "77001", CountyFIPS: "48201", Bedrooms: 3, RawValue: 100000},
		{ZIP: "77002", CountyFIPS: "48201", Bedrooms: 3, RawValue: 200000},
		{ZIP: "77003", CountyFIPS: "48201", Bedrooms: 3, RawValue: 300000},
		{ZIP: "77004", CountyFIPS: "48201", Bedrooms: 2, RawValue: 500000},
		{ZIP: "75001", CountyFIPS: "48113", Bedrooms: 3, RawValue: 400000},
		{ZIP: "10001", Bedrooms: 3, RawValue: 900000}, // no county, excluded
	}

	medians := n.CountyMedians(records)

	require.Len(t, medians, 3)
	assert.InDelta(t, 200000, medians["48201#3"], 1e-9)
	assert.InDelta(t, 500000, medians["48201#2"], 1e-9)
	assert.InDelta(t, 400000, medians["48113#3"], 1e-9)
}

// TestNormalizerBlendAndFloor tests county blending and the value floor.
// An $80k home in a county with a $120k median blends to $96k and then
// floors to $100k, with both corrections flagged.
func TestNormalizerBlendAndFloor(t *testing.T) {
	n := NewNormalizer(DefaultParams())

	records := []*GeoRecord{
		{ZIP: "77001", CountyFIPS: "48201", Bedrooms: 3, RawValue: 80000, AnnualRent: 12000},
		{ZIP: "77002", CountyFIPS: "48201", Bedrooms: 3, RawValue: 120000, AnnualRent: 15000},
		{ZIP: "77003", CountyFIPS: "48201", Bedrooms: 3, RawValue: 160000, AnnualRent: 18000},
	}

	stats := NewRunStats("run-1", Vintage{}, "")
	n.Normalize(records, stats)

	// 0.6*80000 + 0.4*120000 = 96000, floored to 100000
	low := records[0]
	assert.True(t, low.ValueBlended)
	assert.True(t, low.ValueFloored)
	assert.InDelta(t, 100000, low.EffectiveValue, 1e-9)
	require.NotNil(t, low.CountyMedian)
	assert.InDelta(t, 120000, *low.CountyMedian, 1e-9)

	// 0.6*120000 + 0.4*120000 = 120000, blended but neither floored nor moved
	mid := records[1]
	assert.True(t, mid.ValueBlended)
	assert.False(t, mid.ValueFloored)
	assert.InDelta(t, 120000, mid.EffectiveValue, 1e-9)

	// Above the threshold nothing applies
	high := records[2]
	assert.False(t, high.ValueBlended)
	assert.False(t, high.ValueFloored)
	assert.InDelta(t, 160000, high.EffectiveValue, 1e-9)

	assert.Equal(t, 2, stats.Blended)
	assert.Equal(t, 1, stats.Floored)
}

// TestNormalizerNoCountyNoBlend tests that a record without a county
// keeps its raw value even below the blend threshold.
func TestNormalizerNoCountyNoBlend(t *testing.T) {
	n := NewNormalizer(DefaultParams())

	records := []*GeoRecord{
		{ZIP: "10001", Bedrooms: 3, RawValue: 110000, AnnualRent: 12000},
	}

	stats := NewRunStats("run-1", Vintage{}, "")
	n.Normalize(records, stats)

	assert.False(t, records[0].ValueBlended)
	assert.Nil(t, records[0].CountyMedian)
	assert.False(t, records[0].ValueFloored)
	assert.InDelta(t, 110000, records[0].EffectiveValue, 1e-9)
	assert.Equal(t, 0, stats.Blended)
}

// TestNormalizerRentCap tests the rent-to-value cap. $40k of annual rent
// against a $200k home caps at 18%, $36k.
func TestNormalizerRentCap(t *testing.T) {
	n := NewNormalizer(DefaultParams())

	records := []*GeoRecord{
		{ZIP: "77001", Bedrooms: 3, RawValue: 200000, AnnualRent: 40000},
		{ZIP: "77002", Bedrooms: 3, RawValue: 200000, AnnualRent: 30000},
	}

	stats := NewRunStats("run-1", Vintage{}, "")
	n.Normalize(records, stats)

	capped := records[0]
	assert.True(t, capped.RentCapped)
	assert.InDelta(t, 36000, capped.CappedRent, 1e-9)
	assert.InDelta(t, 40000, capped.AnnualRent, 1e-9) // original preserved

	passed := records[1]
	assert.False(t, passed.RentCapped)
	assert.InDelta(t, 30000, passed.CappedRent, 1e-9)

	assert.Equal(t, 1, stats.RentCapped)
}

// TestNormalizerCapUsesEffectiveValue tests that the rent cap applies to
// the post-blend post-floor value, not the raw one.
func TestNormalizerCapUsesEffectiveValue(t *testing.T) {
	n := NewNormalizer(DefaultParams())

	// County median 100000, so 80000 blends to 88000 and floors to
	// 100000; the cap is 18% of the floored value
	records := []*GeoRecord{
		{ZIP: "77001", CountyFIPS: "48201", Bedrooms: 3, RawValue: 80000, AnnualRent: 20000},
		{ZIP: "77002", CountyFIPS: "48201", Bedrooms: 3, RawValue: 120000, AnnualRent: 15000},
	}

	stats := NewRunStats("run-1", Vintage{}, "")
	n.Normalize(records, stats)

	rec := records[0]
	assert.InDelta(t, 100000, rec.EffectiveValue, 1e-9)
	assert.True(t, rec.RentCapped)
	assert.InDelta(t, 18000, rec.CappedRent, 1e-9)
}

// TestQualityGate tests the plausibility bounds
func TestQualityGate(t *testing.T) {
	gate := NewQualityGate(DefaultParams())

	records := []*GeoRecord{
		{ZIP: "77001", Bedrooms: 3, RawValue: 200000, AnnualRent: 24000, TaxRate: 0.02},
		{ZIP: "77002", Bedrooms: 3, RawValue: 200000, AnnualRent: 600000, TaxRate: 0.02}, // rent too high
		{ZIP: "77003", Bedrooms: 3, RawValue: 200000, AnnualRent: 24000, TaxRate: 0.15},  // tax too high
		{ZIP: "77004", Bedrooms: 3, RawValue: 200000, AnnualRent: 500000, TaxRate: 0.10}, // exactly at bounds
	}

	stats := NewRunStats("run-1", Vintage{}, "")
	kept := gate.Filter(records, stats)

	require.Len(t, kept, 2)
	assert.Equal(t, "77001", kept[0].ZIP)
	assert.Equal(t, "77004", kept[1].ZIP)
	assert.Equal(t, 1, stats.RejectedRentBounds)
	assert.Equal(t, 1, stats.RejectedTaxBounds)
}

// TestMedian tests the midpoint calculation
func TestMedian(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5}, 5},
		{"odd count", []float64{3, 1, 2}, 2},
		{"even count averages the middles", []float64{4, 1, 3, 2}, 2.5},
		{"unsorted input", []float64{100, 10, 50, 20, 80}, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, median(tt.values), 1e-9)
		})
	}
}
