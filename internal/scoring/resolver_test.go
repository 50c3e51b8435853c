package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResolverBedroomSelection tests the bedroom priority order
func TestResolverBedroomSelection(t *testing.T) {
	tests := []struct {
		name             string
		rows             []HomeValueRow
		expectedBedrooms int
		expectedValue    float64
		dropped          bool
	}{
		{
			name: "three bedrooms wins when present",
			rows: []HomeValueRow{
				{ZIP: "75001", Bedrooms: 2, Value: 180000},
				{ZIP: "75001", Bedrooms: 3, Value: 220000},
				{ZIP: "75001", Bedrooms: 4, Value: 280000},
			},
			expectedBedrooms: 3,
			expectedValue:    220000,
		},
		{
			name: "two bedrooms before four",
			rows: []HomeValueRow{
				{ZIP: "75001", Bedrooms: 2, Value: 180000},
				{ZIP: "75001", Bedrooms: 4, Value: 280000},
			},
			expectedBedrooms: 2,
			expectedValue:    180000,
		},
		{
			name: "four bedrooms as the last resort",
			rows: []HomeValueRow{
				{ZIP: "75001", Bedrooms: 4, Value: 280000},
			},
			expectedBedrooms: 4,
			expectedValue:    280000,
		},
		{
			name: "no priority bedroom drops the ZIP",
			rows: []HomeValueRow{
				{ZIP: "75001", Bedrooms: 1, Value: 120000},
				{ZIP: "75001", Bedrooms: 5, Value: 400000},
			},
			dropped: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := &SourceData{
				HomeValues: tt.rows,
				FMRRents: []FMRRow{
					{Year: 2026, Level: FMRLevelZIP, GeoKey: "75001", Bedrooms: 2, Rent: 1800},
					{Year: 2026, Level: FMRLevelZIP, GeoKey: "75001", Bedrooms: 3, Rent: 2000},
					{Year: 2026, Level: FMRLevelZIP, GeoKey: "75001", Bedrooms: 4, Rent: 2400},
				},
				TaxRates: []TaxRateRow{{Vintage: 2024, ZIP: "75001", Rate: 0.02}},
			}

			stats := NewRunStats("run-1", Vintage{}, "")
			records := NewResolver(data).Resolve(stats)

			if tt.dropped {
				assert.Empty(t, records)
				assert.Equal(t, 1, stats.DroppedNoValue)
				return
			}

			require.Len(t, records, 1)
			assert.Equal(t, tt.expectedBedrooms, records[0].Bedrooms)
			assert.InDelta(t, tt.expectedValue, records[0].RawValue, 1e-9)
		})
	}
}

// TestResolverCountyFIPS tests the ordered FIPS resolution strategies
func TestResolverCountyFIPS(t *testing.T) {
	tests := []struct {
		name         string
		countyName   string
		state        string
		mappings     []CountyMapping
		expectedFIPS string
	}{
		{
			name:       "exact name match",
			countyName: "Harris County",
			state:      "TX",
			mappings: []CountyMapping{
				{ZIP: "77001", CountyName: "Fort Bend County", State: "TX", CountyFIPS: "48157"},
				{ZIP: "77001", CountyName: "Harris County", State: "TX", CountyFIPS: "48201"},
			},
			expectedFIPS: "48201",
		},
		{
			name:       "suffix-normalized match",
			countyName: "Harris County",
			state:      "TX",
			mappings: []CountyMapping{
				{ZIP: "77001", CountyName: "HARRIS", State: "TX", CountyFIPS: "48201"},
			},
			expectedFIPS: "48201",
		},
		{
			name:       "parish designation normalizes too",
			countyName: "Orleans Parish",
			state:      "LA",
			mappings: []CountyMapping{
				{ZIP: "77001", CountyName: "orleans", State: "LA", CountyFIPS: "22071"},
			},
			expectedFIPS: "22071",
		},
		{
			name:       "state fallback when names disagree",
			countyName: "Harrisburg County",
			state:      "TX",
			mappings: []CountyMapping{
				{ZIP: "77001", CountyName: "Something Else", State: "OK", CountyFIPS: "40109"},
				{ZIP: "77001", CountyName: "Another County", State: "TX", CountyFIPS: "48201"},
			},
			expectedFIPS: "48201",
		},
		{
			name:       "state fallback sorts deterministically",
			countyName: "",
			state:      "TX",
			mappings: []CountyMapping{
				{ZIP: "77001", CountyName: "Zavala County", State: "TX", CountyFIPS: "48507"},
				{ZIP: "77001", CountyName: "Atascosa County", State: "TX", CountyFIPS: "48013"},
			},
			expectedFIPS: "48013",
		},
		{
			name:         "no crosswalk row leaves FIPS empty",
			countyName:   "Harris County",
			state:        "TX",
			mappings:     nil,
			expectedFIPS: "",
		},
		{
			name:       "rows without FIPS never match",
			countyName: "Harris County",
			state:      "TX",
			mappings: []CountyMapping{
				{ZIP: "77001", CountyName: "Harris County", State: "TX", CountyFIPS: ""},
			},
			expectedFIPS: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := &SourceData{CountyMappings: tt.mappings}
			r := NewResolver(data)

			rec := &GeoRecord{ZIP: "77001", State: tt.state, CountyName: tt.countyName}
			assert.Equal(t, tt.expectedFIPS, r.resolveCountyFIPS(rec))
		})
	}
}

// TestNormalizeCountyName tests the suffix stripping
func TestNormalizeCountyName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Harris County", "harris"},
		{"HARRIS", "harris"},
		{"Orleans Parish", "orleans"},
		{"Matanuska-Susitna Borough", "matanuska-susitna"},
		{"  St. Louis County  ", "st. louis"},
		{"County", "county"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeCountyName(tt.input))
		})
	}
}

// TestResolverRentFallback tests ZIP rent first, county FMR second
func TestResolverRentFallback(t *testing.T) {
	base := func() *SourceData {
		return &SourceData{
			HomeValues: []HomeValueRow{
				{ZIP: "77001", City: "Houston", State: "TX", CountyName: "Harris County", Bedrooms: 3, Value: 250000},
			},
			CountyMappings: []CountyMapping{
				{ZIP: "77001", CountyName: "Harris County", State: "TX", CountyFIPS: "48201"},
			},
			TaxRates: []TaxRateRow{{Vintage: 2024, ZIP: "77001", Rate: 0.02}},
		}
	}

	t.Run("ZIP rent preferred", func(t *testing.T) {
		data := base()
		data.FMRRents = []FMRRow{
			{Year: 2026, Level: FMRLevelZIP, GeoKey: "77001", Bedrooms: 3, Rent: 2100},
			{Year: 2026, Level: FMRLevelCounty, GeoKey: "48201", Bedrooms: 3, Rent: 1700},
		}

		stats := NewRunStats("run-1", Vintage{}, "")
		records := NewResolver(data).Resolve(stats)

		require.Len(t, records, 1)
		assert.Equal(t, RentSourceZIP, records[0].RentSource)
		assert.InDelta(t, 2100*12, records[0].AnnualRent, 1e-9)
	})

	t.Run("county fallback", func(t *testing.T) {
		data := base()
		data.FMRRents = []FMRRow{
			{Year: 2026, Level: FMRLevelCounty, GeoKey: "48201", Bedrooms: 3, Rent: 1700},
		}

		stats := NewRunStats("run-1", Vintage{}, "")
		records := NewResolver(data).Resolve(stats)

		require.Len(t, records, 1)
		assert.Equal(t, RentSourceCounty, records[0].RentSource)
		assert.InDelta(t, 1700*12, records[0].AnnualRent, 1e-9)
	})

	t.Run("ZIP rent for a different bedroom count does not apply", func(t *testing.T) {
		data := base()
		data.FMRRents = []FMRRow{
			{Year: 2026, Level: FMRLevelZIP, GeoKey: "77001", Bedrooms: 2, Rent: 1800},
			{Year: 2026, Level: FMRLevelCounty, GeoKey: "48201", Bedrooms: 3, Rent: 1700},
		}

		stats := NewRunStats("run-1", Vintage{}, "")
		records := NewResolver(data).Resolve(stats)

		require.Len(t, records, 1)
		assert.Equal(t, RentSourceCounty, records[0].RentSource)
	})

	t.Run("no rent anywhere drops the ZIP", func(t *testing.T) {
		data := base()
		data.FMRRents = nil

		stats := NewRunStats("run-1", Vintage{}, "")
		records := NewResolver(data).Resolve(stats)

		assert.Empty(t, records)
		assert.Equal(t, 1, stats.DroppedNoRent)
	})

	t.Run("county rent unreachable without FIPS", func(t *testing.T) {
		data := base()
		data.CountyMappings = nil
		data.FMRRents = []FMRRow{
			{Year: 2026, Level: FMRLevelCounty, GeoKey: "48201", Bedrooms: 3, Rent: 1700},
		}

		stats := NewRunStats("run-1", Vintage{}, "")
		records := NewResolver(data).Resolve(stats)

		assert.Empty(t, records)
		assert.Equal(t, 1, stats.DroppedNoRent)
	})
}

// TestResolverTaxRate tests the tax-rate join
func TestResolverTaxRate(t *testing.T) {
	data := &SourceData{
		HomeValues: []HomeValueRow{
			{ZIP: "77001", State: "TX", Bedrooms: 3, Value: 250000},
			{ZIP: "77002", State: "TX", Bedrooms: 3, Value: 250000},
			{ZIP: "77003", State: "TX", Bedrooms: 3, Value: 250000},
		},
		FMRRents: []FMRRow{
			{Year: 2026, Level: FMRLevelZIP, GeoKey: "77001", Bedrooms: 3, Rent: 2000},
			{Year: 2026, Level: FMRLevelZIP, GeoKey: "77002", Bedrooms: 3, Rent: 2000},
			{Year: 2026, Level: FMRLevelZIP, GeoKey: "77003", Bedrooms: 3, Rent: 2000},
		},
		TaxRates: []TaxRateRow{
			{Vintage: 2024, ZIP: "77001", Rate: 0.02},
			{Vintage: 2024, ZIP: "77003", Rate: 0}, // present but unusable
		},
	}

	stats := NewRunStats("run-1", Vintage{}, "")
	records := NewResolver(data).Resolve(stats)

	require.Len(t, records, 1)
	assert.Equal(t, "77001", records[0].ZIP)
	assert.InDelta(t, 0.02, records[0].TaxRate, 1e-9)
	assert.Equal(t, 2, stats.DroppedNoTax)
}

// TestResolverDeterministicOrder tests sorted output and duplicate handling
func TestResolverDeterministicOrder(t *testing.T) {
	data := &SourceData{
		HomeValues: []HomeValueRow{
			{ZIP: "77003", State: "TX", Bedrooms: 3, Value: 300000},
			{ZIP: "77001", State: "TX", Bedrooms: 3, Value: 250000},
			{ZIP: "77001", State: "TX", Bedrooms: 3, Value: 999999}, // duplicate, ignored
			{ZIP: "77002", State: "TX", Bedrooms: 3, Value: 275000},
		},
		FMRRents: []FMRRow{
			{Year: 2026, Level: FMRLevelZIP, GeoKey: "77001", Bedrooms: 3, Rent: 2000},
			{Year: 2026, Level: FMRLevelZIP, GeoKey: "77001", Bedrooms: 3, Rent: 5000}, // duplicate, ignored
			{Year: 2026, Level: FMRLevelZIP, GeoKey: "77002", Bedrooms: 3, Rent: 2000},
			{Year: 2026, Level: FMRLevelZIP, GeoKey: "77003", Bedrooms: 3, Rent: 2000},
		},
		TaxRates: []TaxRateRow{
			{Vintage: 2024, ZIP: "77001", Rate: 0.02},
			{Vintage: 2024, ZIP: "77002", Rate: 0.02},
			{Vintage: 2024, ZIP: "77003", Rate: 0.02},
		},
	}

	stats := NewRunStats("run-1", Vintage{}, "")
	records := NewResolver(data).Resolve(stats)

	require.Len(t, records, 3)
	assert.Equal(t, "77001", records[0].ZIP)
	assert.Equal(t, "77002", records[1].ZIP)
	assert.Equal(t, "77003", records[2].ZIP)

	// First occurrence wins for duplicate source rows
	assert.InDelta(t, 250000, records[0].RawValue, 1e-9)
	assert.InDelta(t, 2000*12, records[0].AnnualRent, 1e-9)

	assert.Equal(t, 3, stats.ZIPsSeen)
	assert.Equal(t, 3, stats.Eligible)
}
