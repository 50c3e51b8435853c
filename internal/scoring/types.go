package scoring

import (
	"context"
	"strconv"
	"time"
)

// Rent source levels, in fallback order.
const (
	// RentSourceZIP means the annual rent came from a ZIP-level (SAFMR) row
	RentSourceZIP = "zip"
	// RentSourceCounty means the annual rent fell back to the county FMR row
	RentSourceCounty = "county"
)

// FMR geography levels for rent rows.
const (
	FMRLevelZIP    = "zip"
	FMRLevelCounty = "county"
)

// Metro resolution sources, in cascade order.
const (
	MetroSourceMapping    = "mapping"
	MetroSourceRentIndex  = "rent_index"
	MetroSourceCountyMode = "county_mode"
)

// GeoTypeZIP is the geography type of every row this pipeline produces.
// The score table is keyed on geo type so county-level rows can coexist later.
const GeoTypeZIP = "zip"

// Vintage pins the input generations a run computes against. Two runs with
// the same vintage and the same source rows produce identical score rows.
type Vintage struct {
	FMRYear    int       `json:"fmr_year"`
	ZHVIMonth  time.Time `json:"zhvi_month"` // first day of month
	ACSVintage int       `json:"acs_vintage"`
}

// IsValid checks if the vintage is fully pinned
func (v Vintage) IsValid() bool {
	return v.FMRYear > 2000 && !v.ZHVIMonth.IsZero() && v.ACSVintage > 2000
}

// HomeValueRow is one (ZIP, bedroom) home-value observation for a month.
type HomeValueRow struct {
	ZIP        string  `json:"zip"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	CountyName string  `json:"county_name"` // source label, may be empty
	Bedrooms   int     `json:"bedrooms"`
	Value      float64 `json:"value"`
}

// IsValid checks if the row carries a usable observation
func (r HomeValueRow) IsValid() bool {
	return r.ZIP != "" && r.Bedrooms > 0 && r.Value > 0
}

// CountyMapping is one ZIP-to-county crosswalk row.
type CountyMapping struct {
	ZIP        string `json:"zip"`
	CountyName string `json:"county_name"`
	State      string `json:"state"`
	CountyFIPS string `json:"county_fips"` // may be empty
}

// MetroMapping is one direct ZIP-to-metro (CBSA) assignment row.
type MetroMapping struct {
	ZIP   string `json:"zip"`
	Metro string `json:"metro"`
}

// FMRRow is one fair-market-rent observation: ZIP-level (SAFMR) or
// county-level, keyed by bedroom count. Rent is monthly.
type FMRRow struct {
	Year     int     `json:"year"`
	Level    string  `json:"level"`   // FMRLevelZIP or FMRLevelCounty
	GeoKey   string  `json:"geo_key"` // ZIP or county FIPS
	Bedrooms int     `json:"bedrooms"`
	Rent     float64 `json:"rent"`
}

// TaxRateRow is one effective property-tax rate for a ZIP and ACS vintage.
type TaxRateRow struct {
	Vintage int     `json:"vintage"`
	ZIP     string  `json:"zip"`
	Rate    float64 `json:"rate"`
}

// MetroDemandRow is the latest metro demand-index observation plus the
// value three months earlier when the series reaches back that far.
type MetroDemandRow struct {
	Metro          string   `json:"metro"`
	Latest         float64  `json:"latest"`
	ThreeMonthsAgo *float64 `json:"three_months_ago"`
}

// RentIndexRow is the latest ZIP rent-index observation plus the value
// twelve months earlier, and the metro label the source file carries.
type RentIndexRow struct {
	ZIP     string   `json:"zip"`
	Metro   string   `json:"metro"`
	Latest  *float64 `json:"latest"`
	YearAgo *float64 `json:"year_ago"`
}

// SourceData bundles the read-only snapshots a run scores against.
type SourceData struct {
	HomeValues     []HomeValueRow
	CountyMappings []CountyMapping
	MetroMappings  []MetroMapping
	FMRRents       []FMRRow
	TaxRates       []TaxRateRow
	MetroDemand    []MetroDemandRow
	RentIndex      []RentIndexRow
}

// GeoRecord is the unit of work: one eligible ZIP with exactly one bedroom
// count, carried through normalization, yield, demand, and combination.
// Later phases fill in the later fields.
type GeoRecord struct {
	ZIP        string `json:"zip"`
	City       string `json:"city"`
	State      string `json:"state"`
	CountyName string `json:"county_name"`
	CountyFIPS string `json:"county_fips"` // empty when unresolved
	Bedrooms   int    `json:"bedrooms"`

	// Raw joined inputs
	RawValue   float64 `json:"raw_value"`
	AnnualRent float64 `json:"annual_rent"` // monthly FMR x 12, pre-cap
	RentSource string  `json:"rent_source"` // RentSourceZIP or RentSourceCounty
	TaxRate    float64 `json:"tax_rate"`

	// Normalization results
	EffectiveValue float64  `json:"effective_value"`
	CountyMedian   *float64 `json:"county_median"`
	CappedRent     float64  `json:"capped_rent"` // annual, post rent-to-value cap
	ValueBlended   bool     `json:"value_blended"`
	ValueFloored   bool     `json:"value_floored"`
	RentCapped     bool     `json:"rent_capped"`

	// Yield and raw score
	AnnualTaxes float64 `json:"annual_taxes"`
	NetYield    float64 `json:"net_yield"`
	RawScore    float64 `json:"raw_score"`
	RawUncapped float64 `json:"raw_uncapped"` // pre-cap ratio, kept for the report
	ScoreCapped bool    `json:"score_capped"`

	// Demand
	Metro         string  `json:"metro"`        // resolved demand-table metro, empty if none
	MetroSource   string  `json:"metro_source"` // cascade step that resolved it
	DemandScore   float64 `json:"demand_score"`
	DemandSignals int     `json:"demand_signals"` // how many of the three signals contributed

	// Combination
	DemandMultiplier float64 `json:"demand_multiplier"`
	FinalScore       float64 `json:"final_score"`
}

// IsValid checks that the record joined all mandatory inputs
func (g GeoRecord) IsValid() bool {
	return g.ZIP != "" && g.Bedrooms > 0 && g.RawValue > 0 &&
		g.AnnualRent > 0 && g.TaxRate > 0
}

// CountyKey returns the grouping key for county-level aggregation: the
// resolved FIPS when present, otherwise county name + state, otherwise "".
func (g GeoRecord) CountyKey() string {
	if g.CountyFIPS != "" {
		return g.CountyFIPS
	}
	if g.CountyName != "" {
		return g.CountyName + "|" + g.State
	}
	return ""
}

// ScoreRecord is one persisted score row. The natural key is
// (GeoType, GeoKey, Bedrooms, FMRYear, ZHVIMonth, ACSVintage).
type ScoreRecord struct {
	GeoType    string    `json:"geo_type"`
	GeoKey     string    `json:"geo_key"`
	State      string    `json:"state"`
	City       string    `json:"city"`
	CountyFIPS string    `json:"county_fips"`
	Bedrooms   int       `json:"bedrooms"`
	FMRYear    int       `json:"fmr_year"`
	ZHVIMonth  time.Time `json:"zhvi_month"`
	ACSVintage int       `json:"acs_vintage"`

	HomeValue        float64 `json:"home_value"`
	AnnualRent       float64 `json:"annual_rent"`
	AnnualTaxes      float64 `json:"annual_taxes"`
	NetYield         float64 `json:"net_yield"`
	RawScore         float64 `json:"raw_score"`
	DemandScore      float64 `json:"demand_score"`
	DemandMultiplier float64 `json:"demand_multiplier"`
	FinalScore       float64 `json:"final_score"`

	ValueBlended bool `json:"value_blended"`
	ValueFloored bool `json:"value_floored"`
	RentCapped   bool `json:"rent_capped"`
	ScoreCapped  bool `json:"score_capped"`

	ComputedAt time.Time `json:"computed_at"`
}

// Key returns the natural-key tuple as a single comparable string, used
// for pre-write deduplication.
func (s ScoreRecord) Key() string {
	return s.GeoType + "|" + s.GeoKey + "|" +
		strconv.Itoa(s.Bedrooms) + "|" + strconv.Itoa(s.FMRYear) + "|" +
		s.ZHVIMonth.Format("2006-01") + "|" + strconv.Itoa(s.ACSVintage)
}

// SourceReader loads read-only source snapshots for a run. Implemented by
// the Postgres store; tests supply in-memory fakes.
type SourceReader interface {
	LatestHomeValueMonth(ctx context.Context) (time.Time, error)
	LatestFMRYear(ctx context.Context) (int, error)
	LatestTaxVintage(ctx context.Context) (int, error)

	HomeValues(ctx context.Context, month time.Time, state string) ([]HomeValueRow, error)
	CountyMappings(ctx context.Context, state string) ([]CountyMapping, error)
	MetroMappings(ctx context.Context) ([]MetroMapping, error)
	FMRRents(ctx context.Context, year int) ([]FMRRow, error)
	TaxRates(ctx context.Context, vintage int) ([]TaxRateRow, error)
	MetroDemand(ctx context.Context) ([]MetroDemandRow, error)
	RentIndex(ctx context.Context) ([]RentIndexRow, error)
}

// ScoreWriter persists computed score rows. Implementations batch
// internally and make each batch atomic.
type ScoreWriter interface {
	UpsertScores(ctx context.Context, records []ScoreRecord) (int, error)
}
