package scoring

import (
	"sort"
	"strings"
)

// Resolver joins the source snapshots into one GeoRecord per eligible ZIP.
// A ZIP must resolve a home value, an annual rent, and a positive tax rate
// to survive; anything else is silently dropped and counted on the stats
// accumulator.
type Resolver struct {
	homeValues map[string]map[int]HomeValueRow // zip -> bedrooms -> row
	zipRents   map[string]map[int]float64      // zip -> bedrooms -> monthly rent
	countyRent map[string]map[int]float64      // county FIPS -> bedrooms -> monthly rent
	taxRates   map[string]float64              // zip -> effective rate
	mappings   map[string][]CountyMapping      // zip -> crosswalk rows, sorted
}

// NewResolver indexes the source snapshots for joining. Duplicate source
// rows for the same key keep the first occurrence.
func NewResolver(data *SourceData) *Resolver {
	r := &Resolver{
		homeValues: make(map[string]map[int]HomeValueRow),
		zipRents:   make(map[string]map[int]float64),
		countyRent: make(map[string]map[int]float64),
		taxRates:   make(map[string]float64),
		mappings:   make(map[string][]CountyMapping),
	}

	for _, row := range data.HomeValues {
		if !row.IsValid() {
			continue
		}
		byBed, ok := r.homeValues[row.ZIP]
		if !ok {
			byBed = make(map[int]HomeValueRow)
			r.homeValues[row.ZIP] = byBed
		}
		if _, exists := byBed[row.Bedrooms]; !exists {
			byBed[row.Bedrooms] = row
		}
	}

	for _, row := range data.FMRRents {
		if row.Rent <= 0 || row.GeoKey == "" {
			continue
		}
		var target map[string]map[int]float64
		switch row.Level {
		case FMRLevelZIP:
			target = r.zipRents
		case FMRLevelCounty:
			target = r.countyRent
		default:
			continue
		}
		byBed, ok := target[row.GeoKey]
		if !ok {
			byBed = make(map[int]float64)
			target[row.GeoKey] = byBed
		}
		if _, exists := byBed[row.Bedrooms]; !exists {
			byBed[row.Bedrooms] = row.Rent
		}
	}

	for _, row := range data.TaxRates {
		if row.ZIP == "" {
			continue
		}
		if _, exists := r.taxRates[row.ZIP]; !exists {
			r.taxRates[row.ZIP] = row.Rate
		}
	}

	for _, m := range data.CountyMappings {
		if m.ZIP == "" {
			continue
		}
		r.mappings[m.ZIP] = append(r.mappings[m.ZIP], m)
	}
	// Deterministic order for the any-FIPS fallback
	for zip := range r.mappings {
		rows := r.mappings[zip]
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].CountyName != rows[j].CountyName {
				return rows[i].CountyName < rows[j].CountyName
			}
			return rows[i].CountyFIPS < rows[j].CountyFIPS
		})
	}

	return r
}

// Resolve produces one GeoRecord per eligible ZIP, sorted by ZIP so the
// rest of the pipeline iterates deterministically. Drop counts land on
// stats; individual drops are not logged.
func (r *Resolver) Resolve(stats *RunStats) []*GeoRecord {
	zips := make([]string, 0, len(r.homeValues))
	for zip := range r.homeValues {
		zips = append(zips, zip)
	}
	sort.Strings(zips)

	stats.ZIPsSeen = len(zips)

	records := make([]*GeoRecord, 0, len(zips))
	for _, zip := range zips {
		rec, ok := r.resolveZIP(zip, stats)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	stats.Eligible = len(records)
	return records
}

// resolveZIP assembles a single record, or reports which input was missing
func (r *Resolver) resolveZIP(zip string, stats *RunStats) (*GeoRecord, bool) {
	row, ok := r.selectBedroom(zip)
	if !ok {
		stats.DroppedNoValue++
		return nil, false
	}

	rec := &GeoRecord{
		ZIP:        zip,
		City:       row.City,
		State:      row.State,
		CountyName: row.CountyName,
		Bedrooms:   row.Bedrooms,
		RawValue:   row.Value,
	}

	rec.CountyFIPS = r.resolveCountyFIPS(rec)

	rent, source, ok := r.resolveRent(rec)
	if !ok {
		stats.DroppedNoRent++
		return nil, false
	}
	rec.AnnualRent = rent * 12
	rec.RentSource = source

	rate, ok := r.taxRates[zip]
	if !ok || rate <= 0 {
		stats.DroppedNoTax++
		return nil, false
	}
	rec.TaxRate = rate

	return rec, true
}

// selectBedroom picks the record's bedroom count: the first of the
// priority order with a positive home value.
func (r *Resolver) selectBedroom(zip string) (HomeValueRow, bool) {
	byBed := r.homeValues[zip]
	for _, bed := range BedroomPriority {
		if row, ok := byBed[bed]; ok && row.Value > 0 {
			return row, true
		}
	}
	return HomeValueRow{}, false
}

// resolveCountyFIPS resolves the record's county FIPS code through an
// ordered list of strategies, stopping at the first hit:
//
//	1. exact county-name match against the crosswalk
//	2. suffix-normalized match (County/Parish/Borough stripped, case folded)
//	3. any FIPS recorded for the ZIP in the record's state
//
// Returns the empty string when every strategy misses; the record stays
// eligible, it just loses the county-level fallbacks downstream.
func (r *Resolver) resolveCountyFIPS(rec *GeoRecord) string {
	rows := r.mappings[rec.ZIP]
	if len(rows) == 0 {
		return ""
	}

	strategies := []func(*GeoRecord, []CountyMapping) (string, bool){
		matchCountyExact,
		matchCountyNormalized,
		matchCountyAny,
	}

	for _, strategy := range strategies {
		if fips, ok := strategy(rec, rows); ok {
			return fips
		}
	}
	return ""
}

func matchCountyExact(rec *GeoRecord, rows []CountyMapping) (string, bool) {
	if rec.CountyName == "" {
		return "", false
	}
	for _, m := range rows {
		if m.CountyFIPS != "" && m.CountyName == rec.CountyName {
			return m.CountyFIPS, true
		}
	}
	return "", false
}

func matchCountyNormalized(rec *GeoRecord, rows []CountyMapping) (string, bool) {
	if rec.CountyName == "" {
		return "", false
	}
	want := normalizeCountyName(rec.CountyName)
	for _, m := range rows {
		if m.CountyFIPS != "" && normalizeCountyName(m.CountyName) == want {
			return m.CountyFIPS, true
		}
	}
	return "", false
}

func matchCountyAny(rec *GeoRecord, rows []CountyMapping) (string, bool) {
	for _, m := range rows {
		if m.CountyFIPS != "" && strings.EqualFold(m.State, rec.State) {
			return m.CountyFIPS, true
		}
	}
	return "", false
}

// countySuffixes are the designations the two sources disagree on
// ("Harris County" vs "Harris", "Orleans Parish" vs "Orleans").
var countySuffixes = []string{" county", " parish", " borough"}

// normalizeCountyName lowercases a county label and strips the trailing
// geographic designation so the two naming schemes compare equal.
func normalizeCountyName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	for _, suffix := range countySuffixes {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			break
		}
	}
	return s
}

// resolveRent resolves the monthly rent for the record's bedroom count:
// ZIP-level SAFMR first, county FMR as the fallback.
func (r *Resolver) resolveRent(rec *GeoRecord) (float64, string, bool) {
	if byBed, ok := r.zipRents[rec.ZIP]; ok {
		if rent, ok := byBed[rec.Bedrooms]; ok {
			return rent, RentSourceZIP, true
		}
	}
	if rec.CountyFIPS != "" {
		if byBed, ok := r.countyRent[rec.CountyFIPS]; ok {
			if rent, ok := byBed[rec.Bedrooms]; ok {
				return rent, RentSourceCounty, true
			}
		}
	}
	return 0, "", false
}
