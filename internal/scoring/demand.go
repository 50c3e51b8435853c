package scoring

import (
	"sort"
	"strings"
)

// DemandScorer turns metro demand-index and ZIP rent-index series into a
// 0-100 demand score per record. Metro assignment runs as a cascade:
// direct ZIP-to-metro mapping, then the rent-index file's own metro label,
// then the most common assignment among the record's county neighbors.
// Metro names from the two sources never agree verbatim, so every
// comparison goes through normalizeMetroName.
type DemandScorer struct {
	params      Params
	metroDemand map[string]MetroDemandRow // normalized metro name -> row
	mappings    map[string]string         // zip -> raw metro label
	rentIndex   map[string]RentIndexRow   // zip -> row
}

// NewDemandScorer indexes the demand-side snapshots. Duplicate rows for
// the same key keep the first occurrence.
func NewDemandScorer(params Params, data *SourceData) *DemandScorer {
	d := &DemandScorer{
		params:      params,
		metroDemand: make(map[string]MetroDemandRow),
		mappings:    make(map[string]string),
		rentIndex:   make(map[string]RentIndexRow),
	}

	for _, row := range data.MetroDemand {
		key := normalizeMetroName(row.Metro)
		if key == "" {
			continue
		}
		if _, exists := d.metroDemand[key]; !exists {
			d.metroDemand[key] = row
		}
	}
	for _, m := range data.MetroMappings {
		if m.ZIP == "" || m.Metro == "" {
			continue
		}
		if _, exists := d.mappings[m.ZIP]; !exists {
			d.mappings[m.ZIP] = m.Metro
		}
	}
	for _, row := range data.RentIndex {
		if row.ZIP == "" {
			continue
		}
		if _, exists := d.rentIndex[row.ZIP]; !exists {
			d.rentIndex[row.ZIP] = row
		}
	}

	return d
}

// Score resolves a metro per record, ranks the three demand signals
// across all records, and assigns the weighted composite. Records with no
// signal at all get the fixed default score.
func (d *DemandScorer) Score(records []*GeoRecord, stats *RunStats) {
	d.resolveMetros(records, stats)

	levels := make([]indexedValue, 0, len(records))
	momenta := make([]indexedValue, 0, len(records))
	pressures := make([]indexedValue, 0, len(records))

	for i, rec := range records {
		if rec.Metro != "" {
			row := d.metroDemand[rec.Metro]
			levels = append(levels, indexedValue{idx: i, value: row.Latest, tie: rec.ZIP})
			if row.ThreeMonthsAgo != nil {
				momenta = append(momenta, indexedValue{idx: i, value: row.Latest - *row.ThreeMonthsAgo, tie: rec.ZIP})
			}
		}
		if growth, ok := d.rentGrowth(rec.ZIP); ok {
			pressures = append(pressures, indexedValue{idx: i, value: growth, tie: rec.ZIP})
		}
	}

	levelPct := rankPercentiles(levels)
	momentumPct := rankPercentiles(momenta)
	pressurePct := rankPercentiles(pressures)

	weights := d.params.DemandWeights
	for i, rec := range records {
		var weighted, total float64
		signals := 0

		if p, ok := levelPct[i]; ok {
			weighted += weights.Level * p
			total += weights.Level
			signals++
		}
		if p, ok := momentumPct[i]; ok {
			weighted += weights.Momentum * p
			total += weights.Momentum
			signals++
		}
		if p, ok := pressurePct[i]; ok {
			weighted += weights.Pressure * p
			total += weights.Pressure
			signals++
		}

		rec.DemandSignals = signals
		if signals == 0 || total == 0 {
			rec.DemandScore = d.params.DefaultDemandScore
			stats.DemandDefaulted++
			continue
		}
		rec.DemandScore = weighted / total
	}
}

// resolveMetros runs the assignment cascade. The county-mode fallback
// needs the directly-resolved assignments first, so it runs as a second
// pass.
func (d *DemandScorer) resolveMetros(records []*GeoRecord, stats *RunStats) {
	for _, rec := range records {
		if label, ok := d.mappings[rec.ZIP]; ok {
			if key, ok := d.lookupMetro(label); ok {
				rec.Metro = key
				rec.MetroSource = MetroSourceMapping
				stats.MetroDirect++
				continue
			}
		}
		if row, ok := d.rentIndex[rec.ZIP]; ok && row.Metro != "" {
			if key, ok := d.lookupMetro(row.Metro); ok {
				rec.Metro = key
				rec.MetroSource = MetroSourceRentIndex
				stats.MetroFromRentIndex++
			}
		}
	}

	// County fallback: mode of the neighbors' resolved assignments
	countyMetros := make(map[string]map[string]int)
	for _, rec := range records {
		if rec.Metro == "" {
			continue
		}
		key := rec.CountyKey()
		if key == "" {
			continue
		}
		if countyMetros[key] == nil {
			countyMetros[key] = make(map[string]int)
		}
		countyMetros[key][rec.Metro]++
	}

	for _, rec := range records {
		if rec.Metro != "" {
			continue
		}
		if key := rec.CountyKey(); key != "" {
			if metro, ok := metroMode(countyMetros[key]); ok {
				rec.Metro = metro
				rec.MetroSource = MetroSourceCountyMode
				stats.MetroFromCountyMode++
				continue
			}
		}
		stats.MetroUnresolved++
	}
}

// lookupMetro normalizes a source metro label and checks it against the
// demand table.
func (d *DemandScorer) lookupMetro(label string) (string, bool) {
	key := normalizeMetroName(label)
	if key == "" {
		return "", false
	}
	if _, ok := d.metroDemand[key]; !ok {
		return "", false
	}
	return key, true
}

// rentGrowth computes the ZIP's rent-index year-over-year growth when
// both endpoints exist.
func (d *DemandScorer) rentGrowth(zip string) (float64, bool) {
	row, ok := d.rentIndex[zip]
	if !ok || row.Latest == nil || row.YearAgo == nil || *row.YearAgo == 0 {
		return 0, false
	}
	return (*row.Latest - *row.YearAgo) / *row.YearAgo, true
}

// metroMode returns the most frequent metro in the tally; ties break to
// the lexicographically smallest name so reruns stay deterministic.
func metroMode(tally map[string]int) (string, bool) {
	best := ""
	bestCount := 0
	for metro, count := range tally {
		if count > bestCount || (count == bestCount && metro < best) {
			best = metro
			bestCount = count
		}
	}
	return best, bestCount > 0
}

// normalizeMetroName reduces a metro label to its primary city for
// cross-source matching: the first dash-separated segment, any trailing
// two-letter state code stripped, lowercased. "Dallas-Fort Worth, TX" and
// "Dallas, TX" both normalize to "dallas".
func normalizeMetroName(name string) string {
	s := name
	if i := strings.Index(s, "-"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(strings.TrimSpace(s), " ,")

	if len(s) >= 3 {
		tail := s[len(s)-2:]
		sep := s[len(s)-3]
		if (sep == ' ' || sep == ',') && isUpperAlpha(tail) {
			s = strings.TrimRight(s[:len(s)-2], " ,")
		}
	}

	return strings.ToLower(strings.TrimSpace(s))
}

func isUpperAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return len(s) > 0
}

// indexedValue pairs a record index with a signal value; tie carries the
// record's ZIP so equal values sort deterministically.
type indexedValue struct {
	idx   int
	value float64
	tie   string
}

// rankPercentiles assigns each entry a percentile rank in [0, 100] by
// position in ascending order: rank = position / (n-1) * 100. A single
// entry ranks at the midpoint.
func rankPercentiles(entries []indexedValue) map[int]float64 {
	n := len(entries)
	if n == 0 {
		return nil
	}

	out := make(map[int]float64, n)
	if n == 1 {
		out[entries[0].idx] = 50
		return out
	}

	sorted := make([]indexedValue, n)
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].value != sorted[j].value {
			return sorted[i].value < sorted[j].value
		}
		return sorted[i].tie < sorted[j].tie
	})

	for pos, e := range sorted {
		out[e.idx] = float64(pos) / float64(n-1) * 100
	}
	return out
}
