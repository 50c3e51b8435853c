package scoring

import "strconv"

// Normalizer applies the valuation corrections that suppress small-sample
// noise in the raw home values: county blending, the value floor, and the
// rent-to-value cap, in that order. Every correction keeps the record and
// sets a flag; nothing is dropped here.
type Normalizer struct {
	params Params
}

// NewNormalizer creates a normalizer with the given policy parameters
func NewNormalizer(params Params) *Normalizer {
	return &Normalizer{params: params}
}

// CountyMedians computes the median raw value per (county, bedroom count)
// across the eligible records. The input set has no county-level value
// table, so the cross-sectional median of the run's own ZIPs stands in.
func (n *Normalizer) CountyMedians(records []*GeoRecord) map[string]float64 {
	groups := make(map[string][]float64)
	for _, rec := range records {
		key := rec.CountyKey()
		if key == "" {
			continue
		}
		groups[countyBedroomKey(key, rec.Bedrooms)] = append(groups[countyBedroomKey(key, rec.Bedrooms)], rec.RawValue)
	}

	medians := make(map[string]float64, len(groups))
	for key, values := range groups {
		medians[key] = median(values)
	}
	return medians
}

// Normalize computes each record's effective value and capped rent.
// Corrections are counted on stats; the order is blend, floor, rent cap.
func (n *Normalizer) Normalize(records []*GeoRecord, stats *RunStats) {
	medians := n.CountyMedians(records)

	for _, rec := range records {
		effective := rec.RawValue

		if key := rec.CountyKey(); key != "" {
			if countyMedian, ok := medians[countyBedroomKey(key, rec.Bedrooms)]; ok {
				m := countyMedian
				rec.CountyMedian = &m
				if rec.RawValue < n.params.BlendThreshold {
					effective = n.params.BlendRawWeight*rec.RawValue +
						n.params.BlendCountyWeight*countyMedian
					rec.ValueBlended = true
					stats.Blended++
				}
			}
		}

		if effective < n.params.ValueFloor {
			effective = n.params.ValueFloor
			rec.ValueFloored = true
			stats.Floored++
		}

		rec.EffectiveValue = effective

		rec.CappedRent = rec.AnnualRent
		if maxRent := n.params.RentCapRatio * effective; rec.AnnualRent > maxRent {
			rec.CappedRent = maxRent
			rec.RentCapped = true
			stats.RentCapped++
		}
	}
}

func countyBedroomKey(countyKey string, bedrooms int) string {
	return countyKey + "#" + strconv.Itoa(bedrooms)
}
