package scoring

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// QualityGate rejects records whose joined inputs fall outside plausible
// bounds before any scoring math runs. Unlike eligibility drops, these
// indicate bad upstream data rather than missing data, so they are counted
// separately.
type QualityGate struct {
	validate *validator.Validate
	rentRule string
	taxRule  string
}

// NewQualityGate builds the gate's validation rules from the run's
// parameters.
func NewQualityGate(params Params) *QualityGate {
	return &QualityGate{
		validate: validator.New(),
		rentRule: fmt.Sprintf("gt=0,lte=%g", params.MaxAnnualRent),
		taxRule:  fmt.Sprintf("gte=0,lte=%g", params.MaxTaxRate),
	}
}

// Filter returns the records that pass every bound, counting rejections
// by reason on stats.
func (g *QualityGate) Filter(records []*GeoRecord, stats *RunStats) []*GeoRecord {
	kept := make([]*GeoRecord, 0, len(records))
	for _, rec := range records {
		if err := g.validate.Var(rec.AnnualRent, g.rentRule); err != nil {
			stats.RejectedRentBounds++
			continue
		}
		if err := g.validate.Var(rec.TaxRate, g.taxRule); err != nil {
			stats.RejectedTaxBounds++
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}
