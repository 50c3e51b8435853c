package scoring

// Valuation policy constants. These encode the normalization rules applied
// to every raw property value before any yield math runs.
const (
	// BlendThreshold is the raw value below which county blending applies
	BlendThreshold = 150_000.0
	// BlendRawWeight is the weight of the ZIP's own raw value in a blend
	BlendRawWeight = 0.6
	// BlendCountyWeight is the weight of the county median in a blend
	BlendCountyWeight = 0.4
	// ValueFloor is the minimum effective property value after blending
	ValueFloor = 100_000.0
	// RentCapRatio caps annual rent at this fraction of effective value
	RentCapRatio = 0.18
)

// Score policy constants.
const (
	// ScoreCap bounds both the raw score and the final score
	ScoreCap = 300.0
	// BaselineScore is the raw score of a ZIP yielding exactly the
	// cross-sectional median
	BaselineScore = 100.0
)

// Demand policy constants.
const (
	// DemandNeutral splits the reward and penalty multiplier tiers
	DemandNeutral = 50.0
	// DefaultDemandScore is assigned when no demand signal resolves at all
	DefaultDemandScore = 10.0
	// RewardSlope scales the multiplier bonus above DemandNeutral
	RewardSlope = 0.05
	// PenaltyBase is the multiplier at demand score zero
	PenaltyBase = 0.70
	// PenaltySlope scales the multiplier recovery up to DemandNeutral
	PenaltySlope = 0.20
	// MomentumLookback is how many months back demand momentum compares
	MomentumLookback = 3
	// PressureLookback is how many months back rent pressure compares
	PressureLookback = 12
)

// Data-quality bounds. Records outside these are rejected before scoring.
const (
	// MaxAnnualRent rejects implausible rent rows (annual, dollars)
	MaxAnnualRent = 500_000.0
	// MaxTaxRate rejects implausible effective tax rates
	MaxTaxRate = 0.10
)

// BedroomPriority is the bedroom selection order for each ZIP: the first
// bedroom count with a positive home value wins.
var BedroomPriority = []int{3, 2, 4}

// DemandWeights holds the composite weights for the three demand signals.
// Missing signals reweight the remaining ones proportionally.
type DemandWeights struct {
	Level    float64 `json:"level"`    // latest metro demand-index value
	Momentum float64 `json:"momentum"` // 3-month demand-index delta
	Pressure float64 `json:"pressure"` // ZIP rent-index year-over-year growth
}

// IsValid checks if weights are valid (sum to 1)
func (dw DemandWeights) IsValid() bool {
	sum := dw.Level + dw.Momentum + dw.Pressure
	return dw.Level >= 0 && dw.Momentum >= 0 && dw.Pressure >= 0 &&
		sum > 0.99 && sum < 1.01 // Allow small floating point errors
}

// DefaultDemandWeights returns the production demand composite weights
func DefaultDemandWeights() DemandWeights {
	return DemandWeights{
		Level:    0.5,
		Momentum: 0.3,
		Pressure: 0.2,
	}
}

// Params groups the tunable policy knobs a run computes with. Production
// runs use DefaultParams; tests vary individual fields.
type Params struct {
	BlendThreshold     float64       `json:"blend_threshold"`
	BlendRawWeight     float64       `json:"blend_raw_weight"`
	BlendCountyWeight  float64       `json:"blend_county_weight"`
	ValueFloor         float64       `json:"value_floor"`
	RentCapRatio       float64       `json:"rent_cap_ratio"`
	ScoreCap           float64       `json:"score_cap"`
	DemandWeights      DemandWeights `json:"demand_weights"`
	DefaultDemandScore float64       `json:"default_demand_score"`
	MaxAnnualRent      float64       `json:"max_annual_rent"`
	MaxTaxRate         float64       `json:"max_tax_rate"`
	ReportTopN         int           `json:"report_top_n"`
}

// DefaultParams returns the production scoring parameters
func DefaultParams() Params {
	return Params{
		BlendThreshold:     BlendThreshold,
		BlendRawWeight:     BlendRawWeight,
		BlendCountyWeight:  BlendCountyWeight,
		ValueFloor:         ValueFloor,
		RentCapRatio:       RentCapRatio,
		ScoreCap:           ScoreCap,
		DemandWeights:      DefaultDemandWeights(),
		DefaultDemandScore: DefaultDemandScore,
		MaxAnnualRent:      MaxAnnualRent,
		MaxTaxRate:         MaxTaxRate,
		ReportTopN:         10,
	}
}

// IsValid checks if the parameters are internally consistent
func (p Params) IsValid() bool {
	blendSum := p.BlendRawWeight + p.BlendCountyWeight
	return p.BlendThreshold > 0 && p.ValueFloor > 0 &&
		p.ValueFloor <= p.BlendThreshold &&
		blendSum > 0.99 && blendSum < 1.01 &&
		p.RentCapRatio > 0 && p.RentCapRatio < 1 &&
		p.ScoreCap > BaselineScore &&
		p.DemandWeights.IsValid() &&
		p.DefaultDemandScore >= 0 && p.DefaultDemandScore <= 100 &&
		p.MaxAnnualRent > 0 && p.MaxTaxRate > 0 &&
		p.ReportTopN >= 0
}
