package scoring

// DemandMultiplier returns the multiplier a demand score applies to a raw
// score. Demand above the neutral point rewards only records at or above
// the baseline; demand at or below it penalizes everyone, bottoming out
// at PenaltyBase.
//
// Parameters:
//   - rawScore: the record's capped raw score
//   - demandScore: the record's demand score in [0, 100]
//
// Returns a multiplier in [PenaltyBase, 1 + RewardSlope].
func DemandMultiplier(rawScore, demandScore float64) float64 {
	if demandScore > DemandNeutral {
		if rawScore >= BaselineScore {
			return 1.0 + RewardSlope*(demandScore-DemandNeutral)/DemandNeutral
		}
		// Below-baseline records never get a demand reward
		return 1.0
	}

	mult := PenaltyBase + PenaltySlope*(demandScore/DemandNeutral)
	if mult < PenaltyBase {
		mult = PenaltyBase
	}
	return mult
}

// Combine applies each record's demand multiplier and the final cap, and
// feeds the score distribution.
func Combine(records []*GeoRecord, params Params, stats *RunStats) {
	for _, rec := range records {
		rec.DemandMultiplier = DemandMultiplier(rec.RawScore, rec.DemandScore)

		final := rec.RawScore * rec.DemandMultiplier
		if final > params.ScoreCap {
			final = params.ScoreCap
		}
		rec.FinalScore = final
		stats.ObserveFinalScore(final)
	}
}
