package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"zipyield/internal/scoring"
)

// upsertScoreSQL writes one score row, replacing the computed fields when
// the natural key already exists. Reruns over the same vintage update in
// place instead of duplicating.
const upsertScoreSQL = `
	INSERT INTO investment_scores (
		geo_type, geo_key, state, city, county_fips, bedrooms,
		fmr_year, zhvi_month, acs_vintage,
		home_value, annual_rent, annual_taxes, net_yield,
		raw_score, demand_score, demand_multiplier, final_score,
		value_blended, value_floored, rent_capped, score_capped,
		computed_at
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9,
		$10, $11, $12, $13,
		$14, $15, $16, $17,
		$18, $19, $20, $21,
		$22
	) ON CONFLICT (geo_type, geo_key, bedrooms, fmr_year, zhvi_month, acs_vintage)
	DO UPDATE SET
		state             = EXCLUDED.state,
		city              = EXCLUDED.city,
		county_fips       = EXCLUDED.county_fips,
		home_value        = EXCLUDED.home_value,
		annual_rent       = EXCLUDED.annual_rent,
		annual_taxes      = EXCLUDED.annual_taxes,
		net_yield         = EXCLUDED.net_yield,
		raw_score         = EXCLUDED.raw_score,
		demand_score      = EXCLUDED.demand_score,
		demand_multiplier = EXCLUDED.demand_multiplier,
		final_score       = EXCLUDED.final_score,
		value_blended     = EXCLUDED.value_blended,
		value_floored     = EXCLUDED.value_floored,
		rent_capped       = EXCLUDED.rent_capped,
		score_capped      = EXCLUDED.score_capped,
		computed_at       = EXCLUDED.computed_at
`

// UpsertScores writes the score rows in batches, each batch inside its
// own transaction. A mid-run failure leaves earlier batches committed and
// the failed batch fully rolled back; because every statement is an
// upsert, simply rerunning converges.
func (s *Store) UpsertScores(ctx context.Context, records []scoring.ScoreRecord) (int, error) {
	chunks := chunkRecords(records, s.batchSize)

	written := 0
	for _, chunk := range chunks {
		if err := s.upsertChunk(ctx, chunk); err != nil {
			return written, err
		}
		written += len(chunk)
	}

	s.logger.InfoContext(ctx, "score rows upserted",
		"rows", written,
		"batches", len(chunks),
	)
	return written, nil
}

// upsertChunk writes one batch atomically
func (s *Store) upsertChunk(ctx context.Context, chunk []scoring.ScoreRecord) error {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin score batch: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, rec := range chunk {
		batch.Queue(upsertScoreSQL,
			rec.GeoType, rec.GeoKey, rec.State, rec.City, rec.CountyFIPS, rec.Bedrooms,
			rec.FMRYear, rec.ZHVIMonth, rec.ACSVintage,
			rec.HomeValue, rec.AnnualRent, rec.AnnualTaxes, rec.NetYield,
			rec.RawScore, rec.DemandScore, rec.DemandMultiplier, rec.FinalScore,
			rec.ValueBlended, rec.ValueFloored, rec.RentCapped, rec.ScoreCapped,
			rec.ComputedAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range chunk {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("upsert score row: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close score batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit score batch: %w", err)
	}
	return nil
}

// selectScoresSQL reads back persisted rows for one input vintage. The
// order matches the exporter's so re-exports are stable.
const selectScoresSQL = `
	SELECT geo_type, geo_key, state, city, county_fips, bedrooms,
	       fmr_year, zhvi_month, acs_vintage,
	       home_value, annual_rent, annual_taxes, net_yield,
	       raw_score, demand_score, demand_multiplier, final_score,
	       value_blended, value_floored, rent_capped, score_capped,
	       computed_at
	FROM investment_scores
	WHERE fmr_year = $1 AND zhvi_month = $2 AND acs_vintage = $3
	  AND ($4 = '' OR state = $4)
	ORDER BY geo_key, bedrooms
`

// ScoresForVintage returns the persisted score rows for one input
// vintage, optionally filtered by state.
func (s *Store) ScoresForVintage(ctx context.Context, vintage scoring.Vintage, state string) ([]scoring.ScoreRecord, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, selectScoresSQL,
		vintage.FMRYear, vintage.ZHVIMonth, vintage.ACSVintage, state)
	if err != nil {
		return nil, fmt.Errorf("query scores for vintage: %w", err)
	}
	defer rows.Close()

	var records []scoring.ScoreRecord
	for rows.Next() {
		var rec scoring.ScoreRecord
		if err := rows.Scan(
			&rec.GeoType, &rec.GeoKey, &rec.State, &rec.City, &rec.CountyFIPS, &rec.Bedrooms,
			&rec.FMRYear, &rec.ZHVIMonth, &rec.ACSVintage,
			&rec.HomeValue, &rec.AnnualRent, &rec.AnnualTaxes, &rec.NetYield,
			&rec.RawScore, &rec.DemandScore, &rec.DemandMultiplier, &rec.FinalScore,
			&rec.ValueBlended, &rec.ValueFloored, &rec.RentCapped, &rec.ScoreCapped,
			&rec.ComputedAt,
		); err != nil {
			return nil, fmt.Errorf("scan score row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score rows: %w", err)
	}
	return records, nil
}

// DeleteScoresBefore removes score rows whose home-value month predates
// the cutoff and returns how many were deleted. Used to prune superseded
// monthly vintages.
func (s *Store) DeleteScoresBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM investment_scores WHERE zhvi_month < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete scores before %s: %w", cutoff.Format("2006-01"), err)
	}

	deleted := tag.RowsAffected()
	if deleted > 0 {
		s.logger.InfoContext(ctx, "pruned score rows", "deleted", deleted, "cutoff", cutoff.Format("2006-01"))
	}
	return deleted, nil
}

// chunkRecords splits the rows into batches of at most size. A size of
// zero or less means one batch with everything.
func chunkRecords(records []scoring.ScoreRecord, size int) [][]scoring.ScoreRecord {
	if len(records) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]scoring.ScoreRecord{records}
	}

	chunks := make([][]scoring.ScoreRecord, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}
