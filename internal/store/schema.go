package store

import (
	"context"
	"fmt"
)

// Schema creates every table the pipeline touches. Source tables are
// loaded out of band (the ingestion jobs own their content); the pipeline
// only ever reads them. investment_scores is the pipeline's output table,
// keyed so one row exists per geography, bedroom count, and input-data
// generation.
const Schema = `
CREATE TABLE IF NOT EXISTS home_values (
    zip         TEXT NOT NULL,
    month       DATE NOT NULL,
    city        TEXT NOT NULL DEFAULT '',
    state       TEXT NOT NULL DEFAULT '',
    county_name TEXT NOT NULL DEFAULT '',
    bedrooms    INT  NOT NULL,
    value       DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (zip, month, bedrooms)
);

CREATE TABLE IF NOT EXISTS county_mappings (
    zip         TEXT NOT NULL,
    county_name TEXT NOT NULL DEFAULT '',
    state       TEXT NOT NULL DEFAULT '',
    county_fips TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (zip, county_name, county_fips)
);

CREATE TABLE IF NOT EXISTS metro_mappings (
    zip   TEXT PRIMARY KEY,
    metro TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fmr_rents (
    year     INT  NOT NULL,
    level    TEXT NOT NULL,
    geo_key  TEXT NOT NULL,
    bedrooms INT  NOT NULL,
    rent     DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (year, level, geo_key, bedrooms)
);

CREATE TABLE IF NOT EXISTS tax_rates (
    vintage INT  NOT NULL,
    zip     TEXT NOT NULL,
    rate    DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (vintage, zip)
);

CREATE TABLE IF NOT EXISTS metro_demand (
    metro TEXT NOT NULL,
    month DATE NOT NULL,
    value DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (metro, month)
);

CREATE TABLE IF NOT EXISTS rent_index (
    zip   TEXT NOT NULL,
    month DATE NOT NULL,
    metro TEXT NOT NULL DEFAULT '',
    value DOUBLE PRECISION,
    PRIMARY KEY (zip, month)
);

CREATE TABLE IF NOT EXISTS investment_scores (
    geo_type    TEXT NOT NULL,
    geo_key     TEXT NOT NULL,
    state       TEXT NOT NULL DEFAULT '',
    city        TEXT NOT NULL DEFAULT '',
    county_fips TEXT NOT NULL DEFAULT '',
    bedrooms    INT  NOT NULL,
    fmr_year    INT  NOT NULL,
    zhvi_month  DATE NOT NULL,
    acs_vintage INT  NOT NULL,

    home_value        DOUBLE PRECISION NOT NULL,
    annual_rent       DOUBLE PRECISION NOT NULL,
    annual_taxes      DOUBLE PRECISION NOT NULL,
    net_yield         DOUBLE PRECISION NOT NULL,
    raw_score         DOUBLE PRECISION NOT NULL,
    demand_score      DOUBLE PRECISION NOT NULL,
    demand_multiplier DOUBLE PRECISION NOT NULL,
    final_score       DOUBLE PRECISION NOT NULL,

    value_blended BOOLEAN NOT NULL DEFAULT FALSE,
    value_floored BOOLEAN NOT NULL DEFAULT FALSE,
    rent_capped   BOOLEAN NOT NULL DEFAULT FALSE,
    score_capped  BOOLEAN NOT NULL DEFAULT FALSE,

    computed_at TIMESTAMPTZ NOT NULL,

    PRIMARY KEY (geo_type, geo_key, bedrooms, fmr_year, zhvi_month, acs_vintage)
);

CREATE INDEX IF NOT EXISTS idx_investment_scores_state
    ON investment_scores (state, final_score DESC);

CREATE INDEX IF NOT EXISTS idx_investment_scores_computed_at
    ON investment_scores (computed_at);
`

// EnsureSchema applies the schema. Every statement is idempotent, so this
// is safe to run on startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
