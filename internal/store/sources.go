package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"zipyield/internal/scoring"
)

// LatestHomeValueMonth returns the most recent month in the home-value
// table, or the zero time when the table is empty.
func (s *Store) LatestHomeValueMonth(ctx context.Context) (time.Time, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var month *time.Time
	err := s.pool.QueryRow(ctx, `SELECT max(month) FROM home_values`).Scan(&month)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("query latest home-value month: %w", err)
	}
	if month == nil {
		return time.Time{}, nil
	}
	return *month, nil
}

// LatestFMRYear returns the most recent fair-market-rent year, or zero
// when the table is empty.
func (s *Store) LatestFMRYear(ctx context.Context) (int, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var year *int
	err := s.pool.QueryRow(ctx, `SELECT max(year) FROM fmr_rents`).Scan(&year)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("query latest FMR year: %w", err)
	}
	if year == nil {
		return 0, nil
	}
	return *year, nil
}

// LatestTaxVintage returns the most recent tax-rate vintage, or zero when
// the table is empty.
func (s *Store) LatestTaxVintage(ctx context.Context) (int, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var vintage *int
	err := s.pool.QueryRow(ctx, `SELECT max(vintage) FROM tax_rates`).Scan(&vintage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("query latest tax vintage: %w", err)
	}
	if vintage == nil {
		return 0, nil
	}
	return *vintage, nil
}

// HomeValues loads the home-value snapshot for one month, optionally
// filtered to a state. Ordering is fixed so runs are reproducible.
func (s *Store) HomeValues(ctx context.Context, month time.Time, state string) ([]scoring.HomeValueRow, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	query := `
		SELECT zip, city, state, county_name, bedrooms, value
		FROM home_values
		WHERE month = $1 AND ($2 = '' OR state = $2)
		ORDER BY zip, bedrooms
	`

	rows, err := s.pool.Query(ctx, query, month, state)
	if err != nil {
		return nil, fmt.Errorf("query home values for %s: %w", month.Format("2006-01"), err)
	}
	defer rows.Close()

	var out []scoring.HomeValueRow
	for rows.Next() {
		var row scoring.HomeValueRow
		if err := rows.Scan(&row.ZIP, &row.City, &row.State, &row.CountyName, &row.Bedrooms, &row.Value); err != nil {
			return nil, fmt.Errorf("scan home-value row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate home-value rows: %w", err)
	}

	return out, nil
}

// CountyMappings loads the ZIP-to-county crosswalk, optionally filtered
// to a state.
func (s *Store) CountyMappings(ctx context.Context, state string) ([]scoring.CountyMapping, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	query := `
		SELECT zip, county_name, state, county_fips
		FROM county_mappings
		WHERE $1 = '' OR state = $1
		ORDER BY zip, county_name
	`

	rows, err := s.pool.Query(ctx, query, state)
	if err != nil {
		return nil, fmt.Errorf("query county mappings: %w", err)
	}
	defer rows.Close()

	var out []scoring.CountyMapping
	for rows.Next() {
		var m scoring.CountyMapping
		if err := rows.Scan(&m.ZIP, &m.CountyName, &m.State, &m.CountyFIPS); err != nil {
			return nil, fmt.Errorf("scan county mapping: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate county mappings: %w", err)
	}

	return out, nil
}

// MetroMappings loads the direct ZIP-to-metro assignments
func (s *Store) MetroMappings(ctx context.Context) ([]scoring.MetroMapping, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT zip, metro FROM metro_mappings ORDER BY zip`)
	if err != nil {
		return nil, fmt.Errorf("query metro mappings: %w", err)
	}
	defer rows.Close()

	var out []scoring.MetroMapping
	for rows.Next() {
		var m scoring.MetroMapping
		if err := rows.Scan(&m.ZIP, &m.Metro); err != nil {
			return nil, fmt.Errorf("scan metro mapping: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metro mappings: %w", err)
	}

	return out, nil
}

// FMRRents loads every fair-market-rent row for a year, both ZIP-level
// and county-level.
func (s *Store) FMRRents(ctx context.Context, year int) ([]scoring.FMRRow, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	query := `
		SELECT year, level, geo_key, bedrooms, rent
		FROM fmr_rents
		WHERE year = $1
		ORDER BY level, geo_key, bedrooms
	`

	rows, err := s.pool.Query(ctx, query, year)
	if err != nil {
		return nil, fmt.Errorf("query FMR rents for %d: %w", year, err)
	}
	defer rows.Close()

	var out []scoring.FMRRow
	for rows.Next() {
		var row scoring.FMRRow
		if err := rows.Scan(&row.Year, &row.Level, &row.GeoKey, &row.Bedrooms, &row.Rent); err != nil {
			return nil, fmt.Errorf("scan FMR row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate FMR rows: %w", err)
	}

	return out, nil
}

// TaxRates loads the effective property-tax rates for one ACS vintage
func (s *Store) TaxRates(ctx context.Context, vintage int) ([]scoring.TaxRateRow, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	query := `
		SELECT vintage, zip, rate
		FROM tax_rates
		WHERE vintage = $1
		ORDER BY zip
	`

	rows, err := s.pool.Query(ctx, query, vintage)
	if err != nil {
		return nil, fmt.Errorf("query tax rates for %d: %w", vintage, err)
	}
	defer rows.Close()

	var out []scoring.TaxRateRow
	for rows.Next() {
		var row scoring.TaxRateRow
		if err := rows.Scan(&row.Vintage, &row.ZIP, &row.Rate); err != nil {
			return nil, fmt.Errorf("scan tax-rate row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tax-rate rows: %w", err)
	}

	return out, nil
}

// MetroDemand loads each metro's latest demand-index observation plus the
// observation three months earlier when the series reaches back that far.
func (s *Store) MetroDemand(ctx context.Context) ([]scoring.MetroDemandRow, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	query := `
		WITH latest AS (
			SELECT DISTINCT ON (metro) metro, month, value
			FROM metro_demand
			ORDER BY metro, month DESC
		)
		SELECT l.metro, l.value, p.value
		FROM latest l
		LEFT JOIN metro_demand p
			ON p.metro = l.metro AND p.month = l.month - INTERVAL '3 months'
		ORDER BY l.metro
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query metro demand: %w", err)
	}
	defer rows.Close()

	var out []scoring.MetroDemandRow
	for rows.Next() {
		var row scoring.MetroDemandRow
		if err := rows.Scan(&row.Metro, &row.Latest, &row.ThreeMonthsAgo); err != nil {
			return nil, fmt.Errorf("scan metro-demand row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metro-demand rows: %w", err)
	}

	return out, nil
}

// RentIndex loads each ZIP's latest rent-index observation plus the
// observation a year earlier, and the metro label the source carries.
func (s *Store) RentIndex(ctx context.Context) ([]scoring.RentIndexRow, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	query := `
		WITH latest AS (
			SELECT DISTINCT ON (zip) zip, metro, month, value
			FROM rent_index
			ORDER BY zip, month DESC
		)
		SELECT l.zip, l.metro, l.value, p.value
		FROM latest l
		LEFT JOIN rent_index p
			ON p.zip = l.zip AND p.month = l.month - INTERVAL '12 months'
		ORDER BY l.zip
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query rent index: %w", err)
	}
	defer rows.Close()

	var out []scoring.RentIndexRow
	for rows.Next() {
		var row scoring.RentIndexRow
		if err := rows.Scan(&row.ZIP, &row.Metro, &row.Latest, &row.YearAgo); err != nil {
			return nil, fmt.Errorf("scan rent-index row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rent-index rows: %w", err)
	}

	return out, nil
}
