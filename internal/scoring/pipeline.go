package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Fatal run conditions. Expected per-record exclusions never surface as
// errors; these mean the run has nothing to compute against or could not
// persist its output.
var (
	// ErrNoHomeValueData aborts the run when the home-value snapshot is empty
	ErrNoHomeValueData = errors.New("no home-value rows for the requested month")
	// ErrNoFMRData aborts the run when the rent table has no rows for the year
	ErrNoFMRData = errors.New("no fair-market-rent rows for the requested year")
	// ErrNoTaxRateData aborts the run when the tax table has no rows for the vintage
	ErrNoTaxRateData = errors.New("no tax-rate rows for the requested vintage")
)

// RunOptions select the vintage and scope of one run. Zero values resolve
// to the latest generation available in each source table.
type RunOptions struct {
	RunID      string
	FMRYear    int
	ZHVIMonth  time.Time // any day within the month; truncated to the first
	ACSVintage int
	State      string // two-letter filter, empty for nationwide
	Historical bool   // derive ZHVI month and ACS vintage one year back
	DryRun     bool   // compute and report, skip the write
}

// Pipeline wires the resolver, quality gate, normalizer, scorers, and
// writer into a single-threaded batch run. Each run makes one pass over
// the sources; there is no incremental or per-ZIP entry point.
type Pipeline struct {
	reader SourceReader
	writer ScoreWriter
	params Params
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewPipeline creates a pipeline over the given reader and writer
func NewPipeline(reader SourceReader, writer ScoreWriter, params Params, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		reader: reader,
		writer: writer,
		params: params,
		logger: logger,
		tracer: noop.NewTracerProvider().Tracer("zipyield"),
		now:    time.Now,
	}
}

// SetTracer replaces the no-op tracer with a real one
func (p *Pipeline) SetTracer(tracer trace.Tracer) {
	if tracer != nil {
		p.tracer = tracer
	}
}

// SetClock overrides the wall clock; tests pin ComputedAt with this
func (p *Pipeline) SetClock(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// Run executes one scoring run. It returns the populated stats
// accumulator even on early exits so callers can always report; the
// error is non-nil only for the fatal conditions.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*RunStats, error) {
	start := time.Now()

	ctx, span := p.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	if !p.params.IsValid() {
		return nil, fmt.Errorf("invalid scoring parameters")
	}

	vintage, err := p.resolveVintage(ctx, opts)
	if err != nil {
		return nil, err
	}

	stats := NewRunStats(opts.RunID, vintage, opts.State)
	stats.DryRun = opts.DryRun

	p.logger.InfoContext(ctx, "starting scoring run",
		"fmr_year", vintage.FMRYear,
		"zhvi_month", vintage.ZHVIMonth.Format("2006-01"),
		"acs_vintage", vintage.ACSVintage,
		"state", opts.State,
		"dry_run", opts.DryRun,
	)
	span.SetAttributes(
		attribute.Int("vintage.fmr_year", vintage.FMRYear),
		attribute.String("vintage.zhvi_month", vintage.ZHVIMonth.Format("2006-01")),
		attribute.Int("vintage.acs_vintage", vintage.ACSVintage),
	)

	data, err := p.loadSources(ctx, vintage, opts.State)
	if err != nil {
		return stats, err
	}

	records := p.resolvePhase(ctx, data, stats)
	if len(records) == 0 {
		p.logger.WarnContext(ctx, "no eligible ZIPs after resolution, nothing to score",
			"zips_seen", stats.ZIPsSeen,
			"dropped_no_value", stats.DroppedNoValue,
			"dropped_no_rent", stats.DroppedNoRent,
			"dropped_no_tax", stats.DroppedNoTax,
		)
		stats.FinishedAt = time.Now().UTC()
		return stats, nil
	}

	records, err = p.scorePhases(ctx, data, records, stats)
	if err != nil {
		return stats, err
	}
	if len(records) == 0 {
		p.logger.WarnContext(ctx, "no records survived scoring, nothing to write")
		stats.FinishedAt = time.Now().UTC()
		return stats, nil
	}

	if err := p.writePhase(ctx, records, vintage, stats); err != nil {
		return stats, err
	}

	stats.FinishedAt = time.Now().UTC()
	p.logger.InfoContext(ctx, "scoring run completed",
		"duration", time.Since(start),
		"zips_seen", stats.ZIPsSeen,
		"eligible", stats.Eligible,
		"scored", stats.Scored,
		"written", stats.Written,
		"dropped_total", stats.TotalDropped(),
	)

	return stats, nil
}

// resolveVintage pins the run's input generations. Explicit options win;
// historical mode derives the ZHVI month and ACS vintage one year back
// from today; anything still unset resolves to the latest available.
func (p *Pipeline) resolveVintage(ctx context.Context, opts RunOptions) (Vintage, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.resolve_vintage")
	defer span.End()

	v := Vintage{
		FMRYear:    opts.FMRYear,
		ZHVIMonth:  opts.ZHVIMonth,
		ACSVintage: opts.ACSVintage,
	}

	if opts.Historical {
		yearAgo := p.now().AddDate(-1, 0, 0)
		if v.ZHVIMonth.IsZero() {
			v.ZHVIMonth = time.Date(yearAgo.Year(), yearAgo.Month(), 1, 0, 0, 0, 0, time.UTC)
		}
		if v.ACSVintage == 0 {
			v.ACSVintage = p.now().Year() - 1
		}
	}

	if v.FMRYear == 0 {
		year, err := p.reader.LatestFMRYear(ctx)
		if err != nil {
			return Vintage{}, fmt.Errorf("resolve latest FMR year: %w", err)
		}
		if year == 0 {
			return Vintage{}, ErrNoFMRData
		}
		v.FMRYear = year
	}

	if v.ZHVIMonth.IsZero() {
		month, err := p.reader.LatestHomeValueMonth(ctx)
		if err != nil {
			return Vintage{}, fmt.Errorf("resolve latest home-value month: %w", err)
		}
		if month.IsZero() {
			return Vintage{}, ErrNoHomeValueData
		}
		v.ZHVIMonth = month
	}
	v.ZHVIMonth = time.Date(v.ZHVIMonth.Year(), v.ZHVIMonth.Month(), 1, 0, 0, 0, 0, time.UTC)

	if v.ACSVintage == 0 {
		vintage, err := p.reader.LatestTaxVintage(ctx)
		if err != nil {
			return Vintage{}, fmt.Errorf("resolve latest tax vintage: %w", err)
		}
		if vintage == 0 {
			return Vintage{}, ErrNoTaxRateData
		}
		v.ACSVintage = vintage
	}

	return v, nil
}

// loadSources reads every snapshot for the vintage, sequentially. Empty
// mandatory tables are fatal here rather than producing an all-dropped run.
func (p *Pipeline) loadSources(ctx context.Context, vintage Vintage, state string) (*SourceData, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.load_sources")
	defer span.End()

	data := &SourceData{}
	var err error

	if data.HomeValues, err = p.reader.HomeValues(ctx, vintage.ZHVIMonth, state); err != nil {
		return nil, fmt.Errorf("load home values: %w", err)
	}
	if len(data.HomeValues) == 0 {
		return nil, ErrNoHomeValueData
	}

	if data.FMRRents, err = p.reader.FMRRents(ctx, vintage.FMRYear); err != nil {
		return nil, fmt.Errorf("load FMR rents: %w", err)
	}
	if len(data.FMRRents) == 0 {
		return nil, ErrNoFMRData
	}

	if data.TaxRates, err = p.reader.TaxRates(ctx, vintage.ACSVintage); err != nil {
		return nil, fmt.Errorf("load tax rates: %w", err)
	}
	if len(data.TaxRates) == 0 {
		return nil, ErrNoTaxRateData
	}

	if data.CountyMappings, err = p.reader.CountyMappings(ctx, state); err != nil {
		return nil, fmt.Errorf("load county mappings: %w", err)
	}
	if data.MetroMappings, err = p.reader.MetroMappings(ctx); err != nil {
		return nil, fmt.Errorf("load metro mappings: %w", err)
	}
	if data.MetroDemand, err = p.reader.MetroDemand(ctx); err != nil {
		return nil, fmt.Errorf("load metro demand index: %w", err)
	}
	if data.RentIndex, err = p.reader.RentIndex(ctx); err != nil {
		return nil, fmt.Errorf("load rent index: %w", err)
	}

	span.SetAttributes(
		attribute.Int("rows.home_values", len(data.HomeValues)),
		attribute.Int("rows.fmr_rents", len(data.FMRRents)),
		attribute.Int("rows.tax_rates", len(data.TaxRates)),
		attribute.Int("rows.county_mappings", len(data.CountyMappings)),
		attribute.Int("rows.metro_demand", len(data.MetroDemand)),
		attribute.Int("rows.rent_index", len(data.RentIndex)),
	)
	p.logger.InfoContext(ctx, "source snapshots loaded",
		"home_values", len(data.HomeValues),
		"fmr_rents", len(data.FMRRents),
		"tax_rates", len(data.TaxRates),
		"county_mappings", len(data.CountyMappings),
		"metro_mappings", len(data.MetroMappings),
		"metro_demand", len(data.MetroDemand),
		"rent_index", len(data.RentIndex),
	)

	return data, nil
}

// resolvePhase joins the snapshots into eligible records
func (p *Pipeline) resolvePhase(ctx context.Context, data *SourceData, stats *RunStats) []*GeoRecord {
	ctx, span := p.tracer.Start(ctx, "pipeline.resolve")
	defer span.End()

	records := NewResolver(data).Resolve(stats)

	span.SetAttributes(
		attribute.Int("zips_seen", stats.ZIPsSeen),
		attribute.Int("eligible", stats.Eligible),
	)
	p.logger.InfoContext(ctx, "resolution complete",
		"zips_seen", stats.ZIPsSeen,
		"eligible", stats.Eligible,
		"dropped_no_value", stats.DroppedNoValue,
		"dropped_no_rent", stats.DroppedNoRent,
		"dropped_no_tax", stats.DroppedNoTax,
	)

	return records
}

// scorePhases runs quality, normalize, yield, demand, and combine in
// order, returning the surviving records. A degenerate yield median is
// the one mid-scoring fatal.
func (p *Pipeline) scorePhases(ctx context.Context, data *SourceData, records []*GeoRecord, stats *RunStats) ([]*GeoRecord, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.score")
	defer span.End()

	records = NewQualityGate(p.params).Filter(records, stats)
	p.logger.InfoContext(ctx, "quality gate complete",
		"kept", len(records),
		"rejected_rent_bounds", stats.RejectedRentBounds,
		"rejected_tax_bounds", stats.RejectedTaxBounds,
	)
	if len(records) == 0 {
		return records, nil
	}

	NewNormalizer(p.params).Normalize(records, stats)
	p.logger.InfoContext(ctx, "normalization complete",
		"blended", stats.Blended,
		"floored", stats.Floored,
		"rent_capped", stats.RentCapped,
	)

	records, err := ComputeYields(records, p.params, stats)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("yield scoring: %w", err)
	}
	p.logger.InfoContext(ctx, "yield scoring complete",
		"kept", len(records),
		"rejected_negative_yield", stats.RejectedNegativeYield,
		"median_net_yield", stats.MedianNetYield,
		"score_capped", stats.ScoreCapped,
	)
	if len(records) == 0 {
		return records, nil
	}

	NewDemandScorer(p.params, data).Score(records, stats)
	p.logger.InfoContext(ctx, "demand scoring complete",
		"metro_direct", stats.MetroDirect,
		"metro_rent_index", stats.MetroFromRentIndex,
		"metro_county_mode", stats.MetroFromCountyMode,
		"metro_unresolved", stats.MetroUnresolved,
		"demand_defaulted", stats.DemandDefaulted,
	)

	Combine(records, p.params, stats)
	stats.Scored = len(records)

	// Capped outliers get individual log lines, top N only
	for _, o := range stats.TopOutliers(p.params.ReportTopN) {
		p.logger.WarnContext(ctx, "raw score capped",
			"zip", o.ZIP,
			"state", o.State,
			"bedrooms", o.Bedrooms,
			"raw_ratio", o.RawRatio,
			"home_value", o.HomeValue,
			"annual_rent", o.Rent,
			"annual_taxes", o.Taxes,
			"net_yield", o.NetYield,
		)
	}

	span.SetAttributes(attribute.Int("scored", stats.Scored))
	return records, nil
}

// writePhase builds, dedupes, and upserts the score rows
func (p *Pipeline) writePhase(ctx context.Context, records []*GeoRecord, vintage Vintage, stats *RunStats) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.write")
	defer span.End()

	rows := BuildScoreRecords(records, vintage, p.now().UTC())
	rows, deduped := DedupeRecords(rows)
	stats.Deduped = deduped

	if stats.DryRun {
		p.logger.InfoContext(ctx, "dry run, skipping write", "rows", len(rows))
		return nil
	}

	written, err := p.writer.UpsertScores(ctx, rows)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("write scores: %w", err)
	}
	stats.Written = written

	span.SetAttributes(attribute.Int("written", written))
	p.logger.InfoContext(ctx, "scores written",
		"rows", len(rows),
		"written", written,
		"deduped", deduped,
	)

	return nil
}

// BuildScoreRecords projects the scored records onto persisted rows, all
// stamped with the same computed-at timestamp.
func BuildScoreRecords(records []*GeoRecord, vintage Vintage, computedAt time.Time) []ScoreRecord {
	rows := make([]ScoreRecord, 0, len(records))
	for _, rec := range records {
		rows = append(rows, ScoreRecord{
			GeoType:          GeoTypeZIP,
			GeoKey:           rec.ZIP,
			State:            rec.State,
			City:             rec.City,
			CountyFIPS:       rec.CountyFIPS,
			Bedrooms:         rec.Bedrooms,
			FMRYear:          vintage.FMRYear,
			ZHVIMonth:        vintage.ZHVIMonth,
			ACSVintage:       vintage.ACSVintage,
			HomeValue:        rec.EffectiveValue,
			AnnualRent:       rec.CappedRent,
			AnnualTaxes:      rec.AnnualTaxes,
			NetYield:         rec.NetYield,
			RawScore:         rec.RawScore,
			DemandScore:      rec.DemandScore,
			DemandMultiplier: rec.DemandMultiplier,
			FinalScore:       rec.FinalScore,
			ValueBlended:     rec.ValueBlended,
			ValueFloored:     rec.ValueFloored,
			RentCapped:       rec.RentCapped,
			ScoreCapped:      rec.ScoreCapped,
			ComputedAt:       computedAt,
		})
	}
	return rows
}

// DedupeRecords drops natural-key duplicates, keeping the first
// occurrence, and returns the survivors plus the number removed.
func DedupeRecords(rows []ScoreRecord) ([]ScoreRecord, int) {
	seen := make(map[string]struct{}, len(rows))
	out := make([]ScoreRecord, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		key := row.Key()
		if _, dup := seen[key]; dup {
			dropped++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out, dropped
}
