// Package scoring implements the ZIP-level investment score pipeline.
//
// The pipeline joins four public housing datasets - HUD fair market
// rents, Zillow home values (ZHVI), the Zillow observed rent index
// (ZORI), and Census ACS effective property-tax rates - into a single
// 0-300 investment score per (ZIP, bedroom count), persisted as one
// versioned row per input-data generation.
//
// # Pipeline Stages
//
// A run is a single pass over the source snapshots, in a fixed order:
//
//  1. Resolution: pick the bedroom count per ZIP, resolve the county
//     FIPS, resolve rent (ZIP-level SAFMR first, county FMR fallback),
//     and attach the tax rate. ZIPs missing any input drop silently
//     into counters.
//  2. Quality gate: reject rows whose rent or tax rate falls outside
//     plausibility bounds.
//  3. Normalization: blend implausibly low home values toward the
//     county median, floor the result, and cap annual rent at a fixed
//     fraction of the home value.
//  4. Yield: net yield = (rent - taxes) / value; negative yields drop.
//     Raw score = yield / cohort median x 100, capped.
//  5. Demand: resolve each ZIP to a metro, rank metro demand signals
//     cross-sectionally, and combine them into a 0-100 demand score.
//  6. Combine: demand adjusts the raw score through a tiered
//     multiplier; the result is capped to the final 0-300 score.
//  7. Write: rows dedupe on their natural key and upsert in batches,
//     so reruns over the same vintage are idempotent.
//
// # Architecture
//
//   - types.go: source rows, the working GeoRecord, persisted ScoreRecord,
//     and the SourceReader/ScoreWriter ports
//   - policy.go: every tunable constant and the Params struct
//   - resolver.go: snapshot joining and the county FIPS strategy chain
//   - quality.go: bounds validation
//   - normalize.go: county blending, value floor, rent cap
//   - yield.go: net yield and the median-relative raw score
//   - demand.go: metro resolution cascade and percentile-ranked signals
//   - combine.go: the demand multiplier and final cap
//   - pipeline.go: orchestration, vintage resolution, phase spans
//   - stats.go: the run accumulator (drops, corrections, outliers)
//   - report.go: the operator-facing run summary
//
// # Usage Example
//
//	pipeline := scoring.NewPipeline(reader, writer, scoring.DefaultParams(), logger)
//	pipeline.SetTracer(providers.Tracer)
//
//	stats, err := pipeline.Run(ctx, scoring.RunOptions{
//	    RunID: runID,
//	    State: "TX",
//	})
//	if err != nil {
//	    return err
//	}
//	scoring.WriteRunReport(os.Stdout, stats, 10)
//
// # Scoring Formula
//
// For each eligible (ZIP, bedrooms) pair:
//
//	net yield  = (min(annual rent, 0.18 x value) - value x tax rate) / value
//	raw score  = min(yield / median yield x 100, 300)
//	demand     = 0.5 x level + 0.3 x momentum + 0.2 x pressure   (percentile ranks)
//	multiplier = 1 + 0.05 x (demand-50)/50      when demand > 50 and raw >= 100
//	           = 1.0                            when demand > 50 and raw < 100
//	           = max(0.70 + 0.20 x demand/50, 0.70)  otherwise
//	final      = min(raw x multiplier, 300)
//
// Composite demand weights renormalize over whichever signals a metro
// actually has; a metro with no signals at all gets a fixed low default
// rather than a neutral one.
//
// # Determinism
//
// Every phase iterates records in sorted ZIP order and breaks ranking
// ties by ZIP, so two runs over identical inputs produce identical rows.
// Expected data gaps increment RunStats counters instead of returning
// errors; only empty mandatory sources, a degenerate yield median, and
// write failures abort a run.
package scoring
