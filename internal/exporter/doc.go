// Package exporter writes computed investment scores to CSV for offline
// analysis.
//
// This package contains two main components:
//
// Writer: Core CSV writing functionality with support for headers, append
// mode, streaming, and UTF-8 BOM for Excel compatibility.
//
// ScoreExporter: Emits one row per scored geography and bedroom count,
// ordered and fixed-precision so repeat exports of the same run are
// byte-identical.
//
// Example usage:
//
//	// Create a score exporter rooted at the exports directory
//	scoreExporter := exporter.NewScoreExporter("exports")
//
//	// Export the rows a pipeline run produced
//	err := scoreExporter.ExportScores(rows, "scores-2026-06.csv")
package exporter
