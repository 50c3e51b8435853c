package exporter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zipyield/internal/scoring"
)

func scoreFixture(geoKey string, bedrooms int, finalScore float64) scoring.ScoreRecord {
	return scoring.ScoreRecord{
		GeoType:          "zip",
		GeoKey:           geoKey,
		State:            "TX",
		City:             "Addison",
		CountyFIPS:       "48201",
		Bedrooms:         bedrooms,
		FMRYear:          2026,
		ZHVIMonth:        time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		ACSVintage:       2024,
		HomeValue:        200000,
		AnnualRent:       36000,
		AnnualTaxes:      4000,
		NetYield:         0.16,
		RawScore:         160,
		DemandScore:      80,
		DemandMultiplier: 1.03,
		FinalScore:       finalScore,
		RentCapped:       true,
		ComputedAt:       time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
	}
}

func TestExportScores(t *testing.T) {
	tmpDir := t.TempDir()
	e := NewScoreExporter(tmpDir)

	// Deliberately unsorted input: export order must not depend on it.
	records := []scoring.ScoreRecord{
		scoreFixture("75001", 3, 164.8),
		scoreFixture("60614", 3, 120.5),
		scoreFixture("75001", 2, 150.0),
	}

	require.NoError(t, e.ExportScores(records, "scores.csv"))

	content, err := os.ReadFile(filepath.Join(tmpDir, "scores.csv"))
	require.NoError(t, err)

	text := strings.TrimPrefix(string(content), "\uFEFF")
	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 4)

	assert.Equal(t, strings.Join(scoreHeaders(), ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "zip,60614,"), "rows sort by geo key")
	assert.True(t, strings.HasPrefix(lines[2], "zip,75001,TX,Addison,48201,2,"), "ties sort by bedrooms")
	assert.Equal(t,
		"zip,75001,TX,Addison,48201,3,2026,2026-06,2024,"+
			"200000.00,36000.00,4000.00,0.1600,160.0000,80.0000,1.0300,164.8000,"+
			"false,false,true,false,2026-08-25T12:00:00Z",
		lines[3])
}

func TestExportScoresDeterministic(t *testing.T) {
	tmpDir := t.TempDir()
	e := NewScoreExporter(tmpDir)

	records := []scoring.ScoreRecord{
		scoreFixture("75002", 3, 100.0),
		scoreFixture("75001", 3, 164.8),
	}

	require.NoError(t, e.ExportScores(records, "first.csv"))
	require.NoError(t, e.ExportScores(records, "second.csv"))

	first, err := os.ReadFile(filepath.Join(tmpDir, "first.csv"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(tmpDir, "second.csv"))
	require.NoError(t, err)

	assert.Equal(t, first, second, "repeat exports are byte-identical")
}

func TestExportScoresEmpty(t *testing.T) {
	tmpDir := t.TempDir()
	e := NewScoreExporter(tmpDir)

	require.NoError(t, e.ExportScores(nil, "empty.csv"))

	content, err := os.ReadFile(filepath.Join(tmpDir, "empty.csv"))
	require.NoError(t, err)

	text := strings.TrimPrefix(string(content), "\uFEFF")
	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 1, "header only")
	assert.Equal(t, strings.Join(scoreHeaders(), ","), lines[0])
}

func TestScoreRowMatchesHeaders(t *testing.T) {
	row := scoreToCSVRow(scoreFixture("75001", 3, 164.8))
	assert.Len(t, row, len(scoreHeaders()))
}
