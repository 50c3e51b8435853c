package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zipyield/internal/scoring"
)

// The store must satisfy both pipeline ports
var (
	_ scoring.SourceReader = (*Store)(nil)
	_ scoring.ScoreWriter  = (*Store)(nil)
)

// TestChunkRecords tests batch splitting
func TestChunkRecords(t *testing.T) {
	rows := func(n int) []scoring.ScoreRecord {
		out := make([]scoring.ScoreRecord, n)
		for i := range out {
			out[i].GeoKey = string(rune('a' + i))
		}
		return out
	}

	tests := []struct {
		name          string
		count         int
		size          int
		expectedSizes []int
	}{
		{"empty", 0, 100, nil},
		{"one partial batch", 3, 100, []int{3}},
		{"exact multiple", 6, 3, []int{3, 3}},
		{"remainder batch", 7, 3, []int{3, 3, 1}},
		{"batch size one", 3, 1, []int{1, 1, 1}},
		{"non-positive size keeps one batch", 5, 0, []int{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := chunkRecords(rows(tt.count), tt.size)

			require.Len(t, chunks, len(tt.expectedSizes))
			for i, expected := range tt.expectedSizes {
				assert.Len(t, chunks[i], expected)
			}
		})
	}

	t.Run("order is preserved across chunks", func(t *testing.T) {
		chunks := chunkRecords(rows(5), 2)
		require.Len(t, chunks, 3)
		assert.Equal(t, "a", chunks[0][0].GeoKey)
		assert.Equal(t, "c", chunks[1][0].GeoKey)
		assert.Equal(t, "e", chunks[2][0].GeoKey)
	})
}

// TestUpsertScoreSQL tests the statement shape against the natural key
func TestUpsertScoreSQL(t *testing.T) {
	assert.Contains(t, upsertScoreSQL,
		"ON CONFLICT (geo_type, geo_key, bedrooms, fmr_year, zhvi_month, acs_vintage)")
	assert.Contains(t, upsertScoreSQL, "computed_at       = EXCLUDED.computed_at")
	// Key columns are never rewritten on conflict
	assert.NotContains(t, upsertScoreSQL, "geo_key           = EXCLUDED")
	assert.Equal(t, 22, strings.Count(upsertScoreSQL, "$"))
}

// TestSelectScoresSQL tests that read-back pins the vintage and matches
// the export ordering
func TestSelectScoresSQL(t *testing.T) {
	assert.Contains(t, selectScoresSQL,
		"WHERE fmr_year = $1 AND zhvi_month = $2 AND acs_vintage = $3")
	assert.Contains(t, selectScoresSQL, "($4 = '' OR state = $4)")
	assert.Contains(t, selectScoresSQL, "ORDER BY geo_key, bedrooms")
}
