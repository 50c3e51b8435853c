package exporter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriter(t *testing.T) {
	writer := NewWriter("/base")

	assert.NotNil(t, writer)
	assert.Equal(t, "/base", writer.baseDir)
}

func TestWriterWriteCSV(t *testing.T) {
	tests := []struct {
		name        string
		filePath    string
		options     WriteOptions
		validate    func(t *testing.T, filePath string)
		expectError bool
	}{
		{
			name:     "basic write with headers",
			filePath: "test_basic.csv",
			options: WriteOptions{
				Headers: []string{"geo_key", "bedrooms", "final_score"},
				Records: [][]string{
					{"75001", "3", "135.4667"},
					{"75002", "3", "100.3333"},
				},
			},
			validate: func(t *testing.T, filePath string) {
				content, err := os.ReadFile(filePath)
				require.NoError(t, err)

				lines := strings.Split(strings.TrimSpace(string(content)), "\n")
				assert.Len(t, lines, 3) // header + 2 records
				assert.Equal(t, "geo_key,bedrooms,final_score", lines[0])
				assert.Equal(t, "75001,3,135.4667", lines[1])
				assert.Equal(t, "75002,3,100.3333", lines[2])
			},
		},
		{
			name:     "write with BOM prefix",
			filePath: "test_bom.csv",
			options: WriteOptions{
				Headers:   []string{"geo_key", "final_score"},
				Records:   [][]string{{"75001", "135.4667"}},
				BOMPrefix: true,
			},
			validate: func(t *testing.T, filePath string) {
				content, err := os.ReadFile(filePath)
				require.NoError(t, err)

				assert.True(t, bytes.HasPrefix(content, []byte{0xEF, 0xBB, 0xBF}))

				lines := strings.Split(strings.TrimSpace(string(content[3:])), "\n")
				assert.Equal(t, "geo_key,final_score", lines[0])
			},
		},
		{
			name:     "fields with commas are quoted",
			filePath: "test_quoted.csv",
			options: WriteOptions{
				Headers: []string{"geo_key", "area_name"},
				Records: [][]string{{"48201", "Houston, TX"}},
			},
			validate: func(t *testing.T, filePath string) {
				content, err := os.ReadFile(filePath)
				require.NoError(t, err)
				assert.Contains(t, string(content), `48201,"Houston, TX"`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			writer := NewWriter(tmpDir)

			err := writer.WriteCSV(tt.filePath, tt.options)

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, filepath.Join(tmpDir, tt.filePath))
		})
	}
}

func TestWriterAppend(t *testing.T) {
	tmpDir := t.TempDir()
	writer := NewWriter(tmpDir)

	require.NoError(t, writer.WriteSimpleCSV("scores.csv",
		[]string{"geo_key", "final_score"},
		[][]string{{"75001", "135.4667"}}))

	// Appending must not repeat the header
	require.NoError(t, writer.WriteCSV("scores.csv", WriteOptions{
		Headers: []string{"geo_key", "final_score"},
		Records: [][]string{{"75002", "100.3333"}},
		Append:  true,
	}))

	content, err := os.ReadFile(filepath.Join(tmpDir, "scores.csv"))
	require.NoError(t, err)

	text := strings.TrimPrefix(string(content), "\uFEFF")
	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "geo_key,final_score", lines[0])
	assert.Equal(t, "75002,100.3333", lines[2])
}

func TestWriterStream(t *testing.T) {
	tmpDir := t.TempDir()
	writer := NewWriter(tmpDir)

	stream, err := writer.CreateStreamWriter("streamed.csv", []string{"geo_key", "final_score"})
	require.NoError(t, err)

	require.NoError(t, stream.WriteRecord([]string{"75001", "135.4667"}))
	require.NoError(t, stream.WriteRecord([]string{"75002", "100.3333"}))
	require.NoError(t, stream.Close())

	content, err := os.ReadFile(filepath.Join(tmpDir, "streamed.csv"))
	require.NoError(t, err)

	text := strings.TrimPrefix(string(content), "\uFEFF")
	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "75001,135.4667", lines[1])
}

func TestWriterResolvePath(t *testing.T) {
	tests := []struct {
		name     string
		baseDir  string
		filePath string
		expected string
	}{
		{
			name:     "relative path joins base",
			baseDir:  "/exports",
			filePath: "scores.csv",
			expected: filepath.Join("/exports", "scores.csv"),
		},
		{
			name:     "absolute path untouched",
			baseDir:  "/exports",
			filePath: "/tmp/scores.csv",
			expected: "/tmp/scores.csv",
		},
		{
			name:     "empty base leaves path alone",
			baseDir:  "",
			filePath: "out/scores.csv",
			expected: "out/scores.csv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := NewWriter(tt.baseDir)
			assert.Equal(t, tt.expected, writer.resolvePath(tt.filePath))
		})
	}
}
