// Package hud converts HUD Fair Market Rent workbooks into the canonical
// CSV the rent ingestion jobs load. Both workbook families are handled:
// county-level FY FMR schedules and ZIP-level Small Area FMR (SAFMR)
// schedules, which differ only in their geography column and header
// vocabulary. HUD publishes these files with irregular sheet names,
// multi-line headers, and the occasional malformed cell, so the parser
// locates the data sheet by its header shape and skips unusable rows
// with a warning instead of failing the whole conversion.
package hud

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Workbook kinds, detected from the header row.
const (
	KindFMR   = "fmr"   // county-level FY FMR schedule
	KindSAFMR = "safmr" // ZIP-level Small Area FMR schedule
)

// Level values in the emitted CSV, matching the fmr_rents.level vocabulary.
const (
	LevelZIP    = "zip"
	LevelCounty = "county"
)

// GeoRent is one parsed geography with its monthly rents for zero through
// four bedrooms.
type GeoRent struct {
	Level    string
	GeoKey   string // 5-digit ZIP or 5-digit state+county FIPS
	State    string
	AreaName string
	Rents    [5]float64
}

// Workbook is the parsed content of one HUD rent workbook.
type Workbook struct {
	Kind       string
	Year       int
	Sheet      string
	Rows       []GeoRent
	Skipped    int // rows dropped for unusable geo keys or malformed rents
	Duplicates int // repeat geographies, first occurrence wins
}

var (
	yearRe  = regexp.MustCompile(`(?i)fy[ _-]?(\d{2,4})`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// YearFromFilename extracts the fiscal year from HUD-style names such as
// "FY25_FMRs_revised.xlsx" or "fy2025_safmrs.xlsx". Returns 0 when the
// name carries no year.
func YearFromFilename(name string) int {
	m := yearRe.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	if n < 100 {
		n += 2000
	}
	return n
}

// ParseWorkbook reads a HUD FMR or SAFMR workbook and returns its rent
// schedule, one row per geography. The data sheet is located by header
// shape rather than by name, and the fiscal year is sniffed from the
// filename (callers override Workbook.Year when they know better).
func ParseWorkbook(path string, logger *slog.Logger) (*Workbook, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet, rows, headerRow, cols, err := findDataSheet(f)
	if err != nil {
		return nil, err
	}
	logger.Info("found rent schedule",
		slog.String("sheet", sheet),
		slog.Int("header_row", headerRow+1),
		slog.Int("total_rows", len(rows)))

	level, geoCol := LevelCounty, "fips"
	kind := KindFMR
	if _, ok := cols["zip"]; ok {
		level, geoCol = LevelZIP, "zip"
		kind = KindSAFMR
	}

	wb := &Workbook{Kind: kind, Year: YearFromFilename(path), Sheet: sheet}
	seen := make(map[string]bool)

	for i := headerRow + 1; i < len(rows); i++ {
		row := rows[i]

		geoRaw := cell(row, cols[geoCol])
		if geoRaw == "" {
			continue // merged continuation or footnote row
		}

		var geoKey string
		if level == LevelZIP {
			geoKey = normalizeZIP(geoRaw)
		} else {
			geoKey = normalizeFIPS(geoRaw)
		}
		if geoKey == "" {
			wb.Skipped++
			logger.Warn("skipping row with unusable geo key",
				slog.Int("row", i+1),
				slog.String("value", geoRaw))
			continue
		}
		if seen[geoKey] {
			wb.Duplicates++
			continue
		}

		rec := GeoRent{
			Level:    level,
			GeoKey:   geoKey,
			State:    strings.ToUpper(cell(row, colOr(cols, "state"))),
			AreaName: cell(row, colOr(cols, "area")),
		}

		ok := true
		for br := 0; br <= 4; br++ {
			raw := cell(row, cols[brKey(br)])
			v, err := parseRent(raw)
			if err != nil {
				wb.Skipped++
				logger.Warn("skipping row with malformed rent",
					slog.Int("row", i+1),
					slog.Int("bedrooms", br),
					slog.String("value", raw),
					slog.String("error", err.Error()))
				ok = false
				break
			}
			rec.Rents[br] = v
		}
		if !ok {
			continue
		}

		seen[geoKey] = true
		wb.Rows = append(wb.Rows, rec)
	}

	sort.Slice(wb.Rows, func(a, b int) bool { return wb.Rows[a].GeoKey < wb.Rows[b].GeoKey })

	logger.Info("workbook parsed",
		slog.String("kind", wb.Kind),
		slog.Int("geographies", len(wb.Rows)),
		slog.Int("skipped", wb.Skipped),
		slog.Int("duplicates", wb.Duplicates))
	return wb, nil
}

// WriteCSV emits the canonical rent schedule: a header row, then one row
// per geography ordered by geo key.
func WriteCSV(w io.Writer, wb *Workbook) error {
	cw := csv.NewWriter(w)
	header := []string{"year", "level", "geo_key", "state", "area_name",
		"fmr_0", "fmr_1", "fmr_2", "fmr_3", "fmr_4"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range wb.Rows {
		rec := []string{strconv.Itoa(wb.Year), r.Level, r.GeoKey, r.State, r.AreaName}
		for _, v := range r.Rents {
			rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row for %s: %w", r.GeoKey, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// findDataSheet locates the sheet holding the rent schedule. Common HUD
// sheet names are tried first, then every sheet is scanned for a header
// row that maps a geography column plus all five bedroom columns.
func findDataSheet(f *excelize.File) (string, [][]string, int, map[string]int, error) {
	possibleNames := []string{"SAFMRs", "FMRs", "FMR", "Data"}
	for _, name := range possibleNames {
		if rows, err := f.GetRows(name); err == nil {
			if h, cols := findHeader(rows); h >= 0 {
				return name, rows, h, cols, nil
			}
		}
	}

	for _, name := range f.GetSheetList() {
		if rows, err := f.GetRows(name); err == nil {
			if h, cols := findHeader(rows); h >= 0 {
				return name, rows, h, cols, nil
			}
		}
	}

	return "", nil, -1, nil, fmt.Errorf("no sheet with FMR header columns found")
}

// findHeader scans the first rows for one whose cells map a complete
// column set. HUD puts titles and revision notes above the header in some
// vintages, so the header is rarely row one.
func findHeader(rows [][]string) (int, map[string]int) {
	limit := len(rows)
	if limit > 15 {
		limit = 15
	}
	for i := 0; i < limit; i++ {
		cols := mapColumns(rows[i])
		if colsComplete(cols) {
			return i, cols
		}
	}
	return -1, nil
}

// mapColumns maps header text to column positions. Header spellings vary
// by vintage (fmr_0 vs fmr0, "ZIP Code" with embedded newlines, numeric
// state code alongside state_alpha), so matching runs on normalized text.
func mapColumns(row []string) map[string]int {
	cols := make(map[string]int)
	for j, raw := range row {
		h := normalizeHeader(raw)
		if h == "" {
			continue
		}

		if br := bedroomColumn(h); br >= 0 {
			if _, ok := cols[brKey(br)]; !ok {
				cols[brKey(br)] = j
			}
			continue
		}

		switch {
		case h == "zip" || h == "zip code" || h == "zip_code" || h == "zcta":
			if _, ok := cols["zip"]; !ok {
				cols["zip"] = j
			}
		case h == "fips" || h == "fips code" || h == "fips_code" || strings.HasPrefix(h, "fips20"):
			if _, ok := cols["fips"]; !ok {
				cols["fips"] = j
			}
		case h == "state_alpha" || h == "state alpha" || h == "stusps":
			cols["state"] = j // preferred over the numeric state code
		case h == "state" || h == "state code":
			if _, ok := cols["state"]; !ok {
				cols["state"] = j
			}
		case h == "countyname" || h == "county name" || h == "county" ||
			h == "areaname" || h == "hud area name" ||
			strings.Contains(h, "fair market rent area name"):
			if _, ok := cols["area"]; !ok {
				cols["area"] = j
			}
		}
	}
	return cols
}

// colsComplete reports whether a mapping carries a geography column and
// all five bedroom columns.
func colsComplete(cols map[string]int) bool {
	_, hasZIP := cols["zip"]
	_, hasFIPS := cols["fips"]
	if !hasZIP && !hasFIPS {
		return false
	}
	for br := 0; br <= 4; br++ {
		if _, ok := cols[brKey(br)]; !ok {
			return false
		}
	}
	return true
}

// bedroomColumn reports which bedroom count a header names, or -1. The
// 90%/110% payment-standard columns in SAFMR files are not rents and
// never match.
func bedroomColumn(h string) int {
	if strings.Contains(h, "payment standard") {
		return -1
	}
	for br := 0; br <= 4; br++ {
		d := strconv.Itoa(br)
		switch h {
		case "fmr_" + d, "fmr" + d, "fmr " + d,
			"safmr " + d + "br", "safmr_" + d + "br", "safmr" + d + "br",
			d + "br", d + " br", "br" + d:
			return br
		}
	}
	return -1
}

func brKey(br int) string {
	return "fmr_" + strconv.Itoa(br)
}

// normalizeZIP cleans a ZIP cell: Excel float artifacts stripped, left
// zero-padding restored. Non-numeric or overlong values are unusable.
func normalizeZIP(s string) string {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".0")
	if s == "" || !allDigits(s) || len(s) > 5 {
		return ""
	}
	return pad(s, 5)
}

// normalizeFIPS reduces a HUD FIPS cell to the 5-digit state+county code.
// HUD county codes are 10 digits (state, county, then a 99999 or town
// subdivision suffix); Excel drops leading zeros, leaving 9 or 4 digits.
func normalizeFIPS(s string) string {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".0")
	if s == "" || !allDigits(s) {
		return ""
	}
	switch len(s) {
	case 10:
		return s[:5]
	case 9:
		return pad(s, 10)[:5]
	case 5:
		return s
	case 4:
		return pad(s, 5)
	}
	return ""
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func pad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(spaceRe.ReplaceAllString(s, " ")))
}

func parseRent(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, ",", ""), "$", ""))
	if s == "" {
		return 0, fmt.Errorf("empty cell")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative rent %g", v)
	}
	return v, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func colOr(cols map[string]int, key string) int {
	if idx, ok := cols[key]; ok {
		return idx
	}
	return -1
}
