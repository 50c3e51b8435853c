package exporter

import (
	"fmt"
	"strconv"
)

// formatMoney formats dollar amounts for CSV output with exactly 2 decimal places
func formatMoney(f float64) string {
	// Always format with exactly 2 decimal places for consistency
	// This ensures values like 36000 appear as 36000.00 in CSV
	return fmt.Sprintf("%.2f", f)
}

// formatScore formats scores, yields, and multipliers with 4 decimal places
// so repeat exports of the same run are byte-identical
func formatScore(f float64) string {
	return fmt.Sprintf("%.4f", f)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatBool formats a boolean value for CSV output
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
