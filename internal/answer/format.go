// Package answer turns query results into chat sentences and text tables.
package answer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/nlqgate/nlqgate/internal/nl2sql"
	"github.com/nlqgate/nlqgate/internal/query"
)

const (
	NoResults     = "The query executed successfully but returned no results."
	summaryLimit  = 3
	countFallback = "records"
	valueFallback = "value"
)

// Format renders a successful result as a natural-language answer for the
// intent that produced it.
func Format(intent nl2sql.Intent, result query.Result) string {
	if len(result.Rows) == 0 {
		return NoResults
	}

	switch intent.Operation {
	case nl2sql.OpCount:
		count := int64(0)
		if value, ok := result.Scalar(); ok {
			if n, ok := toFloat(value); ok {
				count = int64(n)
			}
		}
		return fmt.Sprintf("There are %d %s matching your criteria.", count, entityName(intent, countFallback))
	case nl2sql.OpSum, nl2sql.OpAvg:
		label := "total"
		if intent.Operation == nl2sql.OpAvg {
			label = "average"
		}
		amount := 0.0
		if value, ok := result.Scalar(); ok {
			amount, _ = toFloat(value)
		}
		return fmt.Sprintf("The %s %s is %s.", label, entityName(intent, valueFallback), Currency(amount))
	}

	var b strings.Builder
	if result.RowCount == 1 {
		b.WriteString("Here is the record I found:\n")
		describeRecord(&b, intent, result.Rows[0])
		return strings.TrimRight(b.String(), "\n")
	}

	fmt.Fprintf(&b, "I found %d records. Here's a summary of a few:\n", result.RowCount)
	for i, row := range result.Rows {
		if i == summaryLimit {
			break
		}
		b.WriteString("-\n")
		summarizeRecord(&b, intent, row)
	}
	if result.RowCount > summaryLimit {
		fmt.Fprintf(&b, "... and %d more records. Please ask if you need more details.\n", result.RowCount-summaryLimit)
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeRecord(b *strings.Builder, intent nl2sql.Intent, row query.Row) {
	switch {
	case intent.Tables.Has(nl2sql.TableAssets):
		fmt.Fprintf(b, "It's %s with status %s located at %s.\n",
			row.String("Name", "an asset"), row.String("Status", "unknown"), row.String("Location", "unknown"))
	case intent.Tables.Has(nl2sql.TableUsers):
		fmt.Fprintf(b, "It's %s %s with email %s.\n",
			row.String("FirstName", "a user"), row.String("LastName", ""), row.String("Email", ""))
	case intent.Tables.Has(nl2sql.TableMaintenanceRecords):
		fmt.Fprintf(b, "It's a maintenance record for %s titled '%s' scheduled on %s.\n",
			row.String("AssetName", "an asset"), row.String("Title", "a maintenance record"), row.String("ScheduledDate", ""))
	case intent.Tables.Has(nl2sql.TableAssetHistories):
		fmt.Fprintf(b, "An action '%s' was performed on %s at %s.\n",
			row.String("Action", "an action"), row.String("AssetName", "an asset"), row.String("Timestamp", ""))
	default:
		for _, cell := range row {
			fmt.Fprintf(b, "- %s: %s\n", cell.Column, row.String(cell.Column, ""))
		}
	}
}

func summarizeRecord(b *strings.Builder, intent nl2sql.Intent, row query.Row) {
	switch {
	case intent.Tables.Has(nl2sql.TableAssets):
		fmt.Fprintf(b, "  %s (Status: %s)\n", row.String("Name", "an asset"), row.String("Status", "unknown"))
	case intent.Tables.Has(nl2sql.TableUsers):
		fmt.Fprintf(b, "  %s %s\n", row.String("FirstName", "a user"), row.String("LastName", ""))
	case intent.Tables.Has(nl2sql.TableMaintenanceRecords):
		fmt.Fprintf(b, "  Maintenance for %s: '%s'\n", row.String("AssetName", "an asset"), row.String("Title", "a maintenance record"))
	case intent.Tables.Has(nl2sql.TableAssetHistories):
		fmt.Fprintf(b, "  Action '%s' on %s\n", row.String("Action", "an action"), row.String("AssetName", "an asset"))
	default:
		for _, cell := range row {
			fmt.Fprintf(b, "  %s: %s\n", cell.Column, row.String(cell.Column, ""))
		}
	}
}

func entityName(intent nl2sql.Intent, fallback string) string {
	table, ok := intent.PrimaryTable()
	if !ok {
		return fallback
	}
	return strings.ToLower(string(table))
}

// Currency formats an amount as US dollars with thousands separators.
func Currency(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	if amount < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -amount)
	}
	return "$" + humanize.FormatFloat("#,###.##", amount)
}

// toFloat accepts the numeric shapes database drivers hand back, including
// NUMERIC rendered as text.
func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case int64:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case json.Number:
		f, err := typed.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(typed)), 64)
		return f, err == nil
	case fmt.Stringer:
		f, err := strconv.ParseFloat(typed.String(), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
