package answer

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/nlqgate/nlqgate/internal/nl2sql"
	"github.com/nlqgate/nlqgate/internal/query"
)

func rows(values ...query.Row) query.Result {
	return query.Result{Successful: true, Rows: values, RowCount: len(values)}
}

func intent(op nl2sql.Operation, tables ...nl2sql.Table) nl2sql.Intent {
	return nl2sql.Intent{Type: nl2sql.IntentDataQuery, Operation: op, Tables: nl2sql.NewTableSet(tables...)}
}

func TestFormatEmptyResult(t *testing.T) {
	got := Format(intent(nl2sql.OpSelect, nl2sql.TableAssets), rows())
	if got != NoResults {
		t.Fatalf("Format() = %q", got)
	}
}

func TestFormatCount(t *testing.T) {
	cases := []struct {
		name   string
		intent nl2sql.Intent
		value  any
		want   string
	}{
		{name: "assets", intent: intent(nl2sql.OpCount, nl2sql.TableAssets), value: int64(2), want: "There are 2 assets matching your criteria."},
		{name: "first table in canonical order", intent: intent(nl2sql.OpCount, nl2sql.TableMaintenanceRecords, nl2sql.TableUsers), value: int64(7), want: "There are 7 users matching your criteria."},
		{name: "no table", intent: intent(nl2sql.OpCount), value: json.Number("4"), want: "There are 4 records matching your criteria."},
		{name: "unparseable", intent: intent(nl2sql.OpCount, nl2sql.TableAssets), value: nil, want: "There are 0 assets matching your criteria."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Format(tc.intent, rows(query.Row{{Column: "count", Value: tc.value}}))
			if got != tc.want {
				t.Fatalf("Format() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFormatSumAndAverage(t *testing.T) {
	got := Format(intent(nl2sql.OpSum, nl2sql.TableAssets), rows(query.Row{{Column: "sum", Value: "1234.5"}}))
	if got != "The total assets is $1,234.50." {
		t.Fatalf("Format(sum) = %q", got)
	}
	got = Format(intent(nl2sql.OpAvg), rows(query.Row{{Column: "avg", Value: 400.0}}))
	if got != "The average value is $400.00." {
		t.Fatalf("Format(avg) = %q", got)
	}
}

func TestFormatSingleRecordSentences(t *testing.T) {
	cases := []struct {
		name   string
		intent nl2sql.Intent
		row    query.Row
		want   string
	}{
		{
			name:   "asset",
			intent: intent(nl2sql.OpSelect, nl2sql.TableAssets),
			row:    query.Row{{Column: "name", Value: "XPS 13"}, {Column: "status", Value: "Assigned"}, {Column: "location", Value: nil}},
			want:   "Here is the record I found:\nIt's XPS 13 with status Assigned located at unknown.",
		},
		{
			name:   "user",
			intent: intent(nl2sql.OpSelect, nl2sql.TableUsers),
			row:    query.Row{{Column: "FirstName", Value: "Jane"}, {Column: "LastName", Value: "Doe"}, {Column: "Email", Value: "jdoe@example.com"}},
			want:   "Here is the record I found:\nIt's Jane Doe with email jdoe@example.com.",
		},
		{
			name:   "maintenance",
			intent: intent(nl2sql.OpSelect, nl2sql.TableMaintenanceRecords),
			row:    query.Row{{Column: "title", Value: "Battery swap"}, {Column: "assetname", Value: "XPS 13"}, {Column: "scheduleddate", Value: "2024-05-01"}},
			want:   "Here is the record I found:\nIt's a maintenance record for XPS 13 titled 'Battery swap' scheduled on 2024-05-01.",
		},
		{
			name:   "history",
			intent: intent(nl2sql.OpSelect, nl2sql.TableAssetHistories),
			row:    query.Row{{Column: "action", Value: "Assigned"}, {Column: "assetname", Value: "XPS 13"}, {Column: "timestamp", Value: "2024-05-01 10:00:00"}},
			want:   "Here is the record I found:\nAn action 'Assigned' was performed on XPS 13 at 2024-05-01 10:00:00.",
		},
		{
			name:   "generic",
			intent: intent(nl2sql.OpSelect),
			row:    query.Row{{Column: "id", Value: int64(9)}, {Column: "note", Value: nil}},
			want:   "Here is the record I found:\n- id: 9\n- note: ",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Format(tc.intent, rows(tc.row)); got != tc.want {
				t.Fatalf("Format() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFormatSummarizesFirstThreeRecords(t *testing.T) {
	result := rows(
		query.Row{{Column: "Name", Value: "A"}, {Column: "Status", Value: "Available"}},
		query.Row{{Column: "Name", Value: "B"}, {Column: "Status", Value: "Assigned"}},
		query.Row{{Column: "Name", Value: "C"}, {Column: "Status", Value: "Retired"}},
		query.Row{{Column: "Name", Value: "D"}, {Column: "Status", Value: "Available"}},
		query.Row{{Column: "Name", Value: "E"}, {Column: "Status", Value: "Available"}},
	)
	got := Format(intent(nl2sql.OpSelect, nl2sql.TableAssets), result)
	want := strings.Join([]string{
		"I found 5 records. Here's a summary of a few:",
		"-", "  A (Status: Available)",
		"-", "  B (Status: Assigned)",
		"-", "  C (Status: Retired)",
		"... and 2 more records. Please ask if you need more details.",
	}, "\n")
	if got != want {
		t.Fatalf("Format() =\n%s\nwant\n%s", got, want)
	}
}

func TestFormatTwoRecordsHasNoTrailer(t *testing.T) {
	result := rows(
		query.Row{{Column: "Action", Value: "Assigned"}, {Column: "AssetName", Value: "XPS"}},
		query.Row{{Column: "Action", Value: "Returned"}, {Column: "AssetName", Value: "XPS"}},
	)
	got := Format(intent(nl2sql.OpSelect, nl2sql.TableAssetHistories), result)
	if strings.Contains(got, "more records") || !strings.Contains(got, "  Action 'Returned' on XPS") {
		t.Fatalf("Format() = %q", got)
	}
}

func TestShortenLongCells(t *testing.T) {
	if got := shorten("Dell Latitude 7440 Laptop"); got != "Dell Latitud..." {
		t.Fatalf("shorten() = %q", got)
	}
	if got := shorten("short"); got != "short" {
		t.Fatalf("shorten(short) = %q", got)
	}
}

func TestCurrency(t *testing.T) {
	cases := map[float64]string{
		0:          "$0.00",
		1234.5:     "$1,234.50",
		1000000:    "$1,000,000.00",
		-42.5:      "-$42.50",
		0.004:      "$0.00",
		99.999:     "$100.00",
		1500.00001: "$1,500.00",
	}
	for amount, want := range cases {
		if got := Currency(amount); got != want {
			t.Fatalf("Currency(%v) = %q, want %q", amount, got, want)
		}
	}
}

func TestRenderTable(t *testing.T) {
	result := query.Result{
		Successful: true,
		Columns:    []string{"Id", "Name", "Location"},
		Rows: []query.Row{
			{{Column: "Id", Value: int64(1)}, {Column: "Name", Value: "ThinkPad"}, {Column: "Location", Value: nil}},
			{{Column: "Id", Value: int64(2)}, {Column: "Name", Value: "XPS"}, {Column: "Location", Value: "HQ"}},
			{{Column: "Id", Value: int64(3)}, {Column: "Name", Value: "UltraSharp"}, {Column: "Location", Value: "HQ"}},
		},
		RowCount: 3,
	}

	var buf bytes.Buffer
	if err := RenderTable(&buf, result, 2); err != nil {
		t.Fatalf("RenderTable() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Query returned 3 rows:", "ID", "ThinkPad", "NULL", "XPS", "... and 1 more rows"} {
		if !strings.Contains(strings.ToUpper(out), strings.ToUpper(want)) {
			t.Fatalf("RenderTable() missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "UltraSharp") {
		t.Fatalf("RenderTable() ignored maxRows:\n%s", out)
	}

	buf.Reset()
	_ = RenderTable(&buf, query.Result{Successful: true, Rows: []query.Row{}}, 0)
	if buf.String() != "No results found.\n" {
		t.Fatalf("RenderTable(empty) = %q", buf.String())
	}

	buf.Reset()
	_ = RenderTable(&buf, query.Result{Error: "Query validation failed: nope"}, 0)
	if buf.String() != "Query failed: Query validation failed: nope\n" {
		t.Fatalf("RenderTable(failed) = %q", buf.String())
	}
}
