package nl2sql

import (
	"reflect"
	"testing"
)

func TestClassifyCountLaptops(t *testing.T) {
	got := Classify("how many laptops do we have")
	want := Intent{
		Type:      IntentDataQuery,
		Tables:    NewTableSet(TableAssets),
		Operation: OpCount,
		Filters:   map[FilterKey]string{FilterCategory: "laptop"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Classify() = %#v, want %#v", got, want)
	}
}

func TestClassifyIntentTypeOrder(t *testing.T) {
	tests := []struct {
		text string
		want IntentType
	}{
		{text: "hello", want: IntentGreeting},
		{text: "Good morning!", want: IntentGreeting},
		{text: "hey, how many assets do we have?", want: IntentGreeting},
		{text: "help", want: IntentHelp},
		{text: "What can you do?", want: IntentHelp},
		{text: "show me some examples of tables", want: IntentHelp},
		{text: "What tables are in the database?", want: IntentSchemaInquiry},
		{text: "Describe the assets table", want: IntentSchemaInquiry},
		{text: "show me all assets", want: IntentDataQuery},
		{text: "something entirely different", want: IntentDataQuery},
		{text: "", want: IntentUnknown},
		{text: "   \t\n", want: IntentUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.text).Type; got != tt.want {
			t.Fatalf("Classify(%q).Type = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestClassifyNonDataIntentsCarryNothingElse(t *testing.T) {
	got := Classify("hi there, list dell laptops")
	if !reflect.DeepEqual(got, Intent{Type: IntentGreeting}) {
		t.Fatalf("Classify() = %#v", got)
	}
}

func TestClassifyTablesAreIndependent(t *testing.T) {
	got := Classify("count users and their assets")
	if got.Operation != OpCount {
		t.Fatalf("Operation = %q", got.Operation)
	}
	if got.Tables != NewTableSet(TableAssets, TableUsers) {
		t.Fatalf("Tables = %v", got.Tables.Tables())
	}

	got = Classify("list repairs and asset changes for employees")
	want := NewTableSet(TableAssets, TableUsers, TableMaintenanceRecords, TableAssetHistories)
	if got.Tables != want {
		t.Fatalf("Tables = %v", got.Tables.Tables())
	}
}

func TestClassifyOperationLaterRuleOverwrites(t *testing.T) {
	tests := []struct {
		text string
		want Operation
	}{
		{text: "show assets", want: OpSelect},
		{text: "assets", want: OpSelect},
		{text: "show the number of assets", want: OpCount},
		{text: "show the total count of assets", want: OpSum},
		{text: "list the average total of assets", want: OpAvg},
		{text: "count the mean asset price", want: OpAvg},
	}
	for _, tt := range tests {
		if got := Classify(tt.text).Operation; got != tt.want {
			t.Fatalf("Classify(%q).Operation = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestClassifyFilterLastMatchWinsPerKey(t *testing.T) {
	tests := []struct {
		text  string
		key   FilterKey
		want  string
		found bool
	}{
		{text: "compare dell and hp laptops", key: FilterBrand, want: "hp", found: true},
		{text: "show laptops and monitors", key: FilterCategory, want: "monitor", found: true},
		{text: "Show me all Dell computers", key: FilterBrand, want: "dell", found: true},
		{text: "list available equipment", key: FilterStatus, want: "Available", found: true},
		{text: "list assets in use", key: FilterStatus, want: "Assigned", found: true},
		{text: "list disposed assets", key: FilterStatus, want: "Retired", found: true},
		{text: "find asset ABC123", key: FilterAssetTag, want: "ABC123", found: true},
		{text: "find asset 42XY", key: FilterAssetTag, want: "42XY", found: true},
		{text: "find asset abc123", key: FilterAssetTag, found: false},
		{text: "assets bought last year", key: FilterDateRange, want: "last year", found: true},
		{text: "assets from 2023 or this month", key: FilterDateRange, want: "this month", found: true},
		{text: "assets from this month or 2024", key: FilterDateRange, want: "2024", found: true},
	}
	for _, tt := range tests {
		got, ok := Classify(tt.text).Filter(tt.key)
		if ok != tt.found || got != tt.want {
			t.Fatalf("Classify(%q).Filters[%s] = %q (found=%v), want %q (found=%v)", tt.text, tt.key, got, ok, tt.want, tt.found)
		}
	}
}

func TestClassifyAssetFiltersImplyAssetsOnlyWithoutTables(t *testing.T) {
	if got := Classify("list dell laptops").Tables; got != NewTableSet(TableAssets) {
		t.Fatalf("Tables = %v", got.Tables())
	}
	if got := Classify("list repairs on dell laptops").Tables; got != NewTableSet(TableMaintenanceRecords) {
		t.Fatalf("Tables = %v", got.Tables())
	}
	if got := Classify("list things").Tables; !got.Empty() {
		t.Fatalf("Tables = %v", got.Tables())
	}
}

func TestClassifyMaintenanceTableIsNotStatus(t *testing.T) {
	got := Classify("show maintenance for TAG123")
	if _, ok := got.Filter(FilterStatus); ok {
		t.Fatalf("Filters = %#v", got.Filters)
	}
	if tag, _ := got.Filter(FilterAssetTag); tag != "TAG123" {
		t.Fatalf("AssetTag = %q", tag)
	}
	if got.Tables != NewTableSet(TableMaintenanceRecords) {
		t.Fatalf("Tables = %v", got.Tables.Tables())
	}
}

func TestTableSetJSON(t *testing.T) {
	set := NewTableSet(TableAssetHistories, TableAssets)
	raw, err := set.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(raw) != `["Assets","AssetHistories"]` {
		t.Fatalf("MarshalJSON() = %s", raw)
	}
	var decoded TableSet
	if err := decoded.UnmarshalJSON(raw); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}
	if decoded != set {
		t.Fatalf("decoded = %v", decoded.Tables())
	}
	if err := decoded.UnmarshalJSON([]byte(`["Secrets"]`)); err == nil {
		t.Fatal("expected error for unknown table")
	}
}
