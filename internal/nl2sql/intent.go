package nl2sql

import (
	"encoding/json"
	"fmt"
)

type IntentType string

const (
	IntentGreeting      IntentType = "Greeting"
	IntentHelp          IntentType = "Help"
	IntentSchemaInquiry IntentType = "SchemaInquiry"
	IntentDataQuery     IntentType = "DataQuery"
	IntentUnknown       IntentType = "Unknown"
)

type Operation string

const (
	OpSelect Operation = "SELECT"
	OpCount  Operation = "COUNT"
	OpSum    Operation = "SUM"
	OpAvg    Operation = "AVG"
)

// Table names a domain table the classifier can reference.
type Table string

const (
	TableAssets             Table = "Assets"
	TableUsers              Table = "Users"
	TableMaintenanceRecords Table = "MaintenanceRecords"
	TableAssetHistories     Table = "AssetHistories"
)

// canonicalTables fixes iteration order for TableSet.
var canonicalTables = []Table{TableAssets, TableUsers, TableMaintenanceRecords, TableAssetHistories}

// TableSet is a set of domain tables. Iteration follows canonicalTables, so
// the first referenced table is deterministic.
type TableSet uint8

func NewTableSet(tables ...Table) TableSet {
	var s TableSet
	for _, t := range tables {
		s = s.With(t)
	}
	return s
}

func tableBit(t Table) TableSet {
	for i, candidate := range canonicalTables {
		if candidate == t {
			return 1 << i
		}
	}
	return 0
}

func (s TableSet) With(t Table) TableSet { return s | tableBit(t) }

func (s TableSet) Has(t Table) bool {
	bit := tableBit(t)
	return bit != 0 && s&bit != 0
}

func (s TableSet) Empty() bool { return s == 0 }

func (s TableSet) Len() int {
	n := 0
	for _, t := range canonicalTables {
		if s.Has(t) {
			n++
		}
	}
	return n
}

func (s TableSet) Tables() []Table {
	out := make([]Table, 0, len(canonicalTables))
	for _, t := range canonicalTables {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s TableSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Tables())
}

func (s *TableSet) UnmarshalJSON(data []byte) error {
	var names []Table
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var out TableSet
	for _, name := range names {
		bit := tableBit(name)
		if bit == 0 {
			return fmt.Errorf("unknown table %q", name)
		}
		out |= bit
	}
	*s = out
	return nil
}

type FilterKey string

const (
	FilterBrand     FilterKey = "Brand"
	FilterCategory  FilterKey = "Category"
	FilterStatus    FilterKey = "Status"
	FilterAssetTag  FilterKey = "AssetTag"
	FilterDateRange FilterKey = "DateRange"
)

// filterOrder is the order WHERE predicates are emitted in.
var filterOrder = []FilterKey{FilterBrand, FilterCategory, FilterStatus, FilterAssetTag, FilterDateRange}

type Intent struct {
	Type      IntentType           `json:"type"`
	Tables    TableSet             `json:"tables"`
	Operation Operation            `json:"operation"`
	Filters   map[FilterKey]string `json:"filters,omitempty"`
}

// PrimaryTable returns the first referenced table in canonical order.
func (i Intent) PrimaryTable() (Table, bool) {
	tables := i.Tables.Tables()
	if len(tables) == 0 {
		return "", false
	}
	return tables[0], true
}

func (i Intent) Filter(key FilterKey) (string, bool) {
	value, ok := i.Filters[key]
	return value, ok
}
