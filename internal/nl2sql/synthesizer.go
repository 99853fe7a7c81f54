package nl2sql

import (
	"strconv"
	"strings"
)

type source struct {
	table   Table
	from    string
	selects string
	orderBy string
	binds   bool
	// assetJoin brings in Assets as alias a when the intent filters on
	// asset columns. joinedSelects and joinedCount replace the projection
	// when the join can repeat rows of the source table.
	assetJoin     string
	joinedSelects string
	joinedCount   string
	joined        bool
}

// withAssetJoin binds alias a for sources that do not already, so that
// asset filters narrow the result instead of being dropped.
func (s source) withAssetJoin(intent Intent) source {
	if s.binds || s.assetJoin == "" || !hasAssetFilters(intent) {
		return s
	}
	s.from += s.assetJoin
	s.binds = true
	s.joined = true
	if s.joinedSelects != "" {
		s.selects = s.joinedSelects
	}
	return s
}

const usersAssetJoin = " JOIN Assets a ON a.AssignedToUserId = u.Id"

// selectSources are tried in priority order; the first whose tables are all
// referenced by the intent is used. Assets alone is the fallback.
var selectSources = []struct {
	needs []Table
	src   source
}{
	{
		needs: []Table{TableAssets, TableUsers},
		src: source{
			table:   TableAssets,
			selects: "a.*, u.Username, u.Email",
			from:    "Assets a LEFT JOIN Users u ON a.AssignedToUserId = u.Id",
			orderBy: "a.CreatedAt DESC",
			binds:   true,
		},
	},
	{needs: []Table{TableAssets}, src: assetsSource},
	{
		needs: []Table{TableUsers},
		src: source{
			table:         TableUsers,
			selects:       "*",
			from:          "Users u",
			orderBy:       "u.Id DESC",
			assetJoin:     usersAssetJoin,
			joinedSelects: "DISTINCT u.*",
		},
	},
	{
		needs: []Table{TableMaintenanceRecords},
		src: source{
			table:   TableMaintenanceRecords,
			selects: "mr.*, a.Name AS AssetName, a.AssetTag",
			from:    "MaintenanceRecords mr JOIN Assets a ON mr.AssetId = a.Id",
			orderBy: "mr.ScheduledDate DESC",
			binds:   true,
		},
	},
	{
		needs: []Table{TableAssetHistories},
		src: source{
			table:   TableAssetHistories,
			selects: "ah.*, a.Name AS AssetName",
			from:    "AssetHistories ah JOIN Assets a ON ah.AssetId = a.Id",
			orderBy: "ah.Timestamp DESC",
			binds:   true,
		},
	},
}

var assetsSource = source{table: TableAssets, selects: "*", from: "Assets a", orderBy: "a.CreatedAt DESC", binds: true}

// countSources mirror selectSources without the Assets+Users join.
var countSources = []source{
	{table: TableAssets, from: "Assets a", binds: true},
	{table: TableUsers, from: "Users u", assetJoin: usersAssetJoin, joinedCount: "COUNT(DISTINCT u.Id)"},
	{table: TableMaintenanceRecords, from: "MaintenanceRecords mr", assetJoin: " JOIN Assets a ON mr.AssetId = a.Id"},
	{table: TableAssetHistories, from: "AssetHistories ah", assetJoin: " JOIN Assets a ON ah.AssetId = a.Id"},
}

// Synthesize builds a parameterized statement for a DataQuery intent. It
// returns false for any other intent type.
func Synthesize(intent Intent) (Statement, bool) {
	if intent.Type != IntentDataQuery {
		return Statement{}, false
	}

	switch intent.Operation {
	case OpCount:
		return synthesizeCount(intent), true
	case OpSum, OpAvg:
		return synthesizeAggregate(intent), true
	default:
		return synthesizeSelect(intent), true
	}
}

func synthesizeSelect(intent Intent) Statement {
	src := assetsSource
	for _, candidate := range selectSources {
		if hasAll(intent.Tables, candidate.needs) {
			src = candidate.src
			break
		}
	}
	src = src.withAssetJoin(intent)

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(src.selects)
	b.WriteString(" FROM ")
	b.WriteString(src.from)
	args := writeWhere(&b, intent, src.binds)
	b.WriteString(" ORDER BY ")
	b.WriteString(src.orderBy)
	return Statement{SQL: b.String(), Args: args, Table: src.table}
}

func synthesizeCount(intent Intent) Statement {
	src := countSources[0]
	for _, candidate := range countSources {
		if intent.Tables.Has(candidate.table) {
			src = candidate
			break
		}
	}

	src = src.withAssetJoin(intent)
	count := "COUNT(*)"
	if src.joined && src.joinedCount != "" {
		count = src.joinedCount
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(count)
	b.WriteString(" FROM ")
	b.WriteString(src.from)
	args := writeWhere(&b, intent, src.binds)
	return Statement{SQL: b.String(), Args: args, Table: src.table}
}

// synthesizeAggregate always aggregates Assets.PurchasePrice.
func synthesizeAggregate(intent Intent) Statement {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(string(intent.Operation))
	b.WriteString("(a.PurchasePrice) FROM Assets a")
	args := writeWhere(&b, intent, true)
	return Statement{SQL: b.String(), Args: args, Table: TableAssets}
}

// writeWhere appends the filter predicates. Every filter targets Assets, so
// nothing is written unless alias a is bound.
func writeWhere(b *strings.Builder, intent Intent, bindsAssets bool) []any {
	if !bindsAssets || len(intent.Filters) == 0 {
		return nil
	}

	var (
		conditions []string
		args       []any
	)
	param := func(value any) string {
		args = append(args, value)
		return "$" + strconv.Itoa(len(args))
	}

	for _, key := range filterOrder {
		value, ok := intent.Filters[key]
		if !ok || value == "" {
			continue
		}
		switch key {
		case FilterBrand:
			conditions = append(conditions, "a.Brand LIKE "+param("%"+value+"%"))
		case FilterCategory:
			conditions = append(conditions, "a.Category LIKE "+param("%"+value+"%"))
		case FilterStatus:
			conditions = append(conditions, "a.Status = "+param(value))
		case FilterAssetTag:
			conditions = append(conditions, "a.AssetTag = "+param(value))
		case FilterDateRange:
			switch {
			case strings.Contains(value, "last month"):
				conditions = append(conditions, "a.CreatedAt >= NOW() - INTERVAL '1 month'")
			case strings.Contains(value, "this year"):
				conditions = append(conditions, "a.CreatedAt >= DATE_TRUNC('year', NOW())")
			}
		}
	}
	if len(conditions) == 0 {
		return nil
	}
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(conditions, " AND "))
	return args
}

func hasAll(set TableSet, tables []Table) bool {
	for _, t := range tables {
		if !set.Has(t) {
			return false
		}
	}
	return true
}

func hasAssetFilters(intent Intent) bool {
	for _, key := range filterOrder {
		if key == FilterDateRange {
			value := intent.Filters[key]
			if strings.Contains(value, "last month") || strings.Contains(value, "this year") {
				return true
			}
			continue
		}
		if _, ok := intent.Filters[key]; ok {
			return true
		}
	}
	return false
}
