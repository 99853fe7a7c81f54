package nl2sql

import (
	"regexp"
	"strings"
)

var (
	greetingPattern = regexp.MustCompile(`\b(hi|hello|hey|good morning|good afternoon)\b`)
	helpPattern     = regexp.MustCompile(`\b(help|what can you do|commands|examples)\b`)
	schemaPattern   = regexp.MustCompile(`\b(schema|structure|tables|database|describe|columns)\b`)
)

type tableRule struct {
	table   Table
	pattern *regexp.Regexp
}

var tableRules = []tableRule{
	{TableAssets, regexp.MustCompile(`\b(asset|assets|equipment)\b`)},
	{TableUsers, regexp.MustCompile(`\b(users?|person|people|employees?)\b`)},
	{TableMaintenanceRecords, regexp.MustCompile(`\b(maintenance|repairs?|service)\b`)},
	{TableAssetHistories, regexp.MustCompile(`\b(history|historical|changes)\b`)},
}

type operationRule struct {
	op      Operation
	pattern *regexp.Regexp
}

// operationRules are checked in order and a later match overwrites an
// earlier one, so AVG beats SUM beats COUNT beats SELECT.
var operationRules = []operationRule{
	{OpSelect, regexp.MustCompile(`\b(show|list|display|get|find|search)\b`)},
	{OpCount, regexp.MustCompile(`\b(count|how many|number of)\b`)},
	{OpSum, regexp.MustCompile(`\b(sum|total|add up)\b`)},
	{OpAvg, regexp.MustCompile(`\b(average|avg|mean)\b`)},
}

// FilterRule extracts one filter value. Rules with CaseSensitive set run
// against the original message; all others run against its lowercase form.
// Group 1 of Pattern is the extracted value, passed through Normalize when set.
type FilterRule struct {
	Key           FilterKey
	Pattern       *regexp.Regexp
	Priority      int
	CaseSensitive bool
	Normalize     func(string) string
}

// FilterRules is the ordered extraction table. For each key the rightmost
// match in the message wins; a tie at the same offset goes to the higher
// Priority.
var FilterRules = []FilterRule{
	{Key: FilterBrand, Pattern: regexp.MustCompile(`\b(dell|hp|lenovo|apple|microsoft|acer|asus)\b`), Priority: 1},
	{Key: FilterCategory, Pattern: regexp.MustCompile(`\b(laptop|desktop|monitor|printer|server|phone|tablet)s?\b`), Priority: 1},
	{Key: FilterStatus, Pattern: regexp.MustCompile(`\b(available|in use|maintenance|disposed)\b`), Priority: 1, Normalize: normalizeStatus},
	{Key: FilterAssetTag, Pattern: regexp.MustCompile(`\b([A-Z]+\d+|\d+[A-Z]+)\b`), Priority: 1, CaseSensitive: true},
	{Key: FilterDateRange, Pattern: regexp.MustCompile(`\b(last month|this month|last year|this year)\b`), Priority: 2},
	{Key: FilterDateRange, Pattern: regexp.MustCompile(`\b(2023|2024)\b`), Priority: 1},
}

// assetColumnFilters target columns on Assets; they imply that table when the
// message names no table at all.
var assetColumnFilters = []FilterKey{FilterBrand, FilterCategory, FilterAssetTag}

func normalizeStatus(raw string) string {
	switch raw {
	case "available":
		return "Available"
	case "in use":
		return "Assigned"
	case "maintenance":
		return "Maintenance"
	case "disposed":
		return "Retired"
	default:
		return raw
	}
}

// Classify maps free text to an Intent. It performs no I/O.
func Classify(text string) Intent {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Intent{Type: IntentUnknown}
	}
	lower := strings.ToLower(trimmed)

	switch {
	case greetingPattern.MatchString(lower):
		return Intent{Type: IntentGreeting}
	case helpPattern.MatchString(lower):
		return Intent{Type: IntentHelp}
	case schemaPattern.MatchString(lower):
		return Intent{Type: IntentSchemaInquiry}
	}

	intent := Intent{Type: IntentDataQuery, Operation: OpSelect}
	for _, rule := range tableRules {
		if rule.pattern.MatchString(lower) {
			intent.Tables = intent.Tables.With(rule.table)
		}
	}
	for _, rule := range operationRules {
		if rule.pattern.MatchString(lower) {
			intent.Operation = rule.op
		}
	}

	intent.Filters = ExtractFilters(trimmed)

	// "maintenance" names the table; it is not also a status filter.
	if intent.Tables.Has(TableMaintenanceRecords) && intent.Filters[FilterStatus] == "Maintenance" {
		delete(intent.Filters, FilterStatus)
	}
	if intent.Tables.Empty() {
		for _, key := range assetColumnFilters {
			if _, ok := intent.Filters[key]; ok {
				intent.Tables = intent.Tables.With(TableAssets)
				break
			}
		}
	}
	if len(intent.Filters) == 0 {
		intent.Filters = nil
	}
	return intent
}

type filterMatch struct {
	offset   int
	priority int
	value    string
}

// ExtractFilters applies FilterRules to text and keeps at most one value per key.
func ExtractFilters(text string) map[FilterKey]string {
	lower := strings.ToLower(text)
	best := map[FilterKey]filterMatch{}
	for _, rule := range FilterRules {
		subject := lower
		if rule.CaseSensitive {
			subject = text
		}
		for _, loc := range rule.Pattern.FindAllStringSubmatchIndex(subject, -1) {
			if len(loc) < 4 || loc[2] < 0 {
				continue
			}
			value := subject[loc[2]:loc[3]]
			if rule.Normalize != nil {
				value = rule.Normalize(value)
			}
			candidate := filterMatch{offset: loc[0], priority: rule.Priority, value: value}
			current, seen := best[rule.Key]
			if !seen || candidate.offset > current.offset ||
				(candidate.offset == current.offset && candidate.priority > current.priority) {
				best[rule.Key] = candidate
			}
		}
	}

	filters := make(map[FilterKey]string, len(best))
	for key, match := range best {
		filters[key] = match.value
	}
	return filters
}
