package sqlguard

import (
	"regexp"
	"strings"
)

var deniedKeywords = []string{
	"DROP", "DELETE", "INSERT", "UPDATE", "ALTER", "CREATE", "EXEC", "EXECUTE",
	"SP_", "XP_", "OPENROWSET", "OPENDATASOURCE", "BULK", "SHUTDOWN", "RESTORE",
}

var deniedWordPattern = regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|CREATE|EXEC|EXECUTE|OPENROWSET|OPENDATASOURCE|BULK|SHUTDOWN|RESTORE)\b|\b(SP|XP)_`)

type namedPattern struct {
	name    string
	pattern *regexp.Regexp
}

var suspiciousPatterns = []namedPattern{
	{"comment after statement terminator", regexp.MustCompile(`;\s*--`)},
	{"block comment after statement terminator", regexp.MustCompile(`;\s*/\*`)},
	{"stacked statement", regexp.MustCompile(`;\s*\S`)},
	{"UNION SELECT", regexp.MustCompile(`(?i)\bUNION\s+(ALL\s+)?SELECT\b`)},
	{"@@VERSION", regexp.MustCompile(`(?i)@@VERSION`)},
	{"@@SERVERNAME", regexp.MustCompile(`(?i)@@SERVERNAME`)},
	{"system catalog sys.", regexp.MustCompile(`(?i)\bSYS\.`)},
	{"system catalog master.", regexp.MustCompile(`(?i)\bMASTER\.`)},
	{"system catalog msdb.", regexp.MustCompile(`(?i)\bMSDB\.`)},
	{"system catalog tempdb.", regexp.MustCompile(`(?i)\bTEMPDB\.`)},
	{"system catalog pg_catalog.", regexp.MustCompile(`(?i)\bPG_CATALOG\.`)},
	{"line comment", regexp.MustCompile(`--`)},
	{"block comment", regexp.MustCompile(`(?s)/\*.*\*/`)},
	{"WAITFOR DELAY", regexp.MustCompile(`(?i)\bWAITFOR\s+DELAY\b`)},
	{"BENCHMARK(", regexp.MustCompile(`(?i)\bBENCHMARK\s*\(`)},
	{"SLEEP(", regexp.MustCompile(`(?i)\bSLEEP\s*\(`)},
	{"PG_SLEEP(", regexp.MustCompile(`(?i)\bPG_SLEEP\s*\(`)},
}

var informationSchemaPattern = regexp.MustCompile(`(?i)\bINFORMATION_SCHEMA\.("?)(\w+)`)

var injectionPatterns = []namedPattern{
	{"OR '1'='1 tautology", regexp.MustCompile(`(?i)'\s*OR\s+'1'\s*=\s*'1`)},
	{"OR 1=1 tautology", regexp.MustCompile(`(?i)'\s*OR\s+1\s*=\s*1`)},
	{"quoted UNION SELECT", regexp.MustCompile(`(?i)'\s*UNION\s+SELECT`)},
	{"stacked DROP TABLE", regexp.MustCompile(`(?i)'\s*;\s*DROP\s+TABLE`)},
	{"stacked DELETE FROM", regexp.MustCompile(`(?i)'\s*;\s*DELETE\s+FROM`)},
	{"stacked INSERT INTO", regexp.MustCompile(`(?i)'\s*;\s*INSERT\s+INTO`)},
	{"stacked UPDATE", regexp.MustCompile(`(?i)'\s*;\s*UPDATE\s+`)},
	{"CHAR(n)", regexp.MustCompile(`(?i)\bCHAR\s*\(\s*\d+\s*\)`)},
	{"ASCII(", regexp.MustCompile(`(?i)\bASCII\s*\(`)},
	{"SUBSTRING(", regexp.MustCompile(`(?i)\bSUBSTRING\s*\(`)},
	{"CONVERT(", regexp.MustCompile(`(?i)\bCONVERT\s*\(`)},
	{"CAST(", regexp.MustCompile(`(?i)\bCAST\s*\(`)},
	{"EXEC(", regexp.MustCompile(`(?i)\bEXEC\s*\(`)},
	{"SP_EXECUTESQL", regexp.MustCompile(`(?i)SP_EXECUTESQL`)},
}

func CheckNonEmptyQuery(query string) Verdict {
	if strings.TrimSpace(query) == "" {
		return reject(CheckNonEmpty, "query is empty")
	}
	return admit()
}

// CheckDenylistSubstrings rejects any query containing a forbidden keyword
// anywhere in its text.
func CheckDenylistSubstrings(query string) Verdict {
	upper := strings.ToUpper(query)
	for _, keyword := range deniedKeywords {
		if strings.Contains(upper, keyword) {
			return reject(CheckDenylist, "query contains forbidden keyword "+keyword)
		}
	}
	return admit()
}

// CheckDenylistWords rejects forbidden keywords that appear as whole words.
func CheckDenylistWords(query string) Verdict {
	if match := deniedWordPattern.FindString(query); match != "" {
		return reject(CheckDenylist, "query contains forbidden keyword "+strings.ToUpper(match))
	}
	return admit()
}

func CheckSelectShape(query string) Verdict {
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
		return reject(CheckShape, "only SELECT statements are allowed")
	}
	return admit()
}

func CheckTableAllowlist(query string) Verdict {
	for _, name := range TableReferences(query) {
		if !isAllowedTable(name) {
			return reject(CheckAllowlist, "query references unauthorized table "+name)
		}
	}
	return admit()
}

func unquote(name string) string {
	return strings.ReplaceAll(name, `"`, "")
}

func CheckSuspiciousConstructs(query string) Verdict {
	for _, p := range suspiciousPatterns {
		if p.pattern.MatchString(query) {
			return reject(CheckSuspicious, "query contains suspicious construct: "+p.name)
		}
	}
	for _, m := range informationSchemaPattern.FindAllStringSubmatch(query, -1) {
		view := strings.ToUpper(m[2])
		if view != "TABLES" && view != "COLUMNS" {
			return reject(CheckSuspicious, "query contains suspicious construct: restricted information_schema."+strings.ToLower(view))
		}
	}
	return admit()
}

func CheckInjectionHeuristics(query string) Verdict {
	for _, p := range injectionPatterns {
		if p.pattern.MatchString(query) {
			return reject(CheckInjection, "query matches injection pattern: "+p.name)
		}
	}
	return admit()
}
