package observability

import (
	"regexp"
	"strings"
)

var (
	rePassword = regexp.MustCompile(`(?i)(password=)([^\s;]+)`)
	reToken    = regexp.MustCompile(`(?i)(token=|bearer\s+)([A-Za-z0-9._-]+)`)
	reDSNCreds = regexp.MustCompile(`(?i)(://)([^:/@\s]+):([^@\s]+)(@)`)
	reAPIKey   = regexp.MustCompile(`(?i)(apikey=|api_key=|x-api-key:\s*)([^\s;]+)`)
	reAbsPath  = regexp.MustCompile(`(^|[\s"'(=])((?:/[\w.@-]+){2,}/?)`)
)

// Redact masks credentials and absolute filesystem paths in backend error text
// before it is logged or returned to a caller.
func Redact(s string) string {
	if s == "" {
		return s
	}
	out := s
	out = rePassword.ReplaceAllString(out, "$1***")
	out = reToken.ReplaceAllString(out, "$1***")
	out = reDSNCreds.ReplaceAllString(out, "$1*:*$4")
	out = reAPIKey.ReplaceAllString(out, "$1***")
	out = reAbsPath.ReplaceAllString(out, "$1<path>")
	for _, k := range []string{"PGPASSWORD", "NLQGATE_DB_DSN", "NLQGATE_OBJECTSTORE_SECRET_KEY"} {
		out = strings.ReplaceAll(out, k+"=", k+"=***")
	}
	return out
}
