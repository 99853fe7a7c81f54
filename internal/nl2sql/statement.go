package nl2sql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Statement is a synthesized query. SQL comes only from fixed templates and
// every user-derived value is carried in Args as a $n placeholder.
type Statement struct {
	SQL   string `json:"sql"`
	Args  []any  `json:"args,omitempty"`
	Table Table  `json:"table"`
}

func (s Statement) Empty() bool { return strings.TrimSpace(s.SQL) == "" }

var placeholderPattern = regexp.MustCompile(`\$(\d+)`)

// Render inlines Args as SQL literals. The output is for display only and is
// never sent to the database.
func (s Statement) Render() string {
	if len(s.Args) == 0 {
		return s.SQL
	}
	return placeholderPattern.ReplaceAllStringFunc(s.SQL, func(token string) string {
		idx, err := strconv.Atoi(token[1:])
		if err != nil || idx < 1 || idx > len(s.Args) {
			return token
		}
		return literal(s.Args[idx-1])
	})
}

func literal(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case int, int32, int64, uint, uint32, uint64, float32, float64:
		return fmt.Sprint(v)
	case time.Time:
		return "'" + v.UTC().Format(time.RFC3339Nano) + "'"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(v), "'", "''") + "'"
	}
}
