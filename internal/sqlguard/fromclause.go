package sqlguard

import (
	"regexp"
	"strings"
)

const identifier = `(?:"[^"]+"|[A-Za-z_][\w$]*)(?:\.(?:"[^"]+"|[A-Za-z_][\w$]*))?`

var (
	fromKeywordPattern = regexp.MustCompile(`(?i)\bFROM\b`)
	identifierAtStart  = regexp.MustCompile(`^` + identifier)
	wordAtStart        = regexp.MustCompile(`^[A-Za-z_][\w$]*`)
	dollarQuoteStart   = regexp.MustCompile(`^\$(?:[A-Za-z_][A-Za-z_0-9]*)?\$`)
)

// fromClauseEnd lists the keywords that close a FROM clause at its own
// nesting level.
var fromClauseEnd = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true, "LIMIT": true, "HAVING": true,
	"UNION": true, "INTERSECT": true, "EXCEPT": true, "WINDOW": true,
	"OFFSET": true, "FETCH": true, "FOR": true, "RETURNING": true,
}

// Words that may sit between FROM, JOIN or a comma and the relation name.
var relationModifiers = map[string]bool{"LATERAL": true, "ONLY": true}

// Words that open a derived table instead of naming a relation.
var derivedTableStarts = map[string]bool{"SELECT": true, "VALUES": true, "WITH": true, "TABLE": true}

type parenKind int

const (
	// parenGroup wraps a relation or joined table, e.g. FROM (a CROSS JOIN b).
	parenGroup parenKind = iota
	// parenDerived wraps a subquery; its own FROM clause is scanned separately.
	parenDerived
	// parenOther wraps an expression, argument list or USING column list.
	parenOther
)

// TableReferences returns every relation named in any FROM clause of the
// query: the first entry, each comma-separated entry, each JOIN target, and
// relations nested in parenthesized joins. Quotes are stripped; qualified
// names are returned whole.
func TableReferences(query string) []string {
	var refs []string
	for _, loc := range fromKeywordPattern.FindAllStringIndex(query, -1) {
		refs = append(refs, scanFromClause(query[loc[1]:])...)
	}
	return refs
}

// scanFromClause walks one FROM clause until a clause keyword or the
// parenthesis closing the enclosing query. Subquery bodies are skipped
// because their FROM keywords are scanned on their own.
func scanFromClause(clause string) []string {
	var (
		refs       []string
		stack      []parenKind
		expectName = true
	)
	atClauseLevel := func() bool {
		return len(stack) == 0 || stack[len(stack)-1] == parenGroup
	}

	for i := 0; i < len(clause); {
		c := clause[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\'':
			if isEscapeStringPrefix(clause, i) {
				i = skipEscapeString(clause, i)
			} else {
				i = skipQuoted(clause, i, '\'')
			}
			expectName = false
		case c == '$' && dollarQuoteStart.MatchString(clause[i:]):
			i = skipDollarQuoted(clause, i)
			expectName = false
		case c == '(':
			kind := parenOther
			if expectName {
				kind = parenGroup
			}
			stack = append(stack, kind)
			i++
		case c == ')':
			if len(stack) == 0 {
				return refs
			}
			stack = stack[:len(stack)-1]
			i++
		case c == ';':
			if len(stack) == 0 {
				return refs
			}
			i++
		case c == ',':
			if atClauseLevel() {
				expectName = true
			}
			i++
		case c == '"' || isWordStart(c):
			if expectName {
				word := strings.ToUpper(wordAtStart.FindString(clause[i:]))
				switch {
				case relationModifiers[word]:
					i += len(word)
					continue
				case derivedTableStarts[word]:
					if len(stack) > 0 && stack[len(stack)-1] == parenGroup {
						stack[len(stack)-1] = parenDerived
					}
					expectName = false
					i += len(word)
					continue
				}
				name := identifierAtStart.FindString(clause[i:])
				if name == "" {
					// Unterminated quoted identifier.
					refs = append(refs, unquote(clause[i:]))
					return refs
				}
				refs = append(refs, unquote(name))
				expectName = false
				i += len(name)
				continue
			}
			if c == '"' {
				i = skipQuoted(clause, i, '"')
				continue
			}
			word := wordAtStart.FindString(clause[i:])
			if i > 0 && clause[i-1] == '.' {
				// Column or schema part of a qualified name, never a keyword.
				i += len(word)
				continue
			}
			upper := strings.ToUpper(word)
			if len(stack) == 0 && fromClauseEnd[upper] {
				return refs
			}
			if upper == "JOIN" && atClauseLevel() {
				expectName = true
			}
			i += len(word)
		default:
			expectName = false
			i++
		}
	}
	return refs
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// skipQuoted returns the index just past the quoted run starting at start.
// A doubled quote character is an escaped quote.
func skipQuoted(s string, start int, quote byte) int {
	for i := start + 1; i < len(s); i++ {
		if s[i] != quote {
			continue
		}
		if i+1 < len(s) && s[i+1] == quote {
			i++
			continue
		}
		return i + 1
	}
	return len(s)
}

// isEscapeStringPrefix reports whether the quote at i opens an E'...' string,
// where backslash escapes the next character.
func isEscapeStringPrefix(s string, i int) bool {
	if i == 0 || (s[i-1] != 'E' && s[i-1] != 'e') {
		return false
	}
	return i == 1 || !isWordChar(s[i-2])
}

func skipEscapeString(s string, start int) int {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '\'':
			if i+1 < len(s) && s[i+1] == '\'' {
				i++
				continue
			}
			return i + 1
		}
	}
	return len(s)
}

// skipDollarQuoted skips a $tag$...$tag$ string starting at start.
func skipDollarQuoted(s string, start int) int {
	tag := dollarQuoteStart.FindString(s[start:])
	body := start + len(tag)
	end := strings.Index(s[body:], tag)
	if end < 0 {
		return len(s)
	}
	return body + end + len(tag)
}

func isWordChar(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9') || c == '$'
}
