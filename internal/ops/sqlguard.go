package ops

import (
	"fmt"
	"regexp"
	"strings"
)

// sqlRule rejects a class of statements that would modify a database.
type sqlRule struct {
	Regex  *regexp.Regexp
	Reason string
}

var sqlRules = []sqlRule{
	{
		Regex:  regexp.MustCompile(`(?i)\b(insert|update|delete|upsert|merge)\b|\breplace\s+into\b`),
		Reason: "statement modifies rows",
	},
	{
		Regex:  regexp.MustCompile(`(?i)\b(drop|alter|create|truncate|rename)\b`),
		Reason: "statement changes the schema",
	},
	{
		Regex:  regexp.MustCompile(`(?i)\b(attach|detach)\b`),
		Reason: "attaching databases is not allowed",
	},
	{
		Regex:  regexp.MustCompile(`(?i)\b(pragma|vacuum|reindex|analyze)\b`),
		Reason: "maintenance statements are not allowed",
	},
	{
		Regex:  regexp.MustCompile(`(?i)\bload_extension\b`),
		Reason: "loading extensions is not allowed",
	},
}

var (
	readStatement = regexp.MustCompile(`(?is)^\s*(select|with)\b`)
	// quoted strings, quoted identifiers and comments; an unterminated quote
	// is left in place.
	sqlOpaque = regexp.MustCompile(`'(?:[^']|'')*'|"(?:[^"]|"")*"|--[^\n]*|/\*[\s\S]*?\*/`)
)

// checkReadOnly accepts a single SELECT (or WITH ... SELECT) statement.
// Literals, quoted identifiers and comments are blanked before the rules
// run.
func checkReadOnly(query string) error {
	q := sqlOpaque.ReplaceAllStringFunc(query, func(m string) string {
		if m[0] == '-' || m[0] == '/' {
			return " "
		}
		return " ? "
	})
	q = strings.TrimSpace(q)
	q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	if q == "" {
		return fmt.Errorf("sql: empty query")
	}
	if strings.Contains(q, ";") {
		return fmt.Errorf("sql: multiple statements are not allowed")
	}
	if !readStatement.MatchString(q) {
		return fmt.Errorf("sql: only SELECT queries are allowed")
	}
	for _, r := range sqlRules {
		if r.Regex.MatchString(q) {
			return fmt.Errorf("sql: %s", r.Reason)
		}
	}
	return nil
}
