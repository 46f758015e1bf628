// Package extract pulls parameters (URLs, paths, SQL, weekdays, numbers)
// out of free-text task descriptions.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	urlPattern    = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"'` + "`" + `]+`)
	emailPattern  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	selectPattern = regexp.MustCompile(`(?is)\b(select|with)\b\s+.+`)
	numberPattern = regexp.MustCompile(`\d+`)
	quotedPattern = regexp.MustCompile("[\"'`]([^\"'`]+)[\"'`]")
	sqlMarker     = regexp.MustCompile(`(?i)(sql query:|query:|sql:)`)
)

// trailing characters that end a sentence rather than a token
const tokenTrim = ".,;:!?)]}>\"'`"

// Normalize trims the task text. Case is preserved.
func Normalize(task string) string {
	return strings.TrimSpace(task)
}

// ContainsAny reports whether task contains any phrase, ignoring case.
func ContainsAny(task string, phrases ...string) bool {
	lower := strings.ToLower(task)
	for _, p := range phrases {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// ContainsAll reports whether task contains every phrase, ignoring case.
func ContainsAll(task string, phrases ...string) bool {
	lower := strings.ToLower(task)
	for _, p := range phrases {
		if !strings.Contains(lower, strings.ToLower(p)) {
			return false
		}
	}
	return true
}

// URLs returns every http(s) token in order of appearance.
func URLs(task string) []string {
	raw := urlPattern.FindAllString(task, -1)
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		u = strings.TrimRight(u, tokenTrim)
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// FirstURL returns the first http(s) token or "".
func FirstURL(task string) string {
	if urls := URLs(task); len(urls) > 0 {
		return urls[0]
	}
	return ""
}

// Email returns the first e-mail address in text or "".
func Email(text string) string {
	return emailPattern.FindString(text)
}

// Files returns tokens ending in one of exts (".txt", ".json", ...), in order
// of appearance. URLs are skipped.
func Files(task string, exts ...string) []string {
	var out []string
	for _, tok := range strings.Fields(task) {
		if urlPattern.MatchString(tok) {
			continue
		}
		tok = strings.TrimLeft(tok, "([{<\"'`")
		tok = strings.TrimRight(tok, tokenTrim)
		lower := strings.ToLower(tok)
		for _, ext := range exts {
			if strings.HasSuffix(lower, strings.ToLower(ext)) && len(tok) > len(ext) {
				out = append(out, tok)
				break
			}
		}
	}
	return out
}

// File returns the n-th (0-based) file token with one of exts, or "".
func File(task string, n int, exts ...string) string {
	files := Files(task, exts...)
	if n < len(files) {
		return files[n]
	}
	return ""
}

// SQL returns the query text following the first marker phrase ("sql query:",
// "query:", "sql:"), or starting at the first SELECT/WITH keyword. Wrapping
// quotes and a trailing semicolon are removed.
func SQL(task string) string {
	q := ""
	if loc := sqlMarker.FindStringIndex(task); loc != nil {
		q = task[loc[1]:]
	}
	if strings.TrimSpace(q) == "" {
		q = selectPattern.FindString(task)
	}
	q = strings.TrimSpace(q)
	q = strings.Trim(q, "\"'`")
	q = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(q), ";"))
	return q
}

// BeforeSQL returns the text preceding the first SQL marker phrase, or task
// unchanged when there is none. Keywords inside an inline query are data,
// not instructions.
func BeforeSQL(task string) string {
	if loc := sqlMarker.FindStringIndex(task); loc != nil {
		return task[:loc[0]]
	}
	return task
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Weekday finds the first weekday name (singular or plural) in task.
func Weekday(task string) (time.Weekday, bool) {
	for _, tok := range strings.Fields(strings.ToLower(task)) {
		tok = strings.Trim(tok, tokenTrim+"(")
		tok = strings.TrimSuffix(tok, "'s")
		tok = strings.TrimSuffix(tok, "s")
		if d, ok := weekdays[tok]; ok {
			return d, true
		}
	}
	return 0, false
}

// NumberAfter returns the first integer within a few words after any keyword
// ("width 200", "quality: 60", "width of 300px").
func NumberAfter(task string, keywords ...string) (int, bool) {
	lower := strings.ToLower(task)
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		i := strings.Index(lower, kw)
		if i < 0 {
			continue
		}
		rest := lower[i+len(kw):]
		words := strings.Fields(rest)
		if len(words) > 3 {
			words = words[:3]
		}
		if m := numberPattern.FindString(strings.Join(words, " ")); m != "" {
			if n, err := strconv.Atoi(m); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// WordAfter returns the word following keyword, trimmed of punctuation.
func WordAfter(task, keyword string) string {
	words := strings.Fields(task)
	for i, w := range words {
		if strings.EqualFold(strings.Trim(w, tokenTrim), keyword) && i+1 < len(words) {
			return strings.Trim(words[i+1], tokenTrim+"\"'")
		}
	}
	return ""
}

// Quoted returns the quoted substrings of task.
func Quoted(task string) []string {
	var out []string
	for _, m := range quotedPattern.FindAllStringSubmatch(task, -1) {
		out = append(out, m[1])
	}
	return out
}
