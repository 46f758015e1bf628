package ops

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/mail"
	"net/url"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/extract"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/operation"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/pathguard"
)

// DefaultDatagenURL is the generator script used when none is configured.
const DefaultDatagenURL = "https://raw.githubusercontent.com/sanand0/tools-in-data-science-public/tds-2025-01/project-1/datagen.py"

func (o *ops) runDatagen(ctx context.Context, p operation.Params) (string, error) {
	script := p.Get("url", o.DatagenURL)
	if script == "" {
		script = DefaultDatagenURL
	}
	email := p.Get("email", o.UserEmail)
	if email == "" {
		return "", errors.New("datagen: no email in task and none configured")
	}
	if _, err := o.Runner.LookPath("uv"); err != nil {
		return "", fmt.Errorf("datagen: uv not installed: %w", err)
	}

	root := o.Guard.Root()
	out, err := o.Runner.Run(ctx, root, "uv", "run", script, email, "--root", root)
	if err != nil {
		return "", fmt.Errorf("datagen: %w", err)
	}
	o.log.FromContext(ctx).Debug("datagen_output", map[string]any{"bytes": len(out)})
	return fmt.Sprintf("Generated data in %s using %s", root, path.Base(script)), nil
}

func (o *ops) formatMarkdown(ctx context.Context, p operation.Params) (string, error) {
	file := LocalPath(p.Get("file", "format.md"))
	target, err := o.Guard.Resolve(file)
	if err != nil {
		return "", err
	}
	if ok, err := o.Guard.Exists(file); err != nil || !ok {
		return "", operation.Errorf(operation.KindNotFound, file, "nothing to format")
	}
	if _, err := o.Runner.Run(ctx, o.Guard.Root(), "npx", "prettier@3.4.2", "--write", string(target)); err != nil {
		return "", fmt.Errorf("prettier: %w", err)
	}
	return "Formatted " + o.Guard.Rel(target), nil
}

// dateLayouts are the formats accepted in weekday input files.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	time.RFC3339,
	"02-Jan-2006",
	"02 Jan 2006",
	"Jan 02, 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Mon, 02 Jan 2006",
	"Monday, January 2, 2006",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (o *ops) countWeekdays(ctx context.Context, p operation.Params) (string, error) {
	day := time.Wednesday
	if d, ok := extract.Weekday(p.Get("weekday", "")); ok {
		day = d
	}
	input := LocalPath(p.Get("input", "dates.txt"))
	output := LocalPath(p.Get("output", "dates-"+strings.ToLower(day.String())+"s.txt"))

	f, err := o.Guard.Open(input)
	if err != nil {
		return "", err
	}
	defer f.Close()

	count, skipped := 0, 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		t, ok := parseDate(line)
		if !ok {
			skipped++
			continue
		}
		if t.Weekday() == day {
			count++
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read %s: %w", input, err)
	}
	if skipped > 0 {
		o.log.FromContext(ctx).Warn("unparsed_dates", map[string]any{"file": input, "lines": skipped}, nil)
	}

	result := strconv.Itoa(count)
	if _, err := o.Guard.WriteFile(output, []byte(result), pathguard.Overwrite); err != nil {
		return "", err
	}
	return result, nil
}

type contactKey struct {
	LastName  string `json:"last_name"`
	FirstName string `json:"first_name"`
}

func (o *ops) sortContacts(ctx context.Context, p operation.Params) (string, error) {
	input := LocalPath(p.Get("input", "contacts.json"))
	output := LocalPath(p.Get("output", "contacts-sorted.json"))

	data, err := o.Guard.ReadFile(input)
	if err != nil {
		return "", err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", fmt.Errorf("parse %s: %w", input, err)
	}
	keys := make([]contactKey, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &keys[i]); err != nil {
			return "", fmt.Errorf("parse %s: contact %d: %w", input, i, err)
		}
	}

	idx := make([]int, len(raw))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		if ka.LastName != kb.LastName {
			return ka.LastName < kb.LastName
		}
		return ka.FirstName < kb.FirstName
	})
	sorted := make([]json.RawMessage, len(raw))
	for i, j := range idx {
		sorted[i] = raw[j]
	}

	out, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode contacts: %w", err)
	}
	if _, err := o.Guard.WriteFile(output, append(out, '\n'), pathguard.Overwrite); err != nil {
		return "", err
	}
	return fmt.Sprintf("Sorted %d contacts into %s", len(sorted), output), nil
}

func (o *ops) recentLogLines(ctx context.Context, p operation.Params) (string, error) {
	dir := strings.Trim(LocalPath(p.Get("dir", "logs")), "/")
	n := p.Int("count", 10)
	output := LocalPath(p.Get("output", "logs-recent.txt"))

	files, err := o.Guard.Glob(dir + "/*.log")
	if err != nil {
		return "", err
	}
	type logFile struct {
		path  pathguard.Path
		mtime time.Time
	}
	logs := make([]logFile, 0, len(files))
	for _, f := range files {
		info, err := os.Stat(string(f))
		if err != nil {
			continue
		}
		logs = append(logs, logFile{path: f, mtime: info.ModTime()})
	}
	sort.SliceStable(logs, func(i, j int) bool {
		if !logs[i].mtime.Equal(logs[j].mtime) {
			return logs[i].mtime.After(logs[j].mtime)
		}
		return logs[i].path < logs[j].path
	})
	if len(logs) > n {
		logs = logs[:n]
	}

	var buf bytes.Buffer
	for _, l := range logs {
		line, err := firstLine(o.Guard, o.Guard.Rel(l.path))
		if err != nil {
			return "", err
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if _, err := o.Guard.WriteFile(output, buf.Bytes(), pathguard.Overwrite); err != nil {
		return "", err
	}
	return fmt.Sprintf("Wrote first lines of %d log files to %s", len(logs), output), nil
}

func firstLine(g *pathguard.Guard, raw string) (string, error) {
	f, err := g.Open(raw)
	if err != nil {
		return "", err
	}
	defer f.Close()
	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", raw, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (o *ops) indexMarkdown(ctx context.Context, p operation.Params) (string, error) {
	dir := strings.Trim(LocalPath(p.Get("dir", "docs")), "/")
	output := LocalPath(p.Get("output", dir+"/index.json"))

	files, err := o.Guard.Glob(dir + "/**/*.md")
	if err != nil {
		return "", err
	}
	index := make(map[string]string, len(files))
	for _, f := range files {
		rel := o.Guard.Rel(f)
		title, err := firstHeading(o.Guard, rel)
		if err != nil {
			return "", err
		}
		if title != "" {
			index[strings.TrimPrefix(rel, dir+"/")] = title
		}
	}

	out, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode index: %w", err)
	}
	if _, err := o.Guard.WriteFile(output, append(out, '\n'), pathguard.Overwrite); err != nil {
		return "", err
	}
	return fmt.Sprintf("Indexed %d markdown files into %s", len(index), output), nil
}

func firstHeading(g *pathguard.Guard, raw string) (string, error) {
	f, err := g.Open(raw)
	if err != nil {
		return "", err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:]), nil
		}
	}
	return "", sc.Err()
}

const senderPrompt = "Extract the sender's email address from the following email message. " +
	"Reply with the email address only.\n\n"

func (o *ops) extractSender(ctx context.Context, p operation.Params) (string, error) {
	input := LocalPath(p.Get("input", "email.txt"))
	output := LocalPath(p.Get("output", "email-sender.txt"))

	data, err := o.Guard.ReadFile(input)
	if err != nil {
		return "", err
	}

	var addr string
	if o.Model != nil {
		answer, err := o.Model.Complete(ctx, senderPrompt+string(data))
		if err != nil {
			o.log.FromContext(ctx).Warn("sender_model_failed", nil, err)
		} else {
			addr = extract.Email(answer)
		}
	}
	if addr == "" {
		addr = senderFromHeader(data)
	}
	if addr == "" {
		return "", fmt.Errorf("no sender address found in %s", input)
	}

	if _, err := o.Guard.WriteFile(output, []byte(addr), pathguard.Overwrite); err != nil {
		return "", err
	}
	return addr, nil
}

func senderFromHeader(data []byte) string {
	if msg, err := mail.ReadMessage(bytes.NewReader(data)); err == nil {
		if a, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
			return a.Address
		}
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(strings.ToLower(line), "from:") {
			return extract.Email(line)
		}
	}
	return ""
}

var digitRun = regexp.MustCompile(`\d[\d \-]{10,}\d`)

func (o *ops) extractCard(ctx context.Context, p operation.Params) (string, error) {
	input := LocalPath(p.Get("input", "credit-card.png"))
	output := LocalPath(p.Get("output", "credit-card.txt"))

	img, err := o.Guard.Resolve(input)
	if err != nil {
		return "", err
	}
	if ok, _ := o.Guard.Exists(input); !ok {
		return "", operation.Errorf(operation.KindNotFound, input, "no such image")
	}
	if _, err := o.Runner.LookPath("tesseract"); err != nil {
		return "", fmt.Errorf("ocr: tesseract not installed: %w", err)
	}
	text, err := o.Runner.Output(ctx, o.Guard.Root(), "tesseract", string(img), "stdout")
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}

	number := cardNumber(string(text))
	if number == "" {
		return "", fmt.Errorf("no card number found in %s", input)
	}
	if _, err := o.Guard.WriteFile(output, []byte(number), pathguard.Overwrite); err != nil {
		return "", err
	}
	return number, nil
}

// cardNumber returns the first 12-19 digit run passing the Luhn check, or
// the first such run when none does.
func cardNumber(text string) string {
	var fallback string
	for _, m := range digitRun.FindAllString(text, -1) {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, m)
		if len(digits) < 12 || len(digits) > 19 {
			continue
		}
		if luhn(digits) {
			return digits
		}
		if fallback == "" {
			fallback = digits
		}
	}
	return fallback
}

func luhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func (o *ops) similarComments(ctx context.Context, p operation.Params) (string, error) {
	input := LocalPath(p.Get("input", "comments.txt"))
	output := LocalPath(p.Get("output", "comments-similar.txt"))

	data, err := o.Guard.ReadFile(input)
	if err != nil {
		return "", err
	}
	var comments []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			comments = append(comments, line)
		}
	}
	a, b, ok := mostSimilar(comments)
	if !ok {
		return "", fmt.Errorf("%s: need at least two comments", input)
	}

	if _, err := o.Guard.WriteFile(output, []byte(a+"\n"+b+"\n"), pathguard.Overwrite); err != nil {
		return "", err
	}
	return fmt.Sprintf("Most similar comments written to %s", output), nil
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}']+`)

func termVector(s string) map[string]float64 {
	v := make(map[string]float64)
	for _, w := range wordPattern.FindAllString(strings.ToLower(s), -1) {
		v[w]++
	}
	return v
}

func cosine(a, b map[string]float64) float64 {
	var dot, na, nb float64
	for w, x := range a {
		dot += x * b[w]
		na += x * x
	}
	for _, y := range b {
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// mostSimilar returns the pair with the highest cosine similarity. Ties keep
// the earliest pair.
func mostSimilar(lines []string) (string, string, bool) {
	if len(lines) < 2 {
		return "", "", false
	}
	vecs := make([]map[string]float64, len(lines))
	for i, l := range lines {
		vecs[i] = termVector(l)
	}
	bi, bj, best := 0, 1, -1.0
	for i := 0; i < len(lines); i++ {
		for j := i + 1; j < len(lines); j++ {
			if s := cosine(vecs[i], vecs[j]); s > best {
				bi, bj, best = i, j, s
			}
		}
	}
	return lines[bi], lines[bj], true
}

func (o *ops) ticketSales(ctx context.Context, p operation.Params) (string, error) {
	dbFile := LocalPath(p.Get("db", "ticket-sales.db"))
	kind := p.Get("type", "Gold")
	output := LocalPath(p.Get("output", "ticket-sales-"+strings.ToLower(kind)+".txt"))

	db, err := openReadOnly(o.Guard, dbFile)
	if err != nil {
		return "", err
	}
	defer db.Close()

	var total sql.NullFloat64
	err = db.QueryRowContext(ctx,
		`SELECT SUM(units * price) FROM tickets WHERE TRIM(LOWER(type)) = LOWER(?)`, kind).Scan(&total)
	if err != nil {
		return "", fmt.Errorf("ticket sales: %w", err)
	}

	result := strconv.FormatFloat(total.Float64, 'f', -1, 64)
	if _, err := o.Guard.WriteFile(output, []byte(result), pathguard.Overwrite); err != nil {
		return "", err
	}
	return result, nil
}

// openReadOnly opens a SQLite database inside the root in read-only mode.
func openReadOnly(g *pathguard.Guard, raw string) (*sql.DB, error) {
	p, err := g.Resolve(raw)
	if err != nil {
		return nil, err
	}
	if ok, _ := g.Exists(raw); !ok {
		return nil, operation.Errorf(operation.KindNotFound, raw, "no such database")
	}
	dsn := &url.URL{Scheme: "file", Path: string(p), RawQuery: "mode=ro"}
	db, err := sql.Open("sqlite3", dsn.String())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", raw, err)
	}
	return db, nil
}
