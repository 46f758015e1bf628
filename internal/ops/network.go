package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/operation"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/pathguard"
)

// maxBody caps downloaded payloads.
const maxBody = 32 << 20

func checkURL(raw string, schemes ...string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("no URL in task")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) && u.Host != "" {
			return u, nil
		}
	}
	return nil, fmt.Errorf("unsupported URL %q", raw)
}

func (o *ops) get(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", "taskagent/1.0")
	resp, err := o.HTTP.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: read body: %w", rawURL, err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (o *ops) fetchAPI(ctx context.Context, p operation.Params) (string, error) {
	u, err := checkURL(p.Get("url", ""), "http", "https")
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	output := LocalPath(p.Get("output", "api-response.json"))

	body, _, err := o.get(ctx, u.String())
	if err != nil {
		return "", err
	}
	if !json.Valid(body) {
		return "", fmt.Errorf("fetch: %s did not return JSON", u)
	}
	if _, err := o.Guard.WriteFile(output, body, pathguard.CreateOnly); err != nil {
		return "", err
	}
	return fmt.Sprintf("Fetched %d bytes from %s into %s", len(body), u, output), nil
}

func (o *ops) cloneRepo(ctx context.Context, p operation.Params) (string, error) {
	raw := p.Get("url", "")
	if strings.HasPrefix(raw, "-") {
		return "", fmt.Errorf("clone: invalid repository %q", raw)
	}
	u, err := checkURL(raw, "https", "http", "ssh", "git")
	if err != nil {
		return "", fmt.Errorf("clone: %w", err)
	}
	dest := LocalPath(p.Get("dest", repoName(u)))

	target, err := o.Guard.Resolve(dest)
	if err != nil {
		return "", operation.Wrap(operation.KindWriteDenied, dest, err)
	}
	if ok, err := o.Guard.Exists(dest); err != nil {
		return "", err
	} else if ok {
		return "", operation.Errorf(operation.KindWriteDenied, dest, "destination exists")
	}
	if _, err := o.Runner.LookPath("git"); err != nil {
		return "", fmt.Errorf("clone: git not installed: %w", err)
	}
	if _, err := o.Runner.Run(ctx, o.Guard.Root(), "git", "clone", "--depth", "1", "--", u.String(), string(target)); err != nil {
		return "", fmt.Errorf("clone: %w", err)
	}
	return fmt.Sprintf("Cloned %s into %s", u, o.Guard.Rel(target)), nil
}

func repoName(u *url.URL) string {
	base := u.Path[strings.LastIndex(u.Path, "/")+1:]
	base = strings.TrimSuffix(base, ".git")
	if base == "" {
		return "repo"
	}
	return base
}

// maxRows caps the rows rendered for a query.
const maxRows = 1000

func (o *ops) runSQL(ctx context.Context, p operation.Params) (string, error) {
	query := p.Get("sql", "")
	if err := checkReadOnly(query); err != nil {
		return "", err
	}
	query = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))

	db, err := openReadOnly(o.Guard, LocalPath(p.Get("db", "database.db")))
	if err != nil {
		return "", err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("sql: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("sql: %w", err)
	}
	var lines []string
	lines = append(lines, strings.Join(cols, "\t"))
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	n := 0
	for rows.Next() {
		if n == maxRows {
			lines = append(lines, fmt.Sprintf("... truncated at %d rows", maxRows))
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", fmt.Errorf("sql: %w", err)
		}
		cells := make([]string, len(vals))
		for i, v := range vals {
			cells[i] = formatCell(v)
		}
		lines = append(lines, strings.Join(cells, "\t"))
		n++
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("sql: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func (o *ops) scrape(ctx context.Context, p operation.Params) (string, error) {
	u, err := checkURL(p.Get("url", ""), "http", "https")
	if err != nil {
		return "", fmt.Errorf("scrape: %w", err)
	}
	output := LocalPath(p.Get("output", "scraped.html"))

	var doc string
	if (p.Bool("render") || o.RenderPages) && o.Renderer != nil {
		doc, err = o.Renderer.Render(ctx, u.String())
		if err != nil {
			return "", fmt.Errorf("scrape: %w", err)
		}
	} else {
		body, _, err := o.get(ctx, u.String())
		if err != nil {
			return "", fmt.Errorf("scrape: %w", err)
		}
		doc = string(body)
	}

	summary, err := summarizeHTML(doc)
	if err != nil {
		return "", fmt.Errorf("scrape: %w", err)
	}
	if _, err := o.Guard.WriteFile(output, []byte(doc), pathguard.CreateOnly); err != nil {
		return "", err
	}
	title := summary.Title
	if title == "" {
		title = "untitled"
	}
	return fmt.Sprintf("Scraped %s (%q, %d characters of text) into %s", u, title, len(summary.Text), output), nil
}
