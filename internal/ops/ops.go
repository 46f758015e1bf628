// Package ops implements the catalog operations and registers them, in
// matching priority order, into an operation.Catalog.
//
// Every handler reaches the filesystem only through the injected
// pathguard.Guard, and external tools only through the exec.Runner.
package ops

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/exec"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/extract"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/llm"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/logging"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/operation"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/pathguard"
)

// Deps are the capabilities handlers may use.
type Deps struct {
	Guard  *pathguard.Guard
	Runner exec.Runner
	Model  llm.Backend
	HTTP   *http.Client

	// Renderer loads pages that need JavaScript. Nil disables rendering.
	Renderer Renderer

	// UserEmail is passed to the data generator when the task names none.
	UserEmail string
	// DatagenURL is the generator script run by run-datagen.
	DatagenURL string
	// RenderPages makes scrape-website render every page.
	RenderPages bool
}

type ops struct {
	Deps
	log *logging.Logger
}

// NewCatalog builds the frozen catalog of all operations.
func NewCatalog(d Deps) *operation.Catalog {
	if d.Guard == nil {
		panic("ops: Deps.Guard is required")
	}
	if d.Runner == nil {
		d.Runner = exec.NewOSRunner()
	}
	if d.HTTP == nil {
		d.HTTP = &http.Client{Timeout: 30 * time.Second}
	}
	o := &ops{Deps: d, log: logging.New("ops")}

	c := operation.NewCatalog()
	for _, s := range o.specs() {
		if s.ID != operation.RunSQLQuery && s.Family != operation.FamilyFallback {
			match := s.Match
			s.Match = func(t string) bool { return match(extract.BeforeSQL(t)) }
		}
		c.Register(s)
	}
	return c.Freeze()
}

func (o *ops) specs() []operation.Spec {
	return []operation.Spec{
		{
			ID:          operation.RunDatagen,
			Family:      operation.FamilyData,
			Description: "install and run the data generator script with the user's email",
			Effects:     operation.SubprocessCall | operation.NetworkCall,
			Match:       func(t string) bool { return extract.ContainsAny(t, "datagen") },
			Extract: func(t string) operation.Params {
				return params("url", firstURL(t, ".py"), "email", extract.Email(t))
			},
			Handle: o.runDatagen,
		},
		{
			ID:          operation.FormatMarkdown,
			Family:      operation.FamilyData,
			Description: "format a markdown file in place with prettier",
			Effects:     operation.SubprocessCall | operation.WritesExistingFile,
			Match: func(t string) bool {
				return extract.ContainsAny(t, "prettier") ||
					(hasWord(t, "format") && extract.ContainsAny(t, ".md", "markdown"))
			},
			Extract: func(t string) operation.Params {
				return params("file", fileArg(t, 0, ".md"))
			},
			Handle: o.formatMarkdown,
		},
		{
			ID:          operation.CountWeekdays,
			Family:      operation.FamilyData,
			Description: "count how many dates in a file fall on a given weekday",
			Effects:     operation.WritesExistingFile,
			Match: func(t string) bool {
				_, ok := extract.Weekday(t)
				return ok && extract.ContainsAny(t, "count", "how many", "number of")
			},
			Extract: func(t string) operation.Params {
				p := params("input", fileArg(t, 0, ".txt"), "output", fileArg(t, 1, ".txt"))
				if d, ok := extract.Weekday(t); ok {
					p["weekday"] = d.String()
				}
				return p
			},
			Handle: o.countWeekdays,
		},
		{
			ID:          operation.SortContacts,
			Family:      operation.FamilyData,
			Description: "sort a JSON contact list by last name then first name",
			Effects:     operation.WritesExistingFile,
			Match:       func(t string) bool { return extract.ContainsAll(t, "sort", "contacts") },
			Extract: func(t string) operation.Params {
				return params("input", fileArg(t, 0, ".json"), "output", fileArg(t, 1, ".json"))
			},
			Handle: o.sortContacts,
		},
		{
			ID:          operation.RecentLogLines,
			Family:      operation.FamilyData,
			Description: "collect the first line of the most recently modified log files",
			Effects:     operation.WritesExistingFile,
			Match: func(t string) bool {
				return extract.ContainsAny(t, "first lines of logs", "first line of", "recent logs",
					"recent log files", "logs-recent")
			},
			Extract: func(t string) operation.Params {
				p := params("output", fileArg(t, 0, ".txt"))
				if n, ok := extract.NumberAfter(t, "first", "most recent", "latest"); ok {
					p["count"] = fmt.Sprint(n)
				}
				return p
			},
			Handle: o.recentLogLines,
		},
		{
			ID:          operation.IndexMarkdown,
			Family:      operation.FamilyData,
			Description: "index the first H1 heading of every markdown file in a directory",
			Effects:     operation.WritesExistingFile,
			Match: func(t string) bool {
				return extract.ContainsAny(t, "h1", "markdown index", "docs index", "index of markdown",
					"index.json")
			},
			Extract: func(t string) operation.Params {
				return params("output", fileArg(t, 0, ".json"))
			},
			Handle: o.indexMarkdown,
		},
		{
			ID:          operation.ExtractSender,
			Family:      operation.FamilyData,
			Description: "extract the sender's email address from an email message",
			Effects:     operation.NetworkCall | operation.WritesExistingFile,
			Match:       func(t string) bool { return extract.ContainsAll(t, "sender", "email") },
			Extract: func(t string) operation.Params {
				return params("input", fileArg(t, 0, ".txt"), "output", fileArg(t, 1, ".txt"))
			},
			Handle: o.extractSender,
		},
		{
			ID:          operation.ExtractCard,
			Family:      operation.FamilyData,
			Description: "read the credit card number from an image",
			Effects:     operation.SubprocessCall | operation.WritesExistingFile,
			Match: func(t string) bool {
				return extract.ContainsAny(t, "credit card", "credit-card", "card number")
			},
			Extract: func(t string) operation.Params {
				return params("input", fileArg(t, 0, imageExts...), "output", fileArg(t, 0, ".txt"))
			},
			Handle: o.extractCard,
		},
		{
			ID:          operation.SimilarComments,
			Family:      operation.FamilyData,
			Description: "find the most similar pair of comments",
			Effects:     operation.WritesExistingFile,
			Match:       func(t string) bool { return extract.ContainsAny(t, "similar comments", "most similar") },
			Extract: func(t string) operation.Params {
				return params("input", fileArg(t, 0, ".txt"), "output", fileArg(t, 1, ".txt"))
			},
			Handle: o.similarComments,
		},
		{
			ID:          operation.TicketSalesTotal,
			Family:      operation.FamilyData,
			Description: "total ticket sales for one ticket type in a SQLite database",
			Effects:     operation.WritesExistingFile,
			Match: func(t string) bool {
				return extract.ContainsAny(t, "ticket sales", "ticket-sales") ||
					extract.ContainsAll(t, "ticket", "total sales")
			},
			Extract: func(t string) operation.Params {
				return params("db", fileArg(t, 0, dbExts...), "type", ticketType(t), "output", fileArg(t, 0, ".txt"))
			},
			Handle: o.ticketSales,
		},

		{
			ID:          operation.FetchAPIData,
			Family:      operation.FamilySensitive,
			Description: "fetch JSON from an API and save it",
			Effects:     operation.NetworkCall | operation.WritesNewFile,
			Match:       func(t string) bool { return extract.ContainsAny(t, "fetch api", "api data", "fetch data from") },
			Extract: func(t string) operation.Params {
				return params("url", extract.FirstURL(t), "output", fileArg(t, 0, ".json"))
			},
			Handle: o.fetchAPI,
		},
		{
			ID:          operation.CloneGitRepo,
			Family:      operation.FamilySensitive,
			Description: "clone a git repository",
			Effects:     operation.SubprocessCall | operation.NetworkCall | operation.WritesNewFile,
			Match: func(t string) bool {
				return hasWord(t, "clone") && extract.ContainsAny(t, "git", "repo")
			},
			Extract: func(t string) operation.Params {
				return params("url", extract.FirstURL(t), "dest", extract.WordAfter(t, "into"))
			},
			Handle: o.cloneRepo,
		},
		{
			ID:          operation.RunSQLQuery,
			Family:      operation.FamilySensitive,
			Description: "run a read-only SQL query against a SQLite database",
			Effects:     operation.ReadsOnly,
			Match:       func(t string) bool { return extract.ContainsAny(t, "sql query", "run sql", "sql:") },
			Extract: func(t string) operation.Params {
				return params("sql", extract.SQL(t), "db", fileArg(t, 0, dbExts...))
			},
			Handle: o.runSQL,
		},
		{
			ID:          operation.ScrapeWebsite,
			Family:      operation.FamilySensitive,
			Description: "download a web page and save its HTML",
			Effects:     operation.NetworkCall | operation.WritesNewFile,
			Match:       func(t string) bool { return extract.ContainsAny(t, "scrape", "scraping") },
			Extract: func(t string) operation.Params {
				p := params("url", extract.FirstURL(t), "output", fileArg(t, 0, ".html", ".htm"))
				if extract.ContainsAny(t, "render", "javascript") {
					p["render"] = "true"
				}
				return p
			},
			Handle: o.scrape,
		},
		{
			ID:          operation.ResizeImage,
			Family:      operation.FamilySensitive,
			Description: "resize an image to a given width",
			Effects:     operation.WritesNewFile,
			Match:       func(t string) bool { return hasWord(t, "resize") && mentionsImage(t) },
			Extract: func(t string) operation.Params {
				p := params("input", fileArg(t, 0, imageExts...), "output", fileArg(t, 1, imageExts...))
				if n, ok := extract.NumberAfter(t, "width", "to"); ok {
					p["width"] = fmt.Sprint(n)
				}
				return p
			},
			Handle: o.resizeImage,
		},
		{
			ID:          operation.CompressImage,
			Family:      operation.FamilySensitive,
			Description: "re-encode an image as a smaller JPEG",
			Effects:     operation.WritesNewFile,
			Match:       func(t string) bool { return hasWord(t, "compress") && mentionsImage(t) },
			Extract: func(t string) operation.Params {
				p := params("input", fileArg(t, 0, imageExts...), "output", fileArg(t, 1, imageExts...))
				if n, ok := extract.NumberAfter(t, "quality"); ok {
					p["quality"] = fmt.Sprint(n)
				}
				return p
			},
			Handle: o.compressImage,
		},
		{
			ID:          operation.TranscribeAudio,
			Family:      operation.FamilySensitive,
			Description: "transcribe an audio file to text",
			Effects:     operation.SubprocessCall | operation.WritesNewFile,
			Match:       func(t string) bool { return extract.ContainsAny(t, "transcribe", "transcription") },
			Extract: func(t string) operation.Params {
				return params("input", fileArg(t, 0, audioExts...), "output", fileArg(t, 0, ".txt"))
			},
			Handle: o.transcribe,
		},
		{
			ID:          operation.ConvertMarkdown,
			Family:      operation.FamilySensitive,
			Description: "convert a markdown file to HTML",
			Effects:     operation.WritesNewFile,
			Match: func(t string) bool {
				return extract.ContainsAny(t, "convert markdown", "markdown to html", "md to html") ||
					extract.ContainsAll(t, "convert", ".md", "html")
			},
			Extract: func(t string) operation.Params {
				return params("input", fileArg(t, 0, ".md"), "output", fileArg(t, 0, ".html", ".htm"))
			},
			Handle: o.convertMarkdown,
		},
		{
			ID:          operation.FilterCSV,
			Family:      operation.FamilySensitive,
			Description: "select CSV rows whose column equals a value",
			Effects:     operation.ReadsOnly,
			Match: func(t string) bool {
				return extract.ContainsAny(t, "filter csv", "filter the csv") ||
					(hasWord(t, "filter") && len(extract.Files(t, ".csv")) > 0)
			},
			Extract: func(t string) operation.Params {
				p := params("file", fileArg(t, 0, ".csv"), "column", extract.WordAfter(t, "column"))
				if q := extract.Quoted(t); len(q) > 0 {
					p["value"] = q[len(q)-1]
				} else {
					p["value"] = extract.WordAfter(t, "equals")
				}
				return p
			},
			Handle: o.filterCSV,
		},

		{
			ID:          operation.Freeform,
			Family:      operation.FamilyFallback,
			Description: "ask the language model how to carry out the task",
			Effects:     operation.NetworkCall,
			Match:       func(string) bool { return true },
			Extract:     func(t string) operation.Params { return operation.Params{"task": t} },
			Handle:      o.freeform,
		},
	}
}

// freeformPrompt prefixes tasks no operation recognized.
const freeformPrompt = "How should I execute the following task? "

func (o *ops) freeform(ctx context.Context, p operation.Params) (string, error) {
	task := p.Get("task", "")
	if task == "" {
		return "", operation.ErrEmptyTask
	}
	if o.Model == nil {
		return "", fmt.Errorf("freeform: %w", llm.ErrUnavailable)
	}
	out, err := o.Model.Complete(ctx, freeformPrompt+task)
	if err != nil {
		return "", fmt.Errorf("freeform: %w", err)
	}
	return out, nil
}

var (
	imageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}
	audioExts = []string{".mp3", ".wav", ".m4a", ".ogg", ".flac"}
	dbExts    = []string{".db", ".sqlite", ".sqlite3"}
)

// dataPrefix is how tasks conventionally spell the confinement root.
const dataPrefix = "/data/"

// LocalPath maps "/data/x" onto the root-relative "x". Other paths are left
// for the guard to judge.
func LocalPath(p string) string {
	if strings.HasPrefix(p, dataPrefix) {
		return strings.TrimPrefix(p, dataPrefix)
	}
	return p
}

func fileArg(task string, n int, exts ...string) string {
	return LocalPath(extract.File(task, n, exts...))
}

// params builds a bag from key/value pairs, dropping blank values.
func params(kv ...string) operation.Params {
	p := operation.Params{}
	for i := 0; i+1 < len(kv); i += 2 {
		if v := strings.TrimSpace(kv[i+1]); v != "" {
			p[kv[i]] = v
		}
	}
	return p
}

func hasWord(task, word string) bool {
	for _, w := range strings.Fields(strings.ToLower(task)) {
		if strings.Trim(w, ".,;:!?\"'`()") == word {
			return true
		}
	}
	return false
}

func mentionsImage(task string) bool {
	return extract.ContainsAny(task, "image", "photo", "picture") || len(extract.Files(task, imageExts...)) > 0
}

func firstURL(task string, suffix string) string {
	for _, u := range extract.URLs(task) {
		if strings.HasSuffix(strings.ToLower(u), suffix) {
			return u
		}
	}
	return extract.FirstURL(task)
}

var ticketTypes = []string{"Gold", "Silver", "Bronze"}

func ticketType(task string) string {
	if q := extract.Quoted(task); len(q) > 0 {
		return q[0]
	}
	for _, tt := range ticketTypes {
		if hasWord(task, strings.ToLower(tt)) {
			return tt
		}
	}
	w := extract.WordAfter(task, "type")
	if w != "" && !extract.ContainsAny(w, "ticket") {
		return w
	}
	return ""
}
