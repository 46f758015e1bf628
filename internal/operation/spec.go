// Package operation defines the closed set of operations the agent can run,
// the immutable catalog that holds them, and the result and error types shared
// by the classifier, executor and HTTP layer.
package operation

import (
	"context"
	"strconv"
	"strings"
)

// ID identifies a catalog operation.
type ID string

const (
	RunDatagen       ID = "run-datagen"
	FormatMarkdown   ID = "format-markdown"
	CountWeekdays    ID = "count-weekday-occurrences"
	SortContacts     ID = "sort-contacts"
	RecentLogLines   ID = "recent-log-lines"
	IndexMarkdown    ID = "index-markdown-headings"
	ExtractSender    ID = "extract-sender-email"
	ExtractCard      ID = "extract-card-number"
	SimilarComments  ID = "find-similar-comments"
	TicketSalesTotal ID = "ticket-sales-total"

	FetchAPIData    ID = "fetch-api-data"
	CloneGitRepo    ID = "clone-git-repo"
	RunSQLQuery     ID = "run-sql-query"
	ScrapeWebsite   ID = "scrape-website"
	ResizeImage     ID = "resize-image"
	CompressImage   ID = "compress-image"
	TranscribeAudio ID = "transcribe-audio"
	ConvertMarkdown ID = "convert-markdown"
	FilterCSV       ID = "filter-csv"

	// Freeform forwards the task text to the model and returns its answer.
	Freeform ID = "freeform"
)

func (id ID) String() string { return string(id) }

// Family groups operations by how they touch the outside world.
type Family int

const (
	// FamilyData covers deterministic file and data operations.
	FamilyData Family = iota
	// FamilySensitive covers network, subprocess and conversion operations.
	FamilySensitive
	// FamilyFallback holds only the freeform operation.
	FamilyFallback
)

func (f Family) String() string {
	switch f {
	case FamilyData:
		return "data"
	case FamilySensitive:
		return "sensitive"
	case FamilyFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Effect is a declared side effect of an operation.
type Effect uint8

const (
	ReadsOnly Effect = 1 << iota
	WritesNewFile
	WritesExistingFile
	NetworkCall
	SubprocessCall
)

// Has reports whether all bits of o are set in e.
func (e Effect) Has(o Effect) bool { return e&o == o }

func (e Effect) String() string {
	var parts []string
	names := []struct {
		bit  Effect
		name string
	}{
		{ReadsOnly, "reads-only"},
		{WritesNewFile, "writes-new-file"},
		{WritesExistingFile, "writes-existing-file"},
		{NetworkCall, "network-call"},
		{SubprocessCall, "subprocess-call"},
	}
	for _, n := range names {
		if e.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ",")
}

// Params is the bag of operation arguments extracted from task text.
type Params map[string]string

// Get returns the value for key or def when missing or blank.
func (p Params) Get(key, def string) string {
	if v := strings.TrimSpace(p[key]); v != "" {
		return v
	}
	return def
}

// Int returns the integer value for key or def when missing or invalid.
func (p Params) Int(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(p[key]))
	if err != nil {
		return def
	}
	return n
}

// Bool reports whether key holds a truthy value.
func (p Params) Bool(key string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(p[key]))
	return b
}

// Matcher decides whether a spec accepts the normalized task text.
type Matcher func(task string) bool

// Extractor pulls operation parameters out of task text.
type Extractor func(task string) Params

// Handler performs the operation.
type Handler func(ctx context.Context, p Params) (string, error)

// Spec describes one catalog operation.
type Spec struct {
	ID          ID
	Family      Family
	Description string
	Effects     Effect
	Match       Matcher
	Extract     Extractor
	Handle      Handler
}

// Params runs the extractor, tolerating a nil one.
func (s Spec) Params(task string) Params {
	if s.Extract == nil {
		return Params{}
	}
	p := s.Extract(task)
	if p == nil {
		return Params{}
	}
	return p
}
