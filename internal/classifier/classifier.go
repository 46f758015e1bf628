// Package classifier maps free-text tasks onto catalog operations.
//
// Deterministic matchers are tried first, in catalog order. Only when none
// fires is the language model asked for a category, and its answer is
// accepted only if it names a registered operation.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/extract"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/llm"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/logging"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/operation"
)

// Source tells how a classification was reached.
type Source string

const (
	SourcePattern  Source = "pattern"
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Classification is the routing decision for one task.
type Classification struct {
	ID     operation.ID
	Params operation.Params
	Source Source
}

// Classifier routes tasks using a catalog and a model backend.
type Classifier struct {
	catalog *operation.Catalog
	model   llm.Backend
	log     *logging.Logger
}

func New(catalog *operation.Catalog, model llm.Backend) *Classifier {
	return &Classifier{
		catalog: catalog,
		model:   model,
		log:     logging.New("classifier"),
	}
}

// Match runs only the deterministic matchers.
func (c *Classifier) Match(task string) (Classification, bool) {
	task = extract.Normalize(task)
	for _, s := range c.catalog.Specs() {
		if s.Match == nil || s.Family == operation.FamilyFallback {
			continue
		}
		if s.Match(task) {
			return Classification{ID: s.ID, Params: s.Params(task), Source: SourcePattern}, true
		}
	}
	return Classification{}, false
}

// Classify returns the operation for task.
func (c *Classifier) Classify(ctx context.Context, task string) (Classification, error) {
	task = extract.Normalize(task)
	if task == "" {
		return Classification{}, operation.ErrEmptyTask
	}

	if cl, ok := c.Match(task); ok {
		c.log.FromContext(ctx).Debug("classified", map[string]any{"operation": cl.ID, "source": cl.Source})
		return cl, nil
	}

	if c.model == nil {
		return freeform(task), nil
	}

	answer, err := c.model.Complete(ctx, c.prompt(task))
	if err != nil {
		return Classification{}, operation.Wrap(operation.KindClassificationUnavailable, "classify", err)
	}

	id := ParseLabel(answer)
	if id != operation.Freeform && c.catalog.Has(id) {
		c.log.FromContext(ctx).Info("classified", map[string]any{"operation": id, "source": SourceModel})
		return Classification{ID: id, Params: operation.Params{}, Source: SourceModel}, nil
	}

	c.log.FromContext(ctx).Info("classified", map[string]any{
		"operation": operation.Freeform,
		"source":    SourceFallback,
		"label":     truncate(answer, 60),
	})
	return freeform(task), nil
}

func freeform(task string) Classification {
	return Classification{
		ID:     operation.Freeform,
		Params: operation.Params{"task": task},
		Source: SourceFallback,
	}
}

func (c *Classifier) prompt(task string) string {
	var sb strings.Builder
	sb.WriteString("Classify the task into exactly one of these operation identifiers. ")
	sb.WriteString("Reply with the identifier only, or \"none\" if nothing fits.\n\n")
	for _, s := range c.catalog.Specs() {
		if s.Family == operation.FamilyFallback {
			continue
		}
		fmt.Fprintf(&sb, "- %s: %s\n", s.ID, s.Description)
	}
	sb.WriteString("\nTask: ")
	sb.WriteString(task)
	return sb.String()
}

// ParseLabel reads the first token of a model answer as an identifier.
// The answer is untrusted: quotes, backticks, list markers and trailing
// punctuation are stripped and the result lower-cased.
func ParseLabel(answer string) operation.ID {
	fields := strings.Fields(answer)
	for _, f := range fields {
		tok := strings.Trim(f, "`'\"*-.,:;()[]{}<>")
		if tok == "" {
			continue
		}
		return operation.ID(strings.ToLower(tok))
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
