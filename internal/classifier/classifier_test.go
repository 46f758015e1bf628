package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/extract"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/llm"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/operation"
)

func noop(ctx context.Context, p operation.Params) (string, error) { return "", nil }

func testCatalog() *operation.Catalog {
	c := operation.NewCatalog()
	c.Register(operation.Spec{
		ID:          operation.CountWeekdays,
		Description: "count weekday occurrences in a dates file",
		Match: func(task string) bool {
			_, ok := extract.Weekday(task)
			return ok && extract.ContainsAny(task, "count", "how many")
		},
		Extract: func(task string) operation.Params {
			d, _ := extract.Weekday(task)
			return operation.Params{"weekday": d.String()}
		},
		Handle: noop,
	})
	// Deliberately broad: also fires on weekday tasks, but registered later.
	c.Register(operation.Spec{
		ID:          operation.SortContacts,
		Description: "sort contacts by last and first name",
		Match:       func(task string) bool { return extract.ContainsAny(task, "count", "contacts") },
		Handle:      noop,
	})
	c.Register(operation.Spec{
		ID:          operation.FetchAPIData,
		Family:      operation.FamilySensitive,
		Description: "fetch data from an API and save it",
		Match:       func(task string) bool { return extract.ContainsAll(task, "fetch", "api") },
		Handle:      noop,
	})
	c.Register(operation.Spec{
		ID:          operation.Freeform,
		Family:      operation.FamilyFallback,
		Description: "answer with the model",
		Match:       func(string) bool { return true },
		Handle:      noop,
	})
	return c.Freeze()
}

func failIfCalled(t *testing.T) llm.Backend {
	return llm.Func(func(ctx context.Context, prompt string) (string, error) {
		t.Errorf("model called for prompt %q", prompt)
		return "", nil
	})
}

func TestClassifyPatternPrecedence(t *testing.T) {
	c := New(testCatalog(), failIfCalled(t))

	got, err := c.Classify(context.Background(), "  Count the Wednesdays in /data/dates.txt ")
	require.NoError(t, err)
	assert.Equal(t, operation.CountWeekdays, got.ID)
	assert.Equal(t, SourcePattern, got.Source)
	assert.Equal(t, "Wednesday", got.Params["weekday"])

	got, err = c.Classify(context.Background(), "sort the contacts")
	require.NoError(t, err)
	assert.Equal(t, operation.SortContacts, got.ID)
}

func TestClassifyDeterministic(t *testing.T) {
	c := New(testCatalog(), failIfCalled(t))
	first, err := c.Classify(context.Background(), "fetch the API payload")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := c.Classify(context.Background(), "fetch the API payload")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestClassifyModelFallback(t *testing.T) {
	rec := &llm.Recorder{Backend: llm.Func(func(ctx context.Context, prompt string) (string, error) {
		return "`fetch-api-data`.\nBecause the task downloads data.", nil
	})}
	c := New(testCatalog(), rec)

	got, err := c.Classify(context.Background(), "download the weather feed")
	require.NoError(t, err)
	assert.Equal(t, operation.FetchAPIData, got.ID)
	assert.Equal(t, SourceModel, got.Source)
	assert.Empty(t, got.Params)

	prompts := rec.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "fetch-api-data")
	assert.Contains(t, prompts[0], "download the weather feed")
	assert.NotContains(t, prompts[0], "- freeform")
}

func TestClassifyUntrustedLabel(t *testing.T) {
	answers := []string{
		"rm -rf /",
		"I think you should sort contacts",
		"",
		"freeform",
		"../../etc/passwd",
	}
	for _, answer := range answers {
		answer := answer
		c := New(testCatalog(), llm.Func(func(ctx context.Context, prompt string) (string, error) {
			return answer, nil
		}))
		got, err := c.Classify(context.Background(), "write a haiku about go")
		require.NoError(t, err, answer)
		assert.Equal(t, operation.Freeform, got.ID, answer)
		assert.Equal(t, SourceFallback, got.Source, answer)
		assert.Equal(t, "write a haiku about go", got.Params["task"], answer)
	}
}

func TestClassifyUnavailable(t *testing.T) {
	c := New(testCatalog(), llm.Func(func(ctx context.Context, prompt string) (string, error) {
		return "", llm.ErrUnavailable
	}))
	_, err := c.Classify(context.Background(), "write a haiku")
	require.Error(t, err)
	assert.True(t, errors.Is(err, operation.ErrClassificationUnavailable))
	assert.True(t, errors.Is(err, llm.ErrUnavailable))
	assert.Equal(t, operation.KindClassificationUnavailable, operation.KindOf(err))

	// Pattern matches never reach the backend.
	got, err := c.Classify(context.Background(), "sort contacts")
	require.NoError(t, err)
	assert.Equal(t, operation.SortContacts, got.ID)
}

func TestClassifyEmpty(t *testing.T) {
	c := New(testCatalog(), failIfCalled(t))
	_, err := c.Classify(context.Background(), "   \n\t")
	assert.ErrorIs(t, err, operation.ErrEmptyTask)
}

func TestClassifyNoModel(t *testing.T) {
	c := New(testCatalog(), nil)
	got, err := c.Classify(context.Background(), "tell me a joke")
	require.NoError(t, err)
	assert.Equal(t, operation.Freeform, got.ID)
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		in   string
		want operation.ID
	}{
		{"sort-contacts", "sort-contacts"},
		{"  **Fetch-API-Data**  ", "fetch-api-data"},
		{"\"run-sql-query\", because", "run-sql-query"},
		{"- count-weekday-occurrences", "count-weekday-occurrences"},
		{"", ""},
		{"...", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLabel(tt.in), tt.in)
	}
	assert.False(t, strings.Contains(string(ParseLabel("a b")), " "))
}
