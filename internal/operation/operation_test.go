package operation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, Params) (string, error) { return "ok", nil }

func TestCatalogLookup(t *testing.T) {
	c := NewCatalog()
	c.Register(Spec{ID: SortContacts, Handle: noop})
	c.Register(Spec{ID: CountWeekdays, Handle: noop})
	c.Freeze()

	s, err := c.Lookup(SortContacts)
	require.NoError(t, err)
	assert.Equal(t, SortContacts, s.ID)

	_, err = c.Lookup("delete-everything")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownOperation))
	assert.Equal(t, KindUnknownOperation, KindOf(err))

	assert.Equal(t, []ID{SortContacts, CountWeekdays}, c.IDs())
}

func TestCatalogImmutable(t *testing.T) {
	c := NewCatalog()
	c.Register(Spec{ID: SortContacts, Handle: noop})

	assert.Panics(t, func() { c.Register(Spec{ID: SortContacts, Handle: noop}) })
	assert.Panics(t, func() { c.Register(Spec{ID: FilterCSV}) })

	c.Freeze()
	assert.Panics(t, func() { c.Register(Spec{ID: RunSQLQuery, Handle: noop}) })

	specs := c.Specs()
	specs[0].ID = "mutated"
	assert.True(t, c.Has(SortContacts))
}

func TestErrorKinds(t *testing.T) {
	err := Wrap(KindAccessDenied, "/etc/passwd", fmt.Errorf("outside root"))
	assert.True(t, errors.Is(err, ErrAccessDenied))
	assert.True(t, IsConfinement(err))
	assert.Equal(t, "/etc/passwd: access denied: outside root", err.Error())

	wrapped := fmt.Errorf("sort contacts: %w", err)
	assert.Equal(t, KindAccessDenied, KindOf(wrapped))

	cause := &Error{Kind: KindNotFound, Op: "x.txt", Err: os.ErrNotExist}
	assert.True(t, errors.Is(cause, os.ErrNotExist))
	assert.True(t, errors.Is(cause, ErrNotFound))

	assert.Equal(t, KindHandlerFailure, KindOf(errors.New("boom")))
	assert.Equal(t, KindEmptyTask, KindOf(ErrEmptyTask))
	assert.Nil(t, Wrap(KindNotFound, "x", nil))
}

func TestParams(t *testing.T) {
	p := Params{"width": "200", "render": "true", "blank": "  "}
	assert.Equal(t, 200, p.Int("width", 0))
	assert.Equal(t, 7, p.Int("missing", 7))
	assert.Equal(t, "d", p.Get("blank", "d"))
	assert.True(t, p.Bool("render"))
	assert.False(t, p.Bool("missing"))
}

func TestEffectString(t *testing.T) {
	e := NetworkCall | WritesNewFile
	assert.True(t, e.Has(NetworkCall))
	assert.False(t, e.Has(SubprocessCall))
	assert.Equal(t, "writes-new-file,network-call", e.String())
}

func TestResult(t *testing.T) {
	r := Failed(RunSQLQuery, &Error{Kind: KindWriteDenied, Op: "out.txt"})
	assert.False(t, r.OK())
	assert.Equal(t, KindWriteDenied, r.Kind)
	assert.Equal(t, "out.txt: write denied", r.Output)

	assert.True(t, Succeeded(Freeform, "hi").OK())
}
