package ops

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/operation"
)

func TestFetchAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"items":[1,2,3]}`))
		case "/html":
			w.Write([]byte(`<html></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	o, root, _ := newTestOps(t)
	out, err := o.fetchAPI(context.Background(), operation.Params{"url": server.URL + "/data"})
	require.NoError(t, err)
	assert.Contains(t, out, "api-response.json")
	assert.Equal(t, `{"items":[1,2,3]}`, readFile(t, root, "api-response.json"))

	// Fetched content never replaces an existing file.
	_, err = o.fetchAPI(context.Background(), operation.Params{"url": server.URL + "/data"})
	assert.ErrorIs(t, err, operation.ErrWriteDenied)

	_, err = o.fetchAPI(context.Background(), operation.Params{"url": server.URL + "/html", "output": "h.json"})
	assert.ErrorContains(t, err, "did not return JSON")

	_, err = o.fetchAPI(context.Background(), operation.Params{"url": server.URL + "/missing", "output": "m.json"})
	assert.ErrorContains(t, err, "status 404")

	_, err = o.fetchAPI(context.Background(), operation.Params{})
	assert.Error(t, err)

	_, err = o.fetchAPI(context.Background(), operation.Params{"url": server.URL + "/data", "output": "../escape.json"})
	assert.True(t, operation.IsConfinement(err))
}

func TestCloneRepo(t *testing.T) {
	o, root, runner := newTestOps(t)

	out, err := o.cloneRepo(context.Background(), operation.Params{"url": "https://github.com/example/repo.git"})
	require.NoError(t, err)
	assert.Equal(t, "Cloned https://github.com/example/repo.git into repo", out)
	calls := runner.CallsTo("git")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"clone", "--depth", "1", "--", "https://github.com/example/repo.git", filepath.Join(root, "repo")}, calls[0].Args)

	writeFile(t, root, "existing/README", "x")
	_, err = o.cloneRepo(context.Background(), operation.Params{"url": "https://github.com/example/repo.git", "dest": "existing"})
	assert.ErrorIs(t, err, operation.ErrWriteDenied)

	_, err = o.cloneRepo(context.Background(), operation.Params{"url": "https://github.com/example/repo.git", "dest": "../../tmp/x"})
	assert.True(t, operation.IsConfinement(err))

	for _, bad := range []string{"", "-oProxyCommand=evil", "file:///etc", "not a url"} {
		_, err = o.cloneRepo(context.Background(), operation.Params{"url": bad})
		assert.Error(t, err, bad)
	}
	assert.Len(t, runner.CallsTo("git"), 1)
}

func TestCheckReadOnly(t *testing.T) {
	ok := []string{
		"SELECT COUNT(*) FROM users",
		"select name from t where id = 1;",
		"WITH x AS (SELECT 1) SELECT * FROM x",
		"SELECT replace(name, 'a', 'b') FROM users",
		"SELECT * FROM log WHERE action = 'delete'",
		"SELECT * FROM log WHERE note = 'a;b' AND tag = 'it''s; drop'",
		`SELECT "update" FROM audit`,
		"SELECT 1 -- drop table users",
		"/* weekly */ SELECT COUNT(*) FROM users",
	}
	for _, q := range ok {
		assert.NoError(t, checkReadOnly(q), q)
	}
	bad := []string{
		"",
		"DELETE FROM users",
		"SELECT 1; DROP TABLE users",
		"UPDATE users SET name = 'x'",
		"ATTACH DATABASE '/etc/x.db' AS x",
		"PRAGMA writable_schema = 1",
		"SELECT load_extension('evil')",
		"WITH x AS (SELECT 1) INSERT INTO t SELECT * FROM x",
		"WITH x AS (SELECT 1) REPLACE INTO t SELECT * FROM x",
		"SELECT 'x'; DELETE FROM users",
		"SELECT 'unterminated; DROP TABLE users",
	}
	for _, q := range bad {
		assert.Error(t, checkReadOnly(q), q)
	}
}

func TestRunSQL(t *testing.T) {
	o, root, _ := newTestOps(t)
	db, err := sql.Open("sqlite3", filepath.Join(root, "database.db"))
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE users (name TEXT, qty INTEGER, note TEXT);
		INSERT INTO users VALUES ('Asha', 1, NULL), ('Ravi', 2, 'vip');`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err := o.runSQL(context.Background(), operation.Params{"sql": "SELECT name, qty, note FROM users ORDER BY name;"})
	require.NoError(t, err)
	assert.Equal(t, "name\tqty\tnote\nAsha\t1\tNULL\nRavi\t2\tvip", out)

	out, err = o.runSQL(context.Background(), operation.Params{"sql": "SELECT COUNT(*) AS n FROM users"})
	require.NoError(t, err)
	assert.Equal(t, "n\n2", out)

	_, err = o.runSQL(context.Background(), operation.Params{"sql": "DELETE FROM users"})
	require.Error(t, err)
	out, err = o.runSQL(context.Background(), operation.Params{"sql": "SELECT COUNT(*) FROM users"})
	require.NoError(t, err)
	assert.Contains(t, out, "2")

	_, err = o.runSQL(context.Background(), operation.Params{"sql": "SELECT 1", "db": "/etc/passwd"})
	assert.ErrorIs(t, err, operation.ErrAccessDenied)
}

type fakeRenderer struct {
	urls []string
	html string
}

func (f *fakeRenderer) Render(ctx context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	return f.html, nil
}

const samplePage = `<html><head><title>Hello</title><script>var x = 1;</script></head>` +
	`<body><h1>Welcome</h1><p>Some <b>bold</b> text.</p><style>p{}</style></body></html>`

func TestScrape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	o, root, _ := newTestOps(t)
	out, err := o.scrape(context.Background(), operation.Params{"url": server.URL})
	require.NoError(t, err)
	assert.Contains(t, out, `"Hello"`)
	assert.Equal(t, samplePage, readFile(t, root, "scraped.html"))

	r := &fakeRenderer{html: "<html><head><title>Rendered</title></head><body>js</body></html>"}
	o.Renderer = r
	out, err = o.scrape(context.Background(), operation.Params{"url": server.URL, "render": "true", "output": "r.html"})
	require.NoError(t, err)
	assert.Contains(t, out, `"Rendered"`)
	assert.Equal(t, []string{server.URL}, r.urls)

	_, err = o.scrape(context.Background(), operation.Params{"url": server.URL})
	assert.ErrorIs(t, err, operation.ErrWriteDenied)

	_, err = o.scrape(context.Background(), operation.Params{"url": "ftp://example.com"})
	assert.Error(t, err)
}

func TestSummarizeHTML(t *testing.T) {
	s, err := summarizeHTML(samplePage)
	require.NoError(t, err)
	assert.Equal(t, "Hello", s.Title)
	assert.Equal(t, "Welcome Some bold text.", s.Text)
}
