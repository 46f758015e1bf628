package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/classifier"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/exec"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/executor"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/llm"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/metrics"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/operation"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/ops"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/pathguard"
)

type testEnv struct {
	server  *Server
	root    string
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, model llm.Backend) *testEnv {
	t.Helper()
	g, err := pathguard.New(t.TempDir())
	require.NoError(t, err)

	m := metrics.New()
	cat := ops.NewCatalog(ops.Deps{Guard: g, Runner: exec.NewMockRunner(), Model: model})
	agent := executor.NewAgent(classifier.New(cat, model), executor.New(cat, m), executor.NewPool(2, m), m)
	return &testEnv{server: New(agent, g, m, "127.0.0.1:0"), root: g.Root(), metrics: m}
}

func (e *testEnv) write(t *testing.T, rel, content string) {
	t.Helper()
	p := filepath.Join(e.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func (e *testEnv) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func runURL(task string) string {
	return "/run?task=" + url.QueryEscape(task)
}

func TestHealth(t *testing.T) {
	env := newTestServer(t, nil)
	rec := env.do(http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}

func TestRunWeekdayCount(t *testing.T) {
	env := newTestServer(t, nil)
	env.write(t, "dates.txt", "2024-01-03\n2024-01-04\n2024-01-10\n")

	rec := env.do(http.MethodPost, runURL("Count the number of Wednesdays in /data/dates.txt"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode(t, rec)
	assert.Equal(t, operation.StatusSuccess, resp.Status)
	assert.Equal(t, "2", resp.Output)
	assert.Equal(t, operation.CountWeekdays, resp.Operation)
	assert.NotEmpty(t, resp.TaskID)

	data, err := os.ReadFile(filepath.Join(env.root, "dates-wednesdays.txt"))
	require.NoError(t, err)
	assert.Equal(t, "2", strings.TrimSpace(string(data)))
}

func TestRunEmptyTask(t *testing.T) {
	env := newTestServer(t, nil)
	for _, target := range []string{"/run", runURL("   ")} {
		rec := env.do(http.MethodPost, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decode(t, rec)
		assert.Equal(t, operation.StatusError, resp.Status)
		assert.Contains(t, resp.Output, "empty")
	}
}

func TestRunMethodNotAllowed(t *testing.T) {
	env := newTestServer(t, nil)
	rec := env.do(http.MethodGet, runURL("count Wednesdays"))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRunConfinement(t *testing.T) {
	env := newTestServer(t, nil)
	rec := env.do(http.MethodPost, runURL("Count the number of Wednesdays in /etc/dates.txt"))
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	assert.Equal(t, operation.StatusError, decode(t, rec).Status)
}

func TestRunHandlerFailure(t *testing.T) {
	env := newTestServer(t, nil)
	rec := env.do(http.MethodPost, runURL("Sort the contacts in /data/contacts.json"))
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	env.write(t, "contacts.json", "{not json")
	rec = env.do(http.MethodPost, runURL("Sort the contacts in /data/contacts.json"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, operation.StatusError, resp.Status)
	assert.NotContains(t, resp.Output, "goroutine")
}

func TestRunBackendUnavailable(t *testing.T) {
	var down atomic.Bool
	down.Store(true)
	model := llm.Func(func(ctx context.Context, prompt string) (string, error) {
		if down.Load() {
			return "", fmt.Errorf("dial tcp 127.0.0.1:1: %w", llm.ErrUnavailable)
		}
		return "Paris", nil
	})
	env := newTestServer(t, model)
	env.write(t, "dates.txt", "2024-01-03\n")

	rec := env.do(http.MethodPost, runURL("What is the capital of France?"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, operation.StatusError, resp.Status)
	assert.Contains(t, resp.Output, "classification unavailable")

	rec = env.do(http.MethodPost, runURL("Count the number of Wednesdays in /data/dates.txt"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", decode(t, rec).Output)

	down.Store(false)
	rec = env.do(http.MethodPost, runURL("What is the capital of France?"))
	assert.Equal(t, http.StatusOK, rec.Code)
	resp = decode(t, rec)
	assert.Equal(t, operation.Freeform, resp.Operation)
	assert.Equal(t, "Paris", resp.Output)
}

func TestRead(t *testing.T) {
	env := newTestServer(t, nil)
	env.write(t, "notes/a.txt", "hello\n")

	for _, path := range []string{"notes/a.txt", "/data/notes/a.txt"} {
		rec := env.do(http.MethodGet, "/read?path="+url.QueryEscape(path))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp readResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, readResponse{Status: "success", Content: "hello\n"}, resp)
	}
}

func TestReadErrors(t *testing.T) {
	env := newTestServer(t, nil)

	tests := []struct {
		path string
		want int
	}{
		{"../../etc/passwd", http.StatusForbidden},
		{"/etc/passwd", http.StatusForbidden},
		{"missing.txt", http.StatusNotFound},
		{"", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := env.do(http.MethodGet, "/read?path="+url.QueryEscape(tt.path))
			assert.Equal(t, tt.want, rec.Code)
			resp := decode(t, rec)
			assert.Equal(t, operation.StatusError, resp.Status)
			assert.NotContains(t, resp.Output, "root:")
		})
	}
}

func TestFilterCSV(t *testing.T) {
	env := newTestServer(t, nil)
	env.write(t, "people.csv", "id,name,city\n1,Ann,Pune\n2,Bob,Delhi\n3,Cy,Pune\n")

	rec := env.do(http.MethodGet, "/filter_csv?file_path=/data/people.csv&column=city&value=Pune")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t,
		`[{"id":"1","name":"Ann","city":"Pune"},{"id":"3","name":"Cy","city":"Pune"}]`,
		strings.TrimSpace(rec.Body.String()))

	rec = env.do(http.MethodGet, "/filter_csv?file_path=people.csv&column=city&value=Oslo")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = env.do(http.MethodGet, "/filter_csv?file_path=people.csv&column=country&value=IN")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/filter_csv?file_path=people.csv")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/filter_csv?column=city&value=Pune")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file_path")

	rec = env.do(http.MethodGet, "/filter_csv?file_path=../../etc/passwd&column=a&value=b")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestServer(t, nil)
	rec := env.do(http.MethodOptions, "/run")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestServer(t, nil)
	env.do(http.MethodGet, "/health")
	env.do(http.MethodGet, "/read?path=missing.txt")

	rec := env.do(http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "agent_requests_total 2")
	assert.Contains(t, rec.Body.String(), "agent_request_errors_total 1")
}

func TestServeListenerShutdown(t *testing.T) {
	env := newTestServer(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.ServeListener(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
