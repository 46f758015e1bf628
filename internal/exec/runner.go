// Package exec is the seam between operation handlers and external tools
// (formatter, git, OCR, speech-to-text, data generator).
package exec

import (
	"bytes"
	"context"
	"fmt"
	osexec "os/exec"
	"strings"
	"sync"
)

// Runner executes external commands.
type Runner interface {
	// Run executes a command in dir ("" for the current directory) and returns
	// its combined stdout and stderr.
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)

	// Output executes a command and returns stdout only; stderr is folded into
	// the error on failure.
	Output(ctx context.Context, dir, name string, args ...string) ([]byte, error)

	// LookPath reports whether a tool is installed.
	LookPath(name string) (string, error)
}

// OSRunner implements Runner using os/exec.
type OSRunner struct {
	// Env overrides environment variables (nil = inherit from parent)
	Env []string
}

func NewOSRunner() *OSRunner {
	return &OSRunner{}
}

func (r *OSRunner) command(ctx context.Context, dir, name string, args []string) *osexec.Cmd {
	cmd := osexec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if r.Env != nil {
		cmd.Env = r.Env
	}
	return cmd
}

func (r *OSRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	out, err := r.command(ctx, dir, name, args).CombinedOutput()
	if err != nil {
		return out, &CommandError{Name: name, Args: args, Output: string(out), Err: err}
	}
	return out, nil
}

func (r *OSRunner) Output(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := r.command(ctx, dir, name, args)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), &CommandError{Name: name, Args: args, Output: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}

func (r *OSRunner) LookPath(name string) (string, error) {
	return osexec.LookPath(name)
}

// CommandError reports a failed command with its trimmed output.
type CommandError struct {
	Name   string
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if len(out) > 500 {
		out = out[len(out)-500:]
	}
	if out == "" {
		return fmt.Sprintf("%s failed: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s failed: %v: %s", e.Name, e.Err, out)
}

func (e *CommandError) Unwrap() error { return e.Err }

// MockRunner implements Runner for testing.
type MockRunner struct {
	mu sync.Mutex

	// Calls records all command invocations
	Calls []MockCall

	// Responses maps a command name to its response
	Responses map[string]MockResponse

	// Missing lists tools LookPath should report as absent
	Missing map[string]bool

	// OnRun, when set, runs before the response is returned; tests use it to
	// emulate side effects such as files written by the tool.
	OnRun func(call MockCall) error
}

// MockCall records a single command invocation.
type MockCall struct {
	Name string
	Args []string
	Dir  string
}

// MockResponse defines the response for a mocked command.
type MockResponse struct {
	Stdout []byte
	Stderr []byte
	Err    error
}

func NewMockRunner() *MockRunner {
	return &MockRunner{
		Responses: make(map[string]MockResponse),
		Missing:   make(map[string]bool),
	}
}

// AddResponse sets the response for a command name.
func (m *MockRunner) AddResponse(name string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[name] = resp
}

func (m *MockRunner) record(dir, name string, args []string) (MockResponse, error) {
	m.mu.Lock()
	call := MockCall{Name: name, Args: args, Dir: dir}
	m.Calls = append(m.Calls, call)
	resp := m.Responses[name]
	hook := m.OnRun
	m.mu.Unlock()

	if hook != nil {
		if err := hook(call); err != nil {
			return resp, err
		}
	}
	return resp, resp.Err
}

func (m *MockRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	resp, err := m.record(dir, name, args)
	out := append(append([]byte{}, resp.Stdout...), resp.Stderr...)
	return out, err
}

func (m *MockRunner) Output(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	resp, err := m.record(dir, name, args)
	return resp.Stdout, err
}

func (m *MockRunner) LookPath(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Missing[name] {
		return "", fmt.Errorf("%s: %w", name, osexec.ErrNotFound)
	}
	return "/usr/bin/" + name, nil
}

// CallsTo returns the recorded calls for name.
func (m *MockRunner) CallsTo(name string) []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MockCall
	for _, c := range m.Calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

var (
	_ Runner = (*OSRunner)(nil)
	_ Runner = (*MockRunner)(nil)
)
