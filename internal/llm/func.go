package llm

import (
	"context"
	"sync"
)

// Func adapts a function to Backend.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Recorder wraps a Backend and records every prompt sent through it.
type Recorder struct {
	Backend Backend

	mu      sync.Mutex
	prompts []string
}

func (r *Recorder) Complete(ctx context.Context, prompt string) (string, error) {
	r.mu.Lock()
	r.prompts = append(r.prompts, prompt)
	r.mu.Unlock()
	return r.Backend.Complete(ctx, prompt)
}

// Prompts returns a copy of the recorded prompts.
func (r *Recorder) Prompts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.prompts...)
}

var (
	_ Backend = Func(nil)
	_ Backend = (*Recorder)(nil)
)
