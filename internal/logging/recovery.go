package logging

import (
	"fmt"
	"runtime/debug"
)

// RecoveryHandler converts panics into errors and logs the stack.
// The stack never leaves the log: callers only see the panic value.
type RecoveryHandler struct {
	Component string
	OnPanic   func(err any, stack string)
	log       *Logger
}

// NewRecoveryHandler creates a recovery handler for a component
func NewRecoveryHandler(component string) *RecoveryHandler {
	return &RecoveryHandler{
		Component: component,
		log:       New(component),
	}
}

// WrapError executes fn with panic recovery, returning error on panic
func (r *RecoveryHandler) WrapError(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = r.handlePanic(rec, string(debug.Stack()))
		}
	}()
	return fn()
}

func (r *RecoveryHandler) handlePanic(rec any, stack string) error {
	r.log.Error("panic_recovered", map[string]any{
		"stack":     stack,
		"recovered": true,
	}, fmt.Errorf("%v", rec))

	if r.OnPanic != nil {
		r.OnPanic(rec, stack)
	}
	return &PanicError{Component: r.Component, Value: rec}
}

// PanicError reports a recovered panic.
type PanicError struct {
	Component string
	Value     any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Component, e.Value)
}
