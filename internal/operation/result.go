package operation

import "time"

// Status values reported to callers.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the normalized outcome of one task.
type Result struct {
	TaskID    string        `json:"task_id,omitempty"`
	Operation ID            `json:"operation,omitempty"`
	Status    string        `json:"status"`
	Output    string        `json:"output"`
	Kind      Kind          `json:"kind,omitempty"`
	Duration  time.Duration `json:"-"`
}

// Succeeded builds a success result.
func Succeeded(id ID, output string) Result {
	return Result{Operation: id, Status: StatusSuccess, Output: output}
}

// Failed builds a failure result from err. Only the error message is kept.
func Failed(id ID, err error) Result {
	return Result{Operation: id, Status: StatusError, Output: err.Error(), Kind: KindOf(err)}
}

// OK reports whether the result is a success.
func (r Result) OK() bool { return r.Status == StatusSuccess }
