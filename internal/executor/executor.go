// Package executor runs catalog operations with failure isolation and
// bounded concurrency.
package executor

import (
	"context"
	"time"

	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/logging"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/metrics"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/operation"
)

// Executor invokes operation handlers. Whatever a handler does (error,
// panic) comes back as an operation.Result; nothing escapes Run.
type Executor struct {
	catalog  *operation.Catalog
	metrics  *metrics.Metrics
	recovery *logging.RecoveryHandler
	log      *logging.Logger
}

func New(catalog *operation.Catalog, m *metrics.Metrics) *Executor {
	if m == nil {
		m = metrics.New()
	}
	return &Executor{
		catalog:  catalog,
		metrics:  m,
		recovery: logging.NewRecoveryHandler("executor"),
		log:      logging.New("executor"),
	}
}

// Run executes operation id. Empty params are re-derived from task with the
// operation's extractor. The handler is not cancelled by ctx once started.
func (e *Executor) Run(ctx context.Context, id operation.ID, task string, params operation.Params) operation.Result {
	start := time.Now()
	log := e.log.FromContext(ctx).With("operation", string(id))

	spec, err := e.catalog.Lookup(id)
	if err != nil {
		return e.finish(log, operation.Failed(id, err), start)
	}
	var out string
	hctx := context.WithoutCancel(ctx)
	err = e.recovery.WrapError(func() error {
		if len(params) == 0 {
			params = spec.Params(task)
		}
		log.Info("executing", map[string]any{"params": params, "effects": spec.Effects.String()})

		var herr error
		out, herr = spec.Handle(hctx, params)
		return herr
	})
	if err != nil {
		return e.finish(log, operation.Failed(id, err), start)
	}
	return e.finish(log, operation.Succeeded(id, out), start)
}

func (e *Executor) finish(log *logging.Logger, res operation.Result, start time.Time) operation.Result {
	res.Duration = time.Since(start)
	e.metrics.RecordTask(string(res.Operation), string(res.Kind), res.Duration)
	if res.OK() {
		log.TimedEvent("succeeded", start, nil)
	} else {
		log.Warn("failed", map[string]any{"kind": res.Kind, "duration_ms": res.Duration.Milliseconds()}, nil)
	}
	return res
}
