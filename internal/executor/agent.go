package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/classifier"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/logging"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/metrics"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/operation"
)

// Agent turns task text into an executed operation.
type Agent struct {
	classifier *classifier.Classifier
	executor   *Executor
	pool       *Pool
	metrics    *metrics.Metrics
	recovery   *logging.RecoveryHandler
	log        *logging.Logger
}

func NewAgent(c *classifier.Classifier, e *Executor, p *Pool, m *metrics.Metrics) *Agent {
	if m == nil {
		m = metrics.New()
	}
	return &Agent{
		classifier: c,
		executor:   e,
		pool:       p,
		metrics:    m,
		recovery:   logging.NewRecoveryHandler("classifier"),
		log:        logging.New("agent"),
	}
}

// NewTaskID returns a sortable unique task identifier.
func NewTaskID() string {
	return ulid.Make().String()
}

// Handle classifies task and executes the chosen operation in a worker slot.
func (a *Agent) Handle(ctx context.Context, task string) operation.Result {
	return a.handle(ctx, task, "")
}

// HandleAs executes operation id for task, skipping classification.
func (a *Agent) HandleAs(ctx context.Context, id operation.ID, task string) operation.Result {
	return a.handle(ctx, task, id)
}

func (a *Agent) handle(ctx context.Context, task string, forced operation.ID) operation.Result {
	taskID := NewTaskID()
	log := a.log.FromContext(ctx).With("task_id", taskID)

	task = strings.TrimSpace(task)
	if task == "" {
		res := operation.Failed("", operation.ErrEmptyTask)
		res.TaskID = taskID
		return res
	}
	log.Info("received", map[string]any{"task": truncate(task, 200)})

	var res operation.Result
	err := a.pool.Do(ctx, func(ctx context.Context) {
		id, params := forced, operation.Params(nil)
		if id == "" {
			var cl classifier.Classification
			err := a.recovery.WrapError(func() error {
				var cerr error
				cl, cerr = a.classifier.Classify(ctx, task)
				return cerr
			})
			if err != nil {
				if operation.KindOf(err) == operation.KindClassificationUnavailable {
					a.metrics.RecordClassification("unavailable")
				}
				log.Warn("classification_failed", nil, err)
				res = operation.Failed("", err)
				return
			}
			a.metrics.RecordClassification(string(cl.Source))
			id, params = cl.ID, cl.Params
		}
		log.Info("classified", map[string]any{"operation": id})
		res = a.executor.Run(ctx, id, task, params)
	})
	if err != nil {
		res = operation.Failed("", fmt.Errorf("waiting for a worker: %w", err))
	}
	res.TaskID = taskID
	return res
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
