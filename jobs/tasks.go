package jobs

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/station2100/station/internal/audit"
	jobmetrics "github.com/station2100/station/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueAudit carries audit:append tasks.
	QueueAudit = audit.QueueName
)

// queueWeights gives audit delivery priority over everything else.
var queueWeights = map[string]int{
	QueueAudit:   6,
	QueueDefault: 1,
}

// Tracked wraps handler so each run is recorded under the task type.
func Tracked(metrics *jobmetrics.Metrics, handler asynq.HandlerFunc) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		return metrics.Track(t.Type()).End(handler(ctx, t))
	}
}

// AuditHandler returns the tracked handler draining audit:append into sink.
func AuditHandler(sink audit.Sink, metrics *jobmetrics.Metrics) TaskHandler {
	return TaskHandler{Type: audit.TaskAppend, Handler: Tracked(metrics, audit.NewAppendHandler(sink))}
}
