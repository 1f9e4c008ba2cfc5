package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// TaskAppend is the asynq task type carrying one serialised Event.
	TaskAppend = "audit:append"
	// QueueName is the asynq queue audit tasks are enqueued on.
	QueueName = "audit"
)

// Enqueuer submits tasks to asynq.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueSink hands events to the worker instead of writing them inline.
// Events keep their ID, so a retried task never duplicates a row.
type QueueSink struct {
	client   Enqueuer
	maxRetry int
}

// NewQueueSink constructs a QueueSink.
func NewQueueSink(client Enqueuer) *QueueSink {
	return &QueueSink{client: client, maxRetry: 5}
}

// NewAppendTask wraps event in an asynq task.
func NewAppendTask(event Event) (*asynq.Task, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("audit: encode task: %w", err)
	}
	return asynq.NewTask(TaskAppend, payload), nil
}

// Append enqueues the event.
func (s *QueueSink) Append(ctx context.Context, event Event) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("audit: queue not configured")
	}
	task, err := NewAppendTask(event)
	if err != nil {
		return err
	}
	if _, err := s.client.EnqueueContext(ctx, task, asynq.Queue(QueueName), asynq.MaxRetry(s.maxRetry)); err != nil {
		return fmt.Errorf("audit: enqueue: %w", err)
	}
	return nil
}

// NewAppendHandler returns the worker handler draining TaskAppend into sink.
// Undecodable payloads are not retried.
func NewAppendHandler(sink Sink) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var event Event
		if err := json.Unmarshal(t.Payload(), &event); err != nil {
			return fmt.Errorf("audit: decode task: %v: %w", err, asynq.SkipRetry)
		}
		if event.Action == "" || event.Module == "" {
			return fmt.Errorf("audit: %v: %w", errInvalidEvent, asynq.SkipRetry)
		}
		if event.Detail == nil {
			event.Detail = Detail{}
		}
		return sink.Append(ctx, event)
	}
}
