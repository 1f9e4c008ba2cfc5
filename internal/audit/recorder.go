package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DropObserver is notified whenever an event could not be recorded.
type DropObserver interface {
	ObserveAuditDrop(module string)
}

// RecorderConfig tunes a Recorder.
type RecorderConfig struct {
	// Timeout bounds a single append. Zero leaves the caller's deadline alone.
	Timeout  time.Duration
	Observer DropObserver
}

// Recorder appends audit events on a best-effort basis. Record never returns
// an error and never panics; failures are logged and the event is dropped.
type Recorder struct {
	sink     Sink
	logger   *slog.Logger
	timeout  time.Duration
	observer DropObserver
	now      func() time.Time
}

// NewRecorder constructs a Recorder writing to sink.
func NewRecorder(sink Sink, logger *slog.Logger, cfg RecorderConfig) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		sink:     sink,
		logger:   logger,
		timeout:  cfg.Timeout,
		observer: cfg.Observer,
		now:      time.Now,
	}
}

// Record appends one event. actorID is nil for system or unauthenticated actions.
func (r *Recorder) Record(ctx context.Context, actorID *uuid.UUID, action, module string, detail Detail) {
	if r == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.drop(ctx, action, module, fmt.Errorf("audit: sink panic: %v", p))
		}
	}()
	if r.sink == nil {
		r.drop(ctx, action, module, fmt.Errorf("audit: sink not configured"))
		return
	}

	event, err := NewEvent(actorID, action, module, detail, r.now())
	if err != nil {
		r.drop(ctx, action, module, err)
		return
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := r.sink.Append(ctx, event); err != nil {
		r.drop(ctx, action, module, err)
	}
}

func (r *Recorder) drop(ctx context.Context, action, module string, err error) {
	r.logger.WarnContext(ctx, "audit record dropped",
		slog.String("action", action),
		slog.String("module", module),
		slog.Any("error", err))
	if r.observer != nil {
		r.observer.ObserveAuditDrop(module)
	}
}
