package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bulkproc/bulkproc/internal/entity"
)

// Sink is the deferred-mode alternative to the inline runner: it wraps
// each selected ID into a WorkItem and hands it to the durable queue.
// It never executes callbacks itself.
type Sink struct {
	queue *Queue
	name  string
	log   zerolog.Logger
}

// NewSink creates a sink writing to the named queue.
func NewSink(q *Queue, name string, log zerolog.Logger) *Sink {
	return &Sink{queue: q, name: name, log: log}
}

// EnqueueAll ensures the queue exists, then enqueues one WorkItem per
// ID in input order, and returns the number enqueued.
//
// A queue failure is fatal to the call with no rollback of items
// already enqueued; the returned count says how far it got. Re-running
// EnqueueAll for the same IDs is the documented recovery path, so
// consumers must tolerate duplicate items (idempotent callbacks).
func (s *Sink) EnqueueAll(ctx context.Context, ids []entity.ID, entityType, callbackRef string) (int, error) {
	if err := s.queue.EnsureExists(s.name); err != nil {
		return 0, err
	}

	for i, id := range ids {
		item := WorkItem{
			EntityType: entityType,
			ID:         id,
			Callback:   callbackRef,
			EnqueuedAt: time.Now().UTC(),
		}
		if err := s.queue.Enqueue(s.name, item); err != nil {
			s.log.Error().Ctx(ctx).
				Str("queue", s.name).
				Str("entity_type", entityType).
				Int64("id", int64(id)).
				Int("enqueued", i).
				Err(err).
				Msg("enqueue failed, already-enqueued items remain")
			return i, err
		}
	}

	s.log.Info().Ctx(ctx).
		Str("queue", s.name).
		Str("entity_type", entityType).
		Str("callback", callbackRef).
		Int("count", len(ids)).
		Msg("selection enqueued")
	return len(ids), nil
}
