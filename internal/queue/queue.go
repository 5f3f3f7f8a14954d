// Package queue implements the deferred execution mode: a durable,
// pebble-backed work queue, a sink that turns a selection into queued
// work items, and a consumer that drains them.
package queue

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/bulkproc/bulkproc/internal/entity"
)

// WorkItem is one durable unit of deferred work: a (record, callback)
// pairing. The callback is carried by name; if the callback registry
// changes between enqueue and consume time, the consumer counts the
// item as a per-record error.
type WorkItem struct {
	EntityType string    `json:"entity_type"`
	ID         entity.ID `json:"id"`
	Callback   string    `json:"callback"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queued is a dequeued item together with its storage key, which the
// consumer passes back to Ack once the item is processed.
type Queued struct {
	Key  string
	Item WorkItem
}

// Queue is a durable work queue on a pebble database. Items are stored
// under keys of the form queue:<name>:item:<ulid>; ULIDs are generated
// monotonically, so iteration order is enqueue order. Delivery is
// at-least-once: items are removed only by Ack, and a crash between
// processing and Ack redelivers.
type Queue struct {
	db  *pebble.DB
	log zerolog.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Open opens (or creates) the queue database at path.
func Open(path string, log zerolog.Logger) (*Queue, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", entity.ErrQueueUnavailable, path, err)
	}
	log.Debug().Str("path", path).Msg("queue database opened")
	return &Queue{
		db:      db,
		log:     log,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// Close closes the queue database.
func (q *Queue) Close() error {
	return q.db.Close()
}

// EnsureExists creates the named queue if it does not already exist.
// Safe to call on a pre-existing queue.
func (q *Queue) EnsureExists(name string) error {
	key := metaKey(name)
	_, closer, err := q.db.Get(key)
	if err == nil {
		return closer.Close()
	}
	if err != pebble.ErrNotFound {
		return fmt.Errorf("%w: reading queue %q: %v", entity.ErrQueueUnavailable, name, err)
	}

	meta, _ := json.Marshal(map[string]string{"created_at": time.Now().UTC().Format(time.RFC3339)})
	if err := q.db.Set(key, meta, pebble.Sync); err != nil {
		return fmt.Errorf("%w: creating queue %q: %v", entity.ErrQueueUnavailable, name, err)
	}
	q.log.Debug().Str("queue", name).Msg("queue created")
	return nil
}

// Enqueue appends one work item to the named queue.
func (q *Queue) Enqueue(name string, item WorkItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encoding work item: %w", err)
	}

	key := itemKey(name, q.nextULID())
	if err := q.db.Set([]byte(key), data, pebble.Sync); err != nil {
		return fmt.Errorf("%w: enqueuing to %q: %v", entity.ErrQueueUnavailable, name, err)
	}
	return nil
}

// Dequeue returns up to limit items from the head of the named queue
// without removing them. Items stay queued until Ack.
func (q *Queue) Dequeue(name string, limit int) ([]Queued, error) {
	lower, upper := itemBounds(name)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("%w: iterating queue %q: %v", entity.ErrQueueUnavailable, name, err)
	}
	defer iter.Close()

	var out []Queued
	for valid := iter.First(); valid && len(out) < limit; valid = iter.Next() {
		var item WorkItem
		if err := json.Unmarshal(iter.Value(), &item); err != nil {
			return nil, fmt.Errorf("decoding work item %s: %w", iter.Key(), err)
		}
		out = append(out, Queued{Key: string(iter.Key()), Item: item})
	}
	return out, iter.Error()
}

// Ack removes a processed item from the queue.
func (q *Queue) Ack(key string) error {
	if err := q.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("%w: acking %s: %v", entity.ErrQueueUnavailable, key, err)
	}
	return nil
}

// Len returns the number of items currently in the named queue.
func (q *Queue) Len(name string) (int, error) {
	lower, upper := itemBounds(name)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return 0, fmt.Errorf("%w: iterating queue %q: %v", entity.ErrQueueUnavailable, name, err)
	}
	defer iter.Close()

	n := 0
	for valid := iter.First(); valid; valid = iter.Next() {
		n++
	}
	return n, iter.Error()
}

func (q *Queue) nextULID() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), q.entropy).String()
}

func metaKey(name string) []byte {
	return []byte(fmt.Sprintf("queue:%s:meta", name))
}

func itemKey(name, id string) string {
	return fmt.Sprintf("queue:%s:item:%s", name, id)
}

// itemBounds returns the [lower, upper) key range holding the named
// queue's items.
func itemBounds(name string) (lower, upper []byte) {
	prefix := fmt.Sprintf("queue:%s:item:", name)
	lower = []byte(prefix)
	upper = make([]byte, len(lower))
	copy(upper, lower)
	upper[len(upper)-1]++
	return lower, upper
}
