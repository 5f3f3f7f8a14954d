package queue_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulkproc/bulkproc/internal/entity"
	"github.com/bulkproc/bulkproc/internal/queue"
	"github.com/bulkproc/bulkproc/internal/store"
)

func consumerFixture(t *testing.T, n int) (*queue.Queue, *store.Memory, *entity.Registry) {
	t.Helper()

	q := openQueue(t)
	mem := store.NewMemory()
	mem.AddType("node", "article")
	for i := 1; i <= n; i++ {
		require.NoError(t, mem.Put(entity.Record{
			ID:     entity.ID(i),
			Type:   "node",
			Bundle: "article",
		}))
	}
	return q, mem, entity.NewRegistry()
}

func TestConsumerDrain(t *testing.T) {
	t.Parallel()

	q, mem, reg := consumerFixture(t, 10)

	var mu sync.Mutex
	seen := make(map[entity.ID]int)
	require.NoError(t, reg.Register("save", func(_ context.Context, _ string, rec entity.Record) bool {
		mu.Lock()
		seen[rec.ID]++
		mu.Unlock()
		return rec.ID != 7 // one callback-reported failure
	}))

	sink := queue.NewSink(q, "work", zerolog.Nop())
	var ids []entity.ID
	for i := 1; i <= 10; i++ {
		ids = append(ids, entity.ID(i))
	}
	_, err := sink.EnqueueAll(context.Background(), ids, "node", "save")
	require.NoError(t, err)

	consumer := queue.NewConsumer(q, "work", mem, reg, 4, zerolog.Nop())
	agg, err := consumer.Drain(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 9, agg.Success)
	assert.Equal(t, 1, agg.Errors)
	assert.Len(t, seen, 10, "every item consumed exactly once")

	n, err := q.Len("work")
	require.NoError(t, err)
	assert.Zero(t, n, "drained queue is empty")
}

func TestConsumerUnknownCallbackCounted(t *testing.T) {
	t.Parallel()

	q, mem, reg := consumerFixture(t, 2)

	sink := queue.NewSink(q, "work", zerolog.Nop())
	_, err := sink.EnqueueAll(context.Background(), []entity.ID{1, 2}, "node", "gone")
	require.NoError(t, err)

	// The callback name travelled into durable storage but is no longer
	// registered at consume time: each item counts as an error and the
	// drain completes.
	consumer := queue.NewConsumer(q, "work", mem, reg, 2, zerolog.Nop())
	agg, err := consumer.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, agg.Success)
	assert.Equal(t, 2, agg.Errors)

	n, err := q.Len("work")
	require.NoError(t, err)
	assert.Zero(t, n, "failed items are still acked, failure is terminal")
}

func TestConsumerMissingRecordCounted(t *testing.T) {
	t.Parallel()

	q, mem, reg := consumerFixture(t, 1)
	require.NoError(t, reg.Register("save", func(context.Context, string, entity.Record) bool { return true }))

	sink := queue.NewSink(q, "work", zerolog.Nop())
	_, err := sink.EnqueueAll(context.Background(), []entity.ID{1, 99}, "node", "save")
	require.NoError(t, err)

	consumer := queue.NewConsumer(q, "work", mem, reg, 2, zerolog.Nop())
	agg, err := consumer.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, agg.Success)
	assert.Equal(t, 1, agg.Errors, "record deleted after enqueue counts as an error")
}

func TestConsumerEmptyQueue(t *testing.T) {
	t.Parallel()

	q, mem, reg := consumerFixture(t, 0)

	consumer := queue.NewConsumer(q, "work", mem, reg, 2, zerolog.Nop())
	agg, err := consumer.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, agg.Total())
}
