package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	"github.com/bulkproc/bulkproc/internal/batch"
	"github.com/bulkproc/bulkproc/internal/entity"
)

// dequeueBatch is how many items the consumer claims per queue read.
const dequeueBatch = 64

// Consumer drains a queue, executing each WorkItem's callback against
// its record. Items are independent, so the consumer is free to process
// them concurrently and out of enqueue order.
type Consumer struct {
	queue     *Queue
	name      string
	store     entity.Store
	callbacks *entity.Registry
	workers   int
	log       zerolog.Logger
}

// NewConsumer creates a consumer for the named queue. workers below 1
// is treated as 1.
func NewConsumer(q *Queue, name string, store entity.Store, callbacks *entity.Registry, workers int, log zerolog.Logger) *Consumer {
	if workers < 1 {
		workers = 1
	}
	return &Consumer{
		queue:     q,
		name:      name,
		store:     store,
		callbacks: callbacks,
		workers:   workers,
		log:       log,
	}
}

// Drain processes queued items until the queue is empty, then returns
// the aggregate. Per-item failures (record gone, unresolvable callback,
// callback-reported failure) are counted and logged but never abort the
// drain; every claimed item is acked, so a failure is terminal for that
// item. Queue-level failures abort the drain.
func (c *Consumer) Drain(ctx context.Context) (batch.Aggregate, error) {
	var agg batch.Aggregate

	pool, err := ants.NewPool(c.workers)
	if err != nil {
		return agg, fmt.Errorf("creating consumer pool: %w", err)
	}
	defer pool.Release()

	var mu sync.Mutex

	for {
		select {
		case <-ctx.Done():
			return agg, ctx.Err()
		default:
		}

		items, err := c.queue.Dequeue(c.name, dequeueBatch)
		if err != nil {
			return agg, err
		}
		if len(items) == 0 {
			break
		}

		var wg sync.WaitGroup
		for _, queued := range items {
			wg.Add(1)
			q := queued
			submitErr := pool.Submit(func() {
				defer wg.Done()
				ok := c.process(ctx, q.Item)
				mu.Lock()
				if ok {
					agg.Success++
				} else {
					agg.Errors++
				}
				mu.Unlock()
			})
			if submitErr != nil {
				wg.Done()
				return agg, fmt.Errorf("submitting work item: %w", submitErr)
			}
		}
		wg.Wait()

		for _, queued := range items {
			if err := c.queue.Ack(queued.Key); err != nil {
				return agg, err
			}
		}
	}

	c.log.Info().Ctx(ctx).
		Str("queue", c.name).
		Int("success", agg.Success).
		Int("errors", agg.Errors).
		Msg("queue drained")
	return agg, nil
}

// process runs one work item and reports its success. An item whose
// record has been deleted since enqueue counts as an error: unlike the
// inline runner, the operator already paid for the deferred work.
func (c *Consumer) process(ctx context.Context, item WorkItem) bool {
	records, err := c.store.Load(ctx, item.EntityType, []entity.ID{item.ID})
	if err != nil {
		c.log.Error().Ctx(ctx).
			Str("entity_type", item.EntityType).
			Int64("id", int64(item.ID)).
			Err(err).
			Msg("work item load failed")
		return false
	}

	rec, ok := records[item.ID]
	if !ok {
		c.log.Warn().Ctx(ctx).
			Str("entity_type", item.EntityType).
			Int64("id", int64(item.ID)).
			Msg("work item record no longer exists")
		return false
	}

	op, err := entity.Prepare(c.callbacks, item.EntityType, rec, item.Callback)
	if err != nil {
		c.log.Error().Ctx(ctx).
			Str("entity_type", item.EntityType).
			Int64("id", int64(item.ID)).
			Err(err).
			Msg("work item callback preparation failed")
		return false
	}

	if !op.Execute(ctx) {
		c.log.Warn().Ctx(ctx).
			Str("entity_type", item.EntityType).
			Int64("id", int64(item.ID)).
			Str("callback", item.Callback).
			Msg("work item callback reported failure")
		return false
	}
	return true
}
