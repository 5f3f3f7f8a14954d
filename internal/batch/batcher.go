// Package batch drives the inline execution mode: it partitions a
// selection into fixed-size chunks, loads each chunk in one batched
// fetch, applies the callback per record with isolated failure
// handling, and emits cumulative progress after each chunk.
package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bulkproc/bulkproc/internal/entity"
)

// DefaultChunkSize is the number of records per chunk when the caller
// does not specify one.
const DefaultChunkSize = 10

// Common batch errors.
var (
	ErrInvalidChunkSize = errors.New("chunk size must be at least 1")
	ErrEmptySelection   = errors.New("selection must not be empty")
)

// Chunks partitions ids into ordered, non-overlapping slices of at most
// size elements. Concatenating the chunks in order reproduces ids
// exactly; every chunk except possibly the last has exactly size
// elements.
func Chunks(ids []entity.ID, size int) ([][]entity.ID, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, size)
	}

	total := len(ids)
	count := total / size
	if total%size > 0 {
		count++
	}

	chunks := make([][]entity.ID, 0, count)
	for start := 0; start < total; start += size {
		end := start + size
		if end > total {
			end = total
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks, nil
}

// Runner executes a selection inline, one chunk at a time, one record
// at a time within a chunk. The sequential design means no locking on
// the aggregate; chunking exists for progress granularity and bounded
// memory, not parallelism.
type Runner struct {
	store      entity.Store
	callbacks  *entity.Registry
	chunkSize  int
	onProgress ProgressFunc
	log        zerolog.Logger
}

// NewRunner creates a runner. A chunkSize below 1 is rejected.
func NewRunner(store entity.Store, callbacks *entity.Registry, chunkSize int, log zerolog.Logger) (*Runner, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, chunkSize)
	}
	return &Runner{
		store:     store,
		callbacks: callbacks,
		chunkSize: chunkSize,
		log:       log,
	}, nil
}

// WithProgress sets a progress callback invoked after each chunk.
func (r *Runner) WithProgress(fn ProgressFunc) *Runner {
	r.onProgress = fn
	return r
}

// ChunkSize returns the configured chunk size.
func (r *Runner) ChunkSize() int {
	return r.chunkSize
}

// Run applies callbackRef to every record in ids and returns the final
// aggregate.
//
// Per-record failures never abort the run: an unresolvable callback or
// a false callback result increments the error count, is logged with
// the record's type and ID, and the run continues. A chunk whose
// batched load fails is logged and skipped; its records are not
// counted. IDs missing from a load result are silently absent. At run
// end, Success+Errors equals the number of records actually loaded and
// attempted.
//
// Cancellation is honored only at chunk boundaries: the context is
// checked before each chunk, never mid-chunk.
func (r *Runner) Run(ctx context.Context, ids []entity.ID, entityType, callbackRef string) (Aggregate, error) {
	var agg Aggregate

	if len(ids) == 0 {
		return agg, ErrEmptySelection
	}

	chunks, err := Chunks(ids, r.chunkSize)
	if err != nil {
		return agg, err
	}

	total := len(ids)
	processed := 0

	for i, chunk := range chunks {
		select {
		case <-ctx.Done():
			return agg, ctx.Err()
		default:
		}

		records, err := r.store.Load(ctx, entityType, chunk)
		if err != nil {
			r.log.Error().Ctx(ctx).
				Str("entity_type", entityType).
				Int("chunk", i+1).
				Err(err).
				Msg("chunk load failed, skipping chunk")
			processed += len(chunk)
			r.notify(processed, total, i+1, len(chunks))
			continue
		}

		for _, id := range chunk {
			rec, ok := records[id]
			if !ok {
				// Missing IDs are absent from the store, not errors.
				r.log.Debug().Ctx(ctx).
					Str("entity_type", entityType).
					Int64("id", int64(id)).
					Msg("record no longer exists, skipped")
				continue
			}

			op, err := entity.Prepare(r.callbacks, entityType, rec, callbackRef)
			if err != nil {
				agg.Errors++
				r.log.Error().Ctx(ctx).
					Str("entity_type", entityType).
					Int64("id", int64(id)).
					Err(err).
					Msg("callback preparation failed")
				continue
			}

			if op.Execute(ctx) {
				agg.Success++
			} else {
				agg.Errors++
				r.log.Warn().Ctx(ctx).
					Str("entity_type", entityType).
					Int64("id", int64(id)).
					Str("callback", callbackRef).
					Msg("callback reported failure")
			}
		}

		processed += len(chunk)
		r.notify(processed, total, i+1, len(chunks))
	}

	return agg, nil
}

func (r *Runner) notify(processed, total, chunk, totalChunks int) {
	if r.onProgress == nil {
		return
	}
	r.onProgress(Progress{
		Processed:   processed,
		Total:       total,
		Chunk:       chunk,
		TotalChunks: totalChunks,
	})
}
