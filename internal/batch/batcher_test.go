package batch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulkproc/bulkproc/internal/batch"
	"github.com/bulkproc/bulkproc/internal/entity"
)

// flakyStore returns only the records it holds and can be told to fail
// whole loads.
type flakyStore struct {
	records  map[entity.ID]entity.Record
	failLoad bool
	loads    int
}

func (s *flakyStore) Load(_ context.Context, entityType string, ids []entity.ID) (map[entity.ID]entity.Record, error) {
	s.loads++
	if s.failLoad {
		return nil, errors.New("store down")
	}
	out := make(map[entity.ID]entity.Record)
	for _, id := range ids {
		if rec, ok := s.records[id]; ok && rec.Type == entityType {
			out[id] = rec
		}
	}
	return out, nil
}

func seqIDs(n int) []entity.ID {
	ids := make([]entity.ID, n)
	for i := range ids {
		ids[i] = entity.ID(i + 1)
	}
	return ids
}

func seqStore(n int) *flakyStore {
	records := make(map[entity.ID]entity.Record, n)
	for _, id := range seqIDs(n) {
		records[id] = entity.Record{ID: id, Type: "node"}
	}
	return &flakyStore{records: records}
}

func TestChunks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		n         int
		size      int
		wantSizes []int
	}{
		{name: "exact multiple", n: 20, size: 10, wantSizes: []int{10, 10}},
		{name: "trailing partial", n: 57, size: 25, wantSizes: []int{25, 25, 7}},
		{name: "single undersized chunk", n: 2, size: 10, wantSizes: []int{2}},
		{name: "size one", n: 3, size: 1, wantSizes: []int{1, 1, 1}},
		{name: "empty", n: 0, size: 10, wantSizes: []int{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ids := seqIDs(tt.n)
			chunks, err := batch.Chunks(ids, tt.size)
			require.NoError(t, err)
			require.Len(t, chunks, len(tt.wantSizes))

			// Concatenating the chunks must reproduce the input exactly.
			var flat []entity.ID
			for i, chunk := range chunks {
				assert.Len(t, chunk, tt.wantSizes[i])
				flat = append(flat, chunk...)
			}
			if tt.n > 0 {
				assert.Equal(t, ids, flat)
			} else {
				assert.Empty(t, flat)
			}
		})
	}
}

func TestChunksInvalidSize(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, -1} {
		_, err := batch.Chunks(seqIDs(5), size)
		assert.ErrorIs(t, err, batch.ErrInvalidChunkSize)
	}
}

func TestRunnerAggregate(t *testing.T) {
	t.Parallel()

	reg := entity.NewRegistry()
	require.NoError(t, reg.Register("save", func(_ context.Context, _ string, rec entity.Record) bool {
		// Odd IDs succeed, even IDs fail.
		return rec.ID%2 == 1
	}))

	store := seqStore(7)
	runner, err := batch.NewRunner(store, reg, 3, zerolog.Nop())
	require.NoError(t, err)

	agg, err := runner.Run(context.Background(), seqIDs(7), "node", "save")
	require.NoError(t, err)

	assert.Equal(t, 4, agg.Success)
	assert.Equal(t, 3, agg.Errors)
	assert.Equal(t, 7, agg.Total(), "Success+Errors must equal records attempted")
	assert.Equal(t, 3, store.loads, "one batched load per chunk")
}

func TestRunnerInvalidCallbackIsolated(t *testing.T) {
	t.Parallel()

	// No callbacks registered: every record fails preparation but the
	// run still visits all chunks.
	store := seqStore(5)
	runner, err := batch.NewRunner(store, entity.NewRegistry(), 2, zerolog.Nop())
	require.NoError(t, err)

	agg, err := runner.Run(context.Background(), seqIDs(5), "node", "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, agg.Success)
	assert.Equal(t, 5, agg.Errors)
	assert.Equal(t, 3, store.loads)
}

func TestRunnerMissingRecordsSkipped(t *testing.T) {
	t.Parallel()

	reg := entity.NewRegistry()
	require.NoError(t, reg.Register("save", func(context.Context, string, entity.Record) bool { return true }))

	// Store holds 3 of the 5 requested records.
	store := seqStore(3)
	runner, err := batch.NewRunner(store, reg, 10, zerolog.Nop())
	require.NoError(t, err)

	agg, err := runner.Run(context.Background(), seqIDs(5), "node", "save")
	require.NoError(t, err)
	assert.Equal(t, 3, agg.Success, "missing IDs are silently absent")
	assert.Equal(t, 0, agg.Errors)
}

func TestRunnerLoadFailureSkipsChunkOnly(t *testing.T) {
	t.Parallel()

	reg := entity.NewRegistry()
	require.NoError(t, reg.Register("save", func(context.Context, string, entity.Record) bool { return true }))

	store := seqStore(4)
	store.failLoad = true
	runner, err := batch.NewRunner(store, reg, 2, zerolog.Nop())
	require.NoError(t, err)

	agg, err := runner.Run(context.Background(), seqIDs(4), "node", "save")
	require.NoError(t, err, "load failures do not abort the run")
	assert.Equal(t, 0, agg.Total(), "unloaded records are not counted")
	assert.Equal(t, 2, store.loads, "remaining chunks still attempted")
}

func TestRunnerProgress(t *testing.T) {
	t.Parallel()

	reg := entity.NewRegistry()
	require.NoError(t, reg.Register("save", func(context.Context, string, entity.Record) bool { return true }))

	runner, err := batch.NewRunner(seqStore(57), reg, 25, zerolog.Nop())
	require.NoError(t, err)

	var snapshots []batch.Progress
	runner.WithProgress(func(p batch.Progress) {
		snapshots = append(snapshots, p)
	})

	_, err = runner.Run(context.Background(), seqIDs(57), "node", "save")
	require.NoError(t, err)

	require.Len(t, snapshots, 3)
	assert.Equal(t, []int{25, 50, 57}, []int{snapshots[0].Processed, snapshots[1].Processed, snapshots[2].Processed})
	assert.Equal(t, []int{44, 88, 100}, []int{snapshots[0].Percent(), snapshots[1].Percent(), snapshots[2].Percent()})

	// Cumulative and monotone, ending at exactly 100.
	for i := 1; i < len(snapshots); i++ {
		assert.GreaterOrEqual(t, snapshots[i].Percent(), snapshots[i-1].Percent())
	}
	assert.Equal(t, 100, snapshots[len(snapshots)-1].Percent())
}

func TestRunnerEmptySelection(t *testing.T) {
	t.Parallel()

	runner, err := batch.NewRunner(seqStore(0), entity.NewRegistry(), 10, zerolog.Nop())
	require.NoError(t, err)

	_, err = runner.Run(context.Background(), nil, "node", "save")
	assert.ErrorIs(t, err, batch.ErrEmptySelection)
}

func TestRunnerCancelledBetweenChunks(t *testing.T) {
	t.Parallel()

	reg := entity.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, reg.Register("save", func(context.Context, string, entity.Record) bool {
		cancel() // cancel during the first chunk
		return true
	}))

	store := seqStore(6)
	runner, err := batch.NewRunner(store, reg, 2, zerolog.Nop())
	require.NoError(t, err)

	agg, err := runner.Run(ctx, seqIDs(6), "node", "save")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, agg.Total(), "the in-flight chunk completes before cancellation is observed")
	assert.Equal(t, 1, store.loads)
}

func TestNewRunnerInvalidChunkSize(t *testing.T) {
	t.Parallel()

	_, err := batch.NewRunner(seqStore(0), entity.NewRegistry(), 0, zerolog.Nop())
	assert.ErrorIs(t, err, batch.ErrInvalidChunkSize)
}
