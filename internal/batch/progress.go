package batch

// percentMultiplier converts a ratio to a percentage (0-100).
const percentMultiplier = 100

// Progress is a cumulative snapshot emitted after each chunk completes.
type Progress struct {
	// Processed is the number of selected IDs attempted so far,
	// cumulative across chunks.
	Processed int

	// Total is the number of selected IDs in the run.
	Total int

	// Chunk is the 1-based index of the chunk that just completed.
	Chunk int

	// TotalChunks is the number of chunks in the run.
	TotalChunks int
}

// Percent returns the cumulative completion percentage, rounded
// half-up. It is monotonically non-decreasing across chunks and reaches
// exactly 100 after the final chunk.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	// Integer round-half-up of 100*Processed/Total.
	return (2*percentMultiplier*p.Processed + p.Total) / (2 * p.Total)
}

// ProgressFunc receives a progress snapshot after each chunk. A nil
// ProgressFunc disables progress reporting.
type ProgressFunc func(Progress)

// Aggregate is the run-wide success/error tally. Counters are owned by
// a single runner or consumer, incremented monotonically, and read only
// after the run completes.
type Aggregate struct {
	Success int
	Errors  int
}

// Total returns the number of records actually attempted.
func (a Aggregate) Total() int {
	return a.Success + a.Errors
}
