package entity

// constError is an immutable error type for sentinel errors.
// It implements the error interface and provides compile-time safety.
type constError string

func (e constError) Error() string { return string(e) }

// Setup errors. All are fatal to a run, reported once, and occur before
// any side effect. They are distinguishable with errors.Is so the CLI
// can name the failure for the operator.
var (
	// ErrInvalidType indicates an entity type unknown to the store.
	ErrInvalidType = constError("invalid entity type")

	// ErrInvalidBundle indicates a bundle that does not exist for the
	// selected entity type.
	ErrInvalidBundle = constError("invalid bundle")

	// ErrInvalidQueryEngine indicates a substitute query engine that is
	// not registered or does not satisfy the query capability set.
	ErrInvalidQueryEngine = constError("invalid query engine")

	// ErrEmptySelection indicates a filtered query that matched zero
	// records. An empty selection is a hard stop before any work begins.
	ErrEmptySelection = constError("empty selection")
)

// Per-record errors. Always isolated: they are counted in the run
// aggregate and logged, but never abort the run.
var (
	// ErrInvalidCallback indicates a callback reference that does not
	// resolve to a registered callback.
	ErrInvalidCallback = constError("invalid callback")
)

// Infrastructure errors. Fatal to the current step with no automatic
// retry; recovery is an operator-initiated re-run.
var (
	// ErrQueueUnavailable indicates the durable queue could not be
	// opened or written.
	ErrQueueUnavailable = constError("queue unavailable")
)
