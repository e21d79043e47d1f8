package materialize

import "errors"

var (
	// ErrRolledBack marks a phase whose rows were discarded because another
	// phase of the same atomic run failed.
	ErrRolledBack = errors.New("rolled back with the rest of the run")

	// ErrStoreRequired is returned when a Materializer has no store.
	ErrStoreRequired = errors.New("graph store required")
)
