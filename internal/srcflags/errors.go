package srcflags

import "errors"

var (
	// ErrNotFound is returned when a file is claimed that is not in the pool,
	// either because another bucket owns it or because it was never declared.
	ErrNotFound = errors.New("source file not found in remaining sources")

	// ErrAlreadyFinalized is returned when rules are registered, or Finalize is
	// called, after the engine has been finalized.
	ErrAlreadyFinalized = errors.New("compile flags already finalized")

	// ErrAmbiguousSingleton means an identity claim matched more than one pooled
	// entry. It indicates broken pool bookkeeping.
	ErrAmbiguousSingleton = errors.New("single source claim matched more than one file")

	// ErrFrozen is returned when flags are added to a set after finalize.
	ErrFrozen = errors.New("compile flags are frozen")
)
