package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrCollisionUnresolved means disambiguation suffixes were exhausted for
	// one asset; the asset is skipped and reported, the run continues.
	ErrCollisionUnresolved = errors.New("sanitization collision unresolved")

	// ErrMoveFailed means a filesystem move failed; the current plan rolls back.
	ErrMoveFailed = errors.New("filesystem move failed")

	// ErrHistoryWrite means the history store rejected a batch write; the
	// current plan's filesystem changes roll back.
	ErrHistoryWrite = errors.New("history write failed")

	// ErrPlanInvalidated means the library index was rebuilt after the plan
	// was derived; the plan must be re-derived, never applied blind.
	ErrPlanInvalidated = errors.New("plan invalidated by index rebuild")

	// ErrAmbiguousMatch means no candidate cleared the auto-accept threshold;
	// resolution requires an external decision.
	ErrAmbiguousMatch = errors.New("no candidate above auto-accept threshold")
)
