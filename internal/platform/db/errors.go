package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store error taxonomy. Repositories return raw driver errors; callers that
// need to branch on the failure class pass them through Classify, and
// handlers map each kind to an HTTP status.
var (
	// ErrNotFound: the referenced row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict: a uniqueness or foreign-key constraint was violated, or a
	// resource is already claimed by another actor.
	ErrConflict = errors.New("conflicting state")

	// ErrUnavailable: the store could not be reached or the operation was
	// interrupted; safe to retry.
	ErrUnavailable = errors.New("store unavailable")

	// ErrInconsistent: rows exist but violate an invariant the caller relies
	// on. Not retryable; needs operator attention.
	ErrInconsistent = errors.New("inconsistent data")

	// ErrPrecondition: the entity exists but is not in a state where the
	// requested operation is meaningful.
	ErrPrecondition = errors.New("precondition failed")
)

// Classify maps a driver error onto the store taxonomy. Errors already
// belonging to the taxonomy pass through unchanged; unrecognized errors are
// returned as-is so the original cause is never hidden.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrNotFound, ErrConflict, ErrUnavailable, ErrInconsistent, ErrPrecondition} {
		if errors.Is(err, kind) {
			return err
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrUnavailable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		// 23xxx: integrity constraint violations
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "23":
			return ErrConflict
		// 40001 serialization_failure, 40P01 deadlock_detected
		case pgErr.Code == "40001" || pgErr.Code == "40P01":
			return ErrUnavailable
		// 08xxx: connection exceptions
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "08":
			return ErrUnavailable
		}
	}
	return err
}
