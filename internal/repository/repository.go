package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when the requested row does not exist or is
	// outside the requested scope.
	ErrNotFound = errors.New("record not found")
	// ErrOptimisticConflict is returned when a versioned write presents a
	// version that no longer matches the persisted one.
	ErrOptimisticConflict = errors.New("optimistic lock conflict")
	// ErrDuplicateTrackingNumber is returned by Create when another complaint
	// already holds the tracking number.
	ErrDuplicateTrackingNumber = errors.New("tracking number already in use")
)

// isRowID reports whether id can name a row. Primary keys are UUIDs; anything
// else cannot match and is answered without a round trip.
func isRowID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// TxManager runs a unit of work atomically. Row locks acquired through
// FindForUpdate are held until fn returns.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
