// Package lock serializes mutations on one aggregate root.
//
// Every plan or execution write runs load, mutate, recompute and save while
// holding the lock for that root, so two edits to sibling activities or items
// can never leave a derived total that reflects only one of them. The
// repositories' version check stays in place underneath as a second guard.
package lock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/shared"
)

// Locker runs fn while holding an exclusive lock on key
type Locker interface {
	WithLock(ctx context.Context, key string, fn func() error) error
}

// PlanKey is the lock key of a plan aggregate
func PlanKey(id uuid.UUID) string {
	return "lock:plan:" + id.String()
}

// ExecutionKey is the lock key of an execution aggregate
func ExecutionKey(id uuid.UUID) string {
	return "lock:execution:" + id.String()
}

// TupleKey guards plan creation for one facility, program and fiscal year
func TupleKey(facilityID, programID, fiscalYearID uuid.UUID) string {
	return fmt.Sprintf("lock:plan-tuple:%s:%s:%s", facilityID, programID, fiscalYearID)
}

func unavailable(key string, cause error) error {
	return shared.NewDomainError(shared.CodeLockUnavailable,
		fmt.Sprintf("could not acquire lock %s: %v", key, cause))
}
