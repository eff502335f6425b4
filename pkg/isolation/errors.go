package isolation

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrIsolationViolation is the sentinel every *Violation unwraps to.
	ErrIsolationViolation = errors.New("isolation violation")
	// ErrNotFound is returned for rows that do not exist for the scoped tenant.
	ErrNotFound = errors.New("row not found")

	ErrDuplicate      = errors.New("row already exists")
	ErrNotWhitelisted = errors.New("table is not whitelisted as tenant-agnostic")
)

// Violation describes a refused data access. It signals a programming error
// and is never retried.
type Violation struct {
	Op          string
	Table       string
	Reason      string
	ScopeTenant uuid.UUID
	RowTenant   uuid.UUID
}

func (v *Violation) Error() string {
	return fmt.Sprintf("isolation violation: %s %s: %s", v.Op, v.Table, v.Reason)
}

func (v *Violation) Unwrap() error {
	return ErrIsolationViolation
}

// IsViolation reports whether err is or wraps a *Violation.
func IsViolation(err error) bool {
	return errors.Is(err, ErrIsolationViolation)
}
