package account

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoProgress is returned when a convergence pass removes nothing.
	ErrNoProgress = errors.New("deletion pass made no progress")
	// ErrRetriesExhausted is returned when the pass ceiling is reached.
	ErrRetriesExhausted = errors.New("deletion did not converge")
)

// ProtectedAccountError is returned for the default and site admin accounts
// (or any other configured as protected).
type ProtectedAccountError struct {
	AccountID int64
}

func (e *ProtectedAccountError) Error() string {
	return fmt.Sprintf("account %d is protected and cannot be removed", e.AccountID)
}

const (
	ReasonNotFound = "not found"
	ReasonNotRoot  = "not a root account"
)

// InvalidTargetError is returned when the id does not name a root account.
type InvalidTargetError struct {
	AccountID int64
	Reason    string
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("account %d: %s", e.AccountID, e.Reason)
}

// IsNotFound reports whether err means the account does not exist, which is
// also the state left behind by a completed removal.
func IsNotFound(err error) bool {
	var target *InvalidTargetError
	return errors.As(err, &target) && target.Reason == ReasonNotFound
}
