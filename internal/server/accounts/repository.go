package accounts

import (
	"context"
)

// Repository persists account records. Implementations must enforce a
// uniqueness constraint on email and report its violation as
// common.ErrDuplicateEmail; lookups of absent records return
// common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, account *Account) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// SetEmailVerified marks the account verified. The update is a pure
	// set, never a toggle, so repeated calls are harmless.
	SetEmailVerified(ctx context.Context, accountID string) error
}
