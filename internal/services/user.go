package services

import (
	"context"

	"github.com/moneytrail/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// CodeRepository defines persistence operations for one-time registration codes.
type CodeRepository interface {
	Get(ctx context.Context, email string) (types.OneTimeCode, error)
	Upsert(ctx context.Context, code types.OneTimeCode) error
	Delete(ctx context.Context, email string) error
}
