package ports

import (
	"context"

	"github.com/libretyverse/marketplace-api/internal/core/domain"
)

// UserRepository is the durable user directory. Wallet lookups expect the
// canonical (lower-case) address form.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByWallet(ctx context.Context, wallet string) (*domain.User, error)

	// UpdateRole performs a conditional role update: the write applies only
	// when the stored role still equals expected. Returns
	// domain.ErrRoleMismatch when another writer got there first and
	// domain.ErrUserNotFound when no record exists for the wallet.
	UpdateRole(ctx context.Context, wallet string, role, expected domain.Role) error

	// ListByRoles returns users whose directory role is in roles — the
	// reconciler's working set.
	ListByRoles(ctx context.Context, roles []domain.Role) ([]*domain.User, error)
}
