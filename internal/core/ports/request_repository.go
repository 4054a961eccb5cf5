package ports

import (
	"context"

	"github.com/libretyverse/marketplace-api/internal/core/domain"
)

// AuthorRequestRepository stores pending author role petitions, unique per
// canonical wallet address.
type AuthorRequestRepository interface {
	// Create inserts a PENDING request; domain.ErrDuplicateRequest when one
	// already exists for the wallet.
	Create(ctx context.Context, req *domain.AuthorRequest) (*domain.AuthorRequest, error)
	FindByWallet(ctx context.Context, wallet string) (*domain.AuthorRequest, error)
	// Delete removes the request for wallet; domain.ErrNoRequestFound when absent.
	Delete(ctx context.Context, wallet string) error
	List(ctx context.Context) ([]*domain.AuthorRequest, error)
}

// RoleAuditRepository is the append-only audit sink for synchronization
// attempts.
type RoleAuditRepository interface {
	Record(ctx context.Context, entry *domain.RoleAudit) error
	ListByTarget(ctx context.Context, wallet string, limit int64) ([]*domain.RoleAudit, error)
}
