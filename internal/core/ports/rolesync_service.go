package ports

import (
	"context"

	"github.com/libretyverse/marketplace-api/internal/core/domain"
)

// Actor identifies who initiates a synchronization, as established from a
// verified claim by the access control gate.
type Actor struct {
	ID            string
	Email         string
	WalletAddress string
	Role          domain.Role
}

// DriftCorrection describes one divergence found and fixed by a
// reconciliation sweep.
type DriftCorrection struct {
	WalletAddress string      `json:"wallet_address"`
	Role          domain.Role `json:"role"`
	DirectoryRole domain.Role `json:"directory_role"`
	LedgerHeld    bool        `json:"ledger_held"`
	Corrected     bool        `json:"corrected"`
	Error         string      `json:"error,omitempty"`
}

// RoleSyncService orchestrates grant, revoke, and approval flows across the
// ledger and the directory. Every operation validates preconditions against
// both stores, submits the ledger transaction, and mutates the directory
// only after receipt confirmation.
type RoleSyncService interface {
	Grant(ctx context.Context, actor Actor, targetWallet string, role domain.Role) error
	Revoke(ctx context.Context, actor Actor, targetWallet string, role domain.Role) error
	ApproveAuthor(ctx context.Context, actor Actor, targetWallet string) error
	RevokeAuthor(ctx context.Context, actor Actor, targetWallet string) error
	RequestAuthorRole(ctx context.Context, requesterWallet string) (*domain.AuthorRequest, error)
}

// Reconciler sweeps the working set for ledger/directory drift and corrects
// it idempotently.
type Reconciler interface {
	Sweep(ctx context.Context) ([]DriftCorrection, error)
}
