package ports

import "context"

// RoleID is the opaque 32-byte role identifier used by the on-chain access
// control registry.
type RoleID [32]byte

// TxReceipt reports the outcome of a mined ledger transaction.
type TxReceipt struct {
	TxHash      string
	Status      bool
	BlockNumber uint64
	GasUsed     uint64
}

// LedgerClient is the capability the synchronizer uses to read and mutate
// on-chain role membership. Injected at construction so tests can substitute
// a double; implementations own transaction signing, gas handling, and
// receipt confirmation. All calls may block for network and confirmation
// latency and must honour ctx cancellation.
type LedgerClient interface {
	// RoleIdentifier calls the named view method on the registry contract
	// (e.g. AUTHOR_ROLE) and returns the role identifier constant.
	RoleIdentifier(ctx context.Context, method string) (RoleID, error)

	// HasRole reports whether wallet currently holds the role on the ledger.
	HasRole(ctx context.Context, role RoleID, wallet string) (bool, error)

	// GrantRole submits a signed grantRole transaction and waits for the
	// receipt. A non-nil receipt with Status=false means the transaction
	// mined but reverted.
	GrantRole(ctx context.Context, role RoleID, wallet string) (*TxReceipt, error)

	// RevokeRole submits a signed revokeRole transaction and waits for the
	// receipt.
	RevokeRole(ctx context.Context, role RoleID, wallet string) (*TxReceipt, error)
}
