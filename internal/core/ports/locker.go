package ports

import "context"

// WalletLocker provides a per-wallet advisory lock so concurrent
// synchronization attempts against the same wallet serialize instead of
// racing the pre-check reads. Acquire returns false when another operation
// holds the lock.
type WalletLocker interface {
	Acquire(ctx context.Context, wallet string) (bool, error)
	Release(ctx context.Context, wallet string) error
}
