package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 2 * time.Minute

// WalletLocker provides per-wallet advisory locks backed by Redis.
// Key format: rolesync:lock:<wallet>
//
// The TTL bounds how long a crashed process can leave a wallet locked; it
// should exceed the worst-case ledger confirmation wait.
type WalletLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewWalletLocker creates a WalletLocker wrapping the given Redis client.
// If ttl <= 0, defaultLockTTL is used.
func NewWalletLocker(client *redis.Client, ttl time.Duration) *WalletLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &WalletLocker{client: client, ttl: ttl}
}

// Acquire attempts to take the lock for wallet. Returns false when another
// synchronization currently holds it.
func (l *WalletLocker) Acquire(ctx context.Context, wallet string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(wallet), "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("wallet lock acquire: %w", err)
	}
	return ok, nil
}

// Release frees the lock for wallet.
func (l *WalletLocker) Release(ctx context.Context, wallet string) error {
	if err := l.client.Del(ctx, l.key(wallet)).Err(); err != nil {
		return fmt.Errorf("wallet lock release: %w", err)
	}
	return nil
}

func (l *WalletLocker) key(wallet string) string {
	return "rolesync:lock:" + wallet
}
