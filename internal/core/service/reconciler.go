package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/libretyverse/marketplace-api/internal/api/metrics"
	"github.com/libretyverse/marketplace-api/internal/core/domain"
	"github.com/libretyverse/marketplace-api/internal/core/ports"
)

const defaultSweepWorkers = 4

// Reconciler sweeps the working set for divergence between directory roles
// and ledger membership and corrects the directory toward the ledger, which
// is authoritative. Corrections go through the same conditional update as
// regular synchronization, so a sweep racing a live grant loses cleanly.
type Reconciler struct {
	users    ports.UserRepository
	requests ports.AuthorRequestRepository
	audits   ports.RoleAuditRepository
	ledger   ports.LedgerClient
	workers  int
	log      zerolog.Logger

	mu      sync.RWMutex
	roleIDs map[domain.Role]ports.RoleID
}

// NewReconciler creates a Reconciler checking wallets across numWorkers
// goroutines. If numWorkers <= 0, defaultSweepWorkers is used.
func NewReconciler(
	users ports.UserRepository,
	requests ports.AuthorRequestRepository,
	audits ports.RoleAuditRepository,
	ledger ports.LedgerClient,
	numWorkers int,
	log zerolog.Logger,
) *Reconciler {
	if numWorkers <= 0 {
		numWorkers = defaultSweepWorkers
	}
	return &Reconciler{
		users:    users,
		requests: requests,
		audits:   audits,
		ledger:   ledger,
		workers:  numWorkers,
		log:      log,
		roleIDs:  make(map[domain.Role]ports.RoleID),
	}
}

// Run executes a sweep every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.log.Error().Err(err).Msg("reconciliation sweep failed")
			}
		}
	}
}

// Sweep checks every user holding an elevated directory role against the
// ledger, resets drifted records to USER, and cleans up author requests
// already granted on-chain. Idempotent: a second sweep over a consistent
// state makes no writes.
func (r *Reconciler) Sweep(ctx context.Context) ([]ports.DriftCorrection, error) {
	start := time.Now()
	defer func() {
		metrics.ReconcileSweepDuration.Observe(time.Since(start).Seconds())
	}()

	if err := r.resolveRoleIDs(ctx); err != nil {
		return nil, err
	}

	users, err := r.users.ListByRoles(ctx, domain.GrantableRoles())
	if err != nil {
		return nil, fmt.Errorf("list working set: %w", err)
	}

	// Shard users across workers by wallet so checks for the same wallet
	// never run concurrently.
	shards := make([][]*domain.User, r.workers)
	for _, u := range users {
		i := shardIndex(u.WalletAddress, r.workers)
		shards[i] = append(shards[i], u)
	}

	var (
		mu          sync.Mutex
		corrections []ports.DriftCorrection
		wg          sync.WaitGroup
	)
	for _, shard := range shards {
		if len(shard) == 0 {
			continue
		}
		wg.Add(1)
		go func(shard []*domain.User) {
			defer wg.Done()
			for _, u := range shard {
				if ctx.Err() != nil {
					return
				}
				if c, drifted := r.checkUser(ctx, u); drifted {
					mu.Lock()
					corrections = append(corrections, c)
					mu.Unlock()
				}
			}
		}(shard)
	}
	wg.Wait()

	orphans, err := r.sweepOrphanRequests(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("orphan request sweep failed")
	}
	corrections = append(corrections, orphans...)

	r.log.Info().
		Int("users_checked", len(users)).
		Int("corrections", len(corrections)).
		Dur("elapsed", time.Since(start)).
		Msg("reconciliation sweep complete")
	return corrections, nil
}

// checkUser compares one elevated directory role against the ledger and
// resets the directory when the ledger no longer backs it.
func (r *Reconciler) checkUser(ctx context.Context, u *domain.User) (ports.DriftCorrection, bool) {
	r.mu.RLock()
	roleID, ok := r.roleIDs[u.Role]
	r.mu.RUnlock()
	if !ok {
		return ports.DriftCorrection{}, false
	}

	held, err := r.ledger.HasRole(ctx, roleID, u.WalletAddress)
	if err != nil {
		r.log.Warn().Err(err).Str("wallet", u.WalletAddress).Msg("ledger check failed during sweep")
		return ports.DriftCorrection{}, false
	}
	if held {
		return ports.DriftCorrection{}, false
	}

	c := ports.DriftCorrection{
		WalletAddress: u.WalletAddress,
		Role:          u.Role,
		DirectoryRole: u.Role,
		LedgerHeld:    false,
	}
	if err := r.users.UpdateRole(ctx, u.WalletAddress, domain.RoleUser, u.Role); err != nil {
		c.Error = err.Error()
		metrics.ReconcileDriftTotal.WithLabelValues("failed").Inc()
		r.log.Error().Err(err).
			Str("wallet", u.WalletAddress).
			Str("role", string(u.Role)).
			Msg("drift correction failed")
	} else {
		c.Corrected = true
		metrics.ReconcileDriftTotal.WithLabelValues("corrected").Inc()
		r.log.Warn().
			Str("wallet", u.WalletAddress).
			Str("role", string(u.Role)).
			Msg("directory role drifted from ledger, reset to USER")
	}
	r.auditCorrection(ctx, u.WalletAddress, u.Role, c)
	return c, true
}

// sweepOrphanRequests removes author requests whose wallet already holds
// AUTHOR on the ledger — the leftover of an approval whose cleanup failed —
// repairing the directory role along the way.
func (r *Reconciler) sweepOrphanRequests(ctx context.Context) ([]ports.DriftCorrection, error) {
	r.mu.RLock()
	authorID, ok := r.roleIDs[domain.RoleAuthor]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	reqs, err := r.requests.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list author requests: %w", err)
	}

	var corrections []ports.DriftCorrection
	for _, req := range reqs {
		if ctx.Err() != nil {
			return corrections, ctx.Err()
		}
		held, err := r.ledger.HasRole(ctx, authorID, req.WalletAddress)
		if err != nil || !held {
			continue
		}

		c := ports.DriftCorrection{
			WalletAddress: req.WalletAddress,
			Role:          domain.RoleAuthor,
			LedgerHeld:    true,
		}
		if u, err := r.users.FindByWallet(ctx, req.WalletAddress); err == nil {
			c.DirectoryRole = u.Role
			if u.Role != domain.RoleAuthor {
				if err := r.users.UpdateRole(ctx, req.WalletAddress, domain.RoleAuthor, u.Role); err == nil {
					c.Corrected = true
				} else {
					c.Error = err.Error()
				}
			}
		}
		if err := r.requests.Delete(ctx, req.WalletAddress); err != nil {
			r.log.Warn().Err(err).Str("wallet", req.WalletAddress).Msg("orphan request deletion failed")
			continue
		}
		metrics.ReconcileDriftTotal.WithLabelValues("orphan_request_removed").Inc()
		r.auditCorrection(ctx, req.WalletAddress, domain.RoleAuthor, c)
		corrections = append(corrections, c)
	}
	return corrections, nil
}

func (r *Reconciler) auditCorrection(ctx context.Context, wallet string, role domain.Role, c ports.DriftCorrection) {
	entry := &domain.RoleAudit{
		AdminWallet:  "reconciler",
		Action:       domain.AuditActionReconcile,
		Role:         role,
		TargetWallet: wallet,
		Outcome:      domain.AuditOutcomeSuccess,
		Error:        c.Error,
		Timestamp:    time.Now().UTC(),
	}
	if !c.Corrected && c.Error != "" {
		entry.Outcome = domain.AuditOutcomeFailed
	}
	if err := r.audits.Record(ctx, entry); err != nil {
		r.log.Warn().Err(err).Str("wallet", wallet).Msg("audit record append failed")
	}
}

func (r *Reconciler) resolveRoleIDs(ctx context.Context) error {
	for _, role := range domain.GrantableRoles() {
		r.mu.RLock()
		_, ok := r.roleIDs[role]
		r.mu.RUnlock()
		if ok {
			continue
		}
		method, err := role.LedgerMethod()
		if err != nil {
			return err
		}
		id, err := r.ledger.RoleIdentifier(ctx, method)
		if err != nil {
			return fmt.Errorf("fetch role identifier %s: %w", method, err)
		}
		r.mu.Lock()
		r.roleIDs[role] = id
		r.mu.Unlock()
	}
	return nil
}

// shardIndex maps a wallet deterministically to a worker index.
func shardIndex(wallet string, workers int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(wallet))
	return int(h.Sum32()) % workers
}
