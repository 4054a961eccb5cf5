package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/libretyverse/marketplace-api/internal/api/metrics"
	"github.com/libretyverse/marketplace-api/internal/core/domain"
	"github.com/libretyverse/marketplace-api/internal/core/ports"
)

// RoleSyncService keeps the directory role field consistent with role
// membership on the ledger. The ledger is authoritative: every mutation goes
// on-chain first, and the directory is written only after the transaction
// receipt confirms success.
type RoleSyncService struct {
	users    ports.UserRepository
	requests ports.AuthorRequestRepository
	audits   ports.RoleAuditRepository
	ledger   ports.LedgerClient
	locker   ports.WalletLocker
	log      zerolog.Logger

	// Process-lifetime cache of role → on-chain identifier. The values are
	// idempotent constants, so a lazy populate race is harmless.
	mu      sync.RWMutex
	roleIDs map[domain.Role]ports.RoleID
}

func NewRoleSyncService(
	users ports.UserRepository,
	requests ports.AuthorRequestRepository,
	audits ports.RoleAuditRepository,
	ledger ports.LedgerClient,
	locker ports.WalletLocker,
	log zerolog.Logger,
) *RoleSyncService {
	return &RoleSyncService{
		users:    users,
		requests: requests,
		audits:   audits,
		ledger:   ledger,
		locker:   locker,
		log:      log,
		roleIDs:  make(map[domain.Role]ports.RoleID),
	}
}

// Grant grants role to targetWallet: ledger transaction first, directory
// update strictly after receipt success.
func (s *RoleSyncService) Grant(ctx context.Context, actor ports.Actor, targetWallet string, role domain.Role) error {
	wallet := domain.CanonicalWallet(targetWallet)
	if wallet == "" {
		return domain.ErrInvalidInput
	}
	if !role.Grantable() {
		return domain.ErrInvalidRole
	}

	unlock, err := s.lockWallet(ctx, wallet)
	if err != nil {
		return err
	}
	defer unlock()

	txHash, err := s.grantOnLedger(ctx, wallet, role)
	s.audit(ctx, actor, domain.AuditActionGrant, role, wallet, txHash, err)
	metrics.RoleSyncTotal.WithLabelValues(domain.AuditActionGrant, string(role), outcomeLabel(err)).Inc()
	return err
}

// grantOnLedger runs the shared grant path used by Grant and ApproveAuthor.
// Returns the transaction hash when one was submitted, for the audit trail.
func (s *RoleSyncService) grantOnLedger(ctx context.Context, wallet string, role domain.Role) (string, error) {
	user, err := s.users.FindByWallet(ctx, wallet)
	if err != nil {
		return "", err
	}

	roleID, err := s.roleIdentifier(ctx, role)
	if err != nil {
		return "", err
	}

	held, err := s.ledger.HasRole(ctx, roleID, wallet)
	if err != nil {
		return "", fmt.Errorf("ledger membership check: %w", err)
	}
	if held {
		return "", domain.ErrAlreadyGranted
	}

	start := time.Now()
	receipt, err := s.ledger.GrantRole(ctx, roleID, wallet)
	metrics.LedgerTxDuration.WithLabelValues("grantRole").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("grantRole submission: %w: %w", domain.ErrTransactionFailed, err)
	}
	if !receipt.Status {
		return receipt.TxHash, fmt.Errorf("grantRole reverted in tx %s: %w", receipt.TxHash, domain.ErrTransactionFailed)
	}

	// Ledger confirmed. From here any directory failure leaves the two
	// stores divergent until a reconciliation sweep runs.
	if err := s.users.UpdateRole(ctx, wallet, role, user.Role); err != nil {
		s.log.Error().Err(err).
			Str("wallet", wallet).
			Str("role", string(role)).
			Str("tx_hash", receipt.TxHash).
			Bool("reconciliation_required", true).
			Msg("directory update failed after ledger confirmation")
		return receipt.TxHash, fmt.Errorf("update role for %s: %w", wallet, domain.ErrReconciliationRequired)
	}

	s.log.Info().
		Str("wallet", wallet).
		Str("role", string(role)).
		Str("tx_hash", receipt.TxHash).
		Msg("role granted")
	return receipt.TxHash, nil
}

// Revoke removes role from targetWallet. The stored directory role must
// equal role exactly and the ledger membership must currently be true; on
// success the directory role resets to USER.
func (s *RoleSyncService) Revoke(ctx context.Context, actor ports.Actor, targetWallet string, role domain.Role) error {
	wallet := domain.CanonicalWallet(targetWallet)
	if wallet == "" {
		return domain.ErrInvalidInput
	}
	if !role.Grantable() {
		return domain.ErrInvalidRole
	}

	unlock, err := s.lockWallet(ctx, wallet)
	if err != nil {
		return err
	}
	defer unlock()

	txHash, err := s.revokeOnLedger(ctx, wallet, role)
	s.audit(ctx, actor, domain.AuditActionRevoke, role, wallet, txHash, err)
	metrics.RoleSyncTotal.WithLabelValues(domain.AuditActionRevoke, string(role), outcomeLabel(err)).Inc()
	return err
}

func (s *RoleSyncService) revokeOnLedger(ctx context.Context, wallet string, role domain.Role) (string, error) {
	user, err := s.users.FindByWallet(ctx, wallet)
	if err != nil {
		return "", err
	}
	if user.Role != role {
		return "", domain.ErrRoleMismatch
	}

	roleID, err := s.roleIdentifier(ctx, role)
	if err != nil {
		return "", err
	}

	held, err := s.ledger.HasRole(ctx, roleID, wallet)
	if err != nil {
		return "", fmt.Errorf("ledger membership check: %w", err)
	}
	if !held {
		return "", domain.ErrNotGranted
	}

	start := time.Now()
	receipt, err := s.ledger.RevokeRole(ctx, roleID, wallet)
	metrics.LedgerTxDuration.WithLabelValues("revokeRole").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("revokeRole submission: %w: %w", domain.ErrTransactionFailed, err)
	}
	if !receipt.Status {
		return receipt.TxHash, fmt.Errorf("revokeRole reverted in tx %s: %w", receipt.TxHash, domain.ErrTransactionFailed)
	}

	if err := s.users.UpdateRole(ctx, wallet, domain.RoleUser, role); err != nil {
		s.log.Error().Err(err).
			Str("wallet", wallet).
			Str("role", string(role)).
			Str("tx_hash", receipt.TxHash).
			Bool("reconciliation_required", true).
			Msg("directory update failed after ledger confirmation")
		return receipt.TxHash, fmt.Errorf("reset role for %s: %w", wallet, domain.ErrReconciliationRequired)
	}

	s.log.Info().
		Str("wallet", wallet).
		Str("role", string(role)).
		Str("tx_hash", receipt.TxHash).
		Msg("role revoked")
	return receipt.TxHash, nil
}

// ApproveAuthor grants AUTHOR to a wallet with a pending request and consumes
// the request. The request deletion runs last and its failure is non-fatal:
// the role is already granted, an orphaned request is a cleanup nuisance
// handled by the reconciler.
func (s *RoleSyncService) ApproveAuthor(ctx context.Context, actor ports.Actor, targetWallet string) error {
	if actor.Role != domain.RolePlatformAdmin {
		return domain.ErrForbidden
	}
	wallet := domain.CanonicalWallet(targetWallet)
	if wallet == "" {
		return domain.ErrInvalidInput
	}

	unlock, err := s.lockWallet(ctx, wallet)
	if err != nil {
		return err
	}
	defer unlock()

	txHash, err := s.approveAuthor(ctx, wallet)
	s.audit(ctx, actor, domain.AuditActionApprove, domain.RoleAuthor, wallet, txHash, err)
	metrics.RoleSyncTotal.WithLabelValues(domain.AuditActionApprove, string(domain.RoleAuthor), outcomeLabel(err)).Inc()
	return err
}

func (s *RoleSyncService) approveAuthor(ctx context.Context, wallet string) (string, error) {
	if _, err := s.requests.FindByWallet(ctx, wallet); err != nil {
		return "", err
	}

	txHash, err := s.grantOnLedger(ctx, wallet, domain.RoleAuthor)
	if err != nil {
		return txHash, err
	}

	if err := s.requests.Delete(ctx, wallet); err != nil {
		// Designed trade-off: the grant already committed on both stores.
		s.log.Warn().Err(err).
			Str("wallet", wallet).
			Msg("author request cleanup failed after approval")
	}
	return txHash, nil
}

// RevokeAuthor removes the AUTHOR role.
func (s *RoleSyncService) RevokeAuthor(ctx context.Context, actor ports.Actor, targetWallet string) error {
	return s.Revoke(ctx, actor, targetWallet, domain.RoleAuthor)
}

// RequestAuthorRole records a pending AUTHOR petition for the wallet. No
// ledger interaction; the requester stays USER while the request is open.
func (s *RoleSyncService) RequestAuthorRole(ctx context.Context, requesterWallet string) (*domain.AuthorRequest, error) {
	wallet := domain.CanonicalWallet(requesterWallet)
	if wallet == "" {
		return nil, domain.ErrInvalidInput
	}

	if _, err := s.requests.FindByWallet(ctx, wallet); err == nil {
		metrics.AuthorRequestsTotal.WithLabelValues("duplicate").Inc()
		return nil, domain.ErrDuplicateRequest
	} else if !errors.Is(err, domain.ErrNoRequestFound) {
		return nil, err
	}

	req := &domain.AuthorRequest{
		WalletAddress: wallet,
		Status:        domain.RequestPending,
		RequestedAt:   time.Now().UTC(),
	}
	created, err := s.requests.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	metrics.AuthorRequestsTotal.WithLabelValues("submitted").Inc()
	s.log.Info().Str("wallet", wallet).Msg("author role requested")
	return created, nil
}

// roleIdentifier resolves a role's on-chain identifier, fetching it from the
// ledger once and caching it for the process lifetime.
func (s *RoleSyncService) roleIdentifier(ctx context.Context, role domain.Role) (ports.RoleID, error) {
	s.mu.RLock()
	id, ok := s.roleIDs[role]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}

	method, err := role.LedgerMethod()
	if err != nil {
		return ports.RoleID{}, err
	}
	id, err = s.ledger.RoleIdentifier(ctx, method)
	if err != nil {
		return ports.RoleID{}, fmt.Errorf("fetch role identifier %s: %w", method, err)
	}

	s.mu.Lock()
	s.roleIDs[role] = id
	s.mu.Unlock()
	return id, nil
}

// lockWallet acquires the per-wallet advisory lock and returns the release
// function. A held lock maps to ErrSyncInProgress.
func (s *RoleSyncService) lockWallet(ctx context.Context, wallet string) (func(), error) {
	ok, err := s.locker.Acquire(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("acquire wallet lock: %w", err)
	}
	if !ok {
		metrics.SyncLockContentionTotal.Inc()
		return nil, domain.ErrSyncInProgress
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), wallet); err != nil {
			s.log.Warn().Err(err).Str("wallet", wallet).Msg("wallet lock release failed")
		}
	}, nil
}

// audit appends one record per synchronization attempt, regardless of
// outcome. A failed append never fails the operation.
func (s *RoleSyncService) audit(ctx context.Context, actor ports.Actor, action string, role domain.Role, wallet, txHash string, opErr error) {
	entry := &domain.RoleAudit{
		AdminWallet:  domain.CanonicalWallet(actor.WalletAddress),
		Action:       action,
		Role:         role,
		TargetWallet: wallet,
		Outcome:      domain.AuditOutcomeSuccess,
		TxHash:       txHash,
		Timestamp:    time.Now().UTC(),
	}
	if opErr != nil {
		entry.Outcome = domain.AuditOutcomeFailed
		entry.Error = opErr.Error()
	}
	if err := s.audits.Record(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("action", action).
			Str("wallet", wallet).
			Msg("audit record append failed")
	}
}

func outcomeLabel(err error) string {
	if err != nil {
		return domain.AuditOutcomeFailed
	}
	return domain.AuditOutcomeSuccess
}
