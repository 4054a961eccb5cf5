package domain

import "time"

// Audit actions recorded by the role synchronizer.
const (
	AuditActionGrant     = "grant_role"
	AuditActionRevoke    = "revoke_role"
	AuditActionApprove   = "approve_author"
	AuditActionReconcile = "reconcile"
)

// Audit outcomes.
const (
	AuditOutcomeSuccess = "success"
	AuditOutcomeFailed  = "failed"
)

// RoleAudit is an append-only record of a single synchronization attempt.
// Pure observability sink, never authoritative state; a failed entry with a
// non-empty Error after a ledger success marks a reconciliation-required
// incident.
type RoleAudit struct {
	ID            string    `json:"id"`
	AdminWallet   string    `json:"admin_wallet"`
	Action        string    `json:"action"`
	Role          Role      `json:"role,omitempty"`
	TargetWallet  string    `json:"target_wallet"`
	Outcome       string    `json:"outcome"`
	Error         string    `json:"error,omitempty"`
	TxHash        string    `json:"tx_hash,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
