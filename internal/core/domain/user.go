package domain

import (
	"strings"
	"time"
)

// Role is the single authoritative role a user holds in the directory. At
// rest it must match the role membership recorded on the ledger for the
// user's wallet; only the role synchronizer is allowed to change it.
type Role string

const (
	RoleDefaultAdmin  Role = "DEFAULT_ADMIN"
	RolePlatformAdmin Role = "PLATFORM_ADMIN"
	RoleFundsManager  Role = "FUNDS_MANAGER"
	RoleAuthor        Role = "AUTHOR"
	RoleUser          Role = "USER"
)

// ledgerRoleMethods maps grantable roles to the contract view method that
// returns the on-chain role identifier. This table is configuration and must
// stay in lockstep with the deployed contract's role definitions.
// DEFAULT_ADMIN and USER never pass through the synchronizer: DEFAULT_ADMIN
// is fixed at deployment, USER is the absence of ledger membership.
var ledgerRoleMethods = map[Role]string{
	RolePlatformAdmin: "PLATFORM_ADMIN_ROLE",
	RoleFundsManager:  "FUNDS_MANAGER_ROLE",
	RoleAuthor:        "AUTHOR_ROLE",
}

// LedgerMethod returns the contract getter for a grantable role.
// Unmapped roles fail closed with ErrInvalidRole.
func (r Role) LedgerMethod() (string, error) {
	m, ok := ledgerRoleMethods[r]
	if !ok {
		return "", ErrInvalidRole
	}
	return m, nil
}

// Grantable reports whether the role can be granted or revoked on the ledger.
func (r Role) Grantable() bool {
	_, ok := ledgerRoleMethods[r]
	return ok
}

// GrantableRoles returns the roles the synchronizer manages, in the order the
// reconciler walks them.
func GrantableRoles() []Role {
	return []Role{RolePlatformAdmin, RoleFundsManager, RoleAuthor}
}

// CanonicalWallet lower-cases a wallet address. Applied once at every ingress
// boundary so lookups and uniqueness both operate on the canonical form.
func CanonicalWallet(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// User models an identity in the directory.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	WalletAddress string    `json:"wallet_address"`
	Role          Role      `json:"role"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
