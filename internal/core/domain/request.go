package domain

import "time"

// RequestStatus is the lifecycle state of an author role petition.
type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

// AuthorRequest is a pending petition for the AUTHOR role. At most one
// outstanding request per wallet; an existing request implies the wallet
// holds no AUTHOR membership on the ledger. The requester stays USER while
// the request is outstanding — pending state lives here, not in the role.
type AuthorRequest struct {
	ID            string        `json:"id"`
	WalletAddress string        `json:"wallet_address"`
	Status        RequestStatus `json:"status"`
	RequestedAt   time.Time     `json:"requested_at"`
}
