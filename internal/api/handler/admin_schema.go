package handler

// roleChangeRequest is the body of grant-role and revoke-role.
type roleChangeRequest struct {
	WalletAddress string `json:"walletAddress" validate:"required,eth_addr"`
	Role          string `json:"role"          validate:"required,oneof=PLATFORM_ADMIN FUNDS_MANAGER AUTHOR"`
}

// walletRequest is the body of approve-author, revoke-author, and
// request-author.
type walletRequest struct {
	WalletAddress string `json:"walletAddress" validate:"required,eth_addr"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}
