package domain

import "errors"

// Validation and lookup failures — recovered locally, never retried.
var ErrInvalidInput = errors.New("invalid input")
var ErrInvalidRole = errors.New("invalid role specified")
var ErrUserNotFound = errors.New("user not found")
var ErrUserExists = errors.New("user already exists")
var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrNoRequestFound = errors.New("no author role request found")
var ErrForbidden = errors.New("access denied")

// Conflicts — the current state already contradicts the requested change.
var ErrAlreadyGranted = errors.New("role already granted")
var ErrNotGranted = errors.New("role not granted on ledger")
var ErrRoleMismatch = errors.New("stored role does not match requested role")
var ErrDuplicateRequest = errors.New("author role request already submitted")
var ErrSyncInProgress = errors.New("role synchronization already in progress for wallet")

// Ledger failures — surfaced to the caller, never partially committed.
var ErrTransactionFailed = errors.New("ledger transaction failed")

// ErrReconciliationRequired marks the one irrecoverable inconsistency window:
// the ledger transaction confirmed but the directory write failed afterwards.
// The two stores are divergent until a reconciliation sweep corrects them.
var ErrReconciliationRequired = errors.New("directory write failed after ledger confirmation, reconciliation required")
