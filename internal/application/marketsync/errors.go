package marketsync

import (
	"errors"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/shared"
)

// Error codes surfaced to the HTTP layer
const (
	CodeSyncAlreadyRunning = "SYNC_ALREADY_RUNNING"
	CodeSyncTimeout        = "SYNC_TIMEOUT"
	CodeUpstream           = "UPSTREAM_ERROR"
)

var (
	// ErrSyncAlreadyRunning is returned when a sync for an overlapping account set holds the lock
	ErrSyncAlreadyRunning = shared.NewDomainError(CodeSyncAlreadyRunning, "A sync for these accounts is already running")
	// ErrSyncTimeout is returned when a sync exceeds its overall timeout
	ErrSyncTimeout = shared.NewDomainError(CodeSyncTimeout, "Sync timed out")
	// ErrProductNotFound is returned when a SKU is not listed on any account
	ErrProductNotFound = shared.NewDomainError("NOT_FOUND", "Product is not listed on any account")
	// ErrSyncRunNotFound is returned for an unknown run id
	ErrSyncRunNotFound = shared.NewDomainError("NOT_FOUND", "Sync run not found")

	// ErrLockNotObtained is returned by a SyncLocker when the key is held elsewhere
	ErrLockNotObtained = errors.New("marketsync: lock not obtained")
	// ErrSyncPanicked wraps a panic recovered inside an account task
	ErrSyncPanicked = errors.New("marketsync: account task panicked")
)

// translateError maps domain sentinels to DomainErrors the HTTP layer understands.
// Errors that are already DomainErrors, or unknown, pass through.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}

	switch {
	case errors.Is(err, marketplace.ErrRecordNotFound):
		return shared.WrapDomainError("NOT_FOUND", err)
	case errors.Is(err, marketplace.ErrSyncRunNotFound):
		return shared.WrapDomainError("NOT_FOUND", err)
	case errors.Is(err, marketplace.ErrInsufficientStock):
		return shared.WrapDomainError("INSUFFICIENT_STOCK", err)
	case errors.Is(err, marketplace.ErrRunAlreadyFinalized):
		return shared.WrapDomainError("INVALID_STATE", err)
	case errors.Is(err, marketplace.ErrInvalidAccount),
		errors.Is(err, marketplace.ErrInvalidSyncMode),
		errors.Is(err, marketplace.ErrInvalidStrategy),
		errors.Is(err, marketplace.ErrInvalidSKU),
		errors.Is(err, marketplace.ErrNoAccounts),
		errors.Is(err, marketplace.ErrInvalidPageSize),
		errors.Is(err, marketplace.ErrInvalidTransferAmount),
		errors.Is(err, marketplace.ErrSameAccount):
		return shared.WrapDomainError("INVALID_INPUT", err)
	}

	var ce *marketplace.ClientError
	if errors.As(err, &ce) {
		return shared.WrapDomainError(CodeUpstream, err)
	}
	return err
}
