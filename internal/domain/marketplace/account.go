package marketplace

import (
	"errors"
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Marketplace Errors
// ---------------------------------------------------------------------------

var (
	ErrInvalidAccount      = errors.New("marketplace: invalid account")
	ErrInvalidSyncMode     = errors.New("marketplace: invalid sync mode")
	ErrInvalidStrategy     = errors.New("marketplace: invalid conflict strategy")
	ErrInvalidSKU          = errors.New("marketplace: sku is required")
	ErrNoAccounts          = errors.New("marketplace: at least one account is required")
	ErrInvalidPageSize     = errors.New("marketplace: page size must be positive")
	ErrRecordNotFound      = errors.New("marketplace: product record not found")
	ErrSyncRunNotFound     = errors.New("marketplace: sync run not found")
	ErrRunAlreadyFinalized = errors.New("marketplace: sync run already finalized")
	ErrSnapshotNotFound    = errors.New("marketplace: competition snapshot not found")
	ErrMalformedItem       = errors.New("marketplace: malformed catalog item")
)

// ---------------------------------------------------------------------------
// Account
// ---------------------------------------------------------------------------

// Account identifies one of the two seller accounts on the marketplace
type Account string

const (
	// AccountMain is the seller-fulfilled account
	AccountMain Account = "MAIN"
	// AccountFBE is the marketplace-fulfilled (Fulfilled by eMAG) account
	AccountFBE Account = "FBE"
)

// AllAccounts returns both accounts in canonical order
func AllAccounts() []Account {
	return []Account{AccountMain, AccountFBE}
}

// ParseAccount parses an account name case-insensitively ("main", "FBE")
func ParseAccount(s string) (Account, error) {
	a := Account(strings.ToUpper(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", ErrInvalidAccount
	}
	return a, nil
}

// IsValid returns true if the account is known
func (a Account) IsValid() bool {
	switch a {
	case AccountMain, AccountFBE:
		return true
	default:
		return false
	}
}

// Other returns the opposite account
func (a Account) Other() Account {
	if a == AccountMain {
		return AccountFBE
	}
	return AccountMain
}

// String returns the string representation of Account
func (a Account) String() string {
	return string(a)
}

// AccountSetKey returns a stable key for a set of accounts, independent of order
// and duplicates. Used to scope the single-flight sync guard.
func AccountSetKey(accounts []Account) string {
	seen := make(map[Account]struct{}, len(accounts))
	names := make([]string, 0, len(accounts))
	for _, a := range accounts {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		names = append(names, string(a))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// ---------------------------------------------------------------------------
// SyncMode
// ---------------------------------------------------------------------------

// SyncMode is the kind of synchronization requested
type SyncMode string

const (
	SyncModeFull        SyncMode = "FULL"
	SyncModeIncremental SyncMode = "INCREMENTAL"
)

// IsValid returns true if the mode is known
func (m SyncMode) IsValid() bool {
	return m == SyncModeFull || m == SyncModeIncremental
}

// String returns the string representation of SyncMode
func (m SyncMode) String() string {
	return string(m)
}

// ---------------------------------------------------------------------------
// ListingStatus
// ---------------------------------------------------------------------------

// ListingStatus is the marketplace offer status (0 inactive, 1 active, 2 pending)
type ListingStatus string

const (
	ListingStatusInactive ListingStatus = "INACTIVE"
	ListingStatusActive   ListingStatus = "ACTIVE"
	ListingStatusPending  ListingStatus = "PENDING"
)

// ListingStatusFromCode maps the numeric marketplace status code
func ListingStatusFromCode(code int) ListingStatus {
	switch code {
	case 1:
		return ListingStatusActive
	case 2:
		return ListingStatusPending
	default:
		return ListingStatusInactive
	}
}

// String returns the string representation of ListingStatus
func (s ListingStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// RecordSyncStatus
// ---------------------------------------------------------------------------

// RecordSyncStatus is the local bookkeeping state of a ProductRecord
type RecordSyncStatus string

const (
	RecordSyncStatusSynced    RecordSyncStatus = "SYNCED"
	RecordSyncStatusUnchanged RecordSyncStatus = "UNCHANGED"
	RecordSyncStatusLocal     RecordSyncStatus = "LOCAL"
)

// String returns the string representation of RecordSyncStatus
func (s RecordSyncStatus) String() string {
	return string(s)
}
