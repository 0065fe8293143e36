package marketplace

import "strings"

// ConflictStrategy decides whether fetched remote data overwrites a stored record.
// A strategy is selected once per sync session.
type ConflictStrategy string

const (
	// StrategyRemotePriority always takes the marketplace data
	StrategyRemotePriority ConflictStrategy = "REMOTE_PRIORITY"
	// StrategyLocalPriority never overwrites; remote fetch is observe-only
	StrategyLocalPriority ConflictStrategy = "LOCAL_PRIORITY"
	// StrategyNewestWins overwrites when the incoming modification time is newer
	StrategyNewestWins ConflictStrategy = "NEWEST_WINS"
)

// DefaultConflictStrategy is used when no strategy is configured
const DefaultConflictStrategy = StrategyRemotePriority

// ParseConflictStrategy parses a strategy name; empty selects the default
func ParseConflictStrategy(s string) (ConflictStrategy, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return DefaultConflictStrategy, nil
	}
	cs := ConflictStrategy(s)
	if !cs.IsValid() {
		return "", ErrInvalidStrategy
	}
	return cs, nil
}

// IsValid returns true if the strategy is known
func (s ConflictStrategy) IsValid() bool {
	switch s {
	case StrategyRemotePriority, StrategyLocalPriority, StrategyNewestWins:
		return true
	default:
		return false
	}
}

// String returns the string representation of ConflictStrategy
func (s ConflictStrategy) String() string {
	return string(s)
}

// ShouldOverwrite reports whether incoming should replace existing.
// A missing record is always created. Under NEWEST_WINS a missing timestamp on
// either side approves the overwrite.
func ShouldOverwrite(existing *ProductRecord, incoming *CatalogItem, strategy ConflictStrategy) bool {
	if existing == nil {
		return true
	}

	switch strategy {
	case StrategyLocalPriority:
		return false
	case StrategyNewestWins:
		if incoming == nil || incoming.ModifiedAt == nil || existing.ModifiedAt == nil {
			return true
		}
		return incoming.ModifiedAt.After(*existing.ModifiedAt)
	default:
		return true
	}
}
