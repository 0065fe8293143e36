package marketplace

import (
	"time"

	"github.com/google/uuid"
)

// PNKStatus classifies whether both accounts point at the same catalog entry
type PNKStatus string

const (
	PNKStatusConsistent   PNKStatus = "CONSISTENT"
	PNKStatusInconsistent PNKStatus = "INCONSISTENT"
	PNKStatusMissing      PNKStatus = "MISSING"
)

// String returns the string representation of PNKStatus
func (s PNKStatus) String() string {
	return string(s)
}

// EvaluatePNK classifies a pair of part number keys. Empty keys count as absent.
func EvaluatePNK(main, fbe *string) PNKStatus {
	if isBlank(main) || isBlank(fbe) {
		return PNKStatusMissing
	}
	if *main != *fbe {
		return PNKStatusInconsistent
	}
	return PNKStatusConsistent
}

// PNKConsistencyFact is the per-SKU part number key comparison. Unique on SKU.
type PNKConsistencyFact struct {
	ID           uuid.UUID
	SKU          string
	PNKMain      *string
	PNKFBE       *string
	IsConsistent bool
	Status       PNKStatus
	CheckedAt    time.Time
	ResolvedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewPNKConsistencyFact creates the first fact for a SKU
func NewPNKConsistencyFact(sku string, main, fbe *ProductRecord, now time.Time) (*PNKConsistencyFact, error) {
	if sku == "" {
		return nil, ErrInvalidSKU
	}
	f := &PNKConsistencyFact{
		ID:        uuid.New(),
		SKU:       sku,
		CreatedAt: now,
	}
	f.Recheck(main, fbe, now)
	return f, nil
}

// Recheck recomputes the fact from the current records. ResolvedAt is stamped
// the first time the fact becomes consistent and kept afterwards.
func (f *PNKConsistencyFact) Recheck(main, fbe *ProductRecord, now time.Time) {
	f.PNKMain = partNumberKeyOf(main)
	f.PNKFBE = partNumberKeyOf(fbe)
	f.Status = EvaluatePNK(f.PNKMain, f.PNKFBE)
	f.IsConsistent = f.Status == PNKStatusConsistent
	f.CheckedAt = now
	f.UpdatedAt = now
	if f.IsConsistent && f.ResolvedAt == nil {
		resolved := now
		f.ResolvedAt = &resolved
	}
}

func partNumberKeyOf(r *ProductRecord) *string {
	if r == nil || isBlank(r.PartNumberKey) {
		return nil
	}
	key := *r.PartNumberKey
	return &key
}

func isBlank(s *string) bool {
	return s == nil || *s == ""
}
