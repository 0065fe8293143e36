package marketplace

import "time"

// Policy holds the business thresholds used by the analyzer and the
// competition tracker. Values come from configuration.
type Policy struct {
	// TransferCap is the maximum number of units suggested in one transfer
	TransferCap int
	// LowStockThreshold marks stock strictly below it (and above zero) as low
	LowStockThreshold int
	// OptimizationFloor is the stock kept on an uncontested account before excess is moved
	OptimizationFloor int
	// StaleAfter is the age of last_synced_at that triggers a weekly update
	StaleAfter time.Duration
	// DonorReserve is the donor stock below which a transfer is warned about
	DonorReserve int
	// HighCompetitionOffers is the offer count at which a listing requires action
	HighCompetitionOffers int
	// RankAlert is the worst acceptable buy box rank
	RankAlert int
	// NewCompetitorAlert is the number of new offers in one check that requires action
	NewCompetitorAlert int
}

// DefaultPolicy returns the thresholds the business operates with
func DefaultPolicy() Policy {
	return Policy{
		TransferCap:           10,
		LowStockThreshold:     5,
		OptimizationFloor:     10,
		StaleAfter:            7 * 24 * time.Hour,
		DonorReserve:          3,
		HighCompetitionOffers: 5,
		RankAlert:             3,
		NewCompetitorAlert:    2,
	}
}

// WithDefaults fills zero thresholds from DefaultPolicy
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.TransferCap <= 0 {
		p.TransferCap = d.TransferCap
	}
	if p.LowStockThreshold <= 0 {
		p.LowStockThreshold = d.LowStockThreshold
	}
	if p.OptimizationFloor <= 0 {
		p.OptimizationFloor = d.OptimizationFloor
	}
	if p.StaleAfter <= 0 {
		p.StaleAfter = d.StaleAfter
	}
	if p.DonorReserve <= 0 {
		p.DonorReserve = d.DonorReserve
	}
	if p.HighCompetitionOffers <= 0 {
		p.HighCompetitionOffers = d.HighCompetitionOffers
	}
	if p.RankAlert <= 0 {
		p.RankAlert = d.RankAlert
	}
	if p.NewCompetitorAlert <= 0 {
		p.NewCompetitorAlert = d.NewCompetitorAlert
	}
	return p
}
