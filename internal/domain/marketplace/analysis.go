package marketplace

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTransferAmount = errors.New("marketplace: transfer amount must be positive")
	ErrSameAccount           = errors.New("marketplace: transfer source and destination must differ")
	ErrInsufficientStock     = errors.New("marketplace: insufficient stock on source account")
)

// Priority ranks how urgently a SKU's recommendations should be handled
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityNormal Priority = "NORMAL"
)

// String returns the string representation of Priority
func (p Priority) String() string {
	return string(p)
}

// RecommendationKind identifies the rule that produced a recommendation
type RecommendationKind string

const (
	RecommendationTransferZeroStock RecommendationKind = "TRANSFER_ZERO_STOCK"
	RecommendationLowStockAlert     RecommendationKind = "LOW_STOCK_ALERT"
	RecommendationRankRebalance     RecommendationKind = "RANK_REBALANCE"
	RecommendationOptimize          RecommendationKind = "OPTIMIZE_DISTRIBUTION"
	RecommendationWeeklyUpdate      RecommendationKind = "WEEKLY_UPDATE"
	RecommendationHealthy           RecommendationKind = "HEALTHY"
)

// String returns the string representation of RecommendationKind
func (k RecommendationKind) String() string {
	return string(k)
}

// Recommendation is one advisory produced by the analyzer.
// From/To/Quantity are set for transfer recommendations only.
type Recommendation struct {
	Kind       RecommendationKind `json:"kind"`
	Account    Account            `json:"account,omitempty"`
	From       Account            `json:"from,omitempty"`
	To         Account            `json:"to,omitempty"`
	Quantity   int                `json:"quantity,omitempty"`
	Reason     string             `json:"reason"`
	Actionable bool               `json:"actionable"`
}

// IsTransfer returns true if the recommendation moves stock between accounts
func (r Recommendation) IsTransfer() bool {
	return r.Quantity > 0 && r.From != "" && r.To != ""
}

// AccountSituation is the analyzer's view of one account for a SKU.
// A missing record reads as zero stock and no offers.
type AccountSituation struct {
	Account        Account    `json:"account"`
	Listed         bool       `json:"listed"`
	Stock          int        `json:"stock"`
	NumberOfOffers int        `json:"number_of_offers"`
	BuyBoxRank     *int       `json:"buy_box_rank,omitempty"`
	HasCompetition bool       `json:"has_competition"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
	Stale          bool       `json:"stale"`
}

// NewAccountSituation builds the situation for account from its record (nil if absent)
func NewAccountSituation(account Account, record *ProductRecord, policy Policy, now time.Time) AccountSituation {
	s := AccountSituation{Account: account}
	if record == nil {
		return s
	}
	s.Listed = true
	s.Stock = max(record.StockQuantity, 0)
	s.NumberOfOffers = record.NumberOfOffers
	s.BuyBoxRank = record.BuyBoxRank
	s.HasCompetition = record.HasCompetition()
	s.LastSyncedAt = record.LastSyncedAt
	s.Stale = record.IsStale(now, policy.StaleAfter)
	return s
}

// StockAnalysis is the recommendation bundle for one SKU
type StockAnalysis struct {
	SKU             string           `json:"sku"`
	Main            AccountSituation `json:"main"`
	FBE             AccountSituation `json:"fbe"`
	TotalStock      int              `json:"total_stock"`
	Recommendations []Recommendation `json:"recommendations"`
	Priority        Priority         `json:"priority"`
	ActionRequired  bool             `json:"action_required"`
	AnalyzedAt      time.Time        `json:"analyzed_at"`
}

// Situation returns the situation of the given account
func (a *StockAnalysis) Situation(account Account) AccountSituation {
	if account == AccountFBE {
		return a.FBE
	}
	return a.Main
}

// Analyze evaluates every distribution rule for a SKU. Rules are independent
// and may fire together. At least one of main/fbe must be present.
func Analyze(sku string, main, fbe *ProductRecord, policy Policy, now time.Time) (*StockAnalysis, error) {
	if sku == "" {
		return nil, ErrInvalidSKU
	}
	if main == nil && fbe == nil {
		return nil, ErrRecordNotFound
	}
	policy = policy.WithDefaults()

	a := &StockAnalysis{
		SKU:             sku,
		Main:            NewAccountSituation(AccountMain, main, policy, now),
		FBE:             NewAccountSituation(AccountFBE, fbe, policy, now),
		Recommendations: make([]Recommendation, 0),
		Priority:        PriorityNormal,
		AnalyzedAt:      now,
	}
	a.TotalStock = a.Main.Stock + a.FBE.Stock

	pairs := [][2]AccountSituation{{a.Main, a.FBE}, {a.FBE, a.Main}}

	zeroStockFired := false
	for _, p := range pairs {
		if rec, ok := zeroStockRule(p[0], p[1], policy); ok {
			a.Recommendations = append(a.Recommendations, rec)
			zeroStockFired = true
		}
	}

	lowStockFired := false
	for _, p := range pairs {
		if rec, ok := lowStockRule(p[0], policy); ok {
			a.Recommendations = append(a.Recommendations, rec)
			lowStockFired = true
		}
	}

	if rec, ok := rankRebalanceRule(a.Main, a.FBE, policy); ok {
		a.Recommendations = append(a.Recommendations, rec)
	}

	for _, p := range pairs {
		if rec, ok := optimizationRule(p[0], p[1], policy); ok {
			a.Recommendations = append(a.Recommendations, rec)
		}
	}

	for _, s := range []AccountSituation{a.Main, a.FBE} {
		if s.Listed && s.Stale {
			a.Recommendations = append(a.Recommendations, Recommendation{
				Kind:       RecommendationWeeklyUpdate,
				Account:    s.Account,
				Reason:     fmt.Sprintf("%s listing not synced for %s or more; re-offer to keep visibility", s.Account, policy.StaleAfter),
				Actionable: true,
			})
		}
	}

	for _, r := range a.Recommendations {
		if r.Actionable {
			a.ActionRequired = true
			break
		}
	}

	switch {
	case zeroStockFired:
		a.Priority = PriorityHigh
	case lowStockFired:
		a.Priority = PriorityMedium
	}

	if !a.ActionRequired {
		a.Recommendations = append(a.Recommendations, Recommendation{
			Kind:   RecommendationHealthy,
			Reason: "stock distribution is balanced",
		})
	}

	return a, nil
}

// zeroStockRule: target is out of stock under competition while the donor has stock
func zeroStockRule(target, donor AccountSituation, policy Policy) (Recommendation, bool) {
	if target.Stock != 0 || !target.HasCompetition || donor.Stock <= 0 {
		return Recommendation{}, false
	}
	qty := min(policy.TransferCap, donor.Stock)
	return Recommendation{
		Kind:       RecommendationTransferZeroStock,
		Account:    target.Account,
		From:       donor.Account,
		To:         target.Account,
		Quantity:   qty,
		Reason:     fmt.Sprintf("%s has no stock against %d offers: losing buy box", target.Account, target.NumberOfOffers),
		Actionable: true,
	}, true
}

func lowStockRule(s AccountSituation, policy Policy) (Recommendation, bool) {
	if s.Stock <= 0 || s.Stock >= policy.LowStockThreshold || !s.HasCompetition {
		return Recommendation{}, false
	}
	return Recommendation{
		Kind:       RecommendationLowStockAlert,
		Account:    s.Account,
		Reason:     fmt.Sprintf("%s has only %d units against %d offers; restock soon", s.Account, s.Stock, s.NumberOfOffers),
		Actionable: true,
	}, true
}

// rankRebalanceRule moves about half the donor's stock to the better ranked account
func rankRebalanceRule(main, fbe AccountSituation, policy Policy) (Recommendation, bool) {
	if main.BuyBoxRank == nil || fbe.BuyBoxRank == nil || *main.BuyBoxRank == *fbe.BuyBoxRank {
		return Recommendation{}, false
	}
	better, worse := main, fbe
	if *fbe.BuyBoxRank < *main.BuyBoxRank {
		better, worse = fbe, main
	}
	if better.Stock >= worse.Stock {
		return Recommendation{}, false
	}
	qty := min(policy.TransferCap, worse.Stock/2)
	if qty <= 0 {
		return Recommendation{}, false
	}
	return Recommendation{
		Kind:       RecommendationRankRebalance,
		Account:    better.Account,
		From:       worse.Account,
		To:         better.Account,
		Quantity:   qty,
		Reason:     fmt.Sprintf("%s ranks #%d versus #%d on %s but holds less stock", better.Account, *better.BuyBoxRank, *worse.BuyBoxRank, worse.Account),
		Actionable: true,
	}, true
}

// optimizationRule moves excess above the floor from an uncontested account to a contested one
func optimizationRule(donor, target AccountSituation, policy Policy) (Recommendation, bool) {
	if !donor.Listed || donor.HasCompetition || !target.HasCompetition || donor.Stock <= policy.OptimizationFloor {
		return Recommendation{}, false
	}
	return Recommendation{
		Kind:       RecommendationOptimize,
		Account:    target.Account,
		From:       donor.Account,
		To:         target.Account,
		Quantity:   donor.Stock - policy.OptimizationFloor,
		Reason:     fmt.Sprintf("%s has no competition; move stock above %d units to %s", donor.Account, policy.OptimizationFloor, target.Account),
		Actionable: true,
	}, true
}

// ---------------------------------------------------------------------------
// Transfer suggestion
// ---------------------------------------------------------------------------

// TransferSuggestion is the projected outcome of moving stock between accounts.
// It is advisory; nothing is applied.
type TransferSuggestion struct {
	SKU             string   `json:"sku"`
	From            Account  `json:"from"`
	To              Account  `json:"to"`
	Amount          int      `json:"amount"`
	FromStockBefore int      `json:"from_stock_before"`
	FromStockAfter  int      `json:"from_stock_after"`
	ToStockBefore   int      `json:"to_stock_before"`
	ToStockAfter    int      `json:"to_stock_after"`
	Warnings        []string `json:"warnings"`
}

// HasWarnings returns true if the caller should review before proceeding
func (s *TransferSuggestion) HasWarnings() bool {
	return len(s.Warnings) > 0
}

// SuggestTransfer validates and projects a transfer of amount units.
// fromRecord and toRecord may be nil when the SKU is not listed on that account.
func SuggestTransfer(sku string, from, to Account, amount int, fromRecord, toRecord *ProductRecord, policy Policy) (*TransferSuggestion, error) {
	if sku == "" {
		return nil, ErrInvalidSKU
	}
	if !from.IsValid() || !to.IsValid() {
		return nil, ErrInvalidAccount
	}
	if from == to {
		return nil, ErrSameAccount
	}
	if amount <= 0 {
		return nil, ErrInvalidTransferAmount
	}
	policy = policy.WithDefaults()

	var fromStock, toStock int
	if fromRecord != nil {
		fromStock = max(fromRecord.StockQuantity, 0)
	}
	if toRecord != nil {
		toStock = max(toRecord.StockQuantity, 0)
	}
	if fromStock < amount {
		return nil, fmt.Errorf("%w: %s has %d units, %d requested", ErrInsufficientStock, from, fromStock, amount)
	}

	s := &TransferSuggestion{
		SKU:             sku,
		From:            from,
		To:              to,
		Amount:          amount,
		FromStockBefore: fromStock,
		FromStockAfter:  fromStock - amount,
		ToStockBefore:   toStock,
		ToStockAfter:    toStock + amount,
		Warnings:        make([]string, 0),
	}

	if fromRecord.HasCompetition() {
		switch {
		case s.FromStockAfter == 0:
			s.Warnings = append(s.Warnings, fmt.Sprintf("%s would be left without stock while facing %d offers", from, fromRecord.NumberOfOffers))
		case s.FromStockAfter < policy.DonorReserve:
			s.Warnings = append(s.Warnings, fmt.Sprintf("%s would be left with %d units while facing %d offers", from, s.FromStockAfter, fromRecord.NumberOfOffers))
		}
	}
	if toRecord == nil {
		s.Warnings = append(s.Warnings, fmt.Sprintf("%s has no listing for %s", to, sku))
	}

	return s, nil
}
