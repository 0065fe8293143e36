package marketplace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var analysisNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func testRecord(account Account, stock, offers int, rank *int) *ProductRecord {
	synced := analysisNow.Add(-time.Hour)
	return &ProductRecord{
		SKU:            "SKU-1",
		Account:        account,
		StockQuantity:  stock,
		NumberOfOffers: offers,
		BuyBoxRank:     rank,
		LastSyncedAt:   &synced,
	}
}

func intPtr(i int) *int {
	return &i
}

func findRecommendation(a *StockAnalysis, kind RecommendationKind) *Recommendation {
	for i := range a.Recommendations {
		if a.Recommendations[i].Kind == kind {
			return &a.Recommendations[i]
		}
	}
	return nil
}

func TestAnalyze_ZeroStockWithCompetition(t *testing.T) {
	main := testRecord(AccountMain, 0, 3, nil)
	fbe := testRecord(AccountFBE, 12, 1, nil)

	a, err := Analyze("SKU-1", main, fbe, DefaultPolicy(), analysisNow)
	require.NoError(t, err)

	assert.Equal(t, PriorityHigh, a.Priority)
	assert.True(t, a.ActionRequired)

	rec := findRecommendation(a, RecommendationTransferZeroStock)
	require.NotNil(t, rec)
	assert.Equal(t, AccountFBE, rec.From)
	assert.Equal(t, AccountMain, rec.To)
	assert.LessOrEqual(t, rec.Quantity, 10)
	assert.LessOrEqual(t, rec.Quantity, 12)
	assert.Equal(t, 10, rec.Quantity)
	assert.Contains(t, rec.Reason, "losing buy box")
}

func TestAnalyze_ZeroStockTransferBoundedByAvailable(t *testing.T) {
	a, err := Analyze("SKU-1", testRecord(AccountMain, 0, 2, nil), testRecord(AccountFBE, 4, 1, nil), DefaultPolicy(), analysisNow)
	require.NoError(t, err)

	rec := findRecommendation(a, RecommendationTransferZeroStock)
	require.NotNil(t, rec)
	assert.Equal(t, 4, rec.Quantity)
}

func TestAnalyze_BalancedHasNoActions(t *testing.T) {
	main := testRecord(AccountMain, 50, 1, nil)
	fbe := testRecord(AccountFBE, 50, 1, nil)

	a, err := Analyze("SKU-1", main, fbe, DefaultPolicy(), analysisNow)
	require.NoError(t, err)

	assert.False(t, a.ActionRequired)
	assert.Equal(t, PriorityNormal, a.Priority)
	assert.Equal(t, 100, a.TotalStock)
	for _, r := range a.Recommendations {
		assert.False(t, r.Actionable, "unexpected actionable %s", r.Kind)
	}
	assert.NotNil(t, findRecommendation(a, RecommendationHealthy))
}

func TestAnalyze_LowStockAlert(t *testing.T) {
	a, err := Analyze("SKU-1", testRecord(AccountMain, 3, 2, nil), testRecord(AccountFBE, 3, 1, nil), DefaultPolicy(), analysisNow)
	require.NoError(t, err)

	assert.Equal(t, PriorityMedium, a.Priority)
	assert.True(t, a.ActionRequired)
	rec := findRecommendation(a, RecommendationLowStockAlert)
	require.NotNil(t, rec)
	assert.Equal(t, AccountMain, rec.Account)
	assert.False(t, rec.IsTransfer())
}

func TestAnalyze_ZeroStockOutranksLowStock(t *testing.T) {
	// MAIN is empty under competition, FBE is low under competition
	a, err := Analyze("SKU-1", testRecord(AccountMain, 0, 2, nil), testRecord(AccountFBE, 2, 4, nil), DefaultPolicy(), analysisNow)
	require.NoError(t, err)

	assert.Equal(t, PriorityHigh, a.Priority)
	assert.NotNil(t, findRecommendation(a, RecommendationTransferZeroStock))
	assert.NotNil(t, findRecommendation(a, RecommendationLowStockAlert))
}

func TestAnalyze_RankRebalance(t *testing.T) {
	main := testRecord(AccountMain, 6, 1, intPtr(1))
	fbe := testRecord(AccountFBE, 30, 1, intPtr(4))

	a, err := Analyze("SKU-1", main, fbe, DefaultPolicy(), analysisNow)
	require.NoError(t, err)

	rec := findRecommendation(a, RecommendationRankRebalance)
	require.NotNil(t, rec)
	assert.Equal(t, AccountFBE, rec.From)
	assert.Equal(t, AccountMain, rec.To)
	assert.Equal(t, 10, rec.Quantity)

	// half of donor stock when under the cap
	a, err = Analyze("SKU-1", testRecord(AccountMain, 2, 1, intPtr(1)), testRecord(AccountFBE, 8, 1, intPtr(2)), DefaultPolicy(), analysisNow)
	require.NoError(t, err)
	rec = findRecommendation(a, RecommendationRankRebalance)
	require.NotNil(t, rec)
	assert.Equal(t, 4, rec.Quantity)

	// better ranked side already holds more stock
	a, err = Analyze("SKU-1", testRecord(AccountMain, 20, 1, intPtr(1)), testRecord(AccountFBE, 8, 1, intPtr(2)), DefaultPolicy(), analysisNow)
	require.NoError(t, err)
	assert.Nil(t, findRecommendation(a, RecommendationRankRebalance))
}

func TestAnalyze_OptimizeDistribution(t *testing.T) {
	main := testRecord(AccountMain, 25, 1, nil)
	fbe := testRecord(AccountFBE, 8, 3, nil)

	a, err := Analyze("SKU-1", main, fbe, DefaultPolicy(), analysisNow)
	require.NoError(t, err)

	rec := findRecommendation(a, RecommendationOptimize)
	require.NotNil(t, rec)
	assert.Equal(t, AccountMain, rec.From)
	assert.Equal(t, AccountFBE, rec.To)
	assert.Equal(t, 15, rec.Quantity)
	assert.Equal(t, PriorityNormal, a.Priority)
	assert.True(t, a.ActionRequired)
}

func TestAnalyze_WeeklyUpdate(t *testing.T) {
	main := testRecord(AccountMain, 50, 1, nil)
	stale := analysisNow.Add(-8 * 24 * time.Hour)
	main.LastSyncedAt = &stale

	a, err := Analyze("SKU-1", main, nil, DefaultPolicy(), analysisNow)
	require.NoError(t, err)

	rec := findRecommendation(a, RecommendationWeeklyUpdate)
	require.NotNil(t, rec)
	assert.Equal(t, AccountMain, rec.Account)
	assert.True(t, a.ActionRequired)
	assert.False(t, a.FBE.Listed)
}

func TestAnalyze_OneSideMissing(t *testing.T) {
	a, err := Analyze("SKU-1", nil, testRecord(AccountFBE, 0, 3, nil), DefaultPolicy(), analysisNow)
	require.NoError(t, err)

	// no donor stock, nothing to transfer
	assert.Nil(t, findRecommendation(a, RecommendationTransferZeroStock))
	assert.Equal(t, 0, a.Main.Stock)
	assert.Equal(t, 0, a.Main.NumberOfOffers)
}

func TestAnalyze_NoRecords(t *testing.T) {
	_, err := Analyze("SKU-1", nil, nil, DefaultPolicy(), analysisNow)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	_, err = Analyze("", testRecord(AccountMain, 1, 1, nil), nil, DefaultPolicy(), analysisNow)
	assert.ErrorIs(t, err, ErrInvalidSKU)
}

func TestAnalyze_CustomPolicy(t *testing.T) {
	policy := DefaultPolicy()
	policy.TransferCap = 3

	a, err := Analyze("SKU-1", testRecord(AccountMain, 0, 3, nil), testRecord(AccountFBE, 12, 1, nil), policy, analysisNow)
	require.NoError(t, err)

	rec := findRecommendation(a, RecommendationTransferZeroStock)
	require.NotNil(t, rec)
	assert.Equal(t, 3, rec.Quantity)
}

func TestSuggestTransfer(t *testing.T) {
	t.Run("Amount above donor stock is rejected", func(t *testing.T) {
		fbe := testRecord(AccountFBE, 5, 1, nil)
		main := testRecord(AccountMain, 0, 2, nil)

		s, err := SuggestTransfer("SKU-1", AccountFBE, AccountMain, 6, fbe, main, DefaultPolicy())
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.Nil(t, s)
		assert.Equal(t, 5, fbe.StockQuantity)
		assert.Equal(t, 0, main.StockQuantity)
	})

	t.Run("Projects both sides", func(t *testing.T) {
		s, err := SuggestTransfer("SKU-1", AccountFBE, AccountMain, 4, testRecord(AccountFBE, 12, 1, nil), testRecord(AccountMain, 1, 3, nil), DefaultPolicy())
		require.NoError(t, err)
		assert.Equal(t, 12, s.FromStockBefore)
		assert.Equal(t, 8, s.FromStockAfter)
		assert.Equal(t, 1, s.ToStockBefore)
		assert.Equal(t, 5, s.ToStockAfter)
		assert.False(t, s.HasWarnings())
	})

	t.Run("Warns when donor is emptied under competition", func(t *testing.T) {
		s, err := SuggestTransfer("SKU-1", AccountFBE, AccountMain, 5, testRecord(AccountFBE, 5, 2, nil), testRecord(AccountMain, 0, 1, nil), DefaultPolicy())
		require.NoError(t, err)
		assert.Equal(t, 0, s.FromStockAfter)
		require.Len(t, s.Warnings, 1)
		assert.Contains(t, s.Warnings[0], "without stock")
	})

	t.Run("Warns when donor drops below reserve under competition", func(t *testing.T) {
		s, err := SuggestTransfer("SKU-1", AccountMain, AccountFBE, 4, testRecord(AccountMain, 6, 2, nil), testRecord(AccountFBE, 0, 1, nil), DefaultPolicy())
		require.NoError(t, err)
		require.Len(t, s.Warnings, 1)
		assert.Contains(t, s.Warnings[0], "2 units")
	})

	t.Run("No warning without competition", func(t *testing.T) {
		s, err := SuggestTransfer("SKU-1", AccountMain, AccountFBE, 6, testRecord(AccountMain, 6, 1, nil), testRecord(AccountFBE, 0, 1, nil), DefaultPolicy())
		require.NoError(t, err)
		assert.False(t, s.HasWarnings())
	})

	t.Run("Invalid input", func(t *testing.T) {
		rec := testRecord(AccountMain, 6, 1, nil)
		_, err := SuggestTransfer("SKU-1", AccountMain, AccountMain, 1, rec, rec, DefaultPolicy())
		assert.ErrorIs(t, err, ErrSameAccount)
		_, err = SuggestTransfer("SKU-1", AccountMain, AccountFBE, 0, rec, nil, DefaultPolicy())
		assert.ErrorIs(t, err, ErrInvalidTransferAmount)
		_, err = SuggestTransfer("SKU-1", "RETAIL", AccountFBE, 1, rec, nil, DefaultPolicy())
		assert.ErrorIs(t, err, ErrInvalidAccount)
	})
}
