package marketplace

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStock(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "bare integer", input: `25`, want: 25},
		{name: "keyed object", input: `{"value": 25}`, want: 25},
		{name: "warehouse list", input: `[{"value": 10}, {"value": 15}]`, want: 25},
		{name: "list of integers", input: `[10, 15]`, want: 25},
		{name: "numeric string", input: `"7"`, want: 7},
		{name: "float", input: `3.0`, want: 3},
		{name: "null", input: `null`, want: 0},
		{name: "empty list", input: `[]`, want: 0},
		{name: "object without value", input: `{"warehouse_id": 2}`, want: 0},
		{name: "negative clamps to zero", input: `-4`, want: 0},
		{name: "text is rejected", input: `"plenty"`, wantErr: true},
		{name: "boolean is rejected", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStock([]byte(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedItem)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStock_FormatAgnostic(t *testing.T) {
	a, err := ParseStock([]byte(`25`))
	require.NoError(t, err)
	b, err := ParseStock([]byte(`{"value":25}`))
	require.NoError(t, err)
	c, err := ParseStock([]byte(`[{"value":10},{"value":15}]`))
	require.NoError(t, err)

	assert.Equal(t, 25, a)
	assert.Equal(t, a, b)
	assert.Equal(t, b, c)

	again, err := ParseStock([]byte(`[{"value":10},{"value":15}]`))
	require.NoError(t, err)
	assert.Equal(t, c, again)
}

func TestDecodeCatalogItem(t *testing.T) {
	t.Run("Full item", func(t *testing.T) {
		raw := RawItem(`{
			"id": 4411,
			"part_number": "SKU-1",
			"name": "Desk lamp",
			"price": "99.90",
			"sale_price": 89.5,
			"best_offer_sale_price": 85,
			"currency": "ron",
			"stock": [{"warehouse_id": 1, "value": 4}, {"warehouse_id": 2, "value": 6}],
			"status": 1,
			"category_id": 120,
			"images": [{"url": "https://img/1.jpg"}, "https://img/2.jpg"],
			"part_number_key": "D5DD1ABBM",
			"number_of_offers": 3,
			"buy_button_rank": 2,
			"modified": "2024-03-01T10:00:00Z",
			"created": "2023-12-24 08:30:00"
		}`)

		item, err := DecodeCatalogItem(raw)
		require.NoError(t, err)
		assert.Equal(t, "SKU-1", item.SKU)
		assert.Equal(t, "4411", item.ExternalID)
		assert.Equal(t, "Desk lamp", item.Name)
		assert.True(t, decimal.RequireFromString("89.5").Equal(item.Price))
		assert.Equal(t, "RON", item.Currency)
		assert.Equal(t, 10, item.Stock)
		assert.Equal(t, ListingStatusActive, item.Status)
		assert.Equal(t, "120", item.Category)
		assert.Equal(t, []string{"https://img/1.jpg", "https://img/2.jpg"}, item.Images)
		require.NotNil(t, item.PartNumberKey)
		assert.Equal(t, "D5DD1ABBM", *item.PartNumberKey)
		assert.Equal(t, 3, item.NumberOfOffers)
		require.NotNil(t, item.BuyBoxRank)
		assert.Equal(t, 2, *item.BuyBoxRank)
		require.NotNil(t, item.BestOfferPrice)
		assert.True(t, decimal.NewFromInt(85).Equal(*item.BestOfferPrice))
		require.NotNil(t, item.ModifiedAt)
		assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), *item.ModifiedAt)
		require.NotNil(t, item.CreatedAt)
		assert.Equal(t, time.Date(2023, 12, 24, 8, 30, 0, 0, time.UTC), *item.CreatedAt)
	})

	t.Run("Minimal item uses defaults", func(t *testing.T) {
		item, err := DecodeCatalogItem(RawItem(`{"part_number": "SKU-2"}`))
		require.NoError(t, err)
		assert.Equal(t, "SKU-2", item.SKU)
		assert.True(t, item.Price.IsZero())
		assert.Equal(t, DefaultCurrency, item.Currency)
		assert.Equal(t, 0, item.Stock)
		assert.Equal(t, ListingStatusInactive, item.Status)
		assert.Nil(t, item.PartNumberKey)
		assert.Equal(t, 1, item.NumberOfOffers)
		assert.Nil(t, item.BuyBoxRank)
		assert.Nil(t, item.BestOfferPrice)
		assert.Nil(t, item.ModifiedAt)
	})

	t.Run("Null optional fields never fail", func(t *testing.T) {
		item, err := DecodeCatalogItem(RawItem(`{
			"part_number": "SKU-3", "price": null, "sale_price": "n/a",
			"part_number_key": null, "number_of_offers": null, "modified": "yesterday"
		}`))
		require.NoError(t, err)
		assert.True(t, item.Price.IsZero())
		assert.Nil(t, item.PartNumberKey)
		assert.Equal(t, 1, item.NumberOfOffers)
		assert.Nil(t, item.ModifiedAt)
	})

	t.Run("Price falls back to list price", func(t *testing.T) {
		item, err := DecodeCatalogItem(RawItem(`{"part_number": "SKU-4", "price": 12.5}`))
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("12.5").Equal(item.Price))
	})

	t.Run("Missing part number", func(t *testing.T) {
		_, err := DecodeCatalogItem(RawItem(`{"id": 1, "name": "orphan"}`))
		assert.ErrorIs(t, err, ErrMalformedItem)
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		_, err := DecodeCatalogItem(RawItem(`{"part_number": `))
		assert.ErrorIs(t, err, ErrMalformedItem)
	})

	t.Run("Unsupported stock shape", func(t *testing.T) {
		_, err := DecodeCatalogItem(RawItem(`{"part_number": "SKU-5", "stock": "lots"}`))
		assert.ErrorIs(t, err, ErrMalformedItem)
	})
}

func TestPeekSKU(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"readable despite bad stock", `{"part_number": " SKU-5 ", "stock": "lots"}`, "SKU-5"},
		{"numeric part number", `{"part_number": 1234, "stock": {"value": "x"}}`, "1234"},
		{"missing part number", `{"name": "orphan"}`, ""},
		{"invalid JSON", `{"part_number": `, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PeekSKU(RawItem(tt.raw)))
		})
	}
}

func TestParseMarketplaceTime(t *testing.T) {
	tests := []struct {
		input string
		want  *time.Time
	}{
		{input: "2024-05-01T12:30:00Z", want: ptrTime(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC))},
		{input: "2024-05-01T14:30:00+02:00", want: ptrTime(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC))},
		{input: "2024-05-01T12:30:00", want: ptrTime(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC))},
		{input: "2024-05-01 12:30:00", want: ptrTime(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC))},
		{input: "2024-05-01", want: ptrTime(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))},
		{input: "", want: nil},
		{input: "not a date", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseMarketplaceTime(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %v", got)
		})
	}
}

func TestNormalizeCurrency(t *testing.T) {
	assert.Equal(t, "RON", NormalizeCurrency("RON"))
	assert.Equal(t, "EUR", NormalizeCurrency(" eur "))
	assert.Equal(t, "RON", NormalizeCurrency(""))
	assert.Equal(t, "RON", NormalizeCurrency("12$"))
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
