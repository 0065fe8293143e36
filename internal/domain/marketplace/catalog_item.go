package marketplace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// DefaultCurrency is used when an item carries no recognizable ISO 4217 code
const DefaultCurrency = "RON"

// RawItem is one undecoded item from a catalog page. Items are decoded one at a
// time so that a malformed item never fails the whole page.
type RawItem []byte

// CatalogItem is the canonical form of a marketplace catalog item
type CatalogItem struct {
	SKU            string
	ExternalID     string
	Name           string
	Price          decimal.Decimal
	Currency       string
	Stock          int
	Status         ListingStatus
	Category       string
	Images         []string
	PartNumberKey  *string
	NumberOfOffers int
	BuyBoxRank     *int
	BestOfferPrice *decimal.Decimal
	ModifiedAt     *time.Time
	CreatedAt      *time.Time
}

// catalogItemPayload mirrors the wire shape; every field except part_number is optional
type catalogItemPayload struct {
	PartNumber         flexString      `json:"part_number"`
	ID                 flexString      `json:"id"`
	Name               string          `json:"name"`
	Price              json.RawMessage `json:"price"`
	SalePrice          json.RawMessage `json:"sale_price"`
	BestOfferSalePrice json.RawMessage `json:"best_offer_sale_price"`
	Currency           string          `json:"currency"`
	Stock              StockLevel      `json:"stock"`
	Status             *flexInt        `json:"status"`
	Category           flexString      `json:"category"`
	CategoryID         flexString      `json:"category_id"`
	Images             imageList       `json:"images"`
	PartNumberKey      flexString      `json:"part_number_key"`
	NumberOfOffers     *flexInt        `json:"number_of_offers"`
	BuyButtonRank      *flexInt        `json:"buy_button_rank"`
	Modified           flexString      `json:"modified"`
	Created            flexString      `json:"created"`
}

// DecodeCatalogItem decodes one raw item into its canonical form.
// Only structurally broken items (invalid JSON, missing part_number, stock of an
// unsupported shape) return an error; absent optional fields become zero/nil.
func DecodeCatalogItem(raw RawItem) (*CatalogItem, error) {
	var p catalogItemPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedItem, err)
	}

	sku := strings.TrimSpace(string(p.PartNumber))
	if sku == "" {
		return nil, fmt.Errorf("%w: missing part_number", ErrMalformedItem)
	}

	item := &CatalogItem{
		SKU:            sku,
		ExternalID:     string(p.ID),
		Name:           p.Name,
		Price:          firstPrice(p.SalePrice, p.Price),
		Currency:       NormalizeCurrency(p.Currency),
		Stock:          int(p.Stock),
		Status:         ListingStatusInactive,
		Category:       firstNonEmpty(string(p.Category), string(p.CategoryID)),
		Images:         []string(p.Images),
		NumberOfOffers: 1,
		ModifiedAt:     ParseMarketplaceTime(string(p.Modified)),
		CreatedAt:      ParseMarketplaceTime(string(p.Created)),
	}

	if p.Status != nil {
		item.Status = ListingStatusFromCode(int(*p.Status))
	}
	if pnk := strings.TrimSpace(string(p.PartNumberKey)); pnk != "" {
		item.PartNumberKey = &pnk
	}
	if p.NumberOfOffers != nil && *p.NumberOfOffers > 0 {
		item.NumberOfOffers = int(*p.NumberOfOffers)
	}
	if p.BuyButtonRank != nil && *p.BuyButtonRank > 0 {
		rank := int(*p.BuyButtonRank)
		item.BuyBoxRank = &rank
	}
	if best, ok := parsePrice(p.BestOfferSalePrice); ok {
		item.BestOfferPrice = &best
	}

	return item, nil
}

// PeekSKU returns the part_number of raw when it can be read on its own, or "".
// It labels items that DecodeCatalogItem rejects for another field.
func PeekSKU(raw RawItem) string {
	var p struct {
		PartNumber flexString `json:"part_number"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return ""
	}
	return strings.TrimSpace(string(p.PartNumber))
}

// ---------------------------------------------------------------------------
// Stock decoding
// ---------------------------------------------------------------------------

// StockLevel is a stock quantity decoded from any of the shapes the marketplace
// uses: a bare integer, an object with a "value" key, or a list of per-warehouse
// entries that are summed. Negative quantities clamp to zero.
type StockLevel int

// UnmarshalJSON implements json.Unmarshaler
func (s *StockLevel) UnmarshalJSON(data []byte) error {
	n, err := ParseStock(data)
	if err != nil {
		return err
	}
	*s = StockLevel(n)
	return nil
}

// ParseStock decodes a JSON stock value into a canonical non-negative integer
func ParseStock(data []byte) (int, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, nil
	}

	var n int
	switch trimmed[0] {
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return 0, fmt.Errorf("%w: stock list: %v", ErrMalformedItem, err)
		}
		for _, entry := range entries {
			v, err := ParseStock(entry)
			if err != nil {
				return 0, err
			}
			n += v
		}
	case '{':
		var obj struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return 0, fmt.Errorf("%w: stock object: %v", ErrMalformedItem, err)
		}
		v, err := parseStockScalar(obj.Value)
		if err != nil {
			return 0, err
		}
		n = v
	default:
		v, err := parseStockScalar(trimmed)
		if err != nil {
			return 0, err
		}
		n = v
	}

	if n < 0 {
		return 0, nil
	}
	return n, nil
}

func parseStockScalar(data []byte) (int, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, nil
	}
	s := strings.Trim(string(trimmed), `"`)
	if i, err := strconv.Atoi(s); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unsupported stock value %s", ErrMalformedItem, string(trimmed))
	}
	return int(f), nil
}

// ---------------------------------------------------------------------------
// Tolerant field helpers
// ---------------------------------------------------------------------------

// marketplaceTimeLayouts are tried in order; the API mixes ISO-8601 and SQL-style timestamps
var marketplaceTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseMarketplaceTime parses a marketplace timestamp. Timestamps without a zone
// are read as UTC. Empty or unparsable values yield nil.
func ParseMarketplaceTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range marketplaceTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// NormalizeCurrency returns the ISO 4217 code for s, or DefaultCurrency
func NormalizeCurrency(s string) string {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(s)))
	if err != nil {
		return DefaultCurrency
	}
	return unit.String()
}

func firstPrice(candidates ...json.RawMessage) decimal.Decimal {
	for _, c := range candidates {
		if d, ok := parsePrice(c); ok {
			return d
		}
	}
	return decimal.Zero
}

// parsePrice accepts a JSON number or numeric string; anything else is "absent"
func parsePrice(raw json.RawMessage) (decimal.Decimal, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.Trim(string(trimmed), `"`))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// flexString accepts a JSON string, number or null
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		// structured values are not identifiers; treat as absent
		*f = ""
		return nil
	}
	*f = flexString(trimmed)
	return nil
}

// flexInt accepts a JSON number or numeric string; unparsable values read as zero
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if i, err := strconv.Atoi(s); err == nil {
		*f = flexInt(i)
		return nil
	}
	if fl, err := strconv.ParseFloat(s, 64); err == nil {
		*f = flexInt(int(fl))
		return nil
	}
	*f = 0
	return nil
}

// imageList accepts a list of URLs or a list of {"url": ...} objects
type imageList []string

func (l *imageList) UnmarshalJSON(data []byte) error {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		*l = nil
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		var url string
		if err := json.Unmarshal(e, &url); err == nil {
			if url != "" {
				out = append(out, url)
			}
			continue
		}
		var obj struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(e, &obj); err == nil && obj.URL != "" {
			out = append(out, obj.URL)
		}
	}
	*l = out
	return nil
}
