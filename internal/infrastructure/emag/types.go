package emag

import (
	"encoding/json"
	"strings"
)

// productOfferReadPath is the catalog read endpoint relative to the base URL
const productOfferReadPath = "/product_offer/read"

// statusActive is the marketplace code for an active listing
const statusActive = 1

// readRequest is the body of a product_offer/read call
type readRequest struct {
	CurrentPage  int  `json:"currentPage"`
	ItemsPerPage int  `json:"itemsPerPage"`
	Status       *int `json:"status,omitempty"`
}

// readResponse is the common response envelope
type readResponse struct {
	IsError  bool              `json:"isError"`
	Messages []json.RawMessage `json:"messages"`
	Results  []json.RawMessage `json:"results"`
}

// messageText flattens the envelope messages. Entries are either plain strings
// or objects; objects are kept as raw JSON.
func (r *readResponse) messageText() string {
	parts := make([]string, 0, len(r.Messages))
	for _, raw := range r.Messages {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				parts = append(parts, s)
			}
			continue
		}
		parts = append(parts, string(raw))
	}
	return strings.Join(parts, "; ")
}
