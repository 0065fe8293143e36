package marketplace

import (
	"context"
	"fmt"
	"time"
)

// CatalogPageRequest selects one page of an account's catalog. Pages start at 1.
type CatalogPageRequest struct {
	Page            int
	PageSize        int
	IncludeInactive bool
}

// CatalogPage is one fetched page. The client exposes no total count; a page
// shorter than the requested size is the last one.
type CatalogPage struct {
	Items     []RawItem
	Page      int
	FetchedAt time.Time
}

// IsLast returns true if the page is shorter than pageSize
func (p *CatalogPage) IsLast(pageSize int) bool {
	return p == nil || len(p.Items) < pageSize
}

// CatalogClient is the marketplace capability used by the sync orchestrator.
// Implementations are rate limited and return *ClientError on failure.
type CatalogClient interface {
	FetchCatalogPage(ctx context.Context, account Account, req CatalogPageRequest) (*CatalogPage, error)
}

// ClientError is a failed marketplace call. StatusCode is the HTTP status, or 0
// when the request never got a response.
type ClientError struct {
	Account    Account
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *ClientError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("marketplace %s: %s", e.Account, e.Message)
	}
	return fmt.Sprintf("marketplace %s: HTTP %d: %s", e.Account, e.StatusCode, e.Message)
}

// Unwrap returns the underlying error
func (e *ClientError) Unwrap() error {
	return e.Err
}

// Transient returns true for transport failures and 5xx responses
func (e *ClientError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}
