package marketsync

import (
	"time"

	"github.com/erp/marketsync/internal/domain/marketplace"
)

// SyncRequest describes one sync invocation. Zero values take the service defaults.
type SyncRequest struct {
	Accounts        []marketplace.Account        `json:"accounts" validate:"required,min=1,max=2,dive,oneof=MAIN FBE"`
	Mode            marketplace.SyncMode         `json:"mode" validate:"omitempty,oneof=FULL INCREMENTAL"`
	MaxPages        int                          `json:"max_pages" validate:"gte=0,lte=10000"`
	PageSize        int                          `json:"page_size" validate:"gte=0,lte=1000"`
	IncludeInactive bool                         `json:"include_inactive"`
	Timeout         time.Duration                `json:"timeout"`
	Strategy        marketplace.ConflictStrategy `json:"strategy" validate:"omitempty,oneof=REMOTE_PRIORITY LOCAL_PRIORITY NEWEST_WINS"`
	TriggeredBy     marketplace.TriggerSource    `json:"triggered_by" validate:"omitempty,oneof=manual scheduled"`
}

// TransferRequest asks for a projected stock transfer between accounts
type TransferRequest struct {
	SKU    string              `json:"sku" validate:"required,max=128"`
	From   marketplace.Account `json:"from" validate:"required,oneof=MAIN FBE"`
	To     marketplace.Account `json:"to" validate:"required,oneof=MAIN FBE,nefield=From"`
	Amount int                 `json:"amount" validate:"required,gt=0"`
}

// SyncDefaults are applied to zero fields of a SyncRequest
type SyncDefaults struct {
	PageSize  int
	MaxPages  int
	Timeout   time.Duration
	PageDelay time.Duration
	LockTTL   time.Duration
	Strategy  marketplace.ConflictStrategy
}

// DefaultSyncDefaults returns the defaults used when none are configured
func DefaultSyncDefaults() SyncDefaults {
	return SyncDefaults{
		PageSize:  100,
		MaxPages:  500,
		Timeout:   15 * time.Minute,
		PageDelay: 500 * time.Millisecond,
		Strategy:  marketplace.DefaultConflictStrategy,
	}
}
