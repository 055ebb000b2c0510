package messages

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomsUpdated is produced by the clearance worker after each broker check and applied by the API.
type CustomsUpdated struct {
	ShipmentID     uuid.UUID `json:"shipment_id"`
	TrackingNumber string    `json:"tracking_number"`
	CheckedAt      time.Time `json:"checked_at"`

	// Status is empty when the broker reported nothing new.
	Status    string `json:"status,omitempty"`
	StatusRaw string `json:"status_raw,omitempty"`

	Fees   *Amount `json:"fees,omitempty"`
	Reason *string `json:"reason,omitempty"`

	NextCheckAt time.Time `json:"next_check_at"`

	Error *string `json:"error,omitempty"`
}

type Amount struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}
