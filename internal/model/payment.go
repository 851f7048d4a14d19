package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// GatewayResponse is the structured record returned by the payment
// gateway for every authorization attempt.  It is stored verbatim in the
// payments.gateway_response JSON column.
type GatewayResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Processor string `json:"processor"`
	Timestamp string `json:"timestamp"`
}

func (g GatewayResponse) Value() (driver.Value, error) {
	b, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (g *GatewayResponse) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, g)
	case string:
		return json.Unmarshal([]byte(v), g)
	case nil:
		*g = GatewayResponse{}
		return nil
	}
	return fmt.Errorf("gateway_response: unsupported type %T", src)
}

// Payment is one processing attempt for a booking.  Rows are append-only:
// a payment is written once, in the same transaction as the booking
// transition it caused, and never updated afterwards.
type Payment struct {
	ID              uint64          `db:"id"`               // payments.id
	BookingID       uint64          `db:"booking_id"`       // payments.booking_id
	Amount          decimal.Decimal `db:"amount"`           // payments.amount
	Status          PaymentStatus   `db:"status"`           // payments.status
	PaymentMethod   string          `db:"payment_method"`   // payments.payment_method
	TransactionID   string          `db:"transaction_id"`   // payments.transaction_id
	GatewayResponse GatewayResponse `db:"gateway_response"` // payments.gateway_response
	PaidAt          *time.Time      `db:"paid_at"`          // payments.paid_at (nullable)
	RefundedAt      *time.Time      `db:"refunded_at"`      // payments.refunded_at (nullable)
	CreatedAt       time.Time       `db:"created_at"`       // payments.created_at
	UpdatedAt       time.Time       `db:"updated_at"`       // payments.updated_at
}
