package booking

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// DefaultApprovalRate is the probability that the simulator approves a
// charge.
const DefaultApprovalRate = 0.8

// PaymentMethod is recorded on every payment produced by the simulator.
const PaymentMethod = "mock"

const (
	simulatorProcessor = "MockGateway"
	codeApproved       = "00"
	codeDeclined       = "05"
)

// GatewayResult is the outcome of one authorization call.  Response is
// populated for approvals and declines alike.
type GatewayResult struct {
	Approved bool
	Response model.GatewayResponse
}

// Gateway authorizes a charge.  Implementations must be safe for
// concurrent use.  A returned error means the gateway could not be
// reached; a decline is a normal result with Approved=false.
type Gateway interface {
	Authorize(ctx context.Context, amount decimal.Decimal) (GatewayResult, error)
}

// Simulator is an in-process gateway that approves each call
// independently with probability Rate.
type Simulator struct {
	Rate float64
	// Float returns a value in [0, 1).  Defaults to math/rand/v2.Float64.
	Float func() float64
	Now   func() time.Time
}

// NewSimulator returns a simulator with the given approval rate.  Rates
// outside [0, 1] are clamped.
func NewSimulator(rate float64) *Simulator {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	return &Simulator{Rate: rate, Float: rand.Float64, Now: time.Now}
}

func (s *Simulator) Authorize(_ context.Context, _ decimal.Decimal) (GatewayResult, error) {
	draw := rand.Float64
	if s.Float != nil {
		draw = s.Float
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	res := GatewayResult{
		Approved: draw() < s.Rate,
		Response: model.GatewayResponse{
			Processor: simulatorProcessor,
			Timestamp: now().UTC().Format(time.RFC3339),
		},
	}
	if res.Approved {
		res.Response.Code = codeApproved
		res.Response.Message = "Transaction approved"
	} else {
		res.Response.Code = codeDeclined
		res.Response.Message = "Do not honor"
	}
	return res, nil
}
