package dispatch

import (
	"time"

	"github.com/shopspring/decimal"
)

type CommissionType string

const (
	CommissionPercentage CommissionType = "PERCENTAGE"
	CommissionFlat       CommissionType = "FLAT"
)

// Agent is a delivery agent. UpdatedAt doubles as the fairness clock: the
// allocator scans agents oldest-updated first.
type Agent struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Phone             string          `json:"phone"`
	IsActive          bool            `json:"is_active"`
	IsAvailable       bool            `json:"is_available"`
	MaxActiveOrders   int             `json:"max_active_orders"`
	Lat               *float64        `json:"lat,omitempty"`
	Lng               *float64        `json:"lng,omitempty"`
	LocationUpdatedAt *time.Time      `json:"location_updated_at,omitempty"`
	CommissionType    CommissionType  `json:"commission_type"`
	CommissionValue   decimal.Decimal `json:"commission_value"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Commission is what the agent earns for delivering an order of amount.
func (a *Agent) Commission(amount decimal.Decimal) decimal.Decimal {
	if a.CommissionType == CommissionPercentage {
		return amount.Mul(a.CommissionValue).Div(decimal.NewFromInt(100)).Round(2)
	}
	return a.CommissionValue
}

type Location struct {
	AgentID   int64      `json:"agent_id"`
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// AgentLoad pairs an agent's live load with its capacity.
type AgentLoad struct {
	AgentID         int64 `json:"agent_id"`
	ActiveOrders    int   `json:"active_orders"`
	MaxActiveOrders int   `json:"max_active_orders"`
}
