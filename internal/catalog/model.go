// Package catalog reads the price snapshot an order is created from. The
// catalog itself is managed elsewhere; this package never writes to it.
package catalog

import "github.com/shopspring/decimal"

type Restaurant struct {
	ID       int64
	Name     string
	Lat      float64
	Lng      float64
	IsActive bool
}

// ItemRequest is one cart line as submitted at checkout.
type ItemRequest struct {
	ProductID int64   `json:"product_id"`
	VariantID *int64  `json:"variant_id,omitempty"`
	ExtraIDs  []int64 `json:"extra_ids,omitempty"`
	Quantity  int     `json:"quantity"`
}

type Extra struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// LineItem is the immutable price snapshot stored with the order.
type LineItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	VariantID   *int64          `json:"variant_id,omitempty"`
	VariantName *string         `json:"variant_name,omitempty"`
	Extras      []Extra         `json:"extras"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Subtotal sums the line totals.
func Subtotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal)
	}
	return total
}
