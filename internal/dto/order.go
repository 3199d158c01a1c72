package dto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// CreateOrderRequest is the POST /api/orders body.
type CreateOrderRequest struct {
	OrderID       string             `json:"orderId" validate:"required"`
	DineType      string             `json:"dineType" validate:"required"`
	TotalAmount   decimal.Decimal    `json:"totalAmount"`
	TableNumber   FlexString         `json:"tableNumber"`
	TakeoutNumber FlexString         `json:"takeoutNumber"`
	Notes         string             `json:"notes" validate:"max=500"`
	Items         []OrderItemRequest `json:"items" validate:"dive"`
}

// OrderItemRequest is one submitted line. Missing quantity or price decode
// as zero.
type OrderItemRequest struct {
	Name     string          `json:"name" validate:"required"`
	Quantity int             `json:"quantity" validate:"gte=0"`
	Price    decimal.Decimal `json:"price"`
}

// CreateOrderResponse acknowledges an admitted order.
type CreateOrderResponse struct {
	Success      bool     `json:"success"`
	OrderID      string   `json:"orderId"`
	Message      string   `json:"message"`
	DroppedItems []string `json:"droppedItems,omitempty"`
}

// OrderSummary is an order header as listed by GET /api/orders.
type OrderSummary struct {
	OrderID       string  `json:"orderId"`
	DineType      string  `json:"dineType"`
	Status        string  `json:"status"`
	TotalAmount   float64 `json:"totalAmount"`
	TableNumber   string  `json:"tableNumber"`
	TakeoutNumber string  `json:"takeoutNumber"`
	Notes         string  `json:"notes"`
	Timestamp     *string `json:"timestamp"`
}

// NextOrderNumberResponse suggests the next free identifier.
type NextOrderNumberResponse struct {
	OrderID  string `json:"orderId"`
	Sequence int    `json:"sequence"`
}

// FlexString accepts a JSON string, number or null. Table and takeout numbers
// arrive as either.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = FlexString(n.String())
	return nil
}
