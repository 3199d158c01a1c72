package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// DineType distinguishes dine-in from takeout orders.
type DineType string

const (
	DineIn  DineType = "dine_in"
	Takeout DineType = "takeout"
)

// ParseDineType accepts the identifier code letter or a spelled out name.
func ParseDineType(s string) (DineType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "d", "dine_in", "dine-in", "dinein":
		return DineIn, nil
	case "t", "takeout", "take_out", "take-out":
		return Takeout, nil
	default:
		return "", fmt.Errorf("unknown dine type %q", s)
	}
}

// Code is the single letter used inside order identifiers.
func (d DineType) Code() byte {
	if d == DineIn {
		return 'D'
	}
	return 'T'
}

// Order is an order header stored in the relational database.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	OrderID       string          `bun:"order_id,pk"`
	DineType      DineType        `bun:"dine_type,notnull"`
	Status        Status          `bun:"status,notnull"`
	TotalAmount   decimal.Decimal `bun:"total_amount,type:numeric(10,2),notnull"`
	TableNumber   string          `bun:"table_number"`
	TakeoutNumber string          `bun:"takeout_number"`
	Notes         string          `bun:"notes"`
	CreateTime    time.Time       `bun:"create_time,notnull"`

	Lines []*OrderLine `bun:"rel:has-many,join:order_id=order_id"`
}

// OrderLine is a single resolved line of an order. Price is the unit price
// captured at admission and is never re-read from the catalog.
type OrderLine struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID       int64           `bun:"id,pk,autoincrement"`
	OrderID  string          `bun:"order_id,notnull"`
	MenuID   int64           `bun:"menu_id,notnull"`
	Quantity int             `bun:"quantity,notnull"`
	Price    decimal.Decimal `bun:"price,type:numeric(10,2),notnull"`
}
