package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/linzen78111/pos2"

// Instruments holds the order-intake metrics. A nil *Instruments records
// nothing, which keeps callers free of nil checks in tests.
type Instruments struct {
	ordersAdmitted metric.Int64Counter
	linesDropped   metric.Int64Counter
	duplicateIDs   metric.Int64Counter
	hotItems       metric.Float64Histogram
}

// NewInstruments registers the instruments on the manager's meter provider.
func NewInstruments(mgr *Manager) (*Instruments, error) {
	return NewInstrumentsFrom(mgr.MeterProvider())
}

// NewInstrumentsFrom registers the instruments on mp.
func NewInstrumentsFrom(mp metric.MeterProvider) (*Instruments, error) {
	meter := mp.Meter(meterName)

	admitted, err := meter.Int64Counter("pos.orders.admitted",
		metric.WithDescription("Orders committed by the admission transaction."))
	if err != nil {
		return nil, err
	}
	dropped, err := meter.Int64Counter("pos.order_lines.dropped",
		metric.WithDescription("Submitted lines skipped because the item name is not in the catalog."))
	if err != nil {
		return nil, err
	}
	duplicates, err := meter.Int64Counter("pos.orders.duplicate_id",
		metric.WithDescription("Submissions rejected because the order id was already taken."))
	if err != nil {
		return nil, err
	}
	hotItems, err := meter.Float64Histogram("pos.hot_items.duration",
		metric.WithDescription("Time spent computing hot items."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		ordersAdmitted: admitted,
		linesDropped:   dropped,
		duplicateIDs:   duplicates,
		hotItems:       hotItems,
	}, nil
}

// OrderAdmitted counts a committed order.
func (i *Instruments) OrderAdmitted(ctx context.Context, dineType string) {
	if i == nil {
		return
	}
	i.ordersAdmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("dine_type", dineType)))
}

// LinesDropped counts unresolved lines of an admitted order.
func (i *Instruments) LinesDropped(ctx context.Context, n int) {
	if i == nil || n <= 0 {
		return
	}
	i.linesDropped.Add(ctx, int64(n))
}

// DuplicateOrderID counts a submission lost to a concurrent writer.
func (i *Instruments) DuplicateOrderID(ctx context.Context) {
	if i == nil {
		return
	}
	i.duplicateIDs.Add(ctx, 1)
}

// HotItemsComputed records how long an aggregation took.
func (i *Instruments) HotItemsComputed(ctx context.Context, policy string, d time.Duration) {
	if i == nil {
		return
	}
	i.hotItems.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("policy", policy)))
}
