package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/linzen78111/pos2/internal/config"
	"github.com/linzen78111/pos2/internal/messaging"
	menusvc "github.com/linzen78111/pos2/internal/service/menu"
	ordersvc "github.com/linzen78111/pos2/internal/service/order"
	"github.com/linzen78111/pos2/internal/worker"
)

var workerTracer = otel.Tracer("github.com/linzen78111/pos2/worker/order")

// HotItemsJob is the name of the scheduled hot-items refresh.
const HotItemsJob = "hot-items-refresh"

// HotItemsRefresher recomputes the cached hot-items ranking.
type HotItemsRefresher interface {
	RefreshHotItems(ctx context.Context) (*menusvc.HotItems, error)
}

// Module registers order-related worker handlers and jobs.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			func(logger *zap.Logger, svc *menusvc.Service) worker.HandlerRegistration {
				return NewOrderAdmittedHandler(logger, svc)
			},
			fx.ResultTags(`group:"worker.handlers"`),
		),
		fx.Annotate(
			func(logger *zap.Logger, cfg config.Config, svc *menusvc.Service) worker.JobRegistration {
				return NewHotItemsJob(logger, cfg, svc)
			},
			fx.ResultTags(`group:"worker.jobs"`),
		),
	),
)

// NewOrderAdmittedHandler refreshes the hot-items ranking whenever an order
// is admitted, so the next read does not wait for the cache to expire.
func NewOrderAdmittedHandler(logger *zap.Logger, refresher HotItemsRefresher) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.admitted", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.String("messaging.event_type", msg.EventType()),
		))
		defer span.End()

		var event ordersvc.OrderAdmittedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			// Redelivery cannot fix a malformed payload.
			logger.Error("failed to decode order admitted", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}
		span.SetAttributes(attribute.String("order.id", event.OrderID))

		if _, err := refresher.RefreshHotItems(ctx); err != nil {
			logger.Error("hot items refresh failed", zap.String("order_id", event.OrderID), zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "refresh failed")
			return err
		}

		logger.Info("order admitted event processed",
			zap.String("order_id", event.OrderID),
			zap.String("dine_type", string(event.DineType)),
			zap.Int("lines", event.Lines),
			zap.Strings("dropped", event.Dropped),
		)
		return nil
	}

	return worker.HandlerRegistration{
		EventType: ordersvc.EventOrderAdmitted,
		Handler:   handler,
	}
}

// NewHotItemsJob refreshes the ranking on the configured cron schedule.
func NewHotItemsJob(logger *zap.Logger, cfg config.Config, refresher HotItemsRefresher) worker.JobRegistration {
	return worker.JobRegistration{
		Name:     HotItemsJob,
		Schedule: cfg.Messaging.Workers.HotItemsSchedule,
		Run: func(ctx context.Context) error {
			hot, err := refresher.RefreshHotItems(ctx)
			if err != nil {
				return err
			}
			logger.Debug("hot items refreshed", zap.String("policy", hot.Policy), zap.Int("items", len(hot.Sellers)))
			return nil
		},
	}
}
