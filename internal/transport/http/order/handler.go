package order

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linzen78111/pos2/internal/dto"
	"github.com/linzen78111/pos2/internal/entity"
	"github.com/linzen78111/pos2/internal/presentation/http/response"
	service "github.com/linzen78111/pos2/internal/service/order"
	"github.com/linzen78111/pos2/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/linzen78111/pos2/transport/http/order")

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Service is the order behaviour the handlers expose.
type Service interface {
	Submit(ctx context.Context, sub service.Submission) (*service.Receipt, error)
	List(ctx context.Context, limit int) ([]entity.Order, error)
	UsedSequenceNumbers(ctx context.Context, dineType, datePrefix string) ([]int, error)
	NextOrderNumber(ctx context.Context, dineType, date string) (*service.NextNumber, error)
}

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/api")
	g.POST("/orders", h.create)
	g.GET("/orders", h.list)
	g.GET("/used-order-numbers", h.usedNumbers)
	g.GET("/next-order-number", h.nextNumber)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CreateOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest(errorbank.DefaultBadRequestMessage, errorbank.WithCause(err))).Build()
	}
	if err := c.Validate(&payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(
		attribute.String("order.id", payload.OrderID),
		attribute.Int("order.items", len(payload.Items)),
	))
	defer span.End()

	receipt, err := h.svc.Submit(ctx, toSubmission(payload))
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.CreateOrderResponse{
		Success:      true,
		OrderID:      receipt.OrderID,
		Message:      receipt.Message,
		DroppedItems: receipt.Dropped,
	}).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return b.WithError(errorbank.BadRequest(errorbank.DefaultBadRequestMessage, errorbank.WithDetail("field", "limit"))).Build()
		}
		limit = n
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	orders, err := h.svc.List(ctx, limit)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.OrderSummary, 0, len(orders))
	for _, o := range orders {
		out = append(out, toSummary(o))
	}
	return b.WithData(out).Build()
}

func (h *Handler) usedNumbers(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.usedNumbers")
	defer span.End()

	used, err := h.svc.UsedSequenceNumbers(ctx, c.QueryParam("dineType"), c.QueryParam("dateStr"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(used).Build()
}

func (h *Handler) nextNumber(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.nextNumber")
	defer span.End()

	next, err := h.svc.NextOrderNumber(ctx, c.QueryParam("dineType"), c.QueryParam("dateStr"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NextOrderNumberResponse{OrderID: next.OrderID, Sequence: next.Sequence}).Build()
}

func toSubmission(req dto.CreateOrderRequest) service.Submission {
	lines := make([]entity.LineRequest, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, entity.LineRequest{
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}
	return service.Submission{
		OrderID:       req.OrderID,
		DineType:      req.DineType,
		TotalAmount:   req.TotalAmount,
		TableNumber:   string(req.TableNumber),
		TakeoutNumber: string(req.TakeoutNumber),
		Notes:         req.Notes,
		Lines:         lines,
	}
}

func toSummary(o entity.Order) dto.OrderSummary {
	summary := dto.OrderSummary{
		OrderID:       o.OrderID,
		DineType:      string(o.DineType),
		Status:        string(o.Status),
		TotalAmount:   o.TotalAmount.InexactFloat64(),
		TableNumber:   o.TableNumber,
		TakeoutNumber: o.TakeoutNumber,
		Notes:         o.Notes,
	}
	if !o.CreateTime.IsZero() {
		ts := o.CreateTime.UTC().Format(timestampLayout)
		summary.Timestamp = &ts
	}
	return summary
}
