package menu

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"

	"github.com/linzen78111/pos2/internal/config"
	"github.com/linzen78111/pos2/internal/dto"
	"github.com/linzen78111/pos2/internal/entity"
	"github.com/linzen78111/pos2/internal/presentation/http/response"
	service "github.com/linzen78111/pos2/internal/service/menu"
)

var httpTracer = otel.Tracer("github.com/linzen78111/pos2/transport/http/menu")

// Service is the catalog behaviour the handlers expose.
type Service interface {
	Menu(ctx context.Context) ([]entity.MenuItem, error)
	HotItems(ctx context.Context) (*service.HotItems, error)
}

// Handler exposes menu endpoints over HTTP.
type Handler struct {
	svc Service
}

// NewHandler constructs a menu Handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Module wires HTTP menu handlers.
var Module = fx.Options(
	fx.Provide(func(svc *service.Service) *Handler { return NewHandler(svc) }),
	fx.Invoke(Register),
)

// Register routes with provided Echo instance. /hot-items is kept as an alias
// for clients that predate the /api prefix.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/api/menu", h.menu)
	e.GET("/api/hot-items", h.hotItems)
	e.GET("/hot-items", h.hotItemsRedirect)
}

func (h *Handler) menu(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "menu.list")
	defer span.End()

	items, err := h.svc.Menu(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.MenuItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, dto.MenuItemResponse{
			ID:         item.ID,
			Name:       item.Name,
			Price:      item.Price.InexactFloat64(),
			Category:   item.Category,
			Note:       item.Note,
			Enabled:    item.Enabled,
			Image:      item.Image,
			OrderLimit: item.OrderLimit,
		})
	}
	return b.WithData(out).Build()
}

func (h *Handler) hotItems(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "menu.hotItems")
	defer span.End()

	hot, err := h.svc.HotItems(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}

	if hot.Policy != config.HotItemsAllTime {
		return b.WithData(hot.Names()).Build()
	}
	out := make([]dto.HotItemSummary, 0, len(hot.Sellers))
	for _, s := range hot.Sellers {
		out = append(out, dto.HotItemSummary{
			ID:         s.MenuID,
			Name:       s.Name,
			Price:      s.Price.InexactFloat64(),
			OrderCount: s.Quantity,
		})
	}
	return b.WithData(out).Build()
}

func (h *Handler) hotItemsRedirect(c echo.Context) error {
	target := "/api/hot-items"
	if q := c.QueryString(); q != "" {
		target += "?" + q
	}
	return c.Redirect(http.StatusFound, target)
}
