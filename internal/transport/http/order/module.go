package order

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	service "github.com/linzen78111/pos2/internal/service/order"
)

// Module wires HTTP order handlers.
var Module = fx.Options(
	fx.Provide(func(svc *service.Service) *Handler { return NewHandler(svc) }),
	fx.Invoke(func(e *echo.Echo, h *Handler) {
		Register(e, h)
	}),
)
