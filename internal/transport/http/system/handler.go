package system

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/linzen78111/pos2/internal/config"
	"github.com/linzen78111/pos2/internal/database"
	"github.com/linzen78111/pos2/internal/dto"
	"github.com/linzen78111/pos2/internal/presentation/http/response"
)

const (
	platform = "Go + Echo"
	version  = "1.0.0"

	msgHealthy     = "系統正常運行"
	msgUnreachable = "資料庫連線失敗"
	msgIndex       = "餐廳點餐系統 API"
)

// Pinger checks the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the health probe and the service index.
type Handler struct {
	db     Pinger
	server string
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler constructs a system Handler. server is the store address shown
// in health responses.
func NewHandler(db Pinger, server string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{db: db, server: server, logger: logger, now: time.Now}
}

// Module wires the system handlers.
var Module = fx.Options(
	fx.Provide(func(conns *database.Connections, cfg config.Config, logger *zap.Logger) *Handler {
		return NewHandler(conns, cfg.Database.Address(), logger)
	}),
	fx.Invoke(Register),
)

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/", h.index)
	e.GET("/api/health", h.health)
}

func (h *Handler) health(c echo.Context) error {
	b := response.New(c)

	if err := h.db.Ping(c.Request().Context()); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		return b.WithStatus(http.StatusInternalServerError).WithData(dto.HealthResponse{
			Status:   "error",
			Database: "disconnected",
			Message:  msgUnreachable,
		}).Build()
	}

	return b.WithData(dto.HealthResponse{
		Status:    "healthy",
		Database:  "connected",
		Server:    h.server,
		Message:   msgHealthy,
		Platform:  platform,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}).Build()
}

func (h *Handler) index(c echo.Context) error {
	return response.New(c).WithData(dto.IndexResponse{
		Message:  msgIndex,
		Platform: platform,
		Status:   "running",
		Endpoints: []string{
			"/api/health",
			"/api/menu",
			"/api/hot-items",
			"/api/orders",
			"/api/used-order-numbers",
			"/api/next-order-number",
		},
		Version: version,
	}).Build()
}
