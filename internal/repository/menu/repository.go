package menu

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linzen78111/pos2/internal/database"
	"github.com/linzen78111/pos2/internal/entity"
)

var repoTracer = otel.Tracer("github.com/linzen78111/pos2/repository/menu")

// Repository reads catalog data and aggregates sales over it.
type Repository struct {
	conns *database.Connections
}

// NewRepository wires a repository backed by the read connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{conns: conns}
}

// Enabled lists enabled menu items ordered by category, then name.
func (r *Repository) Enabled(ctx context.Context) ([]entity.MenuItem, error) {
	ctx, span := repoTracer.Start(ctx, "MenuRepository.Enabled")
	defer span.End()

	ctx, cancel := r.conns.WithQueryTimeout(ctx)
	defer cancel()

	items := make([]entity.MenuItem, 0)
	err := r.conns.Reader.NewSelect().
		Model(&items).
		Where("m.enabled = ?", true).
		OrderExpr("m.category ASC, m.name ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return items, nil
}

// TopSellers sums line quantities per enabled item over non-cancelled orders
// created within [from, to] and returns the best limit items. Items with no
// sales in the window are not returned. The cut is made after ranking in Go
// so ties on the boundary follow byte order, not the store's collation.
func (r *Repository) TopSellers(ctx context.Context, from, to time.Time, limit int) ([]entity.Seller, error) {
	ctx, span := repoTracer.Start(ctx, "MenuRepository.TopSellers", trace.WithAttributes(
		attribute.String("window.from", from.Format(time.RFC3339)),
		attribute.String("window.to", to.Format(time.RFC3339)),
		attribute.Int("limit", limit),
	))
	defer span.End()

	ctx, cancel := r.conns.WithQueryTimeout(ctx)
	defer cancel()

	sellers := make([]entity.Seller, 0)
	err := r.conns.Reader.NewSelect().
		Model((*entity.MenuItem)(nil)).
		ColumnExpr("m.menu_id, m.name, m.price").
		ColumnExpr("SUM(oi.quantity) AS total_sold").
		Join("JOIN order_items AS oi ON oi.menu_id = m.menu_id").
		Join("JOIN orders AS o ON o.order_id = oi.order_id").
		Where("m.enabled = ?", true).
		Where("o.create_time >= ?", from).
		Where("o.create_time <= ?", to).
		Where("o.status <> ?", entity.StatusCancelled).
		GroupExpr("m.menu_id, m.name, m.price").
		Having("SUM(oi.quantity) > 0").
		OrderExpr("total_sold DESC, m.name ASC").
		Scan(ctx, &sellers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return entity.RankSellers(sellers, limit), nil
}

// AllTimeSellers ranks every enabled item by quantity sold across all
// non-cancelled orders. Items that never sold are included with zero. Like
// TopSellers, the limit is applied after ranking.
func (r *Repository) AllTimeSellers(ctx context.Context, limit int) ([]entity.Seller, error) {
	ctx, span := repoTracer.Start(ctx, "MenuRepository.AllTimeSellers", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	ctx, cancel := r.conns.WithQueryTimeout(ctx)
	defer cancel()

	sellers := make([]entity.Seller, 0)
	err := r.conns.Reader.NewSelect().
		Model((*entity.MenuItem)(nil)).
		ColumnExpr("m.menu_id, m.name, m.price").
		ColumnExpr("COALESCE(SUM(CASE WHEN o.order_id IS NULL THEN 0 ELSE oi.quantity END), 0) AS total_sold").
		Join("LEFT JOIN order_items AS oi ON oi.menu_id = m.menu_id").
		Join("LEFT JOIN orders AS o ON o.order_id = oi.order_id AND o.status <> ?", entity.StatusCancelled).
		Where("m.enabled = ?", true).
		GroupExpr("m.menu_id, m.name, m.price").
		OrderExpr("total_sold DESC, m.name ASC").
		Scan(ctx, &sellers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return entity.RankSellers(sellers, limit), nil
}
