package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linzen78111/pos2/internal/database"
	"github.com/linzen78111/pos2/internal/entity"
	"github.com/linzen78111/pos2/internal/ordernumber"
)

var repoTracer = otel.Tracer("github.com/linzen78111/pos2/repository/order")

// ErrDuplicateOrderID is returned when the order identifier is already taken.
// The caller is expected to pick a new number and retry.
var ErrDuplicateOrderID = errors.New("order id already exists")

// Repository encapsulates read/write access for orders.
type Repository struct {
	conns *database.Connections
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{conns: conns}
}

// Admit persists the order header and every line whose name resolves to a
// catalog item, all in one transaction. The header's status and creation time
// are assigned here regardless of what the caller set. Lines that do not
// resolve are skipped and returned; they never abort the transaction.
func (r *Repository) Admit(ctx context.Context, order *entity.Order, lines []entity.LineRequest) ([]entity.LineRequest, error) {
	if order == nil {
		return nil, errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Admit", trace.WithAttributes(
		attribute.String("order.id", order.OrderID),
		attribute.Int("order.lines", len(lines)),
	))
	defer span.End()

	order.Status = entity.StatusPending

	var unresolved []entity.LineRequest
	err := r.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(order).
			Value("create_time", "CURRENT_TIMESTAMP").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			if database.IsDuplicateKey(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateOrderID, order.OrderID)
			}
			return fmt.Errorf("insert order: %w", err)
		}

		catalog, err := loadCatalogIndex(ctx, tx, entity.LineNames(lines))
		if err != nil {
			return err
		}

		var resolved []*entity.OrderLine
		resolved, unresolved = catalog.Resolve(order.OrderID, lines)
		if len(resolved) == 0 {
			return nil
		}

		if _, err := tx.NewInsert().Model(&resolved).Returning("NULL").Exec(ctx); err != nil {
			return fmt.Errorf("insert order lines: %w", err)
		}
		order.Lines = resolved
		return nil
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrDuplicateOrderID) {
			span.SetStatus(codes.Error, "duplicate order id")
		} else {
			span.SetStatus(codes.Error, "admission failed")
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int("order.lines.unresolved", len(unresolved)))
	return unresolved, nil
}

func loadCatalogIndex(ctx context.Context, tx bun.Tx, names []string) (entity.CatalogIndex, error) {
	if len(names) == 0 {
		return entity.CatalogIndex{}, nil
	}
	var items []entity.MenuItem
	err := tx.NewSelect().
		Model(&items).
		Column("menu_id", "name").
		Where("name IN (?)", bun.In(names)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return entity.NewCatalogIndex(items), nil
}

// List returns order headers, newest first. A non-positive limit returns all.
func (r *Repository) List(ctx context.Context, limit int) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	ctx, cancel := r.conns.WithQueryTimeout(ctx)
	defer cancel()

	orders := make([]entity.Order, 0)
	q := r.conns.Reader.NewSelect().
		Model(&orders).
		OrderExpr("o.create_time DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// OrderIDs returns the identifiers that may belong to the given date prefix
// and dine type, in identifier order. The match is coarse; callers refine it
// with ordernumber.UsedSequences.
func (r *Repository) OrderIDs(ctx context.Context, datePrefix string, dineType entity.DineType) ([]string, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.OrderIDs", trace.WithAttributes(
		attribute.String("order.date_prefix", datePrefix),
		attribute.String("order.dine_type", string(dineType)),
	))
	defer span.End()

	ctx, cancel := r.conns.WithQueryTimeout(ctx)
	defer cancel()

	ids := make([]string, 0)
	err := r.conns.Reader.NewSelect().
		Model((*entity.Order)(nil)).
		Column("order_id").
		Where("order_id LIKE ?", ordernumber.LikePattern(datePrefix, dineType)).
		OrderExpr("order_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return ids, nil
}
