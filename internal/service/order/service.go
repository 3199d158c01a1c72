package order

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/linzen78111/pos2/internal/config"
	"github.com/linzen78111/pos2/internal/entity"
	"github.com/linzen78111/pos2/internal/messaging"
	"github.com/linzen78111/pos2/internal/observability"
	"github.com/linzen78111/pos2/internal/ordernumber"
	repo "github.com/linzen78111/pos2/internal/repository/order"
	"github.com/linzen78111/pos2/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/linzen78111/pos2/service/order")

// Client-facing messages.
const (
	MsgAdmitted         = "訂單建立成功"
	MsgAdmitFailed      = "建立訂單失敗"
	MsgListFailed       = "取得訂單失敗"
	MsgNumbersFailed    = "取得已使用訂單號碼失敗"
	MsgDuplicateID      = "訂單編號已被使用，請重新取號"
	MsgNumbersExhausted = "本日訂單號碼已用完"
	MsgBadRequest       = errorbank.DefaultBadRequestMessage
)

// EventOrderAdmitted is published after an admission commits.
const EventOrderAdmitted = "order.admitted"

// Repository is the storage the service needs.
type Repository interface {
	Admit(ctx context.Context, order *entity.Order, lines []entity.LineRequest) ([]entity.LineRequest, error)
	List(ctx context.Context, limit int) ([]entity.Order, error)
	OrderIDs(ctx context.Context, datePrefix string, dineType entity.DineType) ([]string, error)
}

// Submission is an order as received from a client.
type Submission struct {
	OrderID       string
	DineType      string
	TotalAmount   decimal.Decimal
	TableNumber   string
	TakeoutNumber string
	Notes         string
	Lines         []entity.LineRequest
}

// Receipt acknowledges an admitted order.
type Receipt struct {
	OrderID string
	Message string
	Dropped []string
}

// NextNumber is a suggested identifier for the next order of a day.
type NextNumber struct {
	OrderID  string
	Sequence int
}

// OrderAdmittedEvent is emitted once an order and its lines are committed.
type OrderAdmittedEvent struct {
	OrderID     string          `json:"orderId"`
	DineType    entity.DineType `json:"dineType"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Lines       int             `json:"lines"`
	Dropped     []string        `json:"droppedItems,omitempty"`
	AdmittedAt  time.Time       `json:"admittedAt"`
}

// Service implements order admission and identifier allocation.
type Service struct {
	repo        Repository
	logger      *zap.Logger
	publisher   messaging.Client
	instruments *observability.Instruments
	publish     bool
	now         func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository  *repo.Repository
	Config      config.Config
	Logger      *zap.Logger
	Publisher   messaging.Client
	Instruments *observability.Instruments `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(p.Repository, p.Logger, p.Publisher, p.Instruments, p.Config.Messaging.Enabled)
}

// New builds a Service from explicit collaborators. A nil publisher disables
// event publication.
func New(r Repository, logger *zap.Logger, publisher messaging.Client, instruments *observability.Instruments, publish bool) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:        r,
		logger:      logger,
		publisher:   publisher,
		instruments: instruments,
		publish:     publish && publisher != nil,
		now:         time.Now,
	}
}

// Submit validates and admits an order. Lines naming unknown items are
// dropped and reported in the receipt; the order is still admitted.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Receipt, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Submit", trace.WithAttributes(
		attribute.String("order.id", sub.OrderID),
	))
	defer span.End()

	order, err := validate(sub)
	if err != nil {
		span.SetStatus(codes.Error, "invalid submission")
		return nil, err
	}

	unresolved, err := s.repo.Admit(ctx, order, sub.Lines)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, repo.ErrDuplicateOrderID) {
			s.instruments.DuplicateOrderID(ctx)
			s.logger.Warn("order id already taken", zap.String("order_id", order.OrderID))
			span.SetStatus(codes.Error, "duplicate order id")
			return nil, errorbank.Conflict(MsgDuplicateID,
				errorbank.WithCause(err),
				errorbank.WithDetail("orderId", order.OrderID),
				errorbank.WithDetail(errorbank.DetailRetryable, true),
			)
		}
		s.logger.Error("order admission failed", zap.String("order_id", order.OrderID), zap.Error(err))
		span.SetStatus(codes.Error, "admission failed")
		return nil, errorbank.Internal(MsgAdmitFailed, errorbank.WithCause(err))
	}

	dropped := make([]string, 0, len(unresolved))
	for _, line := range unresolved {
		s.logger.Warn("menu item not found; line dropped",
			zap.String("order_id", order.OrderID),
			zap.String("item", line.Name),
		)
		dropped = append(dropped, line.Name)
	}

	s.instruments.OrderAdmitted(ctx, string(order.DineType))
	s.instruments.LinesDropped(ctx, len(dropped))
	s.logger.Info("order admitted",
		zap.String("order_id", order.OrderID),
		zap.String("dine_type", string(order.DineType)),
		zap.Int("lines", len(order.Lines)),
		zap.Int("dropped", len(dropped)),
	)

	s.publishAdmitted(ctx, order, dropped)

	return &Receipt{OrderID: order.OrderID, Message: MsgAdmitted, Dropped: dropped}, nil
}

func validate(sub Submission) (*entity.Order, error) {
	id, err := ordernumber.Parse(sub.OrderID)
	if err != nil {
		return nil, errorbank.BadRequest(MsgBadRequest, errorbank.WithCause(err), errorbank.WithDetail("field", "orderId"))
	}
	dineType, err := entity.ParseDineType(sub.DineType)
	if err != nil {
		return nil, errorbank.BadRequest(MsgBadRequest, errorbank.WithCause(err), errorbank.WithDetail("field", "dineType"))
	}
	if id.DineType != dineType {
		return nil, errorbank.BadRequest(MsgBadRequest, errorbank.WithDetail("field", "orderId"))
	}
	if sub.TotalAmount.IsNegative() {
		return nil, errorbank.BadRequest(MsgBadRequest, errorbank.WithDetail("field", "totalAmount"))
	}
	for _, line := range sub.Lines {
		if line.Quantity < 0 || line.Price.IsNegative() {
			return nil, errorbank.BadRequest(MsgBadRequest, errorbank.WithDetail("field", "items"))
		}
	}

	return &entity.Order{
		OrderID:       id.String(),
		DineType:      dineType,
		Status:        entity.StatusPending,
		TotalAmount:   sub.TotalAmount,
		TableNumber:   sub.TableNumber,
		TakeoutNumber: sub.TakeoutNumber,
		Notes:         sub.Notes,
	}, nil
}

func (s *Service) publishAdmitted(ctx context.Context, order *entity.Order, dropped []string) {
	if !s.publish {
		return
	}
	event, err := messaging.NewEvent(EventOrderAdmitted, order.OrderID, OrderAdmittedEvent{
		OrderID:     order.OrderID,
		DineType:    order.DineType,
		TotalAmount: order.TotalAmount,
		Lines:       len(order.Lines),
		Dropped:     dropped,
		AdmittedAt:  s.now().UTC(),
	})
	if err != nil {
		s.logger.Error("encode order admitted", zap.Error(err))
		return
	}
	// The order is committed; a bus outage must not turn it into a failure.
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Error("publish order admitted", zap.String("order_id", order.OrderID), zap.Error(err))
	}
}

// List returns order headers newest first. A non-positive limit returns all.
func (s *Service) List(ctx context.Context, limit int) ([]entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	orders, err := s.repo.List(ctx, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		s.logger.Error("list orders failed", zap.Error(err))
		return nil, errorbank.Internal(MsgListFailed, errorbank.WithCause(err))
	}
	return orders, nil
}

// UsedSequenceNumbers returns the ascending sequence numbers already issued
// for the dine type under datePrefix.
func (s *Service) UsedSequenceNumbers(ctx context.Context, dineType, datePrefix string) ([]int, error) {
	dt, err := parseQuery(dineType, datePrefix)
	if err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "OrderService.UsedSequenceNumbers", trace.WithAttributes(
		attribute.String("order.dine_type", string(dt)),
		attribute.String("order.date_prefix", datePrefix),
	))
	defer span.End()

	ids, err := s.repo.OrderIDs(ctx, datePrefix, dt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		s.logger.Error("load order ids failed", zap.Error(err))
		return nil, errorbank.Internal(MsgNumbersFailed, errorbank.WithCause(err))
	}
	return ordernumber.UsedSequences(ids, datePrefix, dt), nil
}

// NextOrderNumber suggests the lowest free identifier for the day. It does
// not reserve it; a concurrent submission may still take it first.
func (s *Service) NextOrderNumber(ctx context.Context, dineType, date string) (*NextNumber, error) {
	if date == "" {
		date = ordernumber.DateOf(s.now())
	}
	if len(date) != 8 {
		return nil, errorbank.BadRequest(MsgBadRequest, errorbank.WithDetail("field", "dateStr"))
	}

	used, err := s.UsedSequenceNumbers(ctx, dineType, date)
	if err != nil {
		return nil, err
	}
	seq, err := ordernumber.NextFree(used)
	if err != nil {
		return nil, errorbank.Conflict(MsgNumbersExhausted, errorbank.WithCause(err), errorbank.WithDetail("dateStr", date))
	}

	dt, _ := entity.ParseDineType(dineType)
	return &NextNumber{OrderID: ordernumber.Format(date, dt, seq), Sequence: seq}, nil
}

func parseQuery(dineType, datePrefix string) (entity.DineType, error) {
	dt, err := entity.ParseDineType(dineType)
	if err != nil {
		return "", errorbank.BadRequest(MsgBadRequest, errorbank.WithCause(err), errorbank.WithDetail("field", "dineType"))
	}
	if !ordernumber.ValidDatePrefix(datePrefix) {
		return "", errorbank.BadRequest(MsgBadRequest, errorbank.WithDetail("field", "dateStr"))
	}
	return dt, nil
}
