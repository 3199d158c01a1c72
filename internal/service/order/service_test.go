package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/linzen78111/pos2/internal/entity"
	"github.com/linzen78111/pos2/internal/messaging"
	repo "github.com/linzen78111/pos2/internal/repository/order"
	"github.com/linzen78111/pos2/pkg/errorbank"
)

type fakeRepository struct {
	catalog  map[string]int64
	admitted []*entity.Order
	admitErr error
	orders   []entity.Order
	ids      []string
	listErr  error
	idsErr   error

	gotPrefix   string
	gotDineType entity.DineType
	gotLimit    int
}

func (f *fakeRepository) Admit(_ context.Context, order *entity.Order, lines []entity.LineRequest) ([]entity.LineRequest, error) {
	if f.admitErr != nil {
		return nil, f.admitErr
	}
	for _, a := range f.admitted {
		if a.OrderID == order.OrderID {
			return nil, fmt.Errorf("%w: %s", repo.ErrDuplicateOrderID, order.OrderID)
		}
	}
	resolved, unresolved := entity.CatalogIndex(f.catalog).Resolve(order.OrderID, lines)
	order.Lines = resolved
	f.admitted = append(f.admitted, order)
	return unresolved, nil
}

func (f *fakeRepository) List(_ context.Context, limit int) ([]entity.Order, error) {
	f.gotLimit = limit
	return f.orders, f.listErr
}

func (f *fakeRepository) OrderIDs(_ context.Context, prefix string, dt entity.DineType) ([]string, error) {
	f.gotPrefix, f.gotDineType = prefix, dt
	return f.ids, f.idsErr
}

type recordingPublisher struct {
	events []messaging.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e messaging.Event) error {
	p.events = append(p.events, e)
	return p.err
}
func (p *recordingPublisher) Consume(context.Context, messaging.Handler) error { return nil }
func (p *recordingPublisher) Topic() string                                   { return "pos.orders" }

func teaSubmission() Submission {
	return Submission{
		OrderID:     "20250711-T001",
		DineType:    "T",
		TotalAmount: decimal.RequireFromString("6.0"),
		Lines: []entity.LineRequest{
			{Name: "Tea", Quantity: 2, Price: decimal.RequireFromString("2.5")},
			{Name: "Soda", Quantity: 1, Price: decimal.RequireFromString("1.0")},
		},
	}
}

func TestSubmitDropsUnknownItemAndSucceeds(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := &fakeRepository{catalog: map[string]int64{"Tea": 1, "Rice": 2}}
	pub := &recordingPublisher{}
	svc := New(r, zap.New(core), pub, nil, true)

	receipt, err := svc.Submit(context.Background(), teaSubmission())
	require.NoError(t, err)

	assert.Equal(t, "20250711-T001", receipt.OrderID)
	assert.Equal(t, MsgAdmitted, receipt.Message)
	assert.Equal(t, []string{"Soda"}, receipt.Dropped)

	require.Len(t, r.admitted, 1)
	order := r.admitted[0]
	assert.Equal(t, entity.Takeout, order.DineType)
	assert.Equal(t, entity.StatusPending, order.Status)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, int64(1), order.Lines[0].MenuID)
	assert.Equal(t, 2, order.Lines[0].Quantity)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("6")), "total is taken as submitted")

	dropped := logs.FilterMessage("menu item not found; line dropped").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, "Soda", dropped[0].ContextMap()["item"])
	assert.Equal(t, "20250711-T001", dropped[0].ContextMap()["order_id"])

	require.Len(t, pub.events, 1)
	assert.Equal(t, EventOrderAdmitted, pub.events[0].Type)
	assert.Equal(t, "20250711-T001", pub.events[0].Key)
	var payload OrderAdmittedEvent
	require.NoError(t, json.Unmarshal(pub.events[0].Payload, &payload))
	assert.Equal(t, 1, payload.Lines)
	assert.Equal(t, []string{"Soda"}, payload.Dropped)
}

func TestSubmitConcurrentSameIDOneWins(t *testing.T) {
	r := &fakeRepository{catalog: map[string]int64{"Tea": 1}}
	svc := New(r, nil, nil, nil, false)

	_, err := svc.Submit(context.Background(), teaSubmission())
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), teaSubmission())
	require.Error(t, err)

	appErr := errorbank.From(err)
	assert.Equal(t, http.StatusConflict, appErr.StatusCode())
	assert.Equal(t, MsgDuplicateID, appErr.Message())
	assert.True(t, appErr.Retryable())
	assert.ErrorIs(t, err, repo.ErrDuplicateOrderID)
	assert.Len(t, r.admitted, 1)
}

func TestSubmitStorageFailureIsOpaque(t *testing.T) {
	r := &fakeRepository{admitErr: errors.New(`pq: syntax error at or near "INSERT"`)}
	svc := New(r, nil, nil, nil, false)

	_, err := svc.Submit(context.Background(), teaSubmission())
	appErr := errorbank.From(err)
	assert.Equal(t, http.StatusInternalServerError, appErr.StatusCode())
	assert.Equal(t, MsgAdmitFailed, appErr.Message())
	assert.NotContains(t, appErr.Message(), "INSERT")
}

func TestSubmitPublishFailureDoesNotFailOrder(t *testing.T) {
	r := &fakeRepository{catalog: map[string]int64{"Tea": 1}}
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := New(r, nil, pub, nil, true)

	receipt, err := svc.Submit(context.Background(), teaSubmission())
	require.NoError(t, err)
	assert.Equal(t, "20250711-T001", receipt.OrderID)
	assert.Len(t, pub.events, 1)
}

func TestSubmitPublishingDisabled(t *testing.T) {
	pub := &recordingPublisher{}
	svc := New(&fakeRepository{}, nil, pub, nil, false)

	_, err := svc.Submit(context.Background(), teaSubmission())
	require.NoError(t, err)
	assert.Empty(t, pub.events)
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	cases := map[string]func(*Submission){
		"malformed id":       func(s *Submission) { s.OrderID = "2025-07-11-T1" },
		"sequence zero":      func(s *Submission) { s.OrderID = "20250711-T000" },
		"unknown dine type":  func(s *Submission) { s.DineType = "delivery" },
		"code mismatch":      func(s *Submission) { s.DineType = "D" },
		"negative total":     func(s *Submission) { s.TotalAmount = decimal.NewFromInt(-1) },
		"negative quantity":  func(s *Submission) { s.Lines[0].Quantity = -2 },
		"negative line cost": func(s *Submission) { s.Lines[0].Price = decimal.NewFromInt(-1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := &fakeRepository{}
			svc := New(r, nil, nil, nil, false)
			sub := teaSubmission()
			mutate(&sub)

			_, err := svc.Submit(context.Background(), sub)
			appErr := errorbank.From(err)
			require.NotNil(t, appErr)
			assert.Equal(t, http.StatusBadRequest, appErr.StatusCode())
			assert.Empty(t, r.admitted)
		})
	}
}

func TestSubmitAcceptsMissingQuantityAndPrice(t *testing.T) {
	r := &fakeRepository{catalog: map[string]int64{"Tea": 1}}
	svc := New(r, nil, nil, nil, false)
	sub := teaSubmission()
	sub.Lines = []entity.LineRequest{{Name: "Tea"}}

	_, err := svc.Submit(context.Background(), sub)
	require.NoError(t, err)
	require.Len(t, r.admitted[0].Lines, 1)
	assert.Equal(t, 0, r.admitted[0].Lines[0].Quantity)
	assert.True(t, r.admitted[0].Lines[0].Price.IsZero())
}

func TestUsedSequenceNumbers(t *testing.T) {
	r := &fakeRepository{ids: []string{"20250711-T003", "20250711-T001", "20250711-Tbad", "20250711-D002"}}
	svc := New(r, nil, nil, nil, false)

	used, err := svc.UsedSequenceNumbers(context.Background(), "T", "20250711")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, used)
	assert.Equal(t, "20250711", r.gotPrefix)
	assert.Equal(t, entity.Takeout, r.gotDineType)
}

func TestUsedSequenceNumbersValidatesQuery(t *testing.T) {
	svc := New(&fakeRepository{}, nil, nil, nil, false)

	_, err := svc.UsedSequenceNumbers(context.Background(), "X", "20250711")
	assert.Equal(t, http.StatusBadRequest, errorbank.From(err).StatusCode())

	_, err = svc.UsedSequenceNumbers(context.Background(), "T", "2025%")
	assert.Equal(t, http.StatusBadRequest, errorbank.From(err).StatusCode())
}

func TestUsedSequenceNumbersStorageFailure(t *testing.T) {
	svc := New(&fakeRepository{idsErr: errors.New("timeout")}, nil, nil, nil, false)

	_, err := svc.UsedSequenceNumbers(context.Background(), "D", "20250711")
	appErr := errorbank.From(err)
	assert.Equal(t, http.StatusInternalServerError, appErr.StatusCode())
	assert.Equal(t, MsgNumbersFailed, appErr.Message())
}

func TestNextOrderNumber(t *testing.T) {
	r := &fakeRepository{ids: []string{"20250711-D001", "20250711-D002", "20250711-D004"}}
	svc := New(r, nil, nil, nil, false)

	next, err := svc.NextOrderNumber(context.Background(), "dine_in", "20250711")
	require.NoError(t, err)
	assert.Equal(t, 3, next.Sequence)
	assert.Equal(t, "20250711-D003", next.OrderID)
}

func TestNextOrderNumberDefaultsToToday(t *testing.T) {
	r := &fakeRepository{}
	svc := New(r, nil, nil, nil, false)
	svc.now = func() time.Time { return time.Date(2025, 7, 11, 18, 0, 0, 0, time.Local) }

	next, err := svc.NextOrderNumber(context.Background(), "T", "")
	require.NoError(t, err)
	assert.Equal(t, "20250711-T001", next.OrderID)
	assert.Equal(t, "20250711", r.gotPrefix)
}

func TestNextOrderNumberExhausted(t *testing.T) {
	ids := make([]string, 0, 999)
	for n := 1; n <= 999; n++ {
		ids = append(ids, fmt.Sprintf("20250711-T%03d", n))
	}
	svc := New(&fakeRepository{ids: ids}, nil, nil, nil, false)

	_, err := svc.NextOrderNumber(context.Background(), "T", "20250711")
	assert.Equal(t, http.StatusConflict, errorbank.From(err).StatusCode())

	_, err = svc.NextOrderNumber(context.Background(), "T", "202507")
	assert.Equal(t, http.StatusBadRequest, errorbank.From(err).StatusCode())
}

func TestListPassesLimit(t *testing.T) {
	r := &fakeRepository{orders: []entity.Order{{OrderID: "20250711-D002"}, {OrderID: "20250711-T001"}}}
	svc := New(r, nil, nil, nil, false)

	orders, err := svc.List(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.Equal(t, 5, r.gotLimit)

	r.listErr = errors.New("boom")
	_, err = svc.List(context.Background(), 0)
	assert.Equal(t, MsgListFailed, errorbank.From(err).Message())
}
