package order

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/linzen78111/pos2/internal/config"
	"github.com/linzen78111/pos2/internal/entity"
	httpserver "github.com/linzen78111/pos2/internal/server/http"
	service "github.com/linzen78111/pos2/internal/service/order"
	"github.com/linzen78111/pos2/pkg/errorbank"
)

type fakeService struct {
	submitted *service.Submission
	receipt   *service.Receipt
	orders    []entity.Order
	used      []int
	next      *service.NextNumber
	err       error

	gotLimit    int
	gotDineType string
	gotDate     string
}

func (f *fakeService) Submit(_ context.Context, sub service.Submission) (*service.Receipt, error) {
	f.submitted = &sub
	return f.receipt, f.err
}

func (f *fakeService) List(_ context.Context, limit int) ([]entity.Order, error) {
	f.gotLimit = limit
	return f.orders, f.err
}

func (f *fakeService) UsedSequenceNumbers(_ context.Context, dineType, datePrefix string) ([]int, error) {
	f.gotDineType, f.gotDate = dineType, datePrefix
	return f.used, f.err
}

func (f *fakeService) NextOrderNumber(_ context.Context, dineType, date string) (*service.NextNumber, error) {
	f.gotDineType, f.gotDate = dineType, date
	return f.next, f.err
}

func newTestServer(svc Service) *echo.Echo {
	e := httpserver.NewEcho(config.Config{}, nil, zap.NewNop())
	Register(e, NewHandler(svc))
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateOrder(t *testing.T) {
	svc := &fakeService{receipt: &service.Receipt{OrderID: "20250711-T001", Message: service.MsgAdmitted, Dropped: []string{"Soda"}}}
	e := newTestServer(svc)

	rec := do(e, http.MethodPost, "/api/orders", `{
		"orderId": "20250711-T001",
		"dineType": "T",
		"totalAmount": 6,
		"takeoutNumber": 17,
		"notes": "no ice",
		"items": [{"name": "Tea", "quantity": 2, "price": 2.5}, {"name": "Soda", "quantity": 1, "price": 1.0}]
	}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true,"orderId":"20250711-T001","message":"訂單建立成功","droppedItems":["Soda"]}`, rec.Body.String())

	require.NotNil(t, svc.submitted)
	assert.Equal(t, "17", svc.submitted.TakeoutNumber)
	assert.Equal(t, "no ice", svc.submitted.Notes)
	require.Len(t, svc.submitted.Lines, 2)
	assert.Equal(t, "Tea", svc.submitted.Lines[0].Name)
	assert.True(t, svc.submitted.Lines[0].Price.Equal(decimal.RequireFromString("2.5")))
}

func TestCreateOrderRejectsMalformedBody(t *testing.T) {
	svc := &fakeService{}
	e := newTestServer(svc)

	rec := do(e, http.MethodPost, "/api/orders", `{"orderId": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)

	rec = do(e, http.MethodPost, "/api/orders", `{"dineType": "T", "items": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.submitted)
}

func TestCreateOrderDuplicateIsRetryableConflict(t *testing.T) {
	svc := &fakeService{err: errorbank.Conflict(service.MsgDuplicateID, errorbank.WithDetail(errorbank.DetailRetryable, true))}
	e := newTestServer(svc)

	rec := do(e, http.MethodPost, "/api/orders", `{"orderId":"20250711-T001","dineType":"T","items":[]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"訂單編號已被使用，請重新取號","details":{"retryable":true}}`, rec.Body.String())
}

func TestCreateOrderFailureIs500(t *testing.T) {
	svc := &fakeService{err: errorbank.Internal(service.MsgAdmitFailed)}
	e := newTestServer(svc)

	rec := do(e, http.MethodPost, "/api/orders", `{"orderId":"20250711-T001","dineType":"T"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"建立訂單失敗"}`, rec.Body.String())
}

func TestListOrders(t *testing.T) {
	created := time.Date(2025, 7, 11, 4, 30, 0, 0, time.UTC)
	svc := &fakeService{orders: []entity.Order{{
		OrderID:     "20250711-D002",
		DineType:    entity.DineIn,
		Status:      entity.StatusPending,
		TotalAmount: decimal.RequireFromString("12.50"),
		TableNumber: "A3",
		CreateTime:  created,
	}}}
	e := newTestServer(svc)

	rec := do(e, http.MethodGet, "/api/orders?limit=20", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{
		"orderId": "20250711-D002",
		"dineType": "dine_in",
		"status": "pending",
		"totalAmount": 12.5,
		"tableNumber": "A3",
		"takeoutNumber": "",
		"notes": "",
		"timestamp": "2025-07-11T04:30:00.000Z"
	}]`, rec.Body.String())
	assert.Equal(t, 20, svc.gotLimit)

	rec = do(e, http.MethodGet, "/api/orders?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOrdersEmptyIsArray(t *testing.T) {
	e := newTestServer(&fakeService{})

	rec := do(e, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestUsedOrderNumbers(t *testing.T) {
	svc := &fakeService{used: []int{1, 3}}
	e := newTestServer(svc)

	rec := do(e, http.MethodGet, "/api/used-order-numbers?dineType=T&dateStr=20250711", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[1,3]`, rec.Body.String())
	assert.Equal(t, "T", svc.gotDineType)
	assert.Equal(t, "20250711", svc.gotDate)
}

func TestNextOrderNumber(t *testing.T) {
	svc := &fakeService{next: &service.NextNumber{OrderID: "20250711-T002", Sequence: 2}}
	e := newTestServer(svc)

	rec := do(e, http.MethodGet, "/api/next-order-number?dineType=T&dateStr=20250711", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"orderId":"20250711-T002","sequence":2}`, rec.Body.String())
}
