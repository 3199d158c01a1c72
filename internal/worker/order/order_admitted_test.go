package order

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/linzen78111/pos2/internal/config"
	"github.com/linzen78111/pos2/internal/entity"
	"github.com/linzen78111/pos2/internal/messaging"
	menusvc "github.com/linzen78111/pos2/internal/service/menu"
	ordersvc "github.com/linzen78111/pos2/internal/service/order"
)

type countingRefresher struct {
	calls int
	err   error
}

func (r *countingRefresher) RefreshHotItems(context.Context) (*menusvc.HotItems, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &menusvc.HotItems{Policy: config.HotItemsWeekly, Sellers: []entity.Seller{{Name: "Tea"}}}, nil
}

func admittedMessage(t *testing.T) messaging.Message {
	t.Helper()
	raw, err := json.Marshal(ordersvc.OrderAdmittedEvent{OrderID: "20250711-T001", DineType: entity.Takeout, Lines: 1})
	require.NoError(t, err)
	return messaging.Message{
		Topic:   "pos.orders",
		Value:   raw,
		Headers: map[string]string{messaging.HeaderEventType: ordersvc.EventOrderAdmitted},
	}
}

func TestOrderAdmittedRefreshesHotItems(t *testing.T) {
	r := &countingRefresher{}
	reg := NewOrderAdmittedHandler(zap.NewNop(), r)
	assert.Equal(t, ordersvc.EventOrderAdmitted, reg.EventType)

	require.NoError(t, reg.Handler(context.Background(), admittedMessage(t)))
	assert.Equal(t, 1, r.calls)
}

func TestOrderAdmittedRefreshFailureIsRetried(t *testing.T) {
	r := &countingRefresher{err: errors.New("db down")}
	reg := NewOrderAdmittedHandler(zap.NewNop(), r)

	assert.Error(t, reg.Handler(context.Background(), admittedMessage(t)))
}

func TestOrderAdmittedSkipsMalformedPayload(t *testing.T) {
	r := &countingRefresher{}
	reg := NewOrderAdmittedHandler(zap.NewNop(), r)

	err := reg.Handler(context.Background(), messaging.Message{Value: []byte("{not json")})
	assert.NoError(t, err)
	assert.Zero(t, r.calls)
}

func TestHotItemsJob(t *testing.T) {
	r := &countingRefresher{}
	cfg := config.Config{Messaging: config.Messaging{Workers: config.Worker{HotItemsSchedule: "@every 5m"}}}
	job := NewHotItemsJob(zap.NewNop(), cfg, r)

	assert.Equal(t, HotItemsJob, job.Name)
	assert.Equal(t, "@every 5m", job.Schedule)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, r.calls)
}
