package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/linzen78111/pos2/internal/database"
	"github.com/linzen78111/pos2/internal/entity"
)

func newTestRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(database.NewConnections(db, nil, time.Second, time.Second)), mock
}

func sampleOrder() *entity.Order {
	return &entity.Order{
		OrderID:     "20250711-T001",
		DineType:    entity.Takeout,
		Status:      entity.StatusCompleted,
		TotalAmount: decimal.RequireFromString("5"),
		CreateTime:  time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestAdmitDropsUnresolvedLines(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "orders" .*'pending'.*CURRENT_TIMESTAMP`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM "menu"`).
		WillReturnRows(sqlmock.NewRows([]string{"menu_id", "name"}).AddRow(1, "Tea"))
	mock.ExpectExec(`INSERT INTO "order_items"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order := sampleOrder()
	unresolved, err := repo.Admit(context.Background(), order, []entity.LineRequest{
		{Name: "Tea", Quantity: 2, Price: decimal.RequireFromString("2.5")},
		{Name: "Soda", Quantity: 1, Price: decimal.RequireFromString("1.0")},
	})
	require.NoError(t, err)

	require.Len(t, unresolved, 1)
	assert.Equal(t, "Soda", unresolved[0].Name)
	assert.Equal(t, entity.StatusPending, order.Status)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, int64(1), order.Lines[0].MenuID)
	assert.Equal(t, 2, order.Lines[0].Quantity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmitWithoutResolvableLinesStillCommits(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "orders"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM "menu"`).
		WillReturnRows(sqlmock.NewRows([]string{"menu_id", "name"}))
	mock.ExpectCommit()

	unresolved, err := repo.Admit(context.Background(), sampleOrder(), []entity.LineRequest{{Name: "Ghost", Quantity: 1}})
	require.NoError(t, err)
	assert.Len(t, unresolved, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmitWithoutLinesSkipsCatalogLookup(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "orders"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	unresolved, err := repo.Admit(context.Background(), sampleOrder(), nil)
	require.NoError(t, err)
	assert.Empty(t, unresolved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmitDuplicateOrderIDRollsBack(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "orders"`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '20250711-T001' for key 'PRIMARY'"})
	mock.ExpectRollback()

	_, err := repo.Admit(context.Background(), sampleOrder(), []entity.LineRequest{{Name: "Tea", Quantity: 1}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateOrderID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmitLineFailureRollsBackHeader(t *testing.T) {
	repo, mock := newTestRepository(t)
	failure := errors.New("foreign key violation")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "orders"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM "menu"`).
		WillReturnRows(sqlmock.NewRows([]string{"menu_id", "name"}).AddRow(1, "Tea"))
	mock.ExpectExec(`INSERT INTO "order_items"`).WillReturnError(failure)
	mock.ExpectRollback()

	_, err := repo.Admit(context.Background(), sampleOrder(), []entity.LineRequest{{Name: "Tea", Quantity: 1}})
	require.ErrorIs(t, err, failure)
	assert.NotErrorIs(t, err, ErrDuplicateOrderID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListNewestFirst(t *testing.T) {
	repo, mock := newTestRepository(t)
	created := time.Date(2025, 7, 11, 12, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"order_id", "dine_type", "status", "total_amount", "table_number", "takeout_number", "notes", "create_time",
	}).
		AddRow("20250711-D002", "dine_in", "pending", "12.50", "A3", "", "no ice", created).
		AddRow("20250711-T001", "takeout", "completed", "5.00", "", "17", "", created.Add(-time.Hour))

	mock.ExpectQuery(`SELECT .* FROM "orders" AS "o" ORDER BY o.create_time DESC LIMIT 2`).WillReturnRows(rows)

	orders, err := repo.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "20250711-D002", orders[0].OrderID)
	assert.Equal(t, entity.DineIn, orders[0].DineType)
	assert.Equal(t, "12.5", orders[0].TotalAmount.String())
	assert.Equal(t, "A3", orders[0].TableNumber)
	assert.True(t, orders[0].CreateTime.Equal(created))
	assert.Equal(t, entity.StatusCompleted, orders[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderIDsFiltersByPrefixAndCode(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(`order_id LIKE '20250711%-T%'.*ORDER BY order_id ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}).AddRow("20250711-T001").AddRow("20250711-T003"))

	ids, err := repo.OrderIDs(context.Background(), "20250711", entity.Takeout)
	require.NoError(t, err)
	assert.Equal(t, []string{"20250711-T001", "20250711-T003"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
