package repositories

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"cafeteria_backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var menuItemCols = []string{"id", "name", "price", "category", "stock_quantity", "description", "image", "is_available", "created_at", "updated_at"}

func TestUserRepository_CreateUser_DuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("Jane", "jane@example.com", "hash", models.RoleStaff, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505", Constraint: ConstraintUsersEmail})

	_, err := repo.CreateUser(context.Background(), db, &models.User{
		Name: "Jane", Email: "jane@example.com", PasswordHash: "hash", Role: models.RoleStaff,
	})
	require.ErrorIs(t, err, ErrDuplicateKey)
	assert.Contains(t, err.Error(), ConstraintUsersEmail)
}

func TestUserRepository_FindUserByEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM users WHERE email = \$1`).
		WithArgs("admin@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "role", "created_at", "updated_at"}).
			AddRow(1, "Admin", "admin@example.com", "hash", models.RoleAdmin, now, now))
	mock.ExpectQuery(`SELECT .* FROM users WHERE email = \$1`).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	user, err := repo.FindUserByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "hash", user.PasswordHash)

	_, err = repo.FindUserByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_DeleteUser_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE id = $1`)).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.DeleteUser(context.Background(), db, 42), ErrNotFound)
}

func TestTokenRepository_IsTokenRevoked(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`)).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	revoked, err := repo.IsTokenRevoked(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestMenuItemRepository_GetItemByID_Nullables(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMenuItemRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM menu_items WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(menuItemCols).
			AddRow(3, "Tea", "15.50", "Drinks", nil, nil, "menu_images/tea.png", true, now, now))

	item, err := repo.GetItemByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Nil(t, item.StockQuantity)
	assert.Nil(t, item.Description)
	require.NotNil(t, item.Image)
	assert.Equal(t, "menu_images/tea.png", *item.Image)
	assert.True(t, decimal.RequireFromString("15.5").Equal(item.Price))
}

func TestMenuItemRepository_GetItems_Filters(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMenuItemRepository(db)
	category := "Meals"

	mock.ExpectQuery(regexp.QuoteMeta(`FROM menu_items WHERE category = $1 AND is_available = TRUE AND (stock_quantity IS NULL OR stock_quantity > 0) ORDER BY`)).
		WithArgs("Meals").
		WillReturnRows(sqlmock.NewRows(menuItemCols))

	items, err := repo.GetItems(context.Background(), models.MenuItemFilters{Category: &category, AvailableOnly: true})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
}

func TestMenuItemRepository_LockItemsForUpdate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMenuItemRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = ANY($1) ORDER BY id FOR UPDATE`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(menuItemCols).
			AddRow(1, "Rice", "50.00", "Meals", 10, nil, nil, true, now, now))

	items, err := repo.LockItemsForUpdate(context.Background(), db, []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[1].StockQuantity)
	assert.Equal(t, 10, *items[1].StockQuantity)
	_, ok := items[2]
	assert.False(t, ok)
}

func TestMenuItemRepository_AdjustStock_Untracked(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMenuItemRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE menu_items SET stock_quantity = stock_quantity + $1`)).
		WithArgs(-2, sqlmock.AnyArg(), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.AdjustStock(context.Background(), db, 5, -2), ErrNotFound)
}

func TestOrderRepository_CreateOrder_DuplicateVoucher(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO orders`)).
		WillReturnError(&pq.Error{Code: "23505", Constraint: ConstraintVoucherCode})

	_, err := repo.CreateOrder(context.Background(), db, &models.Order{
		CustomerName: "Ann", TotalPrice: decimal.NewFromInt(100), PaymentMethod: "cash",
		VoucherCode: "ABCD1234", Status: models.OrderStatusPending,
	})
	require.ErrorIs(t, err, ErrDuplicateKey)
	assert.Contains(t, err.Error(), ConstraintVoucherCode)
}

func TestOrderRepository_GetOrders_Pagination(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepository(db)
	now := time.Now()
	status := models.OrderStatusPending

	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders WHERE status = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`)).
		WithArgs(status, 10, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_name", "total_price", "payment_method", "voucher_code", "status", "created_at", "updated_at", "total_count"}).
			AddRow(7, "Ann", "100.00", "cash", "ABCD1234", status, now, now, 11))

	orders, total, err := repo.GetOrders(context.Background(), models.OrderFilters{Status: &status, Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, orders, 1)
	assert.Equal(t, "ABCD1234", orders[0].VoucherCode)
}

func TestOrderRepository_UpdateOrderStatus_Guarded(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`)).
		WithArgs(models.OrderStatusCompleted, sqlmock.AnyArg(), int64(7), models.OrderStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateOrderStatus(context.Background(), db, 7, models.OrderStatusPending, models.OrderStatusCompleted)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrderRepository_GetOrderItems_DeletedMenuItem(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepository(db)
	now := time.Now()

	cols := []string{"id", "order_id", "menu_item_id", "item_name", "quantity", "price", "created_at",
		"name", "price", "category", "stock_quantity", "description", "image", "is_available", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta(`LEFT JOIN menu_items mi ON oi.menu_item_id = mi.id`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, 7, 1, "Rice", 2, "50.00", now, "Rice", "55.00", "Meals", 8, nil, nil, true, now, now).
			AddRow(2, 7, nil, "Old Soup", 1, "20.00", now, nil, nil, nil, nil, nil, nil, nil, nil, nil))

	items, err := repo.GetOrderItems(context.Background(), nil, []int64{7})
	require.NoError(t, err)
	require.Len(t, items[7], 2)

	rice := items[7][0]
	require.NotNil(t, rice.MenuItem)
	assert.True(t, decimal.NewFromInt(50).Equal(rice.Price), "line price is the snapshot")
	assert.True(t, decimal.NewFromInt(55).Equal(rice.MenuItem.Price))

	soup := items[7][1]
	assert.Nil(t, soup.MenuItemID)
	assert.Nil(t, soup.MenuItem)
	assert.Equal(t, "Old Soup", soup.ItemName)
}

func TestReportRepository_SalesSummary_Empty(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReportRepository(db)
	start := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(SUM(total_price), 0), COUNT(*)`)).
		WithArgs(models.OrderStatusCompleted, start, start.AddDate(0, 0, 1)).
		WillReturnRows(sqlmock.NewRows([]string{"sum", "count"}).AddRow("0", 0))

	total, count, err := repo.SalesSummary(context.Background(), start, start.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, total.IsZero())
	assert.Equal(t, 0, count)
}

func TestReportRepository_DailySales(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReportRepository(db)
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	mock.ExpectQuery(regexp.QuoteMeta(`TO_CHAR(created_at AT TIME ZONE $1, 'YYYY-MM-DD')`)).
		WithArgs("UTC", models.OrderStatusCompleted, start, end).
		WillReturnRows(sqlmock.NewRows([]string{"day", "sum"}).
			AddRow("2026-10-02", "100.00").
			AddRow("2026-10-05", "35.50"))

	sales, err := repo.DailySales(context.Background(), start, end, "UTC")
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, "2026-10-02", sales[0].Date)
	assert.True(t, decimal.RequireFromString("35.5").Equal(sales[1].Total))
}
