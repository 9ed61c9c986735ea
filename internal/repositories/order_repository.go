package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cafeteria_backend/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// OrderRepository defines the interface for order-related database operations.
type OrderRepository interface {
	// Order methods
	CreateOrder(ctx context.Context, executor SQLExecutor, order *models.Order) (int64, error)
	VoucherCodeExists(ctx context.Context, executor SQLExecutor, code string) (bool, error)
	GetOrderByID(ctx context.Context, executor SQLExecutor, orderID int64) (*models.Order, error) // Basic order details
	LockOrder(ctx context.Context, executor SQLExecutor, orderID int64) (*models.Order, error)
	GetOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, int, error) // orders, total count, error
	// UpdateOrderStatus moves an order from one status to another. It reports
	// false when the order was not in status from.
	UpdateOrderStatus(ctx context.Context, executor SQLExecutor, orderID int64, from, to string) (bool, error)

	// OrderItem methods
	CreateOrderItem(ctx context.Context, executor SQLExecutor, item *models.OrderItem) (int64, error)
	GetOrderItems(ctx context.Context, executor SQLExecutor, orderIDs []int64) (map[int64][]models.OrderItem, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository.
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, customer_name, total_price, payment_method, voucher_code, status, created_at, updated_at`

func scanOrder(row scanner, extra ...interface{}) (*models.Order, error) {
	order := &models.Order{}
	dest := []interface{}{
		&order.ID, &order.CustomerName, &order.TotalPrice, &order.PaymentMethod,
		&order.VoucherCode, &order.Status, &order.CreatedAt, &order.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return order, nil
}

// --- Order Methods ---

func (r *orderRepository) CreateOrder(ctx context.Context, executor SQLExecutor, order *models.Order) (int64, error) {
	query := `INSERT INTO orders
	            (customer_name, total_price, payment_method, voucher_code, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id`

	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = now
	}

	err := executor.QueryRowContext(ctx, query,
		order.CustomerName, order.TotalPrice, order.PaymentMethod, order.VoucherCode, order.Status,
		order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			return 0, fmt.Errorf("%w: creating order (constraint: %s)", ErrDuplicateKey, constraint)
		}
		return 0, fmt.Errorf("%w: creating order: %v", ErrDatabaseError, err)
	}
	return order.ID, nil
}

func (r *orderRepository) VoucherCodeExists(ctx context.Context, executor SQLExecutor, code string) (bool, error) {
	var exists bool
	err := executor.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE voucher_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: checking voucher code: %v", ErrDatabaseError, err)
	}
	return exists, nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, executor SQLExecutor, orderID int64) (*models.Order, error) {
	return r.getOrder(ctx, executor, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
}

// LockOrder reads the order and row-locks it for the surrounding transaction.
func (r *orderRepository) LockOrder(ctx context.Context, executor SQLExecutor, orderID int64) (*models.Order, error) {
	return r.getOrder(ctx, executor, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)
}

func (r *orderRepository) getOrder(ctx context.Context, executor SQLExecutor, query string, orderID int64) (*models.Order, error) {
	if executor == nil {
		executor = r.db
	}
	order, err := scanOrder(executor.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting order by ID %d: %v", ErrDatabaseError, orderID, err)
	}
	return order, nil
}

func (r *orderRepository) GetOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, int, error) {
	orders := []models.Order{}
	totalCount := 0

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + orderColumns + `, COUNT(*) OVER() AS total_count FROM orders`)

	var conditions []string
	var args []interface{}
	argCounter := 1

	if filters.Status != nil && *filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argCounter))
		args = append(args, *filters.Status)
		argCounter++
	}
	if filters.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argCounter))
		args = append(args, *filters.From)
		argCounter++
	}
	if filters.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argCounter))
		args = append(args, *filters.To)
		argCounter++
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")

	if filters.PageSize > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d", argCounter))
		args = append(args, filters.PageSize)
		argCounter++
		if filters.Page > 1 {
			queryBuilder.WriteString(fmt.Sprintf(" OFFSET $%d", argCounter))
			args = append(args, (filters.Page-1)*filters.PageSize)
		}
	}

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: querying orders: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOrder(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: scanning order: %v", ErrDatabaseError, err)
		}
		orders = append(orders, *o)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating order rows: %v", ErrDatabaseError, err)
	}
	return orders, totalCount, nil
}

func (r *orderRepository) UpdateOrderStatus(ctx context.Context, executor SQLExecutor, orderID int64, from, to string) (bool, error) {
	query := `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := executor.ExecContext(ctx, query, to, time.Now(), orderID, from)
	if err != nil {
		return false, fmt.Errorf("%w: updating order status for ID %d: %v", ErrDatabaseError, orderID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: getting rows affected for order status update ID %d: %v", ErrDatabaseError, orderID, err)
	}
	return rowsAffected > 0, nil
}

// --- OrderItem Methods ---

func (r *orderRepository) CreateOrderItem(ctx context.Context, executor SQLExecutor, item *models.OrderItem) (int64, error) {
	query := `INSERT INTO order_items
	            (order_id, menu_item_id, item_name, quantity, price, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id`
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	err := executor.QueryRowContext(ctx, query,
		item.OrderID, nullableID(item.MenuItemID), item.ItemName, item.Quantity, item.Price, item.CreatedAt,
	).Scan(&item.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
			return 0, fmt.Errorf("%w: creating order item (constraint: %s): %v", ErrDatabaseError, pqErr.Constraint, err)
		}
		return 0, fmt.Errorf("%w: creating order item: %v", ErrDatabaseError, err)
	}
	return item.ID, nil
}

// GetOrderItems loads the line items of several orders at once, each with the
// menu item it still references. Items of deleted menu items have no MenuItem.
func (r *orderRepository) GetOrderItems(ctx context.Context, executor SQLExecutor, orderIDs []int64) (map[int64][]models.OrderItem, error) {
	result := make(map[int64][]models.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return result, nil
	}
	if executor == nil {
		executor = r.db
	}

	query := `
		SELECT
		    oi.id, oi.order_id, oi.menu_item_id, oi.item_name, oi.quantity, oi.price, oi.created_at,
		    mi.name, mi.price, mi.category, mi.stock_quantity, mi.description, mi.image,
		    mi.is_available, mi.created_at, mi.updated_at
		FROM order_items oi
		LEFT JOIN menu_items mi ON oi.menu_item_id = mi.id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id`

	rows, err := executor.QueryContext(ctx, query, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("%w: querying order items: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		var menuItemID, miStock sql.NullInt64
		var miName, miCategory, miDescription, miImage sql.NullString
		var miPrice decimal.NullDecimal
		var miAvailable sql.NullBool
		var miCreatedAt, miUpdatedAt sql.NullTime

		err := rows.Scan(
			&item.ID, &item.OrderID, &menuItemID, &item.ItemName, &item.Quantity, &item.Price, &item.CreatedAt,
			&miName, &miPrice, &miCategory, &miStock, &miDescription, &miImage,
			&miAvailable, &miCreatedAt, &miUpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning order item: %v", ErrDatabaseError, err)
		}

		item.MenuItemID = idFromNull(menuItemID)
		if item.MenuItemID != nil && miName.Valid {
			mi := &models.MenuItem{
				ID:            *item.MenuItemID,
				Name:          miName.String,
				Price:         miPrice.Decimal,
				Category:      miCategory.String,
				StockQuantity: intFromNull(miStock),
				IsAvailable:   miAvailable.Bool,
				CreatedAt:     miCreatedAt.Time,
				UpdatedAt:     miUpdatedAt.Time,
			}
			if miDescription.Valid {
				mi.Description = &miDescription.String
			}
			if miImage.Valid {
				mi.Image = &miImage.String
			}
			item.MenuItem = mi
		}
		result[item.OrderID] = append(result[item.OrderID], item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating order items: %v", ErrDatabaseError, err)
	}
	return result, nil
}
