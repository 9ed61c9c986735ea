package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cafeteria_backend/internal/models"
)

// StockMovementRepository defines the interface for the per-item stock ledger.
type StockMovementRepository interface {
	CreateMovement(ctx context.Context, executor SQLExecutor, movement *models.StockMovement) (int64, error)
	GetMovementsByMenuItem(ctx context.Context, menuItemID int64, limit int) ([]models.StockMovement, error)
}

type stockMovementRepository struct {
	db *sql.DB
}

// NewStockMovementRepository creates a new instance of StockMovementRepository.
func NewStockMovementRepository(db *sql.DB) StockMovementRepository {
	return &stockMovementRepository{db: db}
}

func nullableID(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func idFromNull(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func (r *stockMovementRepository) CreateMovement(ctx context.Context, executor SQLExecutor, movement *models.StockMovement) (int64, error) {
	query := `INSERT INTO stock_movements
	          (menu_item_id, order_id, user_id, movement_type, quantity_changed, reason, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id`
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now()
	}

	err := executor.QueryRowContext(ctx, query,
		movement.MenuItemID, nullableID(movement.OrderID), nullableID(movement.UserID),
		movement.MovementType, movement.QuantityChanged, movement.Reason, movement.CreatedAt,
	).Scan(&movement.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: creating stock movement: %v", ErrDatabaseError, err)
	}
	return movement.ID, nil
}

// GetMovementsByMenuItem returns the newest movements first. limit <= 0 means no limit.
func (r *stockMovementRepository) GetMovementsByMenuItem(ctx context.Context, menuItemID int64, limit int) ([]models.StockMovement, error) {
	query := `SELECT id, menu_item_id, order_id, user_id, movement_type, quantity_changed, reason, created_at
	          FROM stock_movements
	          WHERE menu_item_id = $1
	          ORDER BY created_at DESC, id DESC`
	args := []interface{}{menuItemID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: getting stock movements for menu item ID %d: %v", ErrDatabaseError, menuItemID, err)
	}
	defer rows.Close()

	movements := []models.StockMovement{}
	for rows.Next() {
		var m models.StockMovement
		var orderID, userID sql.NullInt64
		var reason sql.NullString
		if err := rows.Scan(&m.ID, &m.MenuItemID, &orderID, &userID, &m.MovementType, &m.QuantityChanged, &reason, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning stock movement: %v", ErrDatabaseError, err)
		}
		m.OrderID = idFromNull(orderID)
		m.UserID = idFromNull(userID)
		if reason.Valid {
			m.Reason = &reason.String
		}
		movements = append(movements, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating stock movements: %v", ErrDatabaseError, err)
	}
	return movements, nil
}
