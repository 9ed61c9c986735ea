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
)

// MenuItemRepository defines the interface for menu item database operations.
type MenuItemRepository interface {
	CreateItem(ctx context.Context, executor SQLExecutor, item *models.MenuItem) (int64, error)
	GetItemByID(ctx context.Context, itemID int64) (*models.MenuItem, error)
	GetItems(ctx context.Context, filters models.MenuItemFilters) ([]models.MenuItem, error)
	UpdateItem(ctx context.Context, executor SQLExecutor, item *models.MenuItem) error
	DeleteItem(ctx context.Context, executor SQLExecutor, itemID int64) error

	SetStock(ctx context.Context, executor SQLExecutor, itemID int64, stock int, isAvailable bool) error
	SetAvailability(ctx context.Context, executor SQLExecutor, itemID int64, isAvailable bool) error
	// LockItemsForUpdate row-locks the given items until the surrounding
	// transaction ends. Missing IDs are simply absent from the result.
	LockItemsForUpdate(ctx context.Context, executor SQLExecutor, itemIDs []int64) (map[int64]*models.MenuItem, error)
	AdjustStock(ctx context.Context, executor SQLExecutor, itemID int64, delta int) error

	GetLowStockItems(ctx context.Context, threshold int) ([]models.MenuItem, error)
	CountLowStock(ctx context.Context, threshold int) (int, error)
}

type menuItemRepository struct {
	db *sql.DB
}

// NewMenuItemRepository creates a new instance of MenuItemRepository.
func NewMenuItemRepository(db *sql.DB) MenuItemRepository {
	return &menuItemRepository{db: db}
}

const menuItemColumns = `id, name, price, category, stock_quantity, description, image, is_available, created_at, updated_at`

func scanMenuItem(row scanner) (*models.MenuItem, error) {
	item := &models.MenuItem{}
	var stock sql.NullInt64
	var description, image sql.NullString
	err := row.Scan(
		&item.ID, &item.Name, &item.Price, &item.Category, &stock,
		&description, &image, &item.IsAvailable, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.StockQuantity = intFromNull(stock)
	if description.Valid {
		item.Description = &description.String
	}
	if image.Valid {
		item.Image = &image.String
	}
	return item, nil
}

func (r *menuItemRepository) CreateItem(ctx context.Context, executor SQLExecutor, item *models.MenuItem) (int64, error) {
	query := `INSERT INTO menu_items
	            (name, price, category, stock_quantity, description, image, is_available, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          RETURNING id`
	now := time.Now()
	err := executor.QueryRowContext(ctx, query,
		item.Name, item.Price, item.Category, nullableInt(item.StockQuantity),
		item.Description, item.Image, item.IsAvailable, now, now,
	).Scan(&item.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: creating menu item: %v", ErrDatabaseError, err)
	}
	item.CreatedAt, item.UpdatedAt = now, now
	return item.ID, nil
}

func (r *menuItemRepository) GetItemByID(ctx context.Context, itemID int64) (*models.MenuItem, error) {
	query := `SELECT ` + menuItemColumns + ` FROM menu_items WHERE id = $1`
	item, err := scanMenuItem(r.db.QueryRowContext(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting menu item by ID %d: %v", ErrDatabaseError, itemID, err)
	}
	return item, nil
}

func (r *menuItemRepository) GetItems(ctx context.Context, filters models.MenuItemFilters) ([]models.MenuItem, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + menuItemColumns + ` FROM menu_items`)

	var conditions []string
	var args []interface{}
	argCounter := 1

	if filters.Category != nil && *filters.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argCounter))
		args = append(args, *filters.Category)
		argCounter++
	}
	if filters.AvailableOnly {
		conditions = append(conditions, "is_available = TRUE AND (stock_quantity IS NULL OR stock_quantity > 0)")
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY category, name, id")

	return r.queryItems(ctx, queryBuilder.String(), args...)
}

func (r *menuItemRepository) queryItems(ctx context.Context, query string, args ...interface{}) ([]models.MenuItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying menu items: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	items := []models.MenuItem{}
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning menu item: %v", ErrDatabaseError, err)
		}
		items = append(items, *item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating menu item rows: %v", ErrDatabaseError, err)
	}
	return items, nil
}

// UpdateItem overwrites every stored column of the item.
func (r *menuItemRepository) UpdateItem(ctx context.Context, executor SQLExecutor, item *models.MenuItem) error {
	query := `UPDATE menu_items
	          SET name = $1, price = $2, category = $3, stock_quantity = $4, description = $5,
	              image = $6, is_available = $7, updated_at = $8
	          WHERE id = $9`
	now := time.Now()
	result, err := executor.ExecContext(ctx, query,
		item.Name, item.Price, item.Category, nullableInt(item.StockQuantity), item.Description,
		item.Image, item.IsAvailable, now, item.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: updating menu item ID %d: %v", ErrDatabaseError, item.ID, err)
	}
	if err := expectAffected(result, "menu item update", item.ID); err != nil {
		return err
	}
	item.UpdatedAt = now
	return nil
}

func (r *menuItemRepository) DeleteItem(ctx context.Context, executor SQLExecutor, itemID int64) error {
	result, err := executor.ExecContext(ctx, `DELETE FROM menu_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("%w: deleting menu item ID %d: %v", ErrDatabaseError, itemID, err)
	}
	return expectAffected(result, "deleting menu item", itemID)
}

func (r *menuItemRepository) SetStock(ctx context.Context, executor SQLExecutor, itemID int64, stock int, isAvailable bool) error {
	query := `UPDATE menu_items SET stock_quantity = $1, is_available = $2, updated_at = $3 WHERE id = $4`
	result, err := executor.ExecContext(ctx, query, stock, isAvailable, time.Now(), itemID)
	if err != nil {
		return fmt.Errorf("%w: setting stock for menu item ID %d: %v", ErrDatabaseError, itemID, err)
	}
	return expectAffected(result, "stock update", itemID)
}

func (r *menuItemRepository) SetAvailability(ctx context.Context, executor SQLExecutor, itemID int64, isAvailable bool) error {
	query := `UPDATE menu_items SET is_available = $1, updated_at = $2 WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, isAvailable, time.Now(), itemID)
	if err != nil {
		return fmt.Errorf("%w: setting availability for menu item ID %d: %v", ErrDatabaseError, itemID, err)
	}
	return expectAffected(result, "availability update", itemID)
}

func (r *menuItemRepository) LockItemsForUpdate(ctx context.Context, executor SQLExecutor, itemIDs []int64) (map[int64]*models.MenuItem, error) {
	items := make(map[int64]*models.MenuItem, len(itemIDs))
	if len(itemIDs) == 0 {
		return items, nil
	}
	// ORDER BY id keeps the lock order stable across concurrent orders.
	query := `SELECT ` + menuItemColumns + ` FROM menu_items WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	rows, err := executor.QueryContext(ctx, query, pq.Array(itemIDs))
	if err != nil {
		return nil, fmt.Errorf("%w: locking menu items: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning locked menu item: %v", ErrDatabaseError, err)
		}
		items[item.ID] = item
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating locked menu items: %v", ErrDatabaseError, err)
	}
	return items, nil
}

// AdjustStock adds delta to a tracked stock level. Untracked items are left alone.
func (r *menuItemRepository) AdjustStock(ctx context.Context, executor SQLExecutor, itemID int64, delta int) error {
	query := `UPDATE menu_items SET stock_quantity = stock_quantity + $1, updated_at = $2
	          WHERE id = $3 AND stock_quantity IS NOT NULL`
	result, err := executor.ExecContext(ctx, query, delta, time.Now(), itemID)
	if err != nil {
		return fmt.Errorf("%w: adjusting stock for menu item ID %d: %v", ErrDatabaseError, itemID, err)
	}
	return expectAffected(result, "stock adjustment", itemID)
}

func (r *menuItemRepository) GetLowStockItems(ctx context.Context, threshold int) ([]models.MenuItem, error) {
	query := `SELECT ` + menuItemColumns + ` FROM menu_items
	          WHERE stock_quantity IS NOT NULL AND stock_quantity <= $1
	          ORDER BY stock_quantity, name`
	return r.queryItems(ctx, query, threshold)
}

func (r *menuItemRepository) CountLowStock(ctx context.Context, threshold int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM menu_items WHERE stock_quantity IS NOT NULL AND stock_quantity <= $1`
	if err := r.db.QueryRowContext(ctx, query, threshold).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: counting low stock items: %v", ErrDatabaseError, err)
	}
	return count, nil
}
