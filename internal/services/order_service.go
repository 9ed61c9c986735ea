package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"cafeteria_backend/internal/models"
	"cafeteria_backend/internal/repositories"
	"cafeteria_backend/pkg/utils"

	"github.com/shopspring/decimal"
)

// Price policies applied when client prices differ from the catalog.
const (
	PricePolicyLog    = models.PricePolicyLog
	PricePolicyReject = models.PricePolicyReject
)

// MaxLineQuantity bounds the quantity of one menu item in an order.
const MaxLineQuantity = 10000

// Pagination defaults for order listings.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// --- Data Transfer Objects (DTOs) ---

// CreateOrderItemRequest is used for creating individual order items.
// Price is what the client displayed; the catalog price is authoritative.
type CreateOrderItemRequest struct {
	MenuItemID int64            `json:"menu_item_id" binding:"required,gt=0"`
	Quantity   int              `json:"quantity" binding:"required,min=1,max=10000"`
	Price      *decimal.Decimal `json:"price" binding:"required"`
}

// CreateOrderRequest is used for creating a new order.
type CreateOrderRequest struct {
	CustomerName  string                   `json:"customer_name" binding:"required,max=255"`
	TotalPrice    *decimal.Decimal         `json:"total_price" binding:"required"`
	PaymentMethod string                   `json:"payment_method" binding:"required,max=50"`
	Items         []CreateOrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// UpdateOrderStatusRequest is used for updating the status of an order.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required,order_status"`
}

// --- End of DTOs ---

// --- OrderService Interface ---
type OrderService interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error)
	GetOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, int, error)
	GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error) // with items
	UpdateOrderStatus(ctx context.Context, orderID int64, req UpdateOrderStatusRequest) (*models.Order, error)
}

// OrderServiceOptions tunes order processing.
type OrderServiceOptions struct {
	PricePolicy       string
	LowStockThreshold int
	ImageURL          func(string) string
	NewVoucherCode    func() (string, error) // defaults to GenerateVoucherCode
}

// --- orderService Implementation ---
type orderService struct {
	orderRepo    repositories.OrderRepository
	menuRepo     repositories.MenuItemRepository
	movementRepo repositories.StockMovementRepository
	db           *sql.DB // For managing transactions
	opts         OrderServiceOptions
}

// NewOrderService creates a new instance of OrderService.
func NewOrderService(
	or repositories.OrderRepository,
	mr repositories.MenuItemRepository,
	smr repositories.StockMovementRepository,
	db *sql.DB,
	opts OrderServiceOptions,
) OrderService {
	if opts.NewVoucherCode == nil {
		opts.NewVoucherCode = GenerateVoucherCode
	}
	if opts.PricePolicy == "" {
		opts.PricePolicy = PricePolicyLog
	}
	return &orderService{
		orderRepo:    or,
		menuRepo:     mr,
		movementRepo: smr,
		db:           db,
		opts:         opts,
	}
}

// clientPrice is the price a request line displayed, by request position.
type clientPrice struct {
	index int
	price decimal.Decimal
}

// orderLine is a request item after merging duplicates.
type orderLine struct {
	menuItemID int64
	quantity   int
	index      int // first position in the request, for field names
	prices     []clientPrice
}

func mergeOrderLines(items []CreateOrderItemRequest) []*orderLine {
	byID := make(map[int64]*orderLine, len(items))
	lines := make([]*orderLine, 0, len(items))
	for i, it := range items {
		line, ok := byID[it.MenuItemID]
		if ok {
			line.quantity += it.Quantity
		} else {
			line = &orderLine{menuItemID: it.MenuItemID, quantity: it.Quantity, index: i}
			byID[it.MenuItemID] = line
			lines = append(lines, line)
		}
		if it.Price != nil {
			line.prices = append(line.prices, clientPrice{index: i, price: *it.Price})
		}
	}
	return lines
}

func validateOrderRequest(req CreateOrderRequest) error {
	verr := &ValidationError{}
	if strings.TrimSpace(req.CustomerName) == "" {
		verr.Add("customer_name", "is required")
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		verr.Add("payment_method", "is required")
	}
	if req.TotalPrice == nil {
		verr.Add("total_price", "is required")
	} else if req.TotalPrice.IsNegative() {
		verr.Add("total_price", "must be at least 0")
	}
	if len(req.Items) == 0 {
		verr.Add("items", "must contain at least 1 item(s)")
	}
	for i, it := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		if it.MenuItemID <= 0 {
			verr.Add(field+".menu_item_id", "is required")
		}
		if it.Quantity < 1 {
			verr.Add(field+".quantity", "must be at least 1")
		} else if it.Quantity > MaxLineQuantity {
			verr.Add(field+".quantity", fmt.Sprintf("may not be greater than %d", MaxLineQuantity))
		}
		if it.Price == nil {
			verr.Add(field+".price", "is required")
		} else if it.Price.IsNegative() {
			verr.Add(field+".price", "must be at least 0")
		}
	}
	return verr.Err()
}

// CreateOrder prices the order from the catalog, takes the stock and
// stores the order with a fresh voucher code, all in one transaction.
func (s *orderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	if err := validateOrderRequest(req); err != nil {
		return nil, err
	}
	lines := mergeOrderLines(req.Items)
	verr := &ValidationError{}
	for _, l := range lines {
		if l.quantity > MaxLineQuantity {
			verr.Add(fmt.Sprintf("items[%d].quantity", l.index),
				fmt.Sprintf("may not total more than %d for one menu item", MaxLineQuantity))
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start database transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.menuItemID
	}
	menuItems, err := s.menuRepo.LockItemsForUpdate(ctx, tx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu items: %w", err)
	}

	for _, l := range lines {
		if _, ok := menuItems[l.menuItemID]; !ok {
			verr.Add(fmt.Sprintf("items[%d].menu_item_id", l.index), "the selected menu item does not exist")
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	total := decimal.Zero
	orderItems := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		mi := menuItems[l.menuItemID]
		if !mi.IsAvailable {
			return nil, fmt.Errorf("%w: %s", ErrItemUnavailable, mi.Name)
		}
		if mi.TracksStock() && l.quantity > *mi.StockQuantity {
			return nil, fmt.Errorf("%w: %s (requested %d, available %d)", ErrInsufficientStock, mi.Name, l.quantity, *mi.StockQuantity)
		}

		price := models.Money(mi.Price)
		for _, cp := range l.prices {
			if models.Money(cp.price).Equal(price) {
				continue
			}
			if s.opts.PricePolicy == PricePolicyReject {
				verr.Add(fmt.Sprintf("items[%d].price", cp.index), "does not match the current menu price "+price.StringFixed(2))
			} else {
				utils.LogWarn("CreateOrder: client price differs from menu price, using menu price", map[string]interface{}{
					"menu_item_id": mi.ID, "client_price": cp.price.String(), "menu_price": price.StringFixed(2),
				})
			}
		}

		id := mi.ID
		item := models.OrderItem{MenuItemID: &id, ItemName: mi.Name, Quantity: l.quantity, Price: price, MenuItem: mi}
		total = total.Add(item.Subtotal())
		orderItems = append(orderItems, item)
	}
	total = models.Money(total)
	if total.GreaterThan(maxMenuPrice) {
		verr.Add("total_price", "order total may not be greater than "+maxMenuPrice.StringFixed(2))
	}
	if !models.Money(*req.TotalPrice).Equal(total) {
		if s.opts.PricePolicy == PricePolicyReject {
			verr.Add("total_price", "does not match the order total "+total.StringFixed(2))
		} else {
			utils.LogWarn("CreateOrder: client total differs from computed total, using computed total", map[string]interface{}{
				"client_total": req.TotalPrice.String(), "computed_total": total.StringFixed(2),
			})
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	code, err := s.uniqueVoucherCode(ctx, tx)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		CustomerName:  strings.TrimSpace(req.CustomerName),
		TotalPrice:    total,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		VoucherCode:   code,
		Status:        models.OrderStatusPending,
	}
	if _, err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("failed to create order record: %w", err)
	}

	reason := "Order " + code
	for i := range orderItems {
		item := &orderItems[i]
		item.OrderID = order.ID
		if _, err := s.orderRepo.CreateOrderItem(ctx, tx, item); err != nil {
			return nil, fmt.Errorf("failed to create order item for %s: %w", item.ItemName, err)
		}

		mi := item.MenuItem
		if !mi.TracksStock() {
			continue
		}
		if err := s.menuRepo.AdjustStock(ctx, tx, mi.ID, -item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to update stock for %s: %w", mi.Name, err)
		}
		remaining := *mi.StockQuantity - item.Quantity
		mi.StockQuantity = &remaining
		movement := &models.StockMovement{
			MenuItemID:      mi.ID,
			OrderID:         &order.ID,
			MovementType:    models.MovementTypeSale,
			QuantityChanged: -item.Quantity,
			Reason:          &reason,
		}
		if _, err := s.movementRepo.CreateMovement(ctx, tx, movement); err != nil {
			return nil, fmt.Errorf("failed to record stock movement for %s: %w", mi.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	order.Items = orderItems
	s.decorateItems(order.Items)
	return order, nil
}

// uniqueVoucherCode draws codes until one is unused. The unique index on
// orders.voucher_code still guards against a concurrent insert.
func (s *orderService) uniqueVoucherCode(ctx context.Context, executor repositories.SQLExecutor) (string, error) {
	for attempt := 1; attempt <= maxVoucherAttempts; attempt++ {
		code, err := s.opts.NewVoucherCode()
		if err != nil {
			return "", err
		}
		exists, err := s.orderRepo.VoucherCodeExists(ctx, executor, code)
		if err != nil {
			return "", fmt.Errorf("failed to check voucher code: %w", err)
		}
		if !exists {
			return code, nil
		}
		utils.LogDebug("Voucher code collision, regenerating", map[string]interface{}{"attempt": attempt})
	}
	return "", fmt.Errorf("failed to generate a unique voucher code after %d attempts", maxVoucherAttempts)
}

func (s *orderService) decorateItems(items []models.OrderItem) {
	for i := range items {
		if items[i].MenuItem != nil {
			items[i].MenuItem.Decorate(s.opts.LowStockThreshold, s.opts.ImageURL)
		}
	}
}

// attachItems loads the line items of orders in one query.
func (s *orderService) attachItems(ctx context.Context, executor repositories.SQLExecutor, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	items, err := s.orderRepo.GetOrderItems(ctx, executor, ids)
	if err != nil {
		return err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderItem{}
		}
		s.decorateItems(orders[i].Items)
	}
	return nil
}

func (s *orderService) GetOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, int, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = DefaultPageSize
	}
	if filters.PageSize > MaxPageSize {
		filters.PageSize = MaxPageSize
	}

	orders, total, err := s.orderRepo.GetOrders(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	if err := s.attachItems(ctx, nil, orders); err != nil {
		return nil, 0, fmt.Errorf("failed to load order items: %w", err)
	}
	return orders, total, nil
}

func (s *orderService) GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, nil, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order %d: %w", orderID, err)
	}
	orders := []models.Order{*order}
	if err := s.attachItems(ctx, nil, orders); err != nil {
		return nil, fmt.Errorf("failed to load items for order %d: %w", orderID, err)
	}
	return &orders[0], nil
}

// CanTransition reports whether an order may move from one status to another.
// Only pending orders change; completed and cancelled are final.
func CanTransition(from, to string) bool {
	return from == models.OrderStatusPending &&
		(to == models.OrderStatusCompleted || to == models.OrderStatusCancelled)
}

// UpdateOrderStatus moves a pending order to completed or cancelled.
// Cancelling puts the ordered quantities back into stock.
func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID int64, req UpdateOrderStatusRequest) (*models.Order, error) {
	if !models.IsValidOrderStatus(req.Status) {
		return nil, NewFieldError("status", "must be one of: pending, completed, cancelled")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start database transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := s.orderRepo.LockOrder(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order %d: %w", orderID, err)
	}
	if !CanTransition(order.Status, req.Status) {
		return nil, fmt.Errorf("%w: cannot change status from %s to %s", ErrInvalidStatusTransition, order.Status, req.Status)
	}

	updated, err := s.orderRepo.UpdateOrderStatus(ctx, tx, orderID, order.Status, req.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to update status of order %d: %w", orderID, err)
	}
	if !updated {
		return nil, fmt.Errorf("%w: order %d changed concurrently", ErrInvalidStatusTransition, orderID)
	}
	order.Status = req.Status

	orders := []models.Order{*order}
	if err := s.attachItems(ctx, tx, orders); err != nil {
		return nil, fmt.Errorf("failed to load items for order %d: %w", orderID, err)
	}
	order = &orders[0]

	if req.Status == models.OrderStatusCancelled {
		if err := s.returnStock(ctx, tx, order); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order status update: %w", err)
	}
	return order, nil
}

func (s *orderService) returnStock(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	reason := "Order " + order.VoucherCode + " cancelled"
	for i := range order.Items {
		item := &order.Items[i]
		if item.MenuItem == nil || !item.MenuItem.TracksStock() {
			continue
		}
		err := s.menuRepo.AdjustStock(ctx, tx, item.MenuItem.ID, item.Quantity)
		if errors.Is(err, repositories.ErrNotFound) {
			continue // stock tracking was switched off meanwhile
		}
		if err != nil {
			return fmt.Errorf("failed to return stock for %s: %w", item.MenuItem.Name, err)
		}
		restored := *item.MenuItem.StockQuantity + item.Quantity
		item.MenuItem.StockQuantity = &restored
		item.MenuItem.Decorate(s.opts.LowStockThreshold, s.opts.ImageURL)

		movement := &models.StockMovement{
			MenuItemID:      item.MenuItem.ID,
			OrderID:         &order.ID,
			MovementType:    models.MovementTypeCancellationReturn,
			QuantityChanged: item.Quantity,
			Reason:          &reason,
		}
		if _, err := s.movementRepo.CreateMovement(ctx, tx, movement); err != nil {
			return fmt.Errorf("failed to record stock movement for %s: %w", item.MenuItem.Name, err)
		}
	}
	return nil
}
