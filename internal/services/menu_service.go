package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"cafeteria_backend/internal/models"
	"cafeteria_backend/internal/repositories"
	"cafeteria_backend/internal/storage"
	"cafeteria_backend/pkg/utils"

	"github.com/shopspring/decimal"
)

// Upload limits for menu images.
const (
	MaxImageSize = 2048 * 1024
)

var (
	allowedImageExtensions = map[string]bool{".jpeg": true, ".jpg": true, ".png": true, ".gif": true}
	allowedImageTypes      = map[string]bool{"image/jpeg": true, "image/png": true, "image/gif": true}
	maxMenuPrice           = decimal.RequireFromString("99999999.99")
)

// CreateMenuItemRequest is bound from a multipart form. Numbers arrive as
// text and are parsed here so malformed input is reported per field.
type CreateMenuItemRequest struct {
	Name          string  `form:"name" binding:"required,max=255"`
	Price         string  `form:"price" binding:"required"`
	Category      string  `form:"category" binding:"required,max=100"`
	StockQuantity string  `form:"stock_quantity"`
	Description   *string `form:"description"`
}

// UpdateMenuItemRequest carries only the fields being changed. An empty
// stock_quantity stops tracking stock for the item.
type UpdateMenuItemRequest struct {
	Name          *string `form:"name" binding:"omitempty,min=1,max=255"`
	Price         *string `form:"price"`
	Category      *string `form:"category" binding:"omitempty,min=1,max=100"`
	StockQuantity *string `form:"stock_quantity"`
	Description   *string `form:"description"`
}

// UpdateStockRequest DTO. IsAvailable defaults to true.
type UpdateStockRequest struct {
	StockQuantity *int  `json:"stock_quantity" binding:"required,min=0"`
	IsAvailable   *bool `json:"is_available"`
}

// UpdateAvailabilityRequest DTO
type UpdateAvailabilityRequest struct {
	IsAvailable *bool `json:"is_available" binding:"required"`
}

type MenuService interface {
	CreateMenuItem(ctx context.Context, req CreateMenuItemRequest, image *multipart.FileHeader) (*models.MenuItem, error)
	GetMenuItems(ctx context.Context, filters models.MenuItemFilters) ([]models.MenuItem, error)
	GetMenuItemByID(ctx context.Context, itemID int64) (*models.MenuItem, error)
	UpdateMenuItem(ctx context.Context, itemID int64, req UpdateMenuItemRequest, image *multipart.FileHeader) (*models.MenuItem, error)
	DeleteMenuItem(ctx context.Context, itemID int64) error

	UpdateStock(ctx context.Context, itemID int64, req UpdateStockRequest, userID *int64) (*models.MenuItem, error)
	UpdateAvailability(ctx context.Context, itemID int64, req UpdateAvailabilityRequest) (*models.MenuItem, error)
	GetLowStockItems(ctx context.Context) ([]models.MenuItem, error)
	GetStockMovements(ctx context.Context, itemID int64) ([]models.StockMovement, error)
}

type menuService struct {
	menuRepo          repositories.MenuItemRepository
	movementRepo      repositories.StockMovementRepository
	images            storage.ImageStore
	db                *sql.DB
	lowStockThreshold int
}

// NewMenuService creates a new instance of MenuService.
func NewMenuService(
	mr repositories.MenuItemRepository,
	smr repositories.StockMovementRepository,
	images storage.ImageStore,
	db *sql.DB,
	lowStockThreshold int,
) MenuService {
	return &menuService{
		menuRepo:          mr,
		movementRepo:      smr,
		images:            images,
		db:                db,
		lowStockThreshold: lowStockThreshold,
	}
}

func (s *menuService) decorate(item *models.MenuItem) {
	item.Decorate(s.lowStockThreshold, s.images.URL)
}

func (s *menuService) decorateAll(items []models.MenuItem) {
	for i := range items {
		s.decorate(&items[i])
	}
}

func parsePrice(raw string) (decimal.Decimal, string) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, "must be a number"
	}
	if price.IsNegative() {
		return decimal.Zero, "must be at least 0"
	}
	if price.GreaterThan(maxMenuPrice) {
		return decimal.Zero, "may not be greater than " + maxMenuPrice.String()
	}
	return models.Money(price), ""
}

// parseStock returns nil for an empty value.
func parseStock(raw string) (*int, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ""
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, "must be an integer"
	}
	if n < 0 {
		return nil, "must be at least 0"
	}
	return &n, ""
}

// checkImage validates size, extension and sniffed content type.
func checkImage(image *multipart.FileHeader) (string, string) {
	ext := strings.ToLower(filepath.Ext(image.Filename))
	if !allowedImageExtensions[ext] {
		return "", "must be a file of type: jpeg, png, jpg, gif"
	}
	if image.Size > MaxImageSize {
		return "", fmt.Sprintf("may not be greater than %d kilobytes", MaxImageSize/1024)
	}
	return ext, ""
}

// storeImage sniffs the upload and writes it to the image store.
func (s *menuService) storeImage(image *multipart.FileHeader, ext string) (string, error) {
	f, err := image.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded image: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read uploaded image: %w", err)
	}
	head = head[:n]
	if !allowedImageTypes[http.DetectContentType(head)] {
		return "", NewFieldError("image", "must be an image")
	}

	path, err := s.images.Save(ext, io.MultiReader(bytes.NewReader(head), f))
	if err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return path, nil
}

func (s *menuService) CreateMenuItem(ctx context.Context, req CreateMenuItemRequest, image *multipart.FileHeader) (*models.MenuItem, error) {
	verr := &ValidationError{}
	price, msg := parsePrice(req.Price)
	if msg != "" {
		verr.Add("price", msg)
	}
	stock, msg := parseStock(req.StockQuantity)
	if msg != "" {
		verr.Add("stock_quantity", msg)
	}
	var ext string
	if image != nil {
		if ext, msg = checkImage(image); msg != "" {
			verr.Add("image", msg)
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	item := &models.MenuItem{
		Name:          strings.TrimSpace(req.Name),
		Price:         price,
		Category:      strings.TrimSpace(req.Category),
		StockQuantity: stock,
		Description:   utils.NewNullString(derefString(req.Description)),
		IsAvailable:   true,
	}

	if image != nil {
		path, err := s.storeImage(image, ext)
		if err != nil {
			return nil, err
		}
		item.Image = &path
	}

	if _, err := s.menuRepo.CreateItem(ctx, s.db, item); err != nil {
		if item.Image != nil {
			s.discardImage(*item.Image, "CreateMenuItem")
		}
		return nil, fmt.Errorf("failed to create menu item: %w", err)
	}
	s.decorate(item)
	return item, nil
}

func (s *menuService) GetMenuItems(ctx context.Context, filters models.MenuItemFilters) ([]models.MenuItem, error) {
	items, err := s.menuRepo.GetItems(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu items: %w", err)
	}
	s.decorateAll(items)
	return items, nil
}

func (s *menuService) GetMenuItemByID(ctx context.Context, itemID int64) (*models.MenuItem, error) {
	item, err := s.menuRepo.GetItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrMenuItemNotFound
		}
		return nil, fmt.Errorf("failed to get menu item %d: %w", itemID, err)
	}
	s.decorate(item)
	return item, nil
}

// UpdateMenuItem applies a partial update. A replacement image is stored
// before the record changes and the previous one is removed only after the
// record points at the new image.
func (s *menuService) UpdateMenuItem(ctx context.Context, itemID int64, req UpdateMenuItemRequest, image *multipart.FileHeader) (*models.MenuItem, error) {
	item, err := s.menuRepo.GetItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrMenuItemNotFound
		}
		return nil, fmt.Errorf("failed to get menu item %d: %w", itemID, err)
	}

	verr := &ValidationError{}
	if req.Name != nil {
		item.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		item.Category = strings.TrimSpace(*req.Category)
	}
	if req.Price != nil {
		price, msg := parsePrice(*req.Price)
		if msg != "" {
			verr.Add("price", msg)
		}
		item.Price = price
	}
	if req.StockQuantity != nil {
		stock, msg := parseStock(*req.StockQuantity)
		if msg != "" {
			verr.Add("stock_quantity", msg)
		}
		item.StockQuantity = stock
	}
	if req.Description != nil {
		item.Description = utils.NewNullString(*req.Description)
	}
	var ext string
	if image != nil {
		var msg string
		if ext, msg = checkImage(image); msg != "" {
			verr.Add("image", msg)
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	oldImage := item.Image
	var newImage string
	if image != nil {
		if newImage, err = s.storeImage(image, ext); err != nil {
			return nil, err
		}
		item.Image = &newImage
	}

	if err := s.menuRepo.UpdateItem(ctx, s.db, item); err != nil {
		if newImage != "" {
			s.discardImage(newImage, "UpdateMenuItem")
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrMenuItemNotFound
		}
		return nil, fmt.Errorf("failed to update menu item %d: %w", itemID, err)
	}

	if newImage != "" && oldImage != nil && *oldImage != "" {
		s.discardImage(*oldImage, "UpdateMenuItem")
	}
	s.decorate(item)
	return item, nil
}

// discardImage removes an asset nothing points at any more. A failure
// leaves an orphaned file, which is logged but not returned.
func (s *menuService) discardImage(path, op string) {
	if err := s.images.Delete(path); err != nil {
		utils.LogError(err, op+": failed to delete image, file is orphaned", map[string]interface{}{"image": path})
	}
}

func (s *menuService) DeleteMenuItem(ctx context.Context, itemID int64) error {
	item, err := s.menuRepo.GetItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrMenuItemNotFound
		}
		return fmt.Errorf("failed to get menu item %d: %w", itemID, err)
	}

	if err := s.menuRepo.DeleteItem(ctx, s.db, itemID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrMenuItemNotFound
		}
		return fmt.Errorf("failed to delete menu item %d: %w", itemID, err)
	}

	if item.Image != nil && *item.Image != "" {
		s.discardImage(*item.Image, "DeleteMenuItem")
	}
	return nil
}

// UpdateStock sets the stock level and records the change in the ledger.
func (s *menuService) UpdateStock(ctx context.Context, itemID int64, req UpdateStockRequest, userID *int64) (*models.MenuItem, error) {
	if req.StockQuantity == nil {
		return nil, NewFieldError("stock_quantity", "is required")
	}
	if *req.StockQuantity < 0 {
		return nil, NewFieldError("stock_quantity", "must be at least 0")
	}
	isAvailable := true
	if req.IsAvailable != nil {
		isAvailable = *req.IsAvailable
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start database transaction: %w", err)
	}
	defer tx.Rollback()

	locked, err := s.menuRepo.LockItemsForUpdate(ctx, tx, []int64{itemID})
	if err != nil {
		return nil, fmt.Errorf("failed to lock menu item %d: %w", itemID, err)
	}
	item, ok := locked[itemID]
	if !ok {
		return nil, ErrMenuItemNotFound
	}

	previous := 0
	if item.StockQuantity != nil {
		previous = *item.StockQuantity
	}
	if err := s.menuRepo.SetStock(ctx, tx, itemID, *req.StockQuantity, isAvailable); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrMenuItemNotFound
		}
		return nil, fmt.Errorf("failed to update stock for menu item %d: %w", itemID, err)
	}

	if delta := *req.StockQuantity - previous; delta != 0 || item.StockQuantity == nil {
		reason := "Manual stock update"
		movement := &models.StockMovement{
			MenuItemID:      itemID,
			UserID:          userID,
			MovementType:    models.MovementTypeManualSet,
			QuantityChanged: delta,
			Reason:          &reason,
		}
		if _, err := s.movementRepo.CreateMovement(ctx, tx, movement); err != nil {
			return nil, fmt.Errorf("failed to record stock movement for menu item %d: %w", itemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit stock update: %w", err)
	}

	item.StockQuantity = req.StockQuantity
	item.IsAvailable = isAvailable
	s.decorate(item)
	return item, nil
}

// UpdateAvailability flips the manual availability switch. Stock is untouched.
func (s *menuService) UpdateAvailability(ctx context.Context, itemID int64, req UpdateAvailabilityRequest) (*models.MenuItem, error) {
	if req.IsAvailable == nil {
		return nil, NewFieldError("is_available", "is required")
	}
	if err := s.menuRepo.SetAvailability(ctx, s.db, itemID, *req.IsAvailable); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrMenuItemNotFound
		}
		return nil, fmt.Errorf("failed to update availability for menu item %d: %w", itemID, err)
	}
	return s.GetMenuItemByID(ctx, itemID)
}

func (s *menuService) GetLowStockItems(ctx context.Context) ([]models.MenuItem, error) {
	items, err := s.menuRepo.GetLowStockItems(ctx, s.lowStockThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock items: %w", err)
	}
	s.decorateAll(items)
	return items, nil
}

func (s *menuService) GetStockMovements(ctx context.Context, itemID int64) ([]models.StockMovement, error) {
	if _, err := s.GetMenuItemByID(ctx, itemID); err != nil {
		return nil, err
	}
	movements, err := s.movementRepo.GetMovementsByMenuItem(ctx, itemID, 100)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock movements for menu item %d: %w", itemID, err)
	}
	return movements, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
