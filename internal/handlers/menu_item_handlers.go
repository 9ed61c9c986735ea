package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"cafeteria_backend/internal/models"
	"cafeteria_backend/internal/services"
	"cafeteria_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// MenuItemHandler handles menu and stock endpoints.
type MenuItemHandler struct {
	menuService services.MenuService
}

// NewMenuItemHandler creates a new MenuItemHandler.
func NewMenuItemHandler(ms services.MenuService) *MenuItemHandler {
	return &MenuItemHandler{menuService: ms}
}

// imageUpload returns the optional "image" file of a multipart request.
func imageUpload(c *gin.Context) (*multipart.FileHeader, error) {
	file, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	return file, err
}

// CreateMenuItem handles creating a menu item from a multipart form.
func (h *MenuItemHandler) CreateMenuItem(c *gin.Context) {
	var req services.CreateMenuItemRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.RespondBindingError(c, err)
		return
	}
	image, err := imageUpload(c)
	if err != nil {
		utils.RespondValidationFailed(c, "Invalid image upload", map[string]string{"image": "could not be read"})
		return
	}

	item, err := h.menuService.CreateMenuItem(c.Request.Context(), req, image)
	if err != nil {
		respondServiceError(c, err, "CreateMenuItem")
		return
	}
	c.JSON(http.StatusCreated, item)
}

// GetMenuItems lists menu items, optionally by category or orderable only.
func (h *MenuItemHandler) GetMenuItems(c *gin.Context) {
	var filters models.MenuItemFilters
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		filters.Category = &category
	}
	if available := c.Query("available"); available != "" {
		only, err := strconv.ParseBool(available)
		if err != nil {
			utils.RespondValidationFailed(c, "Invalid available filter", map[string]string{"available": "must be true or false"})
			return
		}
		filters.AvailableOnly = only
	}

	items, err := h.menuService.GetMenuItems(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err, "GetMenuItems")
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *MenuItemHandler) GetMenuItemByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	item, err := h.menuService.GetMenuItemByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "GetMenuItemByID")
		return
	}
	c.JSON(http.StatusOK, item)
}

// UpdateMenuItem applies a partial update; a new image replaces the old one.
func (h *MenuItemHandler) UpdateMenuItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateMenuItemRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.RespondBindingError(c, err)
		return
	}
	image, err := imageUpload(c)
	if err != nil {
		utils.RespondValidationFailed(c, "Invalid image upload", map[string]string{"image": "could not be read"})
		return
	}

	item, err := h.menuService.UpdateMenuItem(c.Request.Context(), id, req, image)
	if err != nil {
		respondServiceError(c, err, "UpdateMenuItem")
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *MenuItemHandler) DeleteMenuItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.menuService.DeleteMenuItem(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "DeleteMenuItem")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu item deleted successfully"})
}

// UpdateStock sets the stock level and records the adjustment.
func (h *MenuItemHandler) UpdateStock(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondBindingError(c, err)
		return
	}

	var userID *int64
	if uid, ok := currentUserID(c); ok {
		userID = &uid
	}
	item, err := h.menuService.UpdateStock(c.Request.Context(), id, req, userID)
	if err != nil {
		respondServiceError(c, err, "UpdateStock")
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *MenuItemHandler) UpdateAvailability(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondBindingError(c, err)
		return
	}
	item, err := h.menuService.UpdateAvailability(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err, "UpdateAvailability")
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *MenuItemHandler) GetLowStockItems(c *gin.Context) {
	items, err := h.menuService.GetLowStockItems(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "GetLowStockItems")
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *MenuItemHandler) GetStockMovements(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	movements, err := h.menuService.GetStockMovements(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "GetStockMovements")
		return
	}
	c.JSON(http.StatusOK, movements)
}
