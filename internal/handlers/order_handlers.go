package handlers

import (
	"net/http"
	"strconv"
	"time"

	"cafeteria_backend/internal/models"
	"cafeteria_backend/internal/services"
	"cafeteria_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// OrderHandler holds the order and voucher services.
type OrderHandler struct {
	orderService   services.OrderService
	voucherService services.VoucherService
	location       *time.Location
}

// NewOrderHandler creates a new OrderHandler. loc is used for the date filter.
func NewOrderHandler(os services.OrderService, vs services.VoucherService, loc *time.Location) *OrderHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &OrderHandler{orderService: os, voucherService: vs, location: loc}
}

// CreateOrder handles the creation of a new order with its items
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req services.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondBindingError(c, err)
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "CreateOrder")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":      "Order created successfully",
		"voucher_code": order.VoucherCode,
		"order":        order,
	})
}

func positiveQueryInt(c *gin.Context, name string, fields map[string]string) int {
	raw := c.Query(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		fields[name] = "must be a positive integer"
		return 0
	}
	return n
}

// GetOrders handles fetching orders with filters, newest first
func (h *OrderHandler) GetOrders(c *gin.Context) {
	var filters models.OrderFilters
	fields := map[string]string{}

	if status := c.Query("status"); status != "" {
		if !models.IsValidOrderStatus(status) {
			fields["status"] = "must be one of: pending, completed, cancelled"
		}
		filters.Status = &status
	}
	if date := c.Query("date"); date != "" {
		from, to, err := services.DayRange(date, h.location)
		if err != nil {
			fields["date"] = "must be a date in YYYY-MM-DD format"
		} else {
			filters.From, filters.To = &from, &to
		}
	}
	filters.Page = positiveQueryInt(c, "page", fields)
	filters.PageSize = positiveQueryInt(c, "page_size", fields)
	if len(fields) > 0 {
		utils.RespondValidationFailed(c, "Invalid query parameters", fields)
		return
	}

	orders, total, err := h.orderService.GetOrders(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err, "GetOrders")
		return
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	pageSize := filters.PageSize
	if pageSize < 1 {
		pageSize = services.DefaultPageSize
	} else if pageSize > services.MaxPageSize {
		pageSize = services.MaxPageSize
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      orders,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetOrderByID handles fetching a single order with its items
func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orderService.GetOrderByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "GetOrderByID")
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus handles status changes; cancelling returns stock.
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondBindingError(c, err)
		return
	}

	order, err := h.orderService.UpdateOrderStatus(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err, "UpdateOrderStatus")
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetVoucher renders the order voucher as an inline PDF.
func (h *OrderHandler) GetVoucher(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	file, err := h.voucherService.RenderVoucher(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "GetVoucher")
		return
	}
	sendFile(c, file, true)
}
