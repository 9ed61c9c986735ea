package router

import (
	"cafeteria_backend/internal/handlers"
	"cafeteria_backend/internal/middleware"
	"cafeteria_backend/internal/models"

	"github.com/gin-gonic/gin"
)

func SetupAuthenticatedAuthRoutes(group *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	group.POST("/logout", authHandler.Logout)
	group.GET("/user", authHandler.GetCurrentUser)
}

// SetupMenuItemRoutes sets up the menu item routes. Reads are open to every
// signed-in user; changes need a manager or admin.
func SetupMenuItemRoutes(authenticatedGroup *gin.RouterGroup, menuHandler *handlers.MenuItemHandler) {
	menuRoutes := authenticatedGroup.Group("/menu-items")
	{
		menuRoutes.GET("", menuHandler.GetMenuItems)
		menuRoutes.GET("/low-stock", menuHandler.GetLowStockItems)
		menuRoutes.GET("/:id", menuHandler.GetMenuItemByID)

		managed := menuRoutes.Group("")
		managed.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleManager))
		{
			managed.POST("", menuHandler.CreateMenuItem)
			managed.PUT("/:id", menuHandler.UpdateMenuItem)
			managed.DELETE("/:id", menuHandler.DeleteMenuItem)
			managed.PUT("/:id/stock", menuHandler.UpdateStock)
			managed.PUT("/:id/availability", menuHandler.UpdateAvailability)
			managed.GET("/:id/stock-movements", menuHandler.GetStockMovements)
		}
	}
}

// SetupOrderRoutes sets up the order routes.
func SetupOrderRoutes(authenticatedGroup *gin.RouterGroup, orderHandler *handlers.OrderHandler) {
	orderRoutes := authenticatedGroup.Group("/orders")
	{
		orderRoutes.POST("", orderHandler.CreateOrder)
		orderRoutes.GET("", orderHandler.GetOrders)
		orderRoutes.GET("/:id", orderHandler.GetOrderByID)
		orderRoutes.PUT("/:id", orderHandler.UpdateOrderStatus)
	}
}

// SetupReportRoutes sets up the public report routes.
func SetupReportRoutes(apiGroup *gin.RouterGroup, reportHandler *handlers.ReportHandler) {
	reportRoutes := apiGroup.Group("/reports")
	{
		reportRoutes.GET("/daily", reportHandler.GetDailyReport)
		reportRoutes.GET("/daily/export", reportHandler.ExportDailyReport)
		reportRoutes.GET("/monthly", reportHandler.GetMonthlyReport)
		reportRoutes.GET("/monthly/export", reportHandler.ExportMonthlyReport)
	}
}

func SetupDashboardRoutes(authenticatedGroup *gin.RouterGroup, reportHandler *handlers.ReportHandler) {
	authenticatedGroup.GET("/dashboard/summary", reportHandler.GetDashboardSummary)
}

// SetupUserRoutes sets up staff account management, admins only.
func SetupUserRoutes(authenticatedGroup *gin.RouterGroup, userHandler *handlers.UserHandler) {
	userRoutes := authenticatedGroup.Group("/users")
	userRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
	{
		userRoutes.GET("", userHandler.GetUsers)
		userRoutes.POST("", userHandler.CreateUser)
		userRoutes.GET("/:id", userHandler.GetUserByID)
		userRoutes.PUT("/:id", userHandler.UpdateUser)
		userRoutes.DELETE("/:id", userHandler.DeleteUser)
	}
}
