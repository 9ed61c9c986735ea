package router

import (
	"net/http"

	"cafeteria_backend/internal/handlers"
	"cafeteria_backend/internal/middleware"
	"cafeteria_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Auth   *handlers.AuthHandler
	Users  *handlers.UserHandler
	Menu   *handlers.MenuItemHandler
	Orders *handlers.OrderHandler
	Report *handlers.ReportHandler
}

// Options configures authentication and static file serving.
type Options struct {
	Tokens      *utils.TokenManager
	Revocations middleware.RevocationChecker
	StorageRoot string // served read-only under /storage; empty disables it
}

// Setup initializes the routing for the application.
func Setup(engine *gin.Engine, h Handlers, opts Options) {
	handlers.RegisterValidators()

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if opts.StorageRoot != "" {
		engine.Static("/storage", opts.StorageRoot)
	}

	api := engine.Group("/api")

	// Public routes: login, vouchers handed to customers, report exports.
	api.POST("/login", h.Auth.Login)
	api.GET("/orders/:id/voucher", h.Orders.GetVoucher)
	SetupReportRoutes(api, h.Report)

	authenticated := api.Group("")
	authenticated.Use(middleware.AuthMiddleware(opts.Tokens, opts.Revocations))
	{
		SetupAuthenticatedAuthRoutes(authenticated, h.Auth)
		SetupMenuItemRoutes(authenticated, h.Menu)
		SetupOrderRoutes(authenticated, h.Orders)
		SetupDashboardRoutes(authenticated, h.Report)
		SetupUserRoutes(authenticated, h.Users)
	}
}
