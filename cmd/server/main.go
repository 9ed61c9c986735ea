package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"cafeteria_backend/internal/config"
	"cafeteria_backend/internal/database"
	"cafeteria_backend/internal/handlers"
	"cafeteria_backend/internal/repositories"
	"cafeteria_backend/internal/router"
	"cafeteria_backend/internal/services"
	"cafeteria_backend/internal/storage"
	"cafeteria_backend/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const revokedTokenPurgeInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Logger
	utils.InitLogger(cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	db, err := database.InitDB(ctx, cfg.DSN())
	if err != nil {
		utils.LogError(err, "Failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	if err := database.ApplySchema(ctx, db, cfg.DBSchemaPath); err != nil {
		utils.LogError(err, "Failed to apply database schema", map[string]interface{}{"path": cfg.DBSchemaPath})
		os.Exit(1)
	}
	if cfg.SeedDefaultUsers {
		if err := database.SeedDefaultUsers(ctx, db); err != nil {
			utils.LogError(err, "Failed to seed default users")
			os.Exit(1)
		}
	}

	images, err := storage.NewLocalImageStore(cfg.StorageRoot, cfg.StorageURLPrefix)
	if err != nil {
		utils.LogError(err, "Failed to prepare image storage", map[string]interface{}{"root": cfg.StorageRoot})
		os.Exit(1)
	}

	tokens, err := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		utils.LogError(err, "Failed to configure token manager")
		os.Exit(1)
	}

	// Initialize Repositories
	userRepo := repositories.NewUserRepository(db)
	tokenRepo := repositories.NewTokenRepository(db)
	menuRepo := repositories.NewMenuItemRepository(db)
	movementRepo := repositories.NewStockMovementRepository(db)
	orderRepo := repositories.NewOrderRepository(db)
	reportRepo := repositories.NewReportRepository(db)

	// Initialize Services
	authService := services.NewAuthService(userRepo, tokenRepo, tokens)
	userService := services.NewUserService(userRepo, db)
	menuService := services.NewMenuService(menuRepo, movementRepo, images, db, cfg.LowStockThreshold)
	orderService := services.NewOrderService(orderRepo, menuRepo, movementRepo, db, services.OrderServiceOptions{
		PricePolicy:       cfg.OrderPricePolicy,
		LowStockThreshold: cfg.LowStockThreshold,
		ImageURL:          images.URL,
	})
	voucherService := services.NewVoucherService(orderService, cfg.CafeName, cfg.CurrencyLabel, cfg.Location)
	reportService := services.NewReportService(reportRepo, userRepo, menuRepo, services.ReportServiceOptions{
		Location:          cfg.Location,
		LowStockThreshold: cfg.LowStockThreshold,
		CafeName:          cfg.CafeName,
		CurrencyLabel:     cfg.CurrencyLabel,
	})

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(utils.GinLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition"}
	corsConfig.AllowCredentials = true
	engine.Use(cors.New(corsConfig))

	router.Setup(engine, router.Handlers{
		Auth:   handlers.NewAuthHandler(authService),
		Users:  handlers.NewUserHandler(userService),
		Menu:   handlers.NewMenuItemHandler(menuService),
		Orders: handlers.NewOrderHandler(orderService, voucherService, cfg.Location),
		Report: handlers.NewReportHandler(reportService),
	}, router.Options{
		Tokens:      tokens,
		Revocations: authService,
		StorageRoot: cfg.StorageRoot,
	})

	go purgeRevokedTokens(ctx, tokenRepo)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		utils.LogInfo("Server starting", map[string]interface{}{"port": cfg.Port, "timezone": cfg.Location.String()})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.LogError(err, "Failed to start server")
			stop()
		}
	}()

	<-ctx.Done()
	utils.LogInfo("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.LogError(err, "Server forced to shutdown")
	}
}

// purgeRevokedTokens periodically drops revocations of expired tokens.
func purgeRevokedTokens(ctx context.Context, repo repositories.TokenRepository) {
	ticker := time.NewTicker(revokedTokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := repo.PurgeExpired(ctx, now)
			if err != nil {
				utils.LogError(err, "Failed to purge revoked tokens")
				continue
			}
			if n > 0 {
				utils.LogDebug("Purged revoked tokens", map[string]interface{}{"count": n})
			}
		}
	}
}
