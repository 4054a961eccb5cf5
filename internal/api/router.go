package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/libretyverse/marketplace-api/internal/api/handler"
	"github.com/libretyverse/marketplace-api/internal/api/middleware"
	"github.com/libretyverse/marketplace-api/internal/core/domain"
	"github.com/libretyverse/marketplace-api/internal/core/ports"
	healthhandlers "github.com/libretyverse/marketplace-api/internal/infrastructure/http/handlers"
)

// Deps bundles everything the router wires together.
type Deps struct {
	Auth       ports.AuthService
	Sync       ports.RoleSyncService
	Reconciler ports.Reconciler
	Mongo      *mongo.Database
	Redis      *redis.Client
	Ledger     healthhandlers.LedgerPinger
	JWTSecret  string
	Logger     zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("marketplace"))

	authHandler := handler.NewAuthHandler(deps.Auth)
	adminHandler := handler.NewAdminHandler(deps.Sync, deps.Reconciler)
	authMW := middleware.Auth(deps.JWTSecret)

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/refresh", authHandler.Refresh)
	e.POST("/auth/verify", authHandler.Verify)
	e.POST("/auth/logout", authHandler.Logout)

	// --- Admin routes (role lifecycle) ---
	admin := e.Group("/admin", authMW)
	admin.POST("/grant-role", adminHandler.GrantRole, middleware.RBAC(domain.RoleDefaultAdmin))
	admin.POST("/revoke-role", adminHandler.RevokeRole, middleware.RBAC(domain.RoleDefaultAdmin))
	admin.POST("/approve-author", adminHandler.ApproveAuthor, middleware.RBAC(domain.RolePlatformAdmin))
	admin.POST("/revoke-author", adminHandler.RevokeAuthor, middleware.RBAC(domain.RolePlatformAdmin))
	admin.POST("/request-author", adminHandler.RequestAuthor, middleware.RBAC(domain.RoleUser))
	admin.POST("/reconcile", adminHandler.Reconcile, middleware.RBAC(domain.RoleDefaultAdmin))

	// --- Health probes and metrics (no auth required) ---
	healthHandler := healthhandlers.NewHealthHandler()
	healthDepsHandler := healthhandlers.NewHealthDependenciesHandler(deps.Mongo, deps.Redis, deps.Ledger)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
