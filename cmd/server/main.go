package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/libretyverse/marketplace-api/internal/api"
	"github.com/libretyverse/marketplace-api/internal/core/service"
	"github.com/libretyverse/marketplace-api/internal/infrastructure/bootstrap"
	"github.com/libretyverse/marketplace-api/internal/infrastructure/config"
	mongodb "github.com/libretyverse/marketplace-api/internal/infrastructure/db/mongo"
	redisdb "github.com/libretyverse/marketplace-api/internal/infrastructure/db/redis"
	"github.com/libretyverse/marketplace-api/internal/infrastructure/ledger/evm"
	"github.com/libretyverse/marketplace-api/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	// --- MongoDB ---
	client, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	userRepo := mongodb.NewUserRepository(db)
	requestRepo := mongodb.NewAuthorRequestRepository(db)
	auditRepo := mongodb.NewRoleAuditRepository(db)

	if err := userRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("user index creation failed")
	}
	if err := requestRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("author request index creation failed")
	}

	// --- Redis ---
	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() { _ = rdb.Close() }()

	// --- Ledger ---
	ledger, err := evm.Dial(ctx, evm.Config{
		RPCURL:          cfg.Ledger.RPCURL,
		ContractAddress: cfg.Ledger.ContractAddress,
		AdminPrivateKey: cfg.Ledger.AdminPrivateKey,
		ChainID:         cfg.Ledger.ChainID,
		ConfirmTimeout:  cfg.Ledger.ConfirmTimeout,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("ledger connection failed")
	}
	defer ledger.Close()

	// --- Services ---
	locker := redisdb.NewWalletLocker(rdb, cfg.Ledger.LockTTL)
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	syncService := service.NewRoleSyncService(userRepo, requestRepo, auditRepo, ledger, locker, log)
	reconciler := service.NewReconciler(userRepo, requestRepo, auditRepo, ledger, cfg.Reconcile.Workers, log)

	if cfg.Admin.Wallet != "" {
		if _, err := bootstrap.EnsureDefaultAdmin(ctx, userRepo, cfg.Admin.Wallet, cfg.Admin.Email, cfg.Admin.Password, log); err != nil {
			log.Fatal().Err(err).Msg("default admin bootstrap failed")
		}
	}

	if cfg.Reconcile.Interval > 0 {
		go reconciler.Run(ctx, cfg.Reconcile.Interval)
		log.Info().Dur("interval", cfg.Reconcile.Interval).Msg("periodic reconciliation enabled")
	}

	// --- HTTP server ---
	e := api.NewRouter(api.Deps{
		Auth:       authService,
		Sync:       syncService,
		Reconciler: reconciler,
		Mongo:      db,
		Redis:      rdb,
		Ledger:     ledger,
		JWTSecret:  cfg.JWTSecret,
		Logger:     log,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
}
