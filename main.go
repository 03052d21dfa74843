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

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-ordering/cart"
	"github.com/yeremiapane/restaurant-ordering/config"
	"github.com/yeremiapane/restaurant-ordering/hub"
	"github.com/yeremiapane/restaurant-ordering/kvstore"
	"github.com/yeremiapane/restaurant-ordering/router"
	"github.com/yeremiapane/restaurant-ordering/services"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	utils.InitLogger(cfg.LogLevel)
	utils.SetJWTConfig(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if cfg.Auth.JWTSecret == "" {
		utils.ErrorLogger.Warn("JWT_SECRET is not set, using the development secret")
	}
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDB(cfg.DB)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := config.AutoMigrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}

	auth := services.NewAuthService(db)
	if err := auth.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		utils.ErrorLogger.Fatalf("Failed to create admin account: %v", err)
	}

	var kv kvstore.Store = kvstore.NewMemoryStore()
	if cfg.Redis.Enabled() {
		rdb, err := config.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			utils.ErrorLogger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
		kv = kvstore.NewRedisStore(rdb, cfg.Redis.Prefix, cfg.Redis.CartTTL)
	} else {
		utils.InfoLogger.Info("REDIS_HOST not set, carts are kept in memory")
	}

	events := hub.New(kv, utils.InfoLogger)
	defer events.Close()

	notifier := services.NewNotificationService(db, events)
	menu := services.NewMenuService(db)
	carts := cart.NewStore(kv, menu, "server")
	tables := services.NewTableService(db, carts)
	orders := services.NewOrderService(db, carts, menu, tables, notifier, events)
	verifier := services.NewPaymentVerifier(db, notifier, events)

	proofStorage, err := services.NewLocalProofStorage(cfg.UploadDir, cfg.PublicBaseURL)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to prepare upload directory: %v", err)
	}

	deps := router.Services{
		Tables:        tables,
		Menu:          menu,
		Carts:         carts,
		Orders:        orders,
		Verifier:      verifier,
		Reconciler:    services.NewTransferReconciler(db, verifier),
		Proofs:        services.NewProofService(db, proofStorage, notifier, events),
		Notifications: notifier,
		Cash:          services.NewCashReconciliationService(db, cfg.Payment.CashVariance, notifier, events),
		Receipts:      services.NewReceiptService(db, cfg.RestaurantName),
		Auth:          auth,
		Hub:           events,
	}

	var qris services.QRISProvider = services.StaticQRIS{Payload: cfg.Payment.QRISStaticPayload}
	if cfg.Payment.QRISProvider == "midtrans" {
		midtrans := services.NewMidtransService(&services.MidtransConfig{
			ServerKey:    cfg.Midtrans.ServerKey,
			ClientKey:    cfg.Midtrans.ClientKey,
			IsProduction: cfg.Midtrans.Environment == "production",
		})
		if err := midtrans.ValidateConfig(); err != nil {
			utils.ErrorLogger.Fatalf("Invalid Midtrans configuration: %v", err)
		}
		qris = midtrans
		deps.Midtrans = midtrans
		deps.Watcher = services.NewMidtransWatcher(db, midtrans, verifier)
	}

	deps.Payments = services.NewPaymentService(db, services.PaymentConfig{
		QRISExpiry:     cfg.Payment.QRISExpiry,
		TransferExpiry: cfg.Payment.TransferExpiry,
		CashExpiry:     cfg.Payment.CashExpiry,
		BankAccounts:   cfg.Payment.BankAccounts,
	}, qris, events)

	if deps.Watcher != nil {
		deps.Payments.OnGatewayCharge = deps.Watcher.Watch
		if err := deps.Watcher.Resume(ctx); err != nil {
			utils.ErrorLogger.Errorf("Error resuming Midtrans watchers: %v", err)
		}
		defer deps.Watcher.Stop()
	}

	expiry := services.NewExpiryMonitor(db, events, cfg.Payment.ExpiryCheckEvery)
	expiry.Start()
	defer expiry.Stop()

	r, err := router.SetupRouter(deps, router.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		RateLimit:     cfg.RateLimit,
		UploadDir:     cfg.UploadDir,
	})
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to set up router: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.InfoLogger.Infof("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	utils.InfoLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.Errorf("Graceful shutdown failed: %v", err)
	}
}
