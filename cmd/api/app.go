package main

import (
	"context"
	"fmt"

	"storefront-orders/internal/core/cache"
	"storefront-orders/internal/core/config"
	"storefront-orders/internal/core/database"
	"storefront-orders/internal/core/httpclient"
	"storefront-orders/internal/core/logger"
	invadapter "storefront-orders/internal/features/inventory/adapters"
	invports "storefront-orders/internal/features/inventory/ports"
	invservice "storefront-orders/internal/features/inventory/service"
	notifyadapter "storefront-orders/internal/features/notifications/adapters"
	notifyservice "storefront-orders/internal/features/notifications/service"
	orderadapter "storefront-orders/internal/features/orders/adapters"
	orderservice "storefront-orders/internal/features/orders/service"
	payadapter "storefront-orders/internal/features/payments/adapters"
	payservice "storefront-orders/internal/features/payments/service"

	"go.uber.org/zap"
)

var configPath string

// application holds the wired dependencies shared by every command.
type application struct {
	cfg        *config.AppConfig
	db         *database.DB
	cache      *cache.RedisAdapter
	ledger     *invservice.Ledger
	orders     *orderservice.OrderService
	reconciler *payservice.ReconciliationService
}

// loadConfig reads configuration and initializes the global logger.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	logger.Get().Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
	)
	return cfg, nil
}

func newApplication(ctx context.Context, cfg *config.AppConfig) (*application, error) {
	db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, err
	}

	redis, err := cache.NewRedisAdapter(cfg.Redis.URL)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := redis.Ping(ctx); err != nil {
		// Claims and the send gate degrade gracefully, so a missing Redis is not fatal.
		logger.Get().Warn("Redis not reachable at startup", zap.Error(err))
	}

	var productCache invports.ProductCache
	if ttl := cfg.Inventory.StockCacheTTL; ttl > 0 {
		productCache = invadapter.NewRedisProductCache(redis, ttl)
	}
	ledger := invservice.NewLedger(invadapter.NewPostgresProductRepository(db), productCache)
	orderRepo := orderadapter.NewPostgresOrderRepository(db)

	emailProvider, err := notifyadapter.NewResendAdapter(cfg.Email, httpclient.NewClient("resend", httpTimeout))
	if err != nil {
		db.Close()
		redis.Close()
		return nil, err
	}
	dispatcher, err := notifyservice.NewDispatcher(
		emailProvider,
		notifyadapter.NewRedisSendGate(redis, cfg.Email.MinSpacing),
		notifyservice.Settings{
			StoreName:       cfg.StoreName,
			MerchantAddress: cfg.Email.MerchantAddress,
			CurrencySymbol:  cfg.Email.CurrencySymbol,
			MinSpacing:      cfg.Email.MinSpacing,
		},
	)
	if err != nil {
		db.Close()
		redis.Close()
		return nil, err
	}

	reconciler := payservice.NewReconciliationService(
		payadapter.NewStripeGateway(cfg.Stripe, httpclient.NewClient("stripe", httpTimeout)),
		payadapter.NewRedisEventClaims(redis, cfg.Reconciliation.EventClaimTTL),
		payadapter.NewPostgresEventStore(db),
		orderRepo,
		ledger,
		db,
		dispatcher,
		payservice.OptionsFromConfig(cfg.Reconciliation),
	)

	orders := orderservice.NewOrderService(orderRepo, ledger, db, dispatcher, reconciler, cfg.Delivery.LocalZones)

	return &application{
		cfg:        cfg,
		db:         db,
		cache:      redis,
		ledger:     ledger,
		orders:     orders,
		reconciler: reconciler,
	}, nil
}

func (a *application) Close() {
	if err := a.cache.Close(); err != nil {
		logger.Get().Warn("Closing Redis failed", zap.Error(err))
	}
	a.db.Close()
}
