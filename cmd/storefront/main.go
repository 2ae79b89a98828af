package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/grocery_storefront/internal/backend"
	"github.com/Skotchmaster/grocery_storefront/internal/catalog"
	"github.com/Skotchmaster/grocery_storefront/internal/checkout"
	"github.com/Skotchmaster/grocery_storefront/internal/config"
	"github.com/Skotchmaster/grocery_storefront/internal/httpserver"
	"github.com/Skotchmaster/grocery_storefront/internal/ledger"
	"github.com/Skotchmaster/grocery_storefront/internal/lifecycle"
	"github.com/Skotchmaster/grocery_storefront/internal/logging"
	"github.com/Skotchmaster/grocery_storefront/internal/metrics"
	"github.com/Skotchmaster/grocery_storefront/internal/middleware/csrf"
	"github.com/Skotchmaster/grocery_storefront/internal/mykafka"
	"github.com/Skotchmaster/grocery_storefront/internal/orderlock"
	"github.com/Skotchmaster/grocery_storefront/internal/poller"
	"github.com/Skotchmaster/grocery_storefront/internal/search"
	"github.com/Skotchmaster/grocery_storefront/internal/session"
	"github.com/Skotchmaster/grocery_storefront/internal/telemetry"
)

const serviceVersion = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	appCtx, stopApp := context.WithCancel(logging.IntoContext(context.Background(), logger))
	defer stopApp()

	shutdownTracing, err := telemetry.InitTracerProvider(appCtx, cfg.OTelEndpoint, "storefront", serviceVersion)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}

	ctx, cancel := context.WithTimeout(appCtx, 10*time.Second)
	db, err := ledger.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	book := &ledger.GormRepo{DB: db}

	var publisher mykafka.Publisher = mykafka.Discard{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = mykafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info("kafka_enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	m := metrics.New()
	api := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	cat := catalog.NewService(api)

	orders := &lifecycle.Service{API: api, Book: book, Publisher: publisher, Metrics: m}
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(appCtx).Err(); err != nil {
			logger.Warn("redis_unavailable", "addr", cfg.RedisAddr, "error", err)
		}
		orders.Lock = orderlock.NewRedis(rdb, orderlock.TTLFor(cfg.BackendTimeout))
		logger.Info("order_lock_enabled", "addr", cfg.RedisAddr)
	}

	submit := &checkout.Service{
		API:       api,
		Book:      book,
		Publisher: publisher,
		Metrics:   m,
		Window:    cfg.ReservationWindow,
	}

	registry := session.NewRegistry(cfg.SessionIdleTTL, m)
	janitor := registry.RunJanitor(appCtx, time.Minute)

	var index search.Index = &search.Scan{Catalog: cat}
	var indexSync *poller.Poller
	if cfg.ESURL != "" {
		esCtx, esCancel := context.WithTimeout(appCtx, 10*time.Second)
		client, err := search.NewClient(esCtx, cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		esCancel()
		if err != nil {
			log.Fatalf("elasticsearch: %v", err)
		}
		elastic := &search.Elastic{Client: client, Index: cfg.ESIndex}
		index = elastic
		indexSync = search.RunSync(appCtx, elastic, cat, cfg.SearchSyncInterval)
		logger.Info("search_enabled", "index", cfg.ESIndex)
	}

	deps := &httpserver.Deps{
		ProductHandler: &httpserver.ProductHTTP{Svc: cat, Search: index},
		BasketHandler:  &httpserver.BasketHTTP{Catalog: cat, Checkout: submit},
		OrderHandler: &httpserver.OrderHTTP{
			Orders:          orders,
			Catalog:         cat,
			RefreshInterval: cfg.OrderRefreshInterval,
		},
		Sessions: &session.Manager{
			Secret:   cfg.SessionSecret,
			TTL:      cfg.SessionIdleTTL,
			Secure:   cfg.SessionCookieSecure,
			Registry: registry,
		},
		Metrics:     m,
		Logger:      logger,
		AdminSecret: cfg.AdminSecret,
		Ready: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if cfg.CSRFEnabled {
		csrfCfg := csrf.DefaultConfig()
		csrfCfg.Secure = cfg.SessionCookieSecure
		deps.CSRF = &csrfCfg
	}

	e := httpserver.NewEcho()
	httpserver.Register(e, deps)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           telemetry.Handler(e, "storefront"),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
		// request contexts derive from appCtx so open order streams end on shutdown
		BaseContext: func(net.Listener) context.Context { return appCtx },
	}

	go func() {
		logger.Info("storefront_listening", "addr", srv.Addr, "backend", cfg.BackendURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	stopApp()
	janitor.Stop()
	if indexSync != nil {
		indexSync.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown_error", "error", err)
	}

	if err := publisher.Close(); err != nil {
		logger.Warn("kafka_close_error", "error", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing_shutdown_error", "error", err)
	}

	logger.Info("storefront_stopped")
}
