package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/ignatzorin/hive-backend/internal/bootstrap"
	"github.com/ignatzorin/hive-backend/internal/config"
	httpHandlers "github.com/ignatzorin/hive-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/hive-backend/internal/http/router"
	"github.com/ignatzorin/hive-backend/internal/identity"
	"github.com/ignatzorin/hive-backend/internal/logger"
	"github.com/ignatzorin/hive-backend/internal/notify"
	"github.com/ignatzorin/hive-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Вебсокеты и очередь уведомлений.
	hub := ws.NewHub(ctx)
	go hub.Run()

	dispatcher := notify.NewDispatcher(cfg.NotifyBuffer, cfg.NotifyWorkers, notify.LogSink{}, ws.NewSink(hub))
	dispatcher.Start(ctx)
	defer dispatcher.Close()

	// Хранилище, миграции и сервисы.
	engine, err := bootstrap.Open(ctx, cfg, bootstrap.Options{Notifier: dispatcher, Migrate: true})
	if err != nil {
		log.Fatalf("main: ошибка сборки движка: %v", err)
	}
	defer engine.Close()
	svc := engine.Services

	tokenManager := identity.NewTokenManager(cfg.JWTSecret, 24*time.Hour)

	var rateLimitStore limiter.Store
	if engine.Redis != nil {
		rateLimitStore, err = limiterredis.NewStoreWithOptions(engine.Redis, limiter.StoreOptions{Prefix: "hive:http"})
		if err != nil {
			log.Fatalf("main: не удалось создать redis store для лимитера: %v", err)
		}
	}

	// HTTP хэндлеры.
	handlers := httpRouter.Handlers{
		Health:       httpHandlers.NewHealthHandler(engine.DB, cfg.StorageDriver),
		Gigs:         httpHandlers.NewGigHandler(svc.Gigs),
		Bids:         httpHandlers.NewBidHandler(svc.Bids),
		Deliverables: httpHandlers.NewDeliverableHandler(svc.Deliverables),
		Escrow:       httpHandlers.NewEscrowHandler(svc.Escrow, cfg.PaymentWebhookSecret),
		Disputes:     httpHandlers.NewDisputeHandler(svc.Disputes),
		Stats:        httpHandlers.NewStatsHandler(svc.Reputation, svc.AutoApproval),
		WS:           httpHandlers.NewWSHandler(hub, tokenManager),
	}

	// Роутер.
	router := httpRouter.SetupRouter(cfg, handlers, tokenManager, rateLimitStore)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Таймер автоподтверждения.
	startSweeper(ctx, svc.AutoApproval, cfg.SweepInterval)

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	logger.Log.WithField("port", cfg.HTTPPort).Info("HTTP сервер запущен")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}
