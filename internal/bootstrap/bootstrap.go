// Package bootstrap собирает движок из конфигурации. Общий для cmd/server и cmd/gigctl.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/hive-backend/internal/config"
	"github.com/ignatzorin/hive-backend/internal/db"
	"github.com/ignatzorin/hive-backend/internal/logger"
	"github.com/ignatzorin/hive-backend/internal/payment"
	"github.com/ignatzorin/hive-backend/internal/ratelimit"
	"github.com/ignatzorin/hive-backend/internal/repository"
	"github.com/ignatzorin/hive-backend/internal/repository/memory"
	"github.com/ignatzorin/hive-backend/internal/service"
)

// Engine собранный движок и его ресурсы.
type Engine struct {
	Config   *config.Config
	DB       *sqlx.DB      // nil для хранилища в памяти
	Redis    *redis.Client // nil, если кулдауны не в redis
	Store    repository.Store
	Services *service.Services
}

// Options параметры сборки, не входящие в конфигурацию.
type Options struct {
	Notifier service.Notifier
	// Migrate применяет миграции при подключении к postgres.
	Migrate bool
}

// Open подключает хранилище, лимитер и платёжный шлюз и собирает сервисы.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Engine, error) {
	e := &Engine{Config: cfg}

	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		conn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		e.DB = conn
		if opts.Migrate {
			if _, err := db.RunMigrations(ctx, conn, cfg.MigrationsPath); err != nil {
				e.Close()
				return nil, fmt.Errorf("bootstrap: миграции: %w", err)
			}
		}
		e.Store = repository.NewPostgresStore(conn)
	default:
		e.Store = memory.NewStore()
	}

	limiter, err := e.openLimiter(ctx)
	if err != nil {
		e.Close()
		return nil, err
	}

	e.Services = service.New(service.Deps{
		Store:    e.Store,
		Limiter:  limiter,
		Refunder: refunder(cfg),
		Notifier: opts.Notifier,
		Config: service.Config{
			EngineConfig:           cfg.Engine,
			BidCooldown:            cfg.BidCooldown,
			DisputeMessageCooldown: cfg.DisputeMessageCooldown,
		},
	})

	logger.Log.WithField("storage", cfg.StorageDriver).
		WithField("rate_limit_store", cfg.RateLimitStore).
		Info("engine ready")
	return e, nil
}

func (e *Engine) openLimiter(ctx context.Context) (ratelimit.Limiter, error) {
	switch e.Config.RateLimitStore {
	case config.RateLimitStoreRedis:
		e.Redis = redis.NewClient(&redis.Options{Addr: e.Config.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := e.Redis.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("bootstrap: redis недоступен: %w", err)
		}
		return ratelimit.NewRedisLimiter(e.Redis), nil
	case config.RateLimitStorePostgres:
		if e.DB == nil {
			return nil, fmt.Errorf("bootstrap: RATE_LIMIT_STORE=postgres требует STORAGE_DRIVER=postgres")
		}
		return ratelimit.NewPostgresLimiter(e.DB, time.Now), nil
	default:
		return ratelimit.NewMemoryLimiter(time.Now), nil
	}
}

// refunder без PAYMENT_API_URL в production возвратов нет: движок отвечает EXTERNAL_FAILURE.
func refunder(cfg *config.Config) service.Refunder {
	switch {
	case cfg.PaymentAPIURL != "":
		return payment.NewRefundClient(cfg.PaymentAPIURL, cfg.PaymentAPIKey)
	case cfg.Env != "production":
		return payment.DevRefunder{}
	default:
		return nil
	}
}

// Close освобождает подключения.
func (e *Engine) Close() {
	if e.Redis != nil {
		if err := e.Redis.Close(); err != nil {
			logger.Log.WithError(err).Warn("bootstrap: ошибка закрытия redis")
		}
	}
	if e.DB != nil {
		if err := e.DB.Close(); err != nil {
			logger.Log.WithError(err).Warn("bootstrap: ошибка закрытия базы")
		}
	}
}
