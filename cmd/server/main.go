package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/study-room-reservation/internal/config"
	"github.com/iliyamo/study-room-reservation/internal/database"
	"github.com/iliyamo/study-room-reservation/internal/handler"
	"github.com/iliyamo/study-room-reservation/internal/logger"
	"github.com/iliyamo/study-room-reservation/internal/middleware"
	"github.com/iliyamo/study-room-reservation/internal/queue"
	"github.com/iliyamo/study-room-reservation/internal/repository"
	"github.com/iliyamo/study-room-reservation/internal/repository/memory"
	"github.com/iliyamo/study-room-reservation/internal/reservation"
	"github.com/iliyamo/study-room-reservation/internal/router"
	queue_publisher "github.com/iliyamo/study-room-reservation/internal/service"
	"github.com/iliyamo/study-room-reservation/internal/worker"
)

func main() {
	cfg := config.Load()

	zl, err := logger.New(logger.Config{Env: cfg.Env, ServiceName: "study-room-reservation"})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		zl.Warn("redis unavailable; using local seat locks, no catalog cache, no rate limiting")
	} else {
		defer rdb.Close()
	}

	deps, db, err := buildStores(cfg, rdb, zl)
	if err != nil {
		zl.Fatal("init stores", zap.Error(err))
	}
	if db != nil {
		defer db.Close()
	}

	if cfg.Events.Enabled {
		deps.Events = queue_publisher.NewPublisher(cfg.Events.URL, zl)
		if cfg.Events.Consumer {
			events := queue.NewEventLog(cfg.Events.LogDir)
			go func() {
				if err := queue.StartReservationConsumer(ctx, cfg.Events.URL, events, zl); err != nil && !errors.Is(err, context.Canceled) {
					zl.Error("event consumer stopped", zap.Error(err))
				}
			}()
		}
	}

	svc := reservation.NewService(deps, cfg.Policy, zl.Named("reservation"))

	var sweeper *worker.SweepWorker
	if cfg.SweepInterval > 0 {
		sweeper = worker.NewSweepWorker(svc.Monitor(), &worker.SweepWorkerConfig{Interval: cfg.SweepInterval}, zl)
		if err := sweeper.Start(ctx); err != nil {
			zl.Fatal("start sweep worker", zap.Error(err))
		}
	}

	health := &handler.HealthHandler{}
	if db != nil {
		health.DB = db
	}
	if rdb != nil {
		health.Redis = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	if sweeper != nil {
		health.Stats = func() any { return sweeper.GetStats() }
	}

	e := router.New(zl)
	router.RegisterRoutes(e, health)
	router.RegisterStudent(e, handler.NewStudentHandler(svc), cfg.JWTSecret, middleware.NewTokenBucket(cfg.RateLimit, rdb, zl.Named("ratelimit")))
	router.RegisterAdmin(e, handler.NewAdminHandler(svc), cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	if sweeper != nil {
		sweeper.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("http shutdown", zap.Error(err))
	}
}

// buildStores wires the configured store and lock drivers. db is nil for
// the memory driver.
func buildStores(cfg config.Config, rdb *redis.Client, zl *zap.Logger) (reservation.Deps, *sql.DB, error) {
	var (
		deps    reservation.Deps
		catalog repository.SeatSource
		db      *sql.DB
	)
	switch cfg.StoreDriver {
	case config.StoreMemory:
		st := memory.New(cfg.SeatLockWait)
		memory.SeedDemo(st, "08:00", "22:00")
		deps = reservation.Deps{Reservations: st, Violations: st, Credits: st, Users: st, Locks: st.Locks()}
		catalog = st
		zl.Warn("using in-memory store with demo data; nothing is persisted")
	default:
		var err error
		db, err = database.Open(database.Options{
			User: cfg.DB.User, Pass: cfg.DB.Pass, Host: cfg.DB.Host, Port: cfg.DB.Port, Name: cfg.DB.Name,
			MaxOpen: cfg.DB.MaxOpen, MaxIdle: cfg.DB.MaxIdle, Lifetime: cfg.DB.Lifetime,
		})
		if err != nil {
			return deps, nil, err
		}
		if cfg.AutoMigrate {
			if err := database.Migrate(db); err != nil {
				_ = db.Close()
				return deps, nil, err
			}
		}
		deps = reservation.Deps{
			Reservations: repository.NewReservationRepo(db),
			Violations:   repository.NewViolationRepo(db),
			Credits:      repository.NewCreditRepo(db),
			Users:        repository.NewUserRepo(db),
			Locks:        repository.NewLocalSeatLocks(cfg.SeatLockWait),
		}
		catalog = repository.NewSeatRepo(db)
	}

	if rdb != nil && cfg.SeatLockDriver == config.LockRedis {
		deps.Locks = repository.NewRedisSeatLocks(rdb, cfg.Redis.Prefix, cfg.SeatLockTTL, cfg.SeatLockWait)
	}
	if rdb != nil && cfg.CatalogCache.Enabled {
		deps.Catalog = repository.NewCachedCatalog(catalog, rdb, cfg.Redis.Prefix+":"+cfg.CatalogCache.Prefix, cfg.CatalogCache.TTL)
	} else {
		deps.Catalog = catalog
	}
	return deps, db, nil
}
