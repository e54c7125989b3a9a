package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/pokernight/internal/config"
	"github.com/iliyamo/pokernight/internal/database"
	"github.com/iliyamo/pokernight/internal/handler"
	"github.com/iliyamo/pokernight/internal/ledger"
	"github.com/iliyamo/pokernight/internal/lock"
	"github.com/iliyamo/pokernight/internal/middleware"
	"github.com/iliyamo/pokernight/internal/queue"
	"github.com/iliyamo/pokernight/internal/repository"
	"github.com/iliyamo/pokernight/internal/repository/memrepo"
	"github.com/iliyamo/pokernight/internal/router"
	"github.com/iliyamo/pokernight/internal/service"
	"github.com/iliyamo/pokernight/internal/settlement"
)

func main() {
	cfg := config.Load()

	mode, err := ledger.ParseMode(cfg.Ledger.ChipValueMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	policy, err := settlement.ParsePolicy(cfg.Ledger.SettlementPolicy, settlement.PolicySimple)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, store, users := openStore(cfg)
	if db != nil {
		defer db.Close()
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.Lock.Redis {
		if rdb == nil {
			log.Printf("lock: LOCK_REDIS set but redis is unavailable; using in-process lock")
		} else {
			locker = lock.NewRedisLocker(rdb, cfg.Lock.Prefix, cfg.Lock.TTL, cfg.Lock.Wait)
		}
	}

	var pub service.Publisher = service.NoopPublisher{}
	if cfg.AMQPURL != "" {
		pub = queue.NewPublisher(cfg.AMQPURL)
	}

	// Cached stats are dropped right after a local finish; the consumer
	// covers finishes committed by other instances.
	invalidate := func(ctx context.Context, _ queue.SessionFinishedEvent) error {
		return middleware.InvalidateStats(ctx, rdb, cacheCfg.Prefix)
	}
	sessions := service.NewSessions(store, users, locker, pub, service.Options{
		Mode:        mode,
		Policy:      policy,
		AfterFinish: invalidate,
	})
	statsSvc := service.NewStats(store, users, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AMQPURL != "" {
		go runConsumer(ctx, cfg, invalidate)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Printf("http: %s %s %d %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	router.RegisterRoutes(e, router.Deps{
		DB:        db,
		JWTSecret: cfg.JWTSecret,
		Auth:      handler.NewAuthHandler(cfg, users),
		Sessions:  handler.NewSessionHandler(sessions),
		Stats:     handler.NewStatsHandler(statsSvc),
		RateLimit: middleware.NewRateLimit(config.LoadRateLimitConfig(), rdb),
		Cache:     middleware.NewStatsCache(cacheCfg, rdb),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s store=%s mode=%s policy=%s)", addr, cfg.Env, cfg.StoreDriver, mode, policy)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// openStore connects to MySQL and applies migrations, or builds the
// in-memory store.  db is nil for the latter.
func openStore(cfg config.Config) (*sql.DB, service.Store, service.UserStore) {
	if cfg.StoreDriver == "memory" {
		log.Printf("store: using in-memory store; data is lost on exit")
		m := memrepo.New()
		return nil, m, m
	}
	db, err := database.Open(database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("db: migrate: %v", err)
	}
	return db, repository.NewSessionRepo(db), repository.NewUserRepo(db)
}

// runConsumer writes the settlement log and drops cached stats whenever
// a session finishes.
func runConsumer(ctx context.Context, cfg config.Config, onFinished func(context.Context, queue.SessionFinishedEvent) error) {
	c := &queue.Consumer{
		URL:        cfg.AMQPURL,
		LogDir:     cfg.LogDir,
		OnFinished: onFinished,
	}
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("settlement-consumer: stopped: %v", err)
	}
}
