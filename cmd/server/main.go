package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/cinema-seat-inventory/internal/config"
	"github.com/iliyamo/cinema-seat-inventory/internal/database"
	"github.com/iliyamo/cinema-seat-inventory/internal/handler"
	"github.com/iliyamo/cinema-seat-inventory/internal/inventory"
	"github.com/iliyamo/cinema-seat-inventory/internal/logger"
	"github.com/iliyamo/cinema-seat-inventory/internal/metrics"
	"github.com/iliyamo/cinema-seat-inventory/internal/middleware"
	"github.com/iliyamo/cinema-seat-inventory/internal/queue"
	"github.com/iliyamo/cinema-seat-inventory/internal/repository"
	"github.com/iliyamo/cinema-seat-inventory/internal/router"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	store := repository.NewStore(db)
	m := metrics.New()

	deps := inventory.Deps{
		Persister: store,
		Logger:    log,
		Metrics:   m,
	}
	var publisher *queue.Publisher
	if cfg.Events.Enabled {
		publisher = queue.NewPublisher(cfg.Events.URL, cfg.Events.Buffer, log, m)
		deps.Events = publisher
	}
	svc := inventory.New(cfg.Inventory(), deps)
	if err := svc.Recover(ctx, store); err != nil {
		return err
	}

	// A nil *redis.Client must not become a non-nil Scripter.
	var limiter redis.Scripter
	if rdb := config.NewRedisClient(ctx, cfg.Redis); rdb != nil {
		defer rdb.Close()
		limiter = rdb
	} else if cfg.RateLimit.Enabled {
		log.Warn("redis unreachable, hold rate limiting disabled", "addr", cfg.Redis.Addr)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover(log))
	e.Use(logger.EchoMiddleware(log))

	screenings := handler.NewScreeningHandler(svc, log)
	holds := handler.NewHoldHandler(svc.Holds, svc.Bookings, log)
	admin := handler.NewAdminHandler(svc.Admin, log)
	bookings := handler.NewBookingHandler(svc.Bookings, log)

	router.RegisterRoutes(e, store.DB(), m.Handler())
	router.RegisterBuyer(e, screenings, holds, bookings, middleware.NewTokenBucket(cfg.RateLimit, limiter, log))
	router.RegisterAdmin(e, screenings, admin, bookings, cfg.JWTSecret)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", ":"+cfg.Port, "env", cfg.Env)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return svc.Sweeper.Run(gctx) })
	if publisher != nil {
		g.Go(func() error { return publisher.Run(gctx) })
	}
	if cfg.Events.ConsumerEnabled {
		consumer := queue.NewBookingLogConsumer(cfg.Events.URL, cfg.Events.BookingLogPath, log)
		g.Go(func() error { return consumer.Run(gctx) })
	}

	err = g.Wait()
	log.Info("shutdown complete")
	return err
}
