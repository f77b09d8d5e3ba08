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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-funnel/internal/booking"
	"github.com/iliyamo/ticket-funnel/internal/config"
	"github.com/iliyamo/ticket-funnel/internal/database"
	"github.com/iliyamo/ticket-funnel/internal/handler"
	"github.com/iliyamo/ticket-funnel/internal/logger"
	"github.com/iliyamo/ticket-funnel/internal/middleware"
	"github.com/iliyamo/ticket-funnel/internal/payment"
	"github.com/iliyamo/ticket-funnel/internal/queue"
	"github.com/iliyamo/ticket-funnel/internal/repository"
	"github.com/iliyamo/ticket-funnel/internal/router"
	"github.com/iliyamo/ticket-funnel/internal/service"
	"github.com/iliyamo/ticket-funnel/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zlog := logger.New(logger.Config{Level: cfg.LogLevel, ServiceName: "ticket-funnel", Development: cfg.Development()})
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Options{
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	rdb := config.NewRedisClient(cfg.Redis, zlog)
	if rdb != nil {
		defer rdb.Close()
	}

	listings := repository.NewListingRepo(db)
	gateway := payment.NewSimulator(cfg.Funnel.PaymentDelay, cfg.Funnel.PaymentDeclineAbove, zlog)
	publisher := service.NewBookingPublisher(cfg.RabbitMQURL, zlog)

	registry := session.NewRegistry(listings, gateway, cfg.Funnel.SessionIdleTTL, zlog,
		booking.WithFeeRate(cfg.Funnel.FeeRate),
		booking.WithBudget(cfg.Funnel.Budget()),
		booking.WithExpiryPolicy(cfg.Funnel.Expiry()),
		booking.WithChargeTimeout(cfg.Funnel.ChargeTimeout),
		booking.WithPublisher(publisher),
	)
	if err := registry.StartSweeper(cfg.Funnel.SessionSweepInterval); err != nil {
		return err
	}
	defer func() { _ = registry.Stop() }()

	consumer := queue.NewConsumer(cfg.RabbitMQURL, "logs", zlog)
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zlog.Error("booking consumer stopped", zap.Error(err))
		}
	}()

	checks := map[string]handler.Check{"mysql": db.PingContext}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(zlog))
	router.Register(e, router.Deps{
		Health:    handler.NewHealthHandler(checks),
		Sessions:  handler.NewSessionHandler(registry, cfg.Funnel.PaymentWait, zlog),
		Listings:  handler.NewListingHandler(listings, zlog),
		JWTSecret: cfg.JWTSecret,
		RateLimit: cfg.RateLimit,
		Cache:     cfg.Cache,
		Redis:     rdb,
		Log:       zlog,
	})

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		zlog.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
