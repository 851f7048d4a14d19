package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/event-ticketing/internal/booking"
	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/logging"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/monitoring"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/router"
	"github.com/iliyamo/event-ticketing/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("could not read .env")
	}

	cfg := config.Load()
	logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.Env)
	if err := run(cfg); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
	logrus.Info("shutdown complete")
}

// run serves until SIGINT or SIGTERM.  Deferred cleanup runs before main
// reports the error.
func run(cfg config.Config) error {
	bookingCfg := config.LoadBookingConfig()
	brokerCfg := config.LoadBrokerConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("database connection: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("schema migration: %w", err)
		}
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)

	users := repository.NewUserRepo(db)
	events := repository.NewEventRepo(db)
	tickets := repository.NewTicketRepo(db)
	bookings := repository.NewBookingRepo(db)
	tokens := repository.NewTokenRepo(db)

	opts := []booking.Option{booking.WithObserver(monitoring.NewRecorder())}
	var notifier *service.AMQPNotifier
	if brokerCfg.URL != "" {
		notifier = service.NewAMQPNotifier(brokerCfg, bookings)
		opts = append(opts, booking.WithNotifier(notifier))
	}
	svc := booking.NewService(
		repository.NewStore(db),
		booking.NewSimulator(bookingCfg.ApprovalRate),
		booking.Config{
			MaxPaymentAttempts: bookingCfg.MaxPaymentAttempts,
			ReferenceAttempts:  bookingCfg.ReferenceAttempts,
		},
		opts...,
	)
	// Pending confirmations finish before the broker connection goes away.
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Drain(dctx); err != nil {
			logrus.WithError(err).Warn("confirmation notifications still in flight")
		}
		if notifier != nil {
			_ = notifier.Close()
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CorrelationID())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.Register(e, router.Handlers{
		Health:   handler.NewHealthHandler(db),
		Auth:     handler.NewAuthHandler(cfg, users, tokens),
		Events:   handler.NewEventHandler(events, tickets, cache),
		Tickets:  handler.NewTicketHandler(events, tickets, cache),
		Bookings: handler.NewBookingHandler(svc, bookings),
		Payments: handler.NewPaymentHandler(svc),

		BookingLimit: middleware.NewTokenBucket(config.LoadBookingRateLimitConfig(), rdb),
		Revocations:  tokens,
	}, cache, cfg.JWTSecret)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logrus.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})
	if brokerCfg.URL != "" && brokerCfg.ConsumeEnabled {
		g.Go(func() error { return queue.NewConsumer(brokerCfg).Run(gctx) })
	}
	return g.Wait()
}
