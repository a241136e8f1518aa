package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pod-kiosk/internal/config"
	"github.com/iliyamo/pod-kiosk/internal/database"
	"github.com/iliyamo/pod-kiosk/internal/flow"
	"github.com/iliyamo/pod-kiosk/internal/handler"
	"github.com/iliyamo/pod-kiosk/internal/logger"
	"github.com/iliyamo/pod-kiosk/internal/middleware"
	"github.com/iliyamo/pod-kiosk/internal/order"
	"github.com/iliyamo/pod-kiosk/internal/payment"
	"github.com/iliyamo/pod-kiosk/internal/queue"
	"github.com/iliyamo/pod-kiosk/internal/repository"
	"github.com/iliyamo/pod-kiosk/internal/router"
	"github.com/iliyamo/pod-kiosk/internal/service"
	"github.com/iliyamo/pod-kiosk/internal/session"
)

func main() {
	log := logger.NewLogger("pod-kiosk")
	if err := run(log); err != nil {
		log.Error("startup", "", "server stopped", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	clock := clockwork.NewRealClock()

	db, err := database.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn("startup", "", "redis unreachable; menu cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pods := repository.NewPodRepo(db)
	orders := repository.NewOrderRepo(db, clock)
	menus := repository.NewMenuRepo(db, cfg.LocationID)
	devices := repository.NewDeviceRepo(db)

	submitter := order.NewSubmitter(orders, cfg.LocationID, cfg.TaxRate, log)
	payments := payment.NewCoordinator(payment.Config{
		Gateway:        payment.NewHTTPGateway(cfg.PaymentGatewayURL, cfg.PaymentGatewayKey, &http.Client{Timeout: 20 * time.Second}),
		Orders:         orders,
		Seats:          pods,
		Notifier:       service.NewHandoffPublisher(cfg.RabbitMQURL, log),
		Clock:          clock,
		Currency:       cfg.Currency,
		ReservationTTL: cfg.PodReservationTTL,
		Log:            log,
	})
	sessions := session.NewStore(cfg.LocationID, menus, func(string) flow.Deps {
		return flow.Deps{
			Orders:       submitter,
			Seats:        pods,
			Payments:     payments,
			Clock:        clock,
			PollInterval: cfg.PodPollInterval,
			Log:          log,
		}
	}, log)
	defer sessions.CloseAll()

	sweeper := service.NewReservationSweeper(pods, clock, log)
	if err := sweeper.Start(cfg.ReservationSweepSpec); err != nil {
		return err
	}
	defer sweeper.Stop()

	if cfg.HandoffAuditLog {
		audit := queue.NewAuditConsumer(cfg.RabbitMQURL, queue.DefaultAuditPath, log)
		go func() {
			if err := audit.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("handoff_audit", "", "audit consumer stopped", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	limit := middleware.RateLimit(cfg.RateLimit, rdb, clock)
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, devices, clock, log), limit)
	router.RegisterKiosk(e,
		handler.NewKioskHandler(sessions, menus, cfg.Currency, cfg.DefaultLocale),
		router.KioskAuth{JWTSecret: cfg.JWTSecret, LocationID: cfg.LocationID, Clock: clock},
		middleware.MenuCache(cfg.Cache, rdb),
		limit,
	)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("startup", "", "listening on "+addr+" (env="+cfg.Env+")")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutdown", "", "draining requests")
	return e.Shutdown(shutdownCtx)
}
