package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-seat-service/internal/actor"
	"github.com/iliyamo/flight-seat-service/internal/config"
	"github.com/iliyamo/flight-seat-service/internal/handler"
	"github.com/iliyamo/flight-seat-service/internal/middleware"
	"github.com/iliyamo/flight-seat-service/internal/queue"
	"github.com/iliyamo/flight-seat-service/internal/router"
	"github.com/iliyamo/flight-seat-service/internal/service"
)

var logger = loggo.GetLogger("flightseats")

func main() {
	if err := run(); err != nil {
		logger.Criticalf("%s", errors.ErrorStack(err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Trace(err)
	}
	if err := loggo.ConfigureLoggers(cfg.LogConfig); err != nil {
		return errors.Annotate(err, "configuring loggers")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return errors.Annotatef(err, "creating data dir %q", cfg.DataDir)
	}
	selfAssign, err := actor.ParseSelfAssignMode(cfg.SelfAssign)
	if err != nil {
		return errors.Trace(err)
	}

	registry, err := actor.NewRegistry(actor.RegistryConfig{
		OpenStore:    actor.FileStoreOpener(cfg.DataDir),
		Clock:        clock.WallClock,
		IdleTimeout:  cfg.ActorIdleTimeout,
		ReapInterval: cfg.ActorReapInterval,
		SelfAssign:   selfAssign,
	})
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		registry.Kill()
		if err := registry.Wait(); err != nil {
			logger.Errorf("stopping flight actors: %v", err)
		}
	}()

	layout, err := service.NewLayoutPolicy(cfg.BootstrapMinSeats, cfg.BootstrapMaxSeats, nil)
	if err != nil {
		return errors.Trace(err)
	}
	var events service.EventPublisher
	if cfg.EventsEnabled {
		events = service.NewQueuePublisher(cfg.RabbitMQURL)
	}
	seats := service.NewSeatService(registry, layout, events, clock.WallClock)

	stop := make(chan struct{})
	defer close(stop)
	if cfg.EventsConsumerEnabled {
		go queue.StartSeatEventConsumer(cfg.RabbitMQURL, stop)
	}

	rl, err := config.LoadRateLimitConfig()
	if err != nil {
		return errors.Trace(err)
	}
	var limiter echo.MiddlewareFunc
	if rl.Enabled {
		redisCfg, err := config.LoadRedisConfig()
		if err != nil {
			return errors.Trace(err)
		}
		if rdb := config.NewRedisClient(redisCfg); rdb != nil {
			defer rdb.Close()
			limiter = middleware.NewTokenBucket(rl, rdb)
		} else {
			logger.Warningf("redis at %s unreachable; rate limiting disabled", redisCfg.Address())
		}
	}
	if cfg.JWTSecret == "" {
		logger.Warningf("JWT_SECRET not set; seat writes are unauthenticated")
	}

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e, router.Deps{
		Flights:   handler.NewFlightHandler(seats),
		LiveCount: registry.Len,
		JWTSecret: cfg.JWTSecret,
		RateLimit: limiter,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	addr := ":" + cfg.Port
	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s (env=%s, data=%s)", addr, cfg.Env, cfg.DataDir)
		serveErr <- e.Start(addr)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return errors.Annotate(err, "serving")
		}
		return nil
	case <-ctx.Done():
	}
	logger.Infof("shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	return errors.Annotate(e.Shutdown(shutdownCtx), "shutting down http server")
}
