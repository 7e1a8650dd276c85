package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/checkin-go/internal/config"
	"github.com/kirinyoku/checkin-go/internal/hub"
	"github.com/kirinyoku/checkin-go/internal/postgres"
	"github.com/kirinyoku/checkin-go/internal/queue"
	"github.com/kirinyoku/checkin-go/internal/redis"
	"github.com/kirinyoku/checkin-go/internal/repository/memory"
	postgresrepo "github.com/kirinyoku/checkin-go/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/checkin-go/internal/repository/redis"
	"github.com/kirinyoku/checkin-go/internal/service"
	"github.com/kirinyoku/checkin-go/internal/service/checkin"
	"github.com/kirinyoku/checkin-go/internal/service/flights"
	httpgin "github.com/kirinyoku/checkin-go/internal/transport/http/gin"
)

type Options struct {
	// SeedDemo loads the demo flights into the memory ledger.
	SeedDemo bool
}

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	services   *service.Services
	feed       *redisrepo.FlightStatusPubSub

	closers []func()
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	ledger, err := a.openLedger(ctx, opts)
	if err != nil {
		a.close()
		return nil, err
	}

	var (
		cache   *redisrepo.Cache
		limiter *redisrepo.SlidingWindowLimiter
		idem    *redisrepo.IdempotencyStore
	)

	if cfg.Redis.Enabled {
		rdb, err := redis.New(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })

		cache = redisrepo.New(rdb)
		a.feed = redisrepo.NewFlightStatusPubSub(rdb)
		limiter = redisrepo.NewSlidingWindowLimiter(rdb, "checkin", cfg.CheckIn.RateLimit, cfg.CheckIn.RateWindow)
		idem = redisrepo.NewIdempotencyStore(rdb, cfg.CheckIn.IdempotencyTTL)
	} else {
		logger.Warn("redis disabled: no flight cache, rate limit, idempotency or cross-instance status feed")
	}

	var notifier checkin.Notifier
	if cfg.RabbitMQ.URL != "" {
		pub := queue.NewPublisher(cfg.RabbitMQ.URL, logger)
		if err := pub.Connect(); err != nil {
			// The publisher redials on the next message.
			logger.Warn("rabbitmq unavailable at startup", slog.Any("error", err))
		}
		a.closers = append(a.closers, func() { _ = pub.Close() })
		notifier = pub
	}

	h := hub.New(logger, cfg.Hub.ConnBuffer)

	a.services = service.NewServices(ledger, h, cache, a.feed, notifier, logger, service.Config{
		Flights: flights.Config{SummaryTTL: cfg.CheckIn.FlightCacheTTL},
	})

	router := httpgin.NewRouter(a.services, h, idem, limiter, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

func (a *App) openLedger(ctx context.Context, opts Options) (service.Ledger, error) {
	switch a.cfg.Ledger {
	case config.LedgerMemory:
		l := memory.NewLedger()
		if opts.SeedDemo {
			if err := memory.Seed(ctx, l, time.Now()); err != nil {
				return nil, fmt.Errorf("failed to seed memory ledger: %w", err)
			}
		}
		a.logger.Info("using in-memory ledger", slog.Bool("seeded", opts.SeedDemo))
		return l, nil
	default:
		pool, err := postgres.New(ctx, postgres.Config{DSN: a.cfg.Postgres.DSN(), AppName: "checkin"})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		return postgresrepo.NewLedger(postgresrepo.NewStore(pool)), nil
	}
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	// Shutdown does not cancel in-flight requests; event streams end with
	// this context instead.
	a.httpServer.BaseContext = func(net.Listener) context.Context { return gCtx }

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Relay status changes published by any instance into the local hub
	if a.feed != nil {
		g.Go(func() error {
			err := a.feed.Subscribe(gCtx, nil, a.services.Flights.RelayStatus)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, goredis.ErrClosed) {
				return fmt.Errorf("flight status relay: %w", err)
			}
			return nil
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := a.httpServer.Shutdown(ctx)

		// Confirmations still in flight need the broker open.
		a.services.CheckIn.Wait()

		return err
	})

	return g.Wait()
}
