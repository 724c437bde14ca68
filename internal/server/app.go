// Package server assembles the auth server: it opens the database, runs
// migrations, builds the token store and services, and runs the HTTP API,
// the gRPC health endpoint and the retention janitor until a shutdown
// signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/skyhaul/internal/logging"
	"github.com/dmitrijs2005/skyhaul/internal/server/auth"
	"github.com/dmitrijs2005/skyhaul/internal/server/config"
	"github.com/dmitrijs2005/skyhaul/internal/server/events"
	"github.com/dmitrijs2005/skyhaul/internal/server/httpapi"
	"github.com/dmitrijs2005/skyhaul/internal/server/ratelimit"
	"github.com/dmitrijs2005/skyhaul/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/skyhaul/internal/server/retention"
	"github.com/dmitrijs2005/skyhaul/internal/server/services"
	"github.com/dmitrijs2005/skyhaul/internal/server/tokenstore"
	"github.com/dmitrijs2005/skyhaul/internal/timex"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/skyhaul/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	http    *httpapi.Server
	grpc    *gs.GRPCServer
	janitor *retention.Janitor
	closers []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)

	db, rm, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}
	app.closers = append(app.closers, db.Close)

	clock := timex.SystemClock{}
	store := tokenstore.New(db, rm,
		tokenstore.WithClock(clock),
		tokenstore.WithTxOptions(c.TxOptions()),
		tokenstore.WithLogger(logger),
	)

	var publisher events.Publisher = events.NopPublisher{}
	if c.AMQPURL != "" {
		p, err := events.DialAMQP(c.AMQPURL, c.SecurityEventsQueue)
		if err != nil {
			logger.Warn(ctx, "security events disabled", "error", err)
		} else {
			publisher = p
			app.closers = append(app.closers, p.Close)
		}
	}

	var limiter httpapi.RateLimiter
	if c.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn(ctx, "redis unreachable at startup, rate limiting fails open", "error", err)
		}
		limiter = ratelimit.New(rdb, c.RefreshRateLimit, c.RefreshRateWindow)
		app.closers = append(app.closers, rdb.Close)
	}

	access := auth.NewAccessIssuer([]byte(c.SecretKey), c.AccessTokenValidityDuration, clock)
	users := services.NewUserService(db, rm, c, clock)
	as := services.NewAuthService(users, store, access, auth.HeaderFingerprint{}, publisher, c, clock, logger)

	handler := httpapi.NewHandler(as, access, limiter, c.SecureCookies, logger)
	app.http = httpapi.NewServer(c.EndpointAddrHTTP, handler, logger)
	app.grpc = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, db)
	app.janitor = retention.NewJanitor(store, c.RetentionExpiredDays, c.RetentionDeactivatedDays, c.RetentionInterval, logger)

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) runServer(ctx context.Context, cancelFunc context.CancelFunc, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil {
		app.logger.Error(ctx, "server failed", "server", name, "error", err)
		cancelFunc()
	}
}

// Run blocks until a shutdown signal arrives or one of the servers fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.runServer(ctx, cancelFunc, "http", app.http.Run)
	}()
	go func() {
		defer wg.Done()
		app.runServer(ctx, cancelFunc, "grpc", app.grpc.Run)
	}()
	go func() {
		defer wg.Done()
		app.janitor.Run(ctx)
	}()

	wg.Wait()

	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(context.Background(), "error closing resource", "error", err)
		}
	}
	app.logger.Info(context.Background(), "App stopped")
}
