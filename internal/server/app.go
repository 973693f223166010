// Package server wires the auth service together: storage, token store,
// audit delivery, rate limiting and the HTTP and gRPC transports. It also
// handles signals and graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/taskboard/internal/clock"
	"github.com/dmitrijs2005/taskboard/internal/dbx"
	"github.com/dmitrijs2005/taskboard/internal/logging"
	"github.com/dmitrijs2005/taskboard/internal/randx"
	"github.com/dmitrijs2005/taskboard/internal/server/audit"
	"github.com/dmitrijs2005/taskboard/internal/server/auth"
	"github.com/dmitrijs2005/taskboard/internal/server/config"
	"github.com/dmitrijs2005/taskboard/internal/server/httpapi"
	"github.com/dmitrijs2005/taskboard/internal/server/ratelimit"
	"github.com/dmitrijs2005/taskboard/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskboard/internal/server/services"
	"github.com/dmitrijs2005/taskboard/internal/server/tokenstore"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/taskboard/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger

	db      *sql.DB
	rdb     *redis.Client
	audit   *audit.Dispatcher
	amqp    *audit.AMQPSink
	service *services.AuthService

	http *httpapi.Server
	grpc *gs.GRPCServer
}

// NewApp opens every backing resource named by c. On error, whatever was
// already opened is closed again.
func NewApp(ctx context.Context, c *config.Config) (_ *App, err error) {
	logger := logging.New(os.Stdout, c.LogFormat, c.LogLevel)
	app := &App{config: c, logger: logger.With("module", "app")}

	defer func() {
		if err != nil {
			app.closeResources(context.Background())
		}
	}()

	dialect, err := dbx.ParseDialect(c.DatabaseDriver)
	if err != nil {
		return nil, err
	}
	rm, err := repomanager.NewRepositoryManager(string(dialect))
	if err != nil {
		return nil, err
	}

	app.db, err = repomanager.Open(ctx, dialect, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err = rm.RunMigrations(ctx, app.db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	if c.TokenStore == config.TokenStoreRedis || c.RateLimitPerMinute > 0 {
		app.rdb = redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB})
		if err = app.rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}

	var store tokenstore.RefreshTokenStore = tokenstore.NewSQLStore(app.db, rm)
	if c.TokenStore == config.TokenStoreRedis {
		store = tokenstore.NewRedisStore(app.rdb)
	}

	var sink audit.Sink = audit.NewLogSink(logger)
	if c.AMQPURL != "" {
		app.amqp, err = audit.DialAMQP(c.AMQPURL, c.AuditQueue)
		if err != nil {
			return nil, err
		}
		sink = app.amqp
	}
	app.audit = audit.NewDispatcher(sink, logger, audit.DefaultBuffer)

	key, err := c.SigningKeyBytes()
	if err != nil {
		return nil, err
	}
	clk := clock.System()
	rnd := randx.Reader()

	hasher, err := auth.NewPasswordHasher(auth.DefaultArgon2Params, rnd)
	if err != nil {
		return nil, err
	}
	issuer, err := auth.NewTokenIssuer(auth.TokenOptions{
		SigningKey:      key,
		Issuer:          c.Issuer,
		Audience:        c.Audience,
		AccessTokenTTL:  c.AccessTokenTTL(),
		RefreshTokenTTL: c.RefreshTokenTTL(),
	}, clk, rnd)
	if err != nil {
		return nil, err
	}

	app.service, err = services.NewAuthService(services.AuthDeps{
		DB:     app.db,
		Repos:  rm,
		Tokens: store,
		Hasher: hasher,
		Issuer: issuer,
		Clock:  clk,
		Audit:  app.audit,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	opts := httpapi.Options{Health: app.health}
	if c.RateLimitPerMinute > 0 {
		opts.RateLimit = ratelimit.New(app.rdb, c.RateLimitPerMinute, clk, logger).Middleware()
	}
	app.http = httpapi.NewServer(app.service, logger, opts)
	app.grpc = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, app.service)

	return app, nil
}

func (app *App) health(ctx context.Context) error {
	if err := app.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if app.rdb != nil {
		if err := app.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Run serves both transports until SIGINT/SIGTERM/SIGQUIT, ctx is done or
// one of them fails, then shuts down within ShutdownTimeout.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		runErr  error
	)
	fail := func(err error) {
		errOnce.Do(func() { runErr = err })
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := app.http.Start(app.config.EndpointAddrHTTP); err != nil {
			fail(fmt.Errorf("http server: %w", err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := app.grpc.Run(ctx); err != nil {
			fail(fmt.Errorf("grpc server: %w", err))
		}
	}()

	<-ctx.Done()
	app.logger.Info(context.Background(), "Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()

	if err := app.http.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "http shutdown", "error", err)
	}
	wg.Wait()

	app.closeResources(shutdownCtx)
	return runErr
}

// closeResources releases whatever NewApp managed to open.
func (app *App) closeResources(ctx context.Context) {
	var errs []error
	if app.audit != nil {
		errs = append(errs, app.audit.Close(ctx))
	}
	if app.amqp != nil {
		errs = append(errs, app.amqp.Close())
	}
	if app.rdb != nil {
		errs = append(errs, app.rdb.Close())
	}
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		app.logger.Error(ctx, "closing resources", "error", err)
	}
}
