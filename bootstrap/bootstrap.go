// Package bootstrap wires all dependencies and starts the application.
// Every dependency is constructed here and passed down explicitly - no
// ambient singletons.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpar/usagemeter/adapters/clock"
	"github.com/artpar/usagemeter/adapters/idgen"
	"github.com/artpar/usagemeter/adapters/memory"
	"github.com/artpar/usagemeter/adapters/metrics"
	"github.com/artpar/usagemeter/adapters/remote"
	"github.com/artpar/usagemeter/adapters/sqlite"
	"github.com/artpar/usagemeter/app"
	"github.com/artpar/usagemeter/config"
	"github.com/artpar/usagemeter/ports"
	"github.com/artpar/usagemeter/web"
	"github.com/rs/zerolog"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Holder     *config.Holder
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector
	Accounting *app.AccountingService

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// New creates and initializes the application from an already-loaded
// config holder.
func New(holder *config.Holder) (*App, error) {
	cfg := holder.Get()
	logger := setupLogger(cfg.Logging)

	logger.Info().Msg("initializing usagemeter")

	a := &App{
		Logger: logger,
		Holder: holder,
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	clk := clock.Real{}
	ids := idgen.UUID{}

	store, err := a.initStore(cfg, ids, clk)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	a.Accounting = app.NewAccountingService(app.Deps{
		Store:   store,
		Clock:   clk,
		Limit:   holder.DailyLimit,
		Logger:  logger.With().Str("component", "accounting").Logger(),
		Metrics: a.Metrics,
	})

	verifier := remote.NewIdentityVerifier(remote.NewClient(remote.ClientConfig{
		BaseURL: cfg.Users.URL,
		Timeout: cfg.Users.Timeout,
	}))
	storage := remote.NewStorageStatusClient(remote.NewClient(remote.ClientConfig{
		BaseURL: cfg.Storage.URL,
		Timeout: cfg.Storage.Timeout,
	}))

	handler := web.NewHandler(web.Deps{
		Service:        a.Accounting,
		Verifier:       verifier,
		Storage:        storage,
		Logger:         logger.With().Str("component", "web").Logger(),
		Metrics:        a.Metrics,
		CORSOrigins:    cfg.CORS.AllowedOrigins,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	})

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

func (a *App) initStore(cfg *config.Config, ids ports.IDGenerator, clk ports.Clock) (ports.UsageStore, error) {
	if cfg.Database.Driver == "memory" {
		a.Logger.Warn().Msg("using in-memory store, records will not survive restarts")
		return memory.NewUsageStore(ids, clk), nil
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	a.DB = db
	a.Logger.Info().Str("dsn", cfg.Database.DSN).Msg("database ready")
	return sqlite.NewUsageStore(db, ids, clk), nil
}

// Run starts the HTTP server and the reset sweeper, then blocks until
// shutdown.
func (a *App) Run() error {
	cfg := a.Holder.Get()

	if cfg.Reset.SweepEnabled {
		a.startSweeper(cfg.Reset.SweepInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// startSweeper periodically deletes yesterday's records for all users.
// The sweep is idempotent, so the interval only bounds staleness.
func (a *App) startSweeper(interval time.Duration) {
	a.sweepStop = make(chan struct{})
	a.sweepDone = make(chan struct{})

	go func() {
		defer close(a.sweepDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if err := a.Accounting.SweepYesterday(ctx); err != nil {
					a.Logger.Error().Err(err).Msg("reset sweep failed")
				}
				cancel()
			case <-a.sweepStop:
				return
			}
		}
	}()

	a.Logger.Info().Dur("interval", interval).Msg("reset sweeper started")
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	if a.sweepStop != nil {
		close(a.sweepStop)
		<-a.sweepDone
		a.sweepStop = nil
	}

	if a.HTTPServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown")
		}
	}

	if a.Holder != nil {
		a.Holder.Close()
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
