package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradesentry/internal/alerting"
	"tradesentry/internal/clock"
	"tradesentry/internal/config"
	"tradesentry/internal/emitter"
	"tradesentry/internal/evaluator"
	"tradesentry/internal/fetcher"
	"tradesentry/internal/gate"
	"tradesentry/internal/scheduler"
	"tradesentry/internal/service"
	"tradesentry/internal/storage"
	"tradesentry/internal/throttle"
)

// App aggregates configuration and shared dependencies for the CLI
// commands. The startup guard lives here so concurrent Run invocations
// within one process can never launch two coordinator loops.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	guard scheduler.StartupGuard
	clk   clock.Clock
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		clk:    clock.System{},
	}
}

// openStores resolves the snapshot store and event log: Postgres when a
// DSN is configured, in-memory otherwise.
func (a *App) openStores(ctx context.Context) (throttle.SnapshotStore, storage.EventStore, func(), error) {
	if a.Config.Database.DSN == "" {
		a.Logger.Warn().Msg("database.dsn not configured; using in-memory stores")
		return throttle.NewMemoryStore(), storage.NewMemoryEventLog(0), nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, nil, err
	}

	store := storage.NewStore(pool)
	return store, store, store.Close, nil
}

func (a *App) newGatekeeper() *gate.Gatekeeper {
	origin := gate.ResolveOrigin(a.Config.App.Environment)
	a.Logger.Info().Str("environment", a.Config.App.Environment).Str("origin", string(origin)).Msg("deployment origin resolved")
	return gate.New(origin)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Telegram.Enabled {
		return nil
	}
	cfg := a.Config.Telegram
	return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.RequestTimeout, a.Logger)
}

func (a *App) newCommandSource() alerting.CommandSource {
	if !a.Config.Telegram.Enabled {
		return nil
	}
	cfg := a.Config.Telegram
	return alerting.NewTelegramCommandSource(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.RequestTimeout, a.Logger)
}

func (a *App) newEvaluator() evaluator.SignalEvaluator {
	prices := fetcher.NewTicker(fetcher.TickerOptions{
		BaseURL:   a.Config.Exchange.BaseURL,
		Timeout:   a.Config.Exchange.RequestTimeout,
		UserAgent: a.Config.Exchange.UserAgent,
	}, a.Logger)

	return evaluator.NewMomentum(evaluator.MomentumOptions{
		TriggerPct: decimal.NewFromFloat(a.Config.Evaluator.TriggerPct),
		Lookback:   a.Config.Evaluator.Lookback,
	}, prices, a.clk, a.Logger)
}

// Run executes the long-running sentry loop until interrupted.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	snapshots, events, closeStores, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	if closeStores != nil {
		defer closeStores()
	}

	keeper := a.newGatekeeper()
	notifier := a.newNotifier()
	if notifier == nil {
		a.Logger.Warn().Msg("telegram not configured; dispatch outcomes will be audited only")
	}

	emit := emitter.New(snapshots, events, keeper, orNopNotifier(notifier), a.clk, emitter.Options{}, a.Logger)
	svc := service.New(a.Config, a.newEvaluator(), emit, snapshots, events, notifier, a.newCommandSource(), keeper, a.clk, a.Logger)

	coordinator := scheduler.NewCoordinator(scheduler.Options{PollInterval: time.Second}, svc.Tasks(), a.clk, a.Logger)

	done := make(chan struct{})
	started := a.guard.TryStart(func() <-chan struct{} {
		go func() {
			defer close(done)
			if err := coordinator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error().Err(err).Msg("coordinator terminated with error")
			}
		}()
		return done
	})
	if !started {
		return errors.New("coordinator already running in this process")
	}

	var metricsSrv *http.Server
	if a.Config.Metrics.Enabled {
		metricsSrv = a.startMetricsServer()
	}

	a.Logger.Info().Msg("sentry started")
	<-ctx.Done()

	coordinator.Stop()
	<-done

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	a.Logger.Info().Msg("sentry stopped")
	return nil
}

func (a *App) startMetricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: a.Config.Metrics.ListenAddr, Handler: mux}
	go func() {
		a.Logger.Info().Str("addr", srv.Addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return srv
}

// nopNotifier satisfies the emitter when no channel is configured; the
// gatekeeper and audit trail still see every outcome.
type nopNotifier struct{}

func (nopNotifier) Send(ctx context.Context, text, originTag string) error { return nil }

func orNopNotifier(n alerting.Notifier) alerting.Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
