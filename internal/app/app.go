package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/mpblatz/repeet/internal/adapter/local"
	"github.com/mpblatz/repeet/internal/adapter/postgres"
	"github.com/mpblatz/repeet/internal/adapter/postgres/remote"
	"github.com/mpblatz/repeet/internal/adapter/sqlitekv"
	"github.com/mpblatz/repeet/internal/auth"
	"github.com/mpblatz/repeet/internal/config"
	"github.com/mpblatz/repeet/internal/domain"
	"github.com/mpblatz/repeet/internal/service/schedule"
	"github.com/mpblatz/repeet/internal/service/tracker"
	"github.com/mpblatz/repeet/internal/transport/middleware"
	"github.com/mpblatz/repeet/internal/transport/rest"
	"github.com/mpblatz/repeet/pkg/ctxutil"
)

// Run is the server entry point. It loads configuration, opens both stores,
// serves the HTTP API and shuts down gracefully when ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.Bool("remote_enabled", cfg.RemoteEnabled()),
	)

	deps, err := Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	handler, stop := NewHandler(cfg, deps, logger)
	defer stop()

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Deps holds the long-lived components shared by the server and the CLI.
type Deps struct {
	Tracker *tracker.Service
	Clock   schedule.Clock
	Local   *sqlitekv.Store

	// Pool and JWT are nil when no database DSN is configured.
	Pool *pgxpool.Pool
	JWT  *auth.JWTManager
}

// Open connects the local store and, when configured, the remote one, then
// builds the tracker facade over them.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Deps, error) {
	clock := schedule.Clock{Location: cfg.Tracker.Location}

	kv, err := sqlitekv.Open(ctx, cfg.Local.Path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	deps := &Deps{Clock: clock, Local: kv}

	var resolver tracker.RemoteResolver
	if cfg.RemoteEnabled() {
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("open remote store: %w", err)
		}
		deps.Pool = pool

		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, pool, logger); err != nil {
				deps.Close()
				return nil, err
			}
		}

		factory := remote.NewFactory(pool, clock)
		resolver = func(userID uuid.UUID) tracker.Backend { return factory.ForUser(userID) }
	}

	if cfg.Auth.JWTSecret != "" {
		deps.JWT = auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)
	}

	deps.Tracker = tracker.NewService(logger, local.New(kv, clock), resolver,
		tracker.SessionFunc(ctxutil.SessionFromCtx),
		tracker.Options{
			Clock:            clock,
			AuditProbability: cfg.Tracker.AuditProbability,
		},
	)

	logger.Info("stores ready",
		slog.String("local_path", cfg.Local.Path),
		slog.Bool("remote", deps.Pool != nil),
	)
	return deps, nil
}

// Close releases both stores.
func (d *Deps) Close() {
	if d.Pool != nil {
		d.Pool.Close()
	}
	if d.Local != nil {
		d.Local.Close() //nolint:errcheck
	}
}

// NewHandler builds the full HTTP handler. The returned stop function
// releases the rate limiter.
func NewHandler(cfg *config.Config, deps *Deps, logger *slog.Logger) (http.Handler, func()) {
	var validator interface {
		ValidateToken(ctx context.Context, token string) (uuid.UUID, error)
	} = rejectTokens{}
	if deps.JWT != nil {
		validator = deps.JWT
	}

	mws := []middleware.Middleware{
		middleware.Recovery(logger),
		middleware.RequestID,
		middleware.CORS(cfg.CORS),
		middleware.Auth(validator),
		middleware.Logger(logger),
	}

	stop := func() {}
	if cfg.Server.RateLimitPerMinute > 0 {
		limiter := middleware.NewRateLimiter(time.Minute)
		mws = append(mws, limiter.Limit(cfg.Server.RateLimitPerMinute))
		stop = limiter.Stop
	}

	components := []rest.Component{{Name: "local", Pinger: deps.Local}}
	if deps.Pool != nil {
		components = append(components, rest.Component{Name: "remote", Pinger: deps.Pool})
	}

	return rest.NewRouter(
		rest.NewTrackerHandler(deps.Tracker, deps.Clock, logger),
		rest.NewHealthHandler(BuildVersion(), components...),
		middleware.Chain(mws...),
	), stop
}

// rejectTokens refuses every bearer token when no signing secret is set.
type rejectTokens struct{}

func (rejectTokens) ValidateToken(context.Context, string) (uuid.UUID, error) {
	return uuid.Nil, fmt.Errorf("%w: token signing is not configured", domain.ErrUnauthenticated)
}
