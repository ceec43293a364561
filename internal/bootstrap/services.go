package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"

	"github.com/sendfleet/campaignsync/config"
	"github.com/sendfleet/campaignsync/internal/adapters/channel"
	redisadapter "github.com/sendfleet/campaignsync/internal/adapters/redis"
	"github.com/sendfleet/campaignsync/internal/api"
	"github.com/sendfleet/campaignsync/internal/core"
	"github.com/sendfleet/campaignsync/internal/data"
	"github.com/sendfleet/campaignsync/internal/observability/statsd"
)

// Services holds the wired application components.
type Services struct {
	Channel      *channel.Client
	Orchestrator *core.Orchestrator
	Dispatcher   *core.Dispatcher
	Recovery     *core.Recovery
	Router       http.Handler
	Metrics      *statsd.Client

	cfg    *config.AppConfig
	logger *slog.Logger
}

// ServiceDeps bundles the external dependencies for NewServices. DB and
// RedisClient are nil when the archive/cache are disabled.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient *goredis.Client
	Logger      *slog.Logger
}

// NewServices wires the orchestration layer: registries, channel client,
// dispatcher, reconciler, appender, recovery and the HTTP API.
func NewServices(deps *ServiceDeps) (*Services, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sink, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Observability.IsEnabled(),
		Address: cfg.Observability.StatsdAddress,
		Prefix:  cfg.Observability.Prefix,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	registries := core.NewRegistries()

	var archive core.LogArchive
	if deps.DB != nil {
		repo := data.NewArchiveRepo(deps.DB)
		if err := repo.EnsureSchema(context.Background()); err != nil {
			return nil, err
		}
		archive = repo
	}

	var cache core.SnapshotCache
	if deps.RedisClient != nil {
		cache = redisadapter.NewSnapshotCache(deps.RedisClient, cfg.Cache.SnapshotTTL)
	}

	reconciler, err := core.NewReconciler(core.ReconcilerOptions{
		Registries: registries,
		Logger:     logger,
		Metrics:    sink,
	})
	if err != nil {
		return nil, err
	}
	appender, err := core.NewAppender(core.AppenderOptions{
		Registries: registries,
		Archive:    archive,
		Logger:     logger,
		Metrics:    sink,
	})
	if err != nil {
		return nil, err
	}

	// The channel client and recovery reference each other; hooks are bound
	// after both exist.
	chanClient, err := channel.New(channel.Options{
		URL:          cfg.Channel.URL,
		Logger:       logger,
		TokenSource:  gatewayTokenSource(&cfg.Channel),
		DialTimeout:  cfg.Channel.DialTimeout,
		ReconnectMin: cfg.Channel.ReconnectMin,
		ReconnectMax: cfg.Channel.ReconnectMax,
	})
	if err != nil {
		return nil, fmt.Errorf("init channel: %w", err)
	}

	recovery, err := core.NewRecovery(core.RecoveryOptions{
		Registries: registries,
		Channel:    chanClient,
		Cache:      cache,
		Logger:     logger,
		Metrics:    sink,
	})
	if err != nil {
		return nil, err
	}
	dispatcher, err := core.NewDispatcher(core.DispatcherOptions{
		Registries: registries,
		Channel:    chanClient,
		Logger:     logger,
		Metrics:    sink,
	})
	if err != nil {
		return nil, err
	}
	orchestrator, err := core.NewOrchestrator(core.OrchestratorOptions{
		Registries: registries,
		Reconciler: reconciler,
		Appender:   appender,
		Recovery:   recovery,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	chanClient.Bind(channel.Hooks{
		OnConnect:      orchestrator.OnConnect,
		OnDisconnect:   orchestrator.OnDisconnect,
		OnConnectError: orchestrator.OnConnectError,
		OnEnvelope:     orchestrator.HandleEnvelope,
	})

	router := api.NewRouter(api.NewHandlers(dispatcher, registries, chanClient, logger))

	return &Services{
		Channel:      chanClient,
		Orchestrator: orchestrator,
		Dispatcher:   dispatcher,
		Recovery:     recovery,
		Router:       router,
		Metrics:      sink,
		cfg:          cfg,
		logger:       logger,
	}, nil
}

// gatewayTokenSource builds an OAuth2 client-credentials token source for
// the gateway, or nil when auth is not configured.
func gatewayTokenSource(cfg *config.ChannelConfig) oauth2.TokenSource {
	if !cfg.AuthEnabled() {
		return nil
	}
	cc := &clientcredentials.Config{
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}
	return cc.TokenSource(context.Background())
}

// Run starts the channel client and the HTTP API and blocks until a signal
// arrives or a component fails. Local registries are warm-started from the
// snapshot cache before the first connect.
func (s *Services) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s.Recovery.WarmStart(ctx)

	server := &http.Server{
		Addr:         s.cfg.HTTP.Addr,
		Handler:      s.Router,
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.Channel.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		s.logger.InfoContext(gctx, "http api listening", "addr", server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if closeErr := s.Metrics.Close(); closeErr != nil {
		s.logger.Warn("close metrics sink failed", "error", closeErr)
	}
	return err
}
