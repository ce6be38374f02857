package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/phillip/event-manager-go/config"
	"github.com/phillip/event-manager-go/controllers"
	"github.com/phillip/event-manager-go/identity"
	"github.com/phillip/event-manager-go/mailer"
	"github.com/phillip/event-manager-go/repository"
	"github.com/phillip/event-manager-go/routes"
	"github.com/phillip/event-manager-go/storage"
	"github.com/phillip/event-manager-go/tasks"
	"github.com/phillip/event-manager-go/validation"
)

const shutdownTimeout = 10 * time.Second

var serverPort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server and begin accepting API requests.

Configuration comes from environment variables, merged with a .env file
when one is present. SIGINT and SIGTERM trigger a graceful shutdown that
drains in-flight requests and queued background tasks.

Examples:
  event-manager serve
  event-manager serve --port 9090 --log-level debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverPort, "port", "", "server port (default: $PORT or 8080)")
}

func runServer(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serverPort != "" {
		cfg.Server.Port = serverPort
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	logger := config.NewLogger(cfg.Logging)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, dispatcher, cleanup, err := buildApp(parent, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	r := gin.New()
	routes.SetupRoutes(r, app)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Str("env", cfg.Environment).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Tasks.Timeout+shutdownTimeout)
	defer cancelDrain()
	if err := dispatcher.Shutdown(drainCtx); err != nil {
		logger.Error().Err(err).Msg("background tasks did not drain")
	}

	logger.Info().Msg("server stopped")
	return nil
}

// buildApp wires the stores and providers selected in cfg. cleanup releases
// the connections it opened, in reverse order.
func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*controllers.App, *tasks.Dispatcher, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*controllers.App, *tasks.Dispatcher, func(), error) {
		cleanup()
		return nil, nil, func() {}, err
	}

	var (
		events repository.EventRepository
		users  repository.UserRepository
	)
	switch cfg.Mongo.Driver {
	case "memory":
		logger.Warn().Msg("using the in-memory store; data is lost on restart")
		events = repository.NewMemoryEventRepository()
		users = repository.NewMemoryUserRepository()
	default:
		client, err := repository.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Timeout)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(dctx); err != nil {
				logger.Error().Err(err).Msg("mongo disconnect error")
			}
		})

		db := client.Database(cfg.Mongo.Database)
		ictx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
		err = repository.EnsureIndexes(ictx, db)
		cancel()
		if err != nil {
			return fail(err)
		}
		logger.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongo")
		events = repository.NewMongoEventRepository(db)
		users = repository.NewMongoUserRepository(db)
	}

	var provider identity.Provider
	switch cfg.Auth.Provider {
	case "firebase":
		provider = identity.NewFirebase(context.Background(), cfg.Auth.FirebaseProjectID, cfg.Auth.FirebaseAPIKey)
	default:
		provider = identity.NewLocal(users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	}

	images, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fail(err)
	}
	if c, ok := images.(io.Closer); ok {
		closers = append(closers, func() { _ = c.Close() })
	}

	transport, err := mailer.New(cfg.Email, logger)
	if err != nil {
		return fail(err)
	}
	renderer, err := mailer.NewRenderer()
	if err != nil {
		return fail(err)
	}

	dispatcher := tasks.NewDispatcher(cfg.Tasks, logger)

	app := &controllers.App{
		Config:    cfg,
		Events:    events,
		Images:    images,
		Identity:  provider,
		Notifier:  mailer.NewNotifier(transport, renderer, cfg.Server.PublicBaseURL, logger),
		Tasks:     dispatcher,
		Validator: validation.New(),
		Logger:    logger,
	}
	logger.Info().
		Str("store", cfg.Mongo.Driver).
		Str("auth", cfg.Auth.Provider).
		Str("storage", cfg.Storage.Provider).
		Str("email", cfg.Email.Provider).
		Msg("application wired")
	return app, dispatcher, cleanup, nil
}
