package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/events"
	transport "quiz-attempt-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the attempt server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := cfg.Logger()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	pubsub := events.NewGoChannel(logger)
	publisher := events.NewPublisher(pubsub, cfg.Events.Topic, logger)
	defer publisher.Close()

	service := app.NewAttemptService(d.attemptStore(cfg), d.backend,
		app.WithLogger(logger),
		app.WithSubmitTimeout(config.TTLDuration(cfg.Attempt.SubmitTimeout, 30*time.Second)),
		app.WithObserver(publisher),
	)

	var authorityHandler *transport.AuthorityHandler
	if d.authority != nil {
		authorityHandler = transport.NewAuthorityHandler(d.authority, logger)
	}
	gin.SetMode(gin.ReleaseMode)
	router := transport.NewRouter(transport.NewWSHandler(service, logger), authorityHandler, logger)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return events.Consume(gctx, pubsub, cfg.Events.Topic, logger, events.AuditLog(logger))
	})
	g.Go(func() error {
		logger.Info("starting attempt service", "port", finalPort, "remote_backend", cfg.Backend.URL != "")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
