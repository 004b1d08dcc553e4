package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	qa "github.com/panyam/quickauth"
	"github.com/panyam/quickauth/internal/config"
	"github.com/panyam/quickauth/internal/logging"
	"github.com/panyam/quickauth/internal/storage"
	"github.com/panyam/quickauth/oauth2"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the auth HTTP API",
		Long: `Serve the auth endpoints under --http.prefix, plus /healthz and
Prometheus metrics, until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := logging.Setup("quickauth", version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", cfg.HTTP.Addr)
			if err != nil {
				return oops.Code("LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
			}
			return runServe(ctx, cfg, logger, ln)
		},
	}
}

// server is a fully wired quickauth HTTP application.
type server struct {
	handler http.Handler
	close   storage.Closer
}

// newServer connects the store and builds the handler tree described by cfg.
func newServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server, error) {
	store, closeStore, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			_ = closeStore(ctx)
		}
	}()

	issuer, err := qa.NewSessionIssuer(qa.SessionConfig{
		Secret:    cfg.Session.Secret,
		Issuer:    cfg.Session.Issuer,
		Expiry:    cfg.Session.Expiry,
		Algorithm: cfg.Session.Algorithm,
	})
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	service, err := qa.NewAuthService(qa.AuthServiceConfig{
		Store:  store,
		Tokens: issuer,
		Hasher: &qa.BcryptHasher{Cost: cfg.Auth.PasswordCost},
		Mailer: newMailer(cfg.Mail, logger),
		Facebook: oauth2.NewFacebookClient(oauth2.FacebookConfig{
			GraphURL:  cfg.Facebook.GraphURL,
			AppID:     cfg.Facebook.AppID,
			AppSecret: cfg.Facebook.AppSecret,
			Timeout:   cfg.Providers.Timeout,
		}),
		Google: oauth2.NewGoogleClient(oauth2.GoogleConfig{
			ClientID: cfg.Google.ClientID,
			Timeout:  cfg.Providers.Timeout,
		}),
		HideAccountExistence: cfg.Auth.HideAccountExistence,
		EmailTimeout:         cfg.Auth.EmailTimeout,
		Logger:               logger,
		Metrics:              qa.NewMetrics(reg),
	})
	if err != nil {
		return nil, err
	}

	handler, err := qa.NewAuthHandler(service)
	if err != nil {
		return nil, err
	}
	handler.ConflictStatus = cfg.HTTP.ConflictStatus
	handler.Logger = logger
	if cfg.HTTP.Sessions {
		handler.Sessions = scs.New()
	}

	mw := &qa.Middleware{
		VerifyToken: issuer.VerifyToken,
		Sessions:    handler.Sessions,
		Logger:      logger,
	}
	router, root := qa.NewRouter(cfg.HTTP.Prefix, handler, mw)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)
	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}

	ok = true
	return &server{handler: root, close: closeStore}, nil
}

func newMailer(cfg config.Mail, logger *slog.Logger) qa.Mailer {
	if cfg.Driver == "smtp" {
		return &qa.SMTPMailer{
			Host:       cfg.Host,
			Port:       cfg.Port,
			Username:   cfg.Username,
			Password:   cfg.Password,
			From:       cfg.From,
			LinkPrefix: cfg.LinkPrefix,
		}
	}
	return &qa.ConsoleMailer{Logger: logger, LinkPrefix: cfg.LinkPrefix}
}

// runServe serves on ln until ctx is cancelled, then drains in-flight
// requests for up to cfg.HTTP.ShutdownTimeout.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger, ln net.Listener) error {
	srv, err := newServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.close(context.Background()); err != nil {
			logging.LogError(ctx, logger, "closing store", err)
		}
	}()

	httpServer := &http.Server{
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("quickauth listening",
			"addr", ln.Addr().String(),
			"prefix", cfg.HTTP.Prefix,
			"store", cfg.Store.Driver)
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return oops.Code("SERVE_FAILED").Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.HTTP.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return oops.Code("SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}
