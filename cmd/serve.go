package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-hangar/pkg/auth"
	"github.com/ekaya-inc/ekaya-hangar/pkg/cache"
	"github.com/ekaya-inc/ekaya-hangar/pkg/handlers"
	"github.com/ekaya-inc/ekaya-hangar/pkg/middleware"
	"github.com/ekaya-inc/ekaya-hangar/pkg/services"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Serves /json, /html, /form and /view routes for every endpoint in the catalog.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		return serve(ctx, a)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("catalog", cfg.CatalogPath),
		zap.Strings("databases", a.datasources.IDs()),
		zap.String("cache", cfg.Cache.Backend),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification))

	if !cfg.Auth.EnableVerification {
		logger.Warn("JWT verification is disabled; group claims are trusted as presented")
	}

	a.checkDatabases(ctx)

	store, err := cache.New(ctx, cfg.Cache, a.catalog.LongestCacheTimeout(), logger)
	if err != nil {
		return fmt.Errorf("failed to create result cache: %w", err)
	}
	defer store.Close()

	jwksClient, err := auth.NewJWKSClient(ctx, &auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}
	defer jwksClient.Close()

	authService := auth.NewAuthService(jwksClient, cfg.Auth.CookieName, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)

	endpointService := services.NewEndpointService(services.ResultRunner{
		Queries: a.queries,
		Cache:   services.NewResultCache(store, logger),
	}, logger)

	renderer, err := handlers.NewRenderer(cfg.TemplatesDir, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, a.connMgr, a.datasources, logger).RegisterRoutes(mux)
	handlers.NewEndpointHandler(a.catalog, endpointService, renderer, logger).RegisterRoutes(mux, authMiddleware)

	var handler http.Handler = mux
	handler = middleware.RequestLogger(logger)(handler)
	handler = middleware.Recoverer(logger)(handler)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-hangar",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSCertPath != ""))
		if cfg.TLSCertPath != "" {
			errCh <- server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			errCh <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
