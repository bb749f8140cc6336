package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rossigee/irp-integration/internal/api"
	"github.com/rossigee/irp-integration/internal/auth"
)

// shutdownTimeout gives outstanding requests time to complete
const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	var refreshInterval time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the submission journal, health and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if a.store == nil {
				return errNoJournal
			}
			return a.serve(cmd.Context(), refreshInterval)
		}),
	}
	cmd.Flags().DurationVar(&refreshInterval, "refresh-interval", 0, "Refresh unsettled submissions periodically (0 disables)")
	return cmd
}

func (a *app) serve(ctx context.Context, refreshInterval time.Duration) error {
	authValidator, err := auth.NewValidator(a.cfg.Server.Auth)
	if err != nil {
		return err
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(authValidator.Middleware())
	api.SetupRoutes(router, api.NewHandler(a.store, a.tracker, a.metrics.Handler()))

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           router,
		TLSConfig:         authValidator.TLSConfig(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	useTLS := a.cfg.Server.CertFile != "" && a.cfg.Server.KeyFile != ""
	if authValidator.IsClientCALoaded() && !useTLS {
		return errors.New("server.auth.client_ca_file requires server.cert_file and server.key_file")
	}

	if refreshInterval > 0 {
		go a.refreshLoop(ctx, refreshInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithFields(logrus.Fields{
			"addr": srv.Addr,
			"tls":  useTLS,
			"auth": authValidator.Enabled(),
		}).Info("Starting journal server")
		if useTLS {
			errCh <- srv.ListenAndServeTLS(a.cfg.Server.CertFile, a.cfg.Server.KeyFile)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.log.Info("Server exited")
	return nil
}

func (a *app) refreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updated, err := a.tracker.Refresh(ctx)
			entry := a.log.WithField("updated", updated)
			if err != nil {
				entry.WithError(err).Warn("Journal refresh incomplete")
				continue
			}
			entry.Debug("Journal refreshed")
		}
	}
}
