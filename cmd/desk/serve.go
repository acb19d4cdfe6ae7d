package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/chargedesk/internal/api"
	"github.com/Veraticus/chargedesk/internal/auth"
	"github.com/Veraticus/chargedesk/internal/certs"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the desk over HTTP",
		Long: `Serve the JSON API used by the agent and manager front ends. Prometheus
metrics are exposed on /metrics unless --no-metrics is given.`,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "", "listen address (default server.addr)")
	cmd.Flags().Bool("no-metrics", false, "do not expose /metrics")
	cmd.Flags().Bool("tls", false, "serve HTTPS with a self-signed certificate")
	cmd.Flags().StringSlice("tls-host", nil, "hosts the certificate covers (default localhost)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.config.ServerAddr
	if flagAddr, _ := cmd.Flags().GetString("addr"); flagAddr != "" {
		addr = flagAddr
	}

	server := api.NewServer(a.desk, a.logger)
	server.SetUsers(a.users)
	if a.config.SessionKey != "" {
		tokens, err := auth.NewIssuer(a.config.SessionKey, a.config.SessionTTL)
		if err != nil {
			return err
		}
		server.SetTokens(tokens)
	} else {
		slog.Warn("server.session_key is not set, the API is open to anyone who can reach it")
	}
	if noMetrics, _ := cmd.Flags().GetBool("no-metrics"); !noMetrics {
		server.EnableMetrics()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	useTLS, _ := cmd.Flags().GetBool("tls")
	if useTLS {
		configDir, err := deskConfigDir()
		if err != nil {
			return err
		}
		hosts, _ := cmd.Flags().GetStringSlice("tls-host")
		tlsConfig, err := certs.NewStore(filepath.Join(configDir, "certs"), hosts...).TLSConfig()
		if err != nil {
			return fmt.Errorf("failed to prepare TLS certificate: %w", err)
		}
		srv.TLSConfig = tlsConfig
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Desk API listening", "addr", addr, "backend", a.config.Backend, "tls", useTLS)
		if useTLS {
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	slog.Info("Shutting down desk API")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
