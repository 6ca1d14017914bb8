// Package server provides the HTTP bootstrap shared by the evidence
// sidecar and any other host process that needs a managed net/http server
// with graceful shutdown and optional TLS.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/trust-evidence/gate/pkg/config"
	securitytls "github.com/trust-evidence/gate/pkg/security/tls"
)

// Server is a managed HTTP server with graceful shutdown and optional TLS.
type Server struct {
	cfg          *config.SidecarConfig
	securityCfg  *config.SecurityConfig
	handler      http.Handler
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a Server that serves handler according to cfg.
func New(cfg *config.SidecarConfig, securityCfg *config.SecurityConfig, handler http.Handler) *Server {
	return &Server{
		cfg:          cfg,
		securityCfg:  securityCfg,
		handler:      handler,
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown, a signal, or ctx
// cancellation.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	if s.securityCfg.TLS.Enabled {
		tlsConfig, err := s.configureTLS(ctx)
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting sidecar server",
			"address", s.cfg.ListenAddress,
			"tls_enabled", s.securityCfg.TLS.Enabled,
		)

		var err error
		if s.securityCfg.TLS.Enabled {
			err = s.httpServer.ListenAndServeTLS(s.securityCfg.TLS.CertFile, s.securityCfg.TLS.KeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server, bounded by
// cfg.ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("sidecar server stopped")
	})

	return shutdownErr
}

// configureTLS builds the listener's tls.Config via the shared
// securitytls.Config converter (version/cipher/mTLS policy), then layers
// certificate hot-reload on top when ReloadOnChange is set: ToTLSConfig
// loads Certificates once at startup, so a long-lived sidecar process
// still needs GetCertificate wired to pick up a renewed cert/key pair.
func (s *Server) configureTLS(ctx context.Context) (*tls.Config, error) {
	tlsCfg := s.securityCfg.TLS
	conv := &securitytls.Config{
		Enabled:        true,
		CertFile:       tlsCfg.CertFile,
		KeyFile:        tlsCfg.KeyFile,
		MinVersion:     tlsCfg.MinVersion,
		CipherSuites:   tlsCfg.CipherSuites,
		ReloadInterval: "30s",
		MTLS: securitytls.MTLSConfig{
			Enabled:        tlsCfg.MTLS.Enabled,
			ClientCAFile:   tlsCfg.MTLS.ClientCAFile,
			ClientAuthType: tlsCfg.MTLS.ClientAuthType,
			IdentitySource: tlsCfg.MTLS.IdentitySource,
		},
	}

	tlsConfig, err := conv.ToTLSConfig()
	if err != nil {
		return nil, err
	}

	if !tlsCfg.ReloadOnChange {
		return tlsConfig, nil
	}

	reloader := securitytls.NewCertificateReloader(tlsCfg.CertFile, tlsCfg.KeyFile, conv.ParseReloadInterval())
	if err := reloader.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start certificate reloader: %w", err)
	}
	tlsConfig.Certificates = nil
	tlsConfig.GetCertificate = reloader.GetCertificateFunc()
	return tlsConfig, nil
}

// IsRunning reports whether the server is currently serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
