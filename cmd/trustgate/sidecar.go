package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trust-evidence/gate/pkg/config"
	"github.com/trust-evidence/gate/pkg/security/auth"
	"github.com/trust-evidence/gate/pkg/server"
	"github.com/trust-evidence/gate/pkg/sidecar"
	"github.com/trust-evidence/gate/pkg/telemetry/health"
	"github.com/trust-evidence/gate/pkg/telemetry/logging"
	"github.com/trust-evidence/gate/pkg/telemetry/metrics"
	"github.com/trust-evidence/gate/pkg/tracestore"
)

var sidecarCmd = &cobra.Command{
	Use:   "sidecar",
	Short: "Run the standalone evidence sidecar",
}

var sidecarServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the evidence sidecar HTTP service",
	Long: `Start the standalone evidence sidecar: an HTTP service that ingests
turn events, serves trace summaries, builds and serves audit packs, and
runs retention sweeps, all behind JWT-scoped endpoints.

Examples:
  trustgate sidecar serve --config config.yaml`,
	RunE: serveSidecar,
}

func init() {
	rootCmd.AddCommand(sidecarCmd)
	sidecarCmd.AddCommand(sidecarServeCmd)
}

func serveSidecar(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	appLogger, err := logging.New(logging.Config{
		Level:          cfg.Telemetry.Logging.Level,
		Format:         cfg.Telemetry.Logging.Format,
		AddSource:      cfg.Telemetry.Logging.AddSource,
		RedactPII:      cfg.Telemetry.Logging.RedactPII,
		RedactPatterns: cfg.Telemetry.Logging.RedactPatterns,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer appLogger.Shutdown()
	appLogger.Info("starting evidence sidecar", "listen_address", cfg.Sidecar.ListenAddress, "store_backend", cfg.Sidecar.StoreBackend)

	systemClaims, err := loadSystemClaims(cfg.Gate.SystemClaimsPath)
	if err != nil {
		return err
	}

	validator, err := auth.NewJWTValidator(auth.JWTValidatorConfig{
		Mode:       cfg.Auth.Mode,
		HMACSecret: cfg.Auth.HMACSecret,
		JWKSURL:    cfg.Auth.JWKSURL,
	})
	if err != nil {
		return fmt.Errorf("failed to build JWT validator: %w", err)
	}

	store, err := sidecar.NewStore(sidecar.Config{
		Path:          cfg.Sidecar.StorePath,
		RetentionDays: cfg.Sidecar.RetentionDays,
	})
	if err != nil {
		return fmt.Errorf("failed to open sidecar store: %w", err)
	}
	defer store.Close()

	traceStore, err := openTraceStore(&cfg.Sidecar)
	if err != nil {
		return err
	}
	defer traceStore.Close()

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	checker := health.New(5 * time.Second)
	checker.RegisterCheck("sidecar_store", func(ctx context.Context) error {
		_, err := store.GetTraceSummary(ctx, "__healthcheck__")
		if err != nil {
			if _, ok := err.(*sidecar.NotFoundError); ok {
				return nil
			}
			return err
		}
		return nil
	})

	handler := sidecar.NewHandler(sidecar.Deps{
		Store:              store,
		TraceStore:         traceStore,
		Validator:          validator,
		SystemClaims:       systemClaims,
		Mode:               cfg.Auth.Mode,
		RetentionDays:      cfg.Sidecar.RetentionDays,
		MTLSIdentitySource: cfg.Security.TLS.MTLS.IdentitySource,
		Metrics:            collector,
		Health:             checker,
		Version:            Version,
		GitCommit:          GitCommit,
		BuildDate:          BuildDate,
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if lister, ok := traceStore.(tracestore.Lister); ok && cfg.Sidecar.RetentionSchedule != "" {
		scheduler := tracestore.NewScheduler(traceStore, lister)
		if err := scheduler.Start(ctx, cfg.Sidecar.RetentionSchedule); err != nil {
			return fmt.Errorf("failed to start retention scheduler: %w", err)
		}
		defer scheduler.Stop()
	}

	srv := server.New(&cfg.Sidecar, &cfg.Security, handler)
	err = srv.Start(ctx)
	appLogger.Info("evidence sidecar stopped")
	return err
}

// openTraceStore selects the embedded gate's trace-store backend the
// sidecar reads from when building audit packs. "sqlite-cgo" uses the
// trace store's own mattn/go-sqlite3-backed SQLiteStore (the same backend
// the embedded gate writes through); anything else falls back to an
// in-memory store, appropriate for a sidecar fronted by an external
// durable cache rather than colocated with the gate process.
func openTraceStore(cfg *config.SidecarConfig) (tracestore.Store, error) {
	if cfg.StoreBackend != "sqlite-cgo" {
		return tracestore.NewMemoryStore(), nil
	}
	sqliteCfg := tracestore.DefaultSQLiteConfig()
	sqliteCfg.Path = cfg.TraceStorePath
	store, err := tracestore.NewSQLiteStore(sqliteCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace store: %w", err)
	}
	return store, nil
}
