package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/photark-io/photark/internal/actions"
	"github.com/photark-io/photark/internal/adapters"
	"github.com/photark-io/photark/internal/api"
	"github.com/photark-io/photark/internal/db"
	"github.com/photark-io/photark/internal/explorer"
	"github.com/photark-io/photark/internal/maintenance"
	"github.com/photark-io/photark/internal/repositories"
	"github.com/photark-io/photark/internal/rpc"
	"github.com/photark-io/photark/internal/upload"
	"github.com/photark-io/photark/internal/websocket"
	"github.com/photark-io/photark/internal/worker"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type config struct {
	httpAddr      string
	dbDriver      string
	dbDSN         string
	secretKey     string
	logLevel      string
	dataDir       string
	maxWorkers    int
	maxPerAccount int
	pollSeconds   int
	previewTTLMin int
	rpcMaxRetries int
	rpcRetryMS    int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:   "photark-server",
		Short: "Photark server — multi-account Google Photos orchestrator",
		Long: `Photark server manages multiple Google Photos accounts through their
private web API. It exposes a REST API for the GUI, runs queued jobs
through a bounded worker pool, and keeps a local index of every
account's library for fast queries and bulk actions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newMigrateCmd(cfg))

	root.PersistentFlags().StringVar(&cfg.httpAddr, "http-addr", envOrDefault("PHOTARK_HTTP_ADDR", ":8080"), "HTTP API listen address")
	root.PersistentFlags().StringVar(&cfg.dbDriver, "db-driver", envOrDefault("PHOTARK_DB_DRIVER", "sqlite"), "Database driver (sqlite or postgres)")
	root.PersistentFlags().StringVar(&cfg.dbDSN, "db-dsn", envOrDefault("PHOTARK_DB_DSN", "./photark.db"), "Database DSN or file path for SQLite")
	root.PersistentFlags().StringVar(&cfg.secretKey, "secret-key", envOrDefault("PHOTARK_SECRET_KEY", ""), "32-byte key for encrypting credentials at rest (required)")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", envOrDefault("PHOTARK_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&cfg.dataDir, "data-dir", envOrDefault("PHOTARK_DATA_DIR", "./data"), "Directory for server data (upload hash cache)")
	root.PersistentFlags().IntVar(&cfg.maxWorkers, "max-workers", envOrDefaultInt("PHOTARK_MAX_WORKERS", worker.DefaultMaxWorkers), "Maximum concurrent jobs")
	root.PersistentFlags().IntVar(&cfg.maxPerAccount, "max-per-account", envOrDefaultInt("PHOTARK_MAX_PER_ACCOUNT", worker.DefaultMaxPerAccount), "Maximum concurrent jobs per account")
	root.PersistentFlags().IntVar(&cfg.pollSeconds, "poll-seconds", envOrDefaultInt("PHOTARK_POLL_SECONDS", 1), "Worker queue poll interval in seconds")
	root.PersistentFlags().IntVar(&cfg.previewTTLMin, "preview-ttl-minutes", envOrDefaultInt("PHOTARK_PREVIEW_TTL_MINUTES", 30), "Preview time-to-live in minutes")
	root.PersistentFlags().IntVar(&cfg.rpcMaxRetries, "rpc-max-retries", envOrDefaultInt("PHOTARK_RPC_MAX_RETRIES", 3), "RPC attempts per call before giving up")
	root.PersistentFlags().IntVar(&cfg.rpcRetryMS, "rpc-retry-base-delay-ms", envOrDefaultInt("PHOTARK_RPC_RETRY_BASE_DELAY_MS", 1500), "Base delay between RPC retries in milliseconds")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("photark-server %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func newMigrateCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := buildLogger(cfg.logLevel)
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			database, err := db.New(db.Config{
				Driver: cfg.dbDriver,
				DSN:    cfg.dbDSN,
				Logger: logger,
			})
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			if sqlDB, err := database.DB(); err == nil {
				sqlDB.Close()
			}
			logger.Info("database schema is up to date",
				zap.String("driver", cfg.dbDriver),
				zap.String("dsn", cfg.dbDSN),
			)
			return nil
		},
	}
}

func run(ctx context.Context, cfg *config) error {
	logger, err := buildLogger(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.secretKey == "" {
		return fmt.Errorf("secret key is required — set --secret-key or PHOTARK_SECRET_KEY")
	}
	if err := db.InitEncryption([]byte(cfg.secretKey)); err != nil {
		return err
	}

	logger.Info("starting photark server",
		zap.String("version", version),
		zap.String("http_addr", cfg.httpAddr),
		zap.String("db_driver", cfg.dbDriver),
		zap.String("log_level", cfg.logLevel),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// --- Database & repositories ---
	database, err := db.New(db.Config{
		Driver: cfg.dbDriver,
		DSN:    cfg.dbDSN,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if sqlDB, err := database.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	accountRepo := repositories.NewAccountRepository(database)
	credentialRepo := repositories.NewCredentialRepository(database)
	jobRepo := repositories.NewJobRepository(database)
	previewRepo := repositories.NewPreviewRepository(database)
	indexRepo := repositories.NewIndexRepository(database)

	// --- Provider adapters ---
	rpcClient := rpc.NewClient(rpc.Config{
		Logger:         logger,
		MaxRetries:     cfg.rpcMaxRetries,
		RetryBaseDelay: time.Duration(cfg.rpcRetryMS) * time.Millisecond,
	})
	uploadClient := upload.NewClient(upload.Config{Logger: logger})

	nativeRPC := adapters.NewNativeRPCAdapter(rpcClient, credentialRepo, logger)
	bulkUpload := adapters.NewBulkUploadAdapter(
		uploadClient, credentialRepo, nativeRPC,
		filepath.Join(cfg.dataDir, "upload-cache"), logger,
	)
	fileDisguise := adapters.NewFileDisguiseAdapter(logger)
	pipeline := adapters.NewPipelineAdapter(bulkUpload, logger)

	explorerSvc := explorer.NewService(indexRepo, nativeRPC, logger)
	registry := adapters.NewRegistry(nativeRPC, bulkUpload, fileDisguise, pipeline, explorer.NewAdapter(explorerSvc))

	// --- WebSocket hub & worker pool ---
	hub := websocket.NewHub()
	go hub.Run(ctx)

	executor := worker.NewExecutor(
		jobRepo, accountRepo, credentialRepo, registry,
		websocket.NewJobEventPublisher(hub), logger,
	)
	pool := worker.NewPool(jobRepo, executor, worker.PoolConfig{
		MaxWorkers:    cfg.maxWorkers,
		MaxPerAccount: cfg.maxPerAccount,
		PollInterval:  time.Duration(cfg.pollSeconds) * time.Second,
	}, logger)
	go pool.Run(ctx)

	// --- Previews & maintenance ---
	actionsSvc := actions.NewService(
		previewRepo, jobRepo, accountRepo, indexRepo,
		time.Duration(cfg.previewTTLMin)*time.Minute, logger,
	)
	sched, err := maintenance.New(actionsSvc, jobRepo, logger)
	if err != nil {
		return fmt.Errorf("failed to build maintenance scheduler: %w", err)
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start maintenance scheduler: %w", err)
	}
	defer sched.Stop() //nolint:errcheck

	// --- HTTP server ---
	router := api.NewRouter(api.RouterConfig{
		Logger:      logger,
		Accounts:    accountRepo,
		Credentials: credentialRepo,
		Jobs:        jobRepo,
		Previews:    previewRepo,
		Explorer:    explorerSvc,
		Actions:     actionsSvc,
		Refresher:   nativeRPC,
		Hub:         hub,
	})
	server := &http.Server{
		Addr:              cfg.httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down photark server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown failed", zap.Error(err))
	}
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
