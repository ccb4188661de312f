// Package main implements a one-shot seed command that creates an account
// directly in the Photark database. It lives inside the server module so it
// can access internal/* packages.
//
// Usage:
//
//	go run ./cmd/seed --label "Main account" --email-hint "a***@gmail.com"
//
// Environment variables:
//
//	PHOTARK_DB_DSN      SQLite file path or Postgres DSN (default: ./photark.db)
//	PHOTARK_SECRET_KEY  Master encryption key — must match the value used by the server
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/photark-io/photark/internal/cookies"
	"github.com/photark-io/photark/internal/db"
	"github.com/photark-io/photark/internal/repositories"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	label := flag.String("label", "", "Account label (required)")
	emailHint := flag.String("email-hint", "", "Masked email shown in the GUI")
	cookieFile := flag.String("cookie-file", "", "Netscape cookie export to import for the account")
	demoJob := flag.Bool("demo-job", false, "Queue a dry-run library listing job for the new account")
	flag.Parse()

	if *label == "" {
		return fmt.Errorf("--label is required")
	}

	dsn := envOrDefault("PHOTARK_DB_DSN", "./photark.db")

	secretKey := os.Getenv("PHOTARK_SECRET_KEY")
	if secretKey == "" {
		return fmt.Errorf(
			"PHOTARK_SECRET_KEY is not set\n" +
				"  Set it to the same value used by the server, otherwise the\n" +
				"  encrypted credentials will be unreadable later.",
		)
	}

	// InitEncryption must be called before any DB operation so that
	// EncryptedString fields are encoded correctly on write.
	if err := db.InitEncryption([]byte(secretKey)); err != nil {
		return fmt.Errorf("init encryption: %w", err)
	}

	logger, _ := zap.NewDevelopment()

	database, err := db.New(db.Config{
		Driver:   "sqlite",
		DSN:      dsn,
		Logger:   logger,
		LogLevel: gormlogger.Silent, // suppress GORM query logs in seed output
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	defer sqlDB.Close()

	ctx := context.Background()

	accountRepo := repositories.NewAccountRepository(database)
	account := &db.Account{
		Label:     *label,
		EmailHint: *emailHint,
		IsActive:  true,
	}
	if err := accountRepo.Create(ctx, account); err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	fmt.Printf("✓ Account created\n")
	fmt.Printf("  ID:    %s\n", account.ID)
	fmt.Printf("  Label: %s\n", account.Label)

	if *cookieFile != "" {
		if err := importCookies(ctx, database, account, *cookieFile); err != nil {
			return err
		}
	}

	if *demoJob {
		jobRepo := repositories.NewJobRepository(database)
		job := &db.Job{
			AccountID: account.ID,
			Provider:  "native-rpc",
			Operation: "native-rpc.get_items_by_uploaded_date",
			DryRun:    true,
			Params:    db.JSONMap{},
			Status:    db.JobStatusQueued,
			Message:   "Queued",
		}
		if err := jobRepo.Create(ctx, job); err != nil {
			return fmt.Errorf("create demo job: %w", err)
		}
		fmt.Printf("✓ Demo dry-run job queued (%s)\n", job.ID)
	}

	return nil
}

func importCookies(ctx context.Context, database *gorm.DB, account *db.Account, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read cookie file: %w", err)
	}
	jar, err := cookies.ParseNetscape(string(data))
	if err != nil {
		return fmt.Errorf("parse cookie file: %w", err)
	}
	encoded, err := db.MarshalJSONValue(jar)
	if err != nil {
		return fmt.Errorf("encode cookie jar: %w", err)
	}
	credentialRepo := repositories.NewCredentialRepository(database)
	if err := credentialRepo.UpsertCookies(ctx, account.ID, encoded); err != nil {
		return fmt.Errorf("store cookie jar: %w", err)
	}
	fmt.Printf("✓ Imported %d cookies\n", len(jar))
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
