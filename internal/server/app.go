// Package server initializes and runs the evidence record-keeping backend.
// It wires the database, object storage, mail and payment collaborators into
// the service layer and starts the HTTP server.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/rentproof/rentproof/internal/logging"
	"github.com/rentproof/rentproof/internal/server/api"
	"github.com/rentproof/rentproof/internal/server/config"
	"github.com/rentproof/rentproof/internal/server/mailer"
	"github.com/rentproof/rentproof/internal/server/payments"
	"github.com/rentproof/rentproof/internal/server/repositories/repomanager"
	"github.com/rentproof/rentproof/internal/server/services"
	"github.com/rentproof/rentproof/internal/server/storage"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// App holds the fully wired server.
type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *api.Server
}

// NewApp builds the application from configuration: opens the database,
// waits for it to come up, runs migrations and wires every service.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	// The database container may still be starting; back off instead of
	// failing the boot.
	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			logger.Warn(ctx, "database not ready", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	store := storage.NewS3Store(storage.S3Config{
		AccessKey:    cfg.S3RootUser,
		SecretKey:    cfg.S3RootPassword,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})

	var mail mailer.Mailer = mailer.NewNoopMailer()
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	}

	checkout := payments.NewStripeCheckout(payments.StripeConfig{
		SecretKey:  cfg.StripeSecretKey,
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
		Currency:   "eur",
	})

	audit := services.NewAuditService(db, repos, logger)
	entitlements := services.NewEntitlementService(db, repos, checkout, audit, logger, cfg.AdminEmails)
	lifecycle := services.NewLifecycleService(db, repos, audit, mail, store, entitlements.IsAdmin, logger)
	uploads := services.NewUploadService(db, repos, store, audit, logger)

	handler := api.NewHandler(lifecycle, uploads, entitlements, audit, db.PingContext, logger)
	srv := api.NewServer(cfg.EndpointAddrHTTP, handler, api.BearerAuth([]byte(cfg.SecretKey)), logger, cfg.ShutdownTimeout)

	return &App{config: cfg, logger: logger, db: db, server: srv}, nil
}

// Run serves HTTP until shutdown, then closes the database.
func (app *App) Run(ctx context.Context) error {
	defer func() {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close failed", "error", err)
		}
	}()

	return app.server.Run(ctx)
}
