package app

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"invoicepost/internal/config"
	"invoicepost/internal/db"
	"invoicepost/internal/mailer"
	"invoicepost/internal/pumapi"
	"invoicepost/internal/redisstore"
	"invoicepost/internal/render"
	"invoicepost/internal/repository"
	"invoicepost/internal/service"
)

// App wires invoicepost dependencies for one invoice run.
type App struct {
	service     *service.InvoiceService
	mailer      *mailer.Mailer
	runRepo     *repository.RunRepository
	sqlDB       *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// RunInput describes one invoice run.
type RunInput struct {
	InvoiceRef string
	Filters    service.RunOptions

	// DryRun renders documents and writes audit rows but sends no email.
	DryRun bool
}

// New constructs the application graph. The Postgres audit and the Redis
// delivery ledger are optional: each is wired only when configured.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	httpClient := pumapi.NewDefaultHTTPClient(cfg.BillingTimeout())
	billingClient := pumapi.NewClient(cfg.Billing.BaseURL, cfg.Billing.APIKey, httpClient, logger)

	invoiceService := service.NewInvoiceService(billingClient, cfg.Invoice.OutputDir, logger)

	var (
		sqlDB   *sql.DB
		runRepo *repository.RunRepository
	)
	if cfg.Database.DSN != "" {
		var err error
		sqlDB, err = db.NewPostgresDB(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		runRepo = repository.NewRunRepository(sqlDB)
	}

	var (
		redisClient *redis.Client
		ledger      mailer.Ledger
	)
	if cfg.Redis.Addr != "" {
		var err error
		redisClient, err = redisstore.NewClient(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			if sqlDB != nil {
				sqlDB.Close()
			}
			return nil, err
		}
		ledger = redisstore.NewDeliveryLedger(redisClient, cfg.LedgerTTL())
	}

	invoiceMailer := mailer.New(mailer.Options{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		From:     cfg.SMTP.From,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
	}, ledger, logger)

	return &App{
		service:     invoiceService,
		mailer:      invoiceMailer,
		runRepo:     runRepo,
		sqlDB:       sqlDB,
		redisClient: redisClient,
		logger:      logger,
	}, nil
}

// Run executes one invoice run: compute charges for every group, render each
// document, record the audit rows, and deliver. Per-group failures past the
// orchestrator are logged and that group is left undelivered; the rest of the
// batch continues.
func (a *App) Run(ctx context.Context, input RunInput) error {
	runID := uuid.NewString()
	a.logger.Info("invoice run starting",
		zap.String("run_id", runID),
		zap.String("invoice_ref", input.InvoiceRef),
		zap.Bool("dry_run", input.DryRun),
	)

	report, err := a.service.Run(ctx, input.InvoiceRef, input.Filters)
	if err != nil {
		return err
	}

	for _, skipped := range report.Skipped {
		a.audit(ctx, &repository.RunRecord{
			RunID:      runID,
			InvoiceRef: input.InvoiceRef,
			BilledCode: skipped.Code,
			Skipped:    true,
			SkipReason: skipped.Reason,
		})
	}

	delivered := 0
	for _, result := range report.Results {
		doc := render.Document{
			InvoiceRef: input.InvoiceRef,
			Date:       report.Date,
			Recipient:  result.Recipient,
			Autonomous: result.Autonomous,
			Assisted:   result.Assisted,
			Training:   result.Training,
		}
		if err := render.WriteDocument(doc); err != nil {
			a.logger.Error("failed to render invoice document",
				zap.String("grant_code", result.Recipient.ChargedGrantCode),
				zap.Error(err),
			)
			continue
		}

		charges := result.Recipient.Charges
		a.audit(ctx, &repository.RunRecord{
			RunID:            runID,
			InvoiceRef:       input.InvoiceRef,
			BilledCode:       result.Recipient.ChargedGrantCode,
			GroupID:          result.Recipient.GroupID,
			AutonomousCharge: charges.Autonomous,
			AssistedCharge:   charges.Assisted,
			TrainingCharge:   charges.Training,
			GrandTotal:       charges.GrandTotal,
			FeeAdjusted:      charges.FeeAdjusted,
			SubsidyAdjusted:  charges.SubsidyAdjusted,
		})

		if input.DryRun {
			continue
		}
		if err := a.mailer.Send(ctx, result.Recipient, input.InvoiceRef); err != nil {
			a.logger.Error("failed to deliver invoice",
				zap.String("grant_code", result.Recipient.ChargedGrantCode),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}

	a.logger.Info("invoice run finished",
		zap.String("run_id", runID),
		zap.Int("processed", len(report.Results)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("delivered", delivered),
	)
	return nil
}

func (a *App) audit(ctx context.Context, record *repository.RunRecord) {
	if a.runRepo == nil {
		return
	}
	if err := a.runRepo.Create(ctx, record); err != nil {
		a.logger.Warn("failed to write audit row",
			zap.String("billed_code", record.BilledCode),
			zap.Error(err),
		)
	}
}

// Close releases resources.
func (a *App) Close() {
	if a.sqlDB != nil {
		if err := a.sqlDB.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
