package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"invoicepost/internal/invoice"
	"invoicepost/internal/models"
	"invoicepost/internal/pumapi"
)

// Keywords matched against the raw session-type labels when bucketing.
const (
	keywordAutonomous = "autonomous"
	keywordAssisted   = "assisted"
	keywordTraining   = "training"
)

// BillingSource is the external facility-management API the run pulls from.
type BillingSource interface {
	GetInvoice(ctx context.Context, invoiceRef string) ([]pumapi.RosterEntry, error)
	GetInvoiceDetails(ctx context.Context, invoiceRef, code string) (string, error)
	GetGroup(ctx context.Context, groupRef string) (string, error)
}

// RunOptions carries the filter lists for one invoice run. Include and
// Exclude entries may be grant codes or contact emails: codes narrow the
// roster up front, emails filter the resolved recipients at the end.
type RunOptions struct {
	Include    []string
	Exclude    []string
	SplitCodes []string
	OnlyAdmin  []string
}

// GroupResult is one group's completed computation, ready for rendering and
// delivery.
type GroupResult struct {
	Recipient  models.Recipient
	Autonomous []models.Session
	Assisted   []models.Session
	Training   []models.Session
}

// SkippedGroup records a group that could not be processed.
type SkippedGroup struct {
	Code   string
	Reason string
}

// RunReport is the outcome of one invoice run.
type RunReport struct {
	Date    invoice.InvoiceDate
	Results []GroupResult
	Skipped []SkippedGroup
}

// InvoiceService drives the per-group charge pipeline for one invoice run:
// roster fetch, filtering, split-code redistribution, parsing, aggregation,
// recipient resolution.
type InvoiceService struct {
	source    BillingSource
	outputDir string
	logger    *zap.Logger
}

// NewInvoiceService builds the orchestrator.
func NewInvoiceService(source BillingSource, outputDir string, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{
		source:    source,
		outputDir: outputDir,
		logger:    logger,
	}
}

// Run processes every group on the invoice roster plus every configured split
// code, in that order. A failure inside one group is logged and that group
// skipped; the run only aborts on bad configuration or a roster fetch
// failure, since without the roster there is nothing to process.
func (s *InvoiceService) Run(ctx context.Context, invoiceRef string, opts RunOptions) (*RunReport, error) {
	if len(opts.Include) > 0 && len(opts.Exclude) > 0 {
		return nil, fmt.Errorf("%w: include and exclude lists are mutually exclusive", invoice.ErrConfiguration)
	}

	date, err := invoice.ParseInvoiceDate(invoiceRef)
	if err != nil {
		return nil, err
	}

	roster, err := s.source.GetInvoice(ctx, invoiceRef)
	if err != nil {
		return nil, err
	}
	s.logger.Info("invoice roster fetched",
		zap.String("invoice_ref", invoiceRef),
		zap.Int("groups", len(roster)),
	)

	includeCodes, includeEmails := splitListEntries(opts.Include)
	excludeCodes, excludeEmails := splitListEntries(opts.Exclude)

	var billedCodes []string
	for _, entry := range roster {
		if entry.Code == "" {
			continue
		}
		if len(includeCodes) > 0 && !contains(includeCodes, entry.Code) {
			continue
		}
		if contains(excludeCodes, entry.Code) {
			continue
		}
		if partOfSplitCode(entry.Code, opts.SplitCodes) {
			// Billed later under the compound key instead.
			continue
		}
		billedCodes = append(billedCodes, entry.Code)
	}
	billedCodes = append(billedCodes, opts.SplitCodes...)

	report := &RunReport{Date: date}
	for _, code := range billedCodes {
		result, err := s.processGroup(ctx, invoiceRef, date, code, opts.OnlyAdmin)
		if err != nil {
			s.logger.Warn("skipping group",
				zap.String("grant_code", code),
				zap.Error(err),
			)
			report.Skipped = append(report.Skipped, SkippedGroup{Code: code, Reason: err.Error()})
			continue
		}

		charges := result.Recipient.Charges
		s.logger.Info("group charges computed",
			zap.String("grant_code", code),
			zap.String("group", result.Recipient.GroupID),
			zap.String("autonomous_charge", charges.Autonomous),
			zap.String("assisted_charge", charges.Assisted),
			zap.String("training_charge", charges.Training),
			zap.String("grand_total", charges.GrandTotal),
			zap.Bool("fee_adjusted", charges.FeeAdjusted),
			zap.Bool("subsidy_adjusted", charges.SubsidyAdjusted),
		)
		report.Results = append(report.Results, *result)
	}

	report.Results = filterByHeadEmail(report.Results, includeEmails, excludeEmails)
	return report, nil
}

// processGroup runs the full pipeline for one billed code: detail fetch,
// parse, classify, sum, adjustment detection, recipient resolution.
func (s *InvoiceService) processGroup(ctx context.Context, invoiceRef string, date invoice.InvoiceDate, code string, onlyAdmin []string) (*GroupResult, error) {
	details, err := s.source.GetInvoiceDetails(ctx, invoiceRef, code)
	if err != nil {
		return nil, err
	}

	rows, err := invoice.ParseDetails(details)
	if err != nil {
		return nil, err
	}
	sessions := invoice.SessionsFromRows(rows, s.logger)

	groupCode, err := invoice.GroupCode(rows)
	if err != nil {
		return nil, err
	}

	autonomous := invoice.Classify(sessions, keywordAutonomous)
	assisted := invoice.Classify(sessions, keywordAssisted)
	training := invoice.Classify(sessions, keywordTraining)
	feeFlag, subsidyFlag := invoice.DetectAdjustments(sessions)

	record, err := s.source.GetGroup(ctx, groupCode)
	if err != nil {
		return nil, err
	}
	recipient, err := models.RecipientFromRecord(record)
	if err != nil {
		return nil, err
	}

	recipient.Charges = models.ChargeSummary{
		Autonomous:      invoice.SumAmount(autonomous),
		Assisted:        invoice.SumAmount(assisted),
		Training:        invoice.SumAmount(training),
		GrandTotal:      invoice.GrandTotal(autonomous, assisted, training),
		FeeAdjusted:     feeFlag,
		SubsidyAdjusted: subsidyFlag,
	}
	recipient.ChargedGrantCode = code
	recipient.DocumentPath = filepath.Join(
		s.outputDir, date.Year, date.MonthName,
		invoice.DocumentFileName(invoiceRef, code),
	)
	recipient.AdminIsCC = recipient.AdminEmail != ""
	if contains(onlyAdmin, recipient.GroupID) {
		recipient.SendOnlyToAdmin = true
	}

	return &GroupResult{
		Recipient:  *recipient,
		Autonomous: autonomous,
		Assisted:   assisted,
		Training:   training,
	}, nil
}

// splitListEntries separates a mixed filter list into grant codes and emails.
func splitListEntries(entries []string) (codes, emails []string) {
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "@") {
			emails = append(emails, entry)
		} else {
			codes = append(codes, entry)
		}
	}
	return codes, emails
}

// partOfSplitCode reports whether a roster code is a component of any
// configured compound split key.
func partOfSplitCode(code string, splitCodes []string) bool {
	for _, split := range splitCodes {
		if strings.Contains(split, code) {
			return true
		}
	}
	return false
}

func filterByHeadEmail(results []GroupResult, includeEmails, excludeEmails []string) []GroupResult {
	if len(includeEmails) == 0 && len(excludeEmails) == 0 {
		return results
	}
	filtered := make([]GroupResult, 0, len(results))
	for _, result := range results {
		email := result.Recipient.HeadEmail
		if len(includeEmails) > 0 && !contains(includeEmails, email) {
			continue
		}
		if contains(excludeEmails, email) {
			continue
		}
		filtered = append(filtered, result)
	}
	return filtered
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
