package repository

import (
	"context"
	"database/sql"
	"time"
)

// RunRecord is one audit row: a group processed (or skipped) during an
// invoice run.
type RunRecord struct {
	ID               int64
	RunID            string
	InvoiceRef       string
	BilledCode       string
	GroupID          string
	AutonomousCharge string
	AssistedCharge   string
	TrainingCharge   string
	GrandTotal       string
	FeeAdjusted      bool
	SubsidyAdjusted  bool
	Skipped          bool
	SkipReason       string
	CreatedAt        time.Time
}

// RunRepository persists invoice run audit rows.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository returns repository.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new audit row.
func (r *RunRepository) Create(ctx context.Context, record *RunRecord) error {
	const query = `
		INSERT INTO invoice_runs (
			run_id, invoice_ref, billed_code, group_id,
			autonomous_charge, assisted_charge, training_charge, grand_total,
			fee_adjusted, subsidy_adjusted, skipped, skip_reason, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		RETURNING id, created_at
	`
	return r.db.QueryRowContext(ctx, query,
		record.RunID,
		record.InvoiceRef,
		record.BilledCode,
		record.GroupID,
		record.AutonomousCharge,
		record.AssistedCharge,
		record.TrainingCharge,
		record.GrandTotal,
		record.FeeAdjusted,
		record.SubsidyAdjusted,
		record.Skipped,
		record.SkipReason,
	).Scan(&record.ID, &record.CreatedAt)
}

// ListByInvoice returns the audit rows for one invoice reference, most recent
// first.
func (r *RunRepository) ListByInvoice(ctx context.Context, invoiceRef string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
		SELECT id, run_id, invoice_ref, billed_code, group_id,
			autonomous_charge, assisted_charge, training_charge, grand_total,
			fee_adjusted, subsidy_adjusted, skipped, skip_reason, created_at
		FROM invoice_runs
		WHERE invoice_ref = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, invoiceRef, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var record RunRecord
		if err := rows.Scan(
			&record.ID,
			&record.RunID,
			&record.InvoiceRef,
			&record.BilledCode,
			&record.GroupID,
			&record.AutonomousCharge,
			&record.AssistedCharge,
			&record.TrainingCharge,
			&record.GrandTotal,
			&record.FeeAdjusted,
			&record.SubsidyAdjusted,
			&record.Skipped,
			&record.SkipReason,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
