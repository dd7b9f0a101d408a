package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/rentbase/billing-engine/internal/domain"
)

type agreementRepository struct {
	db *sqlx.DB
}

func NewAgreementRepository(db *sqlx.DB) AgreementRepository {
	return &agreementRepository{db: db}
}

func (r *agreementRepository) Create(ctx context.Context, agreement *domain.Agreement) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO agreements (id, agreement_id, customer_name, customer_email, customer_phone,
			period_amount, total_amount, start_date, end_date, status,
			last_reminder_sent_at, invoice_number, total_paid, gateway_references,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = tx.ExecContext(ctx, query,
		agreement.ID,
		agreement.AgreementID,
		agreement.CustomerName,
		agreement.CustomerEmail,
		agreement.CustomerPhone,
		agreement.PeriodAmount,
		agreement.TotalAmount,
		agreement.StartDate,
		agreement.EndDate,
		agreement.Status,
		agreement.LastReminderSentAt,
		agreement.InvoiceNumber,
		agreement.TotalPaid,
		pq.StringArray(agreement.Ledger.ConsumedReferences),
		agreement.CreatedAt,
		agreement.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if err = upsertRecords(ctx, tx, agreement.Ledger.Records); err != nil {
		return err
	}

	return tx.Commit()
}

// agreementRow adapts the agreements row for sqlx scanning; the reference
// array needs the pq driver type, which the domain does not carry.
type agreementRow struct {
	domain.Agreement
	GatewayReferences pq.StringArray `db:"gateway_references"`
}

func (r *agreementRepository) GetByAgreementID(ctx context.Context, agreementID string) (*domain.Agreement, error) {
	query := `
		SELECT id, agreement_id, customer_name, customer_email, customer_phone,
			period_amount, total_amount, start_date, end_date, status,
			last_reminder_sent_at, invoice_number, total_paid, gateway_references,
			created_at, updated_at
		FROM agreements
		WHERE agreement_id = $1
	`

	var row agreementRow
	if err := r.db.GetContext(ctx, &row, query, agreementID); err != nil {
		return nil, err
	}
	agreement := row.Agreement
	agreement.Ledger.ConsumedReferences = []string(row.GatewayReferences)

	recordsQuery := `
		SELECT id, agreement_id, period_key, amount, paid_amount, due_date, paid_date,
			status, method, external_reference, invoice_number, created_at
		FROM payment_records
		WHERE agreement_id = $1
		ORDER BY period_key
	`
	if err := r.db.SelectContext(ctx, &agreement.Ledger.Records, recordsQuery, agreementID); err != nil {
		return nil, err
	}

	return &agreement, nil
}

func (r *agreementRepository) Save(ctx context.Context, agreement *domain.Agreement) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE agreements
		SET status = $2, last_reminder_sent_at = $3, invoice_number = $4,
			total_paid = $5, gateway_references = $6, updated_at = $7
		WHERE agreement_id = $1
	`
	_, err = tx.ExecContext(ctx, query,
		agreement.AgreementID,
		agreement.Status,
		agreement.LastReminderSentAt,
		agreement.InvoiceNumber,
		agreement.TotalPaid,
		pq.StringArray(agreement.Ledger.ConsumedReferences),
		time.Now(),
	)
	if err != nil {
		return err
	}

	if err = upsertRecords(ctx, tx, agreement.Ledger.Records); err != nil {
		return err
	}

	return tx.Commit()
}

// upsertRecords writes every ledger record, relying on the unique
// (agreement_id, period_key) constraint to keep generation idempotent even
// across concurrent sweeps.
func upsertRecords(ctx context.Context, tx *sqlx.Tx, records []domain.PaymentRecord) error {
	query := `
		INSERT INTO payment_records (id, agreement_id, period_key, amount, paid_amount,
			due_date, paid_date, status, method, external_reference, invoice_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (agreement_id, period_key) DO UPDATE
		SET paid_amount = EXCLUDED.paid_amount,
			paid_date = EXCLUDED.paid_date,
			status = EXCLUDED.status,
			method = EXCLUDED.method,
			external_reference = EXCLUDED.external_reference,
			invoice_number = EXCLUDED.invoice_number
	`
	for _, rec := range records {
		_, err := tx.ExecContext(ctx, query,
			rec.ID,
			rec.AgreementID,
			rec.PeriodKey,
			rec.Amount,
			rec.PaidAmount,
			rec.DueDate,
			rec.PaidDate,
			rec.Status,
			rec.Method,
			rec.ExternalReference,
			rec.InvoiceNumber,
			rec.CreatedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *agreementRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	query := `
		SELECT agreement_id
		FROM agreements
		WHERE status = $1
		ORDER BY created_at
	`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, domain.AgreementStatusActive); err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *agreementRepository) InvoiceNumberExists(ctx context.Context, number string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM agreements WHERE invoice_number = $1
			UNION
			SELECT 1 FROM payment_records WHERE invoice_number = $1
		)
	`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, number); err != nil {
		return false, err
	}

	return exists, nil
}
