package notifier

import (
	"context"
	"fmt"
	"log"

	"github.com/rentbase/billing-engine/internal/domain"
)

// Sender delivers outbound reminder and invoice messages. Delivery is
// best-effort: callers log and count failures but never roll back a ledger
// mutation because a message did not go out.
type Sender interface {
	// Send dispatches one message of the given kind. record is nil for
	// consolidated reminders covering the whole agreement.
	Send(ctx context.Context, kind domain.ReminderKind, agreement *domain.Agreement, record *domain.PaymentRecord) error
}

// InvoiceData is what the renderer needs to produce an invoice document.
// The renderer does formatting only; no business logic.
type InvoiceData struct {
	InvoiceNumber string
	AgreementID   string
	CustomerName  string
	CustomerEmail string
	PeriodKey     string
	Amount        string
	PaidDate      string
}

// Renderer turns invoice data into a deliverable document.
type Renderer interface {
	Render(data InvoiceData) ([]byte, error)
}

// LogSender writes every message to the process log. Stands in for the
// marketplace's email/SMS service in development and tests.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Send(ctx context.Context, kind domain.ReminderKind, agreement *domain.Agreement, record *domain.PaymentRecord) error {
	if record != nil {
		log.Printf("notify %s: agreement=%s period=%s due=%s balance=%s to=%s",
			kind, agreement.AgreementID, record.PeriodKey,
			record.DueDate.Format("2006-01-02"), record.RemainingBalance(), agreement.CustomerEmail)
		return nil
	}
	log.Printf("notify %s: agreement=%s remaining=%s to=%s",
		kind, agreement.AgreementID, agreement.RemainingAmount(), agreement.CustomerEmail)
	return nil
}

// TextRenderer renders a plain-text invoice.
type TextRenderer struct{}

func NewTextRenderer() *TextRenderer {
	return &TextRenderer{}
}

func (r *TextRenderer) Render(data InvoiceData) ([]byte, error) {
	doc := fmt.Sprintf(
		"INVOICE %s\nAgreement: %s\nBilled to: %s <%s>\nPeriod: %s\nAmount: %s\nPaid: %s\n",
		data.InvoiceNumber, data.AgreementID, data.CustomerName, data.CustomerEmail,
		data.PeriodKey, data.Amount, data.PaidDate,
	)
	return []byte(doc), nil
}
