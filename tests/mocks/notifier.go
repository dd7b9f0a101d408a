package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/rentbase/billing-engine/internal/domain"
)

// SentMessage records one dispatch through the RecorderSender.
type SentMessage struct {
	Kind        domain.ReminderKind
	AgreementID string
	PeriodKey   string
}

// RecorderSender captures outbound messages instead of delivering them.
// FailAll makes every send fail, for exercising the best-effort paths.
type RecorderSender struct {
	mu      sync.Mutex
	Sent    []SentMessage
	FailAll bool
}

func NewRecorderSender() *RecorderSender {
	return &RecorderSender{}
}

func (s *RecorderSender) Send(ctx context.Context, kind domain.ReminderKind, agreement *domain.Agreement, record *domain.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAll {
		return errors.New("delivery failed")
	}
	msg := SentMessage{Kind: kind, AgreementID: agreement.AgreementID}
	if record != nil {
		msg.PeriodKey = record.PeriodKey
	}
	s.Sent = append(s.Sent, msg)
	return nil
}

// Messages returns a snapshot of everything sent so far.
func (s *RecorderSender) Messages() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SentMessage, len(s.Sent))
	copy(out, s.Sent)
	return out
}
