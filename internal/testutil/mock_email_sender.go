package testutil

import (
	"context"
	"sync"

	"github.com/invoicekit/invoicekit/internal/email"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
)

var _ email.Sender = (*RecordingEmailSender)(nil)

// RecordingEmailSender keeps every message it is asked to send. Set Err to make
// deliveries fail, or Disabled to mimic an unconfigured transport.
type RecordingEmailSender struct {
	mu       sync.Mutex
	Sent     []email.Message
	Err      error
	Disabled bool
}

func NewRecordingEmailSender() *RecordingEmailSender {
	return &RecordingEmailSender{}
}

func (s *RecordingEmailSender) Send(_ context.Context, msg email.Message) (*email.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Disabled {
		return &email.SendResult{Success: false, Error: "email client is disabled"}, nil
	}
	if s.Err != nil {
		return &email.SendResult{Success: false, Error: s.Err.Error()}, ierr.WithError(s.Err).
			WithHint("Email delivery failed").
			Mark(ierr.ErrDeliveryFailed)
	}

	s.Sent = append(s.Sent, msg)
	return &email.SendResult{MessageID: "msg_" + msg.To, Success: true}, nil
}

// Messages returns a copy of the delivered messages
func (s *RecordingEmailSender) Messages() []email.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]email.Message(nil), s.Sent...)
}

func (s *RecordingEmailSender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sent = nil
	s.Err = nil
	s.Disabled = false
}
