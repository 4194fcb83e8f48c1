package email

import (
	"context"
	"sync"
)

// Message is an email captured by MemorySender.
type Message struct {
	From      Address
	Recipient Address
	Subject   string
	Body      string
}

// MemorySender keeps sent emails in memory. Safe for concurrent use.
type MemorySender struct {
	mu     sync.Mutex
	emails []Message
}

func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

func (s *MemorySender) Send(_ context.Context, from, recipient Address, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.emails = append(s.emails, Message{
		From:      from,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	})
	return nil
}

// Emails returns a copy of the emails sent so far.
func (s *MemorySender) Emails() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.emails))
	copy(out, s.emails)
	return out
}
