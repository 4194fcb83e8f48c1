package card

import (
	"context"

	"github.com/willemschots/cardhub/internal/email"
)

// NotificationKind identifies the message sent to a card email.
type NotificationKind string

const (
	NotifyEditRequest      NotificationKind = "edit-request"
	NotifyDeleteRequest    NotificationKind = "delete-request"
	NotifyEmailEditRequest NotificationKind = "email-edit-request"
	NotifyActivateRequest  NotificationKind = "activate-request"
	NotifyEmailChanged     NotificationKind = "email-changed"
)

// NotificationKinds lists every kind, each needs an email template.
var NotificationKinds = []NotificationKind{
	NotifyEditRequest,
	NotifyDeleteRequest,
	NotifyEmailEditRequest,
	NotifyActivateRequest,
	NotifyEmailChanged,
}

// Notifier delivers links to card owners.
type Notifier interface {
	Send(ctx context.Context, kind NotificationKind, recipient email.Address, link string) error
}

// Emailer is used to send templated emails.
type Emailer interface {
	SendMessage(ctx context.Context, template string, recipient email.Address, data any) error
}

// NotificationData is passed to the email templates.
type NotificationData struct {
	Link string
}

// MailNotifier is a Notifier that uses one email template per kind.
type MailNotifier struct {
	emailer Emailer
}

func NewMailNotifier(emailer Emailer) *MailNotifier {
	return &MailNotifier{emailer: emailer}
}

func (n *MailNotifier) Send(ctx context.Context, kind NotificationKind, recipient email.Address, link string) error {
	return n.emailer.SendMessage(ctx, string(kind), recipient, NotificationData{Link: link})
}
