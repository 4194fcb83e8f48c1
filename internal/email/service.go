package email

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// TemplateElement is used by a renderer to identify the different parts of an email template.
type TemplateElement string

const (
	ElementSubject TemplateElement = "subject"
	ElementBody    TemplateElement = "body"
)

// Renderer is responsible for rendering email templates.
type Renderer interface {
	Render(w io.Writer, name string, element TemplateElement, data any) error
}

// Sender is responsible for actually sending an email.
type Sender interface {
	Send(ctx context.Context, from, recipient Address, subject, body string) error
}

// Service renders named templates and hands the result to a Sender.
type Service struct {
	from     Address
	renderer Renderer
	sender   Sender
}

func NewService(from Address, renderer Renderer, sender Sender) *Service {
	return &Service{
		from:     from,
		renderer: renderer,
		sender:   sender,
	}
}

// SendMessage renders template name with data and sends it to recipient.
func (s *Service) SendMessage(ctx context.Context, name string, recipient Address, data any) error {
	var subject, body strings.Builder

	err := s.renderer.Render(&subject, name, ElementSubject, data)
	if err != nil {
		return fmt.Errorf("failed to render subject of %q: %w", name, err)
	}

	err = s.renderer.Render(&body, name, ElementBody, data)
	if err != nil {
		return fmt.Errorf("failed to render body of %q: %w", name, err)
	}

	err = s.sender.Send(ctx, s.from, recipient, strings.TrimSpace(subject.String()), body.String())
	if err != nil {
		return fmt.Errorf("failed to send %q: %w", name, err)
	}

	return nil
}
