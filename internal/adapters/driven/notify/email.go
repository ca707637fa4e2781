package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/resend/resend-go/v2"

	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Channel = (*Email)(nil)

// EmailScheme is the handle prefix for email addresses ("email:a@b.c").
const EmailScheme = "email"

// emailSender is the part of the Resend client Email uses.
type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Email delivers notifications through Resend.
type Email struct {
	sender emailSender
	from   string
}

// NewEmail creates an Email channel sending as from.
func NewEmail(apiKey, from string) *Email {
	return &Email{
		sender: resend.NewClient(apiKey).Emails,
		from:   from,
	}
}

func (e *Email) Scheme() string {
	return EmailScheme
}

// subject is the first line of the notification text ("Repo: <url>").
func subject(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return "starwatch: " + strings.TrimPrefix(line, "Repo: ")
}

// Send emails text to address.
func (e *Email) Send(ctx context.Context, address, text string) error {
	if !strings.Contains(address, "@") {
		return retry.Unrecoverable(fmt.Errorf("email: invalid address %q", address))
	}

	_, err := e.sender.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    e.from,
		To:      []string{address},
		Subject: subject(text),
		Text:    text,
	})
	if err != nil {
		return fmt.Errorf("email: send: %w", err)
	}
	return nil
}
