package utils

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailNotifier sends plain notification mails through SendGrid.
type EmailNotifier struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
	logger    *Logger
}

func NewEmailNotifier(apiKey, fromEmail string, logger *Logger) (*EmailNotifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("SENDGRID_API_KEY is not set")
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &EmailNotifier{
		client:    sendgrid.NewSendClient(apiKey),
		fromName:  "Fitly",
		fromEmail: fromEmail,
		logger:    logger,
	}, nil
}

func (n *EmailNotifier) Send(ctx context.Context, toName, toEmail, subject, textContent, htmlContent string) error {
	from := mail.NewEmail(n.fromName, n.fromEmail)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, textContent, htmlContent)

	response, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sending email to %s: %w", toEmail, err)
	}
	if response.StatusCode >= 400 {
		n.logger.Warn("sendgrid rejected email", "status", response.StatusCode, "body", response.Body)
		return fmt.Errorf("failed to send email, status code: %d", response.StatusCode)
	}
	n.logger.Debug("email sent", "to", toEmail, "status", response.StatusCode)
	return nil
}
