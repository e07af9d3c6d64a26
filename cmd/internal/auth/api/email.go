package authapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/resend/resend-go/v3"
)

// PasswordResetMessage is the payload for a password reset email.
type PasswordResetMessage struct {
	UserID    string
	Email     string
	FirstName string
	ResetURL  string
	ExpiresAt time.Time
}

// EmailSender delivers account emails.
type EmailSender interface {
	SendPasswordReset(ctx context.Context, msg PasswordResetMessage) error
}

// NoopEmailSender drops every message. It is the default when no provider
// is configured.
type NoopEmailSender struct{}

// SendPasswordReset does nothing.
func (NoopEmailSender) SendPasswordReset(_ context.Context, _ PasswordResetMessage) error {
	return nil
}

// ResendEmailSender sends email through the Resend API.
type ResendEmailSender struct {
	client *resend.Client
	from   string
}

// NewResendEmailSender returns a sender for apiKey. from must be an address
// on a domain verified in Resend, optionally with a display name.
func NewResendEmailSender(apiKey, from string) (*ResendEmailSender, error) {
	apiKey = strings.TrimSpace(apiKey)
	from = strings.TrimSpace(from)
	if apiKey == "" {
		return nil, errors.New("resend: api key is required")
	}
	if from == "" {
		return nil, errors.New("resend: sender address is required")
	}
	return &ResendEmailSender{client: resend.NewClient(apiKey), from: from}, nil
}

var resetTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body style="font-family:Arial,Helvetica,sans-serif;">
  <h2>Reset your cronapp password</h2>
  <p>Hi {{.FirstName}},</p>
  <p>We received a request to reset your password. The link below works once and expires at {{.Expires}}.</p>
  <p><a href="{{.URL}}">Reset password</a></p>
  <p>If you did not ask for this, you can ignore this email.</p>
</body>
</html>`))

// SendPasswordReset sends the reset link in msg.
func (s *ResendEmailSender) SendPasswordReset(ctx context.Context, msg PasswordResetMessage) error {
	var body bytes.Buffer
	err := resetTemplate.Execute(&body, struct {
		FirstName string
		URL       string
		Expires   string
	}{
		FirstName: msg.FirstName,
		URL:       msg.ResetURL,
		Expires:   msg.ExpiresAt.UTC().Format("15:04 MST"),
	})
	if err != nil {
		return fmt.Errorf("render password reset email: %w", err)
	}

	_, err = s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.Email},
		Subject: "Reset your cronapp password",
		Html:    body.String(),
	})
	if err != nil {
		return fmt.Errorf("send password reset email: %w", err)
	}
	return nil
}
