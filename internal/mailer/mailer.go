// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package mailer is the transactional email external collaborator
userservice calls as sendEmail(templateKey, to, context) (spec.md §1).
The core never depends on a concrete provider; [Mailer] is the whole
contract, and [LogMailer] is the reference/dev adapter this repository
ships, the way Jeffreasy-LaventeCareAuthSystems ships a ConsoleEmailSender
behind the same pattern.
*/
package mailer

import (
	"context"
	"log/slog"
)

// TemplateKey names one of the emails.<key> entries in configuration
// (spec.md §6).
type TemplateKey string

const (
	ConfirmEmail   TemplateKey = "confirmEmail"
	ForgotPassword TemplateKey = "forgotPassword"
)

// Mailer sends a templated transactional email.
type Mailer interface {
	Send(ctx context.Context, template TemplateKey, to string, data map[string]any) error
}

// LogMailer logs the outgoing email instead of dispatching it through a
// real provider. When NoEmail is set (testMode.noEmail, spec.md §6), Send
// returns success without even logging the payload's sensitive fields.
type LogMailer struct {
	Logger  *slog.Logger
	NoEmail bool
}

// NewLogMailer returns a LogMailer writing through logger.
func NewLogMailer(logger *slog.Logger, noEmail bool) *LogMailer {
	return &LogMailer{Logger: logger, NoEmail: noEmail}
}

func (m *LogMailer) Send(_ context.Context, template TemplateKey, to string, data map[string]any) error {
	if m.NoEmail {
		return nil
	}
	m.Logger.Info("email sent",
		"template", string(template),
		"to", to,
		"data", data,
	)
	return nil
}

var _ Mailer = (*LogMailer)(nil)
