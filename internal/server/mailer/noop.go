package mailer

import "context"

// NoopMailer drops every message. Used in development when no SMTP relay is
// configured.
type NoopMailer struct{}

func NewNoopMailer() *NoopMailer { return &NoopMailer{} }

func (NoopMailer) Send(ctx context.Context, msg Message) error { return nil }
