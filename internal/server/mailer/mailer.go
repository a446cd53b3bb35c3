// Package mailer defines the transactional email collaborator. Every call
// site treats a send failure as non-fatal to the primary operation.
package mailer

import "context"

// Message is one transactional email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer sends transactional email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
