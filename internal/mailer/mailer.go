// Package mailer renders survey emails and relays them over SMTP.
package mailer

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by Send when no SMTP relay is configured.
var ErrNotConfigured = errors.New("smtp relay is not configured")

// Message is a rendered email ready to send.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a message. Implementations open and close their own
// connection per call.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
