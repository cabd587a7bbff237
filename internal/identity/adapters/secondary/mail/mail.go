// Package mail adapts the Mail Dispatcher port to SMTP via mailyak.
// Delivery is fire-and-forget: the caller (the sign-up flow) logs and
// swallows failures rather than failing the request (spec §7).
package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/domodwyer/mailyak/v3"
)

type Dispatcher struct {
	host      string
	port      string
	username  string
	password  string
	from      string
	verifyURL string
}

func NewDispatcher(host, port, username, password, verifyURL string) *Dispatcher {
	return &Dispatcher{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		from:      username,
		verifyURL: verifyURL,
	}
}

// SendVerificationEmail builds and sends an HTML mail containing a link
// that carries the verification key, honoring ctx's deadline via a
// goroutine + select since net/smtp has no context-aware API.
func (d *Dispatcher) SendVerificationEmail(ctx context.Context, toEmail, verificationKey string) error {
	addr := fmt.Sprintf("%s:%s", d.host, d.port)

	var auth smtp.Auth
	if d.username != "" {
		auth = smtp.PlainAuth("", d.username, d.password, d.host)
	}

	yak := mailyak.New(addr, auth)
	yak.To(toEmail)
	yak.From(d.from)
	yak.FromName("Aegis")
	yak.Subject("Verify your email address")

	link := fmt.Sprintf("%s/auth/verify?key=%s", d.verifyURL, verificationKey)
	yak.HTML().Set(fmt.Sprintf(
		`<p>Thanks for signing up. Click <a href="%s">here</a> to verify your email address.</p>`,
		link,
	))

	done := make(chan error, 1)
	go func() { done <- yak.Send() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
