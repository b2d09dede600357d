// Package mail composes the fixed transactional emails and sends them
// through the tenant SMTP server.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"crm-gin/internal/models"
)

// Transport delivers a composed message. It is resolved per tenant
// because each tenant configures its own SMTP server.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
	// Test dials the server and authenticates without sending anything
	Test(ctx context.Context) error
}

// TransportFactory builds a transport from SMTP settings
type TransportFactory func(cfg models.SMTPSettings) Transport

type smtpTransport struct {
	cfg     models.SMTPSettings
	timeout time.Duration
}

func NewSMTPTransport(cfg models.SMTPSettings) Transport {
	return &smtpTransport{cfg: cfg, timeout: 15 * time.Second}
}

func (t *smtpTransport) addr() string {
	return net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
}

// connect opens an authenticated SMTP session honouring the security mode
func (t *smtpTransport) connect(ctx context.Context) (*smtp.Client, error) {
	dialer := &net.Dialer{Timeout: t.timeout}
	tlsConfig := &tls.Config{ServerName: t.cfg.Host, MinVersion: tls.VersionTLS12}

	var conn net.Conn
	var err error
	if t.cfg.Security == "tls" {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", t.addr())
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", t.addr())
	}
	if err != nil {
		return nil, fmt.Errorf("smtp dial %s: %w", t.addr(), err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(t.timeout))
	}

	c, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}

	if t.cfg.Security == "" || t.cfg.Security == "starttls" {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsConfig); err != nil {
				c.Close()
				return nil, fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}

	if t.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)); err != nil {
			c.Close()
			return nil, fmt.Errorf("smtp auth: %w", err)
		}
	}
	return c, nil
}

func (t *smtpTransport) Test(ctx context.Context) error {
	c, err := t.connect(ctx)
	if err != nil {
		return err
	}
	return c.Quit()
}

func (t *smtpTransport) Send(ctx context.Context, msg *Message) error {
	if msg.From == "" {
		msg.From = FormatAddress(t.cfg.FromName, t.cfg.FromEmail)
	}
	raw, err := msg.Bytes()
	if err != nil {
		return err
	}

	c, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Mail(t.cfg.FromEmail); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range msg.To {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return c.Quit()
}
