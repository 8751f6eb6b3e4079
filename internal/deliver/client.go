// Package deliver transmits composed messages to the configured mail
// relay over an authenticated, encrypted submission session.
package deliver

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/foxzi/outreach/internal/dkim"
	"github.com/foxzi/outreach/internal/recipient"
)

// session is the part of the SMTP client conversation the delivery
// client depends on. relaySession adapts *smtp.Client to it; tests
// substitute a fake through the dial hook.
type session interface {
	Auth(a sasl.Client) error
	Mail(from string, opts *smtp.MailOptions) error
	Rcpt(to string, opts *smtp.RcptOptions) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// relaySession narrows *smtp.Client's Data return to the io.WriteCloser
// the session contract promises.
type relaySession struct {
	*smtp.Client
}

var _ session = relaySession{}

func (s relaySession) Data() (io.WriteCloser, error) {
	return s.Client.Data()
}

// Config contains relay connection settings.
type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Timeout    time.Duration
	MaxRetries int           // attempts per message
	Backoff    time.Duration // fixed pause between attempts
}

// Client sends messages through an SMTP relay. One session is opened
// per message; a transient failure is retried a bounded number of
// times before the recipient is reported failed.
type Client struct {
	cfg    Config
	logger *slog.Logger
	signer *dkim.Signer

	dial  func(ctx context.Context) (session, error)
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a delivery client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 5 * time.Second
	}

	c := &Client{
		cfg:    cfg,
		logger: logger,
	}
	c.dial = c.dialSession
	c.sleep = sleepCtx
	return c
}

// SetSigner enables DKIM signing of outgoing messages.
func (c *Client) SetSigner(signer *dkim.Signer) {
	c.signer = signer
}

// Send transmits one raw message. Temporary transport failures are
// retried with a fixed backoff; authentication rejection and permanent
// relay errors are returned immediately. The secret and the message
// body never reach the log; the recipient appears only as a hash.
func (c *Client) Send(ctx context.Context, from, to string, raw []byte) error {
	data := raw
	if c.signer != nil {
		signed, err := c.signer.Sign(raw)
		if err != nil {
			c.logger.Warn("DKIM signing failed, sending unsigned",
				"domain", c.signer.Domain(),
				"error", err,
			)
		} else {
			data = signed
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.sendOnce(ctx, from, to, data)
		if err == nil {
			c.logger.Info("message delivered",
				"to", HashAddr(to),
				"attempt", attempt,
			)
			return nil
		}

		if IsAuthError(err) {
			return err
		}

		lastErr = err
		if !IsTemporaryError(err) {
			c.logger.Warn("permanent delivery failure",
				"to", HashAddr(to),
				"error", err,
			)
			return err
		}

		c.logger.Warn("transient delivery failure",
			"to", HashAddr(to),
			"attempt", attempt,
			"error", err,
		)

		if attempt < c.cfg.MaxRetries {
			if err := c.sleep(ctx, c.cfg.Backoff); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("delivery failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

// sendOnce runs one full submission conversation.
func (c *Client) sendOnce(ctx context.Context, from, to string, data []byte) error {
	sess, err := c.dial(ctx)
	if err != nil {
		return &DeliveryError{
			Temporary: true,
			Message:   fmt.Sprintf("connection to relay failed: %v", err),
		}
	}
	defer sess.Close()

	auth := sasl.NewPlainClient("", c.cfg.Username, c.cfg.Password)
	if err := sess.Auth(auth); err != nil {
		return &AuthError{Err: err}
	}

	if err := sess.Mail(from, nil); err != nil {
		return categorizeError(err, "MAIL FROM")
	}
	if err := sess.Rcpt(to, nil); err != nil {
		return categorizeError(err, "RCPT TO")
	}

	wc, err := sess.Data()
	if err != nil {
		return categorizeError(err, "DATA")
	}
	if _, err := bytes.NewReader(data).WriteTo(wc); err != nil {
		wc.Close()
		return &DeliveryError{
			Temporary: true,
			Message:   fmt.Sprintf("failed to write message data: %v", err),
		}
	}
	if err := wc.Close(); err != nil {
		return categorizeError(err, "DATA close")
	}

	sess.Quit()
	return nil
}

// dialSession opens a connection to the relay and upgrades it with
// STARTTLS. An unencrypted session is never used: a relay without
// STARTTLS is a permanent error.
func (c *Client) dialSession(ctx context.Context) (session, error) {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))

	dialer := &net.Dialer{Timeout: c.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connection failed to %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(c.cfg.Timeout))
	}

	tlsConfig := &tls.Config{
		ServerName: c.cfg.Host,
		MinVersion: tls.VersionTLS12,
	}
	client, err := smtp.NewClientStartTLS(conn, tlsConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("STARTTLS negotiation failed: %w", err)
	}

	return relaySession{client}, nil
}

// HashAddr returns a short privacy-preserving identifier for an email
// address, suitable for log lines.
func HashAddr(email string) string {
	sum := sha256.Sum256([]byte(recipient.Normalize(email)))
	return hex.EncodeToString(sum[:])[:16]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
