// Package compose builds per-recipient MIME messages from a fixed
// template and a fixed attachment.
package compose

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	gomail "gopkg.in/gomail.v2"

	"github.com/foxzi/outreach/internal/recipient"
)

// Message is a fully rendered, wire-ready email for one recipient.
type Message struct {
	To      string
	Subject string
	Raw     []byte
}

// Composer renders messages for recipients. The attachment is read
// once at construction and the same bytes are attached to every
// message, never mutated per recipient.
type Composer struct {
	fromAddr   string
	fromName   string
	tmpl       Template
	attachment []byte
	attachName string
}

// Options configures a Composer.
type Options struct {
	FromAddress    string
	FromName       string
	Template       Template
	AttachmentPath string
	AttachmentName string // display filename; defaults to the path base
}

// New creates a Composer, validating the template against the
// recipient field set and loading the attachment into memory. Both
// checks happen here so misconfiguration fails before any send.
func New(opts Options) (*Composer, error) {
	if opts.FromAddress == "" {
		return nil, fmt.Errorf("sender address is required")
	}

	fields := make([]string, 0, 3)
	for f := range (recipient.Recipient{}).Fields() {
		fields = append(fields, f)
	}
	if err := opts.Template.Validate(fields); err != nil {
		return nil, err
	}

	c := &Composer{
		fromAddr: opts.FromAddress,
		fromName: opts.FromName,
		tmpl:     opts.Template,
	}

	if opts.AttachmentPath != "" {
		data, err := os.ReadFile(opts.AttachmentPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read attachment: %w", err)
		}
		c.attachment = data
		c.attachName = opts.AttachmentName
		if c.attachName == "" {
			c.attachName = filepath.Base(opts.AttachmentPath)
		}
	}

	return c, nil
}

// Compose renders the template for one recipient and assembles the
// MIME message.
func (c *Composer) Compose(rec recipient.Recipient) (*Message, error) {
	subject, body := c.tmpl.Render(rec.Fields())

	m := gomail.NewMessage()
	m.SetAddressHeader("From", c.fromAddr, c.fromName)
	m.SetHeader("To", rec.Email)
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@outreach>", uuid.NewString()))
	m.SetBody("text/plain", body)

	if c.attachment != nil {
		m.Attach(c.attachName, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(c.attachment)
			return err
		}))
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize message: %w", err)
	}

	return &Message{
		To:      rec.Email,
		Subject: subject,
		Raw:     buf.Bytes(),
	}, nil
}

// HasAttachment reports whether messages will carry an attachment.
func (c *Composer) HasAttachment() bool {
	return c.attachment != nil
}
