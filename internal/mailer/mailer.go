// Package mailer delivers rendered invoice summaries by email.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"go.uber.org/zap"

	"invoicepost/internal/models"
)

// Ledger records which (invoice, grant code) pairs have already been
// delivered so a re-run does not email the same group twice.
type Ledger interface {
	Sent(ctx context.Context, invoiceRef, code string) (bool, error)
	Mark(ctx context.Context, invoiceRef, code string) error
}

// Options configures the SMTP submission.
type Options struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// Mailer sends one HTML invoice summary per recipient.
type Mailer struct {
	opts   Options
	ledger Ledger
	logger *zap.Logger
}

// New builds a mailer. ledger may be nil, in which case every recipient is
// mailed unconditionally.
func New(opts Options, ledger Ledger, logger *zap.Logger) *Mailer {
	return &Mailer{
		opts:   opts,
		ledger: ledger,
		logger: logger,
	}
}

// Route resolves the To and Cc addresses for a recipient. The admin contact
// is normally Cc'd when present; an admin-only group suppresses the head
// contact entirely.
func Route(recipient models.Recipient) (to, cc string) {
	to = recipient.HeadEmail
	if recipient.AdminIsCC {
		cc = recipient.AdminEmail
	}
	if recipient.SendOnlyToAdmin {
		to = recipient.AdminEmail
		cc = ""
	}
	return to, cc
}

// Send emails the rendered document at the recipient's document path.
func (m *Mailer) Send(ctx context.Context, recipient models.Recipient, invoiceRef string) error {
	code := recipient.ChargedGrantCode

	if m.ledger != nil {
		sent, err := m.ledger.Sent(ctx, invoiceRef, code)
		if err != nil {
			m.logger.Warn("delivery ledger unavailable", zap.Error(err))
		} else if sent {
			m.logger.Info("invoice already delivered, skipping",
				zap.String("grant_code", code),
				zap.String("invoice_ref", invoiceRef),
			)
			return nil
		}
	}

	to, cc := Route(recipient)
	if to == "" {
		return fmt.Errorf("mailer: group %s has no deliverable address", recipient.GroupID)
	}

	body, err := os.ReadFile(recipient.DocumentPath)
	if err != nil {
		return fmt.Errorf("mailer: read document: %w", err)
	}

	subject := fmt.Sprintf("Facility invoice %s", invoiceRef)
	msg := buildMessage(m.opts.From, to, cc, subject, body)

	recipients := []string{to}
	if cc != "" {
		recipients = append(recipients, cc)
	}

	var auth smtp.Auth
	if m.opts.Password != "" {
		auth = smtp.PlainAuth("", m.opts.Username, m.opts.Password, m.opts.Host)
	}
	addr := fmt.Sprintf("%s:%d", m.opts.Host, m.opts.Port)
	if err := smtp.SendMail(addr, auth, m.opts.From, recipients, msg); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", to, err)
	}

	if m.ledger != nil {
		if err := m.ledger.Mark(ctx, invoiceRef, code); err != nil {
			m.logger.Warn("failed to mark delivery", zap.Error(err))
		}
	}

	m.logger.Info("invoice emailed",
		zap.String("grant_code", code),
		zap.String("to", to),
		zap.String("cc", cc),
	)
	return nil
}

func buildMessage(from, to, cc, subject string, html []byte) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	if cc != "" {
		fmt.Fprintf(&b, "Cc: %s\r\n", cc)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.Write(html)
	return []byte(b.String())
}
