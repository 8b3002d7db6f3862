package notify

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"ledger/internal/config"
	"ledger/internal/models"
	"ledger/internal/money"

	"github.com/yuin/goldmark"
	"gopkg.in/gomail.v2"
)

// Mailer sends subscription renewal reminders over SMTP. With SMTP disabled
// or no recipient configured, reminders are only logged.
type Mailer struct {
	cfg       config.SMTPConfig
	recipient string
	send      func(m *gomail.Message) error
}

func NewMailer(cfg config.SMTPConfig, recipient string) *Mailer {
	m := &Mailer{cfg: cfg, recipient: recipient}
	m.send = m.dialAndSend
	return m
}

func (m *Mailer) NotifyRenewal(ctx context.Context, sub models.Subscription, daysLeft int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject := fmt.Sprintf("Renewal reminder: %s", sub.Name)
	if !m.cfg.Enabled || m.recipient == "" {
		log.Printf("renewal reminder for %s (%s) due %s, smtp disabled", sub.Name, sub.ID, sub.NextBillingDate)
		return nil
	}
	body, err := RenderHTML(RenewalMarkdown(sub, daysLeft))
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(m.cfg.Username, m.cfg.From))
	msg.SetHeader("To", m.recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)
	if err := m.send(msg); err != nil {
		return fmt.Errorf("send renewal reminder: %w", err)
	}
	return nil
}

func (m *Mailer) dialAndSend(msg *gomail.Message) error {
	d := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	return d.DialAndSend(msg)
}

// RenewalMarkdown is the reminder text before HTML rendering.
func RenewalMarkdown(sub models.Subscription, daysLeft int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s renews soon\n\n", sub.Name)
	switch {
	case daysLeft <= 0:
		b.WriteString("The subscription is **due today**.\n\n")
	case daysLeft == 1:
		b.WriteString("The subscription renews **tomorrow**.\n\n")
	default:
		fmt.Fprintf(&b, "The subscription renews in **%d days**.\n\n", daysLeft)
	}
	fmt.Fprintf(&b, "- Amount: %s\n", money.Label(int64(sub.Amount), sub.Currency))
	fmt.Fprintf(&b, "- Billing cycle: %s\n", sub.BillingCycle)
	fmt.Fprintf(&b, "- Billing date: %s\n", sub.NextBillingDate)
	if sub.WebsiteURL != "" {
		fmt.Fprintf(&b, "- Manage: <%s>\n", sub.WebsiteURL)
	}
	return b.String()
}

func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
