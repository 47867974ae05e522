package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

const sendGridEndpoint = "/v3/mail/send"

// ReceiptMailer sends purchase receipts through SendGrid.
type ReceiptMailer struct {
	apiKey   string
	from     string
	fromName string
	host     string
}

// NewReceiptMailer creates a mailer from cfg. host overrides the SendGrid API host; "" uses the default.
func NewReceiptMailer(cfg shared.SendGridConfig, host string) (*ReceiptMailer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: sendgrid api_key", shared.ErrMissingCredentials)
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("%w: sendgrid from address", shared.ErrMissingCredentials)
	}
	name := cfg.FromName
	if name == "" {
		name = "Marquee"
	}
	return &ReceiptMailer{apiKey: cfg.APIKey, from: cfg.From, fromName: name, host: host}, nil
}

// SendReceipt e-mails the contents of purchase to the buyer.
func (m *ReceiptMailer) SendReceipt(ctx context.Context, to models.Identity, purchase models.Purchase) error {
	if to.Email == "" {
		return fmt.Errorf("%w: recipient has no e-mail", shared.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := m.receipt(to, purchase)
	req := sendgrid.GetRequest(m.apiKey, sendGridEndpoint, m.host)
	req.Method = "POST"
	req.Body = mail.GetRequestBody(msg)

	resp, err := sendgrid.MakeRequest(req)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: sendgrid status=%d body=%s", shared.ErrAPIRequest, resp.StatusCode, resp.Body)
	}
	return nil
}

func (m *ReceiptMailer) receipt(to models.Identity, purchase models.Purchase) *mail.SGMailV3 {
	movies := purchase.Movies()
	subject := fmt.Sprintf("Your Marquee receipt (%d %s)", len(movies), plural(len(movies), "movie", "movies"))

	var text strings.Builder
	fmt.Fprintf(&text, "Thank you for your purchase%s!\n\n", greeting(to.DisplayName))
	if purchase.Batch != nil && purchase.Batch.OrderID != "" {
		fmt.Fprintf(&text, "Order: %s\n", purchase.Batch.OrderID)
	}
	fmt.Fprintf(&text, "Date: %s\n\n", purchase.Time().Format("2006-01-02 15:04 MST"))
	for i, mv := range movies {
		line := mv.Title
		if y := mv.Year(); y != "" {
			line += " (" + y + ")"
		}
		fmt.Fprintf(&text, "%d. %s\n", i+1, line)
	}
	text.WriteString("\nYour movies are now available in your library.\n")

	plain := text.String()
	htmlBody := "<pre>" + html.EscapeString(plain) + "</pre>"
	return mail.NewSingleEmail(mail.NewEmail(m.fromName, m.from), subject, mail.NewEmail(to.DisplayName, to.Email), plain, htmlBody)
}

func greeting(name string) string {
	if name == "" {
		return ""
	}
	return ", " + name
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
