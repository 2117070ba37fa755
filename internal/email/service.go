// Package email sends transactional mail over SMTP. Its only caller today is
// the billing settle path, which mails a receipt once a payment clears.
package email

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"time"

	"crypto-calls-dashboard/config"
	"crypto-calls-dashboard/internal/database"

	"github.com/rs/zerolog"
)

// Service sends email through a configured SMTP relay
type Service struct {
	config config.EmailConfig
	logger zerolog.Logger
}

// NewService creates a new email service
func NewService(cfg config.EmailConfig, logger zerolog.Logger) *Service {
	return &Service{
		config: cfg,
		logger: logger.With().Str("component", "email").Logger(),
	}
}

// IsConfigured returns true if the SMTP relay is usable
func (s *Service) IsConfigured() bool {
	return s.config.Enabled && s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendPaymentReceipt mails a receipt for a settled payment
func (s *Service) SendPaymentReceipt(payment *database.Payment, plan *database.PricingPlan, sub *database.Subscription) error {
	if !s.IsConfigured() {
		return nil
	}

	subject := fmt.Sprintf("Payment received - %s", plan.Name)
	body := receiptBody(payment, plan, sub)

	if err := s.send(payment.CustomerEmail, subject, body); err != nil {
		return fmt.Errorf("failed to send receipt: %w", err)
	}

	s.logger.Info().Str("to", payment.CustomerEmail).Str("order_id", payment.OrderID).Msg("receipt sent")
	return nil
}

func (s *Service) send(to, subject, body string) error {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	message := []byte(
		"From: " + from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n" +
			"\r\n" +
			body + "\r\n",
	)

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	addr := s.config.Host + ":" + s.config.Port

	// Port 465 expects implicit TLS; 587 and 25 negotiate STARTTLS.
	if s.config.Port == "465" {
		return s.sendTLS(addr, auth, []string{to}, message)
	}
	return smtp.SendMail(addr, auth, s.config.From, []string{to}, message)
}

func (s *Service) sendTLS(addr string, auth smtp.Auth, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.config.Host})
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err = client.Mail(s.config.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, recipient := range to {
		if err = client.Rcpt(recipient); err != nil {
			return fmt.Errorf("failed to add recipient: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}

func receiptBody(payment *database.Payment, plan *database.PricingPlan, sub *database.Subscription) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #4F46E5; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { background-color: #f9fafb; padding: 30px; border-radius: 0 0 5px 5px; }
        .row { display: flex; justify-content: space-between; padding: 8px 0; border-bottom: 1px solid #e5e7eb; }
        .footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Payment Received</h1>
        </div>
        <div class="content">
            <p>Thank you for your purchase! Your subscription is now active.</p>
            <div class="row"><span>Plan</span><span>%s</span></div>
            <div class="row"><span>Amount</span><span>$%.2f USD</span></div>
            <div class="row"><span>Payment method</span><span>%s</span></div>
            <div class="row"><span>Order reference</span><span>%s</span></div>
            <div class="row"><span>Active until</span><span>%s</span></div>
            <p style="margin-top: 20px;">If anything looks wrong, reply to this email and we will sort it out.</p>
        </div>
        <div class="footer">
            <p>Crypto Calls Dashboard</p>
        </div>
    </div>
</body>
</html>
`, plan.Name, payment.AmountUSD, payment.Provider, payment.OrderID, sub.CurrentPeriodEnd.Format(time.RFC1123))
}
