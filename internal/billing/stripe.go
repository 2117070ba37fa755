package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crypto-calls-dashboard/internal/database"
	"crypto-calls-dashboard/internal/events"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StripeService handles Stripe payment integration over the form-encoded
// REST API.
type StripeService struct {
	secretKey     string
	webhookSecret string
	successURL    string
	cancelURL     string
	repo          *database.Repository
	bus           *events.EventBus
	mailer        ReceiptSender
	httpClient    *http.Client
	baseURL       string
	logger        zerolog.Logger
}

// NewStripeService creates a new Stripe service
func NewStripeService(secretKey, webhookSecret, successURL, cancelURL string, repo *database.Repository, bus *events.EventBus, logger zerolog.Logger) *StripeService {
	return &StripeService{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
		repo:          repo,
		bus:           bus,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		baseURL:       "https://api.stripe.com/v1",
		logger:        logger.With().Str("component", "stripe").Logger(),
	}
}

// SetReceiptSender enables receipt emails on settled payments
func (s *StripeService) SetReceiptSender(mailer ReceiptSender) {
	s.mailer = mailer
}

// IsConfigured returns true if Stripe is properly configured
func (s *StripeService) IsConfigured() bool {
	return s.secretKey != "" && s.webhookSecret != ""
}

type checkoutSession struct {
	ID                string `json:"id"`
	URL               string `json:"url"`
	ClientReferenceID string `json:"client_reference_id"`
	CustomerEmail     string `json:"customer_email"`
	PaymentStatus     string `json:"payment_status"`
}

// CreateCheckoutSession records a pending payment for the plan and opens a
// hosted Stripe checkout session for it
func (s *StripeService) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	plan, err := s.repo.GetPricingPlan(ctx, req.PlanKey)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("unknown pricing plan: %s", req.PlanKey)
	}

	orderID := uuid.New().String()
	payment := &database.Payment{
		Provider:      database.ProviderStripe,
		OrderID:       orderID,
		CustomerEmail: req.CustomerEmail,
		PlanKey:       plan.PlanKey,
		AmountUSD:     plan.PriceUSD,
		Status:        database.PaymentPending,
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	amountCents := int64(math.Round(plan.PriceUSD * 100))
	data := map[string]string{
		"mode":                                     "payment",
		"client_reference_id":                      orderID,
		"customer_email":                           req.CustomerEmail,
		"success_url":                              s.successURL,
		"cancel_url":                               s.cancelURL,
		"line_items[0][quantity]":                  "1",
		"line_items[0][price_data][currency]":      "usd",
		"line_items[0][price_data][unit_amount]":   fmt.Sprintf("%d", amountCents),
		"line_items[0][price_data][product_data][name]": plan.Name,
	}

	resp, err := s.makeRequest(ctx, "POST", "/checkout/sessions", data)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	var session checkoutSession
	if err := json.Unmarshal(resp, &session); err != nil {
		return nil, fmt.Errorf("failed to parse checkout session: %w", err)
	}

	if err := s.repo.UpdatePaymentStatus(ctx, orderID, database.PaymentPending, session.ID); err != nil {
		s.logger.Warn().Err(err).Str("order_id", orderID).Msg("failed to attach session id to payment")
	}

	return &CheckoutResponse{
		OrderID:     orderID,
		Provider:    string(database.ProviderStripe),
		CheckoutURL: session.URL,
		AmountUSD:   plan.PriceUSD,
	}, nil
}

// HandleWebhook processes a Stripe webhook delivery
func (s *StripeService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if !s.verifyWebhookSignature(payload, signature) {
		return fmt.Errorf("invalid webhook signature")
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to parse webhook event: %w", err)
	}

	s.logger.Info().Str("type", event.Type).Str("event_id", event.ID).Msg("processing stripe webhook")

	switch event.Type {
	case "checkout.session.completed":
		return s.handleSessionCompleted(ctx, event.Data.Object)
	case "checkout.session.expired":
		return s.handleSessionExpired(ctx, event.Data.Object)
	default:
		s.logger.Debug().Str("type", event.Type).Msg("unhandled webhook event type")
	}

	return nil
}

func (s *StripeService) handleSessionCompleted(ctx context.Context, data json.RawMessage) error {
	var session checkoutSession
	if err := json.Unmarshal(data, &session); err != nil {
		return fmt.Errorf("failed to parse session object: %w", err)
	}
	if session.PaymentStatus != "paid" {
		s.logger.Info().Str("session", session.ID).Str("payment_status", session.PaymentStatus).Msg("session completed but not paid")
		return nil
	}

	return settlePayment(ctx, s.repo, s.bus, s.mailer, s.logger, session.ClientReferenceID, session.ID)
}

func (s *StripeService) handleSessionExpired(ctx context.Context, data json.RawMessage) error {
	var session checkoutSession
	if err := json.Unmarshal(data, &session); err != nil {
		return fmt.Errorf("failed to parse session object: %w", err)
	}
	if session.ClientReferenceID == "" {
		return nil
	}
	return s.repo.UpdatePaymentStatus(ctx, session.ClientReferenceID, database.PaymentExpired, session.ID)
}

// makeRequest makes an authenticated form-encoded request to the Stripe API
func (s *StripeService) makeRequest(ctx context.Context, method, path string, data map[string]string) ([]byte, error) {
	endpoint := s.baseURL + path

	form := url.Values{}
	for k, v := range data {
		form.Set(k, v)
	}

	var req *http.Request
	var err error
	if method == "GET" {
		if len(form) > 0 {
			endpoint += "?" + form.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(form.Encode()))
	}
	if err != nil {
		return nil, err
	}

	req.SetBasicAuth(s.secretKey, "")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("stripe API error: %s - %s", resp.Status, string(respBody))
	}

	return respBody, nil
}

// verifyWebhookSignature checks the Stripe-Signature header: HMAC-SHA256 of
// "<timestamp>.<payload>" keyed with the webhook secret
func (s *StripeService) verifyWebhookSignature(payload []byte, signatureHeader string) bool {
	if s.webhookSecret == "" {
		return true // dev mode
	}

	parts := strings.Split(signatureHeader, ",")
	var timestamp string
	var signatures []string

	for _, part := range parts {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	signedPayload := timestamp + "." + string(payload)
	h := hmac.New(sha256.New, []byte(s.webhookSecret))
	h.Write([]byte(signedPayload))
	expectedSig := hex.EncodeToString(h.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expectedSig)) {
			return true
		}
	}

	return false
}
