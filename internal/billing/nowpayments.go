package billing

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"crypto-calls-dashboard/internal/database"
	"crypto-calls-dashboard/internal/events"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// NOWPaymentsService handles crypto payments through the NOWPayments
// invoice API.
type NOWPaymentsService struct {
	apiKey     string
	ipnSecret  string
	successURL string
	cancelURL  string
	repo       *database.Repository
	bus        *events.EventBus
	mailer     ReceiptSender
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
}

// NewNOWPaymentsService creates a new NOWPayments service
func NewNOWPaymentsService(apiKey, ipnSecret, successURL, cancelURL string, repo *database.Repository, bus *events.EventBus, logger zerolog.Logger) *NOWPaymentsService {
	return &NOWPaymentsService{
		apiKey:     apiKey,
		ipnSecret:  ipnSecret,
		successURL: successURL,
		cancelURL:  cancelURL,
		repo:       repo,
		bus:        bus,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://api.nowpayments.io/v1",
		logger:     logger.With().Str("component", "nowpayments").Logger(),
	}
}

// SetReceiptSender enables receipt emails on settled payments
func (n *NOWPaymentsService) SetReceiptSender(mailer ReceiptSender) {
	n.mailer = mailer
}

// IsConfigured returns true if NOWPayments is properly configured
func (n *NOWPaymentsService) IsConfigured() bool {
	return n.apiKey != "" && n.ipnSecret != ""
}

type invoiceRequest struct {
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	PayCurrency      string  `json:"pay_currency,omitempty"`
	OrderID          string  `json:"order_id"`
	OrderDescription string  `json:"order_description"`
	SuccessURL       string  `json:"success_url,omitempty"`
	CancelURL        string  `json:"cancel_url,omitempty"`
}

type invoiceResponse struct {
	ID         string `json:"id"`
	InvoiceURL string `json:"invoice_url"`
	OrderID    string `json:"order_id"`
}

// CreateInvoice records a pending payment and opens a hosted crypto invoice
func (n *NOWPaymentsService) CreateInvoice(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	plan, err := n.repo.GetPricingPlan(ctx, req.PlanKey)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("unknown pricing plan: %s", req.PlanKey)
	}

	orderID := uuid.New().String()
	payment := &database.Payment{
		Provider:      database.ProviderNOWPayments,
		OrderID:       orderID,
		CustomerEmail: req.CustomerEmail,
		PlanKey:       plan.PlanKey,
		AmountUSD:     plan.PriceUSD,
		PayCurrency:   req.PayCurrency,
		Status:        database.PaymentPending,
	}
	if err := n.repo.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	body, err := json.Marshal(invoiceRequest{
		PriceAmount:      plan.PriceUSD,
		PriceCurrency:    "usd",
		PayCurrency:      req.PayCurrency,
		OrderID:          orderID,
		OrderDescription: plan.Name,
		SuccessURL:       n.successURL,
		CancelURL:        n.cancelURL,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/invoice", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-api-key", n.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("nowpayments API error: %s - %s", resp.Status, string(respBody))
	}

	var invoice invoiceResponse
	if err := json.Unmarshal(respBody, &invoice); err != nil {
		return nil, fmt.Errorf("failed to parse invoice response: %w", err)
	}

	if err := n.repo.UpdatePaymentStatus(ctx, orderID, database.PaymentPending, invoice.ID); err != nil {
		n.logger.Warn().Err(err).Str("order_id", orderID).Msg("failed to attach invoice id to payment")
	}

	return &CheckoutResponse{
		OrderID:     orderID,
		Provider:    string(database.ProviderNOWPayments),
		CheckoutURL: invoice.InvoiceURL,
		AmountUSD:   plan.PriceUSD,
	}, nil
}

type ipnPayload struct {
	PaymentID     json.Number `json:"payment_id"`
	PaymentStatus string      `json:"payment_status"`
	OrderID       string      `json:"order_id"`
}

// HandleIPN processes a NOWPayments instant payment notification
func (n *NOWPaymentsService) HandleIPN(ctx context.Context, payload []byte, signature string) error {
	if !n.verifyIPNSignature(payload, signature) {
		return fmt.Errorf("invalid IPN signature")
	}

	var ipn ipnPayload
	if err := json.Unmarshal(payload, &ipn); err != nil {
		return fmt.Errorf("failed to parse IPN payload: %w", err)
	}
	if ipn.OrderID == "" {
		return fmt.Errorf("IPN payload missing order_id")
	}
	if _, err := uuid.Parse(ipn.OrderID); err != nil {
		return fmt.Errorf("IPN order_id is not one of ours: %w", err)
	}

	n.logger.Info().Str("order_id", ipn.OrderID).Str("status", ipn.PaymentStatus).Msg("processing nowpayments IPN")

	switch ipn.PaymentStatus {
	case "finished", "confirmed":
		return settlePayment(ctx, n.repo, n.bus, n.mailer, n.logger, ipn.OrderID, ipn.PaymentID.String())
	case "failed", "refunded":
		return n.repo.UpdatePaymentStatus(ctx, ipn.OrderID, database.PaymentFailed, ipn.PaymentID.String())
	case "expired":
		return n.repo.UpdatePaymentStatus(ctx, ipn.OrderID, database.PaymentExpired, ipn.PaymentID.String())
	default:
		// waiting, confirming, sending, partially_paid: still in flight
	}

	return nil
}

// verifyIPNSignature checks the x-nowpayments-sig header: HMAC-SHA512 of the
// payload re-serialized with its keys sorted
func (n *NOWPaymentsService) verifyIPNSignature(payload []byte, signature string) bool {
	if n.ipnSecret == "" {
		return true // dev mode
	}

	sorted, err := sortedJSON(payload)
	if err != nil {
		return false
	}

	h := hmac.New(sha512.New, []byte(n.ipnSecret))
	h.Write(sorted)
	expected := hex.EncodeToString(h.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

func sortedJSON(payload []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(fields[k])
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}
