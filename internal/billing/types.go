// Package billing integrates Stripe card checkout and NOWPayments crypto
// invoices for subscription purchases.
package billing

import (
	"encoding/json"

	"crypto-calls-dashboard/internal/database"
)

// ReceiptSender mails a receipt once a payment settles. Both provider
// services share one; a nil sender means receipts are off.
type ReceiptSender interface {
	SendPaymentReceipt(payment *database.Payment, plan *database.PricingPlan, sub *database.Subscription) error
}

// WebhookEvent is the envelope Stripe posts to our webhook endpoint
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CheckoutRequest is an inbound request to start a purchase
type CheckoutRequest struct {
	PlanKey       string `json:"plan_key" binding:"required"`
	CustomerEmail string `json:"customer_email" binding:"required,email"`
	// PayCurrency is only used by the crypto flow, e.g. "btc" or "usdttrc20"
	PayCurrency string `json:"pay_currency"`
}

// CheckoutResponse points the customer at the provider's hosted payment page
type CheckoutResponse struct {
	OrderID     string  `json:"order_id"`
	Provider    string  `json:"provider"`
	CheckoutURL string  `json:"checkout_url"`
	AmountUSD   float64 `json:"amount_usd"`
}
