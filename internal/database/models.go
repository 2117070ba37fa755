package database

import "time"

// PaymentProvider identifies which external provider produced a payment
type PaymentProvider string

const (
	ProviderStripe      PaymentProvider = "stripe"
	ProviderNOWPayments PaymentProvider = "nowpayments"
)

// PaymentStatus is the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentExpired  PaymentStatus = "expired"
	PaymentRefunded PaymentStatus = "refunded"
)

// SubscriptionStatus is the lifecycle state of a subscription
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// PricingPlan is one admin-editable subscription plan
type PricingPlan struct {
	PlanKey    string    `json:"plan_key"`
	Name       string    `json:"name"`
	PriceUSD   float64   `json:"price_usd"`
	PeriodDays int       `json:"period_days"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Payment is one checkout attempt from either provider. OrderID is our own
// idempotency key; ExternalID is the provider's object id.
type Payment struct {
	ID            int64           `json:"id"`
	Provider      PaymentProvider `json:"provider"`
	OrderID       string          `json:"order_id"`
	ExternalID    string          `json:"external_id,omitempty"`
	CustomerEmail string          `json:"customer_email"`
	PlanKey       string          `json:"plan_key"`
	AmountUSD     float64         `json:"amount_usd"`
	PayCurrency   string          `json:"pay_currency,omitempty"`
	Status        PaymentStatus   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Subscription is one customer's current entitlement
type Subscription struct {
	ID               int64              `json:"id"`
	CustomerEmail    string             `json:"customer_email"`
	PlanKey          string             `json:"plan_key"`
	Provider         PaymentProvider    `json:"provider"`
	Status           SubscriptionStatus `json:"status"`
	CurrentPeriodEnd time.Time          `json:"current_period_end"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}
