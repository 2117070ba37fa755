package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// CreatePayment records a new pending payment
func (r *Repository) CreatePayment(ctx context.Context, p *Payment) error {
	query := `
		INSERT INTO payments (provider, order_id, external_id, customer_email, plan_key,
			amount_usd, pay_currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := r.db.Pool.QueryRow(ctx, query,
		p.Provider, p.OrderID, p.ExternalID, p.CustomerEmail, p.PlanKey,
		p.AmountUSD, p.PayCurrency, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetPaymentByOrderID fetches a payment by our order id
func (r *Repository) GetPaymentByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	var p Payment
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, provider, order_id, external_id, customer_email, plan_key,
			amount_usd, pay_currency, status, created_at, updated_at
		FROM payments WHERE order_id = $1
	`, orderID).Scan(&p.ID, &p.Provider, &p.OrderID, &p.ExternalID, &p.CustomerEmail,
		&p.PlanKey, &p.AmountUSD, &p.PayCurrency, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

// UpdatePaymentStatus moves a payment to a new status, optionally attaching
// the provider's own object id once known
func (r *Repository) UpdatePaymentStatus(ctx context.Context, orderID string, status PaymentStatus, externalID string) error {
	query := `
		UPDATE payments
		SET status = $2, external_id = COALESCE(NULLIF($3, ''), external_id), updated_at = NOW()
		WHERE order_id = $1
	`
	tag, err := r.db.Pool.Exec(ctx, query, orderID, status, externalID)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment %s not found", orderID)
	}
	return nil
}

// ListPayments returns recent payments for the admin view
func (r *Repository) ListPayments(ctx context.Context, limit, offset int) ([]Payment, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, provider, order_id, external_id, customer_email, plan_key,
			amount_usd, pay_currency, status, created_at, updated_at
		FROM payments ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	payments := []Payment{}
	for rows.Next() {
		var p Payment
		err := rows.Scan(&p.ID, &p.Provider, &p.OrderID, &p.ExternalID, &p.CustomerEmail,
			&p.PlanKey, &p.AmountUSD, &p.PayCurrency, &p.Status, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ActivateSubscription upserts the customer's subscription after a paid
// payment. A repeat purchase extends from the later of now and the current
// period end.
func (r *Repository) ActivateSubscription(ctx context.Context, email, planKey string, provider PaymentProvider, periodDays int) (*Subscription, error) {
	var sub Subscription
	query := `
		INSERT INTO subscriptions (customer_email, plan_key, provider, status, current_period_end)
		VALUES ($1, $2, $3, 'active', NOW() + make_interval(days => $4))
		ON CONFLICT (customer_email) DO UPDATE
		SET plan_key = EXCLUDED.plan_key,
			provider = EXCLUDED.provider,
			status = 'active',
			current_period_end = GREATEST(subscriptions.current_period_end, NOW()) + make_interval(days => $4),
			updated_at = NOW()
		RETURNING id, customer_email, plan_key, provider, status, current_period_end, created_at, updated_at
	`
	err := r.db.Pool.QueryRow(ctx, query, email, planKey, provider, periodDays).Scan(
		&sub.ID, &sub.CustomerEmail, &sub.PlanKey, &sub.Provider, &sub.Status,
		&sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to activate subscription: %w", err)
	}
	return &sub, nil
}

// GetSubscription fetches a customer's subscription
func (r *Repository) GetSubscription(ctx context.Context, email string) (*Subscription, error) {
	var sub Subscription
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, customer_email, plan_key, provider, status, current_period_end, created_at, updated_at
		FROM subscriptions WHERE customer_email = $1
	`, email).Scan(&sub.ID, &sub.CustomerEmail, &sub.PlanKey, &sub.Provider, &sub.Status,
		&sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

// HasActiveSubscription reports whether the customer is currently entitled
func (r *Repository) HasActiveSubscription(ctx context.Context, email string, now time.Time) (bool, error) {
	var active bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE customer_email = $1 AND status = 'active' AND current_period_end > $2
		)
	`, email, now).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("failed to check subscription: %w", err)
	}
	return active, nil
}

// CancelSubscription marks a subscription cancelled; access persists until
// the period end
func (r *Repository) CancelSubscription(ctx context.Context, email string) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE subscriptions SET status = 'cancelled', updated_at = NOW()
		WHERE customer_email = $1
	`, email)
	if err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subscription for %s not found", email)
	}
	return nil
}
