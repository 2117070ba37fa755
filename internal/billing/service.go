package billing

import (
	"context"
	"fmt"

	"crypto-calls-dashboard/internal/database"
	"crypto-calls-dashboard/internal/events"

	"github.com/rs/zerolog"
)

// settlePayment is the shared success path for both providers: mark the
// payment paid, grant or extend the subscription, and announce it. Replayed
// webhooks for an already-paid order are no-ops.
func settlePayment(ctx context.Context, repo *database.Repository, bus *events.EventBus, mailer ReceiptSender, logger zerolog.Logger, orderID, externalID string) error {
	payment, err := repo.GetPaymentByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if payment == nil {
		return fmt.Errorf("payment %s not found", orderID)
	}
	if payment.Status == database.PaymentPaid {
		logger.Debug().Str("order_id", orderID).Msg("payment already settled")
		return nil
	}

	plan, err := repo.GetPricingPlan(ctx, payment.PlanKey)
	if err != nil {
		return err
	}
	if plan == nil {
		return fmt.Errorf("payment %s references unknown plan %s", orderID, payment.PlanKey)
	}

	if err := repo.UpdatePaymentStatus(ctx, orderID, database.PaymentPaid, externalID); err != nil {
		return err
	}

	sub, err := repo.ActivateSubscription(ctx, payment.CustomerEmail, payment.PlanKey, payment.Provider, plan.PeriodDays)
	if err != nil {
		return err
	}

	logger.Info().
		Str("order_id", orderID).
		Str("provider", string(payment.Provider)).
		Str("email", payment.CustomerEmail).
		Str("plan", payment.PlanKey).
		Time("period_end", sub.CurrentPeriodEnd).
		Msg("payment settled, subscription active")

	if mailer != nil {
		if err := mailer.SendPaymentReceipt(payment, plan, sub); err != nil {
			logger.Warn().Err(err).Str("order_id", orderID).Msg("failed to send receipt email")
		}
	}

	if bus != nil {
		bus.PublishData(events.EventPaymentReceived, map[string]interface{}{
			"order_id":   orderID,
			"provider":   string(payment.Provider),
			"plan_key":   payment.PlanKey,
			"amount_usd": payment.AmountUSD,
		})
		bus.PublishData(events.EventSubscriptionUpdated, map[string]interface{}{
			"email":      sub.CustomerEmail,
			"plan_key":   sub.PlanKey,
			"status":     string(sub.Status),
			"period_end": sub.CurrentPeriodEnd,
		})
	}

	return nil
}
