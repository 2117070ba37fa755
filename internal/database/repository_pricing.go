package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// UpsertPricingPlan creates or updates a pricing plan
func (r *Repository) UpsertPricingPlan(ctx context.Context, plan *PricingPlan) error {
	query := `
		INSERT INTO pricing_plans (plan_key, name, price_usd, period_days, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (plan_key) DO UPDATE
		SET name = EXCLUDED.name, price_usd = EXCLUDED.price_usd,
			period_days = EXCLUDED.period_days, updated_at = NOW()
		RETURNING updated_at
	`
	err := r.db.Pool.QueryRow(ctx, query,
		plan.PlanKey, plan.Name, plan.PriceUSD, plan.PeriodDays,
	).Scan(&plan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert pricing plan: %w", err)
	}
	return nil
}

// GetPricingPlan fetches one plan by key
func (r *Repository) GetPricingPlan(ctx context.Context, planKey string) (*PricingPlan, error) {
	var plan PricingPlan
	err := r.db.Pool.QueryRow(ctx, `
		SELECT plan_key, name, price_usd, period_days, updated_at
		FROM pricing_plans WHERE plan_key = $1
	`, planKey).Scan(&plan.PlanKey, &plan.Name, &plan.PriceUSD, &plan.PeriodDays, &plan.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pricing plan: %w", err)
	}
	return &plan, nil
}

// ListPricingPlans returns all plans ordered by price
func (r *Repository) ListPricingPlans(ctx context.Context) ([]PricingPlan, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT plan_key, name, price_usd, period_days, updated_at
		FROM pricing_plans ORDER BY price_usd ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pricing plans: %w", err)
	}
	defer rows.Close()

	plans := []PricingPlan{}
	for rows.Next() {
		var plan PricingPlan
		if err := rows.Scan(&plan.PlanKey, &plan.Name, &plan.PriceUSD, &plan.PeriodDays, &plan.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pricing plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// DeletePricingPlan removes a plan. Existing subscriptions keep their plan key.
func (r *Repository) DeletePricingPlan(ctx context.Context, planKey string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM pricing_plans WHERE plan_key = $1`, planKey)
	if err != nil {
		return fmt.Errorf("failed to delete pricing plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pricing plan %s not found", planKey)
	}
	return nil
}
