package database

import (
	"context"
	"fmt"
	"time"

	"crypto-calls-dashboard/internal/calls"

	"github.com/jackc/pgx/v5"
)

const tradeCallColumns = `id, symbol, side, entry_price, stop_loss, tp0, tp1, tp2, tp3,
	confidence, reason, rsi4h, has_convergence, rr, status,
	tp0_hit, tp1_hit, tp2_hit, tp3_hit, sl_hit, best_tp_reached,
	exit_price, profit_pct, created_at, resolved_at, expires_at`

// CreateCall inserts a trade call unless a recent duplicate exists. The
// duplicate check and the insert run inside one transaction holding an
// advisory lock on the (symbol, side) pair, so two concurrent submissions
// cannot both pass the check.
func (r *Repository) CreateCall(ctx context.Context, call *calls.TradeCall, dedupWindow time.Duration) (*calls.TradeCall, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	lockKey := string(call.Side) + "|" + call.Symbol
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return nil, fmt.Errorf("failed to acquire dedup lock: %w", err)
	}

	cutoff := call.CreatedAt.Add(-dedupWindow)
	row := tx.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM trade_calls
		WHERE symbol = $1 AND side = $2 AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT 1
	`, tradeCallColumns), call.Symbol, call.Side, cutoff)

	existing, err := scanTradeCall(row)
	if err == nil {
		return existing, tx.Commit(ctx)
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("failed to check for duplicate call: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO trade_calls (symbol, side, entry_price, stop_loss, tp0, tp1, tp2, tp3,
			confidence, reason, rsi4h, has_convergence, rr, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`,
		call.Symbol, call.Side, call.EntryPrice, call.StopLoss,
		call.TP0, call.TP1, call.TP2, call.TP3,
		call.Confidence, call.Reason, call.RSI4H, call.HasConvergence, call.RR,
		call.Status, call.CreatedAt, call.ExpiresAt,
	).Scan(&call.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert trade call: %w", err)
	}

	return nil, tx.Commit(ctx)
}

// ListCalls returns calls ordered newest first, optionally filtered by status
func (r *Repository) ListCalls(ctx context.Context, status calls.Status, limit, offset int) ([]calls.TradeCall, error) {
	query := fmt.Sprintf(`SELECT %s FROM trade_calls`, tradeCallColumns)
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade calls: %w", err)
	}
	defer rows.Close()

	return collectTradeCalls(rows)
}

// ListActive returns every call still awaiting resolution
func (r *Repository) ListActive(ctx context.Context) ([]calls.TradeCall, error) {
	rows, err := r.db.Pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM trade_calls WHERE status = $1 ORDER BY created_at ASC
	`, tradeCallColumns), calls.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active calls: %w", err)
	}
	defer rows.Close()

	return collectTradeCalls(rows)
}

// CommitTick applies a batch of resolution updates in one transaction. The
// status guard in the WHERE clause keeps a concurrent resolver from touching
// a call that already went terminal.
func (r *Repository) CommitTick(ctx context.Context, updates []*calls.TradeCall) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, call := range updates {
		_, err := tx.Exec(ctx, `
			UPDATE trade_calls
			SET status = $2, tp0_hit = $3, tp1_hit = $4, tp2_hit = $5, tp3_hit = $6,
				sl_hit = $7, best_tp_reached = $8, exit_price = $9, profit_pct = $10,
				resolved_at = $11
			WHERE id = $1 AND status = 'active'
		`,
			call.ID, call.Status, call.TP0Hit, call.TP1Hit, call.TP2Hit, call.TP3Hit,
			call.SLHit, call.BestTPReached, call.ExitPrice, call.ProfitPct, call.ResolvedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update call %d: %w", call.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// StatsView reads status counts and all terminal calls from a single
// repeatable-read snapshot so the aggregator never sees a half-applied tick.
func (r *Repository) StatsView(ctx context.Context) (calls.Counts, []calls.TradeCall, error) {
	var counts calls.Counts

	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return counts, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'resolved'),
			COUNT(*) FILTER (WHERE status = 'expired')
		FROM trade_calls
	`).Scan(&counts.Total, &counts.Active, &counts.Resolved, &counts.Expired)
	if err != nil {
		return counts, nil, fmt.Errorf("failed to count calls: %w", err)
	}

	rows, err := tx.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM trade_calls WHERE status != $1 ORDER BY created_at ASC
	`, tradeCallColumns), calls.StatusActive)
	if err != nil {
		return counts, nil, fmt.Errorf("failed to query terminal calls: %w", err)
	}
	defer rows.Close()

	terminal, err := collectTradeCalls(rows)
	if err != nil {
		return counts, nil, err
	}

	return counts, terminal, tx.Commit(ctx)
}

func scanTradeCall(row pgx.Row) (*calls.TradeCall, error) {
	var c calls.TradeCall
	err := row.Scan(
		&c.ID, &c.Symbol, &c.Side, &c.EntryPrice, &c.StopLoss,
		&c.TP0, &c.TP1, &c.TP2, &c.TP3,
		&c.Confidence, &c.Reason, &c.RSI4H, &c.HasConvergence, &c.RR, &c.Status,
		&c.TP0Hit, &c.TP1Hit, &c.TP2Hit, &c.TP3Hit, &c.SLHit, &c.BestTPReached,
		&c.ExitPrice, &c.ProfitPct, &c.CreatedAt, &c.ResolvedAt, &c.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectTradeCalls(rows pgx.Rows) ([]calls.TradeCall, error) {
	result := []calls.TradeCall{}
	for rows.Next() {
		c, err := scanTradeCall(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade call: %w", err)
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trade calls: %w", err)
	}
	return result, nil
}
