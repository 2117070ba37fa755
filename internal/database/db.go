package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"crypto-calls-dashboard/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB creates a new database connection
func NewDB(cfg config.DatabaseConfig) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Printf("Successfully connected to PostgreSQL database: %s", cfg.Database)

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Println("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log.Println("Running database migrations...")

	migrations := []string{
		// Trade calls table: the durable call store. symbol and status carry
		// secondary indexes for the dedup lookup and the active-call scan.
		`CREATE TABLE IF NOT EXISTS trade_calls (
			id BIGSERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(5) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			stop_loss DECIMAL(20, 8) NOT NULL,
			tp0 DECIMAL(20, 8) NOT NULL DEFAULT 0,
			tp1 DECIMAL(20, 8) NOT NULL,
			tp2 DECIMAL(20, 8) NOT NULL,
			tp3 DECIMAL(20, 8) NOT NULL,
			confidence INTEGER NOT NULL,
			reason TEXT,
			rsi4h DECIMAL(10, 4),
			has_convergence BOOLEAN,
			rr DECIMAL(10, 4),
			status VARCHAR(10) NOT NULL DEFAULT 'active',
			tp0_hit BOOLEAN NOT NULL DEFAULT FALSE,
			tp1_hit BOOLEAN NOT NULL DEFAULT FALSE,
			tp2_hit BOOLEAN NOT NULL DEFAULT FALSE,
			tp3_hit BOOLEAN NOT NULL DEFAULT FALSE,
			sl_hit BOOLEAN NOT NULL DEFAULT FALSE,
			best_tp_reached INTEGER NOT NULL DEFAULT 0,
			exit_price DECIMAL(20, 8),
			profit_pct DECIMAL(10, 2),
			created_at TIMESTAMPTZ NOT NULL,
			resolved_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_calls_symbol ON trade_calls(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_calls_status ON trade_calls(status)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_calls_created_at ON trade_calls(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_calls_dedup ON trade_calls(symbol, side, created_at DESC)`,

		// Subscription pricing, admin editable key/value plans
		`CREATE TABLE IF NOT EXISTS pricing_plans (
			plan_key VARCHAR(50) PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			price_usd DECIMAL(10, 2) NOT NULL,
			period_days INTEGER NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Payments recorded from both providers
		`CREATE TABLE IF NOT EXISTS payments (
			id BIGSERIAL PRIMARY KEY,
			provider VARCHAR(20) NOT NULL,
			order_id VARCHAR(64) NOT NULL UNIQUE,
			external_id VARCHAR(128),
			customer_email VARCHAR(255) NOT NULL,
			plan_key VARCHAR(50) NOT NULL,
			amount_usd DECIMAL(10, 2) NOT NULL,
			pay_currency VARCHAR(20),
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_email ON payments(customer_email)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status)`,

		// Active subscriptions keyed by customer email
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id BIGSERIAL PRIMARY KEY,
			customer_email VARCHAR(255) NOT NULL,
			plan_key VARCHAR(50) NOT NULL,
			provider VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			current_period_end TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_email ON subscriptions(customer_email)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_status ON subscriptions(status)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}

	log.Println("Database migrations completed")
	return nil
}
