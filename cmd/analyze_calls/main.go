package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

type resolvedCall struct {
	Symbol     string
	Side       string
	Confidence int
	TP1Hit     bool
	SLHit      bool
	Status     string
	ProfitPct  *float64
	CreatedAt  time.Time
}

type confidenceBucket struct {
	Label     string
	MinConf   int
	MaxConf   int
	Total     int
	Wins      int
	SLHits    int
	ProfitSum float64
	ProfitN   int
}

func main() {
	godotenv.Load()

	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbName := getEnv("DB_NAME", "crypto_calls")

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUser, dbPass, dbHost, dbPort, dbName)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	fmt.Println("================================================================================")
	fmt.Println(" TRADE CALL CONFIDENCE ANALYSIS")
	fmt.Println("================================================================================")

	query := `
		SELECT symbol, side, confidence, tp1_hit, sl_hit, status, profit_pct, created_at
		FROM trade_calls
		WHERE status != 'active'
		ORDER BY created_at DESC
	`

	rows, err := pool.Query(ctx, query)
	if err != nil {
		fmt.Printf("Query failed: %v\n", err)
		os.Exit(1)
	}
	defer rows.Close()

	var calls []resolvedCall
	for rows.Next() {
		var c resolvedCall
		if err := rows.Scan(&c.Symbol, &c.Side, &c.Confidence, &c.TP1Hit, &c.SLHit, &c.Status, &c.ProfitPct, &c.CreatedAt); err != nil {
			fmt.Printf("Scan error: %v\n", err)
			continue
		}
		calls = append(calls, c)
	}

	if len(calls) == 0 {
		fmt.Println("\nNo resolved calls found.")

		var total, active int
		pool.QueryRow(ctx, `SELECT COUNT(*) FROM trade_calls`).Scan(&total)
		pool.QueryRow(ctx, `SELECT COUNT(*) FROM trade_calls WHERE status = 'active'`).Scan(&active)
		fmt.Printf("   Total calls: %d (active: %d)\n", total, active)
		return
	}

	fmt.Printf("\nAnalyzing %d resolved calls...\n\n", len(calls))

	buckets := []confidenceBucket{
		{Label: "low", MinConf: 0, MaxConf: 49},
		{Label: "medium", MinConf: 50, MaxConf: 64},
		{Label: "high", MinConf: 65, MaxConf: 79},
		{Label: "very_high", MinConf: 80, MaxConf: 100},
	}

	for _, c := range calls {
		for i := range buckets {
			if c.Confidence >= buckets[i].MinConf && c.Confidence <= buckets[i].MaxConf {
				buckets[i].Total++
				if c.TP1Hit && !c.SLHit {
					buckets[i].Wins++
				}
				if c.SLHit {
					buckets[i].SLHits++
				}
				if c.ProfitPct != nil {
					buckets[i].ProfitSum += *c.ProfitPct
					buckets[i].ProfitN++
				}
				break
			}
		}
	}

	fmt.Println("┌───────────┬───────────┬───────┬──────┬─────────┬──────────┬────────────┐")
	fmt.Println("│ Bucket    │ Range     │ Calls │ Wins │ SL hits │ Win Rate │ Avg Profit │")
	fmt.Println("├───────────┼───────────┼───────┼──────┼─────────┼──────────┼────────────┤")
	for _, b := range buckets {
		winRate := 0.0
		if b.Total > 0 {
			winRate = float64(b.Wins) / float64(b.Total) * 100
		}
		avgProfit := 0.0
		if b.ProfitN > 0 {
			avgProfit = b.ProfitSum / float64(b.ProfitN)
		}
		fmt.Printf("│ %-9s │ %3d - %3d │ %5d │ %4d │ %7d │ %7.1f%% │ %+9.2f%% │\n",
			b.Label, b.MinConf, b.MaxConf, b.Total, b.Wins, b.SLHits, winRate, avgProfit)
	}
	fmt.Println("└───────────┴───────────┴───────┴──────┴─────────┴──────────┴────────────┘")

	// What win rate would we have seen had we only published calls at or
	// above each confidence threshold?
	fmt.Println("\n================================================================================")
	fmt.Println(" THRESHOLD COMPARISON")
	fmt.Println("================================================================================")

	for _, threshold := range []int{50, 65, 80} {
		var included, wins int
		for _, c := range calls {
			if c.Confidence >= threshold {
				included++
				if c.TP1Hit && !c.SLHit {
					wins++
				}
			}
		}

		winRate := 0.0
		if included > 0 {
			winRate = float64(wins) / float64(included) * 100
		}
		fmt.Printf("\n  Threshold >= %d: %d of %d calls kept, win rate %.1f%%\n",
			threshold, included, len(calls), winRate)
	}
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
