package calls

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// BucketStats is the win rate inside one confidence bucket
type BucketStats struct {
	WinRate float64 `json:"win_rate"`
	Total   int     `json:"total"`
}

// WeekStats is the aggregated outcome of the terminal calls created in one
// ISO week.
type WeekStats struct {
	Week    string  `json:"week"`
	Wins    int     `json:"wins"`
	Total   int     `json:"total"`
	WinRate float64 `json:"win_rate"`
}

// Report is the full statistics report over terminal calls
type Report struct {
	TotalCalls    int `json:"total_calls"`
	ActiveCalls   int `json:"active_calls"`
	ResolvedCalls int `json:"resolved_calls"`
	ExpiredCalls  int `json:"expired_calls"`

	TP0Rate float64 `json:"tp0_rate"`
	TP1Rate float64 `json:"tp1_rate"`
	TP2Rate float64 `json:"tp2_rate"`
	TP3Rate float64 `json:"tp3_rate"`
	SLRate  float64 `json:"sl_rate"`

	WinRate   float64 `json:"win_rate"`
	AvgProfit float64 `json:"avg_profit"`

	LongWinRate  float64 `json:"long_win_rate"`
	ShortWinRate float64 `json:"short_win_rate"`
	LongTotal    int     `json:"long_total"`
	ShortTotal   int     `json:"short_total"`

	ConfidenceBuckets map[string]BucketStats `json:"confidence_buckets"`
	Weekly            []WeekStats            `json:"weekly"`
}

// Confidence bucket boundaries: [0,50), [50,65), [65,80), [80,100]
var bucketNames = []string{"0-49", "50-64", "65-79", "80-100"}

func bucketFor(confidence int) string {
	switch {
	case confidence < 50:
		return bucketNames[0]
	case confidence < 65:
		return bucketNames[1]
	case confidence < 80:
		return bucketNames[2]
	default:
		return bucketNames[3]
	}
}

// Aggregator derives performance statistics from terminal calls
type Aggregator struct {
	store CallStore
}

// NewAggregator creates a statistics aggregator over the given store
func NewAggregator(store CallStore) *Aggregator {
	return &Aggregator{store: store}
}

// Stats computes the full report from one consistent store view. Every ratio
// is 0 when its denominator is zero; percentages round to 1 decimal and the
// average profit to 2.
func (a *Aggregator) Stats(ctx context.Context) (*Report, error) {
	counts, terminal, err := a.store.StatsView(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats view: %w", err)
	}

	report := &Report{
		TotalCalls:        counts.Total,
		ActiveCalls:       counts.Active,
		ResolvedCalls:     counts.Resolved,
		ExpiredCalls:      counts.Expired,
		ConfidenceBuckets: make(map[string]BucketStats, len(bucketNames)),
	}

	n := len(terminal)

	var tp0, tp1, tp2, tp3, sl, wins int
	var profitSum float64
	profitCount := 0
	var longWins, shortWins int

	bucketWins := make(map[string]int, len(bucketNames))
	bucketTotals := make(map[string]int, len(bucketNames))
	weekWins := make(map[string]int)
	weekTotals := make(map[string]int)

	for i := range terminal {
		c := &terminal[i]

		if c.TP0Hit {
			tp0++
		}
		if c.TP1Hit {
			tp1++
		}
		if c.TP2Hit {
			tp2++
		}
		if c.TP3Hit {
			tp3++
		}
		if c.SLHit {
			sl++
		}

		win := c.Win()
		if win {
			wins++
		}

		if c.ProfitPct != nil {
			profitSum += *c.ProfitPct
			profitCount++
		}

		if c.Side == SideShort {
			report.ShortTotal++
			if win {
				shortWins++
			}
		} else {
			report.LongTotal++
			if win {
				longWins++
			}
		}

		bucket := bucketFor(c.Confidence)
		bucketTotals[bucket]++
		if win {
			bucketWins[bucket]++
		}

		week := isoWeekKey(c.CreatedAt)
		weekTotals[week]++
		if win {
			weekWins[week]++
		}
	}

	report.TP0Rate = rate(tp0, n)
	report.TP1Rate = rate(tp1, n)
	report.TP2Rate = rate(tp2, n)
	report.TP3Rate = rate(tp3, n)
	report.SLRate = rate(sl, n)
	report.WinRate = rate(wins, n)
	report.LongWinRate = rate(longWins, report.LongTotal)
	report.ShortWinRate = rate(shortWins, report.ShortTotal)

	if profitCount > 0 {
		report.AvgProfit = round2(profitSum / float64(profitCount))
	}

	for _, name := range bucketNames {
		report.ConfidenceBuckets[name] = BucketStats{
			WinRate: rate(bucketWins[name], bucketTotals[name]),
			Total:   bucketTotals[name],
		}
	}

	weeks := make([]string, 0, len(weekTotals))
	for week := range weekTotals {
		weeks = append(weeks, week)
	}
	sort.Strings(weeks)
	report.Weekly = make([]WeekStats, 0, len(weeks))
	for _, week := range weeks {
		report.Weekly = append(report.Weekly, WeekStats{
			Week:    week,
			Wins:    weekWins[week],
			Total:   weekTotals[week],
			WinRate: rate(weekWins[week], weekTotals[week]),
		})
	}

	return report, nil
}

// rate returns count/total as a percentage rounded to 1 decimal, 0 when
// total is zero.
func rate(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(count) / float64(total) * 100)
}

// isoWeekKey formats a timestamp as its ISO week, e.g. "2026-W09". The ISO
// year can differ from the calendar year near year boundaries.
func isoWeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
