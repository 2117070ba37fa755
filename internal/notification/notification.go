// Package notification fans chat alerts out to Telegram and Discord.
package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"crypto-calls-dashboard/internal/calls"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifySignal       NotificationType = "signal"
	NotifyCallCreated  NotificationType = "call_created"
	NotifyCallResolved NotificationType = "call_resolved"
	NotifyCallExpired  NotificationType = "call_expired"
	NotifyError        NotificationType = "error"
)

// Notification represents a notification message
type Notification struct {
	Type       NotificationType
	Title      string
	Message    string
	Symbol     string
	Price      float64
	ProfitPct  float64
	Timestamp  time.Time
	Extra      map[string]interface{}
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager manages multiple notification providers
type Manager struct {
	notifiers []Notifier
	enabled   bool
}

// NewManager creates a new notification manager
func NewManager() *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   true,
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send sends a notification to all enabled providers
func (m *Manager) Send(notification *Notification) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(notification); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// SendSignal announces an inbound trading signal from the webhook
func (m *Manager) SendSignal(symbol, side, message string, price float64) error {
	emoji := "\U0001F7E2"
	if side == string(calls.SideShort) || side == "SELL" {
		emoji = "\U0001F534"
	}

	return m.Send(&Notification{
		Type:      NotifySignal,
		Title:     fmt.Sprintf("%s Signal: %s", emoji, symbol),
		Message:   fmt.Sprintf("%s %s @ %.4f\n%s", side, symbol, price, message),
		Symbol:    symbol,
		Price:     price,
		Timestamp: time.Now(),
	})
}

// SendCallCreated announces a freshly accepted trade call
func (m *Manager) SendCallCreated(call *calls.TradeCall) error {
	emoji := "\U0001F7E2"
	if call.Side == calls.SideShort {
		emoji = "\U0001F534"
	}

	msg := fmt.Sprintf("%s %s @ %.4f\nSL: %.4f | TP1: %.4f | TP2: %.4f | TP3: %.4f\nConfidence: %d%%",
		call.Side, call.Symbol, call.EntryPrice, call.StopLoss, call.TP1, call.TP2, call.TP3, call.Confidence)
	if call.Reason != "" {
		msg += "\nReason: " + call.Reason
	}

	return m.Send(&Notification{
		Type:      NotifyCallCreated,
		Title:     fmt.Sprintf("%s New Call: %s", emoji, call.Symbol),
		Message:   msg,
		Symbol:    call.Symbol,
		Price:     call.EntryPrice,
		Timestamp: time.Now(),
	})
}

// SendCallResolved announces a call that reached SL or TP3
func (m *Manager) SendCallResolved(call *calls.TradeCall) error {
	emoji := "✅"
	outcome := fmt.Sprintf("TP%d reached", call.BestTPReached)
	if call.SLHit {
		emoji = "❌"
		outcome = "Stop loss hit"
	}

	var exitPrice, profitPct float64
	if call.ExitPrice != nil {
		exitPrice = *call.ExitPrice
	}
	if call.ProfitPct != nil {
		profitPct = *call.ProfitPct
	}

	return m.Send(&Notification{
		Type:      NotifyCallResolved,
		Title:     fmt.Sprintf("%s Call Resolved: %s", emoji, call.Symbol),
		Message:   fmt.Sprintf("%s\nEntry: %.4f → Exit: %.4f\nProfit: %.2f%%", outcome, call.EntryPrice, exitPrice, profitPct),
		Symbol:    call.Symbol,
		Price:     exitPrice,
		ProfitPct: profitPct,
		Timestamp: time.Now(),
	})
}

// SendCallExpired announces a call that timed out without resolving
func (m *Manager) SendCallExpired(call *calls.TradeCall) error {
	return m.Send(&Notification{
		Type:      NotifyCallExpired,
		Title:     fmt.Sprintf("⏰ Call Expired: %s", call.Symbol),
		Message:   fmt.Sprintf("%s %s @ %.4f expired after best TP%d", call.Side, call.Symbol, call.EntryPrice, call.BestTPReached),
		Symbol:    call.Symbol,
		Price:     call.EntryPrice,
		Timestamp: time.Now(),
	})
}

// SendError sends an error notification
func (m *Manager) SendError(title, message string) error {
	return m.Send(&Notification{
		Type:      NotifyError,
		Title:     fmt.Sprintf("⚠️ %s", title),
		Message:   message,
		Timestamp: time.Now(),
	})
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramNotifier sends notifications via Telegram
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(notification *Notification) error {
	if !t.enabled {
		return nil
	}

	message := fmt.Sprintf("*%s*\n\n%s", notification.Title, notification.Message)

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// =============================================================================
// DISCORD NOTIFIER
// =============================================================================

// DiscordNotifier sends notifications via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// DiscordConfig holds Discord configuration
type DiscordConfig struct {
	WebhookURL string
	Enabled    bool
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: config.WebhookURL,
		enabled:    config.Enabled && config.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func (d *DiscordNotifier) Send(notification *Notification) error {
	if !d.enabled {
		return nil
	}

	color := 0x00FF00
	if notification.Type == NotifyError {
		color = 0xFF0000
	} else if notification.Type == NotifyCallResolved && notification.ProfitPct < 0 {
		color = 0xFF0000
	}

	embed := map[string]interface{}{
		"title":       notification.Title,
		"description": notification.Message,
		"color":       color,
		"timestamp":   notification.Timestamp.Format(time.RFC3339),
	}

	if notification.Symbol != "" {
		fields := []map[string]interface{}{
			{"name": "Symbol", "value": notification.Symbol, "inline": true},
		}
		if notification.Price > 0 {
			fields = append(fields, map[string]interface{}{
				"name": "Price", "value": fmt.Sprintf("%.4f", notification.Price), "inline": true,
			})
		}
		if notification.ProfitPct != 0 {
			fields = append(fields, map[string]interface{}{
				"name": "Profit", "value": fmt.Sprintf("%.2f%%", notification.ProfitPct), "inline": true,
			})
		}
		embed["fields"] = fields
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}

	return nil
}
