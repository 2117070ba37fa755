package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerConfig       ServerConfig       `json:"server"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`
	OracleConfig       OracleConfig       `json:"oracle"`
	ResolverConfig     ResolverConfig     `json:"resolver"`
	NotificationConfig NotificationConfig `json:"notification"`
	WebhookConfig      WebhookConfig      `json:"webhook"`
	BillingConfig      BillingConfig      `json:"billing"`
	EmailConfig        EmailConfig        `json:"email"`
	AuthConfig         AuthConfig         `json:"auth"`
	VaultConfig        VaultConfig        `json:"vault"`
	LoggingConfig      LoggingConfig      `json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	ProductionMode  bool   `json:"production_mode"`
	StaticFilesPath string `json:"static_files_path"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis cache configuration
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// OracleConfig holds the spot-price oracle (exchange) configuration
type OracleConfig struct {
	BaseURL        string        `json:"base_url"`
	RequestTimeout time.Duration `json:"request_timeout"` // per-symbol request timeout
	MaxParallel    int           `json:"max_parallel"`    // concurrent ticker requests per snapshot
}

// ResolverConfig holds the trade-call resolution engine configuration
type ResolverConfig struct {
	TickInterval time.Duration `json:"tick_interval"` // background tick period, 0 disables the scheduler
	DedupWindow  time.Duration `json:"dedup_window"`  // same symbol+side inside this window is a duplicate
	CallTTL      time.Duration `json:"call_ttl"`      // active calls expire this long after creation
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

// WebhookConfig guards the unauthenticated inbound signal route
type WebhookConfig struct {
	SignalToken string `json:"signal_token"`
}

// BillingConfig holds payment provider configuration
type BillingConfig struct {
	Enabled              bool   `json:"enabled"`
	StripeSecretKey      string `json:"stripe_secret_key"`
	StripePublishableKey string `json:"stripe_publishable_key"`
	StripeWebhookSecret  string `json:"stripe_webhook_secret"`
	NOWPaymentsAPIKey    string `json:"nowpayments_api_key"`
	NOWPaymentsIPNSecret string `json:"nowpayments_ipn_secret"`
	SuccessURL           string `json:"success_url"`
	CancelURL            string `json:"cancel_url"`
}

// EmailConfig holds SMTP configuration for payment receipt emails
type EmailConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     string `json:"port"` // 465 uses implicit TLS, 587/25 use STARTTLS
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
	FromName string `json:"from_name"`
}

// AuthConfig holds admin authentication configuration
type AuthConfig struct {
	Enabled             bool          `json:"enabled"`
	JWTSecret           string        `json:"jwt_secret"`
	AccessTokenDuration time.Duration `json:"access_token_duration"`
	AdminEmail          string        `json:"admin_email"`
	AdminPasswordHash   string        `json:"admin_password_hash"` // bcrypt hash
}

// VaultConfig holds HashiCorp Vault configuration for payment secrets
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

// Load reads configuration from the file named by CONFIG_FILE (config.json by
// default, if present) and then applies environment variable overrides on top.
func Load() (*Config, error) {
	cfg := defaultConfig()

	filename := getEnvOrDefault("CONFIG_FILE", "config.json")
	if _, err := os.Stat(filename); err == nil {
		fileCfg, err := loadFromFile(filename)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	applyEnvOverrides(cfg)

	if cfg.ResolverConfig.DedupWindow <= 0 {
		cfg.ResolverConfig.DedupWindow = 4 * time.Hour
	}
	if cfg.ResolverConfig.CallTTL <= 0 {
		cfg.ResolverConfig.CallTTL = 72 * time.Hour
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ServerConfig: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DatabaseConfig: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			SSLMode: "disable",
		},
		OracleConfig: OracleConfig{
			BaseURL:        "https://api.binance.com",
			RequestTimeout: 10 * time.Second,
			MaxParallel:    8,
		},
		ResolverConfig: ResolverConfig{
			TickInterval: 60 * time.Second,
			DedupWindow:  4 * time.Hour,
			CallTTL:      72 * time.Hour,
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.ProductionMode = getEnvBoolOrDefault("PRODUCTION_MODE", cfg.ServerConfig.ProductionMode)
	cfg.ServerConfig.StaticFilesPath = getEnvOrDefault("STATIC_FILES_PATH", cfg.ServerConfig.StaticFilesPath)

	// Database config
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSL_MODE", cfg.DatabaseConfig.SSLMode)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", cfg.RedisConfig.PoolSize)

	// Oracle config
	cfg.OracleConfig.BaseURL = getEnvOrDefault("ORACLE_BASE_URL", cfg.OracleConfig.BaseURL)
	cfg.OracleConfig.RequestTimeout = getEnvDurationOrDefault("ORACLE_REQUEST_TIMEOUT", cfg.OracleConfig.RequestTimeout)
	cfg.OracleConfig.MaxParallel = getEnvIntOrDefault("ORACLE_MAX_PARALLEL", cfg.OracleConfig.MaxParallel)

	// Resolver config
	cfg.ResolverConfig.TickInterval = getEnvDurationOrDefault("RESOLVER_TICK_INTERVAL", cfg.ResolverConfig.TickInterval)
	cfg.ResolverConfig.DedupWindow = getEnvDurationOrDefault("RESOLVER_DEDUP_WINDOW", cfg.ResolverConfig.DedupWindow)
	cfg.ResolverConfig.CallTTL = getEnvDurationOrDefault("RESOLVER_CALL_TTL", cfg.ResolverConfig.CallTTL)

	// Notification config
	cfg.NotificationConfig.Enabled = getEnvBoolOrDefault("NOTIFICATIONS_ENABLED", cfg.NotificationConfig.Enabled)
	cfg.NotificationConfig.Telegram.Enabled = getEnvBoolOrDefault("TELEGRAM_ENABLED", cfg.NotificationConfig.Telegram.Enabled)
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	cfg.NotificationConfig.Discord.Enabled = getEnvBoolOrDefault("DISCORD_ENABLED", cfg.NotificationConfig.Discord.Enabled)
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)

	// Webhook config
	cfg.WebhookConfig.SignalToken = getEnvOrDefault("SIGNAL_WEBHOOK_TOKEN", cfg.WebhookConfig.SignalToken)

	// Billing config
	cfg.BillingConfig.Enabled = getEnvBoolOrDefault("BILLING_ENABLED", cfg.BillingConfig.Enabled)
	cfg.BillingConfig.StripeSecretKey = getEnvOrDefault("STRIPE_SECRET_KEY", cfg.BillingConfig.StripeSecretKey)
	cfg.BillingConfig.StripePublishableKey = getEnvOrDefault("STRIPE_PUBLISHABLE_KEY", cfg.BillingConfig.StripePublishableKey)
	cfg.BillingConfig.StripeWebhookSecret = getEnvOrDefault("STRIPE_WEBHOOK_SECRET", cfg.BillingConfig.StripeWebhookSecret)
	cfg.BillingConfig.NOWPaymentsAPIKey = getEnvOrDefault("NOWPAYMENTS_API_KEY", cfg.BillingConfig.NOWPaymentsAPIKey)
	cfg.BillingConfig.NOWPaymentsIPNSecret = getEnvOrDefault("NOWPAYMENTS_IPN_SECRET", cfg.BillingConfig.NOWPaymentsIPNSecret)
	cfg.BillingConfig.SuccessURL = getEnvOrDefault("BILLING_SUCCESS_URL", cfg.BillingConfig.SuccessURL)
	cfg.BillingConfig.CancelURL = getEnvOrDefault("BILLING_CANCEL_URL", cfg.BillingConfig.CancelURL)

	// Email config
	cfg.EmailConfig.Enabled = getEnvBoolOrDefault("SMTP_ENABLED", cfg.EmailConfig.Enabled)
	cfg.EmailConfig.Host = getEnvOrDefault("SMTP_HOST", cfg.EmailConfig.Host)
	cfg.EmailConfig.Port = getEnvOrDefault("SMTP_PORT", cfg.EmailConfig.Port)
	cfg.EmailConfig.Username = getEnvOrDefault("SMTP_USERNAME", cfg.EmailConfig.Username)
	cfg.EmailConfig.Password = getEnvOrDefault("SMTP_PASSWORD", cfg.EmailConfig.Password)
	cfg.EmailConfig.From = getEnvOrDefault("SMTP_FROM", cfg.EmailConfig.From)
	cfg.EmailConfig.FromName = getEnvOrDefault("SMTP_FROM_NAME", cfg.EmailConfig.FromName)

	// Auth config
	cfg.AuthConfig.Enabled = getEnvBoolOrDefault("AUTH_ENABLED", cfg.AuthConfig.Enabled)
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", cfg.AuthConfig.AccessTokenDuration)
	cfg.AuthConfig.AdminEmail = getEnvOrDefault("AUTH_ADMIN_EMAIL", cfg.AuthConfig.AdminEmail)
	cfg.AuthConfig.AdminPasswordHash = getEnvOrDefault("AUTH_ADMIN_PASSWORD_HASH", cfg.AuthConfig.AdminPasswordHash)

	// Vault config
	cfg.VaultConfig.Enabled = getEnvBoolOrDefault("VAULT_ENABLED", cfg.VaultConfig.Enabled)
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.VaultConfig.MountPath)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.VaultConfig.SecretPath)
	cfg.VaultConfig.TLSEnabled = getEnvBoolOrDefault("VAULT_TLS_ENABLED", cfg.VaultConfig.TLSEnabled)
	cfg.VaultConfig.CACert = getEnvOrDefault("VAULT_CA_CERT", cfg.VaultConfig.CACert)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.LoggingConfig.JSONFormat)
	cfg.LoggingConfig.IncludeFile = getEnvBoolOrDefault("LOG_INCLUDE_FILE", cfg.LoggingConfig.IncludeFile)
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
