// Package vault loads payment and webhook secrets from HashiCorp Vault so
// they never have to live in config files or the environment.
package vault

import (
	"context"
	"fmt"

	"crypto-calls-dashboard/config"

	"github.com/hashicorp/vault/api"
)

// Client wraps the HashiCorp Vault client
type Client struct {
	client *api.Client
	config config.VaultConfig
}

// NewClient creates a new Vault client. With Vault disabled the client is a
// no-op and config values stand as-is.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{client: client, config: cfg}, nil
}

// Enabled reports whether Vault is in use
func (c *Client) Enabled() bool {
	return c.config.Enabled
}

// secretPath builds the KV v2 data path for the configured secret
func (c *Client) secretPath() string {
	mount := c.config.MountPath
	if mount == "" {
		mount = "secret"
	}
	path := c.config.SecretPath
	if path == "" {
		path = "crypto-calls-dashboard"
	}
	return fmt.Sprintf("%s/data/%s", mount, path)
}

// ReadSecrets reads the secret bundle from the KV v2 store
func (c *Client) ReadSecrets(ctx context.Context) (map[string]string, error) {
	if !c.config.Enabled {
		return nil, nil
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no secrets found at %s", c.secretPath())
	}

	// KV v2 nests the payload under "data"
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected secret format at %s", c.secretPath())
	}

	secrets := make(map[string]string, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok {
			secrets[k] = s
		}
	}

	return secrets, nil
}

// ApplySecrets overlays Vault-held secrets onto the loaded configuration.
// Keys absent from Vault leave the config value untouched.
func (c *Client) ApplySecrets(ctx context.Context, cfg *config.Config) error {
	if !c.config.Enabled {
		return nil
	}

	secrets, err := c.ReadSecrets(ctx)
	if err != nil {
		return err
	}

	overlay := func(target *string, key string) {
		if v, ok := secrets[key]; ok && v != "" {
			*target = v
		}
	}

	overlay(&cfg.BillingConfig.StripeSecretKey, "stripe_secret_key")
	overlay(&cfg.BillingConfig.StripeWebhookSecret, "stripe_webhook_secret")
	overlay(&cfg.BillingConfig.NOWPaymentsAPIKey, "nowpayments_api_key")
	overlay(&cfg.BillingConfig.NOWPaymentsIPNSecret, "nowpayments_ipn_secret")
	overlay(&cfg.AuthConfig.JWTSecret, "jwt_secret")
	overlay(&cfg.AuthConfig.AdminPasswordHash, "admin_password_hash")
	overlay(&cfg.WebhookConfig.SignalToken, "signal_webhook_token")
	overlay(&cfg.NotificationConfig.Telegram.BotToken, "telegram_bot_token")
	overlay(&cfg.NotificationConfig.Discord.WebhookURL, "discord_webhook_url")
	overlay(&cfg.EmailConfig.Password, "smtp_password")

	return nil
}
