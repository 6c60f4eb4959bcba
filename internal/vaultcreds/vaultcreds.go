// Package vaultcreds loads this engine instance's exchange API credentials
// from HashiCorp Vault at startup, per spec.md §1's "specify only interfaces
// consumed" boundary: internal/broker/binance only ever sees an APIKey/
// SecretKey pair, never a Vault client. Grounded on the teacher's
// internal/vault.Client, simplified from its per-user multi-tenant KV layout
// (one engine process runs one account, per spec.md §5) down to a single
// fixed secret path, and trimmed of the per-user cache/rotation/list surface
// that layout existed to serve.
package vaultcreds

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"

	"brooksengine/config"
)

// Credentials is the exchange API key pair this engine trades with.
type Credentials struct {
	APIKey    string
	SecretKey string
	IsTestnet bool
}

// Loader fetches Credentials from Vault, or returns them unchanged from
// config when Vault is disabled (local/dev runs).
type Loader struct {
	client *api.Client
	cfg    config.VaultConfig
}

// NewLoader constructs a Loader. When cfg.Enabled is false, Load always
// returns fallback unchanged.
func NewLoader(cfg config.VaultConfig) (*Loader, error) {
	if !cfg.Enabled {
		return &Loader{cfg: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address
	if cfg.TLSEnabled && cfg.CACert != "" {
		if err := vaultConfig.ConfigureTLS(&api.TLSConfig{CACert: cfg.CACert}); err != nil {
			return nil, fmt.Errorf("vaultcreds: configure tls: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("vaultcreds: new client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &Loader{client: client, cfg: cfg}, nil
}

// Load reads the engine's exchange credentials from Vault's KV v2 engine at
// <MountPath>/data/<SecretPath>. fallback is returned unchanged when Vault
// is disabled, so local development can run off plain config/env values.
func (l *Loader) Load(ctx context.Context, fallback Credentials) (Credentials, error) {
	if !l.cfg.Enabled {
		return fallback, nil
	}

	path := fmt.Sprintf("%s/data/%s", l.cfg.MountPath, l.cfg.SecretPath)
	secret, err := l.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return Credentials{}, fmt.Errorf("vaultcreds: read %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return Credentials{}, fmt.Errorf("vaultcreds: no secret at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return Credentials{}, fmt.Errorf("vaultcreds: malformed secret at %s", path)
	}

	return Credentials{
		APIKey:    stringField(data, "api_key"),
		SecretKey: stringField(data, "secret_key"),
		IsTestnet: boolField(data, "is_testnet"),
	}, nil
}

// Health reports whether the Vault backend is reachable and unsealed. A
// disabled Loader is always healthy.
func (l *Loader) Health(ctx context.Context) error {
	if !l.cfg.Enabled {
		return nil
	}
	health, err := l.client.Sys().Health()
	if err != nil {
		return fmt.Errorf("vaultcreds: health check: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vaultcreds: vault is sealed")
	}
	return nil
}

func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func boolField(data map[string]interface{}, key string) bool {
	v, ok := data[key].(bool)
	return ok && v
}
