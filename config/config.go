package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"brooksengine/internal/dispatch"
	"brooksengine/internal/orderflow"
	"brooksengine/internal/pattern"
	"brooksengine/internal/regime"
	"brooksengine/internal/riskstop"
	"brooksengine/internal/session"
)

// Config is the engine's full composition root. Ambient sections
// (Binance/Futures/Server/Auth/Vault/Redis/Logging) follow the teacher's
// shape; the domain sections wire each Brooks-methodology component's own
// Config struct directly rather than re-declaring their fields here, per
// SPEC_FULL.md's "config as pure data, no back-edges" rule.
type Config struct {
	BinanceConfig BinanceConfig `json:"binance"`
	FuturesConfig FuturesConfig `json:"futures"`
	LoggingConfig LoggingConfig `json:"logging"`
	ServerConfig  ServerConfig  `json:"server"`
	AuthConfig    AuthConfig    `json:"auth"`
	VaultConfig   VaultConfig   `json:"vault"`
	RedisConfig   RedisConfig  `json:"redis"`
	TradingConfig TradingConfig `json:"trading"`

	Regime    regime.Config    `json:"regime"`
	Pattern   pattern.Config   `json:"pattern"`
	RiskStop  riskstop.Config  `json:"risk_stop"`
	OrderFlow orderflow.Config `json:"order_flow"`
	Session   session.Config   `json:"session"`
	Dispatch  dispatch.Config  `json:"dispatch"`

	DatabaseConfig DatabaseConfig `json:"database"`
}

// FuturesConfig holds Binance Futures trading configuration.
type FuturesConfig struct {
	Enabled           bool   `json:"enabled"`
	TestNet           bool   `json:"testnet"`
	DefaultLeverage   int    `json:"default_leverage"`
	DefaultMarginType string `json:"default_margin_type"` // CROSSED or ISOLATED
	PositionMode      string `json:"position_mode"`       // ONE_WAY or HEDGE
	MaxLeverage       int    `json:"max_leverage"`
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

type BinanceConfig struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	BaseURL   string `json:"base_url"`
	TestNet   bool   `json:"testnet"`
	MockMode  bool   `json:"mock_mode"` // Use simulated data when Binance API is unavailable
}

// TradingConfig holds the per-engine trading-mode toggles named in
// spec.md §6.2.
type TradingConfig struct {
	Symbols          []string `json:"symbols"`
	Interval         string   `json:"interval"`           // e.g. "5m", matches the Brooks bar period
	HTFInterval      string   `json:"htf_interval"`       // higher-timeframe bar period for the HTF filter
	MaxOpenPositions int      `json:"max_open_positions"`
	DryRun           bool     `json:"dry_run"` // test mode without real orders
}

// ServerConfig holds HTTP server configuration for the ops/status surface
// (internal/api).
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // CORS allowed origins
	ReadTimeout     int    `json:"read_timeout"`    // Seconds
	WriteTimeout    int    `json:"write_timeout"`   // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

// AuthConfig holds authentication configuration for the ops API.
type AuthConfig struct {
	Enabled             bool          `json:"enabled"`
	JWTSecret           string        `json:"jwt_secret"`
	AccessTokenDuration time.Duration `json:"access_token_duration"`
	MinPasswordLength   int           `json:"min_password_length"`
	MaxLoginAttempts    int           `json:"max_login_attempts"`
	LockoutDuration     time.Duration `json:"lockout_duration"`
}

// VaultConfig holds HashiCorp Vault configuration for per-user exchange
// credential storage.
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`  // KV secrets engine mount path
	SecretPath string `json:"secret_path"` // Path prefix for API keys
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// RedisConfig holds Redis configuration for market-data/order-flow
// caching.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// DatabaseConfig holds pgx/v5 connection settings for the journal
// (internal/journal/internal/database).
type DatabaseConfig struct {
	DSN             string `json:"dsn"`
	MaxConns        int    `json:"max_conns"`
	MinConns        int    `json:"min_conns"`
	MaxConnLifetime int    `json:"max_conn_lifetime_seconds"`
}

func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = defaultConfig()
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig seeds every domain section from its own package
// DefaultConfig, matching spec.md §6.2's published defaults.
func defaultConfig() *Config {
	return &Config{
		Regime:    regime.DefaultConfig(),
		Pattern:   pattern.DefaultConfig(),
		RiskStop:  riskstop.DefaultConfig(),
		OrderFlow: orderflow.DefaultConfig(),
		Session:   session.DefaultConfig(),
		Dispatch:  dispatch.DefaultConfig(),
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
// Note: BINANCE_API_KEY and BINANCE_SECRET_KEY are NOT read from
// environment. All API keys are per-user and stored via Vault.
func applyEnvOverrides(cfg *Config) {
	cfg.BinanceConfig.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", cfg.BinanceConfig.BaseURL)
	if cfg.BinanceConfig.BaseURL == "" {
		cfg.BinanceConfig.BaseURL = "https://fapi.binance.com"
	}
	cfg.BinanceConfig.TestNet = getEnvOrDefault("BINANCE_TESTNET", "false") == "true"
	cfg.BinanceConfig.MockMode = getEnvOrDefault("MOCK_MODE", "false") == "true"

	cfg.TradingConfig.DryRun = getEnvOrDefault("TRADING_DRY_RUN", "false") == "true"
	cfg.TradingConfig.Interval = getEnvOrDefault("TRADING_INTERVAL", "5m")
	cfg.TradingConfig.HTFInterval = getEnvOrDefault("TRADING_HTF_INTERVAL", "1h")
	cfg.TradingConfig.MaxOpenPositions = getEnvIntOrDefault("TRADING_MAX_OPEN_POSITIONS", 5)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"

	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", "*")
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", 30)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", 30)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)

	cfg.AuthConfig.Enabled = getEnvOrDefault("AUTH_ENABLED", "false") == "true"
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", 15*time.Minute)
	cfg.AuthConfig.MinPasswordLength = getEnvIntOrDefault("AUTH_MIN_PASSWORD_LENGTH", 8)
	cfg.AuthConfig.MaxLoginAttempts = getEnvIntOrDefault("AUTH_MAX_LOGIN_ATTEMPTS", 5)
	cfg.AuthConfig.LockoutDuration = getEnvDurationOrDefault("AUTH_LOCKOUT_DURATION", 15*time.Minute)

	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", "http://localhost:8200")
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", "secret")
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", "brooksengine/api-keys")
	cfg.VaultConfig.TLSEnabled = getEnvOrDefault("VAULT_TLS_ENABLED", "false") == "true"

	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", "localhost:6379")
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", 0)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", 10)

	cfg.FuturesConfig.Enabled = getEnvOrDefault("FUTURES_ENABLED", "true") == "true"
	cfg.FuturesConfig.TestNet = getEnvOrDefault("FUTURES_TESTNET", "false") == "true"
	cfg.FuturesConfig.DefaultLeverage = getEnvIntOrDefault("FUTURES_DEFAULT_LEVERAGE", 10)
	cfg.FuturesConfig.DefaultMarginType = getEnvOrDefault("FUTURES_DEFAULT_MARGIN_TYPE", "ISOLATED")
	cfg.FuturesConfig.PositionMode = getEnvOrDefault("FUTURES_POSITION_MODE", "ONE_WAY")
	cfg.FuturesConfig.MaxLeverage = getEnvIntOrDefault("FUTURES_MAX_LEVERAGE", 20)

	cfg.DatabaseConfig.DSN = getEnvOrDefault("DATABASE_DSN", cfg.DatabaseConfig.DSN)
	cfg.DatabaseConfig.MaxConns = getEnvIntOrDefault("DATABASE_MAX_CONNS", 10)
	cfg.DatabaseConfig.MinConns = getEnvIntOrDefault("DATABASE_MIN_CONNS", 2)
	cfg.DatabaseConfig.MaxConnLifetime = getEnvIntOrDefault("DATABASE_MAX_CONN_LIFETIME_SECONDS", 3600)

	cfg.OrderFlow.WindowSeconds = getEnvIntOrDefault("ORDER_FLOW_WINDOW_SECONDS", cfg.OrderFlow.WindowSeconds)
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := defaultConfig()
	if err := json.Unmarshal(file, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
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

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ToAuthConfig converts AuthConfig to the format expected by the auth
// package.
func (c *AuthConfig) ToAuthConfig() AuthConfigExport {
	return AuthConfigExport{
		JWTSecret:           c.JWTSecret,
		AccessTokenDuration: c.AccessTokenDuration,
		MinPasswordLength:   c.MinPasswordLength,
	}
}

// AuthConfigExport is the exported auth config format for the auth
// package.
type AuthConfigExport struct {
	JWTSecret           string
	AccessTokenDuration time.Duration
	MinPasswordLength   int
}

// GenerateSampleConfig creates a sample configuration file.
func GenerateSampleConfig(filename string) error {
	cfg := defaultConfig()
	cfg.BinanceConfig = BinanceConfig{
		APIKey:    "your_api_key_here",
		SecretKey: "your_secret_key_here",
		BaseURL:   "https://fapi.binance.com",
		TestNet:   true,
	}
	cfg.TradingConfig = TradingConfig{
		Symbols:          []string{"BTCUSDT"},
		Interval:         "5m",
		HTFInterval:      "1h",
		MaxOpenPositions: 5,
		DryRun:           true,
	}
	cfg.LoggingConfig = LoggingConfig{
		Level:      "INFO",
		Output:     "stdout",
		JSONFormat: true,
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
