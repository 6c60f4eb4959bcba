// Command engine runs the Brooks price-action trading core against one
// exchange account, per spec.md §5's "one engine process against one
// exchange account" deployment unit. Wiring order follows the teacher's
// own main.go: config, logging, event bus, broker credentials,
// database/cache, then the per-symbol pipeline, then block on signal.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"brooksengine/config"
	"brooksengine/internal/api"
	"brooksengine/internal/auth"
	"brooksengine/internal/binance"
	brokerbinance "brooksengine/internal/broker/binance"
	"brooksengine/internal/cache"
	"brooksengine/internal/core"
	"brooksengine/internal/database"
	"brooksengine/internal/events"
	"brooksengine/internal/journal"
	"brooksengine/internal/lifecycle"
	"brooksengine/internal/logging"
	"brooksengine/internal/market"
	"brooksengine/internal/orchestrator"
	"brooksengine/internal/orders"
	"brooksengine/internal/vaultcreds"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)
	logger.Info("structured logging initialized")

	zl := zerolog.New(os.Stdout).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := events.NewEventBus()

	vaultLoader, err := vaultcreds.NewLoader(cfg.VaultConfig)
	if err != nil {
		log.Fatalf("failed to construct vault loader: %v", err)
	}
	creds, err := vaultLoader.Load(ctx, vaultcreds.Credentials{
		APIKey:    cfg.BinanceConfig.APIKey,
		SecretKey: cfg.BinanceConfig.SecretKey,
		IsTestnet: cfg.BinanceConfig.TestNet,
	})
	if err != nil {
		log.Fatalf("failed to load exchange credentials: %v", err)
	}
	if creds.APIKey == "" || creds.SecretKey == "" {
		log.Fatal("exchange credential missing: set binance api_key/secret_key in the config file or enable vault")
	}

	var repo lifecycle.Repository
	var jrnl journal.Journal
	var db *database.DB
	if cfg.DatabaseConfig.DSN != "" {
		db, err = database.NewDB(ctx, database.Config{
			DSN:             cfg.DatabaseConfig.DSN,
			MaxConns:        int32(cfg.DatabaseConfig.MaxConns),
			MinConns:        int32(cfg.DatabaseConfig.MinConns),
			MaxConnLifetime: time.Duration(cfg.DatabaseConfig.MaxConnLifetime) * time.Second,
		}, zl)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Pool.Close()
		if err := db.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		repo = database.NewPositionRepository(db)
		jrnl = database.NewPgxJournal(db)
	} else {
		jsonlJournal, err := journal.NewJSONLJournal("./journal.jsonl")
		if err != nil {
			log.Fatalf("failed to open fallback journal file: %v", err)
		}
		jrnl = jsonlJournal
	}

	var guard market.DedupGuard
	var cacheService *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cs, err := cache.NewCacheService(cfg.RedisConfig)
		if err != nil {
			logger.Warn("redis cache unavailable, continuing without bar dedup", "error", err.Error())
		} else {
			guard = cs
			cacheService = cs
		}
	}

	var orderIDGen *orders.ClientOrderIdGenerator
	if cacheService != nil {
		orderIDGen, err = orders.NewClientOrderIdGenerator(cacheService, "engine", nil)
		if err != nil {
			logger.Warn("client order id generator unavailable, falling back to bare ids", "error", err.Error())
		}
	}

	futuresClient := binance.NewFuturesClient(creds.APIKey, creds.SecretKey, creds.IsTestnet)
	adapter := brokerbinance.New(futuresClient, zl, orderIDGen)

	streamBaseURL := "wss://fstream.binance.com/stream"
	if creds.IsTestnet {
		streamBaseURL = "wss://stream.binancefuture.com/stream"
	}
	stream := brokerbinance.NewStream(streamBaseURL, zl)

	tasks := make([]core.SymbolTask, 0, len(cfg.TradingConfig.Symbols))
	symbols := make(map[string]*orchestrator.Orchestrator, len(cfg.TradingConfig.Symbols))
	for _, symbol := range cfg.TradingConfig.Symbols {
		ocfg := orchestrator.DefaultConfig()
		ocfg.MaxOpenPositions = cfg.TradingConfig.MaxOpenPositions
		ocfg.RiskStop = cfg.RiskStop
		ocfg.OrderFlow = cfg.OrderFlow
		ocfg.Session = cfg.Session
		ocfg.Dispatch = cfg.Dispatch
		ocfg.Pattern = cfg.Pattern
		ocfg.Regime = cfg.Regime

		o := orchestrator.New(symbol, ocfg, adapter, repo, jrnl, bus, guard, zl)

		account, err := futuresClient.GetFuturesAccountInfo()
		if err != nil {
			logger.Warn("failed to read starting account balance", "symbol", symbol, "error", err.Error())
		} else {
			o.SetAccountBalance(account.TotalWalletBalance)
		}

		tasks = append(tasks, core.SymbolTask{
			Symbol:       symbol,
			Interval:     cfg.TradingConfig.Interval,
			HTFInterval:  cfg.TradingConfig.HTFInterval,
			Orchestrator: o,
		})
		symbols[symbol] = o
	}

	eng := core.New(stream, stream, stream, tasks, time.Minute)

	var jwtManager *auth.JWTManager
	if cfg.AuthConfig.Enabled {
		jwtManager = auth.NewJWTManager(cfg.AuthConfig.JWTSecret, cfg.AuthConfig.AccessTokenDuration, auth.DefaultConfig().RefreshTokenDuration)
	}
	operatorEmail := getenvOrDefault("OPERATOR_EMAIL", "operator@brooksengine.local")
	operatorPasswordHash := os.Getenv("OPERATOR_PASSWORD_HASH")
	if cfg.AuthConfig.Enabled && operatorPasswordHash == "" {
		logger.Warn("AUTH_ENABLED but OPERATOR_PASSWORD_HASH is unset; /login will reject all attempts")
	}

	apiServer := api.NewServer(api.Config{
		Port:            cfg.ServerConfig.Port,
		Host:            cfg.ServerConfig.Host,
		ProductionMode:  !cfg.TradingConfig.DryRun,
		AllowedOrigins:  []string{cfg.ServerConfig.AllowedOrigins},
		ReadTimeout:     time.Duration(cfg.ServerConfig.ReadTimeout) * time.Second,
		WriteTimeout:    time.Duration(cfg.ServerConfig.WriteTimeout) * time.Second,
		ShutdownTimeout: time.Duration(cfg.ServerConfig.ShutdownTimeout) * time.Second,
	}, bus, symbols, jwtManager, api.UserStore{
		Email:        operatorEmail,
		PasswordHash: operatorPasswordHash,
		UserID:       "operator",
	})

	go func() {
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops API server exited", "error", err.Error())
		}
	}()

	logger.Info("engine starting", "symbols", len(tasks), "dry_run", cfg.TradingConfig.DryRun)
	if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("engine exited with error: %v", err)
	}
	logger.Info("engine stopped")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops API server shutdown error", "error", err.Error())
	}
}

func getenvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
