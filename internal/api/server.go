// Package api serves the engine's ops/status HTTP surface: a health
// check, a login endpoint issuing short-lived JWTs, and a JWT-protected
// status endpoint reporting each tracked symbol's open positions. Grounded
// on the teacher's internal/api/server.go (gin.New + Logger/Recovery +
// cors.New wiring, NewServer's ServerConfig shape) trimmed to the single
// ops concern spec.md's "Out of scope: a UI or HTTP control surface beyond
// basic ops/health endpoints" leaves in bounds.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"brooksengine/internal/auth"
	"brooksengine/internal/events"
	"brooksengine/internal/orchestrator"
)

// Config holds the ops HTTP server's own settings, matching
// config.ServerConfig's shape.
type Config struct {
	Port            int
	Host            string
	ProductionMode  bool
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// UserStore is the single fixed operator account that /login checks a
// request's credentials against; tests construct it directly.
type UserStore struct {
	Email        string
	PasswordHash string
	UserID       string
}

// Server is the engine's ops/status HTTP server.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	cfg         Config
	bus         *events.EventBus
	symbols     map[string]*orchestrator.Orchestrator
	jwtManager  *auth.JWTManager
	passwords   *auth.PasswordManager
	authEnabled bool
	user        UserStore
}

// NewServer constructs a Server. jwtManager may be nil, disabling the
// login/protected-status split — in that case /status is open.
func NewServer(cfg Config, bus *events.EventBus, symbols map[string]*orchestrator.Orchestrator, jwtManager *auth.JWTManager, user UserStore) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:      router,
		cfg:         cfg,
		bus:         bus,
		symbols:     symbols,
		jwtManager:  jwtManager,
		passwords:   auth.NewPasswordManager(auth.DefaultBcryptCost, auth.MinPasswordLength),
		authEnabled: jwtManager != nil,
		user:        user,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.POST("/login", s.handleLogin)

	status := s.router.Group("/status")
	if s.authEnabled {
		status.Use(auth.Middleware(s.jwtManager))
	}
	status.GET("", s.handleStatus)
	status.GET("/:symbol", s.handleSymbolStatus)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleLogin(c *gin.Context) {
	if !s.authEnabled {
		c.JSON(http.StatusNotImplemented, gin.H{"message": "auth disabled"})
		return
	}
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Email != s.user.Email || !s.passwords.VerifyPassword(req.Password, s.user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   auth.ErrInvalidCredentials.Code,
			"message": auth.ErrInvalidCredentials.Message,
		})
		return
	}

	claims := auth.UserClaims{UserID: s.user.UserID, Email: s.user.Email}
	token, err := s.jwtManager.GenerateAccessToken(claims)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, auth.TokenPair{AccessToken: token, TokenType: "Bearer"})
}

func (s *Server) handleStatus(c *gin.Context) {
	out := make(map[string]interface{}, len(s.symbols))
	for symbol, o := range s.symbols {
		out[symbol] = symbolSnapshot(o)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleSymbolStatus(c *gin.Context) {
	symbol := c.Param("symbol")
	o, ok := s.symbols[symbol]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol"})
		return
	}
	c.JSON(http.StatusOK, symbolSnapshot(o))
}

func symbolSnapshot(o *orchestrator.Orchestrator) gin.H {
	positions := o.Positions()
	open := make([]gin.H, 0, len(positions))
	for _, p := range positions {
		open = append(open, gin.H{
			"signal_id":      p.SignalID.String(),
			"side":           p.Side.String(),
			"kind":           p.Kind.String(),
			"status":         string(p.Status),
			"hard_stop":      p.HardStop,
			"technical_stop": p.TechnicalStop,
			"opened_at":      p.OpenedAt,
		})
	}
	return gin.H{
		"symbol":         o.Symbol(),
		"bars_buffered":  o.PrimaryBufferLen(),
		"open_positions": open,
	}
}

// Start runs the HTTP server until Shutdown is called, matching the
// teacher's gin.Engine+http.Server split so graceful shutdown has a
// server to call Shutdown on.
func (s *Server) Start() error {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

