package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"brooksengine/internal/auth"
	"brooksengine/internal/broker"
	"brooksengine/internal/events"
	"brooksengine/internal/orchestrator"
	"brooksengine/internal/signal"
)

// noopAdapter satisfies broker.Adapter without placing any real orders,
// enough to construct an Orchestrator for these handler tests.
type noopAdapter struct{}

func (noopAdapter) PlaceStopOrder(ctx context.Context, symbol string, side signal.Side, qty, stopPrice, tp float64, magic signal.Magic) (string, error) {
	return "", nil
}
func (noopAdapter) CancelOrder(ctx context.Context, symbol, orderID string) error { return nil }
func (noopAdapter) ModifyStop(ctx context.Context, symbol, orderID string, newStop float64) error {
	return nil
}
func (noopAdapter) ClosePosition(ctx context.Context, symbol string, qty float64, side signal.Side) error {
	return nil
}
func (noopAdapter) GetOrder(ctx context.Context, symbol, orderID string) (broker.OrderUpdate, error) {
	return broker.OrderUpdate{}, nil
}
func (noopAdapter) CurrentSpread(ctx context.Context, symbol string) (float64, error) { return 0, nil }
func (noopAdapter) LotStep(ctx context.Context, symbol string) (float64, error)       { return 0.001, nil }

func newTestServer(jwtManager *auth.JWTManager, user UserStore) *Server {
	o := orchestrator.New("BTCUSDT", orchestrator.DefaultConfig(), noopAdapter{}, nil, nil,
		events.NewEventBus(), nil, zerolog.Nop())
	symbols := map[string]*orchestrator.Orchestrator{"BTCUSDT": o}
	return NewServer(Config{
		Port:            8080,
		Host:            "127.0.0.1",
		AllowedOrigins:  []string{"*"},
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}, events.NewEventBus(), symbols, jwtManager, user)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(nil, UserStore{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestHandleStatusReportsTrackedSymbols(t *testing.T) {
	s := newTestServer(nil, UserStore{})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	snap, ok := body["BTCUSDT"]
	if !ok {
		t.Fatal("expected BTCUSDT in status response")
	}
	if snap["symbol"] != "BTCUSDT" {
		t.Errorf("expected symbol BTCUSDT, got %v", snap["symbol"])
	}
}

func TestHandleSymbolStatusUnknownSymbol(t *testing.T) {
	s := newTestServer(nil, UserStore{})

	req := httptest.NewRequest(http.MethodGet, "/status/ETHUSDT", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestStatusRejectsUnauthenticatedWhenAuthEnabled(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Minute, time.Hour)
	s := newTestServer(jwtManager, UserStore{Email: "op@example.com", PasswordHash: "unused", UserID: "operator"})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", w.Code)
	}
}

func TestLoginIssuesTokenForValidCredentials(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Minute, time.Hour)
	pm := auth.NewPasswordManager(auth.DefaultBcryptCost, auth.MinPasswordLength)
	hash, err := pm.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	s := newTestServer(jwtManager, UserStore{Email: "op@example.com", PasswordHash: hash, UserID: "operator"})

	body := `{"email":"op@example.com","password":"correct horse battery staple"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var tokens auth.TokenPair
	if err := json.Unmarshal(w.Body.Bytes(), &tokens); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if tokens.AccessToken == "" {
		t.Error("expected a non-empty access token")
	}

	statusReq := httptest.NewRequest(http.MethodGet, "/status", nil)
	statusReq.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	statusW := httptest.NewRecorder()
	s.router.ServeHTTP(statusW, statusReq)
	if statusW.Code != http.StatusOK {
		t.Fatalf("expected authenticated /status to return 200, got %d", statusW.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Minute, time.Hour)
	pm := auth.NewPasswordManager(auth.DefaultBcryptCost, auth.MinPasswordLength)
	hash, _ := pm.HashPassword("correct horse battery staple")
	s := newTestServer(jwtManager, UserStore{Email: "op@example.com", PasswordHash: hash, UserID: "operator"})

	body := `{"email":"op@example.com","password":"wrong password"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestLoginDisabledWithoutJWTManager(t *testing.T) {
	s := newTestServer(nil, UserStore{})

	body := `{"email":"op@example.com","password":"whatever"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", w.Code)
	}
}
