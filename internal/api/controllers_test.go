package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"tradectl/internal/cooldown"
	"tradectl/internal/engine"
	"tradectl/internal/events"
	"tradectl/internal/ledger"
	"tradectl/internal/market"
	"tradectl/internal/metrics"
	"tradectl/internal/monitor"
	"tradectl/internal/risk"
	"tradectl/pkg/db"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	bus := events.NewBus()
	eng := engine.New(engine.Config{Symbols: []string{"SBER"}}, engine.Deps{
		Ledger:    ledger.New(1_000_000),
		Cooldowns: cooldown.NewManager(cooldown.DefaultConfig(), nil),
		Gate:      risk.NewGate(risk.DefaultConfig()),
		Metrics:   metrics.NewEngine(1_000_000, 100),
		Prices:    market.NewResolver(nil, time.Second),
		Bus:       bus,
	})

	meta := SystemMeta{DryRun: true, Symbols: []string{"SBER"}, UseMockFeed: true, Version: "test"}
	return NewServer(bus, eng, database.Queries(), monitor.NewSystemMetrics(), meta, "test-secret")
}

func doRequest(s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(s, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", w.Code)
	}
}

func TestSystemStatusIsPublic(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(s, http.MethodGet, "/api/system/status", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["dry_run"] != true {
		t.Errorf("dry_run=%v, want true", resp["dry_run"])
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{
		"/api/positions",
		"/api/metrics/portfolio",
		"/api/cooldowns",
		"/api/transactions",
		"/api/decisions",
	} {
		w := doRequest(s, http.MethodGet, path, "", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status=%d, want 401", path, w.Code)
		}
	}
}

func TestRegisterLoginAndQuery(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodPost, "/api/auth/register",
		`{"email":"trader@example.com","password":"s3cret"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register status=%d: %s", w.Code, w.Body.String())
	}

	// Duplicate registration conflicts.
	w = doRequest(s, http.MethodPost, "/api/auth/register",
		`{"email":"trader@example.com","password":"s3cret"}`, "")
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register status=%d, want 409", w.Code)
	}

	w = doRequest(s, http.MethodPost, "/api/auth/login",
		`{"email":"trader@example.com","password":"s3cret"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login status=%d: %s", w.Code, w.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil || login.Token == "" {
		t.Fatalf("login response missing token: %s", w.Body.String())
	}

	w = doRequest(s, http.MethodGet, "/api/positions", "", login.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("positions status=%d: %s", w.Code, w.Body.String())
	}

	// Wrong password is rejected.
	w = doRequest(s, http.MethodPost, "/api/auth/login",
		`{"email":"trader@example.com","password":"wrong"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status=%d, want 401", w.Code)
	}
}

func TestCooldownEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := loginToken(t, s)

	w := doRequest(s, http.MethodGet, "/api/cooldowns?signal=SELL", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("cooldowns status=%d", w.Code)
	}

	w = doRequest(s, http.MethodGet, "/api/cooldowns/report", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("report status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Ready:") {
		t.Errorf("report body missing sections: %q", w.Body.String())
	}

	w = doRequest(s, http.MethodGet, "/api/cooldowns?signal=BOGUS", "", token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bogus signal status=%d, want 400", w.Code)
	}
}

func loginToken(t *testing.T, s *Server) string {
	t.Helper()
	w := doRequest(s, http.MethodPost, "/api/auth/register",
		`{"email":"cd@example.com","password":"pw"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register status=%d", w.Code)
	}
	w = doRequest(s, http.MethodPost, "/api/auth/login",
		`{"email":"cd@example.com","password":"pw"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login status=%d", w.Code)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	return login.Token
}
