package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vistapay/merchant-radar/internal/config"
	"github.com/vistapay/merchant-radar/internal/inactivity"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{
		Port:          "0",
		Env:           "development",
		LogLevel:      "error",
		TokenTTLHours: 1,
		RateLimitRPM:  10000,
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		if srv.rateLimiter != nil {
			srv.rateLimiter.Stop()
		}
	})
	return srv
}

func doJSON(srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func login(t *testing.T, srv *Server) string {
	t.Helper()
	w := doJSON(srv, "POST", "/auth/login", "", map[string]string{
		"username": "admin", "password": "admin",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("no token in login response: %s", w.Body.String())
	}
	return resp.Token
}

func TestServer_HealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health", "/health/live", "/metrics", "/api"} {
		w := doJSON(srv, "GET", path, "", nil)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestServer_ProtectedEndpointsRequireAuth(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(srv, "GET", "/inscriptions?start_date=2024-01-01&end_date=2024-12-31", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}

	w = doJSON(srv, "POST", "/predict/inactive-merchants", "", map[string]any{
		"marchands_ids": []int64{101},
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}
}

func TestServer_LoginFlow(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(srv, "POST", "/auth/login", "", map[string]string{
		"username": "admin", "password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong password, got %d", w.Code)
	}

	token := login(t, srv)
	if token == "" {
		t.Fatal("Expected a token")
	}
}

func TestServer_Inscriptions(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	w := doJSON(srv, "GET", "/inscriptions?start_date=2024-01-01&end_date=2024-01-31", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Inscriptions []map[string]any `json:"inscriptions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// Demo data: merchants 101 and 102 validated in January; 104 is
	// pending and must not appear regardless of date.
	if len(resp.Inscriptions) != 2 {
		t.Fatalf("Expected 2 January registrations, got %d", len(resp.Inscriptions))
	}
	for _, ins := range resp.Inscriptions {
		if ins["etat"] != "Validée" {
			t.Errorf("Non-validated registration leaked: %v", ins)
		}
	}

	// Missing params
	w = doJSON(srv, "GET", "/inscriptions", token, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing dates, got %d", w.Code)
	}
}

func TestServer_Predict(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	w := doJSON(srv, "POST", "/predict/inactive-merchants", token, map[string]any{
		"marchands_ids": []int64{101, 102, 103},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		InactiveMerchants []inactivity.InactiveMerchant `json:"inactive_merchants"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	flagged := make(map[int64]bool)
	for _, m := range resp.InactiveMerchants {
		flagged[m.MerchantID] = true
		if m.Risk < 0 || m.Risk > 1 {
			t.Errorf("Risk out of range: %f", m.Risk)
		}
	}

	// 101 transacts constantly; the fallback model must not flag it.
	if flagged[101] {
		t.Error("Recently active merchant flagged inactive")
	}
	// 102 and 103 have been silent for months.
	if !flagged[102] || !flagged[103] {
		t.Errorf("Stale merchants should be flagged, got %v", flagged)
	}
}

func TestServer_Predict_EmptyIDs(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	w := doJSON(srv, "POST", "/predict/inactive-merchants", token, map[string]any{
		"marchands_ids": []int64{},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty merchant set, got %d", w.Code)
	}
}

func TestServer_RequestIDHeader(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(srv, "GET", "/api", "", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID response header")
	}
}

func TestServer_LogoutRevokesToken(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	if w := doJSON(srv, "GET", "/inscriptions?start_date=2024-01-01&end_date=2024-12-31", token, nil); w.Code != http.StatusOK {
		t.Fatalf("Pre-logout request: expected 200, got %d", w.Code)
	}

	if w := doJSON(srv, "POST", "/auth/logout", token, nil); w.Code != http.StatusOK {
		t.Fatalf("Logout: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if w := doJSON(srv, "GET", "/inscriptions?start_date=2024-01-01&end_date=2024-12-31", token, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("Post-logout request: expected 401, got %d", w.Code)
	}
}
