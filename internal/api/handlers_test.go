// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vurafps/Webpanel/internal/artifact"
	"github.com/vurafps/Webpanel/internal/config"
	"github.com/vurafps/Webpanel/internal/idler"
	"github.com/vurafps/Webpanel/internal/session/manager"
	"github.com/vurafps/Webpanel/internal/session/store"
)

func newTestServer(t *testing.T) *chi.Mux {
	t.Helper()

	cfg := config.AppConfig{
		Listen:               ":0",
		DataDir:              t.TempDir(),
		QRDir:                t.TempDir(),
		UsersDir:             t.TempDir(),
		AllowedOrigins:       []string{"*"},
		APIRequestsPerMinute: 100000,
		LoginRatePerSecond:   10000,
		LoginBurst:           10000,
		GlobalRatePerSecond:  10000,
		GlobalBurst:          10000,
		LogoutTimeout:        time.Second,
		ShutdownTimeout:      2 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	factory := &idler.VirtualFactory{
		QrDelay:    time.Millisecond,
		LoginDelay: 2 * time.Millisecond,
		AutoLogin:  true,
	}
	art := artifact.NewManager(cfg.QRDir, func(data string) ([]byte, error) {
		return []byte("png:" + data), nil
	})
	orch := manager.New(ctx, store.New(), art, factory, cfg.UsersDir)
	orch.LogoutTimeout = cfg.LogoutTimeout

	t.Cleanup(func() {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutCancel()
		if err := orch.Shutdown(shutCtx); err != nil {
			t.Errorf("shutdown: %v", err)
		}
		cancel()
	})

	return New(cfg, orch).Router()
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
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
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var decoded map[string]any
	if rr.Body.Len() > 0 && strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("%s %s: invalid JSON response %q: %v", method, path, rr.Body.String(), err)
		}
	}
	return rr, decoded
}

func waitForStatus(t *testing.T, router http.Handler, username, want string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var last map[string]any
	for time.Now().Before(deadline) {
		_, last = doJSON(t, router, http.MethodGet, "/login-status/"+username, "")
		if last["status"] == want {
			return last
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s status %q, last: %v", username, want, last)
	return nil
}

func TestLogin_FullFlow(t *testing.T) {
	router := newTestServer(t)

	rr, body := doJSON(t, router, http.MethodPost, "/login", `{"username":"alice"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("login status = %d, body %s", rr.Code, rr.Body.String())
	}
	if body["message"] != "Login process started" || body["username"] != "alice" {
		t.Fatalf("login body = %v", body)
	}

	// The virtual backend walks the handshake on its own: QR first.
	status := waitForStatus(t, router, "alice", "qr_ready")
	if status["qrCode"] != "/qr/alice.png" {
		t.Fatalf("qrCode = %v", status["qrCode"])
	}

	// The advertised QR path must actually serve the image.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/qr/alice.png", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("qr fetch = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("qr content type = %q", ct)
	}

	status = waitForStatus(t, router, "alice", "logged_in")
	if _, hasQR := status["qrCode"]; hasQR {
		t.Fatalf("qrCode still advertised after login: %v", status)
	}
}

func TestLogin_Validation(t *testing.T) {
	router := newTestServer(t)

	rr, body := doJSON(t, router, http.MethodPost, "/login", `{"username":""}`)
	if rr.Code != http.StatusBadRequest || body["error"] != "Username is required" {
		t.Fatalf("empty username: code=%d body=%v", rr.Code, body)
	}

	rr, _ = doJSON(t, router, http.MethodPost, "/login", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad json: code=%d", rr.Code)
	}

	rr, _ = doJSON(t, router, http.MethodPost, "/login", `{"username":"../escape"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("path-hostile username: code=%d", rr.Code)
	}
}

func TestLogin_Duplicate(t *testing.T) {
	router := newTestServer(t)

	rr, _ := doJSON(t, router, http.MethodPost, "/login", `{"username":"bob"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("first login = %d", rr.Code)
	}
	rr, body := doJSON(t, router, http.MethodPost, "/login", `{"username":"bob"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("second login = %d, want 409", rr.Code)
	}
	if body["error"] == "" {
		t.Fatalf("conflict body = %v", body)
	}
}

func TestLoginStatus_Unknown(t *testing.T) {
	router := newTestServer(t)

	rr, body := doJSON(t, router, http.MethodGet, "/login-status/ghost", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rr.Code)
	}
	if body["status"] != "not_found" || body["username"] != "ghost" {
		t.Fatalf("body = %v", body)
	}
}

func TestIdleEndpoints(t *testing.T) {
	router := newTestServer(t)

	// Not logged in yet.
	rr, body := doJSON(t, router, http.MethodPost, "/start-idle", `{"username":"carol","appIds":["730"]}`)
	if rr.Code != http.StatusBadRequest || body["error"] != "User not logged in" {
		t.Fatalf("start before login: code=%d body=%v", rr.Code, body)
	}

	doJSON(t, router, http.MethodPost, "/login", `{"username":"carol"}`)
	waitForStatus(t, router, "carol", "logged_in")

	// Invalid entries are dropped; only the numeric survivors count.
	rr, body = doJSON(t, router, http.MethodPost, "/start-idle", `{"username":"carol","appIds":["730","abc","-5"," 440 "]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("start idle: code=%d body=%v", rr.Code, body)
	}
	ids, ok := body["appIds"].([]any)
	if !ok || len(ids) != 2 {
		t.Fatalf("appIds = %v", body["appIds"])
	}

	rr, body = doJSON(t, router, http.MethodGet, "/idle-status/carol", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("idle status: %d", rr.Code)
	}
	if body["loggedIn"] != true || body["idling"] != true {
		t.Fatalf("idle status body = %v", body)
	}
	games, ok := body["currentGames"].([]any)
	if !ok || len(games) != 2 {
		t.Fatalf("currentGames = %v", body["currentGames"])
	}

	rr, _ = doJSON(t, router, http.MethodPost, "/stop-idle", `{"username":"carol"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("stop idle: %d", rr.Code)
	}
	rr, body = doJSON(t, router, http.MethodPost, "/stop-idle", `{"username":"carol"}`)
	if rr.Code != http.StatusBadRequest || body["error"] != "User not idling" {
		t.Fatalf("second stop: code=%d body=%v", rr.Code, body)
	}

	// All-invalid ID list never reaches the orchestrator.
	rr, body = doJSON(t, router, http.MethodPost, "/start-idle", `{"username":"carol","appIds":["abc","-1"]}`)
	if rr.Code != http.StatusBadRequest || body["error"] != "No valid app IDs provided" {
		t.Fatalf("all-invalid ids: code=%d body=%v", rr.Code, body)
	}
}

func TestIdleStatus_UnknownUserReadsLoggedOut(t *testing.T) {
	router := newTestServer(t)

	rr, body := doJSON(t, router, http.MethodGet, "/idle-status/ghost", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("code = %d", rr.Code)
	}
	if body["loggedIn"] != false || body["idling"] != false {
		t.Fatalf("body = %v", body)
	}
	if games, ok := body["currentGames"].([]any); !ok || len(games) != 0 {
		t.Fatalf("currentGames = %v", body["currentGames"])
	}
}

func TestLogout(t *testing.T) {
	router := newTestServer(t)

	doJSON(t, router, http.MethodPost, "/login", `{"username":"dave"}`)
	waitForStatus(t, router, "dave", "logged_in")

	rr, body := doJSON(t, router, http.MethodPost, "/logout", `{"username":"dave"}`)
	if rr.Code != http.StatusOK || body["message"] != "Logged out dave" {
		t.Fatalf("logout: code=%d body=%v", rr.Code, body)
	}

	waitForStatus(t, router, "dave", "not_found")

	// Logging out again, or a user that never existed, still succeeds.
	rr, _ = doJSON(t, router, http.MethodPost, "/logout", `{"username":"dave"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("repeat logout: %d", rr.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestServer(t)

	rr, body := doJSON(t, router, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health: code=%d body=%v", rr.Code, body)
	}
	if _, ok := body["activeUsers"]; !ok {
		t.Fatalf("health body lacks counts: %v", body)
	}

	rr, body = doJSON(t, router, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz: code=%d body=%v", rr.Code, body)
	}
}

func TestQRFileServer_Hardening(t *testing.T) {
	router := newTestServer(t)

	paths := []string{
		"/qr/%2e%2e/secret.png",
		"/qr/%252e%252e/secret.png",
		"/qr/sub/../../etc/passwd.png",
		"/qr/",
		"/qr/no-extension",
	}
	for _, p := range paths {
		req := httptest.NewRequest(http.MethodGet, p, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code == http.StatusOK {
			t.Errorf("GET %s = 200, want rejection", p)
		}
	}

	// An absent but well-formed image is a plain 404.
	req := httptest.NewRequest(http.MethodGet, "/qr/missing.png", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing image = %d, want 404", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "webpanel_") {
		t.Fatal("metrics output lacks webpanel series")
	}
}
