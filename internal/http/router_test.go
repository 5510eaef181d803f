package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/todotask/internal/auth"
	apphttp "github.com/geocoder89/todotask/internal/http"
	"github.com/geocoder89/todotask/internal/http/handlers"
	"github.com/geocoder89/todotask/internal/observability"
	"github.com/geocoder89/todotask/internal/repo/memory"
	"github.com/geocoder89/todotask/internal/security"
	"github.com/geocoder89/todotask/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	router *gin.Engine
	users  *memory.UsersRepo
}

func newTestServer(t *testing.T, checks map[string]handlers.Pinger) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := auth.NewManager("test-secret-key", "HS256", 30*time.Minute, 10080*time.Minute)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}

	repo := memory.NewUsersRepo()
	accounts := service.NewAccounts(memory.NewUnitOfWork(repo), tokens,
		service.WithPasswordHasher(func(plain string) (string, error) {
			return security.HashPasswordWithParams(plain, security.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
		}, security.CheckPassword),
	)

	reg := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := apphttp.NewRouter(apphttp.RouterConfig{
		ServiceName:    "todotask-test",
		AllowedHosts:   []string{"127.0.0.1", "localhost"},
		RequestTimeout: 5 * time.Second,
	}, apphttp.RouterDeps{
		Log:      logger,
		Accounts: accounts,
		Checks:   checks,
		Prom:     observability.NewProm(reg),
		Gatherer: reg,
	})

	return testServer{router: router, users: repo}
}

func (s testServer) do(t *testing.T, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Host = "localhost"

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range header {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	return w
}

type errorBody struct {
	Detail    string                `json:"detail"`
	Code      string                `json:"code"`
	RequestID string                `json:"requestId"`
	Fields    []handlers.FieldError `json:"fields"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body: %v body=%s", err, w.Body.String())
	}

	return out
}

func registerBody(email, password string) string {
	b, _ := json.Marshal(map[string]string{"email": email, "password": password})
	return string(b)
}

func TestRegisterLoginMe(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/auth/register", registerBody("first_user@localhost.com", "S5P3RS3CR3TP4SSW0RD"), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: got %d body=%s", w.Code, w.Body.String())
	}

	created := decode[map[string]any](t, w)
	if created["email"] != "first_user@localhost.com" || created["id"] == nil {
		t.Fatalf("unexpected register body: %v", created)
	}
	if len(created) != 2 {
		t.Fatalf("register body should only carry id and email: %v", created)
	}

	w = s.do(t, http.MethodPost, "/auth/login", registerBody("first_user@localhost.com", "S5P3RS3CR3TP4SSW0RD"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login: got %d body=%s", w.Code, w.Body.String())
	}

	pair := decode[auth.TokenPair](t, w)
	if pair.TokenType != "Bearer" || pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("unexpected token pair: %+v", pair)
	}

	w = s.do(t, http.MethodGet, "/auth/me", "", map[string]string{"Authorization": "Bearer " + pair.AccessToken})
	if w.Code != http.StatusOK {
		t.Fatalf("me: got %d body=%s", w.Code, w.Body.String())
	}

	me := decode[map[string]any](t, w)
	if me["email"] != "first_user@localhost.com" || me["id"] != created["id"] {
		t.Fatalf("unexpected me body: %v", me)
	}
}

func TestRegister_Failures(t *testing.T) {
	s := newTestServer(t, nil)

	if w := s.do(t, http.MethodPost, "/auth/register", registerBody("taken@localhost.com", "longenough1"), nil); w.Code != http.StatusCreated {
		t.Fatalf("seed registration failed: %d %s", w.Code, w.Body.String())
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantDetail string
	}{
		{"duplicate", registerBody("taken@localhost.com", "AnyPassword"), http.StatusConflict, "User with this email already exists"},
		{"invalid email", registerBody("invalid_email", "test_register_password"), http.StatusUnprocessableEntity, "Invalid email"},
		{"email without dot", registerBody("invalid_email@com", "test_register_password"), http.StatusUnprocessableEntity, "Invalid email"},
		{"weak password", registerBody("new@localhost.com", "12333"), http.StatusUnprocessableEntity, "Password must be at least 8 characters."},
		{"empty password", registerBody("new@localhost.com", ""), http.StatusUnprocessableEntity, "Password must be at least 8 characters."},
		{"missing password", `{"email":"new@localhost.com"}`, http.StatusUnprocessableEntity, "'password' Field required"},
		{"missing email", `{"password":"longenough1"}`, http.StatusUnprocessableEntity, "'email' Field required"},
		{"email not a string", `{"email":123,"password":"longenough1"}`, http.StatusUnprocessableEntity, "'email' Input should be a valid string"},
		{"broken json", `{"email":`, http.StatusUnprocessableEntity, "'body' JSON decode error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/auth/register", tt.body, nil)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			body := decode[errorBody](t, w)
			if body.Detail != tt.wantDetail {
				t.Fatalf("got detail %q, want %q", body.Detail, tt.wantDetail)
			}
			if body.RequestID == "" {
				t.Fatalf("error body should carry the request id")
			}
		})
	}

	if n := s.users.Len(); n != 1 {
		t.Fatalf("failed registrations must not write, users=%d", n)
	}
}

func TestRegister_RequiresJSON(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/auth/register", registerBody("a@b.com", "longenough1"), map[string]string{"Content-Type": "text/plain"})
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("got %d, want 415", w.Code)
	}
}

func TestRegister_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, nil)

	body := registerBody("a@b.com", strings.Repeat("x", 2<<20))
	w := s.do(t, http.MethodPost, "/auth/register", body, nil)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("got %d, want 413", w.Code)
	}
}

func TestLogin_Failures(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/auth/register", registerBody("a@b.com", "longenough1"), nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantDetail string
	}{
		{"wrong password", registerBody("a@b.com", "wrong-password"), http.StatusBadRequest, "Invalid password"},
		{"unknown user", registerBody("nobody@b.com", "longenough1"), http.StatusBadRequest, "User not found"},
		{"missing password", `{"email":"a@b.com"}`, http.StatusUnprocessableEntity, "'password' Field required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/auth/login", tt.body, nil)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
			if got := decode[errorBody](t, w).Detail; got != tt.wantDetail {
				t.Fatalf("got detail %q, want %q", got, tt.wantDetail)
			}
		})
	}
}

func TestMe_Failures(t *testing.T) {
	s := newTestServer(t, nil)

	expired, err := auth.NewManager("test-secret-key", "HS256", time.Minute, time.Hour,
		auth.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }))
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	old, err := expired.GeneratePair(1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	ghost, err := auth.NewManager("test-secret-key", "HS256", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	gone, err := ghost.GeneratePair(999)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantDetail string
	}{
		{"no header", "", http.StatusUnauthorized, "Not authenticated"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "Not authenticated"},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnprocessableEntity, "Invalid token"},
		{"expired token", "Bearer " + old.AccessToken, http.StatusUnprocessableEntity, "Token has expired"},
		{"unknown user", "Bearer " + gone.AccessToken, http.StatusNotFound, "User not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}

			w := s.do(t, http.MethodGet, "/auth/me", "", headers)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
			if got := decode[errorBody](t, w).Detail; got != tt.wantDetail {
				t.Fatalf("got detail %q, want %q", got, tt.wantDetail)
			}
		})
	}
}

func TestHealthAndHeaders(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/health", "", map[string]string{"X-Request-Id": "req-123"})
	if w.Code != http.StatusOK {
		t.Fatalf("health: got %d", w.Code)
	}

	if got := decode[map[string]string](t, w); got["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", got)
	}

	if got := w.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("request id not echoed: %q", got)
	}

	pt := w.Header().Get("X-Process-Time")
	if secs, err := strconv.ParseFloat(pt, 64); err != nil || secs < 0 {
		t.Fatalf("bad X-Process-Time %q: %v", pt, err)
	}

	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing")
	}
}

func TestTrustedHost(t *testing.T) {
	s := newTestServer(t, nil)

	for host, want := range map[string]int{
		"localhost":      http.StatusOK,
		"localhost:8080": http.StatusOK,
		"127.0.0.1:8080": http.StatusOK,
		"evil.example":   http.StatusBadRequest,
	} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Host = host

		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)

		if w.Code != want {
			t.Fatalf("host %q: got %d, want %d", host, w.Code, want)
		}

		if want == http.StatusBadRequest {
			if got := decode[errorBody](t, w).Detail; got != "Invalid host header" {
				t.Fatalf("unexpected detail %q", got)
			}
			if w.Header().Get("X-Process-Time") == "" {
				t.Fatalf("rejected requests are timed too")
			}
		}
	}
}

func TestReadyz(t *testing.T) {
	up := newTestServer(t, map[string]handlers.Pinger{
		"postgres": pingFunc(func(context.Context) error { return nil }),
	})

	if w := up.do(t, http.MethodGet, "/readyz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("readyz: got %d", w.Code)
	}

	down := newTestServer(t, map[string]handlers.Pinger{
		"postgres": pingFunc(func(context.Context) error { return nil }),
		"redis":    pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") }),
	})

	w := down.do(t, http.MethodGet, "/readyz", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz: got %d, want 503", w.Code)
	}

	if !bytes.Contains(w.Body.Bytes(), []byte(`"redis":"unavailable"`)) {
		t.Fatalf("failing dependency not reported: %s", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodGet, "/health", "", nil)

	w := s.do(t, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: got %d", w.Code)
	}

	if !strings.Contains(w.Body.String(), `todotask_http_requests_total{method="GET",route="/health",status="200"} 1`) {
		t.Fatalf("request counter missing from exposition:\n%s", w.Body.String())
	}
}
