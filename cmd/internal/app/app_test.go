package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CRONAPP_JWT_SECRET", strings.Repeat("j", 40))
	t.Setenv("CRONAPP_ARGON2_MEMORY_KIB", "8192")
	t.Setenv("CRONAPP_ARGON2_ITERATIONS", "1")
	t.Setenv("CRONAPP_ARGON2_PARALLELISM", "1")
	t.Setenv("CRONAPP_DATABASE_URL", "")
	t.Setenv("CRONAPP_RESEND_API_KEY", "")
}

func newTestApp(t *testing.T, mutate func(*Config)) *App {
	t.Helper()
	setTestEnv(t)

	cfg := LoadConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	a, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestNew_InMemory(t *testing.T) {
	a := newTestApp(t, nil)
	h := a.Handler()

	if rr := get(t, h, "/healthz"); rr.Code != http.StatusOK {
		t.Fatalf("healthz=%d", rr.Code)
	}
	if rr := get(t, h, "/readyz"); rr.Code != http.StatusOK {
		t.Fatalf("readyz=%d", rr.Code)
	}
	rr := get(t, h, "/api/auth/auth-methods")
	if rr.Code != http.StatusOK {
		t.Fatalf("auth-methods=%d", rr.Code)
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("security headers missing: %q", got)
	}
}

func TestNew_MetricsTrackSessions(t *testing.T) {
	a := newTestApp(t, nil)
	h := a.Handler()

	body := `{"first_name":"Ana","last_name":"Silva","email":"ana@example.com","password":"Correct-Horse-42"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = get(t, h, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics=%d", rr.Code)
	}
	out := rr.Body.String()
	for _, want := range []string{"cronapp_session_registered_total 1", "go_goroutines"} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}

func TestNew_MetricsDisabled(t *testing.T) {
	a := newTestApp(t, func(c *Config) { c.MetricsEnabled = false })

	if rr := get(t, a.Handler(), "/metrics"); rr.Code != http.StatusNotFound {
		t.Fatalf("metrics=%d want=404", rr.Code)
	}
}

func TestReadyz_RequireDB(t *testing.T) {
	a := newTestApp(t, func(c *Config) { c.ReadinessRequireDB = true })

	if rr := get(t, a.Handler(), "/readyz"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz=%d want=503", rr.Code)
	}
}

func TestNew_RequiresJWTSecret(t *testing.T) {
	setTestEnv(t)
	t.Setenv("CRONAPP_JWT_SECRET", "")

	if _, err := New(LoadConfig(), slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatalf("expected error without CRONAPP_JWT_SECRET")
	}
}

func TestNonZero(t *testing.T) {
	t.Parallel()

	if got := nonZeroDuration(0, 5); got != 5 {
		t.Fatalf("nonZeroDuration(0)=%v", got)
	}
	if got := nonZeroDuration(7, 5); got != 7 {
		t.Fatalf("nonZeroDuration(7)=%v", got)
	}
	if got := nonZeroInt(-1, 9); got != 9 {
		t.Fatalf("nonZeroInt(-1)=%d", got)
	}
}
