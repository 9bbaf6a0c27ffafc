package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLiveness_Handler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	Liveness()(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	ct := rr.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q want text/plain", ct)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "ok" {
		t.Fatalf("body=%q want ok", got)
	}
}

func TestReadiness_AllPass(t *testing.T) {
	ok := Check{Name: "redis", Probe: func(context.Context) error { return nil }}
	rr := httptest.NewRecorder()
	Readiness(time.Second, ok)(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ready"`) {
		t.Fatalf("body=%s", rr.Body.String())
	}
}

func TestReadiness_FailureNamesDependency(t *testing.T) {
	ok := Check{Name: "redis", Probe: func(context.Context) error { return nil }}
	bad := Check{Name: "kafka", Probe: func(context.Context) error { return errors.New("no brokers") }}
	rr := httptest.NewRecorder()
	Readiness(time.Second, ok, bad)(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want 503", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"kafka":"no brokers"`) || strings.Contains(body, `"redis"`) {
		t.Fatalf("body=%s", body)
	}
}

func TestReadiness_NoChecks(t *testing.T) {
	rr := httptest.NewRecorder()
	Readiness(time.Second)(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
}
