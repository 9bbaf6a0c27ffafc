package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsHandler_Smoke(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Init(reg); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := Init(reg); err != nil {
		t.Fatalf("second Init must tolerate re-registration: %v", err)
	}

	ExposeBuildInfo("test")
	ObserveHTTP("GET", "/state", 200, 0.001)
	IncKeyCheck("valid")
	IncStoreAction("setFilter")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`mapstate_build_info{version="test"} 1`,
		`http_requests_total{method="GET",route="/state",status="200"}`,
		`api_key_checks_total{outcome="valid"}`,
		`store_actions_total{action="setFilter"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics payload missing %q; got:\n%s", want, body)
		}
	}
}

func TestIncKeyCache_Counts(t *testing.T) {
	before := testutil.ToFloat64(apiKeyCache.WithLabelValues("local", "hit"))
	IncKeyCache("local", "hit")
	IncKeyCache("local", "hit")
	after := testutil.ToFloat64(apiKeyCache.WithLabelValues("local", "hit"))
	if after-before != 2 {
		t.Fatalf("delta=%v want 2", after-before)
	}
}
