package apikey

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammed-shakir/mapstate/internal/core/observability"
)

func TestProber_AcceptsOnly200(t *testing.T) {
	var status atomic.Int32
	var method atomic.Value
	var key atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method.Store(r.Method)
		key.Store(r.URL.Query().Get("maxar_api_key"))
		if r.URL.Path != "/streaming/v1/ogc/ows" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	p := NewProber(srv.Client(), srv.URL+"/")

	status.Store(http.StatusOK)
	if err := p.Verify(context.Background(), "good-key"); err != nil {
		t.Fatalf("Verify with 200: %v", err)
	}
	if m := method.Load(); m != http.MethodHead {
		t.Fatalf("probe method=%v want HEAD", m)
	}
	if k := key.Load(); k != "good-key" {
		t.Fatalf("probe key=%v", k)
	}

	for _, code := range []int{http.StatusNoContent, http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError} {
		status.Store(int32(code))
		err := p.Verify(context.Background(), "bad-key")
		if !errors.Is(err, ErrRejected) {
			t.Fatalf("status %d: err=%v want ErrRejected", code, err)
		}
		var re *RejectedError
		if !errors.As(err, &re) || re.Status != code {
			t.Fatalf("status %d: err=%v want RejectedError with that status", code, err)
		}
		wantDefinitive := code == http.StatusUnauthorized || code == http.StatusForbidden
		if re.Definitive() != wantDefinitive {
			t.Fatalf("status %d: Definitive=%v", code, re.Definitive())
		}
	}
}

func TestProber_EmptyKeyNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	p := NewProber(srv.Client(), srv.URL)
	if err := p.Verify(context.Background(), " \t "); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("err=%v want ErrEmptyKey", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("empty key must not reach the network; hits=%d", hits.Load())
	}
}

func TestProber_TransportErrorRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	p := NewProber(http.DefaultClient, base)
	err := p.Verify(context.Background(), "secret-key-123")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if errors.Is(err, ErrRejected) {
		t.Fatalf("transport failure must not look like a rejection: %v", err)
	}
	if strings.Contains(err.Error(), "secret-key-123") {
		t.Fatalf("error leaks api key: %v", err)
	}
}

func latencySum(t *testing.T, reg *prometheus.Registry, upstream string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "upstream_latency_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "upstream" && l.GetValue() == upstream {
					return m.GetHistogram().GetSampleSum()
				}
			}
		}
	}
	return 0
}

func TestProber_RecordsLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := observability.Init(reg); err != nil {
		t.Fatalf("observability.Init: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	before := latencySum(t, reg, "api_key_probe")
	if err := NewProber(srv.Client(), srv.URL).Verify(context.Background(), "k"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if d := latencySum(t, reg, "api_key_probe") - before; d < 0.02 {
		t.Fatalf("recorded latency=%vs want >= 20ms", d)
	}
}
