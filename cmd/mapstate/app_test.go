package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/mapstate/internal/apikey"
	"github.com/mohammed-shakir/mapstate/internal/apikey/keycache"
	"github.com/mohammed-shakir/mapstate/internal/core/config"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func probeServer(t *testing.T, valid string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("maxar_api_key") == valid {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckKey(t *testing.T) {
	srv := probeServer(t, "good")
	t.Setenv("API_URL", srv.URL+"/")
	t.Setenv("REDIS_ADDR", "")

	out, err := runCmd(t, "check-key", "--key", "good")
	if err != nil {
		t.Fatalf("valid key: %v", err)
	}
	if !strings.Contains(out, "valid") {
		t.Fatalf("out=%q", out)
	}

	if _, err := runCmd(t, "check-key", "--key", "bad"); err == nil {
		t.Fatal("expected error for rejected key")
	}
}

func TestCheckKey_FallsBackToEnv(t *testing.T) {
	srv := probeServer(t, "from-env")
	t.Setenv("API_URL", srv.URL+"/")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("MAXAR_API_KEY", "from-env")

	if _, err := runCmd(t, "check-key"); err != nil {
		t.Fatalf("env key: %v", err)
	}
}

func TestCatalogCmd(t *testing.T) {
	out, err := runCmd(t, "catalog")
	if err != nil {
		t.Fatalf("built-in catalog: %v", err)
	}
	if !strings.Contains(out, "cloudCover") {
		t.Fatalf("out=%q", out)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("items:\n  - title: x\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, "catalog", "--file", bad); err == nil {
		t.Fatal("expected validation error for item without filter.field")
	}
}

func TestNewVerifier_CacheIsOptIn(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	vs, err := newVerifier(ctx, config.Config{APIURL: "https://api.example/"}, log)
	if err != nil {
		t.Fatalf("newVerifier: %v", err)
	}
	if _, ok := vs.verifier.(*apikey.Prober); !ok {
		t.Fatalf("default verifier=%T want *apikey.Prober", vs.verifier)
	}
	if len(vs.checks) != 0 || len(vs.closers) != 0 {
		t.Fatalf("no redis expected: %+v", vs)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	cfg := config.Config{KeyCache: config.KeyCacheCfg{RedisAddr: mr.Addr(), RedisPoolSize: 2}}
	vs, err = newVerifier(ctx, cfg, log)
	if err != nil {
		t.Fatalf("newVerifier with redis: %v", err)
	}
	defer vs.Close()
	if _, ok := vs.verifier.(*keycache.Cache); !ok {
		t.Fatalf("verifier=%T want *keycache.Cache", vs.verifier)
	}
	if len(vs.checks) != 1 || vs.checks[0].Name != "redis" {
		t.Fatalf("checks=%+v", vs.checks)
	}
}
