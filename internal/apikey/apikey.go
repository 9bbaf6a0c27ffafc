// Package apikey checks whether an API key is accepted by the imagery service.
package apikey

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammed-shakir/mapstate/internal/core/observability"
	"github.com/mohammed-shakir/mapstate/internal/core/ogc"
)

var (
	ErrEmptyKey = errors.New("api key is empty")
	ErrRejected = errors.New("api key rejected")
)

// RejectedError reports the non-200 status the imagery service answered with.
// It matches ErrRejected under errors.Is.
type RejectedError struct {
	Status int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%v: status %d", ErrRejected, e.Status)
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// Definitive reports whether the status says something about the key itself
// rather than the service's health.
func (e *RejectedError) Definitive() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// Verifier returns nil when key is accepted.
type Verifier interface {
	Verify(ctx context.Context, key string) error
}

// Prober issues a HEAD DescribeFeatureType request and accepts only status 200.
type Prober struct {
	client *http.Client
	base   string
}

func NewProber(client *http.Client, base string) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	return &Prober{client: client, base: base}
}

func (p *Prober) Verify(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, ogc.KeyProbeURL(p.base, key), nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	observability.ObserveUpstreamLatency("api_key_probe", time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("probe api key: %w", Redact(err, key))
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &RejectedError{Status: resp.StatusCode}
	}
	return nil
}

// Redact keeps the key out of *url.Error messages, which embed the request URL.
func Redact(err error, key string) error {
	if err == nil || key == "" {
		return err
	}
	msg := err.Error()
	out := strings.ReplaceAll(msg, url.QueryEscape(key), "REDACTED")
	out = strings.ReplaceAll(out, key, "REDACTED")
	if out == msg {
		return err
	}
	return redactedError{msg: out, err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e redactedError) Error() string { return e.msg }
func (e redactedError) Unwrap() error { return e.err }
