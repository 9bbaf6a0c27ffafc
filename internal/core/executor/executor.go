// Package executor runs WFS GetFeature requests against the imagery API.
package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/mapstate/internal/apikey"
	"github.com/mohammed-shakir/mapstate/internal/core/observability"
)

const maxResponse = 32 << 20

type Executor struct {
	logger *slog.Logger
	client *http.Client
	owsURL *url.URL
}

func New(logger *slog.Logger, client *http.Client, ows string) (*Executor, error) {
	u, err := url.Parse(ows)
	if err != nil {
		return nil, fmt.Errorf("parse ows url: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Executor{
		logger: logger,
		client: client,
		owsURL: u,
	}, nil
}

// FetchFeatures sends params to the OWS endpoint with apiKey attached and
// decodes the GeoJSON FeatureCollection it returns.
func (e *Executor) FetchFeatures(ctx context.Context, params url.Values, apiKey string) ([]*geojson.Feature, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	q.Set("maxar_api_key", apiKey)

	u := *e.owsURL
	u.RawQuery = q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", apikey.Redact(err, apiKey))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", apikey.Redact(err, apiKey))
	}
	defer func() { _ = resp.Body.Close() }()

	dur := time.Since(start)
	observability.ObserveUpstreamLatency("wfs", dur.Seconds())
	e.logger.DebugContext(ctx, "wfs GetFeature done",
		"status", resp.StatusCode,
		"duration", dur.String(),
		"typeNames", params.Get("typeNames"))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	if fc.Features == nil {
		return []*geojson.Feature{}, nil
	}
	return fc.Features, nil
}
