// Package metrics owns the Prometheus registry served on /metrics.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/mapstate/internal/core/observability"
)

type Config struct {
	Version string
}

type Provider struct {
	reg *prometheus.Registry
}

// Init builds a registry holding the runtime collectors and the service's own
// vectors, and publishes build info.
func Init(cfg Config) (*Provider, error) {
	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := observability.Init(reg); err != nil {
		return nil, fmt.Errorf("register app metrics: %w", err)
	}
	observability.ExposeBuildInfo(cfg.Version)

	return &Provider{reg: reg}, nil
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}
