package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/mapstate/internal/apikey"
	"github.com/mohammed-shakir/mapstate/internal/apikey/keycache"
	"github.com/mohammed-shakir/mapstate/internal/cache/redisstore"
	"github.com/mohammed-shakir/mapstate/internal/catalog"
	"github.com/mohammed-shakir/mapstate/internal/core/config"
	"github.com/mohammed-shakir/mapstate/internal/core/executor"
	"github.com/mohammed-shakir/mapstate/internal/core/health"
	"github.com/mohammed-shakir/mapstate/internal/core/httpclient"
	"github.com/mohammed-shakir/mapstate/internal/core/model"
	"github.com/mohammed-shakir/mapstate/internal/core/ogc"
	"github.com/mohammed-shakir/mapstate/internal/core/router"
	"github.com/mohammed-shakir/mapstate/internal/core/server"
	"github.com/mohammed-shakir/mapstate/internal/events"
	"github.com/mohammed-shakir/mapstate/internal/events/kafkapub"
	"github.com/mohammed-shakir/mapstate/internal/logger"
	h3mapper "github.com/mohammed-shakir/mapstate/internal/mapper/h3"
	"github.com/mohammed-shakir/mapstate/internal/mapview/headless"
	"github.com/mohammed-shakir/mapstate/internal/metrics"
	"github.com/mohammed-shakir/mapstate/internal/store"
)

func newLogger(cfg config.Config, component string, out io.Writer) *slog.Logger {
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: component,
	}, out)
	return logger.NewSlog(&zl)
}

// verifierStack is the key prober, optionally behind the verdict cache.
type verifierStack struct {
	verifier apikey.Verifier
	checks   []health.Check
	closers  []io.Closer
}

func (v *verifierStack) Close() {
	for _, c := range v.closers {
		_ = c.Close()
	}
}

func newVerifier(ctx context.Context, cfg config.Config, log *slog.Logger) (*verifierStack, error) {
	prober := apikey.NewProber(httpclient.NewOutbound(cfg.ProbeTimeout), cfg.APIURL)
	vs := &verifierStack{verifier: prober}

	var remote keycache.Remote
	if cfg.KeyCache.RedisAddr != "" {
		rc, err := redisstore.New(ctx, cfg.KeyCache.RedisAddr,
			redisstore.WithPoolSize(cfg.KeyCache.RedisPoolSize),
			redisstore.WithDialTimeout(cfg.KeyCache.RedisDialTimeout),
			redisstore.WithReadTimeout(cfg.KeyCache.RedisReadTimeout))
		if err != nil {
			return nil, fmt.Errorf("key cache redis: %w", err)
		}
		remote = rc
		vs.closers = append(vs.closers, rc)
		vs.checks = append(vs.checks, health.Check{Name: "redis", Probe: rc.Ping})
	}
	if cfg.KeyCache.LocalSize > 0 || remote != nil {
		vs.verifier = keycache.New(prober, remote, cfg.KeyCache.LocalSize, cfg.KeyCache.TTL, log)
	}
	return vs, nil
}

func newServeCmd() *cobra.Command {
	var catalogPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session state API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			log := newLogger(cfg, "mapstate", os.Stdout)
			log.Info("starting mapstate",
				"addr", cfg.Addr,
				"version", Version,
				"api_url", cfg.APIURL,
				"session", cfg.Session)

			items, err := loadCatalog(catalogPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			prov, err := metrics.Init(metrics.Config{Version: Version})
			if err != nil {
				return err
			}

			vs, err := newVerifier(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer vs.Close()

			bus := events.NewBus(cfg.Events.Queue)
			if cfg.Events.Enabled {
				pub, err := kafkapub.New(cfg.Events.Brokers, cfg.Events.Topic, cfg.Events.Queue, log)
				if err != nil {
					return fmt.Errorf("kafka events: %w", err)
				}
				ch := bus.Subscribe()
				fwdDone := make(chan struct{})
				go func() {
					defer close(fwdDone)
					pub.Forward(ctx, ch)
				}()
				defer func() {
					bus.Unsubscribe(ch)
					<-fwdDone
					if err := pub.Close(); err != nil {
						log.Error("close kafka publisher", "err", err)
					}
				}()
			}

			st := store.New(store.Options{
				Session:  cfg.Session,
				APIURL:   cfg.APIURL,
				Logger:   log.With("component", "store"),
				Verifier: vs.verifier,
				Layers:   headless.Factory{},
				Events:   bus,
			})
			exec, err := executor.New(log.With("component", "wfs"), httpclient.NewOutbound(cfg.WFSTimeout), ogc.OWSEndpoint(cfg.APIURL))
			if err != nil {
				return fmt.Errorf("wfs executor: %w", err)
			}

			view := headless.NewMap(headless.World)
			st.SetMap(view)

			api := router.New(router.Deps{
				Logger:     log,
				Store:      st,
				View:       view,
				Mapper:     h3mapper.New(),
				Catalog:    items,
				Fetcher:    exec,
				TypeName:   cfg.WFSTypeName,
				PointRes:   cfg.PointRes,
				PointCount: cfg.PointCount,
			})

			return server.Run(ctx, cfg, log, server.Options{
				API:     api,
				Metrics: prov.Handler(),
				Checks:  vs.checks,
			})
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "YAML file with filter and sort examples (default: built-in)")
	return cmd
}

func newCheckKeyCmd() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "check-key",
		Short: "Check whether an API key is accepted by the imagery API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			log := newLogger(cfg, "check-key", cmd.ErrOrStderr())
			if key == "" {
				key = os.Getenv("MAXAR_API_KEY")
			}

			vs, err := newVerifier(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer vs.Close()

			st := store.New(store.Options{APIURL: cfg.APIURL, Logger: log, Verifier: vs.verifier})
			st.SaveAPIKey(strings.TrimSpace(key))
			if !st.CheckAPIKey(cmd.Context()) {
				return fmt.Errorf("api key rejected by %s", cfg.APIURL)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "api key is valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "API key to check (default: $MAXAR_API_KEY)")
	return cmd
}

func newCatalogCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate and print the filter and sort example catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := loadCatalog(path)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(map[string][]model.Item{"items": items}); err != nil {
				return fmt.Errorf("encode catalog: %w", err)
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "YAML catalog to validate (default: built-in)")
	return cmd
}

func loadCatalog(path string) ([]model.Item, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	items, err := catalog.Load(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return items, nil
}
