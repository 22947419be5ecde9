package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/greenroute/pkg/config"
	"github.com/NERVsystems/greenroute/pkg/monitoring"
	"github.com/NERVsystems/greenroute/pkg/registration"
	"github.com/NERVsystems/greenroute/pkg/server"
	"github.com/NERVsystems/greenroute/pkg/tools"
	"github.com/NERVsystems/greenroute/pkg/tracing"
	"github.com/NERVsystems/greenroute/pkg/version"
)

const shutdownTimeout = 30 * time.Second

// Transports accepted by serve --transport.
const (
	transportHTTP  = "http"
	transportStdio = "stdio"
	transportBoth  = "both"
)

type serveOptions struct {
	transport   string
	addr        string
	metricsAddr string
	tlsCert     string
	tlsKey      string
	forceHTTPS  bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP tools",
		Long: `Serve the REST API under /api/v1 and the MCP streamable HTTP endpoint,
MCP over stdin/stdout, or both. Prometheus metrics are served separately on
the monitoring address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch opts.transport {
			case transportHTTP, transportStdio, transportBoth:
			default:
				return fmt.Errorf("--transport must be %s, %s or %s, got %q", transportHTTP, transportStdio, transportBoth, opts.transport)
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if opts.addr != "" {
				cfg.Server.Addr = opts.addr
			}
			if opts.metricsAddr != "" {
				cfg.Monitoring.Addr = opts.metricsAddr
			}
			return runServe(cmd.Context(), cfg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.transport, "transport", transportHTTP, "transports to run: http, stdio or both")
	f.StringVar(&opts.addr, "addr", "", "HTTP listen address (overrides server.addr)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus listen address (overrides monitoring.addr)")
	f.StringVar(&opts.tlsCert, "tls-cert", "", "TLS certificate file")
	f.StringVar(&opts.tlsKey, "tls-key", "", "TLS key file")
	f.BoolVar(&opts.forceHTTPS, "force-https", false, "redirect plain HTTP requests to HTTPS")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config, opts *serveOptions) error {
	// stdout belongs to the stdio transport; logs go to stderr.
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	shutdownTracing, err := tracing.InitTracing(ctx, cfg.Tracing, version.BuildVersion)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
		if cfg.Tracing.Endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", cfg.Tracing.Endpoint)
		}
	}

	svc, err := newServices(cfg, logger, cfg.Monitoring.Enabled)
	if err != nil {
		return err
	}
	defer svc.Close()

	withProvider := providerConfigured(cfg)
	if !withProvider {
		logger.Warn("provider access token not set; geocoding and routing are disabled")
	}
	deps := svc.deps(withProvider)
	registry := tools.NewRegistry(deps, logger)

	logger.Info("starting greenroute",
		"version", version.BuildVersion,
		"log_level", cfg.LogLevel,
		"transport", opts.transport,
		"provider", cfg.Provider.BaseURL,
		"provider_enabled", withProvider,
		"tools", registry.GetToolNames(),
		"monitoring_enabled", cfg.Monitoring.Enabled)

	var healthChecker *monitoring.HealthChecker
	if cfg.Monitoring.Enabled {
		monitoring.SystemInfo.WithLabelValues(version.BuildVersion, runtime.Version(), version.BuildCommit, version.BuildDate).Set(1)
		healthChecker = monitoring.NewHealthChecker(monitoring.ServiceName, version.BuildVersion)
		defer healthChecker.Shutdown()
		if withProvider {
			interval := time.Duration(cfg.Monitoring.CheckIntervalSeconds) * time.Second
			if interval <= 0 {
				interval = time.Minute
			}
			providerMonitor := monitoring.NewConnectionMonitor("provider", healthChecker, svc.client.CheckHealth, interval)
			providerMonitor.Start()
			defer providerMonitor.Stop()
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Monitoring.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv := &http.Server{
			Addr:              cfg.Monitoring.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 30 * time.Second,
		}
		serveUntilDone(g, gctx, logger, "metrics server", metricsSrv.ListenAndServe, metricsSrv.Shutdown)
		logger.Info("starting Prometheus metrics server", "addr", cfg.Monitoring.Addr)
	}

	mcpServer := server.NewServer(registry, logger)

	if opts.transport != transportStdio {
		transportCfg := server.DefaultHTTPTransportConfig()
		transportCfg.Addr = cfg.Server.Addr
		transportCfg.AuthToken = cfg.Server.AuthToken
		transportCfg.CORSOrigins = cfg.Server.CORSOrigins
		transportCfg.RateLimit = cfg.Server.RequestsPerSecond
		transportCfg.RateBurst = cfg.Server.Burst
		transportCfg.MaxRequestSize = cfg.Server.MaxBodyBytes
		transportCfg.TLSCertFile = opts.tlsCert
		transportCfg.TLSKeyFile = opts.tlsKey
		transportCfg.ForceHTTPS = opts.forceHTTPS

		api := server.NewAPI(deps, svc.caches(), logger)
		mcp := mcpServer.GetMCPServer()
		if !cfg.Server.EnableMCP {
			mcp = nil
		}
		httpTransport, err := server.NewHTTPTransport(api, mcp, transportCfg, logger)
		if err != nil {
			return err
		}
		if healthChecker != nil {
			httpTransport.SetHealthChecker(healthChecker)
		}
		serveUntilDone(g, gctx, logger, "HTTP transport", httpTransport.Start, httpTransport.Shutdown)
	}

	if opts.transport != transportHTTP {
		g.Go(func() error {
			logger.Info("transport_enabled", "type", "stdio")
			err := mcpServer.RunWithContext(gctx)
			if opts.transport == transportStdio {
				// stdin closed: nothing left to serve.
				cancel()
			}
			return err
		})
	}

	if cfg.Registry.URL != "" && opts.transport != transportStdio {
		regClient, err := registration.NewClient(registration.Config{
			RegistryURL:       cfg.Registry.URL,
			ServiceName:       cfg.Registry.ServiceName,
			ServiceURL:        cfg.Registry.ServiceURL,
			InternalURL:       cfg.Registry.InternalURL,
			Version:           version.BuildVersion,
			Capabilities:      capabilities(withProvider),
			Tools:             registry.GetToolNames(),
			Metadata:          map[string]any{"mcp": cfg.Server.EnableMCP},
			HeartbeatInterval: time.Duration(cfg.Registry.HeartbeatIntervalSeconds) * time.Second,
		}, logger)
		if err != nil {
			logger.Warn("service registration disabled", "error", err)
		} else {
			regClient.Start(gctx)
			defer regClient.Stop()
		}
	}

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

func capabilities(withProvider bool) []string {
	caps := []string{"emissions", "gas-prices"}
	if withProvider {
		caps = append(caps, "geocoding", "routing")
	}
	return caps
}

// serveUntilDone runs start in g and calls shutdown once ctx is done.
func serveUntilDone(g *errgroup.Group, ctx context.Context, logger *slog.Logger, name string, start func() error, shutdown func(context.Context) error) {
	g.Go(func() error {
		if err := start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown "+name, "error", err)
		}
		return nil
	})
}
