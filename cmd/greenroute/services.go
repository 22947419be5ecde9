package main

import (
	"fmt"
	"log/slog"

	"github.com/NERVsystems/greenroute/pkg/cache"
	"github.com/NERVsystems/greenroute/pkg/config"
	"github.com/NERVsystems/greenroute/pkg/emissions"
	"github.com/NERVsystems/greenroute/pkg/monitoring"
	"github.com/NERVsystems/greenroute/pkg/planner"
	"github.com/NERVsystems/greenroute/pkg/provider"
	"github.com/NERVsystems/greenroute/pkg/server"
	"github.com/NERVsystems/greenroute/pkg/tools"
)

// services are the components shared by the provider-backed commands.
type services struct {
	calc       *emissions.Calculator
	client     *provider.Client
	geocoding  *cache.ResponseCache[provider.GeocodeResult]
	directions *cache.ResponseCache[provider.Route]
	planner    *planner.Planner
}

// newServices wires caches, provider client, calculator and planner.
// instrument reports cache and provider activity to Prometheus.
func newServices(cfg config.Config, logger *slog.Logger, instrument bool) (*services, error) {
	cacheOpts := []cache.Option{cache.WithLogger(logger)}
	clientOpts := []provider.Option{provider.WithLogger(logger)}
	if instrument {
		cacheOpts = append(cacheOpts, cache.WithHooks(monitoring.CacheHooks()))
		clientOpts = append(clientOpts, provider.WithMonitoringHooks(monitoring.ProviderHooks()))
	}

	geocoding, err := cache.New[provider.GeocodeResult]("geocoding", cfg.CacheOptions(cfg.Cache.Geocoding), cacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("geocoding cache: %w", err)
	}
	directions, err := cache.New[provider.Route]("directions", cfg.CacheOptions(cfg.Cache.Directions), cacheOpts...)
	if err != nil {
		geocoding.Stop()
		return nil, fmt.Errorf("directions cache: %w", err)
	}

	clientOpts = append(clientOpts,
		provider.WithGeocodingCache(geocoding),
		provider.WithDirectionsCache(directions),
	)
	client := provider.NewClient(cfg.ProviderOptions(), clientOpts...)
	calc := emissions.NewCalculator(cfg.PriceTable(), emissions.WithLogger(logger))

	return &services{
		calc:       calc,
		client:     client,
		geocoding:  geocoding,
		directions: directions,
		planner:    planner.New(client, client, calc, logger),
	}, nil
}

// deps returns the tool dependencies. Provider-backed entries are left nil
// when withProvider is false so their tools and endpoints stay unregistered.
func (s *services) deps(withProvider bool) tools.Deps {
	d := tools.Deps{Calculator: s.calc}
	if withProvider {
		d.Geocoder = s.client
		d.Routes = s.client
		d.Planner = s.planner
	}
	return d
}

func (s *services) caches() []server.CacheAdmin {
	return []server.CacheAdmin{s.geocoding, s.directions}
}

// Close stops the cache sweepers.
func (s *services) Close() {
	s.geocoding.Stop()
	s.directions.Stop()
}

// providerConfigured reports whether provider calls can succeed: the public
// API needs a token, self-hosted endpoints may not.
func providerConfigured(cfg config.Config) bool {
	return cfg.Provider.AccessToken != "" || cfg.Provider.BaseURL != provider.DefaultBaseURL
}
