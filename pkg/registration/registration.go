// Package registration announces a running greenroute instance to a service
// registry and keeps the entry alive with heartbeats. The registry is
// optional: failures are logged and never stop the server.
package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/NERVsystems/greenroute/pkg/core"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultTimeout           = 5 * time.Second
)

// Config describes the instance being registered.
type Config struct {
	RegistryURL  string
	ServiceName  string
	ServiceType  string
	ServiceURL   string
	InternalURL  string
	Version      string
	Capabilities []string
	Tools        []string
	Metadata     map[string]any

	HeartbeatInterval time.Duration
	Timeout           time.Duration
}

// Request is the body of a registration or heartbeat.
type Request struct {
	Name              string         `json:"name"`
	Type              string         `json:"type"`
	URL               string         `json:"url"`
	HealthURL         string         `json:"health_url"`
	InternalURL       string         `json:"internal_url,omitempty"`
	InternalHealthURL string         `json:"internal_health_url,omitempty"`
	Version           string         `json:"version"`
	Capabilities      []string       `json:"capabilities,omitempty"`
	Tools             []string       `json:"tools,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// Response is the registry's acknowledgement.
type Response struct {
	Status     string `json:"status"`
	Name       string `json:"name"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// Client registers the service and sends heartbeats until stopped.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client

	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.RWMutex
	registered bool
}

// NewClient validates cfg and returns a client that has not started yet.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	u, err := url.Parse(cfg.RegistryURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid registry URL %q", cfg.RegistryURL)
	}
	if cfg.ServiceName == "" || cfg.ServiceURL == "" {
		return nil, fmt.Errorf("service name and URL are required for registration")
	}
	if cfg.ServiceType == "" {
		cfg.ServiceType = "mcp"
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.RegistryURL = strings.TrimRight(cfg.RegistryURL, "/")

	return &Client{
		cfg:        cfg,
		logger:     logger.With("component", "registration"),
		httpClient: core.NewHTTPClient(cfg.Timeout),
	}, nil
}

// Start registers in the background and returns immediately.
func (c *Client) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.heartbeatLoop(ctx)
}

// Stop ends the heartbeats and deregisters. Safe to call on a client that
// was never started.
func (c *Client) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	c.deregister(ctx)
}

// IsRegistered reports whether the last heartbeat was accepted.
func (c *Client) IsRegistered() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registered
}

func (c *Client) setRegistered(v bool) {
	c.mu.Lock()
	c.registered = v
	c.mu.Unlock()
}

func (c *Client) heartbeatLoop(ctx context.Context) {
	defer c.wg.Done()

	c.register(ctx)

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.register(ctx)
		}
	}
}

func (c *Client) request() Request {
	r := Request{
		Name:         c.cfg.ServiceName,
		Type:         c.cfg.ServiceType,
		URL:          c.cfg.ServiceURL,
		HealthURL:    strings.TrimRight(c.cfg.ServiceURL, "/") + "/health",
		Version:      c.cfg.Version,
		Capabilities: c.cfg.Capabilities,
		Tools:        c.cfg.Tools,
		Metadata:     c.cfg.Metadata,
	}
	if c.cfg.InternalURL != "" {
		r.InternalURL = c.cfg.InternalURL
		r.InternalHealthURL = strings.TrimRight(c.cfg.InternalURL, "/") + "/health"
	}
	return r
}

func (c *Client) register(ctx context.Context) {
	body, err := json.Marshal(c.request())
	if err != nil {
		c.logger.Error("failed to marshal registration request", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RegistryURL+"/api/register", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to create registration request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Debug("registration failed, registry may be unavailable", "error", err)
		}
		c.setRegistered(false)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn("registration rejected", "status", resp.StatusCode, "body", string(msg))
		c.setRegistered(false)
		return
	}

	var ack Response
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		c.logger.Warn("failed to decode registration response", "error", err)
		c.setRegistered(false)
		return
	}

	if !c.IsRegistered() {
		c.logger.Info("registered with service registry",
			"registry", c.cfg.RegistryURL,
			"name", c.cfg.ServiceName,
			"ttl_seconds", ack.TTLSeconds)
	}
	c.setRegistered(true)
}

func (c *Client) deregister(ctx context.Context) {
	if !c.IsRegistered() {
		return
	}
	defer c.setRegistered(false)

	target := c.cfg.RegistryURL + "/api/register/" + url.PathEscape(c.cfg.ServiceName)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		c.logger.Debug("failed to create deregistration request", "error", err)
		return
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("deregistration failed", "error", err)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		c.logger.Info("deregistered from service registry", "name", c.cfg.ServiceName)
	}
}
