package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/NERVsystems/greenroute/pkg/monitoring"
)

// HTTPTransportConfig holds configuration for the HTTP transport
type HTTPTransportConfig struct {
	Addr           string   `json:"addr"`             // HTTP server address (e.g., ":8080")
	BaseURL        string   `json:"base_url"`         // Base URL for service discovery
	AuthToken      string   `json:"auth_token"`       // Bearer token, empty disables auth
	MCPEndpoint    string   `json:"mcp_endpoint"`     // Streamable HTTP endpoint path
	CORSOrigins    []string `json:"cors_origins"`     // Allowed origins, "*" allows all
	RateLimit      float64  `json:"rate_limit"`       // Requests per second per IP (0 = disabled)
	RateBurst      int      `json:"rate_burst"`       // Burst size for rate limiter
	MaxRequestSize int64    `json:"max_request_size"` // Maximum request body size in bytes
	MaxHeaderBytes int      `json:"max_header_bytes"` // Maximum header size in bytes
	TLSCertFile    string   `json:"tls_cert_file"`
	TLSKeyFile     string   `json:"tls_key_file"`
	ForceHTTPS     bool     `json:"force_https"` // Redirect plain HTTP requests to HTTPS
}

// DefaultHTTPTransportConfig returns sensible defaults
func DefaultHTTPTransportConfig() HTTPTransportConfig {
	return HTTPTransportConfig{
		Addr:           ":8080",
		MCPEndpoint:    "/mcp",
		CORSOrigins:    []string{"*"},
		RateLimit:      20,
		RateBurst:      40,
		MaxRequestSize: 1 << 20,
		MaxHeaderBytes: 1 << 20,
	}
}

// HTTPTransport serves the REST API, the MCP streamable HTTP endpoint and
// the health probes on one listener.
type HTTPTransport struct {
	config        HTTPTransportConfig
	logger        *slog.Logger
	engine        *gin.Engine
	mcpHTTP       *mcpserver.StreamableHTTPServer
	httpSrv       *http.Server
	rateLimiter   *RateLimiter
	healthChecker *monitoring.HealthChecker
	openConns     atomic.Int64
	closed        bool
	mu            sync.RWMutex
}

// NewHTTPTransport creates the transport. mcpServer may be nil, which leaves
// the MCP endpoint unmounted.
func NewHTTPTransport(api *API, mcpServer *mcpserver.MCPServer, config HTTPTransportConfig, logger *slog.Logger) (*HTTPTransport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MCPEndpoint == "" {
		config.MCPEndpoint = "/mcp"
	}

	if config.AuthToken != "" {
		if err := core.ValidateAuthToken(config.AuthToken); err != nil {
			logger.Warn("weak authentication token detected", "error", err.Error())
		}
	}

	corsConfig := newCORSConfig(config.CORSOrigins)
	if err := corsConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid CORS configuration: %w", err)
	}

	t := &HTTPTransport{
		config: config,
		logger: logger.With("component", "http"),
	}
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst < 1 {
			burst = 1
		}
		t.rateLimiter = NewRateLimiter(rate.Limit(config.RateLimit), burst)
	}
	if mcpServer != nil {
		t.mcpHTTP = mcpserver.NewStreamableHTTPServer(mcpServer,
			mcpserver.WithEndpointPath(config.MCPEndpoint),
		)
	}

	t.engine = gin.New()
	t.engine.Use(Recovery(t.logger), cors.New(corsConfig), RequestMetrics())
	t.setupRoutes(api)

	return t, nil
}

func newCORSConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", RequestIDHeader, "Mcp-Session-Id")
	cfg.ExposeHeaders = []string{RequestIDHeader, "Mcp-Session-Id"}
	return cfg
}

// SetHealthChecker sets the health checker for the HTTP transport
func (t *HTTPTransport) SetHealthChecker(hc *monitoring.HealthChecker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.healthChecker = hc
}

func (t *HTTPTransport) setupRoutes(api *API) {
	t.engine.GET("/", t.httpsEnforcement, t.handleServiceDiscovery)

	// Probes stay reachable without credentials.
	t.engine.GET("/health", gin.WrapF(t.handleHealth))
	t.engine.GET("/ready", gin.WrapF(t.handleReady))
	t.engine.GET("/live", gin.WrapF(t.handleLive))

	apiGroup := t.engine.Group("/api/v1", t.httpsEnforcement)
	if t.rateLimiter != nil {
		apiGroup.Use(t.rateLimiter.Handler("api"))
	}
	apiGroup.Use(BearerAuth(t.config.AuthToken, t.logger, denyEnvelope))
	api.RegisterRoutes(apiGroup)

	if t.mcpHTTP != nil {
		handlers := []gin.HandlerFunc{t.httpsEnforcement}
		if t.rateLimiter != nil {
			handlers = append(handlers, t.rateLimiter.Handler("mcp"))
		}
		handlers = append(handlers, BearerAuth(t.config.AuthToken, t.logger, denyJSONRPC), gin.WrapH(t.mcpHTTP))
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
			t.engine.Handle(method, t.config.MCPEndpoint, handlers...)
		}
	}

	t.engine.NoRoute(func(c *gin.Context) {
		abortWithError(c, core.NewError(core.ErrNotFound, fmt.Sprintf("no route for %s %s", c.Request.Method, c.Request.URL.Path)).
			WithGuidance("See GET / for the available endpoints"))
	})
}

// httpsEnforcement redirects HTTP requests to HTTPS if ForceHTTPS is enabled
func (t *HTTPTransport) httpsEnforcement(c *gin.Context) {
	r := c.Request
	if t.config.ForceHTTPS && r.TLS == nil {
		httpsURL := "https://" + r.Host + r.RequestURI
		t.logger.Info("redirecting HTTP request to HTTPS",
			"client_ip", getIP(r),
			"original_url", r.URL.String(),
			"redirect_url", httpsURL)
		c.Redirect(http.StatusMovedPermanently, httpsURL)
		c.Abort()
		return
	}
	c.Next()
}

func denyEnvelope(c *gin.Context, message string) {
	abortWithError(c, core.NewError(core.ErrUnauthorized, message).
		WithGuidance("Send Authorization: Bearer <token>"))
}

func denyJSONRPC(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"jsonrpc": "2.0",
		"id":      nil,
		"error": gin.H{
			"code":    -32001,
			"message": "Authentication required: " + message,
		},
	})
}

func (t *HTTPTransport) handleServiceDiscovery(c *gin.Context) {
	baseURL := t.config.BaseURL
	if baseURL == "" {
		scheme := "http"
		if c.Request.TLS != nil || t.config.ForceHTTPS || (t.config.TLSCertFile != "" && t.config.TLSKeyFile != "") {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, c.Request.Host)
	}

	endpoints := gin.H{
		"api":    baseURL + "/api/v1",
		"health": baseURL + "/health",
	}
	if t.mcpHTTP != nil {
		endpoints["mcp"] = baseURL + t.config.MCPEndpoint
	}
	c.JSON(http.StatusOK, gin.H{
		"service":   ServerName,
		"transport": "streamable-http",
		"endpoints": endpoints,
		"auth": gin.H{
			"required": t.config.AuthToken != "",
		},
	})
}

func (t *HTTPTransport) checker() *monitoring.HealthChecker {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.healthChecker
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if hc := t.checker(); hc != nil {
		hc.HealthHandler()(w, r)
		return
	}
	writeJSON(w, t.logger, map[string]any{"status": "ok"})
}

// handleReady provides Kubernetes-style readiness check
func (t *HTTPTransport) handleReady(w http.ResponseWriter, r *http.Request) {
	if hc := t.checker(); hc != nil {
		hc.ReadinessHandler()(w, r)
		return
	}
	writeJSON(w, t.logger, map[string]any{"ready": true, "status": "ok"})
}

// handleLive provides Kubernetes-style liveness check
func (t *HTTPTransport) handleLive(w http.ResponseWriter, r *http.Request) {
	if hc := t.checker(); hc != nil {
		hc.LivenessHandler()(w, r)
		return
	}
	writeJSON(w, t.logger, map[string]any{"alive": true})
}

// Handler returns the engine wrapped in the transport middleware chain.
func (t *HTTPTransport) Handler() http.Handler {
	maxSize := t.config.MaxRequestSize
	if maxSize <= 0 {
		maxSize = 1 << 20
	}
	handler := http.Handler(t.engine)
	handler = RequestSizeLimiter(maxSize)(handler)
	handler = SecurityHeaders(handler)
	handler = LoggingMiddleware(t.logger)(handler)
	handler = TracingMiddleware()(handler)
	return handler
}

func (t *HTTPTransport) trackConn(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		monitoring.UpdateActiveConnections("http", int(t.openConns.Add(1)))
	case http.StateClosed, http.StateHijacked:
		monitoring.UpdateActiveConnections("http", int(t.openConns.Add(-1)))
	}
}

// Start begins serving HTTP requests
func (t *HTTPTransport) Start() error {
	t.mu.Lock()

	if t.closed {
		t.mu.Unlock()
		return http.ErrServerClosed
	}
	if t.httpSrv != nil {
		t.mu.Unlock()
		return core.NewError(core.ErrInternalError, "HTTP transport already started").
			WithGuidance("The HTTP transport is already running. Stop it before starting again.")
	}

	maxHeader := t.config.MaxHeaderBytes
	if maxHeader <= 0 {
		maxHeader = 1 << 20
	}
	t.httpSrv = &http.Server{
		Addr:              t.config.Addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    maxHeader,
		ConnState:         t.trackConn,
	}
	srv := t.httpSrv

	tls := t.config.TLSCertFile != "" && t.config.TLSKeyFile != ""
	t.logger.Info("starting HTTP transport",
		"addr", t.config.Addr,
		"mcp_endpoint", t.config.MCPEndpoint,
		"mcp_enabled", t.mcpHTTP != nil,
		"auth_required", t.config.AuthToken != "",
		"rate_limit", t.config.RateLimit,
		"tls_enabled", tls,
		"force_https", t.config.ForceHTTPS)
	t.mu.Unlock()

	if tls {
		return srv.ListenAndServeTLS(t.config.TLSCertFile, t.config.TLSKeyFile)
	}
	if t.config.ForceHTTPS {
		t.logger.Warn("HTTPS enforcement enabled but no TLS certificates provided - HTTP requests will be redirected")
	}
	return srv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP transport. A stopped transport cannot
// be started again.
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	if t.rateLimiter != nil {
		t.rateLimiter.Stop()
	}
	if t.httpSrv == nil {
		return nil
	}

	t.logger.Info("shutting down HTTP transport")

	if t.mcpHTTP != nil {
		if err := t.mcpHTTP.Shutdown(ctx); err != nil {
			t.logger.Error("failed to shutdown MCP endpoint", "error", err)
		}
	}

	err := t.httpSrv.Shutdown(ctx)
	t.httpSrv = nil
	return err
}
