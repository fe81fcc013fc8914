// Package proxy forwards gateway requests to the tuition service.
package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/melisa-sener/tuition-payment-api/internal/config"
	"github.com/melisa-sener/tuition-payment-api/internal/observability"
)

// hopHeaders are headers that should not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// JSON error bodies returned when the upstream cannot be reached.
const (
	errBodyBadGateway     = `{"message":"Bad gateway"}`
	errBodyGatewayTimeout = `{"message":"Gateway timeout"}`
)

// Forwarder proxies every request to a single upstream target,
// relaying the upstream's status, headers and body unchanged. Upstream
// connect failures return 502 and exceeded deadlines 504.
type Forwarder struct {
	target        *url.URL
	proxy         *httputil.ReverseProxy
	logger        observability.Logger
	metrics       *observability.Metrics
	timeout       time.Duration
	flushInterval time.Duration
	transport     http.RoundTripper
}

// ForwarderOption is a functional option for the forwarder.
type ForwarderOption func(*Forwarder)

// WithLogger sets the logger for the forwarder.
func WithLogger(logger observability.Logger) ForwarderOption {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithMetrics wires upstream error counters.
func WithMetrics(metrics *observability.Metrics) ForwarderOption {
	return func(f *Forwarder) {
		f.metrics = metrics
	}
}

// WithTransport sets the transport used for upstream requests.
func WithTransport(transport http.RoundTripper) ForwarderOption {
	return func(f *Forwarder) {
		f.transport = transport
	}
}

// WithFlushInterval sets the flush interval for streaming responses.
func WithFlushInterval(interval time.Duration) ForwarderOption {
	return func(f *Forwarder) {
		f.flushInterval = interval
	}
}

// NewForwarder creates a forwarder for the configured upstream.
func NewForwarder(cfg config.UpstreamConfig, opts ...ForwarderOption) (*Forwarder, error) {
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, err
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, errors.New("upstream url must include scheme and host")
	}

	f := &Forwarder{
		target:        target,
		logger:        observability.NopLogger(),
		timeout:       cfg.Timeout.Duration(),
		flushInterval: cfg.FlushInterval.Duration(),
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.transport == nil {
		f.transport = defaultTransport(cfg)
	}

	f.proxy = &httputil.ReverseProxy{
		Director:      f.director,
		Transport:     f.transport,
		FlushInterval: f.flushInterval,
		ErrorHandler:  f.handleError,
	}

	return f, nil
}

// defaultTransport builds the upstream transport with pooling tuned
// for a single target.
func defaultTransport(cfg config.UpstreamConfig) *http.Transport {
	maxIdle := cfg.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 100
	}
	maxIdlePerHost := cfg.MaxIdleConnsPerHost
	if maxIdlePerHost == 0 {
		maxIdlePerHost = 32
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          maxIdle,
		MaxIdleConnsPerHost:   maxIdlePerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Target returns the upstream base URL.
func (f *Forwarder) Target() *url.URL {
	return f.target
}

// ServeHTTP implements http.Handler.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.timeout > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), f.timeout)
		defer cancel()
		r = r.WithContext(ctx)
	}

	f.proxy.ServeHTTP(w, r)
}

// director rewrites the outgoing request for the upstream target. The
// path and query are left untouched so the upstream sees exactly what
// the client sent.
func (f *Forwarder) director(req *http.Request) {
	req.URL.Scheme = f.target.Scheme
	req.URL.Host = f.target.Host

	for _, h := range hopHeaders {
		req.Header.Del(h)
	}

	if clientIP, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
			clientIP = prior + ", " + clientIP
		}
		req.Header.Set("X-Forwarded-For", clientIP)
	}

	if req.TLS != nil {
		req.Header.Set("X-Forwarded-Proto", "https")
	} else {
		req.Header.Set("X-Forwarded-Proto", "http")
	}

	req.Header.Set("X-Forwarded-Host", req.Host)
	req.Host = f.target.Host
}

// handleError answers for the upstream when the proxy attempt itself
// fails. Responses the upstream produced, including its own 4xx and
// 5xx, never reach this path.
func (f *Forwarder) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	body := errBodyBadGateway
	kind := "connect"

	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
		body = errBodyGatewayTimeout
		kind = "timeout"
	}

	f.logger.Error("upstream request failed",
		observability.String("path", r.URL.Path),
		observability.String("method", r.Method),
		observability.String("target", f.target.String()),
		observability.Error(err),
	)

	if f.metrics != nil {
		f.metrics.RecordUpstreamError(kind)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
