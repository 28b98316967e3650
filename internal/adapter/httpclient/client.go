// Package httpclient implements the JSON fetch client: one *http.Client
// shared across all workers, proxy selection per attempt, and the
// envelope/retry dispatch table for the upstream API's {code,data,msg}
// response shape.
package httpclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/zaxtyson/spidercrawl/internal/core/domain"
	"github.com/zaxtyson/spidercrawl/internal/core/ports"
	"github.com/zaxtyson/spidercrawl/internal/logger"
	"github.com/zaxtyson/spidercrawl/internal/util"
)

const (
	DefaultMaxIdleConnections        = 100
	DefaultMaxIdleConnectionsPerHost = 20
	DefaultIdleConnTimeout           = 90 * time.Second

	codeOK              = 0
	codeFeatureDisabled = 88214
	codeRateLimited     = -412

	// retryBaseDelay/retryMaxDelay bound the backoff applied between retries
	// so a burst of bans/timeouts doesn't hammer the same upstream in a tight loop.
	retryBaseDelay = 20 * time.Millisecond
	retryMaxDelay  = 500 * time.Millisecond
)

// Metrics is a point-in-time snapshot of the client's counters.
type Metrics struct {
	TotalRequests int64
	TotalRetries  int64
	TotalGiveUps  int64
}

// Client fetches JSON envelopes from the configured remote, retrying across
// proxies per the documented outcome table.
type Client struct {
	httpClient *http.Client
	proxyPool  ports.ProxyPool
	limiter    *rate.Limiter
	retryTimes int
	logger     *logger.StyledLogger

	totalRequests atomic.Int64
	totalRetries  atomic.Int64
	totalGiveUps  atomic.Int64
}

// Config tunes the client's retry budget and per-attempt timeout.
type Config struct {
	RetryTimes     int
	TotalTimeout   time.Duration
	ConnectTimeout time.Duration
	// DNSServers, when non-empty, overrides the system resolver with a Go
	// resolver that dials these nameservers directly (host or host:port;
	// port defaults to 53). Requests otherwise fall back to the platform
	// resolver untouched.
	DNSServers []string
}

// New builds a Client. proxyPool may be a pool with proxying disabled, in
// which case Get returns (nil, nil) and requests dial directly.
func New(cfg Config, proxyPool ports.ProxyPool, log *logger.StyledLogger) *Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	if resolver := customResolver(cfg.DNSServers); resolver != nil {
		dialer.Resolver = resolver
	}

	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConnections,
		MaxIdleConnsPerHost: DefaultMaxIdleConnectionsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		DialContext:         dialer.DialContext,
		// Verification stays off: the relay vendors this crawler is pointed
		// at routinely present broken certificate chains.
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.TotalTimeout,
			Transport: transport,
		},
		proxyPool:  proxyPool,
		limiter:    rate.NewLimiter(rate.Limit(50), 10),
		retryTimes: cfg.RetryTimes,
		logger:     log,
	}
}

// GetJSON fetches the envelope at url?query, retrying across proxies per the
// outcome table. Success returns (data, nil), where data is nil if the
// envelope's data field was null; the feature-disabled sentinel returns
// (emptyMap, nil). A give-up returns (nil, error) wrapping domain.ErrGiveUp
// alongside a *TransportError or *RateLimitError callers can recover with
// errors.As, classify with GetUserFriendlyMessage, or test with IsRecoverable.
// A cancelled context or a proxy wait that ends without a proxy returns the
// context error or domain.ErrNoProxyAvailable instead, with no typed error.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query map[string]string) (map[string]interface{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}

	reqURL, err := buildURL(rawURL, query)
	if err != nil {
		return nil, fmt.Errorf("httpclient: building request url: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryTimes; attempt++ {
		c.totalRequests.Add(1)

		proxy, err := c.proxyPool.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("httpclient: %w", err)
		}

		data, outcome, attemptErr := c.attempt(ctx, reqURL, proxy)
		switch outcome {
		case outcomeSuccess:
			return data, nil
		case outcomeFeatureDisabled:
			return map[string]interface{}{}, nil
		case outcomeGiveUp:
			c.totalGiveUps.Add(1)
			return nil, fmt.Errorf("httpclient: %w: %w", domain.ErrGiveUp, attemptErr)
		case outcomeRetry:
			c.totalRetries.Add(1)
			lastErr = attemptErr
			delay := util.CalculateExponentialBackoff(attempt, retryBaseDelay, retryMaxDelay, 0.2)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("httpclient: %w", ctx.Err())
			}
			continue
		}
	}

	c.totalGiveUps.Add(1)
	if lastErr != nil {
		return nil, fmt.Errorf("httpclient: %w (retries exhausted): %w", domain.ErrGiveUp, lastErr)
	}
	return nil, fmt.Errorf("httpclient: %w (retries exhausted)", domain.ErrGiveUp)
}

type outcome int

const (
	outcomeRetry outcome = iota
	outcomeSuccess
	outcomeFeatureDisabled
	outcomeGiveUp
)

func (c *Client) attempt(ctx context.Context, reqURL string, proxy *domain.Proxy) (map[string]interface{}, outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, outcomeGiveUp, &TransportError{URL: reqURL, Err: err}
	}
	req.Header.Set("User-Agent", randomUserAgent())
	req.Header.Set("X-Request-Id", uuid.New().String())

	client := c.httpClient
	if proxy != nil {
		client = c.withProxy(proxy)
	}

	resp, err := client.Do(req)
	if err != nil {
		if proxy != nil {
			c.proxyPool.MarkInvalid(proxy, "transport error: "+err.Error())
		}
		return nil, outcomeRetry, &TransportError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if proxy != nil {
			c.proxyPool.MarkBanned(proxy)
		}
		return nil, outcomeRetry, &TransportError{URL: reqURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var envelope struct {
		Code int                    `json:"code"`
		Data map[string]interface{} `json:"data"`
		Msg  string                 `json:"msg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		c.logger.Error("httpclient: malformed envelope", "url", reqURL, "error", err)
		return nil, outcomeGiveUp, &TransportError{URL: reqURL, Err: fmt.Errorf("decoding envelope: %w", err)}
	}

	switch envelope.Code {
	case codeOK:
		return envelope.Data, outcomeSuccess, nil
	case codeFeatureDisabled:
		return nil, outcomeFeatureDisabled, nil
	case codeRateLimited:
		if proxy != nil {
			c.proxyPool.MarkBanned(proxy)
		}
		return nil, outcomeRetry, &RateLimitError{URL: reqURL, Code: envelope.Code}
	default:
		c.logger.Error("httpclient: unrecognised envelope code", "url", reqURL, "code", envelope.Code, "msg", envelope.Msg)
		return nil, outcomeGiveUp, &TransportError{URL: reqURL, Err: fmt.Errorf("unrecognised envelope code %d: %s", envelope.Code, envelope.Msg)}
	}
}

func (c *Client) withProxy(proxy *domain.Proxy) *http.Client {
	base := c.httpClient.Transport.(*http.Transport)
	cloned := base.Clone()
	cloned.Proxy = http.ProxyURL(&url.URL{Scheme: "http", Host: proxy.Addr()})
	return &http.Client{Timeout: c.httpClient.Timeout, Transport: cloned}
}

// Metrics reports cumulative request counters.
func (c *Client) Metrics() Metrics {
	return Metrics{
		TotalRequests: c.totalRequests.Load(),
		TotalRetries:  c.totalRetries.Load(),
		TotalGiveUps:  c.totalGiveUps.Load(),
	}
}

// customResolver builds a Go-side net.Resolver that round-robins across
// servers for every lookup, bypassing the platform's configured nameservers.
// Returns nil when servers is empty so callers keep the zero-value (system)
// resolver.
func customResolver(servers []string) *net.Resolver {
	if len(servers) == 0 {
		return nil
	}
	addrs := make([]string, len(servers))
	for i, s := range servers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		addrs[i] = s
	}

	var next atomic.Uint64
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			addr := addrs[next.Add(1)%uint64(len(addrs))]
			d := net.Dialer{}
			return d.DialContext(ctx, network, addr)
		},
	}
}

func buildURL(rawURL string, query map[string]string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := parsed.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// userAgents is the rotation table a request draws from when the
// caller didn't supply its own User-Agent.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
}

func randomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}
