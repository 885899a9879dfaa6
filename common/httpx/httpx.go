package httpx

import (
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sony/gobreaker/v2"

	"github.com/searchfuse/searchfuse/common/logging"
	"github.com/searchfuse/searchfuse/config"
)

var ErrHostNotAllowed = errors.New("httpx: host not allowed")

// Client is the shared outbound HTTP client for external collaborators
// (pairwise scorer, web search). It retries transient failures with jittered
// backoff and opens a circuit after consecutive failures so a dead
// collaborator cannot stall every request.
type Client struct {
	hc  *http.Client
	opt Options
	cb  *gobreaker.CircuitBreaker[*http.Response]
	log *slog.Logger
}

type Options struct {
	Timeout       time.Duration
	Attempts      uint
	BackoffMin    time.Duration
	BackoffMax    time.Duration
	HostAllowlist []string
}

// NewFromConfig builds a client from config, applying defaults for any
// unset field.
func NewFromConfig(cfg *config.HTTPClientConfig, log *slog.Logger) *Client {
	if log == nil {
		log = logging.Discard()
	}
	to := 1200 * time.Millisecond
	if cfg != nil && cfg.TimeoutMs > 0 {
		to = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	var attempts uint = 2
	if cfg != nil && cfg.Retry > 0 {
		attempts = uint(cfg.Retry) + 1
	}
	bmin := 100 * time.Millisecond
	if cfg != nil && cfg.BackoffMinMs > 0 {
		bmin = time.Duration(cfg.BackoffMinMs) * time.Millisecond
	}
	bmax := 800 * time.Millisecond
	if cfg != nil && cfg.BackoffMaxMs > 0 {
		bmax = time.Duration(cfg.BackoffMaxMs) * time.Millisecond
	}
	maxFail := uint32(5)
	if cfg != nil && cfg.MaxConsecutiveFailures > 0 {
		maxFail = uint32(cfg.MaxConsecutiveFailures)
	}
	open := 5 * time.Second
	if cfg != nil && cfg.CircuitOpenSeconds > 0 {
		open = time.Duration(cfg.CircuitOpenSeconds) * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "httpx",
		Timeout: open,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFail
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	transport := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: to}).DialContext,
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		MaxIdleConns:    100,
		IdleConnTimeout: 30 * time.Second,
	}
	var allow []string
	if cfg != nil {
		allow = cfg.HostAllowlist
	}
	return &Client{
		hc: &http.Client{Timeout: to, Transport: transport},
		opt: Options{
			Timeout: to, Attempts: attempts, BackoffMin: bmin, BackoffMax: bmax,
			HostAllowlist: allow,
		},
		cb:  cb,
		log: log,
	}
}

// Do issues the request with retries inside the circuit breaker. Requests
// built by http.NewRequestWithContext from a bytes.Reader carry GetBody, so
// retried attempts get a fresh body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if !c.allowed(req.URL) {
		c.log.Warn("blocked outbound host", "url", req.URL.String())
		return nil, ErrHostNotAllowed
	}
	return c.cb.Execute(func() (*http.Response, error) {
		return retry.DoWithData(
			func() (*http.Response, error) { return c.attempt(req) },
			retry.Attempts(c.opt.Attempts),
			retry.Delay(c.opt.BackoffMin),
			retry.MaxDelay(c.opt.BackoffMax),
			retry.DelayType(retry.BackOffDelay),
			retry.Context(req.Context()),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				c.log.Warn("request retry", "attempt", n+1, "url", req.URL.String(), "error", err)
			}),
		)
	})
}

func (c *Client) attempt(req *http.Request) (*http.Response, error) {
	r := req
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r = req.Clone(req.Context())
		r.Body = body
	}
	resp, err := c.hc.Do(r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		// Close so the connection can be reused by the retry.
		_ = resp.Body.Close()
		return nil, errors.New("httpx: status " + resp.Status)
	}
	return resp, nil
}

func (c *Client) allowed(u *url.URL) bool {
	if len(c.opt.HostAllowlist) == 0 {
		return true
	}
	host := u.Hostname()
	for _, pattern := range c.opt.HostAllowlist {
		if matchHost(pattern, host) {
			return true
		}
	}
	return false
}

func matchHost(pattern, host string) bool {
	if pattern == "*" {
		return true
	}
	if strings.EqualFold(pattern, host) {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		suf := strings.TrimPrefix(pattern, "*.")
		return strings.HasSuffix(host, "."+suf) || strings.EqualFold(host, suf)
	}
	return false
}
