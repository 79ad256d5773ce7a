package checker

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second
	redirectMax    = 10
)

var errTooManyRedirects = errors.New("too many redirects")

// Options configures an HTTPChecker.
type Options struct {
	// Timeout bounds the whole request, including redirects and reading headers.
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string

	// Transport overrides the HTTP transport. Nil uses a fresh http.Transport.
	Transport http.RoundTripper

	// Now overrides the clock used for CheckedAt and ResponseTime.
	Now func() time.Time
}

// HTTPChecker issues one GET per Check and classifies the response.
type HTTPChecker struct {
	opts   Options
	client *http.Client
}

// NewHTTP creates an HTTPChecker. A zero Timeout falls back to DefaultTimeout.
func NewHTTP(opts Options) *HTTPChecker {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			TLSHandshakeTimeout: 10 * time.Second,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConns:        10,
		}
	}
	return &HTTPChecker{
		opts: opts,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= redirectMax {
					return errTooManyRedirects
				}
				return nil
			},
		},
	}
}

// Timeout returns the per-check timeout.
func (c *HTTPChecker) Timeout() time.Duration {
	return c.opts.Timeout
}

func (c *HTTPChecker) Check(ctx context.Context, endpoint string) (result Outcome) {
	start := c.opts.Now()

	defer func() {
		if p := recover(); p != nil {
			result = transportFailure(endpoint, start, c.opts.Now(), "panic during check: %v", p)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return transportFailure(endpoint, start, c.opts.Now(), "creating request: %v", err)
	}
	for k, v := range c.opts.Headers {
		req.Header.Set(k, v)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return transportFailure(endpoint, start, c.opts.Now(), "%s", describeError(err))
	}
	// Drain a little of the body so keep-alive connections can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	result = Outcome{
		Endpoint:     endpoint,
		StatusCode:   resp.StatusCode,
		ResponseTime: c.opts.Now().Sub(start),
		CheckedAt:    start.UTC(),
	}
	if IsOK(resp.StatusCode) {
		result.Kind = KindSuccess
	} else {
		result.Kind = KindHTTPFailure
		result.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return result
}

func describeError(err error) string {
	var dnsErr *net.DNSError

	switch {
	case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		return fmt.Sprintf("timeout: %v", err)
	case errors.As(err, &dnsErr):
		return fmt.Sprintf("dns lookup of %s failed: %v", dnsErr.Name, dnsErr.Err)
	default:
		return err.Error()
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
