package utils

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"
)

// DefaultUserAgent mirrors a desktop browser; the platforms serve different
// payloads to unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// HTTPClient represents a configurable HTTP client
type HTTPClient struct {
	client    *http.Client
	transport *http.Transport
	userAgent string
	logger    zerolog.Logger
}

// ClientConfig represents HTTP client configuration
type ClientConfig struct {
	Timeout         time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	ProxyURL        string
	UserAgent       string
}

// NewHTTPClient creates a new HTTP client with the given configuration
func NewHTTPClient(config ClientConfig) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
		MaxIdleConnsPerHost: 10,
	}

	if config.ProxyURL != "" {
		proxyURL, err := url.Parse(config.ProxyURL)
		if err == nil {
			switch proxyURL.Scheme {
			case "http", "https":
				transport.Proxy = http.ProxyURL(proxyURL)
			case "socks5":
				dialer, err := proxy.FromURL(proxyURL, proxy.Direct)
				if err == nil {
					transport.DialContext = dialer.(proxy.ContextDialer).DialContext
				}
			}
		}
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &HTTPClient{
		client:    client,
		transport: transport,
		userAgent: userAgent,
		logger:    zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// Do performs an HTTP request with custom headers. Per-platform cookies
// travel as request headers set by the caller, not client state.
func (c *HTTPClient) Do(req *http.Request, headers map[string]string) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("Making HTTP request")

	return c.client.Do(req)
}

// Close closes the HTTP client and cleans up resources
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// SetLogger sets the logger for the HTTP client
func (c *HTTPClient) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// FormatBytes formats bytes to human readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
