package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"imgapi/internal/model"
)

const (
	// MaxResponseSize limits response body to 50MB to prevent memory exhaustion
	MaxResponseSize = 50 * 1024 * 1024

	// DefaultTimeout bounds the API call. The image fetch has its own, shorter bound.
	DefaultTimeout = 60 * time.Second

	// DefaultImageTimeout bounds the preliminary image byte fetch
	DefaultImageTimeout = 10 * time.Second
)

// ErrBodyTooLarge is returned when a body exceeds MaxResponseSize
var ErrBodyTooLarge = errors.New("body exceeds 50MB limit")

// Client wraps the standard http.Client with additional functionality
type Client struct {
	client       *http.Client
	timeout      time.Duration
	imageTimeout time.Duration
	userAgent    string
	warn         func(string)
}

// ClientOption configures a Client
type ClientOption func(*Client)

// NewClient creates a new HTTP client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:      DefaultTimeout,
		imageTimeout: DefaultImageTimeout,
		warn:         func(string) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client = &http.Client{Timeout: c.timeout}
	return c
}

// WithTimeout sets the API call timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithImageTimeout sets the image fetch timeout
func WithImageTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.imageTimeout = d
		}
	}
}

// WithUserAgent sets the User-Agent sent when the request does not carry one
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithWarningHandler receives non-fatal warnings such as insecure http use
func WithWarningHandler(fn func(string)) ClientOption {
	return func(c *Client) {
		if fn != nil {
			c.warn = fn
		}
	}
}

// Do executes an HTTP request and returns the response
func (c *Client) Do(ctx context.Context, req *Request) (*model.Response, error) {
	if err := ValidateURL(req.URL); err != nil {
		return nil, err
	}
	c.warnAbout(req.URL)

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, err
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if c.userAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	respBody, err := c.readLimited(resp.Body)
	if err != nil {
		return nil, err
	}

	respHeaders := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			respHeaders[key] = values[0]
		}
	}

	return &model.Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    respHeaders,
		Body:       string(respBody),
		DurationMs: duration.Milliseconds(),
	}, nil
}

// FetchImage downloads the bytes behind imageURL, bounded by the image timeout.
// A non-2xx status is reported as an error.
func (c *Client) FetchImage(ctx context.Context, imageURL string) (*Image, error) {
	if err := ValidateURL(imageURL); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.imageTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	data, err := c.readLimited(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Image{
		Data:        data,
		ContentType: imageContentType(resp.Header.Get("Content-Type"), data),
		Filename:    imageFilename(imageURL),
	}, nil
}

func (c *Client) readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

func (c *Client) warnAbout(rawURL string) {
	if strings.HasPrefix(strings.ToLower(rawURL), "http://") {
		c.warn("using insecure HTTP connection, data will be transmitted unencrypted")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	hostname := strings.ToLower(parsed.Hostname())
	switch {
	case hostname == "localhost" || isLoopback(hostname):
		c.warn("making request to localhost/loopback address")
	case isPrivateOrReservedHost(hostname):
		c.warn("making request to private/internal IP address")
	}
}

// ValidateURL checks that a URL is well-formed, uses http or https and is not
// a cloud metadata endpoint
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %q (only http and https are allowed)", parsed.Scheme)
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return fmt.Errorf("URL must have a hostname")
	}

	// Block cloud metadata endpoints (common SSRF targets)
	if isCloudMetadataEndpoint(hostname) {
		return fmt.Errorf("blocked request to cloud metadata endpoint: %s", hostname)
	}

	return nil
}

func isLoopback(hostname string) bool {
	ip := net.ParseIP(hostname)
	return ip != nil && ip.IsLoopback()
}

// isPrivateOrReservedHost checks if the hostname is a private, link-local or unspecified IP
func isPrivateOrReservedHost(hostname string) bool {
	ip := net.ParseIP(hostname)
	if ip == nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}

// isCloudMetadataEndpoint checks if the hostname is a cloud metadata service
func isCloudMetadataEndpoint(hostname string) bool {
	metadataHosts := map[string]bool{
		"169.254.169.254":          true, // AWS, GCP, Azure metadata
		"metadata.google.internal": true, // GCP metadata
		"metadata.goog":            true, // GCP metadata alternative
		"100.100.100.200":          true, // Alibaba Cloud metadata
		"169.254.170.2":            true, // AWS ECS task metadata
	}

	return metadataHosts[strings.ToLower(hostname)]
}
