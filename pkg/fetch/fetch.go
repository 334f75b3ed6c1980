// Package fetch downloads result pages for metadata extraction.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rubiojr/sift/pkg/log"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"
)

var metaCharsetRe = regexp.MustCompile(`(?i)<meta\b[^>]*charset\s*=\s*["']?\s*([a-zA-Z0-9_:.+-]+)`)

var (
	// ErrStatus is returned for responses outside the 2xx range.
	ErrStatus = errors.New("unexpected HTTP status")
	// ErrNotText is returned when the response declares a non-text body.
	ErrNotText = errors.New("non-text body")
)

const (
	defaultMaxBodyBytes = 2 << 20
	defaultMaxRedirects = 5

	// charset.DetermineEncoding falls back to this when nothing is declared.
	defaultSniffedCharset = "windows-1252"
	sniffLen              = 1024
)

// Options configures a Client. Zero values pick the defaults.
type Options struct {
	MaxBodyBytes      int64
	MaxRedirects      int
	UserAgent         string
	RequestsPerSecond float64
	// Transport overrides the default pooled HTTP transport.
	Transport http.RoundTripper
}

// Client fetches pages over HTTP and returns their bodies as UTF-8 text.
// It is safe for concurrent use and keeps connections alive across requests.
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
	logger  *log.Logger
}

func New(opts Options) *Client {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = defaultMaxRedirects
	}

	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	maxRedirects := opts.MaxRedirects
	c := &Client{
		opts:   opts,
		logger: log.ForService("fetch"),
		http: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c
}

// Get issues a GET for rawURL and returns the decoded body. Cancellation and
// deadlines come from ctx.
func (c *Client) Get(ctx context.Context, rawURL string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isText(contentType) {
		return "", fmt.Errorf("%w: %s", ErrNotText, contentType)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	body, err := decode(raw, contentType)
	if err != nil {
		return "", err
	}

	c.logger.Debugf("GET %s %d (%d bytes, %s)", rawURL, resp.StatusCode, len(raw), time.Since(start).Round(time.Millisecond))
	return body, nil
}

// decode converts raw to UTF-8 using the charset from the Content-Type header,
// a <meta> declaration or content sniffing, in that order. Sniffing only looks
// at the first 1024 bytes and guesses windows-1252 when they are plain ASCII,
// so an undeclared body that is valid UTF-8 as a whole is kept as UTF-8.
func decode(raw []byte, contentType string) (string, error) {
	enc, name, certain := charset.DetermineEncoding(raw, contentType)
	if name == "utf-8" {
		return string(raw), nil
	}
	if !certain && name == defaultSniffedCharset && !declaresCharset(raw) && utf8.Valid(raw) {
		return string(raw), nil
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(raw), enc.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("decoding %s body: %w", name, err)
	}
	return string(decoded), nil
}

// declaresCharset reports whether the sniffed prefix carries a <meta> charset
// declaration, which DetermineEncoding also reports as uncertain.
func declaresCharset(raw []byte) bool {
	if len(raw) > sniffLen {
		raw = raw[:sniffLen]
	}
	_, name := charset.Lookup(metaCharset(raw))
	return name != ""
}

// metaCharset returns the charset value of the first <meta> tag declaring one.
func metaCharset(prefix []byte) string {
	m := metaCharsetRe.FindSubmatch(prefix)
	if m == nil {
		return ""
	}
	return string(m[1])
}

// isText accepts a missing content type, any text/* type and the XML based
// HTML types.
func isText(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil && mediaType == "" {
		return false
	}
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	switch mediaType {
	case "application/xhtml+xml", "application/xml":
		return true
	}
	return false
}
