// internal/api/client.go
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultManifestTTL = 10 * time.Minute
	maxBodySize        = 64 << 20
	manifestKey        = "manifest"
)

var tracer = otel.Tracer("api")

// Client fetches the yearly data set from the remote feed.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
	userAgent  string
}

// New creates a new API client. Zero durations fall back to the defaults.
func New(baseURL string, timeout, manifestTTL time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if manifestTTL <= 0 {
		manifestTTL = defaultManifestTTL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache.New(manifestTTL, 2*manifestTTL),
		userAgent:  "iburn-data/1",
	}
}

// BaseURL returns the feed root without trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Healthcheck checks if the data feed is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/"+ManifestFile, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Manifest returns update.json, cached for the manifest TTL.
func (c *Client) Manifest(ctx context.Context) (Manifest, error) {
	if cached, ok := c.cache.Get(manifestKey); ok {
		return cached.(Manifest), nil
	}

	data, err := c.Fetch(ctx, ManifestFile)
	if err != nil {
		return Manifest{}, err
	}
	m, err := ParseManifest(data)
	if err != nil {
		return Manifest{}, err
	}
	c.cache.SetDefault(manifestKey, m)
	return m, nil
}

// InvalidateManifest forces the next Manifest call to hit the network.
func (c *Client) InvalidateManifest() {
	c.cache.Delete(manifestKey)
}

// Fetch downloads a file relative to the base URL.
func (c *Client) Fetch(ctx context.Context, file string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "API.Client.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("file", file))

	target, err := c.resolve(file)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("fetch %s failed: %w", file, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("fetch %s returned status %d", file, resp.StatusCode)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	span.SetAttributes(attribute.Int("bytes", len(data)))
	return data, nil
}

func (c *Client) resolve(file string) (string, error) {
	if file == "" {
		return "", fmt.Errorf("empty file name")
	}
	ref, err := url.Parse(file)
	if err != nil {
		return "", fmt.Errorf("invalid file name %q: %w", file, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	return url.JoinPath(c.baseURL, ref.Path)
}
