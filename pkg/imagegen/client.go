// Package imagegen is a thin pass-through client for a hosted image
// generation provider. It forwards prompts and returns hosted image URLs;
// file handling stays on the provider side.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/GeorgeStrakhov/briefboarder/pkg/cache"
	"github.com/GeorgeStrakhov/briefboarder/pkg/core"
	"github.com/GeorgeStrakhov/briefboarder/pkg/errors"
	"github.com/GeorgeStrakhov/briefboarder/pkg/logging"
)

// GenerateRequest asks the provider for new images from a prompt.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
	Size   string `json:"size,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// EditRequest asks the provider to rework an existing hosted image.
type EditRequest struct {
	ImageURL string `json:"image_url"`
	Prompt   string `json:"prompt"`
	Model    string `json:"model,omitempty"`
}

// Image is one generated output.
type Image struct {
	URL      string `json:"url"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// Response carries the provider's generated images.
type Response struct {
	Images []Image `json:"images"`
	Model  string  `json:"model,omitempty"`
}

// Client talks to the image generation provider over JSON HTTP.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client

	cache    cache.Cache
	keys     *cache.KeyGenerator
	cacheTTL time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithCache memoizes successful responses so identical requests are not
// billed twice. A zero TTL falls back to the cache's default.
func WithCache(store cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = store
		c.cacheTTL = ttl
	}
}

// NewClient creates a provider client. baseURL must point at the provider's
// API root, e.g. "https://images.example.com".
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New(errors.InvalidInput, "image provider base URL required")
	}

	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout:   120 * time.Second,
			Transport: core.DefaultTransportConfig().ToTransport(),
		},
		keys: cache.NewKeyGenerator("img_"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate requests new images for a prompt.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*Response, error) {
	if req == nil || req.Prompt == "" {
		return nil, errors.New(errors.InvalidInput, "prompt required for image generation")
	}

	key := c.keys.GenerateKey("generate", map[string]interface{}{
		"prompt": req.Prompt,
		"model":  req.Model,
		"size":   req.Size,
		"count":  req.Count,
	})
	if resp, ok := c.cached(ctx, key); ok {
		return resp, nil
	}

	resp, err := c.post(ctx, "/v1/images/generate", req)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, resp)
	return resp, nil
}

// Edit requests a reworked version of a hosted image.
func (c *Client) Edit(ctx context.Context, req *EditRequest) (*Response, error) {
	if req == nil || req.Prompt == "" {
		return nil, errors.New(errors.InvalidInput, "prompt required for image edit")
	}
	if req.ImageURL == "" {
		return nil, errors.New(errors.InvalidInput, "image URL required for image edit")
	}

	key := c.keys.GenerateKey("edit", map[string]interface{}{
		"image_url": req.ImageURL,
		"prompt":    req.Prompt,
		"model":     req.Model,
	})
	if resp, ok := c.cached(ctx, key); ok {
		return resp, nil
	}

	resp, err := c.post(ctx, "/v1/images/edit", req)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, resp)
	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "failed to encode image request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "failed to create image request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), errors.Canceled, "image request canceled")
		}
		return nil, errors.Wrap(err, errors.ProviderUnavailable, "image provider unreachable")
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ProviderUnavailable, "failed to read image provider response")
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, errors.WithFields(
			errors.New(errors.ProviderUnavailable,
				fmt.Sprintf("image provider returned status %d", httpResp.StatusCode)),
			errors.Fields{"status": httpResp.StatusCode, "body": string(raw)})
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, errors.ProviderUnavailable, "failed to decode image provider response")
	}
	return &resp, nil
}

func (c *Client) cached(ctx context.Context, key string) (*Response, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false
	}
	logging.GetLogger().Debug(ctx, "image cache hit for key %s", key)
	return &resp, true
}

func (c *Client) store(ctx context.Context, key string, resp *Response) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.cacheTTL); err != nil {
		logging.GetLogger().Warn(ctx, "failed to cache image response: %v", err)
	}
}
