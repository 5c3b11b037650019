// Package zyte implements harvest.Fetcher against the Zyte extraction API.
package zyte

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"taxicab/internal/harvest"
)

// DefaultAPIURL is the production Zyte extraction endpoint.
const DefaultAPIURL = "https://api.zyte.com/v1/extract"

// Config controls the API client.
type Config struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// Client fetches pages through the Zyte API. Fetch-policy params are merged
// into the extraction request, so a policy can ask for browser rendering,
// geolocation, custom actions, and so on.
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type apiHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type apiResponse struct {
	URL                 string      `json:"url"`
	StatusCode          int         `json:"statusCode"`
	HTTPResponseBody    string      `json:"httpResponseBody"`
	BrowserHTML         string      `json:"browserHtml"`
	HTTPResponseHeaders []apiHeader `json:"httpResponseHeaders"`
}

// Fetch posts an extraction request for the target URL. The API's own HTTP
// status is passed through on failure so the retry loop can treat upstream
// throttling like any other retryable status.
func (c *Client) Fetch(ctx context.Context, req harvest.FetchRequest) (harvest.FetchResponse, error) {
	start := time.Now()

	payload := map[string]any{
		"url":                 req.URL,
		"httpResponseBody":    true,
		"httpResponseHeaders": true,
	}
	for k, v := range req.Strategy.Params {
		payload[k] = coerceParam(v)
	}
	// browserHtml and httpResponseBody are mutually exclusive.
	if wantsBrowser, ok := payload["browserHtml"].(bool); ok && wantsBrowser {
		delete(payload, "httpResponseBody")
		delete(payload, "httpResponseHeaders")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return harvest.FetchResponse{}, fmt.Errorf("marshal zyte request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return harvest.FetchResponse{}, fmt.Errorf("build zyte request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.cfg.APIKey, "")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return harvest.FetchResponse{}, fmt.Errorf("call zyte api: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read completed below

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return harvest.FetchResponse{}, fmt.Errorf("read zyte response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("zyte api error status",
			zap.Int("status", resp.StatusCode), zap.String("url", req.URL))
		return harvest.FetchResponse{
			URL:        req.URL,
			StatusCode: resp.StatusCode,
			Body:       raw,
			Headers:    http.Header{},
			Duration:   time.Since(start),
		}, nil
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return harvest.FetchResponse{}, fmt.Errorf("decode zyte response: %w", err)
	}

	var content []byte
	switch {
	case parsed.HTTPResponseBody != "":
		content, err = base64.StdEncoding.DecodeString(parsed.HTTPResponseBody)
		if err != nil {
			return harvest.FetchResponse{}, fmt.Errorf("decode zyte body: %w", err)
		}
	case parsed.BrowserHTML != "":
		content = []byte(parsed.BrowserHTML)
	}

	headers := http.Header{}
	for _, h := range parsed.HTTPResponseHeaders {
		headers.Add(h.Name, h.Value)
	}

	status := parsed.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	finalURL := parsed.URL
	if finalURL == "" {
		finalURL = req.URL
	}

	return harvest.FetchResponse{
		URL:        finalURL,
		StatusCode: status,
		Body:       content,
		Headers:    headers,
		Duration:   time.Since(start),
	}, nil
}

// coerceParam maps a policy param string onto the JSON type the API expects.
func coerceParam(v string) any {
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return v
}
