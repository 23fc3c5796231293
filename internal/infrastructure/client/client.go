package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const requestTimeout = 10 * time.Second

// TokenSource mints the Bearer token attached to every request.
type TokenSource interface {
	SystemToken() (string, error)
}

// Client is the JSON client for the internal XOPay APIs. Every call carries
// a freshly minted system token and a ten second total deadline. The client
// never retries; retry policy belongs to the caller.
type Client struct {
	hc    *http.Client
	token TokenSource
	lg    zerolog.Logger
}

func New(token TokenSource, lg zerolog.Logger) *Client {
	return &Client{
		hc:    &http.Client{Timeout: requestTimeout},
		token: token,
		lg:    lg,
	}
}

// Request performs one call and decodes the response as a JSON object.
// Success means HTTP 200 with a decodable body; anything else returns a
// descriptive error and a nil body.
func (c *Client) Request(ctx context.Context, method, rawURL string, body any, params url.Values) (map[string]any, error) {
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode request body: %w", method, rawURL, err)
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, payload)
	if err != nil {
		return nil, fmt.Errorf("%s %s: build request: %w", method, rawURL, err)
	}
	if len(params) > 0 {
		q := req.URL.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	token, err := c.token.SystemToken()
	if err != nil {
		return nil, fmt.Errorf("%s %s: mint system token: %w", method, rawURL, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	c.lg.Debug().Str("method", method).Str("url", rawURL).Msg("request started")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: unexpected status %d: %s",
			method, rawURL, resp.StatusCode, bodySnippet(resp.Body))
	}

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%s %s: decode response: %w", method, rawURL, err)
	}
	return decoded, nil
}

// Emails fetches an {"emails": [...]} endpoint and returns the list.
func (c *Client) Emails(ctx context.Context, rawURL string) ([]string, error) {
	body, err := c.Request(ctx, http.MethodGet, rawURL, nil, nil)
	if err != nil {
		return nil, err
	}
	raw, ok := body["emails"].([]any)
	if !ok {
		return nil, fmt.Errorf("GET %s: response has no emails list", rawURL)
	}
	emails := make([]string, 0, len(raw))
	for _, entry := range raw {
		s, ok := entry.(string)
		if !ok {
			return nil, fmt.Errorf("GET %s: malformed emails entry of type %T", rawURL, entry)
		}
		emails = append(emails, s)
	}
	return emails, nil
}

func bodySnippet(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 2048))
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return "<empty body>"
	}
	return s
}
