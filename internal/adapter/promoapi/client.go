// Package promoapi implements domain.PromoClient against the upstream
// gamepromo.io HTTP API: cached *http.Client per egress, bounded body
// reads, and otelhttp-wrapped transport.
package promoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

const defaultBaseURL = "https://api.gamepromo.io"

// maxBodyBytes bounds how much of an upstream response we ever read, to
// protect a Worker from an abusive or misconfigured proxy returning an
// oversized body.
const maxBodyBytes = 1 << 20

// Client is a single shared domain.PromoClient; it is safe for concurrent
// use by every Worker, each of which always presents the same ProxySpec
// and so always lands on the same cached *http.Client, keeping one HTTP
// session per Worker.
type Client struct {
	baseURL string
	timeout time.Duration

	mu      sync.Mutex
	clients map[string]*http.Client

	log *slog.Logger
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithBaseURL overrides the upstream base URL. Used by tests to point the
// client at an httptest.Server.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// New constructs a Client with the given per-request timeout, pointed at the
// production gamepromo.io API unless overridden with WithBaseURL.
func New(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		timeout: timeout,
		clients: make(map[string]*http.Client),
		log:     slog.Default().With(slog.String("component", "promoapi")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// httpClientFor returns the cached *http.Client for proxy, building and
// caching a new one on first use.
func (c *Client) httpClientFor(proxy domain.ProxySpec) (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hc, ok := c.clients[proxy.URL]; ok {
		return hc, nil
	}
	transport := http.DefaultTransport
	if proxy.URL != "" {
		proxyURL, err := url.Parse(proxy.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: promoapi: invalid proxy url: %v", domain.ErrInvalidArgument, err)
		}
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}
	hc := &http.Client{
		Timeout:   c.timeout,
		Transport: otelhttp.NewTransport(transport),
	}
	c.clients[proxy.URL] = hc
	return hc, nil
}

// post issues a single JSON POST to path via the client bound to proxy,
// attaching a Bearer Authorization header when token is non-empty, and
// reading at most maxBodyBytes of the response. A transport-level error,
// non-2xx status, text/html body, or malformed JSON body is classified as
// domain.ErrUpstreamTransient, except the TooManyRegister rate-limit signal
// (HTTP 400 with that substring in the body), which is classified as
// domain.ErrUpstreamTooManyRegister. A handful of quick retries smooth
// over a dropped connection or DNS hiccup within this single logical call,
// distinct from the jittered retry loop one layer up in Worker.
func (c *Client) post(ctx context.Context, proxy domain.ProxySpec, path, token string, reqBody, respBody any) error {
	hc, err := c.httpClientFor(proxy)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("op=promoapi.post: %w", err)
	}

	var lastErr error
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("op=promoapi.post: %w", err))
		}
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := hc.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: promoapi: %v", domain.ErrUpstreamTransient, err)
			return lastErr
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			lastErr = fmt.Errorf("%w: promoapi: reading body: %v", domain.ErrUpstreamTransient, err)
			return lastErr
		}

		if resp.StatusCode == http.StatusBadRequest && strings.Contains(string(body), "TooManyRegister") {
			lastErr = backoff.Permanent(domain.ErrUpstreamTooManyRegister)
			return lastErr
		}

		if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/html") {
			lastErr = fmt.Errorf("%w: promoapi: html response (status %d)", domain.ErrUpstreamTransient, resp.StatusCode)
			return lastErr
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("%w: promoapi: status %d: %s", domain.ErrUpstreamTransient, resp.StatusCode, snippet(body))
			return lastErr
		}

		if respBody != nil {
			if err := json.Unmarshal(body, respBody); err != nil {
				lastErr = fmt.Errorf("%w: promoapi: malformed json: %v", domain.ErrUpstreamTransient, err)
				return lastErr
			}
		}
		lastErr = nil
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	if err := backoff.Retry(attempt, backoff.WithContext(bo, ctx)); err != nil {
		if errors.Is(lastErr, domain.ErrUpstreamTooManyRegister) {
			return domain.ErrUpstreamTooManyRegister
		}
		if lastErr != nil {
			return lastErr
		}
		return fmt.Errorf("%w: promoapi: %v", domain.ErrUpstreamTransient, err)
	}
	return nil
}

func snippet(body []byte) string {
	const n = 256
	if len(body) > n {
		return string(body[:n])
	}
	return string(body)
}

type loginRequest struct {
	AppToken     string `json:"appToken"`
	ClientID     string `json:"clientId"`
	ClientOrigin string `json:"clientOrigin"`
}

type loginResponse struct {
	ClientToken string `json:"clientToken"`
}

// LoginClient implements domain.PromoClient.
func (c *Client) LoginClient(ctx context.Context, g domain.GameSpec, proxy domain.ProxySpec, clientID domain.ClientID) (string, error) {
	var resp loginResponse
	err := c.post(ctx, proxy, "/promo/login-client", "", loginRequest{
		AppToken:     g.AppToken,
		ClientID:     string(clientID),
		ClientOrigin: "deviceid",
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ClientToken == "" {
		return "", fmt.Errorf("%w: promoapi: login-client returned empty token", domain.ErrUpstreamTransient)
	}
	return resp.ClientToken, nil
}

type registerEventRequest struct {
	PromoID     string `json:"promoId"`
	EventID     string `json:"eventId"`
	EventOrigin string `json:"eventOrigin"`
}

type registerEventResponse struct {
	HasCode bool `json:"hasCode"`
}

// RegisterEvent implements domain.PromoClient.
func (c *Client) RegisterEvent(ctx context.Context, g domain.GameSpec, proxy domain.ProxySpec, token, eventID string) (bool, error) {
	var resp registerEventResponse
	err := c.post(ctx, proxy, "/promo/register-event", token, registerEventRequest{
		PromoID:     g.PromoID,
		EventID:     eventID,
		EventOrigin: "undefined",
	}, &resp)
	if err != nil {
		return false, err
	}
	return resp.HasCode, nil
}

type createCodeRequest struct {
	PromoID string `json:"promoId"`
}

type createCodeResponse struct {
	PromoCode string `json:"promoCode"`
}

// CreateCode implements domain.PromoClient.
func (c *Client) CreateCode(ctx context.Context, g domain.GameSpec, proxy domain.ProxySpec, token string) (string, error) {
	var resp createCodeResponse
	err := c.post(ctx, proxy, "/promo/create-code", token, createCodeRequest{PromoID: g.PromoID}, &resp)
	if err != nil {
		return "", err
	}
	return resp.PromoCode, nil
}
