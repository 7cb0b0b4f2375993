// Package transport wraps net/http with the session-aware behavior every
// marketplace API call shares: a bearer token is attached on the way out, a
// 401 on the way in wipes stored credentials and tells the session owner,
// and non-2xx bodies are decoded into the apierr taxonomy.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"marketclient/domain/entity"
	"marketclient/internal/config"
	"marketclient/internal/credstore"
	"marketclient/internal/metrics"
	"marketclient/pkg/apierr"
	"marketclient/pkg/token"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	store      credstore.Store
	metrics    *metrics.Metrics
	logger     *slog.Logger

	refreshEnabled bool
	inspector      *token.Inspector
	refreshGroup   singleflight.Group

	mu           sync.Mutex
	onInvalidate func()
}

func NewClient(
	apiCfg config.APIConfig,
	refreshCfg config.RefreshConfig,
	store credstore.Store,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Client {
	return &Client{
		baseURL:        strings.TrimRight(apiCfg.BaseURL, "/"),
		httpClient:     &http.Client{Timeout: apiCfg.Timeout},
		store:          store,
		metrics:        m,
		logger:         logger,
		refreshEnabled: refreshCfg.Enabled,
		inspector:      token.NewInspector(refreshCfg.Leeway),
	}
}

// OnInvalidate registers the hook fired synchronously after a 401 wipes the
// credential store. The session manager uses it to reset in-memory state so
// UI state and stored credentials never diverge.
func (c *Client) OnInvalidate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onInvalidate = fn
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out, false)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out, false)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out, false)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, false)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, retried bool) (err error) {
	defer func(start time.Time) {
		c.metrics.ObserveRequest(method, metricPath(path), start, err)
	}(time.Now())

	var reqBody io.Reader
	if body != nil {
		data, merr := json.Marshal(body)
		if merr != nil {
			return fmt.Errorf("marshal request: %w", merr)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	// Outgoing interceptor: attach the stored access token when there is one.
	// An absent token is not an error, the request just goes out anonymous.
	if access, ok := c.store.Get(ctx, credstore.KeyAccessToken); ok && access != "" {
		if c.refreshEnabled && !retried && c.inspector.Expired(access, time.Now()) {
			if refreshed, rerr := c.refresh(ctx); rerr == nil {
				access = refreshed
			}
		}
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failures never touch stored credentials.
		return apierr.Network(err)
	}
	defer resp.Body.Close()

	// Incoming interceptor: a 401 invalidates stored credentials, no matter
	// which request it arrived on.
	if resp.StatusCode == http.StatusUnauthorized {
		if c.refreshEnabled && !retried {
			if _, rerr := c.refresh(ctx); rerr == nil {
				return c.do(ctx, method, path, body, out, true)
			}
		}
		c.invalidate(ctx, method, path)
		return decodeError(resp)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// invalidate removes both tokens unconditionally and fires the registered
// hook before returning, so the wipe is visible to the next operation.
func (c *Client) invalidate(ctx context.Context, method, path string) {
	if err := credstore.ClearCredentials(ctx, c.store); err != nil {
		c.logger.Error("failed to clear credentials after 401",
			slog.String("method", method),
			slog.String("path", path),
			slog.Any("error", err),
		)
	}
	c.metrics.SessionInvalidations.Inc()
	c.logger.Warn("session invalidated by server",
		slog.String("method", method),
		slog.String("path", path),
	)

	c.mu.Lock()
	fn := c.onInvalidate
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// refresh exchanges the stored refresh token for a new pair. Concurrent
// callers share one attempt; the winner persists the pair for everyone.
func (c *Client) refresh(ctx context.Context) (string, error) {
	v, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		creds, ok := credstore.LoadCredentials(ctx, c.store)
		if !ok || creds.RefreshToken == "" {
			return "", fmt.Errorf("no refresh token stored")
		}

		data, err := json.Marshal(refreshRequest{RefreshToken: creds.RefreshToken})
		if err != nil {
			return "", fmt.Errorf("marshal refresh request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/refresh", bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("create refresh request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", apierr.Network(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return "", decodeError(resp)
		}

		var auth entity.AuthResponse
		if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
			return "", fmt.Errorf("decode refresh response: %w", err)
		}
		if err := credstore.SaveCredentials(ctx, c.store, auth.Credentials()); err != nil {
			return "", fmt.Errorf("persist refreshed credentials: %w", err)
		}
		return auth.Token, nil
	})

	if err != nil {
		c.metrics.TokenRefreshes.WithLabelValues("error").Inc()
		c.logger.Warn("token refresh failed", slog.Any("error", err))
		return "", err
	}
	c.metrics.TokenRefreshes.WithLabelValues("ok").Inc()
	return v.(string), nil
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeError(resp *http.Response) error {
	var body errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		body.Message = http.StatusText(resp.StatusCode)
	}
	return apierr.FromResponse(resp.StatusCode, body.Code, body.Message)
}

// metricPath collapses resource IDs so metric labels stay low-cardinality.
func metricPath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if _, err := uuid.Parse(p); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
