package fakeapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketclient/domain/entity"
)

func newTestAPI(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	api := NewServer()
	srv := httptest.NewServer(NewEcho(api, slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(srv.Close)
	return api, srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRegisterThenVerifyFlow(t *testing.T) {
	api, srv := newTestAPI(t)

	resp := postJSON(t, srv.URL+"/auth/register", map[string]string{"email": "a@b.c"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	auth := decode[entity.AuthResponse](t, resp)
	assert.NotEmpty(t, auth.Token)
	assert.NotEmpty(t, auth.RefreshToken)
	require.NotNil(t, auth.User)
	assert.False(t, auth.User.IsVerified)

	// Duplicate registration conflicts with a typed code.
	resp = postJSON(t, srv.URL+"/auth/register", map[string]string{"email": "a@b.c"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errBody := decode[apiError](t, resp)
	assert.Equal(t, "account_exists", errBody.Code)

	// Verification with the server's code flips the flag.
	resp = postJSON(t, srv.URL+"/auth/verify-otp", map[string]any{
		"email": "a@b.c", "otp": api.OTPCode(), "isRegistration": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	auth = decode[entity.AuthResponse](t, resp)
	assert.True(t, auth.User.IsVerified)
}

func TestRefreshRotatesTokens(t *testing.T) {
	_, srv := newTestAPI(t)

	resp := postJSON(t, srv.URL+"/auth/register", map[string]string{"email": "a@b.c"})
	auth := decode[entity.AuthResponse](t, resp)

	resp = postJSON(t, srv.URL+"/auth/refresh", map[string]string{"refreshToken": auth.RefreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	refreshed := decode[entity.AuthResponse](t, resp)
	assert.NotEqual(t, auth.RefreshToken, refreshed.RefreshToken)

	// The old refresh token is spent.
	resp = postJSON(t, srv.URL+"/auth/refresh", map[string]string{"refreshToken": auth.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRevokedTokensGet401(t *testing.T) {
	api, srv := newTestAPI(t)

	resp := postJSON(t, srv.URL+"/auth/register", map[string]string{"email": "a@b.c"})
	auth := decode[entity.AuthResponse](t, resp)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+auth.Token)

	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r.Body.Close()
	require.Equal(t, http.StatusOK, r.StatusCode)

	api.RevokeTokens()

	r, err = http.DefaultClient.Do(req.Clone(req.Context()))
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, r.StatusCode)
}
