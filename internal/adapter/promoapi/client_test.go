package promoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/promo-harvester/internal/adapter/promoapi"
	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

func testGame() domain.GameSpec {
	return domain.GameSpec{Name: "aaa", AppToken: "app-token", PromoID: "promo-id"}
}

func noProxy() domain.ProxySpec { return domain.ProxySpec{} }

func TestClient_LoginClient_Success(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/promo/login-client", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "app-token", body["appToken"])
		assert.Equal(t, "deviceid", body["clientOrigin"])
		assert.NotEmpty(t, body["clientId"])
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"clientToken": "tok-123"})
	}))
	defer srv.Close()

	c := promoapi.New(5*time.Second, promoapi.WithBaseURL(srv.URL))
	token, err := c.LoginClient(context.Background(), testGame(), noProxy(), domain.NewClientID())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
}

func TestClient_LoginClient_EmptyTokenIsTransient(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	c := promoapi.New(5*time.Second, promoapi.WithBaseURL(srv.URL))
	_, err := c.LoginClient(context.Background(), testGame(), noProxy(), domain.NewClientID())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamTransient)
}

func TestClient_RegisterEvent_Success(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/promo/register-event", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "promo-id", body["promoId"])
		assert.Equal(t, "undefined", body["eventOrigin"])
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"hasCode": true})
	}))
	defer srv.Close()

	c := promoapi.New(5*time.Second, promoapi.WithBaseURL(srv.URL))
	hasCode, err := c.RegisterEvent(context.Background(), testGame(), noProxy(), "tok-123", "event-1")
	require.NoError(t, err)
	assert.True(t, hasCode)
}

func TestClient_RegisterEvent_TooManyRegister(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_code":"TooManyRegister"}`))
	}))
	defer srv.Close()

	c := promoapi.New(5*time.Second, promoapi.WithBaseURL(srv.URL))
	_, err := c.RegisterEvent(context.Background(), testGame(), noProxy(), "tok-123", "event-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamTooManyRegister)
}

func TestClient_RegisterEvent_HTMLBodyIsTransient(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><body>proxy error</body></html>"))
	}))
	defer srv.Close()

	c := promoapi.New(5*time.Second, promoapi.WithBaseURL(srv.URL))
	_, err := c.RegisterEvent(context.Background(), testGame(), noProxy(), "tok-123", "event-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamTransient)
}

func TestClient_RegisterEvent_ServerErrorIsTransient(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := promoapi.New(5*time.Second, promoapi.WithBaseURL(srv.URL))
	_, err := c.RegisterEvent(context.Background(), testGame(), noProxy(), "tok-123", "event-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamTransient)
}

func TestClient_CreateCode_Success(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/promo/create-code", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"promoCode": "CODE-XYZ"})
	}))
	defer srv.Close()

	c := promoapi.New(5*time.Second, promoapi.WithBaseURL(srv.URL))
	code, err := c.CreateCode(context.Background(), testGame(), noProxy(), "tok-123")
	require.NoError(t, err)
	assert.Equal(t, "CODE-XYZ", code)
}

func TestClient_CreateCode_MalformedJSONIsTransient(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := promoapi.New(5*time.Second, promoapi.WithBaseURL(srv.URL))
	_, err := c.CreateCode(context.Background(), testGame(), noProxy(), "tok-123")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamTransient)
}
