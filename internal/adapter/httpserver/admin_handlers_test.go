package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/promo-harvester/internal/config"
	"github.com/fairyhunter13/promo-harvester/internal/domain"
	"github.com/fairyhunter13/promo-harvester/internal/domain/mocks"
)

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func testAdminCfg() config.Config {
	return config.Config{
		AdminUsername:      "admin",
		AdminPassword:      "s3cret",
		AdminSessionSecret: "test-signing-secret-must-be-long-enough",
	}
}

func TestAdminTokenHandler_Success(t *testing.T) {
	t.Parallel()
	cfg := testAdminCfg()
	srv := NewServer(cfg, nil, nil, nil, nil, nil)
	admin, err := NewAdminServer(cfg, srv, nil, nil, nil)
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "s3cret"})
	req := httptest.NewRequest(http.MethodPost, "/admin/token", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	admin.AdminTokenHandler()(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])
}

func TestAdminTokenHandler_WrongPassword(t *testing.T) {
	t.Parallel()
	cfg := testAdminCfg()
	srv := NewServer(cfg, nil, nil, nil, nil, nil)
	admin, err := NewAdminServer(cfg, srv, nil, nil, nil)
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "nope"})
	req := httptest.NewRequest(http.MethodPost, "/admin/token", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	admin.AdminTokenHandler()(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAdminUserDetailHandler_SSOAuthenticated(t *testing.T) {
	t.Parallel()
	cfg := testAdminCfg()
	users := &mocks.MockUserRepository{}
	user := domain.UserRecord{UserID: "u1", Status: domain.StatusFree}
	users.On("GetUser", mock.Anything, "u1").Return(user, nil)

	srv := NewServer(cfg, nil, nil, users, nil, nil)
	admin, err := NewAdminServer(cfg, srv, nil, nil, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/api/users/u1", nil)
	req.Header.Set("X-Auth-Request-User", "operator")
	req = withURLParam(req, "id", "u1")
	rr := httptest.NewRecorder()

	admin.AdminUserDetailHandler()(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAdminUserDetailHandler_Unauthorized(t *testing.T) {
	t.Parallel()
	cfg := testAdminCfg()
	srv := NewServer(cfg, nil, nil, nil, nil, nil)
	admin, err := NewAdminServer(cfg, srv, nil, nil, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/api/users/u1", nil)
	rr := httptest.NewRecorder()

	admin.AdminUserDetailHandler()(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAdminUsersListHandler_PaginatesAndFilters(t *testing.T) {
	t.Parallel()
	cfg := testAdminCfg()
	users := &mocks.MockUserRepository{}
	users.On("ListUsers", mock.Anything, 10, 10, domain.StatusFree, "alice").
		Return([]domain.UserRecord{{UserID: "u1", Status: domain.StatusFree}}, nil)

	srv := NewServer(cfg, nil, nil, users, nil, nil)
	admin, err := NewAdminServer(cfg, srv, nil, nil, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/api/users?page=2&limit=10&status=free&q=alice", nil)
	req.Header.Set("X-Auth-Request-User", "operator")
	rr := httptest.NewRecorder()

	admin.AdminUsersListHandler()(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	users.AssertExpectations(t)
}

func TestAdminUsersListHandler_RejectsBadPagination(t *testing.T) {
	t.Parallel()
	cfg := testAdminCfg()
	srv := NewServer(cfg, nil, nil, nil, nil, nil)
	admin, err := NewAdminServer(cfg, srv, nil, nil, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/api/users?page=0&limit=9999", nil)
	req.Header.Set("X-Auth-Request-User", "operator")
	rr := httptest.NewRecorder()

	admin.AdminUsersListHandler()(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminSetFlagHandler_RejectsUnknownField(t *testing.T) {
	t.Parallel()
	cfg := testAdminCfg()
	srv := NewServer(cfg, nil, nil, nil, nil, nil)
	admin, err := NewAdminServer(cfg, srv, nil, nil, nil)
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]any{"field": "password", "value": "x"})
	req := httptest.NewRequest(http.MethodPost, "/admin/api/users/u1/flag", bytes.NewReader(body))
	req.Header.Set("X-Auth-Request-User", "operator")
	req = withURLParam(req, "id", "u1")
	rr := httptest.NewRecorder()

	admin.AdminSetFlagHandler()(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
