package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/promo-harvester/internal/config"
	"github.com/fairyhunter13/promo-harvester/internal/domain"
	"github.com/fairyhunter13/promo-harvester/internal/domain/mocks"
	"github.com/fairyhunter13/promo-harvester/internal/inventory"
	"github.com/fairyhunter13/promo-harvester/internal/issuance"
)

func TestIssueHandler_Success(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	users := &mocks.MockUserRepository{}
	issuanceRepo := &mocks.MockIssuanceRepository{}
	codeRepo := &mocks.MockCodeRepository{}
	warm := &mocks.MockWarmTier{}

	user := domain.UserRecord{UserID: "u1", Status: domain.StatusFree, LastResetDate: now}
	users.On("GetUser", mock.Anything, "u1").Return(user, nil)
	users.On("ResetDailyIfNeeded", mock.Anything, "u1", mock.Anything).Return(user, nil)
	users.On("LogAction", mock.Anything, "u1", "issue_request").Return(nil)

	warm.On("Len", mock.Anything, "aaa").Return(int64(4), nil)
	warm.On("PopOldest", mock.Anything, "aaa", 4).Return([]string{"c1", "c2", "c3", "c4"}, nil)
	issuanceRepo.On("CommitDraw", mock.Anything, "u1", map[string][]string{"aaa": {"c1", "c2", "c3", "c4"}}).Return(4, nil)

	inv := inventory.New(codeRepo, warm)
	engine := issuance.New(users, issuanceRepo, domain.DefaultLimits(), nil, map[string]*inventory.Service{"aaa": inv})
	srv := NewServer(config.Config{}, engine, nil, users, nil, nil)

	body, _ := json.Marshal(map[string]any{"user_id": "u1", "games": []string{"aaa"}})
	req := httptest.NewRequest(http.MethodPost, "/v1/issue", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	srv.IssueHandler()(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp issueResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Draws, 1)
	assert.Equal(t, []string{"c1", "c2", "c3", "c4"}, resp.Draws[0].Codes)
}

func TestIssueHandler_MalformedBody(t *testing.T) {
	t.Parallel()
	srv := NewServer(config.Config{}, nil, nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/issue", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()

	srv.IssueHandler()(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestIssueHandler_ValidationFailure(t *testing.T) {
	t.Parallel()
	srv := NewServer(config.Config{}, nil, nil, nil, nil, nil)
	body, _ := json.Marshal(map[string]any{"user_id": "", "games": []string{}})
	req := httptest.NewRequest(http.MethodPost, "/v1/issue", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	srv.IssueHandler()(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestIssueHandler_Banned(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	users := &mocks.MockUserRepository{}
	issuanceRepo := &mocks.MockIssuanceRepository{}

	user := domain.UserRecord{UserID: "u1", Status: domain.StatusFree, LastResetDate: now, IsBanned: true}
	users.On("GetUser", mock.Anything, "u1").Return(user, nil)

	engine := issuance.New(users, issuanceRepo, domain.DefaultLimits(), nil, nil)
	srv := NewServer(config.Config{}, engine, nil, users, nil, nil)

	body, _ := json.Marshal(map[string]any{"user_id": "u1", "games": []string{"aaa"}})
	req := httptest.NewRequest(http.MethodPost, "/v1/issue", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	srv.IssueHandler()(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestOutcomeLabel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "banned", outcomeLabel(domain.ErrBanned))
	assert.Equal(t, "quota_exceeded", outcomeLabel(domain.ErrQuotaExceeded))
	assert.Equal(t, "interval_not_elapsed", outcomeLabel(domain.ErrIntervalNotElapsed))
	assert.Equal(t, "error", outcomeLabel(assertErr{}))
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestHealthzHandler(t *testing.T) {
	t.Parallel()
	srv := NewServer(config.Config{}, nil, nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	srv.HealthzHandler()(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestReadyzHandler_NoDependencies(t *testing.T) {
	t.Parallel()
	srv := NewServer(config.Config{}, nil, nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	srv.ReadyzHandler()(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
