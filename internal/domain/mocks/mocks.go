// Package mocks provides testify-based test doubles for the domain ports,
// used across internal/issuance, internal/inventory, and
// internal/adapter/httpserver tests.
package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// MockCodeRepository implements domain.CodeRepository.
type MockCodeRepository struct{ mock.Mock }

func (m *MockCodeRepository) Append(ctx domain.Context, game, code string) error {
	args := m.Called(ctx, game, code)
	return args.Error(0)
}

func (m *MockCodeRepository) PeekOldest(ctx domain.Context, game string, n int) ([]domain.Code, error) {
	args := m.Called(ctx, game, n)
	codes, _ := args.Get(0).([]domain.Code)
	return codes, args.Error(1)
}

func (m *MockCodeRepository) Count(ctx domain.Context, game string) (int64, error) {
	args := m.Called(ctx, game)
	return args.Get(0).(int64), args.Error(1)
}

// MockWarmTier implements domain.WarmTier.
type MockWarmTier struct{ mock.Mock }

func (m *MockWarmTier) Push(ctx domain.Context, game string, codes ...string) error {
	callArgs := make([]any, 0, len(codes)+2)
	callArgs = append(callArgs, ctx, game)
	for _, c := range codes {
		callArgs = append(callArgs, c)
	}
	args := m.Called(callArgs...)
	return args.Error(0)
}

func (m *MockWarmTier) PopOldest(ctx domain.Context, game string, n int) ([]string, error) {
	args := m.Called(ctx, game, n)
	codes, _ := args.Get(0).([]string)
	return codes, args.Error(1)
}

func (m *MockWarmTier) PushFront(ctx domain.Context, game string, codes ...string) error {
	callArgs := make([]any, 0, len(codes)+2)
	callArgs = append(callArgs, ctx, game)
	for _, c := range codes {
		callArgs = append(callArgs, c)
	}
	args := m.Called(callArgs...)
	return args.Error(0)
}

func (m *MockWarmTier) Len(ctx domain.Context, game string) (int64, error) {
	args := m.Called(ctx, game)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWarmTier) Expire(ctx domain.Context, game string, ttl time.Duration) error {
	args := m.Called(ctx, game, ttl)
	return args.Error(0)
}

// MockUserRepository implements domain.UserRepository.
type MockUserRepository struct{ mock.Mock }

func (m *MockUserRepository) GetUser(ctx domain.Context, userID string) (domain.UserRecord, error) {
	args := m.Called(ctx, userID)
	rec, _ := args.Get(0).(domain.UserRecord)
	return rec, args.Error(1)
}

func (m *MockUserRepository) UpsertUser(ctx domain.Context, identity domain.UserRecord) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockUserRepository) SetLanguage(ctx domain.Context, userID, lang string) error {
	args := m.Called(ctx, userID, lang)
	return args.Error(0)
}

func (m *MockUserRepository) SetFlag(ctx domain.Context, userID, field string, value any) error {
	args := m.Called(ctx, userID, field, value)
	return args.Error(0)
}

func (m *MockUserRepository) ResetDailyIfNeeded(ctx domain.Context, userID string, now time.Time) (domain.UserRecord, error) {
	args := m.Called(ctx, userID, now)
	rec, _ := args.Get(0).(domain.UserRecord)
	return rec, args.Error(1)
}

func (m *MockUserRepository) LogAction(ctx domain.Context, userID, action string) error {
	args := m.Called(ctx, userID, action)
	return args.Error(0)
}

func (m *MockUserRepository) ListSubscribed(ctx domain.Context) ([]string, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *MockUserRepository) ListUsers(ctx domain.Context, offset, limit int, status domain.UserStatus, query string) ([]domain.UserRecord, error) {
	args := m.Called(ctx, offset, limit, status, query)
	users, _ := args.Get(0).([]domain.UserRecord)
	return users, args.Error(1)
}

func (m *MockUserRepository) CountUsers(ctx domain.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) DailyRequestsCount(ctx domain.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockIssuanceRepository implements domain.IssuanceRepository.
type MockIssuanceRepository struct{ mock.Mock }

func (m *MockIssuanceRepository) CommitDraw(ctx domain.Context, userID string, draws map[string][]string) (int, error) {
	args := m.Called(ctx, userID, draws)
	return args.Int(0), args.Error(1)
}

// MockNotifier implements domain.Notifier.
type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) NotifyUser(ctx domain.Context, userID, message string) error {
	args := m.Called(ctx, userID, message)
	return args.Error(0)
}

func (m *MockNotifier) Broadcast(ctx domain.Context, userIDs []string, message string) error {
	args := m.Called(ctx, userIDs, message)
	return args.Error(0)
}

// MockPromoClient implements domain.PromoClient.
type MockPromoClient struct{ mock.Mock }

func (m *MockPromoClient) LoginClient(ctx domain.Context, g domain.GameSpec, proxy domain.ProxySpec, clientID domain.ClientID) (string, error) {
	args := m.Called(ctx, g, proxy, clientID)
	return args.String(0), args.Error(1)
}

func (m *MockPromoClient) RegisterEvent(ctx domain.Context, g domain.GameSpec, proxy domain.ProxySpec, token, eventID string) (bool, error) {
	args := m.Called(ctx, g, proxy, token, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPromoClient) CreateCode(ctx domain.Context, g domain.GameSpec, proxy domain.ProxySpec, token string) (string, error) {
	args := m.Called(ctx, g, proxy, token)
	return args.String(0), args.Error(1)
}
