package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"greader-sync/mocks"
	"greader-sync/models"
	"greader-sync/security"
	"greader-sync/service"
	"greader-sync/utils"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// MockAccount is a mock implementation of AccountSyncer
type MockAccount struct {
	mock.Mock
	id string
}

func (m *MockAccount) AccountID() string { return m.id }

func (m *MockAccount) RunCycle(ctx context.Context, feedIDs ...string) (*service.CycleReport, error) {
	args := m.Called(ctx, feedIDs)
	report, _ := args.Get(0).(*service.CycleReport)
	return report, args.Error(1)
}

func (m *MockAccount) LastReport() *service.CycleReport {
	args := m.Called()
	report, _ := args.Get(0).(*service.CycleReport)
	return report
}

func (m *MockAccount) BreakerStats() utils.CircuitBreakerStats {
	return utils.CircuitBreakerStats{State: utils.StateClosed}
}

func (m *MockAccount) MarkRead(ctx context.Context, read bool, ids []string) error {
	return m.Called(ctx, read, ids).Error(0)
}

func (m *MockAccount) MarkStarred(ctx context.Context, starred bool, ids []string) error {
	return m.Called(ctx, starred, ids).Error(0)
}

// MockTokens is a mock implementation of TokenManager
type MockTokens struct {
	mock.Mock
}

func (m *MockTokens) AuthCodeURL(state, redirectURL string) string {
	return "https://www.inoreader.com/oauth2/auth?state=" + url.QueryEscape(state) + "&redirect_uri=" + url.QueryEscape(redirectURL)
}

func (m *MockTokens) Exchange(ctx context.Context, code, redirectURL string) (*models.OAuth2Token, error) {
	args := m.Called(ctx, code, redirectURL)
	token, _ := args.Get(0).(*models.OAuth2Token)
	return token, args.Error(1)
}

func (m *MockTokens) Status(ctx context.Context) (service.TokenStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(service.TokenStatus), args.Error(1)
}

func (m *MockTokens) Metrics() service.TokenMetrics {
	return service.TokenMetrics{Loads: 1}
}

func (m *MockTokens) Revoke(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type testServer struct {
	e       *echo.Echo
	auth    *security.TokenAuthenticator
	handler *AdminHandler
	home    *MockAccount
	work    *MockAccount
	tokens  *MockTokens
	metrics *utils.SyncMetrics
}

func newTestServer(t *testing.T, runs *mocks.MockSyncRunRepository) *testServer {
	t.Helper()
	auth, err := security.NewTokenAuthenticator(testSecret, "greader-sync", nil)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := utils.NewSyncMetrics(reg)
	home := &MockAccount{id: "home"}
	work := &MockAccount{id: "work"}
	tokens := &MockTokens{}

	var h *AdminHandler
	if runs != nil {
		h = NewAdminHandler([]AccountSyncer{home, work}, runs, nil)
	} else {
		h = NewAdminHandler([]AccountSyncer{home, work}, nil, nil)
	}
	h.SetTokenManager("work", tokens, "https://sync.example.com/oauth/callback")

	e := NewServer(ServerConfig{ServiceName: "greader-sync", Gatherer: reg, Recorder: metrics})
	h.Register(e, auth.Middleware())

	return &testServer{e: e, auth: auth, handler: h, home: home, work: work, tokens: tokens, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, target, body string, accounts ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	token, err := s.auth.Issue("operator", accounts, time.Hour)
	require.NoError(t, err)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)

	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestAdminHandler_ListAccounts(t *testing.T) {
	s := newTestServer(t, nil)
	s.home.On("LastReport").Return(&service.CycleReport{AccountID: "home", Status: service.CycleStatusNormal})
	s.work.On("LastReport").Return(nil)
	s.tokens.On("Status", mock.Anything).Return(service.TokenStatus{Authorized: true}, nil)

	t.Run("all accounts for an unrestricted token", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/accounts", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var summaries []AccountSummary
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &summaries))
		require.Len(t, summaries, 2)
		assert.Equal(t, "home", summaries[0].AccountID)
		assert.Equal(t, service.CycleStatusNormal, summaries[0].LastReport.Status)
		assert.Nil(t, summaries[0].OAuth)
		assert.Equal(t, "work", summaries[1].AccountID)
		require.NotNil(t, summaries[1].OAuth)
		assert.True(t, summaries[1].OAuth.Authorized)
	})

	t.Run("restricted token only sees its accounts", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/accounts", "", "home")
		require.Equal(t, http.StatusOK, rec.Code)

		var summaries []AccountSummary
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &summaries))
		require.Len(t, summaries, 1)
		assert.Equal(t, "home", summaries[0].AccountID)
	})

	assert.Equal(t, "nosniff", s.do(t, http.MethodGet, "/api/v1/accounts", "").Header().Get("X-Content-Type-Options"))
}

func TestAdminHandler_Auth(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/home/sync", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/v1/accounts/home/sync", "", "work").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/v1/accounts/missing/sync", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/accounts/bad%20id/sync", "").Code)
	s.home.AssertNotCalled(t, "RunCycle", mock.Anything, mock.Anything)
}

func TestAdminHandler_TriggerSync(t *testing.T) {
	tests := map[string]struct {
		report   *service.CycleReport
		err      error
		wantCode int
	}{
		"normal cycle": {
			report:   &service.CycleReport{AccountID: "home", Status: service.CycleStatusNormal, MessagesSaved: 4},
			wantCode: http.StatusOK,
		},
		"cycle already running": {
			err:      service.ErrCycleInProgress,
			wantCode: http.StatusConflict,
		},
		"breaker open": {
			report:   &service.CycleReport{AccountID: "home", Status: service.CycleStatusCircuitOpen},
			err:      fmt.Errorf("sync home: %w", utils.ErrCircuitBreakerOpen),
			wantCode: http.StatusServiceUnavailable,
		},
		"quota exhausted": {
			report:   &service.CycleReport{AccountID: "home", Status: service.CycleStatusQuota},
			err:      service.ErrQuotaExhausted,
			wantCode: http.StatusServiceUnavailable,
		},
		"provider down": {
			report:   &service.CycleReport{AccountID: "home", Status: "network_error"},
			err:      &service.SyncError{Kind: service.ErrorKindNetwork, Op: "fetch_tree", Err: service.ErrTreeUnavailable},
			wantCode: http.StatusBadGateway,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			s := newTestServer(t, nil)
			s.home.On("RunCycle", mock.MatchedBy(func(ctx context.Context) bool {
				_, ok := ctx.Deadline()
				return ok
			}), mock.Anything).Return(tc.report, tc.err).Once()

			rec := s.do(t, http.MethodPost, "/api/v1/accounts/home/sync", "")
			assert.Equal(t, tc.wantCode, rec.Code)

			env := decode(t, rec)
			assert.Equal(t, tc.err == nil, env.Success)
			if tc.report != nil {
				var report service.CycleReport
				require.NoError(t, json.Unmarshal(env.Data, &report))
				assert.Equal(t, tc.report.Status, report.Status)
			}
			s.home.AssertExpectations(t)
		})
	}
}

func TestAdminHandler_TriggerSyncFeeds(t *testing.T) {
	tests := map[string]struct {
		body      string
		wantFeeds []string
		wantCode  int
	}{
		"feed subset": {
			body:      `{"feeds":["feed/3","feed/http://example.com/rss"]}`,
			wantFeeds: []string{"feed/3", "feed/http://example.com/rss"},
			wantCode:  http.StatusOK,
		},
		"empty feed list syncs everything": {
			body:     `{"feeds":[]}`,
			wantCode: http.StatusOK,
		},
		"blank feed id": {
			body:     `{"feeds":[""]}`,
			wantCode: http.StatusBadRequest,
		},
		"feed id with control characters": {
			body:     `{"feeds":["feed/\u0000"]}`,
			wantCode: http.StatusBadRequest,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			s := newTestServer(t, nil)
			var got []string
			s.home.On("RunCycle", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
				got, _ = args.Get(1).([]string)
			}).Return(&service.CycleReport{AccountID: "home", Status: service.CycleStatusNormal}, nil).Maybe()

			rec := s.do(t, http.MethodPost, "/api/v1/accounts/home/sync", tc.body)
			assert.Equal(t, tc.wantCode, rec.Code)
			if tc.wantCode != http.StatusOK {
				s.home.AssertNotCalled(t, "RunCycle", mock.Anything, mock.Anything)
				return
			}
			assert.ElementsMatch(t, tc.wantFeeds, got)
		})
	}
}

func TestAdminHandler_UpdateMessageState(t *testing.T) {
	tests := map[string]struct {
		body     string
		setup    func(a *MockAccount)
		wantCode int
	}{
		"mark read": {
			body: `{"ids":["tag:google.com,2005:reader/item/00000000000000a1"],"flag":"read","value":true}`,
			setup: func(a *MockAccount) {
				a.On("MarkRead", mock.Anything, true, []string{"tag:google.com,2005:reader/item/00000000000000a1"}).Return(nil)
			},
			wantCode: http.StatusOK,
		},
		"unstar": {
			body: `{"ids":["1","2"],"flag":"starred","value":false}`,
			setup: func(a *MockAccount) {
				a.On("MarkStarred", mock.Anything, false, []string{"1", "2"}).Return(nil)
			},
			wantCode: http.StatusOK,
		},
		"server rejects edit": {
			body: `{"ids":["1"],"flag":"read","value":true}`,
			setup: func(a *MockAccount) {
				a.On("MarkRead", mock.Anything, true, []string{"1"}).
					Return(&service.SyncError{Kind: service.ErrorKindAuth, Op: "edit_tag", Err: service.ErrEditFailed})
			},
			wantCode: http.StatusBadGateway,
		},
		"unknown flag": {
			body:     `{"ids":["1"],"flag":"pinned","value":true}`,
			wantCode: http.StatusBadRequest,
		},
		"missing value": {
			body:     `{"ids":["1"],"flag":"read"}`,
			wantCode: http.StatusBadRequest,
		},
		"empty ids": {
			body:     `{"ids":[],"flag":"read","value":true}`,
			wantCode: http.StatusBadRequest,
		},
		"id with whitespace": {
			body:     `{"ids":["a b"],"flag":"read","value":true}`,
			wantCode: http.StatusBadRequest,
		},
		"malformed json": {
			body:     `{"ids":`,
			wantCode: http.StatusBadRequest,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			s := newTestServer(t, nil)
			if tc.setup != nil {
				tc.setup(s.home)
			}

			rec := s.do(t, http.MethodPost, "/api/v1/accounts/home/messages/state", tc.body)
			assert.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
			s.home.AssertExpectations(t)
		})
	}
}

func TestAdminHandler_ListRuns(t *testing.T) {
	ctrl := gomock.NewController(t)
	runs := mocks.NewMockSyncRunRepository(ctrl)
	s := newTestServer(t, runs)

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs.EXPECT().ListRecent(gomock.Any(), "home", 5).Return([]*models.SyncRun{
		{AccountID: "home", Status: "normal", StartedAt: started, FinishedAt: started.Add(time.Minute)},
	}, nil)
	runs.EXPECT().ListRecent(gomock.Any(), "home", defaultRunsLimit).Return(nil, errors.New("db gone"))

	rec := s.do(t, http.MethodGet, "/api/v1/accounts/home/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.SyncRun
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "normal", got[0].Status)

	assert.Equal(t, http.StatusInternalServerError, s.do(t, http.MethodGet, "/api/v1/accounts/home/runs", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/accounts/home/runs?limit=500", "").Code)
}

func TestAdminHandler_OAuthFlow(t *testing.T) {
	s := newTestServer(t, nil)
	expires := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	s.tokens.On("Exchange", mock.Anything, "auth-code", "https://sync.example.com/oauth/callback").
		Return(&models.OAuth2Token{AccessToken: "at", ExpiresAt: expires}, nil).Once()

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/accounts/home/oauth/authorize", "").Code)

	rec := s.do(t, http.MethodGet, "/api/v1/accounts/work/oauth/authorize", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var started map[string]string
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &started))
	require.NotEmpty(t, started["state"])
	assert.Contains(t, started["authorize_url"], url.QueryEscape(started["state"]))

	callback := "/oauth/callback?code=auth-code&state=" + url.QueryEscape(started["state"])
	req := httptest.NewRequest(http.MethodGet, callback, nil)
	rec = httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// states are single use
	req = httptest.NewRequest(http.MethodGet, callback, nil)
	rec = httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/oauth/callback?error=access_denied", nil)
	rec = httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.tokens.AssertExpectations(t)
}

func TestAdminHandler_TokenStatusAndRevoke(t *testing.T) {
	s := newTestServer(t, nil)
	s.tokens.On("Status", mock.Anything).Return(service.TokenStatus{Authorized: true, HasRefresh: true}, nil)
	s.tokens.On("Revoke", mock.Anything).Return(nil).Once()

	rec := s.do(t, http.MethodGet, "/api/v1/accounts/work/oauth/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status  service.TokenStatus  `json:"status"`
		Metrics service.TokenMetrics `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	assert.True(t, body.Status.HasRefresh)
	assert.EqualValues(t, 1, body.Metrics.Loads)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/api/v1/accounts/work/oauth/token", "").Code)
	s.tokens.AssertExpectations(t)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := utils.NewSyncMetrics(reg)
	var ready error
	e := NewServer(ServerConfig{
		Gatherer: reg,
		Recorder: metrics,
		Ready:    func(context.Context) error { return ready },
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/healthz").Code)
	ready = errors.New("database unreachable")
	assert.Equal(t, http.StatusServiceUnavailable, get("/healthz").Code)

	assert.Equal(t, http.StatusNotFound, get("/nope").Code)
	rec := get("/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "greader_sync_admin_api_requests_total")
}

func TestMapSyncError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"cycle in progress", service.ErrCycleInProgress, http.StatusConflict},
		{"breaker open", utils.ErrCircuitBreakerOpen, http.StatusServiceUnavailable},
		{"quota", fmt.Errorf("wrapped: %w", service.ErrQuotaExhausted), http.StatusServiceUnavailable},
		{"not authorized", service.ErrTokenNotAuthorized, http.StatusPreconditionFailed},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"auth", &service.SyncError{Kind: service.ErrorKindAuth, Op: "login", Err: service.ErrLoginFailed}, http.StatusBadGateway},
		{"network", &service.SyncError{Kind: service.ErrorKindNetwork, Op: "tags", Err: service.ErrUnexpectedStatus}, http.StatusBadGateway},
		{"storage", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, mapSyncError(tt.err).Code)
		})
	}
}

func TestOAuthStateStore_Expires(t *testing.T) {
	store := NewOAuthStateStore(20 * time.Millisecond)
	state := store.Issue("work")

	time.Sleep(60 * time.Millisecond)
	_, ok := store.Consume(state)
	assert.False(t, ok)
}
