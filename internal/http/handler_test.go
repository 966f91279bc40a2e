package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-ledger/internal/service"
)

const testSecret = "test-secret"

type testServer struct {
	t        *testing.T
	router   *gin.Engine
	handler  *Handler
	registry *service.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := service.NewRegistry()
	require.NoError(t, reg.Bootstrap())
	_, err := reg.Register("alice", "Passw0rd!", decimal.NewFromInt(100))
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	h := NewHandler(reg, []byte(testSecret), time.Hour, logger)
	router := gin.New()
	h.RegisterRoutes(router)

	return &testServer{t: t, router: router, handler: h, registry: reg}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/login", "", gin.H{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(s.t, resp.Token)
	return resp.Token
}

func decodeUser(t *testing.T, rec *httptest.ResponseRecorder) UserResponse {
	t.Helper()
	var resp UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	token := s.login("alice", "Passw0rd!")
	sess, err := s.handler.parseToken(token)
	require.NoError(t, err)
	alice, err := s.registry.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.username)
	assert.Equal(t, alice.ID().String(), sess.userID)

	rec := s.do(http.MethodPost, "/api/login", "", gin.H{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/login", "", gin.H{"username": "nobody", "password": "Passw0rd!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/login", "", gin.H{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	alice, err := s.registry.Get("alice")
	require.NoError(t, err)

	other := &Handler{secret: []byte("other-secret"), tokenTTL: time.Hour}
	forged, err := other.generateToken(alice, time.Now())
	require.NoError(t, err)
	rec = s.do(http.MethodGet, "/api/me", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := s.handler.generateToken(alice, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	rec = s.do(http.MethodGet, "/api/me", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterAndMe(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/users", "", gin.H{"username": "bob", "password": "B0b!secret", "initial_balance": "12.5"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeUser(t, rec)
	assert.Equal(t, "bob", created.Username)
	assert.Equal(t, "12.50", created.Balance)
	assert.Empty(t, created.Items)

	token := s.login("bob", "B0b!secret")
	rec = s.do(http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeUser(t, rec)
	assert.Equal(t, created.ID, me.ID)
}

func TestRegisterErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		body       gin.H
		wantStatus int
	}{
		{name: "taken", body: gin.H{"username": "alice", "password": "Passw0rd!"}, wantStatus: http.StatusConflict},
		{name: "blank username", body: gin.H{"username": "  ", "password": "Passw0rd!"}, wantStatus: http.StatusBadRequest},
		{name: "weak password", body: gin.H{"username": "bob", "password": "password"}, wantStatus: http.StatusBadRequest},
		{name: "negative balance", body: gin.H{"username": "bob", "password": "Passw0rd!", "initial_balance": "-1"}, wantStatus: http.StatusBadRequest},
		{name: "missing password", body: gin.H{"username": "bob"}, wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/users", "", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, 2, s.registry.Len())
}

func TestRegisterWeakPasswordListsViolations(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/users", "", gin.H{"username": "bob", "password": "short"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Violations []string `json:"violations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Violations)
}

func TestDepositAndWithdraw(t *testing.T) {
	s := newTestServer(t)
	token := s.login("alice", "Passw0rd!")

	rec := s.do(http.MethodPost, "/api/me/deposit", token, gin.H{"amount": "50.25"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "150.25", decodeUser(t, rec).Balance)

	rec = s.do(http.MethodPost, "/api/me/deposit", token, gin.H{"amount": "-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/me/withdraw", token, gin.H{"amount": "200"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/me/withdraw", token, gin.H{"amount": "200", "allow_overdraw": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "-49.75", decodeUser(t, rec).Balance)

	rec = s.do(http.MethodPost, "/api/me/withdraw", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestItems(t *testing.T) {
	s := newTestServer(t)
	token := s.login("alice", "Passw0rd!")

	rec := s.do(http.MethodPost, "/api/me/items", token, gin.H{"name": "pen", "price": "1.5"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = s.do(http.MethodPost, "/api/me/items", token, gin.H{"name": "book", "price": 12})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []ItemResponse{{Name: "pen", Price: "1.50"}, {Name: "book", Price: "12.00"}}, decodeUser(t, rec).Items)

	rec = s.do(http.MethodPost, "/api/me/items", token, gin.H{"name": "bad", "price": "-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodDelete, "/api/me/items", token, gin.H{"name": "pen", "price": "1.50"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []ItemResponse{{Name: "book", Price: "12.00"}}, decodeUser(t, rec).Items)

	rec = s.do(http.MethodDelete, "/api/me/items", token, gin.H{"name": "pen", "price": "1.50"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChangePassword(t *testing.T) {
	s := newTestServer(t)
	token := s.login("alice", "Passw0rd!")

	rec := s.do(http.MethodPut, "/api/me/password", token, gin.H{"current_password": "wrong", "new_password": "N3w!password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPut, "/api/me/password", token, gin.H{"current_password": "Passw0rd!", "new_password": "weak"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPut, "/api/me/password", token, gin.H{"current_password": "Passw0rd!", "new_password": "N3w!password"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	s.login("alice", "N3w!password")
	rec = s.do(http.MethodPost, "/api/login", "", gin.H{"username": "alice", "password": "Passw0rd!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListUsers(t *testing.T) {
	s := newTestServer(t)
	token := s.login("alice", "Passw0rd!")

	rec := s.do(http.MethodGet, "/api/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []UserSummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, service.BootstrapUsername, resp[0].Username)
	assert.Equal(t, "alice", resp[1].Username)
}

func TestTokenRejectedAfterReRegister(t *testing.T) {
	s := newTestServer(t)
	stale := s.login("alice", "Passw0rd!")

	rec := s.do(http.MethodDelete, "/api/users/alice", stale, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/users", "", gin.H{"username": "alice", "password": "An0ther!pass"})
	require.Equal(t, http.StatusCreated, rec.Code)

	for _, tc := range []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/api/me", nil},
		{http.MethodPost, "/api/me/withdraw", gin.H{"amount": "1"}},
		{http.MethodGet, "/api/users", nil},
		{http.MethodDelete, "/api/users/alice", nil},
	} {
		rec = s.do(tc.method, tc.path, stale, tc.body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
	_, err := s.registry.Get("alice")
	assert.NoError(t, err)

	fresh := s.login("alice", "An0ther!pass")
	rec = s.do(http.MethodGet, "/api/me", fresh, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenRejectedAfterPasswordChange(t *testing.T) {
	s := newTestServer(t)
	stale := s.login("alice", "Passw0rd!")
	current := s.login("alice", "Passw0rd!")

	rec := s.do(http.MethodPut, "/api/me/password", current, gin.H{"current_password": "Passw0rd!", "new_password": "N3w!password"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/me", stale, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/me", s.login("alice", "N3w!password"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRemoveUser(t *testing.T) {
	s := newTestServer(t)
	_, err := s.registry.Register("bob", "B0b!secret", decimal.Zero)
	require.NoError(t, err)

	alice := s.login("alice", "Passw0rd!")
	admin := s.login(service.BootstrapUsername, service.DefaultBootstrapPassword)

	rec := s.do(http.MethodDelete, "/api/users/bob", alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodDelete, "/api/users/"+service.BootstrapUsername, admin, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodDelete, "/api/users/nobody", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodDelete, "/api/users/bob", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodDelete, "/api/users/alice", alice, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/me", alice, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1, s.registry.Len())
}

func TestLocked(t *testing.T) {
	s := newTestServer(t)
	var n int
	require.NoError(t, s.handler.Locked(func(reg *service.Registry) error {
		n = reg.Len()
		return nil
	}))
	assert.Equal(t, 2, n)
}
