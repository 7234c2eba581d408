package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"user-api/internal/auth"
	"user-api/internal/domain"
	"user-api/internal/repository"
	"user-api/internal/repository/sqlite"
	"user-api/internal/service"
	"user-api/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	repo   repository.UserRepository
	users  service.UserService
	tokens *auth.Tokens
	token  string
}

type serverOption func(*Options)

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))

	users := service.NewUserService(repo, service.WithPasswordCost(bcrypt.MinCost))
	tokens := auth.NewTokens("test-secret", "user-api", time.Hour)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	options := Options{
		Users:  users,
		Tokens: tokens,
		Store:  repo,
		Logger: logger,
	}
	for _, opt := range opts {
		opt(&options)
	}

	router := gin.New()
	NewHandler(options).RegisterRoutes(router)

	// Tokens only need a numeric subject; the guard does not consult the store.
	token, _, err := tokens.Issue(&domain.User{ID: 999, Username: "operator"})
	require.NoError(t, err)

	return &testServer{router: router, repo: repo, users: users, tokens: tokens, token: token}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.doWithToken(t, method, path, body, s.token)
}

func (s *testServer) doWithToken(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type userBody struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type envelope struct {
	StatusCode int        `json:"statusCode"`
	Message    string     `json:"message"`
	Error      string     `json:"error"`
	User       *userBody  `json:"user"`
	Users      []userBody `json:"users"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func credentials(username, password string) map[string]string {
	return map[string]string{"username": username, "password": password}
}

func TestUserRoutes_RequireBearerToken(t *testing.T) {
	srv := newTestServer(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/user"},
		{http.MethodGet, "/user"},
		{http.MethodGet, "/user/alice"},
		{http.MethodPut, "/user/1"},
		{http.MethodDelete, "/user/1"},
	}
	for _, r := range routes {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			rec := srv.doWithToken(t, r.method, r.path, credentials("alice", "pw"), "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"statusCode":401,"message":"Unauthorized"}`, rec.Body.String())
		})
	}

	users, err := srv.repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users, "rejected requests must not reach the service")
}

func TestUserRoutes_Lifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/user", credentials("alice", "s3cret"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, "User created successfully", created.Message)
	require.NotNil(t, created.User)
	assert.Equal(t, int64(1), created.User.ID)
	assert.Equal(t, "alice", created.User.Username)
	assert.NotEqual(t, "s3cret", created.User.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.User.Password), []byte("s3cret")))

	rec = srv.do(t, http.MethodPost, "/user", credentials("alice", "other"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"statusCode":409,"message":"Username already exists","error":"Conflict"}`, rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/user/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	found := decode(t, rec)
	assert.Equal(t, "User retrieved successfully", found.Message)
	assert.Equal(t, created.User.ID, found.User.ID)

	rec = srv.do(t, http.MethodGet, "/user", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)
	assert.Equal(t, "Users retrieved successfully", list.Message)
	require.Len(t, list.Users, 1)

	rec = srv.do(t, http.MethodPut, "/user/1", credentials("alicia", "n3w"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode(t, rec)
	assert.Equal(t, "User updated successfully", updated.Message)
	assert.Equal(t, "alicia", updated.User.Username)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.User.Password), []byte("n3w")))

	rec = srv.do(t, http.MethodDelete, "/user/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"User alicia deleted successfully"}`, rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/user/alicia", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"statusCode":404,"message":"User not found","error":"Not Found"}`, rec.Body.String())
}

func TestUserRoutes_ListEmptyIsArray(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/user", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Users retrieved successfully","users":[]}`, rec.Body.String())
}

func TestUserRoutes_DeleteMissing(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodDelete, "/user/5", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", decode(t, rec).Message)
}

func TestUserRoutes_UpdateMissingIsServerError(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPut, "/user/5", credentials("ghost", "pw"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"statusCode":500,"message":"Internal server error"}`, rec.Body.String())
}

func TestUserRoutes_BadInput(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name        string
		method      string
		path        string
		body        any
		wantMessage string
	}{
		{name: "create malformed json", method: http.MethodPost, path: "/user", body: `{"username":`, wantMessage: "Invalid request body"},
		{name: "create empty body", method: http.MethodPost, path: "/user", body: nil, wantMessage: "Invalid request body"},
		{name: "create missing password", method: http.MethodPost, path: "/user", body: map[string]string{"username": "alice"}, wantMessage: "password is required"},
		{name: "create missing username", method: http.MethodPost, path: "/user", body: map[string]string{"password": "pw"}, wantMessage: "username is required"},
		{name: "update non numeric id", method: http.MethodPut, path: "/user/abc", body: credentials("a", "b"), wantMessage: "Invalid user id"},
		{name: "update zero id", method: http.MethodPut, path: "/user/0", body: credentials("a", "b"), wantMessage: "Invalid user id"},
		{name: "update empty password", method: http.MethodPut, path: "/user/1", body: credentials("a", ""), wantMessage: "password is required"},
		{name: "delete negative id", method: http.MethodDelete, path: "/user/-1", wantMessage: "Invalid user id"},
		{name: "delete float id", method: http.MethodDelete, path: "/user/1.5", wantMessage: "Invalid user id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			env := decode(t, rec)
			assert.Equal(t, http.StatusBadRequest, env.StatusCode)
			assert.Equal(t, "Bad Request", env.Error)
			assert.Equal(t, tt.wantMessage, env.Message)
		})
	}
}

func TestUserRoutes_RedactPassword(t *testing.T) {
	srv := newTestServer(t, func(o *Options) { o.RedactPassword = true })

	rec := srv.do(t, http.MethodPost, "/user", credentials("alice", "s3cret"))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message":"User created successfully","user":{"id":1,"username":"alice"}}`, rec.Body.String())
}

type failingUserService struct {
	service.UserService
	err error
}

func (f failingUserService) FindAll(ctx context.Context) (service.UsersResult, error) {
	return service.UsersResult{}, f.err
}

func TestUserRoutes_StoreFailureIsHidden(t *testing.T) {
	srv := newTestServer(t, func(o *Options) {
		o.Users = failingUserService{err: errors.New("database is locked")}
	})

	rec := srv.do(t, http.MethodGet, "/user", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "locked")
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	_, err := srv.users.Create(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	rec := srv.doWithToken(t, http.MethodPost, "/auth/login", credentials("alice", "s3cret"), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Message     string `json:"message"`
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Login successful", resp.Message)
	assert.Equal(t, "Bearer", resp.TokenType)

	claims, err := srv.tokens.Verify(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	// the issued token opens the guarded routes
	rec = srv.doWithToken(t, http.MethodGet, "/user/alice", nil, resp.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.doWithToken(t, http.MethodPost, "/auth/login", credentials("alice", "wrong"), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"statusCode":401,"message":"Invalid credentials","error":"Unauthorized"}`, rec.Body.String())
}

type downStore struct{}

func (downStore) Ping(ctx context.Context) error { return errors.New("connection refused") }

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.doWithToken(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	down := newTestServer(t, func(o *Options) { o.Store = downStore{} })
	rec = down.doWithToken(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/user", nil)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

type fakeExports struct {
	export  service.Export
	objects []storage.ObjectInfo
	err     error
}

func (f *fakeExports) ExportUsers(ctx context.Context) (service.Export, error) {
	return f.export, f.err
}

func (f *fakeExports) ListExports(ctx context.Context) ([]storage.ObjectInfo, error) {
	return f.objects, f.err
}

func TestExportRoutes(t *testing.T) {
	modified := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	exports := &fakeExports{
		export: service.Export{
			Location:   "s3://backups/user-exports/users-1.json",
			Key:        "user-exports/users-1.json",
			Count:      2,
			ExportedAt: modified,
		},
		objects: []storage.ObjectInfo{{Key: "user-exports/users-1.json", Size: 42, LastModified: &modified}},
	}
	srv := newTestServer(t, func(o *Options) { o.Exports = exports })

	rec := srv.do(t, http.MethodPost, "/exports/users", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{
		"message": "Users exported successfully",
		"location": "s3://backups/user-exports/users-1.json",
		"key": "user-exports/users-1.json",
		"count": 2,
		"exported_at": "2026-10-16T09:30:00Z"
	}`, rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/exports/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"message": "Exports retrieved successfully",
		"exports": [{"key": "user-exports/users-1.json", "size": 42, "last_modified": "2026-10-16T09:30:00Z"}]
	}`, rec.Body.String())

	rec = srv.doWithToken(t, http.MethodPost, "/exports/users", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExportRoutesAbsentWithoutStorage(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/exports/users", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
