package httpapp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	httpapp "authsvc/internal/app/http"
	"authsvc/internal/config"
	"authsvc/internal/lib/jwt"
	"authsvc/internal/services/auth"
	"authsvc/internal/storage/sqlite"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const passDefaultLen = 10

type suite struct {
	*testing.T
	App     *httpapp.App
	Signer  *jwt.Signer
	Storage *sqlite.Storage
}

func newSuite(t *testing.T) *suite {
	t.Helper()
	t.Parallel()

	storage, err := sqlite.New(filepath.Join(t.TempDir(), "authsvc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	key, err := jwt.NewGeneratedKey()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	signer := jwt.NewSigner(key, time.Hour, 7*24*time.Hour)
	authService := auth.New(logger, storage, storage, storage, signer, bcrypt.MinCost, 7*24*time.Hour)

	app := httpapp.New(logger, authService, signer, config.HTTPConfig{
		Address:     ":0",
		PublicPaths: []string{"/api/auth/register", "/api/auth/login"},
	})

	return &suite{T: t, App: app, Signer: signer, Storage: storage}
}

// do sends a JSON request and decodes the JSON response body.
func (s *suite) do(method, path, bearer string, body any) (int, map[string]string) {
	s.Helper()

	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s, err)
		r = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.App.Handler().Test(req, -1)
	require.NoError(s, err)
	defer resp.Body.Close()

	out := map[string]string{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(s, err)
	if len(raw) > 0 {
		require.NoError(s, json.Unmarshal(raw, &out), string(raw))
	}

	return resp.StatusCode, out
}

func (s *suite) register(username, password string) (int, map[string]string) {
	return s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"username": username, "password": password})
}

func (s *suite) login(username, password string) (int, map[string]string) {
	return s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": username, "password": password})
}

func (s *suite) refresh(bearer, refreshToken string) (int, map[string]string) {
	return s.do(http.MethodPost, "/api/auth/refresh", bearer, map[string]string{"refreshToken": refreshToken})
}

func randomPassword() string {
	return gofakeit.Password(true, true, true, true, false, passDefaultLen)
}

func TestAuthRegisterLogin(t *testing.T) {
	st := newSuite(t)

	username := gofakeit.Username()
	password := randomPassword()

	code, body := st.register(username, password)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "registration completed", body["message"])

	code, body = st.login(username, password)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, body["accessToken"])
	require.NotEmpty(t, body["refreshToken"])

	subject, ok := st.Signer.Validate(body["accessToken"])
	require.True(t, ok)
	assert.Equal(t, username, subject)

	stored, err := st.Storage.RefreshToken(context.Background(), body["refreshToken"])
	require.NoError(t, err)
	assert.Equal(t, username, stored.Username)
}

func TestAuthScenario(t *testing.T) {
	st := newSuite(t)

	code, _ := st.register("alice", "pw1")
	require.Equal(t, http.StatusOK, code)

	code, body := st.register("alice", "pw2")
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "username is already in use", body["error"])

	code, body = st.login("alice", "pw2")
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid username or password", body["error"])

	code, body = st.login("alice", "pw1")
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEmpty(t, body["refreshToken"])
}

func TestInfo(t *testing.T) {
	st := newSuite(t)

	username := gofakeit.Username()
	password := randomPassword()

	code, _ := st.register(username, password)
	require.Equal(t, http.StatusOK, code)
	_, tokens := st.login(username, password)

	code, body := st.do(http.MethodGet, "/api/auth/info", tokens["accessToken"], nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, username, body["username"])
	assert.Equal(t, "USER", body["role"])

	code, _ = st.do(http.MethodGet, "/api/auth/info", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	tampered := tokens["accessToken"][:len(tokens["accessToken"])-4] + "AAAA"
	code, _ = st.do(http.MethodGet, "/api/auth/info", tampered, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	ghost, err := st.Signer.IssueAccessToken("ghost-" + username)
	require.NoError(t, err)
	code, body = st.do(http.MethodGet, "/api/auth/info", ghost, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "user not found", body["error"])
}

func TestAuthRefresh(t *testing.T) {
	st := newSuite(t)

	username := gofakeit.Username()
	password := randomPassword()

	code, _ := st.register(username, password)
	require.Equal(t, http.StatusOK, code)

	_, first := st.login(username, password)
	_, second := st.login(username, password)
	require.NotEqual(t, first["refreshToken"], second["refreshToken"])

	code, body := st.refresh(second["accessToken"], second["refreshToken"])
	require.Equal(t, http.StatusOK, code)
	subject, ok := st.Signer.Validate(body["accessToken"])
	require.True(t, ok)
	assert.Equal(t, username, subject)

	// overwritten by the second login
	code, body = st.refresh(second["accessToken"], first["refreshToken"])
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "refresh token not found", body["error"])

	code, _ = st.refresh("", second["refreshToken"])
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRefresh_FailCases(t *testing.T) {
	st := newSuite(t)

	access, err := st.Signer.IssueAccessToken(gofakeit.Username())
	require.NoError(t, err)
	neverStored, err := st.Signer.IssueRefreshToken(gofakeit.Username())
	require.NoError(t, err)

	tests := []struct {
		name         string
		refreshToken string
		expectedCode int
		expectedErr  string
	}{
		{
			name:         "Empty refresh token",
			refreshToken: "",
			expectedCode: http.StatusUnauthorized,
			expectedErr:  "invalid token",
		},
		{
			name:         "Invalid refresh token",
			refreshToken: "invalid-token-that-does-not-exist",
			expectedCode: http.StatusUnauthorized,
			expectedErr:  "invalid token",
		},
		{
			name:         "Never stored refresh token",
			refreshToken: neverStored,
			expectedCode: http.StatusUnauthorized,
			expectedErr:  "refresh token not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := st.refresh(access, tt.refreshToken)
			assert.Equal(t, tt.expectedCode, code)
			assert.Contains(t, body["error"], tt.expectedErr)
		})
	}
}

func TestRegister_FailCases(t *testing.T) {
	st := newSuite(t)

	tests := []struct {
		name        string
		username    string
		password    string
		expectedErr string
	}{
		{
			name:        "Register with Empty Password",
			username:    gofakeit.Username(),
			password:    "",
			expectedErr: "password: cannot be blank",
		},
		{
			name:        "Register with Empty Username",
			username:    "",
			password:    randomPassword(),
			expectedErr: "username: cannot be blank",
		},
		{
			name:        "Register with Both Empty",
			username:    "",
			password:    "",
			expectedErr: "username: cannot be blank",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := st.register(tt.username, tt.password)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Contains(t, body["error"], tt.expectedErr)
		})
	}
}

func TestLogin_FailCases(t *testing.T) {
	st := newSuite(t)

	username := gofakeit.Username()
	password := randomPassword()
	code, _ := st.register(username, password)
	require.Equal(t, http.StatusOK, code)

	tests := []struct {
		name        string
		username    string
		password    string
		expectedErr string
	}{
		{
			name:        "Login with Empty Password",
			username:    username,
			password:    "",
			expectedErr: "password: cannot be blank",
		},
		{
			name:        "Login with Empty Username",
			username:    "",
			password:    password,
			expectedErr: "username: cannot be blank",
		},
		{
			name:        "Login with Non-Matching Password",
			username:    username,
			password:    randomPassword(),
			expectedErr: "invalid username or password",
		},
		{
			name:        "Login with Unknown Username",
			username:    "unknown-" + username,
			password:    password,
			expectedErr: "invalid username or password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := st.login(tt.username, tt.password)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Contains(t, body["error"], tt.expectedErr)
		})
	}
}

func TestRefresh_MissingField(t *testing.T) {
	st := newSuite(t)

	access, err := st.Signer.IssueAccessToken(gofakeit.Username())
	require.NoError(t, err)

	code, body := st.do(http.MethodPost, "/api/auth/refresh", access, map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid token", body["error"])
}

func TestRegister_PasswordLengthLimit(t *testing.T) {
	st := newSuite(t)

	code, body := st.register("bob", strings.Repeat("a", 73))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "password must be at most 72 bytes", body["error"])

	code, body = st.register("bob", strings.Repeat("a", 72))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "registration completed", body["message"])

	code, body = st.login("bob", strings.Repeat("a", 73))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid username or password", body["error"])
}

func TestMalformedBody(t *testing.T) {
	st := newSuite(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := st.App.Handler().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
