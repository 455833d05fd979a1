package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/admin-session/adminapi"
	"github.com/jrsteele09/admin-session/auth"
	"github.com/jrsteele09/admin-session/internal/config"
	"github.com/jrsteele09/admin-session/server"
	"github.com/jrsteele09/admin-session/sessionapi"
	"github.com/jrsteele09/admin-session/token"
	"github.com/jrsteele09/admin-session/token/refresh"
	refreshrepofake "github.com/jrsteele09/admin-session/token/refresh/repofake"
	"github.com/jrsteele09/admin-session/users"
	fakeuserrepo "github.com/jrsteele09/admin-session/users/repofake"
)

const (
	adminEmail    = "admin@termustat.ir"
	adminPassword = "Admin12345"
)

type testFixture struct {
	srv      *httptest.Server
	client   *http.Client
	userRepo users.UserRepo
	registry *prometheus.Registry
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("ADMIN_EMAIL", adminEmail)
	t.Setenv("ADMIN_PASSWORD", adminPassword)
	t.Setenv("ALLOWED_ORIGINS", "http://panel.local")

	f := &testFixture{
		userRepo: fakeuserrepo.NewFakeUserRepo(),
		registry: prometheus.NewRegistry(),
	}
	cfg := config.New()
	accessTokens := token.New(token.NewHMACSigner("test-secret"), token.WithAccessTokenExpiry(time.Minute))
	refreshTokens := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), refresh.WithExpiry(time.Hour))
	authService, err := auth.NewService(f.userRepo, accessTokens, refreshTokens)
	require.NoError(t, err)

	s, err := server.New(cfg, authService, f.userRepo,
		server.WithLogger(zerolog.Nop()),
		server.WithRegistry(f.registry),
	)
	require.NoError(t, err)

	f.srv = httptest.NewServer(s)
	t.Cleanup(f.srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	f.client = &http.Client{Jar: jar}
	return f
}

func (f *testFixture) do(t *testing.T, method, path, bearer string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+server.APIPrefix+path, reader)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *testFixture) login(t *testing.T, email, password string) string {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/auth/login", "", sessionapi.Credentials{Email: email, Password: password})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tok sessionapi.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tok))
	require.NotEmpty(t, tok.AccessToken)
	require.Equal(t, 60, tok.ExpiresIn)
	return tok.AccessToken
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestNew_SeedsAdminAccount(t *testing.T) {
	f := setupTestFixture(t)

	admin, err := f.userRepo.GetByEmail(adminEmail)
	require.NoError(t, err)
	require.True(t, admin.IsAdmin)
	require.True(t, admin.Verified)
	require.True(t, users.CheckPasswordHash(adminPassword, admin.PasswordHash))
}

func TestLogin_SetsHttpOnlyRefreshCookie(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.do(t, http.MethodPost, "/auth/login", "", sessionapi.Credentials{Email: adminEmail, Password: adminPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "refresh_token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, "/", cookie.Path)
	require.NotEmpty(t, cookie.Value)

	claims, err := token.Decode(decode[sessionapi.TokenResponse](t, resp).AccessToken)
	require.NoError(t, err)
	require.True(t, claims.IsAdmin(config.DefaultAdminScope))
}

func TestLogin_Failures(t *testing.T) {
	f := setupTestFixture(t)

	hash, err := users.HashPassword("Student123")
	require.NoError(t, err)
	require.NoError(t, f.userRepo.Upsert(&users.User{Email: "new@termustat.ir", PasswordHash: hash}))

	tests := []struct {
		name   string
		creds  sessionapi.Credentials
		status int
		code   string
	}{
		{name: "missing fields", creds: sessionapi.Credentials{Email: adminEmail}, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "wrong password", creds: sessionapi.Credentials{Email: adminEmail, Password: "nope"}, status: http.StatusUnauthorized, code: "invalid_credentials"},
		{name: "unknown user", creds: sessionapi.Credentials{Email: "ghost@termustat.ir", Password: "x"}, status: http.StatusUnauthorized, code: "invalid_credentials"},
		{name: "unverified", creds: sessionapi.Credentials{Email: "new@termustat.ir", Password: "Student123"}, status: http.StatusForbidden, code: "email_not_verified"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/auth/login", "", tt.creds)
			require.Equal(t, tt.status, resp.StatusCode)
			body := decode[map[string]string](t, resp)
			require.Equal(t, tt.code, body["error"])
		})
	}
}

func TestRefresh_RotatesCookie(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t, adminEmail, adminPassword)

	cookieValue := func() string {
		u := f.srv.URL + "/"
		req, _ := http.NewRequest(http.MethodGet, u, nil)
		for _, c := range f.client.Jar.Cookies(req.URL) {
			if c.Name == "refresh_token" {
				return c.Value
			}
		}
		return ""
	}
	first := cookieValue()
	require.NotEmpty(t, first)

	resp := f.do(t, http.MethodPost, "/auth/refresh", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, decode[sessionapi.TokenResponse](t, resp).AccessToken)

	second := cookieValue()
	require.NotEmpty(t, second)
	require.NotEqual(t, first, second)

	// the rotated-out token is dead
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+server.RouteAuthRefresh, nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: first})
	stale, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stale.Body.Close()
	require.Equal(t, http.StatusUnauthorized, stale.StatusCode)
}

func TestRefresh_WithoutCookie(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.do(t, http.MethodPost, "/auth/refresh", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "invalid_grant", decode[map[string]string](t, resp)["error"])
}

func TestLogout_RevokesRefreshToken(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t, adminEmail, adminPassword)

	resp := f.do(t, http.MethodPost, "/auth/logout", "", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/auth/refresh", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminRoutes_RequireAdminToken(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.do(t, http.MethodGet, "/admin/users", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/admin/users", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	hash, err := users.HashPassword("Student123")
	require.NoError(t, err)
	require.NoError(t, f.userRepo.Upsert(&users.User{Email: "student@termustat.ir", PasswordHash: hash, Verified: true}))
	studentToken := f.login(t, "student@termustat.ir", "Student123")

	resp = f.do(t, http.MethodGet, "/admin/universities", studentToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "insufficient_scope", decode[map[string]string](t, resp)["error"])
}

func TestAdminRoutes_AdminScopeMustComeFirst(t *testing.T) {
	f := setupTestFixture(t)
	signer := token.NewHMACSigner("test-secret")
	sign := func(scopes ...string) string {
		raw, err := signer.Sign(&token.Claims{
			UserID: "u-1",
			Scopes: scopes,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    token.Issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		})
		require.NoError(t, err)
		return raw
	}

	resp := f.do(t, http.MethodGet, "/admin/semesters", sign("student", config.DefaultAdminScope), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/admin/semesters", sign(config.DefaultAdminScope, "student"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminUsers_CRUD(t *testing.T) {
	f := setupTestFixture(t)
	access := f.login(t, adminEmail, adminPassword)

	resp := f.do(t, http.MethodPost, "/admin/users", access, adminapi.NewUser{Email: "weak@termustat.ir", Password: "short"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, decode[map[string]string](t, resp)["error_description"], "invalid input")

	resp = f.do(t, http.MethodPost, "/admin/users", access, adminapi.NewUser{Email: "no-at-sign", Password: "Student123"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, decode[map[string]string](t, resp)["error_description"], "invalid input")

	resp = f.do(t, http.MethodPost, "/admin/users", access, adminapi.NewUser{Email: "s@termustat.ir", Password: "Student123", Verified: true})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[adminapi.User](t, resp)
	require.NotEmpty(t, created.ID)

	resp = f.do(t, http.MethodPost, "/admin/users", access, adminapi.NewUser{Email: "s@termustat.ir", Password: "Student123"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	page := decode[adminapi.Page[adminapi.User]](t, f.do(t, http.MethodGet, "/admin/users?page=1", access, nil))
	require.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)

	blocked := true
	resp = f.do(t, http.MethodPut, "/admin/users/"+created.ID, access, adminapi.UserPatch{Blocked: &blocked})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[adminapi.User](t, resp)
	require.True(t, updated.Blocked)
	require.True(t, updated.Verified)

	// blocked users cannot sign in
	resp = f.do(t, http.MethodPost, "/auth/login", "", sessionapi.Credentials{Email: "s@termustat.ir", Password: "Student123"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	admin, err := f.userRepo.GetByEmail(adminEmail)
	require.NoError(t, err)
	resp = f.do(t, http.MethodDelete, "/admin/users/"+admin.ID, access, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/admin/users/"+created.ID, access, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodPut, "/admin/users/"+created.ID, access, adminapi.UserPatch{Blocked: &blocked})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCatalog_CRUD(t *testing.T) {
	f := setupTestFixture(t)
	access := f.login(t, adminEmail, adminPassword)

	resp := f.do(t, http.MethodPost, "/admin/universities", access, adminapi.University{NameFa: "شریف", NameEn: "Sharif", IsActive: true})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	univ := decode[adminapi.University](t, resp)
	require.NotEmpty(t, univ.ID)

	for _, code := range []string{"CE", "EE"} {
		resp = f.do(t, http.MethodPost, "/admin/faculties", access, adminapi.Faculty{UniversityID: univ.ID, ShortCode: code})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	resp = f.do(t, http.MethodPost, "/admin/faculties", access, adminapi.Faculty{UniversityID: "other", ShortCode: "ME"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	byUniv := decode[adminapi.Page[adminapi.Faculty]](t, f.do(t, http.MethodGet, "/admin/universities/"+univ.ID+"/faculties", access, nil))
	require.Equal(t, 2, byUniv.Total)
	require.Equal(t, "CE", byUniv.Items[0].ShortCode)

	resp = f.do(t, http.MethodGet, "/admin/universities/"+univ.ID+"/semesters", access, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	all := decode[adminapi.Page[adminapi.Faculty]](t, f.do(t, http.MethodGet, "/admin/faculties", access, nil))
	require.Equal(t, 3, all.Total)

	resp = f.do(t, http.MethodPut, "/admin/universities/"+univ.ID, access, map[string]any{"is_active": false, "id": "hijack"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	patched := decode[adminapi.University](t, resp)
	require.Equal(t, univ.ID, patched.ID)
	require.False(t, patched.IsActive)
	require.Equal(t, "Sharif", patched.NameEn)

	resp = f.do(t, http.MethodDelete, "/admin/universities/"+univ.ID, access, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = f.do(t, http.MethodDelete, "/admin/universities/"+univ.ID, access, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/admin/courses", access, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCors_Preflight(t *testing.T) {
	f := setupTestFixture(t)

	req, err := http.NewRequest(http.MethodOptions, f.srv.URL+server.RouteAuthLogin, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://panel.local")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "http://panel.local", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestMetrics_CountsAuthOutcomes(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t, adminEmail, adminPassword)
	f.do(t, http.MethodPost, "/auth/login", "", sessionapi.Credentials{Email: adminEmail, Password: "bad"})

	resp, err := http.Get(f.srv.URL + server.RouteMetrics)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	require.True(t, strings.Contains(text, `admin_session_server_auth_requests_total{endpoint="login",outcome="success"} 1`), text)
	require.True(t, strings.Contains(text, `admin_session_server_auth_requests_total{endpoint="login",outcome="bad_credentials"} 1`), text)
}
