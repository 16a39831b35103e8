package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"yatube/internal/cache"
	"yatube/internal/middleware"
	"yatube/internal/models"
	"yatube/internal/validation"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == middleware.TokenCookie {
			return c
		}
	}
	t.Fatalf("response has no %s cookie", middleware.TokenCookie)
	return nil
}

func withCookie(req *http.Request, cookie *http.Cookie) *http.Request {
	req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	return req
}

func signup(env *testEnv, username, password string) *http.Response {
	return env.postForm("/auth/signup/", "", url.Values{
		"username":   {username},
		"email":      {username + "@example.com"},
		"first_name": {"Лев"},
		"password":   {password},
	})
}

func TestSignup_CreatesUserAndSession(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := signup(env, "leo", "war and peace")
	requireRedirect(t, resp, "/")
	cookie := sessionCookie(t, resp)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	var user models.User
	require.NoError(t, env.db.Where("username = ?", "leo").First(&user).Error)
	assert.Equal(t, "leo@example.com", user.Email)
	assert.NotEqual(t, "war and peace", user.Password)

	// The cookie alone authenticates.
	createReq := withCookie(httptest.NewRequest(http.MethodGet, "/create/", nil), cookie)
	assert.Equal(t, fiber.StatusOK, env.do(createReq).StatusCode)
}

func TestSignup_Invalid(t *testing.T) {
	env := newTestEnv(t, nil)
	requireRedirect(t, signup(env, "leo", "war and peace"), "/")

	resp := signup(env, "leo", "anna karenina")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var body invalidFormBody
	decodeBody(t, resp, &body)
	assert.Contains(t, body.Fields, "username")
	assert.Equal(t, "leo", body.Form.Field("username").Value)
	assert.Empty(t, body.Form.Field("password").Value)

	resp = signup(env, "kim", "12345678")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	decodeBody(t, resp, &body)
	assert.Contains(t, body.Fields, "password")
	assert.Equal(t, int64(1), env.countRows(&models.User{}))
}

func TestLoginPage_EchoesNext(t *testing.T) {
	env := newTestEnv(t, nil)

	var body struct {
		Next string `json:"next"`
		Form struct {
			Fields []struct {
				Name string `json:"name"`
			} `json:"fields"`
		} `json:"form"`
	}
	decodeBody(t, env.get("/auth/login/?next=/create/", ""), &body)
	assert.Equal(t, "/create/", body.Next)
	require.Len(t, body.Form.Fields, 2)
	assert.Equal(t, "username", body.Form.Fields[0].Name)
}

func TestLogin_RedirectsToNext(t *testing.T) {
	env := newTestEnv(t, nil)
	requireRedirect(t, signup(env, "leo", "war and peace"), "/")

	tests := []struct {
		name     string
		path     string
		form     url.Values
		location string
	}{
		{"next in body", "/auth/login/", url.Values{"username": {"leo"}, "password": {"war and peace"}, "next": {"/create/"}}, "/create/"},
		{"next in query", "/auth/login/?next=/follow/", url.Values{"username": {"leo"}, "password": {"war and peace"}}, "/follow/"},
		{"default", "/auth/login/", url.Values{"username": {"leo"}, "password": {"war and peace"}}, "/"},
		{"external next", "/auth/login/", url.Values{"username": {"leo"}, "password": {"war and peace"}, "next": {"//evil.example/"}}, "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.postForm(tt.path, "", tt.form)
			requireRedirect(t, resp, tt.location)
			assert.NotEmpty(t, sessionCookie(t, resp).Value)
		})
	}
}

func TestLogin_JSONBody(t *testing.T) {
	env := newTestEnv(t, nil)
	requireRedirect(t, signup(env, "leo", "war and peace"), "/")

	req := httptest.NewRequest(http.MethodPost, "/auth/login/",
		strings.NewReader(`{"username":"leo","password":"war and peace","next":"/create/"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	requireRedirect(t, env.do(req), "/create/")
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t, nil)
	requireRedirect(t, signup(env, "leo", "war and peace"), "/")

	resp := env.postForm("/auth/login/", "", url.Values{"username": {"leo"}, "password": {"wrong"}})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body invalidFormBody
	decodeBody(t, resp, &body)
	assert.NotEmpty(t, body.Fields["__all__"])
	assert.Equal(t, "leo", body.Form.Field("username").Value)

	resp = env.postForm("/auth/login/", "", url.Values{})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	decodeBody(t, resp, &body)
	assert.Equal(t, validation.MsgRequired, body.Fields["username"])
}

func TestLogout_RevokesToken(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := cache.NewClient(mr.Addr())
	require.NoError(t, err)
	env := newTestEnv(t, rdb)

	user := env.user("leo")
	token := env.token(user)
	require.Equal(t, fiber.StatusOK, env.get("/create/", token).StatusCode)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout/", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp := env.do(req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	cleared := sessionCookie(t, resp)
	assert.Empty(t, cleared.Value)

	_, err = env.srv.auth.ParseToken(context.Background(), token)
	assert.ErrorIs(t, err, middleware.ErrTokenRevoked)
	assert.Len(t, mr.Keys(), 1)

	fresh, err := env.srv.auth.ParseToken(context.Background(), env.token(user))
	require.NoError(t, err)
	assert.Equal(t, user.ID, fresh.UserID)

	requireRedirect(t, env.get("/create/", token), "/auth/login/?next=/create/")
}

func TestLogout_RequiresLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.postForm("/auth/logout/", "", url.Values{})
	requireRedirect(t, resp, "/auth/login/?next=/auth/logout/")
}
