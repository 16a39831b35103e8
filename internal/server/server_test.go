package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"yatube/internal/config"
	"yatube/internal/database"
	"yatube/internal/models"
	"yatube/internal/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

type testEnv struct {
	t   *testing.T
	cfg *config.Config
	db  *gorm.DB
	srv *Server
	app *fiber.App
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Env:                  "test",
		Port:                 "0",
		JWTSecret:            testSecret,
		DBDriver:             "sqlite",
		DBSQLitePath:         "file::memory:",
		DBSchemaMode:         "auto",
		DBMaxOpenConns:       1,
		AllowedOrigins:       "http://localhost:8000",
		MediaRoot:            t.TempDir(),
		ImageMaxUploadSizeMB: 1,
		PageSize:             10,
		LoginURL:             "/auth/login/",
		TokenTTLHours:        1,
	}
}

// newTestEnv builds the full app over a private in-memory database.
func newTestEnv(t *testing.T, rdb *redis.Client) *testEnv {
	t.Helper()
	cfg := testConfig(t)

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)
	return &testEnv{t: t, cfg: cfg, db: db, srv: srv, app: srv.NewApp()}
}

func (e *testEnv) user(username string) *models.User {
	e.t.Helper()
	u := &models.User{Username: username, Password: "unusable"}
	require.NoError(e.t, repository.NewUserRepository(e.db).Create(context.Background(), u))
	return u
}

func (e *testEnv) group(slug string) *models.Group {
	e.t.Helper()
	g := &models.Group{Title: "Группа " + slug, Slug: slug, Description: "Описание"}
	require.NoError(e.t, repository.NewGroupRepository(e.db).Create(context.Background(), g))
	return g
}

// posts creates n posts, the last one being the newest.
func (e *testEnv) posts(author *models.User, group *models.Group, n int) []*models.Post {
	e.t.Helper()
	repo := repository.NewPostRepository(e.db)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*models.Post, 0, n)
	for i := 0; i < n; i++ {
		p := &models.Post{
			Text:     fmt.Sprintf("Тестовый пост %d", i),
			AuthorID: author.ID,
			PubDate:  base.Add(time.Duration(i) * time.Minute),
		}
		if group != nil {
			p.GroupID = &group.ID
		}
		require.NoError(e.t, repo.Create(context.Background(), p))
		out = append(out, p)
	}
	return out
}

func (e *testEnv) token(u *models.User) string {
	e.t.Helper()
	tok, _, err := e.srv.auth.IssueToken(u.ID, u.Username)
	require.NoError(e.t, err)
	return tok
}

func (e *testEnv) do(req *http.Request) *http.Response {
	e.t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) get(path, token string) *http.Response {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return e.do(req)
}

func (e *testEnv) postForm(path, token string, values url.Values) *http.Response {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return e.do(req)
}

func (e *testEnv) countRows(model any) int64 {
	e.t.Helper()
	var n int64
	require.NoError(e.t, e.db.Model(model).Count(&n).Error)
	return n
}

func decodeBody(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, dest), string(body))
}

func requireRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	require.Equal(t, location, resp.Header.Get(fiber.HeaderLocation))
}
