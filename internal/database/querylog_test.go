package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestQueryLogger(env string) (*queryLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return newQueryLogger(l, env), &buf
}

func stmt(sql string) func() (string, int64) {
	return func() (string, int64) { return sql, 1 }
}

func TestQueryLogger_Trace(t *testing.T) {
	ctx := context.Background()

	t.Run("quiet for fast statements", func(t *testing.T) {
		q, buf := newTestQueryLogger("production")
		q.Trace(ctx, time.Now(), stmt("SELECT 1"), nil)
		assert.Empty(t, buf.String())
	})

	t.Run("missing row is not an error", func(t *testing.T) {
		q, buf := newTestQueryLogger("production")
		q.Trace(ctx, time.Now(), stmt("SELECT * FROM posts"), gorm.ErrRecordNotFound)
		assert.Empty(t, buf.String())
	})

	t.Run("failure", func(t *testing.T) {
		q, buf := newTestQueryLogger("production")
		q.Trace(ctx, time.Now(), stmt("INSERT INTO follows"), errors.New("duplicate key"))
		out := buf.String()
		assert.Contains(t, out, `"level":"ERROR"`)
		assert.Contains(t, out, `"component":"gorm"`)
		assert.Contains(t, out, `"error":"duplicate key"`)
	})

	t.Run("slow statement", func(t *testing.T) {
		q, buf := newTestQueryLogger("production")
		q.Trace(ctx, time.Now().Add(-time.Second), stmt("SELECT * FROM posts"), nil)
		assert.Contains(t, buf.String(), `"msg":"slow query"`)
	})

	t.Run("development logs everything at debug", func(t *testing.T) {
		q, buf := newTestQueryLogger("development")
		q.Trace(ctx, time.Now(), stmt("SELECT 1"), nil)
		assert.Contains(t, buf.String(), `"level":"DEBUG"`)
	})

	t.Run("silent", func(t *testing.T) {
		q, buf := newTestQueryLogger("development")
		q.LogMode(logger.Silent).Trace(ctx, time.Now(), stmt("SELECT 1"), errors.New("boom"))
		assert.Empty(t, buf.String())
	})
}
