package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// PostsCreated counts successfully created posts.
	PostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yatube_posts_created_total",
		Help: "Total number of posts created",
	})

	// PostsEdited counts edits by outcome (saved, forbidden, invalid).
	PostsEdited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yatube_post_edits_total",
		Help: "Total number of post edit attempts by outcome",
	}, []string{"outcome"})

	// CommentsSubmitted counts comment submissions by outcome (created, dropped).
	CommentsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yatube_comments_submitted_total",
		Help: "Total number of comment submissions by outcome",
	}, []string{"outcome"})

	// FollowChanges counts follow and unfollow operations that changed state.
	FollowChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yatube_follow_changes_total",
		Help: "Total number of follow edges created or removed",
	}, []string{"action"})

	// FeedCacheLookups counts cached feed lookups by result (hit, miss, bypass).
	FeedCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yatube_feed_cache_lookups_total",
		Help: "Cached feed lookups by result",
	}, []string{"feed", "result"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "yatube_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

const queryStartKey = "yatube:query_start"

// RegisterGormMetrics attaches callbacks that feed DatabaseQueryLatency.
func RegisterGormMetrics(db *gorm.DB) error {
	cb := db.Callback()
	type hook struct {
		op       string
		register func(before, after func(*gorm.DB)) error
	}
	hooks := []hook{
		{"create", func(b, a func(*gorm.DB)) error {
			if err := cb.Create().Before("gorm:create").Register("metrics:before_create", b); err != nil {
				return err
			}
			return cb.Create().After("gorm:create").Register("metrics:after_create", a)
		}},
		{"query", func(b, a func(*gorm.DB)) error {
			if err := cb.Query().Before("gorm:query").Register("metrics:before_query", b); err != nil {
				return err
			}
			return cb.Query().After("gorm:query").Register("metrics:after_query", a)
		}},
		{"update", func(b, a func(*gorm.DB)) error {
			if err := cb.Update().Before("gorm:update").Register("metrics:before_update", b); err != nil {
				return err
			}
			return cb.Update().After("gorm:update").Register("metrics:after_update", a)
		}},
		{"delete", func(b, a func(*gorm.DB)) error {
			if err := cb.Delete().Before("gorm:delete").Register("metrics:before_delete", b); err != nil {
				return err
			}
			return cb.Delete().After("gorm:delete").Register("metrics:after_delete", a)
		}},
		{"raw", func(b, a func(*gorm.DB)) error {
			if err := cb.Raw().Before("gorm:raw").Register("metrics:before_raw", b); err != nil {
				return err
			}
			return cb.Raw().After("gorm:raw").Register("metrics:after_raw", a)
		}},
	}

	for _, h := range hooks {
		op := h.op
		if err := h.register(startQueryTimer, func(tx *gorm.DB) { observeQuery(tx, op) }); err != nil {
			return err
		}
	}
	return nil
}

func startQueryTimer(tx *gorm.DB) {
	tx.InstanceSet(queryStartKey, time.Now())
}

func observeQuery(tx *gorm.DB, op string) {
	v, ok := tx.InstanceGet(queryStartKey)
	if !ok {
		return
	}
	start, ok := v.(time.Time)
	if !ok {
		return
	}
	table := tx.Statement.Table
	if table == "" {
		table = "unknown"
	}
	DatabaseQueryLatency.WithLabelValues(op, table).Observe(time.Since(start).Seconds())
}
