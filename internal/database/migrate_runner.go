package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"yatube/internal/middleware"

	"gorm.io/gorm"
)

// migrationLockKey serializes migrators started by several replicas at once.
const migrationLockKey = 7_411_202

// MigrationLog is one applied migration.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the database table name for MigrationLog.
func (MigrationLog) TableName() string {
	return "migration_logs"
}

// MigrationStore reads and writes the migration log.
type MigrationStore interface {
	GetAppliedMigrations(ctx context.Context) ([]int, error)
	ApplyMigration(ctx context.Context, version int, name, sql string) error
	RemoveMigration(ctx context.Context, version int) error
}

type migrationStore struct {
	db *gorm.DB
}

// NewMigrationStore returns a store bound to db, which may be a transaction.
func NewMigrationStore(db *gorm.DB) MigrationStore {
	return &migrationStore{db: db}
}

// GetAppliedMigrations lists applied versions in ascending order. A database
// that has never been migrated reports none.
func (s *migrationStore) GetAppliedMigrations(ctx context.Context) ([]int, error) {
	versions := []int{}
	err := s.db.WithContext(ctx).Model(&MigrationLog{}).Order("version ASC").Pluck("version", &versions).Error
	switch {
	case err == nil:
		return versions, nil
	case errors.Is(err, gorm.ErrRecordNotFound), isMissingTableError(err):
		return []int{}, nil
	default:
		return nil, fmt.Errorf("read migration log: %w", err)
	}
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such table") ||
		(strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist"))
}

func (s *migrationStore) ApplyMigration(ctx context.Context, version int, name, sql string) error {
	db := s.db.WithContext(ctx)
	if err := db.Exec(sql).Error; err != nil {
		return fmt.Errorf("migration %06d_%s: %w", version, name, err)
	}
	if err := db.Create(&MigrationLog{Version: version, Name: name}).Error; err != nil {
		return fmt.Errorf("record migration %06d: %w", version, err)
	}
	return nil
}

func (s *migrationStore) RemoveMigration(ctx context.Context, version int) error {
	if err := s.db.WithContext(ctx).Where("version = ?", version).Delete(&MigrationLog{}).Error; err != nil {
		return fmt.Errorf("forget migration %06d: %w", version, err)
	}
	return nil
}

const ensureMigrationLogTableSQL = `
CREATE TABLE IF NOT EXISTS migration_logs (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// RunMigrations applies every pending embedded migration in version order,
// each in its own transaction together with its log row. A session advisory
// lock keeps concurrent runners from applying the same script twice.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if name := db.Dialector.Name(); name != "postgres" {
		return fmt.Errorf("sql migrations target postgres, not %s", name)
	}

	return withMigrationLock(ctx, db, func(conn *gorm.DB) error {
		if err := conn.Exec(ensureMigrationLogTableSQL).Error; err != nil {
			return fmt.Errorf("ensure migration log: %w", err)
		}

		applied, err := NewMigrationStore(conn).GetAppliedMigrations(ctx)
		if err != nil {
			return err
		}
		if err := validateAppliedVersions(applied, migrations); err != nil {
			return err
		}

		pending := pendingMigrations(applied, migrations)
		if len(pending) == 0 {
			middleware.Logger.Debug("schema already current", slog.Int("applied", len(applied)))
			return nil
		}
		for _, m := range pending {
			start := time.Now()
			err := conn.Transaction(func(tx *gorm.DB) error {
				return NewMigrationStore(tx).ApplyMigration(ctx, m.Version, m.Name, m.UpScript)
			})
			if err != nil {
				return err
			}
			middleware.Logger.Info("migration applied",
				slog.String("migration", m.String()),
				slog.Duration("took", time.Since(start)),
			)
		}
		return nil
	})
}

// withMigrationLock runs fn on a single pooled connection holding the
// migration advisory lock.
func withMigrationLock(ctx context.Context, db *gorm.DB, fn func(conn *gorm.DB) error) error {
	return db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		if err := conn.Exec("SELECT pg_advisory_lock(?)", migrationLockKey).Error; err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		defer func() {
			if err := conn.Exec("SELECT pg_advisory_unlock(?)", migrationLockKey).Error; err != nil {
				middleware.Logger.Warn("release migration lock", slog.String("error", err.Error()))
			}
		}()
		return fn(conn)
	})
}

// pendingMigrations returns the registered migrations missing from applied,
// keeping registration order.
func pendingMigrations(applied []int, registered []Migration) []Migration {
	done := make(map[int]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}
	var out []Migration
	for _, m := range registered {
		if _, ok := done[m.Version]; !ok {
			out = append(out, m)
		}
	}
	return out
}

// validateAppliedVersions fails when the log mentions versions this binary
// does not ship, which means the database was migrated by a newer build or a
// branch that was later rewritten.
func validateAppliedVersions(applied []int, registered []Migration) error {
	var unknown []int
	known := make(map[int]struct{}, len(registered))
	for _, m := range registered {
		known[m.Version] = struct{}{}
	}
	for _, version := range applied {
		if _, ok := known[version]; !ok {
			unknown = append(unknown, version)
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	sort.Ints(unknown)
	labels := make([]string, len(unknown))
	for i, version := range unknown {
		labels[i] = fmt.Sprintf("%06d", version)
	}
	return fmt.Errorf("migration_logs lists versions unknown to this build: %s (run cmd/migrate reset on development databases)",
		strings.Join(labels, ", "))
}

// RollbackMigration reverts version, which must be the most recently applied
// migration so the log never has gaps.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(applied, version) {
		return fmt.Errorf("migration %d has not been applied", version)
	}
	if latest := applied[len(applied)-1]; latest != version {
		return fmt.Errorf("migration %d is not the latest applied (%06d); roll that back first", version, latest)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("rollback %s: %w", m.String(), err)
		}
		return NewMigrationStore(tx).RemoveMigration(ctx, version)
	})
	if err != nil {
		return err
	}
	middleware.Logger.Info("migration rolled back", slog.String("migration", m.String()))
	return nil
}
