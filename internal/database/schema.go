package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"yatube/internal/config"
	"yatube/internal/middleware"

	"gorm.io/gorm"
)

// Schema modes accepted in DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaStatus describes what ApplySchema would do for a configuration.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
}

// schemaPlan is the resolved schema policy for one configuration.
type schemaPlan struct {
	mode string
	sql  bool
	auto bool
	// destructive is set when AutoMigrate was explicitly allowed in a
	// production-like environment.
	destructive bool
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// planSchema resolves DB_SCHEMA_MODE against the driver and environment.
// SQLite only supports AutoMigrate; production-like environments only get
// AutoMigrate when DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE is set.
func planSchema(cfg *config.Config) (schemaPlan, error) {
	plan := schemaPlan{mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))}
	if plan.mode == "" {
		plan.mode = SchemaModeHybrid
	}
	prodLike := isProdLikeEnv(cfg.Env)

	switch plan.mode {
	case SchemaModeHybrid:
		plan.sql, plan.auto = true, !prodLike
	case SchemaModeSQL:
		plan.sql = true
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return schemaPlan{}, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.auto = true
		plan.destructive = prodLike
	default:
		return schemaPlan{}, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.mode)
	}

	if cfg.DBDriver == "sqlite" {
		if plan.mode == SchemaModeSQL {
			return schemaPlan{}, fmt.Errorf("DB_SCHEMA_MODE=sql requires DB_DRIVER=postgres")
		}
		plan.sql, plan.auto = false, true
	}
	return plan, nil
}

// schemaPolicy reports whether SQL migrations and AutoMigrate will run.
func schemaPolicy(cfg *config.Config) (runSQL bool, runAuto bool, err error) {
	plan, err := planSchema(cfg)
	return plan.sql, plan.auto, err
}

// ApplySchema brings db up to date according to DB_SCHEMA_MODE. SQL
// migrations run first so AutoMigrate only ever adds to a versioned schema.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if plan.sql {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if !plan.auto {
		return nil
	}

	if plan.destructive {
		middleware.Logger.Warn("AutoMigrate enabled in a production-like environment", slog.String("env", cfg.Env))
	}
	middleware.Logger.Info("Running GORM AutoMigrate",
		slog.String("mode", plan.mode),
		slog.Int("models", len(PersistentModels())),
	)
	if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// GetSchemaStatus reports the schema policy and, when SQL migrations are in
// play, which of them are still pending.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               plan.mode,
		Environment:        cfg.Env,
		WillRunSQL:         plan.sql,
		WillRunAutoMigrate: plan.auto,
	}
	if !plan.sql {
		return status, nil
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied
	status.PendingMigrations = pendingMigrations(applied, GetMigrations())
	return status, nil
}

// DropAll removes the blog tables and the migration log, dependents first.
// Production-like environments are refused.
func DropAll(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	if isProdLikeEnv(cfg.Env) {
		return fmt.Errorf("refusing to drop tables in %q", cfg.Env)
	}

	models := PersistentModels()
	tables := make([]any, 0, len(models)+1)
	for i := len(models) - 1; i >= 0; i-- {
		tables = append(tables, models[i])
	}
	tables = append(tables, &MigrationLog{})

	if err := db.WithContext(ctx).Migrator().DropTable(tables...); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	middleware.Logger.Warn("blog schema dropped", slog.String("env", cfg.Env), slog.Int("tables", len(tables)))
	return nil
}
