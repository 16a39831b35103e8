// Command migrate manages the blog schema and the built-in groups.
//
//	migrate up              apply pending SQL migrations
//	migrate auto            run GORM AutoMigrate over the blog models
//	migrate status          show the schema policy and pending migrations
//	migrate down <version>  revert the latest applied migration
//	migrate reset           drop every blog table and rebuild the schema
//	migrate groups [file]   upsert group fixtures by slug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"yatube/internal/config"
	"yatube/internal/database"
	"yatube/internal/seed"

	"gorm.io/gorm"
)

type invocation struct {
	ctx  context.Context
	cfg  *config.Config
	db   *gorm.DB
	args []string
}

type command struct {
	usage string
	run   func(rt invocation) error
}

var commands = map[string]command{
	"up":     {"up", migrateUp},
	"auto":   {"auto", autoMigrate},
	"status": {"status", showStatus},
	"down":   {"down <version>", rollback},
	"reset":  {"reset", reset},
	"groups": {"groups [fixtures.yml]", loadGroups},
}

func usage() error {
	names := make([]string, 0, len(commands))
	for _, c := range commands {
		names = append(names, c.usage)
	}
	sort.Strings(names)
	return fmt.Errorf("usage: migrate <command>\n  %s", strings.Join(names, "\n  "))
}

func main() {
	flag.Parse()
	if err := run(flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return usage()
	}
	cmd, ok := commands[strings.ToLower(args[0])]
	if !ok {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = database.Close() }()

	return cmd.run(invocation{ctx: context.Background(), cfg: cfg, db: db, args: args[1:]})
}

func migrateUp(rt invocation) error {
	if err := database.RunMigrations(rt.ctx, rt.db); err != nil {
		return err
	}
	log.Println("schema is up to date")
	return nil
}

func autoMigrate(rt invocation) error {
	rt.cfg.DBSchemaMode = database.SchemaModeAuto
	if err := database.ApplySchema(rt.ctx, rt.db, rt.cfg); err != nil {
		return err
	}
	log.Printf("auto-migrated %d models", len(database.PersistentModels()))
	return nil
}

func showStatus(rt invocation) error {
	status, err := database.GetSchemaStatus(rt.ctx, rt.db, rt.cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "mode\t%s\n", status.Mode)
	fmt.Fprintf(w, "environment\t%s\n", status.Environment)
	fmt.Fprintf(w, "sql migrations\t%t\n", status.WillRunSQL)
	fmt.Fprintf(w, "auto-migrate\t%t\n", status.WillRunAutoMigrate)
	fmt.Fprintf(w, "applied\t%d\n", len(status.AppliedVersions))
	for _, m := range status.PendingMigrations {
		fmt.Fprintf(w, "pending\t%s\n", m.String())
	}
	return w.Flush()
}

func rollback(rt invocation) error {
	if len(rt.args) != 1 {
		return errors.New("usage: migrate down <version>")
	}
	version, err := strconv.Atoi(rt.args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q", rt.args[0])
	}
	if err := database.RollbackMigration(rt.ctx, rt.db, version); err != nil {
		return err
	}
	log.Printf("rolled back %06d", version)
	return nil
}

func reset(rt invocation) error {
	if err := database.DropAll(rt.ctx, rt.db, rt.cfg); err != nil {
		return err
	}
	if err := database.ApplySchema(rt.ctx, rt.db, rt.cfg); err != nil {
		return fmt.Errorf("rebuild schema: %w", err)
	}
	log.Println("schema rebuilt")
	return nil
}

func loadGroups(rt invocation) error {
	var path string
	if len(rt.args) > 0 {
		path = rt.args[0]
	}
	fixtures, err := seed.LoadGroups(path)
	if err != nil {
		return err
	}
	groups, err := seed.Groups(rt.db, fixtures)
	if err != nil {
		return err
	}
	for _, g := range groups {
		log.Printf("group %-12s %s", g.Slug, g.Title)
	}
	return nil
}
