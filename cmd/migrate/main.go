package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/infrastructure/migration"
	"github.com/erp/ordersync/migrations"
)

const usage = `Order sync schema migrations

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                 apply every pending migration
  down               roll back every migration
  steps <n>          apply n migrations, or roll back -n
  goto <version>     migrate up or down to version
  version            print the current version
  force <version>    mark version as applied without running it (dirty recovery)
  list               list the available migrations
  create <name> [description]
                     write an empty up/down pair into -dir

Flags:
`

// errUsage marks a bad command line; main prints the usage for it
var errUsage = errors.New("usage")

type options struct {
	dir string
}

// command runs against an open migrator
type command struct {
	minArgs int
	run     func(m *migration.Migrator, args []string, log *zap.Logger) error
}

var commands = map[string]command{
	"up": {run: func(m *migration.Migrator, _ []string, _ *zap.Logger) error {
		return m.Up()
	}},
	"down": {run: func(m *migration.Migrator, _ []string, _ *zap.Logger) error {
		return m.Down()
	}},
	"steps": {minArgs: 1, run: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n == 0 {
			return fmt.Errorf("%w: steps needs a non-zero integer, got %q", errUsage, args[0])
		}
		return m.Steps(n)
	}},
	"goto": {minArgs: 1, run: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		v, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid version %q", errUsage, args[0])
		}
		return m.GoTo(uint(v))
	}},
	"force": {minArgs: 1, run: func(m *migration.Migrator, args []string, log *zap.Logger) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: invalid version %q", errUsage, args[0])
		}
		log.Warn("Forcing schema version", zap.Int("version", v))
		return m.Force(v)
	}},
	"version": {run: func(m *migration.Migrator, _ []string, log *zap.Logger) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if v == 0 {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	}},
}

func main() {
	var (
		opts     options
		logLevel string
	)
	flag.StringVar(&opts.dir, "dir", "", "Read migrations from this directory instead of the ones built into the binary")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	err = run(opts, flag.Args(), log)
	_ = logger.Sync(log)
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	case err != nil:
		log.Error("Migration failed", zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
}

func run(opts options, args []string, log *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: command required", errUsage)
	}
	name, args := args[0], args[1:]

	switch name {
	case "create":
		return create(opts, args, log)
	case "list":
		return list(opts, log)
	}

	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
	if len(args) < cmd.minArgs {
		return fmt.Errorf("%w: %s needs %d argument(s)", errUsage, name, cmd.minArgs)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	var m *migration.Migrator
	if opts.dir != "" {
		m, err = migration.New(db, opts.dir, log)
	} else {
		m, err = migration.NewFromFS(db, migrations.FS, log)
	}
	if err != nil {
		return err
	}
	defer m.Close()

	log.Info("Running migration command", zap.String("command", name), zap.String("source", source(opts)))
	return cmd.run(m, args, log)
}

func create(opts options, args []string, log *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: create needs a name", errUsage)
	}
	dir := opts.dir
	if dir == "" {
		dir = "migrations"
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}

	mf, err := migration.CreateMigration(dir, args[0], description, time.Now())
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up", mf.UpPath),
		zap.String("down", mf.DownPath),
	)
	return nil
}

func list(opts options, log *zap.Logger) error {
	var fsys fs.FS = migrations.FS
	if opts.dir != "" {
		fsys = os.DirFS(opts.dir)
	}
	found, err := migration.ListMigrations(fsys)
	if err != nil {
		return err
	}

	log.Info("Available migrations", zap.Int("count", len(found)), zap.String("source", source(opts)))
	for _, m := range found {
		if m.HasDown {
			fmt.Printf("  %s\n", m)
		} else {
			fmt.Printf("  %s (no down)\n", m)
		}
	}
	return nil
}

func source(opts options) string {
	if opts.dir != "" {
		return opts.dir
	}
	return "embedded"
}
