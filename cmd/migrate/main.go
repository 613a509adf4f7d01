// Command migrate applies or rolls back the schema in ./migrations.
//
//	migrate up
//	migrate down
//	migrate to 1
//	migrate version
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"ms-community/internal/config"
	"ms-community/internal/database"
	"ms-community/internal/database/migrations"
	"ms-community/internal/logger"
)

func main() {
	dir := flag.String("dir", "", "migrations directory (defaults to MIGRATIONS_DIR)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-dir path] up|down|to <version>|version\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.NewLogger(logger.Options{Dir: cfg.Log.Dir, FilePrefix: "migrate", MinLevel: logger.ParseLevel(cfg.Log.Level)})
	defer log.Close()

	bunDB, err := database.Open(context.Background(), cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	opts := migrations.OptionsFromConfig(cfg.Database)
	opts.AutoMigrate = true
	if *dir != "" {
		opts.MigrationsDir = *dir
	}
	runner := migrations.NewRunner(bunDB, opts, log)
	defer runner.Close()

	if err := run(runner, flag.Args()); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}

	version, dirty, err := runner.Version()
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	log.Info("MIGRATE", fmt.Sprintf("Schema at version %d (dirty=%t)", version, dirty))
}

func run(runner *migrations.Runner, args []string) error {
	switch args[0] {
	case "up":
		return runner.MigrateUp()
	case "down":
		return runner.MigrateDown()
	case "to":
		if len(args) < 2 {
			return fmt.Errorf("to needs a version")
		}
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		return runner.MigrateTo(uint(v))
	case "version":
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
