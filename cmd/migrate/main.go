package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"kanzey-ticketing/internal/config"
	"kanzey-ticketing/internal/database"
	"kanzey-ticketing/internal/database/migrations"
	"kanzey-ticketing/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	dir := flag.String("dir", cfg.Database.MigrationsDir, "migrations directory")
	steps := flag.Int("steps", 0, "number of migrations to roll back with down (0 = all)")
	version := flag.Int("version", -1, "target version for goto and force")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [flags] up|down|goto|force|version\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	log, err := logger.New(logger.Options{Dir: cfg.Log.Dir, Prefix: "migrate", Level: logger.ParseLevel(cfg.Log.Level)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	sqldb, err := database.OpenSQL(context.Background(), cfg.Database)
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	runner := migrations.NewRunner(sqldb, migrations.MigrateOptions{MigrationsDir: *dir}, log)
	defer runner.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = runner.MigrateUp()
	case "down":
		err = runner.MigrateDown(*steps)
	case "goto", "force":
		if *version < 0 {
			log.Fatal("MIGRATE", cmd+" needs -version")
		}
		if cmd == "goto" {
			err = runner.MigrateTo(uint(*version))
		} else {
			err = runner.Force(*version)
		}
	case "version":
		var v uint
		var dirty bool
		if v, dirty, err = runner.Version(); err == nil {
			fmt.Printf("version %d dirty=%t\n", v, dirty)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("MIGRATE", err.Error())
		runner.Close()
		os.Exit(1)
	}
}
