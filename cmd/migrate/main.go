// Command migrate manages the merchant radar schema (users, inscriptions,
// transactions) with goose.
//
// Usage:
//
//	migrate [-auth] up          apply all pending migrations
//	migrate [-auth] down        roll back the last migration
//	migrate [-auth] status      show migration status
//	migrate [-auth] version     show current schema version
//	migrate [-auth] redo        roll back and re-apply the last migration
//
// DATABASE_URL selects the target. With -auth the command runs against
// AUTH_DATABASE_URL instead, for deployments that keep credentials in a
// separate database.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

const migrationsDir = "migrations"

func main() {
	useAuthDB := flag.Bool("auth", false, "run against AUTH_DATABASE_URL instead of DATABASE_URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	if err := run(*useAuthDB, flag.Arg(0), flag.Args()[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(useAuthDB bool, command string, args []string) error {
	envVar := "DATABASE_URL"
	if useAuthDB {
		envVar = "AUTH_DATABASE_URL"
	}
	dsn := os.Getenv(envVar)
	if dsn == "" {
		return fmt.Errorf("%s environment variable is required", envVar)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	if err := goose.RunContext(ctx, command, db, migrationsDir, args...); err != nil {
		return fmt.Errorf("migration %s: %w", command, err)
	}
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate [-auth] <command> [args]")
	fmt.Fprintln(os.Stderr, "Commands: up, down, status, version, redo, up-to <version>, down-to <version>")
	flag.PrintDefaults()
}
