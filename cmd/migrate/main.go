package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"chat-relay/config"
	"chat-relay/pkg/database"

	"github.com/jackc/pgx/v5/pgxpool"
)

const usage = `
Chat Relay - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Apply all migrations
  down        Roll back all migrations
  status      Show database connection status and table sizes
  seed-dev    Seed development users
  truncate    Truncate all tables (DANGEROUS)

Flags:
  -users int   Number of development users to seed (default 5)

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go seed-dev -users 10
`

func main() {
	users := flag.Int("users", 5, "Number of development users to seed")
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	ctx := context.Background()
	cfg := config.LoadConfig()
	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer pool.Close()

	switch command {
	case "up":
		if err := database.ApplyMigrations(ctx, pool); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
	case "down":
		if err := database.RollbackMigrations(ctx, pool); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		log.Println("Rollback completed successfully")
	case "status":
		showStatus(ctx, pool)
	case "seed-dev":
		seedCfg := database.DefaultSeedConfig()
		seedCfg.TestUserCount = *users
		result, err := database.Seed(ctx, pool, seedCfg)
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		for _, u := range result.Users {
			log.Printf("   - %s (%s)", u.Email, u.ID)
		}
	case "truncate":
		if err := database.TruncateAllTables(ctx, pool); err != nil {
			log.Fatalf("Truncate failed: %v", err)
		}
		log.Println("All tables truncated")
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func showStatus(ctx context.Context, pool *pgxpool.Pool) {
	if err := database.HealthCheck(ctx, pool); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connection: OK")

	for _, table := range database.Tables {
		count, exists, err := database.TableCount(ctx, pool, table)
		switch {
		case err != nil:
			log.Printf("Error checking table %s: %v", table, err)
		case !exists:
			log.Printf("Table %-22s does not exist", table)
		default:
			log.Printf("Table %-22s exists (%d rows)", table, count)
		}
	}
}
