package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	"chat-relay/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Connect opens a pgx pool and verifies it with a ping.
func Connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Println("Database connection established")
	return pool, nil
}

func HealthCheck(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("database not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var one int
	return pool.QueryRow(ctx, "SELECT 1").Scan(&one)
}

// ApplyMigrations runs every embedded *.up.sql file in name order.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	return runMigrations(ctx, pool, ".up.sql", false)
}

// RollbackMigrations runs every embedded *.down.sql file in reverse order.
func RollbackMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	return runMigrations(ctx, pool, ".down.sql", true)
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, suffix string, reverse bool) error {
	names, err := migrationNames(suffix)
	if err != nil {
		return err
	}
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
	}

	for _, name := range names {
		content, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", name, err)
		}
		log.Printf("Applying migration: %s", name)
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
	}
	return nil
}

func migrationNames(suffix string) ([]string, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// TableCount returns the number of rows in a known table.
func TableCount(ctx context.Context, pool *pgxpool.Pool, table string) (int64, bool, error) {
	var exists bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`,
		table).Scan(&exists)
	if err != nil || !exists {
		return 0, exists, err
	}
	var count int64
	if err := pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %q", table)).Scan(&count); err != nil {
		return 0, true, err
	}
	return count, true, nil
}

var Tables = []string{"users", "friendships", "friend_requests", "direct_conversations", "rooms", "room_members", "messages", "calls"}

func TruncateAllTables(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, "TRUNCATE "+strings.Join(Tables, ", ")+" CASCADE")
	return err
}
