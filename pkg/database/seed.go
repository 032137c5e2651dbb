package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"chat-relay/internal/domain/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SeedConfig holds configuration for seeding the database
type SeedConfig struct {
	TestUserCount int
	EmailDomain   string
	// MakeFriends links consecutive test users as friends.
	MakeFriends bool
}

// DefaultSeedConfig returns default seed configuration
func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		TestUserCount: 5,
		EmailDomain:   "relay.local",
		MakeFriends:   true,
	}
}

// SeedResult holds the result of the seeding operation
type SeedResult struct {
	Users       []user.User
	Friendships int
}

// Seed inserts development users. Existing users with the same e-mail are
// left untouched.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg *SeedConfig) (*SeedResult, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}

	result := &SeedResult{}
	log.Println("Starting database seeding...")

	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for i := 1; i <= cfg.TestUserCount; i++ {
			u := user.User{
				ID:        uuid.New(),
				Name:      fmt.Sprintf("Test User %d", i),
				Email:     fmt.Sprintf("user%d@%s", i, cfg.EmailDomain),
				Status:    user.StatusOffline,
				CreatedAt: time.Now().UTC(),
			}
			err := tx.QueryRow(ctx, `
				INSERT INTO users (id, name, email, status, created_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (email) WHERE email <> '' DO UPDATE SET name = users.name
				RETURNING id`,
				u.ID, u.Name, u.Email, string(u.Status), u.CreatedAt).Scan(&u.ID)
			if err != nil {
				return fmt.Errorf("seed user %s: %w", u.Email, err)
			}
			result.Users = append(result.Users, u)
		}

		if !cfg.MakeFriends {
			return nil
		}
		for i := 1; i < len(result.Users); i++ {
			a, b := result.Users[i-1].ID, result.Users[i].ID
			tag, err := tx.Exec(ctx, `
				INSERT INTO friendships (user_id, friend_id) VALUES ($1, $2), ($2, $1)
				ON CONFLICT DO NOTHING`, a, b)
			if err != nil {
				return fmt.Errorf("seed friendship: %w", err)
			}
			result.Friendships += int(tag.RowsAffected()) / 2
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Seeded %d users and %d friendships", len(result.Users), result.Friendships)
	return result, nil
}
