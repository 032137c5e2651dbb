package repository

import (
	"context"
	"errors"
	"fmt"

	relay_errors "chat-relay/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX abstracts *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

// notFound maps pgx.ErrNoRows onto the package level sentinel.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return relay_errors.ErrNotFound
	}
	return err
}

// WithTx executes fn inside a transaction when db is a pool.
// If db is already a pgx.Tx, fn is executed directly.
func WithTx(ctx context.Context, db DBTX, fn func(DBTX) error) error {
	if db == nil {
		return errors.New("database not initialized")
	}
	if tx, ok := db.(pgx.Tx); ok {
		return fn(tx)
	}
	pool, ok := db.(*pgxpool.Pool)
	if !ok {
		return errors.New("unsupported db type")
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx error: %v (rollback error: %w)", err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

// NewPostgres wires every postgres repository on one pool.
func NewPostgres(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:         NewUserRepository(pool),
		Friends:       NewFriendRepository(pool),
		Conversations: NewConversationRepository(pool),
		Rooms:         NewRoomRepository(pool),
		Calls:         NewCallRepository(pool),
	}
}
