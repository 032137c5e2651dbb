package repository

import (
	"context"
	"time"

	"chat-relay/internal/domain/user"
	relay_errors "chat-relay/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PostgresFriendRepository struct {
	db DBTX
}

func NewFriendRepository(db DBTX) FriendRepository {
	return &PostgresFriendRepository{db: db}
}

func scanRequest(row pgx.Row) (user.FriendRequest, error) {
	var fr user.FriendRequest
	err := row.Scan(&fr.ID, &fr.SenderID, &fr.RecipientID, &fr.CreatedAt)
	return fr, err
}

func (r *PostgresFriendRepository) CreateRequest(ctx context.Context, fr *user.FriendRequest) error {
	if fr.ID == uuid.Nil {
		fr.ID = uuid.New()
	}
	if fr.CreatedAt.IsZero() {
		fr.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO friend_requests (id, sender_id, recipient_id, created_at)
		VALUES ($1, $2, $3, $4)`,
		fr.ID, fr.SenderID, fr.RecipientID, fr.CreatedAt)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return relay_errors.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return relay_errors.ErrNotFound
	default:
		return err
	}
}

func (r *PostgresFriendRepository) GetRequest(ctx context.Context, id uuid.UUID) (user.FriendRequest, error) {
	fr, err := scanRequest(r.db.QueryRow(ctx,
		`SELECT id, sender_id, recipient_id, created_at FROM friend_requests WHERE id = $1`, id))
	return fr, notFound(err)
}

func (r *PostgresFriendRepository) GetPendingRequest(ctx context.Context, senderID, recipientID uuid.UUID) (user.FriendRequest, error) {
	fr, err := scanRequest(r.db.QueryRow(ctx, `
		SELECT id, sender_id, recipient_id, created_at FROM friend_requests
		WHERE sender_id = $1 AND recipient_id = $2`, senderID, recipientID))
	return fr, notFound(err)
}

func (r *PostgresFriendRepository) ListIncomingRequests(ctx context.Context, recipientID uuid.UUID) ([]user.FriendRequest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, sender_id, recipient_id, created_at FROM friend_requests
		WHERE recipient_id = $1 ORDER BY created_at`, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []user.FriendRequest
	for rows.Next() {
		fr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}

func (r *PostgresFriendRepository) AcceptRequest(ctx context.Context, id uuid.UUID) (user.FriendRequest, error) {
	var fr user.FriendRequest
	err := WithTx(ctx, r.db, func(tx DBTX) error {
		var err error
		fr, err = scanRequest(tx.QueryRow(ctx, `
			DELETE FROM friend_requests WHERE id = $1
			RETURNING id, sender_id, recipient_id, created_at`, id))
		if err != nil {
			return notFound(err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO friendships (user_id, friend_id) VALUES ($1, $2), ($2, $1)
			ON CONFLICT DO NOTHING`, fr.SenderID, fr.RecipientID)
		return err
	})
	if err != nil {
		return user.FriendRequest{}, err
	}
	return fr, nil
}

func (r *PostgresFriendRepository) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM friendships WHERE user_id = $1 AND friend_id = $2)`, a, b).Scan(&exists)
	return exists, err
}

func (r *PostgresFriendRepository) ListFriends(ctx context.Context, userID uuid.UUID) ([]user.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM friendships fs JOIN users u ON u.id = fs.friend_id
		WHERE fs.user_id = $1 ORDER BY u.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}
