package repository

import (
	"context"

	"chat-relay/internal/domain/call"
	relay_errors "chat-relay/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PostgresCallRepository struct {
	db DBTX
}

func NewCallRepository(db DBTX) CallRepository {
	return &PostgresCallRepository{db: db}
}

const callColumns = `id, kind, from_id, to_id, user_a, user_b, room_id, status, verdict, started_at, ended_at`

func scanCall(row pgx.Row) (call.Call, error) {
	var c call.Call
	var kind, status, verdict string
	err := row.Scan(&c.ID, &kind, &c.From, &c.To, &c.Participants[0], &c.Participants[1], &c.RoomID,
		&status, &verdict, &c.StartedAt, &c.EndedAt)
	c.Kind, c.Status, c.Verdict = call.Kind(kind), call.Status(status), call.Verdict(verdict)
	return c, err
}

func (r *PostgresCallRepository) Create(ctx context.Context, c *call.Call) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Participants = call.Pair(c.From, c.To)
	_, err := r.db.Exec(ctx, `
		INSERT INTO calls (id, kind, from_id, to_id, user_a, user_b, room_id, status, verdict, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, string(c.Kind), c.From, c.To, c.Participants[0], c.Participants[1], c.RoomID,
		string(c.Status), string(c.Verdict), c.StartedAt, c.EndedAt)
	return err
}

func (r *PostgresCallRepository) GetByID(ctx context.Context, id uuid.UUID) (call.Call, error) {
	c, err := scanCall(r.db.QueryRow(ctx, `SELECT `+callColumns+` FROM calls WHERE id = $1`, id))
	return c, notFound(err)
}

func (r *PostgresCallRepository) LatestOngoing(ctx context.Context, a, b uuid.UUID, kind call.Kind) (call.Call, error) {
	pair := call.Pair(a, b)
	c, err := scanCall(r.db.QueryRow(ctx, `
		SELECT `+callColumns+` FROM calls
		WHERE user_a = $1 AND user_b = $2 AND kind = $3 AND status = 'Ongoing'
		ORDER BY started_at DESC LIMIT 1`, pair[0], pair[1], string(kind)))
	return c, notFound(err)
}

func (r *PostgresCallRepository) Update(ctx context.Context, c call.Call) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE calls SET status = $2, verdict = $3, ended_at = $4 WHERE id = $1`,
		c.ID, string(c.Status), string(c.Verdict), c.EndedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return relay_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresCallRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]call.Call, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+callColumns+` FROM calls
		WHERE user_a = $1 OR user_b = $1
		ORDER BY started_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []call.Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
