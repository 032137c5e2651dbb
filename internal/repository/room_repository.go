package repository

import (
	"context"
	"time"

	"chat-relay/internal/domain/conversation"
	relay_errors "chat-relay/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PostgresRoomRepository struct {
	db DBTX
}

func NewRoomRepository(db DBTX) RoomRepository {
	return &PostgresRoomRepository{db: db}
}

const roomColumns = `r.id, r.name, r.owner_id, r.created_at,
	COALESCE((SELECT array_agg(m.user_id ORDER BY m.joined_at) FROM room_members m WHERE m.room_id = r.id), '{}')`

func scanRoom(row pgx.Row) (conversation.Room, error) {
	var room conversation.Room
	err := row.Scan(&room.ID, &room.Name, &room.Owner, &room.CreatedAt, &room.MemberIDs)
	return room, err
}

func (r *PostgresRoomRepository) Create(ctx context.Context, room *conversation.Room) error {
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	room.CreatedAt = time.Now().UTC()

	err := WithTx(ctx, r.db, func(tx DBTX) error {
		if _, err := tx.Exec(ctx, `INSERT INTO rooms (id, name, owner_id, created_at) VALUES ($1, $2, $3, $4)`,
			room.ID, room.Name, room.Owner, room.CreatedAt); err != nil {
			return err
		}
		for _, memberID := range room.MemberIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO room_members (room_id, user_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING`, room.ID, memberID); err != nil {
				return err
			}
		}
		return nil
	})
	if isForeignKeyViolation(err) {
		return relay_errors.ErrNotFound
	}
	return err
}

func (r *PostgresRoomRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Room, error) {
	room, err := scanRoom(r.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms r WHERE r.id = $1`, id))
	return room, notFound(err)
}

func (r *PostgresRoomRepository) AddMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO room_members (room_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, roomID, userID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, relay_errors.ErrNotFound
		}
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRoomRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Room, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+roomColumns+` FROM rooms r
		JOIN room_members rm ON rm.room_id = r.id
		WHERE rm.user_id = $1
		ORDER BY rm.joined_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []conversation.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func (r *PostgresRoomRepository) AppendMessage(ctx context.Context, m *conversation.Message) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)`, m.ConversationID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return relay_errors.ErrNotFound
	}
	return insertMessage(ctx, r.db, scopeGroup, m)
}

func (r *PostgresRoomRepository) ListMessages(ctx context.Context, roomID uuid.UUID) ([]conversation.Message, error) {
	if _, err := r.GetByID(ctx, roomID); err != nil {
		return nil, err
	}
	return listMessages(ctx, r.db, roomID)
}
