package repository

import (
	"context"
	"errors"
	"time"

	"chat-relay/internal/domain/conversation"
	relay_errors "chat-relay/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	scopeDirect = "direct"
	scopeGroup  = "group"
)

type PostgresConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

const directColumns = `d.id, d.user_a, d.user_b, d.unread_count, d.read_by, d.created_at, d.updated_at`

func scanDirect(row pgx.Row) (conversation.Direct, error) {
	var d conversation.Direct
	err := row.Scan(&d.ID, &d.Participants[0], &d.Participants[1], &d.UnreadCount, &d.ReadBy, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (r *PostgresConversationRepository) CreateDirect(ctx context.Context, d *conversation.Direct) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.Participants = conversation.SortedPair(d.Participants[0], d.Participants[1])
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	if d.ReadBy == nil {
		d.ReadBy = []uuid.UUID{}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO direct_conversations (id, user_a, user_b, unread_count, read_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.Participants[0], d.Participants[1], d.UnreadCount, d.ReadBy, d.CreatedAt, d.UpdatedAt)
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

func (r *PostgresConversationRepository) GetDirectByID(ctx context.Context, id uuid.UUID) (conversation.Direct, error) {
	d, err := scanDirect(r.db.QueryRow(ctx, `SELECT `+directColumns+` FROM direct_conversations d WHERE d.id = $1`, id))
	return d, notFound(err)
}

func (r *PostgresConversationRepository) GetDirectByPair(ctx context.Context, a, b uuid.UUID) (conversation.Direct, error) {
	pair := conversation.SortedPair(a, b)
	d, err := scanDirect(r.db.QueryRow(ctx,
		`SELECT `+directColumns+` FROM direct_conversations d WHERE d.user_a = $1 AND d.user_b = $2`, pair[0], pair[1]))
	return d, notFound(err)
}

func (r *PostgresConversationRepository) ListDirectForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Direct, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+directColumns+` FROM direct_conversations d
		WHERE d.user_a = $1 OR d.user_b = $1
		ORDER BY d.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []conversation.Direct
	for rows.Next() {
		d, err := scanDirect(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		last, err := r.lastMessage(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].LastMessage = last
	}
	return out, nil
}

func (r *PostgresConversationRepository) lastMessage(ctx context.Context, conversationID uuid.UUID) (*conversation.Message, error) {
	m, err := scanMessage(r.db.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = $1 ORDER BY seq DESC LIMIT 1`, conversationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PostgresConversationRepository) AppendDirectMessage(ctx context.Context, m *conversation.Message) error {
	return WithTx(ctx, r.db, func(tx DBTX) error {
		tag, err := tx.Exec(ctx, `
			UPDATE direct_conversations
			SET unread_count = unread_count + 1, read_by = ARRAY[$2::uuid], updated_at = now()
			WHERE id = $1`, m.ConversationID, m.From)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return relay_errors.ErrNotFound
		}
		return insertMessage(ctx, tx, scopeDirect, m)
	})
}

func (r *PostgresConversationRepository) ListDirectMessages(ctx context.Context, conversationID uuid.UUID) ([]conversation.Message, error) {
	if _, err := r.GetDirectByID(ctx, conversationID); err != nil {
		return nil, err
	}
	return listMessages(ctx, r.db, conversationID)
}

func (r *PostgresConversationRepository) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE direct_conversations
		SET unread_count = 0,
		    read_by = CASE WHEN $2::uuid = ANY(read_by) THEN read_by ELSE array_append(read_by, $2::uuid) END
		WHERE id = $1`, conversationID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return relay_errors.ErrNotFound
	}
	return nil
}

const messageColumns = `id, conversation_id, from_id, to_id, type, body, file, sender, created_at`

func scanMessage(row pgx.Row) (conversation.Message, error) {
	var m conversation.Message
	var msgType string
	err := row.Scan(&m.ID, &m.ConversationID, &m.From, &m.To, &msgType, &m.Text, &m.File, &m.Sender, &m.CreatedAt)
	m.Type = conversation.MessageType(msgType)
	return m, err
}

func insertMessage(ctx context.Context, db DBTX, scope string, m *conversation.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Type == "" {
		m.Type = conversation.MessageText
	}
	m.CreatedAt = time.Now().UTC()
	_, err := db.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, scope, from_id, to_id, type, body, file, sender, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.ConversationID, scope, m.From, m.To, string(m.Type), m.Text, m.File, m.Sender, m.CreatedAt)
	return err
}

func listMessages(ctx context.Context, db DBTX, conversationID uuid.UUID) ([]conversation.Message, error) {
	rows, err := db.Query(ctx, `SELECT `+messageColumns+` FROM messages WHERE conversation_id = $1 ORDER BY seq`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []conversation.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
