package repository

import (
	"context"

	"chat-relay/internal/domain/user"
	relay_errors "chat-relay/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PostgresUserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) UserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `
	u.id, u.name, u.email, u.avatar, u.about, u.status, COALESCE(u.socket_id, ''), u.created_at,
	COALESCE((SELECT array_agg(f.friend_id ORDER BY f.created_at) FROM friendships f WHERE f.user_id = u.id), '{}'),
	COALESCE((SELECT array_agg(m.room_id ORDER BY m.joined_at) FROM room_members m WHERE m.user_id = u.id), '{}')`

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	var status string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Avatar, &u.About, &status, &u.SocketID, &u.CreatedAt, &u.Friends, &u.Groups); err != nil {
		return user.User{}, err
	}
	u.Status = user.Status(status)
	return u, nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Status == "" {
		u.Status = user.StatusOffline
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (id, name, email, avatar, about, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		u.ID, u.Name, u.Email, u.Avatar, u.About, string(u.Status)).Scan(&u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return relay_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PostgresUserRepository) GetAllUsers(ctx context.Context, page, limit int) ([]user.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users u ORDER BY u.created_at DESC LIMIT $1 OFFSET $2`,
		limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users, err := collectUsers(rows)
	return users, total, err
}

func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id))
	if err != nil {
		return user.User{}, notFound(err)
	}
	return u, nil
}

func (r *PostgresUserRepository) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = ANY($1) ORDER BY u.name`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *PostgresUserRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *PostgresUserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, p user.ProfileUpdate) (user.User, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET
			name   = COALESCE($2, name),
			email  = COALESCE($3, email),
			avatar = COALESCE($4, avatar),
			about  = COALESCE($5, about)
		WHERE id = $1`, id, p.Name, p.Email, p.Avatar, p.About)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, relay_errors.ErrAlreadyExists
		}
		return user.User{}, err
	}
	if tag.RowsAffected() == 0 {
		return user.User{}, relay_errors.ErrNotFound
	}
	return r.GetUserByID(ctx, id)
}

func (r *PostgresUserRepository) MarkOnline(ctx context.Context, id uuid.UUID, socketID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET status = 'Online', socket_id = $2 WHERE id = $1`, id, socketID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return relay_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepository) MarkOffline(ctx context.Context, id uuid.UUID, socketID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET status = 'Offline', socket_id = NULL
		WHERE id = $1 AND socket_id = $2`, id, socketID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func collectUsers(rows pgx.Rows) ([]user.User, error) {
	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
