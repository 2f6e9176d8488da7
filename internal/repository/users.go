package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"task-manager/internal/models"
)

const userColumns = `id, username, name, surname, email, role, is_staff, avatar_picture, password, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Surname, &u.Email, &u.Role, &u.IsStaff,
		&u.Avatar, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (q *queries) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	u, err := scanUser(q.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, mapError(err, "get user")
	}
	return u, nil
}

func (q *queries) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return q.getUser(ctx, "id = $1", id)
}

func (q *queries) LockUser(ctx context.Context, id int64) (*models.User, error) {
	return q.getUser(ctx, "id = $1 FOR UPDATE", id)
}

func (q *queries) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return q.getUser(ctx, "username = $1", username)
}

func (q *queries) listUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (q *queries) ListUsers(ctx context.Context) ([]models.User, error) {
	return q.listUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

func (q *queries) ListUsersByID(ctx context.Context, ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	return q.listUsers(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
}

func (q *queries) CreateUser(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (username, name, surname, email, role, is_staff, avatar_picture, password)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	err := q.db.QueryRowContext(ctx, query, u.Username, u.Name, u.Surname, u.Email, u.Role,
		u.IsStaff, u.Avatar, u.PasswordHash).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return mapError(err, "create user")
	}
	return nil
}

func (q *queries) UpdateUser(ctx context.Context, u *models.User) error {
	query := `UPDATE users
		SET username = $1, name = $2, surname = $3, email = $4, role = $5, is_staff = $6,
		    avatar_picture = $7, updated_at = CURRENT_TIMESTAMP
		WHERE id = $8
		RETURNING updated_at`
	err := q.db.QueryRowContext(ctx, query, u.Username, u.Name, u.Surname, u.Email, u.Role,
		u.IsStaff, u.Avatar, u.ID).Scan(&u.UpdatedAt)
	if err != nil {
		return mapError(err, "update user")
	}
	return nil
}

func (q *queries) DeleteUser(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return affected(res, "delete user")
}
