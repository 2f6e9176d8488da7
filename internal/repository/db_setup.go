package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"task-manager/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    username VARCHAR(150) NOT NULL UNIQUE,
    email VARCHAR(254) NOT NULL DEFAULT '',
    password VARCHAR(255) NOT NULL,
    name VARCHAR(255) NOT NULL DEFAULT '',
    surname VARCHAR(255) NOT NULL DEFAULT '',
    role VARCHAR(255) NOT NULL DEFAULT 'developer'
        CHECK (role IN ('developer', 'manager', 'admin')),
    is_staff BOOLEAN NOT NULL DEFAULT FALSE,
    avatar_picture VARCHAR(1024),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tags (
    id BIGSERIAL PRIMARY KEY,
    title VARCHAR(255) NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
    id BIGSERIAL PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    description VARCHAR(255) NOT NULL,
    author_id BIGINT REFERENCES users (id) ON DELETE SET NULL,
    executor_id BIGINT REFERENCES users (id) ON DELETE SET NULL,
    deadline DATE NOT NULL,
    state VARCHAR(255) NOT NULL DEFAULT 'new task',
    priority VARCHAR(255) NOT NULL CHECK (priority IN ('high', 'middle', 'low')),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    edited_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS task_tags (
    task_id BIGINT NOT NULL REFERENCES tasks (id) ON DELETE CASCADE,
    tag_id BIGINT NOT NULL REFERENCES tags (id) ON DELETE CASCADE,
    position INT NOT NULL DEFAULT 0,
    PRIMARY KEY (task_id, tag_id)
);

CREATE INDEX IF NOT EXISTS tasks_executor_idx ON tasks (executor_id);
CREATE INDEX IF NOT EXISTS task_tags_tag_idx ON task_tags (tag_id);
`

func CreateTableIfNotExists(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	logger.SystemLogger.Info("Tables 'users', 'tags', 'tasks', 'task_tags' are ready")
	return nil
}

// CreateAdminUser inserts a staff admin account unless the username is taken.
func CreateAdminUser(ctx context.Context, db *sql.DB, username, email, password string) error {
	if username == "" || password == "" {
		return errors.New("admin username and password are required")
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	query := `INSERT INTO users (username, email, password, role, is_staff)
		VALUES ($1, $2, $3, 'admin', TRUE)
		ON CONFLICT (username) DO NOTHING`
	res, err := db.ExecContext(ctx, query, username, email, string(hashedPassword))
	if err != nil {
		return fmt.Errorf("inserting admin user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		logger.SystemLogger.Info("Admin user already exists", zap.String("username", username))
		return nil
	}
	logger.AuditLogger.Info("Admin user created", zap.String("username", username))
	return nil
}

func DeleteAllTable(ctx context.Context, db *sql.DB) error {
	query := `
    DROP TABLE IF EXISTS task_tags;
    DROP TABLE IF EXISTS tasks;
    DROP TABLE IF EXISTS tags;
    DROP TABLE IF EXISTS users;
    `
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("dropping tables: %w", err)
	}
	logger.SystemLogger.Info("Tables 'users', 'tags', 'tasks', 'task_tags' are deleted")
	return nil
}
