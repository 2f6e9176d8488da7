// Package cache keeps user records in Redis for actor resolution and user reads.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"task-manager/internal/models"
	"task-manager/pkg/logger"
)

const DefaultTTL = time.Hour

type Users interface {
	Get(ctx context.Context, id int64) (*models.User, bool)
	Set(ctx context.Context, u *models.User)
	Invalidate(ctx context.Context, id int64)
}

// cachedUser is the stored form; models.User hides the avatar from JSON.
type cachedUser struct {
	ID        int64       `json:"id"`
	Username  string      `json:"username"`
	Name      string      `json:"name"`
	Surname   string      `json:"surname"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	IsStaff   bool        `json:"is_staff"`
	Avatar    *string     `json:"avatar_picture"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func userKey(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

type RedisUsers struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisUsers(client *redis.Client, ttl time.Duration) *RedisUsers {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisUsers{client: client, ttl: ttl}
}

// Get returns the cached user. Any Redis failure is treated as a miss.
func (c *RedisUsers) Get(ctx context.Context, id int64) (*models.User, bool) {
	raw, err := c.client.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.ErrorLogger.Error("Redis get user failed", zap.Int64("user_id", id), zap.Error(err))
		}
		return nil, false
	}
	var cu cachedUser
	if err := json.Unmarshal(raw, &cu); err != nil {
		logger.ErrorLogger.Error("Corrupt cached user", zap.Int64("user_id", id), zap.Error(err))
		c.Invalidate(ctx, id)
		return nil, false
	}
	u := &models.User{
		ID: cu.ID, Username: cu.Username, Name: cu.Name, Surname: cu.Surname, Email: cu.Email,
		Role: cu.Role, IsStaff: cu.IsStaff, CreatedAt: cu.CreatedAt, UpdatedAt: cu.UpdatedAt,
	}
	if cu.Avatar != nil {
		u.Avatar = sql.NullString{String: *cu.Avatar, Valid: true}
	}
	return u, true
}

func (c *RedisUsers) Set(ctx context.Context, u *models.User) {
	cu := cachedUser{
		ID: u.ID, Username: u.Username, Name: u.Name, Surname: u.Surname, Email: u.Email,
		Role: u.Role, IsStaff: u.IsStaff, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	}
	if u.Avatar.Valid {
		avatar := u.Avatar.String
		cu.Avatar = &avatar
	}
	raw, err := json.Marshal(cu)
	if err != nil {
		return
	}
	if err := c.client.SetEX(ctx, userKey(u.ID), raw, c.ttl).Err(); err != nil {
		logger.ErrorLogger.Error("Redis set user failed", zap.Int64("user_id", u.ID), zap.Error(err))
	}
}

func (c *RedisUsers) Invalidate(ctx context.Context, id int64) {
	if err := c.client.Del(ctx, userKey(id)).Err(); err != nil {
		logger.ErrorLogger.Error("Redis delete user failed", zap.Int64("user_id", id), zap.Error(err))
	}
}

// Nop never caches.
type Nop struct{}

func (Nop) Get(context.Context, int64) (*models.User, bool) { return nil, false }
func (Nop) Set(context.Context, *models.User)               {}
func (Nop) Invalidate(context.Context, int64)               {}
