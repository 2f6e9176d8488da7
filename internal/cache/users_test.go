package cache_test

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-manager/internal/cache"
	"task-manager/internal/models"
	"task-manager/internal/testutil"
)

var redisClient *redis.Client

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}
	client, purge, err := testutil.StartRedis()
	if err != nil {
		log.Printf("skipping redis integration tests: %v", err)
		os.Exit(m.Run())
	}
	redisClient = client
	code := m.Run()
	purge()
	os.Exit(code)
}

func TestRedisUsers(t *testing.T) {
	if redisClient == nil {
		t.Skip("redis not available")
	}
	ctx := context.Background()
	c := cache.NewRedisUsers(redisClient, time.Minute)

	_, ok := c.Get(ctx, 1)
	assert.False(t, ok)

	u := &models.User{
		ID: 1, Username: "dev", Email: "dev@test.com", Role: models.RoleDeveloper,
		Avatar: sql.NullString{String: "/uploads/a.png", Valid: true},
	}
	c.Set(ctx, u)

	got, ok := c.Get(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, "dev", got.Username)
	assert.Equal(t, models.RoleDeveloper, got.Role)
	assert.Equal(t, u.Avatar, got.Avatar)

	ttl, err := redisClient.TTL(ctx, "user:1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	c.Invalidate(ctx, 1)
	_, ok = c.Get(ctx, 1)
	assert.False(t, ok)
}

func TestNop(t *testing.T) {
	var c cache.Users = cache.Nop{}
	c.Set(context.Background(), &models.User{ID: 1})
	_, ok := c.Get(context.Background(), 1)
	assert.False(t, ok)
}
