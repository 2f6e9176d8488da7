package testutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
)

// ErrDockerUnavailable is returned by the Start helpers when no Docker daemon
// can be reached.
var ErrDockerUnavailable = errors.New("docker unavailable")

func newPool() (*dockertest.Pool, error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDockerUnavailable, err)
	}
	if err := pool.Client.Ping(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDockerUnavailable, err)
	}
	return pool, nil
}

func run(pool *dockertest.Pool, opts *dockertest.RunOptions) (*dockertest.Resource, error) {
	resource, err := pool.RunWithOptions(opts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, fmt.Errorf("starting %s: %w", opts.Repository, err)
	}
	_ = resource.Expire(120)
	return resource, nil
}

// StartRedis runs a throwaway Redis container and returns a connected client
// and a function that removes the container.
func StartRedis() (*redis.Client, func(), error) {
	pool, err := newPool()
	if err != nil {
		return nil, nil, err
	}
	resource, err := run(pool, &dockertest.RunOptions{Repository: "redis", Tag: "7-alpine"})
	if err != nil {
		return nil, nil, err
	}

	var client *redis.Client
	pool.MaxWait = 30 * time.Second
	err = pool.Retry(func() error {
		client = redis.NewClient(&redis.Options{Addr: "localhost:" + resource.GetPort("6379/tcp")})
		return client.Ping(context.Background()).Err()
	})
	if err != nil {
		_ = pool.Purge(resource)
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}

	purge := func() {
		client.Close()
		_ = pool.Purge(resource)
	}
	return client, purge, nil
}

// StartPostgres runs a throwaway PostgreSQL container and returns an open
// database and a function that removes the container.
func StartPostgres() (*sql.DB, func(), error) {
	pool, err := newPool()
	if err != nil {
		return nil, nil, err
	}
	resource, err := run(pool, &dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=tasks",
			"POSTGRES_PASSWORD=secret",
			"POSTGRES_DB=tasks_test",
		},
	})
	if err != nil {
		return nil, nil, err
	}

	dsn := fmt.Sprintf("host=localhost port=%s user=tasks password=secret dbname=tasks_test sslmode=disable",
		resource.GetPort("5432/tcp"))
	var db *sql.DB
	pool.MaxWait = 60 * time.Second
	err = pool.Retry(func() error {
		conn, err := sql.Open("postgres", dsn)
		if err != nil {
			return err
		}
		if err := conn.Ping(); err != nil {
			conn.Close()
			return err
		}
		db = conn
		return nil
	})
	if err != nil {
		_ = pool.Purge(resource)
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	purge := func() {
		db.Close()
		_ = pool.Purge(resource)
	}
	return db, purge, nil
}
